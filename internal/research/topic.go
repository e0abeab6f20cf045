package research

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/session"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/textparse"
)

var eventKeywords = []string{
	"disaster", "election", "pandemic", "outbreak", "crisis", "attack", "war",
	"conflict", "scandal", "protest", "rally", "coup", "invasion", "brexit",
	"shooting", "earthquake", "hurricane", "flood", "legislation", "bill",
	"conference", "summit",
}

const maxTitleLength = 200

// TopicAnalyzer classifies a topic and plans its searches and sections.
type TopicAnalyzer struct {
	kit *Toolkit
}

// NewTopicAnalyzer wires the analyzer to kit.
func NewTopicAnalyzer(kit *Toolkit) *TopicAnalyzer {
	return &TopicAnalyzer{kit: kit}
}

// LooksLikeEvent reports whether topic mentions a real-world event keyword.
func LooksLikeEvent(topic string) bool {
	lower := strings.ToLower(topic)
	for _, kw := range eventKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func defaultAnalysis(topic string, isEvent bool, reasoning string) domain.TopicAnalysis {
	region, ok := DetectRegion(topic)
	if !ok {
		region = defaultRegion
	}
	return domain.TopicAnalysis{
		IsEvent:        isEvent,
		ConceptQueries: []string{topic + " overview", topic + " definition", topic + " examples"},
		KeyComponents:  []string{},
		RegionCode:     region,
		Reasoning:      reasoning,
	}
}

// eventReply is the model's verdict on an event-like topic.
type eventReply struct {
	IsEvent          bool     `json:"is_event"`
	Title            string   `json:"title"`
	Reasoning        string   `json:"reasoning"`
	KeyComponents    []string `json:"key_components"`
	Regions          []string `json:"regions"`
	RegionCode       string   `json:"region_code"`
	TimeSensitivity  string   `json:"time_sensitivity"`
	SearchComponents []string `json:"search_components"`
	EventQueries     []string `json:"event_queries"`
	ConceptQueries   []string `json:"concept_queries"`
}

// Analyze decides whether topic is an event. Only topics with an event
// keyword or a date are sent to the model; the rest get the default query
// set. Confirmed events are backed with news headlines from their region.
func (a *TopicAnalyzer) Analyze(ctx context.Context, sc *session.Context, topic string) domain.Result[domain.TopicAnalysis] {
	log := sc.Logger.With("component", "research.topic")
	likely := LooksLikeEvent(topic)
	if !likely && !MentionsDate(topic) {
		log.InfoContext(ctx, "Topic does not appear to be an event, skipping news analysis", "high_level", true)
		return domain.OK(defaultAnalysis(topic, false, "Not detected as an event based on initial keyword analysis"))
	}

	log.InfoContext(ctx, "Topic appears to be event-related, performing detailed event analysis", "high_level", true)
	prompt := fmt.Sprintf(`Analyze this topic: "%s"

Determine whether it refers to a specific real-world event or to a general concept or field of study.
Also identify 3-5 key components, the countries or regions it is primarily associated with,
and its time sensitivity (current, historical, ongoing or timeless).

Return only a JSON object with the keys "is_event" (bool), "reasoning", "key_components" (array),
"regions" (array), "time_sensitivity" and "search_components" (array of 3-4 search queries).`, topic)

	resp, err := a.kit.ask(ctx, sc, prompt)
	if err != nil {
		log.WarnContext(ctx, "event analysis failed, using fallback", "error", err)
		return domain.ProviderFailed(defaultAnalysis(topic, likely, "Fallback detection based on keywords"), err)
	}

	var reply eventReply
	if err := textparse.Decode(resp, &reply); err != nil {
		log.WarnContext(ctx, "event analysis unparseable, using fallback", "error", err)
		return domain.OK(defaultAnalysis(topic, likely, "Fallback detection based on keywords"))
	}

	out := domain.TopicAnalysis{
		IsEvent:        reply.IsEvent,
		Title:          reply.Title,
		ConceptQueries: reply.ConceptQueries,
		KeyComponents:  reply.KeyComponents,
		Regions:        reply.Regions,
		RegionCode:     strings.ToUpper(strings.TrimSpace(reply.RegionCode)),
		TimeSense:      reply.TimeSensitivity,
		Reasoning:      reply.Reasoning,
	}
	if len(out.RegionCode) != 2 {
		out.RegionCode = regionFor(topic, reply.Regions)
	}
	if out.KeyComponents == nil {
		out.KeyComponents = []string{}
	}

	if !out.IsEvent {
		log.InfoContext(ctx, fmt.Sprintf("'%s' analyzed as a concept rather than a specific event", topic), "high_level", true)
		if len(out.ConceptQueries) == 0 {
			out.ConceptQueries = reply.SearchComponents
		}
		if len(out.ConceptQueries) == 0 {
			out.ConceptQueries = defaultAnalysis(topic, false, "").ConceptQueries
		}
		return domain.OK(out)
	}

	log.InfoContext(ctx, fmt.Sprintf("'%s' confirmed as a real-world event - will include news sources from region %s", topic, out.RegionCode), "high_level", true)
	newsQueries := a.newsQueries(ctx, sc, topic)
	out.NewsArticles = a.collectNews(ctx, sc, newsQueries, out.RegionCode)
	log.InfoContext(ctx, fmt.Sprintf("Collected %d news articles for event analysis", len(out.NewsArticles)), "high_level", true)

	for _, q := range slices.Concat(reply.EventQueries, newsQueries, reply.SearchComponents) {
		if q = strings.TrimSpace(q); q != "" && !slices.Contains(out.EventQueries, q) {
			out.EventQueries = append(out.EventQueries, q)
		}
	}
	if len(out.ConceptQueries) == 0 {
		out.ConceptQueries = defaultAnalysis(topic, true, "").ConceptQueries
	}
	return domain.OK(out)
}

// GenerateTitle asks for an academic title. It returns "" when the answer
// is unusable so the caller can fall back.
func (a *TopicAnalyzer) GenerateTitle(ctx context.Context, sc *session.Context, topic string) string {
	prompt := fmt.Sprintf(`Generate a compelling academic title for a research paper on "%s".
Keep it concise (10-15 words maximum). Provide only the title without any additional text.`, topic)

	resp, err := a.kit.ask(ctx, sc, prompt)
	if err != nil {
		sc.Logger.WarnContext(ctx, "title generation failed", "error", err)
		return ""
	}
	title := strings.Trim(strings.TrimSpace(resp), `"'`)
	if title == "" || textparse.LooksStructured(title) || len(title) > maxTitleLength || strings.Contains(title, "\n") {
		return ""
	}
	return title
}

// BreakDown turns the topic into web search components.
func (a *TopicAnalyzer) BreakDown(ctx context.Context, sc *session.Context, topic string, analysis domain.TopicAnalysis) []string {
	log := sc.Logger.With("component", "research.topic")
	log.InfoContext(ctx, fmt.Sprintf("Breaking down topic: '%s' into searchable components", topic), "high_level", true)

	if analysis.IsEvent {
		eventQueries := analysis.EventQueries
		if len(eventQueries) == 0 {
			eventQueries = []string{topic + " latest developments", topic + " timeline", topic + " analysis"}
		}
		prompt := fmt.Sprintf(`The topic "%s" appears to be related to real-world events.
Here are some recent news headlines about this topic:

%s
Break down this event-based topic into 5-8 distinct search queries covering
background, timeline, impacts and stakeholders. Return only a JSON array of strings.`, topic, headlines(analysis.NewsArticles))

		resp, err := a.kit.ask(ctx, sc, prompt)
		var generated []string
		if err == nil {
			err = textparse.Decode(resp, &generated)
		}
		if err != nil || len(generated) == 0 {
			log.DebugContext(ctx, "event breakdown fallback", "error", err)
			return append(append([]string{}, eventQueries...), topic+" timeline", topic+" analysis", topic+" impact")
		}

		var components []string
		for _, c := range append(append([]string{}, eventQueries...), generated...) {
			if !containsFold(components, c) {
				components = append(components, c)
			}
		}
		return components[:min(len(components), 8)]
	}

	if len(analysis.ConceptQueries) >= 3 {
		return append([]string{}, analysis.ConceptQueries...)
	}

	prompt := fmt.Sprintf(`Break down the concept "%s" into 5-8 distinct search queries covering definition,
methodology, applications and history. Return only a JSON array of strings.`, topic)
	resp, err := a.kit.ask(ctx, sc, prompt)
	var components []string
	if err == nil {
		err = textparse.Decode(resp, &components)
	}
	if err != nil || len(components) == 0 {
		return []string{
			topic + " definition", topic + " techniques", topic + " applications",
			topic + " examples", topic + " benefits", topic + " challenges",
		}
	}
	return components
}

func containsFold(items []string, candidate string) bool {
	needle := strings.ToLower(strings.TrimSpace(candidate))
	for _, it := range items {
		if strings.Contains(strings.ToLower(it), needle) {
			return true
		}
	}
	return false
}

// IdentifySubtopics plans the document sections.
func (a *TopicAnalyzer) IdentifySubtopics(ctx context.Context, sc *session.Context, topic string, analysis domain.TopicAnalysis) domain.Result[[]domain.Subtopic] {
	log := sc.Logger.With("component", "research.topic")
	log.InfoContext(ctx, "Identifying subtopics for: "+topic, "high_level", true)

	kind, newsContext := "topic", ""
	if analysis.IsEvent {
		kind = "current event"
		newsContext = "\nHere are some recent news headlines about this event:\n" + headlines(analysis.NewsArticles)
	}
	prompt := fmt.Sprintf(`You are planning a comprehensive research paper on the %s "%s".
%sIdentify 5-8 key subtopics. For each give 2-3 search queries.
Return a JSON array of objects with "subtopic" and "search_queries".`, kind, topic, newsContext)

	resp, err := a.kit.ask(ctx, sc, prompt)
	if err != nil {
		log.WarnContext(ctx, "subtopic identification failed, using fallback", "error", err)
		return domain.ProviderFailed(fallbackSubtopics(topic, analysis.IsEvent), err)
	}

	var planned []domain.Subtopic
	if err := textparse.Decode(resp, &planned); err == nil {
		if cleaned := cleanSubtopics(planned, topic); len(cleaned) > 0 {
			log.InfoContext(ctx, fmt.Sprintf("Successfully identified %d subtopics", len(cleaned)), "high_level", true)
			return domain.OK(cleaned)
		}
	}

	if names := textparse.StringValues(resp, "subtopic"); len(names) > 0 {
		recovered := make([]domain.Subtopic, 0, len(names))
		for _, n := range names {
			recovered = append(recovered, domain.Subtopic{Name: n})
		}
		return domain.OK(cleanSubtopics(recovered, topic))
	}

	log.InfoContext(ctx, "Error parsing subtopics. Using fallback method.")
	return domain.OK(fallbackSubtopics(topic, analysis.IsEvent))
}

func cleanSubtopics(in []domain.Subtopic, topic string) []domain.Subtopic {
	out := make([]domain.Subtopic, 0, len(in))
	for _, s := range in {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			continue
		}
		if len(s.Queries) == 0 {
			s.Queries = []string{s.Name, topic + " " + s.Name}
		}
		out = append(out, s)
	}
	return out
}

func fallbackSubtopics(topic string, isEvent bool) []domain.Subtopic {
	if isEvent {
		return []domain.Subtopic{
			{Name: "Introduction to " + topic, Queries: []string{topic + " overview", topic + " latest developments"}},
			{Name: "Historical Context", Queries: []string{topic + " historical background", topic + " timeline"}},
			{Name: "Current Situation", Queries: []string{topic + " current status", topic + " recent updates"}},
			{Name: "Key Stakeholders", Queries: []string{topic + " key players", topic + " organizations involved"}},
			{Name: "Impact Analysis", Queries: []string{topic + " impacts", topic + " consequences"}},
			{Name: "Future Implications", Queries: []string{topic + " future outlook", topic + " predictions"}},
		}
	}
	return []domain.Subtopic{
		{Name: "Introduction to " + topic, Queries: []string{"introduction to " + topic, topic + " basics"}},
		{Name: "Historical Background", Queries: []string{"history of " + topic, topic + " timeline"}},
		{Name: "Current State of Research", Queries: []string{"latest research on " + topic, topic + " recent studies"}},
		{Name: "Methodology", Queries: []string{topic + " methodology", "research methods for " + topic}},
		{Name: "Future Directions", Queries: []string{"future of " + topic, topic + " upcoming developments"}},
	}
}

// Keywords derives short academic search phrases for dork queries.
func (a *TopicAnalyzer) Keywords(ctx context.Context, sc *session.Context, topic string) []string {
	words := strings.Fields(topic)
	var keywords []string

	if len(words) <= 2 {
		keywords = []string{topic}
	} else {
		prompt := fmt.Sprintf(`Generate 3-4 concise academic search phrases (2-3 words each) for the topic "%s".
Return only a JSON array of strings.`, topic)
		resp, err := a.kit.ask(ctx, sc, prompt)
		if err == nil {
			keywords = textparse.StringList(resp)
		}
		if len(keywords) == 0 {
			if len(words) > 5 {
				keywords = []string{strings.Join(words[:2], " "), strings.Join(words[:3], " ")}
			} else {
				keywords = []string{strings.Join(words[:2], " "), topic}
			}
		}
	}

	if !slices.Contains(keywords, topic) {
		keywords = append(keywords, topic)
	}
	for _, variant := range []string{topic + " research", topic + " study", topic + " methodology"} {
		if len(keywords) < 5 && !containsFold(keywords, variant) {
			keywords = append(keywords, variant)
		}
	}
	return keywords
}
