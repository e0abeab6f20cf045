package research

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/citation"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/optimizer"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/session"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/urltrack"
)

const (
	subtopicMaterialCap   = 12
	subtopicResultsPerQ   = 3
	subtopicMaxQueryWords = 5
	webMinContent         = 200
)

var subtopicDorks = []string{
	`site:*.edu filetype:pdf "{topic}"`,
	`site:*.gov filetype:pdf "{topic}"`,
	`site:*.ac filetype:pdf "{topic}"`,
}

// SubtopicResearcher writes one document section from reused papers,
// encyclopedia background and targeted web searches.
type SubtopicResearcher struct {
	kit *Toolkit
}

// NewSubtopicResearcher wires the researcher to kit.
func NewSubtopicResearcher(kit *Toolkit) *SubtopicResearcher {
	return &SubtopicResearcher{kit: kit}
}

// Research builds the section for sub. The returned section is always
// usable; Outcome tells whether any material backed it.
func (r *SubtopicResearcher) Research(ctx context.Context, sc *session.Context, topic string, sub domain.Subtopic, academic domain.AcademicSources) domain.Result[domain.Section] {
	name := strings.TrimSpace(sub.Name)
	if name == "" {
		name = "Aspect of " + topic
	}
	queries := sub.Queries
	if len(queries) == 0 {
		queries = []string{topic + " " + name}
	}

	log := sc.Logger.With("component", "research.subtopic", "subtopic", name)
	log.InfoContext(ctx, "Researching subtopic: "+name, "high_level", true)
	before := sc.URLs.Snapshot()

	materials := reusePapers(name, academic)
	if len(materials) > 0 {
		log.InfoContext(ctx, fmt.Sprintf("Found %d relevant academic papers for subtopic: %s", len(materials), name), "high_level", true)
	}
	if len(materials) < 2 {
		materials = append(materials, r.academicFallback(ctx, sc, topic, name)...)
	}
	if m, ok := r.background(ctx, sc, topic, name); ok {
		materials = append(materials, m)
	}
	materials = append(materials, r.newsMaterials(ctx, sc, name)...)
	materials = append(materials, r.webSearch(ctx, sc, topic, name, queries, len(materials))...)

	after := sc.URLs.Snapshot()
	delta := urltrack.Delta(before, after)
	log.InfoContext(ctx, fmt.Sprintf("Added %d new web sources while researching '%s'", delta.WebPage, name), "high_level", true)

	section := domain.Section{
		Subtopic:          name,
		ResearchMaterials: materials,
		WebPagesAdded:     delta.WebPage,
		URLTracking:       after,
		Sources:           []string{},
		ArticleIDs:        []string{},
	}
	for _, m := range materials {
		if m.ArticleID != "" {
			section.ArticleIDs = append(section.ArticleIDs, m.ArticleID)
		}
	}

	if len(materials) == 0 {
		log.InfoContext(ctx, "No research materials found for subtopic: "+name, "high_level", true)
		section.Content = fmt.Sprintf("No detailed information could be found for %s.", name)
		return domain.NoData(section)
	}

	var combined strings.Builder
	for i, m := range materials {
		source := m.Source
		if source == "" {
			source = fmt.Sprintf("%s - local-%d", titleOr(m.Title, "Source on", name), i)
		}
		section.Sources = append(section.Sources, source)
		summary := m.Summary
		if summary == "" {
			summary = "No summary available"
		}
		label := fmt.Sprintf("Source %d", i+1)
		if marker := registryMarker(sc, m.URL); marker != "" {
			label += " (reference " + marker + ")"
		}
		fmt.Fprintf(&combined, "\n\n%s: %s\n%s", label, source, summary)
	}

	content, err := r.writeSection(ctx, sc, topic, name, combined.String())
	if err != nil {
		log.WarnContext(ctx, "section generation failed", "error", err)
		section.Content = fmt.Sprintf("Research on %s could not be completed due to technical difficulties.", name)
		return domain.ProviderFailed(section, err)
	}
	section.Content = content
	return domain.OK(section)
}

// registryMarker returns the inline marker the citation registry assigned
// to rawURL, or "" when the url was never cited.
func registryMarker(sc *session.Context, rawURL string) string {
	ref, ok := sc.Citations.GetByURL(rawURL)
	if !ok {
		return ""
	}
	if marker := sc.Citations.GenerateCitation(ref.ID); marker != citation.ErrorMarker {
		return marker
	}
	return ""
}

func subtopicWords(name string) []string {
	return strings.Fields(strings.ToLower(name))
}

func mentionsAny(text string, words []string) bool {
	lower := strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// reusePapers returns the already collected papers that mention a word of
// the subtopic name. DOI papers are matched on content, arXiv papers on
// their summary.
func reusePapers(name string, academic domain.AcademicSources) []domain.Material {
	words := subtopicWords(name)
	var out []domain.Material
	for _, p := range academic.DOIPapers {
		if p.Content == "" || !mentionsAny(p.Content, words) {
			continue
		}
		out = append(out, paperMaterial(p, domain.SourceDOIPaper, p.URL))
	}
	for _, p := range academic.ArxivPapers {
		if p.Summary == "" || p.ArticleID == "" || !mentionsAny(p.Summary, words) {
			continue
		}
		link := p.PDFURL
		if link == "" {
			link = "arXiv"
		}
		out = append(out, paperMaterial(p, domain.SourceArxiv, link))
	}
	return out
}

func paperMaterial(p domain.Paper, sourceType, link string) domain.Material {
	return domain.Material{
		Title:      p.Title,
		URL:        p.URL,
		Source:     p.Title + " - " + link,
		Content:    p.Content,
		Summary:    p.Summary,
		SourceType: sourceType,
		ArticleID:  p.ArticleID,
		Relevance:  0.9,
	}
}

func (r *SubtopicResearcher) academicFallback(ctx context.Context, sc *session.Context, topic, name string) []domain.Material {
	subject := topic + " " + name
	sc.Logger.InfoContext(ctx, "Searching for additional academic papers for: "+subject, "high_level", true)

	h := newHarvest()
	spec := dorkSpec{
		topic:       name,
		titlePrefix: "Academic source on",
		summaryKind: "Academic",
		sourceType:  domain.SourceAcademic,
		minLen:      webMinContent,
		relevance:   0.85,
		accept:      func(u string) bool { return isHTTP(u) && urltrack.IsAcademic(u) },
		metadata:    map[string]any{"subtopic": name},
	}
	for _, q := range dorkQueries(subtopicDorks, []string{subject}) {
		if ctx.Err() != nil {
			break
		}
		r.kit.runDork(ctx, sc, q, spec, h)
	}
	return h.take(len(subtopicDorks) * dorkResultsPerQuery)
}

// background adds the encyclopedia entry for name, stored under a
// pseudo-URL so repeated runs reuse it.
func (r *SubtopicResearcher) background(ctx context.Context, sc *session.Context, topic, name string) (domain.Material, bool) {
	sc.Logger.InfoContext(ctx, "Searching Wikipedia for background information", "high_level", true)
	content, err := r.kit.Encyclopedia.Lookup(ctx, name)
	if err != nil {
		sc.Logger.WarnContext(ctx, "encyclopedia lookup failed", "subject", name, "error", err)
		return domain.Material{}, false
	}
	if strings.TrimSpace(content) == "" {
		return domain.Material{}, false
	}

	pseudoURL := "wikipedia:" + name
	title := "Wikipedia - " + name
	pg := page{Content: content}
	if sc.Articles != nil {
		if rec, ok := sc.Articles.GetByURL(pseudoURL); ok {
			pg.ID = rec.ID
			pg.Summary = rec.Summary()
			if stored, err := sc.Articles.GetContent(rec.ID); err == nil && stored != "" {
				pg.Content = stored
			}
		} else if id, err := sc.Articles.Store(pseudoURL, title, content, domain.SourceWikipedia, map[string]any{"topic": topic, "subtopic": name}); err == nil {
			pg.ID = id
		}
	}
	summary := r.kit.summarize(ctx, sc, pg, "Wikipedia", name)

	ref := citation.NewReference(title, "https://en.wikipedia.org/wiki/"+url.PathEscape(strings.ReplaceAll(name, " ", "_")), domain.SourceWikipedia)
	ref.Publisher = "Wikipedia"
	ref.Relevance = 0.6
	citation.CalculateScores(&ref, sc.Now())
	sc.Citations.Add(ref)

	return domain.Material{
		Title:      title,
		URL:        pseudoURL,
		Source:     title,
		Content:    pg.Content,
		Summary:    summary,
		SourceType: domain.SourceWikipedia,
		ArticleID:  pg.ID,
		Relevance:  0.6,
	}, true
}

func (r *SubtopicResearcher) webSearch(ctx context.Context, sc *session.Context, topic, name string, queries []string, have int) []domain.Material {
	var out []domain.Material
	seen := map[string]bool{}
	for _, q := range queries {
		if ctx.Err() != nil {
			break
		}
		if have+len(out) >= subtopicMaterialCap {
			sc.Logger.InfoContext(ctx, "Collected sufficient research materials, skipping remaining queries", "high_level", true)
			break
		}
		if words := strings.Fields(q); len(words) > subtopicMaxQueryWords {
			q = strings.Join(words[:4], " ")
		}
		query := EnhanceQuery(q, name, topic)
		sc.Logger.InfoContext(ctx, "Processing optimized search query: "+query)

		results, err := r.kit.search(ctx, sc, query)
		if err != nil {
			sc.Logger.WarnContext(ctx, "web search failed", "query", query, "error", err)
			continue
		}
		if len(results) == 0 {
			sc.Logger.InfoContext(ctx, "No search results for query: "+query)
			continue
		}

		ranked := rankResults(results)
		for _, hit := range ranked[:min(len(ranked), subtopicResultsPerQ)] {
			if !isHTTP(hit.Link) || seen[hit.Link] {
				continue
			}
			seen[hit.Link] = true
			title := titleOr(hit.Title, "Web page on", name)
			pg, ok := r.kit.acquire(ctx, sc, hit.Link, title, domain.SourceWeb, webMinContent, map[string]any{
				"topic":    topic,
				"subtopic": name,
				"query":    query,
				"snippet":  hit.Snippet,
			})
			if !ok {
				continue
			}
			if !pg.Cached {
				sc.Progress.IncrementAnalyzing(1)
				sc.Logger.InfoContext(ctx, fmt.Sprintf("Analyzing content: #%d - %s", sc.Progress.Snapshot().AnalyzingCount, title), "high_level", true)
			}
			summary := r.kit.summarize(ctx, sc, pg, "Web", name)

			ref := citation.NewReference(title, hit.Link, domain.SourceWeb)
			ref.Relevance = 0.7
			citation.CalculateScores(&ref, sc.Now())
			sc.Citations.Add(ref)

			out = append(out, domain.Material{
				Title:      title,
				URL:        hit.Link,
				Source:     title + " - " + hit.Link,
				Content:    pg.Content,
				Summary:    summary,
				SourceType: domain.SourceWeb,
				ArticleID:  pg.ID,
				Relevance:  0.7,
			})
		}
	}
	return out
}

// rankResults orders hits by the URL quality heuristics.
func rankResults(results []domain.SearchResult) []domain.SearchResult {
	byURL := make(map[string]domain.SearchResult, len(results))
	urls := make([]string, 0, len(results))
	for _, r := range results {
		if _, dup := byURL[r.Link]; dup {
			continue
		}
		byURL[r.Link] = r
		urls = append(urls, r.Link)
	}
	out := make([]domain.SearchResult, 0, len(urls))
	for _, u := range optimizer.PrioritizeURLs(urls) {
		out = append(out, byURL[u])
	}
	return out
}

// EnhanceQuery adds subtopic or topic context to a search query.
func EnhanceQuery(query, subtopic, topic string) string {
	q := strings.ToLower(query)
	t := strings.ToLower(topic)
	s := strings.ToLower(subtopic)
	words := len(strings.Fields(query))

	switch {
	case strings.Contains(q, t) && words >= 4:
		return query
	case words < 3:
		return fmt.Sprintf("%s %s in context of %s", query, subtopic, topic)
	case strings.Contains(q, s) && !strings.Contains(q, t):
		return query + " " + topic
	case strings.Contains(q, t) && !strings.Contains(q, s) &&
		!strings.Contains(q, "overview") && !strings.Contains(q, "introduction"):
		return subtopic + ": " + query
	default:
		return query
	}
}

// writeSection turns the numbered material summaries into section prose.
func (r *SubtopicResearcher) writeSection(ctx context.Context, sc *session.Context, topic, name, material string) (string, error) {
	prompt := fmt.Sprintf(`You are writing the section about "%s" of a research paper on "%s".
Use the following research material to write a comprehensive, academically rigorous section (800-1200 words):
%s

Cite sources as [1], [2], etc. where each number corresponds to the sources above.
When a source lists a reference marker, cite it with that marker instead.
Use varied sentence structure, natural transitions and critical analysis.`, name, topic, material)

	sc.Logger.InfoContext(ctx, "Generating content for section: "+name, "high_level", true)
	content, err := r.kit.ask(ctx, sc, prompt)
	if err != nil {
		return "", err
	}
	if content == "" {
		return "", fmt.Errorf("section %q: empty answer", name)
	}
	sc.Logger.InfoContext(ctx, fmt.Sprintf("Found %d citations in the generated content", len(citation.ExtractCitations(content))))
	return content, nil
}
