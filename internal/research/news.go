package research

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/citation"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/session"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/textparse"
)

const (
	defaultRegion     = "US"
	newsQueryFanout   = 2
	maxNewsArticles   = 8
	headlineContext   = 3
	newsPerSubtopic   = 3
	newsMinContent    = 200
	newsRelevance     = 0.85
	noHeadlinesNotice = "(No specific news articles found)"
)

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{4}\b`),
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
	regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december)\b`),
	regexp.MustCompile(`\b(jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec)\b`),
}

// regionNames maps country names and short forms to region codes. Longer
// names come first so "south korea" wins over "korea".
var regionNames = []struct{ name, code string }{
	{"united states", "US"}, {"usa", "US"}, {"us", "US"}, {"america", "US"},
	{"united kingdom", "GB"}, {"uk", "GB"}, {"england", "GB"}, {"britain", "GB"},
	{"australia", "AU"}, {"canada", "CA"}, {"india", "IN"}, {"france", "FR"},
	{"germany", "DE"}, {"italy", "IT"}, {"spain", "ES"}, {"japan", "JP"},
	{"china", "CN"}, {"russia", "RU"}, {"brazil", "BR"}, {"mexico", "MX"},
	{"south africa", "ZA"}, {"nigeria", "NG"}, {"egypt", "EG"},
	{"saudi arabia", "SA"}, {"united arab emirates", "AE"}, {"uae", "AE"},
	{"pakistan", "PK"}, {"bangladesh", "BD"}, {"indonesia", "ID"},
	{"thailand", "TH"}, {"vietnam", "VN"}, {"philippines", "PH"},
	{"south korea", "KR"}, {"korea", "KR"}, {"turkey", "TR"},
	{"sweden", "SE"}, {"norway", "NO"}, {"denmark", "DK"},
	{"finland", "FI"}, {"netherlands", "NL"}, {"belgium", "BE"},
	{"switzerland", "CH"}, {"austria", "AT"}, {"portugal", "PT"},
	{"greece", "GR"}, {"poland", "PL"}, {"ireland", "IE"},
	{"new zealand", "NZ"}, {"argentina", "AR"}, {"chile", "CL"},
	{"colombia", "CO"}, {"peru", "PE"}, {"venezuela", "VE"},
	{"singapore", "SG"}, {"malaysia", "MY"}, {"israel", "IL"},
}

var nonLetters = regexp.MustCompile(`[^\p{L}]+`)

// MentionsDate reports whether topic carries a year, a numeric date or a
// month name.
func MentionsDate(topic string) bool {
	lower := strings.ToLower(topic)
	for _, re := range datePatterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// DetectRegion returns the region code of the first country named in text.
// Names match whole words only.
func DetectRegion(text string) (string, bool) {
	padded := " " + strings.TrimSpace(nonLetters.ReplaceAllString(strings.ToLower(text), " ")) + " "
	for _, r := range regionNames {
		if strings.Contains(padded, " "+r.name+" ") {
			return r.code, true
		}
	}
	return "", false
}

// regionFor prefers a specific region named by the model, then one named in
// the topic.
func regionFor(topic string, regions []string) string {
	for _, r := range regions {
		if code, ok := DetectRegion(r); ok && code != defaultRegion {
			return code
		}
	}
	if code, ok := DetectRegion(topic); ok {
		return code
	}
	return defaultRegion
}

func fallbackNewsQueries(topic string) []string {
	return []string{
		topic + " latest news",
		topic + " recent developments",
		topic + " analysis",
		topic + " impact",
		topic + " background",
	}
}

// newsQueries asks for search queries suited to a news index.
func (a *TopicAnalyzer) newsQueries(ctx context.Context, sc *session.Context, topic string) []string {
	prompt := fmt.Sprintf(`I need to research news articles about: "%s"

Generate 5-8 specific search queries that would provide comprehensive coverage from news sources.
Cover different angles, include timeline context and highlight any country or region involved.
Return only a JSON array of strings.`, topic)

	resp, err := a.kit.ask(ctx, sc, prompt)
	var queries []string
	if err == nil {
		err = textparse.Decode(resp, &queries)
	}
	if err != nil || len(queries) == 0 {
		sc.Logger.InfoContext(ctx, fmt.Sprintf("Error generating news queries: %v", err), "high_level", true)
		return fallbackNewsQueries(topic)
	}
	sc.Logger.InfoContext(ctx, fmt.Sprintf("Generated %d optimized news search queries", len(queries)), "high_level", true)
	return queries
}

// collectNews runs the first queries against the news index and keeps up to
// maxNewsArticles distinct links.
func (a *TopicAnalyzer) collectNews(ctx context.Context, sc *session.Context, queries []string, region string) []domain.NewsArticle {
	seen := map[string]bool{}
	var out []domain.NewsArticle
	for _, q := range queries[:min(len(queries), newsQueryFanout)] {
		if ctx.Err() != nil {
			break
		}
		found, err := a.kit.News.SearchNews(ctx, q, region)
		if err != nil {
			sc.Logger.InfoContext(ctx, fmt.Sprintf("Error fetching news for query '%s': %v", q, err), "high_level", true)
			continue
		}
		for _, n := range found {
			if n.Link == "" || seen[n.Link] {
				continue
			}
			seen[n.Link] = true
			out = append(out, n)
		}
	}
	return out[:min(len(out), maxNewsArticles)]
}

// headlines lists the first news titles as prompt context.
func headlines(news []domain.NewsArticle) string {
	if len(news) == 0 {
		return noHeadlinesNotice + "\n"
	}
	var b strings.Builder
	for _, n := range news[:min(len(news), headlineContext)] {
		title := n.Title
		if title == "" {
			title = "Untitled article"
		}
		fmt.Fprintf(&b, "- %s\n", title)
	}
	return b.String()
}

// newsMaterials turns the session's headlines that mention a word of the
// subtopic into cited news materials.
func (r *SubtopicResearcher) newsMaterials(ctx context.Context, sc *session.Context, name string) []domain.Material {
	analysis := sc.Snapshot().Analysis
	if !analysis.IsEvent || len(analysis.NewsArticles) == 0 {
		return nil
	}
	sc.Logger.InfoContext(ctx, "Including news sources for event-based topic", "high_level", true)

	words := subtopicWords(name)
	var out []domain.Material
	for _, n := range analysis.NewsArticles {
		if len(out) == newsPerSubtopic || ctx.Err() != nil {
			break
		}
		if !isHTTP(n.Link) || !(mentionsAny(n.Title, words) || mentionsAny(n.Description, words)) {
			continue
		}
		title := titleOr(n.Title, "News on", name)
		pg, ok := r.kit.acquire(ctx, sc, n.Link, title, domain.SourceNews, newsMinContent, map[string]any{
			"subtopic":         name,
			"publication_date": n.Date,
			"source":           n.Media,
		})
		if !ok {
			continue
		}
		summary := r.kit.summarize(ctx, sc, pg, "News", name)
		sc.Logger.InfoContext(ctx, "News source added: "+n.Link)

		ref := citation.NewReference(title, n.Link, domain.SourceNews)
		ref.PublicationDate = n.Date
		if n.Media != "" {
			ref.Authors = []string{n.Media}
			ref.Publisher = n.Media
		}
		ref.Relevance = newsRelevance
		citation.CalculateScores(&ref, sc.Now())
		sc.Citations.Add(ref)

		out = append(out, domain.Material{
			Title:      title,
			URL:        n.Link,
			Source:     title + " - " + n.Link,
			Content:    pg.Content,
			Summary:    summary,
			SourceType: domain.SourceNews,
			ArticleID:  pg.ID,
			Relevance:  newsRelevance,
		})
	}
	return out
}
