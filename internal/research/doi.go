package research

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/citation"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/session"
)

const (
	doiSearchResults = 5
	doiProcessed     = 3
	materialLimit    = 5000
)

var unsafeQueryChars = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// DOIUnit researches published papers through the DOISearcher.
type DOIUnit struct {
	kit *Toolkit
}

var _ Unit = (*DOIUnit)(nil)

// NewDOIUnit wires the unit to kit.
func NewDOIUnit(kit *Toolkit) *DOIUnit {
	return &DOIUnit{kit: kit}
}

func (u *DOIUnit) Name() string { return UnitDOI }

func (u *DOIUnit) Research(ctx context.Context, sc *session.Context, topic string) domain.Result[Findings] {
	log := sc.Logger.With("component", "research.doi")
	log.InfoContext(ctx, "Researching papers with DOIs for: "+topic, "high_level", true)

	query := strings.TrimSpace(unsafeQueryChars.ReplaceAllString(topic, ""))
	results, err := u.kit.DOI.SearchDOI(ctx, query, doiSearchResults)
	if err != nil {
		log.WarnContext(ctx, "doi search failed", "error", err)
		return domain.ProviderFailed(Findings{}, err)
	}
	if len(results) == 0 {
		log.InfoContext(ctx, "No search results for DOI papers: "+topic)
		return domain.NoData(Findings{})
	}

	candidates := results[:min(len(results), doiProcessed)]
	processed := make([]*domain.Paper, len(candidates))
	var wg sync.WaitGroup
	for i := range candidates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p, ok := u.process(ctx, sc, candidates[i], topic); ok {
				processed[i] = &p
			}
		}()
	}
	wg.Wait()

	var findings Findings
	for _, p := range processed {
		if p == nil {
			continue
		}
		findings.Papers = append(findings.Papers, *p)
		findings.Summaries = append(findings.Summaries, domain.PaperSummary{Title: p.Title, Summary: p.Summary})
		findings.ArticleIDs = append(findings.ArticleIDs, p.ArticleID)
		findings.Citations = append(findings.Citations, doiCitation(*p))
	}
	log.InfoContext(ctx, fmt.Sprintf("Successfully processed %d DOI papers out of %d attempts", len(findings.Papers), len(candidates)), "high_level", true)

	if len(findings.Papers) == 0 {
		return domain.NoData(findings)
	}
	findings.Review = literatureReview(ctx, u.kit, sc, topic, findings.Summaries)
	return domain.OK(findings)
}

func (u *DOIUnit) process(ctx context.Context, sc *session.Context, p domain.Paper, topic string) (domain.Paper, bool) {
	p.Title = titleOr(p.Title, "Paper on", topic)
	if len(p.Authors) == 0 {
		p.Authors = []string{"Unknown Author"}
	}
	if !isHTTP(p.URL) {
		if p.DOI == "" {
			sc.Logger.DebugContext(ctx, "Invalid URL format and no DOI for paper: "+p.Title)
			return p, false
		}
		p.URL = "https://doi.org/" + p.DOI
	}

	pg, ok := u.kit.acquire(ctx, sc, p.URL, p.Title, domain.SourceDOIPaper, 1, map[string]any{
		"topic":     topic,
		"doi":       p.DOI,
		"authors":   p.Authors,
		"published": p.Published,
	})
	if !ok {
		if p.Abstract == "" {
			sc.Logger.InfoContext(ctx, "Failed to get content for: "+p.URL, "high_level", true)
			return p, false
		}
		pg = page{Content: p.Abstract}
	}

	p.Content = clip(pg.Content, materialLimit)
	p.Summary = u.kit.summarize(ctx, sc, pg, "DOI Paper", topic)
	p.ArticleID = pg.ID

	ref := citation.NewReference(p.Title, p.URL, domain.SourceJournal)
	ref.Authors = p.Authors
	ref.PublicationDate = p.Published
	ref.Journal = p.Journal
	ref.DOI = p.DOI
	ref.Relevance = 0.9
	citation.CalculateScores(&ref, sc.Now())
	sc.Citations.Add(ref)

	return p, true
}

func doiCitation(p domain.Paper) string {
	date := p.Published
	if date == "" {
		date = "n.d."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s). %s.", strings.Join(p.Authors, ", "), date, p.Title)
	if p.Journal != "" {
		b.WriteString(" " + p.Journal + ".")
	}
	if p.DOI != "" {
		b.WriteString(" DOI: " + p.DOI)
	}
	return b.String()
}
