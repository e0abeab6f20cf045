package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/citation"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/session"
)

const (
	arxivSpecificResults = 3
	arxivBroadResults    = 2
	arxivProcessed       = 3
	paperExcerptLimit    = 2000
)

// ArxivUnit researches preprints through the PaperSearcher.
type ArxivUnit struct {
	kit *Toolkit
}

var _ Unit = (*ArxivUnit)(nil)

// NewArxivUnit wires the unit to kit.
func NewArxivUnit(kit *Toolkit) *ArxivUnit {
	return &ArxivUnit{kit: kit}
}

func (u *ArxivUnit) Name() string { return UnitArxiv }

func (u *ArxivUnit) Research(ctx context.Context, sc *session.Context, topic string) domain.Result[Findings] {
	log := sc.Logger.With("component", "research.arxiv")
	log.InfoContext(ctx, "Researching arXiv papers on: "+topic, "high_level", true)

	papers, err := u.search(ctx, topic)
	if len(papers) == 0 {
		log.InfoContext(ctx, "No arXiv papers found after searches", "high_level", true)
		if err != nil {
			return domain.ProviderFailed(Findings{}, err)
		}
		return domain.NoData(Findings{})
	}
	log.InfoContext(ctx, fmt.Sprintf("Found %d arXiv papers", len(papers)), "high_level", true)

	var (
		mu        sync.Mutex
		summaries = make([]domain.PaperSummary, min(len(papers), arxivProcessed))
		ids       = make([]string, len(summaries))
	)
	inBatches(ctx, indexes(len(summaries)), len(summaries), func(ctx context.Context, i int) {
		summary, id, ok := u.process(ctx, sc, &papers[i], topic)
		if !ok {
			return
		}
		mu.Lock()
		summaries[i] = domain.PaperSummary{Title: papers[i].Title, Summary: summary}
		ids[i] = id
		mu.Unlock()
	}, nil)

	findings := Findings{Papers: papers, Citations: arxivCitations(papers)}
	for i := range summaries {
		if summaries[i].Summary == "" {
			continue
		}
		findings.Summaries = append(findings.Summaries, summaries[i])
		findings.ArticleIDs = append(findings.ArticleIDs, ids[i])
	}
	if len(findings.Summaries) == 0 {
		log.InfoContext(ctx, "No valid paper summaries generated after processing", "high_level", true)
		findings.Citations = nil
		return domain.NoData(findings)
	}

	findings.Review = literatureReview(ctx, u.kit, sc, topic, findings.Summaries)
	return domain.OK(findings)
}

// search runs the specific and broad queries and merges them by arXiv id.
// Papers without a PDF link are dropped.
func (u *ArxivUnit) search(ctx context.Context, topic string) ([]domain.Paper, error) {
	broad := topic
	if fields := strings.Fields(topic); len(fields) > 1 {
		broad = fields[0]
	}

	var (
		specific, wide []domain.Paper
		specErr, wErr  error
		wg             sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		specific, specErr = u.kit.Papers.SearchPapers(ctx, topic, arxivSpecificResults)
	}()
	go func() {
		defer wg.Done()
		wide, wErr = u.kit.Papers.SearchPapers(ctx, broad, arxivBroadResults)
	}()
	wg.Wait()

	seen := map[string]bool{}
	var out []domain.Paper
	for _, p := range append(specific, wide...) {
		if p.PDFURL == "" || seen[p.ArxivID] {
			continue
		}
		seen[p.ArxivID] = true
		p.Title = titleOr(p.Title, "arXiv Paper on", topic)
		if len(p.Authors) == 0 {
			p.Authors = []string{"Unknown Author"}
		}
		if p.Published == "" {
			p.Published = "n.d."
		}
		if p.ArxivID == "" {
			p.ArxivID = "unknown_id"
		}
		if p.URL == "" {
			p.URL = p.PDFURL
		}
		out = append(out, p)
	}
	return out, errors.Join(specErr, wErr)
}

func (u *ArxivUnit) process(ctx context.Context, sc *session.Context, p *domain.Paper, topic string) (string, string, bool) {
	sc.Logger.InfoContext(ctx, "Processing arXiv paper: "+p.Title, "high_level", true)

	pg, ok := u.kit.acquire(ctx, sc, p.PDFURL, p.Title, domain.SourceArxiv, 1, map[string]any{
		"authors":   p.Authors,
		"published": p.Published,
		"arxiv_id":  p.ArxivID,
		"topic":     topic,
	})
	if !ok {
		if p.Abstract == "" {
			return "", "", false
		}
		pg = page{Content: p.Abstract}
		if sc.Articles != nil {
			if id, err := sc.Articles.Store(p.PDFURL, p.Title, p.Abstract, domain.SourceArxiv, map[string]any{"arxiv_id": p.ArxivID}); err == nil {
				pg.ID = id
			}
		}
	}

	summary := pg.Summary
	if summary == "" {
		prompt := fmt.Sprintf(`Summarize this academic paper for a literature review on "%s":
Title: %s
Authors: %s
Published: %s

Paper excerpt:
%s...

In 150-200 words cover the research question, methodology, findings and relevance to %s.`,
			topic, p.Title, strings.Join(p.Authors, ", "), p.Published, clip(pg.Content, paperExcerptLimit), topic)
		var err error
		summary, err = u.kit.ask(ctx, sc, prompt)
		if err != nil || summary == "" {
			return "", "", false
		}
		if sc.Articles != nil && pg.ID != "" {
			_ = sc.Articles.AttachSummary(pg.ID, summary)
		}
	}

	p.Summary = summary
	p.ArticleID = pg.ID

	ref := citation.NewReference(p.Title, p.URL, domain.SourceArxiv)
	ref.Authors = p.Authors
	if p.Published != "n.d." {
		ref.PublicationDate = p.Published
	}
	ref.Relevance = 0.9
	citation.CalculateScores(&ref, sc.Now())
	sc.Citations.Add(ref)

	return summary, pg.ID, true
}

func arxivCitations(papers []domain.Paper) []string {
	out := make([]string, 0, len(papers))
	for _, p := range papers {
		out = append(out, fmt.Sprintf("%s (%s). %s. arXiv preprint arXiv:%s.",
			strings.Join(p.Authors, ", "), p.Published, p.Title, p.ArxivID))
	}
	return out
}

// literatureReview synthesises the summaries, falling back to a one-liner.
func literatureReview(ctx context.Context, kit *Toolkit, sc *session.Context, topic string, summaries []domain.PaperSummary) string {
	var b strings.Builder
	for i, s := range summaries {
		fmt.Fprintf(&b, "Paper %d: %s - %s...\n", i+1, s.Title, clip(s.Summary, 300))
	}
	prompt := fmt.Sprintf(`Synthesize these paper summaries into a cohesive 300-word literature review on "%s":

%s
Focus on common themes, contradictions and research gaps. Use academic citation style [Author, YYYY].`, topic, b.String())

	review, err := kit.ask(ctx, sc, prompt)
	if err != nil || review == "" {
		return fmt.Sprintf("A review of %d academic papers related to %s.", len(summaries), topic)
	}
	return review
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
