package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/citation"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/research"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/session"
)

const minPapersPerIndex = 3

// enhanceCitations tops up thin paper lists, normalises DOI citations,
// resolves bare URLs through the registry and sorts scholarly entries first.
func (p *Pipeline) enhanceCitations(ctx context.Context, sc *session.Context, topic string) {
	log := sc.Logger.With("component", "usecase.references")
	log.InfoContext(ctx, "Enhancing academic citations", "high_level", true)

	snap := sc.Snapshot()
	sources, insights := snap.AcademicSources, snap.Insights

	if len(sources.DOIPapers) < minPapersPerIndex {
		if extra, ok := p.topUp(ctx, sc, research.UnitDOI, topic); ok {
			log.InfoContext(ctx, "Finding additional academic papers with DOIs", "high_level", true)
			var added int
			sources.DOIPapers, added = appendNewPapers(sources.DOIPapers, extra.Papers)
			insights.Citations = research.MergeCitations(insights.Citations, extra.Citations)
			log.InfoContext(ctx, fmt.Sprintf("Found %d additional DOI papers", added), "high_level", true)
		}
	}
	if len(sources.ArxivPapers) < minPapersPerIndex {
		if extra, ok := p.topUp(ctx, sc, research.UnitArxiv, topic); ok {
			log.InfoContext(ctx, "Finding additional arXiv papers", "high_level", true)
			var added int
			sources.ArxivPapers, added = appendNewPapers(sources.ArxivPapers, extra.Papers)
			insights.Citations = research.MergeCitations(insights.Citations, extra.Citations)
			log.InfoContext(ctx, fmt.Sprintf("Found %d additional arXiv papers", added), "high_level", true)
		}
	}

	style := sc.Citations.Style()
	for i, c := range insights.Citations {
		c = research.NormalizeDOI(c)
		if strings.HasPrefix(c, "http") {
			if ref, ok := sc.Citations.GetByURL(c); ok {
				c = citation.Format(ref, style)
			}
		}
		insights.Citations[i] = c
	}
	research.SortAcademicFirst(insights.Citations)
	log.InfoContext(ctx, fmt.Sprintf("Enhanced %d academic citations", len(insights.Citations)), "high_level", true)

	references := sc.Citations.GenerateReferencesSection()
	sc.Update(func(s *domain.ResearchSession) {
		s.AcademicSources = sources
		s.Insights = insights
		s.ReferencesSection = references
	})
}

func (p *Pipeline) topUp(ctx context.Context, sc *session.Context, name, topic string) (research.Findings, bool) {
	unit, err := p.units.Resolve(name)
	if err != nil {
		return research.Findings{}, false
	}
	res := research.Guard(ctx, sc, unit, topic)
	if res.Outcome != domain.OutcomeOK {
		return research.Findings{}, false
	}
	return res.Value, true
}

// appendNewPapers adds the papers of extra whose title is not present yet.
func appendNewPapers(existing, extra []domain.Paper) ([]domain.Paper, int) {
	titles := make(map[string]bool, len(existing))
	for _, p := range existing {
		titles[p.Title] = true
	}
	added := 0
	for _, p := range extra {
		if titles[p.Title] {
			continue
		}
		titles[p.Title] = true
		existing = append(existing, p)
		added++
	}
	return existing, added
}
