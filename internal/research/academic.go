package research

import (
	"context"
	"fmt"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/optimizer"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/session"
)

var academicDorks = []string{
	`site:*.edu filetype:pdf "{topic}"`,
	`site:*.gov filetype:pdf "{topic}"`,
	`site:*.ac filetype:pdf "{topic}"`,
	`site:researchgate.net filetype:pdf "{topic}"`,
	`site:springer.com filetype:pdf "{topic}"`,
	`site:arxiv.org filetype:pdf "{topic}"`,
	`site:sciencedirect.com "{topic}"`,
	`site:jstor.org "{topic}"`,
	`site:ieeexplore.ieee.org "{topic}"`,
	`site:mdpi.com "{topic}"`,
	`site:ncbi.nlm.nih.gov "{topic}"`,
	`site:papers.ssrn.com "{topic}"`,
}

const (
	academicBatch      = 3
	academicEnough     = 4
	academicKeep       = 5
	academicMinContent = 500
)

// AcademicUnit collects academic PDFs through site/filetype dorks.
type AcademicUnit struct {
	kit    *Toolkit
	topics *TopicAnalyzer
}

var _ Unit = (*AcademicUnit)(nil)

// NewAcademicUnit wires the unit to kit; keywords come from topics.
func NewAcademicUnit(kit *Toolkit, topics *TopicAnalyzer) *AcademicUnit {
	return &AcademicUnit{kit: kit, topics: topics}
}

func (u *AcademicUnit) Name() string { return UnitAcademic }

func (u *AcademicUnit) Research(ctx context.Context, sc *session.Context, topic string) domain.Result[Findings] {
	log := sc.Logger.With("component", "research.academic")
	log.InfoContext(ctx, "Researching academic papers using Google Dorks for: "+topic, "high_level", true)

	keywords := u.topics.Keywords(ctx, sc, topic)
	log.InfoContext(ctx, fmt.Sprintf("Using optimized academic search keywords: %v", keywords[:min(len(keywords), 3)]), "high_level", true)

	selected := academicDorks[:4]
	queries := dorkQueries(selected[:2], keywords[:min(len(keywords), 2)])

	h := newHarvest()
	spec := dorkSpec{
		topic:       topic,
		titlePrefix: "PDF on",
		summaryKind: "PDF",
		sourceType:  domain.SourcePDF,
		minLen:      academicMinContent,
		relevance:   0.9,
		accept:      isHTTP,
		shape:       func(s string) string { return optimizer.Truncate(s, materialLimit) },
	}
	inBatches(ctx, queries, academicBatch, func(ctx context.Context, q string) {
		u.kit.runDork(ctx, sc, q, spec, h)
	}, func() bool {
		if n := h.len(); n >= academicEnough {
			log.InfoContext(ctx, fmt.Sprintf("Collected %d academic PDFs, stopping search for efficiency", n), "high_level", true)
			return true
		}
		return false
	})

	materials := h.take(academicKeep)
	log.InfoContext(ctx, fmt.Sprintf("Successfully collected %d academic PDFs", len(materials)), "high_level", true)
	return h.result(materials)
}

// materialFindings exposes accepted materials as summaries for the insight merge.
func materialFindings(materials []domain.Material) Findings {
	f := Findings{Materials: materials}
	for _, m := range materials {
		f.Summaries = append(f.Summaries, domain.PaperSummary{Title: m.Title, Summary: m.Summary})
		if m.ArticleID != "" {
			f.ArticleIDs = append(f.ArticleIDs, m.ArticleID)
		}
	}
	return f
}
