package research

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
)

var reviewLabels = []struct {
	unit  string
	label string
}{
	{UnitArxiv, "ArXiv Literature:"},
	{UnitDOI, "DOI Literature:"},
	{UnitAcademic, "Academic Literature:"},
	{UnitStatistics, "Statistical Sources:"},
}

// CombineInsights merges the per-unit findings into the session's academic
// sources and insights. Missing units contribute nothing.
func CombineInsights(results map[string]Findings) (domain.AcademicSources, domain.Insights) {
	arxiv, doi := results[UnitArxiv], results[UnitDOI]
	academic, stats := results[UnitAcademic], results[UnitStatistics]

	sources := domain.AcademicSources{
		ArxivPapers:       nonNil(arxiv.Papers),
		DOIPapers:         nonNil(doi.Papers),
		AcademicPDFs:      nonNil(academic.Materials),
		StatisticsSources: nonNil(stats.Materials),
	}

	insights := domain.Insights{
		Citations:      []string{},
		PaperSummaries: []domain.PaperSummary{},
		ArticleIDs:     slices.Clone(nonNil(arxiv.ArticleIDs)),
	}
	for _, f := range []Findings{arxiv, doi, academic} {
		for _, s := range f.Summaries {
			if s.Title != "" {
				insights.PaperSummaries = append(insights.PaperSummaries, s)
			}
		}
		insights.Citations = append(insights.Citations, f.Citations...)
	}

	var reviews []string
	for _, rl := range reviewLabels {
		if review := results[rl.unit].Review; review != "" {
			reviews = append(reviews, rl.label+"\n"+review)
		}
	}
	insights.LiteratureReview = strings.Join(reviews, "\n\n")
	return sources, insights
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

var doiPattern = regexp.MustCompile(`(?i)DOI:?\s*(\d+\.\d+/[^,\s]+)`)

// NormalizeDOI appends a resolvable doi.org link to a citation that only
// names its DOI.
func NormalizeDOI(citation string) string {
	if strings.Contains(citation, "doi.org") {
		return citation
	}
	m := doiPattern.FindStringSubmatchIndex(citation)
	if m == nil {
		return citation
	}
	doi := strings.TrimSuffix(citation[m[2]:m[3]], ".")
	return citation[:m[0]] + fmt.Sprintf("DOI: %s. https://doi.org/%s", doi, doi) + citation[m[1]:]
}

var academicMarkers = []string{"doi:", "journal", "conference", "proceedings", "arxiv", "university", "dissertation"}

// IsAcademicCitation reports whether a citation string names a scholarly venue.
func IsAcademicCitation(citation string) bool {
	lower := strings.ToLower(citation)
	for _, m := range academicMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// SortAcademicFirst moves scholarly citations ahead of the rest, keeping
// relative order within each group.
func SortAcademicFirst(citations []string) {
	sort.SliceStable(citations, func(i, j int) bool {
		return IsAcademicCitation(citations[i]) && !IsAcademicCitation(citations[j])
	})
}

// MergeCitations appends the citations of extra that are not present yet.
func MergeCitations(existing, extra []string) []string {
	for _, c := range extra {
		if !slices.Contains(existing, c) {
			existing = append(existing, c)
		}
	}
	return existing
}
