package optimizer

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
)

var testNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

const sample = "Quantum computers use qubits, which can represent both zero and one at the same time."

func TestIsRedundant(t *testing.T) {
	t.Parallel()

	o := New()
	assert.False(t, o.IsRedundant(sample))
	assert.True(t, o.IsRedundant(sample))
	assert.True(t, o.IsRedundant(strings.ToUpper(sample)))
	assert.True(t, o.IsRedundant("  Quantum   computers use qubits which can represent both zero and one at the same time!!"))
	assert.False(t, o.IsRedundant(sample+" Entanglement links them."))
}

func TestIsRedundantIgnoresPunctuationSpacing(t *testing.T) {
	t.Parallel()

	o := New()
	assert.False(t, o.IsRedundant("Quantum computing, as a field, studies machines that exploit superposition."))
	assert.True(t, o.IsRedundant("Quantum computing , as a field , studies machines that exploit superposition ."))
}

func TestIsRedundantNonLatinText(t *testing.T) {
	t.Parallel()

	first := "Квантовые компьютеры используют кубиты, которые могут находиться в суперпозиции."
	second := "Солнечная энергетика быстро растёт благодаря снижению стоимости панелей и хранения."

	assert.NotEmpty(t, normalize(first))
	assert.NotEqual(t, normalize(first), normalize(second))

	o := New()
	assert.False(t, o.IsRedundant(first))
	assert.False(t, o.IsRedundant(second))
	assert.False(t, o.IsRedundant("量子计算机利用量子比特的叠加态和纠缠来执行某些传统计算机难以完成的复杂计算任务，并且有望改变密码学与药物研发领域。"))
	assert.True(t, o.IsRedundant(first))
}

func TestIsRedundantShortContent(t *testing.T) {
	t.Parallel()

	o := New()
	assert.True(t, o.IsRedundant("too short"))
	assert.True(t, o.IsRedundant(""))
}

func TestResetClearsSeenSet(t *testing.T) {
	t.Parallel()

	o := New()
	assert.False(t, o.IsRedundant(sample))
	o.Reset()
	assert.False(t, o.IsRedundant(sample))
}

func TestFilterBoilerplate(t *testing.T) {
	t.Parallel()

	in := "Home Menu The results were clear. We use cookies, see our privacy policy. Read https://example.org/x now."
	got := FilterBoilerplate(in)

	assert.NotContains(t, got, "Home")
	assert.NotContains(t, got, "Menu")
	assert.NotContains(t, got, "cookies")
	assert.NotContains(t, got, "https://")
	assert.Contains(t, got, "The results were clear.")
	assert.Empty(t, FilterBoilerplate(""))
}

func TestLimitToEssentials(t *testing.T) {
	t.Parallel()

	paragraphs := []string{
		"first paragraph",
		"second paragraph",
		strings.Repeat("filler ", 10),
		"This study found 40 percent of the data supports the evidence according to research. " + strings.Repeat("x", 40),
		strings.Repeat("noise ", 200),
		"second to last",
		"last paragraph",
	}
	content := strings.Join(paragraphs, "\n\n")

	got := LimitToEssentials(content, 600)

	assert.LessOrEqual(t, len(got), 600)
	assert.True(t, strings.HasPrefix(got, "first paragraph\n\nsecond paragraph"))
	assert.True(t, strings.HasSuffix(got, "second to last\n\nlast paragraph"))
	assert.Contains(t, got, "This study found")
	assert.NotContains(t, got, "noise noise")
}

func TestLimitToEssentialsShortContentUntouched(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", LimitToEssentials("short", 100))
}

func TestLimitToEssentialsHardTruncates(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("a", 300) + "\n\n" + strings.Repeat("b", 300)
	assert.Len(t, LimitToEssentials(content, 100), 100)
}

func TestPrioritizeURLs(t *testing.T) {
	t.Parallel()

	got := PrioritizeURLs([]string{
		"https://example.com/search?q=x",
		"https://www.statista.com/statistics/1",
		"https://mit.edu/research.pdf",
		"https://example.com/blog",
	})

	assert.Equal(t, []string{
		"https://mit.edu/research.pdf",
		"https://www.statista.com/statistics/1",
		"https://example.com/blog",
		"https://example.com/search?q=x",
	}, got)
}

func TestEstimateQuality(t *testing.T) {
	t.Parallel()

	assert.Zero(t, EstimateQuality(""))

	rich := strings.Repeat("A recent study found 30 percent of survey data in this research analysis. ", 10)
	poor := strings.Repeat("z", 100)
	assert.Greater(t, EstimateQuality(rich), EstimateQuality(poor))
	assert.LessOrEqual(t, EstimateQuality(rich), 1.0)
}

func sufficientSession(academic, stats, sections, sectionLen int) domain.ResearchSession {
	s := domain.NewResearchSession("topic", testNow)
	for i := range academic {
		switch i % 3 {
		case 0:
			s.AcademicSources.ArxivPapers = append(s.AcademicSources.ArxivPapers, domain.Paper{Title: fmt.Sprint(i)})
		case 1:
			s.AcademicSources.DOIPapers = append(s.AcademicSources.DOIPapers, domain.Paper{Title: fmt.Sprint(i)})
		default:
			s.AcademicSources.AcademicPDFs = append(s.AcademicSources.AcademicPDFs, domain.Material{Title: fmt.Sprint(i)})
		}
	}
	for i := range stats {
		s.AcademicSources.StatisticsSources = append(s.AcademicSources.StatisticsSources, domain.Material{Title: fmt.Sprint(i)})
	}
	for i := range sections {
		s.PutSection(domain.Section{Subtopic: fmt.Sprintf("s%d", i), Content: strings.Repeat("x", sectionLen)})
	}
	return s
}

func TestHasSufficientResearchBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		academic   int
		stats      int
		sections   int
		sectionLen int
		want       bool
	}{
		{name: "all gates hold", academic: 3, stats: 2, sections: 3, sectionLen: 500, want: true},
		{name: "two academic sources", academic: 2, stats: 2, sections: 3, sectionLen: 500, want: false},
		{name: "one statistics source", academic: 3, stats: 1, sections: 3, sectionLen: 500, want: false},
		{name: "two sections", academic: 3, stats: 2, sections: 2, sectionLen: 500, want: false},
		{name: "short sections", academic: 3, stats: 2, sections: 3, sectionLen: 499, want: false},
		{name: "plenty", academic: 7, stats: 4, sections: 5, sectionLen: 900, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sufficientSession(tt.academic, tt.stats, tt.sections, tt.sectionLen)
			assert.Equal(t, tt.want, HasSufficientResearch(s))
		})
	}
}
