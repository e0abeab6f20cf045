package citation

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
)

func TestFormatAPAWebTwoAuthors(t *testing.T) {
	t.Parallel()

	ref := NewReference("T", "http://x", domain.SourceWeb)
	ref.Authors = []string{"A", "B"}
	ref.PublicationDate = "2020"

	assert.Equal(t, "A & B. (2020). T. Retrieved from http://x", Format(ref, StyleAPA))
	assert.Equal(t, Format(ref, StyleAPA), Format(ref, StyleChicago))
	assert.Equal(t, Format(ref, StyleAPA), Format(ref, StyleHarvard))
}

func TestFormatAuthorJoining(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		authors []string
		want    string
	}{
		{name: "none", authors: nil, want: "T. Retrieved from http://x"},
		{name: "one", authors: []string{"A"}, want: "A. T. Retrieved from http://x"},
		{name: "three", authors: []string{"A", "B", "C"}, want: "A et al. T. Retrieved from http://x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := NewReference("T", "http://x", domain.SourceWeb)
			ref.Authors = tt.authors
			assert.Equal(t, tt.want, Format(ref, StyleAPA))
		})
	}
}

func TestFormatPerSourceType(t *testing.T) {
	t.Parallel()

	journal := NewReference("Deep Nets", "https://doi.org/10.1/x", domain.SourceJournal)
	journal.Journal = "Nature"
	journal.DOI = "10.1/x"
	assert.Equal(t, "Deep Nets. Nature. https://doi.org/10.1/x", Format(journal, StyleAPA))
	assert.Equal(t, "\"Deep Nets.\" Nature", Format(journal, StyleMLA))

	arxiv := NewReference("Qubits", "http://arxiv.org/abs/2401.00001", domain.SourceArxiv)
	arxiv.Authors = []string{"Ada", "Bob"}
	arxiv.PublicationDate = "2024-01-02"
	assert.Equal(t, "Ada & Bob. (2024-01-02). Qubits. arXiv preprint arXiv:2401.00001", Format(arxiv, StyleAPA))
	assert.Equal(t, "Ada and Bob. \"Qubits.\" arXiv, 2024-01-02", Format(arxiv, StyleMLA))
	assert.Equal(t, "Ada, and Bob, \"Qubits,\" arXiv preprint arXiv:2401.00001", Format(arxiv, StyleIEEE))

	book := NewReference("Go", "http://b", domain.SourceBook)
	book.Publisher = "Addison"
	assert.Equal(t, "Go. Addison", Format(book, StyleAPA))

	arxiv.CitationNumber = 4
	assert.Equal(t, "[4] ", Format(arxiv, StyleIEEE))
}

func TestCalculateScores(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		date          string
		sourceType    string
		url           string
		journal       string
		wantRecency   float64
		wantAuthority float64
	}{
		{name: "fresh arxiv", date: "2025-01-15", sourceType: domain.SourceArxiv, url: "http://arxiv.org/abs/1", wantRecency: 0.9, wantAuthority: 0.8},
		{name: "slash layout", date: "2023/01/15", sourceType: domain.SourceWeb, url: "http://x", wantRecency: 0.7, wantAuthority: 0.5},
		{name: "long month", date: "March 3, 2021", sourceType: domain.SourceWikipedia, url: "wikipedia:x", wantRecency: 0.5, wantAuthority: 0.6},
		{name: "day month year", date: "3 March 2010", sourceType: domain.SourceWeb, url: "https://mit.edu/paper", wantRecency: 0.3, wantAuthority: 0.7},
		{name: "year only", date: "2024", sourceType: domain.SourceJournal, url: "http://j", journal: "Cell", wantRecency: 0.7, wantAuthority: 0.9},
		{name: "journal without name", date: "", sourceType: domain.SourceJournal, url: "http://j", wantRecency: 0.5, wantAuthority: 0.5},
		{name: "garbage date", date: "sometime", sourceType: domain.SourceWeb, url: "https://github.com/x", wantRecency: 0.5, wantAuthority: 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := NewReference("t", tt.url, tt.sourceType)
			ref.PublicationDate = tt.date
			ref.Journal = tt.journal
			ref.Relevance = 0.6
			CalculateScores(&ref, now)

			assert.InDelta(t, tt.wantRecency, ref.Recency, 1e-9)
			assert.InDelta(t, tt.wantAuthority, ref.Authority, 1e-9)
			assert.InDelta(t, (0.6+tt.wantRecency+tt.wantAuthority)/3, ref.Quality, 1e-9)
		})
	}
}

func TestRegistryAddIsIdempotentPerURL(t *testing.T) {
	t.Parallel()

	r := NewRegistry(StyleAPA)
	firstID := r.Add(NewReference("A", "http://a", domain.SourceWeb))
	r.Add(NewReference("B", "http://b", domain.SourceWeb))

	again := NewReference("A again", "http://a", domain.SourceWeb)
	gotID := r.Add(again)

	assert.Equal(t, firstID, gotID)
	assert.Equal(t, 2, r.Len())

	ref, ok := r.GetByURL("http://a")
	require.True(t, ok)
	assert.Equal(t, 1, ref.CitationNumber)
	assert.Equal(t, "A", ref.Title)

	_, ok = r.Get(again.ID)
	assert.False(t, ok)
}

func TestRegistryConcurrentAddsAssignUniqueNumbers(t *testing.T) {
	t.Parallel()

	r := NewRegistry(StyleAPA)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Add(NewReference("t", fmt.Sprintf("http://x/%d", i%25), domain.SourceWeb))
		}()
	}
	wg.Wait()

	refs := r.References()
	require.Len(t, refs, 25)
	for i, ref := range refs {
		assert.Equal(t, i+1, ref.CitationNumber)
	}
}

func TestGenerateCitation(t *testing.T) {
	t.Parallel()

	apa := NewRegistry(StyleAPA)
	id := apa.Add(NewReference("A", "http://a", domain.SourceWeb))
	assert.Equal(t, "(1)", apa.GenerateCitation(id))
	assert.Equal(t, "(citation error)", apa.GenerateCitation("missing"))

	ieee := NewRegistry(StyleIEEE)
	id = ieee.Add(NewReference("A", "http://a", domain.SourceWeb))
	assert.Equal(t, "[1]", ieee.GenerateCitation(id))
}

func TestGenerateReferencesSection(t *testing.T) {
	t.Parallel()

	r := NewRegistry(StyleAPA)
	assert.Equal(t, "No references found.", r.GenerateReferencesSection())

	r.Add(NewReference("First", "http://1", domain.SourceWeb))
	r.Add(NewReference("Second", "http://2", domain.SourceWeb))

	want := "[1] First. Retrieved from http://1\n\n[2] Second. Retrieved from http://2\n\n"
	assert.Equal(t, want, r.GenerateReferencesSection())

	ieee := NewRegistry(StyleIEEE)
	ieee.Add(NewReference("First", "http://1", domain.SourceWeb))
	assert.Equal(t, "[1] \"First,\" Retrieved from http://1\n\n", ieee.GenerateReferencesSection())
}

func TestIEEEReferenceListPrintsFullEntries(t *testing.T) {
	t.Parallel()

	r := NewRegistry(StyleIEEE)
	ref := NewReference("Surface Codes", "https://arxiv.org/abs/2401.01234", domain.SourceArxiv)
	ref.Authors = []string{"Ada Lovelace", "Alan Turing"}
	id := r.Add(ref)

	numbered, ok := r.Get(id)
	require.True(t, ok)
	require.Equal(t, 1, numbered.CitationNumber)
	assert.Equal(t, "[1] ", Format(numbered, StyleIEEE))

	want := "[1] Ada Lovelace, and Alan Turing, \"Surface Codes,\" arXiv preprint arXiv:2401.01234\n\n"
	assert.Equal(t, want, r.GenerateReferencesSection())
	assert.Equal(t, "[1]", r.GenerateCitation(id))
	assert.Equal(t, ErrorMarker, r.GenerateCitation("missing"))
}

func TestExtractCitations(t *testing.T) {
	t.Parallel()

	got := ExtractCitations("as shown [1] and (2), see [Smith2020].")
	assert.Equal(t, []string{"1", "2", "[1]", "[Smith2020]"}, got)
}

func TestParseStyle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StyleIEEE, ParseStyle(" IEEE "))
	assert.Equal(t, StyleAPA, ParseStyle("unknown"))
}
