package citation

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
)

const unnumberedSortKey = 999

var citationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\[(\d+)\]`),
	regexp.MustCompile(`\((\d+)\)`),
	regexp.MustCompile(`(\[\w+\d*\])`),
}

// Registry is the deduplicated, numbered set of references of one session.
// Numbers are handed out in arrival order under the mutex, so concurrent
// units never share or skip a number.
type Registry struct {
	style Style

	mu    sync.RWMutex
	byURL map[string]*domain.SourceReference
	byID  map[string]string
	next  int
}

// NewRegistry builds an empty registry rendering in style.
func NewRegistry(style Style) *Registry {
	return &Registry{
		style: style,
		byURL: map[string]*domain.SourceReference{},
		byID:  map[string]string{},
		next:  1,
	}
}

// Style returns the rendering style.
func (r *Registry) Style() Style {
	return r.style
}

// Add registers ref keyed by URL and returns the id of the stored entry.
// The first add for a URL wins; later adds leave numbering untouched.
func (r *Registry) Add(ref domain.SourceReference) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byURL[ref.URL]; ok {
		return existing.ID
	}

	ref.Authors = slices.Clone(ref.Authors)
	ref.CitationNumber = r.next
	r.next++
	r.byURL[ref.URL] = &ref
	r.byID[ref.ID] = ref.URL
	return ref.ID
}

// Len returns the number of distinct references.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byURL)
}

// Get returns the reference registered under id.
func (r *Registry) Get(id string) (domain.SourceReference, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	url, ok := r.byID[id]
	if !ok {
		return domain.SourceReference{}, false
	}
	ref, ok := r.byURL[url]
	if !ok {
		return domain.SourceReference{}, false
	}
	return *ref, true
}

// GetByURL returns the reference registered for url.
func (r *Registry) GetByURL(url string) (domain.SourceReference, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, ok := r.byURL[url]
	if !ok {
		return domain.SourceReference{}, false
	}
	return *ref, true
}

// ErrorMarker is returned by GenerateCitation for unknown or unnumbered ids.
const ErrorMarker = "(citation error)"

// GenerateCitation returns the inline marker for id.
func (r *Registry) GenerateCitation(id string) string {
	ref, ok := r.Get(id)
	if !ok || ref.CitationNumber == 0 {
		return ErrorMarker
	}
	if r.style == StyleIEEE {
		return fmt.Sprintf("[%d]", ref.CitationNumber)
	}
	return fmt.Sprintf("(%d)", ref.CitationNumber)
}

// References returns every reference ordered by citation number.
func (r *Registry) References() []domain.SourceReference {
	r.mu.RLock()
	out := make([]domain.SourceReference, 0, len(r.byURL))
	for _, ref := range r.byURL {
		out = append(out, *ref)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return sortKey(out[i]) < sortKey(out[j])
	})
	return out
}

func sortKey(ref domain.SourceReference) int {
	if ref.CitationNumber == 0 {
		return unnumberedSortKey
	}
	return ref.CitationNumber
}

// GenerateReferencesSection renders the numbered reference list.
func (r *Registry) GenerateReferencesSection() string {
	refs := r.References()
	if len(refs) == 0 {
		return "No references found."
	}

	var b strings.Builder
	for _, ref := range refs {
		if ref.CitationNumber > 0 {
			fmt.Fprintf(&b, "[%d] ", ref.CitationNumber)
		}
		b.WriteString(referenceEntry(ref, r.style))
		b.WriteString("\n\n")
	}
	return b.String()
}

// referenceEntry formats ref for the reference list. The list prints the
// number itself, so the entry is always the full unnumbered citation; an
// IEEE entry would otherwise repeat the bare "[n] " marker.
func referenceEntry(ref domain.SourceReference, style Style) string {
	ref.CitationNumber = 0
	return Format(ref, style)
}

// ExtractCitations returns every citation marker found in text.
func ExtractCitations(text string) []string {
	var found []string
	for _, re := range citationPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			found = append(found, m[1])
		}
	}
	return found
}
