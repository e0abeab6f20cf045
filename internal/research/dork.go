package research

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/citation"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/session"
)

const dorkResultsPerQuery = 2

// dorkSpec describes how hits of one dork family become materials.
type dorkSpec struct {
	topic       string
	titlePrefix string
	summaryKind string
	sourceType  string
	minLen      int
	relevance   float64
	accept      func(url string) bool
	shape       func(content string) string
	metadata    map[string]any
}

// harvest collects materials from concurrent dork runs. URLs are claimed
// before fetching so two tasks never process the same hit.
type harvest struct {
	mu       sync.Mutex
	claimed  map[string]bool
	items    []domain.Material
	searched int
	lastErr  error
}

func newHarvest() *harvest {
	return &harvest{claimed: map[string]bool{}}
}

func (h *harvest) claim(url string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.claimed[url] {
		return false
	}
	h.claimed[url] = true
	return true
}

func (h *harvest) add(m domain.Material) {
	h.mu.Lock()
	h.items = append(h.items, m)
	h.mu.Unlock()
}

func (h *harvest) searchDone(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.lastErr = err
		return
	}
	h.searched++
}

// failure is the last search error when no search succeeded at all.
func (h *harvest) failure() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.searched > 0 {
		return nil
	}
	return h.lastErr
}

// result turns the harvested materials into a unit result.
func (h *harvest) result(materials []domain.Material) domain.Result[Findings] {
	if len(materials) > 0 {
		return domain.OK(materialFindings(materials))
	}
	if err := h.failure(); err != nil {
		return domain.ProviderFailed(Findings{}, fmt.Errorf("every dork search failed: %w", err))
	}
	return domain.NoData(Findings{})
}

func (h *harvest) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

func (h *harvest) take(limit int) []domain.Material {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Material(nil), h.items[:min(len(h.items), limit)]...)
}

// search runs query through the session's query log before the searcher.
func (k *Toolkit) search(ctx context.Context, sc *session.Context, query string) ([]domain.SearchResult, error) {
	return k.Searcher.Search(ctx, sc.Queries.Prepare(ctx, sc.Logger, query))
}

// runDork searches query and turns its top hits into materials.
func (k *Toolkit) runDork(ctx context.Context, sc *session.Context, query string, spec dorkSpec, h *harvest) {
	sc.Logger.InfoContext(ctx, "Using Google Dork: "+query, "high_level", true)
	results, err := k.search(ctx, sc, query)
	h.searchDone(err)
	if err != nil {
		sc.Logger.WarnContext(ctx, "dork search failed", "query", query, "error", err)
		return
	}
	if len(results) == 0 {
		sc.Logger.InfoContext(ctx, "No search results for dork: "+query)
		return
	}
	sc.Logger.InfoContext(ctx, fmt.Sprintf("Found %d search results for dork: %s", len(results), query))

	for _, r := range results[:min(len(results), dorkResultsPerQuery)] {
		if ctx.Err() != nil {
			return
		}
		if r.Link == "" || (spec.accept != nil && !spec.accept(r.Link)) || !h.claim(r.Link) {
			continue
		}
		if m, ok := k.material(ctx, sc, r, query, spec); ok {
			h.add(m)
		}
	}
}

func (k *Toolkit) material(ctx context.Context, sc *session.Context, r domain.SearchResult, query string, spec dorkSpec) (domain.Material, bool) {
	title := titleOr(r.Title, spec.titlePrefix, spec.topic)
	meta := map[string]any{"topic": spec.topic, "query": query, "snippet": r.Snippet}
	for key, v := range spec.metadata {
		meta[key] = v
	}

	pg, ok := k.acquire(ctx, sc, r.Link, title, spec.sourceType, spec.minLen, meta)
	if !ok {
		return domain.Material{}, false
	}
	summary := k.summarize(ctx, sc, pg, spec.summaryKind, spec.topic)

	ref := citation.NewReference(title, r.Link, spec.sourceType)
	ref.Relevance = spec.relevance
	citation.CalculateScores(&ref, sc.Now())
	sc.Citations.Add(ref)

	content := pg.Content
	if spec.shape != nil {
		content = spec.shape(content)
	}
	return domain.Material{
		Title:      title,
		URL:        r.Link,
		Source:     title + " - " + r.Link,
		Content:    content,
		Summary:    summary,
		SourceType: spec.sourceType,
		ArticleID:  pg.ID,
		Relevance:  spec.relevance,
	}, true
}

// dorkQueries expands each template with every subject, subject-major.
func dorkQueries(templates, subjects []string) []string {
	out := make([]string, 0, len(templates)*len(subjects))
	for _, s := range subjects {
		for _, t := range templates {
			out = append(out, strings.ReplaceAll(t, "{topic}", s))
		}
	}
	return out
}
