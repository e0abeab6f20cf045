// Package research holds the source research units that turn a topic into
// summarised, cited material.
package research

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/articlestore"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/optimizer"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ports"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/session"
)

const (
	summaryInputLimit = 3000
	failedSummary     = "Content processing failed. Please see original source."
)

// ErrNoQuerier is returned by NewToolkit when no text generator is wired.
var ErrNoQuerier = errors.New("research toolkit needs a querier")

// Toolkit bundles the collaborators every unit draws on.
type Toolkit struct {
	Querier      ports.Querier
	Searcher     ports.Searcher
	Papers       ports.PaperSearcher
	DOI          ports.DOISearcher
	Encyclopedia ports.Encyclopedia
	News         ports.NewsSearcher
}

// NewToolkit fills optional collaborators with no-op defaults.
func NewToolkit(k Toolkit) (*Toolkit, error) {
	if k.Querier == nil {
		return nil, ErrNoQuerier
	}
	if k.Searcher == nil {
		k.Searcher = noSearch{}
	}
	if k.Papers == nil {
		k.Papers = ports.NopPaperSearcher{}
	}
	if k.DOI == nil {
		k.DOI = ports.NopDOISearcher{}
	}
	if k.Encyclopedia == nil {
		k.Encyclopedia = ports.NopEncyclopedia{}
	}
	if k.News == nil {
		k.News = ports.NopNewsSearcher{}
	}
	return &k, nil
}

type noSearch struct{}

func (noSearch) Search(context.Context, string) ([]domain.SearchResult, error) { return nil, nil }

// GatedQuerier caps the number of in-flight text-generation calls across
// every session of the process.
type GatedQuerier struct {
	inner ports.Querier
	sem   *semaphore.Weighted
}

var _ ports.Querier = (*GatedQuerier)(nil)

// NewGatedQuerier allows at most limit concurrent calls to inner.
func NewGatedQuerier(inner ports.Querier, limit int64) *GatedQuerier {
	if limit <= 0 {
		limit = 1
	}
	return &GatedQuerier{inner: inner, sem: semaphore.NewWeighted(limit)}
}

func (g *GatedQuerier) Query(ctx context.Context, prompt string) (string, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire llm slot: %w", err)
	}
	defer g.sem.Release(1)
	return g.inner.Query(ctx, prompt)
}

// ask runs prompt and streams the answer into the session buffer.
func (k *Toolkit) ask(ctx context.Context, sc *session.Context, prompt string) (string, error) {
	out, err := k.Querier.Query(ctx, prompt)
	if err != nil {
		return "", err
	}
	sc.Events.AddChunk(out)
	return strings.TrimSpace(out), nil
}

type page struct {
	ID      string
	Content string
	Summary string
	Cached  bool
}

// acquire returns the content of rawURL from the article cache, or fetches,
// filters and stores it. Fresh content shorter than minLen or already seen
// in this session is rejected.
func (k *Toolkit) acquire(ctx context.Context, sc *session.Context, rawURL, title, sourceType string, minLen int, metadata map[string]any) (page, bool) {
	if sc.Articles != nil {
		if rec, ok := sc.Articles.GetByURL(rawURL); ok {
			if content, err := sc.Articles.GetContent(rec.ID); err == nil && len(content) >= minLen {
				return page{ID: rec.ID, Content: content, Summary: rec.Summary(), Cached: true}, true
			}
		}
	}

	content := optimizer.FilterBoilerplate(sc.URLs.Fetch(ctx, rawURL))
	if len(content) < minLen {
		return page{}, false
	}
	if sc.Optimizer.IsRedundant(content) {
		sc.Logger.DebugContext(ctx, "skipping redundant content", "url", rawURL)
		return page{}, false
	}

	meta := maps.Clone(metadata)
	if meta == nil {
		meta = map[string]any{}
	}
	meta["quality"] = optimizer.EstimateQuality(content)

	id := articlestore.ID(rawURL)
	if sc.Articles != nil {
		stored, err := sc.Articles.Store(rawURL, title, content, sourceType, meta)
		if err != nil {
			sc.Logger.WarnContext(ctx, "store article failed", "url", rawURL, "error", err)
		} else {
			id = stored
		}
	}
	return page{ID: id, Content: content}, true
}

// summarize returns the cached summary of p or generates and caches one.
func (k *Toolkit) summarize(ctx context.Context, sc *session.Context, p page, kind, topic string) string {
	if p.Summary != "" {
		return p.Summary
	}

	prompt := fmt.Sprintf(`Summarize the following %s content about "%s".
Extract key information, statistics, methodologies and findings useful for an academic paper.

Content:
%s

Write a concise summary of 200-300 words.`, kind, topic, clip(p.Content, summaryInputLimit))

	summary, err := k.ask(ctx, sc, prompt)
	if err != nil || summary == "" {
		if err != nil {
			sc.Logger.WarnContext(ctx, "summarize failed", "kind", kind, "error", err)
		}
		return failedSummary
	}
	if sc.Articles != nil && p.ID != "" {
		if err := sc.Articles.AttachSummary(p.ID, summary); err != nil {
			sc.Logger.WarnContext(ctx, "attach summary failed", "id", p.ID, "error", err)
		}
	}
	return summary
}

// clip truncates s to limit bytes and marks the cut.
func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return optimizer.Truncate(s, limit) + "..."
}

// inBatches runs fn over items size at a time. Every task of a batch is
// awaited before done is consulted; a true result stops further batches.
func inBatches[T any](ctx context.Context, items []T, size int, fn func(context.Context, T), done func() bool) {
	if size <= 0 {
		size = 1
	}
	for start := 0; start < len(items); start += size {
		if ctx.Err() != nil || (done != nil && done()) {
			return
		}
		g, gctx := errgroup.WithContext(ctx)
		for _, item := range items[start:min(start+size, len(items))] {
			g.Go(func() error {
				fn(gctx, item)
				return nil
			})
		}
		_ = g.Wait()
	}
}

// titleOr returns title, or a descriptive placeholder when it is blank.
func titleOr(title, prefix, topic string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return prefix + " " + topic
}

func isHTTP(rawURL string) bool {
	return strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://")
}
