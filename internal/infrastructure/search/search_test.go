package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ratelimit"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastLimiter() *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Config{
		Intervals: map[string]time.Duration{
			ratelimit.ServiceGoogleCSE:  time.Millisecond,
			ratelimit.ServiceDuckDuckGo: time.Millisecond,
			ratelimit.ServiceBrave:      time.Millisecond,
		},
		BackoffUnit: time.Millisecond,
	}, quietLogger())
}

const liteHTML = `<html><body><table>
<tr><td><a href="https://example.com/a">First result</a></td></tr>
<tr><td>first snippet</td></tr>
<tr><td><a href="/relative">skipped</a></td></tr>
<tr><td><a href="https://example.com/b">Second result</a></td></tr>
<tr><td>second snippet</td></tr>
</table></body></html>`

func TestDuckDuckGoParsesLiteResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "solar power", r.PostForm.Get("q"))
		_, _ = io.WriteString(w, liteHTML)
	}))
	defer srv.Close()

	ddg := NewDuckDuckGo(srv.URL, srv.Client(), fastLimiter(), quietLogger())
	results, err := ddg.Search(context.Background(), "solar power")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, domain.SearchResult{Title: "First result", Link: "https://example.com/a", Snippet: "first snippet"}, results[0])
	assert.Equal(t, "https://example.com/b", results[1].Link)
}

func TestGoogleCSEDecodesItems(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "key", q.Get("key"))
		assert.Equal(t, "cx", q.Get("cx"))
		assert.Equal(t, "10", q.Get("num"))
		_, _ = io.WriteString(w, `{"items":[{"title":"T","link":"https://x.org","snippet":"S"},{"title":"no link"}]}`)
	}))
	defer srv.Close()

	g := NewGoogleCSE(GoogleConfig{Endpoint: srv.URL, APIKey: "key", CSEID: "cx"}, srv.Client(), fastLimiter(), quietLogger())
	results, err := g.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []domain.SearchResult{{Title: "T", Link: "https://x.org", Snippet: "S"}}, results)
}

func TestGoogleCSERetriesThenGivesUp(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGoogleCSE(GoogleConfig{Endpoint: srv.URL, APIKey: "key", CSEID: "cx", MaxRetries: 2}, srv.Client(), fastLimiter(), quietLogger())
	_, err := g.Search(context.Background(), "q")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(2), calls.Load())
}

type stubProvider struct {
	name string
	err  error

	mu      sync.Mutex
	queries []string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Search(_ context.Context, q string) ([]domain.SearchResult, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return []domain.SearchResult{{Title: s.name, Link: "https://" + s.name + ".example"}}, nil
}

func (s *stubProvider) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func newClient(t *testing.T, primary, fallback *stubProvider) *Client {
	t.Helper()
	reg := NewRegistry()
	reg.Register(primary)
	reg.Register(fallback)
	c, err := NewClient(ClientDeps{Registry: reg, Primary: primary.name, Fallback: fallback.name, BypassThreshold: 3, Logger: quietLogger()})
	require.NoError(t, err)
	return c
}

func TestClientBypassesPrimaryAfterThreshold(t *testing.T) {
	t.Parallel()

	primary := &stubProvider{name: "google", err: ErrRateLimited}
	fallback := &stubProvider{name: "ddg"}
	c := newClient(t, primary, fallback)

	for i := 0; i < 5; i++ {
		results, err := c.Search(context.Background(), "query "+string(rune('a'+i)))
		require.NoError(t, err)
		assert.Equal(t, "ddg", results[0].Title)
	}

	assert.Len(t, primary.seen(), 3)
	assert.Len(t, fallback.seen(), 5)
	assert.Equal(t, 3, c.Fallbacks())
}

func TestClientPassesRepeatedQueriesThrough(t *testing.T) {
	t.Parallel()

	primary := &stubProvider{name: "google"}
	c := newClient(t, primary, &stubProvider{name: "ddg"})

	for i := 0; i < 3; i++ {
		_, err := c.Search(context.Background(), "graphene")
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"graphene", "graphene", "graphene"}, primary.seen())
}

func TestClientSkipsUnconfiguredPrimaryWithoutCounting(t *testing.T) {
	t.Parallel()

	primary := &stubProvider{name: "google", err: ErrNotConfigured}
	c := newClient(t, primary, &stubProvider{name: "ddg"})

	_, err := c.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Zero(t, c.Fallbacks())
}

func TestClientReportsFallbackErrors(t *testing.T) {
	t.Parallel()

	c := newClient(t, &stubProvider{name: "google", err: errors.New("down")}, &stubProvider{name: "ddg", err: errors.New("down too")})
	_, err := c.Search(context.Background(), "q")
	assert.Error(t, err)
}

func TestNewClientNeedsFallback(t *testing.T) {
	t.Parallel()

	_, err := NewClient(ClientDeps{Registry: NewRegistry(), Fallback: "missing"})
	assert.Error(t, err)
}

const braveHTML = `<html><body>
<div class="snippet">
  <a class="result-header" href="https://example.org/solar"><span>x</span></a>
  <a class="title">Solar output report</a>
  <div class="snippet-description">Output rose.</div>
</div>
<div class="snippet">
  <a class="result-header" href="/internal"></a>
  <a class="title">Relative link</a>
</div>
</body></html>`

const braveLinksHTML = `<html><body>
<a href="https://search.brave.com/help">Brave search help pages</a>
<a href="https://example.org/favicon.ico">An icon link here</a>
<a href="https://example.org/short">short</a>
<a href="https://example.org/long">A sufficiently descriptive anchor</a>
</body></html>`

func TestBraveParsesSnippets(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "solar output", r.URL.Query().Get("q"))
		_, _ = io.WriteString(w, braveHTML)
	}))
	defer srv.Close()

	results, err := NewBrave(srv.URL, srv.Client(), fastLimiter(), quietLogger()).Search(context.Background(), "solar output")
	require.NoError(t, err)
	assert.Equal(t, []domain.SearchResult{{Title: "Solar output report", Link: "https://example.org/solar", Snippet: "Output rose."}}, results)
}

func TestBraveFallsBackToPlainLinks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, braveLinksHTML)
	}))
	defer srv.Close()

	results, err := NewBrave(srv.URL, srv.Client(), fastLimiter(), quietLogger()).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []domain.SearchResult{{Title: "A sufficiently descriptive anchor", Link: "https://example.org/long"}}, results)
}

type fixedProvider struct {
	name    string
	results []domain.SearchResult
	err     error
}

func (p fixedProvider) Name() string { return p.name }

func (p fixedProvider) Search(context.Context, string) ([]domain.SearchResult, error) {
	return p.results, p.err
}

func combinedClient(t *testing.T, providers ...fixedProvider) *Client {
	t.Helper()
	reg := NewRegistry()
	var companions []string
	for i, p := range providers {
		reg.Register(p)
		if i > 0 {
			companions = append(companions, p.name)
		}
	}
	c, err := NewClient(ClientDeps{Registry: reg, Fallback: providers[0].name, Companions: companions, Logger: quietLogger()})
	require.NoError(t, err)
	return c
}

func TestClientCombinesAndFiltersCompanionResults(t *testing.T) {
	t.Parallel()

	c := combinedClient(t,
		fixedProvider{name: "ddg", results: []domain.SearchResult{
			{Title: "Grid storage study", Link: "https://a.example/1"},
			{Title: "Tiny", Link: "https://a.example/2"},
			{Title: "Login to continue", Link: "https://a.example/3"},
			{Title: "Relative result", Link: "/4"},
		}},
		fixedProvider{name: "brave", results: []domain.SearchResult{
			{Title: "Grid storage study mirror", Link: "https://a.example/1"},
			{Title: "Battery prices: 20% OFF today", Link: "https://shop.example"},
			{Title: "Pumped hydro overview", Link: "https://b.example/1"},
		}},
	)

	results, err := c.Search(context.Background(), "grid storage")
	require.NoError(t, err)
	assert.Equal(t, []domain.SearchResult{
		{Title: "Grid storage study", Link: "https://a.example/1"},
		{Title: "Pumped hydro overview", Link: "https://b.example/1"},
	}, results)
}

func TestClientCombinedSurvivesOneFailure(t *testing.T) {
	t.Parallel()

	c := combinedClient(t,
		fixedProvider{name: "ddg", err: errors.New("blocked")},
		fixedProvider{name: "brave", results: []domain.SearchResult{{Title: "Pumped hydro overview", Link: "https://b.example/1"}}},
	)

	results, err := c.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestClientCombinedFailsWhenAllFail(t *testing.T) {
	t.Parallel()

	c := combinedClient(t,
		fixedProvider{name: "ddg", err: errors.New("blocked")},
		fixedProvider{name: "brave", err: errors.New("captcha")},
	)

	_, err := c.Search(context.Background(), "q")
	assert.ErrorContains(t, err, "blocked")
	assert.ErrorContains(t, err, "captcha")
}

func TestMergeResultsCapsAtTen(t *testing.T) {
	t.Parallel()

	var batch []domain.SearchResult
	for i := 0; i < 15; i++ {
		batch = append(batch, domain.SearchResult{Title: "Result number", Link: "https://c.example/" + string(rune('a'+i))})
	}
	assert.Len(t, mergeResults(batch), 10)
}
