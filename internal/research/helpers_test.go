package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/citation"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/session"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type queryFunc func(prompt string) (string, error)

func (f queryFunc) Query(_ context.Context, prompt string) (string, error) { return f(prompt) }

func answer(s string) queryFunc {
	return func(string) (string, error) { return s, nil }
}

// pageFetcher serves distinct long documents; URLs listed in short get a
// stub that is below every acceptance threshold.
type pageFetcher struct {
	mu       sync.Mutex
	ids      map[string]int
	short    map[string]bool
	allShort bool
	calls    []string
}

func newPageFetcher(short ...string) *pageFetcher {
	f := &pageFetcher{ids: map[string]int{}, short: map[string]bool{}}
	for _, u := range short {
		f.short[u] = true
	}
	return f
}

func (f *pageFetcher) Fetch(_ context.Context, url string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if f.allShort || f.short[url] {
		return "tiny"
	}
	id, ok := f.ids[url]
	if !ok {
		id = len(f.ids) + 1
		f.ids[url] = id
	}
	return fmt.Sprintf("Document %d. ", id) + strings.Repeat("quantum research finding with measured data ", 20)
}

func (f *pageFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// linkSearcher returns n fresh links per query and records every query.
type linkSearcher struct {
	mu      sync.Mutex
	n       int
	host    string
	queries []string
}

func (s *linkSearcher) Search(_ context.Context, query string) ([]domain.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	host := s.host
	if host == "" {
		host = "example.com"
	}
	out := make([]domain.SearchResult, 0, s.n)
	for i := 0; i < s.n; i++ {
		link := fmt.Sprintf("https://%s/q%d/r%d", host, len(s.queries), i)
		out = append(out, domain.SearchResult{Title: fmt.Sprintf("Result %d-%d", len(s.queries), i), Link: link})
	}
	return out, nil
}

func (s *linkSearcher) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// failingSearcher errors on every query.
type failingSearcher struct {
	mu    sync.Mutex
	calls int
}

var errSearchDown = errors.New("search backend down")

func (s *failingSearcher) Search(context.Context, string) ([]domain.SearchResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return nil, errSearchDown
}

type paperFunc func(query string, limit int) ([]domain.Paper, error)

func (f paperFunc) SearchPapers(_ context.Context, q string, limit int) ([]domain.Paper, error) {
	return f(q, limit)
}

func (f paperFunc) SearchDOI(_ context.Context, q string, limit int) ([]domain.Paper, error) {
	return f(q, limit)
}

type lookupFunc func(subject string) (string, error)

func (f lookupFunc) Lookup(_ context.Context, subject string) (string, error) { return f(subject) }

func newSession(t *testing.T, fetcher *pageFetcher) *session.Context {
	t.Helper()
	return session.New("Quantum Computing", session.Deps{
		Fetcher: fetcher,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Style:   citation.StyleAPA,
		Now:     func() time.Time { return testNow },
	})
}

func newKit(t *testing.T, k Toolkit) *Toolkit {
	t.Helper()
	kit, err := NewToolkit(k)
	if err != nil {
		t.Fatalf("NewToolkit: %v", err)
	}
	return kit
}

type newsFunc func(query, region string) ([]domain.NewsArticle, error)

func (f newsFunc) SearchNews(_ context.Context, query, region string) ([]domain.NewsArticle, error) {
	return f(query, region)
}

// routedAnswers replies with the first answer whose key occurs in the prompt.
type routedAnswers []struct{ key, reply string }

func (r routedAnswers) Query(_ context.Context, prompt string) (string, error) {
	for _, a := range r {
		if strings.Contains(prompt, a.key) {
			return a.reply, nil
		}
	}
	return "", errors.New("no scripted answer")
}
