package usecase

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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/citation"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ports"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/research"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const twoSubtopicPlan = `[
  {"subtopic": "Qubit Hardware", "search_queries": ["superconducting qubits", "trapped ion qubits"]},
  {"subtopic": "Quantum Algorithms", "search_queries": ["shor algorithm", "grover search"]}
]`

type queryFunc func(prompt string) (string, error)

func (f queryFunc) Query(_ context.Context, prompt string) (string, error) { return f(prompt) }

type fixedFetcher string

func (f fixedFetcher) Fetch(context.Context, string) string { return string(f) }

// uniqueFetcher serves a distinct long page per URL.
type uniqueFetcher struct {
	mu  sync.Mutex
	ids map[string]int
}

func (f *uniqueFetcher) Fetch(_ context.Context, url string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ids == nil {
		f.ids = map[string]int{}
	}
	id, ok := f.ids[url]
	if !ok {
		id = len(f.ids) + 1
		f.ids[url] = id
	}
	return fmt.Sprintf("Document %d. ", id) + strings.Repeat("quantum research finding with measured data ", 20)
}

type linkSearcher struct {
	mu sync.Mutex
	n  int
}

func (s *linkSearcher) Search(_ context.Context, query string) ([]domain.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return []domain.SearchResult{
		{Title: "Result A", Link: fmt.Sprintf("https://example.com/%d/a", s.n)},
		{Title: "Result B", Link: fmt.Sprintf("https://example.com/%d/b", s.n)},
	}, nil
}

type memStore struct {
	mu    sync.Mutex
	saved []domain.ResearchSession
}

func (m *memStore) Save(_ context.Context, s domain.ResearchSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, s)
	return nil
}

func (m *memStore) Load(_ context.Context, id string) (domain.ResearchSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.saved) - 1; i >= 0; i-- {
		if m.saved[i].ID == id {
			return m.saved[i], nil
		}
	}
	return domain.ResearchSession{}, ports.ErrSessionNotFound
}

func (m *memStore) steps() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0, len(m.saved))
	for _, s := range m.saved {
		out = append(out, s.Progress.CurrentStep)
	}
	return out
}

type recordingRenderer struct {
	mu   sync.Mutex
	docs []domain.Document
	err  error
}

func (r *recordingRenderer) Render(_ context.Context, id string, doc domain.Document) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	if r.err != nil {
		return "", r.err
	}
	return "/out/" + id + ".md", nil
}

type panicRenderer struct{}

func (panicRenderer) Render(context.Context, string, domain.Document) (string, error) {
	panic("renderer exploded")
}

type recordingNotifier struct {
	mu      sync.Mutex
	digests []string
}

func (n *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.digests = append(n.digests, digest)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeline(t *testing.T, deps PipelineDeps, kit research.Toolkit) *Pipeline {
	t.Helper()
	tk, err := research.NewToolkit(kit)
	require.NoError(t, err)
	deps.Toolkit = tk
	deps.Logger = quietLogger()
	if deps.Session.Style == "" {
		deps.Session.Style = citation.StyleAPA
	}
	deps.Session.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	p, err := NewPipeline(deps)
	require.NoError(t, err)
	return p
}

func TestNewPipelineRequiresToolkit(t *testing.T) {
	_, err := NewPipeline(PipelineDeps{})
	assert.ErrorIs(t, err, ErrNoToolkit)
}

func TestPipelineCompletesQuantumComputing(t *testing.T) {
	store := &memStore{}
	renderer := &recordingRenderer{}
	notifier := &recordingNotifier{}
	p := newPipeline(t, PipelineDeps{
		Sessions: store,
		Renderer: renderer,
		Notifier: notifier,
		Session:  session.Deps{Fetcher: fixedFetcher(strings.Repeat("Quantum state measurement result. ", 18)[:600])},
	}, research.Toolkit{
		Querier:  queryFunc(func(string) (string, error) { return twoSubtopicPlan, nil }),
		Searcher: &linkSearcher{},
	})

	sc, err := p.Run(context.Background(), "Quantum Computing")
	require.NoError(t, err)

	snap := sc.Snapshot()
	assert.Equal(t, domain.StatusCompleted, snap.Status)
	assert.Len(t, snap.Sections, 2)
	assert.Contains(t, snap.Sections, "Qubit Hardware")
	assert.Contains(t, snap.Sections, "Quantum Algorithms")
	assert.Positive(t, snap.URLTracking.WebPage)
	assert.Equal(t, "Research Paper on Quantum Computing", snap.Title)
	assert.Equal(t, 10, snap.Progress.CurrentStep)
	assert.Equal(t, "/out/"+snap.ID+".md", snap.MarkdownFile)
	assert.Contains(t, snap.Markdown, "# Research Paper on Quantum Computing")
	assert.NotEmpty(t, snap.ReferencesSection)

	steps := store.steps()
	require.NotEmpty(t, steps)
	for i := 1; i < len(steps); i++ {
		assert.GreaterOrEqual(t, steps[i], steps[i-1], "persisted step went backwards at %d", i)
	}
	last, err := store.Load(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, last.Status)

	require.Len(t, renderer.docs, 1)
	assert.Len(t, renderer.docs[0].Sections, 2)
	require.Len(t, notifier.digests, 1)
	assert.Contains(t, notifier.digests[0], "Research completed: Research Paper on Quantum Computing")

	done, meta := sc.Events.Completed()
	assert.True(t, done)
	assert.Equal(t, snap.MarkdownFile, meta["markdown_file"])

	report, err := p.Status(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, report.Status)

	var progressLines int
	for _, e := range sc.Events.Entries() {
		if strings.HasPrefix(e.Message, "Progress update: Step ") {
			progressLines++
			assert.True(t, e.HighLevel)
		}
	}
	assert.Equal(t, 20, progressLines)
}

func TestPipelineRecordsPanicAsError(t *testing.T) {
	store := &memStore{}
	p := newPipeline(t, PipelineDeps{
		Sessions: store,
		Renderer: panicRenderer{},
		Session:  session.Deps{Fetcher: fixedFetcher("")},
	}, research.Toolkit{
		Querier: queryFunc(func(string) (string, error) { return twoSubtopicPlan, nil }),
	})

	sc, err := p.Run(context.Background(), "Quantum Computing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "renderer exploded")

	snap := sc.Snapshot()
	assert.Equal(t, domain.StatusError, snap.Status)
	require.NotEmpty(t, snap.Errors)
	lastErr := snap.Errors[len(snap.Errors)-1]
	assert.Equal(t, "Error in research paper generation", lastErr.Message)
	assert.NotEmpty(t, lastErr.Trace)

	persisted, err := store.Load(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, persisted.Status)
}

func TestPipelineKeepsGoingWhenRendererFails(t *testing.T) {
	p := newPipeline(t, PipelineDeps{
		Renderer: &recordingRenderer{err: errors.New("disk full")},
		Session:  session.Deps{Fetcher: fixedFetcher("")},
	}, research.Toolkit{
		Querier: queryFunc(func(string) (string, error) { return twoSubtopicPlan, nil }),
	})

	sc, err := p.Run(context.Background(), "Quantum Computing")
	require.NoError(t, err)

	snap := sc.Snapshot()
	assert.Equal(t, domain.StatusCompleted, snap.Status)
	assert.Empty(t, snap.MarkdownFile)
	assert.NotEmpty(t, snap.Markdown)
	require.NotEmpty(t, snap.Errors)
	assert.Equal(t, "Error rendering final document", snap.Errors[0].Message)
}

func TestPipelineStopsOnCancelledContext(t *testing.T) {
	p := newPipeline(t, PipelineDeps{Session: session.Deps{Fetcher: fixedFetcher("")}}, research.Toolkit{
		Querier: queryFunc(func(string) (string, error) { return twoSubtopicPlan, nil }),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sc, err := p.Run(ctx, "Quantum Computing")

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.StatusError, sc.Snapshot().Status)
}

type staticUnit struct {
	name     string
	findings research.Findings
}

func (u staticUnit) Name() string { return u.name }

func (u staticUnit) Research(context.Context, *session.Context, string) domain.Result[research.Findings] {
	return domain.OK(u.findings)
}

func TestDeepResearchStopsOnceResearchIsSufficient(t *testing.T) {
	plan := `[{"subtopic": "Qubit Hardware"}, {"subtopic": "Quantum Algorithms"}, {"subtopic": "Error Correction"},
{"subtopic": "Quantum Networking"}, {"subtopic": "Quantum Sensing"}]`
	longSection := strings.Repeat("A substantial paragraph about quantum computing. ", 15)

	units := research.NewRegistry()
	units.Register(staticUnit{name: research.UnitArxiv, findings: research.Findings{
		Papers: []domain.Paper{{Title: "P1"}, {Title: "P2"}, {Title: "P3"}},
	}})
	units.Register(staticUnit{name: research.UnitStatistics, findings: research.Findings{
		Materials: []domain.Material{{Title: "S1"}, {Title: "S2"}},
	}})

	p := newPipeline(t, PipelineDeps{
		Units:         units,
		SubtopicBatch: 2,
		Session:       session.Deps{Fetcher: &uniqueFetcher{}},
	}, research.Toolkit{
		Querier: queryFunc(func(prompt string) (string, error) {
			switch {
			case strings.Contains(prompt, "Identify 5-8 key subtopics"):
				return plan, nil
			case strings.Contains(prompt, "You are writing the section about"):
				return longSection, nil
			default:
				return "Summary.", nil
			}
		}),
		Searcher: &linkSearcher{},
	})

	sc, err := p.Run(context.Background(), "Quantum Computing")
	require.NoError(t, err)

	snap := sc.Snapshot()
	assert.Equal(t, domain.StatusCompleted, snap.Status)
	assert.Len(t, snap.Sections, 4)
	assert.Len(t, snap.AcademicSources.ArxivPapers, 3)
}

func TestStatusOfUnknownSession(t *testing.T) {
	p := newPipeline(t, PipelineDeps{}, research.Toolkit{Querier: queryFunc(func(string) (string, error) { return "", nil })})

	_, err := p.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
}
