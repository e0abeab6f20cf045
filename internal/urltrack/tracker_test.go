package urltrack

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/metrics"
)

type fetchFunc func(ctx context.Context, url string) string

func (f fetchFunc) Fetch(ctx context.Context, url string) string { return f(ctx, url) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want []string
	}{
		{url: "https://en.wikipedia.org/wiki/Go", want: []string{CategoryWikipedia}},
		{url: "https://www.bbc.com/news/tech", want: []string{CategoryNews}},
		{url: "https://arxiv.org/pdf/2401.00001.pdf", want: []string{CategoryArxiv, CategoryAcademicPDF}},
		{url: "https://www.statista.com/x", want: []string{CategoryStatistics}},
		{url: "https://doi.org/10.1/abc", want: []string{CategoryDOI}},
		{url: "https://link.springer.com/doi/10.1/abc", want: []string{CategoryDOI, CategoryAcademicHost}},
		{url: "https://www.researchgate.net/paper.pdf", want: []string{CategoryAcademicPDF, CategoryAcademicHost}},
		{url: "https://example.com/page/1", want: []string{CategoryWebPage}},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.url))
		})
	}
}

func TestFetchCountsSuccessAndFailure(t *testing.T) {
	t.Parallel()

	tr := New(fetchFunc(func(_ context.Context, url string) string {
		if strings.Contains(url, "broken") {
			return ""
		}
		return "content"
	}), quietLogger())

	ctx := context.Background()
	assert.Equal(t, "content", tr.Fetch(ctx, "https://example.com/a"))
	assert.Equal(t, "content", tr.Fetch(ctx, "https://arxiv.org/abs/1.pdf"))
	assert.Empty(t, tr.Fetch(ctx, "https://example.com/broken"))

	got := tr.Snapshot()
	assert.Equal(t, 3, got.TotalScraped)
	assert.Equal(t, 3, got.TotalTracked)
	assert.Equal(t, 1, got.FailedScrapes)
	assert.Equal(t, 1, got.WebPage)
	assert.Equal(t, 1, got.Arxiv)
	assert.Equal(t, 1, got.AcademicPDF)
	assert.Equal(t, map[string]int{"example.com": 2, "arxiv.org": 1}, got.Sources)
}

func TestFetchRecoversFromPanic(t *testing.T) {
	t.Parallel()

	tr := New(fetchFunc(func(context.Context, string) string {
		panic("boom")
	}), quietLogger())

	assert.Empty(t, tr.Fetch(context.Background(), "https://example.com"))
	assert.Equal(t, 1, tr.Snapshot().FailedScrapes)
}

func TestResetAndDelta(t *testing.T) {
	t.Parallel()

	tr := New(fetchFunc(func(context.Context, string) string { return "ok" }), quietLogger())
	ctx := context.Background()

	tr.Fetch(ctx, "https://example.com/1")
	before := tr.Snapshot()
	tr.Fetch(ctx, "https://example.com/2")
	tr.Fetch(ctx, "https://en.wikipedia.org/wiki/X")
	d := Delta(before, tr.Snapshot())

	assert.Equal(t, 2, d.TotalScraped)
	assert.Equal(t, 1, d.WebPage)
	assert.Equal(t, 1, d.Wikipedia)
	assert.Equal(t, map[string]int{"example.com": 1, "en.wikipedia.org": 1}, d.Sources)

	tr.Reset()
	assert.Zero(t, tr.Snapshot().TotalScraped)
	assert.Empty(t, tr.Snapshot().Sources)
}

func TestConcurrentFetches(t *testing.T) {
	t.Parallel()

	tr := New(fetchFunc(func(context.Context, string) string { return "ok" }), quietLogger())
	var wg sync.WaitGroup
	for range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Fetch(context.Background(), "https://example.com/x")
		}()
	}
	wg.Wait()

	got := tr.Snapshot()
	assert.Equal(t, 40, got.TotalScraped)
	assert.Equal(t, 40, got.WebPage)
	assert.Equal(t, 40, got.Sources["example.com"])
}

func TestFetchLogsProcessedCategories(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	tr := New(fetchFunc(func(context.Context, string) string { return "ok" }), logger)

	tr.Fetch(context.Background(), "https://en.wikipedia.org/wiki/Go")
	tr.Fetch(context.Background(), "https://www.researchgate.net/paper.pdf")

	out := buf.String()
	assert.Contains(t, out, "Wikipedia page processed: https://en.wikipedia.org/wiki/Go")
	assert.Contains(t, out, "Academic PDF processed: https://www.researchgate.net/paper.pdf")
	assert.Contains(t, out, "Academic source processed: https://www.researchgate.net/paper.pdf")
	assert.Contains(t, out, "high_level=true")
	assert.Equal(t, 2, tr.Snapshot().AcademicPDF)
}

// Runs without t.Parallel so the global counters only see this test.
func TestFetchRecordsOneMetricPerCall(t *testing.T) {
	ok := metrics.FetchTotal.WithLabelValues("ok")
	failed := metrics.FetchTotal.WithLabelValues("failed")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	tr := New(fetchFunc(func(_ context.Context, url string) string {
		if strings.Contains(url, "broken") {
			return ""
		}
		return "content"
	}), quietLogger())
	tr.Fetch(context.Background(), "https://example.com/a")
	tr.Fetch(context.Background(), "https://example.com/broken")

	require.InDelta(t, okBefore+1, testutil.ToFloat64(ok), 0)
	require.InDelta(t, failedBefore+1, testutil.ToFloat64(failed), 0)
}
