package scraper

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/metrics"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func articleHTML(body string) string {
	return `<html><head><title>Solar Cells</title><script>var tracking = "nope";</script></head>
<body><nav>Home | About</nav><article><h1>Solar Cells</h1>` + body + `</article>
<footer>Copyright footer</footer></body></html>`
}

func TestFetchExtractsReadableText(t *testing.T) {
	t.Parallel()

	para := "<p>" + strings.Repeat("Perovskite solar cells reached new efficiency records this year. ", 8) + "</p>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, articleHTML(para+para))
	}))
	defer srv.Close()

	got := New(srv.Client(), 0, quietLogger()).Fetch(context.Background(), srv.URL+"/post")

	require.NotEmpty(t, got)
	assert.True(t, strings.HasPrefix(got, "Title: Solar Cells\nURL: "+srv.URL+"/post\nContent:\n\n"))
	assert.Contains(t, got, "Perovskite solar cells")
	assert.NotContains(t, got, "tracking")
	assert.NotContains(t, got, "Copyright footer")
}

func TestFetchTruncatesLongPages(t *testing.T) {
	t.Parallel()

	para := "<p>" + strings.Repeat("word ", 4000) + "</p>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, articleHTML(para))
	}))
	defer srv.Close()

	got := New(srv.Client(), 0, quietLogger()).Fetch(context.Background(), srv.URL)
	_, content, found := strings.Cut(got, "Content:\n\n")
	require.True(t, found)
	assert.True(t, strings.HasSuffix(content, truncatedMarker))
	assert.Equal(t, maxContentChars+len(truncatedMarker), len(content))
}

func TestFetchReturnsEmptyOnFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	s := New(srv.Client(), 0, quietLogger())
	assert.Empty(t, s.Fetch(context.Background(), srv.URL))
	assert.Empty(t, s.Fetch(context.Background(), "http://\x7f"))
}

func TestFetchPDF(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		if r.URL.Path == "/binary.pdf" {
			_, _ = w.Write([]byte("%PDF-1.7\n\x00\x01\x02 stream"))
			return
		}
		_, _ = io.WriteString(w, "Plain text extracted report about wind energy.")
	}))
	defer srv.Close()

	s := New(srv.Client(), 0, quietLogger())
	assert.Empty(t, s.Fetch(context.Background(), srv.URL+"/binary.pdf"))
	assert.Contains(t, s.Fetch(context.Background(), srv.URL+"/text.pdf"), "wind energy")
}

func TestRewriteMirror(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://md.vern.cc/@user/post-1", rewriteMirror("https://medium.com/@user/post-1"))
	assert.Equal(t, "https://blog.md.vern.cc/post", rewriteMirror("https://blog.medium.com/post"))
	assert.Equal(t, "https://example.com/medium.com", rewriteMirror("https://example.com/medium.com"))
}

func TestNormalizeWhitespace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b\n\nc", normalizeWhitespace("  a   b \n\n\n\n c  "))
}

// Runs without t.Parallel so the global counters only see this test.
func TestFetchLeavesFetchMetricsToTracker(t *testing.T) {
	ok := metrics.FetchTotal.WithLabelValues("ok")
	failed := metrics.FetchTotal.WithLabelValues("failed")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	para := "<p>" + strings.Repeat("Tidal energy output grew steadily across the decade. ", 8) + "</p>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, articleHTML(para))
	}))
	defer srv.Close()

	s := New(srv.Client(), 0, quietLogger())
	require.NotEmpty(t, s.Fetch(context.Background(), srv.URL+"/post"))
	require.Empty(t, s.Fetch(context.Background(), srv.URL+"/missing"))

	assert.InDelta(t, okBefore, testutil.ToFloat64(ok), 0)
	assert.InDelta(t, failedBefore, testutil.ToFloat64(failed), 0)
}
