package news

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>"flood" - Google News</title>
  <item>
    <title>Rivers burst their banks across the north - Daily Planet</title>
    <link>https://news.example/a</link>
    <pubDate>Tue, 02 Sep 2025 08:30:00 GMT</pubDate>
    <description>&lt;a href="https://news.example/a"&gt;Rivers burst&lt;/a&gt;&amp;nbsp;&amp;nbsp;&lt;font&gt;Daily Planet&lt;/font&gt;</description>
  </item>
  <item>
    <title>Duplicate link - Other Outlet</title>
    <link>https://news.example/a</link>
  </item>
  <item>
    <title>Relief effort grows</title>
    <link>https://news.example/b</link>
  </item>
  <item>
    <title></title>
    <link>https://news.example/c</link>
  </item>
</channel>
</rss>`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSearchNewsParsesFeed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "flood relief", q.Get("q"))
		assert.Equal(t, "GB", q.Get("gl"))
		assert.Equal(t, "en-GB", q.Get("hl"))
		assert.Equal(t, "GB:en", q.Get("ceid"))
		_, _ = io.WriteString(w, rssFeed)
	}))
	defer srv.Close()

	got, err := New(srv.URL, srv.Client(), nil, quietLogger()).SearchNews(context.Background(), "flood relief", "gb")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.NewsArticle{
		Title:       "Rivers burst their banks across the north",
		Link:        "https://news.example/a",
		Media:       "Daily Planet",
		Description: "Rivers burst Daily Planet",
		Date:        "2025-09-02",
	}, got[0])
	assert.Equal(t, "Relief effort grows", got[1].Title)
	assert.Empty(t, got[1].Media)
}

func TestSearchNewsDefaultsRegion(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "US", r.URL.Query().Get("gl"))
		_, _ = io.WriteString(w, rssFeed)
	}))
	defer srv.Close()

	_, err := New(srv.URL, srv.Client(), nil, quietLogger()).SearchNews(context.Background(), "q", "")
	require.NoError(t, err)
}

func TestSearchNewsReportsHTTPErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL, srv.Client(), nil, quietLogger()).SearchNews(context.Background(), "q", "US")
	assert.ErrorContains(t, err, "503")
}
