package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ratelimit"
)

const (
	ddgMaxRows    = 30
	ddgMaxResults = 10
	userAgent     = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0 Safari/537.36"
)

// DuckDuckGo scrapes the HTML-lite endpoint.
type DuckDuckGo struct {
	endpoint string
	client   *http.Client
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

var _ Provider = (*DuckDuckGo)(nil)

// NewDuckDuckGo wires an HTTP client; limiter may be nil.
func NewDuckDuckGo(endpoint string, client *http.Client, limiter *ratelimit.Limiter, logger *slog.Logger) *DuckDuckGo {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DuckDuckGo{
		endpoint: endpoint,
		client:   client,
		limiter:  limiter,
		logger:   logger.With("component", "search.duckduckgo"),
	}
}

// Name identifies the strategy inside the registry.
func (d *DuckDuckGo) Name() string {
	return ProviderDuckDuckGo
}

// Search posts the query form and extracts absolute result links.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if d.limiter != nil {
		if err := d.limiter.WaitIfNeeded(ctx, ratelimit.ServiceDuckDuckGo); err != nil {
			return nil, fmt.Errorf("wait for duckduckgo slot: %w", err)
		}
	}

	form := url.Values{}
	form.Set("q", query)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request duckduckgo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	results := extractLiteResults(doc)
	d.logger.InfoContext(ctx, fmt.Sprintf("Found %d results from DuckDuckGo Lite", len(results)), "high_level", true)
	return results, nil
}

// extractLiteResults reads result anchors row by row; the snippet is the
// text of the row that follows the anchor's row.
func extractLiteResults(doc *goquery.Document) []domain.SearchResult {
	var results []domain.SearchResult

	doc.Find("tr").EachWithBreak(func(i int, tr *goquery.Selection) bool {
		if i > ddgMaxRows {
			return false
		}
		tr.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			title := strings.TrimSpace(a.Text())
			if title == "" || !(strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://")) {
				return true
			}
			snippet := strings.TrimSpace(tr.Next().Text())
			results = append(results, domain.SearchResult{Title: title, Link: href, Snippet: snippet})
			return len(results) < ddgMaxResults
		})
		return len(results) < ddgMaxResults
	})

	return results
}
