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
	braveMaxResults    = 10
	braveMinLinkText   = 10
	braveMaxTitleRunes = 100
)

// Brave scrapes the Brave Search results page.
type Brave struct {
	endpoint string
	client   *http.Client
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

var _ Provider = (*Brave)(nil)

// NewBrave wires an HTTP client; limiter may be nil.
func NewBrave(endpoint string, client *http.Client, limiter *ratelimit.Limiter, logger *slog.Logger) *Brave {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Brave{
		endpoint: endpoint,
		client:   client,
		limiter:  limiter,
		logger:   logger.With("component", "search.brave"),
	}
}

func (b *Brave) Name() string {
	return ProviderBrave
}

// Search fetches the result page and reads the snippet blocks, falling back
// to plain outbound anchors when the markup has changed.
func (b *Brave) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if b.limiter != nil {
		if err := b.limiter.WaitIfNeeded(ctx, ratelimit.ServiceBrave); err != nil {
			return nil, fmt.Errorf("wait for brave slot: %w", err)
		}
	}
	b.logger.InfoContext(ctx, "Using Brave search for: "+query, "high_level", true)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request brave: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	results := extractBraveSnippets(doc)
	if len(results) == 0 {
		b.logger.DebugContext(ctx, "no brave snippets, extracting plain links")
		results = extractBraveLinks(doc)
	}
	b.logger.InfoContext(ctx, fmt.Sprintf("Found %d results from Brave search", len(results)), "high_level", true)
	return results, nil
}

func extractBraveSnippets(doc *goquery.Document) []domain.SearchResult {
	blocks := doc.Find("div.snippet")
	if blocks.Length() == 0 {
		blocks = doc.Find("div.result")
	}

	var results []domain.SearchResult
	blocks.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := strings.TrimSpace(s.Find("a.title").First().Text())
		link, _ := s.Find("a.result-header").First().Attr("href")
		if title == "" || !isAbsolute(link) {
			return true
		}
		results = append(results, domain.SearchResult{
			Title:   title,
			Link:    link,
			Snippet: strings.TrimSpace(s.Find("div.snippet-description").First().Text()),
		})
		return len(results) < braveMaxResults
	})
	return results
}

func extractBraveLinks(doc *goquery.Document) []domain.SearchResult {
	var results []domain.SearchResult
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		text := strings.TrimSpace(a.Text())
		if !isAbsolute(href) || len(text) <= braveMinLinkText ||
			strings.Contains(href, "brave.com") || strings.Contains(href, "favicon") {
			return true
		}
		if r := []rune(text); len(r) > braveMaxTitleRunes {
			text = string(r[:braveMaxTitleRunes])
		}
		results = append(results, domain.SearchResult{Title: text, Link: href})
		return len(results) < braveMaxResults
	})
	return results
}

func isAbsolute(link string) bool {
	return strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://")
}
