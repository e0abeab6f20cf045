// Package news searches the Google News RSS index.
package news

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ports"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ratelimit"
)

const (
	defaultEndpoint = "https://news.google.com/rss/search"
	defaultRegion   = "US"
	maxPerQuery     = 10
)

// Client implements ports.NewsSearcher.
type Client struct {
	endpoint string
	client   *http.Client
	limiter  *ratelimit.Limiter
	strip    *bluemonday.Policy
	logger   *slog.Logger
}

var _ ports.NewsSearcher = (*Client)(nil)

// New wires an HTTP client; limiter may be nil.
func New(endpoint string, client *http.Client, limiter *ratelimit.Limiter, logger *slog.Logger) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint: endpoint,
		client:   client,
		limiter:  limiter,
		strip:    bluemonday.StrictPolicy(),
		logger:   logger.With("component", "news"),
	}
}

// SearchNews returns headlines for query in region, deduplicated by link.
func (c *Client) SearchNews(ctx context.Context, query, region string) ([]domain.NewsArticle, error) {
	if region == "" {
		region = defaultRegion
	}
	c.logger.InfoContext(ctx, "Searching news for: "+query, "high_level", true)
	if c.limiter != nil {
		if err := c.limiter.WaitIfNeeded(ctx, ratelimit.ServiceNews); err != nil {
			return nil, fmt.Errorf("wait for news slot: %w", err)
		}
	}

	feedURL, err := buildFeedURL(c.endpoint, query, region)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "OrcaStatLLM-Researcher/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news index returned %s", resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	seen := map[string]bool{}
	var out []domain.NewsArticle
	for _, item := range feed.Items {
		a, ok := c.article(item)
		if !ok || seen[a.Link] {
			continue
		}
		seen[a.Link] = true
		out = append(out, a)
		if len(out) == maxPerQuery {
			break
		}
	}

	if len(out) == 0 {
		c.logger.InfoContext(ctx, "No news results found")
	} else {
		c.logger.InfoContext(ctx, fmt.Sprintf("Found %d news articles related to '%s'", len(out), query))
	}
	return out, nil
}

// article splits the "Headline - Outlet" title Google News uses.
func (c *Client) article(item *gofeed.Item) (domain.NewsArticle, bool) {
	link := strings.TrimSpace(item.Link)
	title := strings.TrimSpace(item.Title)
	if link == "" || title == "" {
		return domain.NewsArticle{}, false
	}

	a := domain.NewsArticle{Title: title, Link: link}
	if i := strings.LastIndex(title, " - "); i > 0 {
		a.Title, a.Media = title[:i], strings.TrimSpace(title[i+3:])
	}
	a.Description = strings.Join(strings.Fields(html.UnescapeString(c.strip.Sanitize(item.Description))), " ")
	if item.PublishedParsed != nil {
		a.Date = item.PublishedParsed.UTC().Format("2006-01-02")
	}
	return a, true
}

func buildFeedURL(base, query, region string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid news endpoint %s: %w", base, err)
	}
	region = strings.ToUpper(region)
	params := parsed.Query()
	params.Set("q", query)
	params.Set("hl", "en-"+region)
	params.Set("gl", region)
	params.Set("ceid", region+":en")
	parsed.RawQuery = params.Encode()
	return parsed.String(), nil
}
