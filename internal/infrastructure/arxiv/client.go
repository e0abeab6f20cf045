// Package arxiv searches the arXiv Atom API.
package arxiv

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ports"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ratelimit"
)

const defaultEndpoint = "https://export.arxiv.org/api/query"

var versionSuffix = regexp.MustCompile(`v\d+$`)

// Client implements ports.PaperSearcher.
type Client struct {
	endpoint string
	client   *http.Client
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

var _ ports.PaperSearcher = (*Client)(nil)

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
	return &Client{endpoint: endpoint, client: client, limiter: limiter, logger: logger.With("component", "arxiv")}
}

// SearchPapers returns up to limit entries ranked by relevance.
func (c *Client) SearchPapers(ctx context.Context, query string, limit int) ([]domain.Paper, error) {
	c.logger.InfoContext(ctx, "Searching arXiv for papers related to: "+query, "high_level", true)
	if c.limiter != nil {
		if err := c.limiter.WaitIfNeeded(ctx, ratelimit.ServiceArxiv); err != nil {
			return nil, fmt.Errorf("wait for arxiv slot: %w", err)
		}
	}

	pageURL, err := buildQueryURL(c.endpoint, query, limit)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
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
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	papers := make([]domain.Paper, 0, len(feed.Items))
	for _, item := range feed.Items {
		paper, ok := parseEntry(item)
		if !ok {
			continue
		}
		papers = append(papers, paper)
		if limit > 0 && len(papers) >= limit {
			break
		}
	}

	c.logger.DebugContext(ctx, fmt.Sprintf("Found %d arXiv papers related to '%s'", len(papers), query))
	return papers, nil
}

func parseEntry(item *gofeed.Item) (domain.Paper, bool) {
	entryURL := strings.TrimSpace(item.GUID)
	if entryURL == "" {
		entryURL = strings.TrimSpace(item.Link)
	}
	if entryURL == "" {
		return domain.Paper{}, false
	}

	paper := domain.Paper{
		ArxivID:  arxivID(entryURL),
		Title:    collapse(item.Title),
		Abstract: strings.TrimSpace(item.Description),
		URL:      entryURL,
		PDFURL:   pdfLink(item, entryURL),
	}
	paper.Summary = paper.Abstract

	for _, author := range item.Authors {
		if author != nil && strings.TrimSpace(author.Name) != "" {
			paper.Authors = append(paper.Authors, strings.TrimSpace(author.Name))
		}
	}
	if item.PublishedParsed != nil {
		paper.Published = item.PublishedParsed.UTC().Format("2006-01-02")
	}

	return paper, paper.Title != ""
}

// arxivID strips the version from the last path segment of an entry URL.
func arxivID(entryURL string) string {
	id := entryURL
	if i := strings.Index(id, "/abs/"); i >= 0 {
		id = id[i+len("/abs/"):]
	} else if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	return versionSuffix.ReplaceAllString(id, "")
}

func pdfLink(item *gofeed.Item, entryURL string) string {
	for _, link := range item.Links {
		if strings.Contains(link, "/pdf/") {
			return link
		}
	}
	if strings.Contains(entryURL, "/abs/") {
		return strings.Replace(entryURL, "/abs/", "/pdf/", 1)
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func buildQueryURL(base, query string, limit int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid arxiv endpoint %s: %w", base, err)
	}
	if limit <= 0 {
		limit = 5
	}

	params := parsed.Query()
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(limit))
	params.Set("sortBy", "relevance")
	parsed.RawQuery = params.Encode()
	return parsed.String(), nil
}
