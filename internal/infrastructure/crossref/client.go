// Package crossref searches the Crossref works registry for DOI papers.
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ports"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ratelimit"
)

const defaultEndpoint = "https://api.crossref.org/works"

var stripPolicy = bluemonday.StrictPolicy()

// Client implements ports.DOISearcher.
type Client struct {
	endpoint string
	mailTo   string
	client   *http.Client
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

var _ ports.DOISearcher = (*Client)(nil)

// New wires an HTTP client. mailTo opts into Crossref's polite pool.
func New(endpoint, mailTo string, client *http.Client, limiter *ratelimit.Limiter, logger *slog.Logger) *Client {
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
		mailTo:   mailTo,
		client:   client,
		limiter:  limiter,
		logger:   logger.With("component", "crossref"),
	}
}

type worksResponse struct {
	Message struct {
		Items []work `json:"items"`
	} `json:"message"`
}

type work struct {
	DOI            string   `json:"DOI"`
	URL            string   `json:"URL"`
	Title          []string `json:"title"`
	ContainerTitle []string `json:"container-title"`
	Abstract       string   `json:"abstract"`
	Author         []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
		Name   string `json:"name"`
	} `json:"author"`
	Issued struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"issued"`
	Link []struct {
		URL string `json:"URL"`
	} `json:"link"`
}

// SearchDOI returns up to limit works matching query.
func (c *Client) SearchDOI(ctx context.Context, query string, limit int) ([]domain.Paper, error) {
	if c.limiter != nil {
		if err := c.limiter.WaitIfNeeded(ctx, ratelimit.ServiceCrossref); err != nil {
			return nil, fmt.Errorf("wait for crossref slot: %w", err)
		}
	}
	if limit <= 0 {
		limit = 5
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid crossref endpoint %s: %w", c.endpoint, err)
	}
	params := u.Query()
	params.Set("query", query)
	params.Set("rows", strconv.Itoa(limit))
	if c.mailTo != "" {
		params.Set("mailto", c.mailTo)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request works: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("crossref returned %s", resp.Status)
	}

	var payload worksResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode works: %w", err)
	}

	papers := make([]domain.Paper, 0, len(payload.Message.Items))
	for _, w := range payload.Message.Items {
		if p, ok := toPaper(w); ok {
			papers = append(papers, p)
		}
	}
	c.logger.DebugContext(ctx, "crossref search finished", "query", query, "papers", len(papers))
	return papers, nil
}

func toPaper(w work) (domain.Paper, bool) {
	if w.DOI == "" || len(w.Title) == 0 || strings.TrimSpace(w.Title[0]) == "" {
		return domain.Paper{}, false
	}

	p := domain.Paper{
		DOI:       w.DOI,
		Title:     strings.TrimSpace(w.Title[0]),
		URL:       w.URL,
		Abstract:  stripJATS(w.Abstract),
		Published: issued(w.Issued.DateParts),
	}
	if len(w.ContainerTitle) > 0 {
		p.Journal = w.ContainerTitle[0]
	}
	for _, a := range w.Author {
		name := strings.TrimSpace(strings.TrimSpace(a.Given) + " " + strings.TrimSpace(a.Family))
		if name == "" {
			name = strings.TrimSpace(a.Name)
		}
		if name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	for _, l := range w.Link {
		if strings.HasPrefix(l.URL, "http") {
			p.PDFURL = l.URL
			break
		}
	}
	p.Summary = p.Abstract
	return p, true
}

// issued renders Crossref date-parts as YYYY, YYYY-MM or YYYY-MM-DD.
func issued(parts [][]int) string {
	if len(parts) == 0 || len(parts[0]) == 0 || parts[0][0] == 0 {
		return ""
	}
	d := parts[0]
	switch len(d) {
	case 1:
		return fmt.Sprintf("%04d", d[0])
	case 2:
		return fmt.Sprintf("%04d-%02d", d[0], d[1])
	default:
		return fmt.Sprintf("%04d-%02d-%02d", d[0], d[1], d[2])
	}
}

// stripJATS removes the XML tags Crossref embeds in abstracts.
func stripJATS(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(html.UnescapeString(stripPolicy.Sanitize(s))), " ")
}
