// Package scraper downloads web pages and reduces them to readable text.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/time/rate"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ports"
)

const (
	maxContentChars  = 8000
	maxBodyBytes     = 4 << 20
	minReadableChars = 200
	truncatedMarker  = "... [content truncated]"
	mediumHost       = "medium.com"
	mediumMirror     = "md.vern.cc"
	requestsPerSec   = 10
	requestBurst     = 20
	userAgent        = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0 Safari/537.36"
)

const noiseSelectors = "script, style, nav, header, footer, aside, form, noscript, iframe"

// Scraper implements ports.Fetcher over plain HTTP.
type Scraper struct {
	client *http.Client
	pace   *rate.Limiter
	strict *bluemonday.Policy
	logger *slog.Logger
}

var _ ports.Fetcher = (*Scraper)(nil)

// New wires an HTTP client; timeout applies when client is nil.
func New(client *http.Client, timeout time.Duration, logger *slog.Logger) *Scraper {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		client: client,
		pace:   rate.NewLimiter(rate.Limit(requestsPerSec), requestBurst),
		strict: bluemonday.StrictPolicy(),
		logger: logger.With("component", "scraper"),
	}
}

// Fetch returns "Title: <t>\nURL: <u>\nContent:\n\n<text>" or "" on any
// failure. Outcome metrics are recorded by the caller's URL tracker.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) string {
	target := rewriteMirror(rawURL)
	if target != rawURL {
		s.logger.InfoContext(ctx, "Replacing medium.com URL with "+mediumMirror+": "+target, "high_level", true)
	}

	text, err := s.fetch(ctx, target)
	if err != nil {
		s.logger.InfoContext(ctx, fmt.Sprintf("Error scraping URL %s: %v", target, err), "high_level", true)
		return ""
	}
	return text
}

func (s *Scraper) fetch(ctx context.Context, target string) (string, error) {
	if err := s.pace.Wait(ctx); err != nil {
		return "", fmt.Errorf("pace request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	if isPDF(target, resp.Header.Get("Content-Type")) {
		s.logger.InfoContext(ctx, "Detected PDF URL: "+target, "high_level", true)
		text, ok := pdfText(body)
		if !ok {
			return "", fmt.Errorf("pdf body is not text-extractable")
		}
		return format("", target, text), nil
	}

	title, text, err := s.extract(body, target)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("page has no readable text")
	}
	return format(title, target, text), nil
}

// extract strips boilerplate with goquery, then asks readability for the
// main content and falls back to tag stripping.
func (s *Scraper) extract(body []byte, target string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("parse document: %w", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find(noiseSelectors).Remove()

	cleaned, err := doc.Html()
	if err != nil {
		return title, "", fmt.Errorf("render cleaned document: %w", err)
	}

	pageURL, _ := url.Parse(target)
	if article, err := readability.FromReader(strings.NewReader(cleaned), pageURL); err == nil {
		var buf strings.Builder
		if err := article.RenderText(&buf); err == nil {
			if text := normalizeWhitespace(buf.String()); len(text) >= minReadableChars {
				return title, text, nil
			}
		}
	}

	return title, normalizeWhitespace(html.UnescapeString(s.strict.Sanitize(cleaned))), nil
}

func format(title, target, text string) string {
	if len(text) > maxContentChars {
		text = truncate(text, maxContentChars) + truncatedMarker
	}
	return fmt.Sprintf("Title: %s\nURL: %s\nContent:\n\n%s", title, target, text)
}

func rewriteMirror(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	host := strings.ToLower(u.Hostname())
	if host != mediumHost && !strings.HasSuffix(host, "."+mediumHost) {
		return rawURL
	}
	u.Host = strings.TrimSuffix(host, mediumHost) + mediumMirror
	return u.String()
}

func isPDF(target, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	u, err := url.Parse(target)
	if err != nil {
		return strings.HasSuffix(strings.ToLower(target), ".pdf")
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

// pdfText accepts bodies that are already text. Binary PDF streams are
// rejected.
func pdfText(body []byte) (string, bool) {
	if bytes.HasPrefix(bytes.TrimSpace(body), []byte("%PDF")) || !utf8.Valid(body) {
		return "", false
	}
	text := normalizeWhitespace(string(body))
	if text == "" {
		return "", false
	}
	var printable, total int
	for _, r := range text {
		total++
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	return text, printable*10 >= total*9
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
