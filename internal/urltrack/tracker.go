// Package urltrack instruments scrape calls and buckets the fetched URLs
// into source categories.
package urltrack

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/metrics"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ports"
)

// Source categories. A URL may belong to several. CategoryAcademicHost shares
// the academic_pdf counter, so a PDF on a scholarly host is counted twice.
const (
	CategoryWikipedia    = "wikipedia"
	CategoryNews         = "news"
	CategoryArxiv        = "arxiv"
	CategoryStatistics   = "stats"
	CategoryAcademicPDF  = "academic_pdf"
	CategoryDOI          = "doi"
	CategoryAcademicHost = "academic_host"
	CategoryWebPage      = "web_page"
)

var processedMessages = map[string]string{
	CategoryWikipedia:    "Wikipedia page processed: ",
	CategoryNews:         "News source processed: ",
	CategoryArxiv:        "ArXiv paper processed: ",
	CategoryStatistics:   "Statistics source processed: ",
	CategoryAcademicPDF:  "Academic PDF processed: ",
	CategoryDOI:          "DOI paper processed: ",
	CategoryAcademicHost: "Academic source processed: ",
}

var (
	newsMarkers = []string{
		"news", "cnbc", "bbc", "reuters", "cnn", "nytimes",
		"washingtonpost", "guardian", "aljazeera", "npr",
	}
	statsMarkers = []string{
		"statista", "worldbank", "data.gov", "ourworldindata",
		"census.gov", "bls.gov", "oecd.org",
	}
	academicMarkers = []string{
		".edu", ".ac.uk", "researchgate", "springer", "sciencedirect",
		"jstor", "ieee", "mdpi", "ncbi", "scielo", "ssrn",
	}
)

// Classify returns every category rawURL falls into.
func Classify(rawURL string) []string {
	u := strings.ToLower(rawURL)
	var out []string
	if strings.Contains(u, "wikipedia.org") {
		out = append(out, CategoryWikipedia)
	}
	if containsAny(u, newsMarkers) {
		out = append(out, CategoryNews)
	}
	if strings.Contains(u, "arxiv.org") {
		out = append(out, CategoryArxiv)
	}
	if containsAny(u, statsMarkers) {
		out = append(out, CategoryStatistics)
	}
	if strings.HasSuffix(u, ".pdf") {
		out = append(out, CategoryAcademicPDF)
	}
	if strings.Contains(u, "doi.org") || strings.Contains(u, "/doi/") {
		out = append(out, CategoryDOI)
	}
	if containsAny(u, academicMarkers) {
		out = append(out, CategoryAcademicHost)
	}
	if len(out) == 0 {
		out = append(out, CategoryWebPage)
	}
	return out
}

// IsAcademic reports whether rawURL points at a PDF or a scholarly host.
func IsAcademic(rawURL string) bool {
	u := strings.ToLower(rawURL)
	return strings.HasSuffix(u, ".pdf") || containsAny(u, academicMarkers)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "unknown"
	}
	return strings.ToLower(parsed.Host)
}

// Tracker wraps a Fetcher and counts every call made through it.
type Tracker struct {
	fetcher ports.Fetcher
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	counters domain.URLCounters
}

var _ ports.Fetcher = (*Tracker)(nil)

// New wraps fetcher.
func New(fetcher ports.Fetcher, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{fetcher: fetcher, logger: logger, now: time.Now}
	t.Reset()
	return t
}

// Reset zeroes every counter. Called once per pipeline run.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.counters = domain.URLCounters{Sources: map[string]int{}, LastUpdated: t.now()}
	t.mu.Unlock()
}

// Snapshot returns a copy of the counters.
func (t *Tracker) Snapshot() domain.URLCounters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters.Clone()
}

// Fetch scrapes rawURL through the wrapped fetcher. Failures, including a
// panicking fetcher, are counted and reported as "".
func (t *Tracker) Fetch(ctx context.Context, rawURL string) (content string) {
	total := t.begin(rawURL)

	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("fetch panicked", "url", rawURL, "panic", fmt.Sprint(r))
			content = ""
			t.fail()
		}
	}()

	content = t.fetcher.Fetch(ctx, rawURL)
	if strings.TrimSpace(content) == "" {
		t.fail()
		return ""
	}

	categories := t.classify(rawURL)
	metrics.RecordFetch(true)
	for _, c := range categories {
		metrics.RecordCategory(c)
		if msg, ok := processedMessages[c]; ok {
			t.logger.InfoContext(ctx, msg+rawURL, "high_level", true)
		}
	}
	t.logger.InfoContext(ctx, fmt.Sprintf("Scraped URL: %s (Total URLs: %d)", rawURL, total))
	return content
}

func (t *Tracker) begin(rawURL string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counters.TotalTracked++
	t.counters.TotalScraped++
	t.counters.Sources[hostOf(rawURL)]++
	t.counters.LastUpdated = t.now()
	return t.counters.TotalScraped
}

func (t *Tracker) fail() {
	metrics.RecordFetch(false)
	t.mu.Lock()
	t.counters.FailedScrapes++
	t.mu.Unlock()
}

func (t *Tracker) classify(rawURL string) []string {
	categories := Classify(rawURL)

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range categories {
		switch c {
		case CategoryWikipedia:
			t.counters.Wikipedia++
		case CategoryNews:
			t.counters.News++
		case CategoryArxiv:
			t.counters.Arxiv++
		case CategoryStatistics:
			t.counters.Statistics++
		case CategoryAcademicPDF, CategoryAcademicHost:
			t.counters.AcademicPDF++
		case CategoryDOI:
			t.counters.DOI++
		case CategoryWebPage:
			t.counters.WebPage++
		}
	}
	t.counters.LastUpdated = t.now()
	return categories
}

// Delta returns the counter growth between two snapshots of one run.
func Delta(before, after domain.URLCounters) domain.URLCounters {
	out := domain.URLCounters{
		TotalScraped:  after.TotalScraped - before.TotalScraped,
		TotalTracked:  after.TotalTracked - before.TotalTracked,
		Wikipedia:     after.Wikipedia - before.Wikipedia,
		Arxiv:         after.Arxiv - before.Arxiv,
		AcademicPDF:   after.AcademicPDF - before.AcademicPDF,
		News:          after.News - before.News,
		Statistics:    after.Statistics - before.Statistics,
		DOI:           after.DOI - before.DOI,
		WebPage:       after.WebPage - before.WebPage,
		FailedScrapes: after.FailedScrapes - before.FailedScrapes,
		Sources:       map[string]int{},
		LastUpdated:   after.LastUpdated,
	}
	for host, n := range after.Sources {
		if d := n - before.Sources[host]; d > 0 {
			out.Sources[host] = d
		}
	}
	return out
}
