package optimizer

import (
	"crypto/sha256"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
)

const minContentLength = 50

var (
	highQualityDomains = []string{
		"scholar.google.com", "arxiv.org", "science.org", "nature.com",
		"researchgate.net", "ssrn.com", "pubmed.ncbi.nlm.nih.gov",
		"ieee.org", "acm.org", "jstor.org", "springer.com", "wiley.com",
		"bbc.com", "nytimes.com", "washingtonpost.com", "economist.com",
		"reuters.com", "apnews.com", "bloomberg.com", "ft.com",
		".edu", ".gov", ".ac.uk", ".ac.jp", ".edu.au",
	}
	statisticsDomains = []string{
		"statista.com", "census.gov", "bls.gov", "data.gov", "eurostat.ec.europa.eu",
		"ons.gov.uk", "who.int", "worldbank.org", "imf.org", "oecd.org",
		"pewresearch.org", "gallup.com", "data.worldbank.org",
	}
	recencyIndicators = regexp.MustCompile(`(?i)(202[3-5]|last year|this year|recent|latest|update|current|new study|new research)`)

	navPattern     = regexp.MustCompile(`(Home|Menu|Navigation|Search|Skip to content|Back to top|Share|Print|Email)`)
	consentPattern = regexp.MustCompile(`(?i)(cookie|privacy|GDPR|consent|accept|notification).*?(policy|notice|banner|settings|accept)`)
	urlPattern     = regexp.MustCompile(`https?://\S+`)

	whitespace   = regexp.MustCompile(`\s+`)
	nonWord      = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\s]`)
	paragraphSep = regexp.MustCompile(`\n\s*\n`)

	essentialIndicators = []string{
		"study", "research", "analysis", "survey", "data",
		"percent", "%", "statistic", "figure", "found",
		"according to", "evidence",
	}
	researchIndicators = []string{"study", "research", "analysis", "survey", "found", "according to"}
	statsIndicators    = []string{"percent", "%", "statistics", "data", "figure", "chart", "graph", "number"}
)

// Optimizer holds the per-session seen-content set.
type Optimizer struct {
	mu   sync.Mutex
	seen map[[sha256.Size]byte]struct{}
}

// New returns an optimizer with an empty seen set.
func New() *Optimizer {
	return &Optimizer{seen: map[[sha256.Size]byte]struct{}{}}
}

// Reset forgets every content seen so far.
func (o *Optimizer) Reset() {
	o.mu.Lock()
	o.seen = map[[sha256.Size]byte]struct{}{}
	o.mu.Unlock()
}

// IsRedundant reports whether content was already seen after normalisation.
// The first sighting is recorded and returns false. Content shorter than 50
// characters is always redundant.
func (o *Optimizer) IsRedundant(content string) bool {
	if utf8.RuneCountInString(content) < minContentLength {
		return true
	}
	key := sha256.Sum256([]byte(normalize(content)))

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.seen[key]; ok {
		return true
	}
	o.seen[key] = struct{}{}
	return false
}

func normalize(content string) string {
	n := strings.ToLower(content)
	n = nonWord.ReplaceAllString(n, "")
	n = whitespace.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// FilterBoilerplate strips navigation words, consent banners and bare URLs.
func FilterBoilerplate(content string) string {
	if content == "" {
		return ""
	}
	content = navPattern.ReplaceAllString(content, "")
	content = consentPattern.ReplaceAllString(content, "")
	content = urlPattern.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}

// LimitToEssentials keeps the first and last two paragraphs and fills the
// remaining budget with the best scoring middle paragraphs.
func LimitToEssentials(content string, maxLen int) string {
	if content == "" || len(content) <= maxLen {
		return content
	}

	paragraphs := paragraphSep.Split(content, -1)
	if len(paragraphs) <= 4 {
		return Truncate(strings.Join(paragraphs, "\n\n"), maxLen)
	}

	head := paragraphs[:2]
	tail := paragraphs[len(paragraphs)-2:]
	middle := paragraphs[2 : len(paragraphs)-2]

	type scored struct {
		score int
		index int
	}
	ranked := make([]scored, 0, len(middle))
	for i, p := range middle {
		ranked = append(ranked, scored{score: essentialScore(p), index: i})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	used := joinedLen(head) + joinedLen(tail) + 2
	var picked []string
	for _, r := range ranked {
		if len(picked) == 5 {
			break
		}
		p := middle[r.index]
		if used+len(p)+2 > maxLen {
			continue
		}
		picked = append(picked, p)
		used += len(p) + 2
	}

	out := make([]string, 0, len(head)+len(picked)+len(tail))
	out = append(out, head...)
	out = append(out, picked...)
	out = append(out, tail...)
	return Truncate(strings.Join(out, "\n\n"), maxLen)
}

func essentialScore(p string) int {
	lower := strings.ToLower(p)
	score := 0
	for _, ind := range essentialIndicators {
		if strings.Contains(lower, ind) {
			score++
		}
	}
	if len(p) >= 100 && len(p) <= 500 {
		score++
	}
	return score
}

func joinedLen(ps []string) int {
	if len(ps) == 0 {
		return 0
	}
	n := 2 * (len(ps) - 1)
	for _, p := range ps {
		n += len(p)
	}
	return n
}

// Truncate cuts s to at most maxLen bytes without splitting a rune.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// PrioritizeURLs orders urls by source-quality heuristics, keeping input
// order among equal scores.
func PrioritizeURLs(urls []string) []string {
	type scored struct {
		score int
		url   string
	}
	ranked := make([]scored, 0, len(urls))
	for _, u := range urls {
		ranked = append(ranked, scored{score: urlScore(u), url: u})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.url
	}
	return out
}

func urlScore(raw string) int {
	score := 0
	if parsed, err := url.Parse(raw); err == nil && parsed.Host != "" {
		host := strings.ToLower(parsed.Host)
		if hasAnySuffix(host, highQualityDomains) {
			score += 10
		}
		if hasAnySuffix(host, statisticsDomains) {
			score += 5
		}
	}
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "pdf") {
		score += 3
	}
	if strings.Contains(lower, "research") || strings.Contains(lower, "study") {
		score += 2
	}
	if strings.Contains(lower, "statistics") || strings.Contains(lower, "data") {
		score += 2
	}
	if strings.Contains(lower, "search") || strings.Contains(lower, "index") || strings.Contains(lower, "list") {
		score--
	}
	return score
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// EstimateQuality scores content between 0 and 1 on length, research and
// statistics vocabulary and recency markers.
func EstimateQuality(content string) float64 {
	if content == "" {
		return 0
	}

	quality := 0.0
	switch n := len(content); {
	case n >= 500 && n <= 10000:
		quality += 0.3
	case n > 10000:
		quality += 0.2
	default:
		quality += 0.1 * float64(n) / 500
	}

	lower := strings.ToLower(content)
	quality += min(0.3, 0.05*float64(countContained(lower, researchIndicators)))
	quality += min(0.2, 0.05*float64(countContained(lower, statsIndicators)))
	if recencyIndicators.MatchString(content) {
		quality += 0.2
	}
	return min(1.0, quality)
}

func countContained(s string, needles []string) int {
	n := 0
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			n++
		}
	}
	return n
}

// Thresholds of the sufficient-research gate.
const (
	MinAcademicSources   = 3
	MinStatisticsSources = 2
	MinSections          = 3
	MinSectionLength     = 500
)

// HasSufficientResearch reports whether enough material has been collected
// to stop fetching. Every threshold has to hold.
func HasSufficientResearch(s domain.ResearchSession) bool {
	academic := len(s.AcademicSources.ArxivPapers) +
		len(s.AcademicSources.DOIPapers) +
		len(s.AcademicSources.AcademicPDFs)
	if academic < MinAcademicSources {
		return false
	}
	if len(s.AcademicSources.StatisticsSources) < MinStatisticsSources {
		return false
	}
	if len(s.Sections) < MinSections {
		return false
	}

	substantial := 0
	for _, sec := range s.Sections {
		if utf8.RuneCountInString(sec.Content) >= MinSectionLength {
			substantial++
		}
	}
	return substantial >= MinSections
}
