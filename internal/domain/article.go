package domain

import "time"

// ArticleRecord is the cached metadata of a fetched document. Content lives
// in a separate blob keyed by ID.
type ArticleRecord struct {
	ID         string         `json:"id"`
	URL        string         `json:"url"`
	Title      string         `json:"title"`
	SourceType string         `json:"source_type"`
	Timestamp  float64        `json:"timestamp"`
	DateAdded  string         `json:"date_added"`
	Metadata   map[string]any `json:"metadata"`
}

// Summary returns the lazily attached summary, if any.
func (a ArticleRecord) Summary() string {
	if a.Metadata == nil {
		return ""
	}
	s, _ := a.Metadata["summary"].(string)
	return s
}

// StoredAt converts the unix timestamp back to time.Time.
func (a ArticleRecord) StoredAt() time.Time {
	sec := int64(a.Timestamp)
	nsec := int64((a.Timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// Material is one accepted source fed into a section or an insight summary.
type Material struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Source     string  `json:"source"`
	Content    string  `json:"content"`
	Summary    string  `json:"summary"`
	SourceType string  `json:"source_type"`
	ArticleID  string  `json:"article_id,omitempty"`
	Relevance  float64 `json:"relevance"`
}

// Paper is a bibliographic search hit from arXiv or a DOI index.
type Paper struct {
	ArxivID   string   `json:"arxiv_id,omitempty"`
	DOI       string   `json:"doi,omitempty"`
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Published string   `json:"published"`
	Journal   string   `json:"journal,omitempty"`
	URL       string   `json:"url"`
	PDFURL    string   `json:"pdf_url,omitempty"`
	Abstract  string   `json:"abstract,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	Content   string   `json:"content,omitempty"`
	ArticleID string   `json:"article_id,omitempty"`
}

// SearchResult is a single hit returned by a web search provider.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// NewsArticle is one headline from a news index.
type NewsArticle struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Media       string `json:"media"`
	Description string `json:"desc"`
	Date        string `json:"date"`
}
