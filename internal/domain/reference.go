package domain

// SourceReference is one bibliographic entry of a session. URL is the
// identity key; CitationNumber is zero until the registry assigns it.
type SourceReference struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	URL             string   `json:"url"`
	Authors         []string `json:"authors"`
	PublicationDate string   `json:"publication_date,omitempty"`
	SourceType      string   `json:"source_type"`
	Publisher       string   `json:"publisher,omitempty"`
	Journal         string   `json:"journal,omitempty"`
	DOI             string   `json:"doi,omitempty"`
	CitationNumber  int      `json:"citation_number,omitempty"`
	Relevance       float64  `json:"relevance_score"`
	Quality         float64  `json:"quality_score"`
	Recency         float64  `json:"recency_score"`
	Authority       float64  `json:"authority_score"`
}

// Source type labels shared by research units, the registry and the URL classifier.
const (
	SourceWeb        = "web"
	SourceArxiv      = "arxiv"
	SourceJournal    = "journal"
	SourceBook       = "book"
	SourceWikipedia  = "wikipedia"
	SourcePDF        = "pdf"
	SourceAcademic   = "academic"
	SourceStatistics = "statistics"
	SourceDOIPaper   = "doi_paper"
	SourceNews       = "news"
)
