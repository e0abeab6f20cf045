package domain

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates the lifecycle of a research session.
type SessionStatus string

const (
	StatusInitialized SessionStatus = "initialized"
	StatusResearching SessionStatus = "researching"
	StatusCompleted   SessionStatus = "completed"
	StatusError       SessionStatus = "error"
)

// CanAdvance reports whether moving to next keeps the lifecycle forward-only.
func (s SessionStatus) CanAdvance(next SessionStatus) bool {
	switch s {
	case StatusInitialized:
		return next == StatusResearching
	case StatusResearching:
		return next == StatusCompleted || next == StatusError
	default:
		return false
	}
}

// Terminal reports whether no further transitions are allowed.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Progress is the step/subtask snapshot shown to observers.
type Progress struct {
	CurrentStep       int      `json:"current_step"`
	MaxSteps          int      `json:"max_steps"`
	StepName          string   `json:"step_name"`
	StepDetails       string   `json:"step_details"`
	Subtasks          []string `json:"subtasks"`
	CompletedSubtasks float64  `json:"completed_subtasks"`
	AnalyzingCount    int      `json:"analyzing_count"`
}

// Clone copies the subtask slice.
func (p Progress) Clone() Progress {
	p.Subtasks = slices.Clone(p.Subtasks)
	return p
}

// URLCounters aggregates scrape instrumentation for one run.
type URLCounters struct {
	TotalScraped  int            `json:"total_urls_scraped"`
	TotalTracked  int            `json:"total_urls_tracked"`
	Wikipedia     int            `json:"wikipedia_count"`
	Arxiv         int            `json:"arxiv_count"`
	AcademicPDF   int            `json:"academic_pdf_count"`
	News          int            `json:"news_count"`
	Statistics    int            `json:"stats_sources_count"`
	DOI           int            `json:"doi_papers_count"`
	WebPage       int            `json:"web_page_count"`
	FailedScrapes int            `json:"failed_scrapes"`
	Sources       map[string]int `json:"url_sources"`
	LastUpdated   time.Time      `json:"last_updated"`
}

// Clone copies the domain histogram.
func (c URLCounters) Clone() URLCounters {
	c.Sources = maps.Clone(c.Sources)
	if c.Sources == nil {
		c.Sources = map[string]int{}
	}
	return c
}

// Subtopic is a planned section of the document.
type Subtopic struct {
	Name        string   `json:"subtopic"`
	Queries     []string `json:"search_queries"`
	Description string   `json:"description,omitempty"`
	Core        bool     `json:"core,omitempty"`
}

// Section is the researched content for one subtopic.
type Section struct {
	Subtopic          string      `json:"subtopic"`
	Content           string      `json:"content"`
	Sources           []string    `json:"sources"`
	ResearchMaterials []Material  `json:"research_materials"`
	ArticleIDs        []string    `json:"article_ids"`
	WebPagesAdded     int         `json:"web_pages_added"`
	URLTracking       URLCounters `json:"url_tracking"`
}

// TopicAnalysis is the outcome of classifying the topic.
type TopicAnalysis struct {
	IsEvent        bool     `json:"is_event"`
	Title          string   `json:"title"`
	ConceptQueries []string `json:"concept_queries"`
	EventQueries   []string `json:"event_queries,omitempty"`
	KeyComponents  []string `json:"key_components"`
	Regions        []string `json:"regions,omitempty"`
	RegionCode     string   `json:"region_code"`
	TimeSense      string   `json:"time_sensitivity,omitempty"`
	Reasoning      string   `json:"reasoning"`

	NewsArticles []NewsArticle `json:"news_articles,omitempty"`
}

// Clone returns a copy that shares no slices with a.
func (a TopicAnalysis) Clone() TopicAnalysis {
	out := a
	out.ConceptQueries = slices.Clone(a.ConceptQueries)
	out.EventQueries = slices.Clone(a.EventQueries)
	out.KeyComponents = slices.Clone(a.KeyComponents)
	out.Regions = slices.Clone(a.Regions)
	out.NewsArticles = slices.Clone(a.NewsArticles)
	return out
}

// AcademicSources groups the accepted scholarly and statistical sources.
type AcademicSources struct {
	ArxivPapers       []Paper    `json:"arxiv_papers"`
	DOIPapers         []Paper    `json:"doi_papers"`
	AcademicPDFs      []Material `json:"academic_pdfs"`
	StatisticsSources []Material `json:"statistics_sources"`
}

// PaperSummary pairs a title with its generated summary.
type PaperSummary struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Insights merges the academic research findings.
type Insights struct {
	LiteratureReview string         `json:"literature_review"`
	Citations        []string       `json:"citations"`
	PaperSummaries   []PaperSummary `json:"paper_summaries"`
	ArticleIDs       []string       `json:"article_ids"`
}

// Table is a markdown table derived from section or statistics content.
type Table struct {
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
	Source   string `json:"source"`
}

// ErrorEntry is one recorded failure with its stack trace.
type ErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Error     string    `json:"error"`
	Trace     string    `json:"traceback"`
}

// ResearchSession is the full persisted snapshot of one pipeline run.
type ResearchSession struct {
	ID                string             `json:"id"`
	Topic             string             `json:"topic"`
	Title             string             `json:"title"`
	Status            SessionStatus      `json:"status"`
	CreatedAt         time.Time          `json:"created_at"`
	LastUpdated       time.Time          `json:"last_updated"`
	Progress          Progress           `json:"progress"`
	Analysis          TopicAnalysis      `json:"event_analysis"`
	SearchComponents  []string           `json:"search_components"`
	Subtopics         []Subtopic         `json:"subtopics"`
	AcademicSources   AcademicSources    `json:"academic_sources"`
	Insights          Insights           `json:"academic_insights"`
	Sections          map[string]Section `json:"research_results"`
	SectionOrder      []string           `json:"section_order"`
	Tables            []Table            `json:"tables"`
	Abstract          string             `json:"abstract"`
	Conclusion        string             `json:"conclusion"`
	Markdown          string             `json:"markdown"`
	MarkdownFile      string             `json:"markdown_file"`
	References        []SourceReference  `json:"references"`
	ReferencesSection string             `json:"references_section"`
	URLTracking       URLCounters        `json:"url_tracking"`
	Errors            []ErrorEntry       `json:"errors"`
}

// NewResearchSession returns a fresh session in the initialized state.
func NewResearchSession(topic string, now time.Time) ResearchSession {
	return ResearchSession{
		ID:          uuid.NewString(),
		Topic:       topic,
		Status:      StatusInitialized,
		CreatedAt:   now,
		LastUpdated: now,
		Progress:    Progress{MaxSteps: 10, StepName: "Initializing", Subtasks: []string{}},
		Sections:    map[string]Section{},
		URLTracking: URLCounters{Sources: map[string]int{}},
	}
}

// OrderedSections returns sections in the order they were added.
func (s ResearchSession) OrderedSections() []Section {
	out := make([]Section, 0, len(s.SectionOrder))
	for _, name := range s.SectionOrder {
		if sec, ok := s.Sections[name]; ok {
			out = append(out, sec)
		}
	}
	return out
}

// PutSection inserts or replaces a section while keeping insertion order.
func (s *ResearchSession) PutSection(sec Section) {
	if s.Sections == nil {
		s.Sections = map[string]Section{}
	}
	if _, ok := s.Sections[sec.Subtopic]; !ok {
		s.SectionOrder = append(s.SectionOrder, sec.Subtopic)
	}
	s.Sections[sec.Subtopic] = sec
}

// Clone returns a copy that shares no mutable containers with s.
func (s ResearchSession) Clone() ResearchSession {
	out := s
	out.Progress = s.Progress.Clone()
	out.Analysis = s.Analysis.Clone()
	out.SearchComponents = slices.Clone(s.SearchComponents)
	out.Subtopics = slices.Clone(s.Subtopics)
	out.AcademicSources = AcademicSources{
		ArxivPapers:       slices.Clone(s.AcademicSources.ArxivPapers),
		DOIPapers:         slices.Clone(s.AcademicSources.DOIPapers),
		AcademicPDFs:      slices.Clone(s.AcademicSources.AcademicPDFs),
		StatisticsSources: slices.Clone(s.AcademicSources.StatisticsSources),
	}
	out.Insights = Insights{
		LiteratureReview: s.Insights.LiteratureReview,
		Citations:        slices.Clone(s.Insights.Citations),
		PaperSummaries:   slices.Clone(s.Insights.PaperSummaries),
		ArticleIDs:       slices.Clone(s.Insights.ArticleIDs),
	}
	out.Sections = maps.Clone(s.Sections)
	if out.Sections == nil {
		out.Sections = map[string]Section{}
	}
	out.SectionOrder = slices.Clone(s.SectionOrder)
	out.Tables = slices.Clone(s.Tables)
	out.References = slices.Clone(s.References)
	out.URLTracking = s.URLTracking.Clone()
	out.Errors = slices.Clone(s.Errors)
	return out
}

// LogEntry is one structured event exposed through the status surface.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	HighLevel bool      `json:"high_level"`
}

// StatusReport is the pull-style view consumed by external observers.
type StatusReport struct {
	Status      SessionStatus `json:"status"`
	Logs        []LogEntry    `json:"logs"`
	Progress    Progress      `json:"progress"`
	URLTracking URLCounters   `json:"url_tracking"`
	WordCount   int           `json:"word_count"`
}

// Document is everything the renderer needs to produce the final output.
type Document struct {
	Topic      string
	Title      string
	Abstract   string
	Sections   []Section
	Conclusion string
	Insights   Insights
	Tables     []Table
	Papers     []Paper
	References string
	Markdown   string
	Date       time.Time
}
