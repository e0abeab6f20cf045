package ports

import (
	"context"
	"time"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
)

// Fetcher scrapes a single URL into plain text. An empty string signals
// failure; implementations never return errors to the caller.
type Fetcher interface {
	Fetch(ctx context.Context, url string) string
}

// Searcher runs a web search. An empty slice means the query is exhausted.
type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.SearchResult, error)
}

// Querier sends a prompt to a text-generation model.
type Querier interface {
	Query(ctx context.Context, prompt string) (string, error)
}

// PaperSearcher queries a preprint index such as arXiv.
type PaperSearcher interface {
	SearchPapers(ctx context.Context, query string, limit int) ([]domain.Paper, error)
}

// DOISearcher queries a DOI registry for published papers.
type DOISearcher interface {
	SearchDOI(ctx context.Context, query string, limit int) ([]domain.Paper, error)
}

// NewsSearcher lists news headlines for a query inside a region.
type NewsSearcher interface {
	SearchNews(ctx context.Context, query, region string) ([]domain.NewsArticle, error)
}

// Encyclopedia returns background text for a subject, or "" when unknown.
type Encyclopedia interface {
	Lookup(ctx context.Context, subject string) (string, error)
}

// Renderer turns a finished document into an output file and returns its path.
type Renderer interface {
	Render(ctx context.Context, sessionID string, doc domain.Document) (string, error)
}

// SessionStore persists full session snapshots.
type SessionStore interface {
	Save(ctx context.Context, session domain.ResearchSession) error
	Load(ctx context.Context, id string) (domain.ResearchSession, error)
}

// Notifier streams completion digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when recurring jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
