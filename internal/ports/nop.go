package ports

import (
	"context"
	"errors"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
)

// ErrSessionNotFound is returned by stores that hold no snapshot for an id.
var ErrSessionNotFound = errors.New("session not found")

// NopPaperSearcher finds nothing.
type NopPaperSearcher struct{}

func (NopPaperSearcher) SearchPapers(context.Context, string, int) ([]domain.Paper, error) {
	return nil, nil
}

// NopDOISearcher finds nothing.
type NopDOISearcher struct{}

func (NopDOISearcher) SearchDOI(context.Context, string, int) ([]domain.Paper, error) {
	return nil, nil
}

// NopEncyclopedia knows nothing.
type NopEncyclopedia struct{}

func (NopEncyclopedia) Lookup(context.Context, string) (string, error) {
	return "", nil
}

// NopNewsSearcher finds no headlines.
type NopNewsSearcher struct{}

func (NopNewsSearcher) SearchNews(context.Context, string, string) ([]domain.NewsArticle, error) {
	return nil, nil
}

// NopRenderer keeps the markdown in memory and reports no file.
type NopRenderer struct{}

func (NopRenderer) Render(context.Context, string, domain.Document) (string, error) {
	return "", nil
}

// NopSessionStore discards snapshots.
type NopSessionStore struct{}

func (NopSessionStore) Save(context.Context, domain.ResearchSession) error { return nil }

func (NopSessionStore) Load(context.Context, string) (domain.ResearchSession, error) {
	return domain.ResearchSession{}, ErrSessionNotFound
}

// NopNotifier drops digests.
type NopNotifier struct{}

func (NopNotifier) PublishDigest(context.Context, string) error { return nil }

var (
	_ PaperSearcher = NopPaperSearcher{}
	_ DOISearcher   = NopDOISearcher{}
	_ Encyclopedia  = NopEncyclopedia{}
	_ NewsSearcher  = NopNewsSearcher{}
	_ Renderer      = NopRenderer{}
	_ SessionStore  = NopSessionStore{}
	_ Notifier      = NopNotifier{}
)
