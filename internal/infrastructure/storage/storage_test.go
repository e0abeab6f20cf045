package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ports"
)

func sampleSession(topic string, at time.Time) domain.ResearchSession {
	s := domain.NewResearchSession(topic, at)
	s.Title = "On " + topic
	s.Status = domain.StatusResearching
	s.Progress.CurrentStep = 4
	s.Sections["Intro"] = domain.Section{Subtopic: "Intro", Content: "body"}
	s.SectionOrder = []string{"Intro"}
	return s
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(filepath.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)
	ctx := context.Background()

	s := sampleSession("graphene", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, store.Save(ctx, s))

	s.Status = domain.StatusCompleted
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, "body", got.Sections["Intro"].Content)
	assert.True(t, s.CreatedAt.Equal(got.CreatedAt))

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)

	_, err = store.Load(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func openSQLite(t *testing.T) *Archive {
	t.Helper()
	a, err := OpenArchive(context.Background(), "sqlite", filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestArchiveUpsertAndLoad(t *testing.T) {
	t.Parallel()

	a := openSQLite(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	first := sampleSession("graphene", base)
	first.LastUpdated = base
	require.NoError(t, a.Save(ctx, first))

	first.Status = domain.StatusCompleted
	first.Progress.CurrentStep = 10
	first.LastUpdated = base.Add(time.Minute)
	require.NoError(t, a.Save(ctx, first))

	second := sampleSession("perovskites", base)
	second.LastUpdated = base.Add(30 * time.Second)
	require.NoError(t, a.Save(ctx, second))

	got, err := a.Load(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 10, got.Progress.CurrentStep)

	_, err = a.Load(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)

	rows, err := a.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, 10, rows[0].CurrentStep)
	assert.True(t, rows[0].UpdatedAt.Equal(base.Add(time.Minute)))

	rows, err = a.Recent(ctx, domain.StatusResearching, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "perovskites", rows[0].Topic)
}

type failingStore struct{}

func (failingStore) Save(context.Context, domain.ResearchSession) error {
	return errors.New("disk full")
}

func (failingStore) Load(context.Context, string) (domain.ResearchSession, error) {
	return domain.ResearchSession{}, errors.New("disk gone")
}

func TestChainFallsThrough(t *testing.T) {
	t.Parallel()

	files, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	archive := openSQLite(t)
	ctx := context.Background()

	chain := NewChain(nil, files, nil, archive)
	s := sampleSession("wind", time.Now())
	require.NoError(t, chain.Save(ctx, s))

	other := sampleSession("tidal", time.Now())
	require.NoError(t, archive.Save(ctx, other))

	got, err := chain.Load(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "tidal", got.Topic)

	_, err = chain.Load(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)

	broken := NewChain(nil, failingStore{}, files)
	assert.Error(t, broken.Save(ctx, s))
	got, err = broken.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "wind", got.Topic)
}
