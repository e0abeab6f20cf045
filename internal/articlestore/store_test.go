package articlestore

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreIsIdempotentPerURL(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir())
	require.NoError(t, err)

	first, err := s.Store("https://example.org/a", "A", "first body", "web", map[string]any{"topic": "x"})
	require.NoError(t, err)
	second, err := s.Store("https://example.org/a", "A2", "second body", "web", nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, ID("https://example.org/a"), first)
	assert.Equal(t, 1, s.Len())

	content, err := s.GetContent(first)
	require.NoError(t, err)
	assert.Equal(t, "second body", content)

	rec, ok := s.GetByURL("https://example.org/a")
	require.True(t, ok)
	assert.Equal(t, "A2", rec.Title)
	assert.NotContains(t, rec.Metadata, "topic")
}

func TestStoreHasAndMissing(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir())
	require.NoError(t, err)

	assert.False(t, s.Has("https://example.org/missing"))
	_, err = s.GetContent(ID("https://example.org/missing"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.AttachSummary("nope", "x"), ErrNotFound)

	_, err = s.Store("https://example.org/present", "P", "body", "pdf", nil)
	require.NoError(t, err)
	assert.True(t, s.Has("https://example.org/present"))
}

func TestAttachSummaryPersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	id, err := s.Store("https://example.org/s", "S", "body", "web", nil)
	require.NoError(t, err)
	require.NoError(t, s.AttachSummary(id, "short summary"))

	reopened, err := Open(dir)
	require.NoError(t, err)
	rec, ok := reopened.Get(id)
	require.True(t, ok)
	assert.Equal(t, "short summary", rec.Summary())
	assert.NotEmpty(t, rec.Metadata["summary_date"])
}

func TestCleanupRemovesStaleRecords(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir())
	require.NoError(t, err)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	oldID, err := s.Store("https://example.org/old", "old", "old", "web", nil)
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(40 * 24 * time.Hour) }
	_, err = s.Store("https://example.org/new", "new", "new", "web", nil)
	require.NoError(t, err)

	removed, err := s.Cleanup(30)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, s.Has("https://example.org/old"))
	assert.True(t, s.Has("https://example.org/new"))

	_, err = s.GetContent(oldID)
	assert.ErrorIs(t, err, ErrNotFound)

	removed, err = s.Cleanup(30)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestByTypeAndRecent(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir())
	require.NoError(t, err)

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, typ := range []string{"web", "pdf", "web"} {
		s.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		_, err := s.Store(fmt.Sprintf("https://example.org/%d", i), fmt.Sprint(i), "c", typ, nil)
		require.NoError(t, err)
	}

	web := s.ByType("web")
	require.Len(t, web, 2)
	assert.Equal(t, "0", web[0].Title)

	recent := s.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "2", recent[0].Title)
	assert.Equal(t, "1", recent[1].Title)
}

func TestConcurrentStores(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			url := fmt.Sprintf("https://example.org/%d", i%5)
			id, err := s.Store(url, "t", "content", "web", nil)
			if err == nil {
				_ = s.AttachSummary(id, "sum")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, s.Len())
}
