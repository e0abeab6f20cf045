package articlestore

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
)

const indexFileName = "article_index.json"

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = errors.New("article not found")

type index struct {
	Articles    map[string]domain.ArticleRecord `json:"articles"`
	LastUpdated string                          `json:"last_updated"`
}

// Store is a content-addressed cache of fetched documents on disk. The index
// is held in memory and rewritten on every mutation.
type Store struct {
	dir string
	now func() time.Time

	mu    sync.RWMutex
	index index
}

// Open loads (or creates) the store rooted at dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create article dir: %w", err)
	}

	s := &Store{
		dir:   dir,
		now:   time.Now,
		index: index{Articles: map[string]domain.ArticleRecord{}},
	}

	raw, err := os.ReadFile(s.indexPath())
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.index.LastUpdated = s.now().Format(time.RFC3339)
		if err := s.saveIndexLocked(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("read article index: %w", err)
	default:
		if err := json.Unmarshal(raw, &s.index); err != nil {
			return nil, fmt.Errorf("decode article index: %w", err)
		}
		if s.index.Articles == nil {
			s.index.Articles = map[string]domain.ArticleRecord{}
		}
	}

	return s, nil
}

// ID is the stable hash used as the record id for url.
func ID(url string) string {
	sum := md5.Sum([]byte(strings.TrimSpace(url)))
	return hex.EncodeToString(sum[:])
}

// Store writes content and metadata for url and returns its id. Re-storing a
// url replaces content and metadata under the same id.
func (s *Store) Store(url, title, content, sourceType string, metadata map[string]any) (string, error) {
	id := ID(url)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(s.contentPath(id), []byte(content)); err != nil {
		return "", fmt.Errorf("write article content: %w", err)
	}

	meta := maps.Clone(metadata)
	if meta == nil {
		meta = map[string]any{}
	}
	record := domain.ArticleRecord{
		ID:         id,
		URL:        url,
		Title:      title,
		SourceType: sourceType,
		Timestamp:  float64(now.UnixNano()) / 1e9,
		DateAdded:  now.Format(time.RFC3339),
		Metadata:   meta,
	}
	s.index.Articles[id] = record
	s.index.LastUpdated = now.Format(time.RFC3339)

	if err := s.saveIndexLocked(); err != nil {
		return "", err
	}
	return id, nil
}

// Has reports whether url is cached.
func (s *Store) Has(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index.Articles[ID(url)]
	return ok
}

// Get returns the record for id.
func (s *Store) Get(id string) (domain.ArticleRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.index.Articles[id]
	if !ok {
		return domain.ArticleRecord{}, false
	}
	return cloneRecord(rec), true
}

// GetByURL returns the record cached for url.
func (s *Store) GetByURL(url string) (domain.ArticleRecord, bool) {
	return s.Get(ID(url))
}

// GetContent reads the content blob of id.
func (s *Store) GetContent(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := os.ReadFile(s.contentPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read article content: %w", err)
	}
	return string(raw), nil
}

// AttachSummary records a summary for id so later readers reuse it.
func (s *Store) AttachSummary(id, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.index.Articles[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Metadata == nil {
		rec.Metadata = map[string]any{}
	}
	now := s.now().Format(time.RFC3339)
	rec.Metadata["summary"] = summary
	rec.Metadata["summary_date"] = now
	s.index.Articles[id] = rec
	s.index.LastUpdated = now

	return s.saveIndexLocked()
}

// ByType lists records with the given source type, oldest first.
func (s *Store) ByType(sourceType string) []domain.ArticleRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ArticleRecord
	for _, rec := range s.index.Articles {
		if rec.SourceType == sourceType {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(n int) []domain.ArticleRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ArticleRecord, 0, len(s.index.Articles))
	for _, rec := range s.index.Articles {
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Len returns the number of cached records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index.Articles)
}

// Cleanup removes records older than maxAgeDays together with their blobs
// and returns how many were removed.
func (s *Store) Cleanup(maxAgeDays int) (int, error) {
	now := s.now()
	cutoff := float64(now.Add(-time.Duration(maxAgeDays)*24*time.Hour).UnixNano()) / 1e9

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.index.Articles {
		if rec.Timestamp >= cutoff {
			continue
		}
		if err := os.Remove(s.contentPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove article %s: %w", id, err)
		}
		delete(s.index.Articles, id)
		removed++
	}

	if removed > 0 {
		s.index.LastUpdated = now.Format(time.RFC3339)
		if err := s.saveIndexLocked(); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, indexFileName)
}

func (s *Store) contentPath(id string) string {
	return filepath.Join(s.dir, id+".txt")
}

func (s *Store) saveIndexLocked() error {
	raw, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return fmt.Errorf("encode article index: %w", err)
	}
	if err := writeFileAtomic(s.indexPath(), raw); err != nil {
		return fmt.Errorf("write article index: %w", err)
	}
	return nil
}

func cloneRecord(rec domain.ArticleRecord) domain.ArticleRecord {
	rec.Metadata = maps.Clone(rec.Metadata)
	return rec
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
