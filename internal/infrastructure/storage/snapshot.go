// Package storage persists research session snapshots as JSON files and,
// optionally, in a SQL archive.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ports"
)

// ErrInvalidID is returned for ids that would escape the snapshot directory.
var ErrInvalidID = errors.New("invalid session id")

// FileStore writes one "<id>.json" file per session.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

var _ ports.SessionStore = (*FileStore)(nil)

// NewFileStore creates dir when missing.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Save replaces the snapshot atomically.
func (s *FileStore) Save(_ context.Context, session domain.ResearchSession) error {
	path, err := s.path(session.ID)
	if err != nil {
		return err
	}

	raw, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(path, raw); err != nil {
		return fmt.Errorf("write session %s: %w", session.ID, err)
	}
	return nil
}

// Load reads the snapshot or returns ports.ErrSessionNotFound.
func (s *FileStore) Load(_ context.Context, id string) (domain.ResearchSession, error) {
	path, err := s.path(id)
	if err != nil {
		return domain.ResearchSession{}, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ResearchSession{}, ports.ErrSessionNotFound
		}
		return domain.ResearchSession{}, fmt.Errorf("read session %s: %w", id, err)
	}

	var session domain.ResearchSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.ResearchSession{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return session, nil
}

func (s *FileStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// Chain saves to every store and loads from the first one that has the
// session.
type Chain struct {
	stores []ports.SessionStore
	logger *slog.Logger
}

var _ ports.SessionStore = (*Chain)(nil)

// NewChain skips nil stores.
func NewChain(logger *slog.Logger, stores ...ports.SessionStore) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Chain{logger: logger.With("component", "storage.chain")}
	for _, st := range stores {
		if st != nil {
			c.stores = append(c.stores, st)
		}
	}
	return c
}

// Save writes through all stores and joins their errors.
func (c *Chain) Save(ctx context.Context, session domain.ResearchSession) error {
	var errs []error
	for _, st := range c.stores {
		if err := st.Save(ctx, session); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Load falls through on ports.ErrSessionNotFound and on read failures.
func (c *Chain) Load(ctx context.Context, id string) (domain.ResearchSession, error) {
	var lastErr error = ports.ErrSessionNotFound
	for _, st := range c.stores {
		session, err := st.Load(ctx, id)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, ports.ErrSessionNotFound) {
			c.logger.WarnContext(ctx, "session load failed, trying next store", "id", id, "error", err)
			lastErr = err
		}
	}
	return domain.ResearchSession{}, lastErr
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
