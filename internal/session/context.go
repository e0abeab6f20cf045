// Package session holds the per-run context shared by every research unit:
// the session snapshot plus the registries, trackers and caches that belong
// to one pipeline run.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/articlestore"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/citation"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/eventlog"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/logging"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/optimizer"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ports"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/progress"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/urltrack"
)

// MaxSteps is the length of the research pipeline.
const MaxSteps = 10

// Deps are the process-wide pieces a session is built from.
type Deps struct {
	Fetcher  ports.Fetcher
	Articles *articlestore.Store
	Logger   *slog.Logger
	Style    citation.Style
	Observer eventlog.Observer
	Now      func() time.Time
}

// Context is passed by pointer into every component taking part in a run.
// Its stores are individually synchronised; the session snapshot is guarded
// by its own mutex.
type Context struct {
	Logger    *slog.Logger
	Events    *eventlog.Log
	Progress  *progress.Tracker
	URLs      *urltrack.Tracker
	Citations *citation.Registry
	Optimizer *optimizer.Optimizer
	Queries   *Queries
	Articles  *articlestore.Store

	now func() time.Time

	mu   sync.RWMutex
	data domain.ResearchSession
}

// New starts a fresh session for topic.
func New(topic string, deps Deps) *Context {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	base := deps.Logger
	if base == nil {
		base = slog.Default()
	}

	events := eventlog.New(deps.Observer)
	data := domain.NewResearchSession(topic, now())
	logger := slog.New(logging.NewMirrorHandler(base.Handler(), events)).With("session", data.ID)

	return &Context{
		Logger:    logger,
		Events:    events,
		Progress:  progress.NewTracker(MaxSteps),
		URLs:      urltrack.New(deps.Fetcher, logger.With("component", "url_tracker")),
		Citations: citation.NewRegistry(deps.Style),
		Optimizer: optimizer.New(),
		Queries:   NewQueries(),
		Articles:  deps.Articles,
		now:       now,
		data:      data,
	}
}

// ID returns the session id.
func (c *Context) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.ID
}

// Topic returns the research topic.
func (c *Context) Topic() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Topic
}

// Now returns the session clock.
func (c *Context) Now() time.Time {
	return c.now()
}

// Update applies fn to the session under the write lock.
func (c *Context) Update(fn func(s *domain.ResearchSession)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.data)
	c.data.LastUpdated = c.now()
}

// Snapshot returns a detached copy of the session with the live progress,
// URL counters and references folded in.
func (c *Context) Snapshot() domain.ResearchSession {
	c.mu.RLock()
	out := c.data.Clone()
	c.mu.RUnlock()

	out.Progress = c.Progress.Snapshot()
	out.URLTracking = c.URLs.Snapshot()
	out.References = c.Citations.References()
	return out
}

// Transition moves the session status forward. Backward or repeated moves
// are rejected.
func (c *Context) Transition(next domain.SessionStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.data.Status.CanAdvance(next) {
		return fmt.Errorf("transition %s -> %s: %w", c.data.Status, next, ErrInvalidTransition)
	}
	c.data.Status = next
	c.data.LastUpdated = c.now()
	return nil
}

// RecordError appends an entry with the current stack to the error log.
func (c *Context) RecordError(ctx context.Context, message string, err error) {
	entry := domain.ErrorEntry{
		Timestamp: c.now(),
		Message:   message,
		Trace:     string(debug.Stack()),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	c.Update(func(s *domain.ResearchSession) {
		s.Errors = append(s.Errors, entry)
	})
	c.Logger.ErrorContext(ctx, message, "error", entry.Error)
}

// Status builds the pull-style report consumed by observers.
func (c *Context) Status() domain.StatusReport {
	snap := c.Snapshot()
	return domain.StatusReport{
		Status:      snap.Status,
		Logs:        c.Events.Entries(),
		Progress:    snap.Progress,
		URLTracking: snap.URLTracking,
		WordCount:   WordCount(snap),
	}
}

// WordCount counts the words of the rendered document, or of the drafted
// parts while the document is not assembled yet.
func WordCount(s domain.ResearchSession) int {
	if s.Markdown != "" {
		return len(strings.Fields(s.Markdown))
	}
	n := len(strings.Fields(s.Abstract)) + len(strings.Fields(s.Conclusion))
	for _, sec := range s.Sections {
		n += len(strings.Fields(sec.Content))
	}
	return n
}
