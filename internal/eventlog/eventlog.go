// Package eventlog holds the observer-facing log of a research session: a
// streaming text buffer for generated output and an append-only list of
// structured entries.
package eventlog

import (
	"context"
	"maps"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
)

var ansiEscape = regexp.MustCompile(`\x1B(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)

type writingKey struct{}

// Observer is notified about new entries and completion.
type Observer interface {
	OnEntry(ctx context.Context, entry domain.LogEntry)
	OnComplete(ctx context.Context, metadata map[string]any)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) OnEntry(context.Context, domain.LogEntry)   {}
func (NopObserver) OnComplete(context.Context, map[string]any) {}

// Log is safe for concurrent use. Add is additionally guarded against
// reentrancy: a call made while an entry is being written on the same
// context chain is dropped.
type Log struct {
	observer Observer
	now      func() time.Time

	mu       sync.RWMutex
	buffer   strings.Builder
	entries  []domain.LogEntry
	complete bool
	metadata map[string]any
}

// New returns an empty log. A nil observer is replaced by NopObserver.
func New(observer Observer) *Log {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Log{observer: observer, now: time.Now}
}

// AddChunk appends streamed text to the buffer.
func (l *Log) AddChunk(chunk string) {
	l.mu.Lock()
	l.buffer.WriteString(chunk)
	l.mu.Unlock()
}

// Buffer returns everything streamed so far.
func (l *Log) Buffer() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.buffer.String()
}

// Writing reports whether ctx belongs to an in-progress Add.
func Writing(ctx context.Context) bool {
	v, _ := ctx.Value(writingKey{}).(bool)
	return v
}

// Add appends a structured entry and returns its id. ANSI escapes are
// stripped; blank messages and reentrant calls are ignored and return "".
func (l *Log) Add(ctx context.Context, message string, highLevel bool) string {
	if Writing(ctx) {
		return ""
	}
	message = strings.TrimSpace(ansiEscape.ReplaceAllString(message, ""))
	if message == "" {
		return ""
	}
	ctx = context.WithValue(ctx, writingKey{}, true)

	entry := domain.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: l.now(),
		Message:   message,
		HighLevel: highLevel,
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	l.observer.OnEntry(ctx, entry)
	return entry.ID
}

// Entries returns a copy of all entries in insertion order.
func (l *Log) Entries() []domain.LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.entries)
}

// Since returns the entries after the first n, for incremental polling.
func (l *Log) Since(n int) []domain.LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n >= len(l.entries) {
		return nil
	}
	return slices.Clone(l.entries[n:])
}

// MarkComplete flags the stream as finished and stores final metadata.
func (l *Log) MarkComplete(ctx context.Context, metadata map[string]any) {
	l.mu.Lock()
	l.complete = true
	l.metadata = maps.Clone(metadata)
	l.mu.Unlock()

	l.observer.OnComplete(context.WithValue(ctx, writingKey{}, true), metadata)
}

// Completed reports whether MarkComplete was called and with what metadata.
func (l *Log) Completed() (bool, map[string]any) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.complete, maps.Clone(l.metadata)
}
