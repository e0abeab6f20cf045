package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/eventlog"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelError, levelFromString("ERROR"))
	assert.Equal(t, slog.LevelWarn, levelFromString(" warning "))
	assert.Equal(t, slog.LevelInfo, levelFromString("info"))
	assert.Equal(t, slog.LevelDebug, levelFromString(""))
}

func TestMirrorHandlerCopiesInfoAndAbove(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	events := eventlog.New(nil)
	logger := slog.New(NewMirrorHandler(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelWarn}), events)).
		With("component", "test")

	logger.Debug("hidden")
	logger.Info("Progress update", "step", 2, HighLevelKey, true)
	logger.Warn("search failed", "provider", "google")

	entries := events.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Progress update step=2", entries[0].Message)
	assert.True(t, entries[0].HighLevel)
	assert.Equal(t, "search failed provider=google", entries[1].Message)
	assert.False(t, entries[1].HighLevel)

	assert.NotContains(t, out.String(), "Progress update")
	assert.Contains(t, out.String(), "search failed")
}

func TestMirrorHandlerHighLevelViaWith(t *testing.T) {
	t.Parallel()

	events := eventlog.New(nil)
	var out bytes.Buffer
	logger := slog.New(NewMirrorHandler(slog.NewTextHandler(&out, nil), events)).With(HighLevelKey, true)

	logger.Info("Research complete")

	entries := events.Entries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].HighLevel)
}

type loggingObserver struct {
	logger *slog.Logger
}

func (o *loggingObserver) OnEntry(ctx context.Context, entry domain.LogEntry) {
	o.logger.InfoContext(ctx, "observed "+entry.Message)
}

func (o *loggingObserver) OnComplete(context.Context, map[string]any) {}

func TestMirrorHandlerDoesNotRecurse(t *testing.T) {
	t.Parallel()

	obs := &loggingObserver{}
	events := eventlog.New(obs)
	var out bytes.Buffer
	obs.logger = slog.New(NewMirrorHandler(slog.NewTextHandler(&out, nil), events))

	obs.logger.InfoContext(context.Background(), "hello")

	entries := events.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].Message)
	assert.Contains(t, out.String(), "observed hello")
}
