package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// New creates a console slog.Logger with provided level and format strings.
// format is "json" or anything else for text.
func New(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFromString(level)}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// HighLevelKey marks a record as a milestone worth showing to end users.
const HighLevelKey = "high_level"

// Sink receives mirrored log lines.
type Sink interface {
	Add(ctx context.Context, message string, highLevel bool) string
}

// MirrorHandler passes every record to the wrapped handler and copies
// records at Info and above into a Sink.
type MirrorHandler struct {
	inner     slog.Handler
	sink      Sink
	highLevel bool
}

var _ slog.Handler = (*MirrorHandler)(nil)

// NewMirrorHandler wraps inner.
func NewMirrorHandler(inner slog.Handler, sink Sink) *MirrorHandler {
	return &MirrorHandler{inner: inner, sink: sink}
}

func (h *MirrorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo || h.inner.Enabled(ctx, level)
}

func (h *MirrorHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.inner.Enabled(ctx, r.Level) {
		err = h.inner.Handle(ctx, r)
	}
	if r.Level < slog.LevelInfo {
		return err
	}

	highLevel := h.highLevel
	var b strings.Builder
	b.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == HighLevelKey {
			highLevel = highLevel || (a.Value.Kind() == slog.KindBool && a.Value.Bool())
			return true
		}
		if a.Key == "component" {
			return true
		}
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())
		return true
	})
	h.sink.Add(ctx, b.String(), highLevel)
	return err
}

func (h *MirrorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &MirrorHandler{
		inner:     h.inner.WithAttrs(attrs),
		sink:      h.sink,
		highLevel: h.highLevel,
	}
	for _, a := range attrs {
		if a.Key == HighLevelKey && a.Value.Kind() == slog.KindBool && a.Value.Bool() {
			next.highLevel = true
		}
	}
	return next
}

func (h *MirrorHandler) WithGroup(name string) slog.Handler {
	return &MirrorHandler{
		inner:     h.inner.WithGroup(name),
		sink:      h.sink,
		highLevel: h.highLevel,
	}
}
