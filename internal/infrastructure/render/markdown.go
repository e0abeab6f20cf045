// Package render writes finished research documents to disk.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/document"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ports"
)

// MarkdownRenderer stores each document as "<dir>/<session id>.md".
type MarkdownRenderer struct {
	dir    string
	logger *slog.Logger
}

var _ ports.Renderer = (*MarkdownRenderer)(nil)

// NewMarkdownRenderer creates dir when missing.
func NewMarkdownRenderer(dir string, logger *slog.Logger) (*MarkdownRenderer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MarkdownRenderer{dir: dir, logger: logger.With("component", "render.markdown")}, nil
}

// Render writes doc.Markdown, composing it first when the document has none.
func (r *MarkdownRenderer) Render(ctx context.Context, sessionID string, doc domain.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if sessionID == "" || filepath.Base(sessionID) != sessionID {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}

	body := doc.Markdown
	if body == "" {
		body = document.Compose(doc)
	}

	path := filepath.Join(r.dir, sessionID+".md")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write markdown: %w", err)
	}

	r.logger.InfoContext(ctx, "Paper saved to "+path, "high_level", true, "bytes", len(body))
	return path, nil
}
