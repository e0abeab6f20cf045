// Package document drafts the generated parts of a research paper (tables,
// abstract, conclusion) and assembles the final markdown.
package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ports"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/session"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/textparse"
)

const (
	tableInputLimit  = 2500
	maxTableSections = 2
	minTableSections = 2
)

// TableSpec is the structured form the model is asked to return.
type TableSpec struct {
	Caption string     `json:"caption"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Writer drafts document parts through a text generator.
type Writer struct {
	querier ports.Querier
}

// NewWriter returns a writer backed by q.
func NewWriter(q ports.Querier) *Writer {
	return &Writer{querier: q}
}

func (w *Writer) ask(ctx context.Context, sc *session.Context, prompt string) (string, error) {
	out, err := w.querier.Query(ctx, prompt)
	if err != nil {
		return "", err
	}
	sc.Events.AddChunk(out)
	return strings.TrimSpace(out), nil
}

// IsTableCandidate reports whether content looks list- or figure-heavy
// enough to be worth tabulating.
func IsTableCandidate(content string) bool {
	lower := strings.ToLower(content)
	return strings.Count(content, "- ") > 5 ||
		strings.Count(content, ":") > 5 ||
		strings.Count(content, "%") > 3 ||
		strings.Contains(lower, " comparison ") ||
		strings.Contains(lower, " versus ") ||
		strings.Contains(lower, " vs. ")
}

// Tables builds data tables from the most tabular sections and from every
// statistics source. Fewer than two sections yield no tables.
func (w *Writer) Tables(ctx context.Context, sc *session.Context, sections []domain.Section, stats []domain.Material) []domain.Table {
	log := sc.Logger.With("component", "document.tables")
	if len(sections) < minTableSections {
		log.InfoContext(ctx, "Not enough sections to generate comparative tables", "high_level", true)
		return []domain.Table{}
	}

	log.InfoContext(ctx, "Generating tables for data presentation", "high_level", true)
	var candidates []domain.Section
	for _, sec := range sections {
		if IsTableCandidate(sec.Content) {
			candidates = append(candidates, sec)
		}
	}
	if len(candidates) == 0 {
		log.InfoContext(ctx, "No suitable content identified for tabular representation", "high_level", true)
		return []domain.Table{}
	}

	tables := []domain.Table{}
	for _, sec := range candidates[:min(len(candidates), maxTableSections)] {
		if t, ok := w.Table(ctx, sc, sec.Content, sec.Subtopic); ok {
			tables = append(tables, t)
			log.InfoContext(ctx, "Generated table for section: "+sec.Subtopic, "high_level", true)
		}
	}
	for _, m := range stats {
		if t, ok := w.Table(ctx, sc, m.Content, m.Title); ok {
			tables = append(tables, t)
			log.InfoContext(ctx, "Generated table from statistics source: "+m.Title, "high_level", true)
		}
	}
	log.InfoContext(ctx, fmt.Sprintf("Generated %d tables for the research paper", len(tables)), "high_level", true)
	return tables
}

// Table asks the model to tabulate text. A failed call falls back to a
// generic component table; an answer without headers or rows is dropped.
func (w *Writer) Table(ctx context.Context, sc *session.Context, text, subject string) (domain.Table, bool) {
	prompt := fmt.Sprintf(`You are a research assistant creating a data table for a research paper on "%s".
Based on the following text, create a table that organizes the information effectively.

TEXT:
%s

Create a table with 2-5 columns and 3-10 rows with meaningful headers and a descriptive caption.
Return a JSON object with the keys "caption", "headers" (array of strings) and "rows" (array of arrays of strings).`,
		subject, clip(text, tableInputLimit))

	resp, err := w.ask(ctx, sc, prompt)
	if err != nil {
		sc.Logger.WarnContext(ctx, "table generation failed, using fallback", "subject", subject, "error", err)
		return tableFrom(FallbackTable(subject), subject), true
	}

	var spec TableSpec
	if err := textparse.Decode(resp, &spec); err != nil {
		spec = extractTable(resp)
	}
	if spec.Caption == "" {
		spec.Caption = "Data table related to " + subject
	}
	if len(spec.Headers) == 0 || len(spec.Rows) == 0 {
		return domain.Table{}, false
	}
	return tableFrom(spec, subject), true
}

// extractTable recovers caption and headers from malformed output. Rows
// cannot be recovered reliably, so the result is usually discarded.
func extractTable(text string) TableSpec {
	var spec TableSpec
	if caps := textparse.StringValues(text, "caption"); len(caps) > 0 {
		spec.Caption = caps[0]
	}
	return spec
}

func tableFrom(spec TableSpec, subject string) domain.Table {
	return domain.Table{Title: spec.Caption, Markdown: TableMarkdown(spec), Source: subject}
}

// FallbackTable is used when the model cannot be reached.
func FallbackTable(subject string) TableSpec {
	return TableSpec{
		Caption: "Key components of " + subject,
		Headers: []string{"Aspect", "Description", "Importance"},
		Rows: [][]string{
			{subject + " Component 1", "Primary element", "High"},
			{subject + " Component 2", "Secondary element", "Medium"},
			{subject + " Component 3", "Supporting element", "Medium"},
		},
	}
}

// TableMarkdown renders spec as a pipe table followed by its caption.
func TableMarkdown(spec TableSpec) string {
	if len(spec.Headers) == 0 || len(spec.Rows) == 0 {
		return ""
	}
	var b strings.Builder
	writeRow(&b, spec.Headers)
	seps := make([]string, len(spec.Headers))
	for i := range seps {
		seps[i] = "---"
	}
	b.WriteString("| " + strings.Join(seps, " | ") + " |\n")
	for _, row := range spec.Rows {
		cells := make([]string, len(spec.Headers))
		copy(cells, row)
		writeRow(&b, cells)
	}
	if spec.Caption != "" {
		fmt.Fprintf(&b, "\n*%s*\n", spec.Caption)
	}
	return b.String()
}

func writeRow(b *strings.Builder, cells []string) {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = strings.ReplaceAll(strings.TrimSpace(c), "|", `\|`)
	}
	b.WriteString("| " + strings.Join(escaped, " | ") + " |\n")
}

func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
