// Package textparse pulls structured values out of free-form model output.
package textparse

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoStructuredData is returned when no candidate decodes.
var ErrNoStructuredData = errors.New("no structured data found")

var (
	jsonFence  = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	plainFence = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
	listItem   = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
)

// Candidates returns the substrings worth decoding, in order: a ```json
// fence, a plain ``` fence, then the slice between the first opening and
// last closing bracket of each kind.
func Candidates(text string) []string {
	var out []string
	if m := jsonFence.FindStringSubmatch(text); m != nil {
		out = append(out, m[1])
	}
	if m := plainFence.FindStringSubmatch(text); m != nil {
		out = append(out, m[1])
	}
	for _, pair := range [][2]string{{"[", "]"}, {"{", "}"}} {
		start := strings.Index(text, pair[0])
		end := strings.LastIndex(text, pair[1])
		if start >= 0 && end > start {
			out = append(out, text[start:end+1])
		}
	}
	return out
}

// Decode unmarshals the first candidate of text that fits into v.
func Decode(text string, v any) error {
	var lastErr error
	for _, c := range Candidates(text) {
		if err := json.Unmarshal([]byte(c), v); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("decode structured text: %w", errors.Join(ErrNoStructuredData, lastErr))
	}
	return ErrNoStructuredData
}

// StringValues extracts every "key": "value" pair for key with a regex, for
// output too broken to decode.
func StringValues(text, key string) []string {
	re := regexp.MustCompile(`"` + regexp.QuoteMeta(key) + `"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if v := strings.TrimSpace(m[1]); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// StringList decodes a JSON array of strings, falling back to bullet or
// numbered list lines.
func StringList(text string) []string {
	var items []string
	if err := Decode(text, &items); err == nil {
		return nonEmpty(items)
	}

	items = nil
	for _, line := range strings.Split(text, "\n") {
		if m := listItem.FindStringSubmatch(line); m != nil {
			items = append(items, strings.Trim(m[1], `"' `))
		}
	}
	return nonEmpty(items)
}

// LooksStructured reports whether text seems to carry JSON rather than prose.
func LooksStructured(text string) bool {
	t := strings.TrimSpace(text)
	return strings.HasPrefix(t, "[") || strings.HasPrefix(t, "{") || strings.HasPrefix(t, "```")
}

func nonEmpty(items []string) []string {
	out := items[:0]
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
