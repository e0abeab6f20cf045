package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

const (
	maxQueryChars   = 150
	shortQueryWords = 10
)

var alternativeSuffixes = []string{" overview", " research", " analysis"}

// Queries remembers what one session has already searched for.
type Queries struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewQueries returns an empty query log.
func NewQueries() *Queries {
	return &Queries{seen: map[string]struct{}{}}
}

// Prepare caps the query length and rewrites a repeated query into the first
// alternative form not yet searched. The returned query is marked as seen.
func (q *Queries) Prepare(ctx context.Context, logger *slog.Logger, query string) string {
	query = strings.TrimSpace(query)
	if len(query) > maxQueryChars {
		short := firstWords(query, shortQueryWords)
		logger.InfoContext(ctx, fmt.Sprintf("Query too long, shortening from '%s' to '%s'", query, short), "high_level", true)
		query = short
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, seen := q.seen[query]; seen {
		alt := query + alternativeSuffixes[len(alternativeSuffixes)-1]
		for _, suffix := range alternativeSuffixes {
			if _, used := q.seen[query+suffix]; !used {
				alt = query + suffix
				break
			}
		}
		logger.InfoContext(ctx, fmt.Sprintf("Already searched for '%s', trying alternative: '%s'", query, alt), "high_level", true)
		query = alt
	}
	q.seen[query] = struct{}{}
	return query
}

// Len reports how many distinct queries were issued.
func (q *Queries) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.seen)
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
