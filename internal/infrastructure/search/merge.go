package search

import (
	"strings"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
)

const (
	mergedMaxResults = 10
	minTitleLength   = 5
)

var skipTitleKeywords = []string{
	"login", "sign up", "register", "shopping", "buy now", "promotion",
	"% off", "discount", "free", "shipping", "add to cart",
}

// mergeResults concatenates batches in order, keeping the first hit per
// link and dropping storefront or sign-in pages and near-empty titles.
func mergeResults(batches ...[]domain.SearchResult) []domain.SearchResult {
	seen := map[string]struct{}{}
	var out []domain.SearchResult
	for _, batch := range batches {
		for _, r := range batch {
			if len(out) == mergedMaxResults {
				return out
			}
			r.Title = strings.TrimSpace(r.Title)
			if !isAbsolute(r.Link) || len(r.Title) < minTitleLength || hasSkipKeyword(r.Title) {
				continue
			}
			if _, dup := seen[r.Link]; dup {
				continue
			}
			seen[r.Link] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

func hasSkipKeyword(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range skipTitleKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
