package usecase

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
)

var significantTerms = []string{
	"statistic", "research", "study", "analysis", "data",
	"impact", "effect", "cause", "result", "evidence",
}

// SubtopicImportance scores how central sub is to topic, in [0,1].
func SubtopicImportance(sub domain.Subtopic, topic string) float64 {
	name := strings.ToLower(strings.TrimSpace(sub.Name))
	if name == "" {
		return 0
	}

	score := 0.0
	words := strings.Fields(name)
	if n := len(words); n >= 2 && n <= 5 {
		score += 0.2
	}

	topicWords := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(topic)) {
		topicWords[w] = true
	}
	seen := map[string]bool{}
	for _, w := range words {
		if topicWords[w] && !seen[w] {
			seen[w] = true
			score += 0.1
		}
	}

	description := strings.ToLower(sub.Description)
	for _, term := range significantTerms {
		if strings.Contains(name, term) || strings.Contains(description, term) {
			score += 0.1
			break
		}
	}

	if sub.Core {
		score += 0.3
	}
	return min(score, 1.0)
}

// SelectSubtopics orders subs by importance and keeps at most limit of them.
// Ties keep the planned order.
func SelectSubtopics(subs []domain.Subtopic, topic string, limit int) []domain.Subtopic {
	type scored struct {
		sub   domain.Subtopic
		score float64
	}
	ranked := make([]scored, 0, len(subs))
	for _, s := range subs {
		ranked = append(ranked, scored{sub: s, score: SubtopicImportance(s, topic)})
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]domain.Subtopic, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.sub)
	}
	return out
}

// deepSubtasks lists the first three subtopics by name and folds the rest
// into one entry.
func deepSubtasks(subs []domain.Subtopic) []string {
	out := make([]string, 0, 4)
	for i, s := range subs {
		if i == 3 {
			out = append(out, fmt.Sprintf("Research: %d more subtopics", len(subs)-3))
			break
		}
		out = append(out, "Research: "+s.Name)
	}
	return out
}

// deepCompletion maps the i-th finished subtopic of n onto the subtask
// counter of deepSubtasks.
func deepCompletion(i, n int) float64 {
	if i < 3 {
		return float64(i + 1)
	}
	return 3 + float64(i-2)/float64(max(1, n-3))
}
