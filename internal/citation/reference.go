package citation

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
)

const defaultScore = 0.5

// dateLayouts are tried in order when scoring recency.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"January 2, 2006",
	"2 January 2006",
	"2006",
}

// NewReference builds a reference with neutral scores and a fresh id.
func NewReference(title, url, sourceType string) domain.SourceReference {
	if sourceType == "" {
		sourceType = domain.SourceWeb
	}
	return domain.SourceReference{
		ID:         uuid.NewString(),
		Title:      title,
		URL:        url,
		SourceType: sourceType,
		Relevance:  defaultScore,
		Quality:    defaultScore,
		Recency:    defaultScore,
		Authority:  defaultScore,
	}
}

// CalculateScores derives recency, authority and quality. Relevance is set
// by the caller beforehand and left untouched.
func CalculateScores(ref *domain.SourceReference, now time.Time) {
	ref.Recency = recencyScore(ref.PublicationDate, now)
	ref.Authority = authorityScore(*ref)
	ref.Quality = (ref.Relevance + ref.Recency + ref.Authority) / 3
}

func recencyScore(date string, now time.Time) float64 {
	date = strings.TrimSpace(date)
	if date == "" {
		return defaultScore
	}

	for _, layout := range dateLayouts {
		published, err := time.Parse(layout, date)
		if err != nil {
			continue
		}
		days := int(now.Sub(published).Hours() / 24)
		switch {
		case days < 365:
			return 0.9
		case days < 365*3:
			return 0.7
		case days < 365*5:
			return 0.5
		default:
			return 0.3
		}
	}
	return defaultScore
}

func authorityScore(ref domain.SourceReference) float64 {
	switch {
	case ref.SourceType == domain.SourceArxiv:
		return 0.8
	case ref.SourceType == domain.SourceJournal && ref.Journal != "":
		return 0.9
	case ref.SourceType == domain.SourceWikipedia:
		return 0.6
	case strings.Contains(ref.URL, "github") || strings.Contains(ref.URL, "edu"):
		return 0.7
	default:
		return defaultScore
	}
}
