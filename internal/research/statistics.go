package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/optimizer"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/session"
)

var statisticsDorks = []string{
	`site:statista.com "{topic}" statistics`,
	`site:ourworldindata.org "{topic}"`,
	`site:data.gov "{topic}" statistics`,
	`site:data.worldbank.org "{topic}" data`,
	`site:bleepingcomputer.com "{topic}" statistics`,
	`site:therecord.media "{topic}" data`,
	`site:kaggle.com "{topic}" dataset`,
	`site:bls.gov "{topic}" data`,
	`site:oecd.org "{topic}" statistics`,
	`site:census.gov "{topic}" statistics`,
}

const (
	statisticsDorkCount  = 5
	statisticsBatch      = 2
	statisticsEnough     = 3
	statisticsMinContent = 300
)

// StatisticsUnit collects data sources from statistics portals.
type StatisticsUnit struct {
	kit *Toolkit
}

var _ Unit = (*StatisticsUnit)(nil)

// NewStatisticsUnit wires the unit to kit.
func NewStatisticsUnit(kit *Toolkit) *StatisticsUnit {
	return &StatisticsUnit{kit: kit}
}

func (u *StatisticsUnit) Name() string { return UnitStatistics }

// ConciseTopic shortens long topics so site dorks still match.
func ConciseTopic(topic string) string {
	words := strings.Fields(topic)
	switch {
	case len(words) > 5:
		return strings.Join(words[:3], " ")
	case len(words) > 3:
		return strings.Join(words[:2], " ")
	default:
		return topic
	}
}

func (u *StatisticsUnit) Research(ctx context.Context, sc *session.Context, topic string) domain.Result[Findings] {
	log := sc.Logger.With("component", "research.statistics")
	log.InfoContext(ctx, "Researching statistics and data sources using Google Dorks for: "+topic, "high_level", true)

	concise := ConciseTopic(topic)
	log.InfoContext(ctx, fmt.Sprintf("Using concise search term for statistics dorks: '%s'", concise), "high_level", true)

	h := newHarvest()
	spec := dorkSpec{
		topic:       topic,
		titlePrefix: "Statistics on",
		summaryKind: "Statistics",
		sourceType:  domain.SourceStatistics,
		minLen:      statisticsMinContent,
		relevance:   0.8,
		shape:       func(s string) string { return optimizer.LimitToEssentials(s, materialLimit) },
	}
	queries := dorkQueries(statisticsDorks[:statisticsDorkCount], []string{concise})
	inBatches(ctx, queries, statisticsBatch, func(ctx context.Context, q string) {
		u.kit.runDork(ctx, sc, q, spec, h)
	}, func() bool {
		if n := h.len(); n >= statisticsEnough {
			log.InfoContext(ctx, fmt.Sprintf("Collected %d statistics sources, stopping search for efficiency", n), "high_level", true)
			return true
		}
		return false
	})

	materials := h.take(statisticsEnough)
	log.InfoContext(ctx, fmt.Sprintf("Successfully collected %d statistics sources", len(materials)), "high_level", true)
	return h.result(materials)
}
