package kpi

import (
	"strings"
	"time"

	"painel-pcm-backend/internal/derive"
	"painel-pcm-backend/internal/model"
)

// Weighted scores completed records as 1 and partial records as 0.5, leaving out
// records whose activity type contains an ignored substring.
type Weighted struct {
	Ignored []string
}

// Name implements Aggregator.
func (Weighted) Name() Strategy { return StrategyWeighted }

// Aggregate implements Aggregator.
func (w Weighted) Aggregate(records []model.Record, now time.Time) Summary {
	s := Summary{Strategy: StrategyWeighted, Total: len(records)}
	for _, r := range records {
		status := derive.StatusOf(r, now)
		s.Counts.add(status)

		if w.ignores(r.ActivityType) {
			continue
		}
		s.Included++
		switch status {
		case model.StatusCompleted:
			s.Points += 1
		case model.StatusPartial:
			s.Points += 0.5
		}
	}
	return withAdherence(s, percent(s.Points, float64(s.Included)))
}

func (w Weighted) ignores(activityType string) bool {
	upper := strings.ToUpper(activityType)
	for _, ignored := range w.Ignored {
		if ignored = strings.TrimSpace(ignored); ignored == "" {
			continue
		}
		if strings.Contains(upper, strings.ToUpper(ignored)) {
			return true
		}
	}
	return false
}
