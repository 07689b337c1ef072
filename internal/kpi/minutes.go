package kpi

import (
	"time"

	"painel-pcm-backend/internal/derive"
	"painel-pcm-backend/internal/model"
)

// Minutes compares realised minutes with scheduled minutes across all records.
type Minutes struct{}

// Name implements Aggregator.
func (Minutes) Name() Strategy { return StrategyMinutes }

// Aggregate implements Aggregator.
func (Minutes) Aggregate(records []model.Record, now time.Time) Summary {
	s := Summary{Strategy: StrategyMinutes, Total: len(records)}
	for _, r := range records {
		s.Counts.add(derive.StatusOf(r, now))
		s.ScheduledMinutes += derive.ScheduledMinutes(r)
		s.RealizedMinutes += derive.RealizedMinutes(r, now)
	}
	return withAdherence(s, percent(float64(s.RealizedMinutes), float64(s.ScheduledMinutes)))
}
