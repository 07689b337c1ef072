// Package kpi reduces a set of activity records to counts and adherence scores.
//
// Two adherence formulas exist and are not interchangeable:
//
//   - Weighted (the activity board): completed records score 1, partial 0.5,
//     over records whose activity type is not ignored.
//   - Minutes (the management-unit overview): realised minutes over scheduled
//     minutes across every record.
package kpi

import (
	"fmt"
	"math"
	"time"

	"painel-pcm-backend/internal/derive"
	"painel-pcm-backend/internal/model"
)

// Strategy names an adherence formula.
type Strategy string

const (
	StrategyWeighted Strategy = "weighted"
	StrategyMinutes  Strategy = "minutes"
)

// Counts tallies records per derived status.
type Counts struct {
	Completed  int `json:"completed"`
	Partial    int `json:"partial"`
	InProgress int `json:"in_progress"`
	NotStarted int `json:"not_started"`
	Cancelled  int `json:"cancelled"`
}

func (c *Counts) add(s model.Status) {
	switch s {
	case model.StatusCompleted:
		c.Completed++
	case model.StatusPartial:
		c.Partial++
	case model.StatusInProgress:
		c.InProgress++
	case model.StatusNotStarted:
		c.NotStarted++
	case model.StatusCancelled:
		c.Cancelled++
	}
}

// Summary is the aggregate of a record set under one strategy.
type Summary struct {
	Strategy Strategy `json:"strategy"`
	Total    int      `json:"total"`
	Counts   Counts   `json:"counts"`

	// Weighted strategy
	Included int     `json:"included,omitempty"`
	Points   float64 `json:"points,omitempty"`

	// Minutes strategy
	ScheduledMinutes int `json:"scheduled_minutes,omitempty"`
	RealizedMinutes  int `json:"realized_minutes,omitempty"`

	Adherence     float64 `json:"adherence"`
	AdherenceText string  `json:"adherence_text"`
}

// Aggregator computes a summary of records at time now.
type Aggregator interface {
	Name() Strategy
	Aggregate(records []model.Record, now time.Time) Summary
}

// CountStatuses tallies derived statuses.
func CountStatuses(records []model.Record, now time.Time) Counts {
	var c Counts
	for _, r := range records {
		c.add(derive.StatusOf(r, now))
	}
	return c
}

// percent returns part/whole*100 rounded to one decimal, or 0 when whole is 0.
func percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	p := part / whole * 100
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	return math.Round(p*10) / 10
}

func withAdherence(s Summary, value float64) Summary {
	s.Adherence = value
	s.AdherenceText = fmt.Sprintf("%.1f", value)
	return s
}

// Lookup returns the aggregator registered under name. An empty name selects the
// weighted strategy.
func Lookup(name string, ignored []string) (Aggregator, error) {
	switch Strategy(name) {
	case "", StrategyWeighted:
		return Weighted{Ignored: ignored}, nil
	case StrategyMinutes:
		return Minutes{}, nil
	default:
		return nil, fmt.Errorf("unknown adherence strategy %q", name)
	}
}
