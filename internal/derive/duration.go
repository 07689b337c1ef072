// Package derive computes elapsed durations and derived statuses of activity
// records. Every function is pure and is re-evaluated against the current time.
package derive

import (
	"strings"
	"time"

	"painel-pcm-backend/internal/model"
	"painel-pcm-backend/internal/parse"
)

// Placeholder is shown when no duration can be computed.
const Placeholder = "--:--"

// blockDuration marks non-interval work.
const blockDuration = "00:01"

// Duration is a rendered duration together with its numeric value.
type Duration struct {
	Text    string `json:"text"`
	Minutes int    `json:"minutes"`
	// Known is false when no numeric value is available.
	Known bool `json:"known"`
	// Live is true when the value keeps increasing with the clock.
	Live bool `json:"live"`
}

func minutesDuration(m int) Duration {
	if m < 0 {
		m = 0
	}
	return Duration{Text: parse.FormatClock(m), Minutes: m, Known: true}
}

// Interval returns end-start, assuming a midnight crossing when end precedes start.
func Interval(start, end time.Time) time.Duration {
	if end.Before(start) {
		end = end.Add(24 * time.Hour)
	}
	return end.Sub(start)
}

// Elapsed computes the actual duration of a record at time now.
func Elapsed(r model.Record, now time.Time) Duration {
	if override := strings.TrimSpace(r.DurationOverride); override != "" {
		m, ok := parse.ParseClock(override)
		return Duration{Text: override, Minutes: m, Known: ok}
	}

	switch {
	case r.ActualStart != nil && r.ActualEnd != nil:
		return minutesDuration(int(Interval(*r.ActualStart, *r.ActualEnd).Minutes()))
	case r.ActualStart != nil:
		d := minutesDuration(int(now.Sub(*r.ActualStart).Minutes()))
		d.Live = !IsBlock(r)
		return d
	default:
		return Duration{Text: Placeholder}
	}
}

// Scheduled returns the planned duration of a record.
func Scheduled(r model.Record) Duration {
	m, ok := parse.ParseClock(r.ScheduledDuration)
	if !ok {
		return Duration{Text: Placeholder}
	}
	return minutesDuration(m)
}

// IsBlock reports whether the record is block work, which never runs a live timer.
func IsBlock(r model.Record) bool {
	return Scheduled(r).Text == blockDuration
}
