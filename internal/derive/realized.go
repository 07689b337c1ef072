package derive

import (
	"strings"
	"time"

	"painel-pcm-backend/internal/model"
	"painel-pcm-backend/internal/parse"
)

// Override sentinels that count as zero realised time.
const (
	OverrideWaiting = "Esp"
	OverrideBlock   = "BLOCO"
)

// maxRealized bounds a plausible interval; longer ones are data errors.
const maxRealized = 36 * time.Hour

// RealizedMinutes returns the minutes a record contributes to the minutes-based
// adherence. Unlike Elapsed, out-of-range intervals count as zero instead of
// being clamped.
func RealizedMinutes(r model.Record, now time.Time) int {
	override := strings.TrimSpace(r.DurationOverride)
	if strings.EqualFold(override, OverrideWaiting) || strings.EqualFold(override, OverrideBlock) {
		return 0
	}
	if override != "" {
		m, _ := parse.ParseClock(override)
		return m
	}

	var d time.Duration
	switch {
	case r.ActualStart != nil && r.ActualEnd != nil:
		d = Interval(*r.ActualStart, *r.ActualEnd)
	case r.ActualStart != nil:
		d = now.Sub(*r.ActualStart)
	default:
		return 0
	}

	if d < 0 || d > maxRealized {
		return 0
	}
	return int(d.Minutes())
}

// ScheduledMinutes returns the planned minutes of a record, or zero when unknown.
func ScheduledMinutes(r model.Record) int {
	return Scheduled(r).Minutes
}
