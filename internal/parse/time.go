package parse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
}

// ParseTimestamp reads an upstream timestamp. Values carrying an offset are parsed
// as instants; naive values are interpreted in loc. Malformed input yields nil.
func ParseTimestamp(raw string, loc *time.Location) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" || s == "-" || strings.EqualFold(s, "null") {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &t
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t
		}
	}
	return nil
}

// ParseClock converts an "HH:MM" (or "HH:MM:SS") duration into whole minutes.
// Hours are not bounded to a day.
func ParseClock(raw string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// FormatClock renders minutes as zero-padded "HH:MM". Negative input renders "00:00".
func FormatClock(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
