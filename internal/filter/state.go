// Package filter implements the dashboard's cascading filters over activity records.
package filter

import (
	"strings"

	"painel-pcm-backend/internal/model"
)

// Field names a filterable attribute.
type Field string

const (
	FieldDate           Field = "date"
	FieldManagementUnit Field = "management_unit"
	FieldTrackSegment   Field = "track_segment"
	FieldSubArea        Field = "sub_area"
	FieldAsset          Field = "asset"
	FieldActivity       Field = "activity"
	FieldRecordType     Field = "record_type"
)

// Cascading lists the fields that take part in the cascade, upstream first.
var Cascading = []Field{FieldManagementUnit, FieldTrackSegment, FieldSubArea, FieldActivity, FieldRecordType}

// depth orders the cascade. Activity and record type are siblings.
var depth = map[Field]int{
	FieldManagementUnit: 0,
	FieldTrackSegment:   1,
	FieldSubArea:        2,
	FieldActivity:       3,
	FieldRecordType:     3,
}

// IsCascading reports whether f takes part in the cascade.
func (f Field) IsCascading() bool {
	_, ok := depth[f]
	return ok
}

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	return f.IsCascading() || f == FieldDate || f == FieldAsset
}

// Upstream returns the cascading fields strictly above f.
func (f Field) Upstream() []Field {
	return f.relatives(func(d int) bool { return d < depth[f] })
}

// Downstream returns the cascading fields strictly below f.
func (f Field) Downstream() []Field {
	return f.relatives(func(d int) bool { return d > depth[f] })
}

func (f Field) relatives(keep func(int) bool) []Field {
	if !f.IsCascading() {
		return nil
	}
	var out []Field
	for _, other := range Cascading {
		if keep(depth[other]) {
			out = append(out, other)
		}
	}
	return out
}

// State is the full set of filter selections. Empty selections impose no constraint.
type State struct {
	Date           string   `json:"date"`
	ManagementUnit []string `json:"management_unit"`
	TrackSegment   []string `json:"track_segment"`
	SubArea        []string `json:"sub_area"`
	Asset          string   `json:"asset"`
	Activity       []string `json:"activity"`
	RecordType     []string `json:"record_type"`
}

// Values returns the selection list of a cascading field.
func (s State) Values(f Field) []string {
	switch f {
	case FieldManagementUnit:
		return s.ManagementUnit
	case FieldTrackSegment:
		return s.TrackSegment
	case FieldSubArea:
		return s.SubArea
	case FieldActivity:
		return s.Activity
	case FieldRecordType:
		return s.RecordType
	}
	return nil
}

func (s *State) set(f Field, values []string) {
	switch f {
	case FieldDate:
		s.Date = first(values)
	case FieldAsset:
		s.Asset = first(values)
	case FieldManagementUnit:
		s.ManagementUnit = values
	case FieldTrackSegment:
		s.TrackSegment = values
	case FieldSubArea:
		s.SubArea = values
	case FieldActivity:
		s.Activity = values
	case FieldRecordType:
		s.RecordType = values
	}
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// With returns a copy of s with f set to values and every field strictly
// downstream of f cleared. Upstream fields, siblings, date and asset are kept.
func (s State) With(f Field, values []string) State {
	next := s
	next.set(f, clean(values))
	for _, d := range f.Downstream() {
		next.set(d, nil)
	}
	return next
}

func clean(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Match reports whether r passes every filter in s.
func (s State) Match(r model.Record) bool {
	if s.Date != "" && !strings.HasPrefix(strings.TrimSpace(r.Date), s.Date) {
		return false
	}
	if s.Asset != "" && !strings.Contains(strings.ToLower(r.Asset), strings.ToLower(strings.TrimSpace(s.Asset))) {
		return false
	}
	for _, f := range Cascading {
		if !s.matchField(r, f) {
			return false
		}
	}
	return true
}

// matchUpstream reports whether r passes the selections strictly above f.
// Date and asset do not take part in the cascade.
func (s State) matchUpstream(r model.Record, f Field) bool {
	for _, u := range f.Upstream() {
		if !s.matchField(r, u) {
			return false
		}
	}
	return true
}

func (s State) matchField(r model.Record, f Field) bool {
	selected := s.Values(f)
	if len(selected) == 0 {
		return true
	}
	v := ValueOf(r, f)
	for _, want := range selected {
		if v == want {
			return true
		}
	}
	return false
}

// ValueOf returns the trimmed value of a field on a record.
func ValueOf(r model.Record, f Field) string {
	var v string
	switch f {
	case FieldDate:
		v = r.Date
	case FieldAsset:
		v = r.Asset
	case FieldManagementUnit:
		v = r.ManagementUnit
	case FieldTrackSegment:
		v = r.TrackSegment
	case FieldSubArea:
		v = r.SubArea
	case FieldActivity:
		v = r.ActivityType
	case FieldRecordType:
		v = r.RecordType
	}
	return strings.TrimSpace(v)
}
