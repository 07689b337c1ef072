// Package diff detects which activity records changed between two snapshots.
package diff

import (
	"encoding/json"
	"sort"
	"time"

	"painel-pcm-backend/internal/model"
)

// Canonical serialises a record deterministically. Struct fields are emitted in
// declaration order, map entries in key order and instants in UTC, so two
// records with equal content always produce the same bytes.
func Canonical(r model.Record) string {
	r.ActualStart = utc(r.ActualStart)
	r.ActualEnd = utc(r.ActualEnd)
	b, err := json.Marshal(r)
	if err != nil {
		// Record holds only strings, ints and times; this is unreachable in practice.
		return r.Key()
	}
	return string(b)
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// Changed returns the sorted keys of records in next that are new or whose
// content differs from prev. An empty prev reports no changes.
func Changed(prev, next []model.Record) []string {
	if len(prev) == 0 {
		return nil
	}

	previous := make(map[string]string, len(prev))
	for _, r := range prev {
		previous[r.Key()] = Canonical(r)
	}

	seen := make(map[string]struct{})
	var changed []string
	for _, r := range next {
		key := r.Key()
		if old, ok := previous[key]; ok && old == Canonical(r) {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		changed = append(changed, key)
	}
	sort.Strings(changed)
	return changed
}
