package filter

import (
	"reflect"
	"sort"
	"sync"

	"painel-pcm-backend/internal/model"
)

// sentinels are placeholder values never offered as options.
var sentinels = map[string]struct{}{"": {}, "-": {}, "0": {}}

// Options computes the choices of every cascading field. The options of a field
// come from records passing the selections strictly upstream of it; its own
// selection, date and asset are ignored.
func Options(records []model.Record, s State) map[Field][]string {
	out := make(map[Field][]string, len(Cascading))
	for _, f := range Cascading {
		out[f] = OptionsFor(records, s, f)
	}
	return out
}

// OptionsFor computes the sorted distinct options of one cascading field.
func OptionsFor(records []model.Record, s State, f Field) []string {
	set := make(map[string]struct{})
	for _, r := range records {
		if !s.matchUpstream(r, f) {
			continue
		}
		v := ValueOf(r, f)
		if _, skip := sentinels[v]; skip {
			continue
		}
		set[v] = struct{}{}
	}

	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// Apply returns the records that pass s, in input order.
func Apply(records []model.Record, s State) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if s.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Engine memoises filter results so consumers see the same slice for as long as
// its contents are unchanged.
type Engine struct {
	mu   sync.Mutex
	last []model.Record
	set  bool
}

// Apply filters records and returns the previously returned slice when the new
// result is deeply equal to it.
func (e *Engine) Apply(records []model.Record, s State) []model.Record {
	out := Apply(records, s)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set && reflect.DeepEqual(out, e.last) {
		return e.last
	}
	e.last = out
	e.set = true
	return out
}
