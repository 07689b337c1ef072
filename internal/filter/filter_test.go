package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"painel-pcm-backend/internal/model"
)

func fixture() []model.Record {
	return []model.Record{
		{Asset: "SOCADORA 01", Date: "2025-03-10 08:00", ManagementUnit: "SP SUL", TrackSegment: "ZUV", SubArea: "Via", ActivityType: "MECANIZADA", RecordType: "Programada"},
		{Asset: "SOCADORA 02", Date: "2025-03-10", ManagementUnit: "SP SUL", TrackSegment: "ZEV", SubArea: "Via", ActivityType: "DESLOCAMENTO", RecordType: "Programada"},
		{Asset: "REGULADORA 01", Date: "2025-03-11", ManagementUnit: "SP NORTE", TrackSegment: "ZBR", SubArea: "Lastro", ActivityType: "MECANIZADA", RecordType: "Corretiva"},
		{Asset: "Esmerilhadora", Date: "2025-03-10", ManagementUnit: " SP NORTE ", TrackSegment: "-", SubArea: "0", ActivityType: "", RecordType: "Corretiva"},
	}
}

func assets(records []model.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Asset)
	}
	return out
}

func TestField_Relations(t *testing.T) {
	assert.Empty(t, FieldManagementUnit.Upstream())
	assert.Equal(t, []Field{FieldTrackSegment, FieldSubArea, FieldActivity, FieldRecordType}, FieldManagementUnit.Downstream())
	assert.Equal(t, []Field{FieldActivity, FieldRecordType}, FieldSubArea.Downstream())
	assert.Equal(t, []Field{FieldManagementUnit, FieldTrackSegment, FieldSubArea}, FieldActivity.Upstream())
	assert.Empty(t, FieldActivity.Downstream(), "siblings are not downstream of each other")
	assert.Nil(t, FieldDate.Downstream())
	assert.True(t, FieldAsset.Valid())
	assert.False(t, Field("bogus").Valid())
}

func TestState_With_ResetsDownstreamOnly(t *testing.T) {
	s := State{Date: "2025-03-10", Asset: "soc"}
	s = s.With(FieldManagementUnit, []string{"SP SUL"})
	s = s.With(FieldTrackSegment, []string{"ZUV"})
	s = s.With(FieldSubArea, []string{"Via"})
	s = s.With(FieldActivity, []string{"MECANIZADA"})
	s = s.With(FieldRecordType, []string{"Programada"})

	// Sibling change leaves the other sibling alone.
	sibling := s.With(FieldActivity, []string{"DESLOCAMENTO"})
	assert.Equal(t, []string{"Programada"}, sibling.RecordType)

	changed := s.With(FieldManagementUnit, []string{"SP NORTE"})
	assert.Equal(t, []string{"SP NORTE"}, changed.ManagementUnit)
	assert.Empty(t, changed.TrackSegment)
	assert.Empty(t, changed.SubArea)
	assert.Empty(t, changed.Activity)
	assert.Empty(t, changed.RecordType)
	assert.Equal(t, "2025-03-10", changed.Date, "date filter is untouched")
	assert.Equal(t, "soc", changed.Asset, "asset filter is untouched")

	mid := s.With(FieldTrackSegment, []string{"ZEV"})
	assert.Equal(t, []string{"SP SUL"}, mid.ManagementUnit, "upstream is kept")
	assert.Empty(t, mid.SubArea)

	// The original value is not mutated.
	assert.Equal(t, []string{"ZUV"}, s.TrackSegment)
}

func TestState_Match(t *testing.T) {
	records := fixture()

	testCases := []struct {
		name     string
		state    State
		expected []string
	}{
		{"No filters", State{}, []string{"SOCADORA 01", "SOCADORA 02", "REGULADORA 01", "Esmerilhadora"}},
		{"Date prefix matches composite field", State{Date: "2025-03-10"}, []string{"SOCADORA 01", "SOCADORA 02", "Esmerilhadora"}},
		{"Asset substring ignores case", State{Asset: "socad"}, []string{"SOCADORA 01", "SOCADORA 02"}},
		{"Multi-select membership", State{TrackSegment: []string{"ZUV", "ZBR"}}, []string{"SOCADORA 01", "REGULADORA 01"}},
		{"Trimmed values compare", State{ManagementUnit: []string{"SP NORTE"}}, []string{"REGULADORA 01", "Esmerilhadora"}},
		{"Combined", State{ManagementUnit: []string{"SP SUL"}, Activity: []string{"MECANIZADA"}}, []string{"SOCADORA 01"}},
		{"Nothing matches", State{RecordType: []string{"Emergencial"}}, []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, assets(Apply(records, tc.state)))
		})
	}
}

func TestState_MatchImpliesMatchOfNonEmptySubset(t *testing.T) {
	full := State{Date: "2025-03-1", ManagementUnit: []string{"SP SUL"}, TrackSegment: nil, Activity: []string{"MECANIZADA", "DESLOCAMENTO"}}
	subset := State{Date: full.Date, ManagementUnit: full.ManagementUnit, Activity: full.Activity}

	for _, r := range fixture() {
		if full.Match(r) {
			assert.True(t, subset.Match(r), r.Asset)
		}
	}
}

func TestOptions_Cascade(t *testing.T) {
	records := fixture()

	all := Options(records, State{})
	assert.Equal(t, []string{"SP NORTE", "SP SUL"}, all[FieldManagementUnit])
	assert.Equal(t, []string{"ZBR", "ZEV", "ZUV"}, all[FieldTrackSegment], "sentinel '-' is excluded")
	assert.Equal(t, []string{"Lastro", "Via"}, all[FieldSubArea], "sentinel '0' is excluded")
	assert.Equal(t, []string{"DESLOCAMENTO", "MECANIZADA"}, all[FieldActivity])

	sul := Options(records, State{ManagementUnit: []string{"SP SUL"}})
	assert.Equal(t, []string{"SP NORTE", "SP SUL"}, sul[FieldManagementUnit], "own selection is ignored")
	assert.Equal(t, []string{"ZEV", "ZUV"}, sul[FieldTrackSegment])
	assert.Equal(t, []string{"Programada"}, sul[FieldRecordType])

	sibling := Options(records, State{ManagementUnit: []string{"SP SUL"}, Activity: []string{"MECANIZADA"}})
	assert.Equal(t, []string{"Programada"}, sibling[FieldRecordType], "siblings do not constrain each other")

	dated := Options(records, State{Date: "2025-03-11", Asset: "nothing"})
	assert.Equal(t, all, dated, "date and asset do not take part in the cascade")
}

func TestEngine_ReturnsSameSliceWhenUnchanged(t *testing.T) {
	var e Engine
	records := fixture()
	state := State{ManagementUnit: []string{"SP SUL"}}

	first := e.Apply(records, state)
	require.Len(t, first, 2)

	// A fresh copy of the same data yields the memoised slice.
	copyOf := append([]model.Record(nil), records...)
	second := e.Apply(copyOf, state)
	assert.Same(t, &first[0], &second[0])

	changed := append([]model.Record(nil), records...)
	changed[0].Detail = "km 121"
	third := e.Apply(changed, state)
	assert.NotSame(t, &first[0], &third[0])
	assert.Equal(t, "km 121", third[0].Detail)

	empty := e.Apply(records, State{RecordType: []string{"none"}})
	again := e.Apply(records, State{RecordType: []string{"other"}})
	assert.Empty(t, empty)
	assert.Empty(t, again)
}
