package parse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"painel-pcm-backend/internal/model"
)

// canonical field names
const (
	fieldRowHash           = "row_hash"
	fieldDate              = "date"
	fieldManagementUnit    = "management_unit"
	fieldTrackSegment      = "track_segment"
	fieldSubArea           = "sub_area"
	fieldAsset             = "asset"
	fieldActivity          = "activity"
	fieldActivityType      = "activity_type"
	fieldRecordType        = "record_type"
	fieldStatusCode        = "status_code"
	fieldScheduledStart    = "scheduled_start"
	fieldScheduledDuration = "scheduled_duration"
	fieldScheduledLocation = "scheduled_location"
	fieldScheduledQuantity = "scheduled_quantity"
	fieldActualStart       = "actual_start"
	fieldActualEnd         = "actual_end"
	fieldActualLocation    = "actual_location"
	fieldActualQuantity    = "actual_quantity"
	fieldDurationOverride  = "duration_override"
	fieldDetail            = "detail"
)

// aliases maps normalised upstream labels to canonical field names. Both the
// capitalised labels ("Gerência da Via") and the snake_case variant
// (gerência_da_via) normalise to the same key.
var aliases = map[string]string{
	"row_hash": fieldRowHash, "hash": fieldRowHash, "id_linha": fieldRowHash,

	"data": fieldDate, "date": fieldDate, "data_atividade": fieldDate,

	"gerencia_da_via": fieldManagementUnit, "gerencia": fieldManagementUnit,
	"trecho": fieldTrackSegment, "coordenacao": fieldTrackSegment, "trecho_coordenacao": fieldTrackSegment,
	"sub": fieldSubArea, "subarea": fieldSubArea, "sub_area": fieldSubArea,
	"ativo": fieldAsset, "prefixo": fieldAsset, "ativo_id": fieldAsset,
	"atividade": fieldActivity,
	"tipo_atividade": fieldActivityType, "tipo_de_atividade": fieldActivityType,
	"tipo": fieldRecordType, "tipo_registro": fieldRecordType,
	"status": fieldStatusCode, "status_code": fieldStatusCode,

	"inicio_prog": fieldScheduledStart, "inicio_programado": fieldScheduledStart,
	"tempo_prog": fieldScheduledDuration, "tempo_programado": fieldScheduledDuration, "duracao_prog": fieldScheduledDuration,
	"local_prog": fieldScheduledLocation, "local_programado": fieldScheduledLocation,
	"quantidade_prog": fieldScheduledQuantity, "qtd_prog": fieldScheduledQuantity, "quantidade_programada": fieldScheduledQuantity,

	"inicio_real": fieldActualStart,
	"fim_real": fieldActualEnd,
	"local_real": fieldActualLocation,
	"quantidade_real": fieldActualQuantity, "qtd_real": fieldActualQuantity,
	"tempo_real": fieldDurationOverride, "tempo_manual": fieldDurationOverride,

	"detalhamento": fieldDetail, "detalhe": fieldDetail, "observacao": fieldDetail,
}

// NormalizeKey folds accents and case and joins words with underscores.
func NormalizeKey(label string) string {
	// transform.Chain keeps state, so each call builds its own.
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, label)
	if err != nil {
		folded = label
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// Payload is the decoded upstream response before adaptation.
type Payload struct {
	Rows        []map[string]any
	LastUpdated string
}

type envelope struct {
	Data        []map[string]any `json:"data"`
	LastUpdated string           `json:"last_updated"`
}

// Decode accepts either a bare JSON array of rows or a {data, last_updated} envelope.
func Decode(body []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Payload{}, fmt.Errorf("empty response body")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	switch trimmed[0] {
	case '[':
		var rows []map[string]any
		if err := dec.Decode(&rows); err != nil {
			return Payload{}, fmt.Errorf("failed to decode row array: %w", err)
		}
		return Payload{Rows: rows}, nil
	case '{':
		var env envelope
		if err := dec.Decode(&env); err != nil {
			return Payload{}, fmt.Errorf("failed to decode envelope: %w", err)
		}
		return Payload{Rows: env.Data, LastUpdated: env.LastUpdated}, nil
	default:
		return Payload{}, fmt.Errorf("unexpected response shape starting with %q", trimmed[0])
	}
}

// Adapter converts raw upstream rows into canonical records.
type Adapter struct {
	Location *time.Location
}

// Records adapts every row, preserving order.
func (a Adapter) Records(rows []map[string]any) []model.Record {
	out := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, a.Record(row))
	}
	return out
}

// Record adapts a single raw row.
func (a Adapter) Record(row map[string]any) model.Record {
	var r model.Record

	// Iterate in key order so that duplicate aliases resolve deterministically.
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, rawKey := range keys {
		key := NormalizeKey(rawKey)
		value := Coerce(row[rawKey])
		field, ok := aliases[key]
		if !ok {
			if value != "" {
				if r.Extra == nil {
					r.Extra = make(map[string]string)
				}
				r.Extra[key] = value
			}
			continue
		}
		a.assign(&r, field, value)
	}
	return r
}

func (a Adapter) assign(r *model.Record, field, value string) {
	switch field {
	case fieldRowHash:
		r.RowHash = value
	case fieldDate:
		r.Date = value
	case fieldManagementUnit:
		r.ManagementUnit = value
	case fieldTrackSegment:
		r.TrackSegment = value
	case fieldSubArea:
		r.SubArea = value
	case fieldAsset:
		r.Asset = value
	case fieldActivity:
		r.Activity = value
	case fieldActivityType:
		r.ActivityType = value
	case fieldRecordType:
		r.RecordType = value
	case fieldStatusCode:
		r.StatusCode = StatusCode(value)
	case fieldScheduledStart:
		r.ScheduledStart = value
	case fieldScheduledDuration:
		r.ScheduledDuration = value
	case fieldScheduledLocation:
		r.ScheduledLocation = value
	case fieldScheduledQuantity:
		r.ScheduledQuantity = value
	case fieldActualStart:
		r.ActualStart = ParseTimestamp(value, a.Location)
	case fieldActualEnd:
		r.ActualEnd = ParseTimestamp(value, a.Location)
	case fieldActualLocation:
		r.ActualLocation = value
	case fieldActualQuantity:
		r.ActualQuantity = value
	case fieldDurationOverride:
		r.DurationOverride = value
	case fieldDetail:
		r.Detail = value
	}
}

// StatusCode reads the backend status code; empty or non-numeric values mean "not started".
func StatusCode(value string) *int {
	v := strings.TrimSpace(value)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	code := int(f)
	return &code
}

// Coerce renders a decoded JSON value as a trimmed string.
func Coerce(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
