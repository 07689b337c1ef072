package model

import "time"

// Status is the derived category of an activity record.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusPartial    Status = "partial"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every derived category in display order.
var Statuses = []Status{StatusCompleted, StatusPartial, StatusInProgress, StatusNotStarted, StatusCancelled}

// Backend status codes. A nil code means the activity has not started.
const (
	CodeCancelled  = 0
	CodeInProgress = 1
	CodeCompleted  = 2
)

// Record is one reported maintenance activity as delivered by the upstream API,
// normalised to a single internal shape.
type Record struct {
	RowHash string `json:"row_hash,omitempty"`
	Date    string `json:"date"`

	ManagementUnit string `json:"management_unit"`
	TrackSegment   string `json:"track_segment"`
	SubArea        string `json:"sub_area"`
	Asset          string `json:"asset"`
	Activity       string `json:"activity"`
	ActivityType   string `json:"activity_type"`
	RecordType     string `json:"record_type"`
	StatusCode     *int   `json:"status_code"`

	ScheduledStart    string `json:"scheduled_start"`
	ScheduledDuration string `json:"scheduled_duration"`
	ScheduledLocation string `json:"scheduled_location"`
	ScheduledQuantity string `json:"scheduled_quantity"`

	ActualStart      *time.Time `json:"actual_start"`
	ActualEnd        *time.Time `json:"actual_end"`
	ActualLocation   string     `json:"actual_location"`
	ActualQuantity   string     `json:"actual_quantity"`
	DurationOverride string     `json:"duration_override,omitempty"`

	Detail string `json:"detail"`

	// Extra keeps upstream columns that have no canonical field.
	Extra map[string]string `json:"extra,omitempty"`
}

// Key returns the stable identity of the record across polling cycles.
func (r Record) Key() string {
	if r.RowHash != "" {
		return r.RowHash
	}
	return r.Asset + "|" + r.Activity + "|" + r.Date
}

// Snapshot is the full record collection returned by one successful fetch.
type Snapshot struct {
	ID              string     `json:"id"`
	FetchedAt       time.Time  `json:"fetched_at"`
	SourceUpdatedAt *time.Time `json:"source_updated_at,omitempty"`
	Records         []Record   `json:"-"`
}
