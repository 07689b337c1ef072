package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"painel-pcm-backend/internal/derive"
	"painel-pcm-backend/internal/filter"
	"painel-pcm-backend/internal/model"
)

// activityResponse is a record flattened together with its derived view.
type activityResponse struct {
	model.Record
	View        derive.View `json:"view"`
	Highlighted bool        `json:"highlighted"`
}

type activitiesResponse struct {
	SnapshotID      string             `json:"snapshot_id"`
	FetchedAt       *time.Time         `json:"fetched_at"`
	SourceUpdatedAt *time.Time         `json:"source_updated_at"`
	Total           int                `json:"total"`
	Rows            []activityResponse `json:"rows"`
}

// GetActivities handles GET /api/activities.
func (h *Handler) GetActivities(c *gin.Context) {
	snap := h.source.Snapshot()
	rows := filter.Apply(snap.Records, stateFromQuery(c))

	resp := activitiesResponse{
		SnapshotID:      snap.ID,
		SourceUpdatedAt: snap.SourceUpdatedAt,
		Total:           len(snap.Records),
		Rows:            h.views(rows, h.now()),
	}
	if !snap.FetchedAt.IsZero() {
		resp.FetchedAt = &snap.FetchedAt
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) views(records []model.Record, now time.Time) []activityResponse {
	highlighted := make(map[string]bool)
	for _, k := range h.source.Highlighted() {
		highlighted[k] = true
	}

	out := make([]activityResponse, 0, len(records))
	for _, r := range records {
		out = append(out, activityResponse{
			Record:      r,
			View:        derive.ViewOf(r, now),
			Highlighted: highlighted[r.Key()],
		})
	}
	return out
}
