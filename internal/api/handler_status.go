package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"painel-pcm-backend/internal/source"
)

// statusResponse is the flattened source state.
type statusResponse struct {
	Loading         bool       `json:"loading"`
	SnapshotID      string     `json:"snapshot_id"`
	Records         int        `json:"records"`
	LastUpdate      *time.Time `json:"last_update"`
	SourceUpdatedAt *time.Time `json:"source_updated_at"`
	LastAttempt     *time.Time `json:"last_attempt"`
	Error           string     `json:"error,omitempty"`
	Detail          string     `json:"detail,omitempty"`
}

func (h *Handler) status() statusResponse {
	st := h.source.State()
	resp := statusResponse{
		Loading:         st.Loading,
		SnapshotID:      st.Snapshot.ID,
		Records:         len(st.Snapshot.Records),
		SourceUpdatedAt: st.Snapshot.SourceUpdatedAt,
		Error:           st.ErrorMessage,
	}
	if !st.Snapshot.FetchedAt.IsZero() {
		resp.LastUpdate = &st.Snapshot.FetchedAt
	}
	if !st.LastAttempt.IsZero() {
		resp.LastAttempt = &st.LastAttempt
	}
	// The raw failure is only for the debug screen.
	if h.cfg.Server.ExposeErrorDetail {
		resp.Detail = st.ErrorDetail
	}
	return resp
}

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.status())
}

// Refresh handles POST /api/refresh. It supersedes any fetch in flight.
func (h *Handler) Refresh(c *gin.Context) {
	err := h.source.Refetch(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, h.status())
	case errors.Is(err, source.ErrSuperseded):
		c.JSON(http.StatusAccepted, gin.H{"status": "superseded"})
	case errors.Is(err, context.Canceled):
		c.Status(http.StatusNoContent)
	default:
		c.JSON(http.StatusBadGateway, h.status())
	}
}
