package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"painel-pcm-backend/internal/filter"
)

type filtersResponse struct {
	State   filter.State              `json:"state"`
	Options map[filter.Field][]string `json:"options"`
}

// GetOptions handles GET /api/options.
func (h *Handler) GetOptions(c *gin.Context) {
	state := stateFromQuery(c)
	c.JSON(http.StatusOK, filtersResponse{
		State:   state,
		Options: filter.Options(h.source.Snapshot().Records, state),
	})
}

type changeFilterRequest struct {
	State  filter.State `json:"state"`
	Field  filter.Field `json:"field" binding:"required"`
	Values []string     `json:"values"`
}

// ChangeFilter handles POST /api/filters. It applies one selection change and
// resets every field downstream of it.
func (h *Handler) ChangeFilter(c *gin.Context) {
	var req changeFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if !req.Field.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown filter field " + string(req.Field)})
		return
	}

	state := req.State.With(req.Field, req.Values)
	c.JSON(http.StatusOK, filtersResponse{
		State:   state,
		Options: filter.Options(h.source.Snapshot().Records, state),
	})
}
