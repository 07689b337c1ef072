package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"painel-pcm-backend/internal/filter"
	"painel-pcm-backend/internal/kpi"
)

// GetSummary handles GET /api/summary. The weighted strategy is the default.
func (h *Handler) GetSummary(c *gin.Context) {
	agg, err := kpi.Lookup(c.Query("strategy"), h.cfg.KPI.IgnoredActivityTypes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows := filter.Apply(h.source.Snapshot().Records, stateFromQuery(c))
	c.JSON(http.StatusOK, agg.Aggregate(rows, h.now()))
}
