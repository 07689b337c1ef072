package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"painel-pcm-backend/internal/filter"
	"painel-pcm-backend/internal/kpi"
	"painel-pcm-backend/internal/model"
)

// UnitResponse represents the API response for a single management unit.
type UnitResponse struct {
	ID      int64       `json:"id"`
	Name    string      `json:"name"`
	Records int         `json:"records"`
	Summary kpi.Summary `json:"summary"`
}

// GetUnits handles GET /api/units: the minutes-based adherence of each unit.
func (h *Handler) GetUnits(c *gin.Context) {
	// 1) Every unit known to the store
	var units []model.ManagementUnit
	if h.store != nil {
		var err error
		if units, err = h.store.Units(c.Request.Context()); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve management units"})
			return
		}
	}

	// 2) Group the filtered rows by unit
	rows := filter.Apply(h.source.Snapshot().Records, stateFromQuery(c))
	groups := make(map[string][]model.Record)
	for _, r := range rows {
		name := strings.TrimSpace(r.ManagementUnit)
		groups[name] = append(groups[name], r)
	}

	// 3) Merge; units not yet persisted are listed with a zero ID
	now := h.now()
	agg := kpi.Minutes{}
	responses := make([]UnitResponse, 0, len(units))
	seen := make(map[string]bool, len(units))
	for _, u := range units {
		seen[u.Name] = true
		records := groups[u.Name]
		responses = append(responses, UnitResponse{
			ID: u.ID, Name: u.Name,
			Records: len(records), Summary: agg.Aggregate(records, now),
		})
	}

	var extra []string
	for name := range groups {
		if !seen[name] && name != "" && name != "-" {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		records := groups[name]
		responses = append(responses, UnitResponse{
			Name:    name,
			Records: len(records),
			Summary: agg.Aggregate(records, now),
		})
	}
	c.JSON(http.StatusOK, responses)
}
