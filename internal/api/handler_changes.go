package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// GetChanges handles GET /api/changes: the keys of records still highlighted
// after the last poll.
func (h *Handler) GetChanges(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"snapshot_id": h.source.Snapshot().ID,
		"changed":     h.source.Highlighted(),
	})
}

type historyEntry struct {
	SnapshotID string          `json:"snapshot_id"`
	ObservedAt time.Time       `json:"observed_at"`
	Record     json.RawMessage `json:"record"`
}

// GetHistory handles GET /api/history?key=...: logged versions of one record,
// newest first.
func (h *Handler) GetHistory(c *gin.Context) {
	key := strings.TrimSpace(c.Query("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history is not available"})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	changes, err := h.store.Changes(c.Request.Context(), key, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve history"})
		return
	}

	entries := make([]historyEntry, 0, len(changes))
	for _, ch := range changes {
		entries = append(entries, historyEntry{
			SnapshotID: ch.SnapshotID,
			ObservedAt: ch.ObservedAt,
			Record:     json.RawMessage(ch.Payload),
		})
	}
	c.JSON(http.StatusOK, entries)
}
