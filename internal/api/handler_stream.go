package api

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"painel-pcm-backend/internal/clock"
	"painel-pcm-backend/internal/filter"
	"painel-pcm-backend/internal/model"
)

// streamFrame is one SSE event. Rows are omitted when the filtered set is the
// same as in the previous frame; views are always recomputed.
type streamFrame struct {
	SnapshotID string             `json:"snapshot_id"`
	Now        time.Time          `json:"now"`
	Rows       []activityResponse `json:"rows,omitempty"`
	Views      []viewFrame        `json:"views"`
}

type viewFrame struct {
	Key         string `json:"key"`
	Status      string `json:"status"`
	Elapsed     string `json:"elapsed"`
	Live        bool   `json:"live"`
	Highlighted bool   `json:"highlighted"`
}

// streamer builds frames for one connection.
type streamer struct {
	h      *Handler
	state  filter.State
	engine filter.Engine
	last   []model.Record
	sent   bool
}

func sameSlice(a, b []model.Record) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}

func (s *streamer) frame(now time.Time) streamFrame {
	snap := s.h.source.Snapshot()
	rows := s.engine.Apply(snap.Records, s.state)
	resp := s.h.views(rows, now)

	f := streamFrame{SnapshotID: snap.ID, Now: now, Views: make([]viewFrame, 0, len(resp))}
	for _, r := range resp {
		f.Views = append(f.Views, viewFrame{
			Key:         r.View.Key,
			Status:      string(r.View.Status),
			Elapsed:     r.View.Elapsed.Text,
			Live:        r.View.Elapsed.Live,
			Highlighted: r.Highlighted,
		})
	}
	if !s.sent || !sameSlice(rows, s.last) {
		f.Rows = resp
	}
	s.last = rows
	s.sent = true
	return f
}

// Stream handles GET /api/stream. It pushes the filtered rows on every tick
// until the client goes away.
func (h *Handler) Stream(c *gin.Context) {
	tick := time.Duration(h.cfg.Server.StreamTickSeconds) * time.Second
	if tick <= 0 {
		tick = time.Second
	}

	s := &streamer{h: h, state: stateFromQuery(c)}
	ctx := c.Request.Context()
	frames := make(chan streamFrame, 1)
	frames <- s.frame(h.now())

	// Only this goroutine sends, so a free slot stays free until the send.
	stop := clock.Every(ctx, tick, func(time.Time) {
		if len(frames) > 0 {
			return
		}
		frames <- s.frame(h.now())
	})
	defer stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case f := <-frames:
			c.SSEvent("activities", f)
			return true
		}
	})
}
