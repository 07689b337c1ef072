package api

import (
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"painel-pcm-backend/config"
	"painel-pcm-backend/internal/clock"
	"painel-pcm-backend/internal/filter"
	"painel-pcm-backend/internal/source"
	"painel-pcm-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	source  *source.Service
	store   store.Store
	cfg     *config.Config
	webpush *webpush.Options
	clock   clock.Clock
}

// NewHandler creates a new API handler.
func NewHandler(src *source.Service, s store.Store, cfg *config.Config, webpushOptions *webpush.Options, clk clock.Clock) *Handler {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Handler{
		source:  src,
		store:   s,
		cfg:     cfg,
		webpush: webpushOptions,
		clock:   clk,
	}
}

func (h *Handler) now() time.Time {
	return h.clock.Now()
}

// stateFromQuery reads filter selections from the query string. List fields may
// be repeated or comma separated.
func stateFromQuery(c *gin.Context) filter.State {
	return filter.State{
		Date:           strings.TrimSpace(c.Query(string(filter.FieldDate))),
		Asset:          strings.TrimSpace(c.Query(string(filter.FieldAsset))),
		ManagementUnit: queryList(c, filter.FieldManagementUnit),
		TrackSegment:   queryList(c, filter.FieldTrackSegment),
		SubArea:        queryList(c, filter.FieldSubArea),
		Activity:       queryList(c, filter.FieldActivity),
		RecordType:     queryList(c, filter.FieldRecordType),
	}
}

func queryList(c *gin.Context, f filter.Field) []string {
	var out []string
	for _, raw := range c.QueryArray(string(f)) {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
