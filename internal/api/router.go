package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"painel-pcm-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.Default()

	server := h.cfg.Server
	limit := rate.Limit(server.RateLimitPerSec)
	if server.RateLimitPerSec <= 0 {
		limit = rate.Inf
	}
	rateLimiter := mw.RateLimiter(limit, server.RateLimitBurst)

	// Responses are keyed by snapshot, so a new poll is never masked by the cache.
	ttl := time.Duration(server.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl, func() string { return h.source.Snapshot().ID })

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/activities", h.GetActivities)
		api.GET("/options", caching, h.GetOptions)
		api.POST("/filters", h.ChangeFilter)
		api.GET("/summary", h.GetSummary)
		api.GET("/units", h.GetUnits)
		api.GET("/changes", h.GetChanges)
		api.GET("/history", caching, h.GetHistory)
		api.GET("/status", h.GetStatus)
		api.POST("/refresh", h.Refresh)
		api.GET("/stream", h.Stream)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
