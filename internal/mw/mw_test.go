package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCache_KeyedByVersion(t *testing.T) {
	version := "snap-1"
	calls := 0

	r := gin.New()
	r.Use(Cache(cache.New(time.Minute, time.Minute), time.Minute, func() string { return version }))
	r.GET("/api/summary", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"version": version})
	})

	get := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/summary", nil)
		r.ServeHTTP(w, req)
		return w
	}

	first := get()
	second := get()
	assert.Equal(t, 1, calls)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	version = "snap-2"
	third := get()
	assert.Equal(t, 2, calls)
	assert.JSONEq(t, `{"version":"snap-2"}`, third.Body.String())
}

func TestCache_SkipsErrorsAndNonGet(t *testing.T) {
	calls := 0

	r := gin.New()
	r.Use(Cache(cache.New(time.Minute, time.Minute), time.Minute, nil))
	r.GET("/fail", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})
	r.POST("/refresh", func(c *gin.Context) {
		calls++
		c.Status(http.StatusAccepted)
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/fail", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusInternalServerError, w.Code)

		w = httptest.NewRecorder()
		req, _ = http.NewRequest(http.MethodPost, "/refresh", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusAccepted, w.Code)
	}
	assert.Equal(t, 4, calls)
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(rate.Limit(1), 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestIPRateLimiter_DropsIdleVisitors(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	limiter := NewIPRateLimiter(rate.Limit(1), 1)
	limiter.now = func() time.Time { return now }

	first := limiter.GetLimiter("10.0.0.1")
	limiter.GetLimiter("10.0.0.2")
	assert.Same(t, first, limiter.GetLimiter("10.0.0.1"))
	assert.Equal(t, 2, limiter.Len())

	now = now.Add(visitorIdle + time.Minute)
	limiter.GetLimiter("10.0.0.3")
	assert.Equal(t, 1, limiter.Len())
	assert.NotSame(t, first, limiter.GetLimiter("10.0.0.1"))
}
