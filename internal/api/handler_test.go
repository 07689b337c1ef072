package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"painel-pcm-backend/config"
	"painel-pcm-backend/internal/clock"
	"painel-pcm-backend/internal/db"
	"painel-pcm-backend/internal/kpi"
	"painel-pcm-backend/internal/model"
	"painel-pcm-backend/internal/source"
	"painel-pcm-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNow = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

func at(hour, minute int) *time.Time {
	t := time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
	return &t
}

func code(c int) *int { return &c }

func fixture() []model.Record {
	return []model.Record{
		{
			Date: "2025-03-10", ManagementUnit: "SP SUL", TrackSegment: "T1", SubArea: "A1",
			Asset: "MQ-01", Activity: "Socaria", ActivityType: "SOCARIA", StatusCode: code(model.CodeCompleted),
			ScheduledDuration: "01:00", ActualStart: at(8, 0), ActualEnd: at(9, 0),
		},
		{
			Date: "2025-03-10", ManagementUnit: "SP SUL", TrackSegment: "T2", SubArea: "A2",
			Asset: "MQ-02", Activity: "Solda", ActivityType: "SOLDA",
			ScheduledDuration: "02:00",
		},
		{
			Date: "2025-03-10", ManagementUnit: "SP NORTE", TrackSegment: "T9", SubArea: "A9",
			Asset: "MQ-03", Activity: "Capina", ActivityType: "CAPINA", StatusCode: code(model.CodeInProgress),
			ScheduledDuration: "01:00", ActualStart: at(9, 30),
		},
		{
			Date: "2025-03-10", ManagementUnit: "SP NORTE", TrackSegment: "T9", SubArea: "A9",
			Asset: "AUTO-7", Activity: "Deslocamento", ActivityType: "DESLOCAMENTO", StatusCode: code(model.CodeCompleted),
			ScheduledDuration: "00:30", ActualStart: at(7, 0), ActualEnd: at(7, 30),
		},
	}
}

type testEnv struct {
	router *gin.Engine
	source *source.Service
	store  store.Store
	cfg    *config.Config
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateLimitBurst = 1000
	cfg.Server.CacheTTLSeconds = 30
	cfg.Server.StreamTickSeconds = 1
	cfg.KPI.IgnoredActivityTypes = []string{"DESLOCAMENTO"}
	return cfg
}

func newTestStore(t *testing.T) store.Store {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gormDB))
	return store.NewGormStore(gormDB)
}

// newTestEnv wires a source that has fetched fetcher once, with its snapshot persisted.
func newTestEnv(t *testing.T, cfg *config.Config, fetcher source.Fetcher) *testEnv {
	s := newTestStore(t)
	src := source.NewService(fetcher, time.Minute, clock.Func(func() time.Time { return testNow }))
	src.OnSnapshot(func(_, next model.Snapshot, changed []string) {
		require.NoError(t, s.SaveSnapshot(context.Background(), next, changed))
	})
	require.NoError(t, src.Refetch(context.Background()))

	h := NewHandler(src, s, cfg, &webpush.Options{VAPIDPublicKey: "public-key"}, clock.Func(func() time.Time { return testNow }))
	return &testEnv{router: NewRouter(h), source: src, store: s, cfg: cfg}
}

func staticFetcher(records []model.Record) source.Fetcher {
	return source.FetcherFunc(func(ctx context.Context) (source.Result, error) {
		return source.Result{Records: records}, nil
	})
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, target, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestGetActivities(t *testing.T) {
	env := newTestEnv(t, testConfig(), staticFetcher(fixture()))

	testCases := []struct {
		name       string
		query      string
		wantAssets []string
	}{
		{name: "no filters", query: "", wantAssets: []string{"MQ-01", "MQ-02", "MQ-03", "AUTO-7"}},
		{name: "one unit", query: "?management_unit=SP%20SUL", wantAssets: []string{"MQ-01", "MQ-02"}},
		{name: "comma separated", query: "?track_segment=T1,T9", wantAssets: []string{"MQ-01", "MQ-03", "AUTO-7"}},
		{name: "repeated", query: "?activity=SOLDA&activity=CAPINA", wantAssets: []string{"MQ-02", "MQ-03"}},
		{name: "asset substring", query: "?asset=mq-0", wantAssets: []string{"MQ-01", "MQ-02", "MQ-03"}},
		{name: "other date", query: "?date=2025-03-11", wantAssets: []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/activities"+tc.query, nil)
			require.Equal(t, http.StatusOK, w.Code)

			resp := decode[activitiesResponse](t, w)
			assert.Equal(t, 4, resp.Total)
			assets := []string{}
			for _, r := range resp.Rows {
				assets = append(assets, r.Asset)
			}
			assert.Equal(t, tc.wantAssets, assets)
		})
	}
}

func TestGetActivities_DerivedView(t *testing.T) {
	env := newTestEnv(t, testConfig(), staticFetcher(fixture()))

	w := env.do(t, http.MethodGet, "/api/activities?asset=MQ-03", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[activitiesResponse](t, w)
	require.Len(t, resp.Rows, 1)

	view := resp.Rows[0].View
	assert.Equal(t, model.StatusPartial, view.Status)
	assert.Equal(t, "00:30", view.Elapsed.Text)
	assert.True(t, view.Elapsed.Live)
	assert.Equal(t, "01:00", view.Scheduled.Text)
	assert.False(t, resp.Rows[0].Highlighted, "the first fetch highlights nothing")
}

func TestChangeFilter_ResetsDownstream(t *testing.T) {
	env := newTestEnv(t, testConfig(), staticFetcher(fixture()))

	body := gin.H{
		"state": gin.H{
			"date":            "2025-03-10",
			"management_unit": []string{"SP SUL"},
			"track_segment":   []string{"T1"},
			"sub_area":        []string{"A1"},
		},
		"field":  "management_unit",
		"values": []string{"SP NORTE"},
	}
	w := env.do(t, http.MethodPost, "/api/filters", body)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[filtersResponse](t, w)
	assert.Equal(t, []string{"SP NORTE"}, resp.State.ManagementUnit)
	assert.Empty(t, resp.State.TrackSegment)
	assert.Empty(t, resp.State.SubArea)
	assert.Equal(t, "2025-03-10", resp.State.Date)
	assert.Equal(t, []string{"T9"}, resp.Options["track_segment"])
	assert.Equal(t, []string{"SP NORTE", "SP SUL"}, resp.Options["management_unit"])
	assert.Equal(t, []string{"CAPINA", "DESLOCAMENTO"}, resp.Options["activity"])
}

func TestChangeFilter_BadRequests(t *testing.T) {
	env := newTestEnv(t, testConfig(), staticFetcher(fixture()))

	w := env.do(t, http.MethodPost, "/api/filters", gin.H{"field": "colour", "values": []string{"red"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/filters", gin.H{"values": []string{"x"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOptions(t *testing.T) {
	env := newTestEnv(t, testConfig(), staticFetcher(fixture()))

	w := env.do(t, http.MethodGet, "/api/options?management_unit=SP%20SUL", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[filtersResponse](t, w)
	assert.Equal(t, []string{"T1", "T2"}, resp.Options["track_segment"])
	assert.Equal(t, []string{"A1", "A2"}, resp.Options["sub_area"])
}

func TestGetSummary(t *testing.T) {
	env := newTestEnv(t, testConfig(), staticFetcher(fixture()))

	w := env.do(t, http.MethodGet, "/api/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	weighted := decode[kpi.Summary](t, w)
	assert.Equal(t, kpi.StrategyWeighted, weighted.Strategy)
	assert.Equal(t, 4, weighted.Total)
	assert.Equal(t, 3, weighted.Included)
	assert.Equal(t, 50.0, weighted.Adherence)
	assert.Equal(t, 2, weighted.Counts.Completed)

	w = env.do(t, http.MethodGet, "/api/summary?strategy=minutes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	minutes := decode[kpi.Summary](t, w)
	assert.Equal(t, 270, minutes.ScheduledMinutes)
	assert.Equal(t, 120, minutes.RealizedMinutes)
	assert.Equal(t, 44.4, minutes.Adherence)
	assert.Equal(t, "44.4", minutes.AdherenceText)

	w = env.do(t, http.MethodGet, "/api/summary?strategy=median", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetUnits(t *testing.T) {
	env := newTestEnv(t, testConfig(), staticFetcher(fixture()))

	w := env.do(t, http.MethodGet, "/api/units", nil)
	require.Equal(t, http.StatusOK, w.Code)
	units := decode[[]UnitResponse](t, w)
	require.Len(t, units, 2)

	assert.Equal(t, "SP NORTE", units[0].Name)
	assert.NotZero(t, units[0].ID)
	assert.Equal(t, 2, units[0].Records)
	assert.Equal(t, 66.7, units[0].Summary.Adherence)

	assert.Equal(t, "SP SUL", units[1].Name)
	assert.Equal(t, 33.3, units[1].Summary.Adherence)
	assert.Equal(t, kpi.StrategyMinutes, units[1].Summary.Strategy)
}

func TestGetStatus_ErrorDetail(t *testing.T) {
	calls := 0
	fetcher := source.FetcherFunc(func(ctx context.Context) (source.Result, error) {
		calls++
		if calls == 1 {
			return source.Result{Records: fixture()}, nil
		}
		return source.Result{}, errors.New("dial tcp: connection refused")
	})

	testCases := []struct {
		name       string
		expose     bool
		wantDetail string
	}{
		{name: "detail hidden", expose: false, wantDetail: ""},
		{name: "detail exposed", expose: true, wantDetail: "dial tcp: connection refused"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			calls = 0
			cfg := testConfig()
			cfg.Server.ExposeErrorDetail = tc.expose
			env := newTestEnv(t, cfg, fetcher)

			w := env.do(t, http.MethodPost, "/api/refresh", nil)
			assert.Equal(t, http.StatusBadGateway, w.Code)

			w = env.do(t, http.MethodGet, "/api/status", nil)
			require.Equal(t, http.StatusOK, w.Code)
			status := decode[statusResponse](t, w)
			assert.Equal(t, source.UserMessage, status.Error)
			assert.Equal(t, tc.wantDetail, status.Detail)
			assert.Equal(t, 4, status.Records, "last good snapshot is kept")
			assert.False(t, status.Loading)
		})
	}
}

func TestRefresh_ReportsChanges(t *testing.T) {
	records := fixture()
	calls := 0
	fetcher := source.FetcherFunc(func(ctx context.Context) (source.Result, error) {
		calls++
		rs := append([]model.Record(nil), records...)
		if calls > 1 {
			rs[1].StatusCode = code(model.CodeCancelled)
		}
		return source.Result{Records: rs}, nil
	})
	env := newTestEnv(t, testConfig(), fetcher)
	firstID := env.source.Snapshot().ID

	w := env.do(t, http.MethodPost, "/api/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[statusResponse](t, w)
	assert.NotEqual(t, firstID, status.SnapshotID)

	w = env.do(t, http.MethodGet, "/api/changes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var changes struct {
		SnapshotID string   `json:"snapshot_id"`
		Changed    []string `json:"changed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &changes))
	assert.Contains(t, changes.Changed, records[1].Key())

	w = env.do(t, http.MethodGet, "/api/history?key="+strings.ReplaceAll(records[1].Key(), " ", "%20"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[[]historyEntry](t, w)
	require.Len(t, history, 1, "the first snapshot has nothing to compare against")
	assert.Equal(t, status.SnapshotID, history[0].SnapshotID)
	assert.Contains(t, string(history[0].Record), `"status_code":0`)

	w = env.do(t, http.MethodGet, "/api/history", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStream(t *testing.T) {
	env := newTestEnv(t, testConfig(), staticFetcher(fixture()))
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream?management_unit=SP%20NORTE", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var frames []streamFrame
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() && len(frames) < 2 {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var f streamFrame
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &f))
		frames = append(frames, f)
	}
	cancel()

	require.Len(t, frames, 2)
	assert.Len(t, frames[0].Rows, 2, "first frame carries the rows")
	assert.Empty(t, frames[1].Rows, "unchanged rows are not resent")
	require.Len(t, frames[1].Views, 2)
	assert.Equal(t, "MQ-03|Capina|2025-03-10", frames[1].Views[0].Key)
	assert.True(t, frames[1].Views[0].Live)
	assert.Equal(t, "00:30", frames[1].Views[0].Elapsed)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	env := newTestEnv(t, testConfig(), staticFetcher(fixture()))
	w := env.do(t, http.MethodGet, "/api/vapid_public_key", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"public-key","ttl":0}`, w.Body.String())

	h := NewHandler(env.source, env.store, testConfig(), nil, nil)
	r := gin.New()
	r.GET("/api/vapid_public_key", h.GetVAPIDPublicKey)
	w = httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/vapid_public_key", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
