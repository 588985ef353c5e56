package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pump-sim/backend/internal/config"
	"github.com/pump-sim/backend/internal/metrics"
	"github.com/pump-sim/backend/internal/models"
	"github.com/pump-sim/backend/internal/session"
	"github.com/pump-sim/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newServer wires the full middleware and route stack with a DuckDB-backed
// session.
func newServer(t *testing.T) (*echo.Echo, *session.Session) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Simulation.Seed = 5
	cfg.Advanced.EnableRequestLogging = false

	m := metrics.New(nil)
	mgr := session.NewManager(cfg,
		session.WithScheduler(testutil.NewManualScheduler()),
		session.WithMetrics(m),
	)
	t.Cleanup(func() { mgr.Close() })
	sess, err := mgr.Start(t.Context())
	require.NoError(t, err)

	h := NewHandler(mgr, WithMetrics(m))
	e := echo.New()
	SetupMiddleware(e, cfg, false)
	RegisterRoutes(e, h, NewWebSocketHandler(h, cfg.Advanced.WebSocketMaxMessageSize), m.Handler())
	return e, sess
}

func serve(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRoutesDailySummary(t *testing.T) {
	e, _ := newServer(t)

	rec := serve(e, http.MethodGet, "/api/series/daily", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var days []models.DailySummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &days))
	require.Len(t, days, models.SimulatedDays)
	total := 0
	for _, d := range days {
		total += d.Samples
	}
	assert.Equal(t, models.SeriesLength, total)
}

func TestRoutesStatusCounts(t *testing.T) {
	e, sess := newServer(t)

	rec := serve(e, http.MethodGet, "/api/series/status-counts", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Counts     map[models.Status]int `json:"counts"`
		FirstFrame map[string]int        `json:"firstFrame"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	want := map[models.Status]int{}
	for _, st := range models.AllStatuses {
		want[st] = 0
	}
	for _, s := range sess.Series() {
		want[s.Status]++
	}
	assert.Equal(t, want, body.Counts)
	assert.Equal(t, 0, body.FirstFrame[string(models.StatusNormal)])
}

func TestRoutesRange(t *testing.T) {
	e, sess := newServer(t)

	rec := serve(e, http.MethodGet, "/api/series/range?from=10&to=12", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Samples models.Series `json:"samples"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, sess.Series()[10:13], body.Samples)

	rec = serve(e, http.MethodGet, "/api/series/range?from=20&to=10", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(e, http.MethodGet, "/api/series/range?from=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeValidation)
}

func TestRoutesPlaybackAndMetrics(t *testing.T) {
	e, _ := newServer(t)

	rec := serve(e, http.MethodPost, "/api/playback/seek", `{"frame":12}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"currentFrame":12`)

	rec = serve(e, http.MethodPost, "/api/playback/seek", `{"frame":336}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeOutOfRange)

	rec = serve(e, http.MethodPost, "/api/series/regenerate", `{"seed":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(e, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `pumpsim_playback_commands_total{command="seek"} 1`)
	assert.Contains(t, body, `pumpsim_playback_rejected_total{command="seek",reason="out_of_range"} 1`)
	assert.Contains(t, body, "pumpsim_series_regenerated_total 1")

	rec = serve(e, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
