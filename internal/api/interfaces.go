// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/pump-sim/backend/internal/session"
)

// PlaybackHandler handles playback control and views
type PlaybackHandler interface {
	HandleGetPlayback(c echo.Context) error
	HandleGetDiagram(c echo.Context) error
	HandleGetChart(c echo.Context) error
	HandlePlay(c echo.Context) error
	HandlePause(c echo.Context) error
	HandleToggle(c echo.Context) error
	HandleReset(c echo.Context) error
	HandleSeek(c echo.Context) error
	HandleSetSpeed(c echo.Context) error
	HandleChartClick(c echo.Context) error
	HandlePlaybackStream(c echo.Context) error
}

// SeriesHandler handles series downloads and analytics queries
type SeriesHandler interface {
	HandleGetSeries(c echo.Context) error
	HandleGetSeriesMsgpack(c echo.Context) error
	HandleGetDailySummary(c echo.Context) error
	HandleGetStatusCounts(c echo.Context) error
	HandleGetRange(c echo.Context) error
	HandleRegenerate(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	Current() (*session.Session, error)
	Regenerate(ctx context.Context, seed *int64) (*session.Session, error)
}

var (
	_ PlaybackHandler = (*Handler)(nil)
	_ SeriesHandler   = (*Handler)(nil)
	_ HealthHandler   = (*Handler)(nil)
	_ SessionManager  = (*session.Manager)(nil)
)
