package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pump-sim/backend/internal/models"
	"github.com/pump-sim/backend/internal/playback"
	"github.com/stretchr/testify/assert"
)

func TestPlaybackMetrics(t *testing.T) {
	m := New(nil)

	m.OnCommand(playback.CmdPlay, models.PlaybackState{IsPlaying: true, SpeedMultiplier: 2}, nil)
	m.OnTick(models.PlaybackState{CurrentFrame: 1, IsPlaying: true, SpeedMultiplier: 2})
	m.OnTick(models.PlaybackState{CurrentFrame: 2, IsPlaying: true, SpeedMultiplier: 2})

	if got := testutil.ToFloat64(m.ticks); got != 2 {
		t.Fatalf("expected 2 ticks, got %f", got)
	}
	if got := testutil.ToFloat64(m.commands.WithLabelValues(playback.CmdPlay)); got != 1 {
		t.Fatalf("expected play counter 1, got %f", got)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.currentFrame))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.playing))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.speed))

	m.OnCommand(playback.CmdSeek, models.PlaybackState{}, fmt.Errorf("%w: 400", playback.ErrOutOfRange))
	m.OnCommand(playback.CmdSetSpeed, models.PlaybackState{}, playback.ErrInvalidSpeed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues(playback.CmdSeek, "out_of_range")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues(playback.CmdSetSpeed, "invalid_speed")))
	// Rejections leave the gauges alone.
	assert.Equal(t, 2.0, testutil.ToFloat64(m.currentFrame))

	m.StreamOpened("sse")
	m.StreamOpened("sse")
	m.StreamClosed("sse")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.streamConns.WithLabelValues("sse")))

	m.SeriesRegenerated()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.regenerated))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(nil)
	m.OnTick(models.PlaybackState{CurrentFrame: 7})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pumpsim_playback_ticks_total 1")
	assert.Contains(t, rec.Body.String(), "pumpsim_playback_current_frame 7")
}
