// Package metrics exposes playback activity as Prometheus collectors.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pump-sim/backend/internal/models"
	"github.com/pump-sim/backend/internal/playback"
)

// Metrics implements playback.Hooks.
type Metrics struct {
	ticks        prometheus.Counter
	commands     *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	regenerated  prometheus.Counter
	streamConns  *prometheus.GaugeVec
	currentFrame prometheus.Gauge
	playing      prometheus.Gauge
	speed        prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pumpsim_playback_ticks_total",
			Help: "Frames advanced by the playback clock.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpsim_playback_commands_total",
			Help: "Playback commands applied, by command.",
		}, []string{"command"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpsim_playback_rejected_total",
			Help: "Playback commands rejected by validation, by command and reason.",
		}, []string{"command", "reason"}),
		regenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pumpsim_series_regenerated_total",
			Help: "Number of times the telemetry series was rebuilt.",
		}),
		streamConns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pumpsim_stream_clients",
			Help: "Connected streaming clients, by transport.",
		}, []string{"transport"}),
		currentFrame: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pumpsim_playback_current_frame",
			Help: "Current playback frame.",
		}),
		playing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pumpsim_playback_playing",
			Help: "1 while playback is running.",
		}),
		speed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pumpsim_playback_speed_multiplier",
			Help: "Current playback speed multiplier.",
		}),
		gatherer: reg,
	}

	reg.MustRegister(m.ticks, m.commands, m.rejected, m.regenerated,
		m.streamConns, m.currentFrame, m.playing, m.speed)
	return m
}

// OnTick records one frame advance.
func (m *Metrics) OnTick(state models.PlaybackState) {
	m.ticks.Inc()
	m.observe(state)
}

// OnCommand records an applied or rejected command.
func (m *Metrics) OnCommand(command string, state models.PlaybackState, err error) {
	if err != nil {
		m.rejected.WithLabelValues(command, reason(err)).Inc()
		return
	}
	m.commands.WithLabelValues(command).Inc()
	m.observe(state)
}

// SeriesRegenerated records a rebuild of the series.
func (m *Metrics) SeriesRegenerated() {
	m.regenerated.Inc()
}

// StreamOpened increments the client gauge for a transport ("sse", "ws").
func (m *Metrics) StreamOpened(transport string) {
	m.streamConns.WithLabelValues(transport).Inc()
}

// StreamClosed decrements the client gauge for a transport.
func (m *Metrics) StreamClosed(transport string) {
	m.streamConns.WithLabelValues(transport).Dec()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(state models.PlaybackState) {
	m.currentFrame.Set(float64(state.CurrentFrame))
	m.speed.Set(state.SpeedMultiplier)
	if state.IsPlaying {
		m.playing.Set(1)
	} else {
		m.playing.Set(0)
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, playback.ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, playback.ErrInvalidSpeed):
		return "invalid_speed"
	case errors.Is(err, playback.ErrClosed):
		return "closed"
	default:
		return "other"
	}
}

var _ playback.Hooks = (*Metrics)(nil)
