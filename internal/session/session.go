// Package session ties one generated series to its playback controller and
// analytics store, and builds the views the renderers consume.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pump-sim/backend/internal/models"
	"github.com/pump-sim/backend/internal/playback"
	"github.com/pump-sim/backend/internal/simulation"
	"github.com/pump-sim/backend/internal/store"
)

// ErrNoStore is returned by Analytics when the DuckDB store could not be opened.
var ErrNoStore = errors.New("analytics store unavailable")

// Session is the active simulation: a series, the controller walking it and
// an optional analytics store over it.
type Session struct {
	ID        string
	CreatedAt time.Time

	controller   *playback.Controller
	speedOptions []float64

	mu          sync.RWMutex
	series      models.Series
	store       *store.DuckStore
	seeded      bool
	seed        int64
	regenerated int
}

// Info returns the session metadata.
func (s *Session) Info() models.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.SessionInfo{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		SeriesLength: s.series.Len(),
		Seeded:       s.seeded,
		Seed:         s.seed,
		Regenerated:  s.regenerated,
	}
}

// Series returns the current series. Callers must not modify it.
func (s *Session) Series() models.Series {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.series
}

// Controller returns the playback controller.
func (s *Session) Controller() *playback.Controller {
	return s.controller
}

// Analytics returns the DuckDB store over the series.
func (s *Session) Analytics() (*store.DuckStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store, nil
}

// DiagramView returns the schematic diagram's view of the current frame.
func (s *Session) DiagramView() models.DiagramView {
	return s.DiagramViewAt(s.controller.State())
}

// DiagramViewAt builds the diagram view for a given snapshot.
func (s *Session) DiagramViewAt(state models.PlaybackState) models.DiagramView {
	sample := s.sampleAt(state.CurrentFrame)
	return models.DiagramView{
		Sample:          sample,
		ShowMaintenance: simulation.InMaintenanceWindow(state.CurrentFrame),
		CurrentFrame:    state.CurrentFrame,
		RotationAngle:   simulation.RotationAngle(state.CurrentFrame),
		StatusColor:     sample.Status.Color(),
		StatusLabel:     sample.Status.Label(),
	}
}

// ChartView returns the full series with the current frame marker.
func (s *Session) ChartView() models.ChartView {
	state := s.controller.State()
	return models.ChartView{
		Series:       s.Series(),
		CurrentFrame: state.CurrentFrame,
	}
}

// ControlView returns what the control surface shows.
func (s *Session) ControlView() models.ControlView {
	return s.ControlViewAt(s.controller.State())
}

// ControlViewAt builds the control view for a given snapshot.
func (s *Session) ControlViewAt(state models.PlaybackState) models.ControlView {
	return models.ControlView{
		CurrentFrame:    state.CurrentFrame,
		SeriesLength:    s.controller.Length(),
		IsPlaying:       state.IsPlaying,
		SpeedMultiplier: state.SpeedMultiplier,
		SpeedOptions:    s.speedOptions,
		Sample:          s.sampleAt(state.CurrentFrame),
		Version:         state.Version,
	}
}

// FrameUpdate is the payload pushed to streaming clients for a snapshot.
func (s *Session) FrameUpdate(state models.PlaybackState) models.FrameUpdate {
	return models.FrameUpdate{
		SessionID: s.ID,
		Control:   s.ControlViewAt(state),
		Diagram:   s.DiagramViewAt(state),
	}
}

// OnFrameClick handles a click on a chart point by seeking to its frame.
func (s *Session) OnFrameClick(frame int) error {
	return s.controller.Seek(frame)
}

func (s *Session) sampleAt(frame int) models.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sample, _ := s.series.At(frame)
	return sample
}

// replaceSeries swaps in a new series of the same length and rewinds playback.
// The analytics store is reloaded before anything else changes, so a failed
// reload leaves the session untouched. The controller reset happens last so
// subscribers rebuild their views from the new series.
func (s *Session) replaceSeries(ctx context.Context, series models.Series, seed *int64) error {
	if series.Len() != s.controller.Length() {
		return fmt.Errorf("series length %d does not match controller length %d", series.Len(), s.controller.Length())
	}

	s.mu.Lock()
	if s.store != nil {
		if err := s.store.Load(ctx, series); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to reload analytics store: %w", err)
		}
	}
	s.series = series
	s.seeded = seed != nil
	s.seed = 0
	if seed != nil {
		s.seed = *seed
	}
	s.regenerated++
	s.mu.Unlock()

	s.controller.Reset()
	return nil
}

func (s *Session) close() error {
	s.controller.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		err := s.store.Close()
		s.store = nil
		return err
	}
	return nil
}
