package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pump-sim/backend/internal/config"
	"github.com/pump-sim/backend/internal/logger"
	"github.com/pump-sim/backend/internal/metrics"
	"github.com/pump-sim/backend/internal/models"
	"github.com/pump-sim/backend/internal/playback"
	"github.com/pump-sim/backend/internal/simulation"
	"github.com/pump-sim/backend/internal/store"
	"github.com/rs/zerolog"
)

// ErrNoSession is returned before Start or after Close.
var ErrNoSession = errors.New("no active session")

// Option configures a Manager.
type Option func(*Manager)

// WithScheduler replaces the wall-clock scheduler, mostly for tests.
func WithScheduler(s playback.Scheduler) Option {
	return func(m *Manager) {
		if s != nil {
			m.sched = s
		}
	}
}

// WithMetrics records playback and regeneration activity.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithoutStore skips the DuckDB analytics store.
func WithoutStore() Option {
	return func(m *Manager) {
		m.disableStore = true
	}
}

// Manager owns the single active simulation session.
type Manager struct {
	mu           sync.RWMutex
	cfg          *config.AppConfig
	sched        playback.Scheduler
	metrics      *metrics.Metrics
	disableStore bool
	log          zerolog.Logger

	current *Session
}

// NewManager creates a manager. Nothing is generated until Start.
func NewManager(cfg *config.AppConfig, opts ...Option) *Manager {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	m := &Manager{
		cfg:   cfg,
		sched: playback.NewTickerScheduler(),
		log:   logger.Component("session"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start generates the series and creates the session. Calling Start again
// returns the existing session.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return m.current, nil
	}

	start := time.Now()
	seed := m.cfg.Simulation.Seed
	series := m.generate(seed != 0, seed)

	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		series:    series,
		seeded:    seed != 0,
		seed:      seed,
	}
	s.speedOptions, _ = m.cfg.GetSpeedOptions()
	if len(s.speedOptions) == 0 {
		s.speedOptions = models.SpeedOptions
	}

	hooks := hookChain{logHooks{log: m.log.With().Str("session", s.ID[:8]).Logger()}}
	if m.metrics != nil {
		hooks = append(hooks, m.metrics)
	}
	s.controller = playback.New(series.Len(), m.sched,
		playback.WithBasePeriod(m.cfg.GetBaseTick()),
		playback.WithInitialSpeed(m.cfg.Simulation.DefaultSpeed),
		playback.WithHooks(hooks),
	)

	if !m.disableStore {
		ds, err := store.NewDuckStore(m.cfg.Advanced.DuckDBThreads, m.cfg.Advanced.DuckDBMemoryLimit)
		if err != nil {
			// Analytics are optional; playback works without them.
			m.log.Error().Err(err).Msg("analytics store unavailable")
		} else if err := ds.Load(ctx, series); err != nil {
			m.log.Error().Err(err).Msg("failed to load series into analytics store")
			ds.Close()
		} else {
			s.store = ds
		}
	}

	m.current = s
	m.log.Info().
		Str("session", s.ID[:8]).
		Int("frames", series.Len()).
		Bool("seeded", s.seeded).
		Dur("elapsed", time.Since(start)).
		Msg("session started")
	return s, nil
}

// Current returns the active session.
func (m *Manager) Current() (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil, ErrNoSession
	}
	return m.current, nil
}

// Regenerate replaces the session's series with a fresh one and rewinds
// playback to frame 0. A nil or zero seed draws from the unseeded source, as
// a zero seed does in the config. On error the session is left unchanged.
func (m *Manager) Regenerate(ctx context.Context, seed *int64) (*Session, error) {
	s, err := m.Current()
	if err != nil {
		return nil, err
	}
	if seed != nil && *seed == 0 {
		seed = nil
	}

	var series models.Series
	if seed != nil {
		series = m.generate(true, *seed)
	} else {
		series = m.generate(false, 0)
	}

	if err := s.replaceSeries(ctx, series, seed); err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.SeriesRegenerated()
	}

	m.log.Info().Str("session", s.ID[:8]).Bool("seeded", seed != nil).Msg("series regenerated")
	return s, nil
}

// Close stops playback and releases the analytics store.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	err := m.current.close()
	m.current = nil
	return err
}

func (m *Manager) generate(seeded bool, seed int64) models.Series {
	var src simulation.RandSource
	if seeded {
		src = simulation.NewSeededSource(seed)
	}
	return simulation.NewGenerator(src).Generate()
}

// hookChain fans controller events out to several observers.
type hookChain []playback.Hooks

func (h hookChain) OnTick(state models.PlaybackState) {
	for _, hook := range h {
		hook.OnTick(state)
	}
}

func (h hookChain) OnCommand(command string, state models.PlaybackState, err error) {
	for _, hook := range h {
		hook.OnCommand(command, state, err)
	}
}

type logHooks struct {
	log zerolog.Logger
}

func (l logHooks) OnTick(models.PlaybackState) {}

func (l logHooks) OnCommand(command string, state models.PlaybackState, err error) {
	if err != nil {
		l.log.Warn().Str("command", command).Err(err).Msg("command rejected")
		return
	}
	l.log.Debug().
		Str("command", command).
		Int("frame", state.CurrentFrame).
		Bool("playing", state.IsPlaying).
		Float64("speed", state.SpeedMultiplier).
		Msg("command applied")
}
