package playback

import (
	"sync"
	"time"

	"github.com/pump-sim/backend/internal/logger"
	"github.com/rs/zerolog"
)

// Task is a handle to a scheduled repeating job.
type Task interface {
	// Stop cancels the task. It never blocks and may be called from inside
	// the task's own callback.
	Stop()
}

// Scheduler runs fn repeatedly every period until the returned Task is stopped.
type Scheduler interface {
	Every(period time.Duration, fn func()) Task
}

// TickerScheduler drives tasks from time.Ticker. It is a fixed-rate clock:
// when a callback runs long, ticks are dropped rather than queued, so a slow
// host falls behind real time instead of bursting.
type TickerScheduler struct {
	log zerolog.Logger
}

// NewTickerScheduler creates a wall-clock scheduler.
func NewTickerScheduler() *TickerScheduler {
	return &TickerScheduler{log: logger.Component("scheduler")}
}

type tickerTask struct {
	done chan struct{}
	once sync.Once
}

func (t *tickerTask) Stop() {
	t.once.Do(func() { close(t.done) })
}

// Every starts a goroutine that calls fn on each tick.
func (s *TickerScheduler) Every(period time.Duration, fn func()) Task {
	task := &tickerTask{done: make(chan struct{})}
	ticker := time.NewTicker(period)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-task.done:
				return
			case <-ticker.C:
				// Stop may race with a ready tick; prefer the cancellation.
				select {
				case <-task.done:
					return
				default:
				}
				s.run(fn)
			}
		}
	}()

	return task
}

func (s *TickerScheduler) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("tick callback panicked")
		}
	}()
	fn()
}
