// manual_scheduler.go - Deterministic scheduler implementation for testing
package testutil

import (
	"sync"
	"time"

	"github.com/pump-sim/backend/internal/playback"
)

// ManualTask is a task created by ManualScheduler. It only runs when fired.
type ManualTask struct {
	period  time.Duration
	fn      func()
	mu      sync.Mutex
	stopped bool
}

// Stop marks the task as cancelled.
func (t *ManualTask) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

// Stopped reports whether Stop has been called.
func (t *ManualTask) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Period returns the period the task was scheduled with.
func (t *ManualTask) Period() time.Duration {
	return t.period
}

// Fire invokes the callback regardless of the stopped flag. Tests use it to
// simulate a tick that was already in flight when the task was cancelled.
func (t *ManualTask) Fire() {
	t.fn()
}

// ManualScheduler implements playback.Scheduler without a clock.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []*ManualTask
}

// NewManualScheduler creates an empty manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Every records the task; it never fires on its own.
func (s *ManualScheduler) Every(period time.Duration, fn func()) playback.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &ManualTask{period: period, fn: fn}
	s.tasks = append(s.tasks, t)
	return t
}

// Tick fires every active task once and returns how many fired.
func (s *ManualScheduler) Tick() int {
	fired := 0
	for _, t := range s.Active() {
		if !t.Stopped() {
			t.Fire()
			fired++
		}
	}
	return fired
}

// TickN calls Tick n times.
func (s *ManualScheduler) TickN(n int) {
	for i := 0; i < n; i++ {
		s.Tick()
	}
}

// Active returns the tasks that have not been stopped.
func (s *ManualScheduler) Active() []*ManualTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ManualTask
	for _, t := range s.tasks {
		if !t.Stopped() {
			out = append(out, t)
		}
	}
	return out
}

// Tasks returns every task ever scheduled, oldest first.
func (s *ManualScheduler) Tasks() []*ManualTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*ManualTask, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Last returns the most recently scheduled task, or nil.
func (s *ManualScheduler) Last() *ManualTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tasks) == 0 {
		return nil
	}
	return s.tasks[len(s.tasks)-1]
}

// Ensure ManualScheduler implements playback.Scheduler
var _ playback.Scheduler = (*ManualScheduler)(nil)
