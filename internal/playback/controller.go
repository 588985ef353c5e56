// Package playback owns the frame cursor and the clock that advances it.
//
// The Controller is a two-state machine, Stopped(frame) and Playing(frame,
// speed). While playing, a repeating task scheduled at BasePeriod/speed
// advances the cursor by exactly one frame per tick and stops at the last
// frame. Every task is bound to a generation token; replacing or cancelling
// the task bumps the generation so an in-flight tick from an older task is
// discarded instead of applied.
package playback

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pump-sim/backend/internal/logger"
	"github.com/pump-sim/backend/internal/models"
	"github.com/rs/zerolog"
)

const (
	// BasePeriod is the tick period at speed 1.
	BasePeriod = 100 * time.Millisecond

	minPeriod = time.Millisecond
	maxPeriod = 24 * time.Hour

	subscriberBuffer = 8
)

// Command names reported to Hooks.
const (
	CmdPlay     = "play"
	CmdPause    = "pause"
	CmdToggle   = "toggle"
	CmdReset    = "reset"
	CmdSeek     = "seek"
	CmdSetSpeed = "setSpeed"
)

// Hooks observes controller activity. Implementations are called with the
// controller lock held and must not call back into the controller.
type Hooks interface {
	OnTick(state models.PlaybackState)
	OnCommand(command string, state models.PlaybackState, err error)
}

type nopHooks struct{}

func (nopHooks) OnTick(models.PlaybackState)                   {}
func (nopHooks) OnCommand(string, models.PlaybackState, error) {}

// Option configures a Controller.
type Option func(*Controller)

// WithHooks installs activity hooks.
func WithHooks(h Hooks) Option {
	return func(c *Controller) {
		if h != nil {
			c.hooks = h
		}
	}
}

// WithBasePeriod overrides the tick period at speed 1.
func WithBasePeriod(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.basePeriod = d
		}
	}
}

// WithInitialSpeed overrides the starting speed multiplier.
func WithInitialSpeed(speed float64) Option {
	return func(c *Controller) {
		if validSpeed(speed) {
			c.state.SpeedMultiplier = speed
		}
	}
}

// WithLogger sets the controller's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

// Controller is the single writer of the playback state.
type Controller struct {
	mu         sync.Mutex
	length     int
	sched      Scheduler
	hooks      Hooks
	log        zerolog.Logger
	basePeriod time.Duration

	state  models.PlaybackState
	task   Task
	closed bool

	subs    map[uint64]chan models.PlaybackState
	nextSub uint64
}

// New creates a stopped controller at frame 0 for a series of length frames.
func New(length int, sched Scheduler, opts ...Option) *Controller {
	if length < 1 {
		length = 1
	}
	c := &Controller{
		length:     length,
		sched:      sched,
		hooks:      nopHooks{},
		log:        logger.Component("playback"),
		basePeriod: BasePeriod,
		state: models.PlaybackState{
			SpeedMultiplier: models.DefaultSpeed,
		},
		subs: make(map[uint64]chan models.PlaybackState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Period returns the tick period for a speed multiplier at the default base
// period, bounded to [1ms, 24h].
func Period(speed float64) time.Duration {
	return periodFor(BasePeriod, speed)
}

func periodFor(base time.Duration, speed float64) time.Duration {
	p := float64(base) / speed
	if p < float64(minPeriod) {
		return minPeriod
	}
	if p > float64(maxPeriod) {
		return maxPeriod
	}
	return time.Duration(math.Round(p))
}

func validSpeed(speed float64) bool {
	return speed > 0 && !math.IsInf(speed, 0) && !math.IsNaN(speed)
}

// Length returns the number of frames the controller walks.
func (c *Controller) Length() int {
	return c.length
}

// State returns the current snapshot.
func (c *Controller) State() models.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentPeriod returns the tick period for the current speed.
func (c *Controller) CurrentPeriod() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return periodFor(c.basePeriod, c.state.SpeedMultiplier)
}

// Play starts advancing frames. It is a no-op while already playing. At the
// last frame playback still starts and the next tick stops it again.
func (c *Controller) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.playLocked()
	c.hooks.OnCommand(CmdPlay, c.state, nil)
}

// Pause stops advancing frames, keeping the current frame.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pauseLocked()
	c.hooks.OnCommand(CmdPause, c.state, nil)
}

// Toggle pauses when playing and plays otherwise.
func (c *Controller) Toggle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsPlaying {
		c.pauseLocked()
	} else {
		c.playLocked()
	}
	c.hooks.OnCommand(CmdToggle, c.state, nil)
}

// Reset rewinds to frame 0 and pauses.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if c.state.IsPlaying {
		c.state.IsPlaying = false
		c.cancelTaskLocked()
	}
	c.state.CurrentFrame = 0
	c.publishLocked()
	c.hooks.OnCommand(CmdReset, c.state, nil)
}

// Seek moves to frame and pauses. Frames outside [0, length) are rejected
// with ErrOutOfRange and leave the state untouched.
func (c *Controller) Seek(frame int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if frame < 0 || frame >= c.length {
		err := fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, frame, c.length)
		c.hooks.OnCommand(CmdSeek, c.state, err)
		return err
	}
	if c.closed {
		return ErrClosed
	}

	if c.state.IsPlaying {
		c.state.IsPlaying = false
		c.cancelTaskLocked()
	}
	c.state.CurrentFrame = frame
	c.publishLocked()
	c.hooks.OnCommand(CmdSeek, c.state, nil)
	return nil
}

// SetSpeed changes the speed multiplier. While playing, the running task is
// replaced so the next tick uses the new period; elapsed time is not caught up.
func (c *Controller) SetSpeed(multiplier float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !validSpeed(multiplier) {
		err := fmt.Errorf("%w: %v", ErrInvalidSpeed, multiplier)
		c.hooks.OnCommand(CmdSetSpeed, c.state, err)
		return err
	}
	if c.closed {
		return ErrClosed
	}

	c.state.SpeedMultiplier = multiplier
	if c.state.IsPlaying {
		c.startTaskLocked()
	}
	c.publishLocked()
	c.hooks.OnCommand(CmdSetSpeed, c.state, nil)
	return nil
}

// Subscribe registers for snapshots. The current state is delivered first.
// Delivery never blocks the controller: when a subscriber falls behind, its
// oldest pending snapshot is dropped. The returned func unsubscribes and
// closes the channel.
func (c *Controller) Subscribe() (<-chan models.PlaybackState, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan models.PlaybackState, subscriberBuffer)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.state

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Close cancels any running task and closes every subscription.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.state.IsPlaying = false
	c.cancelTaskLocked()
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

func (c *Controller) playLocked() {
	if c.closed || c.state.IsPlaying {
		return
	}
	c.state.IsPlaying = true
	c.startTaskLocked()
	c.publishLocked()
}

func (c *Controller) pauseLocked() {
	if c.closed || !c.state.IsPlaying {
		return
	}
	c.state.IsPlaying = false
	c.cancelTaskLocked()
	c.publishLocked()
}

// startTaskLocked replaces any running task with one bound to a new generation.
func (c *Controller) startTaskLocked() {
	c.cancelTaskLocked()

	gen := c.state.Generation
	period := periodFor(c.basePeriod, c.state.SpeedMultiplier)
	c.task = c.sched.Every(period, func() { c.tick(gen) })

	c.log.Debug().Uint64("generation", gen).Dur("period", period).Msg("timer started")
}

// cancelTaskLocked invalidates the current generation and stops its task.
func (c *Controller) cancelTaskLocked() {
	c.state.Generation++
	if c.task != nil {
		c.task.Stop()
		c.task = nil
	}
}

func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.state.IsPlaying || gen != c.state.Generation {
		c.log.Debug().Uint64("generation", gen).Msg("stale tick discarded")
		return
	}

	last := c.length - 1
	next := c.state.CurrentFrame + 1
	if next >= last {
		c.state.CurrentFrame = last
		c.state.IsPlaying = false
		c.cancelTaskLocked()
		c.log.Debug().Int("frame", last).Msg("reached end of series")
	} else {
		c.state.CurrentFrame = next
	}

	c.publishLocked()
	c.hooks.OnTick(c.state)
}

func (c *Controller) publishLocked() {
	c.state.Version++
	snap := c.state
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			// Drop the oldest pending snapshot; the newest one wins.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
