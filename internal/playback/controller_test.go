package playback_test

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/pump-sim/backend/internal/models"
	"github.com/pump-sim/backend/internal/playback"
	"github.com/pump-sim/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newController(t *testing.T, opts ...playback.Option) (*playback.Controller, *testutil.ManualScheduler) {
	t.Helper()
	sched := testutil.NewManualScheduler()
	c := playback.New(models.SeriesLength, sched, opts...)
	t.Cleanup(c.Close)
	return c, sched
}

func TestInitialState(t *testing.T) {
	c, _ := newController(t)

	st := c.State()
	assert.Equal(t, 0, st.CurrentFrame)
	assert.False(t, st.IsPlaying)
	assert.Equal(t, 0.5, st.SpeedMultiplier)
	assert.Equal(t, 200*time.Millisecond, c.CurrentPeriod())
}

func TestPlayRunsToEndAndAutoStops(t *testing.T) {
	c, sched := newController(t)

	c.Play()
	require.True(t, c.State().IsPlaying)
	require.Len(t, sched.Active(), 1)

	sched.TickN(335)

	st := c.State()
	assert.Equal(t, 335, st.CurrentFrame)
	assert.False(t, st.IsPlaying)
	assert.Empty(t, sched.Active(), "timer should be cancelled at end of series")

	// Further ticks have nothing to fire.
	assert.Equal(t, 0, sched.Tick())
	assert.Equal(t, 335, c.State().CurrentFrame)
}

func TestPlayAtLastFrameStopsOnNextTick(t *testing.T) {
	c, sched := newController(t)
	require.NoError(t, c.Seek(335))

	c.Play()
	assert.True(t, c.State().IsPlaying)

	sched.Tick()
	st := c.State()
	assert.Equal(t, 335, st.CurrentFrame)
	assert.False(t, st.IsPlaying)
}

func TestPlayIsIdempotent(t *testing.T) {
	c, sched := newController(t)

	c.Play()
	c.Play()
	assert.Len(t, sched.Tasks(), 1)

	sched.Tick()
	assert.Equal(t, 1, c.State().CurrentFrame)
}

func TestPauseKeepsFrame(t *testing.T) {
	c, sched := newController(t)

	c.Play()
	sched.TickN(10)
	c.Pause()

	st := c.State()
	assert.Equal(t, 10, st.CurrentFrame)
	assert.False(t, st.IsPlaying)
	assert.Empty(t, sched.Active())

	// Pausing again is a no-op.
	v := st.Version
	c.Pause()
	assert.Equal(t, v, c.State().Version)
}

func TestToggle(t *testing.T) {
	c, sched := newController(t)

	c.Toggle()
	assert.True(t, c.State().IsPlaying)
	sched.TickN(3)

	c.Toggle()
	assert.False(t, c.State().IsPlaying)
	assert.Equal(t, 3, c.State().CurrentFrame)
}

func TestResetFromAnyState(t *testing.T) {
	c, sched := newController(t)

	c.Reset()
	assert.Equal(t, 0, c.State().CurrentFrame)
	assert.False(t, c.State().IsPlaying)

	c.Play()
	sched.TickN(50)
	c.Reset()
	st := c.State()
	assert.Equal(t, 0, st.CurrentFrame)
	assert.False(t, st.IsPlaying)
	assert.Empty(t, sched.Active())

	require.NoError(t, c.Seek(200))
	c.Reset()
	assert.Equal(t, 0, c.State().CurrentFrame)
}

func TestSeekOutOfRange(t *testing.T) {
	c, _ := newController(t)
	require.NoError(t, c.Seek(20))
	before := c.State()

	for _, frame := range []int{400, 336, -1} {
		err := c.Seek(frame)
		require.Error(t, err)
		assert.True(t, errors.Is(err, playback.ErrOutOfRange))
		assert.Equal(t, before, c.State())
	}
}

func TestSeekPausesPlayback(t *testing.T) {
	c, sched := newController(t)

	c.Play()
	sched.TickN(5)
	require.NoError(t, c.Seek(100))

	st := c.State()
	assert.Equal(t, 100, st.CurrentFrame)
	assert.False(t, st.IsPlaying)
	assert.Empty(t, sched.Active())
}

func TestSetSpeed(t *testing.T) {
	c, sched := newController(t)

	for _, bad := range []float64{-1, 0, math.NaN(), math.Inf(1)} {
		err := c.SetSpeed(bad)
		require.Error(t, err)
		assert.True(t, errors.Is(err, playback.ErrInvalidSpeed))
	}
	assert.Equal(t, 0.5, c.State().SpeedMultiplier)

	require.NoError(t, c.SetSpeed(2))
	assert.Equal(t, 2.0, c.State().SpeedMultiplier)
	assert.False(t, c.State().IsPlaying)

	c.Play()
	assert.Equal(t, 50*time.Millisecond, sched.Last().Period())
}

func TestSetSpeedWhilePlayingReplacesTimer(t *testing.T) {
	c, sched := newController(t)

	c.Play()
	first := sched.Last()
	assert.Equal(t, 200*time.Millisecond, first.Period())
	sched.TickN(4)

	require.NoError(t, c.SetSpeed(4))
	second := sched.Last()
	assert.NotSame(t, first, second)
	assert.True(t, first.Stopped())
	assert.Equal(t, 25*time.Millisecond, second.Period())
	assert.True(t, c.State().IsPlaying)

	// No catch-up: frame advances one per tick from where it was.
	sched.Tick()
	assert.Equal(t, 5, c.State().CurrentFrame)
}

func TestStaleTickIsDiscarded(t *testing.T) {
	c, sched := newController(t)

	c.Play()
	old := sched.Last()
	c.Pause()
	c.Play()
	require.Len(t, sched.Active(), 1)

	// A tick from the cancelled timer arrives late.
	old.Fire()
	old.Fire()
	assert.Equal(t, 0, c.State().CurrentFrame)

	sched.Tick()
	assert.Equal(t, 1, c.State().CurrentFrame)
}

func TestPeriod(t *testing.T) {
	cases := map[float64]time.Duration{
		0.05:  2000 * time.Millisecond,
		0.1:   1000 * time.Millisecond,
		0.5:   200 * time.Millisecond,
		1:     100 * time.Millisecond,
		2:     50 * time.Millisecond,
		4:     25 * time.Millisecond,
		1e9:   time.Millisecond,
		1e-12: 24 * time.Hour,
	}
	for speed, want := range cases {
		assert.Equal(t, want, playback.Period(speed), "speed %v", speed)
	}
}

func TestWithOptions(t *testing.T) {
	c, sched := newController(t,
		playback.WithBasePeriod(time.Second),
		playback.WithInitialSpeed(2),
	)
	assert.Equal(t, 2.0, c.State().SpeedMultiplier)

	c.Play()
	assert.Equal(t, 500*time.Millisecond, sched.Last().Period())
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	c, sched := newController(t)

	ch, cancel := c.Subscribe()
	defer cancel()

	first := <-ch
	assert.Equal(t, 0, first.CurrentFrame)

	c.Play()
	sched.TickN(2)

	var got []models.PlaybackState
	for i := 0; i < 3; i++ {
		got = append(got, <-ch)
	}
	assert.True(t, got[0].IsPlaying)
	assert.Equal(t, 1, got[1].CurrentFrame)
	assert.Equal(t, 2, got[2].CurrentFrame)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Version, got[i-1].Version)
	}
}

func TestSlowSubscriberKeepsLatest(t *testing.T) {
	c, sched := newController(t)

	ch, cancel := c.Subscribe()
	defer cancel()

	c.Play()
	sched.TickN(100)

	var last models.PlaybackState
	n := 0
	for len(ch) > 0 {
		last = <-ch
		n++
	}
	assert.LessOrEqual(t, n, 8)
	assert.Equal(t, 100, last.CurrentFrame)
}

func TestUnsubscribeAndClose(t *testing.T) {
	c, _ := newController(t)

	ch, cancel := c.Subscribe()
	<-ch
	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	ch2, _ := c.Subscribe()
	<-ch2
	c.Close()
	_, open = <-ch2
	assert.False(t, open)

	assert.ErrorIs(t, c.Seek(3), playback.ErrClosed)
	assert.ErrorIs(t, c.SetSpeed(1), playback.ErrClosed)

	ch3, _ := c.Subscribe()
	_, open = <-ch3
	assert.False(t, open)
}

type recordingHooks struct {
	mu       sync.Mutex
	ticks    int
	commands []string
	errs     []error
}

func (h *recordingHooks) OnTick(models.PlaybackState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ticks++
}

func (h *recordingHooks) OnCommand(cmd string, _ models.PlaybackState, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, cmd)
	h.errs = append(h.errs, err)
}

func TestHooks(t *testing.T) {
	hooks := &recordingHooks{}
	c, sched := newController(t, playback.WithHooks(hooks))

	c.Play()
	sched.TickN(3)
	_ = c.Seek(999)
	_ = c.SetSpeed(1)

	assert.Equal(t, 3, hooks.ticks)
	assert.Equal(t, []string{playback.CmdPlay, playback.CmdSeek, playback.CmdSetSpeed}, hooks.commands)
	assert.NoError(t, hooks.errs[0])
	assert.ErrorIs(t, hooks.errs[1], playback.ErrOutOfRange)
}

func TestTickerSchedulerAdvances(t *testing.T) {
	c := playback.New(5, playback.NewTickerScheduler(), playback.WithBasePeriod(time.Millisecond))
	defer c.Close()
	require.NoError(t, c.SetSpeed(1))

	ch, cancel := c.Subscribe()
	defer cancel()

	c.Play()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case st := <-ch:
			if st.CurrentFrame == 4 && !st.IsPlaying {
				return
			}
		case <-deadline:
			t.Fatalf("playback did not reach the end, state %+v", c.State())
		}
	}
}
