package tick

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubastard/canopy/engine/core"
	"github.com/hubastard/canopy/engine/internal/enginetest"
	"github.com/hubastard/canopy/engine/signal"
)

func newCoordinator(t *testing.T, opts ...Option) (*Coordinator, *enginetest.Timing, *enginetest.Scheduler, *signal.Set) {
	t.Helper()
	timing := &enginetest.Timing{}
	sched := &enginetest.Scheduler{}
	set := signal.NewSet(t.Name())
	t.Cleanup(set.Close)
	opts = append([]Option{WithSignals(set)}, opts...)
	return NewCoordinator(timing, sched, opts...), timing, sched, set
}

func TestSuspendedTicksTimersOnly(t *testing.T) {
	c, timing, _, _ := newCoordinator(t)
	ran := false
	c.Events.Push(func() error { ran = true; return nil })

	res, err := c.Tick(time.Now(), true)
	require.NoError(t, err)
	assert.True(t, res.TimersOnly)
	assert.Equal(t, 1, timing.TimerTicks)
	assert.Zero(t, timing.Ticks)
	assert.False(t, ran)
	assert.Equal(t, 1, c.Events.Len())
}

func TestTickDrainsQueues(t *testing.T) {
	post := 0
	c, timing, sched, _ := newCoordinator(t, WithPostTick(func() { post++ }))
	var order []string
	c.Events.Push(func() error { order = append(order, "event"); return nil })
	c.Deferred.Push(func() error { order = append(order, "deferred"); return nil })
	c.Downloads.Push(func() error { order = append(order, "download"); return nil })
	c.FontLoads.Push(func() error { order = append(order, "font"); return nil })

	res, err := c.Tick(time.Now(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, timing.Ticks)
	assert.Equal(t, []string{"event", "deferred", "download", "font"}, order)
	assert.Equal(t, 1, res.Events)
	assert.Equal(t, 1, res.FontLoads)
	assert.Equal(t, 1, post)
	assert.Empty(t, sched.Requests())
}

func TestTickFailureLeavesWorkQueued(t *testing.T) {
	c, _, sched, _ := newCoordinator(t)
	attempts := 0
	c.Deferred.Push(func() error {
		attempts++
		if attempts == 1 {
			return enginetest.ErrApp
		}
		return nil
	})
	fontRan := false
	c.FontLoads.Push(func() error { fontRan = true; return nil })

	_, err := c.Tick(time.Now(), false)
	assert.ErrorIs(t, err, enginetest.ErrApp)
	assert.True(t, fontRan, "other queues still drain")
	assert.Equal(t, 1, c.Deferred.Len())
	require.NotEmpty(t, sched.Requests())
	assert.Equal(t, "pending work", sched.Requests()[0].Reason)

	_, err = c.Tick(time.Now(), false)
	require.NoError(t, err)
	assert.Zero(t, c.Deferred.Len())
	assert.Equal(t, 2, attempts)
}

func TestTimingErrorIsReturnedUnwrapped(t *testing.T) {
	c, timing, _, _ := newCoordinator(t)
	lost := errors.New("device lost")
	timing.Err = lost
	_, err := c.Tick(time.Now(), false)
	assert.Same(t, lost, err)
}

func TestAnimationSignal(t *testing.T) {
	running := 0
	c, timing, sched, set := newCoordinator(t, WithIndependentAnimations(func() int { return running }))

	timing.Result = core.TickResult{HasActiveFiniteAnimations: true}
	_, err := c.Tick(time.Now(), false)
	require.NoError(t, err)
	assert.False(t, set.Animations.IsSet())
	assert.Equal(t, "animation", sched.Requests()[0].Reason)

	timing.Result = core.TickResult{}
	running = 1
	_, _ = c.Tick(time.Now(), false)
	assert.False(t, set.Animations.IsSet())

	running = 0
	_, _ = c.Tick(time.Now(), false)
	assert.True(t, set.Animations.IsSet())
}

func TestDownloadSignal(t *testing.T) {
	c, _, sched, set := newCoordinator(t)

	complete := c.StartDownload()
	assert.False(t, set.Downloads.IsSet())
	assert.EqualValues(t, 1, c.InFlight())

	applied := 0
	done := make(chan struct{})
	go func() {
		complete(func() error { applied++; return nil })
		complete(nil)
		close(done)
	}()
	<-done
	assert.Zero(t, c.InFlight())
	assert.Equal(t, "download complete", sched.Requests()[0].Reason)

	_, err := c.Tick(time.Now(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.True(t, set.Downloads.IsSet())
}
