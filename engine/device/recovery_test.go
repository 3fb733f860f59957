package device

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubastard/canopy/engine/eventlog"
	"github.com/hubastard/canopy/engine/internal/enginetest"
	"github.com/hubastard/canopy/engine/lifecycle"
	"github.com/hubastard/canopy/engine/logging"
)

type listener struct {
	released, rebuilt int
	err               error
}

func (l *listener) OnDeviceReleased()      { l.released++ }
func (l *listener) OnDeviceRebuilt() error { l.rebuilt++; return l.err }

type conn struct{ disconnects, reconnects int }

func (c *conn) Disconnect() { c.disconnects++ }
func (c *conn) Reconnect()  { c.reconnects++ }

type pending struct{ n int }

func (p *pending) ClearPending() int { n := p.n; p.n = 0; return n }

type fixture struct {
	dev   *enginetest.Device
	sched *enginetest.Scheduler
	conn  *conn
	reqs  *pending
	log   *eventlog.Log
	moves [][2]lifecycle.DeviceState
	rec   *Recovery
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		dev:   &enginetest.Device{},
		sched: &enginetest.Scheduler{},
		conn:  &conn{},
		reqs:  &pending{n: 3},
		log:   eventlog.New(),
	}
	base := []Option{
		WithConnection(f.conn),
		WithPendingRequests(f.reqs),
		WithEventLog(f.log, func() uint64 { return 7 }),
		WithTransitionHook(func(from, to lifecycle.DeviceState) {
			f.moves = append(f.moves, [2]lifecycle.DeviceState{from, to})
		}),
		WithLogger(logging.Nop()),
	}
	f.rec = NewRecovery(f.dev, f.sched, append(base, opts...)...)
	return f
}

func TestCodePolicy(t *testing.T) {
	p := NewCodePolicy(0xdead)
	assert.Equal(t, ClassNone, p.Classify(nil))
	assert.Equal(t, ClassNone, p.Classify(errors.New("boom")))
	assert.Equal(t, ClassDeviceLost, p.Classify(ErrDeviceLost))
	assert.Equal(t, ClassDeviceLost, p.Classify(fmt.Errorf("commit: %w", ErrDeviceLost)))
	assert.Equal(t, ClassDeviceLost, p.Classify(&LostError{Code: 0x0507}))
	assert.Equal(t, ClassFatal, p.Classify(fmt.Errorf("present: %w", &LostError{Op: "present", Code: 0xdead})))
}

func TestLostErrorUnwraps(t *testing.T) {
	err := &LostError{Op: "swap", Code: 0x0507}
	assert.ErrorIs(t, err, ErrDeviceLost)
	assert.Contains(t, err.Error(), "swap")
	assert.Contains(t, err.Error(), "0x00000507")
}

func TestHandleSwallowsDeviceLost(t *testing.T) {
	f := newFixture()

	swallowed, err := f.rec.Handle(ErrDeviceLost)
	assert.True(t, swallowed)
	assert.NoError(t, err)
	assert.Equal(t, lifecycle.HardwareLost, f.rec.State())
	require.NotEmpty(t, f.sched.Requests())
	assert.Equal(t, "device lost", f.sched.Requests()[0].Reason)

	// A second loss in the same state is still swallowed but not recounted.
	assert.True(t, f.rec.HandleDeviceLost(ErrDeviceLost))
	assert.Equal(t, 1, f.rec.Stats().Losses)

	last, ok := f.log.Last()
	require.True(t, ok)
	assert.Equal(t, eventlog.DeviceLost, last.Kind)
	assert.Equal(t, uint64(7), last.Frame)
}

func TestHandleReturnsOtherErrors(t *testing.T) {
	f := newFixture(WithPolicy(NewCodePolicy(9)))

	swallowed, err := f.rec.Handle(enginetest.ErrApp)
	assert.False(t, swallowed)
	assert.ErrorIs(t, err, enginetest.ErrApp)

	fatal := &LostError{Code: 9}
	swallowed, err = f.rec.Handle(fatal)
	assert.False(t, swallowed)
	assert.Same(t, fatal, err)
	assert.Equal(t, lifecycle.Normal, f.rec.State())
	assert.Empty(t, f.sched.Requests())

	swallowed, err = f.rec.Handle(nil)
	assert.False(t, swallowed)
	assert.NoError(t, err)
}

func TestReleaseAndRebuild(t *testing.T) {
	f := newFixture()
	l := &listener{}
	f.rec.AddListener(l)
	f.rec.Watch()
	require.Equal(t, 1, f.dev.Registered())

	assert.False(t, f.rec.ReleaseIfLost())
	f.rec.Handle(ErrDeviceLost)
	assert.True(t, f.rec.ReleaseIfLost())

	assert.Equal(t, lifecycle.HardwareReleased, f.rec.State())
	assert.Equal(t, 1, l.released)
	assert.Equal(t, 0, f.reqs.n)
	assert.Equal(t, 1, f.dev.Releases)
	assert.Equal(t, 0, f.dev.Registered())
	assert.Equal(t, 0, f.conn.disconnects)
	assert.True(t, f.rec.NeedsRebuild())

	require.NoError(t, f.rec.Rebuild())
	assert.Equal(t, lifecycle.Normal, f.rec.State())
	assert.Equal(t, 1, l.rebuilt)
	assert.Equal(t, 1, f.dev.Recreates)
	assert.Equal(t, 1, f.dev.Registered())
	assert.Equal(t, uint64(1), f.rec.Generation())
	assert.Equal(t, 1, f.rec.Stats().Rebuilds)

	assert.Equal(t, [][2]lifecycle.DeviceState{
		{lifecycle.Normal, lifecycle.HardwareLost},
		{lifecycle.HardwareLost, lifecycle.HardwareReleased},
		{lifecycle.HardwareReleased, lifecycle.Normal},
	}, f.moves)

	reqs := f.sched.Requests()
	assert.Equal(t, "device rebuilt", reqs[len(reqs)-1].Reason)
}

func TestRebuildWhenNotReleased(t *testing.T) {
	f := newFixture()
	assert.ErrorIs(t, f.rec.Rebuild(), ErrNotReleased)
	f.rec.Handle(ErrDeviceLost)
	assert.ErrorIs(t, f.rec.Rebuild(), ErrNotReleased)
}

func TestRebuildFailureRetries(t *testing.T) {
	f := newFixture()
	f.dev.RecreateErrs = []error{ErrDeviceLost}

	f.rec.Handle(ErrDeviceLost)
	f.rec.ReleaseIfLost()
	require.NoError(t, f.rec.Rebuild())

	// The failed recreate re-enters the loss path.
	assert.Equal(t, lifecycle.HardwareLost, f.rec.State())
	assert.Equal(t, 1, f.rec.Stats().RebuildFailures)
	assert.Equal(t, uint64(0), f.rec.Generation())

	f.rec.ReleaseIfLost()
	require.NoError(t, f.rec.Rebuild())
	assert.Equal(t, lifecycle.Normal, f.rec.State())
	assert.Equal(t, 2, f.dev.Recreates)
}

func TestRebuildFatal(t *testing.T) {
	f := newFixture(WithPolicy(NewCodePolicy(1)))
	fatal := &LostError{Code: 1}
	f.dev.RecreateErrs = []error{fatal}

	f.rec.Handle(ErrDeviceLost)
	f.rec.ReleaseIfLost()
	assert.Same(t, fatal, f.rec.Rebuild())
}

func TestListenerRebuildError(t *testing.T) {
	f := newFixture()
	l := &listener{err: enginetest.ErrApp}
	f.rec.AddListener(l)

	f.rec.Handle(ErrDeviceLost)
	f.rec.ReleaseIfLost()
	require.NoError(t, f.rec.Rebuild())
	assert.Equal(t, lifecycle.Normal, f.rec.State())

	l.err = ErrDeviceLost
	f.rec.Handle(ErrDeviceLost)
	f.rec.ReleaseIfLost()
	require.NoError(t, f.rec.Rebuild())
	assert.Equal(t, lifecycle.HardwareLost, f.rec.State())
}

func TestSimulateWithCompositorReset(t *testing.T) {
	f := newFixture()
	f.rec.Simulate(true)
	assert.Equal(t, lifecycle.HardwareLost, f.rec.State())

	f.rec.ReleaseIfLost()
	assert.Equal(t, lifecycle.HardwareAndCompositorReleased, f.rec.State())
	assert.Equal(t, 1, f.conn.disconnects)

	require.NoError(t, f.rec.Rebuild())
	assert.Equal(t, 1, f.conn.reconnects)

	// The reset flag does not leak into the next ordinary loss.
	f.rec.Handle(ErrDeviceLost)
	f.rec.ReleaseIfLost()
	assert.Equal(t, lifecycle.HardwareReleased, f.rec.State())

	kinds := map[eventlog.Kind]bool{}
	for _, e := range f.log.Snapshot() {
		kinds[e.Kind] = true
	}
	assert.True(t, kinds[eventlog.TestHook])
	assert.True(t, kinds[eventlog.HardwareResourcesRebuilt])
}

func TestReleaseForIdle(t *testing.T) {
	f := newFixture()
	f.rec.ReleaseForIdle()
	assert.Equal(t, lifecycle.HardwareReleased, f.rec.State())
	assert.True(t, f.rec.Held())
	assert.False(t, f.rec.NeedsRebuild())

	require.NoError(t, f.rec.Rebuild())
	assert.False(t, f.rec.Held())
	assert.Equal(t, lifecycle.Normal, f.rec.State())
}

func TestRemovalNotificationIsMarshaled(t *testing.T) {
	f := newFixture()
	f.rec.Watch()

	f.dev.Remove()
	// Nothing changes until the owner pumps.
	assert.Equal(t, lifecycle.Normal, f.rec.State())
	require.NotEmpty(t, f.sched.Requests())
	assert.Equal(t, "device removed", f.sched.Requests()[0].Reason)

	assert.Equal(t, 1, f.rec.Pump())
	assert.Equal(t, lifecycle.HardwareLost, f.rec.State())
	assert.Equal(t, 0, f.rec.Pump())
}

func TestStaleNotificationDropped(t *testing.T) {
	f := newFixture()
	f.rec.Watch()

	// Capture the old registration by firing it after the rebuild.
	f.rec.notify <- Notification{Generation: 0}
	f.rec.Handle(ErrDeviceLost)
	f.rec.ReleaseIfLost()
	require.NoError(t, f.rec.Rebuild())

	assert.Equal(t, 0, f.rec.Pump())
	assert.Equal(t, lifecycle.Normal, f.rec.State())
	assert.Equal(t, 1, f.rec.Stats().StaleDropped)
}

func TestStateNeverSkipsRelease(t *testing.T) {
	f := newFixture()
	rng := rand.New(rand.NewSource(1))
	f.dev.RecreateErrs = make([]error, 0, 64)
	for i := 0; i < 64; i++ {
		if rng.Intn(3) == 0 {
			f.dev.RecreateErrs = append(f.dev.RecreateErrs, ErrDeviceLost)
		} else {
			f.dev.RecreateErrs = append(f.dev.RecreateErrs, nil)
		}
	}

	for frame := 0; frame < 200; frame++ {
		f.rec.Pump()
		f.rec.ReleaseIfLost()
		if f.rec.NeedsRebuild() {
			require.NoError(t, f.rec.Rebuild())
		}
		if rng.Intn(4) == 0 {
			f.rec.Handle(ErrDeviceLost)
		}
	}

	for _, m := range f.moves {
		if m[1] == lifecycle.Normal {
			assert.True(t, m[0].Released(), "Normal entered from %s", m[0])
		}
	}
}
