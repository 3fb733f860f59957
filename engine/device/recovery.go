package device

import (
	"log/slog"

	"github.com/hubastard/canopy/engine/core"
	"github.com/hubastard/canopy/engine/eventlog"
	"github.com/hubastard/canopy/engine/lifecycle"
	"github.com/hubastard/canopy/engine/logging"
)

// Notification is a device-removed signal marshaled from the platform
// callback to the owning goroutine. Generation identifies the device
// instance it was registered for.
type Notification struct {
	Generation uint64
}

// Connection is the compositor connection torn down by the
// HardwareAndCompositorReleased variant.
type Connection interface {
	Disconnect()
	Reconnect()
}

// PendingRequests are requests tied to device resources; they are dropped
// on release.
type PendingRequests interface {
	ClearPending() int
}

// Stats are recovery counters.
type Stats struct {
	Losses          int
	Releases        int
	Rebuilds        int
	RebuildFailures int
	StaleDropped    int
}

// Recovery is the device-loss state machine. Every method except the
// removal callback it registers must be called from the owning goroutine.
type Recovery struct {
	device  core.GraphicsDevice
	sched   core.FrameScheduler
	policy  Policy
	conn    Connection
	pending PendingRequests
	events  *eventlog.Log
	frame   func() uint64
	onMove  func(from, to lifecycle.DeviceState)
	log     *slog.Logger

	listeners []core.DeviceListener

	state           lifecycle.DeviceState
	resetCompositor bool
	held            bool
	generation      uint64
	notify          chan Notification
	unregister      func()
	stats           Stats
}

// Option configures a Recovery.
type Option func(*Recovery)

// WithPolicy replaces the default CodePolicy.
func WithPolicy(p Policy) Option { return func(r *Recovery) { r.policy = p } }

// WithConnection sets the compositor connection.
func WithConnection(c Connection) Option { return func(r *Recovery) { r.conn = c } }

// WithPendingRequests sets the requests cleared on release.
func WithPendingRequests(p PendingRequests) Option { return func(r *Recovery) { r.pending = p } }

// WithEventLog records transitions in l, stamped with frame().
func WithEventLog(l *eventlog.Log, frame func() uint64) Option {
	return func(r *Recovery) { r.events, r.frame = l, frame }
}

// WithTransitionHook is called after every state change.
func WithTransitionHook(fn func(from, to lifecycle.DeviceState)) Option {
	return func(r *Recovery) { r.onMove = fn }
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option { return func(r *Recovery) { r.log = l } }

// NewRecovery returns a controller in the Normal state. Call Watch to
// start listening for asynchronous removal.
func NewRecovery(device core.GraphicsDevice, sched core.FrameScheduler, opts ...Option) *Recovery {
	r := &Recovery{
		device: device,
		sched:  sched,
		policy: NewCodePolicy(),
		log:    logging.For("device"),
		notify: make(chan Notification, 8),
		frame:  func() uint64 { return 0 },
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// AddListener registers a listener for release and rebuild.
func (r *Recovery) AddListener(l core.DeviceListener) { r.listeners = append(r.listeners, l) }

// State is the current device state.
func (r *Recovery) State() lifecycle.DeviceState { return r.state }

// Stats returns the counters.
func (r *Recovery) Stats() Stats { return r.stats }

// Generation identifies the current device instance.
func (r *Recovery) Generation() uint64 { return r.generation }

// Classify exposes the policy.
func (r *Recovery) Classify(err error) Class { return r.policy.Classify(err) }

// Handle funnels the result of a device-touching call. Device-lost errors
// become a HardwareLost transition plus a frame request and are swallowed.
// Fatal device errors and non-device errors are returned.
func (r *Recovery) Handle(err error) (swallowed bool, rest error) {
	switch r.policy.Classify(err) {
	case ClassDeviceLost:
		r.markLost(err.Error())
		return true, nil
	case ClassFatal:
		r.log.Error("unrecoverable device error", "err", err, "state", r.state)
		return false, err
	default:
		return false, err
	}
}

// HandleDeviceLost reports whether err was a recoverable device loss that
// has been absorbed.
func (r *Recovery) HandleDeviceLost(err error) bool {
	swallowed, _ := r.Handle(err)
	return swallowed
}

func (r *Recovery) markLost(detail string) {
	if r.state == lifecycle.Normal {
		r.stats.Losses++
		r.move(lifecycle.HardwareLost, eventlog.DeviceLost, detail)
	}
	r.sched.RequestAdditionalFrame(0, "device lost")
}

// Simulate injects a device loss. With resetCompositor the release also
// tears down the compositor connection.
func (r *Recovery) Simulate(resetCompositor bool) {
	if r.state != lifecycle.Normal {
		return
	}
	r.resetCompositor = resetCompositor
	r.logEvent(eventlog.TestHook, "simulated device lost")
	r.markLost("simulated")
}

// Watch registers for asynchronous removal of the current device. The
// callback only sends a Notification; state is changed by Pump.
func (r *Recovery) Watch() {
	r.Unwatch()
	gen := r.generation
	notify, sched := r.notify, r.sched
	r.unregister = r.device.RegisterDeviceRemovedNotification(func() {
		select {
		case notify <- Notification{Generation: gen}:
		default:
		}
		sched.RequestAdditionalFrame(0, "device removed")
	})
}

// Unwatch drops the removal registration.
func (r *Recovery) Unwatch() {
	if r.unregister != nil {
		r.unregister()
		r.unregister = nil
	}
}

// Pump applies queued removal notifications. Notifications for an older
// device generation are dropped.
func (r *Recovery) Pump() int {
	applied := 0
	for {
		select {
		case n := <-r.notify:
			if n.Generation != r.generation {
				r.stats.StaleDropped++
				continue
			}
			r.markLost("device removed notification")
			applied++
		default:
			return applied
		}
	}
}

// ReleaseIfLost releases device resources when a loss was detected. It is
// called at frame start, never during a walk.
func (r *Recovery) ReleaseIfLost() bool {
	if r.state != lifecycle.HardwareLost {
		return false
	}
	to := lifecycle.HardwareReleased
	if r.resetCompositor {
		to = lifecycle.HardwareAndCompositorReleased
	}
	r.release(to)
	return true
}

// ReleaseForIdle releases device resources on purpose (shutdown to idle or
// low memory). Rebuild does not happen automatically until Rebuild is
// called.
func (r *Recovery) ReleaseForIdle() {
	r.held = true
	if r.state == lifecycle.Normal {
		r.release(lifecycle.HardwareReleased)
	}
}

// AllowRebuild lets the next frame rebuild resources released by
// ReleaseForIdle.
func (r *Recovery) AllowRebuild() { r.held = false }

// Held reports whether resources were released on purpose.
func (r *Recovery) Held() bool { return r.held }

// NeedsRebuild reports whether Rebuild should run this frame.
func (r *Recovery) NeedsRebuild() bool { return r.state.Released() && !r.held }

func (r *Recovery) release(to lifecycle.DeviceState) {
	for i := len(r.listeners) - 1; i >= 0; i-- {
		r.listeners[i].OnDeviceReleased()
	}
	cleared := 0
	if r.pending != nil {
		cleared = r.pending.ClearPending()
	}
	r.Unwatch()
	r.device.ReleaseResources()
	if to == lifecycle.HardwareAndCompositorReleased && r.conn != nil {
		r.conn.Disconnect()
	}
	r.stats.Releases++
	r.move(to, eventlog.HardwareResourcesReleased, "")
	r.log.Info("device resources released", "state", to, "cleared_requests", cleared)
}

// Rebuild recreates device resources. The state is set to Normal before
// anything is recreated, so a failure during recreation goes through the
// ordinary loss path and is retried next frame. Only fatal errors are
// returned.
func (r *Recovery) Rebuild() error {
	if !r.state.Released() {
		return ErrNotReleased
	}
	withCompositor := r.state == lifecycle.HardwareAndCompositorReleased
	r.held = false
	r.move(lifecycle.Normal, eventlog.StateReset, "")

	if err := r.device.Recreate(); err != nil {
		return r.rebuildFailed(err)
	}
	r.generation++
	r.Watch()
	if withCompositor && r.conn != nil {
		r.conn.Reconnect()
	}
	// Kept until here so a failed recreate releases the compositor again.
	r.resetCompositor = false
	for _, l := range r.listeners {
		if err := l.OnDeviceRebuilt(); err != nil {
			if r.policy.Classify(err) == ClassNone {
				r.log.Warn("device listener failed to rebuild", "err", err)
				continue
			}
			return r.rebuildFailed(err)
		}
	}

	r.stats.Rebuilds++
	r.logEvent(eventlog.HardwareResourcesRebuilt, "")
	r.log.Info("device resources rebuilt", "generation", r.generation)
	r.sched.RequestAdditionalFrame(0, "device rebuilt")
	return nil
}

func (r *Recovery) rebuildFailed(err error) error {
	r.stats.RebuildFailures++
	if r.policy.Classify(err) == ClassFatal {
		r.log.Error("device rebuild failed", "err", err)
		return err
	}
	r.log.Warn("device rebuild failed, retrying next frame", "err", err)
	r.markLost(err.Error())
	return nil
}

// Close drops the removal registration.
func (r *Recovery) Close() { r.Unwatch() }

func (r *Recovery) move(to lifecycle.DeviceState, kind eventlog.Kind, detail string) {
	from := r.state
	next, err := from.Transition(to)
	if err != nil {
		r.log.Error("rejected device state change", "err", err)
		return
	}
	r.state = next
	r.logEvent(kind, detail)
	if r.onMove != nil {
		r.onMove(from, next)
	}
}

func (r *Recovery) logEvent(kind eventlog.Kind, detail string) {
	if r.events != nil {
		r.events.Add(r.frame(), kind, detail)
	}
}
