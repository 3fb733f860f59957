// Package suspend coordinates process and window suspension with the
// compositor and the graphics device.
package suspend

import (
	"errors"
	"log/slog"

	"github.com/hubastard/canopy/engine/core"
	"github.com/hubastard/canopy/engine/device"
	"github.com/hubastard/canopy/engine/eventlog"
	"github.com/hubastard/canopy/engine/lifecycle"
	"github.com/hubastard/canopy/engine/logging"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("suspend: controller closed")

// Listener is told about suspend and resume, in registration order.
type Listener interface {
	OnSuspend(reason lifecycle.SuspendReason)
	OnResume()
}

// Freezer pauses independent animations without losing elapsed time.
type Freezer interface {
	Freeze()
	Unfreeze()
}

// Controller is the suspend state machine. It runs on the frame goroutine,
// strictly between frames.
type Controller struct {
	device   core.GraphicsDevice
	recovery *device.Recovery
	sched    core.FrameScheduler
	freezer  Freezer
	events   *eventlog.Log
	frame    func() uint64
	log      *slog.Logger

	releaseOnLowMemory bool
	listeners          []Listener

	state    lifecycle.SuspendState
	offered  bool
	released bool
	closed   bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithFreezer sets the compositor whose animations are frozen.
func WithFreezer(f Freezer) Option { return func(c *Controller) { c.freezer = f } }

// WithReleaseOnLowMemory releases device resources while suspended.
func WithReleaseOnLowMemory(on bool) Option {
	return func(c *Controller) { c.releaseOnLowMemory = on }
}

// WithEventLog records suspend transitions in l.
func WithEventLog(l *eventlog.Log, frame func() uint64) Option {
	return func(c *Controller) { c.events, c.frame = l, frame }
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option { return func(c *Controller) { c.log = l } }

// New returns a controller in the NotSuspended state.
func New(dev core.GraphicsDevice, rec *device.Recovery, sched core.FrameScheduler, opts ...Option) *Controller {
	c := &Controller{
		device:   dev,
		recovery: rec,
		sched:    sched,
		frame:    func() uint64 { return 0 },
		log:      logging.For("suspend"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// AddListener registers l.
func (c *Controller) AddListener(l Listener) { c.listeners = append(c.listeners, l) }

// State is the current suspend state.
func (c *Controller) State() lifecycle.SuspendState { return c.state }

// Suspended reports whether the engine is suspended for any reason.
func (c *Controller) Suspended() bool { return c.state.Suspended() }

// OnSuspend suspends the engine. A second call while suspended does
// nothing. Graphics failures never fail the call.
func (c *Controller) OnSuspend(reason lifecycle.SuspendReason, allowOffer bool) error {
	if c.closed {
		return ErrClosed
	}
	if c.state.Suspended() {
		return nil
	}
	c.state = lifecycle.SuspendStateFor(reason)
	c.logEvent(eventlog.Suspended, reason.String())

	for _, l := range c.listeners {
		l.OnSuspend(reason)
	}
	if c.freezer != nil {
		c.freezer.Freeze()
	}
	if allowOffer && c.recovery.State() == lifecycle.Normal {
		err := c.device.OfferResources()
		c.offered = c.absorb("offer resources", err)
	}
	c.log.Info("suspended", "reason", reason, "offered", c.offered, "released", c.released)
	return nil
}

// OnResume undoes OnSuspend and asks for one frame to redraw. A call while
// not suspended does nothing.
func (c *Controller) OnResume() error {
	if c.closed {
		return ErrClosed
	}
	if !c.state.Suspended() {
		return nil
	}
	prev := c.state
	c.state = lifecycle.NotSuspended
	c.logEvent(eventlog.Resumed, prev.String())

	if c.freezer != nil {
		c.freezer.Unfreeze()
	}
	if c.offered {
		c.offered = false
		if c.recovery.State() == lifecycle.Normal {
			c.absorb("reclaim resources", c.device.ReclaimResources())
		}
	}
	if c.released {
		c.released = false
		c.recovery.AllowRebuild()
	}
	for _, l := range c.listeners {
		l.OnResume()
	}
	c.sched.RequestAdditionalFrame(0, "resume")
	c.log.Info("resumed", "from", prev)
	return nil
}

// OnLowMemory releases device resources when suspended and the low-memory
// policy allows it.
func (c *Controller) OnLowMemory() {
	if c.closed {
		return
	}
	c.logEvent(eventlog.LowMemory, c.state.String())
	if !c.state.Suspended() || !c.releaseOnLowMemory {
		c.log.Debug("low memory ignored", "state", c.state)
		return
	}
	c.releaseDevice()
}

// Close makes later calls fail with ErrClosed.
func (c *Controller) Close() { c.closed = true }

func (c *Controller) releaseDevice() {
	if c.released || c.recovery.State() != lifecycle.Normal {
		return
	}
	c.recovery.ReleaseForIdle()
	c.released = true
}

// absorb reports whether err was nil. Device loss becomes a HardwareLost
// transition; anything else is logged.
func (c *Controller) absorb(op string, err error) bool {
	if err == nil {
		return true
	}
	if swallowed, rest := c.recovery.Handle(err); !swallowed {
		c.log.Warn("graphics call failed during suspend transition", "op", op, "err", rest)
	}
	return false
}

func (c *Controller) logEvent(kind eventlog.Kind, detail string) {
	if c.events != nil {
		c.events.Add(c.frame(), kind, detail)
	}
}
