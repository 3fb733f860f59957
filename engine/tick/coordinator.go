// Package tick advances timing state and drains the per-frame work queues.
package tick

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hubastard/canopy/engine/core"
	"github.com/hubastard/canopy/engine/logging"
	"github.com/hubastard/canopy/engine/profiler"
	"github.com/hubastard/canopy/engine/signal"
)

// Result summarises one tick.
type Result struct {
	core.TickResult
	TimersOnly bool
	Events     int
	Deferred   int
	Downloads  int
	FontLoads  int
}

// Coordinator runs the tick portion of a frame: timing, queued events,
// deferred operations and async completions.
type Coordinator struct {
	Events    *Queue[Work] // marshaled async events
	Deferred  *Queue[Work] // work deferred from the previous frame
	Downloads *Queue[Work] // completed downloads waiting to be applied
	FontLoads *Queue[Work] // completed font loads
	Decodes   *DecodeQueue
	Deltas    *Deltas

	timing      core.TimingManager
	sched       core.FrameScheduler
	signals     *signal.Set
	independent func() int
	postTick    func()
	log         *slog.Logger

	inflight atomic.Int64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSignals reports idleness on the given signal set.
func WithSignals(s *signal.Set) Option { return func(c *Coordinator) { c.signals = s } }

// WithIndependentAnimations supplies the number of compositor-driven
// animations still running, for the "no animations running" signal.
func WithIndependentAnimations(fn func() int) Option {
	return func(c *Coordinator) { c.independent = fn }
}

// WithPostTick runs fn after every full tick.
func WithPostTick(fn func()) Option { return func(c *Coordinator) { c.postTick = fn } }

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option { return func(c *Coordinator) { c.log = l } }

// NewCoordinator wires a coordinator to the timing manager and scheduler.
func NewCoordinator(timing core.TimingManager, sched core.FrameScheduler, opts ...Option) *Coordinator {
	c := &Coordinator{
		Events:    &Queue[Work]{},
		Deferred:  &Queue[Work]{},
		Downloads: &Queue[Work]{},
		FontLoads: &Queue[Work]{},
		Deltas:    &Deltas{},
		timing:    timing,
		sched:     sched,
		log:       logging.For("tick"),
	}
	for _, o := range opts {
		o(c)
	}
	var decodeIdle *signal.Signal
	if c.signals != nil {
		decodeIdle = c.signals.Decodes
	}
	c.Decodes = NewDecodeQueue(decodeIdle)
	return c
}

// StartDownload registers an in-flight download and returns the function
// its completion handler calls, from any goroutine, to queue the result for
// the UI thread. Calling complete more than once has no further effect.
func (c *Coordinator) StartDownload() (complete func(Work)) {
	c.inflight.Add(1)
	if c.signals != nil {
		c.signals.Downloads.Reset()
	}
	var done atomic.Bool
	return func(w Work) {
		if !done.CompareAndSwap(false, true) {
			return
		}
		if w != nil {
			c.Downloads.Push(w)
		}
		c.inflight.Add(-1)
		c.sched.RequestAdditionalFrame(0, "download complete")
	}
}

// InFlight is the number of downloads not yet completed.
func (c *Coordinator) InFlight() int64 { return c.inflight.Load() }

// Tick advances timing state. While suspended only platform timers tick.
//
// Timing errors are returned unwrapped so device-lost errors can be
// classified. Queue failures are joined and returned after every queue had
// its turn; the failing item stays queued for the next tick.
func (c *Coordinator) Tick(now time.Time, suspended bool) (Result, error) {
	if suspended {
		end := profiler.Start("tick.TimersOnly")
		defer end()
		return Result{TimersOnly: true}, c.timing.TickTimersOnly(now)
	}

	end := profiler.Start("tick.Tick")
	defer end()

	var res Result
	tr, err := c.timing.Tick(now)
	if err != nil {
		return res, err
	}
	res.TickResult = tr

	var errs []error
	drain := func(name string, q *Queue[Work]) int {
		n, err := q.Drain(RunWork)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		return n
	}
	res.Events = drain("events", c.Events)
	res.Deferred = drain("deferred", c.Deferred)
	res.Downloads = drain("downloads", c.Downloads)
	res.FontLoads = drain("font loads", c.FontLoads)

	c.updateSignals(tr)

	if c.Events.Len()+c.Deferred.Len()+c.Downloads.Len()+c.FontLoads.Len() > 0 {
		c.sched.RequestAdditionalFrame(0, "pending work")
	}
	if tr.HasActiveFiniteAnimations {
		c.sched.RequestAdditionalFrame(0, "animation")
	}
	if c.postTick != nil {
		c.postTick()
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		c.log.Warn("tick work failed", "err", err)
		return res, err
	}
	return res, nil
}

// animationsIdle reports whether no UI-thread or independent animation is
// running, using the last timing result.
func (c *Coordinator) animationsIdle(tr core.TickResult) bool {
	if tr.HasActiveFiniteAnimations {
		return false
	}
	return c.independent == nil || c.independent() == 0
}

func (c *Coordinator) updateSignals(tr core.TickResult) {
	if c.signals == nil {
		return
	}
	c.signals.Animations.Store(c.animationsIdle(tr))
	c.signals.Downloads.Store(c.inflight.Load() == 0 && c.Downloads.Len()+c.FontLoads.Len() == 0)
}
