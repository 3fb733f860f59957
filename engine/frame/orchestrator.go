// Package frame sequences one frame: tick, layout, render walk, decode
// flush and compositor commit, with device-loss recovery at every
// device-touching step.
package frame

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hubastard/canopy/engine/compositor"
	"github.com/hubastard/canopy/engine/core"
	"github.com/hubastard/canopy/engine/device"
	"github.com/hubastard/canopy/engine/eventlog"
	"github.com/hubastard/canopy/engine/lifecycle"
	"github.com/hubastard/canopy/engine/logging"
	"github.com/hubastard/canopy/engine/profiler"
	"github.com/hubastard/canopy/engine/reentrancy"
	"github.com/hubastard/canopy/engine/signal"
	"github.com/hubastard/canopy/engine/suspend"
	"github.com/hubastard/canopy/engine/tick"
)

var (
	// ErrClosed is returned by calls after Close.
	ErrClosed = errors.New("frame: orchestrator closed")
	// ErrInFrame is returned by suspend and resume called from inside a
	// frame.
	ErrInFrame = errors.New("frame: called during a frame")
)

const defaultMaxLayoutIterations = 250

// Orchestrator owns the frame engine state of one UI thread. All methods
// except Resize, PointerMoved and the queue pushes of Tick() must be
// called from that thread.
type Orchestrator struct {
	sched  core.FrameScheduler
	layout core.LayoutEngine
	walker core.RenderWalker
	device core.GraphicsDevice

	roots    RootSet
	guard    *reentrancy.Guard
	channel  *compositor.Channel
	comp     *compositor.Compositor
	tick     *tick.Coordinator
	recovery *device.Recovery
	suspend  *suspend.Controller
	signals  *signal.Set
	events   *eventlog.Log

	hooks      Hooks
	reporter   core.ErrorReporter
	log        *slog.Logger
	now        func() time.Time
	maxLayout  int
	scale      float32
	automation func() bool

	frame         uint64
	width, height float32

	visible              bool
	renderEnabled        bool
	renderStateChanged   bool
	debugChanged         bool
	layoutCompletedOwed  bool
	animationsChanged    bool
	canTickWithNoContent bool
	prevSkippedSubmit    bool
	closed               bool

	stats Stats
}

// New wires an orchestrator. The compositing goroutine is started by Start.
func New(d Deps, opts ...Option) *Orchestrator {
	cfg := options{
		maxLayout: defaultMaxLayoutIterations,
		scale:     1,
		now:       time.Now,
		policy:    device.NewCodePolicy(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.instance == "" {
		cfg.instance = uuid.NewString()
	}
	base := cfg.log
	if base == nil {
		base = logging.Logger()
	}
	base = base.With("instance", cfg.instance)

	o := &Orchestrator{
		sched:         d.Scheduler,
		layout:        d.Layout,
		walker:        d.Walker,
		device:        d.Device,
		guard:         reentrancy.New("frame.RunFrame", cfg.fatal),
		signals:       signal.NewSet(cfg.instance),
		events:        eventlog.New(),
		hooks:         cfg.hooks,
		reporter:      cfg.reporter,
		log:           base.With("component", "frame"),
		now:           cfg.now,
		maxLayout:     cfg.maxLayout,
		scale:         cfg.scale,
		automation:    cfg.automation,
		visible:       true,
		renderEnabled: true,
	}
	if o.maxLayout <= 0 {
		o.maxLayout = defaultMaxLayoutIterations
	}
	if o.automation == nil {
		o.automation = func() bool { return false }
	}
	if o.reporter == nil {
		o.reporter = core.ErrorReporterFunc(func(step string, err error) {
			o.log.Error("frame step abandoned", "step", step, "err", err)
		})
	}
	frameNo := func() uint64 { return o.frame }

	o.channel = compositor.NewChannel(d.Device)
	o.comp = compositor.New(o.channel, cfg.compositorInterval)

	tickOpts := []tick.Option{
		tick.WithSignals(o.signals),
		tick.WithIndependentAnimations(o.comp.Running),
		tick.WithLogger(base.With("component", "tick")),
	}
	if cfg.postTick != nil {
		tickOpts = append(tickOpts, tick.WithPostTick(cfg.postTick))
	}
	o.tick = tick.NewCoordinator(d.Timing, d.Scheduler, tickOpts...)

	o.recovery = device.NewRecovery(d.Device, d.Scheduler,
		device.WithPolicy(cfg.policy),
		device.WithConnection(o.channel),
		device.WithPendingRequests(o.tick.Decodes),
		device.WithEventLog(o.events, frameNo),
		device.WithLogger(base.With("component", "device")),
	)
	o.recovery.AddListener(rootListener{o})
	o.recovery.Watch()

	o.suspend = suspend.New(d.Device, o.recovery, d.Scheduler,
		suspend.WithFreezer(o.comp),
		suspend.WithReleaseOnLowMemory(cfg.releaseOnLowMemory),
		suspend.WithEventLog(o.events, frameNo),
		suspend.WithLogger(base.With("component", "suspend")),
	)

	if d.Primary != nil {
		o.roots.SetPrimary(d.Primary)
	}
	return o
}

// Start launches the compositing goroutine.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.closed {
		return ErrClosed
	}
	return o.comp.Start(ctx)
}

// Close stops the compositor, drops the device notification and resets
// the idle signals.
func (o *Orchestrator) Close() {
	if o.closed {
		return
	}
	o.closed = true
	o.comp.Stop()
	o.recovery.Close()
	o.suspend.Close()
	o.signals.Close()
}

// RunFrame runs one frame. drawn is true when a render walk ran and its
// result was committed. Device loss is absorbed and reported as drawn
// false with a nil error; the returned error is either a reentrancy
// violation or a device error the policy deems unrecoverable.
func (o *Orchestrator) RunFrame(forceRedraw bool) (drawn bool, err error) {
	release, err := o.guard.Enter()
	if err != nil {
		return false, err
	}
	defer release()
	if o.closed {
		return false, ErrClosed
	}

	end := profiler.Start("frame.RunFrame")
	defer end()

	o.frame++
	fc := &Context{
		Frame:             o.frame,
		Start:             o.now(),
		ForceRedraw:       forceRedraw,
		CanSubmit:         true,
		PrevSkippedSubmit: o.prevSkippedSubmit,
	}
	defer func() { o.finish(fc, drawn) }()

	if err := o.prepareDevice(); err != nil {
		return false, err
	}

	if o.suspend.Suspended() {
		_, terr := o.tick.Tick(fc.Start, true)
		_, err := o.callout("tick timers", terr)
		return false, err
	}

	if o.roots.Len() == 0 && !o.canTickWithNoContent {
		return false, nil
	}

	if abort, err := o.runTick(fc); abort {
		return false, err
	}

	if o.recovery.State() != lifecycle.Normal {
		// Released on purpose and not yet rebuilt, or a rebuild failed.
		return false, nil
	}

	if abort, err := o.renderWalk(fc); abort {
		return false, err
	}

	if abort, err := o.flushDecodes(); abort {
		return false, err
	}

	if abort, err := o.submit(fc); abort {
		return false, err
	}

	o.bestEffort("diagnostics", o.hooks.Diagnostics)
	o.bestEffort("media queue flush", o.hooks.FlushMediaQueue)
	o.bestEffort("accessibility notification", o.hooks.NotifyAccessibility)

	return fc.Walked && fc.Committed, nil
}

// prepareDevice applies queued removal notifications, releases lost
// resources and rebuilds released ones. Only runs between walks. Rebuilds
// wait for resume.
func (o *Orchestrator) prepareDevice() error {
	end := profiler.Start("frame.Device")
	defer end()

	o.recovery.Pump()
	o.recovery.ReleaseIfLost()
	if o.suspend.Suspended() || !o.recovery.NeedsRebuild() {
		return nil
	}
	return o.recovery.Rebuild()
}

// runTick is step 3: timing, deltas and layout to a fixed point around
// every callout.
func (o *Orchestrator) runTick(fc *Context) (abort bool, err error) {
	res, err := o.tick.Tick(fc.Start, false)
	if abort, err := o.callout("tick", err); abort {
		return true, err
	}
	if res.CheckAnimationComplete {
		o.log.Debug("animation complete check", "frame", fc.Frame)
	}

	if d := o.tick.Deltas.Take(); d.Resized {
		o.width, o.height = d.Size[0], d.Size[1]
		o.renderStateChanged = true
	}

	end := profiler.Start("frame.Layout")
	defer end()

	if abort, err := o.updateLayout(); abort {
		return true, err
	}
	steps := []struct {
		name string
		fn   func() error
	}{
		{"loaded events", o.hooks.Loaded},
		{"per-frame callback", o.perFrame()},
		{"phased work", o.hooks.Phased},
		{"render target metrics", o.hooks.RenderTargetMetrics},
	}
	for _, s := range steps {
		if s.fn == nil {
			continue
		}
		if abort, err := o.callout(s.name, s.fn()); abort {
			return true, err
		}
		if abort, err := o.updateLayout(); abort {
			return true, err
		}
	}
	return false, nil
}

func (o *Orchestrator) perFrame() func() error {
	if o.hooks.PerFrame == nil {
		return nil
	}
	return func() error { return o.hooks.PerFrame(o.now()) }
}

// updateLayout runs layout until it settles or the iteration bound is hit.
func (o *Orchestrator) updateLayout() (abort bool, err error) {
	for i := 0; i == 0 || o.layout.NeedsLayout(); i++ {
		if i == o.maxLayout {
			o.log.Warn("layout did not settle", "iterations", i, "frame", o.frame)
			return false, nil
		}
		o.stats.LayoutPasses++
		if err := o.layout.UpdateLayout(o.width, o.height); err != nil {
			return o.callout("layout", err)
		}
	}
	return false, nil
}

// renderWalk is step 4.
func (o *Orchestrator) renderWalk(fc *Context) (abort bool, err error) {
	warranted := fc.ForceRedraw || o.renderStateChanged || o.roots.AnyDirty()
	eligible := o.renderEnabled && (o.visible || fc.Frame == 1)
	if !warranted || !eligible {
		return false, nil
	}

	end := profiler.Start("frame.RenderWalk")
	defer end()

	fc.Walked = true
	o.stats.Walks++
	o.renderStateChanged = false
	p := core.RenderParams{
		ForceRedraw:            fc.ForceRedraw,
		Scale:                  o.scale,
		HasAutomationListeners: o.automation(),
	}
	for _, root := range o.roots.All() {
		err := o.walker.RenderRoot(root, o.device, p)
		if abort, err := o.callout("render "+root.ID(), err); abort {
			return true, err
		}
		if root.Dirty() {
			o.log.Debug("root left dirty by walk", "root", root.ID(), "frame", fc.Frame)
			fc.markLeftDirty()
		}
	}
	return false, nil
}

// flushDecodes is step 5.
func (o *Orchestrator) flushDecodes() (abort bool, err error) {
	if o.tick.Decodes.Pending() == 0 {
		return false, nil
	}
	end := profiler.Start("frame.Decodes")
	defer end()
	_, err = o.tick.Decodes.Flush()
	return o.callout("decode flush", err)
}

// submit is step 6.
func (o *Orchestrator) submit(fc *Context) (abort bool, err error) {
	end := profiler.Start("frame.Commit")
	defer end()

	if o.comp.TakeChanged() {
		o.animationsChanged = true
	}
	warranted := fc.Walked || o.animationsChanged || o.debugChanged || o.layoutCompletedOwed
	if warranted && fc.CanSubmit {
		if abort, err := o.deviceStep("commit", o.channel.Commit(o.roots.All()...)); abort {
			return true, err
		}
		fc.Committed = true
		o.animationsChanged = false
		o.debugChanged = false
		if o.layoutCompletedOwed {
			o.layoutCompletedOwed = false
			if o.hooks.LayoutCompleted != nil {
				if abort, err := o.callout("layout completed", o.hooks.LayoutCompleted()); abort {
					return true, err
				}
			}
		}
		return false, nil
	}

	if warranted {
		fc.SkippedSubmit = true
		o.sched.RequestAdditionalFrame(0, "skipped submission")
	}
	return o.deviceStep("check device", o.device.CheckDeviceState())
}

// finish is step 7. It runs on every exit path after the frame started.
func (o *Orchestrator) finish(fc *Context, drawn bool) {
	o.prevSkippedSubmit = fc.SkippedSubmit
	o.stats.FramesRun++
	if drawn {
		o.stats.FramesDrawn++
	}
	if fc.Committed {
		o.stats.Commits++
	}
	if fc.SkippedSubmit {
		o.stats.SkippedSubmits++
	}
	if fc.ForcedSubmit {
		o.stats.ForcedSubmits++
	}
	o.stats.LastFrameDuration = o.now().Sub(fc.Start)
}

// callout funnels the result of an application callout. Device loss
// aborts the frame and is swallowed; fatal device errors abort and are
// returned; any other error is reported and the frame continues.
func (o *Orchestrator) callout(step string, err error) (abort bool, fatal error) {
	if err == nil {
		return false, nil
	}
	switch o.recovery.Classify(err) {
	case device.ClassDeviceLost, device.ClassFatal:
		return o.deviceStep(step, err)
	}
	o.stats.ReportedErrors++
	o.reporter.ReportError(step, err)
	return false, nil
}

// deviceStep funnels the result of a device call. Every error aborts the
// frame; only device loss is swallowed.
func (o *Orchestrator) deviceStep(step string, err error) (abort bool, fatal error) {
	if err == nil {
		return false, nil
	}
	if swallowed, rest := o.recovery.Handle(err); !swallowed {
		return true, fmt.Errorf("frame %d: %s: %w", o.frame, step, rest)
	}
	o.log.Info("device lost during frame", "step", step, "frame", o.frame, "err", err)
	return true, nil
}

func (o *Orchestrator) bestEffort(step string, fn func() error) {
	if fn == nil {
		return
	}
	if err := fn(); err != nil {
		o.log.Warn("best-effort step failed", "step", step, "err", err)
	}
}

// SetPrimary installs the primary root ahead of any islands.
func (o *Orchestrator) SetPrimary(r core.Root) {
	o.roots.SetPrimary(r)
	r.Invalidate()
	o.renderStateChanged = true
	o.sched.RequestAdditionalFrame(0, "primary set")
}

// AddIsland adds a secondary root walked after the primary.
func (o *Orchestrator) AddIsland(r core.Root) {
	o.roots.Push(r)
	r.Invalidate()
	o.sched.RequestAdditionalFrame(0, "island added")
}

// rootDropper is implemented by devices that retain per-root output.
type rootDropper interface{ DropRoot(id string) }

// RemoveIsland drops a secondary root and its retained device output. The
// primary root is not an island.
func (o *Orchestrator) RemoveIsland(id string) bool {
	if o.roots.IsPrimary(id) {
		return false
	}
	_, ok := o.roots.Remove(id)
	if !ok {
		return false
	}
	if d, ok := o.device.(rootDropper); ok {
		d.DropRoot(id)
	}
	o.renderStateChanged = true
	o.sched.RequestAdditionalFrame(0, "island removed")
	return true
}

// Roots returns the root set.
func (o *Orchestrator) Roots() *RootSet { return &o.roots }

// AddDeviceListener registers a listener for device release and rebuild.
func (o *Orchestrator) AddDeviceListener(l core.DeviceListener) { o.recovery.AddListener(l) }

// AddSuspendListener registers a listener for suspend and resume.
func (o *Orchestrator) AddSuspendListener(l suspend.Listener) { o.suspend.AddListener(l) }

// OnSuspend suspends the engine between frames.
func (o *Orchestrator) OnSuspend(reason lifecycle.SuspendReason, allowOffer bool) error {
	if o.guard.Busy() {
		return ErrInFrame
	}
	return o.suspend.OnSuspend(reason, allowOffer)
}

// OnResume resumes the engine between frames.
func (o *Orchestrator) OnResume() error {
	if o.guard.Busy() {
		return ErrInFrame
	}
	return o.suspend.OnResume()
}

// OnLowMemory applies the low-memory policy.
func (o *Orchestrator) OnLowMemory() { o.suspend.OnLowMemory() }

// HandleDeviceLost reports whether err was a device loss that the engine
// absorbed.
func (o *Orchestrator) HandleDeviceLost(err error) bool { return o.recovery.HandleDeviceLost(err) }

// SimulateDeviceLost injects a device loss for tests and diagnostics.
func (o *Orchestrator) SimulateDeviceLost(resetCompositor bool) { o.recovery.Simulate(resetCompositor) }

// ShutdownToIdle releases device resources until InitializeFromIdle.
func (o *Orchestrator) ShutdownToIdle() {
	o.recovery.ReleaseForIdle()
	o.log.Info("shut down to idle", "frame", o.frame)
}

// InitializeFromIdle rebuilds resources released by ShutdownToIdle.
func (o *Orchestrator) InitializeFromIdle() error {
	if !o.recovery.State().Released() {
		return nil
	}
	return o.recovery.Rebuild()
}

// SetWindowVisible records window visibility. Hidden windows skip the walk
// except on the first frame.
func (o *Orchestrator) SetWindowVisible(visible bool) {
	if o.visible == visible {
		return
	}
	o.visible = visible
	if visible {
		o.events.Add(o.frame, eventlog.WindowShown, "")
		o.renderStateChanged = true
		o.sched.RequestAdditionalFrame(0, "window shown")
		return
	}
	o.events.Add(o.frame, eventlog.WindowHidden, "")
}

// SetRenderEnabled turns the render walk on or off.
func (o *Orchestrator) SetRenderEnabled(enabled bool) {
	if o.renderEnabled == enabled {
		return
	}
	o.renderEnabled = enabled
	if enabled {
		o.events.Add(o.frame, eventlog.RenderEnabled, "")
		o.renderStateChanged = true
		o.sched.RequestAdditionalFrame(0, "render enabled")
		return
	}
	o.events.Add(o.frame, eventlog.RenderDisabled, "")
}

// SetDebugSettingsChanged forces a commit on the next frame.
func (o *Orchestrator) SetDebugSettingsChanged() {
	o.debugChanged = true
	o.sched.RequestAdditionalFrame(0, "debug settings")
}

// RequestLayoutCompleted owes a layout-completed notification, paid after
// the next commit.
func (o *Orchestrator) RequestLayoutCompleted() {
	if !o.layoutCompletedOwed {
		o.events.Add(o.frame, eventlog.LayoutCompletedNeeded, "")
	}
	o.layoutCompletedOwed = true
	o.sched.RequestAdditionalFrame(0, "layout completed")
}

// SetCanTickWithNoContent lets frames tick before a root is set.
func (o *Orchestrator) SetCanTickWithNoContent(on bool) { o.canTickWithNoContent = on }

// Resize records a new viewport size for the next frame. Safe from any
// goroutine.
func (o *Orchestrator) Resize(w, h int) {
	o.tick.Deltas.Resized(w, h)
	o.sched.RequestAdditionalFrame(0, "resize")
}

// PointerMoved records pointer movement for the next frame. Safe from any
// goroutine.
func (o *Orchestrator) PointerMoved(x, y float64) { o.tick.Deltas.PointerMoved(x, y) }

// Tick is the tick coordinator, for queueing work.
func (o *Orchestrator) Tick() *tick.Coordinator { return o.tick }

// Compositor is the independent compositing goroutine.
func (o *Orchestrator) Compositor() *compositor.Compositor { return o.comp }

// Channel is the compositor sync channel.
func (o *Orchestrator) Channel() *compositor.Channel { return o.channel }

// Signals are the idle signals of this instance.
func (o *Orchestrator) Signals() *signal.Set { return o.signals }

// Events is the engine event log.
func (o *Orchestrator) Events() *eventlog.Log { return o.events }

// DumpEvents writes the event log for post-mortem analysis.
func (o *Orchestrator) DumpEvents(w io.Writer) error { return o.events.Dump(w) }

// DeviceState is the current device state.
func (o *Orchestrator) DeviceState() lifecycle.DeviceState { return o.recovery.State() }

// SuspendState is the current suspend state.
func (o *Orchestrator) SuspendState() lifecycle.SuspendState { return o.suspend.State() }

// FrameNumber is the number of frames started.
func (o *Orchestrator) FrameNumber() uint64 { return o.frame }

// Stats returns the frame counters merged with the recovery counters.
func (o *Orchestrator) Stats() Stats {
	s := o.stats
	rs := o.recovery.Stats()
	s.DeviceLosses = rs.Losses
	s.Rebuilds = rs.Rebuilds
	s.RebuildFailures = rs.RebuildFailures
	return s
}

// rootListener redraws every root in full after a rebuild.
type rootListener struct{ o *Orchestrator }

func (l rootListener) OnDeviceReleased() {}

func (l rootListener) OnDeviceRebuilt() error {
	l.o.roots.Invalidate()
	l.o.renderStateChanged = true
	return nil
}
