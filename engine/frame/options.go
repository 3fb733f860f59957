package frame

import (
	"log/slog"
	"time"

	"github.com/hubastard/canopy/engine/core"
	"github.com/hubastard/canopy/engine/device"
	"github.com/hubastard/canopy/engine/reentrancy"
)

// Deps are the external collaborators of an Orchestrator. Primary may be
// nil and set later with SetPrimary.
type Deps struct {
	Scheduler core.FrameScheduler
	Layout    core.LayoutEngine
	Walker    core.RenderWalker
	Device    core.GraphicsDevice
	Timing    core.TimingManager
	Primary   core.Root
}

type options struct {
	hooks              Hooks
	reporter           core.ErrorReporter
	policy             device.Policy
	fatal              reentrancy.FatalFunc
	log                *slog.Logger
	now                func() time.Time
	instance           string
	maxLayout          int
	compositorInterval time.Duration
	releaseOnLowMemory bool
	scale              float32
	automation         func() bool
	postTick           func()
}

// Option configures an Orchestrator.
type Option func(*options)

// WithHooks sets the application callouts.
func WithHooks(h Hooks) Option { return func(o *options) { o.hooks = h } }

// WithErrorReporter receives application errors that abandoned a step.
func WithErrorReporter(r core.ErrorReporter) Option { return func(o *options) { o.reporter = r } }

// WithPolicy sets the device error policy.
func WithPolicy(p device.Policy) Option { return func(o *options) { o.policy = p } }

// WithReentrancyHandler replaces the process-terminating violation handler.
func WithReentrancyHandler(fn reentrancy.FatalFunc) Option { return func(o *options) { o.fatal = fn } }

// WithLogger sets the base logger; components derive from it.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithInstance names the engine instance in its idle signal names.
func WithInstance(name string) Option { return func(o *options) { o.instance = name } }

// WithMaxLayoutIterations bounds the layout fixed point of one pass.
func WithMaxLayoutIterations(n int) Option { return func(o *options) { o.maxLayout = n } }

// WithCompositorInterval sets the compositing goroutine period.
func WithCompositorInterval(d time.Duration) Option {
	return func(o *options) { o.compositorInterval = d }
}

// WithReleaseOnLowMemory releases device resources while suspended.
func WithReleaseOnLowMemory(on bool) Option { return func(o *options) { o.releaseOnLowMemory = on } }

// WithScale sets the render scale passed to the walker.
func WithScale(s float32) Option { return func(o *options) { o.scale = s } }

// WithAutomationListeners reports whether automation clients listen.
func WithAutomationListeners(fn func() bool) Option { return func(o *options) { o.automation = fn } }

// WithPostTick runs fn after every full tick.
func WithPostTick(fn func()) Option { return func(o *options) { o.postTick = fn } }

// FromConfig applies the engine section of the host config.
func FromConfig(c core.EngineConfig) Option {
	return func(o *options) {
		if c.MaxLayoutIterations > 0 {
			o.maxLayout = c.MaxLayoutIterations
		}
		if c.CompositorInterval > 0 {
			o.compositorInterval = c.CompositorInterval
		}
		o.releaseOnLowMemory = c.ReleaseOnLowMemory
		o.policy = device.NewCodePolicy(c.FatalDeviceCodes...)
	}
}
