package core

import (
	"time"

	"github.com/hubastard/canopy/engine/lifecycle"
)

// Engine is what the host loop drives. frame.Orchestrator implements it.
type Engine interface {
	RunFrame(forceRedraw bool) (drawn bool, err error)
	OnSuspend(reason lifecycle.SuspendReason, allowOffer bool) error
	OnResume() error
	OnLowMemory()
	SetWindowVisible(visible bool)
	Resize(w, h int)
	PointerMoved(x, y float64)
}

// FrameScheduler decides when frames run. The engine never runs its own
// timers; it only asks to be invoked again.
type FrameScheduler interface {
	RequestAdditionalFrame(delay time.Duration, reason string)
	IsInTick() bool
}

// LayoutEngine runs measure/arrange. UpdateLayout may be called any number
// of times within one frame.
type LayoutEngine interface {
	UpdateLayout(width, height float32) error
	NeedsLayout() bool
}

// RenderParams are passed to every RenderRoot call.
type RenderParams struct {
	ForceRedraw            bool
	Scale                  float32
	HasAutomationListeners bool
}

// RenderWalker turns a dirty root into draw/composition commands. On
// success the root's dirty flag must be clear.
type RenderWalker interface {
	RenderRoot(root Root, target GraphicsDevice, p RenderParams) error
}

// GraphicsDevice is the device plus its compositing connection.
// CheckDeviceState returns nil while the device is usable.
type GraphicsDevice interface {
	CommitMainDevice() error
	CheckDeviceState() error
	// RegisterDeviceRemovedNotification arranges for cb to be called, on any
	// goroutine, when the device goes away. The returned func unregisters.
	RegisterDeviceRemovedNotification(cb func()) (unregister func())
	Recreate() error
	ReleaseResources()
	OfferResources() error
	ReclaimResources() error
}

// TickResult is reported by the timing manager after a tick.
type TickResult struct {
	CheckAnimationComplete    bool
	HasActiveFiniteAnimations bool
}

// TimingManager advances clocks and UI-thread animations.
type TimingManager interface {
	Tick(now time.Time) (TickResult, error)
	TickTimersOnly(now time.Time) error
}

// PropertyUpdate is one change to a visual's composition property.
type PropertyUpdate struct {
	Visual string
	Name   string
	Value  float64
}

// Root is an independently rendered visual tree: the primary content or an
// island.
type Root interface {
	ID() string
	Dirty() bool
	// CompositionDelta returns the property changes since the last call
	// and forgets them.
	CompositionDelta() []PropertyUpdate
	// Invalidate marks the whole tree dirty so the next walk and delta
	// carry its full state.
	Invalidate()
}

// DeviceListener is told when device-dependent resources go away and come
// back.
type DeviceListener interface {
	OnDeviceReleased()
	OnDeviceRebuilt() error
}

// ErrorReporter receives application errors that abandoned a frame step.
type ErrorReporter interface {
	ReportError(step string, err error)
}

// ErrorReporterFunc adapts a function to ErrorReporter.
type ErrorReporterFunc func(step string, err error)

func (f ErrorReporterFunc) ReportError(step string, err error) { f(step, err) }

// Window abstraction.
type Window interface {
	PollEvents()
	SwapBuffers()
	ShouldClose() bool
	FramebufferSize() (int, int)
	SetTitle(title string)
	SetEventCallback(cb func(Event))
}

// Event model.
type Event interface{ isEvent() }

type EventCloseRequested struct{}

func (EventCloseRequested) isEvent() {}

type EventResize struct{ W, H int }

func (EventResize) isEvent() {}

type EventMouseMove struct{ X, Y float64 }

func (EventMouseMove) isEvent() {}

// EventVisibility is sent when the window is iconified or restored.
type EventVisibility struct{ Visible bool }

func (EventVisibility) isEvent() {}

type EventFocus struct{ Focused bool }

func (EventFocus) isEvent() {}

// EventSuspend and EventResume come from the process lifecycle manager.
type EventSuspend struct{}

func (EventSuspend) isEvent() {}

type EventResume struct{}

func (EventResume) isEvent() {}

type EventLowMemory struct{}

func (EventLowMemory) isEvent() {}
