package frame

import "time"

// Hooks are application callouts made during a frame. Each may mutate the
// tree; layout is re-run after every one of them. Nil hooks are skipped.
type Hooks struct {
	// Loaded dispatches Loaded events for elements that entered the tree.
	Loaded func() error
	// PerFrame is the per-frame rendering callback.
	PerFrame func(now time.Time) error
	// Phased runs a slice of phased background work.
	Phased func() error
	// RenderTargetMetrics lets render-target bitmaps report their sizes.
	RenderTargetMetrics func() error
	// LayoutCompleted is called after the commit that paid an owed
	// layout-completed notification.
	LayoutCompleted func() error

	// Best-effort steps. Failures are logged and ignored.
	Diagnostics         func() error
	FlushMediaQueue     func() error
	NotifyAccessibility func() error
}
