package tick

import (
	"sync"

	"golang.org/x/image/math/f32"
)

// Deltas accumulates pointer and viewport movement between frames. Platform
// callbacks feed it from any goroutine; the frame takes it once per tick.
type Deltas struct {
	mu       sync.Mutex
	pointer  f32.Vec2
	viewport f32.Vec2
	last     f32.Vec2
	hasLast  bool
	resized  bool
	size     f32.Vec2
}

// PointerMoved records an absolute pointer position.
func (d *Deltas) PointerMoved(x, y float64) {
	p := f32.Vec2{float32(x), float32(y)}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasLast {
		d.pointer[0] += p[0] - d.last[0]
		d.pointer[1] += p[1] - d.last[1]
	}
	d.last = p
	d.hasLast = true
}

// Scrolled records a viewport offset change.
func (d *Deltas) Scrolled(dx, dy float32) {
	d.mu.Lock()
	d.viewport[0] += dx
	d.viewport[1] += dy
	d.mu.Unlock()
}

// Resized records a new viewport size.
func (d *Deltas) Resized(w, h int) {
	d.mu.Lock()
	d.size = f32.Vec2{float32(w), float32(h)}
	d.resized = true
	d.mu.Unlock()
}

// Size returns the last recorded viewport size.
func (d *Deltas) Size() f32.Vec2 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}

// Frame is what accumulated since the last Take.
type Frame struct {
	Pointer  f32.Vec2
	Viewport f32.Vec2
	Resized  bool
	Size     f32.Vec2
}

// Moved reports whether anything changed.
func (f Frame) Moved() bool {
	return f.Pointer != (f32.Vec2{}) || f.Viewport != (f32.Vec2{}) || f.Resized
}

// Take returns and resets the accumulated deltas.
func (d *Deltas) Take() Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := Frame{Pointer: d.pointer, Viewport: d.viewport, Resized: d.resized, Size: d.size}
	d.pointer = f32.Vec2{}
	d.viewport = f32.Vec2{}
	d.resized = false
	return f
}
