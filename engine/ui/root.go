package ui

import (
	"strconv"

	"github.com/hubastard/canopy/engine/core"
)

// Composition properties emitted per visual.
const (
	PropX       = "x"
	PropY       = "y"
	PropWidth   = "width"
	PropHeight  = "height"
	PropOpacity = "opacity"
)

// Visual is an element as seen by the render walk: absolute bounds and
// accumulated opacity.
type Visual struct {
	ID      string
	Element Element
	Bounds  [4]float32 // x, y, w, h
	Opacity float32
}

// Root attaches a tree to the frame engine. It implements core.Root.
// Roots are owned by the UI thread.
type Root struct {
	id          string
	top         Element
	dirty       bool
	needsLayout bool
	committed   map[string][5]float32
}

// NewRoot attaches top as the tree of a new root.
func NewRoot(id string, top Element) *Root {
	r := &Root{id: id, top: top, dirty: true, needsLayout: true}
	top.Node().root = r
	return r
}

var _ core.Root = (*Root)(nil)

func (r *Root) ID() string   { return r.id }
func (r *Root) Dirty() bool  { return r.dirty }
func (r *Root) Top() Element { return r.top }

// NeedsLayout reports whether the tree changed shape since the last layout.
func (r *Root) NeedsLayout() bool { return r.needsLayout }

// MarkRendered clears the dirty flag after a successful walk.
func (r *Root) MarkRendered() { r.dirty = false }

// Invalidate forces a full layout, walk and composition delta.
func (r *Root) Invalidate() {
	r.dirty = true
	r.needsLayout = true
	r.committed = nil
}

func (r *Root) invalidate(layout bool) {
	r.dirty = true
	if layout {
		r.needsLayout = true
	}
}

func (r *Root) layout(w, h float32) {
	top := r.top.Node()
	top.position = [2]float32{}
	r.top.Layout(Constraints{Max: [2]float32{w, h}})
	r.needsLayout = false
	r.dirty = true
}

// Walk visits every element in draw order. Elements without an id are
// named by their child index path under the root id.
func (r *Root) Walk(fn func(v Visual)) {
	var visit func(e Element, path string, origin [2]float32, opacity float32)
	visit = func(e Element, path string, origin [2]float32, opacity float32) {
		b := e.Node()
		id := b.id
		if id == "" {
			id = path
		}
		v := Visual{
			ID:      id,
			Element: e,
			Bounds:  [4]float32{origin[0] + b.position[0], origin[1] + b.position[1], b.size[0], b.size[1]},
			Opacity: opacity * b.opacity,
		}
		fn(v)
		for i, k := range b.children {
			visit(k, path+"/"+strconv.Itoa(i), [2]float32{v.Bounds[0], v.Bounds[1]}, v.Opacity)
		}
	}
	visit(r.top, r.id, [2]float32{}, 1)
}

// Find returns the visual with the given id.
func (r *Root) Find(id string) (Visual, bool) {
	var out Visual
	found := false
	r.Walk(func(v Visual) {
		if !found && v.ID == id {
			out, found = v, true
		}
	})
	return out, found
}

// CompositionDelta returns the bounds and opacity changes since the last
// call.
func (r *Root) CompositionDelta() []core.PropertyUpdate {
	if r.committed == nil {
		r.committed = map[string][5]float32{}
	}
	names := [5]string{PropX, PropY, PropWidth, PropHeight, PropOpacity}
	var out []core.PropertyUpdate
	r.Walk(func(v Visual) {
		cur := [5]float32{v.Bounds[0], v.Bounds[1], v.Bounds[2], v.Bounds[3], v.Opacity}
		prev, seen := r.committed[v.ID]
		for i := range cur {
			if !seen || prev[i] != cur[i] {
				out = append(out, core.PropertyUpdate{Visual: v.ID, Name: names[i], Value: float64(cur[i])})
			}
		}
		r.committed[v.ID] = cur
	})
	return out
}
