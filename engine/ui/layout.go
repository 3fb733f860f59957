package ui

import "github.com/hubastard/canopy/engine/core"

// Layout lays out a set of roots against the viewport. It implements
// core.LayoutEngine; UpdateLayout only touches roots that changed, so it
// is cheap to call repeatedly.
type Layout struct {
	roots  []*Root
	w, h   float32
	passes int
}

var _ core.LayoutEngine = (*Layout)(nil)

func NewLayout(roots ...*Root) *Layout { return &Layout{roots: roots} }

// Add lays out r along with the other roots.
func (l *Layout) Add(r *Root) { l.roots = append(l.roots, r) }

// Remove stops laying out the root with the given id.
func (l *Layout) Remove(id string) {
	for i, r := range l.roots {
		if r.id == id {
			l.roots = append(l.roots[:i], l.roots[i+1:]...)
			return
		}
	}
}

// UpdateLayout relayouts changed roots. A zero viewport has nothing to lay
// out yet.
func (l *Layout) UpdateLayout(w, h float32) error {
	if w <= 0 || h <= 0 {
		return nil
	}
	resized := w != l.w || h != l.h
	l.w, l.h = w, h
	for _, r := range l.roots {
		if resized || r.needsLayout {
			r.layout(w, h)
			l.passes++
		}
	}
	return nil
}

func (l *Layout) NeedsLayout() bool {
	if l.w <= 0 || l.h <= 0 {
		return false
	}
	for _, r := range l.roots {
		if r.needsLayout {
			return true
		}
	}
	return false
}

// Passes is the number of root layouts run.
func (l *Layout) Passes() int { return l.passes }
