// Package ui is a retained element tree with flex layout. Trees are
// attached to a Root, which the frame engine lays out, walks and commits.
package ui

import (
	"math"

	"github.com/hubastard/canopy/engine/colors"
)

type SizeMode int

const (
	SizeModeFit SizeMode = iota
	SizeModeFixed
	SizeModeExpand
)

type Constraints struct {
	Min [2]float32
	Max [2]float32
}

type LayoutResult struct {
	Size [2]float32
}

// Element is a node of a retained tree. Layout sizes the element and
// positions its children relative to it.
type Element interface {
	Node() *Base
	Layout(c Constraints) LayoutResult
}

type Base struct {
	id       string
	parent   Element
	children []Element
	root     *Root // set on the top element only

	position  [2]float32 // relative to the parent
	size      [2]float32
	color     colors.Color
	opacity   float32
	widthMod  SizeMode
	heightMod SizeMode
	widthVal  float32
	heightVal float32
	padding   [4]float32 // left, top, right, bottom
}

func (b *Base) ID() string           { return b.id }
func (b *Base) Parent() Element      { return b.parent }
func (b *Base) Children() []Element  { return b.children }
func (b *Base) Pos() (x, y float32)  { return b.position[0], b.position[1] }
func (b *Base) Size() (w, h float32) { return b.size[0], b.size[1] }
func (b *Base) Color() colors.Color  { return b.color }
func (b *Base) Opacity() float32     { return b.opacity }
func (b *Base) Padding() [4]float32  { return b.padding }
func (b *Base) SetPos(x, y float32)  { b.position = [2]float32{x, y} }
func (b *Base) SetSize(w, h float32) { b.size = [2]float32{w, h} }
func (b *Base) SetID(id string)      { b.id = id }
func (b *Base) SetColor(c colors.Color) {
	b.color = c
	b.invalidate(false)
}

// SetOpacity changes the element opacity. It only needs a new composition
// delta, not a layout.
func (b *Base) SetOpacity(o float32) {
	b.opacity = clamp(o, 0, 1)
	b.invalidate(false)
}

func (b *Base) SetPadding(l, t, r, btm float32) {
	b.padding = [4]float32{l, t, r, btm}
	b.invalidate(true)
}

// SetFixedSize switches both axes to fixed sizing.
func (b *Base) SetFixedSize(w, h float32) {
	b.widthMod, b.widthVal = SizeModeFixed, w
	b.heightMod, b.heightVal = SizeModeFixed, h
	b.invalidate(true)
}

// AddChild appends kids and relayouts the tree.
func (b *Base) AddChild(self Element, kids ...Element) {
	for _, k := range kids {
		k.Node().parent = self
	}
	b.children = append(b.children, kids...)
	b.invalidate(true)
}

// RemoveChild detaches the child with the given id.
func (b *Base) RemoveChild(id string) bool {
	for i, k := range b.children {
		if k.Node().id == id {
			k.Node().parent = nil
			b.children = append(b.children[:i], b.children[i+1:]...)
			b.invalidate(true)
			return true
		}
	}
	return false
}

// invalidate reports a change to the root of the tree, if attached.
func (b *Base) invalidate(layout bool) {
	top := b
	for top.parent != nil {
		top = top.parent.Node()
	}
	if top.root != nil {
		top.root.invalidate(layout)
	}
}

func (b *Base) mode(axis int) (SizeMode, float32) {
	if axis == 0 {
		return b.widthMod, b.widthVal
	}
	return b.heightMod, b.heightVal
}

func (b *Base) initDefaults() {
	b.opacity = 1
	b.widthMod = SizeModeFit
	b.heightMod = SizeModeFit
}

func clamp(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func resolveConstraint(max float32) float32 {
	if max == 0 {
		return float32(math.MaxFloat32)
	}
	return max
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// resolveAxis sizes the element along axis given its content size.
func (b *Base) resolveAxis(axis int, content float32, c Constraints) float32 {
	min, max := c.Min[axis], resolveConstraint(c.Max[axis])
	mode, fixed := b.mode(axis)
	switch mode {
	case SizeModeFixed:
		if fixed > 0 {
			return clamp(fixed, min, max)
		}
		return clamp(content, min, max)
	case SizeModeExpand:
		return max
	default:
		return clamp(content, min, max)
	}
}

// padAxis is the padding total along axis.
func (b *Base) padAxis(axis int) float32 { return b.padding[axis] + b.padding[axis+2] }

// ------ Helper ------

type Common[T any] struct {
	owner T
	base  Base
}

func NewCommon[T any](owner T) Common[T] {
	var b Base
	b.initDefaults()
	return Common[T]{owner: owner, base: b}
}

func (c *Common[T]) Node() *Base              { return &c.base }
func (c *Common[T]) ID(id string) T           { c.base.id = id; return c.owner }
func (c *Common[T]) Size(w, h float32) T      { c.base.SetFixedSize(w, h); return c.owner }
func (c *Common[T]) Color(col colors.Color) T { c.base.SetColor(col); return c.owner }
func (c *Common[T]) Opacity(o float32) T      { c.base.SetOpacity(o); return c.owner }
func (c *Common[T]) Padding(all float32) T    { c.base.SetPadding(all, all, all, all); return c.owner }
func (c *Common[T]) Padding2(h, v float32) T  { c.base.SetPadding(h, v, h, v); return c.owner }
func (c *Common[T]) WidthFit() T              { c.base.widthMod = SizeModeFit; return c.owner }
func (c *Common[T]) WidthExpand() T           { c.base.widthMod = SizeModeExpand; return c.owner }
func (c *Common[T]) HeightFit() T             { c.base.heightMod = SizeModeFit; return c.owner }
func (c *Common[T]) HeightExpand() T          { c.base.heightMod = SizeModeExpand; return c.owner }

func (c *Common[T]) WidthFixed(width float32) T {
	c.base.widthMod = SizeModeFixed
	c.base.widthVal = width
	return c.owner
}

func (c *Common[T]) HeightFixed(height float32) T {
	c.base.heightMod = SizeModeFixed
	c.base.heightVal = height
	return c.owner
}

func (c *Common[T]) Padding4(left, top, right, bottom float32) T {
	c.base.SetPadding(left, top, right, bottom)
	return c.owner
}

func (c *Common[T]) Children(kids ...Element) T {
	c.base.AddChild(any(c.owner).(Element), kids...)
	return c.owner
}
