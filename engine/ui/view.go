package ui

import (
	"github.com/hubastard/canopy/engine/colors"
)

type Align int

const (
	AlignStart Align = iota
	AlignCenter
	AlignEnd
	AlignStretch
)

type LayoutDirection int

const (
	LayoutHorizontal LayoutDirection = iota
	LayoutVertical
)

// UIView is a flex container laying its children out along one axis.
type UIView struct {
	Common[*UIView]
	gap        float32
	mainAlign  Align
	crossAlign Align
	flow       LayoutDirection
}

func View(children ...Element) *UIView {
	v := &UIView{
		gap:        10,
		mainAlign:  AlignStart,
		crossAlign: AlignStart,
	}
	v.Common = NewCommon(v)
	v.Children(children...)
	return v
}

func (l *UIView) BgColor(color colors.Color) *UIView              { l.base.SetColor(color); return l }
func (l *UIView) FlowDirection(direction LayoutDirection) *UIView { l.flow = direction; return l }
func (l *UIView) Gap(g float32) *UIView                           { l.gap = g; return l }
func (l *UIView) AlignMain(a Align) *UIView                       { l.mainAlign = a; return l }
func (l *UIView) AlignCross(a Align) *UIView                      { l.crossAlign = a; return l }

// axes returns the main and cross axis indices.
func (l *UIView) axes() (main, cross int) {
	if l.flow == LayoutVertical {
		return 1, 0
	}
	return 0, 1
}

func alignOffset(a Align, remaining float32) float32 {
	if remaining < 0 {
		return 0
	}
	switch a {
	case AlignCenter:
		return remaining * 0.5
	case AlignEnd:
		return remaining
	default:
		return 0
	}
}

func (l *UIView) Layout(c Constraints) LayoutResult {
	m, x := l.axes()
	b := &l.base

	var innerMax, innerMin [2]float32
	for a := 0; a < 2; a++ {
		innerMax[a] = maxf(0, resolveConstraint(c.Max[a])-b.padAxis(a))
		innerMin[a] = maxf(0, c.Min[a]-b.padAxis(a))
	}

	children := b.children
	sizes := make([][2]float32, len(children))
	var mainSum, maxCross float32
	expandCount := 0
	childConstraints := Constraints{Max: innerMax}
	for i, child := range children {
		sizes[i] = child.Layout(childConstraints).Size
		// Expanding children only take what is left on the main axis.
		if mode, _ := child.Node().mode(m); mode == SizeModeExpand {
			sizes[i][m] = 0
			expandCount++
		}
		mainSum += sizes[i][m]
		maxCross = maxf(maxCross, sizes[i][x])
	}

	gapTotal := float32(0)
	if len(children) > 1 {
		gapTotal = l.gap * float32(len(children)-1)
	}

	var outer [2]float32
	outer[m] = b.resolveAxis(m, mainSum+gapTotal+b.padAxis(m), c)
	outer[x] = b.resolveAxis(x, maxCross+b.padAxis(x), c)
	b.size = outer
	innerMain := maxf(maxf(0, outer[m]-b.padAxis(m)), innerMin[m])
	innerCross := maxf(maxf(0, outer[x]-b.padAxis(x)), innerMin[x])

	// Distribute extra space along the main axis to expanding children.
	if expandCount > 0 {
		share := maxf(0, innerMain-mainSum-gapTotal) / float32(expandCount)
		for i, child := range children {
			if mode, _ := child.Node().mode(m); mode == SizeModeExpand {
				sizes[i][m] += share
				mainSum += share
			}
		}
	}

	origin := [2]float32{b.padding[0], b.padding[1]}
	cursor := alignOffset(l.mainAlign, innerMain-mainSum-gapTotal)
	for i, child := range children {
		size := sizes[i]
		cb := child.Node()
		if mode, _ := cb.mode(x); l.crossAlign == AlignStretch || mode == SizeModeExpand {
			size[x] = innerCross
		}
		size[x] = clamp(size[x], 0, innerCross)

		var pos [2]float32
		pos[m] = origin[m] + cursor
		pos[x] = origin[x] + alignOffset(l.crossAlign, innerCross-size[x])
		cb.position = pos
		cb.size = size
		cursor += size[m] + l.gap
	}

	return LayoutResult{Size: outer}
}
