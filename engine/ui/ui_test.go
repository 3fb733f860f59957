package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubastard/canopy/engine/colors"
	"github.com/hubastard/canopy/engine/core"
)

func column() (*UIView, *UIBox, *UIBox) {
	a := Box().ID("a").Size(100, 50).Color(colors.Yellow)
	b := Box().ID("b").Size(100, 30)
	v := View(a, b).FlowDirection(LayoutVertical).Gap(10).Padding(5)
	return v, a, b
}

func bounds(t *testing.T, r *Root, id string) [4]float32 {
	t.Helper()
	v, ok := r.Find(id)
	require.True(t, ok, "visual %q", id)
	return v.Bounds
}

func TestVerticalLayout(t *testing.T) {
	v, _, _ := column()
	r := NewRoot("main", v)
	l := NewLayout(r)

	require.NoError(t, l.UpdateLayout(800, 600))
	assert.Equal(t, [4]float32{0, 0, 110, 100}, bounds(t, r, "main"))
	assert.Equal(t, [4]float32{5, 5, 100, 50}, bounds(t, r, "a"))
	assert.Equal(t, [4]float32{5, 65, 100, 30}, bounds(t, r, "b"))
}

func TestExpandTakesRemainingSpace(t *testing.T) {
	grow := Box().ID("grow").WidthExpand().HeightFixed(20)
	fixed := Box().ID("fixed").Size(100, 20)
	v := View(grow, fixed).WidthFixed(300).HeightFixed(100).Gap(0)
	r := NewRoot("main", v)

	require.NoError(t, NewLayout(r).UpdateLayout(800, 600))
	assert.Equal(t, [4]float32{0, 0, 200, 20}, bounds(t, r, "grow"))
	assert.Equal(t, [4]float32{200, 0, 100, 20}, bounds(t, r, "fixed"))
}

func TestCenterAlignment(t *testing.T) {
	child := Box().ID("c").Size(100, 20)
	v := View(child).WidthFixed(300).HeightFixed(100).Gap(0).
		AlignMain(AlignCenter).AlignCross(AlignCenter)
	r := NewRoot("main", v)

	require.NoError(t, NewLayout(r).UpdateLayout(800, 600))
	assert.Equal(t, [4]float32{100, 40, 100, 20}, bounds(t, r, "c"))
}

func TestNestedPositionsAreAbsolute(t *testing.T) {
	inner := View(Box().ID("leaf").Size(10, 10)).ID("inner").Padding(4)
	outer := View(Box().Size(50, 10), inner).Gap(0).Padding(1)
	r := NewRoot("main", outer)

	require.NoError(t, NewLayout(r).UpdateLayout(800, 600))
	assert.Equal(t, [4]float32{51, 1, 18, 18}, bounds(t, r, "inner"))
	assert.Equal(t, [4]float32{55, 5, 10, 10}, bounds(t, r, "leaf"))
	_, ok := r.Find("main/0")
	assert.True(t, ok, "unnamed elements are named by their index path")
}

func TestLayoutOnlyWhenNeeded(t *testing.T) {
	v, a, _ := column()
	r := NewRoot("main", v)
	l := NewLayout(r)

	assert.False(t, l.NeedsLayout(), "nothing to do without a viewport")
	require.NoError(t, l.UpdateLayout(0, 0))
	assert.Zero(t, l.Passes())

	require.NoError(t, l.UpdateLayout(800, 600))
	require.NoError(t, l.UpdateLayout(800, 600))
	assert.Equal(t, 1, l.Passes())
	assert.False(t, l.NeedsLayout())

	a.Node().SetColor(colors.White)
	assert.False(t, l.NeedsLayout(), "color changes do not relayout")
	assert.True(t, r.Dirty())

	a.Node().SetPadding(1, 1, 1, 1)
	assert.True(t, l.NeedsLayout())
	require.NoError(t, l.UpdateLayout(800, 600))
	assert.Equal(t, 2, l.Passes())

	require.NoError(t, l.UpdateLayout(1024, 768))
	assert.Equal(t, 3, l.Passes())
}

func TestCompositionDelta(t *testing.T) {
	v, _, b := column()
	r := NewRoot("main", v)
	require.NoError(t, NewLayout(r).UpdateLayout(800, 600))

	first := r.CompositionDelta()
	assert.Len(t, first, 15)
	assert.Empty(t, r.CompositionDelta())

	b.Node().SetOpacity(0.5)
	assert.Equal(t, []core.PropertyUpdate{{Visual: "b", Name: PropOpacity, Value: 0.5}}, r.CompositionDelta())

	r.Invalidate()
	assert.Len(t, r.CompositionDelta(), 15)
}

func TestOpacityAccumulates(t *testing.T) {
	leaf := Box().ID("leaf").Size(1, 1).Opacity(0.5)
	r := NewRoot("main", View(leaf).Opacity(0.5))
	v, ok := r.Find("leaf")
	require.True(t, ok)
	assert.Equal(t, float32(0.25), v.Opacity)
}

func TestDirtyFlags(t *testing.T) {
	v, _, _ := column()
	r := NewRoot("main", v)
	assert.True(t, r.Dirty())
	assert.True(t, r.NeedsLayout())

	r.MarkRendered()
	assert.False(t, r.Dirty())

	extra := Box().ID("extra").Size(1, 1)
	v.Children(extra)
	assert.True(t, r.Dirty())
	assert.True(t, v.Node().RemoveChild("extra"))
	assert.False(t, v.Node().RemoveChild("extra"))
	assert.Nil(t, extra.Node().Parent())
}
