package glbackend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/math/f32"

	"github.com/hubastard/canopy/engine/colors"
	"github.com/hubastard/canopy/engine/core"
	"github.com/hubastard/canopy/engine/device"
	"github.com/hubastard/canopy/engine/ui"
)

func TestQuadIndices(t *testing.T) {
	assert.Equal(t, []uint32{0, 1, 2, 2, 3, 0, 4, 5, 6, 6, 7, 4}, quadIndices(2))
	assert.Empty(t, quadIndices(0))
}

func TestAppendQuad(t *testing.T) {
	var b batch
	b.appendQuad(1, 2, 10, 20, colors.White)
	require.Equal(t, 1, b.quads)
	require.Len(t, b.verts, vertsPerQuad*vStride)
	assert.Equal(t, []float32{1, 2, 1, 1, 1, 1}, b.verts[:vStride])
	assert.Equal(t, []float32{11, 22}, b.verts[2*vStride:2*vStride+2])

	b.reset()
	assert.Zero(t, b.quads)
	assert.Empty(t, b.verts)
}

func TestGLErrorMapping(t *testing.T) {
	assert.NoError(t, glError("commit", errNoError))

	err := glError("commit", errContextLost)
	assert.ErrorIs(t, err, device.ErrDeviceLost)
	var lost *device.LostError
	require.True(t, errors.As(err, &lost))
	assert.Equal(t, uint32(errContextLost), lost.Code)
	assert.Equal(t, "commit", lost.Op)

	assert.ErrorIs(t, glError("commit", errOutOfMemory), device.ErrDeviceLost)

	err = glError("commit", 0x0502)
	require.Error(t, err)
	assert.NotErrorIs(t, err, device.ErrDeviceLost)
	assert.Equal(t, device.ClassNone, device.NewCodePolicy().Classify(err))
}

func TestFillRootSkipsInvisible(t *testing.T) {
	shown := ui.Box().ID("shown").Size(10, 10).Color(colors.White)
	faded := ui.Box().ID("faded").Size(10, 10).Color(colors.White).Opacity(0)
	v := ui.View(shown, faded).Gap(0)
	r := ui.NewRoot("main", v)
	require.NoError(t, ui.NewLayout(r).UpdateLayout(100, 100))

	var b batch
	fillRoot(&b, r, 1, false)
	// The view itself has no color.
	assert.Equal(t, 1, b.quads)

	b.reset()
	fillRoot(&b, r, 2, true)
	assert.Equal(t, 1+3*4, b.quads)
	assert.Equal(t, []float32{0, 0}, b.verts[:2])
	// First quad is the top edge of the 20px wide view at scale 2.
	assert.Equal(t, []float32{40, 0}, b.verts[vStride:vStride+2])
}

func TestFillRootAppliesOpacity(t *testing.T) {
	leaf := ui.Box().ID("leaf").Size(4, 4).Color(colors.White.WithAlpha(0.5))
	r := ui.NewRoot("main", ui.View(leaf).Opacity(0.5))
	require.NoError(t, ui.NewLayout(r).UpdateLayout(100, 100))

	var b batch
	fillRoot(&b, r, 1, false)
	require.Equal(t, 1, b.quads)
	assert.Equal(t, float32(0.25), b.verts[5])
}

func TestWalkerRejectsForeignTypes(t *testing.T) {
	w := &Walker{}
	err := w.RenderRoot(ui.NewRoot("main", ui.Box()), nil, core.RenderParams{})
	assert.ErrorContains(t, err, "unsupported device")
}

func TestPixelProjection(t *testing.T) {
	p := pixelProjection(512, 256)
	assert.Equal(t, f32.Vec2{-1, 1}, transform(p, f32.Vec2{0, 0}))
	assert.Equal(t, f32.Vec2{1, -1}, transform(p, f32.Vec2{512, 256}))
	assert.Equal(t, f32.Vec2{0, 0}, transform(p, f32.Vec2{256, 128}))

	m := glMat3(p)
	// Translation sits in the last column.
	assert.Equal(t, [3]float32{-1, 1, 1}, [3]float32{m[6], m[7], m[8]})
	assert.Equal(t, float32(1.0/256), m[0])
	assert.Equal(t, float32(-1.0/128), m[4])
}

func transform(a f32.Aff3, p f32.Vec2) f32.Vec2 {
	return f32.Vec2{
		a[0]*p[0] + a[1]*p[1] + a[2],
		a[3]*p[0] + a[4]*p[1] + a[5],
	}
}
