package glbackend

import (
	"fmt"

	"golang.org/x/image/math/f32"

	"github.com/hubastard/canopy/engine/colors"
	"github.com/hubastard/canopy/engine/device"
)

// Vertex: pos2 + color4 => 6 floats
const (
	vStride      = 6
	vertsPerQuad = 4
	indsPerQuad  = 6
)

// GL error codes the device maps to loss.
const (
	errOutOfMemory   = 0x0505
	errContextLost   = 0x0507
	errNoError       = 0
	maxQuadsPerBatch = 1 << 14
)

// batch is the retained quad list of one root.
type batch struct {
	verts []float32
	quads int
}

func (b *batch) reset() {
	b.verts = b.verts[:0]
	b.quads = 0
}

// appendQuad adds an axis-aligned rectangle in pixels.
func (b *batch) appendQuad(x, y, w, h float32, c colors.Color) {
	corners := [4][2]float32{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}}
	for _, p := range corners {
		b.verts = append(b.verts, p[0], p[1], c[0], c[1], c[2], c[3])
	}
	b.quads++
}

// quadIndices returns the index buffer for n quads.
func quadIndices(n int) []uint32 {
	inds := make([]uint32, 0, n*indsPerQuad)
	for i := 0; i < n; i++ {
		o := uint32(i * vertsPerQuad)
		inds = append(inds, o, o+1, o+2, o+2, o+3, o)
	}
	return inds
}

// glError converts a glGetError code into an error. Context loss and out
// of memory are device-lost class.
func glError(op string, code uint32) error {
	switch code {
	case errNoError:
		return nil
	case errContextLost, errOutOfMemory:
		return &device.LostError{Op: op, Code: code}
	default:
		return fmt.Errorf("glbackend: %s: gl error 0x%04x", op, code)
	}
}

// pixelProjection maps top-left origin pixel coordinates to clip space.
func pixelProjection(w, h float32) f32.Aff3 {
	return f32.Aff3{
		2 / w, 0, -1,
		0, -2 / h, 1,
	}
}

// glMat3 lays out a as a column-major mat3.
func glMat3(a f32.Aff3) [9]float32 {
	return [9]float32{
		a[0], a[3], 0,
		a[1], a[4], 0,
		a[2], a[5], 1,
	}
}
