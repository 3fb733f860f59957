// Package glbackend renders ui roots with OpenGL 3.3 and implements the
// engine's graphics device on top of it.
package glbackend

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/hubastard/canopy/engine/colors"
	"github.com/hubastard/canopy/engine/core"
	"github.com/hubastard/canopy/engine/logging"
)

// ErrNoResources is returned when drawing with released resources.
var ErrNoResources = errors.New("glbackend: device resources released")

// Device owns the GL program and buffers. GL calls must happen on the
// thread that owns the context; RegisterDeviceRemovedNotification and
// Remove are the only methods safe from other goroutines.
type Device struct {
	win   core.Window
	clear colors.Color
	log   *slog.Logger

	program    uint32
	vao        uint32
	vbo        uint32
	ebo        uint32
	uProj      int32
	proj       [9]float32
	viewport   [2]float32
	capacity   int
	offered    bool
	roots      map[string]*batch
	order      []string
	indexCache []uint32

	mu        sync.Mutex
	callbacks map[int]func()
	nextCB    int
}

// NewDevice creates the GL resources. The window's context must be current.
func NewDevice(win core.Window, cfg core.Config) (*Device, error) {
	d := &Device{
		win:       win,
		clear:     cfg.ClearColor,
		log:       logging.For("gl"),
		roots:     map[string]*batch{},
		callbacks: map[int]func(){},
	}
	if err := d.create(); err != nil {
		return nil, err
	}
	d.SetViewport(cfg.Width, cfg.Height)
	return d, nil
}

func (d *Device) create() error {
	var err error
	d.program, err = makeProgram(vertexSource, fragmentSource)
	if err != nil {
		return err
	}
	d.uProj = gl.GetUniformLocation(d.program, gl.Str("uProjection\x00"))

	gl.GenVertexArrays(1, &d.vao)
	gl.BindVertexArray(d.vao)
	gl.GenBuffers(1, &d.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
	gl.GenBuffers(1, &d.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, d.ebo)

	// layout(location = 0) in vec2 aPos;
	// layout(location = 1) in vec4 aColor;
	const stride = vStride * 4
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, stride, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(1, 4, gl.FLOAT, false, stride, gl.PtrOffset(2*4))

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	d.capacity = 0
	return glError("create", gl.GetError())
}

func (d *Device) destroy() {
	if d.ebo != 0 {
		gl.DeleteBuffers(1, &d.ebo)
	}
	if d.vbo != 0 {
		gl.DeleteBuffers(1, &d.vbo)
	}
	if d.vao != 0 {
		gl.DeleteVertexArrays(1, &d.vao)
	}
	if d.program != 0 {
		gl.DeleteProgram(d.program)
	}
	d.program, d.vao, d.vbo, d.ebo = 0, 0, 0, 0
	d.capacity = 0
}

// SetViewport follows the framebuffer size.
func (d *Device) SetViewport(w, h int) {
	if w < 1 || h < 1 {
		return
	}
	d.viewport = [2]float32{float32(w), float32(h)}
	d.proj = glMat3(pixelProjection(float32(w), float32(h)))
	gl.Viewport(0, 0, int32(w), int32(h))
}

// setQuads replaces the retained quads of a root.
func (d *Device) setQuads(root string, fill func(b *batch)) error {
	if d.program == 0 {
		return ErrNoResources
	}
	b, ok := d.roots[root]
	if !ok {
		b = &batch{}
		d.roots[root] = b
		d.order = append(d.order, root)
	}
	b.reset()
	fill(b)
	return nil
}

// CommitMainDevice draws every root's retained quads and presents.
func (d *Device) CommitMainDevice() error {
	if d.program == 0 {
		return ErrNoResources
	}
	gl.ClearColor(d.clear[0], d.clear[1], d.clear[2], d.clear[3])
	gl.Clear(gl.COLOR_BUFFER_BIT)

	gl.UseProgram(d.program)
	gl.UniformMatrix3fv(d.uProj, 1, false, &d.proj[0])
	gl.BindVertexArray(d.vao)
	for _, id := range d.order {
		b := d.roots[id]
		if b.quads == 0 {
			continue
		}
		d.upload(b)
		gl.DrawElements(gl.TRIANGLES, int32(b.quads*indsPerQuad), gl.UNSIGNED_INT, nil)
	}
	gl.BindVertexArray(0)
	gl.UseProgram(0)
	gl.Flush()

	if err := glError("commit", gl.GetError()); err != nil {
		return err
	}
	d.win.SwapBuffers()
	return nil
}

func (d *Device) upload(b *batch) {
	quads := b.quads
	if quads > maxQuadsPerBatch {
		d.log.Warn("quad batch truncated", "quads", quads, "max", maxQuadsPerBatch)
		quads = maxQuadsPerBatch
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
	if quads > d.capacity {
		d.indexCache = quadIndices(quads)
		gl.BufferData(gl.ARRAY_BUFFER, quads*vertsPerQuad*vStride*4, nil, gl.DYNAMIC_DRAW)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(d.indexCache)*4, gl.Ptr(d.indexCache), gl.STATIC_DRAW)
		d.capacity = quads
	}
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, quads*vertsPerQuad*vStride*4, gl.Ptr(b.verts))
}

// CheckDeviceState reports a pending GL error.
func (d *Device) CheckDeviceState() error {
	if d.program == 0 {
		return nil
	}
	return glError("check", gl.GetError())
}

func (d *Device) RegisterDeviceRemovedNotification(cb func()) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextCB
	d.nextCB++
	d.callbacks[id] = cb
	return func() {
		d.mu.Lock()
		delete(d.callbacks, id)
		d.mu.Unlock()
	}
}

// Remove reports the device as removed to every registered callback. GL
// has no removal event of its own; hosts call this when the platform says
// the adapter went away.
func (d *Device) Remove() {
	d.mu.Lock()
	cbs := make([]func(), 0, len(d.callbacks))
	for _, cb := range d.callbacks {
		cbs = append(cbs, cb)
	}
	d.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

// Recreate rebuilds the program and buffers.
func (d *Device) Recreate() error {
	d.destroy()
	d.offered = false
	if err := d.create(); err != nil {
		d.destroy()
		return err
	}
	gl.Viewport(0, 0, int32(d.viewport[0]), int32(d.viewport[1]))
	d.log.Info("gl resources recreated")
	return nil
}

// ReleaseResources deletes every GL object and the retained quads.
func (d *Device) ReleaseResources() {
	d.destroy()
	d.roots = map[string]*batch{}
	d.order = nil
	d.indexCache = nil
	d.log.Info("gl resources released")
}

// OfferResources drops buffer storage while suspended.
func (d *Device) OfferResources() error {
	if d.program == 0 || d.offered {
		return nil
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, 0, nil, gl.DYNAMIC_DRAW)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	d.capacity = 0
	d.offered = true
	return glError("offer", gl.GetError())
}

// ReclaimResources ends an offer. Storage is reallocated on the next
// commit.
func (d *Device) ReclaimResources() error {
	d.offered = false
	if d.program == 0 {
		return nil
	}
	return glError("reclaim", gl.GetError())
}

func (d *Device) pollError() uint32 { return gl.GetError() }

// DropRoot forgets the retained quads of a removed root.
func (d *Device) DropRoot(id string) {
	if _, ok := d.roots[id]; !ok {
		return
	}
	delete(d.roots, id)
	for i, have := range d.order {
		if have == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}
