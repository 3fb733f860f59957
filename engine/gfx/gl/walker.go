package glbackend

import (
	"fmt"

	"github.com/hubastard/canopy/engine/colors"
	"github.com/hubastard/canopy/engine/core"
	"github.com/hubastard/canopy/engine/ui"
)

var debugColor = colors.Color{1, 0, 1, 0.6}

// Walker turns ui roots into quads on a Device. It implements
// core.RenderWalker.
type Walker struct {
	// Debug outlines every element.
	Debug bool
}

var _ core.RenderWalker = (*Walker)(nil)

func (w *Walker) RenderRoot(root core.Root, target core.GraphicsDevice, p core.RenderParams) error {
	r, ok := root.(*ui.Root)
	if !ok {
		return fmt.Errorf("glbackend: unsupported root %T", root)
	}
	d, ok := target.(*Device)
	if !ok {
		return fmt.Errorf("glbackend: unsupported device %T", target)
	}
	scale := p.Scale
	if scale <= 0 {
		scale = 1
	}
	err := d.setQuads(r.ID(), func(b *batch) {
		fillRoot(b, r, scale, w.Debug)
	})
	if err != nil {
		return err
	}
	if err := glError("render "+r.ID(), d.pollError()); err != nil {
		return err
	}
	r.MarkRendered()
	return nil
}

func fillRoot(b *batch, r *ui.Root, scale float32, debug bool) {
	r.Walk(func(v ui.Visual) {
		x, y := v.Bounds[0]*scale, v.Bounds[1]*scale
		w, h := v.Bounds[2]*scale, v.Bounds[3]*scale
		c := v.Element.Node().Color()
		if c.Visible() && v.Opacity > 0 {
			b.appendQuad(x, y, w, h, c.WithAlpha(c.Alpha()*v.Opacity))
		}
		if debug {
			outline(b, x, y, w, h)
		}
	})
}

// outline draws a one pixel frame.
func outline(b *batch, x, y, w, h float32) {
	c := debugColor
	b.appendQuad(x, y, w, 1, c)
	b.appendQuad(x, y+h-1, w, 1, c)
	b.appendQuad(x, y, 1, h, c)
	b.appendQuad(x+w-1, y, 1, h, c)
}
