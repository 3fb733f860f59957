package main

import (
	"time"

	"github.com/hubastard/canopy/engine/colors"
	"github.com/hubastard/canopy/engine/ui"
)

// budget is the frame time that fills the overlay bar.
const budget = time.Second / 30

// overlay is an island that shows the last frame time as a bar.
type overlay struct {
	root *ui.Root
	bar  *ui.UIBox
	last time.Duration
}

func newOverlay() *overlay {
	o := &overlay{}
	o.bar = ui.Box().ID("frame-time").Size(0, 6).Color(colors.Yellow)
	top := ui.View(o.bar).
		ID("overlay").
		FlowDirection(ui.LayoutVertical).
		WidthFixed(208).
		Padding(4).
		BgColor(colors.Black.WithAlpha(0.5))
	o.root = ui.NewRoot("overlay", top)
	return o
}

// update resizes the bar when the frame time changed.
func (o *overlay) update(d time.Duration) {
	if d == o.last {
		return
	}
	o.last = d
	frac := float32(d) / float32(budget)
	if frac > 1 {
		frac = 1
	}
	o.bar.Node().SetFixedSize(200*frac, 6)
}
