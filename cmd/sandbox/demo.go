package main

import (
	"math"
	"time"

	"github.com/hubastard/canopy/engine/colors"
	"github.com/hubastard/canopy/engine/core"
	"github.com/hubastard/canopy/engine/profiler"
	"github.com/hubastard/canopy/engine/ui"
)

// pulseDuration is how long the pulse runs after a pointer move.
const pulseDuration = 3 * time.Second

// demo is the primary content: a header, a pulsing tile and a row of
// swatches. It also acts as the timing manager for the pulse.
type demo struct {
	root   *ui.Root
	pulse  *ui.UIBox
	start  time.Time
	active bool
}

var _ core.TimingManager = (*demo)(nil)

func newDemo() *demo {
	d := &demo{}
	d.pulse = ui.Box().ID("pulse").Size(160, 160).Color(colors.Yellow)

	swatches := ui.View(
		ui.Box().Size(48, 48).Color(colors.White),
		ui.Box().Size(48, 48).Color(colors.Gray),
		ui.Box().Size(48, 48).Color(colors.White.WithAlpha(0.4)),
		ui.Box().WidthExpand().HeightFixed(48).Color(colors.Gray.WithAlpha(0.6)),
	).ID("swatches").WidthExpand().Gap(8)

	top := ui.View(
		ui.Box().ID("header").WidthExpand().HeightFixed(32).Color(colors.Black.WithAlpha(0.5)),
		d.pulse,
		swatches,
	).
		ID("content").
		FlowDirection(ui.LayoutVertical).
		AlignCross(ui.AlignCenter).
		WidthExpand().
		HeightExpand().
		Padding(24).
		Gap(16)

	d.root = ui.NewRoot("main", top)
	return d
}

// restart starts the pulse over.
func (d *demo) restart(now time.Time) {
	d.start = now
	d.active = true
}

func (d *demo) Tick(now time.Time) (core.TickResult, error) {
	end := profiler.Start("demo.Tick")
	defer end()

	if !d.active {
		return core.TickResult{}, nil
	}
	elapsed := now.Sub(d.start)
	if elapsed >= pulseDuration {
		d.active = false
		d.pulse.Node().SetOpacity(1)
		return core.TickResult{CheckAnimationComplete: true}, nil
	}
	phase := elapsed.Seconds() * 2 * math.Pi
	d.pulse.Node().SetOpacity(float32(0.6 + 0.4*math.Cos(phase)))
	return core.TickResult{HasActiveFiniteAnimations: true}, nil
}

func (d *demo) TickTimersOnly(time.Time) error { return nil }
