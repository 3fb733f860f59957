package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli"

	"github.com/hubastard/canopy/engine/core"
	"github.com/hubastard/canopy/engine/frame"
	glbackend "github.com/hubastard/canopy/engine/gfx/gl"
	"github.com/hubastard/canopy/engine/logging"
	"github.com/hubastard/canopy/engine/platform"
	"github.com/hubastard/canopy/engine/profiler"
	"github.com/hubastard/canopy/engine/ui"
)

func main() {
	app := cli.NewApp()
	app.Name = "sandbox"
	app.Usage = "run the frame engine against a demo ui"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "yaml config file",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "override the configured log level",
		},
		cli.StringFlag{
			Name:  "profile",
			Usage: "write a speedscope profile to this file on exit",
		},
		cli.StringFlag{
			Name:  "events",
			Usage: "write the engine event log to this file on exit",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "outline every element",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(ctx *cli.Context) (core.Config, error) {
	cfg := core.DefaultConfig()
	if path := ctx.String("config"); path != "" {
		var err error
		if cfg, err = core.LoadConfig(path); err != nil {
			return cfg, err
		}
	}
	if lvl := ctx.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	return cfg, nil
}

func run(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	logging.SetLogger(logging.New(cfg.Log))
	log := logging.For("sandbox")
	profiler.Init(1 << 12)

	win, err := platform.NewGLFWWindow(cfg, nil)
	if err != nil {
		return err
	}
	defer win.Destroy()

	dev, err := glbackend.NewDevice(win, cfg)
	if err != nil {
		return err
	}

	sched := core.NewScheduler()
	content := newDemo()
	hud := newOverlay()
	layout := ui.NewLayout(content.root, hud.root)

	var eng *frame.Orchestrator
	eng = frame.New(frame.Deps{
		Scheduler: sched,
		Layout:    layout,
		Walker:    &glbackend.Walker{Debug: ctx.Bool("debug")},
		Device:    dev,
		Timing:    content,
		Primary:   content.root,
	},
		frame.FromConfig(cfg.Engine),
		frame.WithInstance("sandbox-"+uuid.NewString()[:8]),
		frame.WithLogger(logging.Logger()),
		frame.WithHooks(frame.Hooks{
			PerFrame: func(now time.Time) error {
				hud.update(eng.Stats().LastFrameDuration)
				return nil
			},
		}),
		frame.WithErrorReporter(core.ErrorReporterFunc(func(step string, err error) {
			log.Warn("frame step failed", "step", step, "err", err)
		})),
	)
	eng.AddIsland(hud.root)
	defer eng.Close()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := eng.Start(runCtx); err != nil {
		return err
	}

	watchDeviceSignals(runCtx, dev, eng, sched)

	content.restart(time.Now())
	host := &pointerHost{Orchestrator: eng, content: content, sched: sched}
	runErr := core.Run(runCtx, host, sched, win, cfg)

	eng.Stats().WriteTable(os.Stdout)
	if path := ctx.String("profile"); path != "" {
		if err := profiler.Dump(path); err != nil {
			log.Warn("profile dump failed", "err", err)
		}
	}
	if path := ctx.String("events"); path != "" {
		if err := dumpEvents(eng, path); err != nil {
			log.Warn("event dump failed", "err", err)
		}
	}
	return runErr
}

// pointerHost restarts the pulse whenever the pointer moves.
type pointerHost struct {
	*frame.Orchestrator
	content *demo
	sched   *core.Scheduler
}

func (h *pointerHost) PointerMoved(x, y float64) {
	h.Orchestrator.PointerMoved(x, y)
	h.content.restart(time.Now())
	h.sched.RequestAdditionalFrame(0, "pointer")
}

func dumpEvents(eng *frame.Orchestrator, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := eng.DumpEvents(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
