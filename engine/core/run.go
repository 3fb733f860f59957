package core

import (
	"context"
	"runtime"
	"time"

	"github.com/hubastard/canopy/engine/lifecycle"
	"github.com/hubastard/canopy/engine/logging"
)

// pollInterval caps how long the loop sleeps between event polls.
const pollInterval = time.Second / 60

// Run wires the platform window to the engine and executes the main loop
// until the window closes or ctx is cancelled. All engine calls happen on
// the calling goroutine, which is locked to its OS thread.
func Run(ctx context.Context, eng Engine, sched *Scheduler, win Window, cfg Config) error {
	// Graphics contexts require the main OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	log := logging.For("host")
	var (
		hiddenSince  time.Time
		timedOut     bool
		closed       bool
		platformHeld bool
	)

	resume := func() {
		if err := eng.OnResume(); err != nil {
			log.Warn("resume failed", "err", err)
		}
	}

	win.SetEventCallback(func(ev Event) {
		switch e := ev.(type) {
		case EventCloseRequested:
			closed = true
		case EventResize:
			if e.W < 1 || e.H < 1 {
				return
			}
			eng.Resize(e.W, e.H)
			sched.RequestAdditionalFrame(0, "resize")
		case EventMouseMove:
			eng.PointerMoved(e.X, e.Y)
		case EventVisibility:
			eng.SetWindowVisible(e.Visible)
			if e.Visible {
				hiddenSince = time.Time{}
				if timedOut && !platformHeld {
					timedOut = false
					resume()
				}
				sched.RequestAdditionalFrame(0, "visible")
			} else {
				hiddenSince = time.Now()
			}
		case EventSuspend:
			platformHeld = true
			if err := eng.OnSuspend(lifecycle.PlatformSuspend, cfg.Engine.AllowOfferResources); err != nil {
				log.Warn("suspend failed", "err", err)
			}
		case EventResume:
			platformHeld = false
			timedOut = false
			resume()
		case EventLowMemory:
			eng.OnLowMemory()
		}
	})

	w, h := win.FramebufferSize()
	eng.Resize(w, h)
	sched.RequestAdditionalFrame(0, "startup")

	for !closed && !win.ShouldClose() {
		if err := ctx.Err(); err != nil {
			break
		}

		// Poll OS events (platform will emit via callbacks)
		win.PollEvents()

		now := time.Now()
		if to := cfg.Engine.VisibilityTimeout; to > 0 && !hiddenSince.IsZero() && !timedOut && now.Sub(hiddenSince) >= to {
			timedOut = true
			if err := eng.OnSuspend(lifecycle.VisibilityTimeout, cfg.Engine.AllowOfferResources); err != nil {
				log.Warn("visibility suspend failed", "err", err)
			}
		}

		if reason, ok := sched.Take(now); ok {
			var err error
			sched.Tick(func() { _, err = eng.RunFrame(false) })
			if err != nil {
				log.Error("frame failed", "reason", reason, "err", err)
				return err
			}
		}

		sched.Wait(ctx, pollInterval)
	}

	log.Info("engine exit")
	return nil
}
