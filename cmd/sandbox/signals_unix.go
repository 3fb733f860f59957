//go:build unix

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hubastard/canopy/engine/core"
	"github.com/hubastard/canopy/engine/frame"
	glbackend "github.com/hubastard/canopy/engine/gfx/gl"
	"github.com/hubastard/canopy/engine/logging"
)

// watchDeviceSignals lets device loss be exercised from a shell: SIGUSR1
// reports the device as removed, SIGUSR2 simulates a loss on the UI
// thread.
func watchDeviceSignals(ctx context.Context, dev *glbackend.Device, eng *frame.Orchestrator, sched *core.Scheduler) {
	log := logging.For("sandbox")
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-sigs:
				if s == syscall.SIGUSR1 {
					log.Info("removing device")
					dev.Remove()
					continue
				}
				log.Info("simulating device loss")
				eng.Tick().Events.Push(func() error {
					eng.SimulateDeviceLost(false)
					return nil
				})
				sched.RequestAdditionalFrame(0, "simulate device lost")
			}
		}
	}()
}
