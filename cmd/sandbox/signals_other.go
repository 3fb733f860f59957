//go:build !unix

package main

import (
	"context"

	"github.com/hubastard/canopy/engine/core"
	"github.com/hubastard/canopy/engine/frame"
	glbackend "github.com/hubastard/canopy/engine/gfx/gl"
)

func watchDeviceSignals(context.Context, *glbackend.Device, *frame.Orchestrator, *core.Scheduler) {}
