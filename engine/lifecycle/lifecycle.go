// Package lifecycle holds the device and suspend state enums shared by the
// frame engine, and the rules for moving between them.
package lifecycle

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a device state change is not allowed.
var ErrInvalidTransition = errors.New("lifecycle: invalid device state transition")

// DeviceState tracks graphics device health.
type DeviceState int

const (
	// Normal means the device and its dependent resources are usable.
	Normal DeviceState = iota
	// HardwareLost means a device-lost error was seen; resources are
	// released on the next frame.
	HardwareLost
	// HardwareReleased means device resources have been released and a
	// rebuild is pending.
	HardwareReleased
	// HardwareAndCompositorReleased also tears down the compositor
	// connection. Only produced by the device-lost simulation hook.
	HardwareAndCompositorReleased
)

func (s DeviceState) String() string {
	switch s {
	case Normal:
		return "Normal"
	case HardwareLost:
		return "HardwareLost"
	case HardwareReleased:
		return "HardwareReleased"
	case HardwareAndCompositorReleased:
		return "HardwareAndCompositorReleased"
	default:
		return fmt.Sprintf("DeviceState(%d)", int(s))
	}
}

// Released reports whether device resources are gone and need a rebuild.
func (s DeviceState) Released() bool {
	return s == HardwareReleased || s == HardwareAndCompositorReleased
}

// CanTransition reports whether s may move to next.
// Normal is only reachable from a released state (a full rebuild).
func (s DeviceState) CanTransition(next DeviceState) bool {
	switch s {
	case Normal:
		return next != Normal
	case HardwareLost:
		return next == HardwareLost || next == HardwareReleased || next == HardwareAndCompositorReleased
	case HardwareReleased:
		return next == Normal || next == HardwareReleased
	case HardwareAndCompositorReleased:
		return next == Normal || next == HardwareAndCompositorReleased
	}
	return false
}

// Transition returns next if the move is legal, or an error wrapping
// ErrInvalidTransition.
func (s DeviceState) Transition(next DeviceState) (DeviceState, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return next, nil
}

// SuspendReason says why the engine is being suspended.
type SuspendReason int

const (
	// PlatformSuspend comes from the process lifecycle manager.
	PlatformSuspend SuspendReason = iota
	// VisibilityTimeout is raised by the host after the window stayed
	// hidden for the configured timeout.
	VisibilityTimeout
)

func (r SuspendReason) String() string {
	switch r {
	case PlatformSuspend:
		return "PlatformSuspend"
	case VisibilityTimeout:
		return "VisibilityTimeout"
	default:
		return fmt.Sprintf("SuspendReason(%d)", int(r))
	}
}

// SuspendState records whether, and why, the engine is suspended.
type SuspendState int

const (
	NotSuspended SuspendState = iota
	SuspendedByPlatform
	SuspendedByVisibilityTimeout
)

// SuspendStateFor maps a suspend reason to the resulting state.
func SuspendStateFor(r SuspendReason) SuspendState {
	if r == VisibilityTimeout {
		return SuspendedByVisibilityTimeout
	}
	return SuspendedByPlatform
}

func (s SuspendState) String() string {
	switch s {
	case NotSuspended:
		return "NotSuspended"
	case SuspendedByPlatform:
		return "SuspendedByPlatform"
	case SuspendedByVisibilityTimeout:
		return "SuspendedByVisibilityTimeout"
	default:
		return fmt.Sprintf("SuspendState(%d)", int(s))
	}
}

// Suspended reports whether s is any suspended state.
func (s SuspendState) Suspended() bool { return s != NotSuspended }

// Reversible reports whether resume can happen without the platform resume
// handshake, which is only the case for visibility-timeout suspension.
func (s SuspendState) Reversible() bool { return s == SuspendedByVisibilityTimeout }
