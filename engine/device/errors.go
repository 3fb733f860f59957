// Package device detects graphics device loss and drives release and
// rebuild of device-dependent resources.
package device

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceLost is the device-lost class sentinel. Backends wrap it or
	// return a *LostError.
	ErrDeviceLost = errors.New("device: graphics device lost")

	// ErrNotReleased is returned by Rebuild when there is nothing to rebuild.
	ErrNotReleased = errors.New("device: resources not released")
)

// LostError carries the backend error code of a device loss.
type LostError struct {
	Op   string
	Code uint32
}

func (e *LostError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("device: lost (code 0x%08x)", e.Code)
	}
	return fmt.Sprintf("device: %s: lost (code 0x%08x)", e.Op, e.Code)
}

func (e *LostError) Unwrap() error { return ErrDeviceLost }

// Class is the recovery class of an error.
type Class int

const (
	// ClassNone is not a device error.
	ClassNone Class = iota
	// ClassDeviceLost is recovered by release and rebuild.
	ClassDeviceLost
	// ClassFatal is a device error the host should not retry.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "None"
	case ClassDeviceLost:
		return "DeviceLost"
	case ClassFatal:
		return "Fatal"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// Policy decides which errors are recoverable device loss. Hosts inject
// their own to choose between give-up and retry-forever per error code.
type Policy interface {
	Classify(err error) Class
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(error) Class

func (f PolicyFunc) Classify(err error) Class { return f(err) }

// CodePolicy treats every device-lost error as recoverable except those
// whose code is listed as fatal.
type CodePolicy struct {
	fatal map[uint32]struct{}
}

// NewCodePolicy returns a policy with the given fatal codes.
func NewCodePolicy(fatal ...uint32) *CodePolicy {
	p := &CodePolicy{fatal: make(map[uint32]struct{}, len(fatal))}
	for _, c := range fatal {
		p.fatal[c] = struct{}{}
	}
	return p
}

func (p *CodePolicy) Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	var lost *LostError
	if errors.As(err, &lost) {
		if _, ok := p.fatal[lost.Code]; ok {
			return ClassFatal
		}
		return ClassDeviceLost
	}
	if errors.Is(err, ErrDeviceLost) {
		return ClassDeviceLost
	}
	return ClassNone
}
