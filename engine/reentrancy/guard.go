// Package reentrancy provides the single-slot token that keeps at most one
// frame in flight.
package reentrancy

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/hubastard/canopy/engine/logging"
)

// ErrReentrant is returned by Enter when the token is already taken.
var ErrReentrant = errors.New("reentrancy: frame already in progress")

// ViolationError describes a reentrant entry. Stack is the stack of the
// goroutine that tried to enter.
type ViolationError struct {
	Scope string
	Stack []byte
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("reentrancy: %s entered while already running", e.Scope)
}

func (e *ViolationError) Unwrap() error { return ErrReentrant }

// FatalFunc handles a violation. It is expected not to return in
// production; if it does, Enter still refuses entry.
type FatalFunc func(*ViolationError)

// Process hooks used by Terminate.
var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// Terminate writes the violation and its stack to stderr, logs it and
// exits the process. Stderr is written first since the engine logger may
// be discarding records.
func Terminate(v *ViolationError) {
	fmt.Fprintf(stderr, "fatal: %v\n\n%s\n", v, v.Stack)
	logging.For("reentrancy").Error("fatal reentrancy violation",
		"scope", v.Scope,
		"stack", string(v.Stack))
	exit(2)
}

// Guard is the reentrancy token. The zero value is not usable; use New.
type Guard struct {
	scope string
	busy  atomic.Bool
	fatal FatalFunc
}

// New returns an idle guard. A nil fatal handler means Terminate.
func New(scope string, fatal FatalFunc) *Guard {
	if fatal == nil {
		fatal = Terminate
	}
	return &Guard{scope: scope, fatal: fatal}
}

// Enter takes the token. The returned release function gives it back and may
// be called any number of times; call it with defer so every exit path
// releases. On violation the fatal handler runs and ErrReentrant is returned.
func (g *Guard) Enter() (release func(), err error) {
	if !g.busy.CompareAndSwap(false, true) {
		v := &ViolationError{Scope: g.scope, Stack: debug.Stack()}
		g.fatal(v)
		return func() {}, v
	}
	var once sync.Once
	return func() { once.Do(func() { g.busy.Store(false) }) }, nil
}

// Busy reports whether the token is currently taken.
func (g *Guard) Busy() bool { return g.busy.Load() }
