// Package signal provides named, process-visible idle signals for test and
// automation harnesses. A signal is a plain set/reset flag with no payload.
package signal

import (
	"context"
	"expvar"
	"sync"
)

// Well-known signal names, relative to an engine instance.
const (
	NoAnimationsRunning = "no-animations-running"
	NoPendingDownloads  = "no-pending-downloads"
	NoPendingDecodes    = "no-pending-decodes"
)

// Signal is a manual-reset flag.
type Signal struct {
	name string

	mu  sync.Mutex
	set bool
	ch  chan struct{} // closed while set
}

func newSignal(name string) *Signal {
	return &Signal{name: name, ch: make(chan struct{})}
}

// Name returns the process-wide name.
func (s *Signal) Name() string { return s.name }

// Set raises the flag and wakes all waiters.
func (s *Signal) Set() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set {
		return
	}
	s.set = true
	close(s.ch)
}

// Reset lowers the flag.
func (s *Signal) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return
	}
	s.set = false
	s.ch = make(chan struct{})
}

// Store sets or resets depending on v.
func (s *Signal) Store(v bool) {
	if v {
		s.Set()
	} else {
		s.Reset()
	}
}

func (s *Signal) IsSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

// Wait blocks until the flag is set or ctx is done.
func (s *Signal) Wait(ctx context.Context) error {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	regMu    sync.RWMutex
	registry = map[string]*Signal{}
)

func init() {
	expvar.Publish("canopy.signals", expvar.Func(func() any {
		regMu.RLock()
		defer regMu.RUnlock()
		out := make(map[string]bool, len(registry))
		for name, s := range registry {
			out[name] = s.IsSet()
		}
		return out
	}))
}

// Open returns the signal with the given name, creating it reset.
func Open(name string) *Signal {
	regMu.Lock()
	defer regMu.Unlock()
	if s, ok := registry[name]; ok {
		return s
	}
	s := newSignal(name)
	registry[name] = s
	return s
}

// Lookup returns an existing signal.
func Lookup(name string) (*Signal, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	s, ok := registry[name]
	return s, ok
}

// Remove drops a signal from the registry. Waiters keep their reference.
func Remove(name string) {
	regMu.Lock()
	delete(registry, name)
	regMu.Unlock()
}

// Set is the group of idle signals of one engine instance.
type Set struct {
	prefix     string
	Animations *Signal
	Downloads  *Signal
	Decodes    *Signal
}

// NewSet opens the three idle signals under "canopy/<instance>/".
// They start set: a fresh engine is idle.
func NewSet(instance string) *Set {
	prefix := "canopy/" + instance + "/"
	s := &Set{
		prefix:     prefix,
		Animations: Open(prefix + NoAnimationsRunning),
		Downloads:  Open(prefix + NoPendingDownloads),
		Decodes:    Open(prefix + NoPendingDecodes),
	}
	s.Animations.Set()
	s.Downloads.Set()
	s.Decodes.Set()
	return s
}

// Name returns the full name of a well-known signal in this set.
func (s *Set) Name(short string) string { return s.prefix + short }

// Close removes the set's signals from the registry.
func (s *Set) Close() {
	Remove(s.Animations.Name())
	Remove(s.Downloads.Name())
	Remove(s.Decodes.Name())
}
