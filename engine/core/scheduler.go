package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler is the host-side FrameScheduler. Requests may come from any
// goroutine; the loop in Run consumes them.
type Scheduler struct {
	mu      sync.Mutex
	pending bool
	due     time.Time
	reason  string

	inTick atomic.Bool
	wake   chan struct{}
	now    func() time.Time
}

// NewScheduler returns a scheduler with no pending frame.
func NewScheduler() *Scheduler {
	return &Scheduler{wake: make(chan struct{}, 1), now: time.Now}
}

// RequestAdditionalFrame asks for a frame no later than delay from now.
// The earliest outstanding request wins.
func (s *Scheduler) RequestAdditionalFrame(delay time.Duration, reason string) {
	if delay < 0 {
		delay = 0
	}
	at := s.now().Add(delay)
	s.mu.Lock()
	if !s.pending || at.Before(s.due) {
		s.due = at
		s.reason = reason
	}
	s.pending = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// IsInTick reports whether a frame is running.
func (s *Scheduler) IsInTick() bool { return s.inTick.Load() }

// Pending returns the outstanding request, if any.
func (s *Scheduler) Pending() (due time.Time, reason string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.due, s.reason, s.pending
}

// Take consumes the outstanding request if it is due at now.
func (s *Scheduler) Take(now time.Time) (reason string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending || now.Before(s.due) {
		return "", false
	}
	s.pending = false
	return s.reason, true
}

// Tick runs fn with IsInTick reporting true.
func (s *Scheduler) Tick(fn func()) {
	s.inTick.Store(true)
	defer s.inTick.Store(false)
	fn()
}

// Wait blocks until a request is due, a new request arrives, max elapses or
// ctx is done.
func (s *Scheduler) Wait(ctx context.Context, max time.Duration) {
	d := max
	if due, _, ok := s.Pending(); ok {
		if until := due.Sub(s.now()); until < d {
			d = until
		}
	}
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-s.wake:
	case <-t.C:
	}
}
