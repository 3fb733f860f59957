package compositor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hubastard/canopy/engine/logging"
)

// ErrRunning is returned by Start when the goroutine is already running.
var ErrRunning = errors.New("compositor: already running")

// Animation is an independent animation: it runs on the compositing
// goroutine and writes Property of Visual without UI-thread involvement.
type Animation struct {
	Visual   string
	Property string
	From, To float64
	Duration time.Duration
	Repeat   bool
}

func (a *Animation) sample(elapsed time.Duration) (value float64, finished bool) {
	if a.Duration <= 0 {
		return a.To, true
	}
	if elapsed >= a.Duration {
		if !a.Repeat {
			return a.To, true
		}
		elapsed %= a.Duration
	}
	t := float64(elapsed) / float64(a.Duration)
	return a.From + (a.To-a.From)*t, false
}

type running struct {
	anim    Animation
	elapsed time.Duration
}

// Compositor advances independent animations on its own goroutine. All of
// its animation state lives under the channel lock.
type Compositor struct {
	ch       *Channel
	interval time.Duration
	now      func() time.Time

	// guarded by ch.mu
	anims  []*running
	frozen bool
	last   time.Time

	changed atomic.Bool

	mu     sync.Mutex // start/stop
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a stopped compositor sampling into ch every interval.
func New(ch *Channel, interval time.Duration) *Compositor {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &Compositor{ch: ch, interval: interval, now: time.Now}
}

// Start launches the compositing goroutine.
func (c *Compositor) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return ErrRunning
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	c.ch.mu.Lock()
	c.last = c.now()
	c.ch.mu.Unlock()

	go c.loop(ctx, c.done)
	return nil
}

func (c *Compositor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Advance(c.now())
		}
	}
}

// Stop ends the goroutine and waits for it. Safe to call when stopped.
func (c *Compositor) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Advance moves every running animation to now and writes the sampled
// values into the retained tree. Frozen or disconnected compositors only
// move their clock reference.
func (c *Compositor) Advance(now time.Time) {
	c.ch.mu.Lock()
	defer c.ch.mu.Unlock()
	c.advanceLocked(now)
}

func (c *Compositor) advanceLocked(now time.Time) {
	dt := now.Sub(c.last)
	c.last = now
	if c.frozen || !c.ch.tree.connected || dt < 0 {
		return
	}
	kept := c.anims[:0]
	for _, r := range c.anims {
		r.elapsed += dt
		v, finished := r.anim.sample(r.elapsed)
		c.ch.tree.set(r.anim.Visual, r.anim.Property, v)
		if finished {
			c.changed.Store(true)
			continue
		}
		kept = append(kept, r)
	}
	for i := len(kept); i < len(c.anims); i++ {
		c.anims[i] = nil
	}
	c.anims = kept
}

// Play starts an independent animation.
func (c *Compositor) Play(a Animation) {
	c.ch.mu.Lock()
	c.anims = append(c.anims, &running{anim: a})
	c.ch.mu.Unlock()
	c.changed.Store(true)
}

// Freeze stops animation time. Elapsed time up to now is kept, and the
// frozen interval is not counted when the compositor is unfrozen.
func (c *Compositor) Freeze() {
	c.ch.mu.Lock()
	defer c.ch.mu.Unlock()
	if c.frozen {
		return
	}
	c.advanceLocked(c.now())
	c.frozen = true
	logging.For("compositor").Debug("animations frozen", "running", len(c.anims))
}

// Unfreeze resumes animation time from now.
func (c *Compositor) Unfreeze() {
	c.ch.mu.Lock()
	defer c.ch.mu.Unlock()
	if !c.frozen {
		return
	}
	c.frozen = false
	c.last = c.now()
}

// Frozen reports whether animation time is stopped.
func (c *Compositor) Frozen() bool {
	c.ch.mu.Lock()
	defer c.ch.mu.Unlock()
	return c.frozen
}

// Running is the number of independent animations still playing.
func (c *Compositor) Running() int {
	c.ch.mu.Lock()
	defer c.ch.mu.Unlock()
	return len(c.anims)
}

// Elapsed returns the elapsed time of each running animation of visual.
func (c *Compositor) Elapsed(visual string) []time.Duration {
	c.ch.mu.Lock()
	defer c.ch.mu.Unlock()
	var out []time.Duration
	for _, r := range c.anims {
		if r.anim.Visual == visual {
			out = append(out, r.elapsed)
		}
	}
	return out
}

// TakeChanged reports whether the set of independent animations changed
// since the last call.
func (c *Compositor) TakeChanged() bool { return c.changed.Swap(false) }
