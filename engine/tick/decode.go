package tick

import (
	"sync"

	"github.com/hubastard/canopy/engine/signal"
)

// DecodeRequest is a deferred image decode or surface update queued by the
// render walk.
type DecodeRequest struct {
	Source        string
	Width, Height int
	Apply         func() error
}

// DecodeQueue holds deferred decode requests and the natural-size cache.
// The cache outlives device loss; pending requests do not.
type DecodeQueue struct {
	pending Queue[DecodeRequest]
	idle    *signal.Signal

	mu      sync.Mutex
	natural map[string][2]int
}

// NewDecodeQueue returns an empty queue reporting idleness on idle, which
// may be nil.
func NewDecodeQueue(idle *signal.Signal) *DecodeQueue {
	return &DecodeQueue{idle: idle, natural: map[string][2]int{}}
}

// Enqueue defers a request until after the render walk.
func (d *DecodeQueue) Enqueue(r DecodeRequest) {
	d.pending.Push(r)
	if d.idle != nil {
		d.idle.Reset()
	}
}

// Pending is the number of queued requests.
func (d *DecodeQueue) Pending() int { return d.pending.Len() }

// Flush applies the queued requests and records their natural sizes.
func (d *DecodeQueue) Flush() (int, error) {
	n, err := d.pending.Drain(func(r DecodeRequest) error {
		if r.Apply != nil {
			if err := r.Apply(); err != nil {
				return err
			}
		}
		if r.Width > 0 && r.Height > 0 {
			d.SetNaturalSize(r.Source, r.Width, r.Height)
		}
		return nil
	})
	d.updateIdle()
	return n, err
}

// ClearPending drops requests tied to released device resources. Natural
// sizes are kept.
func (d *DecodeQueue) ClearPending() int {
	n := d.pending.Clear()
	d.updateIdle()
	return n
}

func (d *DecodeQueue) updateIdle() {
	if d.idle != nil {
		d.idle.Store(d.pending.Len() == 0)
	}
}

// SetNaturalSize records the decoded size of src.
func (d *DecodeQueue) SetNaturalSize(src string, w, h int) {
	d.mu.Lock()
	d.natural[src] = [2]int{w, h}
	d.mu.Unlock()
}

// NaturalSize returns the known size of src.
func (d *DecodeQueue) NaturalSize(src string) (w, h int, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.natural[src]
	return s[0], s[1], ok
}
