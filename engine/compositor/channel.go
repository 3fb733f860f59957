// Package compositor holds the retained composition tree shared with the
// compositing goroutine, and the single per-frame hand-off into it.
package compositor

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/hubastard/canopy/engine/core"
	"github.com/hubastard/canopy/engine/logging"
)

// ErrDisconnected is returned by Commit while the compositor connection is
// torn down.
var ErrDisconnected = errors.New("compositor: disconnected")

// Properties are the composition properties of one visual.
type Properties map[string]float64

// View is read access to the retained tree. Only valid inside Channel.Read.
type View struct{ t *tree }

// Get returns a property value.
func (v View) Get(visual, name string) (float64, bool) {
	p, ok := v.t.visuals[visual]
	if !ok {
		return 0, false
	}
	val, ok := p[name]
	return val, ok
}

// Visuals is the number of visuals in the tree.
func (v View) Visuals() int { return len(v.t.visuals) }

// Version increments on every commit.
func (v View) Version() uint64 { return v.t.version }

type tree struct {
	visuals   map[string]Properties
	version   uint64
	connected bool
}

func (t *tree) set(visual, name string, value float64) {
	p, ok := t.visuals[visual]
	if !ok {
		p = Properties{}
		t.visuals[visual] = p
	}
	p[name] = value
}

// Channel is the lock-protected hand-off between the UI goroutine and the
// compositing goroutine. The lock is held only while the retained tree is
// touched, never across a device commit.
type Channel struct {
	mu     sync.Mutex
	tree   tree
	device core.GraphicsDevice
	log    *slog.Logger
}

// NewChannel returns a connected channel committing to device.
func NewChannel(device core.GraphicsDevice) *Channel {
	return &Channel{
		tree:   tree{visuals: map[string]Properties{}, connected: true},
		device: device,
		log:    logging.For("compositor"),
	}
}

// Commit pushes the pending composition deltas of roots into the retained
// tree and then commits the device.
//
// The deltas are gathered before the lock and applied in one critical
// section, so the compositing goroutine sees all of them or none. The device
// commit runs after the lock is released; its error is returned as-is for
// the caller to classify. Returning does not mean the frame is on screen.
func (c *Channel) Commit(roots ...core.Root) error {
	var deltas [][]core.PropertyUpdate
	n := 0
	for _, r := range roots {
		d := r.CompositionDelta()
		n += len(d)
		deltas = append(deltas, d)
	}

	c.mu.Lock()
	if !c.tree.connected {
		c.mu.Unlock()
		return ErrDisconnected
	}
	for _, d := range deltas {
		for _, u := range d {
			c.tree.set(u.Visual, u.Name, u.Value)
		}
	}
	c.tree.version++
	c.mu.Unlock()

	c.log.Debug("commit", "roots", len(roots), "updates", n)
	return c.device.CommitMainDevice()
}

// Read runs fn with the lock held.
func (c *Channel) Read(fn func(View)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(View{t: &c.tree})
}

// Connected reports whether the compositor connection is up.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.connected
}

// Disconnect tears down the compositor connection and drops the retained
// tree. Commits fail with ErrDisconnected until Reconnect.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.tree.connected = false
	c.tree.visuals = map[string]Properties{}
	c.mu.Unlock()
	c.log.Info("disconnected")
}

// Reconnect brings the connection back with an empty tree. Roots must be
// invalidated so the next commit carries their full state.
func (c *Channel) Reconnect() {
	c.mu.Lock()
	c.tree.connected = true
	c.mu.Unlock()
	c.log.Info("reconnected")
}
