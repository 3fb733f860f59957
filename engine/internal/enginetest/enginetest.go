// Package enginetest has in-memory fakes of the engine's external
// collaborators for use in tests.
package enginetest

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hubastard/canopy/engine/core"
)

// Device is a scriptable core.GraphicsDevice.
type Device struct {
	mu sync.Mutex

	CommitErrs   []error // consumed one per CommitMainDevice call
	CheckErr     error
	RecreateErrs []error // consumed one per Recreate call
	OfferErr     error
	ReclaimErr   error

	Commits   int
	Checks    int
	Recreates int
	Releases  int
	Offers    int
	Reclaims  int

	callbacks map[int]func()
	nextCB    int
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (d *Device) CommitMainDevice() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Commits++
	return pop(&d.CommitErrs)
}

func (d *Device) CheckDeviceState() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Checks++
	return d.CheckErr
}

func (d *Device) RegisterDeviceRemovedNotification(cb func()) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.callbacks == nil {
		d.callbacks = map[int]func(){}
	}
	id := d.nextCB
	d.nextCB++
	d.callbacks[id] = cb
	return func() {
		d.mu.Lock()
		delete(d.callbacks, id)
		d.mu.Unlock()
	}
}

// Registered is the number of live removal callbacks.
func (d *Device) Registered() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.callbacks)
}

// Remove fires every registered removal callback on a new goroutine and
// waits for them to return.
func (d *Device) Remove() {
	d.mu.Lock()
	ids := make([]int, 0, len(d.callbacks))
	for id := range d.callbacks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	cbs := make([]func(), 0, len(ids))
	for _, id := range ids {
		cbs = append(cbs, d.callbacks[id])
	}
	d.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, cb := range cbs {
			cb()
		}
	}()
	wg.Wait()
}

func (d *Device) Recreate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Recreates++
	return pop(&d.RecreateErrs)
}

func (d *Device) ReleaseResources() {
	d.mu.Lock()
	d.Releases++
	d.mu.Unlock()
}

func (d *Device) OfferResources() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Offers++
	return d.OfferErr
}

func (d *Device) ReclaimResources() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Reclaims++
	return d.ReclaimErr
}

// CommitCount returns Commits under the lock.
func (d *Device) CommitCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Commits
}

// Root is a flat visual root with named properties.
type Root struct {
	Name  string
	dirty bool
	props map[string]float64
	delta []core.PropertyUpdate
}

// NewRoot returns a clean root.
func NewRoot(name string) *Root {
	return &Root{Name: name, props: map[string]float64{}}
}

func (r *Root) ID() string  { return r.Name }
func (r *Root) Dirty() bool { return r.dirty }

// SetDirty marks the root dirty.
func (r *Root) SetDirty() { r.dirty = true }

// Clean clears the dirty flag, as a successful walk would.
func (r *Root) Clean() { r.dirty = false }

// Set changes a property on visual and dirties the root.
func (r *Root) Set(visual, name string, v float64) {
	r.props[visual+"."+name] = v
	r.delta = append(r.delta, core.PropertyUpdate{Visual: visual, Name: name, Value: v})
	r.dirty = true
}

func (r *Root) CompositionDelta() []core.PropertyUpdate {
	d := r.delta
	r.delta = nil
	return d
}

func (r *Root) Invalidate() { r.dirty = true }

// Walker is a scriptable core.RenderWalker.
type Walker struct {
	// Errs maps root ids to an error returned (once) by RenderRoot.
	Errs map[string]error
	// LeaveDirty lists roots whose dirty flag survives the walk.
	LeaveDirty map[string]bool
	// OnRender runs inside RenderRoot before anything else.
	OnRender func(root core.Root)

	Walked []string
	Params []core.RenderParams
}

func (w *Walker) RenderRoot(root core.Root, _ core.GraphicsDevice, p core.RenderParams) error {
	w.Walked = append(w.Walked, root.ID())
	w.Params = append(w.Params, p)
	if w.OnRender != nil {
		w.OnRender(root)
	}
	if err, ok := w.Errs[root.ID()]; ok {
		delete(w.Errs, root.ID())
		return err
	}
	if w.LeaveDirty[root.ID()] {
		return nil
	}
	if c, ok := root.(interface{ Clean() }); ok {
		c.Clean()
	}
	return nil
}

// Layout is a scriptable core.LayoutEngine. Each UpdateLayout call
// consumes one pending pass.
type Layout struct {
	Pending int
	Err     error
	Calls   int
	W, H    float32
}

func (l *Layout) UpdateLayout(w, h float32) error {
	l.Calls++
	l.W, l.H = w, h
	if l.Err != nil {
		return l.Err
	}
	if l.Pending > 0 {
		l.Pending--
	}
	return nil
}

func (l *Layout) NeedsLayout() bool { return l.Pending > 0 }

// Timing is a scriptable core.TimingManager.
type Timing struct {
	Result     core.TickResult
	Err        error
	Ticks      int
	TimerTicks int
	Last       time.Time
}

func (t *Timing) Tick(now time.Time) (core.TickResult, error) {
	t.Ticks++
	t.Last = now
	return t.Result, t.Err
}

func (t *Timing) TickTimersOnly(now time.Time) error {
	t.TimerTicks++
	t.Last = now
	return nil
}

// Request is one RequestAdditionalFrame call.
type Request struct {
	Delay  time.Duration
	Reason string
}

// Scheduler records frame requests. Safe for concurrent use.
type Scheduler struct {
	mu       sync.Mutex
	requests []Request
	InTick   bool
}

func (s *Scheduler) RequestAdditionalFrame(delay time.Duration, reason string) {
	s.mu.Lock()
	s.requests = append(s.requests, Request{Delay: delay, Reason: reason})
	s.mu.Unlock()
}

func (s *Scheduler) IsInTick() bool { return s.InTick }

// Requests returns a copy of the recorded requests.
func (s *Scheduler) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Reset forgets recorded requests.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.requests = nil
	s.mu.Unlock()
}

// Reporter records reported application errors.
type Reporter struct {
	mu     sync.Mutex
	Steps  []string
	Errors []error
}

func (r *Reporter) ReportError(step string, err error) {
	r.mu.Lock()
	r.Steps = append(r.Steps, step)
	r.Errors = append(r.Errors, err)
	r.mu.Unlock()
}

// ErrApp is a generic application failure.
var ErrApp = errors.New("enginetest: application callout failed")
