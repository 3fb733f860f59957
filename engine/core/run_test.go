package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubastard/canopy/engine/core"
	"github.com/hubastard/canopy/engine/lifecycle"
)

// scriptWindow emits one batch of events per poll and asks to close once
// the script is exhausted.
type scriptWindow struct {
	script [][]core.Event
	polls  int
	cb     func(core.Event)
}

func (w *scriptWindow) PollEvents() {
	time.Sleep(2 * time.Millisecond)
	if w.polls < len(w.script) {
		for _, ev := range w.script[w.polls] {
			w.cb(ev)
		}
	}
	w.polls++
}

func (w *scriptWindow) SwapBuffers()                         {}
func (w *scriptWindow) ShouldClose() bool                    { return w.polls > len(w.script) }
func (w *scriptWindow) FramebufferSize() (int, int)          { return 320, 200 }
func (w *scriptWindow) SetTitle(string)                      {}
func (w *scriptWindow) SetEventCallback(cb func(core.Event)) { w.cb = cb }

type fakeEngine struct {
	mu       sync.Mutex
	frames   int
	frameErr error
	suspends []lifecycle.SuspendReason
	offers   []bool
	resumes  int
	lowMem   int
	visible  []bool
	sizes    [][2]int
	pointer  [][2]float64
}

func (e *fakeEngine) RunFrame(bool) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frames++
	return true, e.frameErr
}

func (e *fakeEngine) OnSuspend(r lifecycle.SuspendReason, allowOffer bool) error {
	e.suspends = append(e.suspends, r)
	e.offers = append(e.offers, allowOffer)
	return nil
}

func (e *fakeEngine) OnResume() error           { e.resumes++; return nil }
func (e *fakeEngine) OnLowMemory()              { e.lowMem++ }
func (e *fakeEngine) SetWindowVisible(v bool)   { e.visible = append(e.visible, v) }
func (e *fakeEngine) Resize(w, h int)           { e.sizes = append(e.sizes, [2]int{w, h}) }
func (e *fakeEngine) PointerMoved(x, y float64) { e.pointer = append(e.pointer, [2]float64{x, y}) }

func testConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.Engine.VisibilityTimeout = 0
	return cfg
}

func TestRunDispatchesEvents(t *testing.T) {
	win := &scriptWindow{script: [][]core.Event{
		{core.EventResize{W: 100, H: 50}, core.EventResize{W: 0, H: 10}},
		{core.EventMouseMove{X: 1, Y: 2}},
		{core.EventSuspend{}},
		{core.EventLowMemory{}},
		{core.EventResume{}},
		{core.EventVisibility{Visible: false}, core.EventVisibility{Visible: true}},
	}}
	eng := &fakeEngine{}

	err := core.Run(context.Background(), eng, core.NewScheduler(), win, testConfig())
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{320, 200}, {100, 50}}, eng.sizes)
	assert.Equal(t, [][2]float64{{1, 2}}, eng.pointer)
	assert.Equal(t, []lifecycle.SuspendReason{lifecycle.PlatformSuspend}, eng.suspends)
	assert.Equal(t, []bool{true}, eng.offers)
	assert.Equal(t, 1, eng.lowMem)
	assert.Equal(t, 1, eng.resumes)
	assert.Equal(t, []bool{false, true}, eng.visible)
	assert.GreaterOrEqual(t, eng.frames, 2)
}

func TestRunStopsOnCloseRequest(t *testing.T) {
	win := &scriptWindow{script: [][]core.Event{
		{core.EventCloseRequested{}},
		{}, {}, {}, {},
	}}
	require.NoError(t, core.Run(context.Background(), &fakeEngine{}, core.NewScheduler(), win, testConfig()))
	assert.Equal(t, 1, win.polls)
}

func TestRunReturnsFrameError(t *testing.T) {
	boom := errors.New("fatal device error")
	win := &scriptWindow{script: make([][]core.Event, 10)}
	eng := &fakeEngine{frameErr: boom}

	err := core.Run(context.Background(), eng, core.NewScheduler(), win, testConfig())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, eng.frames)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	win := &scriptWindow{script: make([][]core.Event, 10)}
	eng := &fakeEngine{}

	require.NoError(t, core.Run(ctx, eng, core.NewScheduler(), win, testConfig()))
	assert.Zero(t, eng.frames)
}

func TestRunSuspendsAfterVisibilityTimeout(t *testing.T) {
	script := [][]core.Event{{core.EventVisibility{Visible: false}}}
	for i := 0; i < 5; i++ {
		script = append(script, nil)
	}
	script = append(script, []core.Event{core.EventVisibility{Visible: true}})
	win := &scriptWindow{script: script}
	eng := &fakeEngine{}

	cfg := testConfig()
	cfg.Engine.VisibilityTimeout = time.Millisecond
	cfg.Engine.AllowOfferResources = false
	require.NoError(t, core.Run(context.Background(), eng, core.NewScheduler(), win, cfg))

	assert.Equal(t, []lifecycle.SuspendReason{lifecycle.VisibilityTimeout}, eng.suspends)
	assert.Equal(t, []bool{false}, eng.offers)
	assert.Equal(t, 1, eng.resumes)
}
