//go:build profile

// Package profiler records frame step scopes into a ring buffer and dumps
// them as a speedscope evented profile. Without the "profile" build tag
// every call is a no-op.
package profiler

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Init must be called once with the ring capacity (#scope events).
func Init(capacity int) {
	if capacity <= 0 {
		capacity = 1 << 16
	}
	ring.init(capacity)
}

// Enabled reports whether the profiler was built in and initialised.
func Enabled() bool { return ring.ready.Load() }

// Start opens a scope and returns the func that closes it.
func Start(scope string) func() {
	if !ring.ready.Load() {
		return func() {}
	}
	id := intern(scope)
	start := time.Now().UnixNano()
	ring.push(event{at: start, scope: id, open: true})
	return func() {
		end := time.Now().UnixNano()
		if end < start {
			end = start
		}
		ring.push(event{at: end, scope: id})
	}
}

// Dump writes the recorded scopes to path in speedscope format.
func Dump(path string) error {
	evs := ring.snapshot()
	if len(evs) == 0 {
		return errors.New("profiler: no events to dump")
	}
	return writeSpeedscope(evs, path)
}

type event struct {
	at    int64
	scope int
	open  bool
}

type eventRing struct {
	ready atomic.Bool
	cap   uint64
	write atomic.Uint64
	evs   []event
}

var ring eventRing

func (r *eventRing) init(capacity int) {
	r.cap = uint64(capacity)
	r.evs = make([]event, r.cap)
	r.write.Store(0)
	r.ready.Store(true)
}

func (r *eventRing) push(e event) {
	i := r.write.Add(1) - 1
	r.evs[i%r.cap] = e
}

// snapshot keeps write order.
func (r *eventRing) snapshot() []event {
	n := r.write.Load()
	start := uint64(0)
	if n > r.cap {
		start = n - r.cap
	}
	out := make([]event, 0, n-start)
	for k := start; k < n; k++ {
		out = append(out, r.evs[k%r.cap])
	}
	return out
}

var (
	scopesMu sync.Mutex
	scopes   []string
	index    = map[string]int{}
)

func intern(name string) int {
	scopesMu.Lock()
	defer scopesMu.Unlock()
	if id, ok := index[name]; ok {
		return id
	}
	id := len(scopes)
	index[name] = id
	scopes = append(scopes, name)
	return id
}

type ssFile struct {
	Schema   string      `json:"$schema"`
	Shared   ssShared    `json:"shared"`
	Profiles []ssProfile `json:"profiles"`
	Exporter string      `json:"exporter,omitempty"`
	Name     string      `json:"name,omitempty"`
}

type ssShared struct {
	Frames []ssFrame `json:"frames"`
}

type ssFrame struct {
	Name string `json:"name"`
}

type ssProfile struct {
	Type       string    `json:"type"`
	Name       string    `json:"name"`
	Unit       string    `json:"unit"`
	StartValue int64     `json:"startValue"`
	EndValue   int64     `json:"endValue"`
	Events     []ssEvent `json:"events"`
}

type ssEvent struct {
	Type  string `json:"type"` // "O" or "C"
	At    int64  `json:"at"`   // µs since first event
	Frame int    `json:"frame"`
}

func writeSpeedscope(evs []event, path string) error {
	scopesMu.Lock()
	frames := make([]ssFrame, len(scopes))
	for i, name := range scopes {
		frames[i] = ssFrame{Name: name}
	}
	scopesMu.Unlock()

	base := evs[0].at
	out := make([]ssEvent, 0, len(evs)+16)
	stack := make([]int, 0, 64)
	last := int64(0)

	for _, e := range evs {
		at := (e.at - base) / 1000
		if at < last {
			at = last
		}
		if e.open {
			out = append(out, ssEvent{Type: "O", At: at, Frame: e.scope})
			stack = append(stack, e.scope)
		} else {
			// A close whose open fell off the ring.
			if len(stack) == 0 || stack[len(stack)-1] != e.scope {
				continue
			}
			stack = stack[:len(stack)-1]
			out = append(out, ssEvent{Type: "C", At: at, Frame: e.scope})
		}
		last = at
	}
	// Balance scopes still open when the dump was taken.
	for i := len(stack) - 1; i >= 0; i-- {
		out = append(out, ssEvent{Type: "C", At: last, Frame: stack[i]})
	}

	doc := ssFile{
		Schema: "https://www.speedscope.app/file-format-schema.json",
		Shared: ssShared{Frames: frames},
		Profiles: []ssProfile{{
			Type:     "evented",
			Name:     "frame engine",
			Unit:     "microseconds",
			EndValue: last,
			Events:   out,
		}},
		Exporter: "canopy-profiler",
		Name:     "canopy frames",
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("profiler: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&doc); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("profiler: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
