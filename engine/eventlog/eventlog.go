// Package eventlog keeps the last few significant engine events so a hang
// or a blank window can be explained from a dump.
package eventlog

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Capacity is the number of entries kept.
const Capacity = 32

// Kind is the event type.
type Kind int

const (
	TestHook Kind = iota
	WindowShown
	WindowHidden
	RenderEnabled
	RenderDisabled
	LayoutCompletedNeeded
	StateReset
	DeviceLost
	HardwareResourcesReleased
	HardwareResourcesRebuilt
	Suspended
	Resumed
	LowMemory
)

var kindNames = [...]string{
	"TestHook", "WindowShown", "WindowHidden", "RenderEnabled", "RenderDisabled",
	"LayoutCompletedNeeded", "StateReset", "DeviceLost", "HardwareResourcesReleased",
	"HardwareResourcesRebuilt", "Suspended", "Resumed", "LowMemory",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Entry is one logged event.
type Entry struct {
	Frame  uint64    `msgpack:"frame"`
	Kind   Kind      `msgpack:"kind"`
	At     time.Time `msgpack:"at"`
	Detail string    `msgpack:"detail,omitempty"`
}

// Log is a fixed-size ring. Safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	entries [Capacity]Entry
	next    uint64
	now     func() time.Time
}

// New returns an empty log.
func New() *Log { return &Log{now: time.Now} }

// Add appends an event, overwriting the oldest once full.
func (l *Log) Add(frame uint64, kind Kind, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next%Capacity] = Entry{Frame: frame, Kind: kind, At: l.now(), Detail: detail}
	l.next++
}

// Len is the number of entries currently held.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.next > Capacity {
		return Capacity
	}
	return int(l.next)
}

// Snapshot returns the entries oldest first.
func (l *Log) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := uint64(0)
	if l.next > Capacity {
		start = l.next - Capacity
	}
	out := make([]Entry, 0, l.next-start)
	for i := start; i < l.next; i++ {
		out = append(out, l.entries[i%Capacity])
	}
	return out
}

// Last returns the newest entry.
func (l *Log) Last() (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.next == 0 {
		return Entry{}, false
	}
	return l.entries[(l.next-1)%Capacity], true
}

// Dump writes the snapshot to w as msgpack.
func (l *Log) Dump(w io.Writer) error {
	if err := msgpack.NewEncoder(w).Encode(l.Snapshot()); err != nil {
		return fmt.Errorf("eventlog: dump: %w", err)
	}
	return nil
}

// Read decodes a dump written by Dump.
func Read(r io.Reader) ([]Entry, error) {
	var out []Entry
	if err := msgpack.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("eventlog: read: %w", err)
	}
	return out, nil
}
