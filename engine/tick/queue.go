package tick

import "sync"

// Work is a unit of UI-thread work marshaled through a queue.
type Work func() error

// Queue is an ordered work queue. Push is safe from any goroutine; Drain
// and Clear belong to the owning goroutine.
type Queue[T any] struct {
	mu    sync.Mutex
	items []entry[T]
	seq   uint64
}

type entry[T any] struct {
	seq uint64
	v   T
}

// Push appends v.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.seq++
	q.items = append(q.items, entry[T]{seq: q.seq, v: v})
	q.mu.Unlock()
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear drops everything and returns how many items were dropped.
func (q *Queue[T]) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	clear(q.items)
	q.items = q.items[:0]
	return n
}

// Drain runs fn on the items queued when Drain was called, in order. An
// item is removed only once fn returned nil for it; on error it stays at
// the head and draining stops, so the next drain retries it. Items pushed
// while draining wait for the next call. fn may clear or drain the queue
// itself; an item that is no longer at the head afterwards is not removed
// twice.
func (q *Queue[T]) Drain(fn func(T) error) (int, error) {
	q.mu.Lock()
	limit := q.seq
	q.mu.Unlock()

	done := 0
	for {
		q.mu.Lock()
		if len(q.items) == 0 || q.items[0].seq > limit {
			q.mu.Unlock()
			return done, nil
		}
		head := q.items[0]
		q.mu.Unlock()

		if err := fn(head.v); err != nil {
			return done, err
		}
		done++

		q.mu.Lock()
		if len(q.items) > 0 && q.items[0].seq == head.seq {
			q.items[0] = entry[T]{}
			q.items = q.items[1:]
		}
		q.mu.Unlock()
	}
}

// RunWork is the Drain callback for Work queues.
func RunWork(w Work) error { return w() }
