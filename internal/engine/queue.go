package engine

import "sync"

// triggerQueue is an unbounded, thread-safe FIFO of pending triggers.
//
// Handlers may enqueue follow-up triggers while one is being dispatched, so
// Enqueue never blocks. A buffered signal channel of size 1 lets the Run loop
// wait with a select on its context.
type triggerQueue struct {
	mu       sync.Mutex
	triggers []Trigger
	closed   bool
	signal   chan struct{}
}

func newTriggerQueue() *triggerQueue {
	return &triggerQueue{
		triggers: make([]Trigger, 0, 16),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue appends t. Returns false once the queue is closed.
func (q *triggerQueue) Enqueue(t Trigger) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.triggers = append(q.triggers, t)

	// Non-blocking; the buffer coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the oldest trigger without blocking.
func (q *triggerQueue) TryDequeue() (Trigger, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.triggers) == 0 {
		return Trigger{}, false
	}
	t := q.triggers[0]
	q.triggers[0] = Trigger{}
	if len(q.triggers) == 1 {
		q.triggers = q.triggers[:0]
	} else {
		q.triggers = q.triggers[1:]
	}
	return t, true
}

// Wait returns the availability signal. It is closed when the queue closes.
func (q *triggerQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending triggers.
func (q *triggerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.triggers)
}

// Drained reports whether the queue is closed and empty.
func (q *triggerQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.triggers) == 0
}

// Close stops further enqueues and wakes waiters.
func (q *triggerQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
