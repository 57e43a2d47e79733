package event

import "sync"

// Log is an ordered record of received events, owned by the application
// observer rather than the Consumer.
type Log struct {
	mu     sync.Mutex
	events []Event
}

// Record appends ev. Its signature matches Handler so a Log can be attached
// with Emitter.SubscribeAll(log.Record).
func (l *Log) Record(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

// Events returns a copy of the recorded events, oldest first.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

// Pop removes and returns the oldest event.
func (l *Log) Pop() (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return nil, false
	}
	ev := l.events[0]
	l.events = l.events[1:]
	return ev, true
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Clear drops all recorded events.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}
