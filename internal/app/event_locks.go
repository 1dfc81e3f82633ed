package app

import "sync"

// eventLocks serializes admission-sensitive work per event id.
type eventLocks struct {
	mu    sync.Mutex
	locks map[string]*eventLock
}

// eventLock is one reference-counted per-event mutex.
type eventLock struct {
	mu   sync.Mutex
	refs int
}

// newEventLocks constructs an empty lock table.
func newEventLocks() *eventLocks {
	return &eventLocks{locks: map[string]*eventLock{}}
}

// lock blocks until the event's mutex is held and returns its release func.
func (l *eventLocks) lock(eventID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[eventID]
	if !ok {
		entry = &eventLock{}
		l.locks[eventID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, eventID)
		}
		l.mu.Unlock()
	}
}
