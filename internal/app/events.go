package app

import (
	"sort"
	"sync"
)

// EventKind names a notification emitted by App and Interface.
type EventKind string

const (
	// EventCommand fires before every remote dispatch.
	EventCommand EventKind = "command"
	// EventConnect fires when the shared connection becomes active.
	EventConnect EventKind = "connect"
	// EventDisconnect fires when the shared connection has closed.
	EventDisconnect EventKind = "disconnect"
	// EventError carries failures nobody else was given a chance to handle.
	EventError EventKind = "error"
)

// Event is delivered to listeners registered with On.
type Event struct {
	Kind    EventKind
	Command string
	Args    any
	Err     error
}

// Listener receives events synchronously on the emitting goroutine.
type Listener func(Event)

type emitter struct {
	mu        sync.RWMutex
	next      int
	listeners map[EventKind]map[int]Listener
}

func newEmitter() *emitter {
	return &emitter{listeners: make(map[EventKind]map[int]Listener)}
}

// on registers fn and returns a function that removes it.
func (e *emitter) on(kind EventKind, fn Listener) func() {
	e.mu.Lock()
	id := e.next
	e.next++
	if e.listeners[kind] == nil {
		e.listeners[kind] = make(map[int]Listener)
	}
	e.listeners[kind][id] = fn
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.listeners[kind], id)
			e.mu.Unlock()
		})
	}
}

// emit calls every listener for ev.Kind in registration order and reports
// whether there was at least one.
func (e *emitter) emit(ev Event) bool {
	e.mu.RLock()
	ids := make([]int, 0, len(e.listeners[ev.Kind]))
	for id := range e.listeners[ev.Kind] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, e.listeners[ev.Kind][id])
	}
	e.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
	return len(fns) > 0
}
