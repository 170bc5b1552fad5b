package ble

import "sync"

// Emitter is a per-kind listener registry. Stack implementations embed it to
// satisfy AddListener and call Emit from their native callbacks.
type Emitter struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[EventKind]map[uint64]func(Event)
}

// AddListener registers handler for kind and returns its Subscription.
func (e *Emitter) AddListener(kind EventKind, handler func(Event)) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[EventKind]map[uint64]func(Event))
	}
	if e.listeners[kind] == nil {
		e.listeners[kind] = make(map[uint64]func(Event))
	}
	e.nextID++
	id := e.nextID
	e.listeners[kind][id] = handler
	return &subscription{emitter: e, kind: kind, id: id}
}

// Emit delivers ev to every listener of ev.Kind. Handlers run outside the
// lock so they may add or remove listeners.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	handlers := make([]func(Event), 0, len(e.listeners[ev.Kind]))
	for _, h := range e.listeners[ev.Kind] {
		handlers = append(handlers, h)
	}
	e.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// ListenerCount returns the number of listeners registered for kind.
func (e *Emitter) ListenerCount(kind EventKind) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[kind])
}

func (e *Emitter) remove(kind EventKind, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.listeners[kind], id)
}

type subscription struct {
	emitter *Emitter
	kind    EventKind
	id      uint64
	once    sync.Once
}

func (s *subscription) Remove() {
	s.once.Do(func() { s.emitter.remove(s.kind, s.id) })
}
