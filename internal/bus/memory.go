package bus

import (
	"sync"
	"time"
)

// Event is one recorded broadcast.
type Event struct {
	Room    string
	Name    string
	Payload any
}

// Memory records every broadcast in order. Tests use it in place of the
// websocket hub; it also serves single-process runs that want no transport.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Broadcast(room, event string, payload any) {
	m.mu.Lock()
	m.events = append(m.events, Event{Room: room, Name: event, Payload: payload})
	m.mu.Unlock()
}

// Events returns a copy of everything broadcast so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Named filters recorded events by name.
func (m *Memory) Named(event string) []Event {
	var out []Event
	for _, e := range m.Events() {
		if e.Name == event {
			out = append(out, e)
		}
	}
	return out
}

// InRoom filters recorded events by room.
func (m *Memory) InRoom(room string) []Event {
	var out []Event
	for _, e := range m.Events() {
		if e.Room == room {
			out = append(out, e)
		}
	}
	return out
}

// WaitFor polls until an event satisfies pred or the timeout lapses.
func (m *Memory) WaitFor(pred func(Event) bool, timeout time.Duration) (Event, bool) {
	deadline := time.Now().Add(timeout)
	for {
		for _, e := range m.Events() {
			if pred(e) {
				return e, true
			}
		}
		if time.Now().After(deadline) {
			return Event{}, false
		}
		time.Sleep(time.Millisecond)
	}
}

// Reset discards recorded events.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.events = nil
	m.mu.Unlock()
}
