package formio

import (
	"sync"

	"github.com/reoring/formio/rules"
)

// Event names.
const (
	EventChange = "change"
	EventPaused = "paused"
)

// PausedEventName returns the per-path paused event name, "paused:<path>".
func PausedEventName(path string) string { return EventPaused + ":" + path }

// ChangeEvent is the payload of "change". Errors holds the validation outcome
// of the changed path and is empty when it passes.
type ChangeEvent struct {
	Field    string
	Path     string
	Value    any
	OldValue any
	Errors   rules.Messages
}

// PausedEvent is the payload of "paused" and "paused:<path>". Its values are
// read when the timer fires.
type PausedEvent struct {
	Path    string
	Value   any
	Error   string
	Success string
}

// Handler receives an event payload.
type Handler func(payload any)

type subscription struct {
	id int
	h  Handler
}

// bus is a name-keyed publish/subscribe registry. Handlers run synchronously
// in subscription order, outside the bus lock.
type bus struct {
	mu     sync.Mutex
	subs   map[string][]subscription
	nextID int
}

func newBus() *bus { return &bus{subs: map[string][]subscription{}} }

func (b *bus) on(event string, h Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[event] = append(b.subs[event], subscription{id: id, h: h})
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[event]
		for i, s := range list {
			if s.id == id {
				b.subs[event] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

func (b *bus) emit(event string, payload any) int {
	b.mu.Lock()
	list := append([]subscription(nil), b.subs[event]...)
	b.mu.Unlock()
	for _, s := range list {
		s.h(payload)
	}
	return len(list)
}
