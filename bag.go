package formio

import (
	"fmt"
	"strings"
	"sync"

	"github.com/reoring/formio/internal/tree"
	"github.com/reoring/formio/rules"
)

// MessageBag stores per-path message lists. Record, Replace and ClearAll
// notify update subscribers; clearing a single path does not.
type MessageBag struct {
	mu     sync.Mutex
	label  string
	msgs   rules.Messages
	subs   map[int]func()
	nextID int
}

// NewMessageBag returns a bag seeded with initial, which accepts the same
// value shapes as Record.
func NewMessageBag(label string, initial map[string]any) *MessageBag {
	b := &MessageBag{label: label, msgs: rules.Messages{}, subs: map[int]func(){}}
	b.merge(initial)
	return b
}

// Label returns the prefix applied to messages returned by Get.
func (b *MessageBag) Label() string { return b.label }

// Has reports whether path holds a message.
func (b *MessageBag) Has(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.msgs[path]
	return ok
}

// Any reports whether the bag holds any message, or, when fields are given,
// whether any of those paths holds one.
func (b *MessageBag) Any(fields ...string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(fields) == 0 {
		return len(b.msgs) > 0
	}
	for _, f := range fields {
		if _, ok := b.msgs[f]; ok {
			return true
		}
	}
	return false
}

// Get returns the first message for path, prefixed with the label unless the
// message already carries a colon-delimited qualifier. Missing paths yield "".
func (b *MessageBag) Get(path string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.first(path)
}

// GetAt is Get with every "*" segment of path replaced by index.
func (b *MessageBag) GetAt(path string, index int) string {
	return b.Get(tree.Substitute(path, index))
}

func (b *MessageBag) first(path string) string {
	list := b.msgs[path]
	if len(list) == 0 {
		return ""
	}
	msg := list[0]
	if b.label == "" || strings.Contains(msg, ":") {
		return msg
	}
	return b.label + ": " + msg
}

// All returns a copy of every message stored for path.
func (b *MessageBag) All(path string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.msgs[path]...)
}

// Messages returns a deep copy of the bag's content.
func (b *MessageBag) Messages() rules.Messages {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.msgs.Clone()
}

// Record merges messages into the bag, leaving untouched paths alone. Values
// may be a string, []string or []any; an empty list removes the path.
func (b *MessageBag) Record(messages map[string]any) {
	b.merge(messages)
	b.notify()
}

// Replace overwrites the whole content of the bag.
func (b *MessageBag) Replace(messages map[string]any) {
	b.mu.Lock()
	b.msgs = rules.Messages{}
	b.mu.Unlock()
	b.merge(messages)
	b.notify()
}

// Clear removes the messages of one path without notifying subscribers.
func (b *MessageBag) Clear(path string) {
	b.mu.Lock()
	delete(b.msgs, path)
	b.mu.Unlock()
}

// ClearAll empties the bag.
func (b *MessageBag) ClearAll() {
	b.mu.Lock()
	b.msgs = rules.Messages{}
	b.mu.Unlock()
	b.notify()
}

// OnUpdate subscribes fn to update notifications and returns a function that
// removes the subscription.
func (b *MessageBag) OnUpdate(fn func()) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *MessageBag) notify() {
	b.mu.Lock()
	subs := make([]func(), 0, len(b.subs))
	for i := 0; i < b.nextID; i++ {
		if fn, ok := b.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	b.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

func (b *MessageBag) merge(messages map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for path, v := range messages {
		list := coerceMessages(v)
		if len(list) == 0 {
			delete(b.msgs, path)
			continue
		}
		b.msgs[path] = list
	}
}

// setQuiet stores validation output for one change without notifying; the
// orchestrator schedules the notification itself.
func (b *MessageBag) setQuiet(m rules.Messages, clear []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range clear {
		delete(b.msgs, p)
	}
	for p, list := range m {
		if len(list) > 0 {
			b.msgs[p] = append([]string(nil), list...)
		}
	}
}

func (b *MessageBag) replaceQuiet(m rules.Messages) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = m.Clone()
	if b.msgs == nil {
		b.msgs = rules.Messages{}
	}
}

func (b *MessageBag) paths() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.msgs.Paths()
}

func coerceMessages(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			out = append(out, fmt.Sprint(x))
		}
		return out
	default:
		return []string{fmt.Sprint(t)}
	}
}
