package formio

import (
	"sort"
	"sync"
	"time"
)

// DefaultDebounce is the quiet interval after which a path counts as paused.
const DefaultDebounce = 2000 * time.Millisecond

// Timer is a pending Clock callback.
type Timer interface {
	Stop() bool
}

// Clock schedules delayed callbacks. The real clock uses time.AfterFunc.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemClock returns the Clock backed by the time package.
func SystemClock() Clock { return realClock{} }

type debounceTimer struct {
	t   Timer
	gen uint64
}

// DebounceRegistry keeps one timer per concrete path. Re-arming a path
// cancels exactly its own previous timer.
type DebounceRegistry struct {
	mu       sync.Mutex
	clock    Clock
	interval time.Duration
	fire     func(path string)
	timers   map[string]debounceTimer
	gen      uint64
}

// NewDebounceRegistry returns a registry calling fire once a path has been
// quiet for interval. A nil clock means the system clock; a non-positive
// interval means DefaultDebounce.
func NewDebounceRegistry(interval time.Duration, clock Clock, fire func(path string)) *DebounceRegistry {
	if clock == nil {
		clock = realClock{}
	}
	if interval <= 0 {
		interval = DefaultDebounce
	}
	return &DebounceRegistry{clock: clock, interval: interval, fire: fire, timers: map[string]debounceTimer{}}
}

// Interval returns the configured quiet interval.
func (d *DebounceRegistry) Interval() time.Duration { return d.interval }

// ResetInputTimeout cancels the pending timer of path and arms a new one.
func (d *DebounceRegistry) ResetInputTimeout(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.timers[path]; ok {
		old.t.Stop()
	}
	d.gen++
	gen := d.gen
	t := d.clock.AfterFunc(d.interval, func() { d.expire(path, gen) })
	d.timers[path] = debounceTimer{t: t, gen: gen}
}

// expire ignores callbacks of timers that were re-armed or stopped after
// they had already started running.
func (d *DebounceRegistry) expire(path string, gen uint64) {
	d.mu.Lock()
	cur, ok := d.timers[path]
	if !ok || cur.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.timers, path)
	d.mu.Unlock()
	if d.fire != nil {
		d.fire(path)
	}
}

// Pending returns the paths with an armed timer, sorted.
func (d *DebounceRegistry) Pending() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.timers))
	for p := range d.timers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Stop cancels every pending timer.
func (d *DebounceRegistry) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for p, t := range d.timers {
		t.t.Stop()
		delete(d.timers, p)
	}
}
