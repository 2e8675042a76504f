// Package observe provides the change-notification substrate the form watcher
// is built on: attach an accessor, get called back when the value it reads
// changes by deep equality.
package observe

import (
	"io"
	"log/slog"

	"github.com/reoring/formio/internal/tree"
)

// Accessor reads the current value of one observed location.
type Accessor func() any

// ChangeFunc receives the new and previous value of an observation.
type ChangeFunc func(value, oldValue any)

// Detach permanently releases an observation. Calling it more than once is
// harmless.
type Detach func()

// Observer attaches deep-equality observations. key identifies the observed
// location (a concrete path for the form watcher).
type Observer interface {
	Observe(key string, get Accessor, onChange ChangeFunc) Detach
}

// Flusher is an Observer whose callbacks are dispatched by Flush.
type Flusher interface {
	Observer
	Flush() int
}

// DefaultMaxPasses bounds the number of diffing passes in one Flush.
const DefaultMaxPasses = 16

type observation struct {
	key      string
	get      Accessor
	fn       ChangeFunc
	last     any
	detached bool
}

// Reactor is an Observer driven by explicit Flush calls. Each flush diffs
// every attached accessor against a deep copy of the value it last reported.
// A Reactor is not safe for concurrent use; its owner serializes access.
type Reactor struct {
	obs       []*observation
	flushing  bool
	baseline  map[string]any
	maxPasses int
	log       *slog.Logger
}

// Option configures a Reactor.
type Option func(*Reactor)

// WithMaxPasses overrides DefaultMaxPasses.
func WithMaxPasses(n int) Option {
	return func(r *Reactor) {
		if n > 0 {
			r.maxPasses = n
		}
	}
}

// WithLogger sets the logger used when a flush gives up.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reactor) {
		if l != nil {
			r.log = l
		}
	}
}

// NewReactor returns an empty Reactor.
func NewReactor(opts ...Option) *Reactor {
	r := &Reactor{
		maxPasses: DefaultMaxPasses,
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Observe implements Observer. Outside a flush the baseline is the current
// value. During a flush, a key that already reported in this flush starts
// from the value it had before the flush, so a watcher rebuilt in the middle
// of a flush still sees changes made to its location.
func (r *Reactor) Observe(key string, get Accessor, onChange ChangeFunc) Detach {
	o := &observation{key: key, get: get, fn: onChange}
	if base, ok := r.baseline[key]; ok && r.flushing {
		o.last = base
	} else {
		o.last = tree.Clone(get())
	}
	r.obs = append(r.obs, o)
	return func() {
		if o.detached {
			return
		}
		o.detached = true
		r.remove(o)
	}
}

func (r *Reactor) remove(o *observation) {
	for i, x := range r.obs {
		if x == o {
			r.obs = append(r.obs[:i], r.obs[i+1:]...)
			return
		}
	}
}

// Len returns the number of attached observations.
func (r *Reactor) Len() int { return len(r.obs) }

type pending struct {
	o          *observation
	value, old any
}

// Flush dispatches every pending change and returns the number of callbacks
// invoked. Callbacks may attach and detach observations; detached ones are
// skipped. Passes repeat until nothing changes or the pass limit is reached.
func (r *Reactor) Flush() int {
	if r.flushing {
		return 0
	}
	r.flushing = true
	r.baseline = map[string]any{}
	defer func() {
		r.flushing = false
		r.baseline = nil
	}()

	fired := 0
	for pass := 0; pass < r.maxPasses; pass++ {
		var changed []pending
		for _, o := range r.obs {
			if _, seen := r.baseline[o.key]; !seen {
				r.baseline[o.key] = o.last
			}
			v := o.get()
			if !tree.Equal(v, o.last) {
				changed = append(changed, pending{o: o, value: v, old: o.last})
			}
		}
		if len(changed) == 0 {
			return fired
		}
		for _, c := range changed {
			if c.o.detached {
				continue
			}
			c.o.last = tree.Clone(c.value)
			r.baseline[c.o.key] = c.o.last
			c.o.fn(c.value, c.old)
			fired++
		}
	}
	r.log.Warn("flush stopped before settling", "passes", r.maxPasses, "fired", fired)
	return fired
}
