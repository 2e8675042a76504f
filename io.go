package formio

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	gojson "github.com/goccy/go-json"

	"github.com/reoring/formio/internal/tree"
	"github.com/reoring/formio/observe"
	"github.com/reoring/formio/rules"
)

// Io owns a form tree, validates each observed change against its rule set
// and keeps the error/success bags and the feedback tree current.
//
// All operations are serialized by one mutex. Events are queued while the
// mutex is held and delivered in order right after it is released, so
// handlers may call back into Io.
type Io struct {
	mu       sync.Mutex
	form     map[string]any
	ruleSet  *rules.RuleSet
	engine   *rules.Validator
	errors   *MessageBag
	success  *MessageBag
	obs      observe.Flusher
	watcher  *PathWatcher
	debounce *DebounceRegistry
	feedback map[string]any
	bus      *bus
	queue    []func()
	unsubs   []func()
	opts     options
	log      *slog.Logger
	closed   bool

	// paths reported by the last custom test run
	customPaths map[string]struct{}
}

// New builds an Io from cfg. Rule-map configuration errors (unknown rules,
// unusable arguments) fail construction.
func New(cfg Config, opts ...Option) (*Io, error) {
	o := defaultOptions()
	for _, fn := range cfg.Options() {
		fn(&o)
	}
	for _, fn := range opts {
		fn(&o)
	}

	engine := o.validator
	if engine == nil {
		engine = rules.New(rules.WithTranslator(o.translator), rules.WithLogger(o.logger))
	}
	rm := cfg.Validation
	if rm == nil {
		rm = rules.NewRuleMap()
	}
	rs, err := engine.Compile(rm)
	if err != nil {
		return nil, fmt.Errorf("formio: %w", err)
	}

	form := cfg.Form
	if form == nil {
		form = map[string]any{}
	}
	obs := o.observer
	if obs == nil {
		obs = observe.NewReactor(observe.WithLogger(o.logger))
	}

	f := &Io{
		form:    form,
		ruleSet: rs,
		engine:  engine,
		errors:  NewMessageBag(o.errorLabel, cfg.Errors),
		success: NewMessageBag(o.successLabel, cfg.Success),
		obs:     obs,
		bus:     newBus(),
		opts:    o,
		log:     o.logger,
	}
	f.watcher = NewPathWatcher(obs, f.handleChange)
	f.debounce = NewDebounceRegistry(o.debounce, o.clock, f.paused)
	f.unsubs = append(f.unsubs, f.errors.OnUpdate(f.bagUpdated), f.success.OnUpdate(f.bagUpdated))

	f.mu.Lock()
	f.rewatchLocked()
	f.mu.Unlock()
	f.log.Debug("form ready", "rules", rs.Len(), "watched", f.watcher.Len())
	return f, nil
}

func (f *Io) unlockAndDeliver() {
	q := f.queue
	f.queue = nil
	f.mu.Unlock()
	for _, fn := range q {
		fn()
	}
}

// rewatchLocked tears the watch set down, attaches it again against the
// current tree and rebuilds the feedback tree.
func (f *Io) rewatchLocked() {
	f.watcher.StopWatching()
	f.watcher.StartWatching(f.form)
	f.feedback = ProjectFeedback(f.ruleSet.Keys(), f.form, f.errors, f.success)
	f.opts.metrics.observeRebuild(1, f.watcher.Len())
}

func (f *Io) flushLocked() int {
	if f.closed {
		return 0
	}
	fired := f.obs.Flush()
	if fired > 0 {
		f.opts.metrics.observeRebuild(fired, f.watcher.Len())
	}
	// Appending or removing a record changes no existing leaf, so it has to
	// be picked up here.
	if !equalPaths(f.watcher.Paths(), LeafPaths(f.form)) {
		f.log.Debug("form shape changed", "watched", f.watcher.Len())
		f.rewatchLocked()
	}
	return fired
}

func equalPaths(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// handleChange runs with f.mu held, from inside the observer's Flush.
func (f *Io) handleChange(c Change) {
	msgs := rules.Messages{}
	scoped := f.ruleSet.Scoped(tree.ToWildcard(c.Path))
	if scoped.Len() > 0 {
		if m, ok := rules.AsMessages(f.engine.Validate(f.form, scoped, rules.Scope(c.Path))); ok {
			msgs = m
		}
	}
	custom, gone := f.customLocked()
	msgs.Merge(custom)

	var stale []string
	for _, p := range f.errors.paths() {
		if _, failing := msgs[p]; failing {
			continue
		}
		if p == c.Path || strings.HasPrefix(p, c.Path+".") {
			stale = append(stale, p)
			continue
		}
		if _, ok := gone[p]; ok {
			stale = append(stale, p)
		}
	}
	f.errors.setQuiet(msgs, stale)
	if len(msgs) > 0 || len(stale) > 0 {
		f.queue = append(f.queue, f.errors.notify)
	}

	f.feedback = ProjectFeedback(f.ruleSet.Keys(), f.form, f.errors, f.success)

	ev := ChangeEvent{
		Field:    c.Field,
		Path:     c.Path,
		Value:    tree.Clone(c.Value),
		OldValue: tree.Clone(c.OldValue),
		Errors:   msgs.Clone(),
	}
	f.queue = append(f.queue, func() { f.bus.emit(EventChange, ev) })
	f.debounce.ResetInputTimeout(c.Path)
	f.opts.metrics.observeChange(msgs.Paths())
	f.log.Debug("field changed", "path", c.Path, "failing", len(msgs))
}

// customLocked runs the custom test, if any, and returns its messages along
// with the paths it reported on its previous run but no longer does.
func (f *Io) customLocked() (rules.Messages, map[string]struct{}) {
	if f.opts.custom == nil {
		return nil, nil
	}
	out := f.opts.custom(f.form)
	gone := map[string]struct{}{}
	for p := range f.customPaths {
		if len(out[p]) == 0 {
			gone[p] = struct{}{}
		}
	}
	f.customPaths = make(map[string]struct{}, len(out))
	for p, list := range out {
		if len(list) > 0 {
			f.customPaths[p] = struct{}{}
		}
	}
	return out, gone
}

// paused runs on the debounce timer.
func (f *Io) paused(path string) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	ev := PausedEvent{
		Path:    path,
		Value:   tree.Clone(tree.Value(f.form, path)),
		Error:   f.errors.Get(path),
		Success: f.success.Get(path),
	}
	f.queue = append(f.queue, func() {
		f.bus.emit(EventPaused, ev)
		f.bus.emit(PausedEventName(path), ev)
	})
	f.opts.metrics.observePaused()
	f.log.Debug("field paused", "path", path)
	f.unlockAndDeliver()
}

func (f *Io) bagUpdated() {
	f.mu.Lock()
	if !f.closed {
		f.feedback = ProjectFeedback(f.ruleSet.Keys(), f.form, f.errors, f.success)
	}
	f.unlockAndDeliver()
}

// Set assigns value at a concrete path and processes the resulting changes.
// An index equal to an array's length appends. A value written to a key or
// index that did not exist changes no watched leaf, so it only starts being
// watched; it is validated on its next change or by ValidateAll.
func (f *Io) Set(path string, value any) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if err := tree.Set(f.form, path, value); err != nil {
		f.mu.Unlock()
		return err
	}
	f.flushLocked()
	f.unlockAndDeliver()
	return nil
}

// Delete removes the key or array element at path and processes the
// resulting changes.
func (f *Io) Delete(path string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if err := tree.Delete(f.form, path); err != nil {
		f.mu.Unlock()
		return err
	}
	f.flushLocked()
	f.unlockAndDeliver()
	return nil
}

// Flush processes changes made directly to the map returned by Tree and
// returns the number of changed leaves.
func (f *Io) Flush() int {
	f.mu.Lock()
	n := f.flushLocked()
	f.unlockAndDeliver()
	return n
}

// Update merges partial into the form in place, then rebuilds the watch set
// and the feedback tree. Merging itself emits no change events.
func (f *Io) Update(partial map[string]any) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.flushLocked()
	if cp, ok := tree.Clone(partial).(map[string]any); ok {
		tree.Merge(f.form, cp)
	}
	f.rewatchLocked()
	f.unlockAndDeliver()
	return nil
}

// Filled reports whether every named field holds a truthy value.
func (f *Io) Filled(fields ...string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, name := range fields {
		if !tree.Truthy(tree.Value(f.form, name)) {
			return false
		}
	}
	return true
}

// Get returns the value at a concrete path, or nil.
func (f *Io) Get(path string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return tree.Value(f.form, path)
}

// Tree returns the live form tree. Direct mutations are noticed on the next
// Flush.
func (f *Io) Tree() map[string]any { return f.form }

// Errors returns the error bag.
func (f *Io) Errors() *MessageBag { return f.errors }

// Success returns the success bag.
func (f *Io) Success() *MessageBag { return f.success }

// Feedback returns the current feedback tree. It is replaced, never patched,
// so a returned tree is not modified afterwards.
func (f *Io) Feedback() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feedback
}

// FeedbackJSON renders the current feedback tree as JSON.
func (f *Io) FeedbackJSON() ([]byte, error) {
	return gojson.Marshal(f.Feedback())
}

// WatchedPaths returns the leaf paths currently observed.
func (f *Io) WatchedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watcher.Paths()
}

// ValidateAll validates the whole form, replaces the error bag with the
// outcome and returns it. A nil error means every field passes.
func (f *Io) ValidateAll() error {
	f.mu.Lock()
	msgs, _ := rules.AsMessages(f.engine.Validate(f.form, f.ruleSet))
	if msgs == nil {
		msgs = rules.Messages{}
	}
	custom, _ := f.customLocked()
	msgs.Merge(custom)
	f.errors.replaceQuiet(msgs)
	f.queue = append(f.queue, f.errors.notify)
	f.feedback = ProjectFeedback(f.ruleSet.Keys(), f.form, f.errors, f.success)
	f.unlockAndDeliver()
	if len(msgs) == 0 {
		return nil
	}
	return msgs
}

// Passes reports whether the whole form validates, without touching the
// bags.
func (f *Io) Passes() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	var vopts []rules.ValidateOption
	if f.opts.custom != nil {
		vopts = append(vopts, rules.WithCustomTest(f.opts.custom))
	}
	return f.engine.Validate(f.form, f.ruleSet, vopts...) == nil
}

// On subscribes h to an event and returns a function that unsubscribes it.
func (f *Io) On(event string, h Handler) func() { return f.bus.on(event, h) }

// Emit delivers payload to the handlers of event.
func (f *Io) Emit(event string, payload any) { f.bus.emit(event, payload) }

// OnChange subscribes to "change".
func (f *Io) OnChange(fn func(ChangeEvent)) func() {
	return f.On(EventChange, func(p any) {
		if ev, ok := p.(ChangeEvent); ok {
			fn(ev)
		}
	})
}

// OnPaused subscribes to "paused".
func (f *Io) OnPaused(fn func(PausedEvent)) func() {
	return f.On(EventPaused, pausedHandler(fn))
}

// OnPausedPath subscribes to "paused:<path>".
func (f *Io) OnPausedPath(path string, fn func(PausedEvent)) func() {
	return f.On(PausedEventName(path), pausedHandler(fn))
}

func pausedHandler(fn func(PausedEvent)) Handler {
	return func(p any) {
		if ev, ok := p.(PausedEvent); ok {
			fn(ev)
		}
	}
}

// Close releases every observation and cancels pending debounce timers.
// Mutations after Close return ErrClosed.
func (f *Io) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.watcher.StopWatching()
	f.debounce.Stop()
	unsubs := f.unsubs
	f.unsubs = nil
	f.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
	return nil
}
