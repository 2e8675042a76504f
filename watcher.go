package formio

import (
	"sort"

	"github.com/reoring/formio/internal/tree"
	"github.com/reoring/formio/observe"
)

// Change describes one observed leaf change.
type Change struct {
	Field    string // Last segment of Path.
	Path     string // Concrete path.
	Value    any
	OldValue any
}

type watchEntry struct {
	path   string
	detach observe.Detach
}

// PathWatcher keeps exactly one observation per leaf concrete path of a form
// tree. After every observed change it tears the whole set down and walks the
// tree again, which is how new array elements and replaced sub-records are
// picked up.
//
// Entries live in an arena slice indexed by path; a rebuild reuses its
// backing storage.
type PathWatcher struct {
	obs      observe.Observer
	onChange func(Change)
	root     map[string]any
	entries  []watchEntry
	index    map[string]int
}

// NewPathWatcher returns a watcher attaching through obs and reporting to
// onChange.
func NewPathWatcher(obs observe.Observer, onChange func(Change)) *PathWatcher {
	return &PathWatcher{obs: obs, onChange: onChange, index: map[string]int{}}
}

// StartWatching attaches one observation per leaf path of root.
func (w *PathWatcher) StartWatching(root map[string]any) {
	w.root = root
	walkLeaves(root, "", w.attach)
}

// StopWatching releases every observation. It is safe to call with nothing
// attached.
func (w *PathWatcher) StopWatching() {
	for i := range w.entries {
		if d := w.entries[i].detach; d != nil {
			d()
		}
		w.entries[i] = watchEntry{}
	}
	w.entries = w.entries[:0]
	clear(w.index)
}

// Paths returns the currently watched paths in attachment order.
func (w *PathWatcher) Paths() []string {
	out := make([]string, len(w.entries))
	for i, e := range w.entries {
		out[i] = e.path
	}
	return out
}

// Len returns the number of watched paths.
func (w *PathWatcher) Len() int { return len(w.entries) }

func (w *PathWatcher) attach(path string) {
	if _, dup := w.index[path]; dup {
		return
	}
	root := w.root
	detach := w.obs.Observe(path, func() any { return tree.Value(root, path) }, func(value, old any) {
		w.changed(path, value, old)
	})
	w.index[path] = len(w.entries)
	w.entries = append(w.entries, watchEntry{path: path, detach: detach})
}

func (w *PathWatcher) changed(path string, value, old any) {
	segs := tree.Split(path)
	w.onChange(Change{Field: segs[len(segs)-1], Path: path, Value: value, OldValue: old})
	w.StopWatching()
	w.StartWatching(w.root)
}

// LeafPaths returns the leaf concrete paths of root in the order a
// PathWatcher attaches them.
func LeafPaths(root map[string]any) []string {
	var out []string
	seen := map[string]struct{}{}
	walkLeaves(root, "", func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	})
	return out
}

// walkLeaves visits every leaf under node. Maps recurse by key in sorted
// order; arrays of records recurse by index; everything else is a leaf.
func walkLeaves(node map[string]any, base string, visit func(string)) {
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p := tree.Child(base, k)
		v := node[k]
		switch {
		case tree.IsRecord(v):
			walkLeaves(v.(map[string]any), p, visit)
		case tree.IsRecordArray(v):
			n, _ := tree.Len(v)
			for i := 0; i < n; i++ {
				el, _ := tree.At(v, i)
				ep := tree.Index(p, i)
				if m, ok := el.(map[string]any); ok {
					walkLeaves(m, ep, visit)
				} else {
					visit(ep)
				}
			}
		default:
			visit(p)
		}
	}
}
