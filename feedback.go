package formio

import (
	"strings"

	"github.com/reoring/formio/internal/tree"
)

// Feedback is one leaf of the feedback tree. Empty strings mean no message.
type Feedback struct {
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
	Success string `json:"success,omitempty" yaml:"success,omitempty"`
}

// ProjectFeedback builds the feedback tree for the given wildcard rule paths
// against the current form. Each "*" is expanded over the live length of the
// array at that position; paths whose array is missing produce no leaves.
// Numeric segments become []any positions, everything else map keys.
func ProjectFeedback(paths []string, root map[string]any, errs, success *MessageBag) map[string]any {
	out := map[string]any{}
	for _, wp := range paths {
		for _, cp := range expandWildcard(root, wp) {
			fb := Feedback{}
			if errs != nil {
				fb.Error = errs.Get(cp)
			}
			if success != nil {
				fb.Success = success.Get(cp)
			}
			// A path nested below another field's leaf keeps the outer leaf.
			_ = tree.Set(out, cp, fb)
		}
	}
	return out
}

// expandWildcard resolves every "*" of wp against root.
func expandWildcard(root map[string]any, wp string) []string {
	if !strings.Contains(wp, tree.Wildcard) {
		return []string{wp}
	}
	segs := tree.Split(wp)
	acc := []string{""}
	for _, seg := range segs {
		next := make([]string, 0, len(acc))
		for _, prefix := range acc {
			if seg != tree.Wildcard {
				next = append(next, tree.Child(prefix, seg))
				continue
			}
			var arr any = root
			if prefix != "" {
				arr = tree.Value(root, prefix)
			}
			n, ok := tree.Len(arr)
			if !ok {
				continue
			}
			for i := 0; i < n; i++ {
				next = append(next, tree.Index(prefix, i))
			}
		}
		acc = next
	}
	return acc
}
