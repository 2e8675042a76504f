package tree

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidPath reports a path that cannot be resolved or assigned.
	ErrInvalidPath = errors.New("invalid path")
)

// IsRecord reports whether v is a plain keyed map.
func IsRecord(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// Len returns the length of v when v is a slice or array.
func Len(v any) (int, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case []any:
		return len(t), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len(), true
	default:
		return 0, false
	}
}

// At returns element i of a slice or array value.
func At(v any, i int) (any, bool) {
	if s, ok := v.([]any); ok {
		if i < 0 || i >= len(s) {
			return nil, false
		}
		return s[i], true
	}
	n, ok := Len(v)
	if !ok || i < 0 || i >= n {
		return nil, false
	}
	return reflect.ValueOf(v).Index(i).Interface(), true
}

// IsRecordArray reports whether v is a sequence whose first element is a
// plain keyed map.
func IsRecordArray(v any) bool {
	n, ok := Len(v)
	if !ok || n == 0 {
		return false
	}
	first, _ := At(v, 0)
	return IsRecord(first)
}

// Get resolves a concrete path against root.
func Get(root any, p string) (any, bool) {
	cur := root
	for _, seg := range Split(p) {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return nil, false
			}
			v, ok := At(c, idx)
			if !ok {
				return nil, false
			}
			cur = v
		}
	}
	return cur, true
}

// Value is Get without the presence flag; missing paths read as nil.
func Value(root any, p string) any {
	v, _ := Get(root, p)
	return v
}

// Set assigns v at path p inside root, creating intermediate maps and
// sequences as needed. An index equal to the current length appends.
func Set(root map[string]any, p string, v any) error {
	segs := Split(p)
	if len(segs) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	_, err := setIn(root, segs, v, p)
	return err
}

func setIn(container any, segs []string, v any, full string) (any, error) {
	if len(segs) == 0 {
		return v, nil
	}
	seg := segs[0]
	if container == nil {
		if IsIndex(seg) {
			container = []any{}
		} else {
			container = map[string]any{}
		}
	}
	switch c := container.(type) {
	case map[string]any:
		nv, err := setIn(c[seg], segs[1:], v, full)
		if err != nil {
			return nil, err
		}
		c[seg] = nv
		return c, nil
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx > len(c) {
			return nil, fmt.Errorf("%w: %q: index %q out of range", ErrInvalidPath, full, seg)
		}
		if idx == len(c) {
			nv, err := setIn(nil, segs[1:], v, full)
			if err != nil {
				return nil, err
			}
			return append(c, nv), nil
		}
		nv, err := setIn(c[idx], segs[1:], v, full)
		if err != nil {
			return nil, err
		}
		c[idx] = nv
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q: %T is not a container", ErrInvalidPath, full, container)
	}
}

// Delete removes the key or array element addressed by p.
func Delete(root map[string]any, p string) error {
	segs := Split(p)
	if len(segs) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	parentPath := Join(segs[:len(segs)-1]...)
	last := segs[len(segs)-1]
	if len(segs) == 1 {
		delete(root, last)
		return nil
	}
	parent, ok := Get(root, parentPath)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	switch c := parent.(type) {
	case map[string]any:
		delete(c, last)
		return nil
	case []any:
		idx, err := strconv.Atoi(last)
		if err != nil || idx < 0 || idx >= len(c) {
			return fmt.Errorf("%w: %q: index %q out of range", ErrInvalidPath, p, last)
		}
		ns := append(c[:idx:idx], c[idx+1:]...)
		return Set(root, parentPath, ns)
	default:
		return fmt.Errorf("%w: %q: %T is not a container", ErrInvalidPath, p, parent)
	}
}

// Merge copies src into dst in place. Nested maps present on both sides are
// merged recursively so untouched fields keep their identity.
func Merge(dst, src map[string]any) {
	for k, sv := range src {
		if sm, ok := sv.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				Merge(dm, sm)
				continue
			}
		}
		dst[k] = sv
	}
}

// Clone deep-copies maps and sequences. Scalars are returned as is.
func Clone(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = Clone(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = Clone(vv)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && !rv.IsNil() {
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(out, rv)
		return out.Interface()
	}
	return v
}

// Equal reports deep equality of two tree values.
func Equal(a, b any) bool { return reflect.DeepEqual(a, b) }

// Truthy mirrors loose truthiness: nil, false, zero, NaN and "" are falsy;
// sequences and maps are always truthy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case interface{ Float64() (float64, error) }:
		f, err := t.Float64()
		return err == nil && f != 0 && !math.IsNaN(f)
	}
	if f, ok := numeric(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

// IsNumber reports whether v holds a numeric Go value or json.Number.
func IsNumber(v any) bool {
	if _, ok := v.(interface{ Float64() (float64, error) }); ok {
		return true
	}
	_, ok := numeric(v)
	return ok
}

// Float returns v as float64 when v is numeric.
func Float(v any) (float64, bool) {
	if n, ok := v.(interface{ Float64() (float64, error) }); ok {
		f, err := n.Float64()
		return f, err == nil
	}
	return numeric(v)
}

func numeric(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

// ToNumber converts v the way a loose numeric cast does: nil and "" become 0,
// booleans become 0/1, strings are parsed after trimming, single-element
// sequences convert their element. Anything else is NaN.
func ToNumber(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case time.Time:
		return float64(t.UnixMilli())
	}
	if f, ok := Float(v); ok {
		return f
	}
	if n, ok := Len(v); ok {
		switch n {
		case 0:
			return 0
		case 1:
			e, _ := At(v, 0)
			if IsRecord(e) {
				return math.NaN()
			}
			return ToNumber(e)
		}
	}
	return math.NaN()
}
