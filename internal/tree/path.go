package tree

import (
	"strconv"
	"strings"
)

// Wildcard is the segment token used by rule paths in place of array indices.
const Wildcard = "*"

// Split breaks a dot-joined path into its segments. The empty path yields nil.
func Split(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, ".")
}

// Join is the inverse of Split.
func Join(segs ...string) string { return strings.Join(segs, ".") }

// Child appends a segment to a parent path.
func Child(parent, seg string) string {
	if parent == "" {
		return seg
	}
	return parent + "." + seg
}

// Index appends an array index to a parent path.
func Index(parent string, i int) string { return Child(parent, strconv.Itoa(i)) }

// IsIndex reports whether seg is a purely numeric segment.
func IsIndex(seg string) bool {
	if seg == "" {
		return false
	}
	for i := 0; i < len(seg); i++ {
		if seg[i] < '0' || seg[i] > '9' {
			return false
		}
	}
	return true
}

// ToWildcard replaces every purely numeric segment of p with "*".
func ToWildcard(p string) string {
	if p == "" {
		return p
	}
	segs := Split(p)
	for i, s := range segs {
		if IsIndex(s) {
			segs[i] = Wildcard
		}
	}
	return Join(segs...)
}

// Substitute replaces every "*" segment of p with idx.
func Substitute(p string, idx int) string {
	if !strings.Contains(p, Wildcard) {
		return p
	}
	segs := Split(p)
	n := strconv.Itoa(idx)
	for i, s := range segs {
		if s == Wildcard {
			segs[i] = n
		}
	}
	return Join(segs...)
}
