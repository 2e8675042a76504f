package formio

import "github.com/reoring/formio/internal/tree"

// ToWildcardPath converts a concrete path to the rule-map key space by
// replacing every purely numeric segment with "*". It is idempotent.
func ToWildcardPath(p string) string { return tree.ToWildcard(p) }

// SubstituteIndex replaces every "*" segment of a wildcard path with idx.
func SubstituteIndex(p string, idx int) string { return tree.Substitute(p, idx) }
