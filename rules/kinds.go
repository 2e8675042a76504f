package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies a rule predicate.
type Kind int

const (
	KindRequired Kind = iota
	KindNullable
	KindString
	KindArray
	KindObject
	KindBoolean
	KindAccepted
	KindInteger
	KindURL
	KindEmail
	KindDate
	KindTime
	KindMin
	KindRequiredWith
	KindCustom // Registered with WithRule.
)

var kindNames = [...]string{
	KindRequired:     "required",
	KindNullable:     "nullable",
	KindString:       "string",
	KindArray:        "array",
	KindObject:       "object",
	KindBoolean:      "boolean",
	KindAccepted:     "accepted",
	KindInteger:      "integer",
	KindURL:          "url",
	KindEmail:        "email",
	KindDate:         "date",
	KindTime:         "time",
	KindMin:          "min",
	KindRequiredWith: "requiredWith",
	KindCustom:       "custom",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Outcome is the result of one predicate.
type Outcome int

const (
	Pass  Outcome = iota
	Fail          // Record the rule's message for the field.
	Break         // Stop the field's pipeline without recording anything.
)

// Call is what a predicate sees.
type Call struct {
	Root  map[string]any // Whole form tree.
	Path  string         // Concrete path of the value.
	Value any
	Rule  *Rule
}

// Predicate evaluates one rule against one value.
type Predicate func(c Call) Outcome

// Rule is a resolved pipeline entry: its kind, typed arguments and predicate.
type Rule struct {
	Kind Kind
	Name string // Canonical name, used as the Translator code.
	Args []string

	Min   float64 // KindMin threshold.
	Other string  // KindRequiredWith sibling path.

	pred Predicate
}

type entry struct {
	kind  Kind
	name  string
	pred  Predicate
	parse func(r *Rule) error
}

// normalizeName folds case and drops '-' and '_' so that "required_with",
// "required-with" and "requiredWith" resolve to one entry.
func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", "_", "").Replace(s)
}

func parseMin(r *Rule) error {
	if len(r.Args) != 1 {
		return fmt.Errorf("%w: min takes exactly one argument, got %d", ErrInvalidArgument, len(r.Args))
	}
	f, err := strconv.ParseFloat(r.Args[0], 64)
	if err != nil {
		return fmt.Errorf("%w: min: %q is not a number", ErrInvalidArgument, r.Args[0])
	}
	r.Min = f
	return nil
}

func parseOther(r *Rule) error {
	if len(r.Args) != 1 || r.Args[0] == "" {
		return fmt.Errorf("%w: %s takes exactly one field name", ErrInvalidArgument, r.Name)
	}
	r.Other = r.Args[0]
	return nil
}

func noArgs(r *Rule) error {
	if len(r.Args) != 0 {
		return fmt.Errorf("%w: %s takes no arguments", ErrInvalidArgument, r.Name)
	}
	return nil
}
