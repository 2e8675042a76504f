package rules

import (
	"math"
	"reflect"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/go-openapi/strfmt"
	"github.com/go-playground/validator/v10"

	"github.com/reoring/formio/internal/tree"
)

func outcome(ok bool) Outcome {
	if ok {
		return Pass
	}
	return Fail
}

func isRequired(v any) bool {
	if n, ok := tree.Len(v); ok {
		return n > 0
	}
	return tree.Truthy(v)
}

func required(c Call) Outcome { return outcome(isRequired(c.Value)) }

func nullable(c Call) Outcome {
	if !tree.Truthy(c.Value) {
		return Break
	}
	return Pass
}

func stringRule(c Call) Outcome {
	if c.Value == nil {
		return Pass
	}
	_, ok := c.Value.(string)
	return outcome(ok)
}

func arrayRule(c Call) Outcome {
	_, ok := tree.Len(c.Value)
	return outcome(ok)
}

// objectRule follows a loose typeof check: null, maps, sequences, structs
// and pointers all count as objects.
func objectRule(c Call) Outcome {
	if c.Value == nil {
		return Pass
	}
	switch reflect.ValueOf(c.Value).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer:
		return Pass
	default:
		return Fail
	}
}

func boolean(c Call) Outcome {
	_, ok := c.Value.(bool)
	return outcome(ok)
}

func accepted(c Call) Outcome {
	b, ok := c.Value.(bool)
	return outcome(ok && b)
}

func integer(c Call) Outcome {
	f := tree.ToNumber(c.Value)
	return outcome(!math.IsNaN(f) && !math.IsInf(f, 0))
}

func minRule(c Call) Outcome {
	if s, ok := c.Value.(string); ok {
		return outcome(float64(utf8.RuneCountInString(s)) >= c.Rule.Min)
	}
	if f, ok := tree.Float(c.Value); ok {
		return outcome(f >= c.Rule.Min)
	}
	return Fail
}

func requiredWith(c Call) Outcome {
	if !tree.Truthy(tree.Value(c.Root, c.Rule.Other)) {
		return Pass
	}
	return required(c)
}

func formatRule(vld *validator.Validate, tag string) Predicate {
	return func(c Call) Outcome {
		s, ok := c.Value.(string)
		if !ok {
			return Fail
		}
		return outcome(vld.Var(s, tag) == nil)
	}
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	time.RFC1123,
	time.RFC1123Z,
}

func date(c Call) Outcome {
	switch t := c.Value.(type) {
	case time.Time:
		return outcome(!t.IsZero())
	case strfmt.DateTime, strfmt.Date:
		return Pass
	case string:
		if strfmt.IsDate(t) {
			return Pass
		}
		if _, err := strfmt.ParseDateTime(t); err == nil && t != "" {
			return Pass
		}
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, t); err == nil {
				return Pass
			}
		}
		return Fail
	}
	if f, ok := tree.Float(c.Value); ok {
		return outcome(!math.IsNaN(f) && !math.IsInf(f, 0))
	}
	return Fail
}

var clockPattern = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?$`)

func clock(c Call) Outcome {
	s, ok := c.Value.(string)
	if !ok || !clockPattern.MatchString(s) {
		return Fail
	}
	layout := "15:04"
	if len(s) > 5 {
		layout = "15:04:05"
	}
	_, err := time.Parse(layout, s)
	return outcome(err == nil)
}

// builtins returns the lookup table for the built-in rule kinds keyed by
// normalized name.
func builtins(vld *validator.Validate) map[string]entry {
	list := []entry{
		{kind: KindRequired, pred: required, parse: noArgs},
		{kind: KindNullable, pred: nullable, parse: noArgs},
		{kind: KindString, pred: stringRule, parse: noArgs},
		{kind: KindArray, pred: arrayRule, parse: noArgs},
		{kind: KindObject, pred: objectRule, parse: noArgs},
		{kind: KindBoolean, pred: boolean, parse: noArgs},
		{kind: KindAccepted, pred: accepted, parse: noArgs},
		{kind: KindInteger, pred: integer, parse: noArgs},
		{kind: KindURL, pred: formatRule(vld, "url"), parse: noArgs},
		{kind: KindEmail, pred: formatRule(vld, "email"), parse: noArgs},
		{kind: KindDate, pred: date, parse: noArgs},
		{kind: KindTime, pred: clock, parse: noArgs},
		{kind: KindMin, pred: minRule, parse: parseMin},
		{kind: KindRequiredWith, pred: requiredWith, parse: parseOther},
	}
	out := make(map[string]entry, len(list))
	for _, e := range list {
		e.name = e.kind.String()
		out[normalizeName(e.name)] = e
	}
	return out
}
