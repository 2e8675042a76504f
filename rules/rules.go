package rules

import (
	"fmt"
	"sort"
	"strings"
)

// Spec is one named rule with its declared arguments, as written by the caller.
type Spec struct {
	Name      string   `json:"name" yaml:"name"`
	Arguments []string `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// Pipeline is an ordered list of rules applied to one field.
type Pipeline []Spec

// String renders the pipeline in its compact "a|b:c,d" form.
func (p Pipeline) String() string {
	parts := make([]string, 0, len(p))
	for _, s := range p {
		if len(s.Arguments) == 0 {
			parts = append(parts, s.Name)
			continue
		}
		parts = append(parts, s.Name+":"+strings.Join(s.Arguments, ","))
	}
	return strings.Join(parts, "|")
}

// ParseString parses the compact form. "required|min:3" yields
// [{required} {min [3]}]. Empty segments are ignored.
func ParseString(s string) Pipeline {
	var out Pipeline
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, args, hasArgs := strings.Cut(part, ":")
		sp := Spec{Name: strings.TrimSpace(name)}
		if hasArgs {
			for _, a := range strings.Split(args, ",") {
				sp.Arguments = append(sp.Arguments, strings.TrimSpace(a))
			}
		}
		out = append(out, sp)
	}
	return out
}

// ParsePipeline accepts either form of a pipeline: a string, a Pipeline, a
// []Spec, or a decoded list whose items are strings or {name, arguments}
// maps.
func ParsePipeline(v any) (Pipeline, error) {
	switch t := v.(type) {
	case string:
		return ParseString(t), nil
	case Pipeline:
		return t, nil
	case []Spec:
		return Pipeline(t), nil
	case []string:
		var out Pipeline
		for _, s := range t {
			out = append(out, ParseString(s)...)
		}
		return out, nil
	case []any:
		var out Pipeline
		for i, item := range t {
			switch it := item.(type) {
			case string:
				out = append(out, ParseString(it)...)
			case Spec:
				out = append(out, it)
			case map[string]any:
				sp, err := specFromMap(it)
				if err != nil {
					return nil, fmt.Errorf("%w: item %d: %v", ErrInvalidSpec, i, err)
				}
				out = append(out, sp)
			default:
				return nil, fmt.Errorf("%w: item %d has type %T", ErrInvalidSpec, i, item)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidSpec, v)
	}
}

func specFromMap(m map[string]any) (Spec, error) {
	name, _ := m["name"].(string)
	if name == "" {
		return Spec{}, fmt.Errorf("missing name")
	}
	sp := Spec{Name: name}
	switch args := m["arguments"].(type) {
	case nil:
	case []any:
		for _, a := range args {
			sp.Arguments = append(sp.Arguments, fmt.Sprint(a))
		}
	case []string:
		sp.Arguments = append(sp.Arguments, args...)
	case string:
		sp.Arguments = []string{args}
	default:
		return Spec{}, fmt.Errorf("arguments has type %T", args)
	}
	return sp, nil
}

// RuleMap is an insertion-ordered mapping from wildcard path to pipeline.
type RuleMap struct {
	keys  []string
	pipes map[string]Pipeline
}

// NewRuleMap returns an empty RuleMap.
func NewRuleMap() *RuleMap { return &RuleMap{pipes: map[string]Pipeline{}} }

// Add sets the pipeline for path. Re-adding a path replaces its pipeline but
// keeps its original position.
func (m *RuleMap) Add(path string, p Pipeline) *RuleMap {
	if m.pipes == nil {
		m.pipes = map[string]Pipeline{}
	}
	if _, ok := m.pipes[path]; !ok {
		m.keys = append(m.keys, path)
	}
	m.pipes[path] = p
	return m
}

// AddAny parses v with ParsePipeline and adds it under path.
func (m *RuleMap) AddAny(path string, v any) error {
	p, err := ParsePipeline(v)
	if err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	m.Add(path, p)
	return nil
}

// Keys returns the paths in insertion order.
func (m *RuleMap) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Pipeline returns the pipeline for path.
func (m *RuleMap) Pipeline(path string) (Pipeline, bool) {
	if m == nil {
		return nil, false
	}
	p, ok := m.pipes[path]
	return p, ok
}

// Len returns the number of fields.
func (m *RuleMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// FromMap builds a RuleMap from an unordered map. Go maps carry no order, so
// keys are added in sorted order.
func FromMap(src map[string]any) (*RuleMap, error) {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	m := NewRuleMap()
	for _, k := range keys {
		if err := m.AddAny(k, src[k]); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustParse builds a RuleMap from alternating path / compact-form pairs and
// panics on an odd argument count.
func MustParse(pairs ...string) *RuleMap {
	if len(pairs)%2 != 0 {
		panic("rules: MustParse needs path/spec pairs")
	}
	m := NewRuleMap()
	for i := 0; i < len(pairs); i += 2 {
		m.Add(pairs[i], ParseString(pairs[i+1]))
	}
	return m
}
