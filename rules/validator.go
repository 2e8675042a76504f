package rules

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/reoring/formio/i18n"
	"github.com/reoring/formio/internal/tree"
)

// Validator resolves rule names to predicates and runs compiled rule sets
// against form trees. A Validator holds no per-call state and may be shared.
type Validator struct {
	table map[string]entry
	tr    i18n.Translator
	log   *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithTranslator sets the message formatter. Defaults to i18n.Default().
func WithTranslator(tr i18n.Translator) Option {
	return func(v *Validator) {
		if tr != nil {
			v.tr = tr
		}
	}
}

// WithLogger sets the logger used for recovered predicate panics.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.log = l
		}
	}
}

// WithRule registers an additional named rule. The name is normalized like
// the built-ins and may shadow one of them. Arguments are passed through
// untouched in Rule.Args.
func WithRule(name string, p Predicate) Option {
	return func(v *Validator) {
		if p == nil || name == "" {
			return
		}
		v.table[normalizeName(name)] = entry{kind: KindCustom, name: name, pred: p}
	}
}

// New returns a Validator with the built-in rules registered.
func New(opts ...Option) *Validator {
	v := &Validator{
		table: builtins(validator.New()),
		tr:    i18n.Default(),
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// RuleSet is a RuleMap whose rule names and arguments have been resolved.
type RuleSet struct {
	keys   []string
	fields map[string][]Rule
}

// Keys returns the wildcard paths in declaration order.
func (s *RuleSet) Keys() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.keys...)
}

// Rules returns the compiled pipeline for a wildcard path.
func (s *RuleSet) Rules(path string) []Rule {
	if s == nil {
		return nil
	}
	return s.fields[path]
}

// Has reports whether path has a pipeline.
func (s *RuleSet) Has(path string) bool {
	if s == nil {
		return false
	}
	_, ok := s.fields[path]
	return ok
}

// Len returns the number of fields.
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Scoped returns the subset of fields whose wildcard path equals prefix or
// lies beneath it.
func (s *RuleSet) Scoped(prefix string) *RuleSet {
	out := &RuleSet{fields: map[string][]Rule{}}
	if s == nil {
		return out
	}
	for _, k := range s.keys {
		if k == prefix || strings.HasPrefix(k, prefix+".") {
			out.keys = append(out.keys, k)
			out.fields[k] = s.fields[k]
		}
	}
	return out
}

// Compile resolves every rule of m. Unknown names and unusable arguments are
// reported as *ConfigError before any data is processed.
func (v *Validator) Compile(m *RuleMap) (*RuleSet, error) {
	rs := &RuleSet{fields: make(map[string][]Rule, m.Len())}
	for _, path := range m.Keys() {
		p, _ := m.Pipeline(path)
		compiled := make([]Rule, 0, len(p))
		for _, sp := range p {
			e, ok := v.table[normalizeName(sp.Name)]
			if !ok {
				return nil, &ConfigError{Path: path, Rule: sp.Name, Err: ErrUnknownRule}
			}
			r := Rule{Kind: e.kind, Name: e.name, Args: append([]string(nil), sp.Arguments...), pred: e.pred}
			if e.parse != nil {
				if err := e.parse(&r); err != nil {
					return nil, &ConfigError{Path: path, Rule: sp.Name, Err: err}
				}
			}
			compiled = append(compiled, r)
		}
		rs.keys = append(rs.keys, path)
		rs.fields[path] = compiled
	}
	return rs, nil
}

// CustomTest adds failures computed outside the rule pipelines.
type CustomTest func(root map[string]any) Messages

type validateConfig struct {
	scope  []string
	custom CustomTest
}

// ValidateOption configures one Validate call.
type ValidateOption func(*validateConfig)

// Scope restricts wildcard expansion to the indices present in the concrete
// path p: a "*" at a position where p has a number only visits that element.
func Scope(p string) ValidateOption {
	return func(c *validateConfig) { c.scope = tree.Split(p) }
}

// WithCustomTest merges the result of fn into the outcome.
func WithCustomTest(fn CustomTest) ValidateOption {
	return func(c *validateConfig) { c.custom = fn }
}

// Validate runs every pipeline of rs against root. It returns nil when all
// fields pass and Messages holding only the failing fields otherwise.
func (v *Validator) Validate(root map[string]any, rs *RuleSet, opts ...ValidateOption) error {
	cfg := validateConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	st := &state{root: root, cfg: &cfg, out: Messages{}}
	for _, path := range rs.Keys() {
		v.field(st, root, "", 0, tree.Split(path), rs.fields[path])
	}
	if cfg.custom != nil {
		st.out.Merge(cfg.custom(root))
	}
	if len(st.out) == 0 {
		return nil
	}
	return st.out
}

type state struct {
	root map[string]any
	cfg  *validateConfig
	out  Messages
}

// field resolves segs against node. base is the concrete path of node and
// depth the number of segments base has.
func (v *Validator) field(st *state, node any, base string, depth int, segs []string, pipeline []Rule) {
	for i, seg := range segs {
		if seg != tree.Wildcard {
			continue
		}
		prefix := tree.Join(segs[:i]...)
		arr := node
		if prefix != "" {
			arr = tree.Value(node, prefix)
		}
		arrPath := tree.Child(base, prefix)
		if prefix == "" {
			arrPath = base
		}
		n, ok := tree.Len(arr)
		if !ok {
			return
		}
		pos := depth + i
		for idx := 0; idx < n; idx++ {
			if !st.inScope(pos, idx) {
				continue
			}
			el, _ := tree.At(arr, idx)
			v.field(st, el, tree.Index(arrPath, idx), pos+1, segs[i+1:], pipeline)
		}
		return
	}
	rel := tree.Join(segs...)
	value := node
	path := base
	if rel != "" {
		value = tree.Value(node, rel)
		path = tree.Child(base, rel)
	}
	if msgs := v.run(st.root, path, value, pipeline); len(msgs) > 0 {
		st.out[path] = msgs
	}
}

func (st *state) inScope(pos, idx int) bool {
	if pos >= len(st.cfg.scope) {
		return true
	}
	seg := st.cfg.scope[pos]
	if !tree.IsIndex(seg) {
		return true
	}
	want, err := strconv.Atoi(seg)
	return err != nil || want == idx
}

// run applies a pipeline to one value. Every failure is kept; a Break ends
// the pipeline.
func (v *Validator) run(root map[string]any, path string, value any, pipeline []Rule) []string {
	var msgs []string
	for i := range pipeline {
		r := &pipeline[i]
		switch v.apply(Call{Root: root, Path: path, Value: value, Rule: r}) {
		case Break:
			return msgs
		case Fail:
			msgs = append(msgs, v.message(r, path))
		}
	}
	return msgs
}

func (v *Validator) apply(c Call) (out Outcome) {
	defer func() {
		if p := recover(); p != nil {
			v.log.Warn("rule predicate panicked", "rule", c.Rule.Name, "path", c.Path, "panic", fmt.Sprint(p))
			out = Fail
		}
	}()
	return c.Rule.pred(c)
}

func (v *Validator) message(r *Rule, path string) string {
	data := map[string]string{"attribute": path}
	for i, a := range r.Args {
		data[strconv.Itoa(i)] = a
	}
	switch r.Kind {
	case KindMin:
		data["min"] = r.Args[0]
	case KindRequiredWith:
		data["other"] = r.Other
	}
	return v.tr.Message(r.Name, data)
}
