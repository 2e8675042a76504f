package formio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	gojson "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/reoring/formio/i18n"
	"github.com/reoring/formio/rules"
)

// Config is the construction input of an Io.
type Config struct {
	Form       map[string]any
	Validation *rules.RuleMap
	Errors     map[string]any // Initial error bag content.
	Success    map[string]any // Initial success bag content.
	Settings   Settings
}

// Settings carries the tunables that can be written in a config document.
// Explicit Options passed to New take precedence.
type Settings struct {
	DebounceMS   int    `json:"debounceMs" yaml:"debounceMs"`
	Language     string `json:"language" yaml:"language"`
	ErrorLabel   string `json:"errorLabel" yaml:"errorLabel"`
	SuccessLabel string `json:"successLabel" yaml:"successLabel"`
}

// Options converts Settings into Options.
func (c Config) Options() []Option {
	s := c.Settings
	var out []Option
	if s.DebounceMS > 0 {
		out = append(out, WithDebounce(time.Duration(s.DebounceMS)*time.Millisecond))
	}
	if s.Language != "" {
		out = append(out, WithTranslator(i18n.New(s.Language)))
	}
	if s.ErrorLabel != "" || s.SuccessLabel != "" {
		out = append(out, WithLabels(s.ErrorLabel, s.SuccessLabel))
	}
	return out
}

// LoadConfigJSON reads a config document of the form
//
//	{"form": {...}, "validation": {...}, "errors": {...}, "success": {...}, "settings": {...}}
//
// The validation object is read token by token so field order is kept.
// Unknown top-level keys are skipped.
func LoadConfigJSON(data []byte) (Config, error) {
	var cfg Config
	dec := gojson.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return Config{}, err
	}
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return Config{}, err
		}
		switch key {
		case "form":
			err = dec.Decode(&cfg.Form)
		case "validation":
			cfg.Validation, err = decodeRuleMapJSON(dec)
		case "errors":
			err = dec.Decode(&cfg.Errors)
		case "success":
			err = dec.Decode(&cfg.Success)
		case "settings":
			err = dec.Decode(&cfg.Settings)
		default:
			var skip any
			err = dec.Decode(&skip)
		}
		if err != nil {
			return Config{}, wrapConfig(key, err)
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeRuleMapJSON(dec *gojson.Decoder) (*rules.RuleMap, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	rm := rules.NewRuleMap()
	for dec.More() {
		path, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		if err := rm.AddAny(path, v); err != nil {
			return nil, err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return rm, nil
}

func expectDelim(dec *gojson.Decoder, want gojson.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: unexpected end of input", ErrInvalidConfig)
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if d, ok := tok.(gojson.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrInvalidConfig, want, tok)
	}
	return nil
}

func readKey(dec *gojson.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	k, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected object key, got %v", ErrInvalidConfig, tok)
	}
	return k, nil
}

// wrapConfig keeps rule-map configuration errors as they are and wraps
// everything else in ErrInvalidConfig.
func wrapConfig(key string, err error) error {
	var ce *rules.ConfigError
	if errors.As(err, &ce) || errors.Is(err, ErrInvalidConfig) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
}

// LoadConfigYAML reads the YAML rendering of the document LoadConfigJSON
// accepts. The validation mapping is walked node by node so field order is
// kept.
func LoadConfigYAML(data []byte) (Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	var cfg Config
	if doc.Kind == 0 {
		return cfg, nil
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return Config{}, fmt.Errorf("%w: top level must be a mapping", ErrInvalidConfig)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i].Value, root.Content[i+1]
		var err error
		switch key {
		case "form":
			cfg.Form, err = decodeYAMLMap(val)
		case "validation":
			cfg.Validation, err = decodeRuleMapYAML(val)
		case "errors":
			cfg.Errors, err = decodeYAMLMap(val)
		case "success":
			cfg.Success, err = decodeYAMLMap(val)
		case "settings":
			err = val.Decode(&cfg.Settings)
		}
		if err != nil {
			return Config{}, wrapConfig(key, err)
		}
	}
	return cfg, nil
}

func decodeRuleMapYAML(n *yaml.Node) (*rules.RuleMap, error) {
	rm := rules.NewRuleMap()
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return rm, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: validation must be a mapping (line %d)", ErrInvalidConfig, n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		var v any
		if err := n.Content[i+1].Decode(&v); err != nil {
			return nil, err
		}
		if err := rm.AddAny(n.Content[i].Value, normalizeYAML(v)); err != nil {
			return nil, err
		}
	}
	return rm, nil
}

func decodeYAMLMap(n *yaml.Node) (map[string]any, error) {
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	m, ok := normalizeYAML(v).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a mapping (line %d)", n.Line)
	}
	return m, nil
}

// normalizeYAML turns YAML-decoded values into the JSON-like shapes the form
// tree uses: map[any]any becomes map[string]any, dropping non-string keys.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = normalizeYAML(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			if ks, ok := k.(string); ok {
				out[ks] = normalizeYAML(vv)
			}
		}
		return out
	case []any:
		arr := make([]any, len(t))
		for i := range t {
			arr[i] = normalizeYAML(t[i])
		}
		return arr
	default:
		return v
	}
}
