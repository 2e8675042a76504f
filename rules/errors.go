package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownRule reports a rule name with no registered predicate.
	ErrUnknownRule = errors.New("unknown rule")
	// ErrInvalidArgument reports a rule whose declared arguments cannot be used.
	ErrInvalidArgument = errors.New("invalid rule argument")
	// ErrInvalidSpec reports a pipeline that is neither the string nor the list form.
	ErrInvalidSpec = errors.New("invalid rule specification")
)

// ConfigError is a configuration failure in a rule map. It indicates a mistake
// in the rules rather than bad input data and is never recorded as a field
// message.
type ConfigError struct {
	Path string // Wildcard path of the offending field.
	Rule string // Rule name as written.
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("rules: %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("rules: %s: %s: %v", e.Path, e.Rule, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Messages maps concrete paths to the ordered messages recorded for them.
// As an error it represents a failed validation.
type Messages map[string][]string

// Error summarizes the first few failing paths in sorted order.
func (m Messages) Error() string {
	if len(m) == 0 {
		return ""
	}
	const maxShown = 3
	keys := m.Paths()
	b := &strings.Builder{}
	lim := len(keys)
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		msgs := m[keys[i]]
		first := ""
		if len(msgs) > 0 {
			first = msgs[0]
		}
		// e.g. services.0.url: The services.0.url format is invalid.
		fmt.Fprintf(b, "%s: %s", keys[i], first)
	}
	if n := len(keys); n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// Paths returns the failing paths in sorted order.
func (m Messages) Paths() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge copies every non-empty entry of other into m, appending to existing
// lists.
func (m Messages) Merge(other Messages) {
	for k, v := range other {
		if len(v) == 0 {
			continue
		}
		m[k] = append(m[k], v...)
	}
}

// Clone returns a deep copy of m.
func (m Messages) Clone() Messages {
	if m == nil {
		return nil
	}
	out := make(Messages, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// AsMessages extracts Messages from an error using errors.As internally.
func AsMessages(err error) (Messages, bool) {
	if err == nil {
		return nil, false
	}
	var m Messages
	if errors.As(err, &m) {
		return m, true
	}
	return nil, false
}
