package formio

import (
	"errors"

	"github.com/reoring/formio/internal/tree"
	"github.com/reoring/formio/rules"
)

// Messages maps concrete paths to their failure messages and implements
// error. It is what validation returns when something fails.
type Messages = rules.Messages

var (
	// ErrClosed is returned by mutations on a closed Io.
	ErrClosed = errors.New("formio: closed")
	// ErrInvalidPath reports a path that cannot be resolved for writing.
	ErrInvalidPath = tree.ErrInvalidPath
	// ErrInvalidConfig wraps malformed JSON or YAML configuration documents.
	ErrInvalidConfig = errors.New("formio: invalid config")
)

// AsMessages extracts validation messages from err, following wrapped errors.
func AsMessages(err error) (Messages, bool) { return rules.AsMessages(err) }

// IsConfigError reports whether err is a rule-map configuration failure.
func IsConfigError(err error) bool {
	var ce *rules.ConfigError
	return errors.As(err, &ce)
}
