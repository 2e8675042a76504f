package formio

import (
	"io"
	"log/slog"
	"time"

	"github.com/reoring/formio/i18n"
	"github.com/reoring/formio/observe"
	"github.com/reoring/formio/rules"
)

type options struct {
	logger       *slog.Logger
	clock        Clock
	debounce     time.Duration
	observer     observe.Flusher
	validator    *rules.Validator
	translator   i18n.Translator
	metrics      *Metrics
	errorLabel   string
	successLabel string
	custom       rules.CustomTest
}

// Option configures an Io.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:    realClock{},
		debounce: DefaultDebounce,
	}
}

// WithLogger sets the structured logger. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces the clock driving debounce timers.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithDebounce sets the quiet interval before "paused" fires.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithObserver replaces the change-notification substrate. Its callbacks must
// be invoked from within its Flush, which Io calls while holding its lock.
func WithObserver(f observe.Flusher) Option {
	return func(o *options) { o.observer = f }
}

// WithValidator supplies a preconfigured rule engine, for example one with
// custom rules registered.
func WithValidator(v *rules.Validator) Option {
	return func(o *options) { o.validator = v }
}

// WithTranslator sets the message formatter of the default validator. It is
// ignored when WithValidator is also given.
func WithTranslator(tr i18n.Translator) Option {
	return func(o *options) { o.translator = tr }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLabels sets the labels of the error and success bags.
func WithLabels(errorLabel, successLabel string) Option {
	return func(o *options) {
		o.errorLabel = errorLabel
		o.successLabel = successLabel
	}
}

// WithCustomTest adds a validation function whose failures are merged into
// every validation run.
func WithCustomTest(fn rules.CustomTest) Option {
	return func(o *options) { o.custom = fn }
}
