// Package formio keeps a mutable form tree validated as it changes.
//
// It provides:
//
// - Io, which owns the form tree, observes every leaf path (including fields
// inside arrays of records) and re-validates the path that changed
// - Two MessageBags (errors, successes) keyed by concrete path
// - A feedback tree mirroring the form's shape with {error, success} leaves,
// rebuilt after every change
// - "change", "paused" and "paused:<path>" events
//
// Design policy:
// - Rules live under rules/, messages are formatted by an i18n.Translator, and
// the change-notification substrate lives under observe/.
// - Paths are dot-joined. Rule maps use "*" where the form has array indices.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	cfg := formio.Config{
//	    Form:       map[string]any{"services": []any{map[string]any{"url": nil}}},
//	    Validation: rules.MustParse("services.*.url", "required|url"),
//	}
//	f, err := formio.New(cfg)
//	f.OnChange(func(ev formio.ChangeEvent) { ... })
//	_ = f.Set("services.0.url", "https://example.com")
package formio
