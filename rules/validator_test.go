package rules_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/formio/i18n"
	"github.com/reoring/formio/rules"
)

func compile(t *testing.T, v *rules.Validator, pairs ...string) *rules.RuleSet {
	t.Helper()
	rs, err := v.Compile(rules.MustParse(pairs...))
	require.NoError(t, err)
	return rs
}

func messages(t *testing.T, err error) rules.Messages {
	t.Helper()
	if err == nil {
		return rules.Messages{}
	}
	m, ok := rules.AsMessages(err)
	require.True(t, ok, "expected Messages, got %v", err)
	return m
}

func TestValidate_ArrayOfRecords(t *testing.T) {
	v := rules.New()
	rs := compile(t, v, "services.*.url", "required|url")
	form := map[string]any{"services": []any{
		map[string]any{"url": "not-a-url"},
		map[string]any{"url": "https://example.com"},
		map[string]any{"url": nil},
	}}

	m := messages(t, v.Validate(form, rs))
	assert.Equal(t, []string{"services.0.url", "services.2.url"}, m.Paths())
	assert.Len(t, m["services.0.url"], 1)
	assert.Equal(t, "The services.0.url format is invalid.", m["services.0.url"][0])
	// required and url both fail on null
	assert.Len(t, m["services.2.url"], 2)
}

func TestValidate_ScopeLimitsExpansion(t *testing.T) {
	v := rules.New()
	rs := compile(t, v, "services.*.url", "required|url")
	form := map[string]any{"services": []any{
		map[string]any{"url": "bad"},
		map[string]any{"url": "also-bad"},
	}}

	m := messages(t, v.Validate(form, rs, rules.Scope("services.1.url")))
	assert.Equal(t, []string{"services.1.url"}, m.Paths())
}

func TestValidate_NestedWildcards(t *testing.T) {
	v := rules.New()
	rs := compile(t, v, "groups.*.members.*.email", "email", "tags.*", "string")
	form := map[string]any{
		"groups": []any{
			map[string]any{"members": []any{
				map[string]any{"email": "a@example.com"},
				map[string]any{"email": "nope"},
			}},
			map[string]any{"members": []any{}},
		},
		"tags": []any{"ok", 3},
	}
	m := messages(t, v.Validate(form, rs))
	assert.Equal(t, []string{"groups.0.members.1.email", "tags.1"}, m.Paths())
}

func TestValidate_MissingArrayIsSkipped(t *testing.T) {
	v := rules.New()
	rs := compile(t, v, "services.*.url", "required")
	assert.NoError(t, v.Validate(map[string]any{}, rs))
	assert.NoError(t, v.Validate(map[string]any{"services": "x"}, rs))
}

func TestValidate_NullableShortCircuits(t *testing.T) {
	v := rules.New()
	rs := compile(t, v, "metadata.website", "nullable|url|min:100")

	for _, val := range []any{nil, "", false, 0} {
		err := v.Validate(map[string]any{"metadata": map[string]any{"website": val}}, rs)
		assert.NoError(t, err, "value %#v", val)
	}

	m := messages(t, v.Validate(map[string]any{"metadata": map[string]any{"website": "bad"}}, rs))
	assert.Len(t, m["metadata.website"], 2, "url and min both fail and accumulate")

	rs = compile(t, v, "metadata.website", "nullable|url")
	m = messages(t, v.Validate(map[string]any{"metadata": map[string]any{"website": "bad"}}, rs))
	assert.Len(t, m["metadata.website"], 1)

	assert.NoError(t, v.Validate(map[string]any{"metadata": map[string]any{"website": "https://x.com"}}, rs))
}

func TestValidate_Idempotent(t *testing.T) {
	v := rules.New()
	rs := compile(t, v, "title", "required|min:3", "services.*.url", "required|url")
	form := map[string]any{"title": "ab", "services": []any{map[string]any{"url": "x"}}}

	first := messages(t, v.Validate(form, rs))
	second := messages(t, v.Validate(form, rs))
	assert.Equal(t, first, second)
}

func TestValidate_CustomTestMerged(t *testing.T) {
	v := rules.New()
	rs := compile(t, v, "title", "required")
	form := map[string]any{"title": "ok", "slug": "Bad Slug"}

	err := v.Validate(form, rs, rules.WithCustomTest(func(root map[string]any) rules.Messages {
		if s, _ := root["slug"].(string); strings.Contains(s, " ") {
			return rules.Messages{"slug": {"The slug may not contain spaces."}}
		}
		return nil
	}))
	m := messages(t, err)
	assert.Equal(t, []string{"slug"}, m.Paths())
}

func TestCompile_UnknownRule(t *testing.T) {
	v := rules.New()
	_, err := v.Compile(rules.MustParse("title", "required|shiny"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, rules.ErrUnknownRule))
	var ce *rules.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "shiny", ce.Rule)
	_, isMsgs := rules.AsMessages(err)
	assert.False(t, isMsgs)
}

func TestCompile_InvalidArguments(t *testing.T) {
	v := rules.New()
	for _, spec := range []string{"min", "min:abc", "min:1,2", "requiredWith", "required:x"} {
		_, err := v.Compile(rules.MustParse("f", spec))
		assert.ErrorIs(t, err, rules.ErrInvalidArgument, spec)
	}
}

func TestCompile_NameNormalization(t *testing.T) {
	v := rules.New()
	for _, name := range []string{"required_with:title", "required-with:title", "requiredWith:title", "RequiredWith:title"} {
		rs, err := v.Compile(rules.MustParse("summary", name))
		require.NoError(t, err, name)
		r := rs.Rules("summary")[0]
		assert.Equal(t, rules.KindRequiredWith, r.Kind)
		assert.Equal(t, "title", r.Other)
	}
}

func TestRequiredWith(t *testing.T) {
	v := rules.New()
	rs := compile(t, v, "summary", "required_with:title")

	assert.NoError(t, v.Validate(map[string]any{"title": nil, "summary": nil}, rs))
	m := messages(t, v.Validate(map[string]any{"title": "x", "summary": ""}, rs))
	assert.Equal(t, "The summary field is required when title is present.", m["summary"][0])
	assert.NoError(t, v.Validate(map[string]any{"title": "x", "summary": "s"}, rs))
}

func TestWithRule_CustomPredicate(t *testing.T) {
	v := rules.New(
		rules.WithRule("even", func(c rules.Call) rules.Outcome {
			n, ok := c.Value.(int)
			if ok && n%2 == 0 {
				return rules.Pass
			}
			return rules.Fail
		}),
		rules.WithTranslator(i18n.TranslatorFunc(func(code string, data map[string]string) string {
			return fmt.Sprintf("%s:%s", code, data["attribute"])
		})),
	)
	rs := compile(t, v, "count", "even")
	assert.Equal(t, rules.KindCustom, rs.Rules("count")[0].Kind)
	assert.NoError(t, v.Validate(map[string]any{"count": 2}, rs))
	m := messages(t, v.Validate(map[string]any{"count": 3}, rs))
	assert.Equal(t, []string{"even:count"}, m["count"])
}

func TestPanickingPredicateBecomesFailure(t *testing.T) {
	v := rules.New(rules.WithRule("explode", func(rules.Call) rules.Outcome {
		var tm *time.Time
		_ = tm.Year()
		return rules.Pass
	}))
	rs := compile(t, v, "when", "explode|required")
	m := messages(t, v.Validate(map[string]any{"when": "x"}, rs))
	assert.Len(t, m["when"], 1, "panic recorded once, required passes")
}

func TestRuleSet_Scoped(t *testing.T) {
	v := rules.New()
	rs := compile(t, v,
		"tags", "array",
		"tags.*", "string",
		"tagline", "string",
		"title", "required",
	)
	assert.Equal(t, []string{"tags", "tags.*"}, rs.Scoped("tags").Keys())
	assert.Equal(t, 0, rs.Scoped("nope").Len())
}
