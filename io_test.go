package formio_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/formio"
	"github.com/reoring/formio/i18n"
	"github.com/reoring/formio/rules"
)

func newIo(t *testing.T, form map[string]any, rm *rules.RuleMap, opts ...formio.Option) (*formio.Io, *fakeClock) {
	t.Helper()
	clk := &fakeClock{}
	opts = append([]formio.Option{formio.WithClock(clk), formio.WithDebounce(100 * time.Millisecond)}, opts...)
	f, err := formio.New(formio.Config{Form: form, Validation: rm}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f, clk
}

func feedbackAt(t *testing.T, fb map[string]any, field string, index int, leaf string) formio.Feedback {
	t.Helper()
	list, ok := fb[field].([]any)
	require.True(t, ok, "feedback %q is %T", field, fb[field])
	require.Greater(t, len(list), index)
	rec, ok := list[index].(map[string]any)
	require.True(t, ok)
	out, ok := rec[leaf].(formio.Feedback)
	require.True(t, ok)
	return out
}

func TestIo_ArrayElementChange(t *testing.T) {
	f, _ := newIo(t, servicesForm("https://a.example.com"), rules.MustParse("services.*.url", "required|url"))
	var events []formio.ChangeEvent
	f.OnChange(func(ev formio.ChangeEvent) { events = append(events, ev) })

	require.NoError(t, f.Set("services.0.url", "not-a-url"))

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "url", ev.Field)
	assert.Equal(t, "services.0.url", ev.Path)
	assert.Equal(t, "not-a-url", ev.Value)
	assert.Equal(t, "https://a.example.com", ev.OldValue)
	assert.Equal(t, []string{"The services.0.url format is invalid."}, ev.Errors["services.0.url"])

	assert.True(t, f.Errors().Has("services.0.url"))
	assert.Equal(t, "The services.0.url format is invalid.", feedbackAt(t, f.Feedback(), "services", 0, "url").Error)

	require.NoError(t, f.Set("services.0.url", "https://b.example.com"))
	require.Len(t, events, 2)
	assert.Empty(t, events[1].Errors)
	assert.False(t, f.Errors().Any())
	assert.Equal(t, formio.Feedback{}, feedbackAt(t, f.Feedback(), "services", 0, "url"))
}

func TestIo_AppendRecordIsWatched(t *testing.T) {
	f, _ := newIo(t, servicesForm("https://a.example.com"), rules.MustParse("services.*.url", "required|url"))
	events := 0
	f.OnChange(func(formio.ChangeEvent) { events++ })

	require.NoError(t, f.Set("services.1", map[string]any{"url": "https://b.example.com"}))
	assert.Equal(t, 0, events, "appending changes no existing leaf")
	assert.Equal(t, []string{"services.0.url", "services.1.url"}, f.WatchedPaths())
	assert.Len(t, f.Feedback()["services"], 2)

	require.NoError(t, f.Set("services.1.url", "bad"))
	assert.Equal(t, 1, events)
	assert.Equal(t, []string{"services.1.url"}, f.Errors().Messages().Paths())
	assert.Equal(t, "The services.1.url format is invalid.", feedbackAt(t, f.Feedback(), "services", 1, "url").Error)
	assert.Equal(t, formio.Feedback{}, feedbackAt(t, f.Feedback(), "services", 0, "url"))
}

func TestIo_DeleteRecord(t *testing.T) {
	f, _ := newIo(t, servicesForm("a", "b", "c"), rules.MustParse("services.*.url", "required|url"))
	require.NoError(t, f.Delete("services.2"))
	assert.Equal(t, []string{"services.0.url", "services.1.url"}, f.WatchedPaths())
	assert.Len(t, f.Feedback()["services"], 2)
}

func TestIo_NullableBreaks(t *testing.T) {
	form := map[string]any{"metadata": map[string]any{"website": nil}}
	f, _ := newIo(t, form, rules.MustParse("metadata.website", "nullable|url"))

	require.NoError(t, f.Set("metadata.website", ""))
	assert.False(t, f.Errors().Has("metadata.website"))

	require.NoError(t, f.Set("metadata.website", "nope"))
	assert.Equal(t, []string{"The metadata.website format is invalid."}, f.Errors().All("metadata.website"))

	require.NoError(t, f.Set("metadata.website", ""))
	assert.False(t, f.Errors().Has("metadata.website"))
}

func TestIo_PausedAfterQuietInterval(t *testing.T) {
	f, clk := newIo(t, map[string]any{"name": ""}, rules.MustParse("name", "required|min:3"))
	var all, named []formio.PausedEvent
	f.OnPaused(func(ev formio.PausedEvent) { all = append(all, ev) })
	f.OnPausedPath("name", func(ev formio.PausedEvent) { named = append(named, ev) })

	require.NoError(t, f.Set("name", "a"))
	clk.Advance(60 * time.Millisecond)
	require.NoError(t, f.Set("name", "ab"))
	clk.Advance(60 * time.Millisecond)
	assert.Empty(t, all, "typing re-arms the timer")

	clk.Advance(60 * time.Millisecond)
	require.Len(t, all, 1)
	require.Len(t, named, 1)
	assert.Equal(t, "name", all[0].Path)
	assert.Equal(t, "ab", all[0].Value)
	assert.Equal(t, "The name must be at least 3.", all[0].Error)
	assert.Equal(t, "", all[0].Success)
}

func TestIo_UpdateRebuildsWithoutChangeEvents(t *testing.T) {
	f, _ := newIo(t, servicesForm("https://a.example.com"), rules.MustParse("services.*.url", "required|url"))
	events := 0
	f.OnChange(func(formio.ChangeEvent) { events++ })

	require.NoError(t, f.Update(map[string]any{
		"services": []any{
			map[string]any{"url": "x"},
			map[string]any{"url": "y"},
			map[string]any{"url": "z"},
		},
		"title": "new",
	}))
	assert.Equal(t, 0, events)
	assert.Equal(t, formio.LeafPaths(f.Tree()), f.WatchedPaths())
	assert.Len(t, f.Feedback()["services"], 3)
	assert.Equal(t, "new", f.Get("title"))

	// watchers attached by Update observe subsequent changes
	require.NoError(t, f.Set("services.2.url", "still-bad"))
	assert.Equal(t, 1, events)
	assert.True(t, f.Errors().Has("services.2.url"))
}

func TestIo_DirectMutationAndFlush(t *testing.T) {
	f, _ := newIo(t, map[string]any{"name": "ok"}, rules.MustParse("name", "required"))
	f.Tree()["name"] = ""
	assert.Equal(t, 1, f.Flush())
	assert.Equal(t, []string{"The name field is required."}, f.Errors().All("name"))
	assert.Equal(t, 0, f.Flush())
}

func TestIo_Filled(t *testing.T) {
	f, _ := newIo(t, map[string]any{"a": "x", "b": "", "n": 0, "title": nil, "m": map[string]any{"k": true}}, nil)
	assert.True(t, f.Filled("a"))
	assert.True(t, f.Filled("a", "m.k"))
	assert.False(t, f.Filled("a", "b"))
	assert.False(t, f.Filled("n"))
	assert.False(t, f.Filled("title"))
	assert.False(t, f.Filled("a", "title"))
	assert.False(t, f.Filled("missing"))
}

func TestIo_ConfigErrorFailsConstruction(t *testing.T) {
	_, err := formio.New(formio.Config{Validation: rules.MustParse("name", "required|bogus")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, rules.ErrUnknownRule))
	assert.True(t, formio.IsConfigError(err))

	_, err = formio.New(formio.Config{Validation: rules.MustParse("name", "min")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, rules.ErrInvalidArgument))
}

func TestIo_BagUpdateRefreshesFeedback(t *testing.T) {
	f, _ := newIo(t, map[string]any{"name": "x"}, rules.MustParse("name", "required"))
	f.Success().Record(map[string]any{"name": "looks good"})
	assert.Equal(t, formio.Feedback{Success: "looks good"}, f.Feedback()["name"])

	b, err := f.FeedbackJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":{"success":"looks good"}}`, string(b))

	f.Success().ClearAll()
	assert.Equal(t, formio.Feedback{}, f.Feedback()["name"])
}

func TestIo_HandlersMayReenter(t *testing.T) {
	f, _ := newIo(t, map[string]any{"a": "", "b": ""}, rules.MustParse("a", "required", "b", "required"))
	f.OnChange(func(ev formio.ChangeEvent) {
		if ev.Path == "a" {
			require.NoError(t, f.Set("b", f.Get("a")))
		}
	})
	require.NoError(t, f.Set("a", "copied"))
	assert.Equal(t, "copied", f.Get("b"))
	assert.False(t, f.Errors().Any())
}

func TestIo_ValidateAll(t *testing.T) {
	f, _ := newIo(t, servicesForm("bad", "https://ok.example.com", nil), rules.MustParse("services.*.url", "required|url"))
	assert.False(t, f.Passes())
	assert.False(t, f.Errors().Any(), "Passes leaves the bags alone")

	err := f.ValidateAll()
	msgs, ok := formio.AsMessages(err)
	require.True(t, ok)
	assert.Equal(t, []string{"services.0.url", "services.2.url"}, msgs.Paths())
	assert.Equal(t, msgs.Paths(), f.Errors().Messages().Paths())
}

func TestIo_CustomTestMerged(t *testing.T) {
	custom := func(root map[string]any) rules.Messages {
		if root["password"] != root["confirm"] {
			return rules.Messages{"confirm": {"Passwords do not match."}}
		}
		return nil
	}
	f, _ := newIo(t, map[string]any{"password": "", "confirm": ""},
		rules.MustParse("password", "required", "confirm", "required"),
		formio.WithCustomTest(custom))

	require.NoError(t, f.Set("confirm", "abc"))
	assert.Equal(t, []string{"Passwords do not match."}, f.Errors().All("confirm"))

	require.NoError(t, f.Set("password", "abc"))
	assert.False(t, f.Errors().Has("password"))
	// the custom failure on another path is dropped once it stops being reported
	assert.False(t, f.Errors().Has("confirm"))
	assert.Equal(t, formio.Feedback{}, f.Feedback()["confirm"])
	assert.True(t, f.Passes())

	require.NoError(t, f.Set("password", "abcd"))
	assert.True(t, f.Errors().Has("confirm"))
	assert.Error(t, f.ValidateAll())
	assert.True(t, f.Errors().Has("confirm"))

	// a failure recorded by ValidateAll is dropped the same way
	require.NoError(t, f.Set("password", "abc"))
	assert.False(t, f.Errors().Any())
}

func TestIo_NewKeyWatchedButNotValidated(t *testing.T) {
	f, _ := newIo(t, map[string]any{}, rules.MustParse("title", "required|min:3"))
	events := 0
	f.OnChange(func(formio.ChangeEvent) { events++ })

	require.NoError(t, f.Set("title", "ab"))
	assert.Equal(t, 0, events)
	assert.False(t, f.Errors().Has("title"))
	assert.Equal(t, []string{"title"}, f.WatchedPaths())

	require.NoError(t, f.Set("title", "a"))
	assert.Equal(t, 1, events)
	assert.Equal(t, []string{"The title must be at least 3."}, f.Errors().All("title"))
}

func TestIo_TranslatorAndLabels(t *testing.T) {
	f, _ := newIo(t, map[string]any{"name": "x"}, rules.MustParse("name", "required"),
		formio.WithTranslator(i18n.New("ja")), formio.WithLabels("Error", "Success"))
	require.NoError(t, f.Set("name", ""))
	assert.Equal(t, "Error: nameは必須です", f.Errors().Get("name"))
}

func TestIo_Close(t *testing.T) {
	f, clk := newIo(t, map[string]any{"name": "x"}, rules.MustParse("name", "required"))
	require.NoError(t, f.Set("name", "y"))
	require.Equal(t, 1, clk.Active())

	paused := 0
	f.OnPaused(func(formio.PausedEvent) { paused++ })
	require.NoError(t, f.Close())
	assert.Equal(t, 0, clk.Active())
	clk.Advance(time.Second)
	assert.Equal(t, 0, paused)

	assert.ErrorIs(t, f.Set("name", "z"), formio.ErrClosed)
	assert.NoError(t, f.Close())
}

func TestIo_InvalidPath(t *testing.T) {
	f, _ := newIo(t, servicesForm("a"), nil)
	assert.ErrorIs(t, f.Set("services.5.url", "x"), formio.ErrInvalidPath)
}
