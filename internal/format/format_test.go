package format

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cascade-run/cascade/internal/handler"
)

func TestInterpolate_SimplePlaceholder(t *testing.T) {
	got := Interpolate("Hello {name}!", map[string]any{"name": "Ava"}, "en")
	assert.Equal(t, "Hello Ava!", got)
}

func TestInterpolate_UnknownPlaceholderLeftAsIs(t *testing.T) {
	got := Interpolate("Hello {name}!", map[string]any{}, "en")
	assert.Equal(t, "Hello {name}!", got)
}

func TestInterpolate_Plural(t *testing.T) {
	tmpl := "You have {count, plural, one{# message} other{# messages}}."
	assert.Equal(t, "You have 1 message.", Interpolate(tmpl, map[string]any{"count": 1}, "en"))
	assert.Equal(t, "You have 3 messages.", Interpolate(tmpl, map[string]any{"count": 3}, "en"))
	assert.Equal(t, "You have 0 messages.", Interpolate(tmpl, map[string]any{"count": 0}, "en"))
}

func TestInterpolate_Select(t *testing.T) {
	tmpl := "{gender, select, male{He} female{She} other{They}} said hi."
	assert.Equal(t, "He said hi.", Interpolate(tmpl, map[string]any{"gender": "male"}, "en"))
	assert.Equal(t, "They said hi.", Interpolate(tmpl, map[string]any{"gender": "nonbinary"}, "en"))
}

func TestInterpolate_DeterministicAcrossCalls(t *testing.T) {
	tmpl := "{a} and {b}"
	vars := map[string]any{"a": 1, "b": "two"}
	first := Interpolate(tmpl, vars, "en")
	second := Interpolate(tmpl, vars, "en")
	assert.Equal(t, first, second)
}

func TestConfirmProgram_NoParams(t *testing.T) {
	ast := &handler.ProgramAST{Kind: "@com.xkcd.get_comic"}
	assert.Equal(t, "com xkcd get comic?", ConfirmProgram(ast, "en"))
}

func TestConfirmProgram_WithParamsSortedByName(t *testing.T) {
	ast := &handler.ProgramAST{
		Kind: "@com.twitter.post_picture",
		Params: []handler.ProgramParam{
			{Name: "caption", Value: "link", HasValue: true},
			{Name: "picture_url", Value: "picture_url", HasValue: true},
		},
	}
	got := ConfirmProgram(ast, "en")
	assert.Contains(t, got, "caption = link")
	assert.Contains(t, got, "picture_url = picture_url")
	assert.True(t, strIndex(got, "caption") < strIndex(got, "picture_url"))
}

func TestConfirmProgram_NilIsGenericPrompt(t *testing.T) {
	assert.Equal(t, "run this?", ConfirmProgram(nil, "en"))
}

func TestExecutorResult_KnownTypes(t *testing.T) {
	msgs := ExecutorResult("text", "hello", "")
	assert.Equal(t, "hello", msgs[0].Text)

	msgs = ExecutorResult("picture", "http://example.com/a.png", "")
	assert.Equal(t, "http://example.com/a.png", msgs[0].URL)
}

func TestExecutorResult_UnknownTypeFallsBackToText(t *testing.T) {
	msgs := ExecutorResult("something_new", 42, "")
	assert.Equal(t, handler.ReplyText, msgs[0].Kind)
	assert.Equal(t, "42", msgs[0].Text)
}

func TestExecutorError_RendersFixedApology(t *testing.T) {
	msg := ExecutorError("device offline", "")
	assert.Equal(t, "Sorry, that did not work: device offline.", msg.Text)
}

func strIndex(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
