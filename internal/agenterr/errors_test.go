package agenterr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder_Build(t *testing.T) {
	inner := errors.New("boom")
	err := NewBuilder(CodeServiceUnreachable, "nlu unreachable").
		Temporary().
		Wrap(inner).
		WithSuggestion("check your connection").
		Build()

	assert.Equal(t, CodeServiceUnreachable, err.Code)
	assert.Equal(t, CategoryServiceOutage, err.Category)
	assert.True(t, err.Retryable)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.SuggestionsText(), "check your connection")
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "cancellation",
			err:  Cancelled("nevermind"),
			want: "Sorry I couldn't help on that.",
		},
		{
			name: "parse",
			err:  NewBuilder(CodeParseFailed, "unknown").Category(CategoryParse).Build(),
			want: "Sorry, I don't know how to do that yet.",
		},
		{
			name: "executor",
			err:  NewBuilder(CodeExecutorFailed, "device offline").Category(CategoryExecutor).Build(),
			want: "Sorry, that did not work: device offline.",
		},
		{
			name: "system",
			err:  NewBuilder(CodeUnexpected, "nil pointer").Category(CategorySystem).Build(),
			want: "Sorry, I had an error processing your command: nil pointer.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.UserMessage())
		})
	}
}

func TestIsCancellation(t *testing.T) {
	assert.True(t, IsCancellation(Cancelled("nevermind")))
	assert.False(t, IsCancellation(errors.New("plain")))
}

func TestGetCategory(t *testing.T) {
	assert.Equal(t, CategoryExecutor, GetCategory(NewBuilder("X", "y").Category(CategoryExecutor).Build()))
	assert.Equal(t, CategorySystem, GetCategory(errors.New("plain")))
}
