package delegate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascade-run/cascade/internal/handler"
)

func TestEmit_OrdersMessagesThenAskSpecial(t *testing.T) {
	d := NewRecordingDelegate()
	yesNo := handler.CategoryYesNo
	result := &handler.ReplyResult{
		Messages: []handler.ReplyMessage{
			handler.TextMessage("Turn on the light?", ""),
			handler.ButtonMessage("Yes", `{"code":["yes"]}`),
		},
		Expecting: &yesNo,
	}

	Emit(d, result)

	require.Len(t, d.Calls, 3)
	assert.Equal(t, "send", d.Calls[0].Method)
	assert.Equal(t, "sendButton", d.Calls[1].Method)
	assert.Equal(t, "sendAskSpecial", d.Calls[2].Method)
	assert.Equal(t, handler.AskYesNo, d.Calls[2].Special)
}

func TestEmit_NilResultAsksNull(t *testing.T) {
	d := NewRecordingDelegate()
	Emit(d, nil)

	require.Len(t, d.Calls, 1)
	assert.Equal(t, handler.AskNull, d.Last().Special)
}

func TestEmit_NoExpectingAsksNull(t *testing.T) {
	d := NewRecordingDelegate()
	Emit(d, &handler.ReplyResult{Messages: []handler.ReplyMessage{handler.TextMessage("done", "")}})

	assert.Equal(t, handler.AskNull, d.Last().Special)
}

func TestSpecialFor_MapsEveryCategory(t *testing.T) {
	tests := []struct {
		category handler.ValueCategory
		want     handler.AskSpecialKind
	}{
		{handler.CategoryYesNo, handler.AskYesNo},
		{handler.CategoryChoice, handler.AskChoiceKind},
		{handler.CategoryCommand, handler.AskCommand},
		{handler.CategoryNumber, handler.AskNumber},
		{handler.CategoryLocation, handler.AskLocation},
		{handler.CategoryRawString, handler.AskRawString},
		{handler.CategoryPassword, handler.AskPassword},
		{handler.CategoryPhoneNumber, handler.AskPhoneNumber},
		{handler.CategoryEmailAddress, handler.AskEmailAddress},
		{handler.CategoryGeneric, handler.AskGeneric},
	}
	for _, tt := range tests {
		cat := tt.category
		assert.Equal(t, tt.want, specialFor(&cat))
	}
}

func TestRecordingDelegate_ResetClearsLog(t *testing.T) {
	d := NewRecordingDelegate()
	d.Send("hi", nil)
	d.Reset()
	assert.Empty(t, d.Calls)
	assert.Equal(t, Recorded{}, d.Last())
}
