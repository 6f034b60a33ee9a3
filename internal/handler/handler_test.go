package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandler struct {
	id       string
	resetCnt int
}

func (s *stubHandler) UniqueID() string { return s.id }
func (s *stubHandler) Priority() int    { return 0 }
func (s *stubHandler) Icon() *string    { return nil }
func (s *stubHandler) Initialize(ctx context.Context, prevState any, showWelcome bool) (*ReplyResult, error) {
	return nil, nil
}
func (s *stubHandler) AnalyzeCommand(ctx context.Context, input UserInput) (CommandAnalysisResult, error) {
	return CommandAnalysisResult{}, nil
}
func (s *stubHandler) GetReply(ctx context.Context, analysis CommandAnalysisResult) (*ReplyResult, error) {
	return nil, nil
}
func (s *stubHandler) GetState() any { return nil }
func (s *stubHandler) Reset()        { s.resetCnt++ }

func TestRegistry_RegisterPreservesOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubHandler{id: "faq"})
	r.Register(&stubHandler{id: "makerule"})
	r.Register(&stubHandler{id: "weather-skill"})

	ids := make([]string, 0, 3)
	for _, h := range r.All() {
		ids = append(ids, h.UniqueID())
	}
	assert.Equal(t, []string{"faq", "makerule", "weather-skill"}, ids)
}

func TestRegistry_RegisterReplacesInPlace(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubHandler{id: "faq"})
	r.Register(&stubHandler{id: "weather-skill"})

	replacement := &stubHandler{id: "faq"}
	r.Register(replacement)

	ids := make([]string, 0, 2)
	for _, h := range r.All() {
		ids = append(ids, h.UniqueID())
	}
	assert.Equal(t, []string{"faq", "weather-skill"}, ids)

	got, ok := r.Get("faq")
	require.True(t, ok)
	assert.Same(t, replacement, got)
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubHandler{id: "faq"})
	r.Register(&stubHandler{id: "weather-skill"})

	r.Unregister("faq")

	_, ok := r.Get("faq")
	assert.False(t, ok)
	assert.Len(t, r.All(), 1)

	// unregistering an unknown id is a no-op
	r.Unregister("does-not-exist")
	assert.Len(t, r.All(), 1)
}

func TestRegistry_ResetAll(t *testing.T) {
	r := NewRegistry()
	a := &stubHandler{id: "a"}
	b := &stubHandler{id: "b"}
	r.Register(a)
	r.Register(b)

	r.ResetAll()

	assert.Equal(t, 1, a.resetCnt)
	assert.Equal(t, 1, b.resetCnt)
}
