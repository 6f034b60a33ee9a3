package arbiter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascade-run/cascade/internal/handler"
)

// stubHandler returns a fixed analysis regardless of input, for testing
// the arbiter's selection logic in isolation from real handlers.
type stubHandler struct {
	id       string
	priority int
	analysis handler.CommandAnalysisResult
	err      error
}

func (s *stubHandler) UniqueID() string { return s.id }
func (s *stubHandler) Priority() int    { return s.priority }
func (s *stubHandler) Icon() *string    { return nil }
func (s *stubHandler) Initialize(ctx context.Context, prevState any, showWelcome bool) (*handler.ReplyResult, error) {
	return nil, nil
}
func (s *stubHandler) AnalyzeCommand(ctx context.Context, in handler.UserInput) (handler.CommandAnalysisResult, error) {
	return s.analysis, s.err
}
func (s *stubHandler) GetReply(ctx context.Context, analysis handler.CommandAnalysisResult) (*handler.ReplyResult, error) {
	return nil, nil
}
func (s *stubHandler) GetState() any { return nil }
func (s *stubHandler) Reset()        {}

func withType(id string, t handler.AnalysisType) *stubHandler {
	return &stubHandler{id: id, analysis: handler.CommandAnalysisResult{Type: t}}
}

func TestSelect_R1_StopWinsRegardlessOfConfidence(t *testing.T) {
	handlers := []handler.Handler{
		withType("program", handler.AnalysisConfidentCommand),
		withType("bookkeeping", handler.AnalysisStop),
	}
	winner, analysis, ok := Select(context.Background(), handlers, handler.UserInput{}, "")
	require.True(t, ok)
	assert.Equal(t, "bookkeeping", winner.UniqueID())
	assert.Equal(t, handler.AnalysisStop, analysis.Type)
}

func TestSelect_R1_DebugWins(t *testing.T) {
	handlers := []handler.Handler{
		withType("program", handler.AnalysisConfidentCommand),
		withType("bookkeeping", handler.AnalysisDebug),
	}
	winner, _, ok := Select(context.Background(), handlers, handler.UserInput{}, "")
	require.True(t, ok)
	assert.Equal(t, "bookkeeping", winner.UniqueID())
}

func TestSelect_R2_HighestConfidenceTierWins(t *testing.T) {
	handlers := []handler.Handler{
		withType("faq", handler.AnalysisNonconfidentCommand),
		withType("program", handler.AnalysisConfidentCommand),
	}
	winner, _, ok := Select(context.Background(), handlers, handler.UserInput{}, "")
	require.True(t, ok)
	assert.Equal(t, "program", winner.UniqueID())
}

func TestSelect_R3_FollowupOnlyFromCurrentHandler(t *testing.T) {
	handlers := []handler.Handler{
		withType("program", handler.AnalysisConfidentFollowup),
		withType("faq", handler.AnalysisNonconfidentCommand),
	}
	winner, _, ok := Select(context.Background(), handlers, handler.UserInput{}, "faq")
	require.True(t, ok)
	assert.Equal(t, "faq", winner.UniqueID(), "program's followup is ineligible since program isn't current")
}

func TestSelect_R4_HigherPriorityWinsTie(t *testing.T) {
	low := &stubHandler{id: "low", priority: 1, analysis: handler.CommandAnalysisResult{Type: handler.AnalysisConfidentCommand}}
	high := &stubHandler{id: "high", priority: 5, analysis: handler.CommandAnalysisResult{Type: handler.AnalysisConfidentCommand}}
	winner, _, ok := Select(context.Background(), []handler.Handler{low, high}, handler.UserInput{}, "")
	require.True(t, ok)
	assert.Equal(t, "high", winner.UniqueID())
}

func TestSelect_R4_CurrentHandlerWinsPriorityTie(t *testing.T) {
	a := &stubHandler{id: "a", priority: 1, analysis: handler.CommandAnalysisResult{Type: handler.AnalysisConfidentCommand}}
	b := &stubHandler{id: "b", priority: 1, analysis: handler.CommandAnalysisResult{Type: handler.AnalysisConfidentCommand}}
	winner, _, ok := Select(context.Background(), []handler.Handler{a, b}, handler.UserInput{}, "b")
	require.True(t, ok)
	assert.Equal(t, "b", winner.UniqueID())
}

func TestSelect_R4_FirstReporterWinsOtherwise(t *testing.T) {
	a := &stubHandler{id: "a", priority: 1, analysis: handler.CommandAnalysisResult{Type: handler.AnalysisConfidentCommand}}
	b := &stubHandler{id: "b", priority: 1, analysis: handler.CommandAnalysisResult{Type: handler.AnalysisConfidentCommand}}
	winner, _, ok := Select(context.Background(), []handler.Handler{a, b}, handler.UserInput{}, "")
	require.True(t, ok)
	assert.Equal(t, "a", winner.UniqueID())
}

func TestSelect_R5_NoHandlerBeatsOutOfDomain(t *testing.T) {
	handlers := []handler.Handler{
		withType("program", handler.AnalysisOutOfDomain),
		withType("faq", handler.AnalysisOutOfDomain),
	}
	_, _, ok := Select(context.Background(), handlers, handler.UserInput{}, "")
	assert.False(t, ok)
}

func TestSelect_OpenQuestion1_TwoNonCurrentFollowupsResolveToR5(t *testing.T) {
	handlers := []handler.Handler{
		withType("a", handler.AnalysisConfidentFollowup),
		withType("b", handler.AnalysisConfidentFollowup),
	}
	_, _, ok := Select(context.Background(), handlers, handler.UserInput{}, "current-is-neither")
	assert.False(t, ok, "neither non-current followup applies; arbiter must fall to R5, not first-reporter")
}

func TestSelect_HandlerErrorIsSkippedNotFatal(t *testing.T) {
	broken := &stubHandler{id: "broken", err: assert.AnError}
	fine := withType("fine", handler.AnalysisConfidentCommand)
	winner, _, ok := Select(context.Background(), []handler.Handler{broken, fine}, handler.UserInput{}, "")
	require.True(t, ok)
	assert.Equal(t, "fine", winner.UniqueID())
}
