package program

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascade-run/cascade/internal/handler"
)

func TestParseTokenChain_SingleInvocation(t *testing.T) {
	steps, err := parseTokenChain([]string{"now", "=>", "@com.xkcd.get_comic", "=>", "notify"}, nil)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "@com.xkcd.get_comic", steps[0].Kind)
}

func TestParseTokenChain_MultiStepPipeline(t *testing.T) {
	steps, err := parseTokenChain(
		[]string{"now", "=>", "@com.xkcd.get_comic", "=>", "@com.twitter.post_picture"},
		nil,
	)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "@com.xkcd.get_comic", steps[0].Kind)
	assert.Equal(t, "@com.twitter.post_picture", steps[1].Kind)
}

func TestParseTokenChain_ParamTokenWithEntity(t *testing.T) {
	steps, err := parseTokenChain(
		[]string{"now", "=>", "@com.twitter.post", "status=SLOT_0"},
		map[string]any{"SLOT_0": "hello world"},
	)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	require.Len(t, steps[0].Params, 1)
	assert.Equal(t, "status", steps[0].Params[0].Name)
	assert.True(t, steps[0].Params[0].HasValue)
	assert.Equal(t, "hello world", steps[0].Params[0].Value)
}

func TestIngest_ProgramTaggedAnalysisClonesAST(t *testing.T) {
	h := New(Config{})
	ast := &handler.ProgramAST{Kind: "@com.xkcd.get_comic"}
	prog, err := h.ingest(context.Background(), handler.CommandAnalysisResult{Program: ast})
	require.NoError(t, err)
	require.Len(t, prog.Steps, 1)
	assert.Equal(t, "@com.xkcd.get_comic", prog.Steps[0].Kind)
	assert.NotSame(t, ast, prog.Steps[0])
}

func TestIngest_EmptyTokensIsParseError(t *testing.T) {
	h := New(Config{})
	_, err := h.ingest(context.Background(), handler.CommandAnalysisResult{Code: []string{"now", "=>", "notify"}})
	require.Error(t, err)
}

func TestIngest_BareUtteranceWithoutNLUIsParseError(t *testing.T) {
	h := New(Config{})
	_, err := h.ingest(context.Background(), handler.CommandAnalysisResult{Utterance: "post the latest xkcd to twitter"})
	require.Error(t, err)
}
