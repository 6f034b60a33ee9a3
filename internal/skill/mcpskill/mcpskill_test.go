package mcpskill

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascade-run/cascade/internal/handler"
)

func newUnattachedHandler() *Handler {
	return New("light1", "Kitchen Light", "/usr/bin/kitchen-light-mcp")
}

func TestNew_IdentifiesByDeviceID(t *testing.T) {
	h := newUnattachedHandler()
	assert.Equal(t, "mcp:light1", h.UniqueID())
	assert.Equal(t, 0, h.Priority())
	assert.Nil(t, h.Icon())
}

func TestInitialize_NeverWelcomes(t *testing.T) {
	h := newUnattachedHandler()
	reply, err := h.Initialize(context.Background(), nil, true)
	require.NoError(t, err)
	assert.Nil(t, reply)
}

func TestAnalyzeCommand_UnattachedIsOutOfDomain(t *testing.T) {
	h := newUnattachedHandler()
	in := handler.NewCommand("turn on the kitchen light", nil)

	result, err := h.AnalyzeCommand(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, handler.AnalysisOutOfDomain, result.Type)
}

func TestAnalyzeCommand_NonCommandInputIsOutOfDomain(t *testing.T) {
	h := newUnattachedHandler()
	in := handler.NewParsed([]string{"$dialogue @org.thingpedia.dialogue.transaction.execute;"}, nil, nil)

	result, err := h.AnalyzeCommand(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, handler.AnalysisOutOfDomain, result.Type)
}

func TestGetReply_DetachedIsServiceOutage(t *testing.T) {
	h := newUnattachedHandler()
	h.tools = []*mcp.Tool{{Name: "turn_on", Description: "turn on the light"}}
	analysis := handler.CommandAnalysisResult{Type: handler.AnalysisConfidentCommand, Utterance: "turn on the light"}

	_, err := h.GetReply(context.Background(), analysis)
	require.Error(t, err)
}

func TestGetReply_NoMatchingToolFallsBack(t *testing.T) {
	h := newUnattachedHandler()
	h.tools = []*mcp.Tool{{Name: "turn_on", Description: "turn on the light"}}

	analysis := handler.CommandAnalysisResult{Type: handler.AnalysisOutOfDomain, Utterance: "play some music"}
	reply, err := h.GetReply(context.Background(), analysis)
	require.NoError(t, err)
	require.Len(t, reply.Messages, 1)
	assert.Contains(t, reply.Messages[0].Text, "don't know how to do that")
	assert.True(t, reply.End)
}

func TestMatchTool_KeywordHitFromDescription(t *testing.T) {
	h := newUnattachedHandler()
	h.tools = []*mcp.Tool{
		{Name: "turn_on", Description: "turn on the kitchen light"},
		{Name: "set_thermostat", Description: "change the thermostat temperature"},
	}

	tool := h.matchTool("please turn on the kitchen light")
	require.NotNil(t, tool)
	assert.Equal(t, "turn_on", tool.Name)
}

func TestMatchTool_NoHitReturnsNil(t *testing.T) {
	h := newUnattachedHandler()
	h.tools = []*mcp.Tool{{Name: "turn_on", Description: "turn on the kitchen light"}}

	assert.Nil(t, h.matchTool("what time is it"))
}

func TestDetach_NoSessionIsNoop(t *testing.T) {
	h := newUnattachedHandler()
	assert.NoError(t, h.Detach())
}

func TestGetState_AlwaysNil(t *testing.T) {
	h := newUnattachedHandler()
	h.Reset()
	assert.Nil(t, h.GetState())
}
