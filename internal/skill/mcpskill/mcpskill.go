// Package mcpskill adapts an external MCP (Model Context Protocol) tool
// server into a handler.Handler: one dynamic skill handler per discovered
// "org.thingpedia.dialogue-handler" device (spec.md §4.5), attached when
// the device-view reports it added and detached when removed.
//
// AnalyzeCommand asks the MCP server's tool catalog whether any tool
// plausibly matches the utterance (a keyword pass over each tool's
// description, the same shape as skill.FAQHandler's matcher); GetReply
// calls the matched tool and renders its first text content block.
package mcpskill

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cascade-run/cascade/internal/agenterr"
	"github.com/cascade-run/cascade/internal/handler"
)

// Handler adapts one MCP tool server into handler.Handler.
type Handler struct {
	id       string
	priority int
	icon     string
	command  string

	mu      sync.Mutex
	client  *mcp.Client
	session *mcp.ClientSession
	tools   []*mcp.Tool
}

// New creates an unattached Handler for the device at deviceID, launched
// via command (a process that speaks the MCP stdio protocol).
func New(deviceID, name, command string) *Handler {
	return &Handler{
		id:       "mcp:" + deviceID,
		priority: 0,
		icon:     "",
		command:  command,
	}
}

// Attach launches the MCP server process and fetches its tool catalog.
// Called when the device view reports the device added.
func (h *Handler) Attach(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	client := mcp.NewClient(&mcp.Implementation{Name: "cascade", Version: "1.0.0"}, nil)
	transport := &mcp.CommandTransport{Command: exec.Command(h.command)}

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return agenterr.NewBuilder(agenterr.CodeServiceUnreachable, fmt.Sprintf("connect to skill %s: %v", h.id, err)).
			Temporary().Build()
	}

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		session.Close()
		return agenterr.Wrap(err, agenterr.CodeServiceUnreachable, "list tools", agenterr.CategoryServiceOutage)
	}

	h.client = client
	h.session = session
	h.tools = tools.Tools
	return nil
}

// Detach closes the MCP session. Called when the device view reports the
// device removed.
func (h *Handler) Detach() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session == nil {
		return nil
	}
	err := h.session.Close()
	h.session = nil
	h.tools = nil
	return err
}

func (h *Handler) UniqueID() string { return h.id }
func (h *Handler) Priority() int    { return h.priority }

func (h *Handler) Icon() *string {
	if h.icon == "" {
		return nil
	}
	return &h.icon
}

func (h *Handler) Initialize(ctx context.Context, prevState any, showWelcome bool) (*handler.ReplyResult, error) {
	return nil, nil
}

// AnalyzeCommand matches the utterance against the attached tool
// catalog's descriptions.
func (h *Handler) AnalyzeCommand(ctx context.Context, in handler.UserInput) (handler.CommandAnalysisResult, error) {
	if in.Kind != handler.UserInputCommand {
		return handler.CommandAnalysisResult{Type: handler.AnalysisOutOfDomain}, nil
	}

	h.mu.Lock()
	attached := h.session != nil
	h.mu.Unlock()
	if !attached {
		return handler.CommandAnalysisResult{Type: handler.AnalysisOutOfDomain}, nil
	}

	if h.matchTool(in.Utterance) == nil {
		return handler.CommandAnalysisResult{Type: handler.AnalysisOutOfDomain, Utterance: in.Utterance}, nil
	}
	return handler.CommandAnalysisResult{Type: handler.AnalysisConfidentCommand, Utterance: in.Utterance}, nil
}

// GetReply calls the matched tool and renders its text content.
func (h *Handler) GetReply(ctx context.Context, analysis handler.CommandAnalysisResult) (*handler.ReplyResult, error) {
	tool := h.matchTool(analysis.Utterance)
	if tool == nil {
		return &handler.ReplyResult{
			Messages: []handler.ReplyMessage{handler.TextMessage("Sorry, I don't know how to do that yet.", h.icon)},
			End:      true,
		}, nil
	}

	h.mu.Lock()
	session := h.session
	h.mu.Unlock()
	if session == nil {
		return nil, agenterr.NewBuilder(agenterr.CodeServiceUnreachable, "skill "+h.id+" detached").
			Category(agenterr.CategoryServiceOutage).Build()
	}

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      tool.Name,
		Arguments: map[string]any{"query": analysis.Utterance},
	})
	if err != nil {
		return nil, agenterr.Wrap(err, agenterr.CodeExecutorFailed, "call "+tool.Name, agenterr.CategoryExecutor)
	}

	text := firstTextContent(result)
	return &handler.ReplyResult{
		Messages: []handler.ReplyMessage{handler.TextMessage(text, h.icon)},
		End:      true,
	}, nil
}

func (h *Handler) GetState() any { return nil }
func (h *Handler) Reset()        {}

func (h *Handler) matchTool(utterance string) *mcp.Tool {
	h.mu.Lock()
	tools := h.tools
	h.mu.Unlock()

	lower := strings.ToLower(utterance)
	for _, tool := range tools {
		for _, word := range strings.Fields(strings.ToLower(tool.Description)) {
			if len(word) > 3 && strings.Contains(lower, word) {
				return tool
			}
		}
	}
	return nil
}

func firstTextContent(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
