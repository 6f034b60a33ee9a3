// Package program implements the formal-program handler (C4): the
// dialogue loop's largest and hardest handler. It turns a turn's
// UserInput into a typed program chain, fills missing slots, disambiguates
// among several matching devices, confirms the finished chain with the
// user, executes it, and renders the results.
//
// Grounded on the reference architecture's agent.HeadAgent.Process (fast-
// path pattern match → context build → model call → tool-call loop,
// generalized here to ingest → disambiguate/fill → confirm → execute) and
// planlib.Plan's Steps/Depends shape, which is exactly a formal program's
// chained-statement structure once "subagent step" is read as "device
// invocation."
package program

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/cascade-run/cascade/internal/agenterr"
	"github.com/cascade-run/cascade/internal/executor"
	"github.com/cascade-run/cascade/internal/handler"
	"github.com/cascade-run/cascade/internal/nlu"
	"github.com/cascade-run/cascade/internal/rulebook"
	"github.com/cascade-run/cascade/internal/subdialogue"
)

// Program is a chain of device invocations connected by ThingTalk-style
// "=>" composition: each step's declared outputs may feed the next step's
// undeclared inputs by name.
type Program struct {
	ID    string
	Steps []*handler.ProgramAST
}

// DeviceDirectory resolves the device instances available for a given
// kind, e.g. "com.twitter" -> ["twitter-foo", "twitter-bar"]. An external
// collaborator per spec.md §1(iii); Cascade only defines the shape it
// disambiguates against.
type DeviceDirectory interface {
	Devices(kind string) []string
	Categories() []string
	// Examples lists the example programs (as token-chain source text)
	// offered for a category during the makerule builder's third step.
	Examples(category string) []string
}

// Config wires the formal-program handler's collaborators, all narrow
// interfaces so tests can substitute fakes without a real database or
// network.
type Config struct {
	ID        string
	Priority  int
	Icon      string
	Principal string // the speaker this handler acts on behalf of

	Session   *subdialogue.Session
	Directory DeviceDirectory
	Executors *executor.Registry
	Rulebook  *rulebook.Rulebook
	NLU       *nlu.Client
	Locale    string

	// PreviewClient, when non-nil, is used to fetch and render a
	// description for an RDL result whose webCallback has none yet.
	// Left nil, RDL results are forwarded as the executor built them.
	PreviewClient    *http.Client
	PreviewUserAgent string
}

// Handler is the formal-program dialogue handler.
type Handler struct {
	cfg Config
}

// New creates a formal-program Handler from cfg.
func New(cfg Config) *Handler {
	return &Handler{cfg: cfg}
}

func (h *Handler) UniqueID() string { return h.cfg.ID }
func (h *Handler) Priority() int    { return h.cfg.Priority }

func (h *Handler) Icon() *string {
	if h.cfg.Icon == "" {
		return nil
	}
	return &h.cfg.Icon
}

// Initialize never shows a welcome message of its own; the loop's overall
// greeting (spec.md §4.8) is not this handler's concern.
func (h *Handler) Initialize(ctx context.Context, prevState any, showWelcome bool) (*handler.ReplyResult, error) {
	return nil, nil
}

// AnalyzeCommand recognizes the structural shapes a formal program can
// take — a Program-tagged input, a Parsed-tagged token array opening with
// "now"/"executor"/"policy" or the special:makerule token — without
// doing any of the actual (side-effectful) ingestion work. A bare
// utterance defers to NLU-backed classification at GetReply time rather
// than paying for a network round trip here, mirroring the reference's
// rule-then-model cascade: cheap pattern match first, model call only
// once a handler has already been chosen to run.
func (h *Handler) AnalyzeCommand(ctx context.Context, in handler.UserInput) (handler.CommandAnalysisResult, error) {
	switch in.Kind {
	case handler.UserInputProgram:
		return handler.CommandAnalysisResult{Type: handler.AnalysisConfidentCommand, Program: in.Program}, nil

	case handler.UserInputParsed:
		if bk, ok := handler.DecodeBookkeeping(in.Code); ok {
			if bk.Kind == handler.BookkeepingSpecial && bk.Special == handler.SpecialMakerule {
				return handler.CommandAnalysisResult{Type: handler.AnalysisConfidentCommand, Code: in.Code}, nil
			}
			// Every other bookkeeping shape (choice/answer/filter/...) is
			// only meaningful mid-dialogue, i.e. while this handler is
			// already suspended inside GetReply reading straight off the
			// queue — the arbiter never sees those turns at all, so this
			// handler must not claim them as a fresh command.
			return handler.CommandAnalysisResult{Type: handler.AnalysisOutOfDomain}, nil
		}
		if isProgramTokens(in.Code) {
			return handler.CommandAnalysisResult{Type: handler.AnalysisConfidentCommand, Code: in.Code, Entities: in.Entities}, nil
		}
		return handler.CommandAnalysisResult{Type: handler.AnalysisOutOfDomain}, nil

	default: // UserInputCommand
		return handler.CommandAnalysisResult{Type: handler.AnalysisNonconfidentCommand, Utterance: in.Utterance}, nil
	}
}

// isProgramTokens reports whether code opens a well-formed program token
// array: a trigger ("now"), a remote-executor prefix, or a permission
// policy prefix.
func isProgramTokens(code []string) bool {
	if len(code) == 0 {
		return false
	}
	if code[0] == "now" {
		return true
	}
	return handler.IsExecutorToken(code) || handler.IsPolicyToken(code)
}

// GetReply drives the winning turn to completion: ingest the program
// chain, resolve each step's device, fill missing slots, confirm with the
// user, and execute — suspending on subdialogue primitives as needed.
// Every collaborator failure becomes the fixed apology of spec.md §7
// rather than propagating a raw error to the loop, except cancellation
// (special:nevermind), which the loop needs to see in order to reset
// cleanly.
func (h *Handler) GetReply(ctx context.Context, analysis handler.CommandAnalysisResult) (*handler.ReplyResult, error) {
	if analysis.Type == handler.AnalysisConfidentCommand && analysis.Code != nil {
		if bk, ok := handler.DecodeBookkeeping(analysis.Code); ok && bk.Kind == handler.BookkeepingSpecial && bk.Special == handler.SpecialMakerule {
			return h.runMakerule(ctx)
		}
	}

	prog, err := h.ingest(ctx, analysis)
	if err != nil {
		return apologize(err, h.cfg.Icon), nil
	}

	if err := h.resolveChain(ctx, prog); err != nil {
		if agenterr.IsCancellation(err) {
			return nil, err
		}
		return apologize(err, h.cfg.Icon), nil
	}

	confirmed, err := Confirm(ctx, h.cfg.Session, prog, h.cfg.Locale)
	if err != nil {
		if agenterr.IsCancellation(err) {
			return nil, err
		}
		return apologize(err, h.cfg.Icon), nil
	}
	if !confirmed {
		return &handler.ReplyResult{
			Messages: []handler.ReplyMessage{handler.TextMessage("OK, never mind.", h.cfg.Icon)},
			End:      true,
		}, nil
	}

	if err := h.execute(ctx, prog); err != nil && !agenterr.IsCancellation(err) {
		// execute() already pushed a per-step apology through the
		// delegate for executor failures; a returned error here means
		// something upstream of execution itself broke.
		return apologize(err, h.cfg.Icon), nil
	}

	return &handler.ReplyResult{End: true}, nil
}

func (h *Handler) GetState() any { return nil }
func (h *Handler) Reset()        {}

func apologize(err error, icon string) *handler.ReplyResult {
	msg := "Sorry, I had an error processing your command."
	if ae, ok := asAppError(err); ok {
		msg = ae.UserMessage()
	}
	return &handler.ReplyResult{
		Messages: []handler.ReplyMessage{handler.TextMessage(msg, icon)},
		End:      true,
	}
}

func asAppError(err error) (*agenterr.AppError, bool) {
	ae, ok := err.(*agenterr.AppError)
	return ae, ok
}

func newProgramID() string {
	return uuid.New().String()
}

// resolveChain runs device disambiguation and slot filling for every step
// in prog, in order.
func (h *Handler) resolveChain(ctx context.Context, prog *Program) error {
	var upstream *handler.ProgramAST
	for _, step := range prog.Steps {
		if step.Executor != "" && step.Executor != "self" && step.Executor != h.cfg.Principal {
			granted, err := h.requestPermission(ctx, step.Executor, step)
			if err != nil {
				return err
			}
			if !granted {
				return agenterr.Cancelled("permission denied")
			}
		}
		if h.cfg.Directory != nil && step.DeviceID == "" {
			deviceID, err := ResolveDevice(ctx, h.cfg.Session, h.cfg.Directory, deviceKindOf(step))
			if err != nil {
				return err
			}
			step.DeviceID = deviceID
		}
		if upstream != nil {
			bindOutputs(upstream, step)
		}
		if err := FillSlots(ctx, h.cfg.Session, step); err != nil {
			return err
		}
		upstream = step
	}
	return nil
}

func deviceKindOf(ast *handler.ProgramAST) string {
	kind := strings.TrimPrefix(ast.Kind, "@")
	if i := strings.LastIndex(kind, "."); i >= 0 {
		return kind[:i]
	}
	return kind
}
