package program

import (
	"context"

	"github.com/cascade-run/cascade/internal/handler"
	"github.com/cascade-run/cascade/internal/nlu"
)

func nluParseRequest(utterance, locale string) nlu.ParseRequest {
	return nlu.ParseRequest{Utterance: utterance, Locale: locale}
}

// ingest turns a winning turn's CommandAnalysisResult into a Program. It
// covers the three UserInput shapes spec.md §4.4 item 1 lists as entry
// points: an already-typed Program, a parsed token array opening with
// "now", and a bare utterance routed through NLU.
func (h *Handler) ingest(ctx context.Context, analysis handler.CommandAnalysisResult) (*Program, error) {
	switch {
	case analysis.Program != nil:
		return &Program{ID: newProgramID(), Steps: []*handler.ProgramAST{cloneAST(analysis.Program)}}, nil

	case analysis.Code != nil:
		return h.ingestTokens(ctx, analysis.Code, analysis.Entities)

	default:
		return h.ingestUtterance(ctx, analysis.Utterance)
	}
}

// ingestUtterance routes a bare utterance through the NLU service, then
// re-enters token ingestion with the returned program tokens. A missing
// or unreachable NLU client is a parse failure rather than a crash: the
// arbiter should not have handed this handler a bare utterance it cannot
// itself resolve, but GetReply must still degrade gracefully if it does.
func (h *Handler) ingestUtterance(ctx context.Context, utterance string) (*Program, error) {
	if h.cfg.NLU == nil || !h.cfg.NLU.IsAvailable() {
		return nil, parseErrorf("no natural language understanding service configured")
	}
	result, err := h.cfg.NLU.Parse(ctx, nluParseRequest(utterance, h.cfg.Locale))
	if err != nil {
		return nil, err
	}
	return h.ingestTokens(ctx, result.Code, result.Entities)
}

func (h *Handler) ingestTokens(ctx context.Context, code []string, entities map[string]any) (*Program, error) {
	if handler.IsExecutorToken(code) {
		return h.ingestRemote(code, entities)
	}
	steps, err := parseTokenChain(code, entities)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, parseErrorf("empty program")
	}
	return &Program{ID: newProgramID(), Steps: steps}, nil
}

// parseTokenChain walks a ThingTalk-lite token array of the shape
// `now => @kind.fn(param=value, ...) => @kind2.fn2(...) => notify` and
// produces one ProgramAST per `@kind.fn` invocation. Chained invocations
// share nothing but position; bindOutputs wires their parameters together
// once each step's device has been resolved.
func parseTokenChain(code []string, entities map[string]any) ([]*handler.ProgramAST, error) {
	var steps []*handler.ProgramAST
	var cur *handler.ProgramAST

	flush := func() {
		if cur != nil {
			steps = append(steps, cur)
			cur = nil
		}
	}

	for _, tok := range code {
		switch {
		case tok == "now", tok == "=>", tok == "return", tok == "notify":
			continue
		case len(tok) > 0 && tok[0] == '@':
			flush()
			cur = &handler.ProgramAST{Kind: tok, SourceText: tok}
		case cur != nil:
			applyParamToken(cur, tok, entities)
		}
	}
	flush()
	return steps, nil
}

// applyParamToken folds one `param=value` or `param:SLOT_x` token into
// ast's Params, tagging entities-carried values as already resolved and
// SLOT_x placeholders as still-required so slot filling knows which
// parameters need a subdialogue turn.
func applyParamToken(ast *handler.ProgramAST, tok string, entities map[string]any) {
	name, value, ok := splitParamToken(tok)
	if !ok {
		return
	}
	p := handler.ProgramParam{Name: name, Category: handler.CategoryGeneric, Required: true}
	if v, ok := entities[value]; ok {
		p.Value = v
		p.HasValue = true
	} else if value != "" {
		p.Value = value
		p.HasValue = true
	}
	ast.Params = append(ast.Params, p)
}

func splitParamToken(tok string) (name, value string, ok bool) {
	for i := 0; i < len(tok); i++ {
		if tok[i] == '=' {
			return tok[:i], tok[i+1:], true
		}
	}
	return "", "", false
}

func cloneAST(ast *handler.ProgramAST) *handler.ProgramAST {
	cp := *ast
	cp.Params = append([]handler.ProgramParam(nil), ast.Params...)
	cp.Filters = append([]handler.Filter(nil), ast.Filters...)
	return &cp
}
