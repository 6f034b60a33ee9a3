package program

import (
	"github.com/cascade-run/cascade/internal/handler"
)

// buildRemoteProgram splits a `['executor', '=', USERNAME_x, ':', ...]`
// token array into the paired local and remote halves spec.md §4.4 item 8
// describes: a local "receive"/"monitor" AST that watches for the
// remote's result, and the remote-bound AST itself, tagged with its
// owning principal. Actual delivery to the remote principal is an
// external collaborator per spec.md §1(iii); Cascade only builds the
// paired ASTs and hands the remote half back to the caller to dispatch.
func buildRemoteProgram(code []string, entities map[string]any) (local, remote *handler.ProgramAST, principal string, err error) {
	if !handler.IsExecutorToken(code) {
		return nil, nil, "", parseErrorf("not a remote-executor program")
	}
	if len(code) < 4 || code[3] != ":" {
		return nil, nil, "", parseErrorf("malformed executor token")
	}
	resolved, ok := entities[code[2]].(string)
	if !ok || resolved == "" {
		return nil, nil, "", parseErrorf("unresolved remote principal %s", code[2])
	}
	principal = resolved

	rest := code[4:]
	steps, err := parseTokenChain(rest, entities)
	if err != nil {
		return nil, nil, "", err
	}
	if len(steps) == 0 {
		return nil, nil, "", parseErrorf("empty remote program")
	}

	remote = steps[0]
	remote.Executor = principal

	local = &handler.ProgramAST{
		Kind:       "@builtin.monitor",
		Executor:   "self",
		SourceText: "monitor " + remote.SourceText,
	}
	return local, remote, principal, nil
}

// ingestRemote wraps buildRemoteProgram for use as a Program ingestion
// path: the local monitor step runs first, so its output is available to
// downstream steps the way any other chained invocation's would be.
func (h *Handler) ingestRemote(code []string, entities map[string]any) (*Program, error) {
	local, remote, _, err := buildRemoteProgram(code, entities)
	if err != nil {
		return nil, err
	}
	return &Program{ID: newProgramID(), Steps: []*handler.ProgramAST{local, remote}}, nil
}
