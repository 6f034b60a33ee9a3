package program

import (
	"context"
	"strings"

	"github.com/cascade-run/cascade/internal/format"
	"github.com/cascade-run/cascade/internal/handler"
	"github.com/cascade-run/cascade/internal/subdialogue"
)

// Confirm renders every step of prog through format.ConfirmProgram and
// asks a single yes/no for the whole chain, per spec.md §4.4 item 4 — a
// multi-step program is confirmed once, not per step, since a partial
// "yes to step 1, no to step 2" chain has no defined execution semantics.
func Confirm(ctx context.Context, s *subdialogue.Session, prog *Program, locale string) (bool, error) {
	clauses := make([]string, len(prog.Steps))
	for i, step := range prog.Steps {
		clauses[i] = strings.TrimSuffix(format.ConfirmProgram(step, locale), "?")
	}
	prompt := "OK, " + strings.Join(clauses, ", then ") + "?"

	answer, err := subdialogue.Ask(ctx, s, handler.CategoryYesNo, prompt)
	if err != nil {
		return false, err
	}
	ok, _ := answer.(bool)
	return ok, nil
}
