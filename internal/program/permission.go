package program

import (
	"context"

	"github.com/cascade-run/cascade/internal/handler"
	"github.com/cascade-run/cascade/internal/rulebook"
	"github.com/cascade-run/cascade/internal/subdialogue"
)

// requestPermission checks for a standing grant before ever prompting:
// rulebook.FindGrant against the caller's own principal, then the "*"
// wildcard (spec.md §4.4 item 7's "always-from-anyone" scope). Only when
// neither exists does it fall through to the consent card, installing
// whatever the user grants (except a bare one-time "yes-once", which
// leaves no standing rule behind).
func (h *Handler) requestPermission(ctx context.Context, principal string, ast *handler.ProgramAST) (bool, error) {
	if h.cfg.Rulebook != nil {
		if rule, err := h.cfg.Rulebook.FindGrant(ctx, principal, deviceKindOf(ast)); err == nil {
			_ = h.cfg.Rulebook.RecordUsage(ctx, rule.ID)
			return true, nil
		} else if err != rulebook.ErrRuleNotFound {
			return false, err
		}
		if rule, err := h.cfg.Rulebook.FindGrant(ctx, "*", deviceKindOf(ast)); err == nil {
			_ = h.cfg.Rulebook.RecordUsage(ctx, rule.ID)
			return true, nil
		} else if err != rulebook.ErrRuleNotFound {
			return false, err
		}
	}

	decision, err := subdialogue.AskForPermission(ctx, h.cfg.Session, principal, ast.DeviceID, ast)
	if err != nil {
		return false, err
	}
	if !decision.Granted {
		return false, nil
	}

	if h.cfg.Rulebook != nil && decision.Scope != "yes-once" {
		owner := principal
		if decision.Scope == "always-from-anyone" {
			owner = "*"
		}
		if _, err := h.cfg.Rulebook.Install(ctx, "permission", owner, deviceKindOf(ast), ast, decision.Filters); err != nil {
			return false, err
		}
	}
	return true, nil
}
