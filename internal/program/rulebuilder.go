package program

import (
	"context"

	"github.com/cascade-run/cascade/internal/agenterr"
	"github.com/cascade-run/cascade/internal/handler"
	"github.com/cascade-run/cascade/internal/subdialogue"
)

// runMakerule drives the guided rule builder of spec.md §4.4 item 6:
// category, then device, then an example command, then an optional
// filter, then a final "run this?" confirmation. Every step re-uses
// ResolveDevice's paging so "Back" and "More…" behave identically to
// ordinary device disambiguation; special:nevermind unwinds the whole
// builder via the usual cancellation path.
func (h *Handler) runMakerule(ctx context.Context) (*handler.ReplyResult, error) {
	if h.cfg.Directory == nil {
		return apologize(parseErrorf("no device directory configured"), h.cfg.Icon), nil
	}

	category, err := h.pickMakeruleCategory(ctx)
	if err != nil {
		return unwindMakerule(err, h.cfg.Icon)
	}

	deviceID, err := ResolveDevice(ctx, h.cfg.Session, h.cfg.Directory, category)
	if err != nil {
		return unwindMakerule(err, h.cfg.Icon)
	}

	example, err := h.pickMakeruleExample(ctx, category)
	if err != nil {
		return unwindMakerule(err, h.cfg.Icon)
	}

	ast := &handler.ProgramAST{Kind: "@" + example, DeviceID: deviceID, SourceText: example}

	wantsFilter, err := subdialogue.Ask(ctx, h.cfg.Session, handler.CategoryYesNo, "Add a filter to this rule?")
	if err != nil {
		return unwindMakerule(err, h.cfg.Icon)
	}
	var filters []handler.Filter
	if ok, _ := wantsFilter.(bool); ok {
		filters, err = h.buildMakeruleFilters(ctx)
		if err != nil {
			return unwindMakerule(err, h.cfg.Icon)
		}
	}

	confirmed, err := subdialogue.Ask(ctx, h.cfg.Session, handler.CategoryYesNo, "Install this rule: "+example+"?")
	if err != nil {
		return unwindMakerule(err, h.cfg.Icon)
	}
	if ok, _ := confirmed.(bool); !ok {
		return &handler.ReplyResult{
			Messages: []handler.ReplyMessage{handler.TextMessage("OK, not installing that rule.", h.cfg.Icon)},
			End:      true,
		}, nil
	}

	if h.cfg.Rulebook != nil {
		if _, err := h.cfg.Rulebook.Install(ctx, "makerule", h.cfg.Principal, category, ast, filters); err != nil {
			return apologize(err, h.cfg.Icon), nil
		}
	}
	return &handler.ReplyResult{
		Messages: []handler.ReplyMessage{handler.TextMessage("Done, I installed that rule.", h.cfg.Icon)},
		End:      true,
	}, nil
}

// pickMakeruleCategory pages through the directory's category list the
// same way ResolveDevice pages through device instances, so a large
// category list degrades the same way a large device list does.
func (h *Handler) pickMakeruleCategory(ctx context.Context) (string, error) {
	categories := h.cfg.Directory.Categories()
	if len(categories) == 0 {
		return "", parseErrorf("no categories available")
	}
	if len(categories) == 1 {
		return categories[0], nil
	}
	idx, err := pagedChoice(ctx, h.cfg.Session, "What kind of rule?", categories)
	if err != nil {
		return "", err
	}
	return categories[idx], nil
}

func (h *Handler) pickMakeruleExample(ctx context.Context, category string) (string, error) {
	examples := h.cfg.Directory.Examples(category)
	if len(examples) == 0 {
		return "", parseErrorf("no example programs for %s", category)
	}
	if len(examples) == 1 {
		return examples[0], nil
	}
	idx, err := pagedChoice(ctx, h.cfg.Session, "Which one?", examples)
	if err != nil {
		return "", err
	}
	return examples[idx], nil
}

// buildMakeruleFilters mirrors subdialogue's internal filter builder in
// shape (field, operator, value, repeat) since that helper is private to
// its own sub-dialogue primitive and the rule builder needs its own
// "install this?" step around the collected filters rather than the
// "Install this rule?" step AskForPermission runs after buildFilters.
func (h *Handler) buildMakeruleFilters(ctx context.Context) ([]handler.Filter, error) {
	var filters []handler.Filter
	for {
		field, err := subdialogue.Ask(ctx, h.cfg.Session, handler.CategoryRawString, "Filter on which field?")
		if err != nil {
			return nil, err
		}
		operator, err := subdialogue.Ask(ctx, h.cfg.Session, handler.CategoryRawString, "Comparison (==, =~, >, <)?")
		if err != nil {
			return nil, err
		}
		value, err := subdialogue.Ask(ctx, h.cfg.Session, handler.CategoryRawString, "Value?")
		if err != nil {
			return nil, err
		}
		filters = append(filters, handler.Filter{Field: field.(string), Operator: operator.(string), Value: value})

		more, err := subdialogue.Ask(ctx, h.cfg.Session, handler.CategoryYesNo, "Add another filter?")
		if err != nil {
			return nil, err
		}
		if ok, _ := more.(bool); !ok {
			return filters, nil
		}
	}
}

// pagedChoice is ResolveDevice's paging loop generalized to any string
// list, used by the makerule builder's category/example steps. Unlike
// choosePaged it appends no "None of the above" entry.
func pagedChoice(ctx context.Context, s *subdialogue.Session, prompt string, items []string) (int, error) {
	page := 0
	for {
		start := page * pageSize
		end := start + pageSize
		if end > len(items) {
			end = len(items)
		}
		choices := append([]string(nil), items[start:end]...)
		hasMore := end < len(items)
		hasBack := page > 0
		if hasBack {
			choices = append(choices, "Back")
		}
		if hasMore {
			choices = append(choices, "More…")
		}

		idx, err := subdialogue.AskChoices(ctx, s, prompt, choices)
		if err != nil {
			return -1, err
		}

		dataCount := end - start
		switch {
		case idx < dataCount:
			return start + idx, nil
		case hasBack && idx == dataCount:
			page--
		case hasMore && idx == dataCount+boolIdx(hasBack):
			page++
		}
	}
}

func unwindMakerule(err error, icon string) (*handler.ReplyResult, error) {
	if agenterr.IsCancellation(err) {
		return nil, err
	}
	return apologize(err, icon), nil
}
