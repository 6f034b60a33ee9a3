package program

import (
	"context"
	"fmt"

	"github.com/cascade-run/cascade/internal/handler"
	"github.com/cascade-run/cascade/internal/subdialogue"
)

// FillSlots walks ast's declared parameters and asks for whichever ones
// are Required and still missing a value, routing each through the
// sub-dialogue primitive its ValueCategory calls for (spec.md §4.4 item
// 2's per-category dispatch table) rather than a single generic Ask.
func FillSlots(ctx context.Context, s *subdialogue.Session, ast *handler.ProgramAST) error {
	for i := range ast.Params {
		p := &ast.Params[i]
		if p.HasValue || !p.Required {
			continue
		}
		value, err := fillOne(ctx, s, p)
		if err != nil {
			return err
		}
		p.Value = value
		p.HasValue = true
		if p.SaveToContext != "" {
			if err := s.Prefs.Set(p.SaveToContext, fmt.Sprint(value)); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveContact pages multiple LookupContact matches through
// choosePaged rather than discarding them behind a plain re-ask,
// mirroring ResolveDevice's numbered-choice pattern (spec.md §4.4 item
// 3). "None of the above" falls back to a fresh free-text Ask instead
// of a cancellation, since a missing contact isn't the same failure as
// a missing device.
func resolveContact(ctx context.Context, s *subdialogue.Session, name string, matches []handler.Contact) (any, error) {
	labels := make([]string, len(matches))
	for i, c := range matches {
		labels[i] = fmt.Sprintf("%s (%s)", c.Name, c.Value)
	}

	idx, err := choosePaged(ctx, s, fmt.Sprintf("Which %s do you mean?", name), labels)
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return subdialogue.Ask(ctx, s, handler.CategoryContact, fmt.Sprintf("What should %s be?", name))
	}
	return matches[idx].Value, nil
}

func fillOne(ctx context.Context, s *subdialogue.Session, p *handler.ProgramParam) (any, error) {
	prompt := fmt.Sprintf("What should %s be?", p.Name)
	switch p.Category {
	case handler.CategoryContact:
		matches := subdialogue.LookupContact(s, "", p.Name)
		switch len(matches) {
		case 0:
			return subdialogue.Ask(ctx, s, handler.CategoryContact, prompt)
		case 1:
			return matches[0].Value, nil
		default:
			return resolveContact(ctx, s, p.Name, matches)
		}

	case handler.CategoryLocation:
		loc, err := subdialogue.LookupLocation(ctx, s, p.Name, nil)
		if err != nil {
			return nil, err
		}
		return loc.DisplayName, nil

	case handler.CategoryPhoneNumber, handler.CategoryEmailAddress:
		return subdialogue.Ask(ctx, s, p.Category, prompt)

	default:
		if p.SaveToContext != "" {
			return subdialogue.ResolveUserContext(ctx, s, p.SaveToContext, true)
		}
		return subdialogue.Ask(ctx, s, p.Category, prompt)
	}
}
