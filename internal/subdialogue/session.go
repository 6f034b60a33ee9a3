// Package subdialogue implements the multi-turn primitives of spec.md
// §4.7 (C7): ask, askChoices, askQuestion, interactiveConfigure,
// askForPermission, lookupContact, lookupLocation, resolveUserContext.
// Each suspends on the loop's user-input queue except lookupContact and
// lookupLocation's network leg, which return immediately.
//
// Grounded on the reference architecture's agent/streaming.go suspend/
// resume idiom (a processor that blocks waiting for the next chunk and
// resumes with accumulated state), adapted from streaming-response
// iteration to queue-suspension: instead of waiting on a model stream,
// each primitive here waits on Session.Queue.Pop.
package subdialogue

import (
	"context"
	"strconv"
	"strings"

	"github.com/cascade-run/cascade/internal/agenterr"
	"github.com/cascade-run/cascade/internal/delegate"
	"github.com/cascade-run/cascade/internal/format"
	"github.com/cascade-run/cascade/internal/handler"
	"github.com/cascade-run/cascade/internal/lookup"
	"github.com/cascade-run/cascade/internal/prefs"
	"github.com/cascade-run/cascade/internal/queue"
)

// Session is the narrow "loop capabilities" object of spec.md §9: the
// only thing a handler (and, transitively, a sub-dialogue primitive)
// holds a reference to. It exposes just enough of the loop to suspend and
// resume, never the loop itself, so there is no ownership cycle.
type Session struct {
	Queue    *queue.FIFO
	Delegate delegate.Delegate
	Prefs    prefs.Preferences
	Geocoder *lookup.Geocoder
	Contacts []handler.Contact
	Icon     string
}

// nextAnswer pops the next user-input item and decodes special:nevermind
// into a Cancellation, per spec.md §5: "special:nevermind... injects
// cancellation into the user flow." Non-user-input items should not
// arrive here — notifications only interleave in the loop's default
// state — so one is skipped rather than treated as an answer.
func (s *Session) nextAnswer(ctx context.Context) (handler.UserInput, error) {
	for {
		item, err := s.Queue.Pop(ctx)
		if err != nil {
			return handler.UserInput{}, err
		}
		if item.Kind != handler.QueueUserInput {
			continue
		}
		in := item.Command
		if bk, ok := handler.DecodeBookkeeping(in.Code); ok && bk.Kind == handler.BookkeepingSpecial && bk.Special == handler.SpecialNevermind {
			delegate.Emit(s.Delegate, &handler.ReplyResult{
				Messages: []handler.ReplyMessage{handler.TextMessage(format.NevermindApology(), s.Icon)},
			})
			return handler.UserInput{}, agenterr.Cancelled("special:nevermind")
		}
		return in, nil
	}
}

func (s *Session) prompt(category handler.ValueCategory, text string) {
	delegate.Emit(s.Delegate, &handler.ReplyResult{
		Messages:  []handler.ReplyMessage{handler.TextMessage(text, s.Icon)},
		Expecting: &category,
	})
}

// Ask sends prompt with an AskSpecial derived from category and blocks
// until a matching UserInput arrives, coercing it to a Go value shaped by
// category. Unrecognized yes/no answers are re-prompted with "Yes what?"
// and keep expecting YesNo (spec.md §8's boundary behavior) rather than
// falling through to the arbiter as an out-of-domain command.
func Ask(ctx context.Context, s *Session, category handler.ValueCategory, promptText string) (any, error) {
	s.prompt(category, promptText)
	for {
		in, err := s.nextAnswer(ctx)
		if err != nil {
			return nil, err
		}

		if bk, ok := handler.DecodeBookkeeping(in.Code); ok && bk.Kind == handler.BookkeepingAnswer {
			return coerce(category, bk.Slot)
		}

		if category == handler.CategoryYesNo {
			yn, ok := coerceYesNo(in.Utterance)
			if !ok {
				s.prompt(handler.CategoryYesNo, "Yes what?")
				continue
			}
			return yn, nil
		}

		return coerce(category, in.Utterance)
	}
}

func coerceYesNo(utterance string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(utterance)) {
	case "yes", "yeah", "yep", "sure", "ok", "okay":
		return true, true
	case "no", "nope", "nah":
		return false, true
	default:
		return false, false
	}
}

func coerce(category handler.ValueCategory, raw string) (any, error) {
	switch category {
	case handler.CategoryYesNo:
		yn, ok := coerceYesNo(raw)
		if !ok {
			return nil, agenterr.NewBuilder(agenterr.CodeParseFailed, "expected yes or no").
				Category(agenterr.CategoryParse).Build()
		}
		return yn, nil
	case handler.CategoryNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, agenterr.NewBuilder(agenterr.CodeParseFailed, "expected a number").
				Category(agenterr.CategoryParse).Wrap(err).Build()
		}
		return n, nil
	default:
		return raw, nil
	}
}

// AskChoices presents choices (already numbered by the caller — spec.md
// §4.4's disambiguation owns numbering) and blocks until a Choice{i} with
// 0 <= i < len(choices) is received. A choice out of range is
// re-prompted rather than accepted.
func AskChoices(ctx context.Context, s *Session, promptText string, choices []string) (int, error) {
	category := handler.CategoryChoice
	messages := make([]handler.ReplyMessage, 0, len(choices)+1)
	messages = append(messages, handler.TextMessage(promptText, s.Icon))
	for i, c := range choices {
		messages = append(messages, handler.ChoiceMessage(i, c, c))
	}
	delegate.Emit(s.Delegate, &handler.ReplyResult{Messages: messages, Expecting: &category})

	for {
		in, err := s.nextAnswer(ctx)
		if err != nil {
			return -1, err
		}
		bk, ok := handler.DecodeBookkeeping(in.Code)
		if !ok || bk.Kind != handler.BookkeepingChoice || bk.Choice < 0 || bk.Choice >= len(choices) {
			s.prompt(category, "Please pick one of the options above.")
			continue
		}
		return bk.Choice, nil
	}
}

// AskQuestion is Ask specialized for a skill-scoped follow-up question
// whose expected shape is a ValueCategory named by the caller (spec.md
// §4.7's `askQuestion(skill, type, prompt)`); skill is carried only for
// logging since the loop-capabilities Session has no per-skill routing of
// its own.
func AskQuestion(ctx context.Context, s *Session, skill string, category handler.ValueCategory, promptText string) (any, error) {
	return Ask(ctx, s, category, promptText)
}

// InteractiveConfigure walks a device-specific configuration flow to
// completion. Cascade has no device-specific OAuth/pairing UI of its own
// (spec.md §1(iii) places individual skill OAuth flows out of scope), so
// this primitive degrades to a single yes/no confirmation that the
// (externally driven) configuration finished, cancelling on nevermind
// exactly like every other primitive.
func InteractiveConfigure(ctx context.Context, s *Session, kind string) error {
	confirmed, err := Ask(ctx, s, handler.CategoryYesNo, "Configuration complete?")
	if err != nil {
		return err
	}
	if ok, _ := confirmed.(bool); !ok {
		return agenterr.Cancelled("interactiveConfigure: user declined")
	}
	return nil
}

// PermissionDecision is the granted or refused outcome of AskForPermission.
type PermissionDecision struct {
	Granted bool
	Scope   string // "yes-once", "always-from-anyone", "always-from-principal", "only-if"
	Filters []handler.Filter
}

// AskForPermission renders the five-option consent card of spec.md §4.4
// item 7 and blocks for a decision. "only-if" recurses into the filter
// builder (via buildFilters) and then a yes/no confirmation; "no" loops
// back to the card. A queue cancellation during the card is treated as
// equivalent to "no" per spec.md §9's third open question — best-effort
// and not propagated further; nothing is logged.
func AskForPermission(ctx context.Context, s *Session, principal, deviceID string, program *handler.ProgramAST) (*PermissionDecision, error) {
	prose := format.ConfirmProgram(program, "en")
	choices := []string{"Yes, just this once", "Always allow from anyone", "Always allow from " + principal, "No", "Only if..."}

	for {
		idx, err := AskChoices(ctx, s, principal+" wants to "+prose, choices)
		if err != nil {
			if agenterr.IsCancellation(err) {
				return &PermissionDecision{Granted: false}, nil
			}
			return nil, err
		}

		switch idx {
		case 0:
			return &PermissionDecision{Granted: true, Scope: "yes-once"}, nil
		case 1:
			return &PermissionDecision{Granted: true, Scope: "always-from-anyone"}, nil
		case 2:
			return &PermissionDecision{Granted: true, Scope: "always-from-principal"}, nil
		case 3:
			return &PermissionDecision{Granted: false}, nil
		case 4:
			filters, err := buildFilters(ctx, s)
			if err != nil {
				return nil, err
			}
			confirmed, err := Ask(ctx, s, handler.CategoryYesNo, "Install this rule?")
			if err != nil {
				return nil, err
			}
			if ok, _ := confirmed.(bool); ok {
				return &PermissionDecision{Granted: true, Scope: "only-if", Filters: filters}, nil
			}
			// "no" loops back to the consent card.
			continue
		}
	}
}

// buildFilters walks a single-round conjunctive filter builder: field,
// operator, value, repeated until the user answers "no" to "add another
// filter?". Composed in the order the user supplies them, matching
// spec.md §4.4's "filters composed conjunctively in supplied order."
func buildFilters(ctx context.Context, s *Session) ([]handler.Filter, error) {
	var filters []handler.Filter
	for {
		field, err := Ask(ctx, s, handler.CategoryRawString, "Filter on which field?")
		if err != nil {
			return nil, err
		}
		operator, err := Ask(ctx, s, handler.CategoryRawString, "Comparison (==, =~, >, <)?")
		if err != nil {
			return nil, err
		}
		value, err := Ask(ctx, s, handler.CategoryRawString, "Value?")
		if err != nil {
			return nil, err
		}
		filters = append(filters, handler.Filter{
			Field:    field.(string),
			Operator: operator.(string),
			Value:    value,
		})

		more, err := Ask(ctx, s, handler.CategoryYesNo, "Add another filter?")
		if err != nil {
			return nil, err
		}
		if ok, _ := more.(bool); !ok {
			return filters, nil
		}
	}
}

// LookupContact resolves name against the caller-supplied contact list
// first (no network round trip) and falls back to an empty result — the
// reference architecture's device discovery has no contacts backend of
// its own, so a real directory lookup is an external collaborator per
// spec.md §1(iii). Never suspends.
func LookupContact(s *Session, category, name string) []handler.Contact {
	var out []handler.Contact
	lower := strings.ToLower(name)
	for _, c := range s.Contacts {
		if category != "" && c.Kind != category {
			continue
		}
		if strings.Contains(strings.ToLower(c.Name), lower) {
			out = append(out, c)
		}
	}
	return out
}

// LookupLocation resolves key (a free-form place name) through the
// geocoder, asking the user to disambiguate via Ask if it is unresolved
// and prev is nil (matching the primitive's "may recurse through ask"
// contract in spec.md §4.7's table).
func LookupLocation(ctx context.Context, s *Session, key string, prev *lookup.Location) (*lookup.Location, error) {
	if prev != nil {
		return prev, nil
	}
	if s.Geocoder == nil {
		return nil, agenterr.NewBuilder(agenterr.CodeServiceUnreachable, "no geocoder configured").
			Category(agenterr.CategoryServiceOutage).Build()
	}
	loc, err := s.Geocoder.Resolve(ctx, key)
	if err == nil {
		return loc, nil
	}

	answer, askErr := Ask(ctx, s, handler.CategoryLocation, "Where is "+key+"?")
	if askErr != nil {
		return nil, askErr
	}
	return s.Geocoder.Resolve(ctx, answer.(string))
}

// ResolveUserContext resolves a context variable (e.g.
// "$context.location.home") from persisted preferences, asking and
// persisting it if unset and marked saveToContext — the exact key shapes
// of spec.md §6 are defined in package prefs.
func ResolveUserContext(ctx context.Context, s *Session, varName string, saveToContext bool) (string, error) {
	key := prefsKeyFor(varName)
	if key != "" {
		if val, ok, err := s.Prefs.Get(key); err != nil {
			return "", err
		} else if ok {
			return val, nil
		}
	}

	answer, err := Ask(ctx, s, valueCategoryFor(varName), "What is your "+humanize(varName)+"?")
	if err != nil {
		return "", err
	}
	value := answer.(string)

	if saveToContext && key != "" {
		if err := s.Prefs.Set(key, value); err != nil {
			return "", err
		}
	}
	return value, nil
}

func prefsKeyFor(varName string) string {
	switch varName {
	case "$context.location.home":
		return prefs.KeyLocationHome
	case "$context.location.work":
		return prefs.KeyLocationWork
	case "$context.time.morning":
		return prefs.KeyTimeMorning
	case "$context.time.evening":
		return prefs.KeyTimeEvening
	case "preferred-temperature":
		return prefs.KeyPreferredTemp
	default:
		return ""
	}
}

func valueCategoryFor(varName string) handler.ValueCategory {
	switch {
	case strings.Contains(varName, "location"):
		return handler.CategoryLocation
	case strings.Contains(varName, "time"):
		return handler.CategoryTime
	default:
		return handler.CategoryGeneric
	}
}

func humanize(varName string) string {
	s := strings.TrimPrefix(varName, "$context.")
	return strings.ReplaceAll(s, ".", " ")
}
