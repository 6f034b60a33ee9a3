// Package format provides the template interpolation and result
// rendering of spec.md §4.9 (C9): named-placeholder substitution with
// locale-keyed plural/choice selectors, deterministic program-to-prose
// confirmation text, and rendering of executor result tuples into
// ReplyMessage.
//
// The section-assembly and non-empty-fallback style is grounded on the
// reference architecture's prompt.Builder, retargeted from system-prompt
// assembly to user-facing reply text.
package format

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cascade-run/cascade/internal/handler"
)

// placeholderPattern matches `{name}` or `{name, form, case{text} ...}`.
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)(?:,\s*(plural|select)\s*,\s*((?:[^{}]|\{[^{}]*\})*))?\}`)

var casePattern = regexp.MustCompile(`(\w+)\{([^{}]*)\}`)

// Interpolate substitutes named placeholders in tmpl with vars, resolving
// plural/select forms by locale. Deterministic on identical inputs
// (spec.md §4.9).
func Interpolate(tmpl string, vars map[string]any, locale string) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		name, form, body := groups[1], groups[2], groups[3]
		value, ok := vars[name]
		if !ok {
			return match
		}
		switch form {
		case "plural":
			return resolvePlural(value, body, locale)
		case "select":
			return resolveSelect(value, body)
		default:
			return fmt.Sprint(value)
		}
	})
}

func resolvePlural(value any, body, locale string) string {
	n, err := toInt(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	cases := parseCases(body)
	key := pluralCategory(n, locale)
	if text, ok := cases[key]; ok {
		return strings.ReplaceAll(text, "#", strconv.Itoa(n))
	}
	if text, ok := cases["other"]; ok {
		return strings.ReplaceAll(text, "#", strconv.Itoa(n))
	}
	return strconv.Itoa(n)
}

func resolveSelect(value any, body string) string {
	key := fmt.Sprint(value)
	cases := parseCases(body)
	if text, ok := cases[key]; ok {
		return text
	}
	return cases["other"]
}

func parseCases(body string) map[string]string {
	out := make(map[string]string)
	for _, m := range casePattern.FindAllStringSubmatch(body, -1) {
		out[m[1]] = m[2]
	}
	return out
}

// pluralCategory implements the CLDR "one"/"other" rule for English-family
// locales, the only family spec.md's examples require. Locales this
// simplification doesn't cover fall back to "other" for everything except
// exactly one, which is a reasonable default rather than silently wrong.
func pluralCategory(n int, locale string) string {
	if n == 1 {
		return "one"
	}
	return "other"
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

// DidntUnderstand renders the localized "didn't understand" message of
// spec.md R5. Locale-specific copy can be added as entries grow; English
// is the only supported locale today.
func DidntUnderstand(locale string) string {
	return "Sorry, I didn't understand that. Can you rephrase it?"
}

// NevermindApology renders the fixed apology used when a sub-dialogue is
// abandoned via special:nevermind (spec.md §6).
func NevermindApology() string {
	return "Sorry I couldn't help on that."
}

// ConfirmProgram renders a finished ProgramAST as deterministic
// confirmation prose, e.g. "com twitter post picture (using caption = link,
// picture_url = picture_url)?" for @com.twitter.post_picture: the kind's
// dots and underscores become spaces and set parameters are listed
// sorted by name — grounded
// on the reference's non-empty-fallback section join, adapted to render
// one program instead of assembling a system prompt.
func ConfirmProgram(ast *handler.ProgramAST, locale string) string {
	if ast == nil {
		return "run this?"
	}
	verb := prettyKind(ast.Kind)
	if len(ast.Params) == 0 {
		return fmt.Sprintf("%s?", verb)
	}

	names := make([]string, 0, len(ast.Params))
	for _, p := range ast.Params {
		if p.HasValue {
			names = append(names, p.Name)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return fmt.Sprintf("%s?", verb)
	}

	byName := make(map[string]handler.ProgramParam, len(ast.Params))
	for _, p := range ast.Params {
		byName[p.Name] = p
	}
	parts := make([]string, 0, len(names))
	for _, name := range names {
		p := byName[name]
		parts = append(parts, fmt.Sprintf("%s = %v", p.Name, p.Value))
	}
	return fmt.Sprintf("%s (using %s)?", verb, strings.Join(parts, ", "))
}

func prettyKind(kind string) string {
	kind = strings.TrimPrefix(kind, "@")
	kind = strings.ReplaceAll(kind, ".", " ")
	kind = strings.ReplaceAll(kind, "_", " ")
	return nonEmpty(kind, "this")
}

// ExecutorResult renders one {outputType, outputValue} pair emitted by an
// executor into ReplyMessages, per spec.md §4.4 item 5. Unrecognized
// output types fall back to a plain text rendering of the value so no
// executor result is silently dropped.
func ExecutorResult(outputType string, outputValue any, icon string) []handler.ReplyMessage {
	switch outputType {
	case "text":
		return []handler.ReplyMessage{handler.TextMessage(fmt.Sprint(outputValue), icon)}
	case "picture":
		return []handler.ReplyMessage{handler.PictureMessage(fmt.Sprint(outputValue), icon)}
	case "rdl":
		if rdl, ok := outputValue.(handler.RDL); ok {
			return []handler.ReplyMessage{handler.RDLMessage(rdl, icon)}
		}
		return []handler.ReplyMessage{handler.TextMessage(fmt.Sprint(outputValue), icon)}
	default:
		return []handler.ReplyMessage{handler.TextMessage(fmt.Sprint(outputValue), icon)}
	}
}

// ExecutorError renders an executor failure as spec.md §7's fixed
// per-result apology, without cancelling the session.
func ExecutorError(msg string, icon string) handler.ReplyMessage {
	return handler.TextMessage(fmt.Sprintf("Sorry, that did not work: %s.", msg), icon)
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
