// Package skill provides the static FAQ handler family of spec.md's C5
// (FAQ / Skill Handlers): stateless, keyword-matched handlers that
// return confidence-tagged analyses and canned text replies, with no
// sub-dialogue of their own.
//
// Grounded on the reference architecture's internal/subagent.ResearchAgent
// shape (a stateless Name/Capabilities/Execute struct with no internal
// mutation between calls) generalized from an LLM-tool-call subagent to
// a handler.Handler.
package skill

import (
	"context"
	"strings"

	"github.com/cascade-run/cascade/internal/handler"
)

// Entry is a single question/answer pair a FAQ handler matches against.
type Entry struct {
	Keywords []string
	Answer   string
}

// FAQHandler is a stateless keyword-matched handler.Handler.
type FAQHandler struct {
	id       string
	priority int
	icon     string
	entries  []Entry
}

// NewFAQHandler creates a FAQ handler over a fixed set of entries.
func NewFAQHandler(id string, priority int, icon string, entries []Entry) *FAQHandler {
	return &FAQHandler{id: id, priority: priority, icon: icon, entries: entries}
}

func (f *FAQHandler) UniqueID() string { return f.id }
func (f *FAQHandler) Priority() int    { return f.priority }

func (f *FAQHandler) Icon() *string {
	if f.icon == "" {
		return nil
	}
	return &f.icon
}

// Initialize never shows a welcome message; FAQ handlers are silent
// until matched.
func (f *FAQHandler) Initialize(ctx context.Context, prevState any, showWelcome bool) (*handler.ReplyResult, error) {
	return nil, nil
}

// AnalyzeCommand matches the utterance against every entry's keywords
// and reports a confident command when any keyword hits; the number of
// hits only decides which entry answers.
func (f *FAQHandler) AnalyzeCommand(ctx context.Context, in handler.UserInput) (handler.CommandAnalysisResult, error) {
	if in.Kind != handler.UserInputCommand {
		return handler.CommandAnalysisResult{Type: handler.AnalysisOutOfDomain}, nil
	}

	entry := f.bestMatch(in.Utterance)
	if entry == nil {
		return handler.CommandAnalysisResult{Type: handler.AnalysisOutOfDomain, Utterance: in.Utterance}, nil
	}

	return handler.CommandAnalysisResult{
		Type:      handler.AnalysisConfidentCommand,
		Utterance: in.Utterance,
	}, nil
}

// GetReply looks the matched entry back up and returns its canned
// answer. FAQHandler keeps no state between AnalyzeCommand and GetReply;
// it re-matches the utterance carried in the analysis.
func (f *FAQHandler) GetReply(ctx context.Context, analysis handler.CommandAnalysisResult) (*handler.ReplyResult, error) {
	entry := f.bestMatch(analysis.Utterance)
	if entry == nil {
		return &handler.ReplyResult{
			Messages: []handler.ReplyMessage{handler.TextMessage("Sorry, I don't know how to do that yet.", f.icon)},
			End:      true,
		}, nil
	}
	return &handler.ReplyResult{
		Messages: []handler.ReplyMessage{handler.TextMessage(entry.Answer, f.icon)},
		End:      true,
	}, nil
}

func (f *FAQHandler) GetState() any { return nil }
func (f *FAQHandler) Reset()        {}

// bestMatch returns the entry with the most keyword hits in utterance,
// or nil if no entry matches at all.
func (f *FAQHandler) bestMatch(utterance string) *Entry {
	lower := strings.ToLower(utterance)
	var best *Entry
	bestScore := 0
	for i := range f.entries {
		score := 0
		for _, kw := range f.entries[i].Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = &f.entries[i]
		}
	}
	return best
}
