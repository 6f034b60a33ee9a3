package loop

import (
	"context"
	"sort"
	"strings"

	"github.com/cascade-run/cascade/internal/agenterr"
	"github.com/cascade-run/cascade/internal/arbiter"
	"github.com/cascade-run/cascade/internal/delegate"
	"github.com/cascade-run/cascade/internal/format"
	"github.com/cascade-run/cascade/internal/handler"
	"github.com/cascade-run/cascade/internal/transcript"
)

// handleUserInput drives spec.md §4.8's handleUserInput: analyze,
// dispatch, emit, and — while the winning reply keeps expecting an
// answer — keep looping on the user-input queue alone rather than
// returning to the notify queue, so no notification can interleave
// between an AskSpecial and the next accepted UserInput (spec.md §5).
func (l *Loop) handleUserInput(ctx context.Context, in handler.UserInput) {
	for {
		result, cont, err := l.turn(ctx, in)
		if err != nil {
			if agenterr.IsCancellation(err) {
				l.handleCancellation()
				return
			}
			l.apologize(err, false)
			return
		}

		delegate.Emit(l.delegate, result)
		if !cont {
			return
		}

		item, perr := l.parkedPop(ctx, l.userQ)
		if perr != nil {
			if agenterr.IsCancellation(perr) {
				l.handleCancellation()
			}
			return
		}
		if item.Kind != handler.QueueUserInput {
			continue
		}
		in = item.Command
	}
}

// turn runs one round of arbiter selection and reply generation. The
// second return value reports whether handleUserInput should keep
// reading from the user-input queue (the winning reply is still
// expecting an answer and hasn't ended the exchange).
func (l *Loop) turn(ctx context.Context, in handler.UserInput) (*handler.ReplyResult, bool, error) {
	l.recordUserTurn(ctx, in)

	h, analysis, ok := arbiter.Select(ctx, l.registry.All(), in, l.currentHandlerID())
	if !ok {
		msg := format.DidntUnderstand(l.locale)
		return &handler.ReplyResult{Messages: []handler.ReplyMessage{handler.TextMessage(msg, l.icon)}}, false, nil
	}

	if analysis.Type == handler.AnalysisStop || analysis.Type == handler.AnalysisDebug {
		return l.dispatchUICommand(analysis)
	}

	result, err := h.GetReply(ctx, analysis)
	if err != nil {
		return nil, false, err
	}
	l.setSessionState(h, result)
	l.recordAssistantTurn(ctx, result)

	return result, result.Expecting != nil && !result.End, nil
}

// dispatchUICommand handles the STOP/DEBUG analyses that win regardless
// of confidence (arbiter R1). STOP ends the session gracefully; DEBUG
// lists the sorted keys of GetState() as plain text without ending it.
func (l *Loop) dispatchUICommand(analysis handler.CommandAnalysisResult) (*handler.ReplyResult, bool, error) {
	switch analysis.Type {
	case handler.AnalysisStop:
		l.mu.Lock()
		l.stopped = true
		l.mu.Unlock()
		return &handler.ReplyResult{
			Messages: []handler.ReplyMessage{handler.TextMessage("Bye!", l.icon)},
			End:      true,
		}, false, nil
	case handler.AnalysisDebug:
		return &handler.ReplyResult{
			Messages: []handler.ReplyMessage{handler.TextMessage(debugDump(l.GetState()), l.icon)},
			End:      true,
		}, false, nil
	default:
		return &handler.ReplyResult{End: true}, false, nil
	}
}

// apologize renders the unexpected-exception apology of spec.md §7,
// choosing wording by whether the failing item came from the user-input
// queue (isAPIItem == false) or an out-of-band item, and emits it
// directly since no handler produced a reply this turn.
func (l *Loop) apologize(err error, isAPIItem bool) {
	appErr, ok := err.(*agenterr.AppError)
	msg := ""
	switch {
	case ok:
		msg = appErr.UserMessage()
	case isAPIItem:
		msg = "Sorry, that did not work: " + err.Error() + "."
	default:
		msg = "Sorry, I had an error processing your command: " + err.Error() + "."
	}
	delegate.Emit(l.delegate, &handler.ReplyResult{
		Messages: []handler.ReplyMessage{handler.TextMessage(msg, l.icon)},
	})
}

func (l *Loop) recordUserTurn(ctx context.Context, in handler.UserInput) {
	if l.transcript == nil || in.Kind != handler.UserInputCommand || in.Utterance == "" {
		return
	}
	_ = l.transcript.Record(ctx, transcript.RoleUser, in.Utterance)
}

func (l *Loop) recordAssistantTurn(ctx context.Context, result *handler.ReplyResult) {
	if l.transcript == nil || result == nil {
		return
	}
	for _, msg := range result.Messages {
		if msg.Kind == handler.ReplyText {
			_ = l.transcript.Record(ctx, transcript.RoleAssistant, msg.Text)
		}
	}
}

func debugDump(state map[string]any) string {
	if len(state) == 0 {
		return "(no state)"
	}
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "state: " + strings.Join(keys, ", ")
}
