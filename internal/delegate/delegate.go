// Package delegate defines the outbound sink (spec.md §4.2, C2) the loop
// sends rendered ReplyMessages through, and a recording test double every
// other package's tests use to assert delivery ordering.
package delegate

import "github.com/cascade-run/cascade/internal/handler"

// Delegate is the abstract sink for outgoing messages. Implementations
// live in the outer shell; the loop only ever calls through this narrow
// interface, matching the reference architecture's subagent.Subagent
// style of small, single-purpose interfaces.
type Delegate interface {
	Send(text string, icon *string)
	SendPicture(url string, icon *string)
	SendRDL(rdl handler.RDL, icon *string)
	SendChoice(index int, kind, title, text string)
	SendLink(title, url string)
	SendButton(title, json string)
	SendAskSpecial(kind handler.AskSpecialKind)
}

// Emit sends every message of a ReplyResult through d in order, followed
// by exactly one AskSpecial frame derived from result.Expecting — the
// ordering guarantee of spec.md §5. If result.Expecting is nil, the
// AskSpecial frame carries handler.AskNull.
func Emit(d Delegate, result *handler.ReplyResult) {
	if result == nil {
		d.SendAskSpecial(handler.AskNull)
		return
	}
	for _, msg := range result.Messages {
		emitOne(d, msg)
	}
	d.SendAskSpecial(specialFor(result.Expecting))
}

func emitOne(d Delegate, msg handler.ReplyMessage) {
	switch msg.Kind {
	case handler.ReplyText:
		d.Send(msg.Text, msg.Icon)
	case handler.ReplyPicture:
		d.SendPicture(msg.URL, msg.Icon)
	case handler.ReplyRDL:
		d.SendRDL(msg.RDL, msg.Icon)
	case handler.ReplyButton:
		d.SendButton(msg.ButtonTitle, msg.ButtonJSON)
	case handler.ReplyLink:
		d.SendLink(msg.LinkTitle, msg.LinkURL)
	case handler.ReplyChoice:
		d.SendChoice(msg.ChoiceIndex, "choice", msg.ChoiceTitle, msg.Text)
	case handler.ReplyAskSpecial:
		d.SendAskSpecial(msg.Special)
	}
}

func specialFor(expecting *handler.ValueCategory) handler.AskSpecialKind {
	if expecting == nil {
		return handler.AskNull
	}
	switch *expecting {
	case handler.CategoryYesNo:
		return handler.AskYesNo
	case handler.CategoryChoice:
		return handler.AskChoiceKind
	case handler.CategoryCommand:
		return handler.AskCommand
	case handler.CategoryNumber:
		return handler.AskNumber
	case handler.CategoryLocation:
		return handler.AskLocation
	case handler.CategoryRawString:
		return handler.AskRawString
	case handler.CategoryPassword:
		return handler.AskPassword
	case handler.CategoryPhoneNumber:
		return handler.AskPhoneNumber
	case handler.CategoryEmailAddress:
		return handler.AskEmailAddress
	default:
		return handler.AskGeneric
	}
}
