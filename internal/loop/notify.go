package loop

import (
	"github.com/cascade-run/cascade/internal/delegate"
	"github.com/cascade-run/cascade/internal/format"
	"github.com/cascade-run/cascade/internal/handler"
)

// DispatchNotify pushes a formatted out-of-band result onto the notify
// queue. It is only rendered once the loop re-enters its default state
// (spec.md §5: "notifications are drained only when the loop re-enters
// nextQueueItem in the default state") — never mid sub-dialogue.
func (l *Loop) DispatchNotify(appID, appName, outputType string, outputValue any) {
	l.notifyQ.Push(handler.QueueItem{
		Kind:        handler.QueueNotification,
		AppID:       appID,
		AppName:     appName,
		OutputType:  outputType,
		OutputValue: outputValue,
	})
}

// DispatchNotifyError pushes an out-of-band failure onto the notify
// queue.
func (l *Loop) DispatchNotifyError(appID, appName string, err error) {
	l.notifyQ.Push(handler.QueueItem{
		Kind:    handler.QueueError,
		AppID:   appID,
		AppName: appName,
		Err:     err,
	})
}

// handleNotification renders a drained Notification item as
// RDL/picture/text through format.ExecutorResult, ending — like every
// reply — with a single AskSpecial frame (spec.md §8 scenario 6).
func (l *Loop) handleNotification(item handler.QueueItem) {
	messages := format.ExecutorResult(item.OutputType, item.OutputValue, l.icon)
	delegate.Emit(l.delegate, &handler.ReplyResult{
		Messages:    messages,
		AgentTarget: item.AppID,
	})
}

// handleNotificationError renders a drained Error item as the fixed
// per-result apology of spec.md §7, without touching currentHandler or
// expecting — an out-of-band failure never cancels an in-progress
// sub-dialogue because it can only be drained while none is active.
func (l *Loop) handleNotificationError(item handler.QueueItem) {
	msg := ""
	if item.Err != nil {
		msg = item.Err.Error()
	}
	delegate.Emit(l.delegate, &handler.ReplyResult{
		Messages:    []handler.ReplyMessage{format.ExecutorError(msg, l.icon)},
		AgentTarget: item.AppID,
	})
}
