package loop

import (
	"context"

	"github.com/cascade-run/cascade/internal/handler"
	"github.com/cascade-run/cascade/internal/queue"
)

// targetQueue routes an inbound UserInput the way spec.md's two-FIFO
// design implies: while a sub-dialogue is expecting an answer, the
// user-input queue is what handleUserInput is actually parked on; in the
// default state, the caller's command is itself the next top-level
// notify-queue item.
func (l *Loop) targetQueue() *queue.FIFO {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.expecting != nil {
		return l.userQ
	}
	return l.notifyQ
}

// HandleCommand is the "future"-returning inbound entry point of spec.md
// §6. It waits for a genuinely parked waiter (so Push never races a
// queue that hasn't registered itself yet), pushes the command, then
// waits for the loop to actually leave that parked state and park again
// before returning — the two-phase wait guarantees the run goroutine
// has woken from Pop, driven the resulting turn to completion, and
// re-parked, rather than returning early on a stale already-closed
// signal from the waiter it just fed.
func (l *Loop) HandleCommand(ctx context.Context, in handler.UserInput) error {
	if err := l.awaitParked(ctx); err != nil {
		return err
	}
	l.targetQueue().Push(handler.QueueItem{Kind: handler.QueueUserInput, Command: in})
	if err := l.awaitUnparked(ctx); err != nil {
		return err
	}
	return l.awaitParked(ctx)
}

// PushCommand is the fire-and-forget variant: it pushes without waiting
// for the handshake either before or after, per spec.md §6's "void"
// return type.
func (l *Loop) PushCommand(in handler.UserInput) {
	l.targetQueue().Push(handler.QueueItem{Kind: handler.QueueUserInput, Command: in})
}
