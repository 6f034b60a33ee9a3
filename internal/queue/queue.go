// Package queue implements the two cooperating bounded-waiter FIFOs of
// spec.md §4.1: push is non-blocking, pop parks the caller until an item
// arrives or the wait is cancelled, and at most one waiter may be parked
// on a given queue at any time.
//
// The concurrency-primitive shape (mutex-guarded state plus an explicit
// state machine) follows the reference architecture's
// internal/errors.CircuitBreaker.
package queue

import (
	"context"
	"sync"

	"github.com/cascade-run/cascade/internal/agenterr"
	"github.com/cascade-run/cascade/internal/handler"
)

// ErrAlreadyWaiting is returned by Pop when another caller is already
// parked on this queue. Spec.md §3 treats a second concurrent waiter as
// an invariant violation in the caller, not a condition to queue up.
var ErrAlreadyWaiting = agenterr.NewBuilder(agenterr.CodeQueueAlreadyWaiting, "queue already has a waiter").Build()

// FIFO is a single bounded-waiter first-in-first-out queue of QueueItem.
// There is no capacity limit; backpressure is the outer shell's job
// (spec.md §4.1).
type FIFO struct {
	mu      sync.Mutex
	items   []handler.QueueItem
	nextSeq uint64

	waiting bool
	deliver chan handler.QueueItem
	cancel  chan error
}

// New creates an empty FIFO.
func New() *FIFO {
	return &FIFO{}
}

// Push enqueues an item, assigning it the next monotonic sequence number.
// If a caller is currently parked in Pop, the item is delivered directly
// to it and never touches the backing slice — this is what "push rights
// alternate with pop rights" means in spec.md §3: whichever side is
// currently active receives control immediately.
func (q *FIFO) Push(item handler.QueueItem) {
	q.mu.Lock()
	q.nextSeq++
	item.Seq = q.nextSeq

	if q.waiting {
		deliver := q.deliver
		q.waiting = false
		q.deliver = nil
		q.cancel = nil
		q.mu.Unlock()
		deliver <- item
		return
	}

	q.items = append(q.items, item)
	q.mu.Unlock()
}

// Pop returns the next item, or blocks until one is pushed, the context
// is cancelled, or CancelWait is called. Only one caller may be parked in
// Pop at a time; a second concurrent call returns ErrAlreadyWaiting
// immediately without disturbing the first waiter.
func (q *FIFO) Pop(ctx context.Context) (handler.QueueItem, error) {
	return q.PopArmed(ctx, nil)
}

// PopArmed behaves exactly like Pop, except that when it has to park
// (nothing buffered, no other waiter registered) it invokes armed after
// waiting has been flipped true but before it blocks. Callers that need
// to publish "a waiter is now parked here" to some other synchronization
// point (loop.Loop's handshake) must do so from armed rather than after
// Pop returns, or callers relying on that publication can observe it
// before Waiting actually reports true.
func (q *FIFO) PopArmed(ctx context.Context, armed func()) (handler.QueueItem, error) {
	q.mu.Lock()
	if len(q.items) > 0 {
		item := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()
		return item, nil
	}
	if q.waiting {
		q.mu.Unlock()
		return handler.QueueItem{}, ErrAlreadyWaiting
	}

	deliver := make(chan handler.QueueItem, 1)
	cancel := make(chan error, 1)
	q.waiting = true
	q.deliver = deliver
	q.cancel = cancel
	q.mu.Unlock()

	if armed != nil {
		armed()
	}

	select {
	case item := <-deliver:
		return item, nil
	case err := <-cancel:
		return handler.QueueItem{}, err
	case <-ctx.Done():
		q.clearWaiter(deliver)
		return handler.QueueItem{}, ctx.Err()
	}
}

// CancelWait wakes the parked waiter, if any, with err, without
// consuming an item. A no-op if nothing is waiting.
func (q *FIFO) CancelWait(err error) {
	q.mu.Lock()
	if !q.waiting {
		q.mu.Unlock()
		return
	}
	cancel := q.cancel
	q.waiting = false
	q.deliver = nil
	q.cancel = nil
	q.mu.Unlock()
	cancel <- err
}

// Waiting reports whether a caller is currently parked in Pop.
func (q *FIFO) Waiting() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waiting
}

// Len reports the number of items currently buffered (not counting a
// caller parked in Pop).
func (q *FIFO) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain discards all buffered items and returns how many were dropped.
// Used at Stop: "an unserved item at stop is discarded" (spec.md §3).
func (q *FIFO) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

func (q *FIFO) clearWaiter(deliver chan handler.QueueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliver == deliver {
		q.waiting = false
		q.deliver = nil
		q.cancel = nil
	}
}
