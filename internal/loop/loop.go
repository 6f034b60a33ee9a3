// Package loop implements the top-level dialogue driver of spec.md §4.8
// (C8): initialization, pop-next-item, dispatch across the two
// cooperating queues, per-turn error recovery, session reset, and
// graceful stop.
//
// Grounded on the reference architecture's internal/agent/head.go
// Process (fast-path check → context build → model call → tool-call
// loop), generalized here from a single model round-trip to a
// cooperative state machine that alternates between the notify queue
// (default state) and the user-input queue (mid sub-dialogue), exactly
// as spec.md §5 describes: "the loop alternates: push rights ↔ pop
// rights." The mgrPromise/mgrResolve handshake of §5 is modeled as a
// waiterQueue field guarded by mu plus a stateCh that is closed and
// replaced every time waiterQueue changes; external callers block on
// stateCh and re-check waiterQueue rather than trusting a single close
// to mean "parked" (queue.FIFO.PopArmed only reports a real park, never
// a same-tick race against it).
package loop

import (
	"context"
	"sync"

	"github.com/cascade-run/cascade/internal/agenterr"
	"github.com/cascade-run/cascade/internal/delegate"
	"github.com/cascade-run/cascade/internal/handler"
	"github.com/cascade-run/cascade/internal/queue"
	"github.com/cascade-run/cascade/internal/subdialogue"
	"github.com/cascade-run/cascade/internal/transcript"
)

// Config wires a Loop to its collaborators. Session's Queue is the
// user-input queue sub-dialogue primitives suspend on (spec.md's
// nextCommand); NotifyQueue, if nil, is created fresh and carries
// top-level UserInput envelopes plus out-of-band notifications and
// errors (spec.md's nextQueueItem).
type Config struct {
	Registry    *handler.Registry
	Session     *subdialogue.Session
	NotifyQueue *queue.FIFO
	Transcript  *transcript.Store
	Locale      string
}

// Loop is the single-threaded, cooperatively-scheduled dialogue driver.
// Nothing here is safe to call from two goroutines except through its
// exported methods, which serialize on mu where the handshake requires
// it; the run goroutine itself never contends for mu except to read or
// mutate session-scope fields (spec.md §5: "no cross-thread sharing;
// cooperative scheduling eliminates races").
type Loop struct {
	registry   *handler.Registry
	session    *subdialogue.Session
	delegate   delegate.Delegate
	userQ      *queue.FIFO
	notifyQ    *queue.FIFO
	transcript *transcript.Store
	locale     string

	mu          sync.Mutex
	current     string
	expecting   *handler.ValueCategory
	icon        string
	stopped     bool
	waiterQueue *queue.FIFO
	stateCh     chan struct{}

	done chan struct{}
}

// New constructs a Loop. Call Start to begin serving turns.
func New(cfg Config) *Loop {
	notifyQ := cfg.NotifyQueue
	if notifyQ == nil {
		notifyQ = queue.New()
	}
	return &Loop{
		registry:   cfg.Registry,
		session:    cfg.Session,
		delegate:   cfg.Session.Delegate,
		userQ:      cfg.Session.Queue,
		notifyQ:    notifyQ,
		transcript: cfg.Transcript,
		locale:     cfg.Locale,
		stateCh:    make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs Initialize across every registered handler, emits the
// highest-priority non-nil welcome reply, and launches the loop
// goroutine. It returns once initialization has run; the loop itself
// keeps serving turns until Stop is called.
func (l *Loop) Start(ctx context.Context, showWelcome bool, initialState map[string]any) error {
	var best *handler.ReplyResult
	bestPriority := -1
	for _, h := range l.registry.All() {
		var prev any
		if initialState != nil {
			prev = initialState[h.UniqueID()]
		}
		result, err := h.Initialize(ctx, prev, showWelcome)
		if err != nil || result == nil {
			continue
		}
		if best == nil || h.Priority() > bestPriority {
			best, bestPriority = result, h.Priority()
		}
	}
	if best != nil {
		delegate.Emit(l.delegate, best)
	}

	go l.run(ctx)
	return nil
}

// Done reports the loop goroutine's exit, for callers that want to wait
// out a graceful Stop.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// GetState returns per-handler opaque state keyed by uniqueId, plus the
// session-scope fields spec.md §3 defines: currentHandler, expecting,
// icon.
func (l *Loop) GetState() map[string]any {
	state := make(map[string]any, len(l.registry.All())+3)
	for _, h := range l.registry.All() {
		state[h.UniqueID()] = h.GetState()
	}
	l.mu.Lock()
	state["currentHandler"] = l.current
	if l.expecting != nil {
		state["expecting"] = l.expecting.String()
	}
	state["icon"] = l.icon
	l.mu.Unlock()
	return state
}

// Stop sets stopped, waits for a genuine parked waiter, and cancels it
// so the run goroutine can observe stopped and exit (spec.md §5).
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()

	if err := l.awaitParked(ctx); err != nil {
		return err
	}
	l.cancelWaiter("stop")

	select {
	case <-l.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Reset cancels the currently parked waiter exactly as Stop does,
// without setting stopped — for use by an external inactivity timer
// (spec.md §5's Timeouts note).
func (l *Loop) Reset(ctx context.Context) error {
	if err := l.awaitParked(ctx); err != nil {
		return err
	}
	l.cancelWaiter("reset")
	return nil
}

func (l *Loop) cancelWaiter(reason string) {
	l.mu.Lock()
	q := l.waiterQueue
	l.mu.Unlock()
	if q != nil {
		q.CancelWait(agenterr.Cancelled(reason))
	}
}

// notifyStateChange wakes every goroutine parked in waitUntil. Callers
// must already hold mu and must call it in the same critical section
// that mutated waiterQueue, so no transition is ever missed between a
// waiter's check and its wait.
func (l *Loop) notifyStateChange() {
	close(l.stateCh)
	l.stateCh = make(chan struct{})
}

// waitUntil blocks until cond reports true, re-evaluating it every time
// the loop's parked/unparked state changes rather than trusting a
// single wakeup to mean the condition it was waiting for actually holds
// (queue.FIFO.PopArmed can resolve a Pop instantly, without ever
// parking, which still has to wake anyone blocked on the stale state).
func (l *Loop) waitUntil(ctx context.Context, cond func() bool) error {
	for {
		l.mu.Lock()
		if cond() {
			l.mu.Unlock()
			return nil
		}
		ch := l.stateCh
		l.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// awaitParked blocks until some queue has a genuinely parked waiter
// (queue.FIFO.Waiting would report true for it), never a mere instant
// after a Pop call was issued.
func (l *Loop) awaitParked(ctx context.Context) error {
	return l.waitUntil(ctx, func() bool { return l.waiterQueue != nil })
}

// awaitUnparked blocks until no queue has a parked waiter, i.e. the run
// goroutine (or handleUserInput's inner loop) has actually woken from
// Pop and started processing whatever it received.
func (l *Loop) awaitUnparked(ctx context.Context) error {
	return l.waitUntil(ctx, func() bool { return l.waiterQueue == nil })
}

// parkedPop runs q.PopArmed, publishing waiterQueue/stateCh exactly
// when q reports itself waiting and clearing them again once Pop
// returns by any means, so awaitParked/awaitUnparked never observe a
// state that queue.FIFO itself hasn't committed to yet.
func (l *Loop) parkedPop(ctx context.Context, q *queue.FIFO) (handler.QueueItem, error) {
	item, err := q.PopArmed(ctx, func() {
		l.mu.Lock()
		l.waiterQueue = q
		l.notifyStateChange()
		l.mu.Unlock()
	})
	l.mu.Lock()
	l.waiterQueue = nil
	l.notifyStateChange()
	l.mu.Unlock()
	return item, err
}

// run is the main "while not stopped" loop of spec.md §4.8: pop the next
// notify-queue item (blocking) and dispatch it, recovering from
// cancellation by resetting every handler and from any other error by
// apologizing and continuing.
func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	for {
		l.mu.Lock()
		stopped := l.stopped
		l.mu.Unlock()
		if stopped {
			return
		}

		item, err := l.parkedPop(ctx, l.notifyQ)
		if err != nil {
			if agenterr.IsCancellation(err) {
				l.handleCancellation()
				continue
			}
			if ctx.Err() != nil {
				return
			}
			continue
		}

		l.dispatch(ctx, item)
	}
}

func (l *Loop) dispatch(ctx context.Context, item handler.QueueItem) {
	switch item.Kind {
	case handler.QueueUserInput:
		l.handleUserInput(ctx, item.Command)
	case handler.QueueNotification:
		l.handleNotification(item)
	case handler.QueueError:
		l.handleNotificationError(item)
	}
}

// handleCancellation implements spec.md §5's "unwinds to the outer loop
// where it triggers reset": every handler is reset and the
// currentHandler/expecting/icon session-scope fields are cleared.
func (l *Loop) handleCancellation() {
	l.registry.ResetAll()
	l.mu.Lock()
	l.current = ""
	l.expecting = nil
	l.icon = ""
	l.mu.Unlock()
}

func (l *Loop) setSessionState(h handler.Handler, result *handler.ReplyResult) {
	l.mu.Lock()
	l.current = h.UniqueID()
	l.expecting = result.Expecting
	if icon := h.Icon(); icon != nil {
		l.icon = *icon
	}
	l.mu.Unlock()
}

func (l *Loop) currentHandlerID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}
