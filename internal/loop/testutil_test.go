package loop

import (
	"context"
	"testing"
	"time"

	"github.com/cascade-run/cascade/internal/delegate"
	"github.com/cascade-run/cascade/internal/handler"
	"github.com/cascade-run/cascade/internal/prefs"
	"github.com/cascade-run/cascade/internal/queue"
	"github.com/cascade-run/cascade/internal/subdialogue"
)

func newTestLoop(handlers ...handler.Handler) (*Loop, *delegate.RecordingDelegate, *queue.FIFO) {
	rec := delegate.NewRecordingDelegate()
	sess := &subdialogue.Session{
		Queue:    queue.New(),
		Delegate: rec,
		Prefs:    prefs.NewMapStore(),
	}
	registry := handler.NewRegistry()
	for _, h := range handlers {
		registry.Register(h)
	}
	notifyQ := queue.New()
	l := New(Config{Registry: registry, Session: sess, NotifyQueue: notifyQ, Locale: "en"})
	return l, rec, notifyQ
}

func pushUserInput(q *queue.FIFO, in handler.UserInput) {
	q.Push(handler.QueueItem{Kind: handler.QueueUserInput, Command: in})
}

func waitForWaiter(t *testing.T, q *queue.FIFO) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if q.Waiting() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for queue waiter")
}

// stubHandler returns a fixed analysis and reply regardless of input,
// mirroring the arbiter package's own test double.
type stubHandler struct {
	id       string
	priority int
	icon     *string
	analysis handler.CommandAnalysisResult
	reply    *handler.ReplyResult
	replyErr error
	state    any
}

func (s *stubHandler) UniqueID() string { return s.id }
func (s *stubHandler) Priority() int    { return s.priority }
func (s *stubHandler) Icon() *string    { return s.icon }
func (s *stubHandler) Initialize(ctx context.Context, prevState any, showWelcome bool) (*handler.ReplyResult, error) {
	return nil, nil
}
func (s *stubHandler) AnalyzeCommand(ctx context.Context, in handler.UserInput) (handler.CommandAnalysisResult, error) {
	return s.analysis, nil
}
func (s *stubHandler) GetReply(ctx context.Context, analysis handler.CommandAnalysisResult) (*handler.ReplyResult, error) {
	return s.reply, s.replyErr
}
func (s *stubHandler) GetState() any { return s.state }
func (s *stubHandler) Reset()        { s.state = nil }
