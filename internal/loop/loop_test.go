package loop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascade-run/cascade/internal/delegate"
	"github.com/cascade-run/cascade/internal/handler"
)

func TestHandleUserInput_NoWinnerEmitsDidntUnderstand(t *testing.T) {
	l, rec, notifyQ := newTestLoop(
		&stubHandler{id: "faq", analysis: handler.CommandAnalysisResult{Type: handler.AnalysisOutOfDomain}},
	)
	require.NoError(t, l.Start(context.Background(), false, nil))
	defer stopLoop(t, l)

	waitForWaiter(t, notifyQ)
	pushUserInput(notifyQ, handler.NewCommand("play some music", nil))

	waitForCalls(t, rec, 2)
	assert.Equal(t, "send", rec.Calls[0].Method)
	assert.Contains(t, rec.Calls[0].Text, "didn't understand")
	assert.Equal(t, "sendAskSpecial", rec.Calls[1].Method)
	assert.Equal(t, handler.AskNull, rec.Calls[1].Special)
}

func TestHandleUserInput_ExactlyOneAskSpecialAsFinalMessage(t *testing.T) {
	category := handler.CategoryYesNo
	l, rec, notifyQ := newTestLoop(
		&stubHandler{
			id:       "program",
			analysis: handler.CommandAnalysisResult{Type: handler.AnalysisConfidentCommand},
			reply: &handler.ReplyResult{
				Messages: []handler.ReplyMessage{
					handler.TextMessage("one", ""),
					handler.TextMessage("two", ""),
				},
				Expecting: &category,
			},
		},
	)
	require.NoError(t, l.Start(context.Background(), false, nil))
	defer stopLoop(t, l)

	waitForWaiter(t, notifyQ)
	pushUserInput(notifyQ, handler.NewCommand("do the thing", nil))

	waitForCalls(t, rec, 3)
	var askSpecials int
	for i, c := range rec.Calls {
		if c.Method == "sendAskSpecial" {
			askSpecials++
			assert.Equal(t, len(rec.Calls)-1, i, "AskSpecial must be the final message of the reply")
		}
	}
	assert.Equal(t, 1, askSpecials)
}

func TestHandleUserInput_ExpectingKeepsControlOnUserQueue(t *testing.T) {
	category := handler.CategoryYesNo
	h := &multiTurnHandler{id: "program"}
	h.replies = []*handler.ReplyResult{
		{Messages: []handler.ReplyMessage{handler.TextMessage("what device?", "")}, Expecting: &category},
		{Messages: []handler.ReplyMessage{handler.TextMessage("done", "")}, End: true},
	}
	l, rec, notifyQ := newTestLoop(h)
	require.NoError(t, l.Start(context.Background(), false, nil))
	defer stopLoop(t, l)

	waitForWaiter(t, notifyQ)
	pushUserInput(notifyQ, handler.NewCommand("post to twitter", nil))

	// The loop must now be parked on the session's user-input queue, not
	// back on the notify queue, since the first reply is still expecting
	// an answer.
	waitForWaiter(t, l.userQ)
	assert.False(t, notifyQ.Waiting())

	pushUserInput(l.userQ, handler.NewCommand("yes", nil))

	waitForCalls(t, rec, 4)
	assert.Equal(t, "done", rec.Calls[2].Text)
	assert.Equal(t, 2, h.calls)
}

func TestReset_ClearsHandlerStateAndSessionFields(t *testing.T) {
	category := handler.CategoryYesNo
	h := &stubHandler{
		id:       "program",
		analysis: handler.CommandAnalysisResult{Type: handler.AnalysisConfidentCommand},
		reply:    &handler.ReplyResult{Expecting: &category},
		state:    "mid-dialogue",
	}
	l, _, notifyQ := newTestLoop(h)
	require.NoError(t, l.Start(context.Background(), false, nil))
	defer stopLoop(t, l)

	waitForWaiter(t, notifyQ)
	pushUserInput(notifyQ, handler.NewCommand("post to twitter", nil))
	waitForWaiter(t, l.userQ)

	require.NoError(t, l.Reset(context.Background()))

	waitForWaiter(t, notifyQ)
	assert.Nil(t, h.state, "Reset must clear every handler's state")
	state := l.GetState()
	assert.Equal(t, "", state["currentHandler"])
	_, expecting := state["expecting"]
	assert.False(t, expecting)
}

func TestDispatchNotify_RendersOnlyWhenIdle(t *testing.T) {
	l, rec, notifyQ := newTestLoop()
	require.NoError(t, l.Start(context.Background(), false, nil))
	defer stopLoop(t, l)

	waitForWaiter(t, notifyQ)
	l.DispatchNotify("com.xkcd", "xkcd", "text", "here is your comic")

	waitForCalls(t, rec, 2)
	assert.Equal(t, "here is your comic", rec.Calls[0].Text)
	assert.Equal(t, "sendAskSpecial", rec.Calls[1].Method)
	assert.Equal(t, handler.AskNull, rec.Calls[1].Special)
}

func TestDispatchNotifyError_RendersFixedApology(t *testing.T) {
	l, rec, notifyQ := newTestLoop()
	require.NoError(t, l.Start(context.Background(), false, nil))
	defer stopLoop(t, l)

	waitForWaiter(t, notifyQ)
	l.DispatchNotifyError("com.xkcd", "xkcd", assert.AnError)

	waitForCalls(t, rec, 2)
	assert.Contains(t, rec.Calls[0].Text, "did not work")
}

func TestHandleCommand_BlocksUntilTurnCompletesAndReparks(t *testing.T) {
	h := &blockingHandler{id: "program", release: make(chan struct{})}
	l, rec, notifyQ := newTestLoop(h)
	require.NoError(t, l.Start(context.Background(), false, nil))
	defer stopLoop(t, l)

	waitForWaiter(t, notifyQ)

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- l.HandleCommand(context.Background(), handler.NewCommand("do the thing", nil))
	}()

	// GetReply is still blocked on release, so HandleCommand must not
	// have returned yet.
	select {
	case <-doneCh:
		t.Fatal("HandleCommand returned before the turn finished processing")
	case <-time.After(50 * time.Millisecond):
	}

	close(h.release)

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("HandleCommand never returned after the turn finished")
	}

	require.NotEmpty(t, rec.Calls)
	assert.True(t, notifyQ.Waiting(), "loop must have re-parked on the notify queue")
}

// blockingHandler blocks GetReply on release, letting a test observe
// whether a caller returned before or after the turn actually finished.
type blockingHandler struct {
	id      string
	release chan struct{}
}

func (h *blockingHandler) UniqueID() string { return h.id }
func (h *blockingHandler) Priority() int    { return 0 }
func (h *blockingHandler) Icon() *string    { return nil }
func (h *blockingHandler) Initialize(ctx context.Context, prevState any, showWelcome bool) (*handler.ReplyResult, error) {
	return nil, nil
}
func (h *blockingHandler) AnalyzeCommand(ctx context.Context, in handler.UserInput) (handler.CommandAnalysisResult, error) {
	return handler.CommandAnalysisResult{Type: handler.AnalysisConfidentCommand}, nil
}
func (h *blockingHandler) GetReply(ctx context.Context, analysis handler.CommandAnalysisResult) (*handler.ReplyResult, error) {
	<-h.release
	return &handler.ReplyResult{Messages: []handler.ReplyMessage{handler.TextMessage("done", "")}, End: true}, nil
}
func (h *blockingHandler) GetState() any { return nil }
func (h *blockingHandler) Reset()        {}

func TestStop_ExitsRunGoroutine(t *testing.T) {
	l, _, notifyQ := newTestLoop()
	require.NoError(t, l.Start(context.Background(), false, nil))
	waitForWaiter(t, notifyQ)

	require.NoError(t, l.Stop(context.Background()))

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("run goroutine did not exit after Stop")
	}
}

func TestStart_EmitsHighestPriorityWelcome(t *testing.T) {
	low := &stubHandler{id: "faq", priority: 1}
	high := stubHandler{id: "program", priority: 5}
	welcome := &handler.ReplyResult{Messages: []handler.ReplyMessage{handler.TextMessage("hi there", "")}}

	l, rec, notifyQ := newTestLoop()
	l.registry.Register(low)
	l.registry.Register(&initHandler{stubHandler: high, welcome: welcome})
	require.NoError(t, l.Start(context.Background(), true, nil))
	defer stopLoop(t, l)

	waitForWaiter(t, notifyQ)
	require.NotEmpty(t, rec.Calls)
	assert.Equal(t, "hi there", rec.Calls[0].Text)
}

// multiTurnHandler returns successive replies from a fixed script,
// tracking how many times GetReply was invoked, for exercising the
// expecting-keeps-control-on-user-queue loop shape.
type multiTurnHandler struct {
	id      string
	calls   int
	replies []*handler.ReplyResult
}

func (h *multiTurnHandler) UniqueID() string { return h.id }
func (h *multiTurnHandler) Priority() int    { return 0 }
func (h *multiTurnHandler) Icon() *string    { return nil }
func (h *multiTurnHandler) Initialize(ctx context.Context, prevState any, showWelcome bool) (*handler.ReplyResult, error) {
	return nil, nil
}
func (h *multiTurnHandler) AnalyzeCommand(ctx context.Context, in handler.UserInput) (handler.CommandAnalysisResult, error) {
	return handler.CommandAnalysisResult{Type: handler.AnalysisConfidentCommand}, nil
}
func (h *multiTurnHandler) GetReply(ctx context.Context, analysis handler.CommandAnalysisResult) (*handler.ReplyResult, error) {
	r := h.replies[h.calls]
	h.calls++
	return r, nil
}
func (h *multiTurnHandler) GetState() any { return nil }
func (h *multiTurnHandler) Reset()        {}

// initHandler layers a fixed Initialize reply on top of stubHandler.
type initHandler struct {
	stubHandler
	welcome *handler.ReplyResult
}

func (h *initHandler) Initialize(ctx context.Context, prevState any, showWelcome bool) (*handler.ReplyResult, error) {
	return h.welcome, nil
}

func stopLoop(t *testing.T, l *Loop) {
	t.Helper()
	_ = l.Stop(context.Background())
}

func waitForCalls(t *testing.T, rec *delegate.RecordingDelegate, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(rec.Calls) >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d recorded calls, got %d", n, len(rec.Calls))
}
