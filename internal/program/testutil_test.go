package program

import (
	"testing"
	"time"

	"github.com/cascade-run/cascade/internal/delegate"
	"github.com/cascade-run/cascade/internal/handler"
	"github.com/cascade-run/cascade/internal/prefs"
	"github.com/cascade-run/cascade/internal/queue"
	"github.com/cascade-run/cascade/internal/subdialogue"
)

func newTestSession() (*subdialogue.Session, *delegate.RecordingDelegate) {
	rec := delegate.NewRecordingDelegate()
	return &subdialogue.Session{
		Queue:    queue.New(),
		Delegate: rec,
		Prefs:    prefs.NewMapStore(),
	}, rec
}

func pushUtterance(q *queue.FIFO, s string) {
	q.Push(handler.QueueItem{Kind: handler.QueueUserInput, Command: handler.NewCommand(s, nil)})
}

func pushCode(q *queue.FIFO, code []string) {
	q.Push(handler.QueueItem{Kind: handler.QueueUserInput, Command: handler.NewParsed(code, nil, nil)})
}

func pushChoice(q *queue.FIFO, i int) {
	pushCode(q, []string{"bookkeeping", "choice", itoa(i)})
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var digits []byte
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
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

// fakeDirectory is a DeviceDirectory test double with in-memory tables.
type fakeDirectory struct {
	devices    map[string][]string
	categories []string
	examples   map[string][]string
}

func (f *fakeDirectory) Devices(kind string) []string    { return f.devices[kind] }
func (f *fakeDirectory) Categories() []string             { return f.categories }
func (f *fakeDirectory) Examples(category string) []string { return f.examples[category] }
