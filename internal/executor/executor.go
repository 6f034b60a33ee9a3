// Package executor defines the streaming execution collaborator of
// spec.md §4.4 item 5: confirmed programs are handed to an Executor which
// streams {outputType, outputValue} pairs back over a channel for
// rendering. The actual dispatch (skill RPCs, remote-principal delivery)
// is an external collaborator per spec.md §1(iii); this package only
// defines the contract and a registry keyed by device kind, grounded on
// the reference architecture's tools/executor.Registry (name-keyed tool
// map with a uniform Execute entry point).
package executor

import (
	"context"
	"errors"

	"github.com/cascade-run/cascade/internal/handler"
)

// ErrNoExecutor is returned when no Executor is registered for a
// program's device kind.
var ErrNoExecutor = errors.New("executor: no executor registered for this device kind")

// Output is one {outputType, outputValue} pair streamed by an Executor,
// or a terminal Err ending the stream (spec.md §7: executor errors do not
// cancel the session, only end the result stream).
type Output struct {
	OutputType  string
	OutputValue any
	Err         error
}

// Executor runs a confirmed ProgramAST and streams its results. The
// returned channel is closed when the program finishes or fails.
type Executor interface {
	// Kind reports the device kind this executor serves, e.g.
	// "com.twitter" or "com.xkcd".
	Kind() string

	// Execute starts running ast and returns a channel of results.
	// Cancelling ctx stops delivery; the channel is still closed.
	Execute(ctx context.Context, ast *handler.ProgramAST) (<-chan Output, error)
}

// Registry maps device kind to the Executor that serves it.
type Registry struct {
	executors map[string]Executor
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register adds an executor, keyed by its own Kind().
func (r *Registry) Register(e Executor) {
	r.executors[e.Kind()] = e
}

// Get retrieves the executor registered for kind.
func (r *Registry) Get(kind string) (Executor, bool) {
	e, ok := r.executors[kind]
	return e, ok
}

// Dispatch resolves ast.Kind's device to a registered Executor and runs
// it, or returns ErrNoExecutor.
func (r *Registry) Dispatch(ctx context.Context, ast *handler.ProgramAST) (<-chan Output, error) {
	e, ok := r.Get(deviceKind(ast))
	if !ok {
		return nil, ErrNoExecutor
	}
	return e.Execute(ctx, ast)
}

// deviceKind extracts the device-kind prefix from a program's Kind, e.g.
// "@com.twitter.post" → "com.twitter".
func deviceKind(ast *handler.ProgramAST) string {
	if ast == nil {
		return ""
	}
	k := ast.Kind
	if len(k) > 0 && k[0] == '@' {
		k = k[1:]
	}
	last := -1
	for i := len(k) - 1; i >= 0; i-- {
		if k[i] == '.' {
			last = i
			break
		}
	}
	if last == -1 {
		return k
	}
	return k[:last]
}
