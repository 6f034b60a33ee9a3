package handler

import "context"

// Handler is the uniform contract every dialogue handler implements
// (spec.md §4.3). analyzeCommand is pure and cheap; getReply is the
// side-effectful, possibly multi-turn routine.
type Handler interface {
	// UniqueID identifies the handler, unique within a session.
	UniqueID() string

	// Priority breaks confidence ties; higher wins.
	Priority() int

	// Icon is the handler's display icon, if any.
	Icon() *string

	// Initialize produces an optional welcome reply. prevState, when
	// non-nil, is the opaque state returned by a prior GetState call.
	Initialize(ctx context.Context, prevState any, showWelcome bool) (*ReplyResult, error)

	// AnalyzeCommand classifies a turn without side effects.
	AnalyzeCommand(ctx context.Context, input UserInput) (CommandAnalysisResult, error)

	// GetReply drives the turn to a reply, possibly suspending on
	// sub-dialogue primitives. May mutate handler state.
	GetReply(ctx context.Context, analysis CommandAnalysisResult) (*ReplyResult, error)

	// GetState returns opaque, serializable handler state.
	GetState() any

	// Reset clears handler state. Called on every handler at session
	// cancellation; handlers are not destroyed.
	Reset()
}

// Registry manages the handlers available to the arbiter, grounded on the
// reference architecture's subagent.Registry: a name-keyed map with a
// small, closed method set rather than a generic collection type.
type Registry struct {
	handlers map[string]Handler
	order    []string // insertion order, for stable first-reporter tie-breaks
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler to the registry. Registering a handler whose
// UniqueID is already present replaces it in place (same position in
// iteration order), matching how a dynamic skill handler is expected to
// re-attach after a device reappears.
func (r *Registry) Register(h Handler) {
	id := h.UniqueID()
	if _, exists := r.handlers[id]; !exists {
		r.order = append(r.order, id)
	}
	r.handlers[id] = h
}

// Unregister removes a handler (used when a dynamic skill's device is
// removed).
func (r *Registry) Unregister(uniqueID string) {
	if _, ok := r.handlers[uniqueID]; !ok {
		return
	}
	delete(r.handlers, uniqueID)
	for i, id := range r.order {
		if id == uniqueID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get retrieves a handler by id.
func (r *Registry) Get(uniqueID string) (Handler, bool) {
	h, ok := r.handlers[uniqueID]
	return h, ok
}

// All returns every registered handler in stable registration order —
// the order the arbiter uses to break first-reporter ties (spec.md R4).
func (r *Registry) All() []Handler {
	out := make([]Handler, 0, len(r.order))
	for _, id := range r.order {
		if h, ok := r.handlers[id]; ok {
			out = append(out, h)
		}
	}
	return out
}

// ResetAll resets every registered handler (session cancellation).
func (r *Registry) ResetAll() {
	for _, h := range r.handlers {
		h.Reset()
	}
}
