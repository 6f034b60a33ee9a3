package skill

import (
	"context"

	"github.com/cascade-run/cascade/internal/handler"
	"github.com/cascade-run/cascade/internal/skill/mcpskill"
)

// DialogueHandlerDeviceKind identifies which Thingpedia device kind a dynamic skill
// handler answers for. spec.md §4.5's dynamically-loaded skill handlers
// attach for devices of kind "org.thingpedia.dialogue-handler".
const DialogueHandlerDeviceKind = "org.thingpedia.dialogue-handler"

// DeviceEventKind discriminates a DeviceView event.
type DeviceEventKind int

const (
	DeviceAdded DeviceEventKind = iota
	DeviceRemoved
)

// DeviceEvent is one device-view notification: a device of the
// dialogue-handler kind appeared or disappeared.
type DeviceEvent struct {
	Kind     DeviceEventKind
	DeviceID string
	Name     string
	Command  string // process command that speaks the MCP stdio protocol
}

// DeviceView is the Go analogue of the reference architecture's implicit
// device-view subscription: a channel of attach/detach notifications the
// loop's device-view watcher forwards to the skill registry.
type DeviceView <-chan DeviceEvent

// DynamicHandler is what WatchDeviceView needs from a handler it attaches
// on DeviceAdded and detaches on DeviceRemoved, on top of the ordinary
// handler.Handler surface the registry dispatches through.
type DynamicHandler interface {
	handler.Handler
	Attach(ctx context.Context) error
	Detach() error
}

// NewMCPSkill is the default DynamicHandler factory WatchDeviceView uses:
// one mcpskill.Handler per discovered dialogue-handler device.
func NewMCPSkill(ev DeviceEvent) DynamicHandler {
	return mcpskill.New(ev.DeviceID, ev.Name, ev.Command)
}

// WatchDeviceView drives spec.md §4.5's attach/detach lifecycle: it reads
// view until the channel closes or ctx is cancelled, attaching a fresh
// handler into registry for every DeviceAdded and unregistering/detaching
// it for the matching DeviceRemoved. newHandler defaults to NewMCPSkill
// when nil; a test can supply a fake to exercise the lifecycle without a
// real MCP server process. onAttachError, when non-nil, is called with
// any Attach failure; that device is never registered, so a later
// DeviceRemoved for the same ID is a no-op rather than a detach of a
// handler that was never live.
func WatchDeviceView(ctx context.Context, view DeviceView, registry *handler.Registry, newHandler func(DeviceEvent) DynamicHandler, onAttachError func(DeviceEvent, error)) {
	if newHandler == nil {
		newHandler = NewMCPSkill
	}
	attached := make(map[string]DynamicHandler)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-view:
			if !ok {
				return
			}
			switch ev.Kind {
			case DeviceAdded:
				h := newHandler(ev)
				if err := h.Attach(ctx); err != nil {
					if onAttachError != nil {
						onAttachError(ev, err)
					}
					continue
				}
				attached[ev.DeviceID] = h
				registry.Register(h)
			case DeviceRemoved:
				h, ok := attached[ev.DeviceID]
				if !ok {
					continue
				}
				delete(attached, ev.DeviceID)
				registry.Unregister(h.UniqueID())
				h.Detach()
			}
		}
	}
}
