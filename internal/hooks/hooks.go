// Package hooks dispatches workspace, preset and session lifecycle events
// to in-process handlers and configured shell commands.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/soyeahso/workbench/internal/logging"
)

// Event names for the hook system.
const (
	EventWorkspaceChanged = "workspace_changed"
	EventFileUploaded     = "file_uploaded"
	EventFileDeleted      = "file_deleted"
	EventFolderDeleted    = "folder_deleted"
	EventPresetSaved      = "preset_saved"
	EventPresetDeleted    = "preset_deleted"
	EventSessionStart     = "session_start"
	EventSessionEnd       = "session_end"
	EventChatEvent        = "chat_event"
	EventGatewayStart     = "gateway_start"
	EventGatewayStop      = "gateway_stop"
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventWorkspaceChanged,
	EventFileUploaded,
	EventFileDeleted,
	EventFolderDeleted,
	EventPresetSaved,
	EventPresetDeleted,
	EventSessionStart,
	EventSessionEnd,
	EventChatEvent,
	EventGatewayStart,
	EventGatewayStop,
}

// Known reports whether event is one of AllEvents.
func Known(event string) bool {
	return slices.Contains(AllEvents, event)
}

// Payload is what a handler receives.
type Payload struct {
	Event string         `json:"event"`
	Time  time.Time      `json:"time"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler handles one hook event.
type Handler func(ctx context.Context, p Payload) error

type namedHandler struct {
	name    string
	handler Handler
	async   bool
}

// Manager holds hook registrations and dispatches events to them.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	inflight sync.WaitGroup
	log      *logging.Logger
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a handler that runs inline with Emit.
func (m *Manager) On(event, name string, handler Handler) {
	m.register(event, namedHandler{name: name, handler: handler})
}

// OnAsync registers a handler that runs on its own goroutine, so a slow
// handler does not hold up the request that emitted the event. Wait blocks
// until running async handlers return.
func (m *Manager) OnAsync(event, name string, handler Handler) {
	m.register(event, namedHandler{name: name, handler: handler, async: true})
}

func (m *Manager) register(event string, h namedHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], h)
	m.log.Debug().Str("event", event).Str("handler", h.name).Bool("async", h.async).Msg("hook registered")
}

// Off removes all handlers with the given name from the event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = slices.DeleteFunc(m.handlers[event], func(h namedHandler) bool {
		return h.name == name
	})
}

// Emit dispatches an event. Inline handlers run in registration order and
// their errors are joined into the result; one failing handler does not
// stop the rest. Async handlers are started and their errors only logged.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) error {
	m.mu.RLock()
	handlers := slices.Clone(m.handlers[event])
	m.mu.RUnlock()
	if len(handlers) == 0 {
		return nil
	}

	payload := Payload{Event: event, Time: time.Now().UTC(), Data: data}

	var errs []error
	for _, h := range handlers {
		if h.async {
			m.inflight.Go(func() {
				if err := h.handler(context.WithoutCancel(ctx), payload); err != nil {
					m.logFailure(event, h.name, err)
				}
			})
			continue
		}
		if err := h.handler(ctx, payload); err != nil {
			m.logFailure(event, h.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) logFailure(event, name string, err error) {
	m.log.Warn().Err(err).Str("event", event).Str("handler", name).Msg("hook handler error")
}

// Wait blocks until every async handler started so far has returned.
func (m *Manager) Wait() {
	m.inflight.Wait()
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the sorted events that have at least one handler.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]string, 0, len(m.handlers))
	for event, handlers := range m.handlers {
		if len(handlers) > 0 {
			events = append(events, event)
		}
	}
	slices.Sort(events)
	return events
}
