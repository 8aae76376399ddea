package gateway

import (
	"context"
	"maps"

	"github.com/soyeahso/workbench/internal/hooks"
)

// Events pushed to every connected websocket client.
const (
	BroadcastWorkspaceChanged = "workspace.changed"
	BroadcastPresetsChanged   = "presets.changed"
	BroadcastChatEvent        = "chat.event"
	BroadcastSessionStatus    = "session.status"
)

// BroadcastEvents is advertised to clients in the hello payload.
var BroadcastEvents = []string{
	BroadcastWorkspaceChanged,
	BroadcastPresetsChanged,
	BroadcastChatEvent,
	BroadcastSessionStatus,
}

// broadcastRoutes maps hook events onto websocket events.
var broadcastRoutes = map[string]string{
	hooks.EventWorkspaceChanged: BroadcastWorkspaceChanged,
	hooks.EventFileUploaded:     BroadcastWorkspaceChanged,
	hooks.EventFileDeleted:      BroadcastWorkspaceChanged,
	hooks.EventFolderDeleted:    BroadcastWorkspaceChanged,
	hooks.EventPresetSaved:      BroadcastPresetsChanged,
	hooks.EventPresetDeleted:    BroadcastPresetsChanged,
	hooks.EventChatEvent:        BroadcastChatEvent,
	hooks.EventSessionStart:     BroadcastSessionStatus,
	hooks.EventSessionEnd:       BroadcastSessionStatus,
}

const broadcastHookName = "gateway.broadcast"

// registerBroadcasts forwards hook events to websocket clients.
func (s *Server) registerBroadcasts() {
	if s.hooks == nil {
		return
	}
	for event, target := range broadcastRoutes {
		s.hooks.On(event, broadcastHookName, s.broadcaster(target))
	}
}

func (s *Server) broadcaster(target string) hooks.Handler {
	return func(_ context.Context, p hooks.Payload) error {
		payload := make(map[string]any, len(p.Data)+1)
		maps.Copy(payload, p.Data)
		payload["reason"] = p.Event
		s.clients.Broadcast(target, payload, s.eventSeq.Add(1))
		return nil
	}
}
