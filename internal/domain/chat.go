package domain

import (
	"encoding/json"
	"time"
)

// SessionStatus is the lifecycle state of a chat session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusError     SessionStatus = "error"
	StatusCancelled SessionStatus = "cancelled"
)

// IsValid reports whether s is a known status.
func (s SessionStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusError, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the session has finished.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// ChatSession is one conversation with the agent.
type ChatSession struct {
	ID           string        `json:"id"`
	SessionID    string        `json:"session_id"`
	Title        string        `json:"title"`
	AgentMode    AgentMode     `json:"agent_mode"`
	PresetID     string        `json:"preset_id,omitempty"`
	Folder       string        `json:"selected_folder,omitempty"`
	Servers      []string      `json:"selected_servers,omitempty"`
	Status       SessionStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	LastActivity time.Time     `json:"last_activity"`
	TotalEvents  int           `json:"total_events"`
}

// Event types rendered by the event display. Unknown types are stored and
// shown as-is.
const (
	EventUserMessage        = "user_message"
	EventAgentStart         = "agent_start"
	EventAgentEnd           = "agent_end"
	EventLLMGenerationStart = "llm_generation_start"
	EventLLMGenerationEnd   = "llm_generation_end"
	EventToolCallStart      = "tool_call_start"
	EventToolCallEnd        = "tool_call_end"
	EventToolCallError      = "tool_call_error"
	EventAgentError         = "agent_error"
	EventWorkflowPhase      = "workflow_phase"
)

// Event is a single entry of a session's event stream.
type Event struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// IsError reports whether the event signals a failure.
func (e Event) IsError() bool {
	return e.Type == EventToolCallError || e.Type == EventAgentError
}
