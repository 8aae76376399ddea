package domain

import (
	"fmt"
	"strings"
)

// AgentMode selects how a chat session drives the agent.
type AgentMode string

const (
	ModeSimple       AgentMode = "simple"
	ModeReAct        AgentMode = "ReAct"
	ModeOrchestrator AgentMode = "orchestrator"
	ModeWorkflow     AgentMode = "workflow"
)

// DefaultAgentMode is used when a session or preset does not name one.
const DefaultAgentMode = ModeSimple

func (m AgentMode) String() string { return string(m) }

// IsValid reports whether m is one of the known modes.
func (m AgentMode) IsValid() bool {
	switch m {
	case ModeSimple, ModeReAct, ModeOrchestrator, ModeWorkflow:
		return true
	default:
		return false
	}
}

// Label returns the human-readable name shown in the mode picker.
func (m AgentMode) Label() string {
	switch m {
	case ModeSimple:
		return "Simple"
	case ModeReAct:
		return "ReAct"
	case ModeOrchestrator:
		return "Orchestrator"
	case ModeWorkflow:
		return "Workflow"
	default:
		return string(m)
	}
}

// Description is the one-line summary shown under the label.
func (m AgentMode) Description() string {
	switch m {
	case ModeSimple:
		return "Direct question and answer with the selected tools"
	case ModeReAct:
		return "Step-by-step reasoning interleaved with tool calls"
	case ModeOrchestrator:
		return "Plans a task, delegates steps to sub-agents, and writes results to a workspace folder"
	case ModeWorkflow:
		return "Runs a structured, human-verified workflow stored in a workspace folder"
	default:
		return ""
	}
}

// RequiresFolder reports whether sessions in this mode must target a
// workspace folder.
func (m AgentMode) RequiresFolder() bool {
	return m == ModeOrchestrator || m == ModeWorkflow
}

// ParseAgentMode accepts the wire value or any case-insensitive spelling
// of it. An empty string yields DefaultAgentMode.
func ParseAgentMode(s string) (AgentMode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultAgentMode, nil
	}
	for _, m := range AllAgentModes() {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown agent mode %q", s)
}

// AllAgentModes returns every mode in picker order.
func AllAgentModes() []AgentMode {
	return []AgentMode{ModeSimple, ModeReAct, ModeOrchestrator, ModeWorkflow}
}

// ModeInfo is the JSON shape of a mode in listings.
type ModeInfo struct {
	Mode           AgentMode `json:"mode"`
	Label          string    `json:"label"`
	Description    string    `json:"description"`
	RequiresFolder bool      `json:"requires_folder"`
}

// ModeInfos describes every mode.
func ModeInfos() []ModeInfo {
	modes := AllAgentModes()
	out := make([]ModeInfo, 0, len(modes))
	for _, m := range modes {
		out = append(out, ModeInfo{
			Mode:           m,
			Label:          m.Label(),
			Description:    m.Description(),
			RequiresFolder: m.RequiresFolder(),
		})
	}
	return out
}
