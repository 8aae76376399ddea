package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// LLMProviders lists the providers a preset may pin.
var LLMProviders = []string{"openrouter", "bedrock", "openai", "vertex", "anthropic"}

// LLMConfig pins the model a preset runs with.
type LLMConfig struct {
	Provider string `json:"provider"`
	ModelID  string `json:"model_id"`
}

// Validate checks provider and model id.
func (c LLMConfig) Validate() error {
	if !slices.Contains(LLMProviders, c.Provider) {
		return &ValidationError{Field: "llm_config.provider", Message: fmt.Sprintf("must be one of %v", LLMProviders)}
	}
	if strings.TrimSpace(c.ModelID) == "" {
		return &ValidationError{Field: "llm_config.model_id", Message: "is required"}
	}
	return nil
}

// Preset is a saved query plus the server, folder and mode selection
// that goes with it.
type Preset struct {
	ID              string     `json:"id"`
	Label           string     `json:"label"`
	Query           string     `json:"query"`
	SelectedServers []string   `json:"selected_servers"`
	SelectedTools   []string   `json:"selected_tools,omitempty"`
	SelectedFolder  string     `json:"selected_folder,omitempty"`
	AgentMode       AgentMode  `json:"agent_mode"`
	LLMConfig       *LLMConfig `json:"llm_config,omitempty"`
	IsPredefined    bool       `json:"is_predefined"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CreatedBy       string     `json:"created_by,omitempty"`
}

// PresetInput carries the fields of a create or update request. On update,
// nil or empty fields are left unchanged.
type PresetInput struct {
	Label           string     `json:"label"`
	Query           string     `json:"query"`
	SelectedServers []string   `json:"selected_servers,omitempty"`
	SelectedTools   []string   `json:"selected_tools,omitempty"`
	SelectedFolder  *string    `json:"selected_folder,omitempty"`
	AgentMode       AgentMode  `json:"agent_mode,omitempty"`
	LLMConfig       *LLMConfig `json:"llm_config,omitempty"`
	IsPredefined    bool       `json:"is_predefined,omitempty"`
	CreatedBy       string     `json:"created_by,omitempty"`
}

// Validate checks the input. With partial set, missing label and query are
// allowed.
func (in PresetInput) Validate(partial bool) error {
	if !partial {
		if strings.TrimSpace(in.Label) == "" {
			return &ValidationError{Field: "label", Message: "is required"}
		}
		if strings.TrimSpace(in.Query) == "" {
			return &ValidationError{Field: "query", Message: "is required"}
		}
	}
	if in.AgentMode != "" && !in.AgentMode.IsValid() {
		return &ValidationError{Field: "agent_mode", Message: fmt.Sprintf("unknown mode %q", in.AgentMode)}
	}
	if !partial && in.AgentMode.RequiresFolder() && (in.SelectedFolder == nil || *in.SelectedFolder == "") {
		return &ValidationError{
			Field:   "selected_folder",
			Message: fmt.Sprintf("is required for %s mode", in.AgentMode.Label()),
		}
	}
	for _, tool := range in.SelectedTools {
		if server, name, ok := strings.Cut(tool, ":"); !ok || server == "" || name == "" {
			return &ValidationError{Field: "selected_tools", Message: fmt.Sprintf("%q must be server:tool", tool)}
		}
	}
	if in.LLMConfig != nil {
		return in.LLMConfig.Validate()
	}
	return nil
}

// Apply merges the input into p, as an update does.
func (in PresetInput) Apply(p *Preset) {
	if in.Label != "" {
		p.Label = in.Label
	}
	if in.Query != "" {
		p.Query = in.Query
	}
	if in.SelectedServers != nil {
		p.SelectedServers = in.SelectedServers
	}
	if in.SelectedTools != nil {
		p.SelectedTools = in.SelectedTools
	}
	if in.SelectedFolder != nil {
		p.SelectedFolder = *in.SelectedFolder
	}
	if in.AgentMode != "" {
		p.AgentMode = in.AgentMode
	}
	if in.LLMConfig != nil {
		p.LLMConfig = in.LLMConfig
	}
}

// CheckFolder enforces the folder requirement of the preset's mode.
func (p Preset) CheckFolder() error {
	if p.AgentMode.RequiresFolder() && p.SelectedFolder == "" {
		return &ValidationError{
			Field:   "selected_folder",
			Message: fmt.Sprintf("is required for %s mode", p.AgentMode.Label()),
		}
	}
	return nil
}

// ValidationError reports an invalid field in a request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Message
}
