// Package composer holds the state a user assembles before starting a chat:
// the agent mode, the query, the selected MCP servers and tools, the
// workspace folder and an optional model override.
package composer

import (
	"fmt"
	"slices"
	"strings"

	"github.com/soyeahso/workbench/internal/domain"
)

// Composer is a mutable chat draft. It is not safe for concurrent use.
type Composer struct {
	mode     domain.AgentMode
	query    string
	servers  []string
	tools    []string
	folder   string
	llm      *domain.LLMConfig
	presetID string
	known    []string
}

// Option configures a Composer.
type Option func(*Composer)

// WithKnownServers restricts server selection to the given names.
func WithKnownServers(names []string) Option {
	return func(c *Composer) {
		c.known = normalize(names)
	}
}

// New returns a composer in the default mode with nothing selected.
func New(opts ...Option) *Composer {
	c := &Composer{mode: domain.DefaultAgentMode}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mode returns the current agent mode.
func (c *Composer) Mode() domain.AgentMode { return c.mode }

// SetMode switches the agent mode. The selected folder is kept.
func (c *Composer) SetMode(m domain.AgentMode) error {
	if !m.IsValid() {
		return &domain.ValidationError{Field: "agent_mode", Message: fmt.Sprintf("unknown mode %q", m)}
	}
	c.mode = m
	return nil
}

// SetQuery replaces the query text.
func (c *Composer) SetQuery(q string) { c.query = q }

// SelectFolder sets the workspace folder the agent works in.
func (c *Composer) SelectFolder(path string) {
	c.folder = strings.Trim(strings.TrimSpace(path), "/")
}

// ClearFolder removes the folder selection.
func (c *Composer) ClearFolder() { c.folder = "" }

// ToggleServer selects the server if it is not selected and deselects it
// otherwise. It reports whether the server is selected afterwards.
func (c *Composer) ToggleServer(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	if i, found := slices.BinarySearch(c.servers, name); found {
		c.servers = slices.Delete(c.servers, i, i+1)
		c.tools = slices.DeleteFunc(c.tools, func(t string) bool {
			return strings.HasPrefix(t, name+":")
		})
		return false
	}
	c.servers = normalize(append(c.servers, name))
	return true
}

// SetServers replaces the server selection.
func (c *Composer) SetServers(names []string) {
	c.servers = normalize(names)
}

// SetTools replaces the tool selection. Tools are "server:tool" names.
func (c *Composer) SetTools(tools []string) {
	c.tools = normalize(tools)
}

// SetLLMConfig pins a model, or clears the override when cfg is nil.
func (c *Composer) SetLLMConfig(cfg *domain.LLMConfig) { c.llm = cfg }

// ApplyPreset loads a preset into the composer.
func (c *Composer) ApplyPreset(p domain.Preset) {
	c.query = p.Query
	c.servers = normalize(p.SelectedServers)
	c.tools = normalize(p.SelectedTools)
	c.folder = p.SelectedFolder
	c.mode = p.AgentMode
	if !c.mode.IsValid() {
		c.mode = domain.DefaultAgentMode
	}
	c.llm = nil
	if p.LLMConfig != nil {
		cfg := *p.LLMConfig
		c.llm = &cfg
	}
	c.presetID = p.ID
}

// Ready reports whether the draft can be submitted.
func (c *Composer) Ready() bool { return c.Validate() == nil }

// Validate checks the draft: a query is required, the mode's folder
// requirement must be met, and selected servers must be known when a known
// set was given.
func (c *Composer) Validate() error {
	if strings.TrimSpace(c.query) == "" {
		return &domain.ValidationError{Field: "query", Message: "is required"}
	}
	if c.mode.RequiresFolder() && c.folder == "" {
		return &domain.ValidationError{
			Field:   "selected_folder",
			Message: fmt.Sprintf("is required for %s mode", c.mode.Label()),
		}
	}
	if c.known != nil {
		for _, s := range c.servers {
			if _, ok := slices.BinarySearch(c.known, s); !ok {
				return &domain.ValidationError{Field: "selected_servers", Message: fmt.Sprintf("unknown server %q", s)}
			}
		}
	}
	for _, t := range c.tools {
		server, _, _ := strings.Cut(t, ":")
		if _, ok := slices.BinarySearch(c.servers, server); !ok {
			return &domain.ValidationError{Field: "selected_tools", Message: fmt.Sprintf("%q belongs to an unselected server", t)}
		}
	}
	if c.llm != nil {
		return c.llm.Validate()
	}
	return nil
}

// ToPresetInput turns the draft into a preset with the given label.
func (c *Composer) ToPresetInput(label string) domain.PresetInput {
	in := domain.PresetInput{
		Label:           label,
		Query:           c.query,
		SelectedServers: slices.Clone(c.servers),
		SelectedTools:   slices.Clone(c.tools),
		AgentMode:       c.mode,
		LLMConfig:       c.llm,
	}
	if in.SelectedServers == nil {
		in.SelectedServers = []string{}
	}
	if c.folder != "" {
		folder := c.folder
		in.SelectedFolder = &folder
	}
	return in
}

// Draft is an immutable snapshot of a composer.
type Draft struct {
	AgentMode       domain.AgentMode  `json:"agent_mode"`
	Query           string            `json:"query"`
	SelectedServers []string          `json:"selected_servers"`
	SelectedTools   []string          `json:"selected_tools,omitempty"`
	SelectedFolder  string            `json:"selected_folder,omitempty"`
	LLMConfig       *domain.LLMConfig `json:"llm_config,omitempty"`
	PresetID        string            `json:"preset_id,omitempty"`
	Ready           bool              `json:"ready"`
}

// Draft returns a snapshot of the current state.
func (c *Composer) Draft() Draft {
	d := Draft{
		AgentMode:       c.mode,
		Query:           c.query,
		SelectedServers: slices.Clone(c.servers),
		SelectedTools:   slices.Clone(c.tools),
		SelectedFolder:  c.folder,
		PresetID:        c.presetID,
		Ready:           c.Ready(),
	}
	if d.SelectedServers == nil {
		d.SelectedServers = []string{}
	}
	if c.llm != nil {
		cfg := *c.llm
		d.LLMConfig = &cfg
	}
	return d
}

// FromDraft rebuilds a composer from a snapshot, for example one posted by
// a client.
func FromDraft(d Draft, opts ...Option) (*Composer, error) {
	c := New(opts...)
	if d.AgentMode != "" {
		if err := c.SetMode(d.AgentMode); err != nil {
			return nil, err
		}
	}
	c.query = d.Query
	c.SetServers(d.SelectedServers)
	c.SetTools(d.SelectedTools)
	c.SelectFolder(d.SelectedFolder)
	c.SetLLMConfig(d.LLMConfig)
	c.presetID = d.PresetID
	return c, nil
}

// normalize trims, drops empty names, sorts and de-duplicates.
func normalize(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
