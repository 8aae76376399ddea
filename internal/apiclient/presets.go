package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/soyeahso/workbench/internal/composer"
	"github.com/soyeahso/workbench/internal/domain"
)

// PresetPage is one page of presets.
type PresetPage struct {
	Presets []domain.Preset `json:"presets"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListPresets returns predefined presets first, then the most recently
// updated.
func (c *Client) ListPresets(ctx context.Context, page Page) (*PresetPage, error) {
	var out PresetPage
	if err := c.call(ctx, http.MethodGet, "/presets", page.values(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPreset returns a preset by id.
func (c *Client) GetPreset(ctx context.Context, id string) (*domain.Preset, error) {
	var p domain.Preset
	if err := c.call(ctx, http.MethodGet, "/presets/"+url.PathEscape(id), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePreset saves a new user preset.
func (c *Client) CreatePreset(ctx context.Context, in domain.PresetInput) (*domain.Preset, error) {
	var p domain.Preset
	if err := c.call(ctx, http.MethodPost, "/presets", nil, in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePreset changes the non-empty fields of in.
func (c *Client) UpdatePreset(ctx context.Context, id string, in domain.PresetInput) (*domain.Preset, error) {
	var p domain.Preset
	if err := c.call(ctx, http.MethodPut, "/presets/"+url.PathEscape(id), nil, in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePreset removes a user preset. Predefined presets answer 403.
func (c *Client) DeletePreset(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/presets/"+url.PathEscape(id), nil, nil, nil)
}

// ApplyPreset returns the composer draft the preset produces.
func (c *Client) ApplyPreset(ctx context.Context, id string) (*composer.Draft, error) {
	var d composer.Draft
	if err := c.call(ctx, http.MethodPost, "/presets/"+url.PathEscape(id)+"/apply", nil, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Modes lists the agent modes and the default one.
type Modes struct {
	Modes   []domain.ModeInfo `json:"modes"`
	Default domain.AgentMode  `json:"default"`
}

// ListModes returns every agent mode in picker order.
func (c *Client) ListModes(ctx context.Context) (*Modes, error) {
	var m Modes
	if err := c.call(ctx, http.MethodGet, "/modes", nil, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMCPServers returns the configured MCP servers sorted by name.
func (c *Client) ListMCPServers(ctx context.Context) ([]domain.MCPServer, error) {
	var out struct {
		Servers []domain.MCPServer `json:"servers"`
	}
	if err := c.call(ctx, http.MethodGet, "/mcp/servers", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Servers, nil
}

// AddMCPServer saves a user MCP server, replacing one with the same name.
func (c *Client) AddMCPServer(ctx context.Context, s domain.MCPServer) (*domain.MCPServer, error) {
	var saved domain.MCPServer
	if err := c.call(ctx, http.MethodPost, "/mcp/servers", nil, s, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// RemoveMCPServer deletes a user MCP server.
func (c *Client) RemoveMCPServer(ctx context.Context, name string) error {
	return c.call(ctx, http.MethodDelete, "/mcp/servers/"+url.PathEscape(name), nil, nil, nil)
}
