// Package plugin runs the services that live alongside the gateway for the
// lifetime of `workbench serve`: the workspace watcher, configured shell
// hooks and predefined preset seeding.
package plugin

import (
	"context"

	"github.com/soyeahso/workbench/internal/config"
	"github.com/soyeahso/workbench/internal/hooks"
	"github.com/soyeahso/workbench/internal/logging"
	"github.com/soyeahso/workbench/internal/mcpservers"
	"github.com/soyeahso/workbench/internal/store"
	"github.com/soyeahso/workbench/internal/workspace"
)

// Plugin is a service started with the gateway and stopped when it exits.
type Plugin interface {
	// ID returns a unique identifier for the plugin (e.g., "watcher").
	ID() string

	// Name returns a human-readable name.
	Name() string

	// Version returns the plugin version string.
	Version() string

	// Init starts the plugin. Long-running work must stop when ctx is
	// cancelled or Close is called, whichever comes first.
	Init(ctx context.Context, api API) error

	// Close shuts down the plugin and releases resources.
	Close() error
}

// Backends are the stores a plugin may use. Any of them may be nil.
type Backends struct {
	Workspace *workspace.Store
	Presets   *store.PresetStore
	Chats     *store.ChatStore
	MCP       *mcpservers.Registry
}

// API is what a plugin gets at Init.
type API struct {
	Hooks  *hooks.Manager
	Log    *logging.Logger
	Config config.Config
	Backends
}
