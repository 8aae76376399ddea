package plugin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/workbench/internal/config"
	"github.com/soyeahso/workbench/internal/hooks"
	"github.com/soyeahso/workbench/internal/logging"
)

// Runner is implemented by plugins that keep a goroutine alive after Init.
type Runner interface {
	Running() bool
}

// Status describes a registered plugin for `plugins.list`.
type Status struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Initialized bool   `json:"initialized"`
	Running     *bool  `json:"running,omitempty"`
	InitMs      int64  `json:"initMs,omitempty"`
}

type entry struct {
	plugin   Plugin
	inited   bool
	initTook time.Duration
}

// Registry starts the serve-time plugins in order and stops them in
// reverse.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	order    []string
	hooks    *hooks.Manager
	cfg      config.Config
	backends Backends
	log      *logging.Logger
}

// NewRegistry creates a plugin registry. Every plugin receives cfg and
// backends in its API.
func NewRegistry(hm *hooks.Manager, cfg config.Config, backends Backends, log *logging.Logger) *Registry {
	return &Registry{
		entries:  make(map[string]*entry),
		hooks:    hm,
		cfg:      cfg,
		backends: backends,
		log:      log.Sub("plugins"),
	}
}

// Register adds a plugin without initializing it.
func (r *Registry) Register(p Plugin) error {
	id := strings.TrimSpace(p.ID())
	if id == "" {
		return errors.New("plugin id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("plugin already registered: %s", id)
	}
	r.entries[id] = &entry{plugin: p}
	r.order = append(r.order, id)

	r.log.Debug().Str("id", id).Str("version", p.Version()).Msg("plugin registered")
	return nil
}

// InitAll initializes plugins in registration order. It stops at the first
// failure; plugins initialized before it are still closed by CloseAll.
func (r *Registry) InitAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.order {
		e := r.entries[id]
		if e.inited {
			continue
		}
		api := API{
			Hooks:    r.hooks,
			Log:      r.log.Sub(id),
			Config:   r.cfg,
			Backends: r.backends,
		}

		start := time.Now()
		if err := e.plugin.Init(ctx, api); err != nil {
			return fmt.Errorf("init plugin %s: %w", id, err)
		}
		e.inited = true
		e.initTook = time.Since(start)
		r.log.Info().Str("id", id).Dur("took", e.initTook).Msg("plugin started")
	}
	return nil
}

// CloseAll shuts down initialized plugins in reverse order.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		id := r.order[i]
		e := r.entries[id]
		if !e.inited {
			continue
		}
		if err := e.plugin.Close(); err != nil {
			r.log.Error().Err(err).Str("id", id).Msg("plugin close error")
		}
		e.inited = false
		r.log.Debug().Str("id", id).Msg("plugin stopped")
	}
}

// Get returns a plugin by ID, or nil if not found.
func (r *Registry) Get(id string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok {
		return e.plugin
	}
	return nil
}

// List returns the registered plugin IDs in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Statuses reports every registered plugin in registration order.
func (r *Registry) Statuses() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(r.order))
	for _, id := range r.order {
		e := r.entries[id]
		st := Status{
			ID:          id,
			Name:        e.plugin.Name(),
			Version:     e.plugin.Version(),
			Initialized: e.inited,
			InitMs:      e.initTook.Milliseconds(),
		}
		if run, ok := e.plugin.(Runner); ok {
			running := run.Running()
			st.Running = &running
		}
		out = append(out, st)
	}
	return out
}
