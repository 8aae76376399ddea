package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/workbench/internal/config"
	"github.com/soyeahso/workbench/internal/domain"
	"github.com/soyeahso/workbench/internal/hooks"
	"github.com/soyeahso/workbench/internal/version"
	"github.com/soyeahso/workbench/internal/workspace"
)

// Builtins returns the plugins every `workbench serve` registers, in start
// order.
func Builtins() []Plugin {
	return []Plugin{
		&CommandHooks{},
		&PresetSeeder{},
		&WorkspaceWatcher{},
	}
}

// CommandHooks registers the shell commands from the hooks config section.
// Commands run off the emitting goroutine.
type CommandHooks struct {
	hooks   *hooks.Manager
	byEvent map[string][]config.HookEntry
}

func (p *CommandHooks) ID() string      { return "command-hooks" }
func (p *CommandHooks) Name() string    { return "Command hooks" }
func (p *CommandHooks) Version() string { return version.Version }

func (p *CommandHooks) Init(_ context.Context, api API) error {
	if api.Hooks == nil {
		return nil
	}
	p.hooks = api.Hooks
	p.byEvent = api.Config.Hooks.ByEvent()
	n := api.Hooks.RegisterCommands(p.byEvent)
	if n > 0 {
		api.Log.Info().Int("count", n).Msg("command hooks registered")
	}
	return nil
}

// Close removes the command handlers and waits for commands still running.
func (p *CommandHooks) Close() error {
	if p.hooks != nil {
		p.hooks.UnregisterCommands(p.byEvent)
		p.hooks.Wait()
	}
	return nil
}

// PresetSeeder stores the configured predefined presets that are missing.
type PresetSeeder struct{}

func (p *PresetSeeder) ID() string      { return "preset-seeder" }
func (p *PresetSeeder) Name() string    { return "Predefined presets" }
func (p *PresetSeeder) Version() string { return version.Version }

func (p *PresetSeeder) Init(_ context.Context, api API) error {
	entries := api.Config.Presets.Predefined
	if api.Presets == nil || len(entries) == 0 {
		return nil
	}
	inputs, err := PresetInputs(entries)
	if err != nil {
		return err
	}
	added, err := api.Presets.SeedPredefined(inputs)
	if err != nil {
		return err
	}
	api.Log.Debug().Int("configured", len(inputs)).Int("added", added).Msg("predefined presets checked")
	return nil
}

func (p *PresetSeeder) Close() error { return nil }

// PresetInputs converts configured predefined presets to store inputs.
func PresetInputs(entries []config.PresetEntry) ([]domain.PresetInput, error) {
	out := make([]domain.PresetInput, 0, len(entries))
	for i, e := range entries {
		mode, err := domain.ParseAgentMode(e.Mode)
		if err != nil {
			return nil, fmt.Errorf("presets.predefined[%d]: %w", i, err)
		}
		in := domain.PresetInput{
			Label:           e.Label,
			Query:           e.Query,
			SelectedServers: e.Servers,
			AgentMode:       mode,
			IsPredefined:    true,
		}
		if e.Folder != "" {
			folder := e.Folder
			in.SelectedFolder = &folder
		}
		out = append(out, in)
	}
	return out, nil
}

// WorkspaceWatcher runs the filesystem watcher over the workspace root so
// edits made outside the API still reach connected clients.
type WorkspaceWatcher struct {
	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

func (p *WorkspaceWatcher) ID() string      { return "workspace-watcher" }
func (p *WorkspaceWatcher) Name() string    { return "Workspace watcher" }
func (p *WorkspaceWatcher) Version() string { return version.Version }

func (p *WorkspaceWatcher) Init(ctx context.Context, api API) error {
	if api.Workspace == nil || api.Hooks == nil {
		return nil
	}
	if !api.Config.Workspace.WatchEnabled() {
		api.Log.Info().Msg("workspace watcher disabled")
		return nil
	}

	debounce := time.Duration(api.Config.Workspace.DebounceMs) * time.Millisecond
	w := workspace.NewWatcher(api.Workspace, api.Hooks, debounce, api.Log)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.mu.Lock()
	p.cancel, p.done = cancel, done
	p.mu.Unlock()

	go func() {
		defer close(done)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			api.Log.Error().Err(err).Msg("workspace watcher stopped")
		}
	}()
	return nil
}

// Running reports whether the watcher goroutine is still active.
func (p *WorkspaceWatcher) Running() bool {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (p *WorkspaceWatcher) Close() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
