package gateway

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soyeahso/workbench/internal/composer"
	"github.com/soyeahso/workbench/internal/domain"
	"github.com/soyeahso/workbench/internal/hooks"
	"github.com/soyeahso/workbench/internal/mcpservers"
	"github.com/soyeahso/workbench/internal/store"
)

type presetList struct {
	Presets []domain.Preset `json:"presets"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

func (s *Server) presetStore() (*store.PresetStore, error) {
	if s.presets == nil {
		return nil, fmt.Errorf("presets: %w", errUnavailable)
	}
	return s.presets, nil
}

func (s *Server) mcpRegistry() (*mcpservers.Registry, error) {
	if s.mcp == nil {
		return nil, fmt.Errorf("mcp servers: %w", errUnavailable)
	}
	return s.mcp, nil
}

// composerOptions restricts drafts to the registered MCP servers.
func (s *Server) composerOptions() []composer.Option {
	if s.mcp == nil {
		return nil
	}
	return []composer.Option{composer.WithKnownServers(s.mcp.Names())}
}

func (s *Server) handleListModes(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, "", map[string]any{
		"modes":   domain.ModeInfos(),
		"default": domain.DefaultAgentMode,
	})
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	ps, err := s.presetStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, offset, err := pageParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	presets, total, err := ps.List(limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if presets == nil {
		presets = []domain.Preset{}
	}
	respond(w, http.StatusOK, "", presetList{Presets: presets, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) handleCreatePreset(w http.ResponseWriter, r *http.Request) {
	ps, err := s.presetStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in domain.PresetInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	// Predefined presets only come from config.
	in.IsPredefined = false
	p, err := ps.Create(in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.emit(r.Context(), hooks.EventPresetSaved, map[string]any{"id": p.ID, "label": p.Label, "created": true})
	respond(w, http.StatusCreated, "preset created", p)
}

func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	ps, err := s.presetStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := ps.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", p)
}

func (s *Server) handleUpdatePreset(w http.ResponseWriter, r *http.Request) {
	ps, err := s.presetStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in domain.PresetInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := ps.Update(chi.URLParam(r, "id"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.emit(r.Context(), hooks.EventPresetSaved, map[string]any{"id": p.ID, "label": p.Label, "created": false})
	respond(w, http.StatusOK, "preset updated", p)
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	ps, err := s.presetStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := ps.Delete(id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.emit(r.Context(), hooks.EventPresetDeleted, map[string]any{"id": id})
	respond(w, http.StatusOK, "preset deleted", map[string]any{"id": id})
}

// handleApplyPreset loads a preset into a fresh composer and returns the
// resulting draft.
func (s *Server) handleApplyPreset(w http.ResponseWriter, r *http.Request) {
	ps, err := s.presetStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := ps.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	c := composer.New(s.composerOptions()...)
	c.ApplyPreset(*p)
	respond(w, http.StatusOK, "preset applied", c.Draft())
}

func (s *Server) handleListMCPServers(w http.ResponseWriter, r *http.Request) {
	reg, err := s.mcpRegistry()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	servers := reg.List()
	if servers == nil {
		servers = []domain.MCPServer{}
	}
	respond(w, http.StatusOK, "", map[string]any{"servers": servers, "total": len(servers)})
}

func (s *Server) handleAddMCPServer(w http.ResponseWriter, r *http.Request) {
	reg, err := s.mcpRegistry()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in domain.MCPServer
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	saved, err := reg.AddUser(in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "mcp server saved", saved)
}

func (s *Server) handleRemoveMCPServer(w http.ResponseWriter, r *http.Request) {
	reg, err := s.mcpRegistry()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	name := chi.URLParam(r, "name")
	if err := reg.RemoveUser(name); err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "mcp server removed", map[string]any{"name": name})
}
