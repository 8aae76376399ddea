package gateway

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/soyeahso/workbench/internal/config"
	"github.com/soyeahso/workbench/internal/domain"
	"github.com/soyeahso/workbench/internal/plugin"
	"github.com/soyeahso/workbench/internal/store"
	"github.com/soyeahso/workbench/internal/workspace"
)

// safeConfigPrefixes lists config path prefixes that can be read and
// written via RPC. All other paths are denied by default (allowlist).
var safeConfigPrefixes = []string{
	"gateway.port",
	"gateway.bind",
	"gateway.customBindHost",
	"gateway.controlUi",
	"logging",
	"workspace.maxDepth",
	"workspace.debounceMs",
	"upload",
	"presets",
}

func isAllowedConfigPath(key string) bool {
	for _, prefix := range safeConfigPrefixes {
		if key == prefix || strings.HasPrefix(key, prefix+".") {
			return true
		}
	}
	return false
}

// Handler builds the HTTP handler: the public health check, the websocket
// endpoint and the authenticated REST API.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		requestIDMiddleware,
		recoverMiddleware(s.log),
		loggingMiddleware(s.log),
		corsMiddleware(s.cfg.Gateway.ControlUI.AllowedOrigins),
		tracingMiddleware,
		middleware.CleanPath,
	)

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, Envelope{
			Message: http.StatusText(http.StatusMethodNotAllowed),
			Error:   r.Method + " " + r.URL.Path,
		})
	})

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.apiAuth)

		r.Get("/modes", s.handleListModes)

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.handleListDocuments)
			r.Post("/", s.handleCreateDocument)
			r.Post("/move", s.handleMoveDocument)
			r.Get("/*", s.handleGetDocument)
			r.Put("/*", s.handlePutDocument)
			r.Patch("/*", s.handlePatchDocument)
			r.Delete("/*", s.handleDeleteDocument)
		})

		r.Route("/folders", func(r chi.Router) {
			r.Get("/", s.handleSuggestFolders)
			r.Post("/", s.handleCreateFolder)
			r.Delete("/*", s.handleDeleteFolder)
		})
		r.Delete("/folder-files/*", s.handleClearFolder)

		r.Get("/versions/*", s.handleListVersions)
		r.Post("/restore/*", s.handleRestoreVersion)

		r.Post("/upload", s.handleUpload)
		r.Get("/search", s.handleSearch)

		r.Route("/presets", func(r chi.Router) {
			r.Get("/", s.handleListPresets)
			r.Post("/", s.handleCreatePreset)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetPreset)
				r.Put("/", s.handleUpdatePreset)
				r.Delete("/", s.handleDeletePreset)
				r.Post("/apply", s.handleApplyPreset)
			})
		})

		r.Route("/mcp/servers", func(r chi.Router) {
			r.Get("/", s.handleListMCPServers)
			r.Post("/", s.handleAddMCPServer)
			r.Delete("/{name}", s.handleRemoveMCPServer)
		})

		r.Route("/chat-history", func(r chi.Router) {
			r.Get("/search", s.handleSearchEvents)
			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", s.handleListSessions)
				r.Post("/", s.handleCreateSession)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetSession)
					r.Put("/", s.handleUpdateSession)
					r.Delete("/", s.handleDeleteSession)
					r.Get("/events", s.handleListEvents)
					r.Post("/events", s.handleAppendEvent)
				})
			})
		})
	})

	return r
}

// registerRPCHandlers sets up all JSON-RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("config.get", s.rpcConfigGet)
	s.Handle("config.set", s.rpcConfigSet)
	s.Handle("modes.list", s.rpcModesList)
	s.Handle("workspace.list", s.rpcWorkspaceList)
	s.Handle("workspace.folders", s.rpcWorkspaceFolders)
	s.Handle("presets.list", s.rpcPresetsList)
	s.Handle("mcp.servers", s.rpcMCPServers)
	s.Handle("sessions.list", s.rpcSessionsList)
	s.Handle("events.subscribe", s.rpcEventsSubscribe)
	s.Handle("clients.list", s.rpcClientsList)
	s.Handle("plugins.list", s.rpcPluginsList)
}

// Built-in RPC handlers

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Clients:  s.clients.Count(),
		Uptime:   s.uptime().String(),
		Backends: s.backends(),
	})
}

// rpcEventsSubscribe replaces the caller's broadcast subscription. An
// omitted events list subscribes to everything.
func (s *Server) rpcEventsSubscribe(rc *RequestContext) {
	var sub Subscription
	if err := rc.Params(&sub); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	for _, ev := range sub.Events {
		if !slices.Contains(BroadcastEvents, ev) {
			rc.RespondError(CodeInvalidParams, "unknown event: "+ev)
			return
		}
	}
	rc.Client.Subscribe(sub)
	rc.Respond(rc.Client.Subscription())
}

func (s *Server) rpcClientsList(rc *RequestContext) {
	rc.Respond(map[string]any{"clients": s.clients.List()})
}

func (s *Server) rpcPluginsList(rc *RequestContext) {
	if s.plugins == nil {
		rc.Respond(map[string]any{"plugins": []plugin.Status{}})
		return
	}
	rc.Respond(map[string]any{"plugins": s.plugins.Statuses()})
}

type configGetParams struct {
	Key string `json:"key"`
}

func (s *Server) rpcConfigGet(rc *RequestContext) {
	var p configGetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.Key == "" {
		rc.RespondError(CodeInvalidParams, "key is required")
		return
	}
	if !isAllowedConfigPath(p.Key) {
		rc.RespondError(CodeForbidden, "access denied for config path: "+p.Key)
		return
	}

	path, err := config.ParseConfigPath(p.Key)
	if err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}

	s.mu.RLock()
	val, ok := config.GetValueAtPath(s.configRaw, path)
	s.mu.RUnlock()
	if !ok {
		rc.RespondError(CodeNotFound, "key not found: "+p.Key)
		return
	}
	rc.Respond(map[string]any{"key": p.Key, "value": val})
}

type configSetParams struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (s *Server) rpcConfigSet(rc *RequestContext) {
	var p configSetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.Key == "" {
		rc.RespondError(CodeInvalidParams, "key is required")
		return
	}
	if !isAllowedConfigPath(p.Key) {
		rc.RespondError(CodeForbidden, "cannot modify config path: "+p.Key)
		return
	}

	path, err := config.ParseConfigPath(p.Key)
	if err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}

	s.mu.Lock()
	config.SetValueAtPath(s.configRaw, path, p.Value)
	s.mu.Unlock()

	rc.Respond(map[string]any{"key": p.Key, "value": p.Value})
}

func (s *Server) rpcModesList(rc *RequestContext) {
	rc.Respond(map[string]any{
		"modes":   domain.ModeInfos(),
		"default": domain.DefaultAgentMode,
	})
}

type workspaceListParams struct {
	Folder   string `json:"folder,omitempty"`
	MaxDepth *int   `json:"maxDepth,omitempty"`
	Filter   string `json:"filter,omitempty"`
}

func (s *Server) rpcWorkspaceList(rc *RequestContext) {
	ws, err := s.workspaceStore()
	if err != nil {
		rc.RespondErr(err)
		return
	}
	var p workspaceListParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	depth := s.cfg.Workspace.MaxDepth
	if p.MaxDepth != nil {
		depth = *p.MaxDepth
	}
	tree, err := ws.List(rc.Ctx, p.Folder, depth)
	if err != nil {
		rc.RespondErr(err)
		return
	}
	if p.Filter != "" {
		tree = workspace.FilterTree(tree, p.Filter)
	}
	if tree == nil {
		tree = []domain.File{}
	}
	rc.Respond(documentsResponse{Folder: p.Folder, Files: tree, TotalFiles: workspace.CountFiles(tree)})
}

type workspaceFoldersParams struct {
	Query string `json:"q,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

func (s *Server) rpcWorkspaceFolders(rc *RequestContext) {
	ws, err := s.workspaceStore()
	if err != nil {
		rc.RespondErr(err)
		return
	}
	var p workspaceFoldersParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	tree, err := ws.List(rc.Ctx, "", -1)
	if err != nil {
		rc.RespondErr(err)
		return
	}
	matches := workspace.FuzzyFolders(p.Query, workspace.FolderPaths(tree), p.Limit)
	if matches == nil {
		matches = []workspace.FolderMatch{}
	}
	rc.Respond(map[string]any{"folders": matches, "total": len(matches)})
}

type pageParamsRPC struct {
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
	PresetID string `json:"presetId,omitempty"`
	Status   string `json:"status,omitempty"`
}

func (p pageParamsRPC) limit() int {
	if p.Limit <= 0 || p.Limit > maxPageLimit {
		return defaultPageLimit
	}
	return p.Limit
}

func (s *Server) rpcPresetsList(rc *RequestContext) {
	ps, err := s.presetStore()
	if err != nil {
		rc.RespondErr(err)
		return
	}
	var p pageParamsRPC
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	presets, total, err := ps.List(p.limit(), max(p.Offset, 0))
	if err != nil {
		rc.RespondErr(err)
		return
	}
	if presets == nil {
		presets = []domain.Preset{}
	}
	rc.Respond(presetList{Presets: presets, Total: total, Limit: p.limit(), Offset: max(p.Offset, 0)})
}

func (s *Server) rpcMCPServers(rc *RequestContext) {
	reg, err := s.mcpRegistry()
	if err != nil {
		rc.RespondErr(err)
		return
	}
	servers := reg.List()
	if servers == nil {
		servers = []domain.MCPServer{}
	}
	rc.Respond(map[string]any{"servers": servers, "total": len(servers)})
}

func (s *Server) rpcSessionsList(rc *RequestContext) {
	cs, err := s.chatStore()
	if err != nil {
		rc.RespondErr(err)
		return
	}
	var p pageParamsRPC
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	sessions, total, err := cs.ListSessions(store.ListOptions{
		Limit:    p.limit(),
		Offset:   max(p.Offset, 0),
		PresetID: p.PresetID,
		Status:   domain.SessionStatus(p.Status),
	})
	if err != nil {
		rc.RespondErr(err)
		return
	}
	rc.Respond(sessionList{Sessions: sessions, Total: total, Limit: p.limit(), Offset: max(p.Offset, 0)})
}
