package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/soyeahso/workbench/internal/domain"
	"github.com/soyeahso/workbench/internal/hooks"
	"github.com/soyeahso/workbench/internal/workspace"
)

const multipartOverhead = 1 << 20

type documentRequest struct {
	Path    string `json:"filepath"`
	Content string `json:"content"`
}

type patchRequest struct {
	Diff    string `json:"diff"`
	Message string `json:"commit_message"`
}

type moveRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

type folderRequest struct {
	Path string `json:"folder_path"`
}

// documentsResponse is the body of GET /api/documents.
type documentsResponse struct {
	Folder     string        `json:"folder,omitempty"`
	Files      []domain.File `json:"files"`
	TotalFiles int           `json:"total_files"`
}

func (s *Server) workspaceStore() (*workspace.Store, error) {
	if s.workspace == nil {
		return nil, fmt.Errorf("workspace: %w", errUnavailable)
	}
	return s.workspace, nil
}

// workspaceChanged announces a change made through the API. When the
// filesystem watcher runs it reports the change itself.
func (s *Server) workspaceChanged(ctx context.Context, paths ...string) {
	if s.cfg.Workspace.WatchEnabled() {
		return
	}
	s.emit(ctx, hooks.EventWorkspaceChanged, map[string]any{"paths": paths})
}

func wildcardPath(r *http.Request) string {
	return strings.Trim(chi.URLParam(r, "*"), "/")
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaceStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	maxDepth, err := queryInt(r, "max_depth", s.cfg.Workspace.MaxDepth)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	folder := r.URL.Query().Get("folder")

	tree, err := ws.List(r.Context(), folder, maxDepth)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if filter := strings.TrimSpace(r.URL.Query().Get("filter")); filter != "" {
		tree = workspace.FilterTree(tree, filter)
	}
	if tree == nil {
		tree = []domain.File{}
	}
	respond(w, http.StatusOK, "", documentsResponse{
		Folder:     folder,
		Files:      tree,
		TotalFiles: workspace.CountFiles(tree),
	})
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaceStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req documentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := ws.Create(r.Context(), req.Path, req.Content); err != nil {
		s.fail(w, r, err)
		return
	}
	s.recordVersion(req.Path, req.Content, "create")
	s.workspaceChanged(r.Context(), req.Path)
	respond(w, http.StatusCreated, "document created", map[string]any{"filepath": req.Path})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaceStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	f, err := ws.Read(r.Context(), wildcardPath(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", f)
}

func (s *Server) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaceStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req documentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	p := wildcardPath(r)
	created, err := ws.Write(r.Context(), p, req.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.recordVersion(p, req.Content, "update")
	s.workspaceChanged(r.Context(), p)

	status, msg := http.StatusOK, "document updated"
	if created {
		status, msg = http.StatusCreated, "document created"
	}
	respond(w, status, msg, map[string]any{"filepath": p, "created": created})
}

func (s *Server) handlePatchDocument(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaceStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req patchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Diff) == "" {
		s.fail(w, r, fmt.Errorf("%w: diff is required", errBadRequest))
		return
	}
	res, err := ws.Patch(r.Context(), wildcardPath(r), req.Diff)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	msg := req.Message
	if msg == "" {
		msg = "patch"
	}
	s.recordVersion(res.Path, res.Content, msg)
	s.workspaceChanged(r.Context(), res.Path)
	respond(w, http.StatusOK, "diff patch applied", res)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaceStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !confirmed(r) {
		s.fail(w, r, errConfirm)
		return
	}
	p := wildcardPath(r)
	if err := ws.Delete(r.Context(), p); err != nil {
		s.fail(w, r, err)
		return
	}
	s.emit(r.Context(), hooks.EventFileDeleted, map[string]any{"filepath": p})
	s.workspaceChanged(r.Context(), p)
	respond(w, http.StatusOK, "document deleted", map[string]any{"filepath": p})
}

func (s *Server) handleMoveDocument(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaceStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := ws.Move(r.Context(), req.Source, req.Destination); err != nil {
		s.fail(w, r, err)
		return
	}
	s.moveVersions(req.Source, req.Destination)
	s.workspaceChanged(r.Context(), req.Source, req.Destination)
	respond(w, http.StatusOK, "document moved", req)
}

func (s *Server) handleSuggestFolders(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaceStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tree, err := ws.List(r.Context(), "", -1)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	matches := workspace.FuzzyFolders(r.URL.Query().Get("q"), workspace.FolderPaths(tree), limit)
	if matches == nil {
		matches = []workspace.FolderMatch{}
	}
	respond(w, http.StatusOK, "", map[string]any{"folders": matches, "total": len(matches)})
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaceStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req folderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := ws.CreateFolder(r.Context(), req.Path); err != nil {
		s.fail(w, r, err)
		return
	}
	s.workspaceChanged(r.Context(), req.Path)
	respond(w, http.StatusCreated, "folder created", req)
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaceStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !confirmed(r) {
		s.fail(w, r, errConfirm)
		return
	}
	p := wildcardPath(r)
	if err := ws.DeleteFolder(r.Context(), p); err != nil {
		s.fail(w, r, err)
		return
	}
	s.emit(r.Context(), hooks.EventFolderDeleted, map[string]any{"folder_path": p})
	s.workspaceChanged(r.Context(), p)
	respond(w, http.StatusOK, "folder deleted", map[string]any{"folder_path": p})
}

func (s *Server) handleClearFolder(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaceStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !confirmed(r) {
		s.fail(w, r, errConfirm)
		return
	}
	p := wildcardPath(r)
	removed, err := ws.ClearFolder(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	for _, f := range removed {
		s.emit(r.Context(), hooks.EventFileDeleted, map[string]any{"filepath": f})
	}
	s.workspaceChanged(r.Context(), removed...)
	if removed == nil {
		removed = []string{}
	}
	respond(w, http.StatusOK, fmt.Sprintf("%d files deleted", len(removed)), map[string]any{
		"folder_path":   p,
		"deleted_files": removed,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaceStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !s.uploads.allow(r.RemoteAddr) {
		w.Header().Set("Retry-After", "60")
		s.fail(w, r, errRateLimited)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, ws.MaxUploadBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: %v", errBadRequest, err)
		}
		s.fail(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: file field is required", errBadRequest))
		return
	}
	defer file.Close()

	res, err := ws.Upload(r.Context(), r.FormValue("folder_path"), header.Filename,
		header.Header.Get("Content-Type"), file)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.emit(r.Context(), hooks.EventFileUploaded, map[string]any{
		"filepath": res.Path,
		"size":     res.Size,
		"folder":   res.Folder,
	})
	s.workspaceChanged(r.Context(), res.Path)
	respond(w, http.StatusCreated, "file uploaded", res)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaceStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", workspace.DefaultSearchLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	res, err := ws.Search(r.Context(), q.Get("q"), q.Get("folder"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", res)
}
