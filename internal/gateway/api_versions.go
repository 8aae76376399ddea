package gateway

import (
	"fmt"
	"net/http"

	"github.com/soyeahso/workbench/internal/store"
)

type restoreRequest struct {
	VersionID string `json:"version_id"`
}

func (s *Server) versionStore() (*store.VersionStore, error) {
	if s.versions == nil {
		return nil, fmt.Errorf("file history: %w", errUnavailable)
	}
	return s.versions, nil
}

// recordVersion saves content as the newest version of p. A failure is
// logged and does not fail the write that triggered it.
func (s *Server) recordVersion(p, content, message string) {
	if s.versions == nil || s.workspace == nil {
		return
	}
	rel, err := s.workspace.Clean(p)
	if err != nil {
		return
	}
	if _, err := s.versions.Record(rel, content, message); err != nil {
		s.log.Warn().Err(err).Str("path", rel).Msg("recording file version failed")
	}
}

// moveVersions carries a file's history along when it is moved.
func (s *Server) moveVersions(src, dst string) {
	if s.versions == nil || s.workspace == nil {
		return
	}
	from, err := s.workspace.Clean(src)
	if err != nil {
		return
	}
	to, err := s.workspace.Clean(dst)
	if err != nil {
		return
	}
	if _, err := s.versions.Rename(from, to); err != nil {
		s.log.Warn().Err(err).Str("from", from).Str("to", to).Msg("moving file history failed")
	}
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	vs, err := s.versionStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ws, err := s.workspaceStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := ws.Clean(wildcardPath(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	versions, err := vs.List(p, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", map[string]any{
		"filepath": p,
		"versions": versions,
		"total":    len(versions),
	})
}

func (s *Server) handleRestoreVersion(w http.ResponseWriter, r *http.Request) {
	vs, err := s.versionStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ws, err := s.workspaceStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req restoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.VersionID == "" {
		s.fail(w, r, fmt.Errorf("%w: version_id is required", errBadRequest))
		return
	}
	p, err := ws.Clean(wildcardPath(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	v, err := vs.Get(req.VersionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if v.Path != p {
		s.fail(w, r, fmt.Errorf("version %s of %s: %w", req.VersionID, p, store.ErrNotFound))
		return
	}

	created, err := ws.Write(r.Context(), p, v.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.recordVersion(p, v.Content, "restore "+shortID(v.ID))
	s.workspaceChanged(r.Context(), p)
	respond(w, http.StatusOK, "version restored", map[string]any{
		"filepath":   p,
		"version_id": v.ID,
		"created":    created,
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
