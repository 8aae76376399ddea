package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/soyeahso/workbench/internal/composer"
	"github.com/soyeahso/workbench/internal/domain"
	"github.com/soyeahso/workbench/internal/hooks"
	"github.com/soyeahso/workbench/internal/store"
)

const maxTitleRunes = 60

// createSessionRequest starts a session either from a composer draft or
// from a saved preset.
type createSessionRequest struct {
	SessionID string          `json:"session_id,omitempty"`
	Title     string          `json:"title,omitempty"`
	PresetID  string          `json:"preset_id,omitempty"`
	Draft     *composer.Draft `json:"draft,omitempty"`
}

type updateSessionRequest struct {
	Title  *string              `json:"title,omitempty"`
	Status domain.SessionStatus `json:"status,omitempty"`
}

type sessionList struct {
	Sessions []domain.ChatSession `json:"sessions"`
	Total    int                  `json:"total"`
	Limit    int                  `json:"limit"`
	Offset   int                  `json:"offset"`
}

type eventList struct {
	Events []domain.Event `json:"events"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func (s *Server) chatStore() (*store.ChatStore, error) {
	if s.chats == nil {
		return nil, fmt.Errorf("chat history: %w", errUnavailable)
	}
	return s.chats, nil
}

// sessionTitle derives a title from the first line of the query.
func sessionTitle(query string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(query), "\n")
	if utf8.RuneCountInString(line) <= maxTitleRunes {
		return line
	}
	return string([]rune(line)[:maxTitleRunes-1]) + "…"
}

// draftFor resolves the composer state a new session starts from.
func (s *Server) draftFor(req createSessionRequest) (*composer.Composer, error) {
	if req.Draft != nil {
		return composer.FromDraft(*req.Draft, s.composerOptions()...)
	}
	if req.PresetID == "" {
		return nil, &domain.ValidationError{Field: "draft", Message: "a draft or a preset_id is required"}
	}
	ps, err := s.presetStore()
	if err != nil {
		return nil, err
	}
	p, err := ps.Get(req.PresetID)
	if err != nil {
		return nil, err
	}
	c := composer.New(s.composerOptions()...)
	c.ApplyPreset(*p)
	return c, nil
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	cs, err := s.chatStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.draftFor(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := c.Validate(); err != nil {
		s.fail(w, r, err)
		return
	}
	draft := c.Draft()

	presetID := draft.PresetID
	if presetID == "" {
		presetID = req.PresetID
	}
	if presetID != "" && s.presets != nil {
		if _, err := s.presets.Get(presetID); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	title := req.Title
	if title == "" {
		title = sessionTitle(draft.Query)
	}
	sess, err := cs.CreateSession(store.SessionInput{
		SessionID: req.SessionID,
		Title:     title,
		AgentMode: draft.AgentMode,
		PresetID:  presetID,
		Folder:    draft.SelectedFolder,
		Servers:   draft.SelectedServers,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	data, _ := json.Marshal(map[string]any{"query": draft.Query})
	first, err := cs.AppendEvent(sess.ID, domain.Event{Type: domain.EventUserMessage, Data: data})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess.TotalEvents = 1
	sess.LastActivity = first.Timestamp

	s.emit(r.Context(), hooks.EventSessionStart, map[string]any{
		"id":         sess.ID,
		"session_id": sess.SessionID,
		"agent_mode": string(sess.AgentMode),
		"status":     string(sess.Status),
	})
	respond(w, http.StatusCreated, "session created", sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	cs, err := s.chatStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, offset, err := pageParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	status := domain.SessionStatus(q.Get("status"))
	if status != "" && !status.IsValid() {
		s.fail(w, r, &domain.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)})
		return
	}
	sessions, total, err := cs.ListSessions(store.ListOptions{
		Limit:    limit,
		Offset:   offset,
		PresetID: q.Get("preset_id"),
		Status:   status,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", sessionList{Sessions: sessions, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	cs, err := s.chatStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := cs.GetSession(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", sess)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	cs, err := s.chatStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req updateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := cs.UpdateSession(chi.URLParam(r, "id"), req.Title, req.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Status.IsTerminal() {
		s.emit(r.Context(), hooks.EventSessionEnd, map[string]any{
			"id":         sess.ID,
			"session_id": sess.SessionID,
			"status":     string(sess.Status),
		})
	}
	respond(w, http.StatusOK, "session updated", sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	cs, err := s.chatStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := cs.DeleteSession(id); err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "session deleted", map[string]any{"id": id})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	cs, err := s.chatStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, offset, err := pageParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	events, total, err := cs.Events(chi.URLParam(r, "id"), store.ListOptions{
		Limit:  limit,
		Offset: offset,
		Type:   r.URL.Query().Get("type"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", eventList{Events: events, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) handleAppendEvent(w http.ResponseWriter, r *http.Request) {
	cs, err := s.chatStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var ev domain.Event
	if err := decodeJSON(w, r, &ev); err != nil {
		s.fail(w, r, err)
		return
	}
	saved, err := cs.AppendEvent(chi.URLParam(r, "id"), ev)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.emit(r.Context(), hooks.EventChatEvent, map[string]any{
		"session_id": saved.SessionID,
		"event":      saved,
	})
	respond(w, http.StatusCreated, "event stored", saved)
}

func (s *Server) handleSearchEvents(w http.ResponseWriter, r *http.Request) {
	cs, err := s.chatStore()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultPageLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	events, err := cs.SearchEvents(r.URL.Query().Get("q"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", map[string]any{"events": events, "total": len(events)})
}
