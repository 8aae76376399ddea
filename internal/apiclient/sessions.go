package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/soyeahso/workbench/internal/composer"
	"github.com/soyeahso/workbench/internal/domain"
)

// SessionPage is one page of chat sessions.
type SessionPage struct {
	Sessions []domain.ChatSession `json:"sessions"`
	Total    int                  `json:"total"`
	Limit    int                  `json:"limit"`
	Offset   int                  `json:"offset"`
}

// EventPage is one page of session events.
type EventPage struct {
	Events []domain.Event `json:"events"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	PresetID string
	Status   domain.SessionStatus
}

// ListSessions returns chat sessions, most recent first.
func (c *Client) ListSessions(ctx context.Context, f SessionFilter, page Page) (*SessionPage, error) {
	q := page.values()
	if f.PresetID != "" {
		q.Set("preset_id", f.PresetID)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	var out SessionPage
	if err := c.call(ctx, http.MethodGet, "/chat-history/sessions", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NewSession describes a session to start. Either Draft or PresetID must
// be set.
type NewSession struct {
	SessionID string          `json:"session_id,omitempty"`
	Title     string          `json:"title,omitempty"`
	PresetID  string          `json:"preset_id,omitempty"`
	Draft     *composer.Draft `json:"draft,omitempty"`
}

// CreateSession starts a session. The query becomes its first event.
func (c *Client) CreateSession(ctx context.Context, in NewSession) (*domain.ChatSession, error) {
	var s domain.ChatSession
	if err := c.call(ctx, http.MethodPost, "/chat-history/sessions", nil, in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSession returns a session by id.
func (c *Client) GetSession(ctx context.Context, id string) (*domain.ChatSession, error) {
	var s domain.ChatSession
	if err := c.call(ctx, http.MethodGet, "/chat-history/sessions/"+url.PathEscape(id), nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SetSessionStatus moves a session to status.
func (c *Client) SetSessionStatus(ctx context.Context, id string, status domain.SessionStatus) (*domain.ChatSession, error) {
	var s domain.ChatSession
	body := map[string]string{"status": string(status)}
	if err := c.call(ctx, http.MethodPut, "/chat-history/sessions/"+url.PathEscape(id), nil, body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSession removes a session and its events.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/chat-history/sessions/"+url.PathEscape(id), nil, nil, nil)
}

// Events returns a page of a session's events in order. An empty
// eventType returns every type.
func (c *Client) Events(ctx context.Context, sessionID, eventType string, page Page) (*EventPage, error) {
	q := page.values()
	if eventType != "" {
		q.Set("type", eventType)
	}
	var out EventPage
	path := "/chat-history/sessions/" + url.PathEscape(sessionID) + "/events"
	if err := c.call(ctx, http.MethodGet, path, q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AppendEvent stores an event on a session.
func (c *Client) AppendEvent(ctx context.Context, sessionID string, ev domain.Event) (*domain.Event, error) {
	var saved domain.Event
	path := "/chat-history/sessions/" + url.PathEscape(sessionID) + "/events"
	if err := c.call(ctx, http.MethodPost, path, nil, ev, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// SearchEvents runs a full-text search over event data.
func (c *Client) SearchEvents(ctx context.Context, query string, limit int) ([]domain.Event, error) {
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Events []domain.Event `json:"events"`
	}
	if err := c.call(ctx, http.MethodGet, "/chat-history/search", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}
