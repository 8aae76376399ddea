package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/soyeahso/workbench/internal/domain"
	"github.com/soyeahso/workbench/internal/logging"
)

// ErrInvalidEvent is returned when an event has no type or its data is not
// valid JSON.
var ErrInvalidEvent = errors.New("invalid event")

// ChatStore persists chat sessions and their event streams.
type ChatStore struct {
	db  *DB
	log *logging.Logger
	now func() time.Time
}

// NewChatStore creates a chat store over db.
func NewChatStore(db *DB) *ChatStore {
	return &ChatStore{
		db:  db,
		log: db.log.Sub("chat"),
		now: time.Now,
	}
}

// SessionInput describes a session to create.
type SessionInput struct {
	SessionID string           `json:"session_id,omitempty"`
	Title     string           `json:"title,omitempty"`
	AgentMode domain.AgentMode `json:"agent_mode,omitempty"`
	PresetID  string           `json:"preset_id,omitempty"`
	Folder    string           `json:"selected_folder,omitempty"`
	Servers   []string         `json:"selected_servers,omitempty"`
}

// ListOptions pages and filters ListSessions and Events.
type ListOptions struct {
	Limit    int
	Offset   int
	PresetID string
	Status   domain.SessionStatus
	Type     string
}

func (o ListOptions) page() (int, int) {
	limit, offset := o.Limit, o.Offset
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

const sessionColumns = `s.id, s.session_id, s.title, s.agent_mode, s.preset_id, s.selected_folder,
	s.selected_servers, s.status, s.created_at, s.completed_at, s.last_activity,
	(SELECT COUNT(*) FROM events e WHERE e.chat_session_id = s.id)`

// CreateSession starts a new active session. A missing session id is
// generated.
func (s *ChatStore) CreateSession(in SessionInput) (*domain.ChatSession, error) {
	mode := in.AgentMode
	if mode == "" {
		mode = domain.DefaultAgentMode
	}
	if !mode.IsValid() {
		return nil, &domain.ValidationError{Field: "agent_mode", Message: fmt.Sprintf("unknown mode %q", mode)}
	}
	if mode.RequiresFolder() && in.Folder == "" {
		return nil, &domain.ValidationError{
			Field:   "selected_folder",
			Message: fmt.Sprintf("is required for %s mode", mode.Label()),
		}
	}

	now := s.now().UTC()
	sess := &domain.ChatSession{
		ID:           uuid.New().String(),
		SessionID:    in.SessionID,
		Title:        in.Title,
		AgentMode:    mode,
		PresetID:     in.PresetID,
		Folder:       in.Folder,
		Servers:      in.Servers,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		LastActivity: now,
	}
	if sess.SessionID == "" {
		sess.SessionID = uuid.New().String()
	}
	if sess.Servers == nil {
		sess.Servers = []string{}
	}
	servers, err := json.Marshal(sess.Servers)
	if err != nil {
		return nil, fmt.Errorf("encoding selected_servers: %w", err)
	}

	_, err = s.db.sql.Exec(`
		INSERT INTO chat_sessions (id, session_id, title, agent_mode, preset_id,
			selected_folder, selected_servers, status, created_at, last_activity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.SessionID, sess.Title, string(mode), nullString(sess.PresetID),
		sess.Folder, string(servers), string(sess.Status),
		formatTime(now), formatTime(now),
	)
	switch constraintCode(err) {
	case 0:
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return nil, fmt.Errorf("session %s: %w", sess.SessionID, ErrExists)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return nil, fmt.Errorf("preset %s: %w", sess.PresetID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("inserting chat session: %w", err)
	}
	s.log.Debug().Str("id", sess.ID).Str("mode", string(mode)).Msg("chat session created")
	return sess, nil
}

// GetSession returns a session by id or by its external session id.
func (s *ChatStore) GetSession(id string) (*domain.ChatSession, error) {
	row := s.db.sql.QueryRow(`SELECT `+sessionColumns+`
		FROM chat_sessions s WHERE s.id = ? OR s.session_id = ?`, id, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return sess, err
}

// UpdateSession changes the title and/or status of a session. Moving to a
// terminal status records completed_at.
func (s *ChatStore) UpdateSession(id string, title *string, status domain.SessionStatus) (*domain.ChatSession, error) {
	if status != "" && !status.IsValid() {
		return nil, &domain.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	sess, err := s.GetSession(id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if title != nil {
		sess.Title = *title
	}
	if status != "" && status != sess.Status {
		sess.Status = status
		if status.IsTerminal() {
			sess.CompletedAt = &now
		} else {
			sess.CompletedAt = nil
		}
	}
	sess.LastActivity = now

	var completed sql.NullString
	if sess.CompletedAt != nil {
		completed = sql.NullString{String: formatTime(*sess.CompletedAt), Valid: true}
	}
	_, err = s.db.sql.Exec(`
		UPDATE chat_sessions SET title = ?, status = ?, completed_at = ?, last_activity = ?
		WHERE id = ?`,
		sess.Title, string(sess.Status), completed, formatTime(now), sess.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating chat session: %w", err)
	}
	return sess, nil
}

// DeleteSession removes a session and all of its events.
func (s *ChatStore) DeleteSession(id string) error {
	sess, err := s.GetSession(id)
	if err != nil {
		return err
	}

	tx, err := s.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin delete session: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM events WHERE chat_session_id = ?`, sess.ID); err != nil {
		tx.Rollback()
		return fmt.Errorf("deleting events: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM chat_sessions WHERE id = ?`, sess.ID); err != nil {
		tx.Rollback()
		return fmt.Errorf("deleting chat session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete session: %w", err)
	}
	s.log.Debug().Str("id", sess.ID).Msg("chat session deleted")
	return nil
}

// ListSessions returns a page of sessions, most recently active first, and
// the total number matching the filters.
func (s *ChatStore) ListSessions(opts ListOptions) ([]domain.ChatSession, int, error) {
	var (
		where []string
		args  []any
	)
	if opts.PresetID != "" {
		where = append(where, "s.preset_id = ?")
		args = append(args, opts.PresetID)
	}
	if opts.Status != "" {
		where = append(where, "s.status = ?")
		args = append(args, string(opts.Status))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.sql.QueryRow(`SELECT COUNT(*) FROM chat_sessions s`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting chat sessions: %w", err)
	}

	limit, offset := opts.page()
	rows, err := s.db.sql.Query(`SELECT `+sessionColumns+` FROM chat_sessions s`+clause+`
		ORDER BY s.last_activity DESC, s.created_at DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing chat sessions: %w", err)
	}
	defer rows.Close()

	sessions := []domain.ChatSession{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, total, rows.Err()
}

// AppendEvent stores an event for the session and bumps its last activity.
// A zero timestamp is set to now.
func (s *ChatStore) AppendEvent(sessionID string, ev domain.Event) (*domain.Event, error) {
	if strings.TrimSpace(ev.Type) == "" {
		return nil, fmt.Errorf("%w: type is required", ErrInvalidEvent)
	}
	if len(ev.Data) > 0 && !json.Valid(ev.Data) {
		return nil, fmt.Errorf("%w: data is not valid JSON", ErrInvalidEvent)
	}
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ev.ID = uuid.New().String()
	ev.SessionID = sess.ID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = now
	}
	ev.Timestamp = ev.Timestamp.UTC()

	var data sql.NullString
	if len(ev.Data) > 0 {
		data = sql.NullString{String: string(ev.Data), Valid: true}
	}

	tx, err := s.db.sql.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin append event: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO events (id, chat_session_id, event_type, timestamp, event_data)
		VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.SessionID, ev.Type, formatTime(ev.Timestamp), data,
	); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("inserting event: %w", err)
	}
	if _, err := tx.Exec(`UPDATE chat_sessions SET last_activity = ? WHERE id = ?`,
		formatTime(now), ev.SessionID); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("touching chat session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append event: %w", err)
	}
	return &ev, nil
}

// Events returns a page of a session's events in time order, optionally
// filtered by type, and the total number matching.
func (s *ChatStore) Events(sessionID string, opts ListOptions) ([]domain.Event, int, error) {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return nil, 0, err
	}

	clause := ` WHERE chat_session_id = ?`
	args := []any{sess.ID}
	if opts.Type != "" {
		clause += ` AND event_type = ?`
		args = append(args, opts.Type)
	}

	var total int
	if err := s.db.sql.QueryRow(`SELECT COUNT(*) FROM events`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting events: %w", err)
	}

	limit, offset := opts.page()
	rows, err := s.db.sql.Query(`
		SELECT id, chat_session_id, event_type, timestamp, event_data FROM events`+clause+`
		ORDER BY timestamp, rowid LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	return events, total, err
}

// SearchEvents runs a full-text query over event types and payloads and
// returns the most relevant matches.
func (s *ChatStore) SearchEvents(query string, limit int) ([]domain.Event, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Event{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.sql.Query(`
		SELECT e.id, e.chat_session_id, e.event_type, e.timestamp, e.event_data
		FROM events_fts
		JOIN events e ON e.rowid = events_fts.rowid
		WHERE events_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, ftsQuote(query), limit)
	if err != nil {
		return nil, fmt.Errorf("searching events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ftsQuote turns free text into an FTS5 query of quoted terms, so that
// operators in user input are matched literally.
func ftsQuote(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	events := []domain.Event{}
	for rows.Next() {
		var (
			ev   domain.Event
			ts   string
			data sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Type, &ts, &data); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.Timestamp = parseTime(ts)
		if data.Valid && data.String != "" {
			ev.Data = json.RawMessage(data.String)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanSession(sc scanner) (*domain.ChatSession, error) {
	var (
		sess                    domain.ChatSession
		mode, status, servers   string
		preset, completed       sql.NullString
		createdAt, lastActivity string
	)
	err := sc.Scan(&sess.ID, &sess.SessionID, &sess.Title, &mode, &preset, &sess.Folder,
		&servers, &status, &createdAt, &completed, &lastActivity, &sess.TotalEvents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning chat session: %w", err)
	}
	if err := json.Unmarshal([]byte(servers), &sess.Servers); err != nil {
		return nil, fmt.Errorf("decoding selected_servers of %s: %w", sess.ID, err)
	}
	sess.AgentMode = domain.AgentMode(mode)
	sess.Status = domain.SessionStatus(status)
	sess.PresetID = preset.String
	sess.CreatedAt = parseTime(createdAt)
	sess.LastActivity = parseTime(lastActivity)
	if completed.Valid {
		t := parseTime(completed.String)
		sess.CompletedAt = &t
	}
	return &sess, nil
}
