package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/soyeahso/workbench/internal/domain"
	"github.com/soyeahso/workbench/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sqlite3 "modernc.org/sqlite/lib"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// clock returns a now func that advances one second per call.
func clock() func() time.Time {
	t := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func strPtr(s string) *string { return &s }

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db.SQL())
	assert.Equal(t, ":memory:", db.Path())
	assert.NoError(t, db.Ping(context.Background()))

	v, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].Version, v)

	var fk int
	require.NoError(t, db.sql.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestOpen_File(t *testing.T) {
	path := t.TempDir() + "/data/workbench.db"
	db, err := Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)

	var mode string
	require.NoError(t, db.sql.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
	require.NoError(t, db.Close())
	assert.FileExists(t, path)

	// Reopening finds every migration already applied.
	db, err = Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)
	defer db.Close()
	v, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
}

func TestMigrate_RejectsOutOfOrder(t *testing.T) {
	db := testDB(t)
	orig := migrations
	t.Cleanup(func() { migrations = orig })
	migrations = append(append([]migration{}, orig...), migration{Version: 1, Name: "dup", SQL: "SELECT 1"})

	err := db.migrate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of order")
}

func TestMigrations_Applied(t *testing.T) {
	db := testDB(t)

	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)

	err := db.migrate()
	require.NoError(t, err)

	var count int
	err = db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{"preset_queries", "chat_sessions", "events", "events_fts", "file_versions"}
	for _, table := range tables {
		var name string
		err := db.sql.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestParseTime_Fallback(t *testing.T) {
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), parseTime("2026-01-02 03:04:05"))
	ts := time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC)
	assert.Equal(t, ts, parseTime(formatTime(ts)))
}

// --- Preset Store tests ---

func testPresets(t *testing.T) *PresetStore {
	t.Helper()
	ps := NewPresetStore(testDB(t))
	ps.now = clock()
	return ps
}

func TestPresetStore_CreateAndGet(t *testing.T) {
	ps := testPresets(t)

	p, err := ps.Create(domain.PresetInput{
		Label:           "Weekly report",
		Query:           "Summarise this week's plans",
		SelectedServers: []string{"filesystem", "planner"},
		SelectedTools:   []string{"planner:list"},
		SelectedFolder:  strPtr("plans"),
		AgentMode:       domain.ModeOrchestrator,
		LLMConfig:       &domain.LLMConfig{Provider: "openai", ModelID: "gpt-4o"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.IsPredefined)

	got, err := ps.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestPresetStore_CreateDefaults(t *testing.T) {
	ps := testPresets(t)

	p, err := ps.Create(domain.PresetInput{Label: "Quick", Query: "hello"})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeSimple, p.AgentMode)
	assert.Equal(t, []string{}, p.SelectedServers)

	got, err := ps.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{}, got.SelectedServers)
	assert.Nil(t, got.SelectedTools)
	assert.Nil(t, got.LLMConfig)
	assert.Empty(t, got.SelectedFolder)
}

func TestPresetStore_CreateValidation(t *testing.T) {
	ps := testPresets(t)

	_, err := ps.Create(domain.PresetInput{Query: "q"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "label", verr.Field)

	_, err = ps.Create(domain.PresetInput{Label: "x", Query: "q", AgentMode: domain.ModeWorkflow})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "selected_folder", verr.Field)
}

func TestPresetStore_GetMissing(t *testing.T) {
	ps := testPresets(t)
	_, err := ps.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPresetStore_Update(t *testing.T) {
	ps := testPresets(t)
	p, err := ps.Create(domain.PresetInput{Label: "Draft", Query: "first", SelectedFolder: strPtr("plans")})
	require.NoError(t, err)

	got, err := ps.Update(p.ID, domain.PresetInput{Query: "second", AgentMode: domain.ModeOrchestrator})
	require.NoError(t, err)
	assert.Equal(t, "Draft", got.Label)
	assert.Equal(t, "second", got.Query)
	assert.Equal(t, "plans", got.SelectedFolder)
	assert.True(t, got.UpdatedAt.After(p.UpdatedAt))

	stored, err := ps.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, got, stored)
}

func TestPresetStore_UpdateChecksMergedFolder(t *testing.T) {
	ps := testPresets(t)
	p, err := ps.Create(domain.PresetInput{Label: "Simple", Query: "q"})
	require.NoError(t, err)

	_, err = ps.Update(p.ID, domain.PresetInput{AgentMode: domain.ModeWorkflow})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "selected_folder", verr.Field)

	_, err = ps.Update("missing", domain.PresetInput{Query: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPresetStore_Delete(t *testing.T) {
	ps := testPresets(t)
	p, err := ps.Create(domain.PresetInput{Label: "Temp", Query: "q"})
	require.NoError(t, err)

	require.NoError(t, ps.Delete(p.ID))
	_, err = ps.Get(p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, ps.Delete(p.ID), ErrNotFound)
}

func TestPresetStore_DeletePredefined(t *testing.T) {
	ps := testPresets(t)
	p, err := ps.Create(domain.PresetInput{Label: "Built-in", Query: "q", IsPredefined: true})
	require.NoError(t, err)

	assert.ErrorIs(t, ps.Delete(p.ID), ErrPredefined)
	_, err = ps.Get(p.ID)
	assert.NoError(t, err)
}

func TestPresetStore_List(t *testing.T) {
	ps := testPresets(t)
	a, err := ps.Create(domain.PresetInput{Label: "A", Query: "q"})
	require.NoError(t, err)
	b, err := ps.Create(domain.PresetInput{Label: "B", Query: "q"})
	require.NoError(t, err)
	sys, err := ps.Create(domain.PresetInput{Label: "System", Query: "q", IsPredefined: true})
	require.NoError(t, err)

	// Touch A so it becomes the most recently updated user preset.
	_, err = ps.Update(a.ID, domain.PresetInput{Query: "changed"})
	require.NoError(t, err)

	list, total, err := ps.List(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, list, 3)
	assert.Equal(t, []string{sys.ID, a.ID, b.ID}, []string{list[0].ID, list[1].ID, list[2].ID})

	page, total, err := ps.List(1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, a.ID, page[0].ID)
}

func TestPresetStore_ListEmpty(t *testing.T) {
	ps := testPresets(t)
	list, total, err := ps.List(10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestPresetStore_SeedPredefined(t *testing.T) {
	ps := testPresets(t)
	inputs := []domain.PresetInput{
		{Label: "Daily plan", Query: "Plan my day"},
		{Label: "Review", Query: "Review the roadmap", SelectedFolder: strPtr("plans"), AgentMode: domain.ModeWorkflow},
	}

	n, err := ps.SeedPredefined(inputs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = ps.SeedPredefined(inputs)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "seeding is idempotent by label")

	list, total, err := ps.List(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, p := range list {
		assert.True(t, p.IsPredefined)
		assert.Equal(t, "system", p.CreatedBy)
	}
}

func TestPresetStore_SeedInvalid(t *testing.T) {
	ps := testPresets(t)
	_, err := ps.SeedPredefined([]domain.PresetInput{{Label: "Broken"}})
	assert.Error(t, err)
}

// --- Chat Store tests ---

func testChats(t *testing.T) (*ChatStore, *PresetStore) {
	t.Helper()
	db := testDB(t)
	cs := NewChatStore(db)
	cs.now = clock()
	ps := NewPresetStore(db)
	ps.now = clock()
	return cs, ps
}

func TestChatStore_CreateAndGet(t *testing.T) {
	cs, _ := testChats(t)

	sess, err := cs.CreateSession(SessionInput{Title: "Plan", Servers: []string{"filesystem"}})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.NotEmpty(t, sess.SessionID)
	assert.Equal(t, domain.ModeSimple, sess.AgentMode)
	assert.Equal(t, domain.StatusActive, sess.Status)

	got, err := cs.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	byExternal, err := cs.GetSession(sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, byExternal.ID)

	_, err = cs.GetSession("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChatStore_CreateValidation(t *testing.T) {
	cs, _ := testChats(t)

	_, err := cs.CreateSession(SessionInput{AgentMode: "bogus"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "agent_mode", verr.Field)

	_, err = cs.CreateSession(SessionInput{AgentMode: domain.ModeOrchestrator})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "selected_folder", verr.Field)

	_, err = cs.CreateSession(SessionInput{AgentMode: domain.ModeOrchestrator, Folder: "plans"})
	assert.NoError(t, err)
}

func TestChatStore_DuplicateSessionID(t *testing.T) {
	cs, _ := testChats(t)
	_, err := cs.CreateSession(SessionInput{SessionID: "ext-1"})
	require.NoError(t, err)
	_, err = cs.CreateSession(SessionInput{SessionID: "ext-1"})
	assert.ErrorIs(t, err, ErrExists)
	assert.Contains(t, err.Error(), "ext-1")
}

func TestChatStore_CreateWithMissingPreset(t *testing.T) {
	cs, _ := testChats(t)
	_, err := cs.CreateSession(SessionInput{PresetID: "no-such-preset"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "no-such-preset")
}

func TestConstraintCode(t *testing.T) {
	assert.Zero(t, constraintCode(nil))
	assert.Zero(t, constraintCode(ErrNotFound))

	db := testDB(t)
	_, err := db.SQL().Exec(`INSERT INTO events (id, chat_session_id, event_type, timestamp) VALUES ('e', 'nope', 't', 'now')`)
	require.Error(t, err)
	assert.Equal(t, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, constraintCode(err))
}

func TestChatStore_UpdateSession(t *testing.T) {
	cs, _ := testChats(t)
	sess, err := cs.CreateSession(SessionInput{Title: "old"})
	require.NoError(t, err)

	got, err := cs.UpdateSession(sess.ID, strPtr("new"), "")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Title)
	assert.Nil(t, got.CompletedAt)

	got, err = cs.UpdateSession(sess.ID, nil, domain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	stored, err := cs.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, got.CompletedAt, stored.CompletedAt)

	got, err = cs.UpdateSession(sess.ID, nil, domain.StatusActive)
	require.NoError(t, err)
	assert.Nil(t, got.CompletedAt)

	_, err = cs.UpdateSession(sess.ID, nil, "paused")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestChatStore_Events(t *testing.T) {
	cs, _ := testChats(t)
	sess, err := cs.CreateSession(SessionInput{})
	require.NoError(t, err)

	_, err = cs.AppendEvent(sess.ID, domain.Event{Type: domain.EventUserMessage, Data: json.RawMessage(`{"text":"hi"}`)})
	require.NoError(t, err)
	_, err = cs.AppendEvent(sess.SessionID, domain.Event{Type: domain.EventAgentStart})
	require.NoError(t, err)
	ev, err := cs.AppendEvent(sess.ID, domain.Event{Type: domain.EventAgentEnd, Data: json.RawMessage(`{"result":"done"}`)})
	require.NoError(t, err)
	assert.Equal(t, sess.ID, ev.SessionID)
	assert.NotEmpty(t, ev.ID)

	events, total, err := cs.Events(sess.ID, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, events, 3)
	assert.Equal(t, domain.EventUserMessage, events[0].Type)
	assert.JSONEq(t, `{"text":"hi"}`, string(events[0].Data))
	assert.Nil(t, events[1].Data)
	assert.Equal(t, domain.EventAgentEnd, events[2].Type)

	page, total, err := cs.Events(sess.ID, ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, domain.EventAgentStart, page[0].Type)

	filtered, total, err := cs.Events(sess.ID, ListOptions{Type: domain.EventAgentEnd})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, ev.ID, filtered[0].ID)

	got, err := cs.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalEvents)
	assert.True(t, got.LastActivity.After(sess.LastActivity))
}

func TestChatStore_AppendEventErrors(t *testing.T) {
	cs, _ := testChats(t)
	sess, err := cs.CreateSession(SessionInput{})
	require.NoError(t, err)

	_, err = cs.AppendEvent(sess.ID, domain.Event{})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, err = cs.AppendEvent(sess.ID, domain.Event{Type: "x", Data: json.RawMessage(`{broken`)})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, err = cs.AppendEvent("missing", domain.Event{Type: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = cs.Events("missing", ListOptions{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChatStore_AppendEventKeepsTimestamp(t *testing.T) {
	cs, _ := testChats(t)
	sess, err := cs.CreateSession(SessionInput{})
	require.NoError(t, err)

	ts := time.Date(2025, 12, 24, 18, 30, 0, 0, time.UTC)
	ev, err := cs.AppendEvent(sess.ID, domain.Event{Type: "custom_event", Timestamp: ts})
	require.NoError(t, err)
	assert.Equal(t, ts, ev.Timestamp)

	events, _, err := cs.Events(sess.ID, ListOptions{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ts, events[0].Timestamp)
	assert.Equal(t, "custom_event", events[0].Type)
}

func TestChatStore_DeleteSession(t *testing.T) {
	cs, _ := testChats(t)
	sess, err := cs.CreateSession(SessionInput{})
	require.NoError(t, err)
	_, err = cs.AppendEvent(sess.ID, domain.Event{Type: domain.EventUserMessage, Data: json.RawMessage(`"remove me"`)})
	require.NoError(t, err)

	require.NoError(t, cs.DeleteSession(sess.ID))
	_, err = cs.GetSession(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var n int
	require.NoError(t, cs.db.sql.QueryRow("SELECT COUNT(*) FROM events").Scan(&n))
	assert.Zero(t, n)

	found, err := cs.SearchEvents("remove", 10)
	require.NoError(t, err)
	assert.Empty(t, found)

	assert.ErrorIs(t, cs.DeleteSession(sess.ID), ErrNotFound)
}

func TestChatStore_ListSessions(t *testing.T) {
	cs, ps := testChats(t)
	preset, err := ps.Create(domain.PresetInput{Label: "P", Query: "q"})
	require.NoError(t, err)

	first, err := cs.CreateSession(SessionInput{Title: "first", PresetID: preset.ID})
	require.NoError(t, err)
	second, err := cs.CreateSession(SessionInput{Title: "second"})
	require.NoError(t, err)
	_, err = cs.AppendEvent(first.ID, domain.Event{Type: domain.EventUserMessage})
	require.NoError(t, err)
	_, err = cs.UpdateSession(second.ID, nil, domain.StatusError)
	require.NoError(t, err)

	all, total, err := cs.ListSessions(ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "most recently active first")
	assert.Equal(t, 1, all[1].TotalEvents)

	byPreset, total, err := cs.ListSessions(ListOptions{PresetID: preset.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, first.ID, byPreset[0].ID)

	byStatus, total, err := cs.ListSessions(ListOptions{Status: domain.StatusError})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, second.ID, byStatus[0].ID)

	page, total, err := cs.ListSessions(ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, page, 1)
}

func TestChatStore_PresetDeleteDetachesSessions(t *testing.T) {
	cs, ps := testChats(t)
	preset, err := ps.Create(domain.PresetInput{Label: "P", Query: "q"})
	require.NoError(t, err)
	sess, err := cs.CreateSession(SessionInput{PresetID: preset.ID})
	require.NoError(t, err)

	require.NoError(t, ps.Delete(preset.ID))
	got, err := cs.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Empty(t, got.PresetID)
}

func TestChatStore_SearchEvents(t *testing.T) {
	cs, _ := testChats(t)
	sess, err := cs.CreateSession(SessionInput{})
	require.NoError(t, err)
	_, err = cs.AppendEvent(sess.ID, domain.Event{Type: domain.EventUserMessage, Data: json.RawMessage(`{"text":"draft the quarterly budget"}`)})
	require.NoError(t, err)
	_, err = cs.AppendEvent(sess.ID, domain.Event{Type: domain.EventToolCallError, Data: json.RawMessage(`{"error":"timeout"}`)})
	require.NoError(t, err)

	found, err := cs.SearchEvents("budget", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, domain.EventUserMessage, found[0].Type)

	found, err = cs.SearchEvents("timeout OR missing", 10)
	require.NoError(t, err, "operators are quoted")
	assert.Empty(t, found)

	found, err = cs.SearchEvents("  ", 10)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestFTSQuote(t *testing.T) {
	assert.Equal(t, `"a" "b""c"`, ftsQuote(` a  b"c `))
}
