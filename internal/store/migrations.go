package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create preset queries",
		SQL: `
			CREATE TABLE preset_queries (
				id                TEXT PRIMARY KEY,
				label             TEXT NOT NULL,
				query             TEXT NOT NULL,
				selected_servers  TEXT NOT NULL DEFAULT '[]',
				selected_tools    TEXT NOT NULL DEFAULT '[]',
				selected_folder   TEXT,
				agent_mode        TEXT NOT NULL DEFAULT 'simple',
				llm_config        TEXT,
				is_predefined     INTEGER NOT NULL DEFAULT 0,
				created_by        TEXT NOT NULL DEFAULT '',
				created_at        TEXT NOT NULL,
				updated_at        TEXT NOT NULL
			);

			CREATE INDEX idx_presets_order ON preset_queries (is_predefined DESC, updated_at DESC);
			CREATE UNIQUE INDEX idx_presets_predefined_label ON preset_queries (label) WHERE is_predefined = 1;
		`,
	},
	{
		Version: 2,
		Name:    "create chat sessions and events",
		SQL: `
			CREATE TABLE chat_sessions (
				id                TEXT PRIMARY KEY,
				session_id        TEXT NOT NULL,
				title             TEXT NOT NULL DEFAULT '',
				agent_mode        TEXT NOT NULL DEFAULT 'simple',
				preset_id         TEXT REFERENCES preset_queries(id) ON DELETE SET NULL,
				selected_folder   TEXT NOT NULL DEFAULT '',
				selected_servers  TEXT NOT NULL DEFAULT '[]',
				status            TEXT NOT NULL DEFAULT 'active',
				created_at        TEXT NOT NULL,
				completed_at      TEXT,
				last_activity     TEXT NOT NULL
			);

			CREATE UNIQUE INDEX idx_chat_sessions_session ON chat_sessions (session_id);
			CREATE INDEX idx_chat_sessions_activity ON chat_sessions (last_activity DESC);
			CREATE INDEX idx_chat_sessions_preset ON chat_sessions (preset_id);

			CREATE TABLE events (
				id                TEXT PRIMARY KEY,
				chat_session_id   TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
				event_type        TEXT NOT NULL,
				timestamp         TEXT NOT NULL,
				event_data        TEXT
			);

			CREATE INDEX idx_events_session ON events (chat_session_id, timestamp);
			CREATE INDEX idx_events_type ON events (chat_session_id, event_type);
		`,
	},
	{
		Version: 3,
		Name:    "full-text index over events",
		SQL: `
			CREATE VIRTUAL TABLE events_fts USING fts5(
				event_type,
				event_data,
				content='events',
				content_rowid='rowid'
			);

			CREATE TRIGGER events_ai AFTER INSERT ON events BEGIN
				INSERT INTO events_fts(rowid, event_type, event_data)
				VALUES (new.rowid, new.event_type, new.event_data);
			END;

			CREATE TRIGGER events_ad AFTER DELETE ON events BEGIN
				INSERT INTO events_fts(events_fts, rowid, event_type, event_data)
				VALUES ('delete', old.rowid, old.event_type, old.event_data);
			END;
		`,
	},
	{
		Version: 4,
		Name:    "create file versions",
		SQL: `
			CREATE TABLE file_versions (
				id          TEXT PRIMARY KEY,
				path        TEXT NOT NULL,
				content     TEXT NOT NULL,
				message     TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL
			);

			CREATE INDEX idx_file_versions_path ON file_versions (path, created_at DESC);
		`,
	},
}
