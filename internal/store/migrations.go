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
		Name:    "create calls and transcript entries",
		SQL: `
			CREATE TABLE calls (
				session_id             TEXT PRIMARY KEY,
				fallback               INTEGER NOT NULL DEFAULT 0,
				mode                   TEXT NOT NULL,
				started_at             TEXT NOT NULL,
				ended_at               TEXT NOT NULL,
				end_reason             TEXT NOT NULL DEFAULT '',
				qualification          TEXT NOT NULL DEFAULT '{}',
				qualification_complete INTEGER NOT NULL DEFAULT 0,
				latency_ms             REAL,
				sentiment              TEXT
			);

			CREATE INDEX idx_calls_started ON calls (started_at);

			CREATE TABLE transcript_entries (
				id          TEXT PRIMARY KEY,
				session_id  TEXT NOT NULL REFERENCES calls(session_id) ON DELETE CASCADE,
				seq         INTEGER NOT NULL,
				role        TEXT NOT NULL,
				content     TEXT NOT NULL,
				timestamp   TEXT NOT NULL
			);

			CREATE UNIQUE INDEX idx_transcript_session_seq ON transcript_entries (session_id, seq);
		`,
	},
	{
		Version: 2,
		Name:    "create transcript FTS5 index",
		SQL: `
			CREATE VIRTUAL TABLE transcript_fts USING fts5(
				content,
				role,
				content='transcript_entries',
				content_rowid='rowid'
			);

			CREATE TRIGGER transcript_ai AFTER INSERT ON transcript_entries BEGIN
				INSERT INTO transcript_fts(rowid, content, role)
				VALUES (new.rowid, new.content, new.role);
			END;

			CREATE TRIGGER transcript_ad AFTER DELETE ON transcript_entries BEGIN
				INSERT INTO transcript_fts(transcript_fts, rowid, content, role)
				VALUES ('delete', old.rowid, old.content, old.role);
			END;
		`,
	},
}
