package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations run in order; versions are sequential from 1. Timestamps are
// unix milliseconds.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS threads (
	id              TEXT PRIMARY KEY,
	subject         TEXT NOT NULL DEFAULT '',
	thread_type     TEXT NOT NULL DEFAULT 'Unknown',
	job_name        TEXT NOT NULL DEFAULT 'Unknown',
	first_seen_at   INTEGER NOT NULL,
	last_message_at INTEGER
);

CREATE TABLE IF NOT EXISTS messages (
	thread_id         TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
	message_id        TEXT NOT NULL,
	mime_type         TEXT NOT NULL DEFAULT '',
	subject           TEXT NOT NULL DEFAULT '',
	raw_subject       TEXT NOT NULL DEFAULT '',
	sender            TEXT NOT NULL DEFAULT '',
	recipients        TEXT NOT NULL DEFAULT '[]',
	cc                TEXT NOT NULL DEFAULT '[]',
	sent_at           INTEGER,
	x_mailer          TEXT NOT NULL DEFAULT '',
	body              TEXT NOT NULL DEFAULT '',
	raw_body          TEXT NOT NULL DEFAULT '',
	thread_type       TEXT NOT NULL DEFAULT 'Unknown',
	job_name          TEXT NOT NULL DEFAULT 'Unknown',
	thread_type_score INTEGER NOT NULL DEFAULT 0,
	job_name_score    INTEGER NOT NULL DEFAULT 0,
	run_id            TEXT NOT NULL DEFAULT '',
	stored_at         INTEGER NOT NULL,
	PRIMARY KEY (thread_id, message_id)
);

CREATE INDEX IF NOT EXISTS idx_messages_thread_type ON messages(thread_type);
CREATE INDEX IF NOT EXISTS idx_messages_job_name ON messages(job_name);

CREATE TABLE IF NOT EXISTS attachments (
	thread_id     TEXT NOT NULL,
	message_id    TEXT NOT NULL,
	part_id       TEXT NOT NULL,
	filename      TEXT NOT NULL,
	attachment_id TEXT NOT NULL DEFAULT '',
	mime_type     TEXT NOT NULL DEFAULT '',
	size          INTEGER NOT NULL DEFAULT 0,
	position      INTEGER NOT NULL,
	PRIMARY KEY (thread_id, message_id, part_id),
	FOREIGN KEY (thread_id, message_id) REFERENCES messages(thread_id, message_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER,
	found       INTEGER NOT NULL DEFAULT 0,
	stored      INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT ''
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		// Attachments without a part id (every one from the Gmail API's
		// minimal payloads) collided on the v1 key.
		version: 2,
		sql: `
CREATE TABLE attachments_v2 (
	thread_id     TEXT NOT NULL,
	message_id    TEXT NOT NULL,
	position      INTEGER NOT NULL,
	part_id       TEXT NOT NULL DEFAULT '',
	filename      TEXT NOT NULL,
	attachment_id TEXT NOT NULL DEFAULT '',
	mime_type     TEXT NOT NULL DEFAULT '',
	size          INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (thread_id, message_id, position),
	FOREIGN KEY (thread_id, message_id) REFERENCES messages(thread_id, message_id) ON DELETE CASCADE
);

INSERT INTO attachments_v2 (thread_id, message_id, position, part_id, filename, attachment_id, mime_type, size)
	SELECT thread_id, message_id, position, part_id, filename, attachment_id, mime_type, size FROM attachments;

DROP TABLE attachments;
ALTER TABLE attachments_v2 RENAME TO attachments;

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
