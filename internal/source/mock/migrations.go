package mock

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id            TEXT PRIMARY KEY,
	subscriber_id TEXT NOT NULL,
	event_type    TEXT NOT NULL DEFAULT '',
	title         TEXT NOT NULL DEFAULT '',
	message       TEXT NOT NULL DEFAULT '',
	channel_ids   TEXT NOT NULL DEFAULT '[]',
	estado        TEXT NOT NULL DEFAULT 'enviado',
	metadata      TEXT NOT NULL DEFAULT '{}',
	created_at_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_subscriber
	ON notifications(subscriber_id, created_at_ms DESC);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
