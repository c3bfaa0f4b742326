package devgateway

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
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id           TEXT NOT NULL,
	title             TEXT NOT NULL,
	content           TEXT NOT NULL DEFAULT '',
	notification_type TEXT NOT NULL DEFAULT 'SYSTEM_ANNOUNCEMENT',
	reference_type    TEXT NOT NULL DEFAULT '',
	reference_id      TEXT NOT NULL DEFAULT '',
	created_at        TEXT NOT NULL,
	read_at           TEXT
);

CREATE TABLE IF NOT EXISTS notification_preferences (
	user_id           TEXT NOT NULL,
	notification_type TEXT NOT NULL,
	email_enabled     INTEGER NOT NULL DEFAULT 1 CHECK(email_enabled IN (0, 1)),
	push_enabled      INTEGER NOT NULL DEFAULT 1 CHECK(push_enabled IN (0, 1)),
	in_app_enabled    INTEGER NOT NULL DEFAULT 1 CHECK(in_app_enabled IN (0, 1)),
	PRIMARY KEY (user_id, notification_type)
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_created
	ON notifications(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_user_read
	ON notifications(user_id, read_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE notifications ADD COLUMN important INTEGER NOT NULL DEFAULT 0;

CREATE TABLE IF NOT EXISTS event_subscriptions (
	user_id    TEXT NOT NULL,
	event_id   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, event_id)
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
