package store

// migration is one forward-only schema step.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations run in order; Version is written to PRAGMA user_version.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create tail cursors",
		SQL: `
			CREATE TABLE IF NOT EXISTS tail_cursors (
				path        TEXT PRIMARY KEY,
				byte_offset INTEGER NOT NULL DEFAULT 0,
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
}
