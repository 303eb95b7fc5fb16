package storage

import "fmt"

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "sources, cards and reviews",
		SQL: `
-- The 'sources' table tracks where decks come from, either a local directory or a git repository.
CREATE TABLE sources (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    path         TEXT NOT NULL UNIQUE,
    type         TEXT NOT NULL DEFAULT 'local' CHECK (type IN ('local', 'git')),
    last_scanned TEXT
);

-- The 'cards' table stores flashcard content. Cards belong to exactly one deck.
CREATE TABLE cards (
    id          TEXT PRIMARY KEY,
    deck_id     TEXT NOT NULL,
    front       TEXT NOT NULL,
    back        TEXT NOT NULL,
    audio       TEXT NOT NULL DEFAULT '',
    audio_slow  TEXT NOT NULL DEFAULT '',
    notes       TEXT NOT NULL DEFAULT '',
    tags        TEXT NOT NULL DEFAULT '[]',
    sequence    INTEGER,
    external_id TEXT NOT NULL DEFAULT '',
    source_id   INTEGER,

    FOREIGN KEY(source_id) REFERENCES sources(id) ON DELETE SET NULL
);

CREATE INDEX idx_cards_deck ON cards(deck_id);
CREATE INDEX idx_cards_source ON cards(source_id);

-- One scheduling record per card, created lazily on the first grade or flag.
CREATE TABLE reviews (
    card_id   TEXT PRIMARY KEY,
    interval  INTEGER NOT NULL DEFAULT 0 CHECK (interval >= 0),
    due       TEXT NOT NULL,
    ease      REAL NOT NULL DEFAULT 2.5,
    streak    INTEGER NOT NULL DEFAULT 0,
    lapses    INTEGER NOT NULL DEFAULT 0,
    suspended INTEGER NOT NULL DEFAULT 0,
    hard_flag INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_reviews_due ON reviews(due);
`,
	},
	{
		Version:     2,
		Description: "review_logs: append-only grading history",
		SQL: `
CREATE TABLE review_logs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    reviewed_at TEXT NOT NULL,
    card_id     TEXT NOT NULL,
    deck_id     TEXT NOT NULL,
    grade       INTEGER NOT NULL CHECK (grade IN (1, 2, 3)),
    mode        TEXT NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    session_id  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX idx_logs_deck ON review_logs(deck_id);
CREATE INDEX idx_logs_reviewed_at ON review_logs(reviewed_at);
`,
	},
	{
		Version:     3,
		Description: "settings: small key/value store for session continuation",
		SQL: `
CREATE TABLE settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`,
	},
}

func (db *DB) migrate() error {
	if _, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		description TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var current int
	if err := db.conn.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, description) VALUES (?, ?)`, m.Version, m.Description); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}
