package db

import "context"

// schema statements are idempotent; EnsureSchema runs at boot so a fresh
// database comes up without a separate migration step.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL,
		avatar        TEXT NOT NULL DEFAULT '',
		color         TEXT NOT NULL DEFAULT '',
		auth_token    TEXT UNIQUE,
		is_admin      BOOLEAN NOT NULL DEFAULT FALSE,
		github_handle TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS submissions (
		id           BIGSERIAL PRIMARY KEY,
		title        TEXT NOT NULL,
		description  TEXT NOT NULL,
		source_ref   TEXT NOT NULL,
		content_b64  TEXT NOT NULL,
		preview      TEXT NOT NULL DEFAULT '',
		contributors JSONB NOT NULL DEFAULT '{}'::jsonb,
		submitter_id TEXT REFERENCES accounts(id) ON DELETE SET NULL,
		state        TEXT NOT NULL DEFAULT 'pending'
		             CHECK (state IN ('pending','approved','rejected')),
		submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		moderator    JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_state ON submissions(state)`,
	// catalog ids come from this sequence, never from a count read
	`CREATE SEQUENCE IF NOT EXISTS themes_id_seq START 1`,
	`CREATE TABLE IF NOT EXISTS themes (
		id               BIGINT PRIMARY KEY,
		name             TEXT NOT NULL,
		description      TEXT NOT NULL,
		long_description TEXT,
		content_b64      TEXT NOT NULL,
		version          TEXT NOT NULL DEFAULT '1.0.0',
		tags             TEXT[] NOT NULL DEFAULT '{}',
		authors          JSONB NOT NULL DEFAULT '[]'::jsonb,
		thumbnail        TEXT NOT NULL DEFAULT '',
		source_ref       TEXT NOT NULL DEFAULT '',
		guild            JSONB,
		likes            INT NOT NULL DEFAULT 0,
		downloads        INT NOT NULL DEFAULT 0,
		release_date     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_themes_tags ON themes USING GIN(tags)`,
	`CREATE TABLE IF NOT EXISTS theme_likes (
		theme_id   BIGINT NOT NULL REFERENCES themes(id) ON DELETE CASCADE,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		liked_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (theme_id, account_id)
	)`,
}

func (d *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.Pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
