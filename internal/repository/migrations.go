package repository

// Each statement is idempotent.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                TEXT PRIMARY KEY,
		email             TEXT NOT NULL DEFAULT '',
		identity_provider TEXT NOT NULL DEFAULT '',
		family_name       TEXT NOT NULL DEFAULT '',
		given_name        TEXT NOT NULL DEFAULT '',
		created_date      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS workflows (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		owner        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_date TIMESTAMPTZ NOT NULL DEFAULT now(),
		schema       JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_workflows_owner ON workflows(owner)`,
	`CREATE TABLE IF NOT EXISTS api_keys (
		key        TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expiration TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_api_keys_user ON api_keys(user_id)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                TEXT PRIMARY KEY,
		email             TEXT NOT NULL DEFAULT '',
		identity_provider TEXT NOT NULL DEFAULT '',
		family_name       TEXT NOT NULL DEFAULT '',
		given_name        TEXT NOT NULL DEFAULT '',
		created_date      TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS workflows (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		owner        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_date TEXT NOT NULL,
		schema       TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_workflows_owner ON workflows(owner)`,
	`CREATE TABLE IF NOT EXISTS api_keys (
		key        TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expiration TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_api_keys_user ON api_keys(user_id)`,
}
