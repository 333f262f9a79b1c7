package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"smooshr/backend/pkg/models"
)

// SQLiteStore implements Repository using SQLite. It backs local development
// and tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at path. Use ":memory:"
// for a throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma wal: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Ping checks the database file is usable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates missing tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqliteError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetUser retrieves a user by id.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	var created string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, identity_provider, family_name, given_name, created_date FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Email, &u.IdentityProvider, &u.FamilyName, &u.GivenName, &created)
	if err != nil {
		return nil, sqliteError(err)
	}
	if u.CreatedDate, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parse created_date of user %s: %w", id, err)
	}
	return &u, nil
}

// CreateUser stores a new user.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, identity_provider, family_name, given_name, created_date) VALUES (?, ?, ?, ?, ?, ?)",
		u.ID, u.Email, u.IdentityProvider, u.FamilyName, u.GivenName, formatTime(u.CreatedDate))
	return sqliteError(err)
}

// ListWorkflows returns summaries of the workflows owned by owner.
func (s *SQLiteStore) ListWorkflows(ctx context.Context, owner string) ([]models.WorkflowSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, owner, created_date FROM workflows WHERE owner = ? ORDER BY created_date, id", owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []models.WorkflowSummary{}
	for rows.Next() {
		var w models.WorkflowSummary
		var created string
		if err := rows.Scan(&w.ID, &w.Title, &w.Owner, &created); err != nil {
			return nil, err
		}
		if w.CreatedDate, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parse created_date of workflow %s: %w", w.ID, err)
		}
		summaries = append(summaries, w)
	}
	return summaries, rows.Err()
}

// GetWorkflow retrieves a workflow with its schema.
func (s *SQLiteStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	var wf models.Workflow
	var created, schema string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, owner, created_date, schema FROM workflows WHERE id = ?", id,
	).Scan(&wf.ID, &wf.Title, &wf.Owner, &created, &schema)
	if err != nil {
		return nil, sqliteError(err)
	}
	if wf.CreatedDate, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parse created_date of workflow %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(schema), &wf.Schema); err != nil {
		return nil, fmt.Errorf("unmarshal schema of workflow %s: %w", id, err)
	}
	return &wf, nil
}

// CreateWorkflow stores a new workflow.
func (s *SQLiteStore) CreateWorkflow(ctx context.Context, wf *models.Workflow) error {
	schema, err := json.Marshal(wf.Schema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO workflows (id, title, owner, created_date, schema) VALUES (?, ?, ?, ?, ?)",
		wf.ID, wf.Title, wf.Owner, formatTime(wf.CreatedDate), string(schema))
	return sqliteError(err)
}

// UpdateWorkflow replaces the title and schema of an existing workflow.
func (s *SQLiteStore) UpdateWorkflow(ctx context.Context, wf *models.Workflow) error {
	schema, err := json.Marshal(wf.Schema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	res, err := s.db.ExecContext(ctx, "UPDATE workflows SET title = ?, schema = ? WHERE id = ?", wf.Title, string(schema), wf.ID)
	if err != nil {
		return sqliteError(err)
	}
	return affected(res)
}

// DeleteWorkflow removes a workflow.
func (s *SQLiteStore) DeleteWorkflow(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = ?", id)
	if err != nil {
		return err
	}
	return affected(res)
}

// ListAPIKeys returns the keys of a user.
func (s *SQLiteStore) ListAPIKeys(ctx context.Context, userID string) ([]models.APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, user_id, expiration FROM api_keys WHERE user_id = ? ORDER BY expiration", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []models.APIKey{}
	for rows.Next() {
		var k models.APIKey
		var exp string
		if err := rows.Scan(&k.Key, &k.UserID, &exp); err != nil {
			return nil, err
		}
		if k.Expiration, err = parseTime(exp); err != nil {
			return nil, fmt.Errorf("parse expiration: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// GetAPIKey retrieves a key.
func (s *SQLiteStore) GetAPIKey(ctx context.Context, key string) (*models.APIKey, error) {
	var k models.APIKey
	var exp string
	err := s.db.QueryRowContext(ctx, "SELECT key, user_id, expiration FROM api_keys WHERE key = ?", key).
		Scan(&k.Key, &k.UserID, &exp)
	if err != nil {
		return nil, sqliteError(err)
	}
	if k.Expiration, err = parseTime(exp); err != nil {
		return nil, fmt.Errorf("parse expiration: %w", err)
	}
	return &k, nil
}

// CreateAPIKey stores a new key.
func (s *SQLiteStore) CreateAPIKey(ctx context.Context, k *models.APIKey) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO api_keys (key, user_id, expiration) VALUES (?, ?, ?)",
		k.Key, k.UserID, formatTime(k.Expiration))
	return sqliteError(err)
}

// DeleteAPIKey removes a key owned by userID.
func (s *SQLiteStore) DeleteAPIKey(ctx context.Context, userID, key string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM api_keys WHERE key = ? AND user_id = ?", key, userID)
	if err != nil {
		return err
	}
	return affected(res)
}
