package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"smooshr/backend/pkg/models"
)

const pgUniqueViolation = "23505"

// PostgresStore is a PostgreSQL implementation of Repository.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping checks the pool can reach the server.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Migrate creates missing tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func pgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

// GetUser retrieves a user by id.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx,
		"SELECT id, email, identity_provider, family_name, given_name, created_date FROM users WHERE id = $1", id,
	).Scan(&u.ID, &u.Email, &u.IdentityProvider, &u.FamilyName, &u.GivenName, &u.CreatedDate)
	if err != nil {
		return nil, pgError(err)
	}
	return &u, nil
}

// CreateUser stores a new user.
func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.db.Exec(ctx,
		"INSERT INTO users (id, email, identity_provider, family_name, given_name, created_date) VALUES ($1, $2, $3, $4, $5, $6)",
		u.ID, u.Email, u.IdentityProvider, u.FamilyName, u.GivenName, u.CreatedDate)
	return pgError(err)
}

// ListWorkflows returns summaries of the workflows owned by owner.
func (s *PostgresStore) ListWorkflows(ctx context.Context, owner string) ([]models.WorkflowSummary, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id, title, owner, created_date FROM workflows WHERE owner = $1 ORDER BY created_date, id", owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []models.WorkflowSummary{}
	for rows.Next() {
		var w models.WorkflowSummary
		if err := rows.Scan(&w.ID, &w.Title, &w.Owner, &w.CreatedDate); err != nil {
			return nil, err
		}
		summaries = append(summaries, w)
	}
	return summaries, rows.Err()
}

// GetWorkflow retrieves a workflow with its schema.
func (s *PostgresStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	var wf models.Workflow
	var schema []byte
	err := s.db.QueryRow(ctx,
		"SELECT id, title, owner, created_date, schema FROM workflows WHERE id = $1", id,
	).Scan(&wf.ID, &wf.Title, &wf.Owner, &wf.CreatedDate, &schema)
	if err != nil {
		return nil, pgError(err)
	}
	if err := json.Unmarshal(schema, &wf.Schema); err != nil {
		return nil, fmt.Errorf("unmarshal schema of workflow %s: %w", id, err)
	}
	return &wf, nil
}

// CreateWorkflow stores a new workflow.
func (s *PostgresStore) CreateWorkflow(ctx context.Context, wf *models.Workflow) error {
	schema, err := json.Marshal(wf.Schema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	_, err = s.db.Exec(ctx,
		"INSERT INTO workflows (id, title, owner, created_date, schema) VALUES ($1, $2, $3, $4, $5)",
		wf.ID, wf.Title, wf.Owner, wf.CreatedDate, schema)
	return pgError(err)
}

// UpdateWorkflow replaces the title and schema of an existing workflow.
func (s *PostgresStore) UpdateWorkflow(ctx context.Context, wf *models.Workflow) error {
	schema, err := json.Marshal(wf.Schema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	tag, err := s.db.Exec(ctx, "UPDATE workflows SET title = $1, schema = $2 WHERE id = $3", wf.Title, schema, wf.ID)
	if err != nil {
		return pgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteWorkflow removes a workflow.
func (s *PostgresStore) DeleteWorkflow(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAPIKeys returns the keys of a user.
func (s *PostgresStore) ListAPIKeys(ctx context.Context, userID string) ([]models.APIKey, error) {
	rows, err := s.db.Query(ctx,
		"SELECT key, user_id, expiration FROM api_keys WHERE user_id = $1 ORDER BY expiration", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []models.APIKey{}
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.Key, &k.UserID, &k.Expiration); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// GetAPIKey retrieves a key.
func (s *PostgresStore) GetAPIKey(ctx context.Context, key string) (*models.APIKey, error) {
	var k models.APIKey
	err := s.db.QueryRow(ctx, "SELECT key, user_id, expiration FROM api_keys WHERE key = $1", key).
		Scan(&k.Key, &k.UserID, &k.Expiration)
	if err != nil {
		return nil, pgError(err)
	}
	return &k, nil
}

// CreateAPIKey stores a new key.
func (s *PostgresStore) CreateAPIKey(ctx context.Context, k *models.APIKey) error {
	_, err := s.db.Exec(ctx, "INSERT INTO api_keys (key, user_id, expiration) VALUES ($1, $2, $3)",
		k.Key, k.UserID, k.Expiration)
	return pgError(err)
}

// DeleteAPIKey removes a key owned by userID.
func (s *PostgresStore) DeleteAPIKey(ctx context.Context, userID, key string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM api_keys WHERE key = $1 AND user_id = $2", key, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
