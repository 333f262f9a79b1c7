// Package repository persists users, workflows and API keys.
package repository

import (
	"context"
	"errors"

	"smooshr/backend/pkg/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a row with the same key already exists.
	ErrConflict = errors.New("already exists")
)

// Repository is the storage used by the services.
type Repository interface {
	// Ping checks the database is reachable.
	Ping(ctx context.Context) error
	// Migrate creates missing tables.
	Migrate(ctx context.Context) error
	// Close releases the connection pool.
	Close() error

	// GetUser retrieves a user by id.
	GetUser(ctx context.Context, id string) (*models.User, error)
	// CreateUser stores a new user.
	CreateUser(ctx context.Context, user *models.User) error

	// ListWorkflows returns summaries of the workflows owned by owner, oldest first.
	ListWorkflows(ctx context.Context, owner string) ([]models.WorkflowSummary, error)
	// GetWorkflow retrieves a workflow with its schema.
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	// CreateWorkflow stores a new workflow.
	CreateWorkflow(ctx context.Context, wf *models.Workflow) error
	// UpdateWorkflow replaces the title and schema of an existing workflow.
	UpdateWorkflow(ctx context.Context, wf *models.Workflow) error
	// DeleteWorkflow removes a workflow.
	DeleteWorkflow(ctx context.Context, id string) error

	// ListAPIKeys returns the keys of a user.
	ListAPIKeys(ctx context.Context, userID string) ([]models.APIKey, error)
	// GetAPIKey retrieves a key.
	GetAPIKey(ctx context.Context, key string) (*models.APIKey, error)
	// CreateAPIKey stores a new key.
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	// DeleteAPIKey removes a key owned by userID.
	DeleteAPIKey(ctx context.Context, userID, key string) error
}
