package services

import (
	"context"
	"errors"
	"io"

	"smooshr/backend/pkg/models"
)

// ErrInvalidInput is returned for requests that can never succeed as sent.
var ErrInvalidInput = errors.New("invalid input")

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Workflows is the workflow use-case surface shared by the REST API and the
// MCP tools.
type Workflows interface {
	List(ctx context.Context, owner string) ([]models.WorkflowSummary, error)
	Create(ctx context.Context, owner string, req models.WorkflowCreate) (*models.Workflow, error)
	Get(ctx context.Context, owner, id string) (*models.Workflow, error)
	Update(ctx context.Context, owner, id string, wf models.Workflow) (*models.Workflow, error)
	Delete(ctx context.Context, owner, id string) error
	Run(ctx context.Context, owner, id string, upload Upload) (*models.WorkflowRunReport, error)
}

// Upload is a file submitted to a workflow run.
type Upload struct {
	Filename string
	Content  io.Reader
	// Inputs maps param names to decoded JSON values.
	Inputs map[string]any
}
