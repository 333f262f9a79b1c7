package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"smooshr/backend/internal/metrics"
	"smooshr/backend/internal/repository"
	"smooshr/backend/internal/runner"
	"smooshr/backend/pkg/models"
)

const instrumentationName = "smooshr/backend/internal/services"

// WorkflowService manages workflows and runs them.
type WorkflowService struct {
	repo   repository.Repository
	runner *runner.Runner
	logger Logger
	now    func() time.Time

	runCounter  metric.Int64Counter
	runDuration metric.Float64Histogram
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(repo repository.Repository, r *runner.Runner, logger Logger) (*WorkflowService, error) {
	meter := otel.Meter(instrumentationName)
	runCounter, err := meter.Int64Counter("smooshr.workflow.runs",
		metric.WithDescription("Workflow runs by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create run counter: %w", err)
	}
	runDuration, err := meter.Float64Histogram("smooshr.workflow.run.duration",
		metric.WithDescription("Time spent validating an upload"), metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create run histogram: %w", err)
	}

	return &WorkflowService{
		repo:        repo,
		runner:      r,
		logger:      logger,
		now:         time.Now,
		runCounter:  runCounter,
		runDuration: runDuration,
	}, nil
}

// List returns the caller's workflows.
func (s *WorkflowService) List(ctx context.Context, owner string) ([]models.WorkflowSummary, error) {
	return s.repo.ListWorkflows(ctx, owner)
}

// Create stores a new workflow with an empty schema.
func (s *WorkflowService) Create(ctx context.Context, owner string, req models.WorkflowCreate) (*models.Workflow, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		ve := &models.ValidationError{}
		ve.Add("title", "title must not be empty")
		return nil, ve
	}

	wf := &models.Workflow{
		ID:          uuid.NewString(),
		Title:       title,
		Owner:       owner,
		CreatedDate: s.now().UTC(),
		Schema:      models.NewEmptySchema(),
	}
	if err := s.repo.CreateWorkflow(ctx, wf); err != nil {
		metrics.WorkflowsSaved.WithLabelValues("create", "error").Inc()
		return nil, fmt.Errorf("create workflow: %w", err)
	}
	metrics.WorkflowsSaved.WithLabelValues("create", "ok").Inc()
	s.logger.Info("workflow created", "workflow_id", wf.ID, "owner", owner)
	return wf, nil
}

// Get returns a workflow owned by owner. Workflows of other users are
// reported as not found.
func (s *WorkflowService) Get(ctx context.Context, owner, id string) (*models.Workflow, error) {
	wf, err := s.repo.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	if wf.Owner != owner {
		return nil, repository.ErrNotFound
	}
	return wf, nil
}

// Update replaces the title and schema of a workflow. The id, owner and
// creation date are kept from the stored copy.
func (s *WorkflowService) Update(ctx context.Context, owner, id string, wf models.Workflow) (*models.Workflow, error) {
	current, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(wf.Title)
	if title == "" {
		metrics.WorkflowsSaved.WithLabelValues("update", "invalid").Inc()
		ve := &models.ValidationError{}
		ve.Add("title", "title must not be empty")
		return nil, ve
	}
	if err := wf.Schema.CheckSave(); err != nil {
		metrics.WorkflowsSaved.WithLabelValues("update", "invalid").Inc()
		return nil, err
	}

	current.Title = title
	current.Schema = wf.Schema
	if current.Schema.Version == "" {
		current.Schema.Version = models.SchemaVersion
	}
	if err := s.repo.UpdateWorkflow(ctx, current); err != nil {
		metrics.WorkflowsSaved.WithLabelValues("update", "error").Inc()
		return nil, fmt.Errorf("update workflow: %w", err)
	}
	metrics.WorkflowsSaved.WithLabelValues("update", "ok").Inc()
	s.logger.Debug("workflow updated", "workflow_id", id, "operations", len(current.Schema.Operations))
	return current, nil
}

// Delete removes a workflow owned by owner.
func (s *WorkflowService) Delete(ctx context.Context, owner, id string) error {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return err
	}
	if err := s.repo.DeleteWorkflow(ctx, id); err != nil {
		metrics.WorkflowsSaved.WithLabelValues("delete", "error").Inc()
		return err
	}
	metrics.WorkflowsSaved.WithLabelValues("delete", "ok").Inc()
	s.logger.Info("workflow deleted", "workflow_id", id)
	return nil
}

// Run validates an upload against a workflow's schema.
func (s *WorkflowService) Run(ctx context.Context, owner, id string, upload Upload) (*models.WorkflowRunReport, error) {
	wf, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	start := s.now()
	report, err := s.runner.Run(ctx, wf.Schema, runner.Input{
		WorkflowID: wf.ID,
		Filename:   upload.Filename,
		Content:    upload.Content,
		Params:     upload.Inputs,
	})
	outcome := "passed"
	switch {
	case err != nil:
		outcome = "error"
	case !report.Succeeded():
		outcome = "failed"
	}

	s.runCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	s.runDuration.Record(ctx, s.now().Sub(start).Seconds())
	metrics.WorkflowRuns.WithLabelValues(outcome).Inc()

	if err != nil {
		s.logger.Error("workflow run failed", "workflow_id", id, "error", err)
		return nil, err
	}
	metrics.ValidationFailures.Add(float64(len(report.ValidationFailures)))
	metrics.RowsValidated.Add(float64(report.RowCount))
	s.logger.Info("workflow run finished", "workflow_id", id, "rows", report.RowCount, "failures", len(report.ValidationFailures))
	return &report, nil
}
