package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"smooshr/backend/internal/autosave"
	"smooshr/backend/internal/document"
	"smooshr/backend/pkg/models"
)

// edit loads workflow id into a document store, applies fn and saves the
// result. Nothing is saved when fn fails; a rejected save leaves the server
// copy untouched and is returned as the error.
func (a *app) edit(ctx context.Context, id string, fn func(store *document.Store) error) error {
	raw, err := a.client.GetWorkflow(ctx, id)
	if err != nil {
		return fmt.Errorf("get workflow: %w", err)
	}
	store, err := document.Open(raw)
	if err != nil {
		return fmt.Errorf("load workflow: %w", err)
	}

	syncer := autosave.New(store, a.client, id, autosave.Options{
		Delay:   a.cfg.Client.AutosaveDelay,
		Logger:  a.logger,
		Timeout: saveTimeout,
	})
	defer syncer.Close()

	if err := fn(store); err != nil {
		return err
	}
	if err := syncer.Flush(ctx); err != nil {
		return fmt.Errorf("save workflow: %w", err)
	}
	a.logger.Debug("workflow saved", "workflow_id", id, "state", syncer.State().String())
	return nil
}

// workflow fetches and decodes workflow id.
func (a *app) workflow(ctx context.Context, id string) (models.Workflow, error) {
	raw, err := a.client.GetWorkflow(ctx, id)
	if err != nil {
		return models.Workflow{}, fmt.Errorf("get workflow: %w", err)
	}
	var wf models.Workflow
	if err := json.Unmarshal(raw, &wf); err != nil {
		return models.Workflow{}, fmt.Errorf("decode workflow: %w", err)
	}
	return wf, nil
}

// parseIndex reads a 1-based position argument as shown by "workflows show".
func parseIndex(arg string, n int, what string) (int, error) {
	i, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("%s index %q is not a number", what, arg)
	}
	if i < 1 || i > n {
		return 0, fmt.Errorf("%s index %d out of range (have %d)", what, i, n)
	}
	return i - 1, nil
}
