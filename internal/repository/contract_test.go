package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smooshr/backend/pkg/models"
)

// testRepository runs the behaviour every Repository implementation shares.
func testRepository(t *testing.T, repo Repository) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	owner := &models.User{ID: "user-" + uuid.NewString(), Email: "ada@example.com", IdentityProvider: "test", GivenName: "Ada", FamilyName: "Lovelace", CreatedDate: now}
	other := &models.User{ID: "user-" + uuid.NewString(), Email: "bob@example.com", CreatedDate: now}

	t.Run("users", func(t *testing.T) {
		require.NoError(t, repo.CreateUser(ctx, owner))
		require.NoError(t, repo.CreateUser(ctx, other))

		got, err := repo.GetUser(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, owner.Email, got.Email)
		assert.Equal(t, owner.GivenName, got.GivenName)
		assert.True(t, owner.CreatedDate.Equal(got.CreatedDate))

		assert.True(t, errors.Is(repo.CreateUser(ctx, owner), ErrConflict))
		_, err = repo.GetUser(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("workflows", func(t *testing.T) {
		schema := models.NewEmptySchema()
		schema.Params = []models.WorkflowParam{{ID: "p", Name: "region", DisplayName: "Region", Type: models.ParamTypeString}}
		wf := &models.Workflow{ID: uuid.NewString(), Title: "Intake", Owner: owner.ID, CreatedDate: now, Schema: schema}
		require.NoError(t, repo.CreateWorkflow(ctx, wf))
		require.NoError(t, repo.CreateWorkflow(ctx, &models.Workflow{
			ID: uuid.NewString(), Title: "Theirs", Owner: other.ID, CreatedDate: now, Schema: models.NewEmptySchema(),
		}))

		list, err := repo.ListWorkflows(ctx, owner.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, wf.Summary().ID, list[0].ID)
		assert.Equal(t, "Intake", list[0].Title)

		got, err := repo.GetWorkflow(ctx, wf.ID)
		require.NoError(t, err)
		assert.Equal(t, schema, got.Schema)

		wf.Title = "Renamed"
		wf.Schema.Operations = []models.Operation{{Type: models.OperationFileTypeValidation, ID: "op", Title: "t", ExpectedFileType: ".csv"}}
		require.NoError(t, repo.UpdateWorkflow(ctx, wf))
		got, err = repo.GetWorkflow(ctx, wf.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Title)
		assert.Len(t, got.Schema.Operations, 1)

		assert.ErrorIs(t, repo.UpdateWorkflow(ctx, &models.Workflow{ID: "missing", Schema: schema}), ErrNotFound)

		require.NoError(t, repo.DeleteWorkflow(ctx, wf.ID))
		_, err = repo.GetWorkflow(ctx, wf.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, repo.DeleteWorkflow(ctx, wf.ID), ErrNotFound)

		empty, err := repo.ListWorkflows(ctx, owner.ID)
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("api keys", func(t *testing.T) {
		key := &models.APIKey{Key: uuid.NewString(), UserID: owner.ID, Expiration: now.Add(time.Hour)}
		require.NoError(t, repo.CreateAPIKey(ctx, key))

		got, err := repo.GetAPIKey(ctx, key.Key)
		require.NoError(t, err)
		assert.Equal(t, owner.ID, got.UserID)
		assert.True(t, key.Expiration.Equal(got.Expiration))

		keys, err := repo.ListAPIKeys(ctx, owner.ID)
		require.NoError(t, err)
		assert.Len(t, keys, 1)

		assert.ErrorIs(t, repo.DeleteAPIKey(ctx, other.ID, key.Key), ErrNotFound)
		require.NoError(t, repo.DeleteAPIKey(ctx, owner.ID, key.Key))
		_, err = repo.GetAPIKey(ctx, key.Key)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, repo.Ping(ctx))
	})
}
