package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"smooshr/backend/internal/auth"
	"smooshr/backend/internal/services"
	"smooshr/backend/pkg/models"
)

// DefaultMaxUploadBytes bounds run uploads when no limit is configured.
const DefaultMaxUploadBytes = 32 << 20

// APIKeys is the key management surface used by the /api-keys routes.
type APIKeys interface {
	List(ctx context.Context, userID string) ([]models.APIKey, error)
	Create(ctx context.Context, userID string, req models.APIKeyCreate) (*models.APIKey, error)
	Delete(ctx context.Context, userID, key string) error
}

// Server implements ServerInterface on top of the service layer.
type Server struct {
	workflows      services.Workflows
	keys           APIKeys
	maxUploadBytes int64
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates a new Server. A non-positive maxUploadBytes selects
// DefaultMaxUploadBytes.
func NewServer(workflows services.Workflows, keys APIKeys, maxUploadBytes int64) *Server {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Server{workflows: workflows, keys: keys, maxUploadBytes: maxUploadBytes}
}

// Message is the body returned by deletions.
type Message struct {
	Message string `json:"message"`
}

func currentUser(c echo.Context) (*models.User, error) {
	u, ok := auth.UserFromContext(c.Request().Context())
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
	}
	return u, nil
}

// GetSelf returns the authenticated user.
// (GET /api/users/self)
func (s *Server) GetSelf(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// ListWorkflows returns the caller's workflows.
// (GET /api/workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	workflows, err := s.workflows.List(c.Request().Context(), u.ID)
	if err != nil {
		return err
	}
	if workflows == nil {
		workflows = []models.WorkflowSummary{}
	}
	return c.JSON(http.StatusOK, workflows)
}

// CreateWorkflow creates a workflow with an empty schema.
// (POST /api/workflows)
func (s *Server) CreateWorkflow(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.WorkflowCreate
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	wf, err := s.workflows.Create(c.Request().Context(), u.ID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}

// GetWorkflow returns one workflow.
// (GET /api/workflows/{workflow_id})
func (s *Server) GetWorkflow(c echo.Context, workflowId string) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	wf, err := s.workflows.Get(c.Request().Context(), u.ID, workflowId)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}

// UpdateWorkflow replaces the title and schema of a workflow.
// (PUT /api/workflows/{workflow_id})
func (s *Server) UpdateWorkflow(c echo.Context, workflowId string) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	var wf models.Workflow
	if err := decodeBody(c, &wf); err != nil {
		return err
	}
	saved, err := s.workflows.Update(c.Request().Context(), u.ID, workflowId, wf)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, saved)
}

// DeleteWorkflow removes a workflow.
// (DELETE /api/workflows/{workflow_id})
func (s *Server) DeleteWorkflow(c echo.Context, workflowId string) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := s.workflows.Delete(c.Request().Context(), u.ID, workflowId); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, Message{Message: "Workflow deleted"})
}

// RunWorkflow validates the uploaded CSV against the workflow.
// (POST /api/workflows/{workflow_id}/run)
func (s *Server) RunWorkflow(c echo.Context, workflowId string) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}

	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, s.maxUploadBytes)
	fh, err := c.FormFile("upload_csv")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit))
		}
		return missingField("upload_csv")
	}

	inputs := map[string]any{}
	if raw := c.FormValue("workflow_inputs"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &inputs); err != nil {
			return fmt.Errorf("%w: workflow_inputs must be a JSON object: %v", services.ErrInvalidInput, err)
		}
	}

	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	report, err := s.workflows.Run(req.Context(), u.ID, workflowId, services.Upload{
		Filename: fh.Filename,
		Content:  f,
		Inputs:   inputs,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

// ListAPIKeys returns the caller's keys.
// (GET /api/api-keys)
func (s *Server) ListAPIKeys(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	keys, err := s.keys.List(c.Request().Context(), u.ID)
	if err != nil {
		return err
	}
	if keys == nil {
		keys = []models.APIKey{}
	}
	return c.JSON(http.StatusOK, keys)
}

// CreateAPIKey issues a key for the caller.
// (POST /api/api-keys)
func (s *Server) CreateAPIKey(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.APIKeyCreate
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	key, err := s.keys.Create(c.Request().Context(), u.ID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, key)
}

// DeleteAPIKey revokes one of the caller's keys.
// (DELETE /api/api-keys)
func (s *Server) DeleteAPIKey(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.APIKeyDelete
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if req.Key == "" {
		return missingField("api_key")
	}
	if err := s.keys.Delete(c.Request().Context(), u.ID, req.Key); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, Message{Message: "API key deleted"})
}

// decodeBody reads a JSON request body. Decoding errors are reported as
// request validation failures.
func decodeBody(c echo.Context, v any) error {
	if err := json.NewDecoder(c.Request().Body).Decode(v); err != nil {
		return &ValidationErrorResponse{Detail: []ValidationDetail{{
			Loc:  []any{"body"},
			Msg:  err.Error(),
			Type: "value_error.jsondecode",
		}}}
	}
	return nil
}

func missingField(name string) error {
	return &ValidationErrorResponse{Detail: []ValidationDetail{{
		Loc:  []any{"body", name},
		Msg:  "field required",
		Type: "value_error.missing",
	}}}
}
