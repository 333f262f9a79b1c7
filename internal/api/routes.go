// Package api serves the Smooshr REST API on echo.
package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (GET /users/self)
	GetSelf(ctx echo.Context) error
	// (GET /workflows)
	ListWorkflows(ctx echo.Context) error
	// (POST /workflows)
	CreateWorkflow(ctx echo.Context) error
	// (GET /workflows/{workflow_id})
	GetWorkflow(ctx echo.Context, workflowId string) error
	// (PUT /workflows/{workflow_id})
	UpdateWorkflow(ctx echo.Context, workflowId string) error
	// (DELETE /workflows/{workflow_id})
	DeleteWorkflow(ctx echo.Context, workflowId string) error
	// (POST /workflows/{workflow_id}/run)
	RunWorkflow(ctx echo.Context, workflowId string) error
	// (GET /api-keys)
	ListAPIKeys(ctx echo.Context) error
	// (POST /api-keys)
	CreateAPIKey(ctx echo.Context) error
	// (DELETE /api-keys)
	DeleteAPIKey(ctx echo.Context) error
}

// ServerInterfaceWrapper converts echo contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

// GetSelf converts echo context to params.
func (w *ServerInterfaceWrapper) GetSelf(ctx echo.Context) error {
	return w.Handler.GetSelf(ctx)
}

// ListWorkflows converts echo context to params.
func (w *ServerInterfaceWrapper) ListWorkflows(ctx echo.Context) error {
	return w.Handler.ListWorkflows(ctx)
}

// CreateWorkflow converts echo context to params.
func (w *ServerInterfaceWrapper) CreateWorkflow(ctx echo.Context) error {
	return w.Handler.CreateWorkflow(ctx)
}

// GetWorkflow converts echo context to params.
func (w *ServerInterfaceWrapper) GetWorkflow(ctx echo.Context) error {
	workflowId, err := bindWorkflowID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.GetWorkflow(ctx, workflowId)
}

// UpdateWorkflow converts echo context to params.
func (w *ServerInterfaceWrapper) UpdateWorkflow(ctx echo.Context) error {
	workflowId, err := bindWorkflowID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.UpdateWorkflow(ctx, workflowId)
}

// DeleteWorkflow converts echo context to params.
func (w *ServerInterfaceWrapper) DeleteWorkflow(ctx echo.Context) error {
	workflowId, err := bindWorkflowID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.DeleteWorkflow(ctx, workflowId)
}

// RunWorkflow converts echo context to params.
func (w *ServerInterfaceWrapper) RunWorkflow(ctx echo.Context) error {
	workflowId, err := bindWorkflowID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.RunWorkflow(ctx, workflowId)
}

// ListAPIKeys converts echo context to params.
func (w *ServerInterfaceWrapper) ListAPIKeys(ctx echo.Context) error {
	return w.Handler.ListAPIKeys(ctx)
}

// CreateAPIKey converts echo context to params.
func (w *ServerInterfaceWrapper) CreateAPIKey(ctx echo.Context) error {
	return w.Handler.CreateAPIKey(ctx)
}

// DeleteAPIKey converts echo context to params.
func (w *ServerInterfaceWrapper) DeleteAPIKey(ctx echo.Context) error {
	return w.Handler.DeleteAPIKey(ctx)
}

func bindWorkflowID(ctx echo.Context) (string, error) {
	var workflowId string
	err := runtime.BindStyledParameterWithOptions("simple", "workflow_id", ctx.Param("workflow_id"), &workflowId,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter workflow_id: %s", err))
	}
	return workflowId, nil
}

// EchoRouter is the subset of echo routing used by RegisterHandlers; both
// *echo.Echo and *echo.Group satisfy it.
type EchoRouter interface {
	DELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	PUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// RegisterHandlers adds each server route to the EchoRouter.
func RegisterHandlers(router EchoRouter, si ServerInterface) {
	RegisterHandlersWithBaseURL(router, si, "")
}

// RegisterHandlersWithBaseURL registers handlers, and prepends BaseURL to the
// paths, so that the paths can be served under a prefix.
func RegisterHandlersWithBaseURL(router EchoRouter, si ServerInterface, baseURL string) {
	wrapper := ServerInterfaceWrapper{
		Handler: si,
	}

	router.GET(baseURL+"/users/self", wrapper.GetSelf)
	router.GET(baseURL+"/workflows", wrapper.ListWorkflows)
	router.POST(baseURL+"/workflows", wrapper.CreateWorkflow)
	router.GET(baseURL+"/workflows/:workflow_id", wrapper.GetWorkflow)
	router.PUT(baseURL+"/workflows/:workflow_id", wrapper.UpdateWorkflow)
	router.DELETE(baseURL+"/workflows/:workflow_id", wrapper.DeleteWorkflow)
	router.POST(baseURL+"/workflows/:workflow_id/run", wrapper.RunWorkflow)
	router.GET(baseURL+"/api-keys", wrapper.ListAPIKeys)
	router.POST(baseURL+"/api-keys", wrapper.CreateAPIKey)
	router.DELETE(baseURL+"/api-keys", wrapper.DeleteAPIKey)
}
