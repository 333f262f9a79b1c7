// Package mcp exposes workflows as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"smooshr/backend/internal/auth"
	"smooshr/backend/internal/services"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

// Server wraps an MCP server whose tools act on the calling user's
// workflows.
type Server struct {
	mcpServer *server.MCPServer
	workflows services.Workflows
	logger    Logger
}

// NewServer creates the MCP server and registers its tools.
func NewServer(workflows services.Workflows, version string, logger Logger) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Smooshr",
			version,
			server.WithToolCapabilities(true),
		),
		workflows: workflows,
		logger:    logger,
	}

	s.registerTools()
	return s
}

// GetMCPServer returns the underlying MCP server.
func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_workflows",
			mcp.WithDescription("List the workflows owned by the caller"),
		),
		s.handleListWorkflows,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_workflow",
			mcp.WithDescription("Get a workflow including its schema"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The ID of the workflow")),
		),
		s.handleGetWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"run_workflow",
			mcp.WithDescription("Validate CSV content against a workflow and return the run report"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The ID of the workflow")),
			mcp.WithString("csv", mcp.Required(), mcp.Description("The CSV file content, header row first")),
			mcp.WithString("filename", mcp.Description("File name checked by file type validations"), mcp.DefaultString("upload.csv")),
			mcp.WithObject("inputs", mcp.Description("Values for the workflow params, keyed by param name")),
		),
		s.handleRunWorkflow,
	)
}

func owner(ctx context.Context) (string, error) {
	u, ok := auth.UserFromContext(ctx)
	if !ok {
		return "", errors.New("not authenticated")
	}
	return u.ID, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleListWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := owner(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	workflows, err := s.workflows.List(ctx, userID)
	if err != nil {
		s.logger.Error("mcp list_workflows failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list workflows: %v", err)), nil
	}
	return jsonResult(workflows)
}

func (s *Server) handleGetWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := owner(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := request.RequireString("id")
	if err != nil || id == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	wf, err := s.workflows.Get(ctx, userID, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get workflow: %v", err)), nil
	}
	return jsonResult(wf)
}

func (s *Server) handleRunWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := owner(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := request.RequireString("id")
	if err != nil || id == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}
	csv, err := request.RequireString("csv")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: csv"), nil
	}
	filename := request.GetString("filename", "upload.csv")

	inputs := map[string]any{}
	if raw, ok := request.GetArguments()["inputs"]; ok && raw != nil {
		m, ok := raw.(map[string]any)
		if !ok {
			return mcp.NewToolResultError("Parameter inputs must be an object"), nil
		}
		inputs = m
	}

	report, err := s.workflows.Run(ctx, userID, id, services.Upload{
		Filename: filename,
		Content:  strings.NewReader(csv),
		Inputs:   inputs,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to run workflow: %v", err)), nil
	}
	s.logger.Debug("mcp run_workflow finished", "workflow_id", id, "failures", len(report.ValidationFailures))
	return jsonResult(report)
}

// MountHTTPHandlers serves the SSE transport under /mcp. The authenticated
// user of each HTTP request is carried into the tool context.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer,
		server.WithStaticBasePath("/mcp"),
		server.WithSSEContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if u, ok := auth.UserFromContext(r.Context()); ok {
				return auth.WithUser(ctx, u)
			}
			return ctx
		}),
	)

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
