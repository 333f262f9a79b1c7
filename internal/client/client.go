// Package client is the HTTP client for the Smooshr REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"smooshr/backend/internal/config"
	"smooshr/backend/pkg/models"
)

// PlaceholderToken is sent as the bearer token when no token source yields
// a token, so that API key authentication still reaches the server.
const PlaceholderToken = "no-token"

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}

// Options configure a Client. Only BaseURL is required.
type Options struct {
	BaseURL    string
	Tokens     oauth2.TokenSource
	APIKey     string
	HTTPClient *http.Client
	Logger     Logger
}

// Client calls the Smooshr API on behalf of one user.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     oauth2.TokenSource
	apiKey     string
	logger     Logger
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("client: base url is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("client: invalid base url: %w", err)
	}
	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		tokens:     opts.Tokens,
		apiKey:     opts.APIKey,
		logger:     opts.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if c.logger == nil {
		c.logger = nopLogger{}
	}
	return c, nil
}

// TokenSourceFromConfig picks a static token when one is configured and
// otherwise the client credentials grant. It returns nil when neither is
// configured.
func TokenSourceFromConfig(ctx context.Context, cfg *config.Config) oauth2.TokenSource {
	if cfg.Client.Token != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Client.Token, TokenType: "Bearer"})
	}
	if cfg.Client.ClientID != "" && cfg.Client.ClientSecret != "" && cfg.Client.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.Client.ClientID,
			ClientSecret: cfg.Client.ClientSecret,
			TokenURL:     cfg.Client.TokenURL,
		}
		return cc.TokenSource(ctx)
	}
	return nil
}

// APIError is a non-2xx API response. Detail holds a string detail and
// Details the entries of a validation error list.
type APIError struct {
	Status  int
	Detail  string
	Details []ValidationDetail
}

// ValidationDetail is one entry of a 422 detail list.
type ValidationDetail struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		msgs := make([]string, len(e.Details))
		for i, d := range e.Details {
			msgs[i] = fmt.Sprintf("%s: %s", formatLoc(d.Loc), d.Msg)
		}
		return fmt.Sprintf("api error %d: %s", e.Status, strings.Join(msgs, "; "))
	}
	if e.Detail != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, http.StatusText(e.Status))
}

// IsNotFound reports whether err is a 404 API response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func formatLoc(loc []any) string {
	parts := make([]string, len(loc))
	for i, l := range loc {
		parts[i] = fmt.Sprint(l)
	}
	return strings.Join(parts, ".")
}

func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil || len(body) == 0 {
		return apiErr
	}
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		apiErr.Detail = strings.TrimSpace(string(body))
		return apiErr
	}
	if err := json.Unmarshal(envelope.Detail, &apiErr.Details); err == nil {
		return apiErr
	}
	if err := json.Unmarshal(envelope.Detail, &apiErr.Detail); err != nil {
		apiErr.Detail = string(envelope.Detail)
	}
	return apiErr
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	token := PlaceholderToken
	if c.tokens != nil {
		t, err := c.tokens.Token()
		if err != nil {
			c.logger.Debug("token source failed, sending placeholder", "error", err)
		} else if t.AccessToken != "" {
			token = t.AccessToken
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return req, nil
}

// do sends the request and returns the raw body of a 2xx response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()
	c.logger.Debug("api request", "method", req.Method, "path", req.URL.Path,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseAPIError(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	raw, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

func workflowPath(id string) string {
	return "/workflows/" + url.PathEscape(id)
}

// GetSelf returns the authenticated user.
func (c *Client) GetSelf(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.doJSON(ctx, http.MethodGet, "/users/self", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListWorkflows returns the caller's workflow summaries.
func (c *Client) ListWorkflows(ctx context.Context) ([]models.WorkflowSummary, error) {
	var out []models.WorkflowSummary
	if err := c.doJSON(ctx, http.MethodGet, "/workflows", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateWorkflow creates a workflow with an empty schema.
func (c *Client) CreateWorkflow(ctx context.Context, title string) (*models.Workflow, error) {
	var wf models.Workflow
	if err := c.doJSON(ctx, http.MethodPost, "/workflows", models.WorkflowCreate{Title: title}, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// GetWorkflow returns the workflow document exactly as the server sent it.
func (c *Client) GetWorkflow(ctx context.Context, id string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, workflowPath(id), nil, "")
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// UpdateWorkflow replaces a workflow and returns the saved copy.
func (c *Client) UpdateWorkflow(ctx context.Context, wf models.Workflow) (*models.Workflow, error) {
	var saved models.Workflow
	if err := c.doJSON(ctx, http.MethodPut, workflowPath(wf.ID), wf, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// SaveWorkflow PUTs a raw workflow document and returns the raw response.
func (c *Client) SaveWorkflow(ctx context.Context, id string, body []byte) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodPut, workflowPath(id), bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// DeleteWorkflow removes a workflow.
func (c *Client) DeleteWorkflow(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, workflowPath(id), nil, nil)
}

// RunWorkflow uploads a CSV with input values and returns the run report.
// A nil inputs map sends no workflow_inputs field.
func (c *Client) RunWorkflow(ctx context.Context, id, filename string, content io.Reader, inputs map[string]any) (*models.WorkflowRunReport, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("upload_csv", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(fw, content); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if inputs != nil {
		raw, err := json.Marshal(inputs)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal inputs: %w", err)
		}
		if err := mw.WriteField("workflow_inputs", string(raw)); err != nil {
			return nil, fmt.Errorf("failed to write inputs: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, workflowPath(id)+"/run", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var report models.WorkflowRunReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("failed to decode run report: %w", err)
	}
	return &report, nil
}

// ListAPIKeys returns the caller's API keys.
func (c *Client) ListAPIKeys(ctx context.Context) ([]models.APIKey, error) {
	var out []models.APIKey
	if err := c.doJSON(ctx, http.MethodGet, "/api-keys", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAPIKey issues a key valid until expiration.
func (c *Client) CreateAPIKey(ctx context.Context, expiration time.Time) (*models.APIKey, error) {
	var key models.APIKey
	if err := c.doJSON(ctx, http.MethodPost, "/api-keys", models.APIKeyCreate{Expiration: expiration}, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

// DeleteAPIKey revokes a key.
func (c *Client) DeleteAPIKey(ctx context.Context, key string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api-keys", models.APIKeyDelete{Key: key}, nil)
}
