package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smooshr/backend/internal/api"
	"smooshr/backend/internal/auth"
	"smooshr/backend/internal/harness"
	"smooshr/backend/internal/repository"
	"smooshr/backend/internal/runner"
	"smooshr/backend/internal/services"
	"smooshr/backend/pkg/models"
)

type noOpLogger struct{}

func (noOpLogger) Debug(msg string, args ...any) {}
func (noOpLogger) Info(msg string, args ...any)  {}
func (noOpLogger) Error(msg string, args ...any) {}

// startTestServer serves the API from an in-memory SQLite store. The
// X-API-Key header names the calling user.
func startTestServer(t *testing.T) string {
	t.Helper()
	repo, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(context.Background()))
	t.Cleanup(func() { repo.Close() })

	wfs, err := services.NewWorkflowService(repo, runner.New(runner.Options{ImplicitBaseline: true}), noOpLogger{})
	require.NoError(t, err)
	users := services.NewUserService(repo, noOpLogger{})
	keys := services.NewAPIKeyService(repo, noOpLogger{})

	e := echo.New()
	e.HTTPErrorHandler = api.NewHTTPErrorHandler(noOpLogger{})
	g := e.Group("/api", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(auth.APIKeyHeader)
			if id == "" {
				return next(c)
			}
			u, err := users.Provision(c.Request().Context(), models.User{ID: id, Email: id + "@example.com"})
			if err != nil {
				return err
			}
			c.SetRequest(c.Request().WithContext(auth.WithUser(c.Request().Context(), u)))
			return next(c)
		}
	})
	api.RegisterHandlers(g, api.NewServer(wfs, keys, 1<<20))

	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)
	return ts.URL + "/api"
}

type cli struct {
	t      *testing.T
	server string
	user   string
}

func newCLI(t *testing.T) *cli {
	return &cli{t: t, server: startTestServer(t), user: "user-1"}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"--server", c.server, "--api-key", c.user, "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, out)
	return out
}

func (c *cli) createWorkflow(title string) string {
	c.t.Helper()
	out := c.mustRun("-o", "json", "workflows", "create", title)
	var wf models.Workflow
	require.NoError(c.t, json.Unmarshal([]byte(out), &wf))
	require.NotEmpty(c.t, wf.ID)
	return wf.ID
}

func (c *cli) schema(id string) models.WorkflowSchema {
	c.t.Helper()
	out := c.mustRun("-o", "json", "workflows", "show", id)
	var wf models.Workflow
	require.NoError(c.t, json.Unmarshal([]byte(out), &wf))
	return wf.Schema
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestWhoami(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("whoami")
	assert.Contains(t, out, "user-1")
	assert.Contains(t, out, "user-1@example.com")
}

func TestWorkflowsLifecycle(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("workflows", "list")
	assert.Contains(t, out, "No workflows found.")

	id := c.createWorkflow("Monthly report")

	out = c.mustRun("workflows", "list")
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Monthly report")

	c.mustRun("workflows", "rename", id, "Quarterly", "report")
	out = c.mustRun("workflows", "show", id)
	assert.Contains(t, out, "Quarterly report")
	assert.Contains(t, out, "Operations (0)")

	out = c.mustRun("-o", "yaml", "workflows", "show", id)
	assert.Contains(t, out, "title: Quarterly report")

	c.mustRun("workflows", "delete", id)
	_, err := c.run("workflows", "show", id)
	assert.Error(t, err)
}

func TestWorkflowsAreScopedToTheCaller(t *testing.T) {
	c := newCLI(t)
	id := c.createWorkflow("Private")

	c.user = "user-2"
	out := c.mustRun("workflows", "list")
	assert.Contains(t, out, "No workflows found.")
	_, err := c.run("workflows", "show", id)
	assert.Error(t, err)
}

func TestWorkflowsSetAndGet(t *testing.T) {
	c := newCLI(t)
	id := c.createWorkflow("Paths")
	c.mustRun("ops", "add", id, string(models.OperationRowCountValidation), "--min", "1")

	c.mustRun("workflows", "set", id, "schema.operations.0.title", `"At least one row"`)
	out := c.mustRun("workflows", "get", id, "schema.operations.0.title")
	assert.Equal(t, "\"At least one row\"\n", out)

	out = c.mustRun("workflows", "get", id, "schema.operations.0.minRowCount")
	assert.Equal(t, "1\n", out)
}

func TestOpsAdd_ValidationError(t *testing.T) {
	c := newCLI(t)
	id := c.createWorkflow("Bad rows")

	_, err := c.run("ops", "add", id, string(models.OperationRowCountValidation), "--min", "5", "--max", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum row count")

	_, err = c.run("ops", "add", id, "sortRows")
	assert.Error(t, err)

	assert.Empty(t, c.schema(id).Operations)
}

func TestOpsUpdateAndRemove(t *testing.T) {
	c := newCLI(t)
	id := c.createWorkflow("Edits")
	c.mustRun("ops", "add", id, string(models.OperationFileTypeValidation))
	c.mustRun("ops", "add", id, string(models.OperationRowCountValidation), "--max", "10")

	s := c.schema(id)
	require.Len(t, s.Operations, 2)
	assert.Equal(t, ".csv", s.Operations[0].ExpectedFileType)

	c.mustRun("ops", "update", id, s.Operations[1].ID, "--title", "Small files", "--min", "2")
	s = c.schema(id)
	assert.Equal(t, "Small files", s.Operations[1].Title)
	require.NotNil(t, s.Operations[1].MinRowCount)
	assert.Equal(t, 2, *s.Operations[1].MinRowCount)
	require.NotNil(t, s.Operations[1].MaxRowCount)
	assert.Equal(t, 10, *s.Operations[1].MaxRowCount)

	c.mustRun("ops", "remove", id, "1")
	s = c.schema(id)
	require.Len(t, s.Operations, 1)
	assert.Equal(t, models.OperationRowCountValidation, s.Operations[0].Type)

	_, err := c.run("ops", "remove", id, "5")
	assert.Error(t, err)
}

func TestFieldsetsAndRun(t *testing.T) {
	c := newCLI(t)
	id := c.createWorkflow("Customers")

	header := writeFile(t, "customers.csv", "name,amount\n")
	out := c.mustRun("fieldsets", "add", id, "--from-csv", header)
	assert.Contains(t, out, "with 2 columns")

	c.mustRun("ops", "add", id, string(models.OperationFieldsetSchemaValidation), "--ruleset", "customers")
	s := c.schema(id)
	require.Len(t, s.FieldsetSchemas, 1)
	require.Len(t, s.Operations, 1)
	assert.Equal(t, models.FieldsetRef(s.FieldsetSchemas[0].ID), s.Operations[0].FieldsetSchema)

	out = c.mustRun("workflows", "show", id)
	assert.Contains(t, out, "ruleset: customers")

	good := writeFile(t, "good.csv", "name,amount\nAda,3\nGrace,4\n")
	out = c.mustRun("run", id, good)
	assert.Contains(t, out, "2 rows in good.csv")
	assert.Contains(t, out, "All validations passed.")

	bad := writeFile(t, "bad.csv", "name\nAda\n")
	out, err := c.run("run", id, bad)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, out, "validation failures:")

	out, err = c.run("-o", "json", "run", id, bad)
	assert.ErrorIs(t, err, ErrValidationFailed)
	var report models.WorkflowRunReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "bad.csv", report.Filename)
	assert.NotEmpty(t, report.ValidationFailures)
}

func TestFieldsetsRemove_ReferencedRulesetIsRejected(t *testing.T) {
	c := newCLI(t)
	id := c.createWorkflow("Refs")
	c.mustRun("fieldsets", "add", id, "--name", "Orders")
	c.mustRun("ops", "add", id, string(models.OperationFieldsetSchemaValidation), "--ruleset", "Orders")

	_, err := c.run("fieldsets", "remove", id, "1")
	require.Error(t, err)

	s := c.schema(id)
	require.Len(t, s.FieldsetSchemas, 1)
	assert.Equal(t, "Orders", s.FieldsetSchemas[0].Name)

	c.mustRun("fieldsets", "rename", id, "1", "Purchase", "orders")
	out := c.mustRun("workflows", "show", id)
	assert.Contains(t, out, "ruleset: Purchase orders")
}

func TestParamsAndRunInputs(t *testing.T) {
	c := newCLI(t)
	id := c.createWorkflow("Inputs")

	out := c.mustRun("params", "add", id, "--name", "Region codes", "--type", "string list")
	assert.Contains(t, out, "Added input region_codes")
	c.mustRun("params", "add", id, "--name", "Limit", "--type", "number", "--optional")

	_, err := c.run("params", "add", id, "--name", "Region codes")
	assert.Error(t, err)
	_, err = c.run("params", "add", id, "--type", "date")
	assert.Error(t, err)

	s := c.schema(id)
	require.Len(t, s.Params, 2)
	assert.Equal(t, models.ParamTypeStringList, s.Params[0].Type)
	assert.True(t, s.Params[0].Required)
	assert.False(t, s.Params[1].Required)

	data := writeFile(t, "data.csv", "a\n1\n")
	out = c.mustRun("run", id, data, "--input", "region_codes=EU, US", "-i", "limit=5")
	assert.Contains(t, out, "All validations passed.")

	_, err = c.run("run", id, data, "--input", "nope=1")
	assert.ErrorIs(t, err, harness.ErrUnknownParam)

	c.mustRun("params", "remove", id, "2")
	assert.Len(t, c.schema(id).Params, 1)
}

func TestKeys(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("keys", "list")
	assert.Contains(t, out, "No API keys found.")

	out = c.mustRun("-o", "json", "keys", "create", "--expires", "48h")
	var key models.APIKey
	require.NoError(t, json.Unmarshal([]byte(out), &key))
	require.NotEmpty(t, key.Key)

	out = c.mustRun("keys", "list")
	assert.Contains(t, out, key.Key)
	assert.Contains(t, out, "active")

	c.mustRun("keys", "delete", key.Key)
	out = c.mustRun("keys", "list")
	assert.Contains(t, out, "No API keys found.")

	_, err := c.run("keys", "create", "--expires=-1h")
	assert.Error(t, err)
}

func TestUnknownOutputFormat(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("-o", "xml", "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestParamsUpdate_KeepsNameInSync(t *testing.T) {
	c := newCLI(t)
	id := c.createWorkflow("Rename inputs")
	c.mustRun("params", "add", id)
	c.mustRun("params", "add", id, "--name", "Limit", "--type", "number")

	out := c.mustRun("params", "update", id, "1", "--name", "Sales Region", "--optional")
	assert.Contains(t, out, "Updated input sales_Region")

	s := c.schema(id)
	require.Len(t, s.Params, 2)
	assert.Equal(t, "Sales Region", s.Params[0].DisplayName)
	assert.Equal(t, "sales_Region", s.Params[0].Name)
	assert.False(t, s.Params[0].Required)
	assert.Equal(t, models.ParamTypeString, s.Params[0].Type)

	_, err := c.run("params", "update", id, "2", "--name", "Sales Region")
	assert.Error(t, err)
	_, err = c.run("params", "update", id, "2", "--type", "date")
	assert.Error(t, err)
	_, err = c.run("params", "update", id, "3", "--name", "x")
	assert.Error(t, err)
}

func TestWorkflowsSet_StaleParamNameIsRejected(t *testing.T) {
	c := newCLI(t)
	id := c.createWorkflow("Raw edits")
	c.mustRun("params", "add", id)

	_, err := c.run("workflows", "set", id, "schema.params.0.displayName", `"Sales Region"`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of sync")

	s := c.schema(id)
	require.Len(t, s.Params, 1)
	assert.Equal(t, "Input 1", s.Params[0].DisplayName)
	assert.Equal(t, "input_1", s.Params[0].Name)
}

func TestFieldsetsFieldSet_AllowedValuesFromInput(t *testing.T) {
	c := newCLI(t)
	id := c.createWorkflow("Orders")
	c.mustRun("params", "add", id, "--name", "Region codes", "--type", "string list")
	c.mustRun("params", "add", id, "--name", "Limit", "--type", "number")
	header := writeFile(t, "orders.csv", "region,placed\n")
	c.mustRun("fieldsets", "add", id, "--from-csv", header)
	c.mustRun("ops", "add", id, string(models.OperationFieldsetSchemaValidation), "--ruleset", "orders")

	out := c.mustRun("fieldsets", "field", "set", id, "1", "1", "--allowed-from", "region_codes")
	assert.Contains(t, out, "Updated column region")
	c.mustRun("fieldsets", "field", "set", id, "1", "2", "--type", "timestamp", "--format", "%Y-%m-%d", "--allow-empty")

	s := c.schema(id)
	fields := s.FieldsetSchemas[0].Fields
	assert.Equal(t, models.AllowedValuesParam, fields[0].AllowedValues.Kind)
	assert.Equal(t, s.Params[0].ID, fields[0].AllowedValues.Param.ParamID)
	assert.Equal(t, models.DataTypeValidation{DataType: models.DataTypeTimestamp, DateTimeFormat: "%Y-%m-%d"}, fields[1].DataTypeValidation)
	assert.True(t, fields[1].AllowEmptyValues)

	_, err := c.run("fieldsets", "field", "set", id, "1", "1", "--allowed-from", "limit")
	assert.Error(t, err)
	_, err = c.run("fieldsets", "field", "set", id, "1", "1", "--allowed-from", "param:missing")
	assert.Error(t, err)
	_, err = c.run("fieldsets", "field", "set", id, "1", "1", "--type", "timestamp")
	assert.Error(t, err)
	_, err = c.run("fieldsets", "field", "set", id, "1", "3", "--required=false")
	assert.Error(t, err)
	assert.Equal(t, s.Params[0].ID, c.schema(id).FieldsetSchemas[0].Fields[0].AllowedValues.Param.ParamID)

	good := writeFile(t, "good.csv", "region,placed\nEU,\nUS,\n")
	out = c.mustRun("run", id, good, "--input", "region_codes=EU,US", "-i", "limit=1")
	assert.Contains(t, out, "All validations passed.")

	bad := writeFile(t, "bad.csv", "region,placed\nEU,\nFR,\n")
	_, err = c.run("run", id, bad, "--input", "region_codes=EU,US", "-i", "limit=1")
	assert.ErrorIs(t, err, ErrValidationFailed)

	c.mustRun("fieldsets", "field", "set", id, "1", "1", "--unconstrained")
	out = c.mustRun("run", id, bad, "--input", "region_codes=EU,US", "-i", "limit=1")
	assert.Contains(t, out, "All validations passed.")
}
