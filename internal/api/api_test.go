package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smooshr/backend/internal/auth"
	"smooshr/backend/internal/repository"
	"smooshr/backend/internal/runner"
	"smooshr/backend/internal/services"
	"smooshr/backend/pkg/models"
)

type noOpLogger struct{}

func (noOpLogger) Debug(msg string, args ...any) {}
func (noOpLogger) Info(msg string, args ...any)  {}
func (noOpLogger) Error(msg string, args ...any) {}

type testEnv struct {
	e    *echo.Echo
	repo repository.Repository
}

// asUser injects the user named by the X-Test-User header.
func asUser(users *services.UserService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get("X-Test-User")
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
	}
}

func newTestEnv(t *testing.T) *testEnv {
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
	e.HTTPErrorHandler = NewHTTPErrorHandler(noOpLogger{})
	e.GET("/health", HealthHandler(repo))
	g := e.Group("/api", asUser(users))
	RegisterHandlers(g, NewServer(wfs, keys, 1<<20))
	return &testEnv{e: e, repo: repo}
}

func (env *testEnv) do(t *testing.T, user, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (env *testEnv) createWorkflow(t *testing.T, user, title string) models.Workflow {
	t.Helper()
	rec := env.do(t, user, http.MethodPost, "/api/workflows", models.WorkflowCreate{Title: title})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[models.Workflow](t, rec)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthStatus](t, rec).Status)
}

func TestGetSelf(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "", http.MethodGet, "/api/users/self", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"Not authenticated"}`, rec.Body.String())

	rec = env.do(t, "ada", http.MethodGet, "/api/users/self", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	u := decode[models.User](t, rec)
	assert.Equal(t, "ada", u.ID)
	assert.Equal(t, "ada@example.com", u.Email)
}

func TestWorkflowCRUD(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "ada", http.MethodGet, "/api/workflows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	wf := env.createWorkflow(t, "ada", "Intake")
	assert.Equal(t, "ada", wf.Owner)
	assert.Equal(t, models.SchemaVersion, wf.Schema.Version)
	assert.Empty(t, wf.Schema.Operations)

	rec = env.do(t, "ada", http.MethodGet, "/api/workflows", nil)
	list := decode[[]models.WorkflowSummary](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, wf.ID, list[0].ID)

	rec = env.do(t, "grace", http.MethodGet, "/api/workflows/"+wf.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	wf.Title = "Intake v2"
	wf.Schema.Operations = []models.Operation{{
		Type:             models.OperationFileTypeValidation,
		ID:               "op-1",
		Title:            "Check file type",
		ExpectedFileType: ".csv",
	}}
	rec = env.do(t, "ada", http.MethodPut, "/api/workflows/"+wf.ID, wf)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, "ada", http.MethodGet, "/api/workflows/"+wf.ID, nil)
	got := decode[models.Workflow](t, rec)
	assert.Equal(t, "Intake v2", got.Title)
	require.Len(t, got.Schema.Operations, 1)
	assert.Equal(t, ".csv", got.Schema.Operations[0].ExpectedFileType)

	rec = env.do(t, "grace", http.MethodDelete, "/api/workflows/"+wf.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "ada", http.MethodDelete, "/api/workflows/"+wf.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Workflow deleted"}`, rec.Body.String())

	rec = env.do(t, "ada", http.MethodGet, "/api/workflows/"+wf.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Not found"}`, rec.Body.String())
}

func TestCreateWorkflow_EmptyTitle(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "ada", http.MethodPost, "/api/workflows", models.WorkflowCreate{Title: " "})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decode[ValidationErrorResponse](t, rec)
	require.Len(t, resp.Detail, 1)
	assert.Equal(t, []any{"body", "title"}, resp.Detail[0].Loc)
}

func TestUpdateWorkflow_Rejections(t *testing.T) {
	env := newTestEnv(t)
	wf := env.createWorkflow(t, "ada", "Intake")

	dangling := `{"title":"x","schema":{"version":"0.1","operations":[
		{"type":"fieldsetSchemaValidation","id":"op","title":"cols","description":null,"fieldsetSchema":"missing"}],
		"fieldsetSchemas":[],"params":[]}}`
	rec := env.do(t, "ada", http.MethodPut, "/api/workflows/"+wf.ID, dangling)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	resp := decode[ValidationErrorResponse](t, rec)
	require.Len(t, resp.Detail, 1)
	// JSON numbers decode as float64.
	assert.Equal(t, []any{"body", "operations", float64(0), "fieldsetSchema"}, resp.Detail[0].Loc)

	unknownType := `{"title":"x","schema":{"version":"0.1","operations":[{"type":"bogus","id":"op","title":"t"}],"fieldsetSchemas":[],"params":[]}}`
	rec = env.do(t, "ada", http.MethodPut, "/api/workflows/"+wf.ID, unknownType)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, "ada", http.MethodPut, "/api/workflows/"+wf.ID, "{not json")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	staleName := `{"title":"x","schema":{"version":"0.1","operations":[],"fieldsetSchemas":[],"params":[
		{"id":"p1","name":"input_1","displayName":"Sales Region","description":"","required":true,"type":"string"}]}}`
	rec = env.do(t, "ada", http.MethodPut, "/api/workflows/"+wf.ID, staleName)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	resp = decode[ValidationErrorResponse](t, rec)
	require.Len(t, resp.Detail, 1)
	assert.Equal(t, []any{"body", "params", float64(0), "name"}, resp.Detail[0].Loc)

	rec = env.do(t, "ada", http.MethodPut, "/api/workflows/"+wf.ID, `{"title":"  ","schema":{"version":"0.1","operations":[],"fieldsetSchemas":[],"params":[]}}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	resp = decode[ValidationErrorResponse](t, rec)
	assert.Equal(t, []any{"body", "title"}, resp.Detail[0].Loc)
}

func runRequest(t *testing.T, env *testEnv, user, id, filename, csv, inputs string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("upload_csv", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(csv))
		require.NoError(t, err)
	}
	if inputs != "" {
		require.NoError(t, mw.WriteField("workflow_inputs", inputs))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/workflows/"+id+"/run", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	req.Header.Set("X-Test-User", user)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func TestRunWorkflow(t *testing.T) {
	env := newTestEnv(t)
	wf := env.createWorkflow(t, "ada", "Intake")
	minRows := 3
	wf.Schema.Operations = []models.Operation{{
		Type:        models.OperationRowCountValidation,
		ID:          "rows",
		Title:       "Check row counts",
		MinRowCount: &minRows,
	}}
	wf.Schema.Params = []models.WorkflowParam{models.WorkflowParam{ID: "p1", Type: models.ParamTypeString, Required: true}.WithDisplayName("Region")}
	rec := env.do(t, "ada", http.MethodPut, "/api/workflows/"+wf.ID, wf)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = runRequest(t, env, "ada", wf.ID, "data.csv", "name\nA\nB\n", `{"region":"north"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[models.WorkflowRunReport](t, rec)
	assert.Equal(t, wf.ID, report.WorkflowID)
	assert.Equal(t, "data.csv", report.Filename)
	assert.Equal(t, 2, report.RowCount)
	require.Len(t, report.ValidationFailures, 1)
	assert.Equal(t, "File does not have the expected row count (min: 3, max: None)", report.ValidationFailures[0].Message)
	assert.Nil(t, report.ValidationFailures[0].RowNumber)

	rec = runRequest(t, env, "ada", wf.ID, "data.csv", "name\nA\n", `{"nope":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "nope")

	rec = runRequest(t, env, "ada", wf.ID, "data.csv", "name\nA\n", `[1,2]`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = runRequest(t, env, "ada", wf.ID, "", "", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[ValidationErrorResponse](t, rec)
	assert.Equal(t, []any{"body", "upload_csv"}, resp.Detail[0].Loc)

	rec = runRequest(t, env, "grace", wf.ID, "data.csv", "name\nA\n", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIKeys(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "ada", http.MethodPost, "/api/api-keys", models.APIKeyCreate{Expiration: time.Now().Add(-time.Minute)})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, "ada", http.MethodPost, "/api/api-keys", models.APIKeyCreate{Expiration: time.Now().Add(time.Hour)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	key := decode[models.APIKey](t, rec)
	assert.True(t, strings.HasPrefix(key.Key, "smsh_"))

	rec = env.do(t, "ada", http.MethodGet, "/api/api-keys", nil)
	require.Len(t, decode[[]models.APIKey](t, rec), 1)

	rec = env.do(t, "grace", http.MethodGet, "/api/api-keys", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(t, "grace", http.MethodDelete, "/api/api-keys", models.APIKeyDelete{Key: key.Key})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "ada", http.MethodDelete, "/api/api-keys", models.APIKeyDelete{Key: key.Key})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "ada", http.MethodDelete, "/api/api-keys", models.APIKeyDelete{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSpecHandler_SubstitutesIssuer(t *testing.T) {
	e := echo.New()
	e.GET("/openapi.yaml", SpecHandler("https://issuer.example/"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://issuer.example/oauth2/v1/authorize")
	assert.NotContains(t, rec.Body.String(), "{issuer}")
}

func TestSwaggerHandler_RendersClientAndRedirect(t *testing.T) {
	e := echo.New()
	e.GET("/docs", SwaggerHandler(`docs-client"</script>`))
	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	req.Host = "smooshr.example"
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "https://smooshr.example/docs/oauth2-redirect.html")
	assert.Contains(t, body, "docs-client")
	assert.NotContains(t, body, `docs-client"</script>`)
}
