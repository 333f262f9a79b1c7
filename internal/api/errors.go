package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"smooshr/backend/internal/repository"
	"smooshr/backend/internal/runner"
	"smooshr/backend/internal/services"
	"smooshr/backend/pkg/models"
)

// ErrorResponse is the body of every non-validation error.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ValidationDetail locates one invalid request value. Loc holds strings and
// list indices.
type ValidationDetail struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// ValidationErrorResponse is the 422 body listing every invalid value.
type ValidationErrorResponse struct {
	Detail []ValidationDetail `json:"detail"`
}

func (e *ValidationErrorResponse) Error() string {
	msgs := make([]string, len(e.Detail))
	for i, d := range e.Detail {
		msgs[i] = d.Msg
	}
	return "request validation failed: " + strings.Join(msgs, "; ")
}

// FromValidationError converts schema problems into request validation
// details located under the request body.
func FromValidationError(ve *models.ValidationError) *ValidationErrorResponse {
	resp := &ValidationErrorResponse{Detail: make([]ValidationDetail, 0, len(ve.Problems))}
	for _, p := range ve.Problems {
		loc := []any{"body"}
		for _, seg := range strings.Split(p.Path, ".") {
			if n, err := strconv.Atoi(seg); err == nil {
				loc = append(loc, n)
			} else if seg != "" {
				loc = append(loc, seg)
			}
		}
		resp.Detail = append(resp.Detail, ValidationDetail{Loc: loc, Msg: p.Message, Type: "value_error"})
	}
	return resp
}

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Error(msg string, args ...any)
}

// NewHTTPErrorHandler maps service errors to HTTP responses with a detail
// body.
func NewHTTPErrorHandler(logger Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error("failed to write error response", "error", err)
		}
	}
}

func errorResponse(err error) (int, any) {
	var (
		he  *echo.HTTPError
		ve  *models.ValidationError
		ver *ValidationErrorResponse
	)
	switch {
	case errors.As(err, &ver):
		return http.StatusUnprocessableEntity, ver
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, FromValidationError(ve)
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, runner.ErrUnknownParam),
		errors.Is(err, runner.ErrFieldsetNotFound):
		return http.StatusUnprocessableEntity, ErrorResponse{Detail: err.Error()}
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Detail: "Not found"}
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, ErrorResponse{Detail: "Conflict"}
	case errors.Is(err, services.ErrKeyExpired):
		return http.StatusUnauthorized, ErrorResponse{Detail: "API key expired"}
	case errors.As(err, &he):
		detail := http.StatusText(he.Code)
		if msg, ok := he.Message.(string); ok {
			detail = msg
		}
		return he.Code, ErrorResponse{Detail: detail}
	}
	return http.StatusInternalServerError, ErrorResponse{Detail: "Internal server error"}
}
