package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Version is reported by the health endpoint.
var Version = "0.1.0"

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler returns 200 when the store answers and 503 otherwise.
func HealthHandler(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		status := HealthStatus{
			Status:    "ok",
			Timestamp: time.Now().UTC(),
			Service:   "smooshr",
			Version:   Version,
		}
		code := http.StatusOK
		if err := db.Ping(c.Request().Context()); err != nil {
			status.Status = "unavailable"
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, status)
	}
}
