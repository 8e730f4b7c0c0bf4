package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health status values reported by the health endpoints.
const (
	StatusHealthy  = "healthy"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
)

// ComponentStatus represents the health status of a single component.
type ComponentStatus struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the response for health endpoints.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components []ComponentStatus `json:"components,omitempty"`
}

// HealthChecker reports whether the infrastructure behind the service is
// reachable. Implemented by the DI container.
type HealthChecker interface {
	// IsReady checks whether all infrastructure components can serve traffic.
	IsReady(ctx context.Context) bool

	// GetHealthStatus returns the per-component health status.
	GetHealthStatus(ctx context.Context) []ComponentStatus
}

// RegisterHealthEndpoints registers the liveness and readiness probes.
//
//   - GET /health always returns 200 while the process runs
//   - GET /ready returns 200 when the checker reports ready, 503 otherwise
func (r *Router) RegisterHealthEndpoints(checker HealthChecker) {
	r.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{Status: StatusHealthy})
	})

	r.echo.GET("/ready", func(c echo.Context) error {
		ctx := c.Request().Context()

		var components []ComponentStatus
		if checker != nil {
			components = checker.GetHealthStatus(ctx)
		}

		if checker == nil || checker.IsReady(ctx) {
			return c.JSON(http.StatusOK, HealthResponse{
				Status:     StatusReady,
				Components: components,
			})
		}
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:     StatusNotReady,
			Components: components,
		})
	})
}
