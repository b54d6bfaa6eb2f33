package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/concierge/pkg/database"
	"github.com/codeready-toolchain/concierge/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /health.
// Only the concierge's own stores and dispatcher are checked. The
// generative backend, Slack and SMTP are excluded so an outage there does
// not get the service restarted.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp := &HealthResponse{
		Status:  healthStatusHealthy,
		Version: version.Get(),
		Checks:  make(map[string]HealthCheck),
	}

	if s.deps.DB != nil {
		dbHealth, err := s.deps.DB.Health(reqCtx)
		resp.Database = dbHealth
		switch {
		case err != nil:
			resp.Status = healthStatusUnhealthy
			resp.Checks["database"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
		case dbHealth.Status == database.StatusSaturated:
			if resp.Status == healthStatusHealthy {
				resp.Status = healthStatusDegraded
			}
			resp.Checks["database"] = HealthCheck{Status: healthStatusDegraded, Message: "connection pool exhausted"}
		default:
			resp.Checks["database"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	if s.deps.Redis != nil {
		if err := s.deps.Redis.Ping(reqCtx).Err(); err != nil {
			resp.Status = healthStatusUnhealthy
			resp.Checks["redis"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
		} else {
			resp.Checks["redis"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	if s.deps.Dispatcher != nil {
		h := s.deps.Dispatcher.Health()
		resp.Dispatcher = &h
		if h.Stopped {
			if resp.Status == healthStatusHealthy {
				resp.Status = healthStatusDegraded
			}
			resp.Checks["dispatcher"] = HealthCheck{Status: healthStatusDegraded, Message: "stopped"}
		} else {
			resp.Checks["dispatcher"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	if s.deps.ConnManager != nil {
		resp.WidgetConnections = s.deps.ConnManager.ActiveConnections()
	}

	httpStatus := http.StatusOK
	if resp.Status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, resp)
}
