package api

import (
	"github.com/codeready-toolchain/concierge/pkg/database"
	"github.com/codeready-toolchain/concierge/pkg/queue"
	"github.com/codeready-toolchain/concierge/pkg/version"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
	// Field names the rejected request field of a validation failure.
	Field string `json:"field,omitempty"`
}

// HealthCheck is the status of one component.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status            string                 `json:"status"`
	Version           version.Info           `json:"version"`
	Checks            map[string]HealthCheck `json:"checks"`
	Database          *database.HealthStatus `json:"database,omitempty"`
	Dispatcher        *queue.Health          `json:"dispatcher,omitempty"`
	WidgetConnections int                    `json:"widget_connections"`
}
