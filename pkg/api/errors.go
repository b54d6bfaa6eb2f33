package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/concierge/pkg/mail"
	"github.com/codeready-toolchain/concierge/pkg/services"
)

// httpError is an HTTP status with a client-safe message.
type httpError struct {
	Code    int
	Message string
	Field   string
}

func (e *httpError) Error() string {
	return e.Message
}

// sentinelStatus maps service sentinels onto responses, first match wins.
var sentinelStatus = []struct {
	err     error
	code    int
	message string
}{
	{services.ErrNotFound, http.StatusNotFound, "resource not found"},
	{services.ErrAlreadyExists, http.StatusConflict, "resource already exists"},
	{mail.ErrNotConfigured, http.StatusServiceUnavailable, "email delivery is not available"},
}

// mapServiceError maps service-layer errors to HTTP error responses.
// Anything unrecognised is logged and hidden behind a 500.
func mapServiceError(err error) *httpError {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		return &httpError{Code: http.StatusBadRequest, Message: ve.Error(), Field: ve.Field}
	}
	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			return &httpError{Code: s.code, Message: s.message}
		}
	}
	slog.Error("Unexpected service error", "error", err)
	return &httpError{Code: http.StatusInternalServerError, Message: "internal server error"}
}

// abortWithError writes the mapped error of err as JSON.
func abortWithError(c *gin.Context, err error) {
	he := mapServiceError(err)
	c.AbortWithStatusJSON(he.Code, ErrorResponse{Error: he.Message, Field: he.Field})
}

// badRequest aborts with 400 and msg.
func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
