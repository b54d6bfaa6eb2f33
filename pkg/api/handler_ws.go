package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/concierge/pkg/events"
)

// wsHandler handles GET /api/v1/widget/ws?session_id=&visitor_id=&lang=.
// It upgrades to WebSocket and delegates to the ConnectionManager, which
// blocks until the socket closes.
func (s *Server) wsHandler(c *gin.Context) {
	if s.deps.ConnManager == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{Error: "WebSocket not available"})
		return
	}
	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		badRequest(c, "session_id is required")
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, s.wsAcceptOptions())
	if err != nil {
		// Accept has already written the HTTP error.
		slog.Warn("WebSocket upgrade failed", "session_id", sessionID, "error", err)
		c.Abort()
		return
	}

	s.deps.ConnManager.HandleConnection(c.Request.Context(), conn, events.ConnectParams{
		SessionID: sessionID,
		VisitorID: c.Query("visitor_id"),
		Language:  c.Query("lang"),
	})
}
