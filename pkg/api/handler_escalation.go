package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getTicketHandler handles GET /api/v1/escalations/:id.
func (s *Server) getTicketHandler(c *gin.Context) {
	ticket, err := s.deps.Conversations.Ticket(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// updateTicketHandler handles PATCH /api/v1/escalations/:id.
func (s *Server) updateTicketHandler(c *gin.Context) {
	var req UpdateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Status == "" {
		badRequest(c, "status is required")
		return
	}

	ticket, err := s.deps.Conversations.UpdateTicketStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}
