package api

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/concierge/pkg/escalation"
	"github.com/codeready-toolchain/concierge/pkg/language"
	"github.com/codeready-toolchain/concierge/pkg/services"
)

// createConversationHandler handles POST /api/v1/conversations.
func (s *Server) createConversationHandler(c *gin.Context) {
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	conv, err := s.deps.Conversations.CreateConversation(c.Request.Context(), req.SessionID, req.VisitorID, req.Language)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

// getConversationHandler handles GET /api/v1/conversations/:id.
func (s *Server) getConversationHandler(c *gin.Context) {
	rec, err := s.deps.Conversations.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// sendMessageHandler handles POST /api/v1/conversations/:id/messages.
// Backend failures are answered with the localized apology, so a 200 is
// returned for every accepted message.
func (s *Server) sendMessageHandler(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if utf8.RuneCountInString(req.Message) > maxMessageLength {
		badRequest(c, fmt.Sprintf("message exceeds maximum length of %d characters", maxMessageLength))
		return
	}

	reply, err := s.deps.Conversations.SendMessage(c.Request.Context(), c.Param("id"), req.Message, req.Language)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// submitLeadHandler handles POST /api/v1/conversations/:id/leads.
func (s *Server) submitLeadHandler(c *gin.Context) {
	var req SubmitLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	lead, err := s.deps.Conversations.SubmitLead(c.Request.Context(), c.Param("id"), services.LeadInput{
		Name:        req.Name,
		Email:       req.Email,
		GDPRConsent: req.GDPRConsent,
	}, req.Language)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lead)
}

// escalateHandler handles POST /api/v1/conversations/:id/escalations.
func (s *Server) escalateHandler(c *gin.Context) {
	var req EscalateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := s.deps.Conversations.Escalate(c.Request.Context(), escalation.Request{
		ConversationID: c.Param("id"),
		Message:        req.Message,
		Language:       language.Language(strings.TrimSpace(req.Language)),
		Reason:         req.Reason,
		Urgency:        req.Urgency,
		Urgent:         req.Urgent,
		Category:       req.Category,
		ContactChannel: req.ContactChannel,
		ContactEmail:   req.ContactEmail,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// summaryEmailHandler handles POST /api/v1/summary-email.
func (s *Server) summaryEmailHandler(c *gin.Context) {
	var req SummaryEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := s.deps.Conversations.RequestSummaryEmail(c.Request.Context(), req.Email, req.Summary, req.Language); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}
