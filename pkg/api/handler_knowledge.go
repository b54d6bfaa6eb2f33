package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// maxMatchLimit bounds the limit query parameter of the match endpoint.
const maxMatchLimit = 20

// matchHandler handles GET /api/v1/knowledge/match?q=&lang=&limit=.
func (s *Server) matchHandler(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		badRequest(c, "q is required")
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxMatchLimit {
			badRequest(c, "limit must be between 1 and "+strconv.Itoa(maxMatchLimit))
			return
		}
		limit = n
	}

	c.JSON(http.StatusOK, s.deps.Conversations.Match(c.Request.Context(), q, c.Query("lang"), limit))
}
