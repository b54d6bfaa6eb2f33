// Package api serves the concierge HTTP API and the widget WebSocket.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/codeready-toolchain/concierge/pkg/config"
	"github.com/codeready-toolchain/concierge/pkg/database"
	"github.com/codeready-toolchain/concierge/pkg/events"
	"github.com/codeready-toolchain/concierge/pkg/metrics"
	"github.com/codeready-toolchain/concierge/pkg/queue"
	"github.com/codeready-toolchain/concierge/pkg/services"
)

// Deps are the collaborators of the server. Only Conversations is required.
type Deps struct {
	Conversations *services.ConversationService
	// DB and Redis are checked by /health when set.
	DB          *database.Client
	Redis       redis.UniversalClient
	Dispatcher  *queue.Dispatcher
	ConnManager *events.ConnectionManager
	Metrics     *metrics.Metrics
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// Server is the HTTP API server.
type Server struct {
	cfg        *config.Config
	engine     *gin.Engine
	httpServer *http.Server
	deps       Deps
}

// NewServer creates the server and registers every route.
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(securityHeaders())
	engine.Use(corsMiddleware(cfg.Server))

	s := &Server{
		cfg:    cfg,
		engine: engine,
		deps:   deps,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	v1 := s.engine.Group("/api/v1")
	v1.Use(rateLimit(s.cfg.Server, s.deps.Metrics))

	conversations := v1.Group("/conversations")
	{
		conversations.POST("", s.createConversationHandler)
		conversations.GET("/:id", s.getConversationHandler)
		conversations.POST("/:id/messages", s.sendMessageHandler)
		conversations.POST("/:id/leads", s.submitLeadHandler)
		conversations.POST("/:id/escalations", s.escalateHandler)
	}

	v1.POST("/summary-email", s.summaryEmailHandler)
	v1.GET("/knowledge/match", s.matchHandler)

	escalations := v1.Group("/escalations")
	{
		escalations.GET("/:id", s.getTicketHandler)
		escalations.PATCH("/:id", s.updateTicketHandler)
	}

	v1.GET("/widget/ws", s.wsHandler)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves on addr and blocks until the server stops. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// wsAcceptOptions builds the upgrade options from the allowed origins. An
// empty allowlist only admits same-origin connections.
func (s *Server) wsAcceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{}
	if s.cfg.Server != nil && len(s.cfg.Server.AllowedWSOrigins) > 0 {
		opts.OriginPatterns = s.cfg.Server.AllowedWSOrigins
	}
	return opts
}
