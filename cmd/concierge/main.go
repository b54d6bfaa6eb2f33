// Concierge server: HTTP API, widget socket, background dispatcher and
// conversation cleanup.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/codeready-toolchain/concierge/pkg/api"
	"github.com/codeready-toolchain/concierge/pkg/cleanup"
	"github.com/codeready-toolchain/concierge/pkg/config"
	"github.com/codeready-toolchain/concierge/pkg/database"
	"github.com/codeready-toolchain/concierge/pkg/escalation"
	"github.com/codeready-toolchain/concierge/pkg/events"
	"github.com/codeready-toolchain/concierge/pkg/knowledge"
	"github.com/codeready-toolchain/concierge/pkg/language"
	"github.com/codeready-toolchain/concierge/pkg/llm"
	"github.com/codeready-toolchain/concierge/pkg/mail"
	"github.com/codeready-toolchain/concierge/pkg/masking"
	"github.com/codeready-toolchain/concierge/pkg/matcher"
	"github.com/codeready-toolchain/concierge/pkg/memory"
	"github.com/codeready-toolchain/concierge/pkg/metrics"
	"github.com/codeready-toolchain/concierge/pkg/queue"
	"github.com/codeready-toolchain/concierge/pkg/reengage"
	"github.com/codeready-toolchain/concierge/pkg/services"
	"github.com/codeready-toolchain/concierge/pkg/session"
	"github.com/codeready-toolchain/concierge/pkg/slack"
	"github.com/codeready-toolchain/concierge/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setupLogging() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// stores groups the persistence backends chosen at startup.
type stores struct {
	knowledge knowledge.Store
	tickets   escalation.TicketStore
	leads     services.LeadStore
	sessions  session.Store
	profiles  reengage.Backend
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	}
	setupLogging()

	httpPort := getEnv("HTTP_PORT", "8080")
	slog.Info("Starting concierge",
		"version", version.Full(),
		"http_port", httpPort,
		"config_dir", *configDir)

	if err := run(*configDir, httpPort); err != nil {
		slog.Error("Concierge exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}

func run(configDir, httpPort string) error {
	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}
	m := metrics.Default()
	dict := language.Builtin()

	// 2. Storage: PostgreSQL and Redis are both optional.
	st := stores{
		tickets:  escalation.NewMemoryTicketStore(),
		leads:    services.NewMemoryLeadStore(),
		sessions: session.NewMemoryStore(),
		profiles: reengage.NewMemoryBackend(),
	}

	var seed *knowledge.Seed
	if cfg.Knowledge.SeedFile != "" {
		seed, err = knowledge.LoadSeedFile(cfg.Knowledge.SeedFile)
		if err != nil {
			return err
		}
		slog.Info("Loaded knowledge seed",
			"path", cfg.Knowledge.SeedFile,
			"entries", len(seed.Entries),
			"learned_responses", len(seed.Learned))
	}

	var dbClient *database.Client
	if database.Enabled() {
		dbConfig, err := database.LoadConfigFromEnv()
		if err != nil {
			return fmt.Errorf("failed to load database config: %w", err)
		}
		if url := os.Getenv("DATABASE_URL"); url != "" {
			dbClient, err = database.NewClientFromDSN(ctx, url, dbConfig)
		} else {
			dbClient, err = database.NewClient(ctx, dbConfig)
		}
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer dbClient.Close()
		slog.Info("Connected to PostgreSQL database")

		kb := knowledge.NewPostgresStore(dbClient.Pool())
		if seed != nil {
			if err := kb.Seed(ctx, seed); err != nil {
				return fmt.Errorf("failed to seed knowledge base: %w", err)
			}
		}
		st.knowledge = kb
		st.tickets = escalation.NewPostgresTicketStore(dbClient.Pool())
		st.leads = services.NewPostgresLeadStore(dbClient.Pool())
	} else {
		slog.Warn("No database configured, knowledge, tickets and leads are kept in memory")
		st.knowledge = knowledge.NewMemoryStore(seed)
	}

	var redisClient redis.UniversalClient
	if url := os.Getenv("REDIS_URL"); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer func() {
			if err := redisClient.Close(); err != nil {
				slog.Error("Error closing Redis client", "error", err)
			}
		}()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		st.sessions = session.NewRedisStore(redisClient, cfg.Storage.SessionTTL)
		st.profiles = reengage.NewRedisBackend(redisClient, cfg.Storage.VisitorTTL)
		slog.Info("Connected to Redis")
	}

	cachedKB := knowledge.NewCachedStore(st.knowledge, cfg.Storage.KnowledgeCacheSize, cfg.Storage.KnowledgeCacheTTL)

	// 3. Background dispatcher (started before anything can submit)
	dispatcher := queue.NewDispatcher(cfg.Queue, m)
	dispatcher.Start(ctx)

	// 4. Notifications
	slackService := slack.NewService(slack.ServiceConfig{
		Token:        os.Getenv(cfg.Slack.TokenEnv),
		Channel:      cfg.Slack.Channel,
		DashboardURL: cfg.Slack.DashboardURL,
	})
	if cfg.Slack.Enabled && slackService == nil {
		slog.Warn("Slack enabled but token or channel missing, notifications disabled",
			"token_env", cfg.Slack.TokenEnv)
	}
	if !cfg.Slack.Enabled {
		slackService = nil
	}
	mailer := mail.New(mail.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: os.Getenv(cfg.SMTP.PasswordEnv),
		From:     cfg.SMTP.From,
	})

	escDeps := escalation.Deps{
		Store:      st.tickets,
		Dict:       dict,
		Masker:     masking.NewService(cfg.Masking),
		Dispatcher: dispatcher,
		Metrics:    m,
	}
	// Interfaces stay nil rather than holding a typed nil pointer.
	if slackService != nil {
		escDeps.Notifier = slackService
	}
	if mailer != nil {
		escDeps.Mailer = mailer
	}
	engine, err := escalation.New(escDeps, cfg.Escalation)
	if err != nil {
		return fmt.Errorf("failed to create escalation engine: %w", err)
	}

	// 5. Generative backend
	generator, closeGenerator, err := newGenerator(cfg.Backend, m)
	if err != nil {
		return err
	}
	defer closeGenerator()

	// 6. Conversation service
	svcDeps := services.Deps{
		Conversations: st.sessions,
		Leads:         st.leads,
		Dict:          dict,
		Matcher:       matcher.New(cachedKB, dict, cfg.Matcher, m),
		Memory:        memory.New(cachedKB, dict, dispatcher, cfg.Memory, m),
		Escalation:    engine,
		Slack:         slackService,
		Dispatcher:    dispatcher,
	}
	if generator != nil {
		svcDeps.Generator = generator
	}
	if mailer != nil {
		svcDeps.Mailer = mailer
	}
	conversations := services.NewConversationService(svcDeps, services.Config{
		GenerateTimeout: cfg.Backend.Timeout,
	})

	cleanupService := cleanup.NewService(cfg.Retention, st.sessions)
	cleanupService.Start(ctx)
	defer cleanupService.Stop()

	// 7. Widget socket and HTTP server
	connManager := events.NewConnectionManager(conversations, events.ManagerConfig{
		Dict:       dict,
		Profiles:   st.profiles,
		Dispatcher: dispatcher,
		Turn:       cfg.Turn,
		Metrics:    m,
	})

	httpServer := api.NewServer(cfg, api.Deps{
		Conversations: conversations,
		DB:            dbClient,
		Redis:         redisClient,
		Dispatcher:    dispatcher,
		ConnManager:   connManager,
		Metrics:       m,
		Gatherer:      prometheus.DefaultGatherer,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + httpPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("Concierge started successfully",
		"backend_transport", cfg.Backend.Transport,
		"database", dbClient != nil,
		"redis", redisClient != nil,
		"workers", cfg.Queue.WorkerCount)

	// 8. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	var serveErr error
	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case serveErr = <-errCh:
		slog.Error("Server error triggered shutdown", "error", serveErr)
	}

	// 9. Graceful shutdown: stop accepting traffic, then drain the dispatcher.
	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	done := make(chan struct{})
	go func() {
		dispatcher.Stop()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Dispatcher stopped gracefully")
	case <-time.After(cfg.Queue.GracefulShutdownTimeout):
		slog.Warn("Dispatcher shutdown timeout exceeded, pending jobs dropped")
	}

	return serveErr
}

// newGenerator builds the generative backend client for the configured
// transport. It returns a nil generator for the "none" transport.
func newGenerator(cfg *config.BackendConfig, m *metrics.Metrics) (llm.Generator, func(), error) {
	noop := func() {}
	switch cfg.Transport {
	case config.BackendTransportHTTP:
		slog.Info("Generative backend configured", "transport", cfg.Transport, "url", cfg.URL)
		return llm.NewHTTPGenerator(llm.HTTPConfig{
			URL:        cfg.URL,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}, m), noop, nil
	case config.BackendTransportGRPC:
		// grpc.NewClient dials lazily; the first Generate call connects.
		g, err := llm.NewGRPCGenerator(cfg.Address, cfg.Timeout, m)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to initialize generative backend at %s: %w", cfg.Address, err)
		}
		slog.Info("Generative backend configured", "transport", cfg.Transport, "addr", cfg.Address)
		return g, func() {
			if err := g.Close(); err != nil {
				slog.Error("Error closing generative backend client", "error", err)
			}
		}, nil
	default:
		slog.Info("No generative backend configured, answering from the knowledge base")
		return nil, noop, nil
	}
}
