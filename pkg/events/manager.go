package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/concierge/pkg/language"
	"github.com/codeready-toolchain/concierge/pkg/metrics"
	"github.com/codeready-toolchain/concierge/pkg/models"
	"github.com/codeready-toolchain/concierge/pkg/reengage"
	"github.com/codeready-toolchain/concierge/pkg/turn"
)

// ConversationStarter creates the conversation behind a widget connection
// and binds the backend its turn runner calls. Implemented by
// services.ConversationService.
type ConversationStarter interface {
	CreateConversation(ctx context.Context, sessionID, visitorID, lang string) (*models.Conversation, error)
	WidgetBackend(conversationID string) turn.Backend
}

// ManagerConfig configures a ConnectionManager.
type ManagerConfig struct {
	Dict language.ContentDictionary
	// Profiles persists visitor re-engagement values. May be nil, in which
	// case every connection starts with an empty session-local profile.
	Profiles reengage.Backend
	// Dispatcher runs profile writes. May be nil.
	Dispatcher    reengage.Dispatcher
	Turn          turn.Config
	WriteTimeout  time.Duration
	EffectTimeout time.Duration
	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// ConnectParams identify the widget behind a connection.
type ConnectParams struct {
	SessionID string
	VisitorID string
	Language  string
}

// ConnectionManager manages widget WebSocket connections. Each Go process
// has one ConnectionManager instance.
type ConnectionManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	starter ConversationStarter
	cfg     ManagerConfig
	log     *slog.Logger
}

// Connection represents a single widget client and its turn runner.
type Connection struct {
	ID             string
	ConversationID string
	Conn           *websocket.Conn
	runner         *turn.Runner
	sched          *turn.TimeScheduler
	ctx            context.Context
	cancel         context.CancelFunc
}

// NewConnectionManager creates a new ConnectionManager.
func NewConnectionManager(starter ConversationStarter, cfg ManagerConfig) *ConnectionManager {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.Dict == nil {
		cfg.Dict = language.Builtin()
	}
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		starter:     starter,
		cfg:         cfg,
		log:         slog.With("component", "widget-ws"),
	}
}

// HandleConnection manages the lifecycle of a single widget connection.
// Called by the WebSocket HTTP handler after upgrade. Blocks until the
// connection closes.
func (m *ConnectionManager) HandleConnection(parentCtx context.Context, conn *websocket.Conn, p ConnectParams) {
	connID := uuid.New().String()
	ctx, cancel := context.WithCancel(parentCtx)

	c := &Connection{ID: connID, Conn: conn, ctx: ctx, cancel: cancel}
	defer m.closeConnection(c)

	var opts []reengage.Option
	if m.cfg.Dispatcher != nil {
		opts = append(opts, reengage.WithDispatcher(m.cfg.Dispatcher))
	}
	profile := reengage.Open(ctx, m.cfg.Profiles, p.VisitorID, opts...)
	defer m.flushProfile(ctx, connID, profile)
	binding := language.NewBinding(p.Language, profile)

	conv, err := m.starter.CreateConversation(ctx, p.SessionID, p.VisitorID, string(binding.Current()))
	if err != nil {
		m.log.Warn("Failed to create widget conversation",
			"connection_id", connID, "session_id", p.SessionID, "error", err)
		m.sendJSON(c, ServerMessage{Type: MessageTypeError, Message: m.cfg.Dict.Text(binding.Current(), "error.backend")})
		return
	}
	c.ConversationID = conv.ID

	c.runner = turn.NewRunner(m.starter.WidgetBackend(conv.ID), turn.RunnerOptions{
		Publish: func(s turn.Snapshot) {
			m.sendJSON(c, ServerMessage{Type: MessageTypeSnapshot, Snapshot: &s})
		},
		Navigate: func(url string) {
			m.sendJSON(c, ServerMessage{Type: MessageTypeNavigate, URL: url})
		},
		EffectTimeout: m.cfg.EffectTimeout,
		Metrics:       m.cfg.Metrics,
	})
	c.sched = turn.NewTimeScheduler(func(tok turn.Token) {
		c.runner.Post(turn.TimerFired{Token: tok})
	})
	machine := turn.NewMachine(p.SessionID, turn.Deps{
		Store:     profile,
		Scheduler: c.sched,
		Dict:      m.cfg.Dict,
		Binding:   binding,
	}, m.cfg.Turn)

	m.registerConnection(c)
	defer m.unregisterConnection(c)
	m.cfg.Metrics.WidgetSessionStarted()
	defer m.cfg.Metrics.WidgetSessionEnded()

	m.sendJSON(c, ServerMessage{
		Type:           MessageTypeEstablished,
		ConnectionID:   connID,
		ConversationID: conv.ID,
	})

	c.runner.Start(ctx, machine)
	c.runner.Post(turn.Open{})

	// Read loop: process client messages until the connection closes.
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			m.log.Warn("Invalid WebSocket message", "connection_id", connID, "error", err)
			continue
		}
		m.handleClientMessage(c, &msg)
	}
}

// ActiveConnections returns the count of active widget connections.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

func (m *ConnectionManager) handleClientMessage(c *Connection, msg *ClientMessage) {
	if msg.Action == ActionPing {
		m.sendJSON(c, ServerMessage{Type: MessageTypePong})
		return
	}
	ev, err := msg.Event()
	if err != nil {
		m.sendJSON(c, ServerMessage{Type: MessageTypeError, Message: err.Error()})
		return
	}
	c.runner.Post(ev)
}

func (m *ConnectionManager) registerConnection(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[c.ID] = c
}

// unregisterConnection stops the runner and its timers and forgets c.
func (m *ConnectionManager) unregisterConnection(c *Connection) {
	c.cancel()
	c.sched.Stop()
	c.runner.Stop()

	m.mu.Lock()
	delete(m.connections, c.ID)
	m.mu.Unlock()
}

// flushProfile writes the visitor values still pending when the session ends.
func (m *ConnectionManager) flushProfile(ctx context.Context, connID string, profile *reengage.Profile) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.WriteTimeout)
	defer cancel()
	if err := profile.Flush(ctx); err != nil {
		m.log.Warn("Failed to persist visitor profile", "connection_id", connID, "error", err)
	}
}

func (m *ConnectionManager) closeConnection(c *Connection) {
	c.cancel()
	_ = c.Conn.Close(websocket.StatusNormalClosure, "")
}

// sendJSON marshals and sends a JSON message to a single connection.
func (m *ConnectionManager) sendJSON(c *Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.log.Warn("Failed to marshal WebSocket message", "connection_id", c.ID, "error", err)
		return
	}
	if err := m.sendRaw(c, data); err != nil {
		m.log.Debug("Failed to send WebSocket message", "connection_id", c.ID, "error", err)
	}
}

// sendRaw sends raw bytes to a single connection with a write timeout.
func (m *ConnectionManager) sendRaw(c *Connection, data []byte) error {
	writeCtx, cancel := context.WithTimeout(c.ctx, m.cfg.WriteTimeout)
	defer cancel()
	return c.Conn.Write(writeCtx, websocket.MessageText, data)
}
