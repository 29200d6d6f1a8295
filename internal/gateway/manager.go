package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Haabeel/lark-sync/internal/auth"
	"github.com/Haabeel/lark-sync/internal/database"
	"github.com/Haabeel/lark-sync/internal/realtime"
	"github.com/google/uuid"
)

const commandTimeout = 10 * time.Second

// Manager owns all active WebSocket connections and builds one realtime
// session per identified connection. A second connection for the same user
// replaces the first.
type Manager struct {
	mu          sync.RWMutex
	connections map[int64]*Connection // userID → connection
	sessions    map[string]*realtime.Session

	tokens   *auth.TokenService
	source   realtime.Source
	channels database.ChannelRepository
	messages database.MessageRepository
}

func NewManager(
	tokens *auth.TokenService,
	source realtime.Source,
	channels database.ChannelRepository,
	messages database.MessageRepository,
) *Manager {
	return &Manager{
		connections: make(map[int64]*Connection),
		sessions:    make(map[string]*realtime.Session),
		tokens:      tokens,
		source:      source,
		channels:    channels,
		messages:    messages,
	}
}

// handleIdentify authenticates the connection and starts its realtime
// session. Snapshots and notifications stream out as STATE and NOTIFICATION
// dispatch events from here on.
func (m *Manager) handleIdentify(c *Connection, data json.RawMessage) {
	var identify IdentifyData
	if err := json.Unmarshal(data, &identify); err != nil {
		slog.Error("invalid identify payload", "error", err)
		c.Close()
		return
	}

	claims, err := m.tokens.ValidateAccessToken(identify.Token)
	if err != nil {
		slog.Warn("identify with invalid token", "error", err)
		c.Close()
		return
	}

	userID := claims.UserID
	c.UserID = userID
	c.SessionID = uuid.NewString()

	store := realtime.NewStateStore()
	store.Subscribe(func(snap realtime.Snapshot) {
		c.SendEvent(EventState, snap)
	})
	session := realtime.NewSession(userID, m.source, m.channels, m.messages, store, func(n realtime.Notification) {
		c.SendEvent(EventNotification, n)
	})

	m.register(c, session)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := session.Start(ctx); err != nil {
		slog.Error("session start failed", "userID", userID, "error", err)
		m.unregister(c)
		c.Close()
		return
	}

	c.SendEvent(EventReady, ReadyData{SessionID: c.SessionID, UserID: userID})
}

// handleCommand routes a client dispatch command to the connection's session.
func (m *Manager) handleCommand(c *Connection, payload GatewayPayload) {
	session := m.sessionFor(c)
	if session == nil || payload.Event == nil {
		return
	}

	switch *payload.Event {
	case CommandSetActiveChannel:
		var cmd SetActiveChannelData
		if err := json.Unmarshal(payload.Data, &cmd); err != nil {
			slog.Error("invalid set-active-channel payload", "userID", c.UserID, "error", err)
			return
		}
		var channelID *int64
		if cmd.ChannelID != nil {
			id, err := parseSnowflake(*cmd.ChannelID)
			if err != nil {
				slog.Error("invalid channel id", "userID", c.UserID, "value", *cmd.ChannelID)
				return
			}
			channelID = &id
		}
		// Activation blocks on the initial fetch; run it off the read loop.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()
			if err := session.SetActiveChannel(ctx, channelID); err != nil {
				slog.Error("channel activation failed", "userID", c.UserID, "error", err)
			}
		}()

	case CommandLoadMore:
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()
			if err := session.LoadMore(ctx); err != nil {
				slog.Error("load more failed", "userID", c.UserID, "error", err)
			}
		}()

	case CommandRefreshMembership:
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()
			if err := session.RefreshMembership(ctx); err != nil {
				slog.Error("membership refresh failed", "userID", c.UserID, "error", err)
			}
		}()
	}
}

// register adds an identified connection, replacing any previous connection
// for the same user.
func (m *Manager) register(c *Connection, session *realtime.Session) {
	m.mu.Lock()
	old, hadOld := m.connections[c.UserID]
	var oldSession *realtime.Session
	if hadOld {
		oldSession = m.sessions[old.SessionID]
		delete(m.sessions, old.SessionID)
	}
	m.connections[c.UserID] = c
	m.sessions[c.SessionID] = session
	m.mu.Unlock()

	if hadOld {
		if oldSession != nil {
			oldSession.Close()
		}
		old.Close()
	}
}

// unregister removes a connection and tears down its session.
func (m *Manager) unregister(c *Connection) {
	m.mu.Lock()
	if existing, ok := m.connections[c.UserID]; ok && existing == c {
		delete(m.connections, c.UserID)
	}
	session := m.sessions[c.SessionID]
	delete(m.sessions, c.SessionID)
	m.mu.Unlock()

	if session != nil {
		session.Close()
	}
}

func (m *Manager) sessionFor(c *Connection) *realtime.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[c.SessionID]
}

// CloseAll tears down every connection, for server shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	for _, c := range conns {
		m.unregister(c)
		c.Close()
	}
}
