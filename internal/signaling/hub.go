package signaling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tasawwur/rtc-signaling/internal/slogging"
)

// cleanupTimeout bounds shared-store access during disconnect cleanup
const cleanupTimeout = 5 * time.Second

// Config holds connection tuning for the hub
type Config struct {
	SendBufferSize int
	ReadLimitBytes int64
	PongWait       time.Duration
	WriteWait      time.Duration
}

func (c Config) withDefaults() Config {
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = 256
	}
	if c.ReadLimitBytes <= 0 {
		c.ReadLimitBytes = 64 * 1024
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	return c
}

// Identity is the authenticated principal attached to a connection by
// the handshake authenticator before admission
type Identity struct {
	UserID      string
	AppID       string
	ChannelName string
}

// Hub supervises connection lifecycles: admission into the registry,
// steady-state message exchange, and teardown with guaranteed
// membership and registry cleanup on every exit path. Lifecycle
// notifications are emitted onto a buffered event channel instead of
// synchronous callbacks so a slow consumer can never block the I/O
// path.
type Hub struct {
	cfg      Config
	registry *Registry
	channels *ChannelStore
	router   *Router
	metrics  *Metrics
	events   chan Event
}

// NewHub creates a hub over the given registry and membership store
func NewHub(cfg Config, registry *Registry, channels *ChannelStore, metrics *Metrics) *Hub {
	h := &Hub{
		cfg:      cfg.withDefaults(),
		registry: registry,
		channels: channels,
		metrics:  metrics,
		events:   make(chan Event, 64),
	}
	h.router = NewRouter(registry, channels, metrics)
	h.router.emit = h.emit
	return h
}

// Router returns the hub's message router
func (h *Hub) Router() *Router {
	return h.router
}

// Registry returns the hub's connection registry
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Channels returns the hub's membership store
func (h *Hub) Channels() *ChannelStore {
	return h.channels
}

// Events returns the lifecycle event channel. The hub drops events when
// the buffer is full rather than blocking.
func (h *Hub) Events() <-chan Event {
	return h.events
}

// Admit registers an authenticated connection, acknowledges it, and
// starts its read and write pumps. If the principal already has a live
// connection on this instance, the older connection is force-closed:
// last writer wins, and the superseded handle is cleaned up through the
// normal disconnect path so no zombie registry entries remain.
func (h *Hub) Admit(ctx context.Context, conn *websocket.Conn, ident Identity) *Client {
	logger := slogging.Get()

	sessionID := uuid.NewString()
	client := newClient(h, conn, sessionID, ident.UserID, ident.AppID, ident.ChannelName)

	prev := h.registry.Register(ctx, sessionID, ident.UserID, client)
	if prev != nil {
		logger.Info("Superseding existing connection for user=%s old_session=%s new_session=%s",
			ident.UserID, prev.SessionID, sessionID)
		prev.closeTransport()
	}

	client.transition(StateEstablishing, StateActive)
	h.metrics.ActiveConnections.Inc()

	client.Send(&Message{
		Type:      TypeConnectionAck,
		SessionID: sessionID,
		Timestamp: nowMillis(),
	})

	go client.writePump()
	go client.readPump()

	logger.Info("WebSocket connection established session=%s user=%s app=%s", sessionID, ident.UserID, ident.AppID)
	h.emit(Event{Kind: EventConnected, SessionID: sessionID, UserID: ident.UserID, Time: time.Now().UTC()})

	return client
}

// Disconnect tears a connection down: leave every joined channel,
// notify each channel's remaining members, then remove the connection
// from the registry. Cleanup is idempotent, only the first caller
// performs it, and always runs to completion; failures against the
// shared store or an already-dead transport are logged, never fatal.
func (h *Hub) Disconnect(c *Client) {
	if !c.transition(StateActive, StateClosing) && !c.transition(StateEstablishing, StateClosing) {
		return
	}

	logger := slogging.Get()
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	channels, err := h.channels.LeaveAll(ctx, c.SessionID, c.UserID)
	if err != nil {
		h.metrics.CleanupFailuresTotal.Inc()
		logger.Error("Failed to enumerate channels during cleanup session=%s: %v", c.SessionID, err)
	}
	for _, channelName := range channels {
		h.router.broadcast(ctx, channelName, &Message{
			Type:        TypeUserLeft,
			ChannelName: channelName,
			SenderID:    c.UserID,
			Timestamp:   nowMillis(),
		}, c.SessionID)
		h.emit(Event{Kind: EventChannelLeft, SessionID: c.SessionID, UserID: c.UserID, ChannelName: channelName, Time: time.Now().UTC()})
	}

	h.registry.Unregister(ctx, c.SessionID)
	c.closeTransport()
	c.state.Store(int32(StateClosed))
	h.metrics.ActiveConnections.Dec()

	logger.Info("WebSocket connection closed session=%s user=%s", c.SessionID, c.UserID)
	h.emit(Event{Kind: EventDisconnected, SessionID: c.SessionID, UserID: c.UserID, Time: time.Now().UTC()})
}

// Shutdown disconnects every local connection. Used during graceful
// server shutdown.
func (h *Hub) Shutdown() {
	for _, client := range h.registry.LocalHandles() {
		h.Disconnect(client)
	}
}

func (h *Hub) emit(ev Event) {
	select {
	case h.events <- ev:
	default:
		slogging.Get().Debug("Event buffer full, dropping event kind=%s session=%s", ev.Kind, ev.SessionID)
	}
}
