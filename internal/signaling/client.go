package signaling

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tasawwur/rtc-signaling/internal/slogging"
)

// ConnState is the lifecycle state of a connection
type ConnState int32

const (
	// StateEstablishing covers handshake through admission
	StateEstablishing ConnState = iota
	// StateActive is the steady state during message exchange
	StateActive
	// StateClosing means teardown has started; cleanup is in progress
	StateClosing
	// StateClosed means cleanup completed and the handle is defunct
	StateClosed
)

// String returns the state name
func (s ConnState) String() string {
	switch s {
	case StateEstablishing:
		return "establishing"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client is the live transport handle for one accepted connection. It
// is exclusively owned by the hub for its duration; the router and the
// membership store reference it only by session ID. A Client's inbound
// messages are dispatched sequentially in arrival order; outbound sends
// go through a buffered channel drained by the write pump.
type Client struct {
	SessionID string
	UserID    string
	AppID     string
	// ChannelName is the pre-authorized channel from the capability
	// token, if any. Informational; joins are still explicit.
	ChannelName string

	hub  *Hub
	conn *websocket.Conn

	state atomic.Int32

	sendMu sync.RWMutex
	send   chan []byte
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, sessionID, userID, appID, channelName string) *Client {
	return &Client{
		SessionID:   sessionID,
		UserID:      userID,
		AppID:       appID,
		ChannelName: channelName,
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, hub.cfg.SendBufferSize),
	}
}

// State returns the connection's current lifecycle state
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

// transition moves the connection from one state to another, returning
// false if the connection was no longer in the expected state
func (c *Client) transition(from, to ConnState) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

// Send marshals and enqueues an envelope for delivery. Sends are
// best-effort: a full buffer or a closing connection drops the message
// with a log line, never an error to the caller.
func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slogging.Get().Error("Failed to marshal envelope type=%s session=%s: %v", msg.Type, c.SessionID, err)
		return
	}
	c.sendRaw(data)
}

func (c *Client) sendRaw(data []byte) {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()

	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.metrics.SendFailuresTotal.Inc()
		slogging.Get().Debug("Send buffer full, dropping envelope session=%s", c.SessionID)
	}
}

// closeTransport closes the send channel and the underlying socket.
// Safe to call more than once.
func (c *Client) closeTransport() {
	c.sendMu.Lock()
	alreadyClosed := c.closed
	c.closed = true
	c.sendMu.Unlock()

	if alreadyClosed {
		return
	}
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// readPump reads envelopes off the socket and dispatches them one at a
// time, preserving per-connection ordering. It exits on any transport
// error and triggers disconnect cleanup.
func (c *Client) readPump() {
	defer c.hub.Disconnect(c)

	c.conn.SetReadLimit(c.hub.cfg.ReadLimitBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slogging.Get().Warn("WebSocket read error session=%s user=%s: %v", c.SessionID, c.UserID, err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))

		c.hub.router.Dispatch(c, message)
	}
}

// writePump drains the send channel onto the socket and keeps the
// transport alive with periodic protocol-level pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slogging.Get().Debug("WebSocket write error session=%s: %v", c.SessionID, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
