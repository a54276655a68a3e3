package signaling

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/tasawwur/rtc-signaling/internal/slogging"
)

// dispatchTimeout bounds shared-store access while handling one envelope
const dispatchTimeout = 5 * time.Second

// Router parses inbound envelopes and dispatches them by kind: channel
// join/leave, point-to-point forwarding of negotiation messages, and
// keep-alive. It holds no state of its own; everything it needs is read
// from the registry and the membership store per call. Handler-local
// errors become error envelopes back to the sender and never unwind
// into the transport loop.
type Router struct {
	registry *Registry
	channels *ChannelStore
	metrics  *Metrics
	emit     func(Event)
}

// NewRouter creates a stateless message router
func NewRouter(registry *Registry, channels *ChannelStore, metrics *Metrics) *Router {
	return &Router{
		registry: registry,
		channels: channels,
		metrics:  metrics,
	}
}

// Dispatch handles one raw inbound envelope from a connection. The
// sender and session identifiers are stamped from the authenticated
// connection, overriding anything the client supplied.
func (r *Router) Dispatch(c *Client, raw []byte) {
	logger := slogging.Get()
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.Warn("Invalid envelope from session=%s: %v", c.SessionID, err)
		c.Send(errorMessage(c.SessionID, "Invalid message format", err.Error()))
		return
	}

	// Never trust client-supplied identity
	msg.SessionID = c.SessionID
	msg.SenderID = c.UserID

	r.metrics.MessagesTotal.WithLabelValues(string(msg.Type)).Inc()
	r.registry.TouchActivity(ctx, c.SessionID)

	logger.Debug("Received envelope type=%s channel=%s from=%s", msg.Type, msg.ChannelName, c.UserID)

	switch msg.Type {
	case TypeJoinChannel:
		r.handleJoinChannel(ctx, c, &msg)
	case TypeLeaveChannel:
		r.handleLeaveChannel(ctx, c, &msg)
	case TypeOffer, TypeAnswer, TypeIceCandidate:
		r.routeToTarget(ctx, c, &msg)
	case TypePing:
		c.Send(&Message{
			Type:      TypePong,
			SessionID: c.SessionID,
			Timestamp: nowMillis(),
		})
	default:
		logger.Warn("Unknown message type %q from session=%s", msg.Type, c.SessionID)
		c.Send(errorMessage(c.SessionID, "Unknown message type", string(msg.Type)))
	}
}

func (r *Router) handleJoinChannel(ctx context.Context, c *Client, msg *Message) {
	channelName := strings.TrimSpace(msg.ChannelName)
	if channelName == "" {
		c.Send(errorMessage(c.SessionID, "Invalid channel name", "Channel name is required"))
		return
	}

	if err := r.channels.Join(ctx, channelName, c.SessionID, c.UserID); err != nil {
		r.metrics.ChannelJoinRejected.Inc()
		c.Send(errorMessage(c.SessionID, "Failed to join channel", "Channel may be full or restricted"))
		return
	}
	r.metrics.ChannelJoinsTotal.Inc()

	c.Send(&Message{
		Type:        TypeJoinChannelSuccess,
		SessionID:   c.SessionID,
		ChannelName: channelName,
		Timestamp:   nowMillis(),
	})

	r.broadcast(ctx, channelName, &Message{
		Type:        TypeUserJoined,
		ChannelName: channelName,
		SenderID:    c.UserID,
		Timestamp:   nowMillis(),
	}, c.SessionID)

	if r.emit != nil {
		r.emit(Event{Kind: EventChannelJoined, SessionID: c.SessionID, UserID: c.UserID, ChannelName: channelName, Time: time.Now().UTC()})
	}
}

func (r *Router) handleLeaveChannel(ctx context.Context, c *Client, msg *Message) {
	channelName := strings.TrimSpace(msg.ChannelName)
	if channelName == "" {
		c.Send(errorMessage(c.SessionID, "Invalid channel name", "Channel name is required"))
		return
	}

	if err := r.channels.Leave(ctx, channelName, c.SessionID, c.UserID); err != nil {
		c.Send(errorMessage(c.SessionID, "Failed to leave channel", err.Error()))
		return
	}

	c.Send(&Message{
		Type:        TypeLeaveChannelSuccess,
		SessionID:   c.SessionID,
		ChannelName: channelName,
		Timestamp:   nowMillis(),
	})

	r.broadcast(ctx, channelName, &Message{
		Type:        TypeUserLeft,
		ChannelName: channelName,
		SenderID:    c.UserID,
		Timestamp:   nowMillis(),
	}, c.SessionID)

	if r.emit != nil {
		r.emit(Event{Kind: EventChannelLeft, SessionID: c.SessionID, UserID: c.UserID, ChannelName: channelName, Time: time.Now().UTC()})
	}
}

// routeToTarget forwards an offer/answer/ICE envelope to the target
// principal's live connection. The payload is forwarded byte for byte;
// only the timestamp is refreshed. Distinguishes a principal that never
// joined (not found) from one whose connection is gone (not available).
func (r *Router) routeToTarget(ctx context.Context, c *Client, msg *Message) {
	logger := slogging.Get()

	targetUserID := strings.TrimSpace(msg.TargetUserID)
	if targetUserID == "" {
		c.Send(errorMessage(c.SessionID, "Invalid target user", "Target user ID is required"))
		return
	}
	channelName := strings.TrimSpace(msg.ChannelName)
	if channelName == "" {
		c.Send(errorMessage(c.SessionID, "Invalid channel name", "Channel name is required"))
		return
	}

	targetSessionID, ok := r.registry.SessionByUser(ctx, targetUserID)
	if !ok {
		c.Send(errorMessage(c.SessionID, "Target user not found", "User is not in any channel"))
		return
	}

	target, ok := r.registry.Handle(targetSessionID)
	if !ok || target.State() != StateActive {
		c.Send(errorMessage(c.SessionID, "Target user not available", "User is not connected"))
		return
	}

	target.Send(&Message{
		Type:         msg.Type,
		ChannelName:  channelName,
		SenderID:     c.UserID,
		TargetUserID: targetUserID,
		Payload:      msg.Payload,
		Timestamp:    nowMillis(),
	})
	r.metrics.ForwardsTotal.WithLabelValues(string(msg.Type)).Inc()

	logger.Debug("Routed %s from %s to %s in channel %s", msg.Type, c.UserID, targetUserID, channelName)
}

// broadcast delivers an envelope to every member of a channel except
// the originating session. Dead or remote members are skipped silently;
// membership cleanup only happens through the disconnect path.
func (r *Router) broadcast(ctx context.Context, channelName string, msg *Message, excludeSessionID string) {
	logger := slogging.Get()

	members, err := r.channels.Members(ctx, channelName)
	if err != nil {
		logger.Error("Failed to enumerate channel members channel=%s: %v", channelName, err)
		return
	}
	r.metrics.BroadcastsTotal.Inc()

	for _, sessionID := range members {
		if sessionID == excludeSessionID {
			continue
		}
		member, ok := r.registry.Handle(sessionID)
		if !ok || member.State() != StateActive {
			continue
		}
		member.Send(msg)
	}
}
