package signaling

import "time"

// EventKind identifies a connection lifecycle event
type EventKind string

const (
	// EventConnected is emitted after a connection is admitted into the registry
	EventConnected EventKind = "connected"
	// EventDisconnected is emitted after cleanup completes for a connection
	EventDisconnected EventKind = "disconnected"
	// EventChannelJoined is emitted after a successful channel join
	EventChannelJoined EventKind = "channel_joined"
	// EventChannelLeft is emitted after a channel leave
	EventChannelLeft EventKind = "channel_left"
)

// Event is a lifecycle notification delivered to the application layer
// over the hub's event channel. Consumers drain the channel; the hub
// never blocks on a slow consumer and drops events instead.
type Event struct {
	Kind        EventKind
	SessionID   string
	UserID      string
	ChannelName string
	Time        time.Time
}
