package signaling

import (
	"encoding/json"
	"time"
)

// MessageType identifies the kind of a signaling envelope
type MessageType string

const (
	// Connection management
	TypeConnectionAck MessageType = "connection_ack"
	TypePing          MessageType = "ping"
	TypePong          MessageType = "pong"

	// Channel management
	TypeJoinChannel         MessageType = "join_channel"
	TypeJoinChannelSuccess  MessageType = "join_channel_success"
	TypeLeaveChannel        MessageType = "leave_channel"
	TypeLeaveChannelSuccess MessageType = "leave_channel_success"
	TypeUserJoined          MessageType = "user_joined"
	TypeUserLeft            MessageType = "user_left"

	// WebRTC negotiation
	TypeOffer        MessageType = "offer"
	TypeAnswer       MessageType = "answer"
	TypeIceCandidate MessageType = "ice_candidate"

	// Error handling
	TypeError MessageType = "error"
)

// Message is one signaling envelope exchanged over a connection.
// Sender and session identifiers are always server-stamped from the
// authenticated connection; values supplied by the client are discarded.
// Absent fields are omitted on the wire.
type Message struct {
	Type         MessageType     `json:"type"`
	SessionID    string          `json:"session_id,omitempty"`
	SenderID     string          `json:"sender_id,omitempty"`
	TargetUserID string          `json:"target_user_id,omitempty"`
	ChannelName  string          `json:"channel_name,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Error        string          `json:"error,omitempty"`
	Timestamp    int64           `json:"timestamp,omitempty"`
}

// IsWebRTCMessage reports whether the envelope carries peer negotiation
// data that must be forwarded to a specific target
func (m *Message) IsWebRTCMessage() bool {
	return m.Type == TypeOffer || m.Type == TypeAnswer || m.Type == TypeIceCandidate
}

// nowMillis returns the current server timestamp in milliseconds
func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// errorMessage builds an error envelope with a short error string and
// a human-readable detail in the payload
func errorMessage(sessionID, errText, details string) *Message {
	var payload json.RawMessage
	if details != "" {
		if b, err := json.Marshal(details); err == nil {
			payload = b
		}
	}
	return &Message{
		Type:      TypeError,
		SessionID: sessionID,
		Error:     errText,
		Payload:   payload,
		Timestamp: nowMillis(),
	}
}
