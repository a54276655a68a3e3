package signaling

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// activeClient registers a connection without a real socket and marks it
// active so replies can be read straight off its send buffer.
func activeClient(t *testing.T, hub *Hub, sessionID, userID string) *Client {
	t.Helper()
	c := newClient(hub, nil, sessionID, userID, "app-1", "")
	hub.Registry().Register(context.Background(), sessionID, userID, c)
	require.True(t, c.transition(StateEstablishing, StateActive))
	return c
}

// recv pops the next queued outbound envelope. Dispatch is synchronous,
// so anything sent is already buffered.
func recv(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case data := <-c.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return &msg
	default:
		t.Fatal("expected a queued envelope")
		return nil
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected envelope queued: %s", data)
	default:
	}
}

func TestDispatchPing(t *testing.T) {
	hub := newTestHub(t)
	c := activeClient(t, hub, "sess-1", "user-1")

	hub.Router().Dispatch(c, []byte(`{"type":"ping"}`))

	reply := recv(t, c)
	assert.Equal(t, TypePong, reply.Type)
	assert.Equal(t, "sess-1", reply.SessionID)
	assert.NotZero(t, reply.Timestamp)
}

func TestDispatchInvalidJSON(t *testing.T) {
	hub := newTestHub(t)
	c := activeClient(t, hub, "sess-1", "user-1")

	hub.Router().Dispatch(c, []byte(`{not json`))

	reply := recv(t, c)
	assert.Equal(t, TypeError, reply.Type)
	assert.Equal(t, "Invalid message format", reply.Error)
}

func TestDispatchUnknownType(t *testing.T) {
	hub := newTestHub(t)
	c := activeClient(t, hub, "sess-1", "user-1")

	hub.Router().Dispatch(c, []byte(`{"type":"teleport"}`))

	reply := recv(t, c)
	assert.Equal(t, TypeError, reply.Type)
	assert.Equal(t, "Unknown message type", reply.Error)
}

func TestJoinChannel(t *testing.T) {
	hub := newTestHub(t)
	c1 := activeClient(t, hub, "sess-1", "user-1")
	c2 := activeClient(t, hub, "sess-2", "user-2")

	hub.Router().Dispatch(c1, []byte(`{"type":"join_channel","channel_name":"room1"}`))
	reply := recv(t, c1)
	assert.Equal(t, TypeJoinChannelSuccess, reply.Type)
	assert.Equal(t, "room1", reply.ChannelName)
	assert.Equal(t, "sess-1", reply.SessionID)

	hub.Router().Dispatch(c2, []byte(`{"type":"join_channel","channel_name":"room1"}`))
	reply = recv(t, c2)
	assert.Equal(t, TypeJoinChannelSuccess, reply.Type)

	// The first member is notified; the joiner is not
	joined := recv(t, c1)
	assert.Equal(t, TypeUserJoined, joined.Type)
	assert.Equal(t, "user-2", joined.SenderID)
	assert.Equal(t, "room1", joined.ChannelName)
	assertNoMessage(t, c2)

	count, err := hub.Channels().MemberCount(context.Background(), "room1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestJoinChannelEmptyName(t *testing.T) {
	hub := newTestHub(t)
	c := activeClient(t, hub, "sess-1", "user-1")

	hub.Router().Dispatch(c, []byte(`{"type":"join_channel","channel_name":"   "}`))

	reply := recv(t, c)
	assert.Equal(t, TypeError, reply.Type)
	assert.Equal(t, "Invalid channel name", reply.Error)
}

func TestJoinChannelFullReply(t *testing.T) {
	db := newTestDB(t)
	registry := NewRegistry(db, "test-instance", time.Hour)
	channels := NewChannelStore(db, 1, time.Hour)
	hub := NewHub(Config{}, registry, channels, newTestMetrics())

	c1 := activeClient(t, hub, "sess-1", "user-1")
	c2 := activeClient(t, hub, "sess-2", "user-2")

	hub.Router().Dispatch(c1, []byte(`{"type":"join_channel","channel_name":"room1"}`))
	assert.Equal(t, TypeJoinChannelSuccess, recv(t, c1).Type)

	hub.Router().Dispatch(c2, []byte(`{"type":"join_channel","channel_name":"room1"}`))
	reply := recv(t, c2)
	assert.Equal(t, TypeError, reply.Type)
	assert.Equal(t, "Failed to join channel", reply.Error)

	// The incumbent saw no join notification
	assertNoMessage(t, c1)
}

func TestLeaveChannel(t *testing.T) {
	hub := newTestHub(t)
	c1 := activeClient(t, hub, "sess-1", "user-1")
	c2 := activeClient(t, hub, "sess-2", "user-2")

	hub.Router().Dispatch(c1, []byte(`{"type":"join_channel","channel_name":"room1"}`))
	hub.Router().Dispatch(c2, []byte(`{"type":"join_channel","channel_name":"room1"}`))
	recv(t, c1) // join success
	recv(t, c1) // user_joined for user-2
	recv(t, c2) // join success

	hub.Router().Dispatch(c2, []byte(`{"type":"leave_channel","channel_name":"room1"}`))
	reply := recv(t, c2)
	assert.Equal(t, TypeLeaveChannelSuccess, reply.Type)
	assert.Equal(t, "room1", reply.ChannelName)

	left := recv(t, c1)
	assert.Equal(t, TypeUserLeft, left.Type)
	assert.Equal(t, "user-2", left.SenderID)
}

func TestForwardOfferToTarget(t *testing.T) {
	hub := newTestHub(t)
	c1 := activeClient(t, hub, "sess-1", "user-1")
	c2 := activeClient(t, hub, "sess-2", "user-2")

	payload := `{"sdp":"v=0\r\no=- 46117 2 IN IP4 127.0.0.1","type":"offer"}`
	raw := `{"type":"offer","channel_name":"room1","target_user_id":"user-2","payload":` + payload + `}`

	hub.Router().Dispatch(c1, []byte(raw))

	forwarded := recv(t, c2)
	assert.Equal(t, TypeOffer, forwarded.Type)
	assert.Equal(t, "user-1", forwarded.SenderID)
	assert.Equal(t, "user-2", forwarded.TargetUserID)
	assert.Equal(t, "room1", forwarded.ChannelName)
	assert.JSONEq(t, payload, string(forwarded.Payload))
	assertNoMessage(t, c1)
}

func TestForwardStampsAuthenticatedSender(t *testing.T) {
	hub := newTestHub(t)
	c1 := activeClient(t, hub, "sess-1", "user-1")
	c2 := activeClient(t, hub, "sess-2", "user-2")

	// Forged sender and session identifiers are discarded
	raw := `{"type":"ice_candidate","channel_name":"room1","target_user_id":"user-2",` +
		`"sender_id":"someone-else","session_id":"forged","payload":{"candidate":"candidate:1"}}`
	hub.Router().Dispatch(c1, []byte(raw))

	forwarded := recv(t, c2)
	assert.Equal(t, TypeIceCandidate, forwarded.Type)
	assert.Equal(t, "user-1", forwarded.SenderID)
	assert.NotEqual(t, "forged", forwarded.SessionID)
}

func TestForwardTargetNotFound(t *testing.T) {
	hub := newTestHub(t)
	c := activeClient(t, hub, "sess-1", "user-1")

	hub.Router().Dispatch(c, []byte(`{"type":"answer","channel_name":"room1","target_user_id":"ghost"}`))

	reply := recv(t, c)
	assert.Equal(t, TypeError, reply.Type)
	assert.Equal(t, "Target user not found", reply.Error)
}

func TestForwardTargetNotAvailable(t *testing.T) {
	hub := newTestHub(t)
	c1 := activeClient(t, hub, "sess-1", "user-1")
	c2 := activeClient(t, hub, "sess-2", "user-2")

	// The target is still registered but its transport is going away
	require.True(t, c2.transition(StateActive, StateClosing))

	hub.Router().Dispatch(c1, []byte(`{"type":"offer","channel_name":"room1","target_user_id":"user-2"}`))

	reply := recv(t, c1)
	assert.Equal(t, TypeError, reply.Type)
	assert.Equal(t, "Target user not available", reply.Error)
}

func TestForwardMissingTarget(t *testing.T) {
	hub := newTestHub(t)
	c := activeClient(t, hub, "sess-1", "user-1")

	hub.Router().Dispatch(c, []byte(`{"type":"offer","channel_name":"room1"}`))
	reply := recv(t, c)
	assert.Equal(t, TypeError, reply.Type)
	assert.Equal(t, "Invalid target user", reply.Error)

	hub.Router().Dispatch(c, []byte(`{"type":"offer","target_user_id":"user-2"}`))
	reply = recv(t, c)
	assert.Equal(t, TypeError, reply.Type)
	assert.Equal(t, "Invalid channel name", reply.Error)
}
