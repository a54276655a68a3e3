package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageOmitsAbsentFields(t *testing.T) {
	data, err := json.Marshal(&Message{Type: TypePing})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ping"}`, string(data))
}

func TestIsWebRTCMessage(t *testing.T) {
	assert.True(t, (&Message{Type: TypeOffer}).IsWebRTCMessage())
	assert.True(t, (&Message{Type: TypeAnswer}).IsWebRTCMessage())
	assert.True(t, (&Message{Type: TypeIceCandidate}).IsWebRTCMessage())
	assert.False(t, (&Message{Type: TypeJoinChannel}).IsWebRTCMessage())
	assert.False(t, (&Message{Type: TypePing}).IsWebRTCMessage())
}

func TestErrorMessage(t *testing.T) {
	msg := errorMessage("sess-1", "Target user not found", "User is not in any channel")

	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, "sess-1", msg.SessionID)
	assert.Equal(t, "Target user not found", msg.Error)
	assert.NotZero(t, msg.Timestamp)

	var details string
	require.NoError(t, json.Unmarshal(msg.Payload, &details))
	assert.Equal(t, "User is not in any channel", details)
}
