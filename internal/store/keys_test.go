package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyBuilder(t *testing.T) {
	b := NewKeyBuilder()

	assert.Equal(t, "session:user:abc", b.SessionUserKey("abc"))
	assert.Equal(t, "user:session:u1", b.UserSessionKey("u1"))
	assert.Equal(t, "session:info:abc", b.SessionInfoKey("abc"))
	assert.Equal(t, "channel:members:room1", b.ChannelMembersKey("room1"))
	assert.Equal(t, "user:channels:abc", b.UserChannelsKey("abc"))
	assert.Equal(t, "channel:info:room1", b.ChannelInfoKey("room1"))
}

func TestChannelMemberRoundTrip(t *testing.T) {
	b := NewKeyBuilder()

	member := b.ChannelMember("sess-1", "user-1")
	assert.Equal(t, "sess-1:user-1", member)

	sessionID, userID, err := b.ParseChannelMember(member)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", sessionID)
	assert.Equal(t, "user-1", userID)
}

func TestParseChannelMemberUserIDWithColon(t *testing.T) {
	b := NewKeyBuilder()

	// User IDs are externally supplied and may contain the separator;
	// only the first one is significant.
	sessionID, userID, err := b.ParseChannelMember("sess-1:org:alice")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", sessionID)
	assert.Equal(t, "org:alice", userID)
}

func TestParseChannelMemberInvalid(t *testing.T) {
	b := NewKeyBuilder()

	_, _, err := b.ParseChannelMember("no-separator")
	assert.Error(t, err)

	_, _, err = b.ParseChannelMember(":missing-session")
	assert.Error(t, err)
}
