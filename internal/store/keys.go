package store

import (
	"fmt"
	"strings"
)

// KeyBuilder provides methods to build coordination-store keys following
// the defined patterns. Session keys map connections to principals and
// back; channel keys hold membership sets and metadata.
type KeyBuilder struct{}

// NewKeyBuilder creates a new key builder
func NewKeyBuilder() *KeyBuilder {
	return &KeyBuilder{}
}

// SessionUserKey maps a session ID to its user ID
func (b *KeyBuilder) SessionUserKey(sessionID string) string {
	return fmt.Sprintf("session:user:%s", sessionID)
}

// UserSessionKey maps a user ID to its session ID
func (b *KeyBuilder) UserSessionKey(userID string) string {
	return fmt.Sprintf("user:session:%s", userID)
}

// SessionInfoKey holds session metadata (user, connect time, instance,
// last activity) as a hash
func (b *KeyBuilder) SessionInfoKey(sessionID string) string {
	return fmt.Sprintf("session:info:%s", sessionID)
}

// ChannelMembersKey holds the member set of a channel
func (b *KeyBuilder) ChannelMembersKey(channelName string) string {
	return fmt.Sprintf("channel:members:%s", channelName)
}

// UserChannelsKey holds the reverse index of channels a session joined
func (b *KeyBuilder) UserChannelsKey(sessionID string) string {
	return fmt.Sprintf("user:channels:%s", sessionID)
}

// ChannelInfoKey holds channel metadata (last activity, member count)
// as a hash
func (b *KeyBuilder) ChannelInfoKey(channelName string) string {
	return fmt.Sprintf("channel:info:%s", channelName)
}

// ChannelMember encodes a channel-set member as "sessionID:userID"
func (b *KeyBuilder) ChannelMember(sessionID, userID string) string {
	return fmt.Sprintf("%s:%s", sessionID, userID)
}

// ParseChannelMember splits a channel-set member into session ID and
// user ID. Session IDs are UUIDs and never contain a colon; user IDs
// may, so only the first separator is significant.
func (b *KeyBuilder) ParseChannelMember(member string) (sessionID, userID string, err error) {
	parts := strings.SplitN(member, ":", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", fmt.Errorf("invalid channel member format: %s", member)
	}
	return parts[0], parts[1], nil
}
