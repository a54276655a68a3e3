package signaling

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/tasawwur/rtc-signaling/internal/slogging"
	"github.com/tasawwur/rtc-signaling/internal/store"
)

// ErrChannelFull is returned by Join when the channel is at capacity
var ErrChannelFull = errors.New("channel is full")

// ChannelStore maintains, per named channel, the set of connections
// currently joined. All state lives in the shared store so any router
// instance sees the same membership. Channels are created implicitly by
// the first join and deleted when the last member leaves; every mutated
// record carries a rolling TTL, which is the only garbage-collection
// mechanism for channels abandoned without explicit leaves.
//
// The capacity check reads the member count before the insert. Two
// near-simultaneous joins can both observe room available and exceed
// the capacity by a small margin; this is an accepted soft limit, kept
// in exchange for a lock-free join path.
type ChannelStore struct {
	db       *store.RedisDB
	keys     *store.KeyBuilder
	capacity int64
	ttl      time.Duration
}

// NewChannelStore creates a channel membership store
func NewChannelStore(db *store.RedisDB, capacity int, ttl time.Duration) *ChannelStore {
	return &ChannelStore{
		db:       db,
		keys:     store.NewKeyBuilder(),
		capacity: int64(capacity),
		ttl:      ttl,
	}
}

// Join adds a connection to a channel, creating the channel if it does
// not exist. Returns ErrChannelFull when the channel is at capacity.
func (s *ChannelStore) Join(ctx context.Context, channelName, sessionID, userID string) error {
	logger := slogging.Get()
	membersKey := s.keys.ChannelMembersKey(channelName)

	count, err := s.db.SCard(ctx, membersKey)
	if err != nil {
		return err
	}
	if count >= s.capacity {
		logger.Warn("Channel %s is full (members: %d)", channelName, count)
		return ErrChannelFull
	}

	if err := s.db.SAdd(ctx, membersKey, s.keys.ChannelMember(sessionID, userID)); err != nil {
		return err
	}
	if err := s.db.Expire(ctx, membersKey, s.ttl); err != nil {
		logger.Debug("Failed to refresh channel TTL channel=%s: %v", channelName, err)
	}

	channelsKey := s.keys.UserChannelsKey(sessionID)
	if err := s.db.SAdd(ctx, channelsKey, channelName); err != nil {
		return err
	}
	if err := s.db.Expire(ctx, channelsKey, s.ttl); err != nil {
		logger.Debug("Failed to refresh user channels TTL session=%s: %v", sessionID, err)
	}

	s.refreshInfo(ctx, channelName, count+1)

	logger.Info("User %s joined channel %s (session: %s)", userID, channelName, sessionID)
	return nil
}

// Leave removes a connection from a channel. The channel record is
// deleted when the last member leaves. Removing a member that never
// joined is a no-op.
func (s *ChannelStore) Leave(ctx context.Context, channelName, sessionID, userID string) error {
	logger := slogging.Get()
	membersKey := s.keys.ChannelMembersKey(channelName)

	if err := s.db.SRem(ctx, membersKey, s.keys.ChannelMember(sessionID, userID)); err != nil {
		return err
	}
	if err := s.db.SRem(ctx, s.keys.UserChannelsKey(sessionID), channelName); err != nil {
		logger.Debug("Failed to update reverse index session=%s channel=%s: %v", sessionID, channelName, err)
	}

	count, err := s.db.SCard(ctx, membersKey)
	if err != nil {
		return err
	}
	if count > 0 {
		s.refreshInfo(ctx, channelName, count)
	} else {
		// Last member left, delete the channel record
		if err := s.db.Del(ctx, membersKey, s.keys.ChannelInfoKey(channelName)); err != nil {
			logger.Error("Failed to delete empty channel %s: %v", channelName, err)
		}
	}

	logger.Info("User %s left channel %s (session: %s)", userID, channelName, sessionID)
	return nil
}

// LeaveAll removes a connection from every channel it joined, using the
// reverse index, and returns the channel names left so the caller can
// notify their remaining members. Called by the lifecycle supervisor on
// disconnect; individual failures are logged and skipped so cleanup
// always runs to completion.
func (s *ChannelStore) LeaveAll(ctx context.Context, sessionID, userID string) ([]string, error) {
	logger := slogging.Get()
	channelsKey := s.keys.UserChannelsKey(sessionID)

	channels, err := s.db.SMembers(ctx, channelsKey)
	if err != nil {
		return nil, err
	}

	for _, channelName := range channels {
		if err := s.Leave(ctx, channelName, sessionID, userID); err != nil {
			logger.Error("Failed to leave channel %s during cleanup session=%s: %v", channelName, sessionID, err)
		}
	}

	if err := s.db.Del(ctx, channelsKey); err != nil {
		logger.Debug("Failed to delete reverse index session=%s: %v", sessionID, err)
	}

	return channels, nil
}

// Members returns the session IDs currently joined to a channel
func (s *ChannelStore) Members(ctx context.Context, channelName string) ([]string, error) {
	members, err := s.db.SMembers(ctx, s.keys.ChannelMembersKey(channelName))
	if err != nil {
		return nil, err
	}

	sessions := make([]string, 0, len(members))
	for _, member := range members {
		sessionID, _, err := s.keys.ParseChannelMember(member)
		if err != nil {
			slogging.Get().Warn("Skipping malformed channel member channel=%s member=%q", channelName, member)
			continue
		}
		sessions = append(sessions, sessionID)
	}
	return sessions, nil
}

// MemberCount returns the number of connections joined to a channel
func (s *ChannelStore) MemberCount(ctx context.Context, channelName string) (int64, error) {
	return s.db.SCard(ctx, s.keys.ChannelMembersKey(channelName))
}

// IsMember reports whether a connection is joined to a channel
func (s *ChannelStore) IsMember(ctx context.Context, channelName, sessionID, userID string) (bool, error) {
	return s.db.SIsMember(ctx, s.keys.ChannelMembersKey(channelName), s.keys.ChannelMember(sessionID, userID))
}

// Channels returns the channels a connection has joined
func (s *ChannelStore) Channels(ctx context.Context, sessionID string) ([]string, error) {
	return s.db.SMembers(ctx, s.keys.UserChannelsKey(sessionID))
}

// refreshInfo updates the channel metadata hash and its TTL
func (s *ChannelStore) refreshInfo(ctx context.Context, channelName string, memberCount int64) {
	logger := slogging.Get()
	infoKey := s.keys.ChannelInfoKey(channelName)

	if err := s.db.HSet(ctx, infoKey,
		"last_activity", strconv.FormatInt(nowMillis(), 10),
		"member_count", strconv.FormatInt(memberCount, 10),
	); err != nil {
		logger.Debug("Failed to update channel info channel=%s: %v", channelName, err)
		return
	}
	if err := s.db.Expire(ctx, infoKey, s.ttl); err != nil {
		logger.Debug("Failed to refresh channel info TTL channel=%s: %v", channelName, err)
	}
}
