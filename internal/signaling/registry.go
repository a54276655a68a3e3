package signaling

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/tasawwur/rtc-signaling/internal/slogging"
	"github.com/tasawwur/rtc-signaling/internal/store"
)

// Registry maps connection identifiers to transport handles and to the
// authenticated principal using them. Process-local maps serve the hot
// path; every mutation is written through to the shared store so other
// instances can resolve principals connected here. Shared-store
// unavailability degrades lookups to absent, never to an error that
// would tear down a connection.
type Registry struct {
	db         *store.RedisDB
	keys       *store.KeyBuilder
	instanceID string
	ttl        time.Duration

	mu            sync.RWMutex
	handles       map[string]*Client // sessionID -> local transport handle
	sessionToUser map[string]string
	userToSession map[string]string
}

// NewRegistry creates a connection registry backed by the shared store
func NewRegistry(db *store.RedisDB, instanceID string, ttl time.Duration) *Registry {
	return &Registry{
		db:            db,
		keys:          store.NewKeyBuilder(),
		instanceID:    instanceID,
		ttl:           ttl,
		handles:       make(map[string]*Client),
		sessionToUser: make(map[string]string),
		userToSession: make(map[string]string),
	}
}

// Register inserts the session/principal mappings, overwriting any
// previous mapping for the same principal. It returns the handle of a
// previously registered connection for that principal, if one is still
// live on this instance, so the caller can apply the supersede policy
// (force-close the older connection).
func (r *Registry) Register(ctx context.Context, sessionID, userID string, handle *Client) *Client {
	logger := slogging.Get()

	r.mu.Lock()
	var prev *Client
	if prevSession, ok := r.userToSession[userID]; ok && prevSession != sessionID {
		prev = r.handles[prevSession]
	}
	r.handles[sessionID] = handle
	r.sessionToUser[sessionID] = userID
	r.userToSession[userID] = sessionID
	r.mu.Unlock()

	// Write through to the shared store for cross-instance lookup.
	// Store failures are logged, never fatal: the local fast path
	// still works and point-to-point routing degrades to not-found
	// for remote lookups.
	if err := r.db.Set(ctx, r.keys.SessionUserKey(sessionID), userID, r.ttl); err != nil {
		logger.Error("Failed to store session->user mapping session=%s: %v", sessionID, err)
	}
	if err := r.db.Set(ctx, r.keys.UserSessionKey(userID), sessionID, r.ttl); err != nil {
		logger.Error("Failed to store user->session mapping user=%s: %v", userID, err)
	}

	now := strconv.FormatInt(nowMillis(), 10)
	infoKey := r.keys.SessionInfoKey(sessionID)
	if err := r.db.HSet(ctx, infoKey,
		"user_id", userID,
		"connected_at", now,
		"last_activity", now,
		"instance", r.instanceID,
	); err != nil {
		logger.Error("Failed to store session info session=%s: %v", sessionID, err)
	} else if err := r.db.Expire(ctx, infoKey, r.ttl); err != nil {
		logger.Error("Failed to set session info TTL session=%s: %v", sessionID, err)
	}

	logger.Info("Session registered session=%s user=%s", sessionID, userID)
	return prev
}

// Unregister removes the forward and reverse mappings for a session.
// The reverse mapping is only removed while it still points at this
// session, so unregistering a superseded connection never clobbers the
// principal's newer one. No-op if the session is already gone.
func (r *Registry) Unregister(ctx context.Context, sessionID string) {
	logger := slogging.Get()

	r.mu.Lock()
	userID, known := r.sessionToUser[sessionID]
	delete(r.handles, sessionID)
	delete(r.sessionToUser, sessionID)
	ownsReverse := known && r.userToSession[userID] == sessionID
	if ownsReverse {
		delete(r.userToSession, userID)
	}
	r.mu.Unlock()

	if !known {
		return
	}

	if err := r.db.Del(ctx, r.keys.SessionUserKey(sessionID), r.keys.SessionInfoKey(sessionID)); err != nil {
		logger.Error("Failed to delete session keys session=%s: %v", sessionID, err)
	}
	if ownsReverse {
		// Delete only if the shared store still maps the principal
		// to this session; another instance may have admitted a
		// newer connection in the meantime.
		current, err := r.db.Get(ctx, r.keys.UserSessionKey(userID))
		if err == nil && current == sessionID {
			if err := r.db.Del(ctx, r.keys.UserSessionKey(userID)); err != nil {
				logger.Error("Failed to delete user->session mapping user=%s: %v", userID, err)
			}
		}
	}

	logger.Info("Session unregistered session=%s user=%s", sessionID, userID)
}

// Handle returns the local transport handle for a session. Handles are
// process-local; sessions owned by other instances return false.
func (r *Registry) Handle(sessionID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.handles[sessionID]
	return c, ok
}

// UserBySession resolves a session to its principal, consulting the
// local cache first and falling back to the shared store on miss.
func (r *Registry) UserBySession(ctx context.Context, sessionID string) (string, bool) {
	r.mu.RLock()
	userID, ok := r.sessionToUser[sessionID]
	r.mu.RUnlock()
	if ok {
		return userID, true
	}

	userID, err := r.db.Get(ctx, r.keys.SessionUserKey(sessionID))
	if err != nil || userID == "" {
		return "", false
	}
	return userID, true
}

// SessionByUser resolves a principal to its session, consulting the
// local cache first and falling back to the shared store on miss.
func (r *Registry) SessionByUser(ctx context.Context, userID string) (string, bool) {
	r.mu.RLock()
	sessionID, ok := r.userToSession[userID]
	r.mu.RUnlock()
	if ok {
		return sessionID, true
	}

	sessionID, err := r.db.Get(ctx, r.keys.UserSessionKey(userID))
	if err != nil || sessionID == "" {
		return "", false
	}
	return sessionID, true
}

// IsLive reports whether a session has a local handle whose transport
// is still open
func (r *Registry) IsLive(sessionID string) bool {
	c, ok := r.Handle(sessionID)
	return ok && c.State() == StateActive
}

// TouchActivity refreshes the last-activity timestamp for a session in
// the shared store
func (r *Registry) TouchActivity(ctx context.Context, sessionID string) {
	key := r.keys.SessionInfoKey(sessionID)
	if err := r.db.HSet(ctx, key, "last_activity", strconv.FormatInt(nowMillis(), 10)); err != nil {
		slogging.Get().Debug("Failed to update last activity session=%s: %v", sessionID, err)
	}
}

// SessionInfo returns the stored metadata for a session
func (r *Registry) SessionInfo(ctx context.Context, sessionID string) (map[string]string, error) {
	return r.db.HGetAll(ctx, r.keys.SessionInfoKey(sessionID))
}

// ActiveSessionCount returns the number of sessions with a local handle
func (r *Registry) ActiveSessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// LocalHandles returns every transport handle owned by this instance
func (r *Registry) LocalHandles() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handles := make([]*Client, 0, len(r.handles))
	for _, c := range r.handles {
		handles = append(handles, c)
	}
	return handles
}

// ActiveUserIDs returns the principals with a connection on this instance
func (r *Registry) ActiveUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]string, 0, len(r.userToSession))
	for userID := range r.userToSession {
		users = append(users, userID)
	}
	return users
}
