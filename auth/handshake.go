package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tasawwur/rtc-signaling/internal/slogging"
)

const tokenQueryParam = "token"

// Handshake validation errors
var (
	ErrMissingToken     = errors.New("missing authentication token")
	ErrMissingPrincipal = errors.New("missing user ID in token")
	ErrMissingAppID     = errors.New("missing app ID in token")
)

// Identity is the authenticated principal extracted during the
// WebSocket handshake, attached to the connection before admission
type Identity struct {
	UserID      string
	AppID       string
	ChannelName string
}

// Authenticator validates bearer capability tokens during connection
// establishment, before any connection resource is allocated. With
// authentication disabled (development mode) every handshake is
// admitted under a synthetic per-connection principal.
type Authenticator struct {
	enabled   bool
	validator *Validator
}

// NewAuthenticator creates a handshake authenticator
func NewAuthenticator(enabled bool, secret string) *Authenticator {
	return &Authenticator{
		enabled:   enabled,
		validator: NewValidator(secret),
	}
}

// Authenticate extracts and verifies the bearer token from a handshake
// request and returns the identity it carries
func (a *Authenticator) Authenticate(r *http.Request) (Identity, error) {
	logger := slogging.Get()

	if !a.enabled {
		ident := Identity{
			UserID: "dev-user-" + uuid.NewString()[:8],
			AppID:  "dev-app",
		}
		logger.Debug("Authentication disabled, admitting synthetic principal user=%s", ident.UserID)
		return ident, nil
	}

	token := ExtractToken(r)
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	claims, err := a.validator.ValidateToken(token)
	if err != nil {
		return Identity{}, fmt.Errorf("token validation failed: %w", err)
	}

	userID := strings.TrimSpace(claims.Subject)
	if userID == "" {
		return Identity{}, ErrMissingPrincipal
	}
	appID := strings.TrimSpace(claims.AppID)
	if appID == "" {
		return Identity{}, ErrMissingAppID
	}

	logger.Info("WebSocket authentication successful user=%s app=%s channel=%s", userID, appID, claims.ChannelName)

	return Identity{
		UserID:      userID,
		AppID:       appID,
		ChannelName: strings.TrimSpace(claims.ChannelName),
	}, nil
}

// ExtractToken pulls the bearer token from the handshake request,
// trying the token query parameter first and then the Authorization
// header
func ExtractToken(r *http.Request) string {
	if token := r.URL.Query().Get(tokenQueryParam); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
