package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenTypeSignaling marks a capability token scoped to opening a
	// signaling connection
	TokenTypeSignaling = "signaling"

	tokenIssuer   = "rtc-token-service"
	tokenAudience = "rtc-signaling"
)

// Claims is the capability-token payload the signaling core consumes.
// Tokens are minted by the external token authority and only verified
// here; the subject is the principal, appId scopes the token to an
// application, channelName optionally pre-authorizes a channel.
type Claims struct {
	AppID       string `json:"appId"`
	ChannelName string `json:"channelName,omitempty"`
	TokenType   string `json:"tokenType"`
	jwt.RegisteredClaims
}

// ErrInvalidToken is returned when a token fails signature or expiry checks
var ErrInvalidToken = errors.New("invalid token")

// Validator verifies capability tokens against the shared secret
type Validator struct {
	secret []byte
}

// NewValidator creates a token validator
func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// ValidateToken verifies the token's HMAC signature and expiry and
// returns its claims. Only HS256 is accepted.
func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateSignalingToken mints a signed capability token authorizing a
// principal to open a signaling connection. Used by the dev token
// endpoint and by tests; production tokens come from the external token
// authority, which signs with the same shared secret.
func GenerateSignalingToken(secret, appID, channelName, userID string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := &Claims{
		AppID:       appID,
		ChannelName: channelName,
		TokenType:   TokenTypeSignaling,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}
