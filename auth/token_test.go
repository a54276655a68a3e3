package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-secret"

func TestGenerateAndValidateToken(t *testing.T) {
	token, expiresAt, err := GenerateSignalingToken(testSecret, "app-1", "room1", "user-1", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	v := NewValidator(testSecret)
	claims, err := v.ValidateToken(token)
	require.NoError(t, err)

	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "app-1", claims.AppID)
	assert.Equal(t, "room1", claims.ChannelName)
	assert.Equal(t, TokenTypeSignaling, claims.TokenType)
}

func TestValidateExpiredToken(t *testing.T) {
	token, _, err := GenerateSignalingToken(testSecret, "app-1", "room1", "user-1", -time.Hour)
	require.NoError(t, err)

	v := NewValidator(testSecret)
	_, err = v.ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateWrongSecret(t *testing.T) {
	token, _, err := GenerateSignalingToken("other-secret", "app-1", "room1", "user-1", time.Hour)
	require.NoError(t, err)

	v := NewValidator(testSecret)
	_, err = v.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateUnsignedToken(t *testing.T) {
	// alg=none tokens must never validate
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":   "user-1",
		"appId": "app-1",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	v := NewValidator(testSecret)
	_, err = v.ValidateToken(tokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateGarbageToken(t *testing.T) {
	v := NewValidator(testSecret)
	_, err := v.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractTokenFromQuery(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=abc123", nil)
	assert.Equal(t, "abc123", ExtractToken(r))
}

func TestExtractTokenFromHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer xyz789")
	assert.Equal(t, "xyz789", ExtractToken(r))
}

func TestExtractTokenQueryTakesPrecedence(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=from-query", nil)
	r.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-query", ExtractToken(r))
}

func TestExtractTokenAbsent(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	assert.Equal(t, "", ExtractToken(r))

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Equal(t, "", ExtractToken(r))
}

func TestAuthenticateSuccess(t *testing.T) {
	token, _, err := GenerateSignalingToken(testSecret, "app-1", "room1", "user-1", time.Hour)
	require.NoError(t, err)

	a := NewAuthenticator(true, testSecret)
	r := httptest.NewRequest("GET", "/ws?token="+token, nil)

	ident, err := a.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "user-1", ident.UserID)
	assert.Equal(t, "app-1", ident.AppID)
	assert.Equal(t, "room1", ident.ChannelName)
}

func TestAuthenticateMissingToken(t *testing.T) {
	a := NewAuthenticator(true, testSecret)
	r := httptest.NewRequest("GET", "/ws", nil)

	_, err := a.Authenticate(r)
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestAuthenticateMissingPrincipal(t *testing.T) {
	token, _, err := GenerateSignalingToken(testSecret, "app-1", "room1", "", time.Hour)
	require.NoError(t, err)

	a := NewAuthenticator(true, testSecret)
	r := httptest.NewRequest("GET", "/ws?token="+token, nil)

	_, err = a.Authenticate(r)
	assert.ErrorIs(t, err, ErrMissingPrincipal)
}

func TestAuthenticateMissingAppID(t *testing.T) {
	token, _, err := GenerateSignalingToken(testSecret, "", "room1", "user-1", time.Hour)
	require.NoError(t, err)

	a := NewAuthenticator(true, testSecret)
	r := httptest.NewRequest("GET", "/ws?token="+token, nil)

	_, err = a.Authenticate(r)
	assert.ErrorIs(t, err, ErrMissingAppID)
}

func TestAuthenticateDisabled(t *testing.T) {
	a := NewAuthenticator(false, "")
	r := httptest.NewRequest("GET", "/ws", nil)

	ident, err := a.Authenticate(r)
	require.NoError(t, err)
	assert.NotEmpty(t, ident.UserID)
	assert.Equal(t, "dev-app", ident.AppID)

	// Synthetic principals are unique per connection
	ident2, err := a.Authenticate(r)
	require.NoError(t, err)
	assert.NotEqual(t, ident.UserID, ident2.UserID)
}
