package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tasawwur/rtc-signaling/auth"
	"github.com/tasawwur/rtc-signaling/internal/signaling"
	"github.com/tasawwur/rtc-signaling/internal/slogging"
)

// upgrader upgrades HTTP connections to WebSocket
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins; browser clients connect from arbitrary app
	// domains and authorization happens via the capability token.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleSignaling authenticates the handshake and admits the connection
// into the hub. Authentication failures reject the request before the
// upgrade, so no connection resource is ever allocated for them.
func (s *Server) handleSignaling(c *gin.Context) {
	logger := slogging.Get()

	ident, err := s.authenticator.Authenticate(c.Request)
	if err != nil {
		reason := "invalid_token"
		if errors.Is(err, auth.ErrMissingToken) {
			reason = "missing_token"
		}
		s.metrics.HandshakeRejections.WithLabelValues(reason).Inc()
		logger.Warn("Rejected WebSocket handshake client_ip=%s: %v", c.ClientIP(), err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade writes its own error response
		logger.Error("Failed to upgrade connection client_ip=%s: %v", c.ClientIP(), err)
		return
	}

	s.hub.Admit(c.Request.Context(), conn, signaling.Identity{
		UserID:      ident.UserID,
		AppID:       ident.AppID,
		ChannelName: ident.ChannelName,
	})
}
