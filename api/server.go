package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tasawwur/rtc-signaling/auth"
	"github.com/tasawwur/rtc-signaling/internal/config"
	"github.com/tasawwur/rtc-signaling/internal/signaling"
	"github.com/tasawwur/rtc-signaling/internal/slogging"
	"github.com/tasawwur/rtc-signaling/internal/store"
)

// Server wires the HTTP surface: the signaling WebSocket endpoint, the
// unauthenticated health check, metrics, stats, and the optional
// development token endpoint.
type Server struct {
	cfg           *config.Config
	db            *store.RedisDB
	hub           *signaling.Hub
	metrics       *signaling.Metrics
	authenticator *auth.Authenticator
	engine        *gin.Engine
}

// NewServer creates the HTTP server around a hub
func NewServer(cfg *config.Config, db *store.RedisDB, hub *signaling.Hub, metrics *signaling.Metrics, authenticator *auth.Authenticator) *Server {
	s := &Server{
		cfg:           cfg,
		db:            db,
		hub:           hub,
		metrics:       metrics,
		authenticator: authenticator,
	}

	if !cfg.Logging.IsDev {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(slogging.LoggerMiddleware())
	engine.Use(slogging.Recoverer())

	engine.GET("/ws", s.handleSignaling)
	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/stats", s.handleStats)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.Auth.DevTokenEndpoint {
		engine.POST("/token/generate", s.handleGenerateToken)
	}

	s.engine = engine
	return s
}

// Engine returns the underlying gin engine
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// handleHealthz reports process liveness and coordination-store
// reachability. Unauthenticated by design: load balancers probe it.
func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	redisStatus := "ok"
	if err := s.db.Ping(ctx); err != nil {
		// The relay keeps serving local connections when the shared
		// store is unreachable, so report degraded rather than down.
		redisStatus = "unreachable"
	}

	c.JSON(status, gin.H{
		"status": "ok",
		"redis":  redisStatus,
	})
}

// handleStats exposes session and channel counters. With a channel
// query parameter it also reports that channel's member count.
func (s *Server) handleStats(c *gin.Context) {
	resp := gin.H{
		"active_sessions": s.hub.Registry().ActiveSessionCount(),
		"active_users":    len(s.hub.Registry().ActiveUserIDs()),
	}

	if channelName := c.Query("channel"); channelName != "" {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, err := s.hub.Channels().MemberCount(ctx, channelName)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "channel stats unavailable"})
			return
		}
		resp["channel"] = channelName
		resp["member_count"] = count
	}

	c.JSON(http.StatusOK, resp)
}

// tokenRequest is the token-authority contract for minting signaling tokens
type tokenRequest struct {
	AppID             string `json:"appId" binding:"required"`
	AppSecret         string `json:"appSecret" binding:"required"`
	ChannelName       string `json:"channelName" binding:"required"`
	UserID            string `json:"userId" binding:"required"`
	ExpirationSeconds int    `json:"expirationSeconds"`
}

// handleGenerateToken mints a signaling token. Development convenience
// only: production deployments mint tokens in the external token
// authority and keep this endpoint disabled.
func (s *Server) handleGenerateToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	if req.AppSecret != s.cfg.Auth.DevAppSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid app credentials"})
		return
	}

	ttl := time.Duration(s.cfg.Auth.ExpirationSeconds) * time.Second
	if req.ExpirationSeconds > 0 {
		ttl = time.Duration(req.ExpirationSeconds) * time.Second
	}

	token, expiresAt, err := auth.GenerateSignalingToken(s.cfg.Auth.JWTSecret, req.AppID, req.ChannelName, req.UserID, ttl)
	if err != nil {
		slogging.Get().Error("Failed to generate signaling token app=%s user=%s: %v", req.AppID, req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": expiresAt.UnixMilli(),
	})
}
