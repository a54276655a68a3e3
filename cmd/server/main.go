package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tasawwur/rtc-signaling/api"
	"github.com/tasawwur/rtc-signaling/auth"
	"github.com/tasawwur/rtc-signaling/internal/config"
	"github.com/tasawwur/rtc-signaling/internal/signaling"
	"github.com/tasawwur/rtc-signaling/internal/slogging"
	"github.com/tasawwur/rtc-signaling/internal/store"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configFile := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := slogging.Initialize(slogging.Config{
		Level:            slogging.ParseLogLevel(cfg.Logging.Level),
		IsDev:            cfg.Logging.IsDev,
		LogDir:           cfg.Logging.LogDir,
		MaxAgeDays:       cfg.Logging.MaxAgeDays,
		MaxSizeMB:        cfg.Logging.MaxSizeMB,
		MaxBackups:       cfg.Logging.MaxBackups,
		AlsoLogToConsole: cfg.Logging.AlsoLogToConsole,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	logger := slogging.Get()
	defer func() { _ = logger.Close() }()

	if err := run(cfg); err != nil {
		logger.Error("Server exited with error: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger := slogging.Get()

	db, err := store.NewRedisDB(store.RedisConfig{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() { _ = db.Close() }()

	metrics := signaling.NewMetrics(prometheus.DefaultRegisterer)
	registry := signaling.NewRegistry(db, cfg.Server.InstanceID, cfg.Signaling.StateTTL)
	channels := signaling.NewChannelStore(db, cfg.Signaling.MaxChannelMembers, cfg.Signaling.StateTTL)
	hub := signaling.NewHub(signaling.Config{
		SendBufferSize: cfg.Signaling.SendBufferSize,
		ReadLimitBytes: cfg.Signaling.ReadLimitBytes,
		PongWait:       cfg.Signaling.PongWait,
		WriteWait:      cfg.Signaling.WriteWait,
	}, registry, channels, metrics)

	// Drain lifecycle events off the hub's channel
	go consumeEvents(hub)

	authenticator := auth.NewAuthenticator(cfg.Auth.Enabled, cfg.Auth.JWTSecret)
	server := api.NewServer(cfg, db, hub, metrics, authenticator)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Interface, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Signaling server listening on %s instance=%s", addr, cfg.Server.InstanceID)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("Received signal %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Stop accepting new handshakes, then tear down live connections
	// so every session leaves its channels and the registry cleanly.
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error: %v", err)
	}
	hub.Shutdown()

	logger.Info("Shutdown complete")
	return nil
}

// consumeEvents logs connection lifecycle events. The hub emits onto a
// buffered channel and never blocks on this consumer.
func consumeEvents(hub *signaling.Hub) {
	logger := slogging.Get()
	for ev := range hub.Events() {
		switch ev.Kind {
		case signaling.EventConnected, signaling.EventDisconnected:
			logger.Debug("Lifecycle event kind=%s session=%s user=%s", ev.Kind, ev.SessionID, ev.UserID)
		case signaling.EventChannelJoined, signaling.EventChannelLeft:
			logger.Debug("Lifecycle event kind=%s session=%s user=%s channel=%s", ev.Kind, ev.SessionID, ev.UserID, ev.ChannelName)
		}
	}
}
