// Command server is the origin verification broker binary. It loads a YAML
// configuration file, opens a Redis connection, wires the session, trust
// registry, verification, proximity, and notification components, exposes a
// REST + WebSocket API over HTTP, and shuts down gracefully on SIGTERM or
// SIGINT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qrguard/broker/internal/config"
	"github.com/qrguard/broker/internal/kv"
	"github.com/qrguard/broker/internal/proximity"
	"github.com/qrguard/broker/internal/ratelimit"
	"github.com/qrguard/broker/internal/registry"
	"github.com/qrguard/broker/internal/server/api"
	"github.com/qrguard/broker/internal/server/notify"
	"github.com/qrguard/broker/internal/session"
	"github.com/qrguard/broker/internal/verify"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "broker: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("origin verification broker starting",
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("redis_addr", cfg.RedisAddr),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := kv.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("redis store connected")

	reg := registry.New(registry.Config{
		SnapshotPath: cfg.Registry.SnapshotPath,
		UpstreamURL:  cfg.Registry.UpstreamURL,
		CacheTTL:     cfg.Registry.CacheTTL,
		TestSSL:      cfg.TestSSL,
	})

	engine := verify.New(reg)
	sessions := session.New(store, cfg.SessionTTL)
	proximityCoord := proximity.New(sessions)

	hub := notify.New(logger, cfg.Notify.MaxConnsPerChannel, cfg.Notify.BroadcastWait)
	wsHandler := notify.NewHandler(hub, sessions, logger, cfg.Notify.WriteTimeout, cfg.TestRelaxSameIPGuard)

	limiter := ratelimit.New(store, ratelimit.Limits{
		Init:      cfg.RateLimits.Init,
		Verify:    cfg.RateLimits.Verify,
		Proximity: cfg.RateLimits.Proximity,
		Poll:      cfg.RateLimits.Poll,
	})

	srv := api.NewServer(api.Deps{
		Sessions:       sessions,
		Engine:         engine,
		Proximity:      proximityCoord,
		Hub:            hub,
		WSHandler:      wsHandler,
		Limiter:        limiter,
		Logger:         logger,
		SessionTTLSecs: int(cfg.SessionTTL.Seconds()),
	})
	httpHandler := api.NewRouter(srv)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	httpErrCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", slog.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			httpErrCh <- fmt.Errorf("HTTP server: %w", err)
		}
		close(httpErrCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case err := <-httpErrCh:
		if err != nil {
			logger.Error("HTTP server error", slog.Any("error", err))
		}
	}

	logger.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", slog.Any("error", err))
	}

	logger.Info("broker exited cleanly")
}

// newLogger constructs a *slog.Logger that writes JSON-structured log records
// to stderr at the requested minimum level.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
