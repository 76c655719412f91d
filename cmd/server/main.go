package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/BreederHQ/realtime/internal/broadcast"
	"github.com/BreederHQ/realtime/internal/config"
	"github.com/BreederHQ/realtime/internal/logging"
	"github.com/BreederHQ/realtime/internal/redis"
	"github.com/BreederHQ/realtime/internal/server"
	"github.com/BreederHQ/realtime/internal/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	build := version.Get()
	slog.Info("Starting realtime service",
		"version", build.Version, "commit", build.Commit, "env", cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		bus         *redis.Bus
		redisClient *redis.Client
		rawRedis    *goredis.Client
	)
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("Failed to connect to redis", "error", err)
			os.Exit(1)
		}
		bus = redis.NewBus(redisClient)
		rawRedis = redisClient.Underlying()
	} else {
		slog.Info("REDIS_URL not set, bus disabled: running in single-instance mode")
		bus = redis.NewDisabledBus()
	}

	registry := broadcast.NewRegistry()
	broadcaster := broadcast.NewBroadcaster(registry, bus)

	if bus.Enabled() {
		go bus.Subscribe(ctx, broadcaster.HandleBusMessage)
	}

	srv := server.NewServer(cfg, broadcaster, rawRedis, clockwork.NewRealClock())

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}

	broadcaster.Close()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			slog.Error("Redis close failed", "error", err)
		}
	}

	slog.Info("Shutdown complete")
}
