package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/BreederHQ/realtime/internal/broadcast"
	"github.com/BreederHQ/realtime/internal/config"
)

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	broadcaster *broadcast.Broadcaster
	limits      *ConnectionLimits
	upgrader    websocket.Upgrader
	clock       clockwork.Clock
	startTime   time.Time

	// redisClient is nil when the bus is disabled; readiness then skips the
	// broker check.
	redisClient *goredis.Client
}

func NewServer(cfg *config.Config, broadcaster *broadcast.Broadcaster, redisClient *goredis.Client, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:        e,
		config:      cfg,
		broadcaster: broadcaster,
		limits:      NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.ConnectionRate, cfg.ConnectionBurst),
		upgrader:    newUpgrader(cfg.AllowedOrigins),
		clock:       clock,
		startTime:   clock.Now(),
		redisClient: redisClient,
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Client-facing WebSocket endpoint
	s.echo.GET("/ws", s.handleWebSocket)

	// Debug API
	s.echo.GET("/api/stats", s.handleStats)

	// Internal notify API, called by business services after state changes.
	// Exposed on an /internal prefix so the edge proxy can fence it off.
	s.echo.POST("/internal/notify/transaction-message", s.handleNotifyTransactionMessage)
	s.echo.POST("/internal/notify/breeder-message", s.handleNotifyBreederMessage)
	s.echo.POST("/internal/notify/unread-count", s.handleNotifyUnreadCount)
	s.echo.POST("/internal/notify/transaction-update", s.handleNotifyTransactionUpdate)
	s.echo.POST("/internal/notify/:kind/:id", s.handleNotifyGeneric)
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
