package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/BreederHQ/realtime/internal/version"
)

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := s.clock.Since(s.startTime).Seconds()
	return c.JSON(200, map[string]any{
		"status":  "ok",
		"uptime":  uptime,
		"version": version.Get(),
	})
}

// handleReadiness pings the broker when the bus is enabled. A disabled bus
// is a deliberate operating mode, so without Redis the instance is ready as
// soon as it listens.
func (s *Server) handleReadiness(c echo.Context) error {
	if s.redisClient == nil {
		return c.JSON(200, map[string]string{"status": "ready", "bus": "disabled"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		return c.JSON(503, map[string]any{
			"status":       "unhealthy",
			"failed_check": "redis",
			"error":        err.Error(),
		})
	}

	return c.JSON(200, map[string]string{"status": "ready", "bus": "enabled"})
}
