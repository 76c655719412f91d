package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// handleStats serves the connection stats snapshot. Non-authoritative and
// cheap: computed from the live registry, never cached.
func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.broadcaster.ConnectionStats())
}
