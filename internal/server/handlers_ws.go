package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/BreederHQ/realtime/internal/broadcast"
	"github.com/BreederHQ/realtime/internal/metrics"
)

// handleWebSocket upgrades the connection and parks it in the registry until
// the client disconnects. Authentication happens at the gateway, which
// injects the verified identity as headers; this handler only rejects
// requests the gateway should never have let through.
func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()

	if ok, reason := s.limits.Acquire(ip); !ok {
		metrics.WebSocketConnectionsRejected.WithLabelValues(string(reason)).Inc()
		metrics.WebSocketConnectionsTotal.WithLabelValues("rejected").Inc()
		slog.Warn("websocket connection rejected", "ip", ip, "reason", reason)
		return c.String(http.StatusTooManyRequests, "Too many connections")
	}
	released := false
	release := func() {
		if !released {
			released = true
			s.limits.Release(ip)
			metrics.WebSocketUniqueIPs.Set(float64(s.limits.PerIP().UniqueIPs()))
		}
	}
	defer release()

	userID, err := identityParam(c, "X-User-ID", "user_id")
	if err != nil {
		metrics.WebSocketConnectionsTotal.WithLabelValues("error").Inc()
		return c.String(http.StatusBadRequest, "Invalid or missing user id")
	}

	providerID, err := optionalIdentityParam(c, "X-Provider-ID", "provider_id")
	if err != nil {
		metrics.WebSocketConnectionsTotal.WithLabelValues("error").Inc()
		return c.String(http.StatusBadRequest, "Invalid provider id")
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		metrics.WebSocketConnectionsTotal.WithLabelValues("error").Inc()
		slog.Warn("websocket upgrade failed", "ip", ip, "error", err)
		return nil
	}

	client := broadcast.NewClient(conn, userID, providerID, s.clock, s.config.SendBufferSize)
	s.broadcaster.Register(client)
	metrics.WebSocketConnectionsTotal.WithLabelValues("success").Inc()
	metrics.WebSocketUniqueIPs.Set(float64(s.limits.PerIP().UniqueIPs()))

	// Read pump: clients send nothing we act on, but reading drives pong
	// handling and is how we learn about disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.broadcaster.Unregister(client)
	release()

	return nil
}

func newUpgrader(allowedOrigins string) websocket.Upgrader {
	allowed := parseOrigins(allowedOrigins)
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, a := range allowed {
				if strings.EqualFold(origin, a) {
					return true
				}
			}
			return false
		},
	}
}

func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// identityParam reads a required numeric identity from header or query.
func identityParam(c echo.Context, header, query string) (int64, error) {
	raw := c.Request().Header.Get(header)
	if raw == "" {
		raw = c.QueryParam(query)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid identity")
	}
	return id, nil
}

// optionalIdentityParam is identityParam for identities that may be absent;
// absence yields 0.
func optionalIdentityParam(c echo.Context, header, query string) (int64, error) {
	raw := c.Request().Header.Get(header)
	if raw == "" {
		raw = c.QueryParam(query)
	}
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid identity")
	}
	return id, nil
}
