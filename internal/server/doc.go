// Package server implements the HTTP server using Echo framework.
//
// Routes: WebSocket endpoint (/ws), internal notify API for business
// services (/internal/notify/...), stats/debug (/api/stats), health probes
// and Prometheus metrics. Handlers split by concern: handlers_ws.go,
// handlers_api.go, handlers_stats.go, handlers_health.go.
package server
