// Package server implements the HTTP server using Echo framework.
//
// Routes: instance CRUD and send-message under /instances, a WebSocket status
// stream under /ws/instances, and observability endpoints (health, metrics,
// version). Handlers split by concern: handlers.go, handlers_health.go,
// handlers_ws.go.
package server
