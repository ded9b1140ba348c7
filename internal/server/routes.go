package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// Instance lifecycle
	s.echo.GET("/instances", s.handleListInstances)
	s.echo.POST("/instances", s.handleCreateInstance)
	s.echo.GET("/instances/:id/status", s.handleInstanceStatus)
	s.echo.POST("/instances/:id/send-message", s.handleSendMessage)
	s.echo.DELETE("/instances/:id", s.handleDestroyInstance)

	// Live status stream
	s.echo.GET("/ws/instances/:id", s.handleStatusStream)
}
