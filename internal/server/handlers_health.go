package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dalecompra/whatsapp-api-manager/internal/version"
)

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := time.Since(s.startTime).Seconds()
	return c.JSON(200, map[string]any{
		"status": "ok",
		"uptime": uptime,
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	if err := s.checkAuthDir(); err != nil {
		return c.JSON(503, map[string]any{
			"status":       "unhealthy",
			"failed_check": "auth_dir",
			"error":        err.Error(),
		})
	}

	return c.JSON(200, map[string]string{"status": "ready"})
}

// checkAuthDir verifies the credential root exists and is writable, since
// every instance create depends on it.
func (s *Server) checkAuthDir() error {
	dir := s.config.AuthDataDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("auth dir not creatable: %w", err)
	}
	probe := filepath.Join(dir, ".readiness-probe")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return fmt.Errorf("auth dir not writable: %w", err)
	}
	return os.Remove(probe)
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(200, version.Get())
}
