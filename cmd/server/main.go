package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dalecompra/whatsapp-api-manager/internal/broadcast"
	"github.com/dalecompra/whatsapp-api-manager/internal/config"
	"github.com/dalecompra/whatsapp-api-manager/internal/instance"
	"github.com/dalecompra/whatsapp-api-manager/internal/logging"
	"github.com/dalecompra/whatsapp-api-manager/internal/server"
	"github.com/dalecompra/whatsapp-api-manager/internal/whatsapp"
)

func runGracefulShutdown(srv *server.Server, registry *instance.Registry, hub *broadcast.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.WithError(err).Error("Server shutdown error")
		}

		if err := registry.Close(); err != nil {
			logging.WithError(err).Error("Registry shutdown error")
		}
		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	if err := os.MkdirAll(cfg.AuthDataDir, 0o755); err != nil {
		slog.Error("Failed to create auth data directory", "dir", cfg.AuthDataDir, "error", err)
		os.Exit(1)
	}

	hub := broadcast.NewHub()

	factory := whatsapp.NewFactory(whatsapp.Config{Headless: cfg.BrowserHeadless})
	registry := instance.NewRegistry(factory, cfg.AuthDataDir, clockwork.NewRealClock(), hub.Publish)

	srv := server.NewServer(cfg, registry, hub)

	done := runGracefulShutdown(srv, registry, hub)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
