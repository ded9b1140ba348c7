package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/dalecompra/whatsapp-api-manager/internal/broadcast"
	"github.com/dalecompra/whatsapp-api-manager/internal/config"
	"github.com/dalecompra/whatsapp-api-manager/internal/domain"
	apperrors "github.com/dalecompra/whatsapp-api-manager/internal/errors"
)

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	app       domain.InstanceService
	hub       *broadcast.Hub
	upgrader  websocket.Upgrader
	startTime time.Time
}

func NewServer(cfg *config.Config, app domain.InstanceService, hub *broadcast.Hub) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(apperrors.Middleware(!cfg.Production()))

	srv := &Server{
		echo:   e,
		config: cfg,
		app:    app,
		hub:    hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		startTime: time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
