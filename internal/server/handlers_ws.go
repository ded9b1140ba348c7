package server

import (
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/dalecompra/whatsapp-api-manager/internal/domain"
	apperrors "github.com/dalecompra/whatsapp-api-manager/internal/errors"
	"github.com/dalecompra/whatsapp-api-manager/internal/logging"
)

// handleStatusStream upgrades the connection and subscribes it to one
// instance's status updates. The current state is pushed as the first
// frame so clients do not have to poll first.
func (s *Server) handleStatusStream(c echo.Context) error {
	id := c.Param("id")

	inst, err := s.app.Get(id)
	if err != nil {
		return apperrors.NotFoundError("Instance not found").WithField("instance_id", id)
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote its own response.
		return nil
	}

	// Push the current state before registering: after Register the hub's
	// writer owns the connection and nothing else may write to it.
	snapshot := domain.StatusUpdate{InstanceID: inst.ID, Status: inst.Status, QR: inst.QR}
	if payload, err := json.Marshal(snapshot); err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}

	if err := s.hub.Register(id, conn); err != nil {
		_ = conn.Close()
		return nil
	}

	// Read loop purely to detect disconnects; inbound frames are ignored.
	go func() {
		defer s.hub.Unregister(id, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				logging.WithInstance(id).Debug("Status stream client gone", "error", err)
				return
			}
		}
	}()

	return nil
}
