package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dalecompra/whatsapp-api-manager/internal/domain"
	apperrors "github.com/dalecompra/whatsapp-api-manager/internal/errors"
)

type createInstanceRequest struct {
	InstanceID  string `json:"instanceId"`
	PhoneNumber string `json:"phoneNumber"`
}

type sendMessageRequest struct {
	Number  string `json:"number"`
	Message string `json:"message"`
}

func (s *Server) handleListInstances(c echo.Context) error {
	instances := s.app.List()
	if err := c.JSON(http.StatusOK, map[string]any{
		"status":    "success",
		"instances": instances,
	}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleCreateInstance(c echo.Context) error {
	var req createInstanceRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.InvalidArgumentError("Invalid request body")
	}

	if req.InstanceID == "" || req.PhoneNumber == "" {
		return apperrors.InvalidArgumentError("Instance ID and phone number are required")
	}

	inst, err := s.app.Create(c.Request().Context(), req.InstanceID, req.PhoneNumber)
	if err != nil {
		if errors.Is(err, domain.ErrInstanceExists) {
			return apperrors.AlreadyExistsError("Instance already exists").
				WithField("instance_id", req.InstanceID)
		}
		// Anything else from Create is a failed client bring-up.
		return apperrors.InitError("Failed to initialize automation client", err).
			WithField("instance_id", req.InstanceID)
	}

	slog.Info("Instance created", "instance_id", inst.ID, "phone_number", inst.PhoneNumber)

	if err := c.JSON(http.StatusOK, map[string]any{
		"status":     "success",
		"message":    "Instance created successfully",
		"instanceId": inst.ID,
	}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleInstanceStatus(c echo.Context) error {
	id := c.Param("id")

	inst, err := s.app.Get(id)
	if err != nil {
		return apperrors.NotFoundError("Instance not found").WithField("instance_id", id)
	}

	if err := c.JSON(http.StatusOK, map[string]any{
		"status": "success",
		"data":   inst,
	}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleSendMessage(c echo.Context) error {
	id := c.Param("id")

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.InvalidArgumentError("Invalid request body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.config.SendTimeout)
	defer cancel()

	receipt, err := s.app.Send(ctx, id, req.Number, req.Message)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Message sent successfully",
		"data":    receipt,
	}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleDestroyInstance(c echo.Context) error {
	id := c.Param("id")

	if err := s.app.Destroy(id); err != nil {
		if errors.Is(err, domain.ErrInstanceNotFound) {
			return apperrors.NotFoundError("Instance not found").WithField("instance_id", id)
		}
		return apperrors.InternalError("Failed to delete instance", err).WithField("instance_id", id)
	}

	slog.Info("Instance deleted", "instance_id", id)

	if err := c.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Instance deleted successfully",
	}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
