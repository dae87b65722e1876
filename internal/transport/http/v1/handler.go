// Package v1 provides the HTTP API for the travel backend.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tripmind/backend/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/sessions", h.CreateSession)
	e.POST("/v1/sessions/:session_id/messages", h.PostMessage)
	e.GET("/v1/sessions/:session_id/stream", h.StreamEvents)
	e.GET("/v1/sessions/:session_id/state", h.GetState)
	e.GET("/v1/sessions/:session_id/history", h.GetHistory)

	e.GET("/v1/sessions/:session_id/preferences", h.GetPreferences)
	e.POST("/v1/sessions/:session_id/preferences", h.UpdatePreferences)
	e.DELETE("/v1/sessions/:session_id/preferences", h.ClearPreferences)

	e.POST("/v1/sessions/:session_id/book", h.Book)
	e.GET("/v1/sessions/:session_id/bookings", h.ListBookings)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// CreateSession allocates a fresh session id.
// POST /v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	return c.JSON(http.StatusCreated, map[string]string{
		"session_id": h.service.NewSessionID(),
	})
}
