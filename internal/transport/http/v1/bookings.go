package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tripmind/backend/internal/booking"
)

// Book creates a booking for the session's selected option.
// POST /v1/sessions/:session_id/book
func (h *Handler) Book(c echo.Context) error {
	sessionID := c.Param("session_id")

	var req booking.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Kind == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "kind is required"})
	}

	b, err := h.service.Book(c.Request().Context(), sessionID, req)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrBlocked):
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "booking blocked by policy"})
		case errors.Is(err, booking.ErrNoSelection):
			return c.JSON(http.StatusConflict, map[string]string{"error": "no selected option to book"})
		case errors.Is(err, booking.ErrItemNotFound):
			return c.JSON(http.StatusConflict, map[string]string{"error": "selected option is no longer available"})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}

	return c.JSON(http.StatusCreated, b)
}

// ListBookings returns the session's archived bookings.
// GET /v1/sessions/:session_id/bookings
func (h *Handler) ListBookings(c echo.Context) error {
	sessionID := c.Param("session_id")

	bookings, err := h.service.Bookings(c.Request().Context(), sessionID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"bookings": bookings,
	})
}
