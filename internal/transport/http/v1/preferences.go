package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tripmind/backend/internal/domain"
	"github.com/tripmind/backend/internal/service"
)

type updatePreferencesRequest struct {
	Items []domain.PreferenceItem `json:"items"`
}

// GetPreferences returns the session's learned preferences.
// GET /v1/sessions/:session_id/preferences
func (h *Handler) GetPreferences(c echo.Context) error {
	sessionID := c.Param("session_id")

	p, err := h.service.Preferences(sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, p)
}

// UpdatePreferences applies explicitly stated preference items.
// POST /v1/sessions/:session_id/preferences
func (h *Handler) UpdatePreferences(c echo.Context) error {
	sessionID := c.Param("session_id")

	var req updatePreferencesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if len(req.Items) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "items are required"})
	}
	for _, item := range req.Items {
		if item.Category == "" || item.Value == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "each item needs a category and a value"})
		}
	}

	updated := h.service.UpdatePreferences(sessionID, req.Items)
	return c.JSON(http.StatusOK, updated)
}

// ClearPreferences forgets everything learned about the traveler.
// DELETE /v1/sessions/:session_id/preferences
func (h *Handler) ClearPreferences(c echo.Context) error {
	sessionID := c.Param("session_id")

	if err := h.service.ClearPreferences(sessionID); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}
