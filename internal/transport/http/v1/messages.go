package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tripmind/backend/internal/service"
)

type postMessageRequest struct {
	Text string `json:"text"`
}

// PostMessage accepts a user message and starts a run for it. Any run
// already in flight for the session is superseded first.
// POST /v1/sessions/:session_id/messages
func (h *Handler) PostMessage(c echo.Context) error {
	sessionID := c.Param("session_id")

	var req postMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "text is required"})
	}

	msgID, runID := h.service.PostMessage(sessionID, req.Text)

	return c.JSON(http.StatusAccepted, map[string]string{
		"message_id": msgID,
		"run_id":     runID,
	})
}

// GetState returns the session's current state.
// GET /v1/sessions/:session_id/state
func (h *Handler) GetState(c echo.Context) error {
	sessionID := c.Param("session_id")

	st, err := h.service.Snapshot(sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	resp := map[string]interface{}{
		"session_id":      st.SessionID,
		"intent":          st.Intent,
		"flight_query":    st.FlightQuery,
		"hotel_query":     st.HotelQuery,
		"flight_results":  st.FlightResults,
		"hotel_results":   st.HotelResults,
		"selected_flight": st.SelectedFlight,
		"selected_hotel":  st.SelectedHotel,
		"pending_flight":  st.PendingFlight,
		"pending_hotel":   st.PendingHotel,
		"booking_ref":     st.BookingRef,
		"last_stage":      st.LastStage,
	}
	if run, ok := h.service.ActiveRun(sessionID); ok {
		resp["active_run"] = run
	}
	return c.JSON(http.StatusOK, resp)
}

// GetHistory returns the session's conversation turns and summaries.
// GET /v1/sessions/:session_id/history
func (h *Handler) GetHistory(c echo.Context) error {
	sessionID := c.Param("session_id")

	turns, summaries, err := h.service.History(sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"history":   turns,
		"summaries": summaries,
	})
}
