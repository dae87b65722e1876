package domain

import "encoding/json"

// Event is the envelope broadcast to session observers.
type Event struct {
	EventID   string          `json:"event_id"`
	SessionID string          `json:"session_id"`
	RunID     string          `json:"run_id,omitempty"`
	Ts        int64           `json:"ts"` // Unix milliseconds
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// StatusPayload is the payload for status events.
type StatusPayload struct {
	Status string `json:"status"`
	Agent  string `json:"agent,omitempty"`
	Detail string `json:"detail,omitempty"`
	Stage  string `json:"stage,omitempty"`
}

// TokenPayload is the payload for token events.
type TokenPayload struct {
	Text     string `json:"text"`
	FullText string `json:"full_text,omitempty"`
}

// MessagePayload is the payload for message events.
type MessagePayload struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// FlightResultsPayload is the payload for flight_results events.
type FlightResultsPayload struct {
	Results []FlightOption `json:"results"`
	Source  string         `json:"source,omitempty"` // live or fallback
}

// HotelResultsPayload is the payload for hotel_results events.
type HotelResultsPayload struct {
	Results []HotelOption `json:"results"`
	Source  string        `json:"source,omitempty"`
}

// PreferenceUpdatePayload is the payload for preference_update events.
type PreferenceUpdatePayload struct {
	Category string `json:"category"`
	Value    string `json:"value"`
}

// BookingConfirmedPayload is the payload for booking_confirmed events.
type BookingConfirmedPayload struct {
	BookingRef string        `json:"booking_ref"`
	Kind       SelectionType `json:"kind"`
	Status     string        `json:"status"`
}

// ErrorPayload is the payload for error events.
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
