// Package domain defines the core domain models for the travel backend.
package domain

import (
	"encoding/json"
	"time"
)

// Turn represents a single turn in the conversation.
type Turn struct {
	Sender string `json:"sender"` // user, assistant, system
	Text   string `json:"text"`
	Ts     int64  `json:"ts"` // Unix milliseconds
	RunID  string `json:"run_id,omitempty"`
}

// Summary is a compacted segment of older conversation history.
type Summary struct {
	Text      string `json:"text"`
	TurnCount int    `json:"turn_count"`
	StartTs   int64  `json:"start_ts"`
	EndTs     int64  `json:"end_ts"`
	CreatedAt int64  `json:"created_at"`
}

// PreferenceItem is a single learned preference with provenance.
type PreferenceItem struct {
	Category   string  `json:"category"` // flight_time, cabin_class, max_stops, ...
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source,omitempty"` // message excerpt that revealed it
	Ts         int64   `json:"ts"`
}

// Preferences is the collection of learned user preferences.
type Preferences struct {
	FlightTime     string   `json:"flight_time,omitempty"` // morning, afternoon, evening
	CabinClass     string   `json:"cabin_class,omitempty"` // economy, business, first
	Airlines       []string `json:"airlines,omitempty"`
	MaxStops       *int     `json:"max_stops,omitempty"`
	MinHotelRating float64  `json:"min_hotel_rating,omitempty"`
	HotelBudget    string   `json:"hotel_budget,omitempty"` // budget, mid, luxury
	Amenities      []string `json:"amenities,omitempty"`
	BudgetRange    string   `json:"budget_range,omitempty"`

	Items       []PreferenceItem `json:"items,omitempty"`
	LastUpdated int64            `json:"last_updated,omitempty"`
}

// FlightQuery holds flight search parameters.
type FlightQuery struct {
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination,omitempty"`
	DepartDate  string `json:"depart_date,omitempty"` // YYYY-MM-DD
	ReturnDate  string `json:"return_date,omitempty"` // YYYY-MM-DD
	Passengers  int    `json:"passengers,omitempty"`
	CabinClass  string `json:"cabin_class,omitempty"`
	MaxStops    *int   `json:"max_stops,omitempty"` // nil means no filter
}

// HotelQuery holds hotel search parameters.
type HotelQuery struct {
	City      string  `json:"city,omitempty"`
	CheckIn   string  `json:"check_in,omitempty"`  // YYYY-MM-DD
	CheckOut  string  `json:"check_out,omitempty"` // YYYY-MM-DD
	Guests    int     `json:"guests,omitempty"`
	Budget    string  `json:"budget,omitempty"` // budget, mid, luxury
	MinRating float64 `json:"min_rating,omitempty"`
}

// FlightOption represents a single flight result.
type FlightOption struct {
	ID            string  `json:"id"`
	Airline       string  `json:"airline"`
	FlightNumber  string  `json:"flight_number"`
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	DepartureTime string  `json:"departure_time"` // RFC 3339
	ArrivalTime   string  `json:"arrival_time"`
	DurationMin   int     `json:"duration_minutes"`
	Stops         int     `json:"stops"`
	Price         float64 `json:"price"`
	Currency      string  `json:"currency"`
	CabinClass    string  `json:"cabin_class"`
	BookingLink   string  `json:"booking_link,omitempty"`
}

// HotelOption represents a single hotel result.
type HotelOption struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	City          string   `json:"city"`
	Address       string   `json:"address,omitempty"`
	StarRating    float64  `json:"star_rating"`
	ReviewScore   float64  `json:"review_score"`
	ReviewCount   int      `json:"review_count"`
	PricePerNight float64  `json:"price_per_night"`
	Currency      string   `json:"currency"`
	TotalPrice    float64  `json:"total_price,omitempty"`
	Amenities     []string `json:"amenities,omitempty"`
	BookingLink   string   `json:"booking_link,omitempty"`
}

// SessionState is the mutable per-session record threaded through a run.
//
// A run mutates a deep clone taken at BeginRun; the store installs the clone
// at commit time only when the run still owns the session (run id match and
// interrupted flag clear).
type SessionState struct {
	SessionID string    `json:"session_id"`
	History   []Turn    `json:"history"`
	Summaries []Summary `json:"summaries,omitempty"`

	Preferences Preferences `json:"preferences"`

	Intent      Intent       `json:"intent"`
	FlightQuery *FlightQuery `json:"flight_query,omitempty"`
	HotelQuery  *HotelQuery  `json:"hotel_query,omitempty"`

	FlightResults []FlightOption `json:"flight_results,omitempty"`
	HotelResults  []HotelOption  `json:"hotel_results,omitempty"`

	// Serialized form of the query each result set was produced for, so a
	// search stage can skip the provider when nothing changed.
	FlightSearchKey string `json:"flight_search_key,omitempty"`
	HotelSearchKey  string `json:"hotel_search_key,omitempty"`

	// Selection/confirmation sub-state. Preserved across supersession so an
	// in-flight choice survives a follow-up message.
	SelectedFlight string `json:"selected_flight,omitempty"`
	SelectedHotel  string `json:"selected_hotel,omitempty"`
	PendingFlight  string `json:"pending_flight,omitempty"`
	PendingHotel   string `json:"pending_hotel,omitempty"`

	Interrupted  bool   `json:"interrupted"`
	CurrentRunID string `json:"current_run_id,omitempty"`
	LastStage    string `json:"last_stage,omitempty"`

	BookingRef   string          `json:"booking_ref,omitempty"`
	BookingGuest json.RawMessage `json:"booking_guest,omitempty"`
}

// Clone returns a deep copy of the state.
func (s *SessionState) Clone() *SessionState {
	c := *s
	c.History = append([]Turn(nil), s.History...)
	c.Summaries = append([]Summary(nil), s.Summaries...)
	c.Preferences = s.Preferences.Clone()
	if s.FlightQuery != nil {
		q := *s.FlightQuery
		if s.FlightQuery.MaxStops != nil {
			n := *s.FlightQuery.MaxStops
			q.MaxStops = &n
		}
		c.FlightQuery = &q
	}
	if s.HotelQuery != nil {
		q := *s.HotelQuery
		c.HotelQuery = &q
	}
	c.FlightResults = cloneFlights(s.FlightResults)
	c.HotelResults = cloneHotels(s.HotelResults)
	c.BookingGuest = append(json.RawMessage(nil), s.BookingGuest...)
	return &c
}

// Clone returns a deep copy of the preferences.
func (p Preferences) Clone() Preferences {
	c := p
	c.Airlines = append([]string(nil), p.Airlines...)
	c.Amenities = append([]string(nil), p.Amenities...)
	c.Items = append([]PreferenceItem(nil), p.Items...)
	if p.MaxStops != nil {
		n := *p.MaxStops
		c.MaxStops = &n
	}
	return c
}

func cloneFlights(in []FlightOption) []FlightOption {
	if in == nil {
		return nil
	}
	out := make([]FlightOption, len(in))
	copy(out, in)
	return out
}

func cloneHotels(in []HotelOption) []HotelOption {
	if in == nil {
		return nil
	}
	out := make([]HotelOption, len(in))
	for i, h := range in {
		h.Amenities = append([]string(nil), h.Amenities...)
		out[i] = h
	}
	return out
}

// LastUserText returns the text of the most recent user turn.
func (s *SessionState) LastUserText() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Sender == "user" {
			return s.History[i].Text
		}
	}
	return ""
}

// RecentHistory returns up to n of the most recent turns.
func (s *SessionState) RecentHistory(n int) []Turn {
	if len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// Run tracks an active pipeline run for supersession handling.
type Run struct {
	RunID     string    `json:"run_id"`
	SessionID string    `json:"session_id"`
	Status    RunStatus `json:"status"`
	Stage     string    `json:"stage,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Booking is an archived booking confirmation.
type Booking struct {
	BookingRef string          `json:"booking_ref"`
	SessionID  string          `json:"session_id"`
	Kind       SelectionType   `json:"kind"`
	ItemID     string          `json:"item_id"`
	Item       json.RawMessage `json:"item,omitempty"`
	Guest      json.RawMessage `json:"guest,omitempty"`
	Total      float64         `json:"total"`
	Status     string          `json:"status"` // confirmed, review
	CreatedAt  time.Time       `json:"created_at"`
}
