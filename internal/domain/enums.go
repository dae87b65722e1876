package domain

// Intent represents the classified intent of a user message.
type Intent string

const (
	IntentFlight   Intent = "flight"
	IntentHotel    Intent = "hotel"
	IntentCombined Intent = "combined"
	IntentRefine   Intent = "refine"
	IntentOther    Intent = "other"
)

// ParseIntent maps a raw string to a known intent, defaulting to other.
func ParseIntent(s string) Intent {
	switch Intent(s) {
	case IntentFlight, IntentHotel, IntentCombined, IntentRefine:
		return Intent(s)
	}
	return IntentOther
}

// RunStatus represents the status of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusDone      RunStatus = "DONE"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsTerminal reports whether the status is a terminal one.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusDone, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// EventType represents the type of a broadcast event.
type EventType string

const (
	EventTypeStatus             EventType = "status"
	EventTypeToken              EventType = "token"
	EventTypeMessage            EventType = "message"
	EventTypeFlightResults      EventType = "flight_results"
	EventTypeHotelResults       EventType = "hotel_results"
	EventTypePreferenceUpdate   EventType = "preference_update"
	EventTypePreferencesCleared EventType = "preferences_cleared"
	EventTypeBookingConfirmed   EventType = "booking_confirmed"
	EventTypeError              EventType = "error"
)

// Status values carried by status events.
const (
	StatusProcessing = "processing"
	StatusCancelled  = "cancelled"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Stage names of the workflow graph.
const (
	StageClassify      = "classify"
	StageSearchFlights = "search_flights"
	StageSearchHotels  = "search_hotels"
	StageRespond       = "respond"
)

// SelectionAction distinguishes picking an option from confirming a booking.
type SelectionAction string

const (
	SelectionActionSelect SelectionAction = "select"
	SelectionActionBook   SelectionAction = "book"
)

// SelectionType identifies which domain a selection targets.
type SelectionType string

const (
	SelectionTypeFlight SelectionType = "flight"
	SelectionTypeHotel  SelectionType = "hotel"
)
