// Package booking turns a confirmed selection into an archived booking:
// policy check, reference, itinerary, notification, archive.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tripmind/backend/internal/domain"
	"github.com/tripmind/backend/internal/events"
	"github.com/tripmind/backend/internal/policy"
	"github.com/tripmind/backend/internal/repository"
	"github.com/tripmind/backend/internal/session"
)

// Booking failure modes surfaced to the transport layer.
var (
	ErrNoSelection  = errors.New("no selected option to book")
	ErrItemNotFound = errors.New("selected option is no longer in the results")
	ErrBlocked      = errors.New("booking blocked by policy")
)

// Guest identifies the traveler on the booking.
type Guest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Request is a booking request for one option.
type Request struct {
	Kind   domain.SelectionType `json:"kind"`
	ItemID string               `json:"item_id,omitempty"` // defaults to the session's selection
	Guest  Guest                `json:"guest"`
}

// Service executes bookings.
type Service struct {
	store       *session.Store
	archive     *repository.SQLiteStore
	policy      *policy.Engine
	broadcaster *events.Broadcaster
	notifier    Notifier
}

// NewService creates a booking service.
func NewService(store *session.Store, archive *repository.SQLiteStore, engine *policy.Engine, broadcaster *events.Broadcaster, notifier Notifier) *Service {
	return &Service{
		store:       store,
		archive:     archive,
		policy:      engine,
		broadcaster: broadcaster,
		notifier:    notifier,
	}
}

// Book creates a booking for the session's selected (or explicitly named)
// option, subject to the booking policy.
func (s *Service) Book(ctx context.Context, sessionID string, req Request) (*domain.Booking, error) {
	st := s.store.Snapshot(sessionID)
	if st == nil {
		return nil, ErrNoSelection
	}

	var (
		flight *domain.FlightOption
		hotel  *domain.HotelOption
		itemID string
		total  float64
	)

	switch req.Kind {
	case domain.SelectionTypeFlight:
		itemID = req.ItemID
		if itemID == "" {
			itemID = st.SelectedFlight
		}
		if itemID == "" {
			itemID = st.PendingFlight
		}
		if itemID == "" {
			return nil, ErrNoSelection
		}
		for i := range st.FlightResults {
			if st.FlightResults[i].ID == itemID {
				flight = &st.FlightResults[i]
				break
			}
		}
		if flight == nil {
			return nil, ErrItemNotFound
		}
		total = flight.Price
	case domain.SelectionTypeHotel:
		itemID = req.ItemID
		if itemID == "" {
			itemID = st.SelectedHotel
		}
		if itemID == "" {
			itemID = st.PendingHotel
		}
		if itemID == "" {
			return nil, ErrNoSelection
		}
		for i := range st.HotelResults {
			if st.HotelResults[i].ID == itemID {
				hotel = &st.HotelResults[i]
				break
			}
		}
		if hotel == nil {
			return nil, ErrItemNotFound
		}
		total = hotel.TotalPrice
		if total == 0 {
			total = hotel.PricePerNight
		}
	default:
		return nil, fmt.Errorf("unknown booking kind %q", req.Kind)
	}

	decision, err := s.policy.Evaluate(ctx, map[string]interface{}{
		"kind":  string(req.Kind),
		"total": total,
		"guest": map[string]interface{}{"name": req.Guest.Name, "email": req.Guest.Email},
	})
	if err != nil {
		return nil, fmt.Errorf("policy evaluation failed: %w", err)
	}

	status := "confirmed"
	switch decision {
	case policy.DecisionBlock:
		return nil, ErrBlocked
	case policy.DecisionRequireReview:
		status = "review"
	}

	ref := newBookingRef()
	itemJSON := marshalItem(flight, hotel)
	guestJSON, _ := json.Marshal(req.Guest)

	b := &domain.Booking{
		BookingRef: ref,
		SessionID:  sessionID,
		Kind:       req.Kind,
		ItemID:     itemID,
		Item:       itemJSON,
		Guest:      guestJSON,
		Total:      total,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.archive.SaveBooking(ctx, b); err != nil {
		return nil, err
	}

	s.store.RecordBooking(sessionID, req.Kind, ref)

	if body, err := renderItinerary(ref, status, req.Guest.Name, flight, hotel); err == nil {
		if req.Guest.Email != "" {
			if err := s.notifier.Send(ctx, req.Guest.Email, fmt.Sprintf("Your booking %s", ref), body); err != nil {
				log.Printf("WARN: notification for %s failed: %v", ref, err)
			}
		}
	} else {
		log.Printf("WARN: itinerary render for %s failed: %v", ref, err)
	}

	s.broadcaster.Publish(sessionID, "", domain.EventTypeBookingConfirmed, domain.BookingConfirmedPayload{
		BookingRef: ref,
		Kind:       req.Kind,
		Status:     status,
	})

	return b, nil
}

// List returns the session's archived bookings.
func (s *Service) List(ctx context.Context, sessionID string) ([]*domain.Booking, error) {
	return s.archive.ListBookings(ctx, sessionID)
}

func newBookingRef() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "TRV-" + raw[:6]
}

func marshalItem(flight *domain.FlightOption, hotel *domain.HotelOption) json.RawMessage {
	if flight != nil {
		data, _ := json.Marshal(flight)
		return data
	}
	if hotel != nil {
		data, _ := json.Marshal(hotel)
		return data
	}
	return nil
}
