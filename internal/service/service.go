// Package service is the application facade the transports call into.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tripmind/backend/internal/booking"
	"github.com/tripmind/backend/internal/domain"
	"github.com/tripmind/backend/internal/events"
	"github.com/tripmind/backend/internal/prefs"
	"github.com/tripmind/backend/internal/runner"
	"github.com/tripmind/backend/internal/session"
)

// ErrSessionNotFound is returned for reads against an unknown session.
var ErrSessionNotFound = errors.New("session not found")

// Service coordinates the session store, run controller, events, and
// bookings behind one API.
type Service struct {
	store       *session.Store
	controller  *runner.Controller
	broadcaster *events.Broadcaster
	bookings    *booking.Service
}

// New creates the service facade.
func New(store *session.Store, controller *runner.Controller, broadcaster *events.Broadcaster, bookings *booking.Service) *Service {
	return &Service{
		store:       store,
		controller:  controller,
		broadcaster: broadcaster,
		bookings:    bookings,
	}
}

// PostMessage records a user message and starts a run for it, superseding
// any in-flight run. Returns the message and run ids.
func (s *Service) PostMessage(sessionID, text string) (msgID, runID string) {
	msgID = fmt.Sprintf("msg_%s", uuid.New().String()[:8])

	s.broadcaster.Publish(sessionID, "", domain.EventTypeMessage, domain.MessagePayload{
		Sender: "user",
		Text:   text,
	})

	// The controller appends the turn under its submit lock so a run that
	// is still committing cannot overwrite it.
	runID = s.controller.Submit(sessionID, domain.Turn{
		Sender: "user",
		Text:   text,
		Ts:     time.Now().UnixMilli(),
	})
	return msgID, runID
}

// Subscribe attaches an observer to the session's event feed.
func (s *Service) Subscribe(sessionID string) (<-chan domain.Event, func()) {
	return s.broadcaster.Subscribe(sessionID)
}

// Snapshot returns a copy of the session state.
func (s *Service) Snapshot(sessionID string) (*domain.SessionState, error) {
	st := s.store.Snapshot(sessionID)
	if st == nil {
		return nil, ErrSessionNotFound
	}
	return st, nil
}

// History returns the session's turns and summaries.
func (s *Service) History(sessionID string) ([]domain.Turn, []domain.Summary, error) {
	st := s.store.Snapshot(sessionID)
	if st == nil {
		return nil, nil, ErrSessionNotFound
	}
	return st.History, st.Summaries, nil
}

// Preferences returns the session's learned preferences.
func (s *Service) Preferences(sessionID string) (*domain.Preferences, error) {
	st := s.store.Snapshot(sessionID)
	if st == nil {
		return nil, ErrSessionNotFound
	}
	p := st.Preferences.Clone()
	return &p, nil
}

// UpdatePreferences applies explicitly stated preference items and
// broadcasts the updates.
func (s *Service) UpdatePreferences(sessionID string, items []domain.PreferenceItem) *domain.Preferences {
	updated := s.store.UpdatePreferences(sessionID, func(p *domain.Preferences) {
		prefs.Merge(p, items)
	})
	for _, item := range items {
		s.broadcaster.Publish(sessionID, "", domain.EventTypePreferenceUpdate, domain.PreferenceUpdatePayload{
			Category: item.Category,
			Value:    item.Value,
		})
	}
	return updated
}

// ClearPreferences forgets everything learned about the traveler.
func (s *Service) ClearPreferences(sessionID string) error {
	if !s.store.Exists(sessionID) {
		return ErrSessionNotFound
	}
	s.store.ClearPreferences(sessionID)
	s.broadcaster.Publish(sessionID, "", domain.EventTypePreferencesCleared, nil)
	return nil
}

// Book executes a booking for the session's selection.
func (s *Service) Book(ctx context.Context, sessionID string, req booking.Request) (*domain.Booking, error) {
	return s.bookings.Book(ctx, sessionID, req)
}

// Bookings lists the session's archived bookings.
func (s *Service) Bookings(ctx context.Context, sessionID string) ([]*domain.Booking, error) {
	return s.bookings.List(ctx, sessionID)
}

// ActiveRun reports the session's in-flight run, if any.
func (s *Service) ActiveRun(sessionID string) (domain.Run, bool) {
	return s.controller.ActiveRun(sessionID)
}

// NewSessionID allocates a session id for clients that want the server to
// pick one.
func (s *Service) NewSessionID() string {
	return session.NewSessionID()
}
