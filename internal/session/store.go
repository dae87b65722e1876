// Package session holds the in-memory session store.
//
// The store is the single source of truth for session state. Runs never
// mutate live state directly: BeginRun hands out a deep clone, and Commit
// installs the mutated clone only if the run still owns the session.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tripmind/backend/internal/domain"
)

// Store is a thread-safe in-memory session store.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*domain.SessionState
}

// NewStore creates a new session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*domain.SessionState),
	}
}

// NewSessionID generates a fresh session id.
func NewSessionID() string {
	return fmt.Sprintf("sess_%s", uuid.New().String()[:8])
}

// GetOrCreate returns the session with the given id, creating it if needed.
func (s *Store) GetOrCreate(sessionID string) *domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		st = &domain.SessionState{SessionID: sessionID}
		s.sessions[sessionID] = st
	}
	return st
}

// Exists reports whether a session with the given id exists.
func (s *Store) Exists(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[sessionID]
	return ok
}

// BeginRun marks the session as owned by runID, clears the interrupted
// flag, and returns a deep clone for the run to mutate.
func (s *Store) BeginRun(sessionID, runID string) *domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		st = &domain.SessionState{SessionID: sessionID}
		s.sessions[sessionID] = st
	}
	st.CurrentRunID = runID
	st.Interrupted = false
	return st.Clone()
}

// MarkInterrupted flags the session's active run for cooperative stop and
// clears volatile result state while preserving the selection sub-state.
// Returns the run id that was interrupted, or "" if none was active.
func (s *Store) MarkInterrupted(sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return ""
	}
	runID := st.CurrentRunID
	st.Interrupted = true

	// Volatile fields only. SelectedFlight/SelectedHotel and the pending
	// confirmations survive so an in-flight choice is not lost when the
	// user sends a follow-up mid-run.
	st.FlightResults = nil
	st.HotelResults = nil
	st.FlightQuery = nil
	st.HotelQuery = nil
	st.FlightSearchKey = ""
	st.HotelSearchKey = ""
	st.LastStage = ""

	return runID
}

// Interrupted reports whether the session's interrupted flag is set.
// Runs poll this between stages for cooperative cancellation.
func (s *Store) Interrupted(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	return st.Interrupted
}

// CurrentRunID returns the run id that currently owns the session.
func (s *Store) CurrentRunID(sessionID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return ""
	}
	return st.CurrentRunID
}

// Commit installs candidate as the session state iff runID still owns the
// session and no interruption was requested. Returns false when the commit
// was discarded because the run was superseded.
func (s *Store) Commit(sessionID string, candidate *domain.SessionState, runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	if st.CurrentRunID != runID || st.Interrupted {
		return false
	}
	candidate.SessionID = sessionID
	candidate.CurrentRunID = runID
	candidate.Interrupted = false
	s.sessions[sessionID] = candidate
	return true
}

// AppendTurn appends a conversation turn to the live session state.
func (s *Store) AppendTurn(sessionID string, turn domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		st = &domain.SessionState{SessionID: sessionID}
		s.sessions[sessionID] = st
	}
	st.History = append(st.History, turn)
}

// UpdatePreferences merges the given preferences into the live state and
// stamps the update time.
func (s *Store) UpdatePreferences(sessionID string, merge func(*domain.Preferences)) *domain.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		st = &domain.SessionState{SessionID: sessionID}
		s.sessions[sessionID] = st
	}
	merge(&st.Preferences)
	st.Preferences.LastUpdated = time.Now().UnixMilli()
	p := st.Preferences.Clone()
	return &p
}

// ClearPreferences resets the session's preferences.
func (s *Store) ClearPreferences(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	st.Preferences = domain.Preferences{}
}

// RecordBooking updates the live state with a confirmed booking.
func (s *Store) RecordBooking(sessionID string, kind domain.SelectionType, bookingRef string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	st.BookingRef = bookingRef
	switch kind {
	case domain.SelectionTypeFlight:
		st.PendingFlight = ""
	case domain.SelectionTypeHotel:
		st.PendingHotel = ""
	}
}

// Snapshot returns a deep copy of the session state, or nil if absent.
func (s *Store) Snapshot(sessionID string) *domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	return st.Clone()
}
