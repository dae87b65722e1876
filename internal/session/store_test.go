package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripmind/backend/internal/domain"
)

func TestBeginRunReturnsClone(t *testing.T) {
	s := NewStore()
	s.AppendTurn("sess_a", domain.Turn{Sender: "user", Text: "hello"})

	clone := s.BeginRun("sess_a", "run_1")
	require.NotNil(t, clone)
	clone.History = append(clone.History, domain.Turn{Sender: "assistant", Text: "hi"})
	clone.Intent = domain.IntentFlight

	// Live state must be unaffected by clone mutation.
	live := s.Snapshot("sess_a")
	assert.Len(t, live.History, 1)
	assert.Equal(t, domain.IntentOther, domain.ParseIntent(string(live.Intent)))
	assert.Equal(t, "run_1", live.CurrentRunID)
}

func TestCommitInstallsWhenOwned(t *testing.T) {
	s := NewStore()
	clone := s.BeginRun("sess_a", "run_1")
	clone.FlightResults = []domain.FlightOption{{ID: "fl_1", Airline: "Delta"}}

	ok := s.Commit("sess_a", clone, "run_1")
	require.True(t, ok)

	live := s.Snapshot("sess_a")
	require.Len(t, live.FlightResults, 1)
	assert.Equal(t, "Delta", live.FlightResults[0].Airline)
}

func TestCommitDiscardedAfterSupersession(t *testing.T) {
	s := NewStore()
	stale := s.BeginRun("sess_a", "run_1")
	stale.FlightResults = []domain.FlightOption{{ID: "fl_stale"}}

	// A newer submission interrupts and takes ownership.
	interrupted := s.MarkInterrupted("sess_a")
	assert.Equal(t, "run_1", interrupted)
	fresh := s.BeginRun("sess_a", "run_2")

	ok := s.Commit("sess_a", stale, "run_1")
	assert.False(t, ok)

	fresh.FlightResults = []domain.FlightOption{{ID: "fl_fresh"}}
	ok = s.Commit("sess_a", fresh, "run_2")
	require.True(t, ok)

	live := s.Snapshot("sess_a")
	require.Len(t, live.FlightResults, 1)
	assert.Equal(t, "fl_fresh", live.FlightResults[0].ID)
}

func TestCommitDiscardedWhileInterrupted(t *testing.T) {
	s := NewStore()
	clone := s.BeginRun("sess_a", "run_1")
	s.MarkInterrupted("sess_a")

	// Same run id, but the interrupt flag is still set: no commit.
	assert.False(t, s.Commit("sess_a", clone, "run_1"))
}

func TestMarkInterruptedClearsVolatileKeepsSelections(t *testing.T) {
	s := NewStore()
	st := s.GetOrCreate("sess_a")
	st.FlightResults = []domain.FlightOption{{ID: "fl_1"}}
	st.HotelResults = []domain.HotelOption{{ID: "ht_1"}}
	st.FlightQuery = &domain.FlightQuery{Origin: "JFK"}
	st.FlightSearchKey = `{"origin":"JFK"}`
	st.SelectedFlight = "fl_1"
	st.PendingHotel = "ht_1"
	st.CurrentRunID = "run_1"

	s.MarkInterrupted("sess_a")

	live := s.Snapshot("sess_a")
	assert.True(t, live.Interrupted)
	assert.Nil(t, live.FlightResults)
	assert.Nil(t, live.HotelResults)
	assert.Nil(t, live.FlightQuery)
	assert.Empty(t, live.FlightSearchKey)
	assert.Equal(t, "fl_1", live.SelectedFlight)
	assert.Equal(t, "ht_1", live.PendingHotel)
}

func TestBeginRunClearsInterruptedFlag(t *testing.T) {
	s := NewStore()
	s.BeginRun("sess_a", "run_1")
	s.MarkInterrupted("sess_a")
	require.True(t, s.Interrupted("sess_a"))

	s.BeginRun("sess_a", "run_2")
	assert.False(t, s.Interrupted("sess_a"))
	assert.Equal(t, "run_2", s.CurrentRunID("sess_a"))
}

func TestMarkInterruptedNoActiveSession(t *testing.T) {
	s := NewStore()
	assert.Equal(t, "", s.MarkInterrupted("sess_missing"))
	assert.False(t, s.Interrupted("sess_missing"))
}

func TestSnapshotMissingSession(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Snapshot("sess_missing"))
	assert.False(t, s.Exists("sess_missing"))
}

func TestUpdateAndClearPreferences(t *testing.T) {
	s := NewStore()
	p := s.UpdatePreferences("sess_a", func(prefs *domain.Preferences) {
		prefs.CabinClass = "business"
		prefs.Airlines = append(prefs.Airlines, "Delta")
	})
	assert.Equal(t, "business", p.CabinClass)
	assert.NotZero(t, p.LastUpdated)

	s.ClearPreferences("sess_a")
	live := s.Snapshot("sess_a")
	assert.Empty(t, live.Preferences.CabinClass)
	assert.Empty(t, live.Preferences.Airlines)
}
