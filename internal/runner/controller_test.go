package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripmind/backend/internal/config"
	"github.com/tripmind/backend/internal/domain"
	"github.com/tripmind/backend/internal/events"
	"github.com/tripmind/backend/internal/flow"
	"github.com/tripmind/backend/internal/session"
)

// scriptedExecutor lets tests control how long a run takes and what it does.
type scriptedExecutor struct {
	fn func(ctx context.Context, rc *flow.RunContext) error
}

func (e *scriptedExecutor) Execute(ctx context.Context, rc *flow.RunContext) error {
	return e.fn(ctx, rc)
}

func testConfig() config.RunConfig {
	return config.RunConfig{
		CancelWait:       500 * time.Millisecond,
		RunTimeout:       5 * time.Second,
		HistoryThreshold: 10,
		HistoryKeep:      6,
		MaxSteps:         8,
	}
}

func collect(ch <-chan domain.Event, out *[]domain.Event, done chan struct{}) {
	for ev := range ch {
		*out = append(*out, ev)
	}
	close(done)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSubmitCompletesAndCommits(t *testing.T) {
	store := session.NewStore()
	bc := events.NewBroadcaster()
	exec := &scriptedExecutor{fn: func(ctx context.Context, rc *flow.RunContext) error {
		rc.State.Intent = domain.IntentFlight
		rc.State.FlightResults = []domain.FlightOption{{ID: "fl_1", Price: 199.0}}
		rc.FlightSource = "fallback"
		return nil
	}}
	c := NewController(store, exec, bc, testConfig())

	store.AppendTurn("sess_a", domain.Turn{Sender: "user", Text: "flights please"})
	runID := c.Submit("sess_a")
	assert.Contains(t, runID, "run_")

	waitFor(t, func() bool {
		_, active := c.ActiveRun("sess_a")
		return !active
	})

	st := store.Snapshot("sess_a")
	require.Len(t, st.FlightResults, 1)
	assert.Equal(t, runID, st.CurrentRunID)
}

func TestSupersessionCancelsAndDiscardsStaleCommit(t *testing.T) {
	store := session.NewStore()
	bc := events.NewBroadcaster()

	started := make(chan string, 2)
	calls := 0
	exec := &scriptedExecutor{fn: func(ctx context.Context, rc *flow.RunContext) error {
		calls++
		started <- rc.RunID
		if calls > 1 {
			// The superseding run completes normally.
			rc.State.Intent = domain.IntentHotel
			rc.State.HotelResults = []domain.HotelOption{{ID: "ht_1"}}
			return nil
		}
		// The first run polls like a real pipeline does between stages.
		for {
			if rc.Interrupted() {
				return flow.ErrInterrupted
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(10 * time.Millisecond):
			}
		}
	}}
	c := NewController(store, exec, bc, testConfig())

	var got []domain.Event
	ch, cancel := bc.Subscribe("sess_a")
	done := make(chan struct{})
	go collect(ch, &got, done)

	store.AppendTurn("sess_a", domain.Turn{Sender: "user", Text: "flights to LA"})
	first := c.Submit("sess_a")
	<-started

	store.AppendTurn("sess_a", domain.Turn{Sender: "user", Text: "actually hotels in Paris"})
	second := c.Submit("sess_a")
	assert.NotEqual(t, first, second)

	waitFor(t, func() bool {
		_, active := c.ActiveRun("sess_a")
		return !active
	})
	cancel()
	<-done

	// The superseded run announced its cancellation.
	var sawCancelled bool
	for _, ev := range got {
		if ev.Type == domain.EventTypeStatus && ev.RunID == first {
			sawCancelled = true
		}
	}
	assert.True(t, sawCancelled, "expected a status event for the cancelled run")
	assert.Equal(t, second, store.CurrentRunID("sess_a"))
}

func TestSubmitTurnSurvivesSupersededCommit(t *testing.T) {
	store := session.NewStore()
	bc := events.NewBroadcaster()

	var mu sync.Mutex
	var seenTexts []string
	release := make(chan struct{})
	calls := 0
	exec := &scriptedExecutor{fn: func(ctx context.Context, rc *flow.RunContext) error {
		mu.Lock()
		calls++
		n := calls
		seenTexts = append(seenTexts, rc.State.LastUserText())
		mu.Unlock()
		if n == 1 {
			// Outlives the cancel wait and then finishes normally; the
			// commit guard must discard its state.
			<-release
			rc.State.FlightResults = []domain.FlightOption{{ID: "fl_stale"}}
		}
		return nil
	}}
	cfg := testConfig()
	cfg.CancelWait = 50 * time.Millisecond
	c := NewController(store, exec, bc, cfg)

	first := c.Submit("sess_a", domain.Turn{Sender: "user", Text: "first message"})
	second := c.Submit("sess_a", domain.Turn{Sender: "user", Text: "second message"})
	require.NotEqual(t, first, second)
	close(release)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		_, active := c.ActiveRun("sess_a")
		return calls == 2 && !active
	})

	// Both turns survive and the superseding run classified the new one.
	st := store.Snapshot("sess_a")
	var texts []string
	for _, turn := range st.History {
		texts = append(texts, turn.Text)
	}
	assert.Equal(t, []string{"first message", "second message"}, texts)
	assert.Equal(t, second, st.CurrentRunID)

	mu.Lock()
	assert.Equal(t, []string{"first message", "second message"}, seenTexts)
	mu.Unlock()
}

func TestStaleRunEmitsNothing(t *testing.T) {
	store := session.NewStore()
	bc := events.NewBroadcaster()

	block := make(chan struct{})
	exec := &scriptedExecutor{fn: func(ctx context.Context, rc *flow.RunContext) error {
		<-block
		// Emit after supersession: the guard must swallow this.
		rc.Emit(domain.EventTypeMessage, domain.MessagePayload{Sender: "assistant", Text: "stale"})
		return flow.ErrInterrupted
	}}
	cfg := testConfig()
	cfg.CancelWait = 50 * time.Millisecond
	c := NewController(store, exec, bc, cfg)

	var got []domain.Event
	ch, cancelSub := bc.Subscribe("sess_a")
	done := make(chan struct{})
	go collect(ch, &got, done)

	first := c.Submit("sess_a")
	store.MarkInterrupted("sess_a")
	store.BeginRun("sess_a", "run_newer")
	close(block)

	waitFor(t, func() bool {
		_, active := c.ActiveRun("sess_a")
		return !active
	})
	cancelSub()
	<-done

	for _, ev := range got {
		if ev.RunID == first && ev.Type == domain.EventTypeMessage {
			t.Fatalf("stale run leaked event %v", ev.Type)
		}
	}
}

func TestRunErrorPublishesErrorEvent(t *testing.T) {
	store := session.NewStore()
	bc := events.NewBroadcaster()
	exec := &scriptedExecutor{fn: func(ctx context.Context, rc *flow.RunContext) error {
		return errors.New("boom")
	}}
	c := NewController(store, exec, bc, testConfig())

	var got []domain.Event
	ch, cancel := bc.Subscribe("sess_a")
	done := make(chan struct{})
	go collect(ch, &got, done)

	c.Submit("sess_a")
	waitFor(t, func() bool {
		_, active := c.ActiveRun("sess_a")
		return !active
	})
	cancel()
	<-done

	var sawError, sawErrorStatus bool
	for _, ev := range got {
		if ev.Type == domain.EventTypeError {
			sawError = true
		}
		if ev.Type == domain.EventTypeStatus {
			sawErrorStatus = true
		}
	}
	assert.True(t, sawError)
	assert.True(t, sawErrorStatus)

	// A failed run never commits.
	assert.Nil(t, store.Snapshot("sess_a").FlightResults)
}

func TestPanicRecovered(t *testing.T) {
	store := session.NewStore()
	bc := events.NewBroadcaster()
	exec := &scriptedExecutor{fn: func(ctx context.Context, rc *flow.RunContext) error {
		panic("unexpected")
	}}
	c := NewController(store, exec, bc, testConfig())

	var got []domain.Event
	ch, cancel := bc.Subscribe("sess_a")
	done := make(chan struct{})
	go collect(ch, &got, done)

	c.Submit("sess_a")
	waitFor(t, func() bool {
		_, active := c.ActiveRun("sess_a")
		return !active
	})
	cancel()
	<-done

	var sawError bool
	for _, ev := range got {
		if ev.Type == domain.EventTypeError {
			sawError = true
		}
	}
	assert.True(t, sawError, "panic should surface as an error event")
}

func TestResultVisibilityFlightOnly(t *testing.T) {
	store := session.NewStore()
	bc := events.NewBroadcaster()
	exec := &scriptedExecutor{fn: func(ctx context.Context, rc *flow.RunContext) error {
		rc.State.Intent = domain.IntentFlight
		rc.State.FlightResults = []domain.FlightOption{{ID: "fl_1"}}
		rc.FlightSource = "fallback"
		return nil
	}}
	c := NewController(store, exec, bc, testConfig())

	var got []domain.Event
	ch, cancel := bc.Subscribe("sess_a")
	done := make(chan struct{})
	go collect(ch, &got, done)

	c.Submit("sess_a")
	waitFor(t, func() bool {
		_, active := c.ActiveRun("sess_a")
		return !active
	})
	cancel()
	<-done

	var flightEvents, hotelEvents int
	for _, ev := range got {
		switch ev.Type {
		case domain.EventTypeFlightResults:
			flightEvents++
		case domain.EventTypeHotelResults:
			// Flight-only intent still clears the hotel panel.
			hotelEvents++
			assert.Contains(t, string(ev.Payload), `"results":[]`)
		}
	}
	assert.Equal(t, 1, flightEvents)
	assert.Equal(t, 1, hotelEvents)
}

func TestResultVisibilityRefinePublishesNone(t *testing.T) {
	store := session.NewStore()
	bc := events.NewBroadcaster()
	exec := &scriptedExecutor{fn: func(ctx context.Context, rc *flow.RunContext) error {
		rc.State.Intent = domain.IntentRefine
		rc.State.FlightResults = []domain.FlightOption{{ID: "fl_1"}}
		return nil
	}}
	c := NewController(store, exec, bc, testConfig())

	var got []domain.Event
	ch, cancel := bc.Subscribe("sess_a")
	done := make(chan struct{})
	go collect(ch, &got, done)

	c.Submit("sess_a")
	waitFor(t, func() bool {
		_, active := c.ActiveRun("sess_a")
		return !active
	})
	cancel()
	<-done

	for _, ev := range got {
		assert.NotEqual(t, domain.EventTypeFlightResults, ev.Type)
		assert.NotEqual(t, domain.EventTypeHotelResults, ev.Type)
	}
}
