// Package runner executes workflow runs and enforces supersession: a new
// message for a session interrupts the in-flight run, waits briefly for it
// to stop, and starts a fresh run against the latest state.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tripmind/backend/internal/config"
	"github.com/tripmind/backend/internal/domain"
	"github.com/tripmind/backend/internal/events"
	"github.com/tripmind/backend/internal/flow"
	"github.com/tripmind/backend/internal/session"
)

// Executor runs one workflow submission end to end.
type Executor interface {
	Execute(ctx context.Context, rc *flow.RunContext) error
}

// Controller schedules at most one run per session.
type Controller struct {
	store       *session.Store
	pipeline    Executor
	broadcaster *events.Broadcaster
	cfg         config.RunConfig

	mu     sync.Mutex
	submit map[string]*sync.Mutex // serializes submissions per session
	active map[string]*activeRun  // keyed by session id
}

type activeRun struct {
	runID     string
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
}

// NewController creates a run controller.
func NewController(store *session.Store, pipeline Executor, broadcaster *events.Broadcaster, cfg config.RunConfig) *Controller {
	return &Controller{
		store:       store,
		pipeline:    pipeline,
		broadcaster: broadcaster,
		cfg:         cfg,
		submit:      make(map[string]*sync.Mutex),
		active:      make(map[string]*activeRun),
	}
}

// Submit appends the triggering turns and starts a run for them,
// superseding any in-flight run first. Returns the new run id.
// Turns land on live state under the submit lock, after the supersede
// wait, so the run's clone sees them and no stale commit can erase them.
func (c *Controller) Submit(sessionID string, turns ...domain.Turn) string {
	lock := c.submitLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	c.supersede(sessionID)

	for _, turn := range turns {
		c.store.AppendTurn(sessionID, turn)
	}

	runID := fmt.Sprintf("run_%s", uuid.New().String()[:8])
	clone := c.store.BeginRun(sessionID, runID)

	run := &activeRun{
		runID:     runID,
		cancel:    func() {},
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RunTimeout)
	run.cancel = cancel

	c.mu.Lock()
	c.active[sessionID] = run
	c.mu.Unlock()

	go c.execute(ctx, sessionID, runID, clone, run)
	return runID
}

// supersede interrupts the session's active run and waits up to CancelWait
// for it to stop. The commit-time guard covers the case where the old run
// outlives the wait.
func (c *Controller) supersede(sessionID string) {
	c.mu.Lock()
	prev := c.active[sessionID]
	c.mu.Unlock()
	if prev == nil {
		return
	}

	interrupted := c.store.MarkInterrupted(sessionID)
	prev.cancel()

	select {
	case <-prev.done:
	case <-time.After(c.cfg.CancelWait):
		log.Printf("WARN: run %s did not stop within %s, proceeding on commit guard", prev.runID, c.cfg.CancelWait)
	}

	if interrupted != "" {
		c.broadcaster.Publish(sessionID, interrupted, domain.EventTypeStatus, domain.StatusPayload{
			Status: domain.StatusCancelled,
			Detail: "superseded by a newer message",
		})
	}
}

func (c *Controller) execute(ctx context.Context, sessionID, runID string, clone *domain.SessionState, run *activeRun) {
	defer run.cancel()
	defer close(run.done)
	defer c.deregister(sessionID, run)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: run %s panicked: %v", runID, r)
			c.broadcaster.Publish(sessionID, runID, domain.EventTypeError, domain.ErrorPayload{
				Code:    "internal",
				Message: "an internal error interrupted this request",
			})
			c.broadcaster.Publish(sessionID, runID, domain.EventTypeStatus, domain.StatusPayload{Status: domain.StatusError})
		}
	}()

	rc := &flow.RunContext{
		RunID: runID,
		State: clone,
		Emit: func(typ domain.EventType, payload any) {
			// Stale runs go quiet: only the current owner may publish.
			if c.store.CurrentRunID(sessionID) != runID || c.store.Interrupted(sessionID) {
				return
			}
			c.broadcaster.Publish(sessionID, runID, typ, payload)
		},
		Interrupted: func() bool {
			return c.store.Interrupted(sessionID) || c.store.CurrentRunID(sessionID) != runID
		},
	}

	err := c.pipeline.Execute(ctx, rc)
	switch {
	case err == nil:
	case errors.Is(err, flow.ErrInterrupted), errors.Is(err, context.Canceled):
		// The superseding submission announced the cancellation.
		return
	case errors.Is(err, context.DeadlineExceeded):
		log.Printf("ERROR: run %s timed out", runID)
		c.publishFailure(sessionID, runID, "timeout", "the request took too long and was stopped")
		return
	default:
		log.Printf("ERROR: run %s failed: %v", runID, err)
		c.publishFailure(sessionID, runID, "run_failed", "something went wrong handling this request")
		return
	}

	if !c.store.Commit(sessionID, clone, runID) {
		log.Printf("run %s: commit discarded, session superseded", runID)
		return
	}

	c.publishResults(sessionID, runID, rc)
	c.broadcaster.Publish(sessionID, runID, domain.EventTypeStatus, domain.StatusPayload{Status: domain.StatusCompleted})
}

// publishResults emits the committed run's result sets. A single-domain
// intent also clears the other domain's panel with an empty set; refinement
// and chit-chat publish nothing.
func (c *Controller) publishResults(sessionID, runID string, rc *flow.RunContext) {
	st := rc.State
	flightsPayload := domain.FlightResultsPayload{Results: st.FlightResults, Source: rc.FlightSource}
	hotelsPayload := domain.HotelResultsPayload{Results: st.HotelResults, Source: rc.HotelSource}

	switch st.Intent {
	case domain.IntentFlight:
		c.broadcaster.Publish(sessionID, runID, domain.EventTypeFlightResults, flightsPayload)
		c.broadcaster.Publish(sessionID, runID, domain.EventTypeHotelResults, domain.HotelResultsPayload{Results: []domain.HotelOption{}})
	case domain.IntentHotel:
		c.broadcaster.Publish(sessionID, runID, domain.EventTypeHotelResults, hotelsPayload)
		c.broadcaster.Publish(sessionID, runID, domain.EventTypeFlightResults, domain.FlightResultsPayload{Results: []domain.FlightOption{}})
	case domain.IntentCombined:
		c.broadcaster.Publish(sessionID, runID, domain.EventTypeFlightResults, flightsPayload)
		c.broadcaster.Publish(sessionID, runID, domain.EventTypeHotelResults, hotelsPayload)
	}
}

func (c *Controller) publishFailure(sessionID, runID, code, message string) {
	c.broadcaster.Publish(sessionID, runID, domain.EventTypeError, domain.ErrorPayload{Code: code, Message: message})
	c.broadcaster.Publish(sessionID, runID, domain.EventTypeStatus, domain.StatusPayload{Status: domain.StatusError})
}

// deregister removes the run from the active table if it is still the
// registered run for the session.
func (c *Controller) deregister(sessionID string, run *activeRun) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[sessionID] == run {
		delete(c.active, sessionID)
	}
}

// ActiveRun returns the session's in-flight run, if any.
func (c *Controller) ActiveRun(sessionID string) (domain.Run, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	run, ok := c.active[sessionID]
	if !ok {
		return domain.Run{}, false
	}
	return domain.Run{
		RunID:     run.runID,
		SessionID: sessionID,
		Status:    domain.RunStatusRunning,
		StartedAt: run.startedAt,
	}, true
}

// Shutdown cancels all active runs and waits for them, bounded by ctx.
func (c *Controller) Shutdown(ctx context.Context) {
	c.mu.Lock()
	runs := make([]*activeRun, 0, len(c.active))
	for _, run := range c.active {
		run.cancel()
		runs = append(runs, run)
	}
	c.mu.Unlock()

	for _, run := range runs {
		select {
		case <-run.done:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Controller) submitLock(sessionID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.submit[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		c.submit[sessionID] = lock
	}
	return lock
}
