// Package flow implements the conversational travel workflow as an explicit
// stage graph: classify, search, respond. Stages mutate a run-private state
// clone and check for interruption between steps so a superseded run stops
// at the next stage boundary.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/tripmind/backend/internal/domain"
)

// End is the router sentinel that terminates graph execution.
const End = "END"

// ErrInterrupted is returned when a run observes its interrupt flag.
var ErrInterrupted = errors.New("run interrupted")

// RunContext carries a single run through the graph.
type RunContext struct {
	RunID string
	State *domain.SessionState

	// FlightSource and HotelSource record where this run's results came
	// from (live or fallback) for the result events.
	FlightSource string
	HotelSource  string

	// Emit publishes an event to the session's observers.
	Emit func(typ domain.EventType, payload any)

	// Interrupted reports whether a newer submission superseded this run.
	// Polled between stages and inside streaming loops.
	Interrupted func() bool
}

// Handler executes one stage of the graph.
type Handler func(ctx context.Context, rc *RunContext) error

// Router picks the next stage after a handler completes.
type Router func(rc *RunContext) string

// Graph is a directed workflow of named stages.
type Graph struct {
	entry    string
	handlers map[string]Handler
	routers  map[string]Router
	maxSteps int
}

// NewGraph creates an empty graph with the given entry stage.
func NewGraph(entry string, maxSteps int) *Graph {
	if maxSteps <= 0 {
		maxSteps = 8
	}
	return &Graph{
		entry:    entry,
		handlers: make(map[string]Handler),
		routers:  make(map[string]Router),
		maxSteps: maxSteps,
	}
}

// AddStage registers a stage handler and its router.
func (g *Graph) AddStage(name string, h Handler, r Router) {
	g.handlers[name] = h
	g.routers[name] = r
}

// Run executes the graph until a router returns End, the context is
// cancelled, the run is interrupted, or the step cap is hit.
func (g *Graph) Run(ctx context.Context, rc *RunContext) error {
	current := g.entry
	for step := 0; step < g.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rc.Interrupted != nil && rc.Interrupted() {
			return ErrInterrupted
		}

		h, ok := g.handlers[current]
		if !ok {
			return fmt.Errorf("unknown stage %q", current)
		}

		log.Printf("run %s: stage %s", rc.RunID, current)
		if err := h(ctx, rc); err != nil {
			return fmt.Errorf("stage %s: %w", current, err)
		}
		rc.State.LastStage = current

		r, ok := g.routers[current]
		if !ok {
			return fmt.Errorf("no router for stage %q", current)
		}
		next := r(rc)
		if next == End {
			return nil
		}
		current = next
	}
	return fmt.Errorf("step cap reached at stage %q", current)
}
