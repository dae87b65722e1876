package flow

import (
	"context"

	"github.com/tripmind/backend/internal/adapter/llm"
	"github.com/tripmind/backend/internal/adapter/search"
	"github.com/tripmind/backend/internal/config"
	"github.com/tripmind/backend/internal/domain"
)

// Pipeline owns the travel workflow graph and its dependencies.
type Pipeline struct {
	llm     llm.LLMClient
	flights *search.FlightProvider
	hotels  *search.HotelProvider
	cfg     config.RunConfig

	graph *Graph
}

// NewPipeline wires the workflow graph.
func NewPipeline(client llm.LLMClient, flights *search.FlightProvider, hotels *search.HotelProvider, cfg config.RunConfig) *Pipeline {
	p := &Pipeline{
		llm:     client,
		flights: flights,
		hotels:  hotels,
		cfg:     cfg,
	}

	g := NewGraph(domain.StageClassify, cfg.MaxSteps)
	g.AddStage(domain.StageClassify, p.handleClassify, routeAfterClassify)
	g.AddStage(domain.StageSearchFlights, p.handleSearchFlights, routeAfterFlights)
	g.AddStage(domain.StageSearchHotels, p.handleSearchHotels, func(*RunContext) string { return domain.StageRespond })
	g.AddStage(domain.StageRespond, p.handleRespond, func(*RunContext) string { return End })
	p.graph = g

	return p
}

// Execute runs the full workflow for one submission.
func (p *Pipeline) Execute(ctx context.Context, rc *RunContext) error {
	return p.graph.Run(ctx, rc)
}

func routeAfterClassify(rc *RunContext) string {
	switch rc.State.Intent {
	case domain.IntentFlight, domain.IntentCombined:
		return domain.StageSearchFlights
	case domain.IntentHotel:
		return domain.StageSearchHotels
	case domain.IntentRefine:
		if rc.State.FlightQuery != nil {
			return domain.StageSearchFlights
		}
		if rc.State.HotelQuery != nil {
			return domain.StageSearchHotels
		}
		return domain.StageRespond
	default:
		return domain.StageRespond
	}
}

func routeAfterFlights(rc *RunContext) string {
	if rc.State.Intent == domain.IntentCombined {
		return domain.StageSearchHotels
	}
	if rc.State.Intent == domain.IntentRefine && rc.State.HotelQuery != nil {
		return domain.StageSearchHotels
	}
	return domain.StageRespond
}
