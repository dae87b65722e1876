package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tripmind/backend/internal/adapter/search"
	"github.com/tripmind/backend/internal/domain"
	"github.com/tripmind/backend/internal/prefs"
)

// handleSearchFlights completes the flight query with defaults and learned
// preferences, runs the search, and stores the results on the run state.
// Re-entering with results for an unchanged query reuses them.
func (p *Pipeline) handleSearchFlights(ctx context.Context, rc *RunContext) error {
	if rc.State.FlightQuery == nil {
		rc.State.FlightQuery = &domain.FlightQuery{}
	}
	q := rc.State.FlightQuery
	if q.Origin == "" {
		q.Origin = "JFK"
	}
	if q.Destination == "" {
		q.Destination = "LAX"
	}
	prefs.ApplyToFlightQuery(q, rc.State.Preferences)

	key := queryKey(q)
	if len(rc.State.FlightResults) > 0 && key == rc.State.FlightSearchKey {
		rc.FlightSource = search.SourceCached
		return nil
	}

	rc.Emit(domain.EventTypeStatus, domain.StatusPayload{
		Status: domain.StatusProcessing,
		Agent:  "flight_search",
		Stage:  domain.StageSearchFlights,
		Detail: fmt.Sprintf("searching flights %s to %s", q.Origin, q.Destination),
	})

	results, source := p.flights.Search(ctx, *q)
	rc.State.FlightResults = results
	rc.State.FlightSearchKey = key
	rc.FlightSource = source
	return nil
}

// handleSearchHotels completes the hotel query and runs the search. A
// missing city falls back to the flight destination when one is known.
func (p *Pipeline) handleSearchHotels(ctx context.Context, rc *RunContext) error {
	if rc.State.HotelQuery == nil {
		rc.State.HotelQuery = &domain.HotelQuery{}
	}
	q := rc.State.HotelQuery
	if q.City == "" {
		if rc.State.FlightQuery != nil && rc.State.FlightQuery.Destination != "" {
			q.City = cityForAirport(rc.State.FlightQuery.Destination)
		} else {
			q.City = "New York"
		}
	}
	prefs.ApplyToHotelQuery(q, rc.State.Preferences)

	key := queryKey(q)
	if len(rc.State.HotelResults) > 0 && key == rc.State.HotelSearchKey {
		rc.HotelSource = search.SourceCached
		return nil
	}

	rc.Emit(domain.EventTypeStatus, domain.StatusPayload{
		Status: domain.StatusProcessing,
		Agent:  "hotel_search",
		Stage:  domain.StageSearchHotels,
		Detail: fmt.Sprintf("searching hotels in %s", q.City),
	})

	results, source := p.hotels.Search(ctx, *q)
	rc.State.HotelResults = results
	rc.State.HotelSearchKey = key
	rc.HotelSource = source
	return nil
}

// queryKey serializes a completed query for change detection.
func queryKey(q any) string {
	data, err := json.Marshal(q)
	if err != nil {
		return ""
	}
	return string(data)
}

var airportCities = map[string]string{
	"JFK": "New York",
	"LAX": "Los Angeles",
	"ORD": "Chicago",
	"ATL": "Atlanta",
	"DFW": "Dallas",
	"DEN": "Denver",
	"SFO": "San Francisco",
	"SEA": "Seattle",
	"MIA": "Miami",
	"LAS": "Las Vegas",
	"MCO": "Orlando",
	"BOS": "Boston",
	"PHX": "Phoenix",
	"IAH": "Houston",
	"LHR": "London",
	"CDG": "Paris",
	"HND": "Tokyo",
	"NRT": "Tokyo",
	"DXB": "Dubai",
	"SIN": "Singapore",
}

// cityForAirport maps a known IATA code to its city, passing unknown
// values through unchanged (the user may have typed a city name).
func cityForAirport(code string) string {
	if city, ok := airportCities[strings.ToUpper(code)]; ok {
		return city
	}
	return code
}
