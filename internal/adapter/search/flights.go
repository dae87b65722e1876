// Package search provides flight and hotel search providers. Each provider
// tries a live HTTP endpoint when configured and falls back to a
// deterministic generator, so a search stage never fails a run.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/tripmind/backend/internal/domain"
)

// Result sources reported in result events.
const (
	SourceLive     = "live"
	SourceFallback = "fallback"
	SourceCached   = "cached"
)

var airlines = []string{
	"United Airlines",
	"Delta Air Lines",
	"American Airlines",
	"Southwest Airlines",
	"JetBlue Airways",
	"Alaska Airlines",
	"Spirit Airlines",
	"Frontier Airlines",
}

var cabinMultipliers = map[string]float64{
	"economy":         1.0,
	"premium_economy": 1.5,
	"business":        3.0,
	"first":           5.0,
}

// FlightProvider searches for flights.
type FlightProvider struct {
	liveURL    string
	httpClient *http.Client
}

// NewFlightProvider creates a flight provider. liveURL may be empty, in
// which case only the generator is used.
func NewFlightProvider(liveURL string, timeout time.Duration) *FlightProvider {
	return &FlightProvider{
		liveURL:    liveURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Search returns flight options for the query along with the result source.
// It never returns an error: live failures fall back to generated data.
func (p *FlightProvider) Search(ctx context.Context, q domain.FlightQuery) ([]domain.FlightOption, string) {
	if p.liveURL != "" {
		results, err := p.searchLive(ctx, q)
		if err == nil {
			return results, SourceLive
		}
		log.Printf("WARN: live flight search failed, using fallback: %v", err)
	}
	return GenerateFlights(q), SourceFallback
}

func (p *FlightProvider) searchLive(ctx context.Context, q domain.FlightQuery) ([]domain.FlightOption, error) {
	params := url.Values{}
	params.Set("origin", q.Origin)
	params.Set("destination", q.Destination)
	if q.DepartDate != "" {
		params.Set("depart_date", q.DepartDate)
	}
	if q.CabinClass != "" {
		params.Set("cabin_class", q.CabinClass)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.liveURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("flight API status %d: %s", resp.StatusCode, string(body))
	}

	var results []domain.FlightOption
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, err
	}
	return results, nil
}

// GenerateFlights produces deterministic flight options for a query. The
// same query always yields the same options.
func GenerateFlights(q domain.FlightQuery) []domain.FlightOption {
	origin := q.Origin
	if origin == "" {
		origin = "JFK"
	}
	dest := q.Destination
	if dest == "" {
		dest = "LAX"
	}
	cabin := q.CabinClass
	if cabin == "" {
		cabin = "economy"
	}

	departDay := parseDateOr(q.DepartDate, 30)

	rng := rand.New(rand.NewSource(int64(seedFor(origin, dest, q.DepartDate, cabin))))

	multiplier, ok := cabinMultipliers[cabin]
	if !ok {
		multiplier = 1.0
	}

	count := 5 + rng.Intn(3)
	options := make([]domain.FlightOption, 0, count)
	for i := 0; i < count; i++ {
		airline := airlines[rng.Intn(len(airlines))]
		stops := rng.Intn(3)
		if q.MaxStops != nil && stops > *q.MaxStops {
			stops = *q.MaxStops
		}

		durationMin := 120 + rng.Intn(360) + stops*75
		departHour := 6 + rng.Intn(16)
		depart := departDay.Add(time.Duration(departHour) * time.Hour).Add(time.Duration(rng.Intn(4)*15) * time.Minute)
		arrive := depart.Add(time.Duration(durationMin) * time.Minute)

		base := 150.0 + rng.Float64()*450.0
		price := round2((base + float64(stops)*-30.0) * multiplier)

		options = append(options, domain.FlightOption{
			ID:            fmt.Sprintf("fl_%s%s_%d", origin, dest, i+1),
			Airline:       airline,
			FlightNumber:  flightNumber(airline, rng.Intn(9000)+1000),
			Origin:        origin,
			Destination:   dest,
			DepartureTime: depart.Format(time.RFC3339),
			ArrivalTime:   arrive.Format(time.RFC3339),
			DurationMin:   durationMin,
			Stops:         stops,
			Price:         price,
			Currency:      "USD",
			CabinClass:    cabin,
		})
	}

	sort.Slice(options, func(i, j int) bool { return options[i].Price < options[j].Price })
	return options
}

func flightNumber(airline string, n int) string {
	prefix := ""
	for _, r := range airline {
		if r == ' ' {
			break
		}
		prefix += string(r)
		if len(prefix) == 2 {
			break
		}
	}
	return fmt.Sprintf("%s%d", prefix, n)
}

func seedFor(parts ...string) uint32 {
	h := fnv.New32a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return h.Sum32()
}

// parseDateOr parses a YYYY-MM-DD date, defaulting to defaultDays from the
// start of the current day. Generated output is deterministic for a given
// query on a given day; explicit dates are deterministic outright.
func parseDateOr(s string, defaultDays int) time.Time {
	if s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t
		}
	}
	return time.Now().Truncate(24 * time.Hour).AddDate(0, 0, defaultDays)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
