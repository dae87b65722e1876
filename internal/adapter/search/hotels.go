package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/tripmind/backend/internal/domain"
)

var hotelChains = []string{
	"Hilton",
	"Marriott",
	"Hyatt",
	"Holiday Inn",
	"Best Western",
	"Sheraton",
	"Westin",
	"Radisson",
}

var hotelTypes = []string{
	"Hotel",
	"Resort",
	"Suites",
	"Inn",
	"Grand Hotel",
}

var amenitiesPool = []string{
	"WiFi",
	"Pool",
	"Gym",
	"Spa",
	"Restaurant",
	"Bar",
	"Room Service",
	"Parking",
	"Business Center",
	"Airport Shuttle",
	"Pet Friendly",
	"Breakfast Included",
}

var budgetRanges = map[string][2]float64{
	"budget": {60, 120},
	"mid":    {120, 250},
	"luxury": {250, 600},
}

// HotelProvider searches for hotels.
type HotelProvider struct {
	liveURL    string
	httpClient *http.Client
}

// NewHotelProvider creates a hotel provider. liveURL may be empty.
func NewHotelProvider(liveURL string, timeout time.Duration) *HotelProvider {
	return &HotelProvider{
		liveURL:    liveURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Search returns hotel options for the query along with the result source.
// It never returns an error: live failures fall back to generated data.
func (p *HotelProvider) Search(ctx context.Context, q domain.HotelQuery) ([]domain.HotelOption, string) {
	if p.liveURL != "" {
		results, err := p.searchLive(ctx, q)
		if err == nil {
			return results, SourceLive
		}
		log.Printf("WARN: live hotel search failed, using fallback: %v", err)
	}
	return GenerateHotels(q), SourceFallback
}

func (p *HotelProvider) searchLive(ctx context.Context, q domain.HotelQuery) ([]domain.HotelOption, error) {
	params := url.Values{}
	params.Set("city", q.City)
	if q.CheckIn != "" {
		params.Set("check_in", q.CheckIn)
	}
	if q.CheckOut != "" {
		params.Set("check_out", q.CheckOut)
	}
	if q.Budget != "" {
		params.Set("budget", q.Budget)
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
		return nil, fmt.Errorf("hotel API status %d: %s", resp.StatusCode, string(body))
	}

	var results []domain.HotelOption
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, err
	}
	return results, nil
}

// GenerateHotels produces deterministic hotel options for a query.
func GenerateHotels(q domain.HotelQuery) []domain.HotelOption {
	city := q.City
	if city == "" {
		city = "New York"
	}
	budget := q.Budget
	if _, ok := budgetRanges[budget]; !ok {
		budget = "mid"
	}
	priceRange := budgetRanges[budget]

	rng := rand.New(rand.NewSource(int64(seedFor(city, budget, q.CheckIn))))

	nights := stayNights(q.CheckIn, q.CheckOut)

	count := 5 + rng.Intn(3)
	options := make([]domain.HotelOption, 0, count)
	for i := 0; i < count; i++ {
		chain := hotelChains[rng.Intn(len(hotelChains))]
		kind := hotelTypes[rng.Intn(len(hotelTypes))]
		stars := 3.0 + float64(rng.Intn(5))*0.5
		if q.MinRating > 0 && stars < q.MinRating {
			stars = q.MinRating
		}

		// Higher rated hotels price toward the top of the band.
		band := priceRange[1] - priceRange[0]
		perNight := round2(priceRange[0] + band*((stars-3.0)/2.0) + rng.Float64()*40.0)

		amenityCount := 3 + rng.Intn(5)
		amenities := make([]string, 0, amenityCount)
		for _, idx := range rng.Perm(len(amenitiesPool))[:amenityCount] {
			amenities = append(amenities, amenitiesPool[idx])
		}
		sort.Strings(amenities)

		options = append(options, domain.HotelOption{
			ID:            fmt.Sprintf("ht_%s_%d", seedSlug(city), i+1),
			Name:          fmt.Sprintf("%s %s %s", chain, city, kind),
			City:          city,
			Address:       mockAddress(city, rng),
			StarRating:    stars,
			ReviewScore:   round2(6.5 + rng.Float64()*3.0),
			ReviewCount:   100 + rng.Intn(4000),
			PricePerNight: perNight,
			Currency:      "USD",
			TotalPrice:    round2(perNight * float64(nights)),
			Amenities:     amenities,
		})
	}

	sort.Slice(options, func(i, j int) bool { return options[i].PricePerNight < options[j].PricePerNight })
	return options
}

var streets = []string{"Main St", "Park Ave", "Ocean Blvd", "Downtown Dr", "Harbor Way", "Airport Rd"}

func mockAddress(city string, rng *rand.Rand) string {
	num := rng.Intn(9000) + 100
	return fmt.Sprintf("%d %s, %s", num, streets[rng.Intn(len(streets))], city)
}

func seedSlug(city string) string {
	slug := make([]rune, 0, len(city))
	for _, r := range city {
		if r == ' ' {
			continue
		}
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		slug = append(slug, r)
	}
	return string(slug)
}

func stayNights(checkIn, checkOut string) int {
	in, err1 := time.Parse("2006-01-02", checkIn)
	out, err2 := time.Parse("2006-01-02", checkOut)
	if err1 != nil || err2 != nil {
		return 3
	}
	nights := int(out.Sub(in).Hours() / 24)
	if nights < 1 {
		return 1
	}
	return nights
}
