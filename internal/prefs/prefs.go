// Package prefs extracts, merges, and applies learned user preferences.
package prefs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tripmind/backend/internal/domain"
)

type pattern struct {
	re       *regexp.Regexp
	category string
	value    string
}

// Pattern table for the fast extraction path. Matches run against the
// lowercased message.
var patterns = []pattern{
	{regexp.MustCompile(`\b(prefer|like|want|always|usually|taking)\b.*(morning|early morning|dawn|sunrise).*(flight|flights)`), "flight_time", "morning"},
	{regexp.MustCompile(`\b(prefer|like|want|always|usually|taking)\b.*(afternoon|midday|lunch).*(flight|flights)`), "flight_time", "afternoon"},
	{regexp.MustCompile(`\b(prefer|like|want|always|usually|taking)\b.*(evening|night|late|sunset).*(flight|flights)`), "flight_time", "evening"},

	{regexp.MustCompile(`\b(prefer|like|want|always|usually)\b.*(business class|business)`), "cabin_class", "business"},
	{regexp.MustCompile(`\b(prefer|like|want|always|usually)\b.*(first class)`), "cabin_class", "first"},
	{regexp.MustCompile(`\b(prefer|like|want|always|usually)\b.*(economy|coach)`), "cabin_class", "economy"},

	{regexp.MustCompile(`\b(prefer|like|want|only)\b.*(direct flight|nonstop|no stop)`), "max_stops", "0"},
	{regexp.MustCompile(`\b(don't like|hate|avoid|never)\b.*(layover|connection|stop)`), "max_stops", "0"},

	{regexp.MustCompile(`\b(prefer|like|want|always)\b.*(4[ -]star|four[ -]star|4\*)`), "min_hotel_rating", "4.0"},
	{regexp.MustCompile(`\b(prefer|like|want|always)\b.*(5[ -]star|five[ -]star|5\*|luxury hotel)`), "min_hotel_rating", "5.0"},
	{regexp.MustCompile(`\b(prefer|like|want|always)\b.*(3[ -]star|three[ -]star|3\*)`), "min_hotel_rating", "3.0"},

	{regexp.MustCompile(`\b(prefer|like|want|always)\b.*(budget|cheap|affordable|inexpensive)`), "hotel_budget", "budget"},
	{regexp.MustCompile(`\b(prefer|like|want|always)\b.*(luxury|high[ -]end|expensive|premium)`), "hotel_budget", "luxury"},

	{regexp.MustCompile(`\b(need|want|must have|prefer)\b.*(wifi|wi-fi|internet)`), "amenity", "WiFi"},
	{regexp.MustCompile(`\b(need|want|must have|prefer)\b.*(pool|swimming)`), "amenity", "Pool"},
	{regexp.MustCompile(`\b(need|want|must have|prefer)\b.*(gym|fitness)`), "amenity", "Gym"},
}

// Extract runs the pattern table over a message and returns any preference
// items found.
func Extract(message string) []domain.PreferenceItem {
	lower := strings.ToLower(message)
	now := time.Now().UnixMilli()

	var items []domain.PreferenceItem
	seen := make(map[string]bool)
	for _, p := range patterns {
		if !p.re.MatchString(lower) {
			continue
		}
		key := p.category + "=" + p.value
		if seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, domain.PreferenceItem{
			Category:   p.category,
			Value:      p.value,
			Confidence: 0.9,
			Source:     truncate(message, 100),
			Ts:         now,
		})
	}
	return items
}

// Merge folds new items into the preferences, updating both the item log
// and the typed top-level fields.
func Merge(p *domain.Preferences, items []domain.PreferenceItem) {
	if len(items) == 0 {
		return
	}
	p.Items = append(p.Items, items...)

	for _, item := range items {
		switch item.Category {
		case "flight_time":
			p.FlightTime = item.Value
		case "cabin_class":
			p.CabinClass = item.Value
		case "airline":
			if !contains(p.Airlines, item.Value) {
				p.Airlines = append(p.Airlines, item.Value)
			}
		case "max_stops":
			if n, err := strconv.Atoi(item.Value); err == nil {
				p.MaxStops = &n
			}
		case "min_hotel_rating":
			if f, err := strconv.ParseFloat(item.Value, 64); err == nil {
				p.MinHotelRating = f
			}
		case "hotel_budget":
			p.HotelBudget = item.Value
		case "amenity":
			if !contains(p.Amenities, item.Value) {
				p.Amenities = append(p.Amenities, item.Value)
			}
		case "budget_range":
			p.BudgetRange = item.Value
		}
	}
	p.LastUpdated = time.Now().UnixMilli()
}

// ApplyToFlightQuery fills flight query fields the user did not set
// explicitly from the learned preferences.
func ApplyToFlightQuery(q *domain.FlightQuery, p domain.Preferences) {
	if (q.CabinClass == "" || q.CabinClass == "economy") && p.CabinClass != "" {
		q.CabinClass = p.CabinClass
	}
	if q.MaxStops == nil && p.MaxStops != nil {
		n := *p.MaxStops
		q.MaxStops = &n
	}
}

// ApplyToHotelQuery fills hotel query fields the user did not set
// explicitly from the learned preferences.
func ApplyToHotelQuery(q *domain.HotelQuery, p domain.Preferences) {
	if q.MinRating == 0 && p.MinHotelRating > 0 {
		q.MinRating = p.MinHotelRating
	}
	if q.Budget == "" && p.HotelBudget != "" {
		q.Budget = p.HotelBudget
	}
}

// Summary renders preferences as a short human-readable sentence for
// prompt context. Returns "" when nothing is known.
func Summary(p domain.Preferences) string {
	var parts []string

	if p.FlightTime != "" {
		parts = append(parts, fmt.Sprintf("Prefers %s flights", p.FlightTime))
	}
	if p.CabinClass != "" && p.CabinClass != "economy" {
		parts = append(parts, fmt.Sprintf("Prefers %s class", p.CabinClass))
	}
	if p.MaxStops != nil {
		if *p.MaxStops == 0 {
			parts = append(parts, "Prefers direct flights")
		} else {
			parts = append(parts, fmt.Sprintf("Accepts up to %d stops", *p.MaxStops))
		}
	}
	if len(p.Airlines) > 0 {
		parts = append(parts, fmt.Sprintf("Prefers %s", strings.Join(p.Airlines, ", ")))
	}
	if p.MinHotelRating > 0 {
		parts = append(parts, fmt.Sprintf("Wants hotels rated %.1f+ stars", p.MinHotelRating))
	}
	if p.HotelBudget != "" {
		parts = append(parts, fmt.Sprintf("Prefers %s hotels", p.HotelBudget))
	}
	if len(p.Amenities) > 0 {
		parts = append(parts, fmt.Sprintf("Needs %s", strings.Join(p.Amenities, ", ")))
	}

	return strings.Join(parts, ". ")
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// truncate shortens s to maxLen runes, never splitting a multi-byte rune.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
