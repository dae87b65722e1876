package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/tripmind/backend/internal/adapter/llm"
	"github.com/tripmind/backend/internal/domain"
	"github.com/tripmind/backend/internal/prefs"
)

const classifySystemPrompt = `You classify travel planning messages. Respond with JSON only:
{
  "intent": "flight" | "hotel" | "combined" | "refine" | "other",
  "flight_query": {"origin": "", "destination": "", "depart_date": "", "return_date": "", "cabin_class": "", "max_stops": null},
  "hotel_query": {"city": "", "check_in": "", "check_out": "", "budget": "", "min_rating": 0},
  "selection": {"type": "flight" | "hotel", "identifier": "", "action": "select" | "book"}
}
Use "refine" when the message adjusts an earlier search. Use "combined" when it asks
for both flights and hotels. Omit fields you cannot fill. Dates are YYYY-MM-DD.
Airport codes are IATA. Include "selection" only when the user picks or confirms a
specific option from earlier results.`

// classification is the parsed output of the classify stage.
type classification struct {
	Intent      string              `json:"intent"`
	FlightQuery *domain.FlightQuery `json:"flight_query,omitempty"`
	HotelQuery  *domain.HotelQuery  `json:"hotel_query,omitempty"`
	Selection   *selection          `json:"selection,omitempty"`
}

type selection struct {
	Type       domain.SelectionType   `json:"type"`
	Identifier string                 `json:"identifier"`
	Action     domain.SelectionAction `json:"action"`
}

// handleClassify determines intent and search parameters for the latest
// user message, learns preferences from it, and resolves any option
// selection it contains.
func (p *Pipeline) handleClassify(ctx context.Context, rc *RunContext) error {
	text := rc.State.LastUserText()

	rc.Emit(domain.EventTypeStatus, domain.StatusPayload{
		Status: domain.StatusProcessing,
		Agent:  "classifier",
		Stage:  domain.StageClassify,
	})

	// Preference learning runs on every message regardless of intent.
	if items := prefs.Extract(text); len(items) > 0 {
		prefs.Merge(&rc.State.Preferences, items)
		for _, item := range items {
			rc.Emit(domain.EventTypePreferenceUpdate, domain.PreferenceUpdatePayload{
				Category: item.Category,
				Value:    item.Value,
			})
		}
	}

	cls := p.classifyLLM(ctx, rc, text)
	if cls == nil {
		cls = fallbackClassify(text, rc.State)
	}

	rc.State.Intent = domain.ParseIntent(cls.Intent)
	mergeFlightQuery(rc.State, cls.FlightQuery)
	mergeHotelQuery(rc.State, cls.HotelQuery)

	if cls.Selection != nil {
		resolveSelection(rc.State, cls.Selection)
	}

	return nil
}

// classifyLLM asks the model for a structured classification. Any failure
// returns nil so the caller falls back to keyword classification.
func (p *Pipeline) classifyLLM(ctx context.Context, rc *RunContext, text string) *classification {
	userPrompt := buildClassifyPrompt(rc.State, text)

	resp, err := p.llm.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Messages: []llm.ChatMessage{
			{Role: "system", Content: classifySystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		ResponseFormat: map[string]interface{}{"type": "json_object"},
	})
	if err != nil {
		log.Printf("WARN: classify LLM call failed, using keyword fallback: %v", err)
		return nil
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return nil
	}

	var cls classification
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &cls); err != nil {
		log.Printf("WARN: classify output not valid JSON, using keyword fallback: %v", err)
		return nil
	}
	if cls.Intent == "" {
		return nil
	}
	return &cls
}

func buildClassifyPrompt(st *domain.SessionState, text string) string {
	var b strings.Builder
	for _, s := range st.Summaries {
		fmt.Fprintf(&b, "Earlier conversation summary: %s\n", s.Text)
	}
	for _, turn := range st.RecentHistory(6) {
		fmt.Fprintf(&b, "%s: %s\n", turn.Sender, turn.Text)
	}
	if summary := prefs.Summary(st.Preferences); summary != "" {
		fmt.Fprintf(&b, "Known preferences: %s\n", summary)
	}
	if len(st.FlightResults) > 0 {
		fmt.Fprintf(&b, "Current flight results: %s\n", optionLabels(st))
	}
	fmt.Fprintf(&b, "Classify this message: %s", text)
	return b.String()
}

func optionLabels(st *domain.SessionState) string {
	var labels []string
	for _, f := range st.FlightResults {
		labels = append(labels, fmt.Sprintf("%s %s", f.Airline, f.FlightNumber))
	}
	for _, h := range st.HotelResults {
		labels = append(labels, h.Name)
	}
	return strings.Join(labels, "; ")
}

var refineWords = []string{"cheaper", "earlier", "later", "instead", "shorter", "only show", "filter", "sort", "nonstop ones", "what about"}

var selectMarkers = []string{"i'll take", "ill take", "i will take", "i'll go with", "let's go with", "lets go with", "i choose", "i select", "i pick", "i want the", "i'd like the"}

var bookPhrases = []string{"book it", "book that", "book this", "confirm", "go ahead", "proceed"}

// fallbackClassify is the deterministic keyword classifier used when the
// model is unavailable or returns garbage.
func fallbackClassify(text string, st *domain.SessionState) *classification {
	lower := strings.ToLower(text)

	if sel := fallbackSelection(lower, st); sel != nil {
		return &classification{Intent: string(domain.IntentOther), Selection: sel}
	}

	wantsFlight := strings.Contains(lower, "flight") || strings.Contains(lower, "fly")
	wantsHotel := strings.Contains(lower, "hotel") || strings.Contains(lower, "stay") || strings.Contains(lower, "room")

	hasContext := st.FlightQuery != nil || st.HotelQuery != nil
	if hasContext && !wantsFlight && !wantsHotel {
		for _, w := range refineWords {
			if strings.Contains(lower, w) {
				return &classification{Intent: string(domain.IntentRefine)}
			}
		}
	}

	switch {
	case wantsFlight && wantsHotel:
		return &classification{Intent: string(domain.IntentCombined)}
	case wantsFlight:
		return &classification{Intent: string(domain.IntentFlight)}
	case wantsHotel:
		return &classification{Intent: string(domain.IntentHotel)}
	default:
		return &classification{Intent: string(domain.IntentOther)}
	}
}

// fallbackSelection recognizes option picks ("I'll take Delta") and booking
// confirmations ("yes book it") without the model.
func fallbackSelection(lower string, st *domain.SessionState) *selection {
	for _, marker := range selectMarkers {
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		identifier := cleanIdentifier(lower[idx+len(marker):])
		if identifier == "" {
			continue
		}
		if matchFlight(st.FlightResults, identifier) != "" {
			return &selection{Type: domain.SelectionTypeFlight, Identifier: identifier, Action: domain.SelectionActionSelect}
		}
		if matchHotel(st.HotelResults, identifier) != "" {
			return &selection{Type: domain.SelectionTypeHotel, Identifier: identifier, Action: domain.SelectionActionSelect}
		}
	}

	trimmed := strings.TrimSpace(lower)
	confirms := trimmed == "yes" || strings.HasPrefix(trimmed, "yes ") || strings.HasPrefix(trimmed, "yes,")
	if !confirms {
		for _, phrase := range bookPhrases {
			if strings.Contains(lower, phrase) {
				confirms = true
				break
			}
		}
	}
	if confirms {
		if st.PendingFlight != "" {
			return &selection{Type: domain.SelectionTypeFlight, Action: domain.SelectionActionBook}
		}
		if st.PendingHotel != "" {
			return &selection{Type: domain.SelectionTypeHotel, Action: domain.SelectionActionBook}
		}
	}
	return nil
}

var identifierStopwords = map[string]bool{"the": true, "one": true, "option": true, "flight": true, "hotel": true, "please": true, "that": true}

func cleanIdentifier(raw string) string {
	raw = strings.Trim(raw, " .,!?")
	var kept []string
	for _, word := range strings.Fields(raw) {
		if identifierStopwords[word] {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}

// mergeFlightQuery overlays non-empty fields from an incoming query onto
// the session's current one, so refinements keep earlier parameters.
func mergeFlightQuery(st *domain.SessionState, q *domain.FlightQuery) {
	if q == nil {
		return
	}
	if st.FlightQuery == nil {
		st.FlightQuery = &domain.FlightQuery{}
	}
	dst := st.FlightQuery
	if q.Origin != "" {
		dst.Origin = q.Origin
	}
	if q.Destination != "" {
		dst.Destination = q.Destination
	}
	if q.DepartDate != "" {
		dst.DepartDate = q.DepartDate
	}
	if q.ReturnDate != "" {
		dst.ReturnDate = q.ReturnDate
	}
	if q.Passengers > 0 {
		dst.Passengers = q.Passengers
	}
	if q.CabinClass != "" {
		dst.CabinClass = q.CabinClass
	}
	if q.MaxStops != nil {
		n := *q.MaxStops
		dst.MaxStops = &n
	}
}

func mergeHotelQuery(st *domain.SessionState, q *domain.HotelQuery) {
	if q == nil {
		return
	}
	if st.HotelQuery == nil {
		st.HotelQuery = &domain.HotelQuery{}
	}
	dst := st.HotelQuery
	if q.City != "" {
		dst.City = q.City
	}
	if q.CheckIn != "" {
		dst.CheckIn = q.CheckIn
	}
	if q.CheckOut != "" {
		dst.CheckOut = q.CheckOut
	}
	if q.Guests > 0 {
		dst.Guests = q.Guests
	}
	if q.Budget != "" {
		dst.Budget = q.Budget
	}
	if q.MinRating > 0 {
		dst.MinRating = q.MinRating
	}
}

// resolveSelection applies a user's option pick or booking confirmation to
// the selection sub-state. A select of a new option sets the pending choice;
// a select of the already-pending option confirms it, as does a book (with
// or without an identifier).
func resolveSelection(st *domain.SessionState, sel *selection) {
	switch sel.Type {
	case domain.SelectionTypeFlight:
		id := matchFlight(st.FlightResults, sel.Identifier)
		switch sel.Action {
		case domain.SelectionActionBook:
			if id == "" {
				id = st.PendingFlight
			}
			if id != "" {
				st.SelectedFlight = id
				st.PendingFlight = ""
			}
		default:
			switch {
			case id == "":
			case id == st.PendingFlight:
				// Picking the same option again is a confirmation.
				st.SelectedFlight = id
				st.PendingFlight = ""
			default:
				st.PendingFlight = id
			}
		}
	case domain.SelectionTypeHotel:
		id := matchHotel(st.HotelResults, sel.Identifier)
		switch sel.Action {
		case domain.SelectionActionBook:
			if id == "" {
				id = st.PendingHotel
			}
			if id != "" {
				st.SelectedHotel = id
				st.PendingHotel = ""
			}
		default:
			switch {
			case id == "":
			case id == st.PendingHotel:
				st.SelectedHotel = id
				st.PendingHotel = ""
			default:
				st.PendingHotel = id
			}
		}
	}
}

// matchFlight finds a flight whose id, airline, or flight number matches the
// identifier by case-insensitive substring in either direction.
func matchFlight(results []domain.FlightOption, identifier string) string {
	needle := strings.ToLower(strings.TrimSpace(identifier))
	if needle == "" {
		return ""
	}
	for _, f := range results {
		for _, field := range []string{f.ID, f.Airline, f.FlightNumber, f.Airline + " " + f.FlightNumber} {
			if fuzzyMatch(field, needle) {
				return f.ID
			}
		}
	}
	return ""
}

func matchHotel(results []domain.HotelOption, identifier string) string {
	needle := strings.ToLower(strings.TrimSpace(identifier))
	if needle == "" {
		return ""
	}
	for _, h := range results {
		for _, field := range []string{h.ID, h.Name} {
			if fuzzyMatch(field, needle) {
				return h.ID
			}
		}
	}
	return ""
}

func fuzzyMatch(field, needle string) bool {
	hay := strings.ToLower(field)
	if hay == "" {
		return false
	}
	return strings.Contains(hay, needle) || strings.Contains(needle, hay)
}
