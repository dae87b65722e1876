package flow

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tripmind/backend/internal/adapter/llm"
	"github.com/tripmind/backend/internal/domain"
	"github.com/tripmind/backend/internal/prefs"
)

const respondSystemPrompt = `You are a helpful travel planning assistant. Summarize the search
results conversationally, mention concrete prices, and suggest a next step. If the user
picked an option, acknowledge the choice. Keep it under 120 words.`

// handleRespond produces the assistant reply, streaming tokens as they
// arrive. A model failure falls back to a deterministic template so the run
// still completes with a useful answer.
func (p *Pipeline) handleRespond(ctx context.Context, rc *RunContext) error {
	rc.Emit(domain.EventTypeStatus, domain.StatusPayload{
		Status: domain.StatusProcessing,
		Agent:  "responder",
		Stage:  domain.StageRespond,
	})

	reply, err := p.streamReply(ctx, rc)
	if err != nil {
		if err == ErrInterrupted || ctx.Err() != nil {
			return ErrInterrupted
		}
		log.Printf("WARN: respond LLM call failed, using template fallback: %v", err)
		reply = templateReply(rc.State)
		rc.Emit(domain.EventTypeToken, domain.TokenPayload{Text: reply, FullText: reply})
	}

	rc.State.History = append(rc.State.History, domain.Turn{
		Sender: "assistant",
		Text:   reply,
		Ts:     time.Now().UnixMilli(),
		RunID:  rc.RunID,
	})
	rc.Emit(domain.EventTypeMessage, domain.MessagePayload{Sender: "assistant", Text: reply})

	p.compactHistory(ctx, rc.State)
	return nil
}

// streamReply streams the model response, emitting a token event per chunk.
func (p *Pipeline) streamReply(ctx context.Context, rc *RunContext) (string, error) {
	var full strings.Builder

	_, err := p.llm.CreateChatCompletionStream(ctx, &llm.ChatCompletionRequest{
		Messages: []llm.ChatMessage{
			{Role: "system", Content: respondSystemPrompt},
			{Role: "user", Content: buildRespondPrompt(rc.State)},
		},
	}, func(chunk *llm.StreamChunk) error {
		if rc.Interrupted != nil && rc.Interrupted() {
			return ErrInterrupted
		}
		for _, c := range chunk.Choices {
			if c.Delta == nil || c.Delta.Content == "" {
				continue
			}
			full.WriteString(c.Delta.Content)
			rc.Emit(domain.EventTypeToken, domain.TokenPayload{
				Text:     c.Delta.Content,
				FullText: full.String(),
			})
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if full.Len() == 0 {
		return "", fmt.Errorf("empty model reply")
	}
	return full.String(), nil
}

func buildRespondPrompt(st *domain.SessionState) string {
	var b strings.Builder

	for _, s := range st.Summaries {
		fmt.Fprintf(&b, "Earlier conversation summary: %s\n", s.Text)
	}
	for _, turn := range st.RecentHistory(8) {
		fmt.Fprintf(&b, "%s: %s\n", turn.Sender, turn.Text)
	}
	if summary := prefs.Summary(st.Preferences); summary != "" {
		fmt.Fprintf(&b, "Known preferences: %s\n", summary)
	}

	if len(st.FlightResults) > 0 {
		b.WriteString("Flight results:\n")
		for i, f := range st.FlightResults {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "- %s %s, %s to %s, %d stops, $%.2f\n",
				f.Airline, f.FlightNumber, f.Origin, f.Destination, f.Stops, f.Price)
		}
	}
	if len(st.HotelResults) > 0 {
		b.WriteString("Hotel results:\n")
		for i, h := range st.HotelResults {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "- %s, %.1f stars, $%.2f/night\n", h.Name, h.StarRating, h.PricePerNight)
		}
	}
	if st.PendingFlight != "" {
		fmt.Fprintf(&b, "User is considering flight %s.\n", st.PendingFlight)
	}
	if st.PendingHotel != "" {
		fmt.Fprintf(&b, "User is considering hotel %s.\n", st.PendingHotel)
	}
	if st.SelectedFlight != "" {
		fmt.Fprintf(&b, "User confirmed flight %s.\n", st.SelectedFlight)
	}
	if st.SelectedHotel != "" {
		fmt.Fprintf(&b, "User confirmed hotel %s.\n", st.SelectedHotel)
	}

	return b.String()
}

// templateReply builds a deterministic answer from whatever the run found.
func templateReply(st *domain.SessionState) string {
	var parts []string

	if len(st.FlightResults) > 0 {
		best := st.FlightResults[0]
		parts = append(parts, fmt.Sprintf(
			"I found %d flights from %s to %s. The best value is %s %s at $%.2f with %d stops.",
			len(st.FlightResults), best.Origin, best.Destination,
			best.Airline, best.FlightNumber, best.Price, best.Stops))
	}
	if len(st.HotelResults) > 0 {
		best := st.HotelResults[0]
		parts = append(parts, fmt.Sprintf(
			"For hotels in %s, %s starts at $%.2f per night with a %.1f star rating.",
			best.City, best.Name, best.PricePerNight, best.StarRating))
	}
	if st.SelectedFlight != "" || st.SelectedHotel != "" {
		parts = append(parts, "Your selection is confirmed. Say \"book it\" when you want to complete the booking.")
	}
	if len(parts) == 0 {
		return "I can help you plan your trip. Tell me where you want to fly or stay and I'll search for options."
	}
	parts = append(parts, "Want me to refine these results?")
	return strings.Join(parts, " ")
}
