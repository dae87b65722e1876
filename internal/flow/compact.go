package flow

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tripmind/backend/internal/adapter/llm"
	"github.com/tripmind/backend/internal/domain"
)

const summarizeSystemPrompt = `Summarize this travel planning conversation segment in 2-3
sentences. Keep destinations, dates, prices, and decisions. Respond with the summary only.`

// compactHistory folds older turns into a summary once the history grows
// past the threshold, keeping the most recent turns verbatim.
func (p *Pipeline) compactHistory(ctx context.Context, st *domain.SessionState) {
	threshold := p.cfg.HistoryThreshold
	keep := p.cfg.HistoryKeep
	if threshold <= 0 || keep <= 0 || len(st.History) <= threshold {
		return
	}

	old := st.History[:len(st.History)-keep]
	if len(old) == 0 {
		return
	}

	text := p.summarize(ctx, old)
	st.Summaries = append(st.Summaries, domain.Summary{
		Text:      text,
		TurnCount: len(old),
		StartTs:   old[0].Ts,
		EndTs:     old[len(old)-1].Ts,
		CreatedAt: time.Now().UnixMilli(),
	})
	st.History = append([]domain.Turn(nil), st.History[len(st.History)-keep:]...)
}

func (p *Pipeline) summarize(ctx context.Context, turns []domain.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Sender, t.Text)
	}

	resp, err := p.llm.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Messages: []llm.ChatMessage{
			{Role: "system", Content: summarizeSystemPrompt},
			{Role: "user", Content: b.String()},
		},
	})
	if err == nil && len(resp.Choices) > 0 && resp.Choices[0].Message != nil && resp.Choices[0].Message.Content != "" {
		return resp.Choices[0].Message.Content
	}
	if err != nil {
		log.Printf("WARN: summarization failed, using fallback summary: %v", err)
	}
	return fallbackSummary(turns)
}

// fallbackSummary is a deterministic digest used when the model is down.
func fallbackSummary(turns []domain.Turn) string {
	users := 0
	var firstUser, lastUser string
	for _, t := range turns {
		if t.Sender != "user" {
			continue
		}
		users++
		if firstUser == "" {
			firstUser = t.Text
		}
		lastUser = t.Text
	}
	if users == 0 {
		return fmt.Sprintf("Earlier conversation of %d turns.", len(turns))
	}
	return fmt.Sprintf("Earlier conversation of %d turns. Started with %q and most recently %q.",
		len(turns), truncateText(firstUser, 80), truncateText(lastUser, 80))
}

// truncateText shortens s to maxLen runes, never splitting a multi-byte rune.
func truncateText(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
