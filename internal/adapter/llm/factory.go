package llm

import (
	"log"
	"os"
	"time"
)

const (
	// EnvTripmindMode is the environment variable name for mode selection.
	EnvTripmindMode = "TRIPMIND_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewLLMClient creates an LLM client based on the TRIPMIND_MODE environment
// variable. If TRIPMIND_MODE=MOCK, returns a MockClient; otherwise returns a
// real Client.
func NewLLMClient(baseURL, apiKey, model string, timeout time.Duration) LLMClient {
	mode := os.Getenv(EnvTripmindMode)

	if mode == ModeMock {
		log.Println("TRIPMIND_MODE=MOCK detected, using mock LLM client")
		return NewMockClient()
	}

	return NewClient(baseURL, apiKey, model, timeout)
}
