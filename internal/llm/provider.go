// Package llm routes chat completions to OpenAI, Anthropic or a local Ollama
// server, with per-provider retries and a single fallback provider.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type Provider interface {
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Name() string
	Models() []string
}

type Gateway interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Provider(name string) (Provider, error)
}

type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

type ChatRequest struct {
	Provider string    `json:"provider,omitempty"`
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	// Temperature is sent only when set; a pointer to zero requests
	// deterministic sampling.
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
}

type ChatResponse struct {
	ID           string  `json:"id"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Content      string  `json:"content"`
	FinishReason string  `json:"finish_reason,omitempty"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	LatencyMs    int64   `json:"latency_ms"`
}

func (r *ChatResponse) TotalTokens() int { return r.InputTokens + r.OutputTokens }

// Float returns a pointer to v, for ChatRequest.Temperature.
func Float(v float64) *float64 { return &v }

// ProviderError is a failed backend call. Status is the HTTP status when the
// backend answered, zero for transport faults.
type ProviderError struct {
	Provider string
	Status   int
	Err      error
}

func newProviderError(provider string, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Status: status, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether resending the same request may succeed:
// transport faults, rate limits and server errors.
func (e *ProviderError) Retryable() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

func retryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return true
}
