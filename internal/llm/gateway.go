package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/nikhilbhutani/pagegate/internal/config"
	"github.com/nikhilbhutani/pagegate/internal/logging"
)

// Routing selects the providers a gateway calls. FallbackModel replaces the
// request model on the fallback provider, since model names do not carry
// across vendors; empty means the fallback provider's first listed model.
type Routing struct {
	Default       string
	Fallback      string
	FallbackModel string
	MaxRetries    int
}

type gateway struct {
	providers map[string]Provider
	routing   Routing
	logger    logging.Logger
}

// NewGateway registers every provider that has credentials configured.
func NewGateway(cfg config.LLMConfig, logger logging.Logger) Gateway {
	var providers []Provider
	if cfg.OpenAIKey != "" {
		providers = append(providers, NewOpenAIProvider(cfg.OpenAIKey))
	}
	if cfg.AnthropicKey != "" {
		providers = append(providers, NewAnthropicProvider(cfg.AnthropicKey))
	}
	if cfg.OllamaURL != "" {
		providers = append(providers, NewOllamaProvider(cfg.OllamaURL))
	}
	return NewGatewayWithProviders(providers, Routing{
		Default:       cfg.DefaultProvider,
		Fallback:      cfg.FallbackProvider,
		FallbackModel: cfg.FallbackModel,
		MaxRetries:    cfg.MaxRetries,
	}, logger)
}

// NewGatewayWithProviders builds a gateway over an explicit provider set.
func NewGatewayWithProviders(providers []Provider, routing Routing, logger logging.Logger) Gateway {
	g := &gateway{
		providers: make(map[string]Provider, len(providers)),
		routing:   routing,
		logger:    logging.OrDefault(logger),
	}
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	return g
}

func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.routing.Default
	}

	resp, err := g.chatWithRetry(ctx, providerName, req)
	fallback := g.routing.Fallback
	if err == nil || ctx.Err() != nil || fallback == "" || fallback == providerName {
		return resp, err
	}

	fbReq := g.fallbackRequest(req)
	g.logger.Warn(map[string]any{
		"primary":  providerName,
		"fallback": fallback,
		"model":    fbReq.Model,
		"error":    err,
	}, "primary provider failed, trying fallback")
	return g.chatWithRetry(ctx, fallback, fbReq)
}

func (g *gateway) fallbackRequest(req ChatRequest) ChatRequest {
	req.Provider = g.routing.Fallback
	if g.routing.FallbackModel != "" {
		req.Model = g.routing.FallbackModel
		return req
	}
	if p, ok := g.providers[g.routing.Fallback]; ok {
		if models := p.Models(); len(models) > 0 {
			req.Model = models[0]
		}
	}
	return req
}

func (g *gateway) chatWithRetry(ctx context.Context, providerName string, req ChatRequest) (*ChatResponse, error) {
	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= g.routing.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			g.logger.Debug(map[string]any{"provider": providerName, "attempt": attempt}, "retrying LLM call")
		}

		resp, err := p.ChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			break
		}
	}
	return nil, fmt.Errorf("chat via %s: %w", providerName, lastErr)
}

// backoff grows quadratically from 250ms.
func backoff(attempt int) time.Duration {
	return time.Duration(attempt*attempt) * 250 * time.Millisecond
}
