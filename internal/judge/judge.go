// Package judge decides ambiguous pages with a text completion backend.
//
// The backend's reply is untrusted free text. It is classified by
// ParseVerdict, and every failure mode (transport error, timeout, reply
// that names neither verdict) resolves to BLOCK.
package judge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nikhilbhutani/pagegate/internal/config"
	"github.com/nikhilbhutani/pagegate/internal/llm"
	"github.com/nikhilbhutani/pagegate/internal/logging"
	"github.com/nikhilbhutani/pagegate/internal/models"
)

// Judge evaluates a page against a user's free-text policy and categories.
type Judge struct {
	gateway   llm.Gateway
	model     string
	timeout   time.Duration
	maxTokens int
	bodyChars int
	shortcut  bool
	logger    logging.Logger
}

func New(gw llm.Gateway, cfg config.JudgeConfig, logger logging.Logger) *Judge {
	return &Judge{
		gateway:   gw,
		model:     cfg.Model,
		timeout:   cfg.Timeout,
		maxTokens: cfg.MaxTokens,
		bodyChars: cfg.BodySnippetChars,
		shortcut:  cfg.SearchTitleShortcut,
		logger:    logging.OrDefault(logger),
	}
}

// Judge returns the verdict for page. Backend failures are absorbed as
// BLOCK; the error return is reserved for prompt construction faults.
func (j *Judge) Judge(ctx context.Context, page models.PageDescriptor, rule *models.RuleData) (models.Decision, error) {
	if j.shortcut && SearchMatchesTitle(page.SearchQuery, page.Title) {
		return models.DecisionAllow, nil
	}

	text, err := BuildPrompt(page, rule, j.bodyChars)
	if err != nil {
		return models.DecisionBlock, fmt.Errorf("build judge prompt: %w", err)
	}

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	resp, err := j.gateway.Chat(ctx, llm.ChatRequest{
		Model:       j.model,
		Messages:    []llm.Message{{Role: "user", Content: text}},
		Temperature: llm.Float(0),
		MaxTokens:   j.maxTokens,
	})
	if err != nil {
		j.logger.Warn(map[string]any{"error": err, "model": j.model}, "completion failed, blocking")
		return models.DecisionBlock, nil
	}

	decision, ok := parse(resp.Content)
	fields := map[string]any{
		"provider":   resp.Provider,
		"model":      resp.Model,
		"decision":   decision,
		"tokens":     resp.TotalTokens(),
		"finish":     resp.FinishReason,
		"cost_usd":   resp.CostUSD,
		"latency_ms": resp.LatencyMs,
	}
	if !ok {
		fields["reply"] = truncate(resp.Content, 80)
		j.logger.Warn(fields, "unrecognized completion reply, blocking")
	} else {
		j.logger.Debug(fields, "completion verdict")
	}
	return decision, nil
}

// ParseVerdict classifies a completion reply. BLOCK wins over ALLOW when
// both appear; a reply naming neither is BLOCK.
func ParseVerdict(text string) models.Decision {
	d, _ := parse(text)
	return d
}

func parse(text string) (models.Decision, bool) {
	upper := strings.ToUpper(strings.TrimSpace(text))
	switch {
	case strings.Contains(upper, "BLOCK"):
		return models.DecisionBlock, true
	case strings.Contains(upper, "ALLOW"):
		return models.DecisionAllow, true
	default:
		return models.DecisionBlock, false
	}
}

// SearchMatchesTitle reports whether the user's search query and the page
// title contain one another, ignoring case and surrounding space. Both must
// be non-empty.
func SearchMatchesTitle(query, title string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	t := strings.ToLower(strings.TrimSpace(title))
	if q == "" || t == "" {
		return false
	}
	return strings.Contains(q, t) || strings.Contains(t, q)
}
