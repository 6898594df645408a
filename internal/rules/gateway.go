package rules

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nikhilbhutani/pagegate/internal/logging"
	"github.com/nikhilbhutani/pagegate/internal/models"
)

// ErrNotFound is returned by a Store when no record matches the API key.
var ErrNotFound = errors.New("rule record not found")

// Store is the external record store holding one rule record per API key.
type Store interface {
	FindByAPIKey(ctx context.Context, apiKey string) (*models.RuleData, error)
	TouchLastSeen(ctx context.Context, apiKey string, at time.Time) error
}

// Gateway fetches rule snapshots. It never caches: every call reads the store.
type Gateway struct {
	store   Store
	timeout time.Duration
	logger  logging.Logger
	now     func() time.Time
}

func NewGateway(store Store, timeout time.Duration, logger logging.Logger) *Gateway {
	return &Gateway{
		store:   store,
		timeout: timeout,
		logger:  logging.OrDefault(logger),
		now:     time.Now,
	}
}

// Fetch returns the rule record for apiKey, or nil when the key is empty,
// unknown, or the store could not be read. A nil result means the key must
// be treated as invalid; it is never replaced by a default policy.
func (g *Gateway) Fetch(ctx context.Context, apiKey string) *models.RuleData {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	rule, err := g.store.FindByAPIKey(ctx, apiKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			g.logger.Warn(map[string]any{"error": err}, "rule lookup failed")
		}
		return nil
	}
	if rule == nil {
		return nil
	}

	rule.Normalize()
	rule.AllowList = cleanDomains(rule.AllowList)
	rule.BlockList = cleanDomains(rule.BlockList)
	return rule
}

// Touch records a heartbeat for apiKey.
func (g *Gateway) Touch(ctx context.Context, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	return g.store.TouchLastSeen(ctx, apiKey, g.now().UTC())
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func cleanDomains(in []string) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}
