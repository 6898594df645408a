package workers

import (
	"context"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/pagegate/internal/queue"
)

// Toucher records that an API key was seen.
type Toucher interface {
	Touch(ctx context.Context, apiKey string) error
}

type HeartbeatWorker struct {
	rules Toucher
}

func NewHeartbeatWorker(rules Toucher) *HeartbeatWorker {
	return &HeartbeatWorker{rules: rules}
}

func (w *HeartbeatWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := queue.ParseHeartbeatTask(t)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if strings.TrimSpace(payload.APIKey) == "" {
		return fmt.Errorf("%w: empty api key", asynq.SkipRetry)
	}

	if err := w.rules.Touch(ctx, payload.APIKey); err != nil {
		return fmt.Errorf("touch last seen: %w", err)
	}
	return nil
}
