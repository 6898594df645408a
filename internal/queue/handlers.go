package queue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/pagegate/internal/logging"
)

type HandlersRegistry struct {
	mux *asynq.ServeMux
}

// NewHandlersRegistry returns a mux that logs every processed task.
func NewHandlersRegistry(logger logging.Logger) *HandlersRegistry {
	logger = logging.OrDefault(logger)
	mux := asynq.NewServeMux()
	mux.Use(func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			start := time.Now()
			err := next.ProcessTask(ctx, t)
			fields := map[string]any{"type": t.Type(), "duration_ms": time.Since(start).Milliseconds()}
			if err != nil {
				fields["error"] = err
				logger.Warn(fields, "task failed")
				return err
			}
			logger.Debug(fields, "task done")
			return nil
		})
	})
	return &HandlersRegistry{mux: mux}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, handler)
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}
