package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/nikhilbhutani/pagegate/internal/auth"
	"github.com/nikhilbhutani/pagegate/internal/logging"
)

type HeartbeatEnqueuer interface {
	EnqueueHeartbeat(ctx context.Context, apiKey string) error
}

type Toucher interface {
	Touch(ctx context.Context, apiKey string) error
}

// HeartbeatHandler accepts liveness pings from the browser agent. With a
// queue the update is handed to the worker, otherwise it is applied inline
// on a context detached from the request.
type HeartbeatHandler struct {
	queue   HeartbeatEnqueuer
	rules   Toucher
	timeout time.Duration
	logger  logging.Logger
}

func NewHeartbeatHandler(queue HeartbeatEnqueuer, rules Toucher, timeout time.Duration, logger logging.Logger) *HeartbeatHandler {
	return &HeartbeatHandler{queue: queue, rules: rules, timeout: timeout, logger: logging.OrDefault(logger)}
}

// Heartbeat handles POST /heartbeat. It always answers 200.
func (h *HeartbeatHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		key = auth.BearerToken(r)
	}
	if key != "" {
		h.record(r.Context(), key)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HeartbeatHandler) record(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	defer cancel()

	if h.queue != nil {
		if err := h.queue.EnqueueHeartbeat(ctx, key); err != nil {
			h.logger.Warn(map[string]any{"error": err}, "heartbeat enqueue failed")
		}
		return
	}
	if h.rules != nil {
		if err := h.rules.Touch(ctx, key); err != nil {
			h.logger.Warn(map[string]any{"error": err}, "heartbeat update failed")
		}
	}
}
