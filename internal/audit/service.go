package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/pagegate/internal/logging"
	"github.com/nikhilbhutani/pagegate/internal/models"
)

// Store is the append-only audit log store.
type Store interface {
	InsertAudit(ctx context.Context, entry models.AuditEntry) error
}

// Recorder persists decisions on a best-effort basis. Record never returns
// an error and never panics into the caller.
type Recorder struct {
	store   Store
	timeout time.Duration
	logger  logging.Logger
	now     func() time.Time
}

func NewRecorder(store Store, timeout time.Duration, logger logging.Logger) *Recorder {
	return &Recorder{
		store:   store,
		timeout: timeout,
		logger:  logging.OrDefault(logger),
		now:     time.Now,
	}
}

// Record writes entry unless it has no user or is an infra allow. The write
// is detached from ctx cancellation so an abandoned request still records.
func (r *Recorder) Record(ctx context.Context, entry models.AuditEntry) {
	if r == nil || r.store == nil {
		return
	}
	if entry.UserID == "" || entry.Reason == models.ReasonInfra {
		return
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error(map[string]any{"panic": p, "reason": entry.Reason}, "audit write panicked")
		}
	}()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.Timestamp = r.now().UTC()

	ctx = context.WithoutCancel(ctx)
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.store.InsertAudit(ctx, entry); err != nil {
		r.logger.Warn(map[string]any{
			"error":    err,
			"user_id":  entry.UserID,
			"domain":   entry.Domain,
			"decision": entry.Decision,
			"reason":   entry.Reason,
		}, "audit write failed")
	}
}
