package notifications

import (
	"context"
	"log/slog"
	"sync"

	"vidmerge/internal/ledger"
	"vidmerge/internal/logging"
)

// EntryRecorder persists merge outcomes. *ledger.Store satisfies it.
type EntryRecorder interface {
	Record(ctx context.Context, e ledger.Entry) (int64, error)
}

// Recorder forwards entries to an optional ledger and publishes alerts in
// the background so a slow ntfy server never delays a merge response.
type Recorder struct {
	next    EntryRecorder
	service Service
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewRecorder wraps next. A nil next only publishes alerts.
func NewRecorder(next EntryRecorder, service Service, logger *slog.Logger) *Recorder {
	if service == nil {
		service = noopService{}
	}
	return &Recorder{
		next:    next,
		service: service,
		logger:  logging.NewComponentLogger(logger, "notifications"),
	}
}

// Record writes e to the ledger and, when alerts are enabled, queues an alert
// for it. The ledger result is returned whatever happens to the alert.
func (r *Recorder) Record(ctx context.Context, e ledger.Entry) (int64, error) {
	var (
		id  int64
		err error
	)
	if r.next != nil {
		id, err = r.next.Record(ctx, e)
	}
	if r.service.Enabled() {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if notifyErr := r.service.MergeOutcome(context.WithoutCancel(ctx), e); notifyErr != nil {
				logging.WarnWithContext(logging.WithContext(ctx, r.logger), "merge notification failed", "notification_failed",
					logging.Error(notifyErr),
					logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
					logging.String(logging.FieldImpact, "operator not alerted"),
				)
			}
		}()
	}
	return id, err
}

// Wait blocks until every pending alert has been sent or has failed.
func (r *Recorder) Wait() {
	r.wg.Wait()
}
