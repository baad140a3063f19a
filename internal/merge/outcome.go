package merge

import (
	"context"
	"time"

	"vidmerge/internal/ledger"
	"vidmerge/internal/logging"
	"vidmerge/internal/services"
)

var kindHints = map[services.Kind]string{
	services.KindStorageUnavailable: "check store connectivity and credentials",
	services.KindUnreadableMedia:    "inspect the staged input with `vidmerge probe`",
	services.KindEncodeFailed:       "check ffmpeg diagnostics in the error detail",
	services.KindIncompatible:       "inputs must share video codec, resolution and audio codec",
	services.KindInvalidArtifact:    "merged output was not a valid mp4",
}

// finish logs the terminal state and records it in the ledger. Only failures
// before a staging run exists are rejections; anything later is a failure
// even when the client sees a 4xx.
func (o *Orchestrator) finish(ctx context.Context, req Request, result Result, err error, started time.Time) {
	logger := logging.WithContext(ctx, o.logger)
	entry := ledger.Entry{
		Sources:    req.IDs,
		RunID:      result.RunID,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		entry.RequestID = rid
	}

	kind := services.KindOf(err)
	switch {
	case err == nil:
		entry.Outcome = ledger.OutcomePublished
		entry.ResultID = string(result.ID)
		entry.SizeBytes = result.SizeBytes
		entry.BLAKE3 = result.BLAKE3
		logger.Info("merge published",
			logging.String(logging.FieldEventType, "merge_published"),
			logging.String(logging.FieldVideoID, string(result.ID)),
			logging.Int64("size_bytes", result.SizeBytes),
			logging.String("blake3", result.BLAKE3),
			logging.Duration("elapsed", result.Elapsed),
		)
	case kind.ClientError() && result.RunID == "":
		entry.Outcome = ledger.OutcomeRejected
		entry.ErrorKind = string(kind)
		entry.ErrorDetail = err.Error()
		logger.Info("merge rejected",
			logging.String(logging.FieldEventType, "merge_rejected"),
			logging.String(logging.FieldErrorKind, string(kind)),
			logging.String("reason", services.Reason(err)),
		)
	default:
		entry.Outcome = ledger.OutcomeFailed
		entry.ErrorKind = string(kind)
		entry.ErrorDetail = err.Error()
		hint, ok := kindHints[kind]
		if !ok {
			hint = "check logs for details"
		}
		logging.ErrorWithContext(logger, "merge failed", "merge_failed",
			logging.String(logging.FieldErrorKind, string(kind)),
			logging.String(logging.FieldErrorHint, hint),
			logging.Error(err),
		)
	}

	if o.recorder == nil {
		return
	}
	if _, recErr := o.recorder.Record(ctx, entry); recErr != nil {
		logging.WarnWithContext(logger, "merge ledger write failed", "ledger_write_failed",
			logging.Error(recErr),
			logging.String(logging.FieldImpact, "merge outcome missing from history"),
		)
	}
}
