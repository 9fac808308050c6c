package safe

import (
	"context"
	"io"
	"log/slog"

	"github.com/secmon-lab/tracedesk/pkg/utils/logging"
)

// Close safely closes an io.Closer and logs any errors.
// It handles nil closers gracefully.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Error("Failed to close", slog.Any("error", err))
	}
}

// Write safely writes data to an io.Writer and logs any errors.
// It handles nil writers gracefully.
func Write(ctx context.Context, w io.Writer, data []byte) {
	if w == nil {
		return
	}
	if _, err := w.Write(data); err != nil {
		logging.From(ctx).Error("Failed to write", slog.Any("error", err))
	}
}

// Rollback aborts a transaction that was not committed. It is meant to be
// deferred right after Begin.
func Rollback(ctx context.Context, tx interface{ Rollback() error }, committed *bool) {
	if committed != nil && *committed {
		return
	}
	if err := tx.Rollback(); err != nil {
		logging.From(ctx).Error("Failed to rollback", slog.Any("error", err))
	}
}
