package interfaces

import (
	"context"

	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
)

// TraceRepository is the typed access to the trace store
type TraceRepository interface {
	// ListSummaries returns the summary projection of every trace matching
	// filter, ascending by creation time with ties in insertion order.
	ListSummaries(ctx context.Context, filter model.TraceFilter) ([]*model.TraceSummary, error)

	// GetDetail returns the full trace with its function calls ascending by
	// creation time. Returns model.ErrNotFound if no trace has the ID.
	GetDetail(ctx context.Context, id model.TraceID) (*model.Trace, error)

	// SetStatus stores the status. The reject reason is kept only when status
	// is Rejected; any other status clears it whatever reason is given.
	SetStatus(ctx context.Context, id model.TraceID, status types.EvalStatus, rejectReason *string) error

	// SetEditableOutput overwrites the editable output
	SetEditableOutput(ctx context.Context, id model.TraceID, text string) error

	// DailyStats aggregates traces created in the trailing window of days,
	// ascending by date. Days without any trace are omitted.
	DailyStats(ctx context.Context, days int, filter model.TraceFilter) ([]*model.DailyStat, error)

	// Import inserts historical traces with their function calls as given
	Import(ctx context.Context, traces []*model.Trace) error
}
