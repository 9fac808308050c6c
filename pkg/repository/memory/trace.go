package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
)

type traceRecord struct {
	trace *model.Trace
	seq   int64
}

type traceRepository struct {
	mu      sync.RWMutex
	records map[model.TraceID]*traceRecord
	nextSeq int64
	now     func() time.Time
}

func newTraceRepository() *traceRepository {
	return &traceRepository{
		records: make(map[model.TraceID]*traceRecord),
		now:     time.Now,
	}
}

// sorted returns records ascending by creation time, ties in insertion order.
// Caller must hold the lock.
func (r *traceRepository) sorted() []*traceRecord {
	records := make([]*traceRecord, 0, len(r.records))
	for _, rec := range r.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.trace.CreatedAt.Equal(b.trace.CreatedAt) {
			return a.trace.CreatedAt.Before(b.trace.CreatedAt)
		}
		return a.seq < b.seq
	})
	return records
}

func (r *traceRepository) ListSummaries(ctx context.Context, filter model.TraceFilter) ([]*model.TraceSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]*model.TraceSummary, 0)
	for _, rec := range r.sorted() {
		if filter.Matches(rec.trace) {
			summaries = append(summaries, rec.trace.Summary())
		}
	}
	return summaries, nil
}

func (r *traceRepository) GetDetail(ctx context.Context, id model.TraceID) (*model.Trace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.records[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrNotFound, "trace not found", goerr.V(model.TraceIDKey, id))
	}

	trace := rec.trace.Clone()
	if trace.FunctionCalls == nil {
		trace.FunctionCalls = []*model.FunctionCall{}
	}
	return trace, nil
}

func (r *traceRepository) SetStatus(ctx context.Context, id model.TraceID, status types.EvalStatus, rejectReason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[id]
	if !exists {
		return goerr.Wrap(model.ErrNotFound, "trace not found", goerr.V(model.TraceIDKey, id))
	}

	rec.trace.Status = status
	if status == types.EvalStatusRejected && rejectReason != nil {
		reason := *rejectReason
		rec.trace.RejectReason = &reason
	} else {
		rec.trace.RejectReason = nil
	}
	return nil
}

func (r *traceRepository) SetEditableOutput(ctx context.Context, id model.TraceID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[id]
	if !exists {
		return goerr.Wrap(model.ErrNotFound, "trace not found", goerr.V(model.TraceIDKey, id))
	}

	rec.trace.EditableOutput = text
	return nil
}

func (r *traceRepository) DailyStats(ctx context.Context, days int, filter model.TraceFilter) ([]*model.DailyStat, error) {
	if days <= 0 {
		return nil, goerr.Wrap(model.ErrValidation, "days must be positive", goerr.V(model.DaysKey, days))
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	filter = filter.ForStats()
	from := model.WindowStart(r.now(), days)

	var window []*model.Trace
	for _, rec := range r.records {
		if rec.trace.CreatedAt.Before(from) || !filter.Matches(rec.trace) {
			continue
		}
		window = append(window, rec.trace)
	}

	return model.AggregateDailyStats(window), nil
}

func (r *traceRepository) Import(ctx context.Context, traces []*model.Trace) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[model.TraceID]bool, len(traces))
	for _, t := range traces {
		if _, exists := r.records[t.ID]; exists || seen[t.ID] {
			return goerr.Wrap(model.ErrRepository, "trace already exists", goerr.V(model.TraceIDKey, t.ID))
		}
		seen[t.ID] = true
	}

	for _, t := range traces {
		stored := t.Clone()
		sort.SliceStable(stored.FunctionCalls, func(i, j int) bool {
			return stored.FunctionCalls[i].CreatedAt.Before(stored.FunctionCalls[j].CreatedAt)
		})
		r.records[t.ID] = &traceRecord{trace: stored, seq: r.nextSeq}
		r.nextSeq++
	}
	return nil
}
