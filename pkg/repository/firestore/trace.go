package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/domain/interfaces"
	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	tracesCollection        = "traces"
	functionCallsCollection = "function_calls"
)

type traceRepository struct {
	client           *firestore.Client
	collectionPrefix string
	now              func() time.Time
}

var _ interfaces.TraceRepository = &traceRepository{}

func newTraceRepository(client *firestore.Client) *traceRepository {
	return &traceRepository{
		client: client,
		now:    time.Now,
	}
}

// traceDoc is the Firestore persistence model. Seq breaks ties between
// traces created at the same instant.
type traceDoc struct {
	ID                string
	UserMessage       string
	AssistantResponse string
	EditableOutput    string
	Status            string
	LLMScore          string
	RejectReason      *string
	Tool              string
	Scenario          string
	DataSource        string
	CreatedAt         time.Time
	Seq               int64
}

type functionCallDoc struct {
	ID           string
	TraceID      string
	FunctionName string
	Arguments    map[string]any
	Response     map[string]any
	CreatedAt    time.Time
	Seq          int64
}

// summaryFields is the projection read by list queries
var summaryFields = []string{"ID", "UserMessage", "Status", "LLMScore", "Tool", "Scenario", "DataSource", "CreatedAt"}

// TracesCollectionName returns the collection name for the given prefix
func TracesCollectionName(prefix string) string {
	if prefix != "" {
		return prefix + "_" + tracesCollection
	}
	return tracesCollection
}

func (r *traceRepository) tracesCollection() *firestore.CollectionRef {
	return r.client.Collection(TracesCollectionName(r.collectionPrefix))
}

func (r *traceRepository) callsCollection(id model.TraceID) *firestore.CollectionRef {
	return r.tracesCollection().Doc(string(id)).Collection(functionCallsCollection)
}

func applyFilter(q firestore.Query, filter model.TraceFilter) firestore.Query {
	if filter.Tool != nil {
		q = q.Where("Tool", "==", string(*filter.Tool))
	}
	if filter.Scenario != nil {
		q = q.Where("Scenario", "==", string(*filter.Scenario))
	}
	if filter.Status != nil {
		q = q.Where("Status", "==", string(*filter.Status))
	}
	if filter.DataSource != nil {
		q = q.Where("DataSource", "==", string(*filter.DataSource))
	}
	return q
}

func toTraceDoc(t *model.Trace, seq int64) *traceDoc {
	return &traceDoc{
		ID:                string(t.ID),
		UserMessage:       t.UserMessage,
		AssistantResponse: t.AssistantResponse,
		EditableOutput:    t.EditableOutput,
		Status:            string(t.Status),
		LLMScore:          string(t.LLMScore),
		RejectReason:      t.RejectReason,
		Tool:              string(t.Tool),
		Scenario:          string(t.Scenario),
		DataSource:        string(t.DataSource),
		CreatedAt:         t.CreatedAt.UTC(),
		Seq:               seq,
	}
}

func (d *traceDoc) toModel() *model.Trace {
	return &model.Trace{
		ID:                model.TraceID(d.ID),
		UserMessage:       d.UserMessage,
		AssistantResponse: d.AssistantResponse,
		EditableOutput:    d.EditableOutput,
		Status:            types.EvalStatus(d.Status),
		LLMScore:          types.LLMScore(d.LLMScore),
		RejectReason:      d.RejectReason,
		Tool:              types.Tool(d.Tool),
		Scenario:          types.Scenario(d.Scenario),
		DataSource:        types.DataSource(d.DataSource),
		CreatedAt:         d.CreatedAt.UTC(),
	}
}

func (d *functionCallDoc) toModel() *model.FunctionCall {
	return &model.FunctionCall{
		ID:           d.ID,
		TraceID:      model.TraceID(d.TraceID),
		FunctionName: d.FunctionName,
		Arguments:    d.Arguments,
		Response:     d.Response,
		CreatedAt:    d.CreatedAt.UTC(),
	}
}

func (r *traceRepository) ListSummaries(ctx context.Context, filter model.TraceFilter) ([]*model.TraceSummary, error) {
	q := applyFilter(r.tracesCollection().Query, filter).
		Select(summaryFields...).
		OrderBy("CreatedAt", firestore.Asc).
		OrderBy("Seq", firestore.Asc)

	iter := q.Documents(ctx)
	defer iter.Stop()

	summaries := make([]*model.TraceSummary, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, model.WrapRepository(err, "failed to iterate traces")
		}

		var d traceDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to decode trace", goerr.V("doc_id", doc.Ref.ID))
		}
		summaries = append(summaries, d.toModel().Summary())
	}

	return summaries, nil
}

// GetDetail reads the trace and its function calls concurrently
func (r *traceRepository) GetDetail(ctx context.Context, id model.TraceID) (*model.Trace, error) {
	var trace *model.Trace
	var calls []*model.FunctionCall

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		doc, err := r.tracesCollection().Doc(string(id)).Get(egCtx)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(model.ErrNotFound, "trace not found", goerr.V(model.TraceIDKey, id))
			}
			return model.WrapRepository(err, "failed to get trace", goerr.V(model.TraceIDKey, id))
		}

		var d traceDoc
		if err := doc.DataTo(&d); err != nil {
			return goerr.Wrap(err, "failed to decode trace", goerr.V(model.TraceIDKey, id))
		}
		trace = d.toModel()
		return nil
	})
	eg.Go(func() error {
		iter := r.callsCollection(id).
			OrderBy("CreatedAt", firestore.Asc).
			OrderBy("Seq", firestore.Asc).
			Documents(egCtx)
		defer iter.Stop()

		calls = make([]*model.FunctionCall, 0)
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				return nil
			}
			if err != nil {
				return model.WrapRepository(err, "failed to iterate function calls", goerr.V(model.TraceIDKey, id))
			}

			var d functionCallDoc
			if err := doc.DataTo(&d); err != nil {
				return goerr.Wrap(err, "failed to decode function call", goerr.V("doc_id", doc.Ref.ID))
			}
			calls = append(calls, d.toModel())
		}
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	trace.FunctionCalls = calls
	return trace, nil
}

func (r *traceRepository) SetStatus(ctx context.Context, id model.TraceID, st types.EvalStatus, rejectReason *string) error {
	var reason any
	if st == types.EvalStatusRejected && rejectReason != nil {
		reason = *rejectReason
	}

	_, err := r.tracesCollection().Doc(string(id)).Update(ctx, []firestore.Update{
		{Path: "Status", Value: string(st)},
		{Path: "RejectReason", Value: reason},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(model.ErrNotFound, "trace not found", goerr.V(model.TraceIDKey, id))
		}
		return model.WrapRepository(err, "failed to update trace status",
			goerr.V(model.TraceIDKey, id),
			goerr.V(model.StatusKey, st))
	}
	return nil
}

func (r *traceRepository) SetEditableOutput(ctx context.Context, id model.TraceID, text string) error {
	_, err := r.tracesCollection().Doc(string(id)).Update(ctx, []firestore.Update{
		{Path: "EditableOutput", Value: text},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(model.ErrNotFound, "trace not found", goerr.V(model.TraceIDKey, id))
		}
		return model.WrapRepository(err, "failed to update editable output", goerr.V(model.TraceIDKey, id))
	}
	return nil
}

// DailyStats reads the window with a narrow projection and aggregates
// client-side
func (r *traceRepository) DailyStats(ctx context.Context, days int, filter model.TraceFilter) ([]*model.DailyStat, error) {
	if days <= 0 {
		return nil, goerr.Wrap(model.ErrValidation, "days must be positive", goerr.V(model.DaysKey, days))
	}

	from := model.WindowStart(r.now(), days)
	q := applyFilter(r.tracesCollection().Query, filter.ForStats()).
		Where("CreatedAt", ">=", from).
		Select("Status", "LLMScore", "CreatedAt")

	iter := q.Documents(ctx)
	defer iter.Stop()

	var window []*model.Trace
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, model.WrapRepository(err, "failed to iterate traces for stats", goerr.V(model.DaysKey, days))
		}

		var d traceDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to decode trace", goerr.V("doc_id", doc.Ref.ID))
		}
		window = append(window, d.toModel())
	}

	return model.AggregateDailyStats(window), nil
}

// Import writes traces and their function calls with a BulkWriter, which
// handles batching
func (r *traceRepository) Import(ctx context.Context, traces []*model.Trace) error {
	if len(traces) == 0 {
		return nil
	}

	bulkWriter := r.client.BulkWriter(ctx)
	defer bulkWriter.End()

	base := time.Now().UnixNano()
	var jobs []*firestore.BulkWriterJob
	for i, t := range traces {
		job, err := bulkWriter.Create(r.tracesCollection().Doc(string(t.ID)), toTraceDoc(t, base+int64(i)))
		if err != nil {
			return goerr.Wrap(err, "failed to add trace to bulk writer", goerr.V(model.TraceIDKey, t.ID))
		}
		jobs = append(jobs, job)

		for j, fc := range t.FunctionCalls {
			doc := &functionCallDoc{
				ID:           fc.ID,
				TraceID:      string(t.ID),
				FunctionName: fc.FunctionName,
				Arguments:    fc.Arguments,
				Response:     fc.Response,
				CreatedAt:    fc.CreatedAt.UTC(),
				Seq:          int64(j),
			}
			job, err := bulkWriter.Create(r.callsCollection(t.ID).Doc(fc.ID), doc)
			if err != nil {
				return goerr.Wrap(err, "failed to add function call to bulk writer",
					goerr.V(model.TraceIDKey, t.ID),
					goerr.V("function_call_id", fc.ID))
			}
			jobs = append(jobs, job)
		}
	}

	bulkWriter.Flush()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return model.WrapRepository(err, "failed to import traces")
		}
	}
	return nil
}
