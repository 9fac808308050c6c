package usecase

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/domain/interfaces"
	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
	"github.com/secmon-lab/tracedesk/pkg/utils/logging"
)

const defaultImportBatchSize = 200

// TraceRecord is one line of a JSON Lines trace export
type TraceRecord struct {
	ID                string                `json:"id,omitempty"`
	UserMessage       string                `json:"user_message"`
	AssistantResponse string                `json:"assistant_response"`
	EditableOutput    string                `json:"editable_output,omitempty"`
	Status            string                `json:"status,omitempty"`
	LLMScore          string                `json:"llm_score"`
	RejectReason      *string               `json:"reject_reason,omitempty"`
	Tool              string                `json:"tool"`
	Scenario          string                `json:"scenario"`
	DataSource        string                `json:"data_source"`
	CreatedAt         *time.Time            `json:"created_at,omitempty"`
	FunctionCalls     []*FunctionCallRecord `json:"function_calls,omitempty"`
}

// FunctionCallRecord is a function call nested in a TraceRecord
type FunctionCallRecord struct {
	ID           string         `json:"id,omitempty"`
	FunctionName string         `json:"function_name"`
	Arguments    map[string]any `json:"function_arguments,omitempty"`
	Response     map[string]any `json:"function_response,omitempty"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
}

func (r *TraceRecord) toModel() *model.Trace {
	t := &model.Trace{
		ID:                model.TraceID(r.ID),
		UserMessage:       r.UserMessage,
		AssistantResponse: r.AssistantResponse,
		EditableOutput:    r.EditableOutput,
		Status:            types.EvalStatus(r.Status),
		LLMScore:          types.LLMScore(r.LLMScore),
		RejectReason:      r.RejectReason,
		Tool:              types.Tool(r.Tool),
		Scenario:          types.Scenario(r.Scenario),
		DataSource:        types.DataSource(r.DataSource),
	}
	if r.CreatedAt != nil {
		t.CreatedAt = *r.CreatedAt
	}
	for _, fc := range r.FunctionCalls {
		call := &model.FunctionCall{
			ID:           fc.ID,
			FunctionName: fc.FunctionName,
			Arguments:    fc.Arguments,
			Response:     fc.Response,
		}
		if fc.CreatedAt != nil {
			call.CreatedAt = *fc.CreatedAt
		}
		t.FunctionCalls = append(t.FunctionCalls, call)
	}
	return t
}

// ImportUseCase loads historical traces into the store
type ImportUseCase struct {
	repo      interfaces.Repository
	validator *model.TraceValidator
	now       func() time.Time
	batchSize int
}

func NewImportUseCase(repo interfaces.Repository, schema types.EnumSchema, now func() time.Time) *ImportUseCase {
	if now == nil {
		now = time.Now
	}
	return &ImportUseCase{
		repo:      repo,
		validator: model.NewTraceValidator(schema),
		now:       now,
		batchSize: defaultImportBatchSize,
	}
}

// ImportResult reports how many traces were written
type ImportResult struct {
	Imported int
	Batches  int
}

// ImportJSONLines reads one TraceRecord per line and writes them in batches.
// Every line is validated before the first batch is written, so a malformed
// file leaves the store untouched.
func (uc *ImportUseCase) ImportJSONLines(ctx context.Context, r io.Reader) (*ImportResult, error) {
	traces, err := uc.decode(r)
	if err != nil {
		return nil, err
	}
	return uc.ImportTraces(ctx, traces)
}

// ImportTraces normalizes, validates and writes traces
func (uc *ImportUseCase) ImportTraces(ctx context.Context, traces []*model.Trace) (*ImportResult, error) {
	now := uc.now().UTC()
	seen := make(map[model.TraceID]struct{}, len(traces))
	for _, t := range traces {
		uc.validator.Normalize(t, now)
		if err := uc.validator.Validate(t); err != nil {
			return nil, err
		}
		// IDs are unique within one import
		if _, ok := seen[t.ID]; ok {
			return nil, goerr.Wrap(model.ErrValidation, "duplicate trace ID", goerr.V(model.TraceIDKey, t.ID))
		}
		seen[t.ID] = struct{}{}
	}

	result := &ImportResult{}
	for start := 0; start < len(traces); start += uc.batchSize {
		end := min(start+uc.batchSize, len(traces))
		if err := uc.repo.Trace().Import(ctx, traces[start:end]); err != nil {
			return result, goerr.Wrap(err, "failed to import batch",
				goerr.V("batch", result.Batches),
				goerr.V("imported", result.Imported))
		}
		result.Imported += end - start
		result.Batches++
		importedTraces.Add(float64(end - start))
	}

	logging.From(ctx).Info("traces imported", "count", result.Imported, "batches", result.Batches)
	return result, nil
}

func (uc *ImportUseCase) decode(r io.Reader) ([]*model.Trace, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var traces []*model.Trace
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var record TraceRecord
		if err := json.Unmarshal([]byte(text), &record); err != nil {
			return nil, goerr.Wrap(model.ErrValidation, "malformed trace record",
				goerr.V("line", line),
				goerr.V("cause", err.Error()))
		}
		traces = append(traces, record.toModel())
	}
	if err := scanner.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to read trace records", goerr.V("line", line))
	}
	return traces, nil
}
