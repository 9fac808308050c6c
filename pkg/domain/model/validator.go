package model

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
)

// TraceValidator checks traces entering the store against the active schema
type TraceValidator struct {
	schema types.EnumSchema
}

// NewTraceValidator creates a new TraceValidator with the given schema
func NewTraceValidator(schema types.EnumSchema) *TraceValidator {
	return &TraceValidator{
		schema: schema,
	}
}

// Normalize fills defaults of historical rows: a missing ID is generated, a
// missing status becomes Pending, a missing editable output starts as the
// assistant response and a missing timestamp is now. Reject reasons are
// dropped unless the trace is Rejected.
func (v *TraceValidator) Normalize(t *Trace, now time.Time) {
	if t.ID == "" {
		t.ID = NewTraceID()
	}
	if t.Status == "" {
		t.Status = types.EvalStatusPending
	}
	if t.EditableOutput == "" {
		t.EditableOutput = t.AssistantResponse
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.CreatedAt = t.CreatedAt.UTC()
	if t.Status != types.EvalStatusRejected {
		t.RejectReason = nil
	}

	for i, fc := range t.FunctionCalls {
		if fc.ID == "" {
			fc.ID = string(NewTraceID())
		}
		fc.TraceID = t.ID
		if fc.CreatedAt.IsZero() {
			// keep the given order when timestamps are absent
			fc.CreatedAt = t.CreatedAt.Add(time.Duration(i) * time.Microsecond)
		}
		fc.CreatedAt = fc.CreatedAt.UTC()
	}
}

// Validate returns ErrValidation when a field is outside its closed set
func (v *TraceValidator) Validate(t *Trace) error {
	if t == nil {
		return goerr.Wrap(ErrValidation, "trace is nil")
	}
	if strings.TrimSpace(t.UserMessage) == "" {
		return goerr.Wrap(ErrValidation, "user message is required", goerr.V(TraceIDKey, t.ID))
	}
	if !t.Status.IsValid() {
		return goerr.Wrap(ErrValidation, "invalid status", goerr.V(TraceIDKey, t.ID), goerr.V(StatusKey, t.Status))
	}
	if !t.LLMScore.IsValid() {
		return goerr.Wrap(ErrValidation, "invalid llm score", goerr.V(TraceIDKey, t.ID), goerr.V("llm_score", t.LLMScore))
	}
	if !v.schema.IsValidTool(t.Tool) {
		return goerr.Wrap(ErrValidation, "unknown tool", goerr.V(TraceIDKey, t.ID), goerr.V(ToolKey, t.Tool))
	}
	if !v.schema.IsValidScenario(t.Scenario) {
		return goerr.Wrap(ErrValidation, "unknown scenario", goerr.V(TraceIDKey, t.ID), goerr.V(ScenarioKey, t.Scenario))
	}
	if !v.schema.IsValidDataSource(t.DataSource) {
		return goerr.Wrap(ErrValidation, "unknown data source", goerr.V(TraceIDKey, t.ID), goerr.V(DataSourceKey, t.DataSource))
	}
	for _, fc := range t.FunctionCalls {
		if fc.FunctionName == "" {
			return goerr.Wrap(ErrValidation, "function name is required", goerr.V(TraceIDKey, t.ID), goerr.V("function_call_id", fc.ID))
		}
	}
	return nil
}
