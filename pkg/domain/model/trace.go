package model

import (
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
)

// TraceID is the opaque identifier of a trace
type TraceID string

// NewTraceID generates a new random trace ID
func NewTraceID() TraceID {
	return TraceID(uuid.NewString())
}

func (id TraceID) String() string {
	return string(id)
}

// Trace is one recorded user/assistant interaction under review
type Trace struct {
	ID                TraceID
	UserMessage       string
	AssistantResponse string // original answer, never modified after creation
	EditableOutput    string
	Status            types.EvalStatus
	LLMScore          types.LLMScore
	RejectReason      *string
	Tool              types.Tool
	Scenario          types.Scenario
	DataSource        types.DataSource
	CreatedAt         time.Time

	// FunctionCalls is populated only by detail reads
	FunctionCalls []*FunctionCall
}

// TraceSummary is the list projection of a Trace. It carries no response
// text and no function calls to keep large listings small.
type TraceSummary struct {
	ID          TraceID
	UserMessage string
	Status      types.EvalStatus
	LLMScore    types.LLMScore
	Tool        types.Tool
	Scenario    types.Scenario
	DataSource  types.DataSource
	CreatedAt   time.Time
}

// FunctionCall is a tool invocation recorded while producing a response
type FunctionCall struct {
	ID           string
	TraceID      TraceID
	FunctionName string
	Arguments    map[string]any
	Response     map[string]any // nil when the call had no observable result
	CreatedAt    time.Time
}

// NewTrace creates a pending trace whose editable output starts as a copy of
// the assistant response.
func NewTrace(userMessage, assistantResponse string, score types.LLMScore, tool types.Tool, scenario types.Scenario, source types.DataSource) *Trace {
	return &Trace{
		ID:                NewTraceID(),
		UserMessage:       userMessage,
		AssistantResponse: assistantResponse,
		EditableOutput:    assistantResponse,
		Status:            types.EvalStatusPending,
		LLMScore:          score,
		Tool:              tool,
		Scenario:          scenario,
		DataSource:        source,
		CreatedAt:         time.Now().UTC(),
	}
}

// Summary returns the list projection of the trace
func (t *Trace) Summary() *TraceSummary {
	return &TraceSummary{
		ID:          t.ID,
		UserMessage: t.UserMessage,
		Status:      t.Status,
		LLMScore:    t.LLMScore,
		Tool:        t.Tool,
		Scenario:    t.Scenario,
		DataSource:  t.DataSource,
		CreatedAt:   t.CreatedAt,
	}
}

// IsAgreed reports whether the human and automated judgments concur
func (t *Trace) IsAgreed() bool {
	return isAgreed(t.Status, t.LLMScore)
}

func isAgreed(status types.EvalStatus, score types.LLMScore) bool {
	return (status == types.EvalStatusAccepted && score == types.LLMScorePass) ||
		(status == types.EvalStatusRejected && score == types.LLMScoreFail)
}

// Clone returns a deep copy of the trace including its function calls
func (t *Trace) Clone() *Trace {
	if t == nil {
		return nil
	}
	c := *t
	if t.RejectReason != nil {
		reason := *t.RejectReason
		c.RejectReason = &reason
	}
	if t.FunctionCalls != nil {
		c.FunctionCalls = make([]*FunctionCall, len(t.FunctionCalls))
		for i, fc := range t.FunctionCalls {
			c.FunctionCalls[i] = fc.Clone()
		}
	}
	return &c
}

// Clone returns a copy of the call. Payload maps are copied one level deep.
func (fc *FunctionCall) Clone() *FunctionCall {
	if fc == nil {
		return nil
	}
	c := *fc
	if fc.Arguments != nil {
		c.Arguments = maps.Clone(fc.Arguments)
	}
	if fc.Response != nil {
		c.Response = maps.Clone(fc.Response)
	}
	return &c
}

// Ptr returns a pointer to the given string. Used for optional fields.
func Ptr(s string) *string {
	return &s
}
