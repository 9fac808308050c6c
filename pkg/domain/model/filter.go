package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
)

// TraceFilter selects traces by classification and status. A nil field
// matches every value.
type TraceFilter struct {
	Tool       *types.Tool
	Scenario   *types.Scenario
	Status     *types.EvalStatus
	DataSource *types.DataSource
}

// WithTool returns a copy of the filter with the tool set. Passing an empty
// value clears the field. Other fields are kept as they are.
func (f TraceFilter) WithTool(v types.Tool) TraceFilter {
	f.Tool = optional(v)
	return f
}

func (f TraceFilter) WithScenario(v types.Scenario) TraceFilter {
	f.Scenario = optional(v)
	return f
}

func (f TraceFilter) WithStatus(v types.EvalStatus) TraceFilter {
	f.Status = optional(v)
	return f
}

func (f TraceFilter) WithDataSource(v types.DataSource) TraceFilter {
	f.DataSource = optional(v)
	return f
}

func optional[T ~string](v T) *T {
	if v == "" {
		return nil
	}
	return &v
}

// ForStats returns the subset of the filter applied to statistics. Status is
// dropped because the rates are computed over statuses.
func (f TraceFilter) ForStats() TraceFilter {
	f.Status = nil
	return f
}

// IsEmpty reports whether no field is set
func (f TraceFilter) IsEmpty() bool {
	return f.Tool == nil && f.Scenario == nil && f.Status == nil && f.DataSource == nil
}

// Matches reports whether the trace satisfies every set field
func (f TraceFilter) Matches(t *Trace) bool {
	if t == nil {
		return false
	}
	if f.Tool != nil && *f.Tool != t.Tool {
		return false
	}
	if f.Scenario != nil && *f.Scenario != t.Scenario {
		return false
	}
	if f.Status != nil && *f.Status != t.Status {
		return false
	}
	if f.DataSource != nil && *f.DataSource != t.DataSource {
		return false
	}
	return true
}

// Key returns a stable string identifying the filter, used as a cache key
func (f TraceFilter) Key() string {
	parts := []string{
		"tool=" + deref(f.Tool),
		"scenario=" + deref(f.Scenario),
		"status=" + deref(f.Status),
		"data_source=" + deref(f.DataSource),
	}
	return strings.Join(parts, "&")
}

func deref[T ~string](v *T) string {
	if v == nil {
		return "*"
	}
	return string(*v)
}

// Validate checks every set field against the schema
func (f TraceFilter) Validate(schema types.EnumSchema) error {
	if f.Tool != nil && !schema.IsValidTool(*f.Tool) {
		return goerr.Wrap(ErrValidation, "unknown tool", goerr.V(ToolKey, *f.Tool))
	}
	if f.Scenario != nil && !schema.IsValidScenario(*f.Scenario) {
		return goerr.Wrap(ErrValidation, "unknown scenario", goerr.V(ScenarioKey, *f.Scenario))
	}
	if f.Status != nil && !f.Status.IsValid() {
		return goerr.Wrap(ErrValidation, "unknown status", goerr.V(StatusKey, *f.Status))
	}
	if f.DataSource != nil && !schema.IsValidDataSource(*f.DataSource) {
		return goerr.Wrap(ErrValidation, "unknown data source", goerr.V(DataSourceKey, *f.DataSource))
	}
	return nil
}
