package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
)

func TestTraceFilter_Setters(t *testing.T) {
	f := model.TraceFilter{}.
		WithTool("Email-Draft").
		WithStatus(types.EvalStatusRejected)

	f = f.WithScenario("Market-Research")
	gt.Value(t, *f.Tool).Equal(types.Tool("Email-Draft"))
	gt.Value(t, *f.Status).Equal(types.EvalStatusRejected)
	gt.Value(t, *f.Scenario).Equal(types.Scenario("Market-Research"))
	gt.Value(t, f.DataSource).Nil()

	f = f.WithTool("")
	gt.Value(t, f.Tool).Nil()
	gt.Value(t, *f.Status).Equal(types.EvalStatusRejected)
}

func TestTraceFilter_Matches(t *testing.T) {
	trace := &model.Trace{
		Tool:       "Email-Draft",
		Scenario:   "Offer-Submission",
		Status:     types.EvalStatusAccepted,
		DataSource: "Human",
	}

	tests := []struct {
		name   string
		filter model.TraceFilter
		want   bool
	}{
		{name: "empty filter", filter: model.TraceFilter{}, want: true},
		{name: "tool match", filter: model.TraceFilter{}.WithTool("Email-Draft"), want: true},
		{name: "tool mismatch", filter: model.TraceFilter{}.WithTool("Listing-Finder"), want: false},
		{name: "status mismatch", filter: model.TraceFilter{}.WithStatus(types.EvalStatusPending), want: false},
		{
			name:   "all fields match",
			filter: model.TraceFilter{}.WithTool("Email-Draft").WithScenario("Offer-Submission").WithStatus(types.EvalStatusAccepted).WithDataSource("Human"),
			want:   true,
		},
		{
			name:   "one of many mismatch",
			filter: model.TraceFilter{}.WithTool("Email-Draft").WithDataSource("Synthetic"),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, tt.filter.Matches(trace)).Equal(tt.want)
		})
	}
}

func TestTraceFilter_ForStats(t *testing.T) {
	f := model.TraceFilter{}.WithTool("Email-Draft").WithStatus(types.EvalStatusPending)
	s := f.ForStats()

	gt.Value(t, s.Status).Nil()
	gt.Value(t, *s.Tool).Equal(types.Tool("Email-Draft"))
	// original is untouched
	gt.Value(t, f.Status).NotNil()
}

func TestTraceFilter_Key(t *testing.T) {
	a := model.TraceFilter{}.WithTool("Email-Draft")
	b := model.TraceFilter{}.WithTool("Email-Draft")
	c := model.TraceFilter{}.WithScenario("Email-Draft")

	gt.Value(t, a.Key()).Equal(b.Key())
	gt.Value(t, a.Key()).NotEqual(c.Key())
	gt.Value(t, model.TraceFilter{}.Key()).NotEqual(a.Key())
	gt.B(t, model.TraceFilter{}.IsEmpty()).True()
	gt.B(t, a.IsEmpty()).False()
}

func TestTraceFilter_Validate(t *testing.T) {
	gt.NoError(t, model.TraceFilter{}.WithTool("Email-Draft").Validate(types.SchemaV2))

	err := model.TraceFilter{}.WithTool("Claude").Validate(types.SchemaV2)
	gt.Error(t, err).Is(model.ErrValidation)

	err = model.TraceFilter{}.WithStatus("Done").Validate(types.SchemaV2)
	gt.Error(t, err).Is(model.ErrValidation)

	err = model.TraceFilter{}.WithDataSource("Human").Validate(types.SchemaV1)
	gt.Error(t, err).Is(model.ErrValidation)
}
