package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
	"github.com/secmon-lab/tracedesk/pkg/repository/memory"
	"github.com/secmon-lab/tracedesk/pkg/usecase"
)

func TestStatsUseCase_Daily(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 12, 15, 0, 0, 0, time.UTC)
	repo := memory.New(memory.WithClock(func() time.Time { return now }))

	mk := func(id string, at time.Time, status types.EvalStatus, score types.LLMScore) *model.Trace {
		return &model.Trace{
			ID: model.TraceID(id), UserMessage: "q", AssistantResponse: "a", EditableOutput: "a",
			Status: status, LLMScore: score,
			Tool: "Email-Draft", Scenario: "Client-Communication", DataSource: "Synthetic",
			CreatedAt: at,
		}
	}
	gt.NoError(t, repo.Trace().Import(ctx, []*model.Trace{
		mk("a", now.Add(-time.Hour), types.EvalStatusAccepted, types.LLMScorePass),
		mk("b", now.Add(-2*time.Hour), types.EvalStatusRejected, types.LLMScorePass),
		mk("c", now.Add(-24*time.Hour), types.EvalStatusPending, types.LLMScoreFail),
	})).Required()

	uc := usecase.New(repo)

	t.Run("aggregates trailing window", func(t *testing.T) {
		stats, err := uc.Stats.Daily(ctx, 7, model.TraceFilter{})
		gt.NoError(t, err).Required()
		gt.Array(t, stats).Length(2).Required()

		gt.Value(t, stats[0].Date).Equal("2024-03-11")
		gt.Number(t, stats[0].Evaluated).Equal(0)
		gt.Number(t, stats[0].AcceptanceRate).Equal(0.0)

		gt.Value(t, stats[1].Date).Equal("2024-03-12")
		gt.Number(t, stats[1].AcceptanceRate).Equal(50.0)
		gt.Number(t, stats[1].AgreementRate).Equal(50.0)
	})

	t.Run("status filter is ignored", func(t *testing.T) {
		stats, err := uc.Stats.Daily(ctx, 7, model.TraceFilter{}.WithStatus(types.EvalStatusAccepted))
		gt.NoError(t, err).Required()
		gt.Array(t, stats).Length(2)
	})

	t.Run("days must be positive", func(t *testing.T) {
		_, err := uc.Stats.Daily(ctx, 0, model.TraceFilter{})
		gt.Error(t, err).Is(model.ErrValidation)
	})

	t.Run("unknown tool is refused", func(t *testing.T) {
		_, err := uc.Stats.Daily(ctx, 7, model.TraceFilter{}.WithTool("Claude"))
		gt.Error(t, err).Is(model.ErrValidation)
	})
}
