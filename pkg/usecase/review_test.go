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

var reviewer = &model.Principal{Subject: "alice", SignedIn: true, Role: types.RoleReviewer}

func setupReview(t *testing.T) (*usecase.UseCases, *model.Trace) {
	t.Helper()

	repo := memory.New()
	trace := model.NewTrace("find listings", "**three** listings found", types.LLMScorePass, "Listing-Finder", "Multiple-Listings", "Human")
	trace.CreatedAt = time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)
	gt.NoError(t, repo.Trace().Import(context.Background(), []*model.Trace{trace})).Required()

	return usecase.New(repo), trace
}

func TestReviewUseCase_Accept(t *testing.T) {
	ctx := context.Background()
	uc, trace := setupReview(t)

	got, err := uc.Review.Accept(ctx, reviewer, trace.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, got.Status).Equal(types.EvalStatusAccepted)

	_, err = uc.Review.Accept(ctx, reviewer, trace.ID)
	gt.Error(t, err).Is(model.ErrInvalidTransition)

	_, err = uc.Review.Reject(ctx, reviewer, trace.ID, "late change")
	gt.Error(t, err).Is(model.ErrInvalidTransition)
}

func TestReviewUseCase_Reject(t *testing.T) {
	ctx := context.Background()
	uc, trace := setupReview(t)

	_, err := uc.Review.Reject(ctx, reviewer, trace.ID, "")
	gt.Error(t, err).Is(model.ErrValidation)

	got, err := uc.Review.Reject(ctx, reviewer, trace.ID, "wrong listing")
	gt.NoError(t, err).Required()
	gt.Value(t, got.Status).Equal(types.EvalStatusRejected)
	gt.Value(t, got.RejectReason).NotNil().Required()
	gt.Value(t, *got.RejectReason).Equal("wrong listing")
}

func TestReviewUseCase_Reset(t *testing.T) {
	ctx := context.Background()
	uc, trace := setupReview(t)

	_, err := uc.Review.Reset(ctx, reviewer, trace.ID)
	gt.Error(t, err).Is(model.ErrInvalidTransition)

	_, err = uc.Review.UpdateOutput(ctx, reviewer, trace.ID, "two listings")
	gt.NoError(t, err).Required()
	_, err = uc.Review.Reject(ctx, reviewer, trace.ID, "count is wrong")
	gt.NoError(t, err).Required()

	got, err := uc.Review.Reset(ctx, reviewer, trace.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, got.Status).Equal(types.EvalStatusPending)
	gt.Value(t, got.EditableOutput).Equal(trace.AssistantResponse)
	gt.Value(t, got.RejectReason).Nil()
}

func TestReviewUseCase_PermissionDenied(t *testing.T) {
	ctx := context.Background()
	uc, trace := setupReview(t)

	inspector := &model.Principal{Subject: "bob", SignedIn: true, Role: types.RoleInspector}
	anonymous := model.NewAnonymous()

	for _, cap := range []model.Capability{inspector, anonymous, nil} {
		_, err := uc.Review.Accept(ctx, cap, trace.ID)
		gt.Error(t, err).Is(model.ErrPermissionDenied)

		_, err = uc.Review.UpdateOutput(ctx, cap, trace.ID, "x")
		gt.Error(t, err).Is(model.ErrPermissionDenied)
	}

	got, err := uc.Review.GetTrace(ctx, trace.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, got.Status).Equal(types.EvalStatusPending)
	gt.Value(t, got.EditableOutput).Equal(trace.AssistantResponse)
}

func TestReviewUseCase_NotFound(t *testing.T) {
	ctx := context.Background()
	uc, _ := setupReview(t)

	_, err := uc.Review.GetTrace(ctx, "missing")
	gt.Error(t, err).Is(model.ErrNotFound)

	_, err = uc.Review.Accept(ctx, reviewer, "missing")
	gt.Error(t, err).Is(model.ErrNotFound)
}

func TestReviewUseCase_ListTraces(t *testing.T) {
	ctx := context.Background()
	uc, trace := setupReview(t)

	summaries, err := uc.Review.ListTraces(ctx, model.TraceFilter{}.WithTool("Listing-Finder"))
	gt.NoError(t, err).Required()
	gt.Array(t, summaries).Length(1).Required()
	gt.Value(t, summaries[0].ID).Equal(trace.ID)

	_, err = uc.Review.ListTraces(ctx, model.TraceFilter{}.WithTool("ChatGPT"))
	gt.Error(t, err).Is(model.ErrValidation)
}
