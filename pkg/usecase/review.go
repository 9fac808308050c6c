package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/domain/interfaces"
	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
	"github.com/secmon-lab/tracedesk/pkg/utils/logging"
)

// ReviewUseCase applies reviewer operations to stored traces. Every write
// checks the capability of the caller and the status of the stored record.
type ReviewUseCase struct {
	repo   interfaces.Repository
	schema types.EnumSchema
}

func NewReviewUseCase(repo interfaces.Repository, schema types.EnumSchema) *ReviewUseCase {
	return &ReviewUseCase{
		repo:   repo,
		schema: schema,
	}
}

func (uc *ReviewUseCase) ListTraces(ctx context.Context, filter model.TraceFilter) ([]*model.TraceSummary, error) {
	if err := filter.Validate(uc.schema); err != nil {
		return nil, err
	}

	summaries, err := uc.repo.Trace().ListSummaries(ctx, filter)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list traces")
	}
	return summaries, nil
}

func (uc *ReviewUseCase) GetTrace(ctx context.Context, id model.TraceID) (*model.Trace, error) {
	trace, err := uc.repo.Trace().GetDetail(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get trace", goerr.V(model.TraceIDKey, id))
	}
	return trace, nil
}

// Accept marks a pending trace as accepted
func (uc *ReviewUseCase) Accept(ctx context.Context, cap model.Capability, id model.TraceID) (*model.Trace, error) {
	return uc.apply(ctx, cap, id, model.ReviewActionAccept, "")
}

// Reject marks a pending trace as rejected. The reason is required.
func (uc *ReviewUseCase) Reject(ctx context.Context, cap model.Capability, id model.TraceID, reason string) (*model.Trace, error) {
	return uc.apply(ctx, cap, id, model.ReviewActionReject, reason)
}

// Reset restores the assistant response as editable output and moves an
// evaluated trace back to pending
func (uc *ReviewUseCase) Reset(ctx context.Context, cap model.Capability, id model.TraceID) (*model.Trace, error) {
	return uc.apply(ctx, cap, id, model.ReviewActionReset, "")
}

// UpdateOutput overwrites the editable output regardless of status
func (uc *ReviewUseCase) UpdateOutput(ctx context.Context, cap model.Capability, id model.TraceID, text string) (*model.Trace, error) {
	if err := requireUpdate(cap); err != nil {
		reviewActions.WithLabelValues("update_output", resultRefused).Inc()
		return nil, err
	}

	current, err := uc.repo.Trace().GetDetail(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get trace", goerr.V(model.TraceIDKey, id))
	}
	if err := model.CheckEditable(current); err != nil {
		reviewActions.WithLabelValues("update_output", resultRefused).Inc()
		return nil, err
	}

	if err := uc.repo.Trace().SetEditableOutput(ctx, id, text); err != nil {
		reviewActions.WithLabelValues("update_output", resultError).Inc()
		return nil, goerr.Wrap(err, "failed to update output", goerr.V(model.TraceIDKey, id))
	}
	reviewActions.WithLabelValues("update_output", resultOK).Inc()

	return uc.GetTrace(ctx, id)
}

func (uc *ReviewUseCase) apply(ctx context.Context, cap model.Capability, id model.TraceID, action model.ReviewAction, reason string) (*model.Trace, error) {
	if err := requireUpdate(cap); err != nil {
		reviewActions.WithLabelValues(action.String(), resultRefused).Inc()
		return nil, err
	}

	current, err := uc.repo.Trace().GetDetail(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get trace", goerr.V(model.TraceIDKey, id))
	}
	if err := model.CheckTransition(current, action, reason); err != nil {
		reviewActions.WithLabelValues(action.String(), resultRefused).Inc()
		return nil, err
	}

	repo := uc.repo.Trace()
	switch action {
	case model.ReviewActionAccept:
		err = repo.SetStatus(ctx, id, types.EvalStatusAccepted, nil)
	case model.ReviewActionReject:
		err = repo.SetStatus(ctx, id, types.EvalStatusRejected, &reason)
	case model.ReviewActionReset:
		// output first so a failure leaves the trace evaluated and retryable
		err = repo.SetEditableOutput(ctx, id, current.AssistantResponse)
		if err == nil {
			err = repo.SetStatus(ctx, id, types.EvalStatusPending, nil)
		}
	}
	if err != nil {
		reviewActions.WithLabelValues(action.String(), resultError).Inc()
		return nil, goerr.Wrap(err, "failed to apply review action",
			goerr.V(model.TraceIDKey, id),
			goerr.V(model.ActionKey, action))
	}
	reviewActions.WithLabelValues(action.String(), resultOK).Inc()

	logging.From(ctx).Info("review action applied",
		model.TraceIDKey, id,
		model.ActionKey, action,
		model.StatusKey, action.Target(),
	)

	return uc.GetTrace(ctx, id)
}

func requireUpdate(cap model.Capability) error {
	if cap == nil || !cap.CanUpdateRecords() {
		return goerr.Wrap(model.ErrPermissionDenied, "caller cannot update records")
	}
	return nil
}
