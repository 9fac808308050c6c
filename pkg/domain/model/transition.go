package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
)

// ReviewAction is a reviewer operation that changes the status of a trace
type ReviewAction string

const (
	ReviewActionAccept ReviewAction = "accept"
	ReviewActionReject ReviewAction = "reject"
	ReviewActionReset  ReviewAction = "reset"
)

func (a ReviewAction) String() string {
	return string(a)
}

// Target returns the status a successful action moves the trace to
func (a ReviewAction) Target() types.EvalStatus {
	switch a {
	case ReviewActionAccept:
		return types.EvalStatusAccepted
	case ReviewActionReject:
		return types.EvalStatusRejected
	default:
		return types.EvalStatusPending
	}
}

// CheckTransition decides whether action may be applied to current. A nil
// current means the full record is not loaded yet, which refuses every
// action.
//
//	Pending  --accept-->       Accepted
//	Pending  --reject(reason)-> Rejected
//	Accepted --reset-->        Pending
//	Rejected --reset-->        Pending
//
// Accepted and Rejected never move into each other directly.
func CheckTransition(current *Trace, action ReviewAction, reason string) error {
	if current == nil {
		return goerr.Wrap(ErrInvalidTransition, "trace detail is not loaded", goerr.V(ActionKey, action))
	}

	switch action {
	case ReviewActionAccept, ReviewActionReject:
		if current.Status != types.EvalStatusPending {
			return goerr.Wrap(ErrInvalidTransition, "trace is already evaluated",
				goerr.V(TraceIDKey, current.ID),
				goerr.V(StatusKey, current.Status),
				goerr.V(ActionKey, action),
			)
		}
		if action == ReviewActionReject && strings.TrimSpace(reason) == "" {
			return goerr.Wrap(ErrValidation, "reject reason is required", goerr.V(TraceIDKey, current.ID))
		}
		return nil

	case ReviewActionReset:
		if current.Status == types.EvalStatusPending {
			return goerr.Wrap(ErrInvalidTransition, "trace is already pending",
				goerr.V(TraceIDKey, current.ID),
				goerr.V(ActionKey, action),
			)
		}
		return nil

	default:
		return goerr.Wrap(ErrValidation, "unknown review action", goerr.V(ActionKey, action))
	}
}

// CheckEditable decides whether the editable output of current may be
// overwritten
func CheckEditable(current *Trace) error {
	if current == nil {
		return goerr.Wrap(ErrValidation, "trace detail is not loaded")
	}
	return nil
}
