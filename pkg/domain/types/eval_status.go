package types

import "fmt"

// EvalStatus is the reviewer's disposition of a trace
type EvalStatus string

const (
	EvalStatusPending  EvalStatus = "Pending"
	EvalStatusAccepted EvalStatus = "Accepted"
	EvalStatusRejected EvalStatus = "Rejected"
)

// AllEvalStatuses returns all valid evaluation statuses
func AllEvalStatuses() []EvalStatus {
	return []EvalStatus{
		EvalStatusPending,
		EvalStatusAccepted,
		EvalStatusRejected,
	}
}

// IsValid checks if the evaluation status is valid
func (s EvalStatus) IsValid() bool {
	switch s {
	case EvalStatusPending,
		EvalStatusAccepted,
		EvalStatusRejected:
		return true
	default:
		return false
	}
}

// IsEvaluated reports whether a reviewer has made a decision, i.e. the
// status is not Pending.
func (s EvalStatus) IsEvaluated() bool {
	return s == EvalStatusAccepted || s == EvalStatusRejected
}

func (s EvalStatus) String() string {
	return string(s)
}

// ParseEvalStatus parses a string into an EvalStatus
func ParseEvalStatus(s string) (EvalStatus, error) {
	status := EvalStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid eval status: %s", s)
	}
	return status, nil
}
