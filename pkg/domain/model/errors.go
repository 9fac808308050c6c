package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrNotFound is returned when no trace has the requested ID
	ErrNotFound = goerr.New("trace not found")

	// ErrRepository wraps transport and query failures of the trace store
	ErrRepository = goerr.New("repository error")

	// ErrValidation is returned for input that can never succeed, such as a
	// rejection without a reason
	ErrValidation = goerr.New("validation error")

	// ErrInvalidTransition is returned when a review action is not allowed
	// from the current state of the trace
	ErrInvalidTransition = goerr.New("invalid status transition")

	// ErrPermissionDenied is returned when the caller may not update records
	ErrPermissionDenied = goerr.New("permission denied")

	// ErrUnauthenticated is returned when a presented credential is invalid
	ErrUnauthenticated = goerr.New("unauthenticated")
)

// Context keys for error values
const (
	TraceIDKey    = "trace_id"
	StatusKey     = "status"
	ActionKey     = "action"
	ToolKey       = "tool"
	ScenarioKey   = "scenario"
	DataSourceKey = "data_source"
	DaysKey       = "days"
)

// WrapRepository converts a store failure into ErrRepository. The cause is
// kept as a value because driver errors carry no stack of their own.
func WrapRepository(cause error, msg string, opts ...goerr.Option) error {
	opts = append(opts, goerr.V("cause", cause.Error()))
	return goerr.Wrap(ErrRepository, msg, opts...)
}
