package usecase

import "fmt"

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorRateLimited  ErrorCode = "RATE_LIMITED"
	ErrorUpstream     ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
)

// Stage names the gateway call a failure happened in.
type Stage string

const (
	StageValidate Stage = "validate"
	StageSearch   Stage = "search"
	StageComplete Stage = "complete"
)

// Error is the pipeline failure surfaced to handlers. Every gateway failure
// is terminal for the query that caused it.
type Error struct {
	Code   ErrorCode
	Stage  Stage
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, stage Stage, reason string, err error) *Error {
	return &Error{Code: code, Stage: stage, Reason: reason, Err: err}
}
