package apierr

import "fmt"

// Error is the typed error services hand back to the HTTP layer: an HTTP
// status, a stable machine code, and the wrapped cause.
type Error struct {
	Status  int
	Code    string
	Err     error
	Details any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Stable error codes used across handlers and services.
const (
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeNotFound             = "NOT_FOUND"
	CodeDayLocked            = "DAY_LOCKED"
	CodeDayAlreadyComplete   = "DAY_ALREADY_COMPLETE"
	CodeActivitiesIncomplete = "ACTIVITIES_INCOMPLETE"
	CodeConflict             = "CONFLICT"
	CodeGeneratorUnavailable = "GENERATOR_UNAVAILABLE"
	CodeInternal             = "INTERNAL"
)
