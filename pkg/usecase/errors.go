package usecase

import (
	"errors"
	"fmt"
)

// Sentinel errors for use case layer. Engine operations fail with exactly one
// of them, carried by a *UserError.
var (
	ErrValidation       = errors.New("invalid reminder request")
	ErrPlanLimit        = errors.New("plan limit reached")
	ErrStorageQuota     = errors.New("storage nearly full")
	ErrReminderNotFound = errors.New("reminder not found")
	ErrAlreadyCompleted = errors.New("reminder already completed")
	ErrStorage          = errors.New("storage failure")
)

// Context keys for error values
const (
	ReminderIDKey = "reminder_id"
	PlanTypeKey   = "plan_type"
	LimitKey      = "limit"
)

// Error codes exposed at the message boundary so collaborators can attach
// a call to action (e.g. upsell on PLAN_LIMIT)
const (
	CodeValidation       = "VALIDATION"
	CodePlanLimit        = "PLAN_LIMIT"
	CodeStorageQuota     = "STORAGE_QUOTA"
	CodeNotFound         = "NOT_FOUND"
	CodeAlreadyCompleted = "ALREADY_COMPLETED"
	CodeStorage          = "STORAGE"
)

// MsgStorageFailure is shown for storage failures and for any error the
// engine does not classify.
const MsgStorageFailure = "Failed to save. Please try again."

// UserError pairs an error kind with a human-readable message. The
// underlying cause, if any, stays reachable through errors.Is and errors.As.
type UserError struct {
	kind    error
	code    string
	message string
	cause   error
}

func (e *UserError) Error() string {
	return e.message
}

func (e *UserError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

// Message returns the user-facing text
func (e *UserError) Message() string {
	return e.message
}

// Code returns the machine-readable error code
func (e *UserError) Code() string {
	return e.code
}

// NewValidationError reports a malformed request with the given message
func NewValidationError(msg string) *UserError {
	return &UserError{kind: ErrValidation, code: CodeValidation, message: msg}
}

func newPlanLimitError(limit int) *UserError {
	return &UserError{
		kind: ErrPlanLimit,
		code: CodePlanLimit,
		message: fmt.Sprintf("You have reached your limit of %d active reminders. "+
			"Complete or delete a reminder, or upgrade your plan for unlimited reminders.", limit),
	}
}

func newStorageQuotaError(utilization float64, cause error) *UserError {
	return &UserError{
		kind:  ErrStorageQuota,
		code:  CodeStorageQuota,
		cause: cause,
		message: fmt.Sprintf("Storage is almost full (%.0f%% used). "+
			"Delete old reminders to free up space.", utilization*100),
	}
}

func newNotFoundError() *UserError {
	return &UserError{
		kind:    ErrReminderNotFound,
		code:    CodeNotFound,
		message: "Reminder not found. It may have been deleted; refresh the list.",
	}
}

func newAlreadyCompletedError() *UserError {
	return &UserError{
		kind:    ErrAlreadyCompleted,
		code:    CodeAlreadyCompleted,
		message: "This reminder is already completed.",
	}
}

func newStorageError(cause error) *UserError {
	return &UserError{kind: ErrStorage, code: CodeStorage, message: MsgStorageFailure, cause: cause}
}

// UserMessage renders err for the message boundary
func UserMessage(err error) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.message
	}
	return MsgStorageFailure
}

// ErrorCode returns the boundary error code of err
func ErrorCode(err error) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.code
	}
	return CodeStorage
}
