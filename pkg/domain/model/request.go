package model

import (
	"math"
	"strings"
	"time"
)

// CreateReminderRequest is the payload of a reminder creation attempt.
// ScheduledAt is epoch milliseconds as supplied by a time picker.
type CreateReminderRequest struct {
	ConversationID    string  `json:"conversationId"`
	ConversationLabel string  `json:"conversationLabel"`
	ScheduledAt       float64 `json:"scheduledAt"`
}

// Validation messages returned to the caller verbatim
const (
	MsgConversationIDRequired    = "Conversation ID is required"
	MsgConversationIDInvalid     = "Invalid conversation ID format"
	MsgConversationLabelRequired = "Conversation name is required"
	MsgScheduledAtInvalid        = "Scheduled time must be a valid timestamp"
	MsgScheduledAtInPast         = "Scheduled time must be in the future"
)

// MaxScheduledAt is the latest accepted epoch millisecond, the upper bound of
// an ECMAScript date (year 275760)
const MaxScheduledAt = 8.64e15

// ValidationError describes the first failing check of a request
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks shape and range of the request against the wall clock at
// submission. It returns the first failing check only and has no side effects.
func (r *CreateReminderRequest) Validate(now time.Time) error {
	id := strings.TrimSpace(r.ConversationID)
	if id == "" {
		return &ValidationError{Field: "conversationId", Message: MsgConversationIDRequired}
	}
	if !IsValidConversationID(id) {
		return &ValidationError{Field: "conversationId", Message: MsgConversationIDInvalid}
	}

	if strings.TrimSpace(r.ConversationLabel) == "" {
		return &ValidationError{Field: "conversationLabel", Message: MsgConversationLabelRequired}
	}

	if math.IsNaN(r.ScheduledAt) || math.IsInf(r.ScheduledAt, 0) || r.ScheduledAt > MaxScheduledAt {
		return &ValidationError{Field: "scheduledAt", Message: MsgScheduledAtInvalid}
	}
	if r.ScheduledAt <= float64(now.UnixMilli()) {
		return &ValidationError{Field: "scheduledAt", Message: MsgScheduledAtInPast}
	}

	return nil
}

// ScheduledTime returns ScheduledAt as a time value
func (r *CreateReminderRequest) ScheduledTime() time.Time {
	return time.UnixMilli(int64(r.ScheduledAt)).UTC()
}
