package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/domain/types"
)

// ReminderID is the opaque identifier of a reminder
type ReminderID string

// NewReminderID generates a new UUID v4 ReminderID. IDs are never reused,
// even after the reminder is deleted.
func NewReminderID() ReminderID {
	return ReminderID(uuid.New().String())
}

func (id ReminderID) String() string {
	return string(id)
}

// Reminder is one intention to follow up on a conversation at a fixed time.
// ConversationLabel is a snapshot taken at creation and is never re-synced.
type Reminder struct {
	ID                ReminderID
	ConversationID    string
	ConversationLabel string
	ScheduledAt       time.Time
	CreatedAt         time.Time
	Status            types.ReminderStatus
	CompletedAt       *time.Time
}

// ErrReminderAlreadyCompleted is returned when completing a completed reminder
var ErrReminderAlreadyCompleted = goerr.New("reminder already completed")

// IsPending reports whether the reminder still awaits user action
func (r *Reminder) IsPending() bool {
	return r.Status == types.ReminderStatusPending
}

// IsOverdue is the derived view of a pending reminder whose time has passed
func (r *Reminder) IsOverdue(now time.Time) bool {
	return r.IsPending() && !r.ScheduledAt.After(now)
}

// Complete moves the reminder to completed. It is one-way; CompletedAt is
// never overwritten.
func (r *Reminder) Complete(now time.Time) error {
	if r.Status == types.ReminderStatusCompleted {
		return goerr.Wrap(ErrReminderAlreadyCompleted, "cannot complete reminder", goerr.V("reminder_id", r.ID))
	}
	completedAt := now
	r.Status = types.ReminderStatusCompleted
	r.CompletedAt = &completedAt
	return nil
}

// IsExpired reports whether a completed reminder is past the retention window
func (r *Reminder) IsExpired(now time.Time, retention time.Duration) bool {
	if r.Status != types.ReminderStatusCompleted || r.CompletedAt == nil {
		return false
	}
	return now.Sub(*r.CompletedAt) > retention
}

// AlarmKey returns the schedule entry name of this reminder
func (r *Reminder) AlarmKey() string {
	return AlarmKey(r.ID)
}

// Copy returns a deep copy of the reminder
func (r *Reminder) Copy() *Reminder {
	copied := *r
	if r.CompletedAt != nil {
		completedAt := *r.CompletedAt
		copied.CompletedAt = &completedAt
	}
	return &copied
}

// CopyReminders deep-copies a collection
func CopyReminders(reminders []*Reminder) []*Reminder {
	copied := make([]*Reminder, len(reminders))
	for i, r := range reminders {
		copied[i] = r.Copy()
	}
	return copied
}

// reminderJSON is the wire form of a Reminder. Times are epoch milliseconds.
type reminderJSON struct {
	ID                ReminderID           `json:"id"`
	ConversationID    string               `json:"conversationId"`
	ConversationLabel string               `json:"conversationLabel"`
	ScheduledAt       int64                `json:"scheduledAt"`
	CreatedAt         int64                `json:"createdAt"`
	Status            types.ReminderStatus `json:"status"`
	CompletedAt       *int64               `json:"completedAt"`
}

// MarshalJSON encodes the reminder with epoch millisecond timestamps
func (r Reminder) MarshalJSON() ([]byte, error) {
	v := reminderJSON{
		ID:                r.ID,
		ConversationID:    r.ConversationID,
		ConversationLabel: r.ConversationLabel,
		ScheduledAt:       r.ScheduledAt.UnixMilli(),
		CreatedAt:         r.CreatedAt.UnixMilli(),
		Status:            r.Status,
	}
	if r.CompletedAt != nil {
		ms := r.CompletedAt.UnixMilli()
		v.CompletedAt = &ms
	}
	return json.Marshal(v)
}

// UnmarshalJSON decodes the epoch millisecond wire form
func (r *Reminder) UnmarshalJSON(data []byte) error {
	var v reminderJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return goerr.Wrap(err, "failed to decode reminder")
	}
	r.ID = v.ID
	r.ConversationID = v.ConversationID
	r.ConversationLabel = v.ConversationLabel
	r.ScheduledAt = time.UnixMilli(v.ScheduledAt).UTC()
	r.CreatedAt = time.UnixMilli(v.CreatedAt).UTC()
	r.Status = v.Status
	r.CompletedAt = nil
	if v.CompletedAt != nil {
		completedAt := time.UnixMilli(*v.CompletedAt).UTC()
		r.CompletedAt = &completedAt
	}
	return nil
}
