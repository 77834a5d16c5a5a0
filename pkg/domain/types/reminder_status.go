package types

import "fmt"

// ReminderStatus represents the lifecycle state of a reminder.
// There is no cancelled or overdue status: deletion removes the record and
// "overdue" is derived from a pending reminder's scheduled time.
type ReminderStatus string

const (
	ReminderStatusPending   ReminderStatus = "pending"
	ReminderStatusCompleted ReminderStatus = "completed"
)

// AllReminderStatuses returns all valid reminder statuses
func AllReminderStatuses() []ReminderStatus {
	return []ReminderStatus{
		ReminderStatusPending,
		ReminderStatusCompleted,
	}
}

// IsValid checks if the reminder status is valid
func (s ReminderStatus) IsValid() bool {
	switch s {
	case ReminderStatusPending, ReminderStatusCompleted:
		return true
	default:
		return false
	}
}

// String returns the string representation of the reminder status
func (s ReminderStatus) String() string {
	return string(s)
}

// ParseReminderStatus parses a string into a ReminderStatus
func ParseReminderStatus(s string) (ReminderStatus, error) {
	status := ReminderStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid reminder status: %s", s)
	}
	return status, nil
}
