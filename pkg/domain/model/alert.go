package model

import (
	"fmt"
	"time"

	"github.com/secmon-lab/followup/pkg/domain/types"
)

// Alert is a user-visible notification raised by the engine
type Alert struct {
	ID                 string
	ReminderID         ReminderID
	Title              string
	Message            string
	ScheduledAt        time.Time
	Priority           types.AlertPriority
	RequireInteraction bool
}

// NewReminderAlert builds the alert for a due reminder. It must be dismissed
// explicitly so a missed glance does not lose the reminder.
func NewReminderAlert(r *Reminder) *Alert {
	return &Alert{
		ID:                 r.AlarmKey(),
		ReminderID:         r.ID,
		Title:              "Follow up: " + r.ConversationLabel,
		Message:            fmt.Sprintf("Reminder scheduled for %s", r.ScheduledAt.Local().Format("Jan 2, 15:04")),
		ScheduledAt:        r.ScheduledAt,
		Priority:           types.AlertPriorityHigh,
		RequireInteraction: true,
	}
}

// NewNavigationFailedAlert builds the secondary alert raised when the
// conversation of a reminder could not be opened.
func NewNavigationFailedAlert(r *Reminder, dashboardURL string) *Alert {
	msg := fmt.Sprintf("Could not open the conversation with %s. Open the reminder dashboard to follow up.", r.ConversationLabel)
	if dashboardURL != "" {
		msg += " " + dashboardURL
	}
	return &Alert{
		ID:          "navigation-failed-" + string(r.ID),
		ReminderID:  r.ID,
		Title:       "Conversation not available",
		Message:     msg,
		ScheduledAt: r.ScheduledAt,
		Priority:    types.AlertPriorityLow,
	}
}
