package interfaces

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/domain/model"
	"github.com/secmon-lab/followup/pkg/domain/types"
)

// ErrNavigationUnavailable means no collaborator could open the conversation
var ErrNavigationUnavailable = goerr.New("conversation could not be opened")

// Notifier raises and clears user-visible alerts
type Notifier interface {
	Alert(ctx context.Context, alert *model.Alert) error
	Clear(ctx context.Context, alertID string) error
	Permission(ctx context.Context) (types.PermissionLevel, error)
}

// Navigator focuses or opens a conversation in the host chat application
type Navigator interface {
	OpenConversation(ctx context.Context, reminder *model.Reminder) error
}

// Publisher emits outbound events to UI collaborators
type Publisher interface {
	PublishReminders(ctx context.Context, reminders []*model.Reminder)
	PublishBadge(ctx context.Context, pendingCount int)
}
