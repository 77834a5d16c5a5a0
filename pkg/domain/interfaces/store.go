package interfaces

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/domain/model"
)

// Errors surfaced by ReminderStore implementations
var (
	// ErrStorage is a durable store operation failing for an unanticipated reason
	ErrStorage = goerr.New("storage operation failed")
	// ErrStorageQuotaExceeded is the durable store rejecting a write for size
	ErrStorageQuotaExceeded = goerr.New("storage quota exceeded")
)

// SchemaVersion is the layout marker persisted next to the records
const SchemaVersion = 1

// ReminderStore holds the reminder collection and the plan record.
// Every reminder write overwrites the whole collection; there are no
// incremental writes. Only the single writer may call the Save methods.
type ReminderStore interface {
	// GetReminders returns the full collection, empty if nothing is persisted
	GetReminders(ctx context.Context) ([]*model.Reminder, error)

	// SaveReminders overwrites the persisted collection
	SaveReminders(ctx context.Context, reminders []*model.Reminder) error

	// GetPlan returns the persisted plan, or nil if none has been written
	GetPlan(ctx context.Context) (*model.Plan, error)

	// SavePlan overwrites the plan record
	SavePlan(ctx context.Context, plan *model.Plan) error

	// SubscribeReminders invokes fn with the full collection whenever any
	// writer, in any process, updates it. The returned function unsubscribes.
	// Delivery is best effort and must not be relied upon for correctness.
	SubscribeReminders(ctx context.Context, fn func(reminders []*model.Reminder)) (func(), error)

	Close() error
}
