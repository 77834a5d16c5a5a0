package interfaces

import (
	"context"
	"time"
)

// Scheduler is a one-shot wake-up facility addressed by name. Entries are an
// advisory cache: they may disappear (process restart) and are rebuilt from
// the ReminderStore, never the other way round.
type Scheduler interface {
	// Schedule requests a wake-up for key at the given time, replacing any
	// existing entry of that name. Past times fire immediately.
	Schedule(ctx context.Context, key string, at time.Time) error

	// Cancel removes the entry. Missing keys are not an error.
	Cancel(ctx context.Context, key string) error

	// ListActive enumerates scheduled keys for reconciliation
	ListActive(ctx context.Context) ([]string, error)
}
