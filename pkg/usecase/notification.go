package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/domain/interfaces"
	"github.com/secmon-lab/followup/pkg/domain/model"
	"github.com/secmon-lab/followup/pkg/domain/model/config"
	"github.com/secmon-lab/followup/pkg/domain/types"
	"github.com/secmon-lab/followup/pkg/utils/errutil"
	"github.com/secmon-lab/followup/pkg/utils/logging"
)

// NotificationUseCase turns due reminders into alerts and routes alert
// clicks to the conversation. It never changes reminder state.
type NotificationUseCase struct {
	store     interfaces.ReminderStore
	notifier  interfaces.Notifier
	navigator interfaces.Navigator
	publisher interfaces.Publisher
	config    *config.EngineConfig
}

func NewNotificationUseCase(store interfaces.ReminderStore, notifier interfaces.Notifier, navigator interfaces.Navigator, publisher interfaces.Publisher, cfg *config.EngineConfig) *NotificationUseCase {
	return &NotificationUseCase{
		store:     store,
		notifier:  notifier,
		navigator: navigator,
		publisher: publisher,
		config:    cfg,
	}
}

func (uc *NotificationUseCase) lookup(ctx context.Context, id model.ReminderID) (*model.Reminder, error) {
	reminders, err := uc.store.GetReminders(ctx)
	if err != nil {
		return nil, newStorageError(goerr.Wrap(err, "failed to get reminders", goerr.V(ReminderIDKey, id)))
	}
	for _, r := range reminders {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

// HandleAlarm is called when a wake-up fires. Keys outside the reminder
// namespace and reminders deleted after scheduling are ignored.
func (uc *NotificationUseCase) HandleAlarm(ctx context.Context, key string) error {
	id, ok := model.ParseAlarmKey(key)
	if !ok {
		logging.From(ctx).Debug("ignore wake-up outside reminder namespace", "key", key)
		return nil
	}

	reminder, err := uc.lookup(ctx, id)
	if err != nil {
		return err
	}
	if reminder == nil {
		logging.From(ctx).Info("wake-up for missing reminder", "reminder_id", id)
		return nil
	}

	return uc.Dispatch(ctx, reminder)
}

// Dispatch raises the alert of a pending reminder. A failed alert is not
// retried; the reminder stays pending and shows up as overdue.
func (uc *NotificationUseCase) Dispatch(ctx context.Context, reminder *model.Reminder) error {
	if !reminder.IsPending() {
		return nil
	}
	if uc.notifier == nil {
		return goerr.New("no notifier configured", goerr.V(ReminderIDKey, reminder.ID))
	}

	if err := uc.notifier.Alert(ctx, model.NewReminderAlert(reminder)); err != nil {
		return goerr.Wrap(err, "failed to raise reminder alert", goerr.V(ReminderIDKey, reminder.ID))
	}

	logging.From(ctx).Info("reminder alert raised",
		"reminder_id", reminder.ID,
		"scheduled_at", reminder.ScheduledAt,
	)
	return nil
}

// HandleAlertClick opens the conversation of the clicked alert. If that is
// not possible a secondary alert points to the dashboard. The original alert
// is cleared either way.
func (uc *NotificationUseCase) HandleAlertClick(ctx context.Context, id model.ReminderID) error {
	defer uc.clear(ctx, model.AlarmKey(id))

	reminder, err := uc.lookup(ctx, id)
	if err != nil {
		return err
	}
	if reminder == nil {
		return newNotFoundError()
	}

	var navErr error = interfaces.ErrNavigationUnavailable
	if uc.navigator != nil {
		navErr = uc.navigator.OpenConversation(ctx, reminder)
	}
	if navErr == nil {
		logging.From(ctx).Info("conversation opened", "reminder_id", id)
		return nil
	}

	errutil.Warn(ctx, goerr.Wrap(navErr, "failed to open conversation", goerr.V(ReminderIDKey, id)),
		"falling back to dashboard alert")
	if uc.notifier != nil {
		if err := uc.notifier.Alert(ctx, model.NewNavigationFailedAlert(reminder, uc.config.DashboardURL)); err != nil {
			errutil.Warn(ctx, goerr.Wrap(err, "failed to raise fallback alert", goerr.V(ReminderIDKey, id)),
				"fallback alert skipped")
		}
	}
	return nil
}

func (uc *NotificationUseCase) clear(ctx context.Context, alertID string) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.Clear(ctx, alertID); err != nil {
		errutil.Warn(ctx, goerr.Wrap(err, "failed to clear alert", goerr.V("alert_id", alertID)), "clear skipped")
	}
}

// CheckPermission reports whether alerts can be shown. Failures to determine
// the level are reported as denied.
func (uc *NotificationUseCase) CheckPermission(ctx context.Context) types.PermissionLevel {
	if uc.notifier == nil {
		return types.PermissionDenied
	}
	level, err := uc.notifier.Permission(ctx)
	if err != nil {
		errutil.Warn(ctx, goerr.Wrap(err, "failed to check alert permission"), "permission unknown")
		return types.PermissionDenied
	}
	return level
}

// PublishChanges emits the collection and its pending count to UI
// collaborators
func (uc *NotificationUseCase) PublishChanges(ctx context.Context, reminders []*model.Reminder) int {
	sorted := model.CopyReminders(reminders)
	SortReminders(sorted)
	pending := model.CountPending(sorted)

	if uc.publisher != nil {
		uc.publisher.PublishReminders(ctx, sorted)
		uc.publisher.PublishBadge(ctx, pending)
	}
	return pending
}
