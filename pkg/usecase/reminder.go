package usecase

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/domain/interfaces"
	"github.com/secmon-lab/followup/pkg/domain/model"
	"github.com/secmon-lab/followup/pkg/domain/model/config"
	"github.com/secmon-lab/followup/pkg/domain/types"
	"github.com/secmon-lab/followup/pkg/utils/clock"
	"github.com/secmon-lab/followup/pkg/utils/errutil"
	"github.com/secmon-lab/followup/pkg/utils/logging"
)

// ReminderUseCase is the reminder lifecycle engine. Its mutating methods must
// only be called by the single writer.
type ReminderUseCase struct {
	store     interfaces.ReminderStore
	scheduler interfaces.Scheduler
	plan      *PlanUseCase
	config    *config.EngineConfig
	now       clock.Func
}

func NewReminderUseCase(store interfaces.ReminderStore, scheduler interfaces.Scheduler, plan *PlanUseCase, cfg *config.EngineConfig, now clock.Func) *ReminderUseCase {
	return &ReminderUseCase{
		store:     store,
		scheduler: scheduler,
		plan:      plan,
		config:    cfg,
		now:       now,
	}
}

// ReminderList is the sorted collection together with the admission status
type ReminderList struct {
	Reminders []*model.Reminder
	Status    *model.PlanStatus
}

func (uc *ReminderUseCase) load(ctx context.Context) ([]*model.Reminder, error) {
	reminders, err := uc.store.GetReminders(ctx)
	if err != nil {
		return nil, newStorageError(goerr.Wrap(err, "failed to get reminders"))
	}
	return reminders, nil
}

func (uc *ReminderUseCase) save(ctx context.Context, reminders []*model.Reminder) error {
	if err := uc.store.SaveReminders(ctx, reminders); err != nil {
		wrapped := goerr.Wrap(err, "failed to save reminders", goerr.V("count", len(reminders)))
		if errors.Is(err, interfaces.ErrStorageQuotaExceeded) {
			return newStorageQuotaError(1, wrapped)
		}
		return newStorageError(wrapped)
	}
	return nil
}

func (uc *ReminderUseCase) cancel(ctx context.Context, id model.ReminderID) {
	if err := uc.scheduler.Cancel(ctx, model.AlarmKey(id)); err != nil {
		errutil.Warn(ctx, goerr.Wrap(err, "failed to cancel wake-up", goerr.V(ReminderIDKey, id)), "cancel skipped")
	}
}

func indexOf(reminders []*model.Reminder, id model.ReminderID) int {
	return slices.IndexFunc(reminders, func(r *model.Reminder) bool {
		return r.ID == id
	})
}

// Create validates and admits a new reminder, persists it and schedules its
// wake-up. A scheduling failure does not roll back the stored reminder.
func (uc *ReminderUseCase) Create(ctx context.Context, req *model.CreateReminderRequest) (*model.Reminder, error) {
	now := uc.now()
	if err := req.Validate(now); err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			return nil, NewValidationError(ve.Message)
		}
		return nil, NewValidationError(err.Error())
	}

	reminders, err := uc.load(ctx)
	if err != nil {
		return nil, err
	}

	plan, err := uc.plan.GetPlan(ctx)
	if err != nil {
		return nil, newStorageError(err)
	}
	if !plan.Admits(model.CountPending(reminders)) {
		return nil, newPlanLimitError(plan.ActiveReminderLimit)
	}

	status, err := uc.storageStatus(reminders)
	if err != nil {
		return nil, newStorageError(err)
	}
	if status.NearQuota {
		return nil, newStorageQuotaError(status.Utilization, nil)
	}

	reminder := &model.Reminder{
		ID:                model.NewReminderID(),
		ConversationID:    strings.TrimSpace(req.ConversationID),
		ConversationLabel: strings.TrimSpace(req.ConversationLabel),
		ScheduledAt:       req.ScheduledTime(),
		CreatedAt:         now,
		Status:            types.ReminderStatusPending,
	}

	if err := uc.save(ctx, append(reminders, reminder)); err != nil {
		return nil, err
	}

	if err := uc.scheduler.Schedule(ctx, reminder.AlarmKey(), reminder.ScheduledAt); err != nil {
		errutil.Warn(ctx, goerr.Wrap(err, "failed to schedule wake-up", goerr.V(ReminderIDKey, reminder.ID)),
			"reminder stored without wake-up")
	}

	logging.From(ctx).Info("reminder created",
		"reminder_id", reminder.ID,
		"conversation_id", reminder.ConversationID,
		"scheduled_at", reminder.ScheduledAt,
	)
	return reminder.Copy(), nil
}

// Complete moves a pending reminder to completed and cancels its wake-up
func (uc *ReminderUseCase) Complete(ctx context.Context, id model.ReminderID) (*model.Reminder, error) {
	reminders, err := uc.load(ctx)
	if err != nil {
		return nil, err
	}

	idx := indexOf(reminders, id)
	if idx < 0 {
		return nil, newNotFoundError()
	}

	reminder := reminders[idx]
	if err := reminder.Complete(uc.now()); err != nil {
		if errors.Is(err, model.ErrReminderAlreadyCompleted) {
			return nil, newAlreadyCompletedError()
		}
		return nil, newStorageError(err)
	}

	if err := uc.save(ctx, reminders); err != nil {
		return nil, err
	}
	uc.cancel(ctx, id)

	logging.From(ctx).Info("reminder completed", "reminder_id", id)
	return reminder.Copy(), nil
}

// Delete removes a reminder of any status and cancels its wake-up
func (uc *ReminderUseCase) Delete(ctx context.Context, id model.ReminderID) (model.ReminderID, error) {
	reminders, err := uc.load(ctx)
	if err != nil {
		return "", err
	}

	idx := indexOf(reminders, id)
	if idx < 0 {
		return "", newNotFoundError()
	}

	if err := uc.save(ctx, slices.Delete(reminders, idx, idx+1)); err != nil {
		return "", err
	}
	uc.cancel(ctx, id)

	logging.From(ctx).Info("reminder deleted", "reminder_id", id)
	return id, nil
}

// Get returns the reminder with the given id
func (uc *ReminderUseCase) Get(ctx context.Context, id model.ReminderID) (*model.Reminder, error) {
	reminders, err := uc.load(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(reminders, id)
	if idx < 0 {
		return nil, newNotFoundError()
	}
	return reminders[idx], nil
}

// List returns all reminders sorted by scheduled time with the admission status
func (uc *ReminderUseCase) List(ctx context.Context) (*ReminderList, error) {
	reminders, err := uc.load(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := uc.plan.GetPlan(ctx)
	if err != nil {
		return nil, newStorageError(err)
	}

	SortReminders(reminders)
	return &ReminderList{
		Reminders: reminders,
		Status:    planStatus(plan, reminders),
	}, nil
}

// SortReminders orders reminders ascending by scheduled time, then creation
func SortReminders(reminders []*model.Reminder) {
	slices.SortStableFunc(reminders, func(a, b *model.Reminder) int {
		if c := a.ScheduledAt.Compare(b.ScheduledAt); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

// OverdueScan returns pending reminders whose time has passed. Status is left
// untouched; overdue reminders stay pending until the user acts.
func (uc *ReminderUseCase) OverdueScan(ctx context.Context) ([]*model.Reminder, error) {
	reminders, err := uc.load(ctx)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	var overdue []*model.Reminder
	for _, r := range reminders {
		if r.IsOverdue(now) {
			overdue = append(overdue, r)
		}
	}
	SortReminders(overdue)
	return overdue, nil
}

// ReconcileSchedule re-schedules every pending reminder whose wake-up is
// missing from the scheduler. It returns the number of entries restored.
func (uc *ReminderUseCase) ReconcileSchedule(ctx context.Context) (int, error) {
	return uc.reconcile(ctx, false)
}

// ReconcileUpcoming is ReconcileSchedule limited to reminders not yet due.
// A fired wake-up leaves the scheduler, so restoring past-due entries would
// raise their alert again.
func (uc *ReminderUseCase) ReconcileUpcoming(ctx context.Context) (int, error) {
	return uc.reconcile(ctx, true)
}

func (uc *ReminderUseCase) reconcile(ctx context.Context, upcomingOnly bool) (int, error) {
	active, err := uc.scheduler.ListActive(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list active wake-ups")
	}
	scheduled := make(map[string]struct{}, len(active))
	for _, key := range active {
		scheduled[key] = struct{}{}
	}

	reminders, err := uc.load(ctx)
	if err != nil {
		return 0, err
	}

	now := uc.now()
	restored := 0
	for _, r := range reminders {
		if !r.IsPending() {
			continue
		}
		if upcomingOnly && r.IsOverdue(now) {
			continue
		}
		if _, ok := scheduled[r.AlarmKey()]; ok {
			continue
		}
		if err := uc.scheduler.Schedule(ctx, r.AlarmKey(), r.ScheduledAt); err != nil {
			errutil.Warn(ctx, goerr.Wrap(err, "failed to restore wake-up", goerr.V(ReminderIDKey, r.ID)),
				"reconcile skipped reminder")
			continue
		}
		restored++
	}

	if restored > 0 {
		logging.From(ctx).Info("schedule reconciled", "restored", restored)
	}
	return restored, nil
}

// CleanupExpiredCompleted removes completed reminders older than the
// retention window and returns how many were removed
func (uc *ReminderUseCase) CleanupExpiredCompleted(ctx context.Context) (int, error) {
	reminders, err := uc.load(ctx)
	if err != nil {
		return 0, err
	}

	now := uc.now()
	kept := slices.DeleteFunc(slices.Clone(reminders), func(r *model.Reminder) bool {
		return r.IsExpired(now, uc.config.Retention)
	})
	removed := len(reminders) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	if err := uc.save(ctx, kept); err != nil {
		return 0, err
	}

	logging.From(ctx).Info("expired reminders removed", "count", removed)
	return removed, nil
}

// StorageStatus reports the byte budget consumed by the collection
func (uc *ReminderUseCase) StorageStatus(ctx context.Context) (*model.StorageStatus, error) {
	reminders, err := uc.load(ctx)
	if err != nil {
		return nil, err
	}
	status, err := uc.storageStatus(reminders)
	if err != nil {
		return nil, newStorageError(err)
	}
	return status, nil
}

func (uc *ReminderUseCase) storageStatus(reminders []*model.Reminder) (*model.StorageStatus, error) {
	size, err := model.EstimateSize(reminders)
	if err != nil {
		return nil, err
	}
	return model.NewStorageStatus(size, uc.config.QuotaBytes, uc.config.WarnRatio), nil
}
