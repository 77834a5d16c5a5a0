package usecase_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/followup/pkg/domain/interfaces"
	"github.com/secmon-lab/followup/pkg/domain/model"
	"github.com/secmon-lab/followup/pkg/domain/model/config"
	"github.com/secmon-lab/followup/pkg/domain/types"
	"github.com/secmon-lab/followup/pkg/repository/memory"
	"github.com/secmon-lab/followup/pkg/usecase"
)

func TestReminderUseCase_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("stores pending reminder and schedules wake-up", func(t *testing.T) {
		env := newTestEnv(t)
		req := env.request("  Alice  ", time.Hour)
		req.ConversationID = " 819012345678@c.us "

		r, err := env.uc.Reminder.Create(ctx, req)
		gt.NoError(t, err).Required()

		gt.Value(t, r.ConversationID).Equal("819012345678@c.us")
		gt.Value(t, r.ConversationLabel).Equal("Alice")
		gt.Value(t, r.Status).Equal(types.ReminderStatusPending)
		gt.Value(t, r.CompletedAt).Nil()
		gt.Value(t, r.CreatedAt).Equal(baseTime)
		gt.Value(t, r.ScheduledAt).Equal(baseTime.Add(time.Hour))

		stored := env.stored(t)
		gt.Array(t, stored).Length(1)
		gt.Value(t, stored[0].ID).Equal(r.ID)

		at, ok := env.scheduler.scheduledAt(model.AlarmKey(r.ID))
		gt.Bool(t, ok).True()
		gt.Value(t, at).Equal(r.ScheduledAt)
	})

	t.Run("past time fails validation and leaves store untouched", func(t *testing.T) {
		env := newTestEnv(t)
		req := env.request("Alice", 0)
		req.ScheduledAt = float64(baseTime.UnixMilli() - 1000)

		_, err := env.uc.Reminder.Create(ctx, req)
		gt.Error(t, err).Is(usecase.ErrValidation)
		gt.Value(t, usecase.UserMessage(err)).Equal(model.MsgScheduledAtInPast)
		gt.Value(t, usecase.ErrorCode(err)).Equal(usecase.CodeValidation)
		gt.Array(t, env.stored(t)).Length(0)

		active, err := env.scheduler.ListActive(ctx)
		gt.NoError(t, err).Required()
		gt.Array(t, active).Length(0)
	})

	t.Run("sixth reminder on free plan is refused", func(t *testing.T) {
		env := newTestEnv(t)
		for i := 0; i < 5; i++ {
			env.create(t, "Alice", time.Duration(i+1)*time.Hour)
		}

		_, err := env.uc.Reminder.Create(ctx, env.request("Bob", time.Hour))
		gt.Error(t, err).Is(usecase.ErrPlanLimit)
		gt.String(t, usecase.UserMessage(err)).Contains("5")
		gt.Value(t, usecase.ErrorCode(err)).Equal(usecase.CodePlanLimit)
		gt.Array(t, env.stored(t)).Length(5)
	})

	t.Run("completed reminders free a slot", func(t *testing.T) {
		env := newTestEnv(t)
		var first *model.Reminder
		for i := 0; i < 5; i++ {
			r := env.create(t, "Alice", time.Duration(i+1)*time.Hour)
			if first == nil {
				first = r
			}
		}
		_, err := env.uc.Reminder.Complete(ctx, first.ID)
		gt.NoError(t, err).Required()

		env.create(t, "Bob", time.Hour)
		gt.Array(t, env.stored(t)).Length(6)
	})

	t.Run("unlimited plan admits beyond the free limit", func(t *testing.T) {
		env := newTestEnv(t)
		gt.NoError(t, env.store.SavePlan(ctx, &model.Plan{
			Type:                types.PlanTypePaid,
			ActiveReminderLimit: types.UnlimitedReminders,
		})).Required()

		for i := 0; i < 8; i++ {
			env.create(t, "Alice", time.Duration(i+1)*time.Hour)
		}
		gt.Array(t, env.stored(t)).Length(8)
	})

	t.Run("near quota is refused before writing", func(t *testing.T) {
		env := newTestEnv(t, withConfig(func(cfg *config.EngineConfig) {
			cfg.DefaultPlanLimit = types.UnlimitedReminders
			cfg.QuotaBytes = 1000
		}))

		var err error
		created := 0
		for i := 0; i < 20; i++ {
			_, err = env.uc.Reminder.Create(ctx, env.request("Alice", time.Hour))
			if err != nil {
				break
			}
			created++
		}
		gt.Error(t, err).Is(usecase.ErrStorageQuota)
		gt.String(t, usecase.UserMessage(err)).Contains("Storage is almost full")
		gt.Array(t, env.stored(t)).Length(created)

		status, err := env.uc.Reminder.StorageStatus(ctx)
		gt.NoError(t, err).Required()
		gt.Bool(t, status.NearQuota).True()
	})

	t.Run("store rejecting the write for size is a quota error", func(t *testing.T) {
		env := newTestEnv(t, withStore(memory.New(memory.WithQuotaBytes(64))))

		_, err := env.uc.Reminder.Create(ctx, env.request("Alice", time.Hour))
		gt.Error(t, err).Is(usecase.ErrStorageQuota)
		gt.Error(t, err).Is(interfaces.ErrStorageQuotaExceeded)
		gt.Array(t, env.stored(t)).Length(0)
	})

	t.Run("storage failure renders the generic message", func(t *testing.T) {
		store := &failingStore{Store: memory.New(), saveErr: errInjected}
		env := newTestEnv(t, withStore(store))

		_, err := env.uc.Reminder.Create(ctx, env.request("Alice", time.Hour))
		gt.Error(t, err).Is(usecase.ErrStorage)
		gt.Error(t, err).Is(errInjected)
		gt.Value(t, usecase.UserMessage(err)).Equal(usecase.MsgStorageFailure)
	})

	t.Run("scheduling failure keeps the stored reminder", func(t *testing.T) {
		env := newTestEnv(t)
		env.scheduler.failWith = errInjected

		r, err := env.uc.Reminder.Create(ctx, env.request("Alice", time.Hour))
		gt.NoError(t, err).Required()
		gt.Array(t, env.stored(t)).Length(1)

		env.scheduler.failWith = nil
		restored, err := env.uc.Reminder.ReconcileSchedule(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, restored).Equal(1)

		_, ok := env.scheduler.scheduledAt(r.AlarmKey())
		gt.Bool(t, ok).True()
	})
}

func TestReminderUseCase_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("second completion fails and keeps completedAt", func(t *testing.T) {
		env := newTestEnv(t)
		r := env.create(t, "Alice", time.Hour)

		completed, err := env.uc.Reminder.Complete(ctx, r.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, completed.Status).Equal(types.ReminderStatusCompleted)
		gt.Value(t, *completed.CompletedAt).Equal(baseTime)

		env.clock.Advance(time.Minute)
		_, err = env.uc.Reminder.Complete(ctx, r.ID)
		gt.Error(t, err).Is(usecase.ErrAlreadyCompleted)

		stored := env.stored(t)
		gt.Array(t, stored).Length(1)
		gt.Value(t, *stored[0].CompletedAt).Equal(baseTime)
	})

	t.Run("cancels the wake-up", func(t *testing.T) {
		env := newTestEnv(t)
		r := env.create(t, "Alice", time.Hour)

		_, err := env.uc.Reminder.Complete(ctx, r.ID)
		gt.NoError(t, err).Required()

		_, ok := env.scheduler.scheduledAt(r.AlarmKey())
		gt.Bool(t, ok).False()
		gt.Array(t, env.scheduler.cancelled).Has(r.AlarmKey())
	})

	t.Run("unknown id", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.uc.Reminder.Complete(ctx, model.NewReminderID())
		gt.Error(t, err).Is(usecase.ErrReminderNotFound)
		gt.Value(t, usecase.ErrorCode(err)).Equal(usecase.CodeNotFound)
	})
}

func TestReminderUseCase_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes any status", func(t *testing.T) {
		env := newTestEnv(t)
		pending := env.create(t, "Alice", time.Hour)
		done := env.create(t, "Bob", 2*time.Hour)
		_, err := env.uc.Reminder.Complete(ctx, done.ID)
		gt.NoError(t, err).Required()

		deleted, err := env.uc.Reminder.Delete(ctx, pending.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, deleted).Equal(pending.ID)

		deleted, err = env.uc.Reminder.Delete(ctx, done.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, deleted).Equal(done.ID)

		gt.Array(t, env.stored(t)).Length(0)
		active, err := env.scheduler.ListActive(ctx)
		gt.NoError(t, err).Required()
		gt.Array(t, active).Length(0)
	})

	t.Run("twice is not found", func(t *testing.T) {
		env := newTestEnv(t)
		r := env.create(t, "Alice", time.Hour)

		_, err := env.uc.Reminder.Delete(ctx, r.ID)
		gt.NoError(t, err).Required()
		_, err = env.uc.Reminder.Delete(ctx, r.ID)
		gt.Error(t, err).Is(usecase.ErrReminderNotFound)
	})
}

func TestReminderUseCase_List(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	late := env.create(t, "Late", 3*time.Hour)
	early := env.create(t, "Early", time.Hour)
	middle := env.create(t, "Middle", 2*time.Hour)
	_, err := env.uc.Reminder.Complete(ctx, middle.ID)
	gt.NoError(t, err).Required()

	list, err := env.uc.Reminder.List(ctx)
	gt.NoError(t, err).Required()

	gt.Array(t, list.Reminders).Length(3)
	gt.Value(t, list.Reminders[0].ID).Equal(early.ID)
	gt.Value(t, list.Reminders[1].ID).Equal(middle.ID)
	gt.Value(t, list.Reminders[2].ID).Equal(late.ID)

	gt.Value(t, list.Status.PlanType).Equal(types.PlanTypeFree)
	gt.Value(t, list.Status.ActiveReminderLimit).Equal(5)
	gt.Value(t, list.Status.PendingCount).Equal(2)
	gt.Bool(t, list.Status.CanAdmit).True()
}

func TestReminderUseCase_OverdueScan(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	due := env.create(t, "Due", time.Minute)
	env.create(t, "Later", 2*time.Hour)
	done := env.create(t, "Done", 2*time.Minute)
	_, err := env.uc.Reminder.Complete(ctx, done.ID)
	gt.NoError(t, err).Required()

	env.clock.Advance(time.Hour)

	for i := 0; i < 3; i++ {
		overdue, err := env.uc.Reminder.OverdueScan(ctx)
		gt.NoError(t, err).Required()
		gt.Array(t, overdue).Length(1)
		gt.Value(t, overdue[0].ID).Equal(due.ID)
	}

	// scanning never changes status
	for _, r := range env.stored(t) {
		if r.ID == due.ID {
			gt.Value(t, r.Status).Equal(types.ReminderStatusPending)
			gt.Value(t, r.CompletedAt).Nil()
		}
	}
}

func TestReminderUseCase_ReconcileSchedule(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	a := env.create(t, "Alice", time.Hour)
	b := env.create(t, "Bob", 2*time.Hour)
	c := env.create(t, "Carol", 3*time.Hour)
	_, err := env.uc.Reminder.Complete(ctx, c.ID)
	gt.NoError(t, err).Required()

	env.scheduler.dropAll()

	restored, err := env.uc.Reminder.ReconcileSchedule(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, restored).Equal(2)

	active, err := env.scheduler.ListActive(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, active).Length(2)
	gt.Array(t, active).Has(a.AlarmKey())
	gt.Array(t, active).Has(b.AlarmKey())

	at, _ := env.scheduler.scheduledAt(a.AlarmKey())
	gt.Value(t, at).Equal(a.ScheduledAt)

	// a second pass finds nothing missing
	restored, err = env.uc.Reminder.ReconcileSchedule(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, restored).Equal(0)
}

func TestReminderUseCase_CleanupExpiredCompleted(t *testing.T) {
	ctx := context.Background()

	t.Run("completed 31 days ago is removed", func(t *testing.T) {
		env := newTestEnv(t)
		r := env.create(t, "Alice", time.Hour)
		_, err := env.uc.Reminder.Complete(ctx, r.ID)
		gt.NoError(t, err).Required()

		env.clock.Advance(31 * 24 * time.Hour)
		removed, err := env.uc.Reminder.CleanupExpiredCompleted(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, removed).Equal(1)
		gt.Array(t, env.stored(t)).Length(0)
	})

	t.Run("retention boundary", func(t *testing.T) {
		env := newTestEnv(t)
		expiredAt := baseTime.Add(-(30*24*time.Hour + time.Millisecond))
		keptAt := baseTime.Add(-(29*24*time.Hour + 23*time.Hour + 59*time.Minute))

		seed := []*model.Reminder{
			{
				ID:                "expired",
				ConversationID:    "1@c.us",
				ConversationLabel: "Expired",
				ScheduledAt:       expiredAt.Add(-time.Hour),
				CreatedAt:         expiredAt.Add(-2 * time.Hour),
				Status:            types.ReminderStatusCompleted,
				CompletedAt:       &expiredAt,
			},
			{
				ID:                "kept",
				ConversationID:    "2@c.us",
				ConversationLabel: "Kept",
				ScheduledAt:       keptAt.Add(-time.Hour),
				CreatedAt:         keptAt.Add(-2 * time.Hour),
				Status:            types.ReminderStatusCompleted,
				CompletedAt:       &keptAt,
			},
			{
				ID:                "old-pending",
				ConversationID:    "3@c.us",
				ConversationLabel: "Old pending",
				ScheduledAt:       baseTime.Add(-90 * 24 * time.Hour),
				CreatedAt:         baseTime.Add(-91 * 24 * time.Hour),
				Status:            types.ReminderStatusPending,
			},
		}
		gt.NoError(t, env.store.SaveReminders(ctx, seed)).Required()

		removed, err := env.uc.Reminder.CleanupExpiredCompleted(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, removed).Equal(1)

		stored := env.stored(t)
		gt.Array(t, stored).Length(2)
		gt.Value(t, stored[0].ID).Equal(model.ReminderID("kept"))
		gt.Value(t, stored[1].ID).Equal(model.ReminderID("old-pending"))
	})

	t.Run("nothing to remove does not write", func(t *testing.T) {
		store := &failingStore{Store: memory.New()}
		env := newTestEnv(t, withStore(store))
		env.create(t, "Alice", time.Hour)

		store.saveErr = errInjected
		removed, err := env.uc.Reminder.CleanupExpiredCompleted(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, removed).Equal(0)
	})
}

func TestReminderUseCase_AdmissionInvariant(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	rng := rand.New(rand.NewSource(42))

	var ids []model.ReminderID
	for i := 0; i < 300; i++ {
		switch op := rng.Intn(3); {
		case op == 0 || len(ids) == 0:
			r, err := env.uc.Reminder.Create(ctx, env.request("Alice", time.Duration(rng.Intn(100)+1)*time.Minute))
			if err != nil {
				gt.Error(t, err).Is(usecase.ErrPlanLimit)
				continue
			}
			ids = append(ids, r.ID)
			gt.Bool(t, model.CountPending(env.stored(t)) <= 5).True()

		case op == 1:
			_, err := env.uc.Reminder.Complete(ctx, ids[rng.Intn(len(ids))])
			if err != nil {
				gt.Error(t, err).Is(usecase.ErrAlreadyCompleted)
			}

		default:
			idx := rng.Intn(len(ids))
			_, err := env.uc.Reminder.Delete(ctx, ids[idx])
			gt.NoError(t, err).Required()
			ids = append(ids[:idx], ids[idx+1:]...)
		}
		env.clock.Advance(time.Second)
	}
}
