package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/followup/pkg/domain/model"
	"github.com/secmon-lab/followup/pkg/domain/types"
)

func TestPlanUseCase_GetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("default plan when none stored", func(t *testing.T) {
		env := newTestEnv(t)

		status, err := env.uc.Plan.GetStatus(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, status).Equal(&model.PlanStatus{
			PlanType:            types.PlanTypeFree,
			ActiveReminderLimit: 5,
			PendingCount:        0,
			CanAdmit:            true,
		})

		stored, err := env.store.GetPlan(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, stored).Nil()
	})

	t.Run("only pending reminders count", func(t *testing.T) {
		env := newTestEnv(t)
		gt.NoError(t, env.store.SavePlan(ctx, &model.Plan{Type: types.PlanTypeFree, ActiveReminderLimit: 2})).Required()

		a := env.create(t, "Alice", time.Hour)
		env.create(t, "Bob", time.Hour)

		ok, err := env.uc.Plan.CanAdmit(ctx)
		gt.NoError(t, err).Required()
		gt.Bool(t, ok).False()

		_, err = env.uc.Reminder.Complete(ctx, a.ID)
		gt.NoError(t, err).Required()

		status, err := env.uc.Plan.GetStatus(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, status.PendingCount).Equal(1)
		gt.Bool(t, status.CanAdmit).True()
	})

	t.Run("zero limit admits nothing", func(t *testing.T) {
		env := newTestEnv(t)
		gt.NoError(t, env.store.SavePlan(ctx, &model.Plan{Type: types.PlanTypeFree, ActiveReminderLimit: 0})).Required()

		ok, err := env.uc.Plan.CanAdmit(ctx)
		gt.NoError(t, err).Required()
		gt.Bool(t, ok).False()
	})
}

func TestPlanUseCase_EnsurePlan(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.uc.Plan.EnsurePlan(ctx)
	gt.NoError(t, err).Required()
	gt.Bool(t, created).True()

	stored, err := env.store.GetPlan(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, stored).Equal(model.DefaultPlan())

	// an externally upgraded plan is left alone
	paid := &model.Plan{Type: types.PlanTypePaid, ActiveReminderLimit: types.UnlimitedReminders}
	gt.NoError(t, env.store.SavePlan(ctx, paid)).Required()

	created, err = env.uc.Plan.EnsurePlan(ctx)
	gt.NoError(t, err).Required()
	gt.Bool(t, created).False()

	stored, err = env.store.GetPlan(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, stored).Equal(paid)
}
