package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/domain/interfaces"
	"github.com/secmon-lab/followup/pkg/domain/model"
	"github.com/secmon-lab/followup/pkg/domain/model/config"
	"github.com/secmon-lab/followup/pkg/utils/logging"
)

// PlanUseCase is the admission control of reminder creation
type PlanUseCase struct {
	store  interfaces.ReminderStore
	config *config.EngineConfig
}

func NewPlanUseCase(store interfaces.ReminderStore, cfg *config.EngineConfig) *PlanUseCase {
	return &PlanUseCase{
		store:  store,
		config: cfg,
	}
}

func (uc *PlanUseCase) defaultPlan() *model.Plan {
	return &model.Plan{
		Type:                uc.config.DefaultPlanType,
		ActiveReminderLimit: uc.config.DefaultPlanLimit,
	}
}

// GetPlan returns the persisted plan, or the default plan if none is stored
func (uc *PlanUseCase) GetPlan(ctx context.Context) (*model.Plan, error) {
	plan, err := uc.store.GetPlan(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get plan")
	}
	if plan == nil {
		return uc.defaultPlan(), nil
	}
	return plan, nil
}

// EnsurePlan persists the default plan if no plan record exists yet. It
// reports whether a record was created.
func (uc *PlanUseCase) EnsurePlan(ctx context.Context) (bool, error) {
	plan, err := uc.store.GetPlan(ctx)
	if err != nil {
		return false, goerr.Wrap(err, "failed to get plan")
	}
	if plan != nil {
		return false, nil
	}

	plan = uc.defaultPlan()
	if err := uc.store.SavePlan(ctx, plan); err != nil {
		return false, goerr.Wrap(err, "failed to save default plan", goerr.V(PlanTypeKey, plan.Type))
	}

	logging.From(ctx).Info("initialized default plan",
		"plan_type", plan.Type,
		"limit", plan.ActiveReminderLimit,
	)
	return true, nil
}

// CanAdmit reports whether one more pending reminder may be created
func (uc *PlanUseCase) CanAdmit(ctx context.Context) (bool, error) {
	status, err := uc.GetStatus(ctx)
	if err != nil {
		return false, err
	}
	return status.CanAdmit, nil
}

// GetStatus returns the admission state against the current collection
func (uc *PlanUseCase) GetStatus(ctx context.Context) (*model.PlanStatus, error) {
	reminders, err := uc.store.GetReminders(ctx)
	if err != nil {
		return nil, newStorageError(goerr.Wrap(err, "failed to get reminders"))
	}
	plan, err := uc.GetPlan(ctx)
	if err != nil {
		return nil, newStorageError(err)
	}
	return planStatus(plan, reminders), nil
}

func planStatus(plan *model.Plan, reminders []*model.Reminder) *model.PlanStatus {
	pending := model.CountPending(reminders)
	return &model.PlanStatus{
		PlanType:            plan.Type,
		ActiveReminderLimit: plan.ActiveReminderLimit,
		PendingCount:        pending,
		CanAdmit:            plan.Admits(pending),
	}
}
