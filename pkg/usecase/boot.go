package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/utils/errutil"
	"github.com/secmon-lab/followup/pkg/utils/logging"
)

// BootUseCase is the process entry point. Each step runs even if an earlier
// one failed.
type BootUseCase struct {
	plan         *PlanUseCase
	reminder     *ReminderUseCase
	notification *NotificationUseCase
}

func NewBootUseCase(plan *PlanUseCase, reminder *ReminderUseCase, notification *NotificationUseCase) *BootUseCase {
	return &BootUseCase{
		plan:         plan,
		reminder:     reminder,
		notification: notification,
	}
}

// BootResult summarizes one run of the entry point or maintenance
type BootResult struct {
	PlanInitialized bool `json:"planInitialized"`
	Restored        int  `json:"restored"`
	Alerted         int  `json:"alerted"`
	Removed         int  `json:"removed"`
	PendingCount    int  `json:"pendingCount"`
}

type stepRunner struct {
	ctx    context.Context
	failed []string
}

func (s *stepRunner) run(name string, fn func(ctx context.Context) error) {
	if err := fn(s.ctx); err != nil {
		errutil.Handle(s.ctx, err, "entry point step failed: "+name)
		s.failed = append(s.failed, name)
	}
}

func (s *stepRunner) err() error {
	if len(s.failed) == 0 {
		return nil
	}
	return goerr.New("entry point steps failed", goerr.V("steps", s.failed))
}

// Run initializes the plan, rebuilds the schedule, alerts reminders that
// came due while the process was down, purges expired records and publishes
// the pending count.
func (uc *BootUseCase) Run(ctx context.Context) (*BootResult, error) {
	result := &BootResult{}
	steps := &stepRunner{ctx: ctx}

	steps.run("plan", func(ctx context.Context) error {
		created, err := uc.plan.EnsurePlan(ctx)
		result.PlanInitialized = created
		return err
	})
	steps.run("reconcile", func(ctx context.Context) error {
		n, err := uc.reminder.ReconcileUpcoming(ctx)
		result.Restored = n
		return err
	})
	steps.run("overdue", func(ctx context.Context) error {
		overdue, err := uc.reminder.OverdueScan(ctx)
		if err != nil {
			return err
		}
		for _, r := range overdue {
			if err := uc.notification.Dispatch(ctx, r); err != nil {
				errutil.Warn(ctx, err, "overdue alert skipped")
				continue
			}
			result.Alerted++
		}
		return nil
	})
	uc.maintain(steps, result)

	logging.From(ctx).Info("entry point completed",
		"plan_initialized", result.PlanInitialized,
		"restored", result.Restored,
		"alerted", result.Alerted,
		"removed", result.Removed,
		"pending", result.PendingCount,
	)
	return result, steps.err()
}

// Maintain is the periodic part of the entry point: schedule repair,
// retention cleanup and badge refresh. Overdue reminders are not alerted
// again.
func (uc *BootUseCase) Maintain(ctx context.Context) (*BootResult, error) {
	result := &BootResult{}
	steps := &stepRunner{ctx: ctx}

	steps.run("reconcile", func(ctx context.Context) error {
		n, err := uc.reminder.ReconcileUpcoming(ctx)
		result.Restored = n
		return err
	})
	uc.maintain(steps, result)

	logging.From(ctx).Debug("maintenance completed",
		"restored", result.Restored,
		"removed", result.Removed,
		"pending", result.PendingCount,
	)
	return result, steps.err()
}

func (uc *BootUseCase) maintain(steps *stepRunner, result *BootResult) {
	steps.run("cleanup", func(ctx context.Context) error {
		n, err := uc.reminder.CleanupExpiredCompleted(ctx)
		result.Removed = n
		return err
	})
	steps.run("publish", func(ctx context.Context) error {
		reminders, err := uc.reminder.load(ctx)
		if err != nil {
			return err
		}
		result.PendingCount = uc.notification.PublishChanges(ctx, reminders)
		return nil
	})
}
