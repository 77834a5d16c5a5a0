package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/secmon-lab/followup/pkg/domain/model"
	"github.com/secmon-lab/followup/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

func cmdStatus() *cli.Command {
	var flagSet engineFlags

	return &cli.Command{
		Name:  "status",
		Usage: "Show plan usage, storage usage and pending reminders",
		Flags: flagSet.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			eng, err := flagSet.build(ctx)
			if err != nil {
				return err
			}
			defer eng.Close()

			list, err := eng.uc.Reminder.List(ctx)
			if err != nil {
				return err
			}
			storage, err := eng.uc.Reminder.StorageStatus(ctx)
			if err != nil {
				return err
			}

			printStatus(os.Stdout, list.Status, storage, list.Reminders, time.Now())
			return nil
		},
	}
}

func printStatus(w io.Writer, plan *model.PlanStatus, storage *model.StorageStatus, reminders []*model.Reminder, now time.Time) {
	bold := color.New(color.Bold)
	warn := color.New(color.FgYellow)
	overdue := color.New(color.FgRed)
	done := color.New(color.FgHiBlack)

	limit := fmt.Sprintf("%d", plan.ActiveReminderLimit)
	if plan.ActiveReminderLimit == types.UnlimitedReminders {
		limit = "unlimited"
	}
	_, _ = bold.Fprintf(w, "Plan:    ")
	_, _ = fmt.Fprintf(w, "%s (%d / %s pending)\n", plan.PlanType, plan.PendingCount, limit)
	if !plan.CanAdmit {
		_, _ = warn.Fprintln(w, "         limit reached; new reminders are refused")
	}

	_, _ = bold.Fprintf(w, "Storage: ")
	line := fmt.Sprintf("%d / %d bytes (%.1f%%)", storage.BytesInUse, storage.QuotaBytes, storage.Utilization*100)
	if storage.NearQuota {
		_, _ = warn.Fprintln(w, line+" nearly full")
	} else {
		_, _ = fmt.Fprintln(w, line)
	}

	if len(reminders) == 0 {
		_, _ = fmt.Fprintln(w, "No reminders.")
		return
	}

	_, _ = fmt.Fprintln(w)
	for _, r := range reminders {
		at := r.ScheduledAt.Local().Format("2006-01-02 15:04")
		row := fmt.Sprintf("%-9s %s  %s  (%s)", r.Status, at, r.ConversationLabel, r.ID)
		switch {
		case !r.IsPending():
			_, _ = done.Fprintln(w, row)
		case r.IsOverdue(now):
			_, _ = overdue.Fprintln(w, row+" overdue")
		default:
			_, _ = fmt.Fprintln(w, row)
		}
	}
}
