package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdBoot() *cli.Command {
	var flagSet engineFlags

	return &cli.Command{
		Name:  "boot",
		Usage: "Run the start-up reconciliation once against the store and exit",
		Description: "Initializes the plan, rebuilds the schedule, alerts overdue reminders, " +
			"removes expired completed reminders and prints the result as JSON. " +
			"Timers scheduled by this command end with the process; a running serve " +
			"process rebuilds its own schedule on the next maintenance tick.",
		Flags: flagSet.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			eng, err := flagSet.build(ctx)
			if err != nil {
				return err
			}
			defer eng.Close()

			result, runErr := eng.uc.Boot.Run(ctx)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return goerr.Wrap(err, "failed to write result")
			}
			return runErr
		},
	}
}
