package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/domain/interfaces"
	"github.com/secmon-lab/followup/pkg/service/notify"
	"github.com/secmon-lab/followup/pkg/service/slack"
	"github.com/secmon-lab/followup/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Notifier selects where alerts are raised
type Notifier struct {
	kind    string
	noColor bool
	slack   Slack
}

func (x *Notifier) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "notifier",
			Usage:       "Alert destination (console or slack)",
			Category:    "Notifier",
			Value:       "console",
			Sources:     cli.EnvVars("FOLLOWUP_NOTIFIER"),
			Destination: &x.kind,
		},
		&cli.BoolFlag{
			Name:        "no-color",
			Usage:       "Disable colored console alerts",
			Category:    "Notifier",
			Sources:     cli.EnvVars("FOLLOWUP_NO_COLOR"),
			Destination: &x.noColor,
		},
	}
	return append(flags, x.slack.Flags()...)
}

func (x Notifier) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("kind", x.kind),
		slog.Any("slack", x.slack),
	)
}

// Slack returns the Slack flag group
func (x *Notifier) Slack() *Slack {
	return &x.slack
}

// Configure builds the notifier
func (x *Notifier) Configure(ctx context.Context) (interfaces.Notifier, error) {
	switch x.kind {
	case "console", "":
		var opts []notify.ConsoleOption
		if x.noColor {
			opts = append(opts, notify.WithoutColor())
		}
		logging.From(ctx).Info("Using console notifier")
		return notify.NewConsole(opts...), nil

	case "slack":
		if x.slack.botToken == "" || x.slack.channelID == "" {
			return nil, goerr.Wrap(ErrMissingSlackArg, "invalid notifier configuration", goerr.V(NotifierKey, x.kind))
		}
		var opts []slack.Option
		if x.slack.apiURL != "" {
			opts = append(opts, slack.WithAPIURL(x.slack.apiURL))
		}
		svc, err := slack.New(x.slack.botToken, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize slack service")
		}
		n, err := notify.NewSlack(svc, x.slack.channelID)
		if err != nil {
			return nil, err
		}
		logging.From(ctx).Info("Using Slack notifier", "channel", x.slack.channelID)
		return n, nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid notifier", goerr.V(NotifierKey, x.kind))
	}
}
