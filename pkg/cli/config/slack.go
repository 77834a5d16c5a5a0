package config

import (
	"log/slog"

	"github.com/urfave/cli/v3"
)

// Slack holds CLI flags of the Slack integration: the bot that posts alerts
// and the signing secret that authenticates button clicks.
type Slack struct {
	botToken      string
	channelID     string
	signingSecret string
	apiURL        string
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token (for posting alerts)",
			Category:    "Slack",
			Destination: &x.botToken,
			Sources:     cli.EnvVars("FOLLOWUP_SLACK_BOT_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-channel",
			Usage:       "Slack channel ID alerts are posted to",
			Category:    "Slack",
			Destination: &x.channelID,
			Sources:     cli.EnvVars("FOLLOWUP_SLACK_CHANNEL"),
		},
		&cli.StringFlag{
			Name:        "slack-signing-secret",
			Usage:       "Slack Signing Secret (enables the interaction endpoint for alert buttons)",
			Category:    "Slack",
			Destination: &x.signingSecret,
			Sources:     cli.EnvVars("FOLLOWUP_SLACK_SIGNING_SECRET"),
		},
		&cli.StringFlag{
			Name:        "slack-api-url",
			Usage:       "Slack API base URL (for testing)",
			Category:    "Slack",
			Destination: &x.apiURL,
			Sources:     cli.EnvVars("FOLLOWUP_SLACK_API_URL"),
			Hidden:      true,
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("bot-token.len", len(x.botToken)),
		slog.String("channel", x.channelID),
		slog.Int("signing-secret.len", len(x.signingSecret)),
	)
}

// BotToken returns the Slack bot token
func (x *Slack) BotToken() string {
	return x.botToken
}

// ChannelID returns the alert channel
func (x *Slack) ChannelID() string {
	return x.channelID
}

// IsInteractionConfigured checks if the interaction endpoint can verify requests
func (x *Slack) IsInteractionConfigured() bool {
	return x.signingSecret != ""
}

// SigningSecret returns the Slack signing secret
func (x *Slack) SigningSecret() string {
	return x.signingSecret
}
