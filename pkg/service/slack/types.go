package slack

import (
	"context"

	"github.com/slack-go/slack"
)

// Service provides interface to Slack API for alert delivery
type Service interface {
	// PostMessage posts a Block Kit message to a channel and returns the message timestamp.
	// The text parameter is used as a fallback for notifications.
	PostMessage(ctx context.Context, channelID string, blocks []slack.Block, text string) (string, error)

	// UpdateMessage updates an existing Block Kit message identified by channel and timestamp.
	UpdateMessage(ctx context.Context, channelID string, timestamp string, blocks []slack.Block, text string) error

	// DeleteMessage removes a message identified by channel and timestamp
	DeleteMessage(ctx context.Context, channelID string, timestamp string) error

	// AuthTest verifies the bot token and returns the bot identity
	AuthTest(ctx context.Context) (*Identity, error)
}

// Identity is the bot identity returned by auth.test
type Identity struct {
	TeamID string
	Team   string
	UserID string
	URL    string
}
