package slack

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

// client implements Service interface
type client struct {
	api *slack.Client
}

// Option is a functional option for client configuration
type Option func(*clientConfig)

type clientConfig struct {
	apiURL string
}

// WithAPIURL points the client at a different Slack API endpoint
func WithAPIURL(url string) Option {
	return func(c *clientConfig) {
		c.apiURL = url
	}
}

// New creates a new Slack service with the provided bot token
func New(token string, opts ...Option) (Service, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}

	var cfg clientConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var apiOpts []slack.Option
	if cfg.apiURL != "" {
		apiOpts = append(apiOpts, slack.OptionAPIURL(cfg.apiURL))
	}

	return &client{api: slack.New(token, apiOpts...)}, nil
}

func (c *client) PostMessage(ctx context.Context, channelID string, blocks []slack.Block, text string) (string, error) {
	_, ts, err := c.api.PostMessageContext(ctx, channelID,
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to post message", goerr.V("channel_id", channelID))
	}
	return ts, nil
}

func (c *client) UpdateMessage(ctx context.Context, channelID string, timestamp string, blocks []slack.Block, text string) error {
	_, _, _, err := c.api.UpdateMessageContext(ctx, channelID, timestamp,
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to update message",
			goerr.V("channel_id", channelID),
			goerr.V("timestamp", timestamp))
	}
	return nil
}

func (c *client) DeleteMessage(ctx context.Context, channelID string, timestamp string) error {
	if _, _, err := c.api.DeleteMessageContext(ctx, channelID, timestamp); err != nil {
		return goerr.Wrap(err, "failed to delete message",
			goerr.V("channel_id", channelID),
			goerr.V("timestamp", timestamp))
	}
	return nil
}

func (c *client) AuthTest(ctx context.Context) (*Identity, error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to verify Slack token")
	}
	return &Identity{
		TeamID: resp.TeamID,
		Team:   resp.Team,
		UserID: resp.UserID,
		URL:    resp.URL,
	}, nil
}
