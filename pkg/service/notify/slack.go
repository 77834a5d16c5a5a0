package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/domain/interfaces"
	"github.com/secmon-lab/followup/pkg/domain/model"
	"github.com/secmon-lab/followup/pkg/domain/types"
	"github.com/secmon-lab/followup/pkg/service/slack"
	goslack "github.com/slack-go/slack"
)

// Block action IDs of the alert buttons. The button value is the reminder ID.
const (
	SlackActionOpen     = "followup_open"
	SlackActionComplete = "followup_complete"
)

// Slack posts alerts as channel messages. Raising an alert that is already
// posted updates the message; clearing deletes it.
type Slack struct {
	svc       slack.Service
	channelID string

	mu     sync.Mutex
	posted map[string]string // alert ID -> message timestamp
}

var _ interfaces.Notifier = &Slack{}

func NewSlack(svc slack.Service, channelID string) (*Slack, error) {
	if channelID == "" {
		return nil, goerr.New("Slack channel ID is required")
	}
	return &Slack{
		svc:       svc,
		channelID: channelID,
		posted:    make(map[string]string),
	}, nil
}

func (s *Slack) Alert(ctx context.Context, alert *model.Alert) error {
	blocks := alertBlocks(alert)
	fallback := alert.Title + ": " + alert.Message

	s.mu.Lock()
	defer s.mu.Unlock()

	if ts, ok := s.posted[alert.ID]; ok {
		if err := s.svc.UpdateMessage(ctx, s.channelID, ts, blocks, fallback); err != nil {
			return goerr.Wrap(err, "failed to update alert message", goerr.V("alert_id", alert.ID))
		}
		return nil
	}

	ts, err := s.svc.PostMessage(ctx, s.channelID, blocks, fallback)
	if err != nil {
		return goerr.Wrap(err, "failed to post alert message", goerr.V("alert_id", alert.ID))
	}
	s.posted[alert.ID] = ts
	return nil
}

func (s *Slack) Clear(ctx context.Context, alertID string) error {
	s.mu.Lock()
	ts, ok := s.posted[alertID]
	delete(s.posted, alertID)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	if err := s.svc.DeleteMessage(ctx, s.channelID, ts); err != nil {
		return goerr.Wrap(err, "failed to delete alert message", goerr.V("alert_id", alertID))
	}
	return nil
}

// Permission is granted while the bot token is valid
func (s *Slack) Permission(ctx context.Context) (types.PermissionLevel, error) {
	if _, err := s.svc.AuthTest(ctx); err != nil {
		return types.PermissionDenied, err
	}
	return types.PermissionGranted, nil
}

func alertBlocks(alert *model.Alert) []goslack.Block {
	priority := "low"
	if alert.Priority == types.AlertPriorityHigh {
		priority = "high"
	}

	blocks := []goslack.Block{
		goslack.NewHeaderBlock(goslack.NewTextBlockObject(goslack.PlainTextType, alert.Title, false, false)),
		goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, alert.Message, false, false), nil, nil),
		goslack.NewContextBlock("",
			goslack.NewTextBlockObject(goslack.MarkdownType,
				fmt.Sprintf("Reminder `%s` · priority %s", alert.ReminderID, priority), false, false),
		),
	}

	// Only due-reminder alerts are actionable
	if !alert.RequireInteraction {
		return blocks
	}

	value := string(alert.ReminderID)
	openBtn := goslack.NewButtonBlockElement(SlackActionOpen, value,
		goslack.NewTextBlockObject(goslack.PlainTextType, "Open conversation", false, false))
	openBtn.Style = goslack.StylePrimary
	completeBtn := goslack.NewButtonBlockElement(SlackActionComplete, value,
		goslack.NewTextBlockObject(goslack.PlainTextType, "Mark done", false, false))

	return append(blocks, goslack.NewActionBlock("followup_actions_"+value, openBtn, completeBtn))
}
