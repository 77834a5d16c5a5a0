package notify

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/domain/interfaces"
	"github.com/secmon-lab/followup/pkg/domain/model"
	"github.com/secmon-lab/followup/pkg/domain/types"
)

// Console prints alerts to a terminal. An alert that is already shown is not
// printed again until it is cleared.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	shown map[string]struct{}

	high  *color.Color
	low   *color.Color
	muted *color.Color
}

var _ interfaces.Notifier = &Console{}

type ConsoleOption func(*Console)

// WithWriter sets the output destination (default: stdout)
func WithWriter(w io.Writer) ConsoleOption {
	return func(c *Console) {
		c.w = w
	}
}

// WithoutColor disables ANSI colors
func WithoutColor() ConsoleOption {
	return func(c *Console) {
		c.high.DisableColor()
		c.low.DisableColor()
		c.muted.DisableColor()
	}
}

func NewConsole(opts ...ConsoleOption) *Console {
	c := &Console{
		w:     os.Stdout,
		shown: make(map[string]struct{}),
		high:  color.New(color.FgRed, color.Bold),
		low:   color.New(color.FgYellow),
		muted: color.New(color.FgHiBlack),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Console) Alert(ctx context.Context, alert *model.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.shown[alert.ID]; ok {
		return nil
	}

	title := c.low
	if alert.Priority == types.AlertPriorityHigh {
		title = c.high
	}
	if _, err := title.Fprintf(c.w, "%s\n", alert.Title); err != nil {
		return goerr.Wrap(err, "failed to write alert", goerr.V("alert_id", alert.ID))
	}
	if _, err := c.muted.Fprintf(c.w, "   %s (id: %s)\n", alert.Message, alert.ReminderID); err != nil {
		return goerr.Wrap(err, "failed to write alert", goerr.V("alert_id", alert.ID))
	}

	if alert.RequireInteraction {
		c.shown[alert.ID] = struct{}{}
	}
	return nil
}

func (c *Console) Clear(ctx context.Context, alertID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.shown, alertID)
	return nil
}

// Permission is always granted for a terminal
func (c *Console) Permission(ctx context.Context) (types.PermissionLevel, error) {
	return types.PermissionGranted, nil
}
