package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/followup/pkg/domain/interfaces"
	"github.com/secmon-lab/followup/pkg/domain/model"
	"github.com/secmon-lab/followup/pkg/utils/clock"
	"github.com/secmon-lab/followup/pkg/utils/logging"
)

// EventType names an outbound event
type EventType string

const (
	EventRemindersChanged EventType = "reminders_changed"
	EventBadge            EventType = "badge"
	EventAlertClick       EventType = "alert_click"
)

// Event is one message delivered to UI collaborators
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Data      any       `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
}

// RemindersChanged is the payload of EventRemindersChanged
type RemindersChanged struct {
	Reminders    []*model.Reminder `json:"reminders"`
	PendingCount int               `json:"pendingCount"`
}

// Badge is the payload of EventBadge
type Badge struct {
	PendingCount int `json:"pendingCount"`
}

// AlertClick is the payload of EventAlertClick. A collaborator that can
// reach the host chat application focuses the conversation.
type AlertClick struct {
	ReminderID        model.ReminderID `json:"reminderId"`
	ConversationID    string           `json:"conversationId"`
	ConversationLabel string           `json:"conversationLabel"`
}

const defaultBufferSize = 16

// Hub fans out events to subscribers. Slow subscribers lose events instead
// of blocking the writer.
type Hub struct {
	mu         sync.RWMutex
	subs       map[string]chan Event
	bufferSize int
	now        clock.Func
}

var (
	_ interfaces.Publisher = &Hub{}
	_ interfaces.Navigator = &Hub{}
)

type Option func(*Hub)

func WithBufferSize(n int) Option {
	return func(h *Hub) {
		h.bufferSize = n
	}
}

func New(opts ...Option) *Hub {
	h := &Hub{
		subs:       make(map[string]chan Event),
		bufferSize: defaultBufferSize,
		now:        clock.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a subscriber. The returned function unsubscribes and
// closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	id := uuid.New().String()
	ch := make(chan Event, h.bufferSize)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// SubscriberCount returns the number of connected subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers an event and returns how many subscribers received it
func (h *Hub) Publish(ctx context.Context, eventType EventType, data any) int {
	ev := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Data:      data,
		CreatedAt: h.now(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for id, ch := range h.subs {
		select {
		case ch <- ev:
			delivered++
		default:
			logging.From(ctx).Warn("event dropped for slow subscriber",
				"subscriber_id", id,
				"event_type", eventType,
			)
		}
	}
	return delivered
}

func (h *Hub) PublishReminders(ctx context.Context, reminders []*model.Reminder) {
	h.Publish(ctx, EventRemindersChanged, &RemindersChanged{
		Reminders:    reminders,
		PendingCount: model.CountPending(reminders),
	})
}

func (h *Hub) PublishBadge(ctx context.Context, pendingCount int) {
	h.Publish(ctx, EventBadge, &Badge{PendingCount: pendingCount})
}

// OpenConversation hands the alert click to connected collaborators. It
// fails when nobody received it.
func (h *Hub) OpenConversation(ctx context.Context, reminder *model.Reminder) error {
	delivered := h.Publish(ctx, EventAlertClick, &AlertClick{
		ReminderID:        reminder.ID,
		ConversationID:    reminder.ConversationID,
		ConversationLabel: reminder.ConversationLabel,
	})
	if delivered == 0 {
		return interfaces.ErrNavigationUnavailable
	}
	return nil
}
