package memory

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/domain/interfaces"
	"github.com/secmon-lab/followup/pkg/domain/model"
)

// Store is an in-process ReminderStore. It is used for development and tests
// and keeps nothing across restarts.
type Store struct {
	mu         sync.RWMutex
	reminders  []*model.Reminder
	plan       *model.Plan
	quotaBytes int64

	subMu       sync.Mutex
	subscribers map[int]func([]*model.Reminder)
	nextSubID   int
}

var _ interfaces.ReminderStore = &Store{}

type Option func(*Store)

// WithQuotaBytes makes SaveReminders reject collections larger than n bytes,
// mimicking a durable store with a hard size limit.
func WithQuotaBytes(n int64) Option {
	return func(s *Store) {
		s.quotaBytes = n
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		subscribers: make(map[int]func([]*model.Reminder)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) GetReminders(ctx context.Context) ([]*model.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.reminders == nil {
		return []*model.Reminder{}, nil
	}
	return model.CopyReminders(s.reminders), nil
}

func (s *Store) SaveReminders(ctx context.Context, reminders []*model.Reminder) error {
	if s.quotaBytes > 0 {
		size, err := model.EstimateSize(reminders)
		if err != nil {
			return goerr.Wrap(interfaces.ErrStorage, "failed to measure reminders", goerr.V("error", err.Error()))
		}
		if size > s.quotaBytes {
			return goerr.Wrap(interfaces.ErrStorageQuotaExceeded, "reminders exceed store quota",
				goerr.V("size", size), goerr.V("quota", s.quotaBytes))
		}
	}

	s.mu.Lock()
	s.reminders = model.CopyReminders(reminders)
	s.mu.Unlock()

	s.notify(model.CopyReminders(reminders))
	return nil
}

func (s *Store) GetPlan(ctx context.Context) (*model.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.plan == nil {
		return nil, nil
	}
	plan := *s.plan
	return &plan, nil
}

func (s *Store) SavePlan(ctx context.Context, plan *model.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *plan
	s.plan = &copied
	return nil
}

func (s *Store) SubscribeReminders(ctx context.Context, fn func([]*model.Reminder)) (func(), error) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}, nil
}

func (s *Store) notify(reminders []*model.Reminder) {
	s.subMu.Lock()
	fns := make([]func([]*model.Reminder), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(model.CopyReminders(reminders))
	}
}

func (s *Store) Close() error {
	return nil
}
