package alarm

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/secmon-lab/followup/pkg/domain/interfaces"
	"github.com/secmon-lab/followup/pkg/utils/clock"
	"github.com/secmon-lab/followup/pkg/utils/logging"
)

// Handler is invoked when a named wake-up fires
type Handler func(ctx context.Context, key string)

// Service is an in-process one-shot timer facility. Entries live only as
// long as the process: a restart drops all of them, which is why the store
// stays the source of truth and reconciliation rebuilds the schedule.
type Service struct {
	mu      sync.Mutex
	entries map[string]*entry
	handler Handler
	now     clock.Func
	baseCtx context.Context
}

type entry struct {
	at    time.Time
	timer *time.Timer
}

var _ interfaces.Scheduler = &Service{}

func New() *Service {
	return &Service{
		entries: make(map[string]*entry),
		now:     clock.Now,
		baseCtx: context.Background(),
	}
}

// OnFire registers the fire callback. Wake-ups firing before a handler is
// registered are dropped; reconciliation and the overdue scan cover them.
func (s *Service) OnFire(ctx context.Context, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
	s.baseCtx = logging.With(context.Background(), logging.From(ctx))
}

func (s *Service) Schedule(ctx context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[key]; ok {
		existing.timer.Stop()
	}

	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	e := &entry{at: at}
	e.timer = time.AfterFunc(delay, func() { s.fire(key, e) })
	s.entries[key] = e

	logging.From(ctx).Debug("wake-up scheduled", "key", key, "at", at, "delay", delay)
	return nil
}

func (s *Service) fire(key string, e *entry) {
	s.mu.Lock()
	if s.entries[key] != e {
		// replaced or cancelled after the timer started
		s.mu.Unlock()
		return
	}
	delete(s.entries, key)
	h := s.handler
	ctx := s.baseCtx
	s.mu.Unlock()

	if h == nil {
		logging.From(ctx).Warn("wake-up fired without handler", "key", key)
		return
	}
	h(ctx, key)
}

func (s *Service) Cancel(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.timer.Stop()
		delete(s.entries, key)
	}
	return nil
}

func (s *Service) ListActive(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Reset drops every entry without firing, as a restart of the host would
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, key)
	}
}
