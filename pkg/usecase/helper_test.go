package usecase_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/followup/pkg/domain/interfaces"
	"github.com/secmon-lab/followup/pkg/domain/model"
	"github.com/secmon-lab/followup/pkg/domain/model/config"
	"github.com/secmon-lab/followup/pkg/domain/types"
	"github.com/secmon-lab/followup/pkg/repository/memory"
	"github.com/secmon-lab/followup/pkg/usecase"
)

var baseTime = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeScheduler struct {
	mu        sync.Mutex
	entries   map[string]time.Time
	cancelled []string
	failWith  error
}

var _ interfaces.Scheduler = &fakeScheduler{}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{entries: make(map[string]time.Time)}
}

func (s *fakeScheduler) Schedule(ctx context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.entries[key] = at
	return nil
}

func (s *fakeScheduler) Cancel(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	s.cancelled = append(s.cancelled, key)
	return nil
}

func (s *fakeScheduler) ListActive(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// dropAll simulates a restart of the host environment
func (s *fakeScheduler) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]time.Time)
}

func (s *fakeScheduler) scheduledAt(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.entries[key]
	return at, ok
}

type recordingNotifier struct {
	mu       sync.Mutex
	alerts   []*model.Alert
	cleared  []string
	alertErr error
	level    types.PermissionLevel
	permErr  error
}

var _ interfaces.Notifier = &recordingNotifier{}

func (n *recordingNotifier) Alert(ctx context.Context, alert *model.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.alertErr != nil {
		return n.alertErr
	}
	n.alerts = append(n.alerts, alert)
	return nil
}

func (n *recordingNotifier) Clear(ctx context.Context, alertID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cleared = append(n.cleared, alertID)
	return nil
}

func (n *recordingNotifier) Permission(ctx context.Context) (types.PermissionLevel, error) {
	if n.permErr != nil {
		return "", n.permErr
	}
	return n.level, nil
}

type fakeNavigator struct {
	err    error
	opened []model.ReminderID
}

func (n *fakeNavigator) OpenConversation(ctx context.Context, reminder *model.Reminder) error {
	if n.err != nil {
		return n.err
	}
	n.opened = append(n.opened, reminder.ID)
	return nil
}

type recordingPublisher struct {
	mu          sync.Mutex
	collections [][]*model.Reminder
	badges      []int
}

func (p *recordingPublisher) PublishReminders(ctx context.Context, reminders []*model.Reminder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collections = append(p.collections, reminders)
}

func (p *recordingPublisher) PublishBadge(ctx context.Context, pendingCount int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.badges = append(p.badges, pendingCount)
}

// failingStore wraps the memory store and fails writes on demand
type failingStore struct {
	*memory.Store
	saveErr error
}

func (s *failingStore) SaveReminders(ctx context.Context, reminders []*model.Reminder) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.Store.SaveReminders(ctx, reminders)
}

type testEnv struct {
	uc        *usecase.UseCases
	store     interfaces.ReminderStore
	scheduler *fakeScheduler
	notifier  *recordingNotifier
	navigator *fakeNavigator
	publisher *recordingPublisher
	clock     *testClock
	config    *config.EngineConfig
}

type envOption func(*testEnv)

func withStore(store interfaces.ReminderStore) envOption {
	return func(e *testEnv) { e.store = store }
}

func withConfig(modify func(cfg *config.EngineConfig)) envOption {
	return func(e *testEnv) { modify(e.config) }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	env := &testEnv{
		store:     memory.New(),
		scheduler: newFakeScheduler(),
		notifier:  &recordingNotifier{level: types.PermissionGranted},
		navigator: &fakeNavigator{},
		publisher: &recordingPublisher{},
		clock:     &testClock{now: baseTime},
		config:    config.DefaultEngineConfig(),
	}
	for _, opt := range opts {
		opt(env)
	}
	gt.NoError(t, env.config.Validate()).Required()

	env.uc = usecase.New(env.store, env.scheduler,
		usecase.WithEngineConfig(env.config),
		usecase.WithNotifier(env.notifier),
		usecase.WithNavigator(env.navigator),
		usecase.WithPublisher(env.publisher),
		usecase.WithClock(env.clock.Now),
	)
	return env
}

func (e *testEnv) request(label string, in time.Duration) *model.CreateReminderRequest {
	return &model.CreateReminderRequest{
		ConversationID:    "819012345678@c.us",
		ConversationLabel: label,
		ScheduledAt:       float64(e.clock.Now().Add(in).UnixMilli()),
	}
}

func (e *testEnv) create(t *testing.T, label string, in time.Duration) *model.Reminder {
	t.Helper()
	r, err := e.uc.Reminder.Create(context.Background(), e.request(label, in))
	gt.NoError(t, err).Required()
	return r
}

func (e *testEnv) stored(t *testing.T) []*model.Reminder {
	t.Helper()
	reminders, err := e.store.GetReminders(context.Background())
	gt.NoError(t, err).Required()
	return reminders
}

var errInjected = goerr.New("injected failure")
