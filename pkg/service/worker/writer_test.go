package worker_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/followup/pkg/domain/model"
	"github.com/secmon-lab/followup/pkg/domain/model/config"
	"github.com/secmon-lab/followup/pkg/domain/types"
	"github.com/secmon-lab/followup/pkg/repository/memory"
	"github.com/secmon-lab/followup/pkg/service/alarm"
	"github.com/secmon-lab/followup/pkg/service/worker"
	"github.com/secmon-lab/followup/pkg/usecase"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []*model.Alert
}

func (n *recordingNotifier) Alert(ctx context.Context, alert *model.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return nil
}

func (n *recordingNotifier) Clear(ctx context.Context, alertID string) error {
	return nil
}

func (n *recordingNotifier) Permission(ctx context.Context) (types.PermissionLevel, error) {
	return types.PermissionGranted, nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

type testSetup struct {
	store    *memory.Store
	alarms   *alarm.Service
	notifier *recordingNotifier
	uc       *usecase.UseCases
}

func newSetup(t *testing.T) *testSetup {
	t.Helper()
	cfg := config.DefaultEngineConfig()
	cfg.DefaultPlanLimit = types.UnlimitedReminders

	s := &testSetup{
		store:    memory.New(),
		alarms:   alarm.New(),
		notifier: &recordingNotifier{},
	}
	s.uc = usecase.New(s.store, s.alarms,
		usecase.WithEngineConfig(cfg),
		usecase.WithNotifier(s.notifier),
	)
	t.Cleanup(s.alarms.Reset)
	return s
}

func startWriter(t *testing.T, uc *usecase.UseCases, opts ...worker.Option) *worker.Writer {
	t.Helper()
	w := worker.NewWriter(uc, opts...)
	gt.NoError(t, w.Start(context.Background())).Required()
	t.Cleanup(func() {
		select {
		case <-w.Done():
		default:
			w.Stop()
		}
	})
	return w
}

func createRequest(label string) *model.CreateReminderRequest {
	return &model.CreateReminderRequest{
		ConversationID:    "819012345678@c.us",
		ConversationLabel: label,
		ScheduledAt:       float64(time.Now().Add(time.Hour).UnixMilli()),
	}
}

func TestWriter_SerializesConcurrentCreates(t *testing.T) {
	s := newSetup(t)
	w := startWriter(t, s.uc)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := worker.Submit(ctx, w, func(ctx context.Context) (*model.Reminder, error) {
				return s.uc.Reminder.Create(ctx, createRequest(fmt.Sprintf("contact-%d", i)))
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		gt.NoError(t, err).Required()
	}

	reminders, err := s.store.GetReminders(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, reminders).Length(n)

	active, err := s.alarms.ListActive(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, active).Length(n)
}

func TestWriter_RunsEntryPointFirst(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour).Truncate(time.Millisecond).UTC()
	gt.NoError(t, s.store.SaveReminders(ctx, []*model.Reminder{{
		ID:                "overdue",
		ConversationID:    "1@c.us",
		ConversationLabel: "Overdue",
		ScheduledAt:       past,
		CreatedAt:         past.Add(-time.Hour),
		Status:            types.ReminderStatusPending,
	}})).Required()

	w := startWriter(t, s.uc)

	// any job runs after the entry point finished
	_, err := w.Do(ctx, func(ctx context.Context) (any, error) { return nil, nil })
	gt.NoError(t, err).Required()

	gt.Value(t, s.notifier.count()).Equal(1)
	plan, err := s.store.GetPlan(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, plan).NotNil()
}

func TestWriter_HandleAlarm(t *testing.T) {
	s := newSetup(t)
	w := startWriter(t, s.uc)
	ctx := context.Background()

	r, err := worker.Submit(ctx, w, func(ctx context.Context) (*model.Reminder, error) {
		return s.uc.Reminder.Create(ctx, createRequest("Alice"))
	})
	gt.NoError(t, err).Required()

	w.HandleAlarm(ctx, r.AlarmKey())
	gt.Value(t, s.notifier.count()).Equal(1)

	reminders, err := s.store.GetReminders(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, reminders[0].Status).Equal(types.ReminderStatusPending)
}

func TestWriter_ErrorsPassThrough(t *testing.T) {
	s := newSetup(t)
	w := startWriter(t, s.uc)

	_, err := worker.Submit(context.Background(), w, func(ctx context.Context) (*model.Reminder, error) {
		return s.uc.Reminder.Complete(ctx, model.NewReminderID())
	})
	gt.Error(t, err).Is(usecase.ErrReminderNotFound)
}

func TestWriter_RecoversFromPanic(t *testing.T) {
	s := newSetup(t)
	w := startWriter(t, s.uc)
	ctx := context.Background()

	_, err := w.Do(ctx, func(ctx context.Context) (any, error) {
		panic("boom")
	})
	gt.Error(t, err)

	// the writer keeps serving
	_, err = w.Do(ctx, func(ctx context.Context) (any, error) { return "ok", nil })
	gt.NoError(t, err).Required()
}

func TestWriter_Stopped(t *testing.T) {
	s := newSetup(t)
	w := startWriter(t, s.uc)
	w.Stop()

	_, err := w.Do(context.Background(), func(ctx context.Context) (any, error) { return nil, nil })
	gt.Error(t, err).Is(worker.ErrWriterStopped)
}

func TestWriter_PeriodicMaintenance(t *testing.T) {
	s := newSetup(t)
	w := startWriter(t, s.uc, worker.WithMaintenanceInterval(20*time.Millisecond))
	ctx := context.Background()

	r, err := worker.Submit(ctx, w, func(ctx context.Context) (*model.Reminder, error) {
		return s.uc.Reminder.Create(ctx, createRequest("Alice"))
	})
	gt.NoError(t, err).Required()

	s.alarms.Reset()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		active, err := s.alarms.ListActive(ctx)
		gt.NoError(t, err).Required()
		if len(active) == 1 {
			gt.Value(t, active[0]).Equal(r.AlarmKey())
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("maintenance did not restore the wake-up")
}

func TestWriter_DueReminderAlertsOnceAcrossMaintenance(t *testing.T) {
	s := newSetup(t)
	w := startWriter(t, s.uc, worker.WithMaintenanceInterval(20*time.Millisecond))
	s.alarms.OnFire(context.Background(), w.HandleAlarm)
	ctx := context.Background()

	_, err := worker.Submit(ctx, w, func(ctx context.Context) (*model.Reminder, error) {
		req := createRequest("Alice")
		req.ScheduledAt = float64(time.Now().Add(30 * time.Millisecond).UnixMilli())
		return s.uc.Reminder.Create(ctx, req)
	})
	gt.NoError(t, err).Required()

	deadline := time.Now().Add(2 * time.Second)
	for s.notifier.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	gt.Value(t, s.notifier.count()).Equal(1)

	// several maintenance ticks pass while the reminder stays pending
	time.Sleep(200 * time.Millisecond)
	_, err = w.Do(ctx, func(ctx context.Context) (any, error) { return nil, nil })
	gt.NoError(t, err).Required()
	gt.Value(t, s.notifier.count()).Equal(1)

	active, err := s.alarms.ListActive(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, active).Length(0)

	reminders, err := s.store.GetReminders(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, reminders[0].Status).Equal(types.ReminderStatusPending)
}
