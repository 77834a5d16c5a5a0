package worker

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/usecase"
	"github.com/secmon-lab/followup/pkg/utils/errutil"
	"github.com/secmon-lab/followup/pkg/utils/logging"
)

// ErrWriterStopped is returned for jobs submitted after the writer stopped
var ErrWriterStopped = goerr.New("writer is stopped")

const defaultMailboxSize = 64

// Writer is the single writer of the reminder store and the scheduler. It
// processes one job at a time to completion, in arrival order, so the
// read-modify-write of the whole collection never interleaves.
//
// Architecture assumptions:
// - One writer per installation; other processes route mutations here
// - Reads for display may bypass the writer and hit the store directly
type Writer struct {
	uc       *usecase.UseCases
	interval time.Duration
	mailbox  chan *job
	stopCh   chan struct{}
	doneCh   chan struct{}
}

type job struct {
	ctx    context.Context
	fn     func(ctx context.Context) (any, error)
	result chan jobResult
}

type jobResult struct {
	value any
	err   error
}

type Option func(*Writer)

// WithMaintenanceInterval sets how often schedule repair and cleanup run.
// Zero disables periodic maintenance.
func WithMaintenanceInterval(d time.Duration) Option {
	return func(w *Writer) {
		w.interval = d
	}
}

// WithMailboxSize sets the number of jobs that can wait for the writer
func WithMailboxSize(n int) Option {
	return func(w *Writer) {
		w.mailbox = make(chan *job, n)
	}
}

func NewWriter(uc *usecase.UseCases, opts ...Option) *Writer {
	w := &Writer{
		uc:      uc,
		mailbox: make(chan *job, defaultMailboxSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs the process entry point and then serves the mailbox in a
// background goroutine. Jobs submitted before the entry point finished are
// processed after it.
func (w *Writer) Start(ctx context.Context) error {
	logging.From(ctx).Info("writer starting",
		"maintenance_interval", w.interval.String())

	go w.run(ctx)

	return nil
}

// Stop signals the writer to stop and waits for the running job
func (w *Writer) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

// Done is closed when the writer loop has exited
func (w *Writer) Done() <-chan struct{} {
	return w.doneCh
}

func (w *Writer) run(ctx context.Context) {
	defer close(w.doneCh)

	if _, err := w.uc.Boot.Run(ctx); err != nil {
		errutil.Handle(ctx, err, "entry point incomplete")
	}

	var tick <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case j := <-w.mailbox:
			w.process(j)

		case <-tick:
			if _, err := w.uc.Boot.Maintain(ctx); err != nil {
				errutil.Handle(ctx, err, "maintenance failed (will retry next interval)")
			}

		case <-w.stopCh:
			logging.From(ctx).Info("writer received stop signal")
			return

		case <-ctx.Done():
			logging.From(ctx).Info("writer context cancelled")
			return
		}
	}
}

func (w *Writer) process(j *job) {
	// the submitter gave up before the job was taken
	if err := j.ctx.Err(); err != nil {
		j.result <- jobResult{err: goerr.Wrap(err, "job abandoned")}
		return
	}

	value, err := func() (v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = goerr.New("panic in writer job", goerr.V("panic", r))
			}
		}()
		return j.fn(j.ctx)
	}()
	j.result <- jobResult{value: value, err: err}
}

// Do runs fn on the writer and waits for its result
func (w *Writer) Do(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	j := &job{
		ctx:    ctx,
		fn:     fn,
		result: make(chan jobResult, 1),
	}

	select {
	case w.mailbox <- j:
	case <-w.doneCh:
		return nil, ErrWriterStopped
	case <-ctx.Done():
		return nil, goerr.Wrap(ctx.Err(), "failed to submit job")
	}

	select {
	case r := <-j.result:
		return r.value, r.err
	case <-w.doneCh:
		// the loop may have taken the job right before exiting
		select {
		case r := <-j.result:
			return r.value, r.err
		default:
			return nil, ErrWriterStopped
		}
	case <-ctx.Done():
		return nil, goerr.Wrap(ctx.Err(), "job cancelled while waiting")
	}
}

// Submit is the typed form of Writer.Do
func Submit[T any](ctx context.Context, w *Writer, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := w.Do(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, goerr.New("unexpected job result type")
	}
	return typed, nil
}

// HandleAlarm routes a fired wake-up through the writer. It is meant to be
// registered as the scheduler's fire handler.
func (w *Writer) HandleAlarm(ctx context.Context, key string) {
	_, err := w.Do(ctx, func(ctx context.Context) (any, error) {
		return nil, w.uc.Notification.HandleAlarm(ctx, key)
	})
	if err != nil {
		errutil.Warn(ctx, goerr.Wrap(err, "wake-up handling failed", goerr.V("key", key)), "alert not raised")
	}
}
