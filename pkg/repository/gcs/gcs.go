package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/domain/interfaces"
	"github.com/secmon-lab/followup/pkg/domain/model"
	"github.com/secmon-lab/followup/pkg/utils/logging"
	"github.com/secmon-lab/followup/pkg/utils/safe"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	remindersObject = "reminders.json"
	planObject      = "plan.json"
	versionObject   = "version.json"

	// DefaultPollInterval is how often the change feed checks the reminders object
	DefaultPollInterval = 10 * time.Second
)

// Store keeps each record as one JSON object under a bucket prefix. An object
// write replaces the record atomically.
type Store struct {
	client       *storage.Client
	bucket       string
	prefix       string
	pollInterval time.Duration

	versionOnce sync.Once
}

var _ interfaces.ReminderStore = &Store{}

type Option func(*Store)

func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		s.pollInterval = d
	}
}

func New(ctx context.Context, bucket string, opts []Option, clientOpts ...option.ClientOption) (*Store, error) {
	if bucket == "" {
		return nil, goerr.New("bucket name is required")
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client", goerr.V("bucket", bucket))
	}

	s := &Store{
		client:       client,
		bucket:       bucket,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) object(name string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(path.Join(s.prefix, name))
}

// read decodes an object into v. It reports false when the object does not exist.
func (s *Store) read(ctx context.Context, name string, v any) (bool, error) {
	r, err := s.object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, goerr.Wrap(interfaces.ErrStorage, "failed to open object",
			goerr.V("object", name), goerr.V("error", err.Error()))
	}
	defer safe.Close(ctx, r)

	data, err := io.ReadAll(r)
	if err != nil {
		return false, goerr.Wrap(interfaces.ErrStorage, "failed to read object",
			goerr.V("object", name), goerr.V("error", err.Error()))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, goerr.Wrap(interfaces.ErrStorage, "failed to decode object",
			goerr.V("object", name), goerr.V("error", err.Error()))
	}
	return true, nil
}

func (s *Store) write(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return goerr.Wrap(interfaces.ErrStorage, "failed to encode object",
			goerr.V("object", name), goerr.V("error", err.Error()))
	}

	w := s.object(name).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return wrapWriteError(err, name)
	}
	if err := w.Close(); err != nil {
		return wrapWriteError(err, name)
	}

	s.versionOnce.Do(func() {
		if err := s.writeVersion(ctx); err != nil {
			logging.From(ctx).Warn("failed to write schema version", "error", err.Error())
		}
	})
	return nil
}

func (s *Store) writeVersion(ctx context.Context) error {
	w := s.object(versionObject).NewWriter(ctx)
	w.ContentType = "application/json"
	data, err := json.Marshal(map[string]int{"schemaVersion": interfaces.SchemaVersion})
	if err != nil {
		return goerr.Wrap(err, "failed to encode schema version")
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write schema version")
	}
	return w.Close()
}

func wrapWriteError(err error, name string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) &&
		(apiErr.Code == http.StatusRequestEntityTooLarge || apiErr.Code == http.StatusInsufficientStorage) {
		return goerr.Wrap(interfaces.ErrStorageQuotaExceeded, "object rejected for size",
			goerr.V("object", name), goerr.V("error", err.Error()))
	}
	return goerr.Wrap(interfaces.ErrStorage, "failed to write object",
		goerr.V("object", name), goerr.V("error", err.Error()))
}

func (s *Store) GetReminders(ctx context.Context) ([]*model.Reminder, error) {
	var reminders []*model.Reminder
	if _, err := s.read(ctx, remindersObject, &reminders); err != nil {
		return nil, err
	}
	if reminders == nil {
		reminders = []*model.Reminder{}
	}
	return reminders, nil
}

func (s *Store) SaveReminders(ctx context.Context, reminders []*model.Reminder) error {
	if reminders == nil {
		reminders = []*model.Reminder{}
	}
	return s.write(ctx, remindersObject, reminders)
}

func (s *Store) GetPlan(ctx context.Context) (*model.Plan, error) {
	var plan model.Plan
	found, err := s.read(ctx, planObject, &plan)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &plan, nil
}

func (s *Store) SavePlan(ctx context.Context, plan *model.Plan) error {
	return s.write(ctx, planObject, plan)
}

// SubscribeReminders polls the reminders object generation. Any writer that
// replaces the object, in any process, bumps the generation.
func (s *Store) SubscribeReminders(ctx context.Context, fn func([]*model.Reminder)) (func(), error) {
	generation, err := s.generation(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				current, err := s.generation(ctx)
				if err != nil {
					logging.From(ctx).Warn("failed to poll reminders object", "error", err.Error())
					continue
				}
				if current == generation {
					continue
				}
				generation = current

				reminders, err := s.GetReminders(ctx)
				if err != nil {
					logging.From(ctx).Warn("failed to read changed reminders", "error", err.Error())
					continue
				}
				fn(reminders)
			}
		}
	}()

	return cancel, nil
}

func (s *Store) generation(ctx context.Context) (int64, error) {
	attrs, err := s.object(remindersObject).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return 0, nil
		}
		return 0, goerr.Wrap(interfaces.ErrStorage, "failed to get object attributes",
			goerr.V("object", remindersObject), goerr.V("error", err.Error()))
	}
	return attrs.Generation, nil
}

func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
