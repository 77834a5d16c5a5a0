package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/domain/interfaces"
	"github.com/secmon-lab/followup/pkg/domain/model"
	"github.com/secmon-lab/followup/pkg/domain/types"
	"github.com/secmon-lab/followup/pkg/utils/logging"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultInstallationID is the document used when none is configured
const DefaultInstallationID = "default"

// Store keeps one installation in a single Firestore document:
//
//	{collection}/{installationID} = {reminders: [...], plan: {...}, schemaVersion: 1}
//
// Reminder writes replace the reminders field as a whole.
type Store struct {
	client           *firestore.Client
	collectionPrefix string
	installationID   string
}

var _ interfaces.ReminderStore = &Store{}

type Option func(*Store)

func WithCollectionPrefix(prefix string) Option {
	return func(s *Store) {
		s.collectionPrefix = prefix
	}
}

func WithInstallationID(id string) Option {
	return func(s *Store) {
		s.installationID = id
	}
}

func New(ctx context.Context, projectID, databaseID string, opts []Option, clientOpts ...option.ClientOption) (*Store, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, clientOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	s := &Store{
		client:         client,
		installationID: DefaultInstallationID,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

type reminderDoc struct {
	ID                string     `firestore:"id"`
	ConversationID    string     `firestore:"conversationId"`
	ConversationLabel string     `firestore:"conversationLabel"`
	ScheduledAt       time.Time  `firestore:"scheduledAt"`
	CreatedAt         time.Time  `firestore:"createdAt"`
	Status            string     `firestore:"status"`
	CompletedAt       *time.Time `firestore:"completedAt"`
}

type planDoc struct {
	PlanType            string `firestore:"planType"`
	ActiveReminderLimit int    `firestore:"activeReminderLimit"`
}

type installationDoc struct {
	Reminders     []reminderDoc `firestore:"reminders"`
	Plan          *planDoc      `firestore:"plan"`
	SchemaVersion int           `firestore:"schemaVersion"`
}

func toReminderDoc(r *model.Reminder) reminderDoc {
	return reminderDoc{
		ID:                string(r.ID),
		ConversationID:    r.ConversationID,
		ConversationLabel: r.ConversationLabel,
		ScheduledAt:       r.ScheduledAt,
		CreatedAt:         r.CreatedAt,
		Status:            string(r.Status),
		CompletedAt:       r.CompletedAt,
	}
}

func fromReminderDoc(d reminderDoc) *model.Reminder {
	r := &model.Reminder{
		ID:                model.ReminderID(d.ID),
		ConversationID:    d.ConversationID,
		ConversationLabel: d.ConversationLabel,
		ScheduledAt:       d.ScheduledAt.UTC(),
		CreatedAt:         d.CreatedAt.UTC(),
		Status:            types.ReminderStatus(d.Status),
	}
	if d.CompletedAt != nil {
		completedAt := d.CompletedAt.UTC()
		r.CompletedAt = &completedAt
	}
	return r
}

func fromInstallationDoc(doc *installationDoc) []*model.Reminder {
	reminders := make([]*model.Reminder, 0, len(doc.Reminders))
	for _, d := range doc.Reminders {
		reminders = append(reminders, fromReminderDoc(d))
	}
	return reminders
}

func (s *Store) installationsCollection() string {
	if s.collectionPrefix != "" {
		return s.collectionPrefix + "_installations"
	}
	return "installations"
}

func (s *Store) docRef() *firestore.DocumentRef {
	return s.client.Collection(s.installationsCollection()).Doc(s.installationID)
}

func (s *Store) load(ctx context.Context) (*installationDoc, error) {
	snap, err := s.docRef().Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return &installationDoc{}, nil
		}
		return nil, goerr.Wrap(interfaces.ErrStorage, "failed to get installation",
			goerr.V("installation_id", s.installationID),
			goerr.V("error", err.Error()))
	}

	var doc installationDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(interfaces.ErrStorage, "failed to decode installation",
			goerr.V("installation_id", s.installationID),
			goerr.V("error", err.Error()))
	}
	return &doc, nil
}

func (s *Store) GetReminders(ctx context.Context) ([]*model.Reminder, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return fromInstallationDoc(doc), nil
}

func (s *Store) SaveReminders(ctx context.Context, reminders []*model.Reminder) error {
	docs := make([]reminderDoc, 0, len(reminders))
	for _, r := range reminders {
		docs = append(docs, toReminderDoc(r))
	}

	_, err := s.docRef().Set(ctx, map[string]any{
		"reminders":     docs,
		"schemaVersion": interfaces.SchemaVersion,
	}, firestore.MergeAll)
	if err != nil {
		return wrapWriteError(err, "failed to save reminders", goerr.V("count", len(reminders)))
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context) (*model.Plan, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if doc.Plan == nil {
		return nil, nil
	}
	return &model.Plan{
		Type:                types.PlanType(doc.Plan.PlanType),
		ActiveReminderLimit: doc.Plan.ActiveReminderLimit,
	}, nil
}

func (s *Store) SavePlan(ctx context.Context, plan *model.Plan) error {
	_, err := s.docRef().Set(ctx, map[string]any{
		"plan": planDoc{
			PlanType:            string(plan.Type),
			ActiveReminderLimit: plan.ActiveReminderLimit,
		},
		"schemaVersion": interfaces.SchemaVersion,
	}, firestore.MergeAll)
	if err != nil {
		return wrapWriteError(err, "failed to save plan", goerr.V("plan_type", plan.Type))
	}
	return nil
}

// SubscribeReminders listens to the installation document. Snapshots that
// only touch the plan are filtered out by comparing the reminders field.
func (s *Store) SubscribeReminders(ctx context.Context, fn func([]*model.Reminder)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	iter := s.docRef().Snapshots(ctx)

	go func() {
		defer iter.Stop()

		var last []reminderDoc
		first := true
		for {
			snap, err := iter.Next()
			if err != nil {
				if ctx.Err() == nil && status.Code(err) != codes.Canceled {
					logging.From(ctx).Warn("firestore reminder listener stopped", "error", err.Error())
				}
				return
			}

			var doc installationDoc
			if snap.Exists() {
				if err := snap.DataTo(&doc); err != nil {
					logging.From(ctx).Warn("failed to decode installation snapshot", "error", err.Error())
					continue
				}
			}

			if first {
				first = false
				last = doc.Reminders
				continue
			}
			if sameReminderDocs(last, doc.Reminders) {
				continue
			}
			last = doc.Reminders
			fn(fromInstallationDoc(&doc))
		}
	}()

	return cancel, nil
}

func sameReminderDocs(a, b []reminderDoc) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.ID != y.ID || x.Status != y.Status ||
			x.ConversationID != y.ConversationID || x.ConversationLabel != y.ConversationLabel ||
			!x.ScheduledAt.Equal(y.ScheduledAt) || !x.CreatedAt.Equal(y.CreatedAt) {
			return false
		}
		if (x.CompletedAt == nil) != (y.CompletedAt == nil) {
			return false
		}
		if x.CompletedAt != nil && !x.CompletedAt.Equal(*y.CompletedAt) {
			return false
		}
	}
	return true
}

// wrapWriteError maps size rejections to ErrStorageQuotaExceeded. Firestore
// reports oversized documents as InvalidArgument.
func wrapWriteError(err error, msg string, values ...goerr.Option) error {
	values = append(values, goerr.V("error", err.Error()))
	switch status.Code(err) {
	case codes.InvalidArgument, codes.ResourceExhausted:
		return goerr.Wrap(interfaces.ErrStorageQuotaExceeded, msg, values...)
	default:
		return goerr.Wrap(interfaces.ErrStorage, msg, values...)
	}
}

func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
