package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/domain/interfaces"
	"github.com/secmon-lab/followup/pkg/repository/firestore"
	"github.com/secmon-lab/followup/pkg/repository/gcs"
	"github.com/secmon-lab/followup/pkg/repository/memory"
	"github.com/secmon-lab/followup/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/option"
)

// Repository holds CLI flags for repository backend configuration
type Repository struct {
	backend          string
	projectID        string
	databaseID       string
	collectionPrefix string
	installationID   string
	bucket           string
	objectPrefix     string
	pollInterval     time.Duration
	credentialsFile  string
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "Repository backend type (memory, firestore or gcs)",
			Category:    "Repository",
			Value:       "memory",
			Sources:     cli.EnvVars("FOLLOWUP_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("FOLLOWUP_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Category:    "Repository",
			Sources:     cli.EnvVars("FOLLOWUP_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
		&cli.StringFlag{
			Name:        "firestore-collection-prefix",
			Usage:       "Prefix of the Firestore collection name",
			Category:    "Repository",
			Sources:     cli.EnvVars("FOLLOWUP_FIRESTORE_COLLECTION_PREFIX"),
			Destination: &r.collectionPrefix,
		},
		&cli.StringFlag{
			Name:        "installation-id",
			Usage:       "Installation document ID in Firestore",
			Category:    "Repository",
			Value:       "default",
			Sources:     cli.EnvVars("FOLLOWUP_INSTALLATION_ID"),
			Destination: &r.installationID,
		},
		&cli.StringFlag{
			Name:        "gcs-bucket",
			Usage:       "Cloud Storage bucket (required when using gcs backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("FOLLOWUP_GCS_BUCKET"),
			Destination: &r.bucket,
		},
		&cli.StringFlag{
			Name:        "gcs-prefix",
			Usage:       "Object name prefix in the bucket",
			Category:    "Repository",
			Sources:     cli.EnvVars("FOLLOWUP_GCS_PREFIX"),
			Destination: &r.objectPrefix,
		},
		&cli.DurationFlag{
			Name:        "gcs-poll-interval",
			Usage:       "Interval of change detection polling for the gcs backend",
			Category:    "Repository",
			Value:       10 * time.Second,
			Sources:     cli.EnvVars("FOLLOWUP_GCS_POLL_INTERVAL"),
			Destination: &r.pollInterval,
		},
		&cli.StringFlag{
			Name:        "google-credentials-file",
			Usage:       "Service account credentials file (application default credentials when empty)",
			Category:    "Repository",
			Sources:     cli.EnvVars("FOLLOWUP_GOOGLE_CREDENTIALS_FILE"),
			Destination: &r.credentialsFile,
		},
	}
}

func (r Repository) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", r.backend),
		slog.String("project_id", r.projectID),
		slog.String("bucket", r.bucket),
		slog.Bool("credentials_file", r.credentialsFile != ""),
	)
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

func (r *Repository) clientOptions() []option.ClientOption {
	if r.credentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(r.credentialsFile)}
}

// Configure initializes and returns a store based on the configured backend.
// quotaBytes bounds the in-memory backend the way the durable quota bounds
// the others. The caller is responsible for calling Close().
func (r *Repository) Configure(ctx context.Context, quotaBytes int64) (interfaces.ReminderStore, error) {
	switch r.backend {
	case "firestore":
		if r.projectID == "" {
			return nil, goerr.New("firestore-project-id is required when using firestore backend")
		}
		var opts []firestore.Option
		if r.collectionPrefix != "" {
			opts = append(opts, firestore.WithCollectionPrefix(r.collectionPrefix))
		}
		if r.installationID != "" {
			opts = append(opts, firestore.WithInstallationID(r.installationID))
		}
		store, err := firestore.New(ctx, r.projectID, r.databaseID, opts, r.clientOptions()...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		logging.Default().Info("Using Firestore repository",
			"project_id", r.projectID,
			"database_id", r.databaseID,
		)
		return store, nil

	case "gcs":
		if r.bucket == "" {
			return nil, goerr.New("gcs-bucket is required when using gcs backend")
		}
		opts := []gcs.Option{gcs.WithPollInterval(r.pollInterval)}
		if r.objectPrefix != "" {
			opts = append(opts, gcs.WithPrefix(r.objectPrefix))
		}
		store, err := gcs.New(ctx, r.bucket, opts, r.clientOptions()...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize gcs repository")
		}
		logging.Default().Info("Using Cloud Storage repository",
			"bucket", r.bucket,
			"prefix", r.objectPrefix,
		)
		return store, nil

	case "memory":
		logging.Default().Info("Using in-memory repository (development mode)")
		return memory.New(memory.WithQuotaBytes(quotaBytes)), nil

	default:
		return nil, goerr.New("invalid repository backend", goerr.V("backend", r.backend))
	}
}
