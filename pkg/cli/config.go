package cli

import (
	"context"
	"io"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sortinghat/pkg/adapter"
	"github.com/m-mizutani/sortinghat/pkg/repository"
	"github.com/m-mizutani/sortinghat/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const (
	storageR2  = "r2"
	storageGCS = "gcs"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel  string
	logFormat string

	// Repository
	project  string
	database string

	// Neynar
	neynarAPIKey       string
	neynarBaseURL      string
	neynarCastFIDParam string

	// Gemini
	geminiAPIKey string
	geminiModel  string

	// Storage
	storageBackend  string
	r2              adapter.R2Config
	gcsBucket       string
	gcsPublicURL    string
	credentialsFile string
}

// loggingFlags returns flags of log output with destination config
func loggingFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("SORTINGHAT_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       logging.FormatConsole,
			Sources:     cli.EnvVars("SORTINGHAT_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID. Sortings are logged to Firestore when set",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
	}
}

// classifierFlags returns flags of the Neynar and Gemini adapters
func classifierFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "neynar-api-key",
			Usage:       "Neynar API key",
			Sources:     cli.EnvVars("NEYNAR_API_KEY"),
			Destination: &cfg.neynarAPIKey,
		},
		&cli.StringFlag{
			Name:        "neynar-base-url",
			Usage:       "Neynar API base URL",
			Value:       "https://api.neynar.com",
			Sources:     cli.EnvVars("NEYNAR_BASE_URL"),
			Destination: &cfg.neynarBaseURL,
		},
		&cli.StringFlag{
			Name:        "neynar-casts-fid-param",
			Usage:       "Query parameter name carrying the FID of the user casts endpoint",
			Value:       "fid",
			Sources:     cli.EnvVars("NEYNAR_CASTS_FID_PARAM"),
			Destination: &cfg.neynarCastFIDParam,
		},
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model name",
			Value:       "gemini-2.0-flash-lite",
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
	}
}

// storageFlags returns flags of the share image storage
func storageFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "storage",
			Usage:       "Share image storage backend (r2, gcs)",
			Value:       storageR2,
			Sources:     cli.EnvVars("SORTINGHAT_STORAGE"),
			Destination: &cfg.storageBackend,
		},
		&cli.StringFlag{
			Name:        "r2-account-id",
			Usage:       "Cloudflare account ID of R2",
			Sources:     cli.EnvVars("R2_ACCOUNT_ID"),
			Destination: &cfg.r2.AccountID,
		},
		&cli.StringFlag{
			Name:        "r2-access-key-id",
			Usage:       "R2 access key ID",
			Sources:     cli.EnvVars("R2_ACCESS_KEY_ID"),
			Destination: &cfg.r2.AccessKeyID,
		},
		&cli.StringFlag{
			Name:        "r2-secret-access-key",
			Usage:       "R2 secret access key",
			Sources:     cli.EnvVars("R2_SECRET_ACCESS_KEY"),
			Destination: &cfg.r2.SecretAccessKey,
		},
		&cli.StringFlag{
			Name:        "r2-bucket",
			Usage:       "R2 bucket name",
			Sources:     cli.EnvVars("R2_BUCKET_NAME"),
			Destination: &cfg.r2.Bucket,
		},
		&cli.StringFlag{
			Name:        "r2-public-url",
			Usage:       "Public base URL of the R2 bucket",
			Sources:     cli.EnvVars("R2_PUBLIC_URL"),
			Destination: &cfg.r2.PublicURL,
		},
		&cli.StringFlag{
			Name:        "gcs-bucket",
			Usage:       "Cloud Storage bucket name",
			Sources:     cli.EnvVars("GCS_BUCKET"),
			Destination: &cfg.gcsBucket,
		},
		&cli.StringFlag{
			Name:        "gcs-public-url",
			Usage:       "Public base URL of the Cloud Storage bucket",
			Sources:     cli.EnvVars("GCS_PUBLIC_URL"),
			Destination: &cfg.gcsPublicURL,
		},
		&cli.StringFlag{
			Name:        "credentials",
			Usage:       "Google Cloud credentials file",
			Sources:     cli.EnvVars("GOOGLE_APPLICATION_CREDENTIALS"),
			Destination: &cfg.credentialsFile,
		},
	}
}

// setupLogger replaces the default logger by the configured one and returns
// ctx carrying it
func (cfg *config) setupLogger(ctx context.Context, w io.Writer) context.Context {
	logger := logging.New(w,
		logging.WithLevel(cfg.logLevel),
		logging.WithFormat(cfg.logFormat),
	)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newNeynar creates a Neynar adapter. An empty API key is allowed and every
// request fails with adapter.ErrNeynarDisabled.
func (cfg *config) newNeynar(ctx context.Context) *adapter.NeynarClient {
	if cfg.neynarAPIKey == "" {
		logging.From(ctx).Warn("neynar-api-key is not set, profile lookups will fail")
	}
	return adapter.NewNeynar(cfg.neynarAPIKey,
		adapter.WithNeynarBaseURL(cfg.neynarBaseURL),
		adapter.WithCastFIDParam(cfg.neynarCastFIDParam),
	)
}

// newGemini creates a Gemini adapter. It returns nil without API key, and the
// classifier reports itself disabled.
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiAPIKey == "" {
		logging.From(ctx).Warn("gemini-api-key is not set, classification is disabled")
		return nil, nil
	}

	client, err := adapter.NewGemini(ctx, cfg.geminiAPIKey, adapter.WithGenerativeModel(cfg.geminiModel))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini client")
	}
	return client, nil
}

// newStorage creates the share image storage. A misconfigured backend is an
// error so that serve fails at startup.
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	switch strings.ToLower(cfg.storageBackend) {
	case storageR2, "":
		storage, err := adapter.NewR2(ctx, cfg.r2)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create R2 storage")
		}
		return storage, nil

	case storageGCS:
		storage, err := adapter.NewGCS(ctx, cfg.gcsBucket, cfg.gcsPublicURL, cfg.credentialsFile)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create GCS storage")
		}
		return storage, nil

	default:
		return nil, goerr.New("unknown storage backend", goerr.V("storage", cfg.storageBackend))
	}
}

// publicImageBase returns the public base URL of the configured storage
func (cfg *config) publicImageBase() string {
	switch strings.ToLower(cfg.storageBackend) {
	case storageGCS:
		if cfg.gcsPublicURL != "" {
			return cfg.gcsPublicURL
		}
		if cfg.gcsBucket != "" {
			return "https://storage.googleapis.com/" + cfg.gcsBucket
		}
		return ""
	default:
		return cfg.r2.PublicURL
	}
}

// newRepository creates the sorting log repository. Firestore is used when a
// project is configured, otherwise records are kept in memory.
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, func(), error) {
	if cfg.project == "" {
		logging.From(ctx).Info("project is not set, sorting log is kept in memory")
		return repository.NewMemory(), func() {}, nil
	}
	if cfg.database == "" {
		return nil, nil, goerr.New("database is required")
	}

	repo, err := repository.New(ctx, cfg.project, cfg.database)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create repository")
	}
	closer := func() {
		if err := repo.Close(); err != nil {
			logging.From(ctx).Warn("failed to close repository", "error", err)
		}
	}
	return repo, closer, nil
}
