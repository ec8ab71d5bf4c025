// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/podcast-ingest/internal/clock/system"
	"github.com/JakeFAU/podcast-ingest/internal/config"
	"github.com/JakeFAU/podcast-ingest/internal/hash/sha256"
	"github.com/JakeFAU/podcast-ingest/internal/headers"
	"github.com/JakeFAU/podcast-ingest/internal/id/uuid"
	"github.com/JakeFAU/podcast-ingest/internal/metrics"
	"github.com/JakeFAU/podcast-ingest/internal/pipeline"
	"github.com/JakeFAU/podcast-ingest/internal/publisher/pubsub"
	"github.com/JakeFAU/podcast-ingest/internal/spotify"
	"github.com/JakeFAU/podcast-ingest/internal/storage/gcs"
	"github.com/JakeFAU/podcast-ingest/internal/storage/local"
	"github.com/JakeFAU/podcast-ingest/internal/storage/memory"
	"github.com/JakeFAU/podcast-ingest/internal/storage/postgres"
	"github.com/JakeFAU/podcast-ingest/internal/telemetry"
	"github.com/JakeFAU/podcast-ingest/internal/transport"
)

// Options adjusts which services NewApp starts.
type Options struct {
	// SkipDatabase builds an App without a Postgres pool, for one-off lookups.
	SkipDatabase bool
}

type closer struct {
	name  string
	close func() error
}

// App holds all the shared, long-lived services for one process run.
// It is built once at startup from an immutable config.Config and closed on exit.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	headers  headers.Set
	gateway  *postgres.Gateway
	sender   *transport.Client
	pipeline *pipeline.Pipeline
	ops      *metrics.Server
	closers  []closer
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetPipeline exposes the configured pipeline.
func (a *App) GetPipeline() *pipeline.Pipeline {
	return a.pipeline
}

// GetHeaders returns the header set built at startup.
func (a *App) GetHeaders() headers.Set {
	return a.headers
}

// NewApp creates and initializes the services described by cfg. It fails fast
// and releases anything already opened when a service cannot be initialized.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	logger.Info("Initializing application services...")

	if err := a.init(ctx, opts); err != nil {
		if closeErr := a.Close(ctx); closeErr != nil {
			logger.Warn("release services after init failure", zap.Error(closeErr))
		}
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context, opts Options) error {
	cfg := a.cfg

	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.closers = append(a.closers, closer{name: "tracing", close: func() error {
		return tp.Shutdown(context.Background())
	}})

	overrides, err := headers.LoadOverrides(cfg.HeaderOverridesPath())
	if err != nil {
		a.logger.Warn("Ignoring unreadable header overrides; using defaults",
			zap.String("path", cfg.HeaderOverridesPath()),
			zap.Error(err),
		)
		overrides = nil
	}
	a.headers = headers.Build(headers.Defaults(cfg.Credentials()), overrides)
	a.logger.Info("Request headers ready",
		zap.Int("count", a.headers.Len()),
		zap.Strings("names", a.headers.Names()),
	)

	a.sender, err = transport.New(cfg.TransportConfig(), a.logger.Named("transport"))
	if err != nil {
		return fmt.Errorf("failed to initialize transport: %w", err)
	}
	a.logger.Info("Upstream transport ready", zap.String("mode", string(a.sender.Mode())))

	denylist := spotify.NewDenylist(cfg.Upstream.ExcludedDomains)
	a.logger.Info("Link denylist ready", zap.Strings("excluded_domains", denylist.Domains()))

	deps := pipeline.Deps{
		Sender:   a.sender,
		Builder:  spotify.NewBuilder(cfg.BuilderOptions()),
		Headers:  a.headers,
		Denylist: denylist,
		Clock:    system.New(),
		Hasher:   sha256.New(),
		IDs:      uuid.New(),
		Logger:   a.logger,
	}

	archive, err := a.openArchive(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize archive: %w", err)
	}
	if archive != nil {
		deps.Archive = archive
	}

	if cfg.Notify.Topic != "" {
		a.logger.Info("Connecting to GCP Pub/Sub", zap.String("topic", cfg.Notify.Topic))
		pub, err := pubsub.Open(ctx, cfg.Notify.ProjectID)
		if err != nil {
			return fmt.Errorf("failed to initialize notifications: %w", err)
		}
		a.closers = append(a.closers, closer{name: "pubsub", close: pub.Close})
		deps.Publisher = pub
	}

	if !opts.SkipDatabase {
		a.logger.Info("Connecting to PostgreSQL...")
		a.gateway, err = postgres.NewGateway(ctx, postgres.GatewayConfig{
			DSN:      cfg.DB.PostgresDSN(),
			MaxConns: int32(cfg.DB.MaxConns), //nolint:gosec // bounded by Validate
		})
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		gateway := a.gateway
		a.closers = append(a.closers, closer{name: "postgres", close: func() error {
			gateway.Close()
			return nil
		}})
		deps.Store = gateway
	}

	a.pipeline, err = pipeline.New(deps, pipeline.Options{
		Concurrency:       cfg.Pipeline.Concurrency,
		AbortOnAuthError:  cfg.Pipeline.AbortOnAuthError,
		MaxEpisodeLookups: cfg.Pipeline.MaxEpisodeLookups,
		EpisodeLinks:      cfg.Pipeline.EpisodeLinks,
		Topic:             cfg.Notify.Topic,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	a.ops = metrics.Start(cfg.Metrics.Addr, a.logger.Named("metrics"))
	return nil
}

// openArchive returns nil when archiving is disabled.
func (a *App) openArchive(ctx context.Context) (pipeline.BlobStore, error) {
	cfg := a.cfg.Archive
	switch cfg.Provider {
	case config.ArchiveNone, "":
		return nil, nil
	case config.ArchiveMemory:
		a.logger.Info("Using in-memory archive. Raw responses are discarded on exit.")
		return memory.NewBlobStore(), nil
	case config.ArchiveLocal:
		a.logger.Info("Using local archive", zap.String("base_dir", cfg.BaseDir))
		store, err := local.New(local.Config{BaseDir: cfg.BaseDir})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.ArchiveGCS:
		a.logger.Info("Using GCS archive", zap.String("bucket", cfg.Bucket))
		store, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.Bucket, Prefix: cfg.Prefix})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closer{name: "gcs", close: store.Close})
		return store, nil
	default:
		return nil, fmt.Errorf("unknown archive provider: %s", cfg.Provider)
	}
}

// Run executes one pipeline variant by name.
func (a *App) Run(ctx context.Context, variant string) (pipeline.Summary, error) {
	v, err := pipeline.VariantByName(variant, a.cfg.DB.Schema)
	if err != nil {
		return pipeline.Summary{}, err
	}
	return a.pipeline.Run(ctx, v)
}

// Lookup fetches one show without touching the database.
func (a *App) Lookup(ctx context.Context, input string) (*spotify.ShowProfile, error) {
	return a.pipeline.LookupShow(ctx, input)
}

// Migrate applies the additive schema for every variant's table.
func (a *App) Migrate(ctx context.Context) error {
	if a.gateway == nil {
		return errors.New("database is not configured")
	}
	for _, name := range []string{"profiles", "search"} {
		v, err := pipeline.VariantByName(name, a.cfg.DB.Schema)
		if err != nil {
			return err
		}
		if err := a.gateway.EnsureSchema(ctx, v.Table); err != nil {
			return err
		}
		a.logger.Info("Schema ready", zap.String("table", v.Table.Name))
	}
	return nil
}

// Close gracefully shuts down all services, newest first.
func (a *App) Close(ctx context.Context) error {
	a.logger.Info("Closing application services...")
	var errs []error
	if err := a.ops.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Error("Failed to close service", zap.String("service", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	a.ops = nil
	return errors.Join(errs...)
}
