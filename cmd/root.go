package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/podcast-ingest/internal/app"
	"github.com/JakeFAU/podcast-ingest/internal/config"
	"github.com/JakeFAU/podcast-ingest/internal/logging"
	"github.com/JakeFAU/podcast-ingest/internal/pipeline"
	"github.com/JakeFAU/podcast-ingest/internal/spotify"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// skipDatabase marks commands that never touch Postgres.
const skipDatabase = "skip-database"

const shutdownTimeout = 10 * time.Second

// App defines the application interface that commands use.
// This allows a mock app to be injected during tests.
type App interface {
	Run(ctx context.Context, variant string) (pipeline.Summary, error)
	Lookup(ctx context.Context, input string) (*spotify.ShowProfile, error)
	Migrate(ctx context.Context) error
	Close(ctx context.Context) error
	GetLogger() *zap.Logger
}

// loadConfig and newApp are variables so tests can replace them.
var (
	loadConfig = config.Load

	newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger, opts app.Options) (App, error) {
		return app.NewApp(ctx, cfg, logger, opts)
	}
)

type rootOptions struct {
	cfgFile string
	envFile string
	app     App
}

// newRootCmd creates and configures the root command.
func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "podcast-ingest",
		Short: "Ingests podcast metadata from the Spotify web API into Postgres.",
		Long: `podcast-ingest reads pending profile URLs or search queries from Postgres,
fetches their metadata from the Spotify pathfinder GraphQL API (directly or
through the ScrapeNinja relay), normalises the responses and saves one record
per show or search hit.`,
		SilenceUsage: true,

		// Runs after flags are parsed and before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.cfgFile, opts.envFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return err
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger, app.Options{
				SkipDatabase: cmd.Annotations[skipDatabase] == "true",
			})
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			opts.app = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file to load (default ./.env when present)")

	cmd.AddCommand(
		newRunCmd("profiles", "Fetch and save metadata for every pending profile URL"),
		newRunCmd("search", "Run every pending search query and save the podcast hits"),
		newLookupCmd(),
		newMigrateCmd(),
	)
	return cmd
}

// closeApp shuts down whatever PersistentPreRunE built. Cobra skips post-run
// hooks when RunE fails, so this runs after Execute instead.
func closeApp(opts *rootOptions) error {
	if opts.app == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger := opts.app.GetLogger()
	err := opts.app.Close(ctx)
	opts.app = nil
	if logger != nil {
		_ = logger.Sync()
	}
	return err
}

func execute(ctx context.Context, args []string) error {
	opts := &rootOptions{}
	root := newRootCmd(opts)
	root.SetArgs(args)
	runErr := root.ExecuteContext(ctx)
	closeErr := closeApp(opts)
	return errors.Join(runErr, closeErr)
}

// Execute is the main entry point. It exits non-zero on any top-level failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Command execution failed:", err)
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
