// Package cli provides the importctl command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/bulkimport/internal/config"
	"github.com/JonMunkholm/bulkimport/internal/core"
	_ "github.com/JonMunkholm/bulkimport/internal/core/kinds" // Register all kinds
	"github.com/JonMunkholm/bulkimport/internal/events"
	"github.com/JonMunkholm/bulkimport/internal/logging"
	"github.com/JonMunkholm/bulkimport/internal/store/memory"
	"github.com/JonMunkholm/bulkimport/internal/store/postgres"
)

// Version is set at build time.
var Version = "0.1.0"

// offline marks commands that need neither configuration nor a store.
const offline = "offline"

var errNeedsDatabase = errors.New("this command needs a database; run without --memory")

// app holds the state shared by all commands of one invocation.
type app struct {
	verbose bool
	memory  bool

	cfg      *config.Config
	importer *core.Importer
	mem      *memory.Store
	pg       *postgres.Store
	closers  []func()
}

// NewRootCmd builds the importctl command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "importctl",
		Short: "Bulk CSV import operations",
		Long: `importctl imports accounts, transactions and categories from CSV files
and inspects the resulting uploads.

It uses the same configuration as the server (DATABASE_URL and friends,
read from the environment or a .env file). Pass --memory to validate a file
against an in-memory store without touching the database.`,
		Version:           Version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.close() },
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVar(&a.memory, "memory", false, "use an in-memory store (dry run)")

	root.AddCommand(a.importCmd())
	root.AddCommand(a.errorsCmd())
	root.AddCommand(a.retryCmd())
	root.AddCommand(a.historyCmd())
	root.AddCommand(a.templateCmd())
	root.AddCommand(a.migrateCmd())
	root.AddCommand(a.companyCmd())

	return root
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// setup loads configuration, routes logs to stderr and opens the store.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "help" || cmd.Annotations[offline] == "true" {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := "warn"
	if a.verbose {
		level = "debug"
	}
	slog.SetDefault(logging.New(cmd.ErrOrStderr(), nil, cfg.Logging.Format, level))

	return a.open(cmd.Context())
}

func (a *app) open(ctx context.Context) error {
	limits := core.Limits{MaxFileSize: a.cfg.Import.MaxFileSize, MaxRows: a.cfg.Import.MaxRows}

	if a.memory {
		a.mem = memory.New()
		a.importer = core.NewImporter(a.mem, a.mem, limits)
		return nil
	}

	if err := a.cfg.RequireDatabase(); err != nil {
		return fmt.Errorf("%w (or pass --memory for a dry run)", err)
	}

	pool, err := postgres.Connect(ctx, a.cfg.Database)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, pool.Close)

	a.pg = postgres.New(pool)
	if a.cfg.Database.AutoMigrate {
		if err := a.pg.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	var opts []core.Option
	if a.cfg.Events.Enabled() {
		pub, err := events.Dial(a.cfg.Events.AMQPURL, a.cfg.Events.Exchange)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() {
			if err := pub.Close(); err != nil {
				slog.Warn("failed to close event publisher", "error", err)
			}
		})
		opts = append(opts, core.WithPublisher(pub))
	}

	a.importer = core.NewImporter(a.pg, a.pg, limits, opts...)
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// requireDatabase rejects --memory for commands that read stored uploads.
func (a *app) requireDatabase() error {
	if a.pg == nil {
		return errNeedsDatabase
	}
	return nil
}
