// Package cmd provides the CLI commands for codelens.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/internal/logging"
	"github.com/codelens-dev/codelens/internal/store"
)

// Version is stamped at build time.
var Version = "dev"

var (
	configPath     string
	loggingCleanup func()
)

// NewRootCmd creates the codelens root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codelens",
		Short: "Code-intelligence retrieval engine",
		Long: `Codelens indexes parsed source trees into Postgres and serves
multi-profile code search (sparse, hybrid, semantic and structural
similarity) to AI assistants over MCP.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("codelens version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (YAML)")
	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newWorkerCmd())
	cmd.AddCommand(newSearchCmd())

	return cmd
}

// Execute runs the root command with signal-aware cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func setupLogging(*cobra.Command, []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, cleanup, err := logging.Setup(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// openStores connects to Postgres and ensures the schema exists.
func openStores(ctx context.Context, cfg *config.Config) (*store.DB, *store.Stores, error) {
	db, err := store.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := store.EnsureSchema(ctx, db, cfg.Database.VectorDims); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, store.NewStores(db), nil
}
