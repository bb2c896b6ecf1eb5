package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/codelens-dev/codelens/internal/embed"
)

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the embedding job worker",
		Long: `Run the embedding worker loop: claim pending jobs, call the
embedding provider, store vectors and settle failures with backoff.
Multiple workers may run against the same database; claims use
row locks so no job is processed twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context())
		},
	}
	return cmd
}

func runWorker(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Embeddings.Enabled {
		return fmt.Errorf("embeddings are disabled; set embeddings.enabled or CODELENS_EMBEDDINGS_ENABLED")
	}
	if cfg.Embeddings.Model == "" {
		return fmt.Errorf("no embedding model configured; set embeddings.model or CODELENS_EMBEDDING_MODEL")
	}

	db, stores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	provider := embed.NewHTTPProvider(embed.HTTPProviderConfig{
		Endpoint: cfg.Embeddings.Endpoint,
	})
	worker := embed.NewWorker(stores.Jobs, stores.Chunks, stores.Embeddings, provider, embed.WorkerOptions{
		BatchSize:   cfg.Embeddings.BatchSize,
		MaxAttempts: cfg.Embeddings.MaxAttempts,
		StaleAfter:  time.Duration(cfg.Embeddings.StaleMinutes) * time.Minute,
		PurgeAfter:  time.Duration(cfg.Embeddings.PurgeDays) * 24 * time.Hour,
	}, slog.Default())

	slog.Info("embedding worker starting",
		"model", cfg.Embeddings.Model,
		"endpoint", cfg.Embeddings.Endpoint,
		"batch_size", cfg.Embeddings.BatchSize)

	err = worker.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}
