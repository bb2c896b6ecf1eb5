package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/codelens-dev/codelens/internal/mcp"
	"github.com/codelens-dev/codelens/internal/query"
)

func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve search over MCP",
		Long: `Start the MCP server. AI clients connect over stdio and call the
search, similar and index_status tools.

stdout carries JSON-RPC exclusively; all diagnostics go to the log file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "MCP transport (stdio)")
	return cmd
}

func runServe(ctx context.Context, transport string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, stores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	engine := query.New(stores, query.OptionsFromConfig(cfg), slog.Default())
	server, err := mcp.NewServer(engine, stores, slog.Default())
	if err != nil {
		return err
	}

	slog.Info("codelens serving", "transport", transport, "version", Version)
	return server.Serve(ctx, transport)
}
