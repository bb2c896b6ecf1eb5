package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codelens-dev/codelens/internal/query"
)

type searchOptions struct {
	repo    string
	branch  string
	profile string
	limit   int
	format  string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index from the command line",
		Long: `Run one query against the index and print the results.

Examples:
  codelens search "who calls Login" --repo myrepo
  codelens search "retry logic" --repo myrepo --profile hybrid --limit 5
  codelens search "similar:3f9c21" --repo myrepo --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.repo, "repo", "r", "", "Repository identifier (required)")
	cmd.Flags().StringVarP(&opts.branch, "branch", "b", "main", "Branch name")
	cmd.Flags().StringVarP(&opts.profile, "profile", "p", "", "Query profile: fast, hybrid, semantic")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	_ = cmd.MarkFlagRequired("repo")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, q string, opts searchOptions) error {
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
	resp, err := engine.Query(ctx, &query.Request{
		Query:      q,
		Repository: opts.repo,
		Branch:     opts.branch,
		Profile:    opts.profile,
		MaxResults: opts.limit,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if code, ok := resp.Metadata["errorCode"]; ok {
		fmt.Fprintf(out, "No results (%v)\n", code)
		return nil
	}
	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}

	fmt.Fprintf(out, "%d results (%s, %dms)\n\n", resp.TotalResults, resp.Intent, resp.ExecutionTimeMs)
	for i, r := range resp.Results {
		fmt.Fprintf(out, "%d. %s  %.3f\n", i+1, r.SymbolName, r.Score)
		fmt.Fprintf(out, "   %s:%d-%d", r.FilePath, r.StartLine, r.EndLine)
		if len(r.Why) > 0 {
			fmt.Fprintf(out, "  [%s]", strings.Join(r.Why, ", "))
		}
		fmt.Fprintln(out)
		if r.Signature != "" {
			fmt.Fprintf(out, "   %s\n", r.Signature)
		}
	}
	return nil
}
