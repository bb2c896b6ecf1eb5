package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/codelens-dev/codelens/internal/chunk"
	"github.com/codelens-dev/codelens/internal/embed"
	"github.com/codelens-dev/codelens/internal/index"
	"github.com/codelens-dev/codelens/internal/parse"
)

// indexManifest is the input format of the index command: parsed files
// produced by an external parser plus the paths deleted since the last
// indexed commit.
type indexManifest struct {
	Repo    string              `json:"repo"`
	Branch  string              `json:"branch"`
	Commit  string              `json:"commit"`
	Files   []*parse.ParsedFile `json:"files"`
	Deleted []string            `json:"deleted,omitempty"`
}

func newIndexCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index a parsed-file manifest",
		Long: `Index one batch of parsed files into the database.

The manifest is JSON produced by an external parser: repo, branch,
commit, the parsed files (symbols, edges, source) and the deleted
paths. Derived rows are replaced per file, so re-running a manifest
is safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, input)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Manifest file (default stdin)")
	return cmd
}

// manifestSource serves parsed files and blobs straight from the
// manifest, standing in for the external parser and version-control
// collaborators.
type manifestSource struct {
	files map[string]*parse.ParsedFile
}

func (s *manifestSource) ParseFile(_ context.Context, path, _, _ string) (*parse.ParsedFile, error) {
	f, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("manifest has no parsed file for %s", path)
	}
	return f, nil
}

func (s *manifestSource) ReadBlob(_ context.Context, _, _, path string) (string, error) {
	f, ok := s.files[path]
	if !ok {
		return "", fmt.Errorf("manifest has no source for %s", path)
	}
	return f.Source, nil
}

func runIndex(ctx context.Context, cmd *cobra.Command, input string) error {
	manifest, err := readManifest(input)
	if err != nil {
		return err
	}
	if manifest.Repo == "" || manifest.Branch == "" || manifest.Commit == "" {
		return fmt.Errorf("manifest must set repo, branch and commit")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, stores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	src := &manifestSource{files: make(map[string]*parse.ParsedFile, len(manifest.Files))}
	changes := make([]parse.FileChange, 0, len(manifest.Files)+len(manifest.Deleted))
	for _, f := range manifest.Files {
		src.files[f.Path] = f
		changes = append(changes, parse.FileChange{
			Repo:   manifest.Repo,
			Branch: manifest.Branch,
			Commit: manifest.Commit,
			Path:   f.Path,
			Type:   parse.ChangeModified,
		})
	}
	for _, path := range manifest.Deleted {
		changes = append(changes, parse.FileChange{
			Repo:   manifest.Repo,
			Branch: manifest.Branch,
			Commit: manifest.Commit,
			Path:   path,
			Type:   parse.ChangeDeleted,
		})
	}

	enqueuer := embed.NewEnqueuer(stores.Jobs, cfg.Embeddings.Enabled, cfg.Embeddings.Model, slog.Default())
	pipeline := index.New(stores, src, src, enqueuer, index.Options{
		FileReadConcurrency: cfg.Indexing.FileReadConcurrency,
		Chunking: chunk.Options{
			ContextLinesBefore: cfg.Chunking.ContextLinesBefore,
			ContextLinesAfter:  cfg.Chunking.ContextLinesAfter,
			MaxChunkChars:      cfg.Chunking.MaxChunkChars,
		},
	}, slog.Default())

	sum, err := pipeline.Run(ctx, manifest.Repo, manifest.Branch, manifest.Commit, changes)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Indexed %s@%s (%s)\n", manifest.Repo, manifest.Branch, manifest.Commit)
	fmt.Fprintf(out, "  files indexed:  %d\n", sum.FilesIndexed)
	fmt.Fprintf(out, "  files deleted:  %d\n", sum.FilesDeleted)
	fmt.Fprintf(out, "  files failed:   %d\n", sum.FilesFailed)
	fmt.Fprintf(out, "  symbols:        %d\n", sum.Symbols)
	fmt.Fprintf(out, "  chunks:         %d\n", sum.Chunks)
	fmt.Fprintf(out, "  jobs enqueued:  %d\n", sum.JobsEnqueued)
	return nil
}

func readManifest(input string) (*indexManifest, error) {
	var data []byte
	var err error
	if input == "" || input == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(input)
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest indexManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &manifest, nil
}
