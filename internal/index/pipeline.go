// Package index drives the indexing pipeline. A change stream goes in;
// symbols, edges, chunks, search entries and fingerprints come out, with
// embedding jobs enqueued for every fresh chunk. Files are independent:
// one file failing to parse never aborts the run.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/codelens-dev/codelens/internal/chunk"
	"github.com/codelens-dev/codelens/internal/embed"
	"github.com/codelens-dev/codelens/internal/fingerprint"
	"github.com/codelens-dev/codelens/internal/parse"
	"github.com/codelens-dev/codelens/internal/search"
	"github.com/codelens-dev/codelens/internal/store"
)

// ErrAlreadyInProgress is returned when another run holds the branch latch.
var ErrAlreadyInProgress = errors.New("branch indexing already in progress")

// Summary reports what one pipeline run did.
type Summary struct {
	FilesIndexed int
	FilesDeleted int
	FilesFailed  int
	Symbols      int
	Chunks       int
	JobsEnqueued int
}

// Options configures a pipeline.
type Options struct {
	// FileReadConcurrency bounds parallel blob reads and parses.
	FileReadConcurrency int
	// Chunking is passed through to the chunker.
	Chunking chunk.Options
}

// Pipeline indexes file changes for one branch at a time.
type Pipeline struct {
	stores   *store.Stores
	parser   parse.Parser
	blobs    parse.BlobReader
	chunker  *chunk.Chunker
	searches *search.Builder
	prints   *fingerprint.Builder
	enqueuer *embed.Enqueuer
	logger   *slog.Logger

	concurrency int

	// onIndexed runs after a successful run, before FinishIndexing
	// returns. The query engine hooks its cache invalidation here.
	onIndexed func()
}

// New builds a pipeline. The enqueuer may be nil when embeddings are
// disabled; onIndexed may be nil.
func New(stores *store.Stores, parser parse.Parser, blobs parse.BlobReader, enqueuer *embed.Enqueuer, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.FileReadConcurrency <= 0 {
		opts.FileReadConcurrency = runtime.NumCPU()
	}
	return &Pipeline{
		stores:      stores,
		parser:      parser,
		blobs:       blobs,
		chunker:     chunk.NewChunker(opts.Chunking),
		searches:    search.NewBuilder(),
		prints:      fingerprint.NewBuilder(fingerprint.NewService()),
		enqueuer:    enqueuer,
		logger:      logger,
		concurrency: opts.FileReadConcurrency,
	}
}

// OnIndexed registers a callback invoked after every successful run.
func (p *Pipeline) OnIndexed(fn func()) { p.onIndexed = fn }

// Run indexes one batch of file changes for repo/branch at commit. It
// acquires the branch latch, processes files with bounded concurrency and
// releases the latch as Completed or Failed. Per-file failures are logged
// and counted; only storage or context errors fail the run.
func (p *Pipeline) Run(ctx context.Context, repo, branch, commit string, changes []parse.FileChange) (*Summary, error) {
	ok, err := p.stores.Branches.BeginIndexing(ctx, repo, branch, commit)
	if err != nil {
		return nil, fmt.Errorf("acquire branch latch: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyInProgress
	}

	sum, runErr := p.run(ctx, repo, branch, commit, changes)
	state := store.IndexStateCompleted
	if runErr != nil {
		state = store.IndexStateFailed
	}
	if finErr := p.stores.Branches.FinishIndexing(ctx, repo, branch, commit, state); finErr != nil {
		if runErr == nil {
			runErr = fmt.Errorf("release branch latch: %w", finErr)
		} else {
			p.logger.Error("release branch latch", "repo", repo, "branch", branch, "error", finErr)
		}
	}
	if runErr != nil {
		return nil, runErr
	}

	if p.onIndexed != nil {
		p.onIndexed()
	}
	p.logger.Info("indexing run finished",
		"repo", repo, "branch", branch, "commit", commit,
		"indexed", sum.FilesIndexed, "deleted", sum.FilesDeleted,
		"failed", sum.FilesFailed, "symbols", sum.Symbols,
		"chunks", sum.Chunks, "jobs", sum.JobsEnqueued)
	return sum, nil
}

func (p *Pipeline) run(ctx context.Context, repo, branch, commit string, changes []parse.FileChange) (*Summary, error) {
	var (
		mu       sync.Mutex
		sum      Summary
		chunkIDs []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, change := range changes {
		if change.Path == "" {
			continue
		}
		g.Go(func() error {
			if change.Type == parse.ChangeDeleted {
				if err := p.deleteFile(gctx, repo, branch, change.Path); err != nil {
					return err
				}
				mu.Lock()
				sum.FilesDeleted++
				mu.Unlock()
				return nil
			}

			res, err := p.indexFile(gctx, repo, branch, commit, change.Path)
			if err != nil {
				// Storage and cancellation errors abort the run; anything
				// upstream of the store is a per-file failure.
				if gctx.Err() != nil || isStorageErr(err) {
					return err
				}
				p.logger.Warn("file skipped", "repo", repo, "path", change.Path, "error", err)
				mu.Lock()
				sum.FilesFailed++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			sum.FilesIndexed++
			sum.Symbols += res.symbols
			sum.Chunks += len(res.chunkIDs)
			chunkIDs = append(chunkIDs, res.chunkIDs...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if p.enqueuer != nil && len(chunkIDs) > 0 {
		if err := p.enqueuer.EnqueueChunks(ctx, repo, branch, commit, chunkIDs); err != nil {
			return nil, err
		}
		sum.JobsEnqueued = len(chunkIDs)
	}
	return &sum, nil
}

type fileResult struct {
	symbols  int
	chunkIDs []string
}

// indexFile reads, parses and persists one file. Derived tables are
// replaced whole per file, so reruns are idempotent.
func (p *Pipeline) indexFile(ctx context.Context, repo, branch, commit, path string) (*fileResult, error) {
	source, err := p.blobs.ReadBlob(ctx, repo, commit, path)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", path, err)
	}

	parsed, err := p.parser.ParseFile(ctx, path, "", source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if parsed == nil {
		return nil, fmt.Errorf("parse %s: parser returned nothing", path)
	}

	symRows := make([]*store.SymbolRow, 0, len(parsed.Symbols))
	for _, s := range parsed.Symbols {
		symRows = append(symRows, &store.SymbolRow{
			ID:            s.ID,
			Repo:          repo,
			BranchName:    branch,
			CommitSHA:     commit,
			FilePath:      path,
			Name:          s.Name,
			QualifiedName: s.QualifiedName,
			Kind:          s.Kind,
			Language:      s.Language,
			StartLine:     s.StartLine,
			StartCol:      s.StartCol,
			EndLine:       s.EndLine,
			EndCol:        s.EndCol,
			Signature:     s.Signature,
			Documentation: s.Documentation,
			Modifiers:     s.Modifiers,
			ParentID:      s.ParentID,
		})
	}

	edgeRows := make([]*store.EdgeRow, 0, len(parsed.Edges))
	for _, e := range parsed.Edges {
		edgeRows = append(edgeRows, &store.EdgeRow{
			SourceID:   e.SourceID,
			TargetID:   e.TargetID,
			TargetName: e.TargetName,
			Kind:       e.Kind,
			Repo:       repo,
			BranchName: branch,
			FilePath:   path,
		})
	}

	chunked := p.chunker.ChunkFile(parsed)
	var chunkRows []*store.ChunkRow
	if chunked.Success {
		chunkRows = make([]*store.ChunkRow, 0, len(chunked.Chunks))
		for _, c := range chunked.Chunks {
			chunkRows = append(chunkRows, &store.ChunkRow{
				ID:               c.ID,
				Repo:             repo,
				BranchName:       branch,
				CommitSHA:        commit,
				FilePath:         c.FilePath,
				SymbolID:         c.SymbolID,
				SymbolName:       c.SymbolName,
				SymbolKind:       c.SymbolKind,
				ParentSymbolName: c.ParentSymbolName,
				Signature:        c.Signature,
				Documentation:    c.Documentation,
				Language:         c.Language,
				Content:          c.Content,
				ContentHash:      c.ContentHash,
				StartLine:        c.StartLine,
				EndLine:          c.EndLine,
				ChunkStartLine:   c.ChunkStartLine,
				ChunkEndLine:     c.ChunkEndLine,
				TokenCount:       c.TokenCount,
			})
		}
	} else {
		p.logger.Warn("chunking failed, indexing symbols only",
			"repo", repo, "path", path, "error", chunked.Error)
	}

	searchRows := make([]*store.SearchEntryRow, 0, len(parsed.Symbols))
	for _, e := range p.searches.BuildEntries(parsed) {
		searchRows = append(searchRows, &store.SearchEntryRow{
			SymbolID:        e.SymbolID,
			Repo:            repo,
			BranchName:      branch,
			CommitSHA:       commit,
			FilePath:        path,
			NameTokens:      e.NameTokens,
			QualifiedTokens: e.QualifiedTokens,
			SignatureTokens: e.SignatureTokens,
			DocTokens:       e.DocTokens,
			LiteralTokens:   e.LiteralTokens,
			Snippet:         e.Snippet,
		})
	}

	printRows := make([]*store.FingerprintRow, 0, len(parsed.Symbols))
	for _, e := range p.prints.BuildEntries(parsed) {
		printRows = append(printRows, &store.FingerprintRow{
			SymbolID:        e.SymbolID,
			Repo:            repo,
			BranchName:      branch,
			CommitSHA:       commit,
			FilePath:        path,
			Language:        e.Language,
			Kind:            e.Kind,
			FingerprintKind: e.FingerprintKind,
			Fingerprint:     e.Fingerprint.Hash,
			Bands:           e.Fingerprint.Bands,
		})
	}

	// Search and fingerprint rows key on symbol id, so stale rows from a
	// previous version of the file are cleared first.
	if err := p.stores.Symbols.ReplaceFile(ctx, repo, branch, path, symRows); err != nil {
		return nil, storageErr(fmt.Errorf("replace symbols %s: %w", path, err))
	}
	if err := p.stores.Edges.ReplaceFile(ctx, repo, branch, path, edgeRows); err != nil {
		return nil, storageErr(fmt.Errorf("replace edges %s: %w", path, err))
	}
	if err := p.stores.Chunks.ReplaceFile(ctx, repo, branch, path, chunkRows); err != nil {
		return nil, storageErr(fmt.Errorf("replace chunks %s: %w", path, err))
	}
	if err := p.stores.Search.DeleteFile(ctx, repo, branch, path); err != nil {
		return nil, storageErr(fmt.Errorf("clear search entries %s: %w", path, err))
	}
	if err := p.stores.Search.Upsert(ctx, searchRows); err != nil {
		return nil, storageErr(fmt.Errorf("upsert search entries %s: %w", path, err))
	}
	if err := p.stores.Fingerprints.DeleteFile(ctx, repo, branch, path); err != nil {
		return nil, storageErr(fmt.Errorf("clear fingerprints %s: %w", path, err))
	}
	if err := p.stores.Fingerprints.Upsert(ctx, printRows); err != nil {
		return nil, storageErr(fmt.Errorf("upsert fingerprints %s: %w", path, err))
	}

	res := &fileResult{symbols: len(symRows)}
	for _, c := range chunkRows {
		res.chunkIDs = append(res.chunkIDs, c.ID)
	}
	return res, nil
}

// deleteFile removes every derived row of a file across the seams.
func (p *Pipeline) deleteFile(ctx context.Context, repo, branch, path string) error {
	type del struct {
		name string
		fn   func(context.Context, string, string, string) error
	}
	for _, d := range []del{
		{"symbols", p.stores.Symbols.DeleteFile},
		{"edges", p.stores.Edges.DeleteFile},
		{"chunks", p.stores.Chunks.DeleteFile},
		{"search entries", p.stores.Search.DeleteFile},
		{"fingerprints", p.stores.Fingerprints.DeleteFile},
	} {
		if err := d.fn(ctx, repo, branch, path); err != nil {
			return storageErr(fmt.Errorf("delete %s %s: %w", d.name, path, err))
		}
	}
	return nil
}

type storageFailure struct{ err error }

func (s storageFailure) Error() string { return s.err.Error() }
func (s storageFailure) Unwrap() error { return s.err }

func storageErr(err error) error { return storageFailure{err: err} }

func isStorageErr(err error) bool {
	var sf storageFailure
	return errors.As(err, &sf)
}
