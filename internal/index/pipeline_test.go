package index

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens-dev/codelens/internal/embed"
	"github.com/codelens-dev/codelens/internal/parse"
	"github.com/codelens-dev/codelens/internal/store"
)

type stubParser struct {
	files map[string]*parse.ParsedFile
	fail  map[string]bool
}

func (p *stubParser) ParseFile(_ context.Context, path, _, source string) (*parse.ParsedFile, error) {
	if p.fail[path] {
		return nil, errors.New("syntax error")
	}
	f, ok := p.files[path]
	if !ok {
		return &parse.ParsedFile{Path: path, Language: "go", Source: source}, nil
	}
	cp := *f
	cp.Path = path
	cp.Source = source
	return &cp, nil
}

type stubBlobs struct {
	blobs map[string]string
}

func (b *stubBlobs) ReadBlob(_ context.Context, _, _, path string) (string, error) {
	src, ok := b.blobs[path]
	if !ok {
		return "", fmt.Errorf("no blob at %s", path)
	}
	return src, nil
}

type pipelineFixture struct {
	mem    *store.Memory
	stores *store.Stores
	parser *stubParser
	blobs  *stubBlobs
	pipe   *Pipeline
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	mem := store.NewMemory()
	stores := store.MemoryStores(mem)
	f := &pipelineFixture{
		mem:    mem,
		stores: stores,
		parser: &stubParser{files: map[string]*parse.ParsedFile{}, fail: map[string]bool{}},
		blobs:  &stubBlobs{blobs: map[string]string{}},
	}
	enq := embed.NewEnqueuer(stores.Jobs, true, "minilm", nil)
	f.pipe = New(stores, f.parser, f.blobs, enq, Options{FileReadConcurrency: 2}, nil)
	return f
}

// seedAuthFile registers auth/service.go with two functions and a call
// edge between them.
func (f *pipelineFixture) seedAuthFile() {
	const path = "auth/service.go"
	f.blobs.blobs[path] = "func Login(user string) error {\n" +
		"\treturn issueToken(user)\n" +
		"}\n" +
		"\n" +
		"func issueToken(user string) error {\n" +
		"\treturn nil\n" +
		"}\n"
	f.parser.files[path] = &parse.ParsedFile{
		Language: "go",
		Symbols: []*parse.Symbol{
			{
				ID:            "sym-login",
				Name:          "Login",
				QualifiedName: "auth.Login",
				Kind:          parse.KindFunction,
				Language:      "go",
				StartLine:     1,
				EndLine:       3,
				Signature:     "func Login(user string) error",
				Documentation: "Login authenticates a user.",
			},
			{
				ID:            "sym-token",
				Name:          "issueToken",
				QualifiedName: "auth.issueToken",
				Kind:          parse.KindFunction,
				Language:      "go",
				StartLine:     5,
				EndLine:       7,
				Signature:     "func issueToken(user string) error",
			},
		},
		Edges: []*parse.Edge{
			{SourceID: "sym-login", TargetID: "sym-token", Kind: parse.EdgeCalls},
		},
	}
}

func change(path string, typ parse.ChangeType) parse.FileChange {
	return parse.FileChange{Repo: "repo", Branch: "main", Commit: "c1", Path: path, Type: typ}
}

func TestRun_IndexesChangedFile(t *testing.T) {
	f := newPipelineFixture(t)
	f.seedAuthFile()
	ctx := context.Background()

	sum, err := f.pipe.Run(ctx, "repo", "main", "c1", []parse.FileChange{
		change("auth/service.go", parse.ChangeAdded),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.FilesIndexed)
	assert.Equal(t, 2, sum.Symbols)
	assert.Equal(t, 2, sum.Chunks)
	assert.Equal(t, 2, sum.JobsEnqueued)
	assert.Zero(t, sum.FilesFailed)

	branch, err := f.stores.Branches.Get(ctx, "repo", "main")
	require.NoError(t, err)
	require.NotNil(t, branch)
	assert.Equal(t, store.IndexStateCompleted, branch.IndexState)
	assert.Equal(t, "c1", branch.IndexedCommit)

	sym, err := f.stores.Symbols.GetByID(ctx, "sym-login")
	require.NoError(t, err)
	require.NotNil(t, sym)
	assert.Equal(t, "auth.Login", sym.QualifiedName)
	assert.Equal(t, "c1", sym.CommitSHA)

	edges, err := f.stores.Edges.GetBySources(ctx, []string{"sym-login"})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, parse.EdgeCalls, edges[0].Kind)

	hits, err := f.stores.Search.Search(ctx, "repo", "main", "login", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "sym-login", hits[0].SymbolID)

	fp, err := f.stores.Fingerprints.GetBySymbol(ctx, "sym-login")
	require.NoError(t, err)
	require.NotNil(t, fp)
	assert.NotZero(t, fp.Fingerprint)

	chunks, err := f.stores.Chunks.GetBySymbolIDs(ctx, []string{"sym-login", "sym-token"})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	// Every chunk got a pending embedding job.
	for _, c := range chunks {
		job, err := f.stores.Jobs.GetByKey(ctx, "repo", "main", store.TargetKindCodeChunk, c.ID, "minilm")
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, store.JobPending, job.Status)
	}
}

func TestRun_LatchHeldRejects(t *testing.T) {
	f := newPipelineFixture(t)
	f.seedAuthFile()
	ctx := context.Background()

	ok, err := f.stores.Branches.BeginIndexing(ctx, "repo", "main", "c0")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.pipe.Run(ctx, "repo", "main", "c1", []parse.FileChange{
		change("auth/service.go", parse.ChangeAdded),
	})
	assert.ErrorIs(t, err, ErrAlreadyInProgress)

	// The other run still holds the latch.
	branch, err := f.stores.Branches.Get(ctx, "repo", "main")
	require.NoError(t, err)
	assert.Equal(t, store.IndexStateInProgress, branch.IndexState)
}

func TestRun_DeleteClearsDerivedRows(t *testing.T) {
	f := newPipelineFixture(t)
	f.seedAuthFile()
	ctx := context.Background()

	_, err := f.pipe.Run(ctx, "repo", "main", "c1", []parse.FileChange{
		change("auth/service.go", parse.ChangeAdded),
	})
	require.NoError(t, err)

	sum, err := f.pipe.Run(ctx, "repo", "main", "c2", []parse.FileChange{
		{Repo: "repo", Branch: "main", Commit: "c2", Path: "auth/service.go", Type: parse.ChangeDeleted},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.FilesDeleted)
	assert.Zero(t, sum.FilesIndexed)

	sym, err := f.stores.Symbols.GetByID(ctx, "sym-login")
	require.NoError(t, err)
	assert.Nil(t, sym)

	hits, err := f.stores.Search.Search(ctx, "repo", "main", "login", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	fp, err := f.stores.Fingerprints.GetBySymbol(ctx, "sym-login")
	require.NoError(t, err)
	assert.Nil(t, fp)

	chunks, err := f.stores.Chunks.GetBySymbolIDs(ctx, []string{"sym-login", "sym-token"})
	require.NoError(t, err)
	assert.Empty(t, chunks)

	edges, err := f.stores.Edges.GetBySources(ctx, []string{"sym-login"})
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestRun_ParseFailureSkipsFileOnly(t *testing.T) {
	f := newPipelineFixture(t)
	f.seedAuthFile()
	f.blobs.blobs["broken.go"] = "func {"
	f.parser.fail["broken.go"] = true
	ctx := context.Background()

	sum, err := f.pipe.Run(ctx, "repo", "main", "c1", []parse.FileChange{
		change("auth/service.go", parse.ChangeAdded),
		change("broken.go", parse.ChangeModified),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.FilesIndexed)
	assert.Equal(t, 1, sum.FilesFailed)

	// The run still completes and releases the latch.
	branch, err := f.stores.Branches.Get(ctx, "repo", "main")
	require.NoError(t, err)
	assert.Equal(t, store.IndexStateCompleted, branch.IndexState)
}

func TestRun_MissingBlobCountsAsFailure(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	sum, err := f.pipe.Run(ctx, "repo", "main", "c1", []parse.FileChange{
		change("ghost.go", parse.ChangeAdded),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.FilesFailed)
	assert.Zero(t, sum.FilesIndexed)
}

func TestRun_RerunIsIdempotent(t *testing.T) {
	f := newPipelineFixture(t)
	f.seedAuthFile()
	ctx := context.Background()
	changes := []parse.FileChange{change("auth/service.go", parse.ChangeModified)}

	_, err := f.pipe.Run(ctx, "repo", "main", "c1", changes)
	require.NoError(t, err)
	_, err = f.pipe.Run(ctx, "repo", "main", "c1", changes)
	require.NoError(t, err)

	syms, err := f.stores.Symbols.GetByIDs(ctx, []string{"sym-login", "sym-token"})
	require.NoError(t, err)
	assert.Len(t, syms, 2)

	hits, err := f.stores.Search.Search(ctx, "repo", "main", "login", 10)
	require.NoError(t, err)
	seen := map[string]int{}
	for _, h := range hits {
		seen[h.SymbolID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "duplicate search row for %s", id)
	}
}

func TestRun_OnIndexedCallback(t *testing.T) {
	f := newPipelineFixture(t)
	f.seedAuthFile()
	called := 0
	f.pipe.OnIndexed(func() { called++ })
	ctx := context.Background()

	_, err := f.pipe.Run(ctx, "repo", "main", "c1", []parse.FileChange{
		change("auth/service.go", parse.ChangeAdded),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, called)

	// A rejected run never fires the callback.
	ok, err := f.stores.Branches.BeginIndexing(ctx, "repo", "main", "c2")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = f.pipe.Run(ctx, "repo", "main", "c2", nil)
	assert.ErrorIs(t, err, ErrAlreadyInProgress)
	assert.Equal(t, 1, called)
}
