package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens-dev/codelens/internal/parse"
	"github.com/codelens-dev/codelens/internal/query"
	"github.com/codelens-dev/codelens/internal/store"
)

func newServerFixture(t *testing.T) (*Server, *store.Stores) {
	t.Helper()
	stores := store.MemoryStores(store.NewMemory())
	ctx := context.Background()

	require.NoError(t, stores.Symbols.ReplaceFile(ctx, "repo", "main", "svc/user.cs", []*store.SymbolRow{{
		ID:            "sym-user",
		Repo:          "repo",
		BranchName:    "main",
		CommitSHA:     "c1",
		FilePath:      "svc/user.cs",
		Name:          "UserService",
		QualifiedName: "Svc.UserService",
		Kind:          parse.KindClass,
		Language:      "csharp",
		StartLine:     1,
		EndLine:       40,
	}}))
	require.NoError(t, stores.Search.Upsert(ctx, []*store.SearchEntryRow{{
		SymbolID:   "sym-user",
		Repo:       "repo",
		BranchName: "main",
		FilePath:   "svc/user.cs",
		NameTokens: []string{"user", "service", "userservice"},
		Snippet:    "class UserService { }",
	}}))

	engine := query.New(stores, query.Options{
		DefaultProfile:   "fast",
		MaxResults:       20,
		MaxSnippetChars:  8000,
		MaxResponseBytes: 65536,
		SparseWeight:     0.3,
		VectorWeight:     0.7,
	}, nil)

	srv, err := NewServer(engine, stores, nil)
	require.NoError(t, err)
	return srv, stores
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(nil, store.MemoryStores(store.NewMemory()), nil)
	assert.Error(t, err)

	_, err = NewServer(query.New(store.MemoryStores(store.NewMemory()), query.Options{}, nil), nil, nil)
	assert.Error(t, err)
}

func TestSearchTool_ValidatesInput(t *testing.T) {
	srv, _ := newServerFixture(t)
	ctx := context.Background()

	_, _, err := srv.handleSearch(ctx, nil, SearchInput{Repository: "repo"})
	requireMCPCode(t, err, ErrCodeInvalidParams)

	_, _, err = srv.handleSearch(ctx, nil, SearchInput{Query: "   ", Repository: "repo"})
	requireMCPCode(t, err, ErrCodeInvalidParams)

	_, _, err = srv.handleSearch(ctx, nil, SearchInput{Query: "user"})
	requireMCPCode(t, err, ErrCodeInvalidParams)
}

func TestSearchTool_ReturnsResults(t *testing.T) {
	srv, _ := newServerFixture(t)

	_, resp, err := srv.handleSearch(context.Background(), nil, SearchInput{
		Query:      "user service",
		Repository: "repo",
	})
	require.NoError(t, err)

	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "sym-user", resp.Results[0].ID)
	assert.Equal(t, "Fast", resp.Metadata["profile"])
	// Branch defaults to main.
	assert.Equal(t, "main", resp.Metadata["branch"])
}

func TestSimilarTool(t *testing.T) {
	srv, _ := newServerFixture(t)
	ctx := context.Background()

	_, _, err := srv.handleSimilar(ctx, nil, SimilarInput{Repository: "repo"})
	requireMCPCode(t, err, ErrCodeInvalidParams)

	_, resp, err := srv.handleSimilar(ctx, nil, SimilarInput{
		SymbolID:   "does-not-exist",
		Repository: "repo",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, "seed_not_found", resp.Metadata["errorCode"])
}

func TestIndexStatusTool(t *testing.T) {
	srv, stores := newServerFixture(t)
	ctx := context.Background()

	_, out, err := srv.handleIndexStatus(ctx, nil, IndexStatusInput{Repository: "repo"})
	require.NoError(t, err)
	assert.Equal(t, string(store.IndexStatePending), out.IndexState)

	ok, err := stores.Branches.BeginIndexing(ctx, "repo", "main", "c1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, stores.Branches.FinishIndexing(ctx, "repo", "main", "c1", store.IndexStateCompleted))
	require.NoError(t, stores.Embeddings.UpsertBatch(ctx, []*store.EmbeddingRow{{
		ID:         "emb-1",
		ChunkID:    "chunk-1",
		Repo:       "repo",
		BranchName: "main",
		Vector:     []float32{1, 0, 0},
		Model:      "minilm",
		Dims:       3,
	}}))

	_, out, err = srv.handleIndexStatus(ctx, nil, IndexStatusInput{Repository: "repo"})
	require.NoError(t, err)
	assert.Equal(t, string(store.IndexStateCompleted), out.IndexState)
	assert.Equal(t, "c1", out.IndexedCommit)
	assert.Equal(t, map[string]int{"minilm": 3}, out.EmbeddingModels)
}

func requireMCPCode(t *testing.T, err error, code int) {
	t.Helper()
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
}
