package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens-dev/codelens/internal/store"
)

func TestEnqueuer_CreatesPendingJobs(t *testing.T) {
	ctx := context.Background()
	stores := store.MemoryStores(store.NewMemory())
	e := NewEnqueuer(stores.Jobs, true, "Nomic-Embed-Text", nil)

	require.NoError(t, e.EnqueueChunks(ctx, "repo", "main", "c1", []string{"chunk-1", "chunk-2"}))

	j, err := stores.Jobs.GetByKey(ctx, "repo", "main", store.TargetKindCodeChunk, "chunk-1", "nomic-embed-text")
	require.NoError(t, err)
	require.NotNil(t, j)
	assert.Equal(t, store.JobPending, j.Status)
	assert.Zero(t, j.Attempts)
	// Model is normalised to lowercase.
	assert.Equal(t, "nomic-embed-text", j.Model)
}

func TestEnqueuer_DisabledIsNoop(t *testing.T) {
	ctx := context.Background()
	stores := store.MemoryStores(store.NewMemory())
	e := NewEnqueuer(stores.Jobs, false, "model", nil)

	require.NoError(t, e.EnqueueChunks(ctx, "repo", "main", "c1", []string{"chunk-1"}))

	j, err := stores.Jobs.GetByKey(ctx, "repo", "main", store.TargetKindCodeChunk, "chunk-1", "model")
	require.NoError(t, err)
	assert.Nil(t, j)
}

func TestEnqueuer_MissingModelParksBlocked(t *testing.T) {
	ctx := context.Background()
	stores := store.MemoryStores(store.NewMemory())
	e := NewEnqueuer(stores.Jobs, true, "", nil)

	require.NoError(t, e.EnqueueChunks(ctx, "repo", "main", "c1", []string{"chunk-1"}))

	j, err := stores.Jobs.GetByKey(ctx, "repo", "main", store.TargetKindCodeChunk, "chunk-1", store.MissingModelSentinel)
	require.NoError(t, err)
	require.NotNil(t, j)
	assert.Equal(t, store.JobBlocked, j.Status)
	require.NotNil(t, j.LastError)
	assert.Equal(t, CodeModelMissing, *j.LastError)
}

func TestEnqueuer_ReenqueueResetsJob(t *testing.T) {
	ctx := context.Background()
	stores := store.MemoryStores(store.NewMemory())
	e := NewEnqueuer(stores.Jobs, true, "m", nil)

	require.NoError(t, e.EnqueueChunks(ctx, "repo", "main", "c1", []string{"chunk-1"}))
	j, err := stores.Jobs.GetByKey(ctx, "repo", "main", store.TargetKindCodeChunk, "chunk-1", "m")
	require.NoError(t, err)
	require.NoError(t, stores.Jobs.MarkBlocked(ctx, j.ID, "provider_error", j.CreatedAt))

	require.NoError(t, e.EnqueueChunks(ctx, "repo", "main", "c2", []string{"chunk-1"}))

	j, err = stores.Jobs.GetByKey(ctx, "repo", "main", store.TargetKindCodeChunk, "chunk-1", "m")
	require.NoError(t, err)
	assert.Equal(t, store.JobPending, j.Status)
	assert.Zero(t, j.Attempts)
	assert.Equal(t, "c2", j.CommitSHA)
	assert.Nil(t, j.LastError)
}
