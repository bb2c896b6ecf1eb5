package embed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens-dev/codelens/internal/store"
)

// scriptedProvider returns its queued results in order; the last one
// repeats.
type scriptedProvider struct {
	results []*Result
	calls   int
	models  []string
	inputs  [][]string
}

func (p *scriptedProvider) Embed(_ context.Context, model string, texts []string) (*Result, error) {
	p.models = append(p.models, model)
	p.inputs = append(p.inputs, texts)
	i := p.calls
	if i >= len(p.results) {
		i = len(p.results) - 1
	}
	p.calls++
	return p.results[i], nil
}

func vectorsFor(texts []string) *Result {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return &Result{Success: true, Embeddings: out}
}

type workerFixture struct {
	mem      *store.Memory
	stores   *store.Stores
	provider *scriptedProvider
	worker   *Worker
	clock    time.Time
}

func newWorkerFixture(t *testing.T, results ...*Result) *workerFixture {
	t.Helper()
	mem := store.NewMemory()
	stores := store.MemoryStores(mem)
	provider := &scriptedProvider{results: results}
	f := &workerFixture{
		mem:      mem,
		stores:   stores,
		provider: provider,
		clock:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	f.worker = NewWorker(stores.Jobs, stores.Chunks, stores.Embeddings, provider, WorkerOptions{
		WorkerID:    "test-worker",
		BatchSize:   8,
		MaxAttempts: 3,
	}, nil)
	f.worker.now = func() time.Time { return f.clock }
	return f
}

func (f *workerFixture) seedChunk(t *testing.T, chunkID string) {
	t.Helper()
	err := f.stores.Chunks.ReplaceFile(context.Background(), "repo", "main", "a.go", []*store.ChunkRow{{
		ID: chunkID, Repo: "repo", BranchName: "main", FilePath: "a.go",
		SymbolID: "sym-" + chunkID, Content: "func A() {}", ContentHash: "h-" + chunkID,
		ChunkStartLine: 1, ChunkEndLine: 1,
	}})
	require.NoError(t, err)
}

func (f *workerFixture) seedJob(t *testing.T, id, chunkID string) {
	t.Helper()
	err := f.stores.Jobs.UpsertBatch(context.Background(), []*store.JobRow{{
		ID: id, Repo: "repo", BranchName: "main", CommitSHA: "c1",
		TargetKind: store.TargetKindCodeChunk, TargetID: chunkID,
		Model: "nomic-embed-text", Status: store.JobPending,
	}})
	require.NoError(t, err)
}

func (f *workerFixture) job(t *testing.T, chunkID string) *store.JobRow {
	t.Helper()
	j, err := f.stores.Jobs.GetByKey(context.Background(),
		"repo", "main", store.TargetKindCodeChunk, chunkID, "nomic-embed-text")
	require.NoError(t, err)
	require.NotNil(t, j)
	return j
}

func TestWorker_SuccessStoresEmbeddingAndCompletes(t *testing.T) {
	ctx := context.Background()
	f := newWorkerFixture(t, vectorsFor([]string{"one"}))
	f.seedChunk(t, "c1")
	f.seedJob(t, "j1", "c1")

	require.NoError(t, f.worker.Tick(ctx))

	j := f.job(t, "c1")
	assert.Equal(t, store.JobCompleted, j.Status)
	assert.Equal(t, 3, j.Dims)
	assert.Nil(t, j.LastError)

	rows, err := f.stores.Embeddings.GetByChunkIDs(ctx, []string{"c1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "nomic-embed-text", rows[0].Model)
	assert.Equal(t, []float32{1, 0, 0}, rows[0].Vector)
}

func TestWorker_TransientFailureRetriesWithBackoff(t *testing.T) {
	ctx := context.Background()
	f := newWorkerFixture(t,
		&Result{Transient: true, ErrorCode: CodeProviderTimeout},
		vectorsFor([]string{"one"}))
	f.seedChunk(t, "c1")
	f.seedJob(t, "j1", "c1")

	require.NoError(t, f.worker.Tick(ctx))

	j := f.job(t, "c1")
	assert.Equal(t, store.JobPending, j.Status)
	assert.Equal(t, 1, j.Attempts)
	require.NotNil(t, j.LastError)
	assert.Equal(t, CodeProviderTimeout, *j.LastError)
	require.NotNil(t, j.NextAttemptAt)
	assert.Equal(t, f.clock.Add(30*time.Second), *j.NextAttemptAt)

	// Not yet due: the next tick claims nothing.
	f.clock = f.clock.Add(10 * time.Second)
	require.NoError(t, f.worker.Tick(ctx))
	assert.Equal(t, 1, f.provider.calls)

	// Past the schedule the retry succeeds.
	f.clock = f.clock.Add(time.Minute)
	require.NoError(t, f.worker.Tick(ctx))
	j = f.job(t, "c1")
	assert.Equal(t, store.JobCompleted, j.Status)
	assert.Equal(t, 2, j.Attempts)
}

func TestWorker_ExhaustedRetriesBlock(t *testing.T) {
	ctx := context.Background()
	f := newWorkerFixture(t, &Result{Transient: true, ErrorCode: CodeProviderUnavailable})
	f.seedChunk(t, "c1")
	f.seedJob(t, "j1", "c1")

	for i := 0; i < 3; i++ {
		require.NoError(t, f.worker.Tick(ctx))
		f.clock = f.clock.Add(2 * time.Hour)
	}

	j := f.job(t, "c1")
	assert.Equal(t, store.JobBlocked, j.Status)
	assert.Equal(t, 3, j.Attempts)
	require.NotNil(t, j.LastError)
	assert.Equal(t, CodeMaxAttempts, *j.LastError)
}

func TestWorker_PermanentFailureBlocksImmediately(t *testing.T) {
	ctx := context.Background()
	f := newWorkerFixture(t, &Result{Transient: false, ErrorCode: CodeProviderError, ErrorMsg: "bad model"})
	f.seedChunk(t, "c1")
	f.seedJob(t, "j1", "c1")

	require.NoError(t, f.worker.Tick(ctx))

	j := f.job(t, "c1")
	assert.Equal(t, store.JobBlocked, j.Status)
	assert.Equal(t, 1, j.Attempts)
	require.NotNil(t, j.LastError)
	assert.Equal(t, CodeProviderError, *j.LastError)
}

func TestWorker_MissingChunkCompletesTerminally(t *testing.T) {
	ctx := context.Background()
	f := newWorkerFixture(t, vectorsFor(nil))
	f.seedJob(t, "j1", "gone")

	require.NoError(t, f.worker.Tick(ctx))

	j := f.job(t, "gone")
	assert.Equal(t, store.JobCompleted, j.Status)
	require.NotNil(t, j.LastError)
	assert.Equal(t, CodeChunkMissing, *j.LastError)
	// The provider is never called for a vanished chunk.
	assert.Zero(t, f.provider.calls)
}

func TestWorker_StaleLocksReturnToPending(t *testing.T) {
	ctx := context.Background()
	f := newWorkerFixture(t, &Result{Transient: true, ErrorCode: CodeProviderTimeout})
	f.seedChunk(t, "c1")
	f.seedJob(t, "j1", "c1")

	// Simulate an abandoned claim by another worker.
	_, err := f.stores.Jobs.Claim(ctx, "crashed-worker", 1, f.clock.Add(-time.Hour))
	require.NoError(t, err)

	f.provider.results = []*Result{vectorsFor([]string{"one"})}
	require.NoError(t, f.worker.Tick(ctx))

	j := f.job(t, "c1")
	assert.Equal(t, store.JobCompleted, j.Status)
}

func TestWorker_BackoffSchedule(t *testing.T) {
	w := &Worker{opts: WorkerOptions{InitialBackoff: 30 * time.Second, MaxBackoff: time.Hour}}

	assert.Equal(t, 30*time.Second, w.backoff(1))
	assert.Equal(t, time.Minute, w.backoff(2))
	assert.Equal(t, 8*time.Minute, w.backoff(5))
	assert.Equal(t, time.Hour, w.backoff(8))
	assert.Equal(t, time.Hour, w.backoff(50))
}

func TestWorker_GroupsJobsByModel(t *testing.T) {
	jobs := []*store.JobRow{
		{ID: "a", Model: "m1"},
		{ID: "b", Model: "m2"},
		{ID: "c", Model: "m1"},
	}
	groups := groupByModel(jobs)
	require.Len(t, groups, 2)
	assert.Equal(t, "m1", groups[0].model)
	assert.Len(t, groups[0].jobs, 2)
	assert.Equal(t, "m2", groups[1].model)
}
