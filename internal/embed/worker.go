package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/codelens-dev/codelens/internal/store"
)

// WorkerOptions tunes the claim loop. Zero values take the defaults.
type WorkerOptions struct {
	WorkerID       string
	BatchSize      int
	MaxAttempts    int
	TickInterval   time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// StaleAfter is how long a Processing lock may sit before the job is
	// presumed abandoned and returned to Pending.
	StaleAfter time.Duration
	// PurgeAfter is how long Completed jobs are retained.
	PurgeAfter time.Duration
}

const (
	defaultBatchSize      = 64
	defaultMaxAttempts    = 10
	defaultTickInterval   = 5 * time.Second
	defaultInitialBackoff = 30 * time.Second
	defaultMaxBackoff     = time.Hour
	defaultStaleAfter     = 10 * time.Minute
	defaultPurgeAfter     = 7 * 24 * time.Hour
)

func (o *WorkerOptions) applyDefaults() {
	if o.WorkerID == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "worker"
		}
		o.WorkerID = host + ":" + strconv.Itoa(os.Getpid())
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.TickInterval <= 0 {
		o.TickInterval = defaultTickInterval
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = defaultInitialBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = defaultMaxBackoff
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = defaultStaleAfter
	}
	if o.PurgeAfter <= 0 {
		o.PurgeAfter = defaultPurgeAfter
	}
}

// Worker drains the embedding job queue: claim a batch, embed the chunk
// contents, write vectors back and settle each job. Safe to run in
// multiple processes; the queue's claim semantics prevent double work.
type Worker struct {
	jobs       store.Jobs
	chunks     store.Chunks
	embeddings store.Embeddings
	provider   Provider
	opts       WorkerOptions
	logger     *slog.Logger
	now        func() time.Time
}

// NewWorker builds a worker over the given seams.
func NewWorker(jobs store.Jobs, chunks store.Chunks, embeddings store.Embeddings, provider Provider, opts WorkerOptions, logger *slog.Logger) *Worker {
	opts.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		jobs:       jobs,
		chunks:     chunks,
		embeddings: embeddings,
		provider:   provider,
		opts:       opts,
		logger:     logger.With("worker_id", opts.WorkerID),
		now:        time.Now,
	}
}

// Run ticks until the context is cancelled. Each tick sweeps stale
// locks, purges old completions and processes one claim batch.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.TickInterval)
	defer ticker.Stop()
	for {
		if err := w.Tick(ctx); err != nil {
			w.logger.Error("worker tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick runs one maintenance-and-claim cycle.
func (w *Worker) Tick(ctx context.Context) error {
	now := w.now()

	moved, err := w.jobs.RequeueStale(ctx, now.Add(-w.opts.StaleAfter), now)
	if err != nil {
		return fmt.Errorf("requeue stale jobs: %w", err)
	}
	if moved > 0 {
		w.logger.Warn("requeued stale embedding jobs", "count", moved)
	}

	purged, err := w.jobs.PurgeCompleted(ctx, now.Add(-w.opts.PurgeAfter))
	if err != nil {
		return fmt.Errorf("purge completed jobs: %w", err)
	}
	if purged > 0 {
		w.logger.Debug("purged completed embedding jobs", "count", purged)
	}

	claimed, err := w.jobs.Claim(ctx, w.opts.WorkerID, w.opts.BatchSize, now)
	if err != nil {
		return fmt.Errorf("claim embedding jobs: %w", err)
	}
	if len(claimed) == 0 {
		return nil
	}
	w.logger.Debug("claimed embedding jobs", "count", len(claimed))

	for _, group := range groupByModel(claimed) {
		if err := w.processModelBatch(ctx, group); err != nil {
			return err
		}
	}
	return nil
}

type modelBatch struct {
	model string
	jobs  []*store.JobRow
}

func groupByModel(jobs []*store.JobRow) []*modelBatch {
	var order []*modelBatch
	byModel := make(map[string]*modelBatch)
	for _, j := range jobs {
		g, ok := byModel[j.Model]
		if !ok {
			g = &modelBatch{model: j.Model}
			byModel[j.Model] = g
			order = append(order, g)
		}
		g.jobs = append(g.jobs, j)
	}
	return order
}

func (w *Worker) processModelBatch(ctx context.Context, batch *modelBatch) error {
	now := w.now()

	// Jobs whose chunk vanished (file deleted or re-chunked since
	// enqueue) complete terminally; embedding nothing is the right
	// outcome, not a retry.
	var live []*store.JobRow
	var texts []string
	chunkByJob := make(map[string]*store.ChunkRow)
	for _, j := range batch.jobs {
		chunk, err := w.chunks.GetByID(ctx, j.TargetID)
		if err != nil {
			return fmt.Errorf("load chunk %s: %w", j.TargetID, err)
		}
		if chunk == nil {
			code := CodeChunkMissing
			if err := w.jobs.MarkCompleted(ctx, j.ID, &code, 0, now); err != nil {
				return fmt.Errorf("complete missing-chunk job: %w", err)
			}
			w.logger.Debug("chunk gone, job closed", "job_id", j.ID, "chunk_id", j.TargetID)
			continue
		}
		live = append(live, j)
		texts = append(texts, chunk.Content)
		chunkByJob[j.ID] = chunk
	}
	if len(live) == 0 {
		return nil
	}

	result, err := w.provider.Embed(ctx, batch.model, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if !result.Success {
		return w.settleFailure(ctx, live, result)
	}
	if len(result.Embeddings) != len(live) {
		return w.settleFailure(ctx, live, &Result{
			Transient: false,
			ErrorCode: CodeProviderError,
			ErrorMsg:  "embedding count does not match input count",
		})
	}

	rows := make([]*store.EmbeddingRow, 0, len(live))
	for i, j := range live {
		chunk := chunkByJob[j.ID]
		rows = append(rows, &store.EmbeddingRow{
			ID:         uuid.NewString(),
			ChunkID:    chunk.ID,
			Repo:       j.Repo,
			BranchName: j.BranchName,
			CommitSHA:  j.CommitSHA,
			Vector:     result.Embeddings[i],
			Model:      batch.model,
			Dims:       len(result.Embeddings[i]),
		})
	}
	if err := w.embeddings.UpsertBatch(ctx, rows); err != nil {
		return fmt.Errorf("store embeddings: %w", err)
	}
	for i, j := range live {
		if err := w.jobs.MarkCompleted(ctx, j.ID, nil, len(result.Embeddings[i]), now); err != nil {
			return fmt.Errorf("complete job: %w", err)
		}
	}
	w.logger.Info("embedded chunk batch", "model", batch.model, "count", len(live))
	return nil
}

func (w *Worker) settleFailure(ctx context.Context, jobs []*store.JobRow, result *Result) error {
	now := w.now()
	code := result.ErrorCode
	if code == "" {
		code = CodeProviderError
	}
	for _, j := range jobs {
		switch {
		case !result.Transient:
			if err := w.jobs.MarkBlocked(ctx, j.ID, code, now); err != nil {
				return fmt.Errorf("block job: %w", err)
			}
			w.logger.Warn("embedding job blocked",
				"job_id", j.ID, "code", code, "detail", result.ErrorMsg)
		case j.Attempts >= w.opts.MaxAttempts:
			if err := w.jobs.MarkBlocked(ctx, j.ID, CodeMaxAttempts, now); err != nil {
				return fmt.Errorf("block exhausted job: %w", err)
			}
			w.logger.Warn("embedding job exhausted retries",
				"job_id", j.ID, "attempts", j.Attempts)
		default:
			delay := w.backoff(j.Attempts)
			if err := w.jobs.Requeue(ctx, j.ID, now.Add(delay), code, now); err != nil {
				return fmt.Errorf("requeue job: %w", err)
			}
			w.logger.Debug("embedding job requeued",
				"job_id", j.ID, "attempts", j.Attempts, "delay", delay, "code", code)
		}
	}
	return nil
}

// backoff doubles per attempt from the initial delay and saturates at
// the maximum.
func (w *Worker) backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := w.opts.InitialBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= w.opts.MaxBackoff {
			return w.opts.MaxBackoff
		}
	}
	if delay > w.opts.MaxBackoff {
		delay = w.opts.MaxBackoff
	}
	return delay
}
