package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/codelens-dev/codelens/internal/store"
)

// Enqueuer creates embedding jobs for freshly indexed chunks. When
// embeddings are disabled it is a no-op; when no model is configured the
// jobs are parked Blocked under the missing-model sentinel so a later
// configuration change can revive them.
type Enqueuer struct {
	jobs    store.Jobs
	enabled bool
	model   string
	logger  *slog.Logger
}

// NewEnqueuer builds an enqueuer. The model is normalised to lowercase
// so job identity never splits on case.
func NewEnqueuer(jobs store.Jobs, enabled bool, model string, logger *slog.Logger) *Enqueuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enqueuer{
		jobs:    jobs,
		enabled: enabled,
		model:   strings.ToLower(strings.TrimSpace(model)),
		logger:  logger,
	}
}

// EnqueueChunks creates one Pending job per chunk id. Re-enqueueing an
// existing (chunk, model) pair resets it to Pending with zero attempts.
func (e *Enqueuer) EnqueueChunks(ctx context.Context, repo, branch, commit string, chunkIDs []string) error {
	if !e.enabled || len(chunkIDs) == 0 {
		return nil
	}

	model := e.model
	status := store.JobPending
	var lastError *string
	if model == "" {
		model = store.MissingModelSentinel
		status = store.JobBlocked
		msg := CodeModelMissing
		lastError = &msg
		e.logger.Warn("embedding model not configured, parking jobs blocked",
			"repo", repo, "branch", branch, "chunks", len(chunkIDs))
	}

	rows := make([]*store.JobRow, 0, len(chunkIDs))
	for _, chunkID := range chunkIDs {
		rows = append(rows, &store.JobRow{
			ID:         uuid.NewString(),
			Repo:       repo,
			BranchName: branch,
			CommitSHA:  commit,
			TargetKind: store.TargetKindCodeChunk,
			TargetID:   chunkID,
			Model:      model,
			Status:     status,
			LastError:  lastError,
		})
	}
	if err := e.jobs.UpsertBatch(ctx, rows); err != nil {
		return fmt.Errorf("enqueue embedding jobs: %w", err)
	}
	e.logger.Debug("enqueued embedding jobs",
		"repo", repo, "branch", branch, "model", model, "count", len(rows))
	return nil
}
