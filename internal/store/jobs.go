package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// JobRepo is the Postgres embedding_jobs queue. Claims use FOR UPDATE
// SKIP LOCKED so concurrent workers never double-process a job.
type JobRepo struct {
	db *DB
}

func NewJobRepo(db *DB) *JobRepo { return &JobRepo{db: db} }

var _ Jobs = (*JobRepo)(nil)

const jobColumns = `id, repo_id, branch_name, commit_sha, target_kind, target_id, model, dims,
	status, attempts, next_attempt_at, last_error, locked_at, locked_by, created_at, updated_at`

// UpsertBatch inserts jobs, overwriting state on the unique
// (repo, branch, target_kind, target_id, model) key so a reindex resets
// prior attempts and schedule.
func (r *JobRepo) UpsertBatch(ctx context.Context, rows []*JobRow) error {
	batch := &pgx.Batch{}
	for _, j := range rows {
		batch.Queue(`INSERT INTO embedding_jobs
			(id, repo_id, branch_name, commit_sha, target_kind, target_id, model, dims,
			 status, attempts, next_attempt_at, last_error)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			ON CONFLICT (repo_id, branch_name, target_kind, target_id, model) DO UPDATE SET
			  commit_sha = EXCLUDED.commit_sha,
			  dims = EXCLUDED.dims,
			  status = EXCLUDED.status,
			  attempts = EXCLUDED.attempts,
			  next_attempt_at = EXCLUDED.next_attempt_at,
			  last_error = EXCLUDED.last_error,
			  locked_at = NULL,
			  locked_by = NULL,
			  updated_at = now()`,
			j.ID, j.Repo, j.BranchName, j.CommitSHA, j.TargetKind, j.TargetID, j.Model,
			j.Dims, string(j.Status), j.Attempts, j.NextAttemptAt, j.LastError)
	}
	if err := r.db.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert jobs: %w", err)
	}
	return nil
}

// Claim promotes up to batchSize due Pending jobs to Processing for the
// worker. Eligible rows have no schedule or one at or before now; FIFO on
// creation order.
func (r *JobRepo) Claim(ctx context.Context, workerID string, batchSize int, now time.Time) ([]*JobRow, error) {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx,
		`SELECT id FROM embedding_jobs
		 WHERE status = $1 AND (next_attempt_at IS NULL OR next_attempt_at <= $2)
		 ORDER BY created_at, id
		 LIMIT $3
		 FOR UPDATE SKIP LOCKED`,
		string(JobPending), now, batchSize)
	if err != nil {
		return nil, fmt.Errorf("select claimable jobs: %w", err)
	}
	ids := make([]string, 0, batchSize)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, tx.Commit(ctx)
	}

	claimed, err := tx.Query(ctx,
		`UPDATE embedding_jobs
		 SET status = $2, attempts = attempts + 1, locked_at = $3, locked_by = $4, updated_at = $3
		 WHERE id = ANY($1)
		 RETURNING `+jobColumns,
		ids, string(JobProcessing), now, workerID)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	out, err := collectJobs(claimed)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	// RETURNING order is not guaranteed; restore FIFO claim order.
	byID := make(map[string]*JobRow, len(out))
	for _, j := range out {
		byID[j.ID] = j
	}
	ordered := make([]*JobRow, 0, len(out))
	for _, id := range ids {
		if j, ok := byID[id]; ok {
			ordered = append(ordered, j)
		}
	}
	return ordered, nil
}

// MarkCompleted finishes a job, recording the embedding dims and an
// optional terminal note.
func (r *JobRepo) MarkCompleted(ctx context.Context, id string, lastError *string, dims int, now time.Time) error {
	_, err := r.db.pool.Exec(ctx,
		`UPDATE embedding_jobs
		 SET status = $2, dims = $3, last_error = $4,
		     locked_at = NULL, locked_by = NULL, next_attempt_at = NULL, updated_at = $5
		 WHERE id = $1`,
		id, string(JobCompleted), dims, lastError, now)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// Requeue returns a job to Pending with a retry schedule after a
// transient failure.
func (r *JobRepo) Requeue(ctx context.Context, id string, nextAttemptAt time.Time, errCode string, now time.Time) error {
	_, err := r.db.pool.Exec(ctx,
		`UPDATE embedding_jobs
		 SET status = $2, next_attempt_at = $3, last_error = $4,
		     locked_at = NULL, locked_by = NULL, updated_at = $5
		 WHERE id = $1`,
		id, string(JobPending), nextAttemptAt, errCode, now)
	if err != nil {
		return fmt.Errorf("requeue job: %w", err)
	}
	return nil
}

// MarkBlocked parks a job that cannot make progress.
func (r *JobRepo) MarkBlocked(ctx context.Context, id string, lastError string, now time.Time) error {
	_, err := r.db.pool.Exec(ctx,
		`UPDATE embedding_jobs
		 SET status = $2, last_error = $3,
		     locked_at = NULL, locked_by = NULL, next_attempt_at = NULL, updated_at = $4
		 WHERE id = $1`,
		id, string(JobBlocked), lastError, now)
	if err != nil {
		return fmt.Errorf("block job: %w", err)
	}
	return nil
}

// RequeueStale returns Processing jobs locked before the cutoff to
// Pending. Recovers jobs abandoned by crashed workers.
func (r *JobRepo) RequeueStale(ctx context.Context, cutoff, now time.Time) (int, error) {
	tag, err := r.db.pool.Exec(ctx,
		`UPDATE embedding_jobs
		 SET status = $1, locked_at = NULL, locked_by = NULL, updated_at = $3
		 WHERE status = $2 AND locked_at IS NOT NULL AND locked_at < $4`,
		string(JobPending), string(JobProcessing), now, cutoff)
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// PurgeCompleted deletes Completed jobs last touched before the cutoff.
func (r *JobRepo) PurgeCompleted(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.db.pool.Exec(ctx,
		`DELETE FROM embedding_jobs WHERE status = $1 AND updated_at < $2`,
		string(JobCompleted), cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge completed jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// GetByKey looks a job up by its natural key; nil when absent.
func (r *JobRepo) GetByKey(ctx context.Context, repo, branch, targetKind, targetID, model string) (*JobRow, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM embedding_jobs
		 WHERE repo_id = $1 AND branch_name = $2 AND target_kind = $3
		   AND target_id = $4 AND model = $5`,
		repo, branch, targetKind, targetID, model)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

func collectJobs(rows pgx.Rows) ([]*JobRow, error) {
	defer rows.Close()
	var out []*JobRow
	for rows.Next() {
		var j JobRow
		var status string
		if err := rows.Scan(
			&j.ID, &j.Repo, &j.BranchName, &j.CommitSHA, &j.TargetKind, &j.TargetID,
			&j.Model, &j.Dims, &status, &j.Attempts, &j.NextAttemptAt, &j.LastError,
			&j.LockedAt, &j.LockedBy, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, err
		}
		j.Status = JobStatus(status)
		out = append(out, &j)
	}
	return out, rows.Err()
}
