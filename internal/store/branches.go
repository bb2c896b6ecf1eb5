package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BranchRepo is the Postgres branches repository.
type BranchRepo struct {
	db *DB
}

func NewBranchRepo(db *DB) *BranchRepo { return &BranchRepo{db: db} }

var _ Branches = (*BranchRepo)(nil)

// Get returns the branch row or nil when unknown.
func (r *BranchRepo) Get(ctx context.Context, repo, name string) (*Branch, error) {
	var b Branch
	var state string
	err := r.db.pool.QueryRow(ctx,
		`SELECT repo_id, name, head_commit, index_state, indexed_commit, updated_at
		 FROM branches WHERE repo_id = $1 AND name = $2`,
		repo, name).Scan(&b.Repo, &b.Name, &b.HeadCommit, &state, &b.IndexedCommit, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get branch: %w", err)
	}
	b.IndexState = IndexState(state)
	return &b, nil
}

// BeginIndexing acquires the branch latch with a compare-and-set on
// index_state. Creates the branch (and repository) rows when absent.
// Returns false when another run is already indexing.
func (r *BranchRepo) BeginIndexing(ctx context.Context, repo, name, commit string) (bool, error) {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin indexing latch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO repositories (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
		repo); err != nil {
		return false, fmt.Errorf("ensure repository: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO branches (repo_id, name, head_commit)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (repo_id, name) DO NOTHING`,
		repo, name, commit); err != nil {
		return false, fmt.Errorf("ensure branch: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE branches
		 SET index_state = $4, head_commit = $3, updated_at = now()
		 WHERE repo_id = $1 AND name = $2 AND index_state <> $4`,
		repo, name, commit, string(IndexStateInProgress))
	if err != nil {
		return false, fmt.Errorf("acquire indexing latch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	return true, tx.Commit(ctx)
}

// FinishIndexing releases the latch and records the outcome. A Completed
// finish also records the indexed commit.
func (r *BranchRepo) FinishIndexing(ctx context.Context, repo, name, commit string, state IndexState) error {
	var err error
	if state == IndexStateCompleted {
		_, err = r.db.pool.Exec(ctx,
			`UPDATE branches
			 SET index_state = $4, indexed_commit = $3, updated_at = now()
			 WHERE repo_id = $1 AND name = $2`,
			repo, name, commit, string(state))
	} else {
		_, err = r.db.pool.Exec(ctx,
			`UPDATE branches SET index_state = $3, updated_at = now()
			 WHERE repo_id = $1 AND name = $2`,
			repo, name, string(state))
	}
	if err != nil {
		return fmt.Errorf("finish indexing: %w", err)
	}
	return nil
}
