package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/codelens-dev/codelens/internal/parse"
)

// EdgeRepo is the Postgres symbol_edges repository.
type EdgeRepo struct {
	db *DB
}

func NewEdgeRepo(db *DB) *EdgeRepo { return &EdgeRepo{db: db} }

var _ Edges = (*EdgeRepo)(nil)

// ReplaceFile swaps the file's edges in one transaction.
func (r *EdgeRepo) ReplaceFile(ctx context.Context, repo, branch, path string, rows []*EdgeRow) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace edges: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM symbol_edges WHERE repo_id = $1 AND branch_name = $2 AND file_path = $3`,
		repo, branch, path); err != nil {
		return fmt.Errorf("delete prior edges: %w", err)
	}

	batch := &pgx.Batch{}
	for _, e := range rows {
		batch.Queue(`INSERT INTO symbol_edges
			(source_symbol_id, target_symbol_id, target_name, kind, repo_id, branch_name, file_path)
			VALUES ($1, NULLIF($2,''), $3, $4, $5, $6, $7)`,
			e.SourceID, e.TargetID, e.TargetName, string(e.Kind), e.Repo, e.BranchName, e.FilePath)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert edges: %w", err)
	}

	return tx.Commit(ctx)
}

// GetBySources returns outgoing edges for a set of source symbols.
func (r *EdgeRepo) GetBySources(ctx context.Context, sourceIDs []string) ([]*EdgeRow, error) {
	if len(sourceIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.pool.Query(ctx,
		`SELECT source_symbol_id, COALESCE(target_symbol_id, ''), target_name, kind,
		        repo_id, branch_name, file_path
		 FROM symbol_edges WHERE source_symbol_id = ANY($1)`, sourceIDs)
	if err != nil {
		return nil, fmt.Errorf("select edges: %w", err)
	}
	defer rows.Close()

	var out []*EdgeRow
	for rows.Next() {
		var e EdgeRow
		var kind string
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.TargetName, &kind,
			&e.Repo, &e.BranchName, &e.FilePath); err != nil {
			return nil, err
		}
		e.Kind = parse.EdgeKind(kind)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// DeleteFile removes all edge rows of a file.
func (r *EdgeRepo) DeleteFile(ctx context.Context, repo, branch, path string) error {
	_, err := r.db.pool.Exec(ctx,
		`DELETE FROM symbol_edges WHERE repo_id = $1 AND branch_name = $2 AND file_path = $3`,
		repo, branch, path)
	return err
}
