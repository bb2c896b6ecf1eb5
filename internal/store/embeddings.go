package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingRepo is the Postgres embeddings repository backed by pgvector.
type EmbeddingRepo struct {
	db *DB
}

func NewEmbeddingRepo(db *DB) *EmbeddingRepo { return &EmbeddingRepo{db: db} }

var _ Embeddings = (*EmbeddingRepo)(nil)

// UpsertBatch writes embeddings keyed by chunk id, replacing any prior
// vector for the chunk.
func (r *EmbeddingRepo) UpsertBatch(ctx context.Context, rows []*EmbeddingRow) error {
	batch := &pgx.Batch{}
	for _, e := range rows {
		batch.Queue(`INSERT INTO embeddings
			(id, chunk_id, repo_id, branch_name, commit_sha, vector, model, dims)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (chunk_id) DO UPDATE SET
			  repo_id = EXCLUDED.repo_id,
			  branch_name = EXCLUDED.branch_name,
			  commit_sha = EXCLUDED.commit_sha,
			  vector = EXCLUDED.vector,
			  model = EXCLUDED.model,
			  dims = EXCLUDED.dims,
			  generated_at = now()`,
			e.ID, e.ChunkID, e.Repo, e.BranchName, e.CommitSHA,
			pgvector.NewVector(e.Vector), e.Model, e.Dims)
	}
	if err := r.db.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert embeddings: %w", err)
	}
	return nil
}

// GetByChunkIDs returns embeddings for the given chunk ids.
func (r *EmbeddingRepo) GetByChunkIDs(ctx context.Context, chunkIDs []string) ([]*EmbeddingRow, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.pool.Query(ctx,
		`SELECT id, chunk_id, repo_id, branch_name, commit_sha, vector, model, dims, generated_at
		 FROM embeddings WHERE chunk_id = ANY($1)`, chunkIDs)
	if err != nil {
		return nil, fmt.Errorf("select embeddings: %w", err)
	}
	defer rows.Close()

	var out []*EmbeddingRow
	for rows.Next() {
		var e EmbeddingRow
		var vec pgvector.Vector
		if err := rows.Scan(&e.ID, &e.ChunkID, &e.Repo, &e.BranchName, &e.CommitSHA,
			&vec, &e.Model, &e.Dims, &e.GeneratedAt); err != nil {
			return nil, err
		}
		e.Vector = vec.Slice()
		out = append(out, &e)
	}
	return out, rows.Err()
}

// HasAny reports whether the repo+branch has at least one embedding for
// the model.
func (r *EmbeddingRepo) HasAny(ctx context.Context, repo, branch, model string) (bool, error) {
	var exists bool
	err := r.db.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM embeddings
		   WHERE repo_id = $1 AND branch_name = $2 AND model = $3)`,
		repo, branch, model).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check embeddings: %w", err)
	}
	return exists, nil
}

// DistinctModels returns the models stored for the repo+branch with their
// dims.
func (r *EmbeddingRepo) DistinctModels(ctx context.Context, repo, branch string) (map[string]int, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT DISTINCT model, dims FROM embeddings
		 WHERE repo_id = $1 AND branch_name = $2`, repo, branch)
	if err != nil {
		return nil, fmt.Errorf("select embedding models: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var model string
		var dims int
		if err := rows.Scan(&model, &dims); err != nil {
			return nil, err
		}
		out[model] = dims
	}
	return out, rows.Err()
}

// Nearest scans by cosine distance within the repo+branch+model scope and
// returns chunk ids ordered by descending similarity.
func (r *EmbeddingRepo) Nearest(ctx context.Context, repo, branch, model string, vector []float32, limit int) ([]*ChunkDistance, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT chunk_id, (1 - (vector <=> $4))::float8 AS similarity
		 FROM embeddings
		 WHERE repo_id = $1 AND branch_name = $2 AND model = $3
		 ORDER BY vector <=> $4
		 LIMIT $5`,
		repo, branch, model, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("nearest embeddings: %w", err)
	}
	defer rows.Close()

	var out []*ChunkDistance
	for rows.Next() {
		var d ChunkDistance
		if err := rows.Scan(&d.ChunkID, &d.Similarity); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}
