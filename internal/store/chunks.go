package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/codelens-dev/codelens/internal/parse"
)

// ChunkRepo is the Postgres code_chunks repository.
type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo { return &ChunkRepo{db: db} }

var _ Chunks = (*ChunkRepo)(nil)

const chunkColumns = `id, repo_id, branch_name, commit_sha, file_path, symbol_id, symbol_name,
	symbol_kind, parent_symbol_name, signature, documentation, language, content,
	content_hash, start_line, end_line, chunk_start_line, chunk_end_line, token_count`

// ReplaceFile swaps the file's chunks in one transaction. The dedup key
// (repo, branch, file_path, chunk span, content_hash) drops identical
// re-inserts within the branch only; other branches keep their own rows
// even when the content matches.
func (r *ChunkRepo) ReplaceFile(ctx context.Context, repo, branch, path string, rows []*ChunkRow) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace chunks: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM code_chunks WHERE repo_id = $1 AND branch_name = $2 AND file_path = $3`,
		repo, branch, path); err != nil {
		return fmt.Errorf("delete prior chunks: %w", err)
	}

	batch := &pgx.Batch{}
	for _, c := range rows {
		batch.Queue(`INSERT INTO code_chunks (`+chunkColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
			ON CONFLICT (repo_id, branch_name, file_path, chunk_start_line, chunk_end_line, content_hash) DO NOTHING`,
			c.ID, c.Repo, c.BranchName, c.CommitSHA, c.FilePath, c.SymbolID, c.SymbolName,
			string(c.SymbolKind), c.ParentSymbolName, c.Signature, c.Documentation,
			c.Language, c.Content, c.ContentHash, c.StartLine, c.EndLine,
			c.ChunkStartLine, c.ChunkEndLine, c.TokenCount)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}

	return tx.Commit(ctx)
}

// GetByID returns one chunk or nil when absent.
func (r *ChunkRepo) GetByID(ctx context.Context, id string) (*ChunkRow, error) {
	row := r.db.pool.QueryRow(ctx,
		`SELECT `+chunkColumns+` FROM code_chunks WHERE id = $1`, id)
	c, err := scanChunk(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// GetByIDs resolves a batch of chunks in one round-trip.
func (r *ChunkRepo) GetByIDs(ctx context.Context, ids []string) ([]*ChunkRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.query(ctx, `SELECT `+chunkColumns+` FROM code_chunks WHERE id = ANY($1)`, ids)
}

// GetBySymbolIDs returns all chunks belonging to the given symbols.
func (r *ChunkRepo) GetBySymbolIDs(ctx context.Context, symbolIDs []string) ([]*ChunkRow, error) {
	if len(symbolIDs) == 0 {
		return nil, nil
	}
	return r.query(ctx, `SELECT `+chunkColumns+` FROM code_chunks WHERE symbol_id = ANY($1)`, symbolIDs)
}

// DeleteFile removes all chunk rows of a file.
func (r *ChunkRepo) DeleteFile(ctx context.Context, repo, branch, path string) error {
	_, err := r.db.pool.Exec(ctx,
		`DELETE FROM code_chunks WHERE repo_id = $1 AND branch_name = $2 AND file_path = $3`,
		repo, branch, path)
	return err
}

func (r *ChunkRepo) query(ctx context.Context, sql string, arg any) ([]*ChunkRow, error) {
	rows, err := r.db.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("select chunks: %w", err)
	}
	defer rows.Close()

	var out []*ChunkRow
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanChunk(row pgx.Row) (*ChunkRow, error) {
	var c ChunkRow
	var kind string
	if err := row.Scan(
		&c.ID, &c.Repo, &c.BranchName, &c.CommitSHA, &c.FilePath, &c.SymbolID, &c.SymbolName,
		&kind, &c.ParentSymbolName, &c.Signature, &c.Documentation, &c.Language, &c.Content,
		&c.ContentHash, &c.StartLine, &c.EndLine, &c.ChunkStartLine, &c.ChunkEndLine, &c.TokenCount,
	); err != nil {
		return nil, err
	}
	c.SymbolKind = parse.SymbolKind(kind)
	return &c, nil
}
