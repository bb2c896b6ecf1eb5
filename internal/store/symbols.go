package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/codelens-dev/codelens/internal/parse"
)

// SymbolRepo is the Postgres symbols repository.
type SymbolRepo struct {
	db *DB
}

// NewSymbolRepo returns a symbols repository over the shared pool.
func NewSymbolRepo(db *DB) *SymbolRepo { return &SymbolRepo{db: db} }

var _ Symbols = (*SymbolRepo)(nil)

const symbolColumns = `id, repo_id, branch_name, commit_sha, file_path, name, qualified_name,
	kind, language, start_line, start_col, end_line, end_col, signature,
	documentation, modifiers, parent_id`

// ReplaceFile deletes the file's prior rows and inserts the new batch in
// one transaction. Idempotent under retry.
func (r *SymbolRepo) ReplaceFile(ctx context.Context, repo, branch, path string, rows []*SymbolRow) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace symbols: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM symbols WHERE repo_id = $1 AND branch_name = $2 AND file_path = $3`,
		repo, branch, path); err != nil {
		return fmt.Errorf("delete prior symbols: %w", err)
	}

	batch := &pgx.Batch{}
	for _, s := range rows {
		batch.Queue(`INSERT INTO symbols (`+symbolColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,NULLIF($17,''))`,
			s.ID, s.Repo, s.BranchName, s.CommitSHA, s.FilePath, s.Name, s.QualifiedName,
			string(s.Kind), s.Language, s.StartLine, s.StartCol, s.EndLine, s.EndCol,
			s.Signature, s.Documentation, s.Modifiers, s.ParentID)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert symbols: %w", err)
	}

	return tx.Commit(ctx)
}

// GetByID returns one symbol or nil when absent.
func (r *SymbolRepo) GetByID(ctx context.Context, id string) (*SymbolRow, error) {
	row := r.db.pool.QueryRow(ctx,
		`SELECT `+symbolColumns+` FROM symbols WHERE id = $1`, id)
	s, err := scanSymbol(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// GetByIDs resolves a batch of symbols in one round-trip. Missing ids are
// silently absent from the result.
func (r *SymbolRepo) GetByIDs(ctx context.Context, ids []string) ([]*SymbolRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.pool.Query(ctx,
		`SELECT `+symbolColumns+` FROM symbols WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("select symbols by ids: %w", err)
	}
	defer rows.Close()

	var out []*SymbolRow
	for rows.Next() {
		s, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteFile removes all symbol rows of a file.
func (r *SymbolRepo) DeleteFile(ctx context.Context, repo, branch, path string) error {
	_, err := r.db.pool.Exec(ctx,
		`DELETE FROM symbols WHERE repo_id = $1 AND branch_name = $2 AND file_path = $3`,
		repo, branch, path)
	return err
}

func scanSymbol(row pgx.Row) (*SymbolRow, error) {
	var s SymbolRow
	var kind string
	var parent *string
	if err := row.Scan(
		&s.ID, &s.Repo, &s.BranchName, &s.CommitSHA, &s.FilePath, &s.Name, &s.QualifiedName,
		&kind, &s.Language, &s.StartLine, &s.StartCol, &s.EndLine, &s.EndCol,
		&s.Signature, &s.Documentation, &s.Modifiers, &parent,
	); err != nil {
		return nil, err
	}
	s.Kind = parse.SymbolKind(kind)
	if parent != nil {
		s.ParentID = *parent
	}
	return &s, nil
}
