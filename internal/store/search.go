package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/codelens-dev/codelens/internal/token"
)

// SearchRepo is the Postgres symbol_search repository. Ranking runs over
// the generated weighted tsvector: name and qualified-name tokens carry
// weight A, signatures B, documentation C, literals D.
type SearchRepo struct {
	db *DB
}

func NewSearchRepo(db *DB) *SearchRepo { return &SearchRepo{db: db} }

var _ SearchEntries = (*SearchRepo)(nil)

// Upsert writes search entries keyed by symbol id. The token buckets are
// flattened into the text columns the generated tsvector weights.
func (r *SearchRepo) Upsert(ctx context.Context, rows []*SearchEntryRow) error {
	batch := &pgx.Batch{}
	for _, e := range rows {
		nameText := strings.Join(append(append([]string{}, e.NameTokens...), e.QualifiedTokens...), " ")
		batch.Queue(`INSERT INTO symbol_search
			(symbol_id, repo_id, branch_name, commit_sha, file_path,
			 name_text, signature_text, doc_text, literal_text, snippet)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (symbol_id) DO UPDATE SET
			  repo_id = EXCLUDED.repo_id,
			  branch_name = EXCLUDED.branch_name,
			  commit_sha = EXCLUDED.commit_sha,
			  file_path = EXCLUDED.file_path,
			  name_text = EXCLUDED.name_text,
			  signature_text = EXCLUDED.signature_text,
			  doc_text = EXCLUDED.doc_text,
			  literal_text = EXCLUDED.literal_text,
			  snippet = EXCLUDED.snippet`,
			e.SymbolID, e.Repo, e.BranchName, e.CommitSHA, e.FilePath,
			nameText, strings.Join(e.SignatureTokens, " "), strings.Join(e.DocTokens, " "),
			strings.Join(e.LiteralTokens, " "), e.Snippet)
	}
	if err := r.db.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert search entries: %w", err)
	}
	return nil
}

// Search ranks entries against the query tokens. Queries that tokenize to
// nothing return no hits.
func (r *SearchRepo) Search(ctx context.Context, repo, branch, query string, limit int) ([]*SearchHit, error) {
	tsq := buildTSQuery(query)
	if tsq == "" {
		return nil, nil
	}
	rows, err := r.db.pool.Query(ctx,
		`SELECT symbol_id, ts_rank(search_vector, to_tsquery('simple', $3))::float8, snippet
		 FROM symbol_search
		 WHERE repo_id = $1 AND branch_name = $2
		   AND search_vector @@ to_tsquery('simple', $3)
		 ORDER BY 2 DESC, symbol_id
		 LIMIT $4`,
		repo, branch, tsq, limit)
	if err != nil {
		return nil, fmt.Errorf("sparse search: %w", err)
	}
	defer rows.Close()

	var out []*SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.SymbolID, &h.Score, &h.Snippet); err != nil {
			return nil, err
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

// GetBySymbolIDs loads stored entries with their token buckets. The
// name column merges name and qualified tokens on write, so they come
// back combined in NameTokens.
func (r *SearchRepo) GetBySymbolIDs(ctx context.Context, symbolIDs []string) ([]*SearchEntryRow, error) {
	if len(symbolIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.pool.Query(ctx,
		`SELECT symbol_id, repo_id, branch_name, commit_sha, file_path,
		        name_text, signature_text, doc_text, literal_text, snippet
		 FROM symbol_search WHERE symbol_id = ANY($1)`, symbolIDs)
	if err != nil {
		return nil, fmt.Errorf("select search entries: %w", err)
	}
	defer rows.Close()

	var out []*SearchEntryRow
	for rows.Next() {
		var e SearchEntryRow
		var nameText, sigText, docText, litText string
		if err := rows.Scan(&e.SymbolID, &e.Repo, &e.BranchName, &e.CommitSHA, &e.FilePath,
			&nameText, &sigText, &docText, &litText, &e.Snippet); err != nil {
			return nil, err
		}
		e.NameTokens = strings.Fields(nameText)
		e.SignatureTokens = strings.Fields(sigText)
		e.DocTokens = strings.Fields(docText)
		e.LiteralTokens = strings.Fields(litText)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// DeleteFile removes all search rows of a file.
func (r *SearchRepo) DeleteFile(ctx context.Context, repo, branch, path string) error {
	_, err := r.db.pool.Exec(ctx,
		`DELETE FROM symbol_search WHERE repo_id = $1 AND branch_name = $2 AND file_path = $3`,
		repo, branch, path)
	return err
}

// buildTSQuery turns free text into an OR-of-lexemes tsquery so any
// matching token produces a hit and rank orders by weighted overlap.
func buildTSQuery(query string) string {
	toks := token.Tokenize(query)
	if len(toks) == 0 {
		return ""
	}
	escaped := make([]string, 0, len(toks))
	for _, t := range toks {
		escaped = append(escaped, "'"+strings.ReplaceAll(t, "'", "''")+"'")
	}
	return strings.Join(escaped, " | ")
}
