package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/codelens-dev/codelens/internal/parse"
)

// FingerprintRepo is the Postgres symbol_fingerprints repository. The
// unsigned 64-bit fingerprint round-trips through int8 with a
// bit-preserving cast.
type FingerprintRepo struct {
	db *DB
}

func NewFingerprintRepo(db *DB) *FingerprintRepo { return &FingerprintRepo{db: db} }

var _ Fingerprints = (*FingerprintRepo)(nil)

const fingerprintColumns = `symbol_id, repo_id, branch_name, commit_sha, file_path,
	language, kind, fingerprint_kind, fingerprint, band0, band1, band2, band3`

// Upsert writes fingerprint rows keyed by symbol id.
func (r *FingerprintRepo) Upsert(ctx context.Context, rows []*FingerprintRow) error {
	batch := &pgx.Batch{}
	for _, f := range rows {
		batch.Queue(`INSERT INTO symbol_fingerprints (`+fingerprintColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			ON CONFLICT (symbol_id) DO UPDATE SET
			  repo_id = EXCLUDED.repo_id,
			  branch_name = EXCLUDED.branch_name,
			  commit_sha = EXCLUDED.commit_sha,
			  file_path = EXCLUDED.file_path,
			  language = EXCLUDED.language,
			  kind = EXCLUDED.kind,
			  fingerprint_kind = EXCLUDED.fingerprint_kind,
			  fingerprint = EXCLUDED.fingerprint,
			  band0 = EXCLUDED.band0,
			  band1 = EXCLUDED.band1,
			  band2 = EXCLUDED.band2,
			  band3 = EXCLUDED.band3`,
			f.SymbolID, f.Repo, f.BranchName, f.CommitSHA, f.FilePath,
			f.Language, string(f.Kind), f.FingerprintKind, int64(f.Fingerprint),
			int32(f.Bands[0]), int32(f.Bands[1]), int32(f.Bands[2]), int32(f.Bands[3]))
	}
	if err := r.db.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert fingerprints: %w", err)
	}
	return nil
}

// GetBySymbol returns the symbol's fingerprint or nil when absent.
func (r *FingerprintRepo) GetBySymbol(ctx context.Context, symbolID string) (*FingerprintRow, error) {
	row := r.db.pool.QueryRow(ctx,
		`SELECT `+fingerprintColumns+` FROM symbol_fingerprints WHERE symbol_id = $1`, symbolID)
	f, err := scanFingerprint(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return f, err
}

// FindCandidates returns rows sharing at least one band with the probe,
// scoped to the same repo, branch, language, kind and fingerprint kind.
// The seed itself is excluded. Exact ranking happens in the caller.
func (r *FingerprintRepo) FindCandidates(ctx context.Context, q CandidateQuery) ([]*FingerprintRow, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT `+fingerprintColumns+`
		 FROM symbol_fingerprints
		 WHERE repo_id = $1 AND branch_name = $2 AND language = $3
		   AND kind = $4 AND fingerprint_kind = $5
		   AND symbol_id <> $6
		   AND (band0 = $7 OR band1 = $8 OR band2 = $9 OR band3 = $10)
		 LIMIT $11`,
		q.Repo, q.BranchName, q.Language, string(q.Kind), q.FingerprintKind,
		q.ExcludeSymbolID,
		int32(q.Bands[0]), int32(q.Bands[1]), int32(q.Bands[2]), int32(q.Bands[3]),
		q.Limit)
	if err != nil {
		return nil, fmt.Errorf("find fingerprint candidates: %w", err)
	}
	defer rows.Close()

	var out []*FingerprintRow
	for rows.Next() {
		f, err := scanFingerprint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteFile removes all fingerprint rows of a file.
func (r *FingerprintRepo) DeleteFile(ctx context.Context, repo, branch, path string) error {
	_, err := r.db.pool.Exec(ctx,
		`DELETE FROM symbol_fingerprints WHERE repo_id = $1 AND branch_name = $2 AND file_path = $3`,
		repo, branch, path)
	return err
}

func scanFingerprint(row pgx.Row) (*FingerprintRow, error) {
	var f FingerprintRow
	var kind string
	var fp int64
	var b0, b1, b2, b3 int32
	if err := row.Scan(
		&f.SymbolID, &f.Repo, &f.BranchName, &f.CommitSHA, &f.FilePath,
		&f.Language, &kind, &f.FingerprintKind, &fp, &b0, &b1, &b2, &b3,
	); err != nil {
		return nil, err
	}
	f.Kind = parse.SymbolKind(kind)
	f.Fingerprint = uint64(fp)
	f.Bands = [4]uint16{uint16(b0), uint16(b1), uint16(b2), uint16(b3)}
	return &f, nil
}
