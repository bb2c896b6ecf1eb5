package store

import (
	"context"
	"fmt"
)

// schemaDDL creates the index tables. Vector dims are bound at bootstrap
// because pgvector columns carry a fixed dimension.
const schemaDDL = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS repositories (
  name           TEXT PRIMARY KEY,
  remote_url     TEXT NOT NULL DEFAULT '',
  default_branch TEXT NOT NULL DEFAULT 'main',
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS branches (
  repo_id          TEXT NOT NULL REFERENCES repositories(name),
  name             TEXT NOT NULL,
  head_commit      TEXT NOT NULL DEFAULT '',
  index_state      TEXT NOT NULL DEFAULT 'pending',
  indexed_commit   TEXT NOT NULL DEFAULT '',
  updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (repo_id, name)
);

CREATE TABLE IF NOT EXISTS symbols (
  id             TEXT PRIMARY KEY,
  repo_id        TEXT NOT NULL,
  branch_name    TEXT NOT NULL,
  commit_sha     TEXT NOT NULL,
  file_path      TEXT NOT NULL,
  name           TEXT NOT NULL,
  qualified_name TEXT NOT NULL DEFAULT '',
  kind           TEXT NOT NULL,
  language       TEXT NOT NULL DEFAULT '',
  start_line     INT NOT NULL,
  start_col      INT NOT NULL DEFAULT 0,
  end_line       INT NOT NULL,
  end_col        INT NOT NULL DEFAULT 0,
  signature      TEXT NOT NULL DEFAULT '',
  documentation  TEXT NOT NULL DEFAULT '',
  modifiers      TEXT[] NOT NULL DEFAULT '{}',
  parent_id      TEXT
);

CREATE INDEX IF NOT EXISTS symbols_file_idx
  ON symbols (repo_id, branch_name, file_path);

CREATE TABLE IF NOT EXISTS symbol_edges (
  source_symbol_id TEXT NOT NULL,
  target_symbol_id TEXT,
  target_name      TEXT NOT NULL DEFAULT '',
  kind             TEXT NOT NULL,
  repo_id          TEXT NOT NULL,
  branch_name      TEXT NOT NULL,
  file_path        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS symbol_edges_source_idx
  ON symbol_edges (source_symbol_id);
CREATE INDEX IF NOT EXISTS symbol_edges_file_idx
  ON symbol_edges (repo_id, branch_name, file_path);

CREATE TABLE IF NOT EXISTS code_chunks (
  id                 TEXT PRIMARY KEY,
  repo_id            TEXT NOT NULL,
  branch_name        TEXT NOT NULL,
  commit_sha         TEXT NOT NULL,
  file_path          TEXT NOT NULL,
  symbol_id          TEXT NOT NULL,
  symbol_name        TEXT NOT NULL DEFAULT '',
  symbol_kind        TEXT NOT NULL DEFAULT '',
  parent_symbol_name TEXT NOT NULL DEFAULT '',
  signature          TEXT NOT NULL DEFAULT '',
  documentation      TEXT NOT NULL DEFAULT '',
  language           TEXT NOT NULL DEFAULT '',
  content            TEXT NOT NULL,
  content_hash       TEXT NOT NULL,
  start_line         INT NOT NULL,
  end_line           INT NOT NULL,
  chunk_start_line   INT NOT NULL,
  chunk_end_line     INT NOT NULL,
  token_count        INT NOT NULL DEFAULT 0,
  UNIQUE (repo_id, branch_name, file_path, chunk_start_line, chunk_end_line, content_hash)
);

CREATE INDEX IF NOT EXISTS code_chunks_file_idx
  ON code_chunks (repo_id, branch_name, file_path);
CREATE INDEX IF NOT EXISTS code_chunks_symbol_idx
  ON code_chunks (symbol_id);

CREATE TABLE IF NOT EXISTS symbol_search (
  symbol_id     TEXT PRIMARY KEY,
  repo_id       TEXT NOT NULL,
  branch_name   TEXT NOT NULL,
  commit_sha    TEXT NOT NULL,
  file_path     TEXT NOT NULL,
  name_text     TEXT NOT NULL DEFAULT '',
  signature_text TEXT NOT NULL DEFAULT '',
  doc_text      TEXT NOT NULL DEFAULT '',
  literal_text  TEXT NOT NULL DEFAULT '',
  snippet       TEXT NOT NULL DEFAULT '',
  search_vector tsvector GENERATED ALWAYS AS (
    setweight(to_tsvector('simple', name_text), 'A') ||
    setweight(to_tsvector('simple', signature_text), 'B') ||
    setweight(to_tsvector('simple', doc_text), 'C') ||
    setweight(to_tsvector('simple', literal_text), 'D')
  ) STORED
);

CREATE INDEX IF NOT EXISTS symbol_search_vector_gin
  ON symbol_search USING GIN (search_vector);
CREATE INDEX IF NOT EXISTS symbol_search_file_idx
  ON symbol_search (repo_id, branch_name, file_path);

CREATE TABLE IF NOT EXISTS symbol_fingerprints (
  symbol_id        TEXT PRIMARY KEY,
  repo_id          TEXT NOT NULL,
  branch_name      TEXT NOT NULL,
  commit_sha       TEXT NOT NULL,
  file_path        TEXT NOT NULL,
  language         TEXT NOT NULL DEFAULT '',
  kind             TEXT NOT NULL DEFAULT '',
  fingerprint_kind TEXT NOT NULL,
  fingerprint      INT8 NOT NULL,
  band0            INT NOT NULL,
  band1            INT NOT NULL,
  band2            INT NOT NULL,
  band3            INT NOT NULL
);

CREATE INDEX IF NOT EXISTS symbol_fingerprints_band0_idx
  ON symbol_fingerprints (repo_id, branch_name, language, kind, fingerprint_kind, band0);
CREATE INDEX IF NOT EXISTS symbol_fingerprints_band1_idx
  ON symbol_fingerprints (repo_id, branch_name, language, kind, fingerprint_kind, band1);
CREATE INDEX IF NOT EXISTS symbol_fingerprints_band2_idx
  ON symbol_fingerprints (repo_id, branch_name, language, kind, fingerprint_kind, band2);
CREATE INDEX IF NOT EXISTS symbol_fingerprints_band3_idx
  ON symbol_fingerprints (repo_id, branch_name, language, kind, fingerprint_kind, band3);
CREATE INDEX IF NOT EXISTS symbol_fingerprints_file_idx
  ON symbol_fingerprints (repo_id, branch_name, file_path);

CREATE TABLE IF NOT EXISTS embeddings (
  id           TEXT PRIMARY KEY,
  chunk_id     TEXT NOT NULL UNIQUE,
  repo_id      TEXT NOT NULL,
  branch_name  TEXT NOT NULL,
  commit_sha   TEXT NOT NULL,
  vector       vector(%d) NOT NULL,
  model        TEXT NOT NULL,
  dims         INT NOT NULL,
  generated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS embeddings_scope_idx
  ON embeddings (repo_id, branch_name, model);

CREATE TABLE IF NOT EXISTS embedding_jobs (
  id              TEXT PRIMARY KEY,
  repo_id         TEXT NOT NULL,
  branch_name     TEXT NOT NULL,
  commit_sha      TEXT NOT NULL,
  target_kind     TEXT NOT NULL,
  target_id       TEXT NOT NULL,
  model           TEXT NOT NULL,
  dims            INT NOT NULL DEFAULT 0,
  status          TEXT NOT NULL,
  attempts        INT NOT NULL DEFAULT 0,
  next_attempt_at TIMESTAMPTZ,
  last_error      TEXT,
  locked_at       TIMESTAMPTZ,
  locked_by       TEXT,
  created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (repo_id, branch_name, target_kind, target_id, model)
);

CREATE INDEX IF NOT EXISTS embedding_jobs_pending_idx
  ON embedding_jobs (status, next_attempt_at);
CREATE INDEX IF NOT EXISTS embedding_jobs_locked_idx
  ON embedding_jobs (status, locked_at);
`

// EnsureSchema creates extensions, tables and indexes. Safe to run on
// every start.
func EnsureSchema(ctx context.Context, db *DB, vectorDims int) error {
	if vectorDims <= 0 {
		vectorDims = 768
	}
	if _, err := db.pool.Exec(ctx, fmt.Sprintf(schemaDDL, vectorDims)); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
