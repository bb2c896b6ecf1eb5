package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the shared connection pool behind the per-entity repositories.
type DB struct {
	pool *pgxpool.Pool
}

// Open connects to the database and verifies connectivity.
func Open(ctx context.Context, url string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Pool exposes the underlying pool for repositories in this package.
func (db *DB) Pool() *pgxpool.Pool { return db.pool }

// Close releases the pool.
func (db *DB) Close() { db.pool.Close() }

// Stores bundles one repository per table over a shared pool.
type Stores struct {
	Branches     Branches
	Symbols      Symbols
	Edges        Edges
	Chunks       Chunks
	Search       SearchEntries
	Fingerprints Fingerprints
	Embeddings   Embeddings
	Jobs         Jobs
}

// NewStores builds the Postgres-backed repository set.
func NewStores(db *DB) *Stores {
	return &Stores{
		Branches:     NewBranchRepo(db),
		Symbols:      NewSymbolRepo(db),
		Edges:        NewEdgeRepo(db),
		Chunks:       NewChunkRepo(db),
		Search:       NewSearchRepo(db),
		Fingerprints: NewFingerprintRepo(db),
		Embeddings:   NewEmbeddingRepo(db),
		Jobs:         NewJobRepo(db),
	}
}
