// Package store provides typed access to the index tables in Postgres
// (pgvector for embeddings, weighted tsvector for sparse search) plus an
// in-memory implementation of the query-path and job-queue seams for tests.
package store

import (
	"context"
	"time"

	"github.com/codelens-dev/codelens/internal/parse"
)

// IndexState tracks branch indexing progress. It doubles as the
// coordination latch: InProgress rejects a concurrent reindex.
type IndexState string

const (
	IndexStatePending    IndexState = "pending"
	IndexStateInProgress IndexState = "in_progress"
	IndexStateCompleted  IndexState = "completed"
	IndexStateFailed     IndexState = "failed"
	IndexStateStale      IndexState = "stale"
)

// JobStatus is the embedding job lifecycle state.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobBlocked    JobStatus = "blocked"
)

// MissingModelSentinel marks jobs enqueued while no embedding model was
// configured. Such jobs are created Blocked.
const MissingModelSentinel = "__missing__"

// TargetKindCodeChunk is the only embedding job target kind the core emits.
const TargetKindCodeChunk = "code_chunk"

// Branch is one tracked branch of a repository.
type Branch struct {
	Repo          string
	Name          string
	HeadCommit    string
	IndexState    IndexState
	IndexedCommit string
	UpdatedAt     time.Time
}

// SymbolRow is one persisted symbol.
type SymbolRow struct {
	ID            string
	Repo          string
	BranchName    string
	CommitSHA     string
	FilePath      string
	Name          string
	QualifiedName string
	Kind          parse.SymbolKind
	Language      string
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
	Signature     string
	Documentation string
	Modifiers     []string
	ParentID      string // empty when root
}

// EdgeRow is one persisted symbol relationship. TargetName carries the
// unresolved qualified name when TargetID is empty.
type EdgeRow struct {
	SourceID   string
	TargetID   string
	TargetName string
	Kind       parse.EdgeKind
	Repo       string
	BranchName string
	FilePath   string
}

// ChunkRow is one persisted code chunk.
type ChunkRow struct {
	ID               string
	Repo             string
	BranchName       string
	CommitSHA        string
	FilePath         string
	SymbolID         string
	SymbolName       string
	SymbolKind       parse.SymbolKind
	ParentSymbolName string
	Signature        string
	Documentation    string
	Language         string
	Content          string
	ContentHash      string
	StartLine        int
	EndLine          int
	ChunkStartLine   int
	ChunkEndLine     int
	TokenCount       int
}

// SearchEntryRow is one symbol_search row. The storage layer materialises
// the weighted tsvector: A = name∪qualified, B = signature, C =
// documentation, D = literal.
type SearchEntryRow struct {
	SymbolID        string
	Repo            string
	BranchName      string
	CommitSHA       string
	FilePath        string
	NameTokens      []string
	QualifiedTokens []string
	SignatureTokens []string
	DocTokens       []string
	LiteralTokens   []string
	Snippet         string
}

// SearchHit is one sparse search result.
type SearchHit struct {
	SymbolID string
	Score    float64
	Snippet  string
}

// FingerprintRow is one symbol_fingerprints row. The unsigned 64-bit
// fingerprint is stored bit-preserved as int8 in SQL.
type FingerprintRow struct {
	SymbolID        string
	Repo            string
	BranchName      string
	CommitSHA       string
	FilePath        string
	Language        string
	Kind            parse.SymbolKind
	FingerprintKind string
	Fingerprint     uint64
	Bands           [4]uint16
}

// CandidateQuery scopes LSH candidate generation. Candidates share at
// least one of the four bands (disjunctive OR).
type CandidateQuery struct {
	Repo            string
	BranchName      string
	Language        string
	Kind            parse.SymbolKind
	FingerprintKind string
	Bands           [4]uint16
	ExcludeSymbolID string
	Limit           int
}

// EmbeddingRow is one embeddings row; unique per chunk id.
type EmbeddingRow struct {
	ID          string
	ChunkID     string
	Repo        string
	BranchName  string
	CommitSHA   string
	Vector      []float32
	Model       string // stored lowercase
	Dims        int
	GeneratedAt time.Time
}

// ChunkDistance is one nearest-neighbour hit.
type ChunkDistance struct {
	ChunkID    string
	Similarity float64 // cosine similarity, higher is closer
}

// JobRow is one embedding_jobs row.
type JobRow struct {
	ID            string
	Repo          string
	BranchName    string
	CommitSHA     string
	TargetKind    string
	TargetID      string
	Model         string
	Dims          int
	Status        JobStatus
	Attempts      int
	NextAttemptAt *time.Time
	LastError     *string
	LockedAt      *time.Time
	LockedBy      *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Branches coordinates branch index state. The version-control
// collaborator owns the rows; the pipeline only flips the latch.
type Branches interface {
	Get(ctx context.Context, repo, name string) (*Branch, error)
	// BeginIndexing flips the branch into InProgress and returns false when
	// another run already holds the latch.
	BeginIndexing(ctx context.Context, repo, name, commit string) (bool, error)
	FinishIndexing(ctx context.Context, repo, name, commit string, state IndexState) error
}

// Symbols is the symbol table seam used by the core.
type Symbols interface {
	ReplaceFile(ctx context.Context, repo, branch, path string, rows []*SymbolRow) error
	GetByID(ctx context.Context, id string) (*SymbolRow, error)
	GetByIDs(ctx context.Context, ids []string) ([]*SymbolRow, error)
	DeleteFile(ctx context.Context, repo, branch, path string) error
}

// Edges is the symbol_edges seam used by the core.
type Edges interface {
	ReplaceFile(ctx context.Context, repo, branch, path string, rows []*EdgeRow) error
	GetBySources(ctx context.Context, sourceIDs []string) ([]*EdgeRow, error)
	DeleteFile(ctx context.Context, repo, branch, path string) error
}

// Chunks is the code_chunks seam used by the core.
type Chunks interface {
	ReplaceFile(ctx context.Context, repo, branch, path string, rows []*ChunkRow) error
	GetByID(ctx context.Context, id string) (*ChunkRow, error)
	GetByIDs(ctx context.Context, ids []string) ([]*ChunkRow, error)
	GetBySymbolIDs(ctx context.Context, symbolIDs []string) ([]*ChunkRow, error)
	DeleteFile(ctx context.Context, repo, branch, path string) error
}

// SearchEntries is the symbol_search seam used by the core.
type SearchEntries interface {
	Upsert(ctx context.Context, rows []*SearchEntryRow) error
	// Search ranks entries by weighted tsvector rank over the query parsed
	// as an OR-of-tokens with phrase support.
	Search(ctx context.Context, repo, branch, query string, limit int) ([]*SearchHit, error)
	// GetBySymbolIDs returns the stored entries with their token buckets;
	// the engine uses them to attribute match reasons.
	GetBySymbolIDs(ctx context.Context, symbolIDs []string) ([]*SearchEntryRow, error)
	DeleteFile(ctx context.Context, repo, branch, path string) error
}

// Fingerprints is the symbol_fingerprints seam used by the core.
type Fingerprints interface {
	Upsert(ctx context.Context, rows []*FingerprintRow) error
	GetBySymbol(ctx context.Context, symbolID string) (*FingerprintRow, error)
	FindCandidates(ctx context.Context, q CandidateQuery) ([]*FingerprintRow, error)
	DeleteFile(ctx context.Context, repo, branch, path string) error
}

// Embeddings is the embeddings seam used by the core.
type Embeddings interface {
	UpsertBatch(ctx context.Context, rows []*EmbeddingRow) error
	GetByChunkIDs(ctx context.Context, chunkIDs []string) ([]*EmbeddingRow, error)
	HasAny(ctx context.Context, repo, branch, model string) (bool, error)
	// DistinctModels returns models present for the repo+branch with their
	// stored dims.
	DistinctModels(ctx context.Context, repo, branch string) (map[string]int, error)
	// Nearest runs a cosine nearest-neighbour scan scoped to
	// repo+branch+model, returning chunk ids by descending similarity.
	Nearest(ctx context.Context, repo, branch, model string, vector []float32, limit int) ([]*ChunkDistance, error)
}

// Jobs is the embedding_jobs queue seam.
type Jobs interface {
	// UpsertBatch inserts jobs or overwrites status/attempts/schedule on
	// the unique (repo, branch, target_kind, target_id, model) key.
	UpsertBatch(ctx context.Context, rows []*JobRow) error
	// Claim atomically promotes up to batchSize eligible Pending jobs to
	// Processing for the given worker, skipping rows locked by others.
	Claim(ctx context.Context, workerID string, batchSize int, now time.Time) ([]*JobRow, error)
	MarkCompleted(ctx context.Context, id string, lastError *string, dims int, now time.Time) error
	Requeue(ctx context.Context, id string, nextAttemptAt time.Time, errCode string, now time.Time) error
	MarkBlocked(ctx context.Context, id string, lastError string, now time.Time) error
	// RequeueStale returns Processing rows locked before the cutoff to
	// Pending, clearing the lock. Reports how many rows moved.
	RequeueStale(ctx context.Context, cutoff, now time.Time) (int, error)
	// PurgeCompleted deletes Completed rows updated before the cutoff.
	PurgeCompleted(ctx context.Context, cutoff time.Time) (int, error)
	GetByKey(ctx context.Context, repo, branch, targetKind, targetID, model string) (*JobRow, error)
}
