package store

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/codelens-dev/codelens/internal/token"
)

// Memory is an in-memory implementation of every store seam. It backs
// tests and local experiments; semantics mirror the Postgres
// repositories, including claim ordering and the search weighting.
type Memory struct {
	mu sync.Mutex

	branches     map[string]*Branch // key repo/name
	symbols      map[string]*SymbolRow
	edges        []*EdgeRow
	chunks       map[string]*ChunkRow
	search       map[string]*SearchEntryRow
	fingerprints map[string]*FingerprintRow
	embeddings   map[string]*EmbeddingRow // key chunk id
	jobs         map[string]*JobRow       // key job id
	jobSeq       int
	jobOrder     map[string]int // insertion order for FIFO claims
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		branches:     make(map[string]*Branch),
		symbols:      make(map[string]*SymbolRow),
		chunks:       make(map[string]*ChunkRow),
		search:       make(map[string]*SearchEntryRow),
		fingerprints: make(map[string]*FingerprintRow),
		embeddings:   make(map[string]*EmbeddingRow),
		jobs:         make(map[string]*JobRow),
		jobOrder:     make(map[string]int),
	}
}

// MemoryStores bundles a Memory behind the Stores seams. Seams whose
// method names collide on the shared receiver go through thin views.
func MemoryStores(m *Memory) *Stores {
	return &Stores{
		Branches:     m,
		Symbols:      m,
		Edges:        memEdges{m},
		Chunks:       memChunks{m},
		Search:       memSearch{m},
		Fingerprints: memFingerprints{m},
		Embeddings:   m,
		Jobs:         memJobs{m},
	}
}

type memEdges struct{ *Memory }

func (v memEdges) ReplaceFile(ctx context.Context, repo, branch, path string, rows []*EdgeRow) error {
	return v.Memory.ReplaceFileEdges(ctx, repo, branch, path, rows)
}

func (v memEdges) DeleteFile(ctx context.Context, repo, branch, path string) error {
	return v.Memory.DeleteFileEdges(ctx, repo, branch, path)
}

type memChunks struct{ *Memory }

func (v memChunks) ReplaceFile(ctx context.Context, repo, branch, path string, rows []*ChunkRow) error {
	return v.Memory.ReplaceFileChunks(ctx, repo, branch, path, rows)
}

func (v memChunks) GetByID(ctx context.Context, id string) (*ChunkRow, error) {
	return v.Memory.GetChunk(ctx, id)
}

func (v memChunks) GetByIDs(ctx context.Context, ids []string) ([]*ChunkRow, error) {
	return v.Memory.GetChunks(ctx, ids)
}

func (v memChunks) DeleteFile(ctx context.Context, repo, branch, path string) error {
	return v.Memory.DeleteFileChunks(ctx, repo, branch, path)
}

type memSearch struct{ *Memory }

func (v memSearch) GetBySymbolIDs(ctx context.Context, symbolIDs []string) ([]*SearchEntryRow, error) {
	return v.Memory.GetSearchEntries(ctx, symbolIDs)
}

func (v memSearch) DeleteFile(ctx context.Context, repo, branch, path string) error {
	return v.Memory.DeleteFileSearch(ctx, repo, branch, path)
}

type memFingerprints struct{ *Memory }

func (v memFingerprints) Upsert(ctx context.Context, rows []*FingerprintRow) error {
	return v.Memory.UpsertFingerprints(ctx, rows)
}

func (v memFingerprints) DeleteFile(ctx context.Context, repo, branch, path string) error {
	return v.Memory.DeleteFileFingerprints(ctx, repo, branch, path)
}

type memJobs struct{ *Memory }

func (v memJobs) UpsertBatch(ctx context.Context, rows []*JobRow) error {
	return v.Memory.UpsertJobs(ctx, rows)
}

var (
	_ Branches      = (*Memory)(nil)
	_ Symbols       = (*Memory)(nil)
	_ Edges         = memEdges{}
	_ Chunks        = memChunks{}
	_ SearchEntries = memSearch{}
	_ Fingerprints  = memFingerprints{}
	_ Embeddings    = (*Memory)(nil)
	_ Jobs          = memJobs{}
)

func branchKey(repo, name string) string { return repo + "/" + name }

func (m *Memory) Get(_ context.Context, repo, name string) (*Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.branches[branchKey(repo, name)]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *Memory) BeginIndexing(_ context.Context, repo, name, commit string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := branchKey(repo, name)
	b, ok := m.branches[key]
	if !ok {
		b = &Branch{Repo: repo, Name: name, IndexState: IndexStatePending}
		m.branches[key] = b
	}
	if b.IndexState == IndexStateInProgress {
		return false, nil
	}
	b.IndexState = IndexStateInProgress
	b.HeadCommit = commit
	b.UpdatedAt = time.Now()
	return true, nil
}

func (m *Memory) FinishIndexing(_ context.Context, repo, name, commit string, state IndexState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.branches[branchKey(repo, name)]
	if !ok {
		return nil
	}
	b.IndexState = state
	if state == IndexStateCompleted {
		b.IndexedCommit = commit
	}
	b.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) ReplaceFile(_ context.Context, repo, branch, path string, rows []*SymbolRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.symbols {
		if s.Repo == repo && s.BranchName == branch && s.FilePath == path {
			delete(m.symbols, id)
		}
	}
	for _, s := range rows {
		cp := *s
		m.symbols[s.ID] = &cp
	}
	return nil
}

func (m *Memory) GetByID(_ context.Context, id string) (*SymbolRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.symbols[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) GetByIDs(_ context.Context, ids []string) ([]*SymbolRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*SymbolRow
	for _, id := range ids {
		if s, ok := m.symbols[id]; ok {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

// DeleteFile removes the file's symbol rows. Each seam deletes only its
// own table; the adapters route to the named variants below.
func (m *Memory) DeleteFile(_ context.Context, repo, branch, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.symbols {
		if s.Repo == repo && s.BranchName == branch && s.FilePath == path {
			delete(m.symbols, id)
		}
	}
	return nil
}

func (m *Memory) DeleteFileEdges(_ context.Context, repo, branch, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.edges[:0]
	for _, e := range m.edges {
		if !(e.Repo == repo && e.BranchName == branch && e.FilePath == path) {
			kept = append(kept, e)
		}
	}
	m.edges = kept
	return nil
}

func (m *Memory) DeleteFileChunks(_ context.Context, repo, branch, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.chunks {
		if c.Repo == repo && c.BranchName == branch && c.FilePath == path {
			delete(m.chunks, id)
		}
	}
	return nil
}

func (m *Memory) DeleteFileSearch(_ context.Context, repo, branch, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.search {
		if e.Repo == repo && e.BranchName == branch && e.FilePath == path {
			delete(m.search, id)
		}
	}
	return nil
}

func (m *Memory) DeleteFileFingerprints(_ context.Context, repo, branch, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, f := range m.fingerprints {
		if f.Repo == repo && f.BranchName == branch && f.FilePath == path {
			delete(m.fingerprints, id)
		}
	}
	return nil
}

// ReplaceFileEdges swaps a file's edges. Named methods sidestep the
// ReplaceFile collision across seams sharing the one Memory receiver.
func (m *Memory) ReplaceFileEdges(_ context.Context, repo, branch, path string, rows []*EdgeRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.edges[:0]
	for _, e := range m.edges {
		if !(e.Repo == repo && e.BranchName == branch && e.FilePath == path) {
			kept = append(kept, e)
		}
	}
	m.edges = kept
	for _, e := range rows {
		cp := *e
		m.edges = append(m.edges, &cp)
	}
	return nil
}

func (m *Memory) GetBySources(_ context.Context, sourceIDs []string) ([]*EdgeRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]bool, len(sourceIDs))
	for _, id := range sourceIDs {
		want[id] = true
	}
	var out []*EdgeRow
	for _, e := range m.edges {
		if want[e.SourceID] {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ReplaceFileChunks swaps a file's chunks, honouring the branch-scoped
// span+hash dedup key. Rows of other branches never conflict.
func (m *Memory) ReplaceFileChunks(_ context.Context, repo, branch, path string, rows []*ChunkRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.chunks {
		if c.Repo == repo && c.BranchName == branch && c.FilePath == path {
			delete(m.chunks, id)
		}
	}
	seen := make(map[string]bool)
	for _, c := range rows {
		key := strings.Join([]string{c.Repo, c.BranchName, c.FilePath,
			strconv.Itoa(c.ChunkStartLine), strconv.Itoa(c.ChunkEndLine), c.ContentHash}, ":")
		if seen[key] {
			continue
		}
		seen[key] = true
		cp := *c
		m.chunks[c.ID] = &cp
	}
	return nil
}

func (m *Memory) GetChunk(_ context.Context, id string) (*ChunkRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chunks[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) GetChunks(_ context.Context, ids []string) ([]*ChunkRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ChunkRow
	for _, id := range ids {
		if c, ok := m.chunks[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) GetBySymbolIDs(_ context.Context, symbolIDs []string) ([]*ChunkRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]bool, len(symbolIDs))
	for _, id := range symbolIDs {
		want[id] = true
	}
	var out []*ChunkRow
	for _, c := range m.chunks {
		if want[c.SymbolID] {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Upsert(_ context.Context, rows []*SearchEntryRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range rows {
		cp := *e
		m.search[e.SymbolID] = &cp
	}
	return nil
}

// Sparse weights approximate the database ranker: names dominate,
// signatures and docs contribute, literals least.
const (
	weightName      = 1.0
	weightSignature = 0.4
	weightDoc       = 0.2
	weightLiteral   = 0.1
)

func (m *Memory) Search(_ context.Context, repo, branch, query string, limit int) ([]*SearchHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	qtoks := token.Tokenize(query)
	if len(qtoks) == 0 {
		return nil, nil
	}
	var out []*SearchHit
	for _, e := range m.search {
		if e.Repo != repo || e.BranchName != branch {
			continue
		}
		score := 0.0
		for _, qt := range qtoks {
			switch {
			case containsToken(e.NameTokens, qt) || containsToken(e.QualifiedTokens, qt):
				score += weightName
			case containsToken(e.SignatureTokens, qt):
				score += weightSignature
			case containsToken(e.DocTokens, qt):
				score += weightDoc
			case containsToken(e.LiteralTokens, qt):
				score += weightLiteral
			}
		}
		if score > 0 {
			out = append(out, &SearchHit{SymbolID: e.SymbolID, Score: score, Snippet: e.Snippet})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].SymbolID < out[j].SymbolID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetSearchEntries resolves stored search entries by symbol id.
func (m *Memory) GetSearchEntries(_ context.Context, symbolIDs []string) ([]*SearchEntryRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*SearchEntryRow
	for _, id := range symbolIDs {
		if e, ok := m.search[id]; ok {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// GetEntry returns a stored search entry; test helper.
func (m *Memory) GetEntry(symbolID string) *SearchEntryRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.search[symbolID]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

func (m *Memory) UpsertFingerprints(_ context.Context, rows []*FingerprintRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range rows {
		cp := *f
		m.fingerprints[f.SymbolID] = &cp
	}
	return nil
}

func (m *Memory) GetBySymbol(_ context.Context, symbolID string) (*FingerprintRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fingerprints[symbolID]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (m *Memory) FindCandidates(_ context.Context, q CandidateQuery) ([]*FingerprintRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*FingerprintRow
	for _, f := range m.fingerprints {
		if f.Repo != q.Repo || f.BranchName != q.BranchName ||
			f.Language != q.Language || f.Kind != q.Kind ||
			f.FingerprintKind != q.FingerprintKind ||
			f.SymbolID == q.ExcludeSymbolID {
			continue
		}
		match := false
		for i := 0; i < len(q.Bands); i++ {
			if f.Bands[i] == q.Bands[i] {
				match = true
				break
			}
		}
		if match {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SymbolID < out[j].SymbolID })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) UpsertBatch(_ context.Context, rows []*EmbeddingRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range rows {
		cp := *e
		cp.Vector = append([]float32(nil), e.Vector...)
		m.embeddings[e.ChunkID] = &cp
	}
	return nil
}

func (m *Memory) GetByChunkIDs(_ context.Context, chunkIDs []string) ([]*EmbeddingRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*EmbeddingRow
	for _, id := range chunkIDs {
		if e, ok := m.embeddings[id]; ok {
			cp := *e
			cp.Vector = append([]float32(nil), e.Vector...)
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) HasAny(_ context.Context, repo, branch, model string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.embeddings {
		if e.Repo == repo && e.BranchName == branch && e.Model == model {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) DistinctModels(_ context.Context, repo, branch string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for _, e := range m.embeddings {
		if e.Repo == repo && e.BranchName == branch {
			out[e.Model] = e.Dims
		}
	}
	return out, nil
}

func (m *Memory) Nearest(_ context.Context, repo, branch, model string, vector []float32, limit int) ([]*ChunkDistance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ChunkDistance
	for _, e := range m.embeddings {
		if e.Repo != repo || e.BranchName != branch || e.Model != model {
			continue
		}
		out = append(out, &ChunkDistance{ChunkID: e.ChunkID, Similarity: CosineSimilarity(vector, e.Vector)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) UpsertJobs(_ context.Context, rows []*JobRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range rows {
		cp := *j
		// Natural-key conflict replaces the existing row in place.
		replaced := false
		for id, prev := range m.jobs {
			if prev.Repo == j.Repo && prev.BranchName == j.BranchName &&
				prev.TargetKind == j.TargetKind && prev.TargetID == j.TargetID &&
				prev.Model == j.Model {
				cp.ID = prev.ID
				cp.CreatedAt = prev.CreatedAt
				cp.UpdatedAt = time.Now()
				m.jobs[id] = &cp
				replaced = true
				break
			}
		}
		if !replaced {
			if cp.CreatedAt.IsZero() {
				cp.CreatedAt = time.Now()
			}
			cp.UpdatedAt = cp.CreatedAt
			m.jobs[cp.ID] = &cp
			m.jobSeq++
			m.jobOrder[cp.ID] = m.jobSeq
		}
	}
	return nil
}

func (m *Memory) Claim(_ context.Context, workerID string, batchSize int, now time.Time) ([]*JobRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var eligible []*JobRow
	for _, j := range m.jobs {
		if j.Status != JobPending {
			continue
		}
		if j.NextAttemptAt != nil && j.NextAttemptAt.After(now) {
			continue
		}
		eligible = append(eligible, j)
	}
	sort.Slice(eligible, func(i, j int) bool {
		return m.jobOrder[eligible[i].ID] < m.jobOrder[eligible[j].ID]
	})
	if batchSize > 0 && len(eligible) > batchSize {
		eligible = eligible[:batchSize]
	}
	out := make([]*JobRow, 0, len(eligible))
	for _, j := range eligible {
		j.Status = JobProcessing
		j.Attempts++
		t := now
		j.LockedAt = &t
		w := workerID
		j.LockedBy = &w
		j.UpdatedAt = now
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Memory) MarkCompleted(_ context.Context, id string, lastError *string, dims int, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.Status = JobCompleted
		j.Dims = dims
		j.LastError = lastError
		j.LockedAt, j.LockedBy, j.NextAttemptAt = nil, nil, nil
		j.UpdatedAt = now
	}
	return nil
}

func (m *Memory) Requeue(_ context.Context, id string, nextAttemptAt time.Time, errCode string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.Status = JobPending
		t := nextAttemptAt
		j.NextAttemptAt = &t
		e := errCode
		j.LastError = &e
		j.LockedAt, j.LockedBy = nil, nil
		j.UpdatedAt = now
	}
	return nil
}

func (m *Memory) MarkBlocked(_ context.Context, id string, lastError string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.Status = JobBlocked
		e := lastError
		j.LastError = &e
		j.LockedAt, j.LockedBy, j.NextAttemptAt = nil, nil, nil
		j.UpdatedAt = now
	}
	return nil
}

func (m *Memory) RequeueStale(_ context.Context, cutoff, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if j.Status == JobProcessing && j.LockedAt != nil && j.LockedAt.Before(cutoff) {
			j.Status = JobPending
			j.LockedAt, j.LockedBy = nil, nil
			j.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *Memory) PurgeCompleted(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, j := range m.jobs {
		if j.Status == JobCompleted && j.UpdatedAt.Before(cutoff) {
			delete(m.jobs, id)
			delete(m.jobOrder, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) GetByKey(_ context.Context, repo, branch, targetKind, targetID, model string) (*JobRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.Repo == repo && j.BranchName == branch && j.TargetKind == targetKind &&
			j.TargetID == targetID && j.Model == model {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

// CosineSimilarity is shared by the in-memory nearest scan and the hybrid
// reranker.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func containsToken(toks []string, t string) bool {
	for _, x := range toks {
		if x == t {
			return true
		}
	}
	return false
}
