package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/internal/errors"
	"github.com/codelens-dev/codelens/internal/fingerprint"
	"github.com/codelens-dev/codelens/internal/store"
	"github.com/codelens-dev/codelens/internal/token"
)

// Options is the engine's configuration snapshot. Reload swaps it
// atomically; in-flight queries keep the snapshot they started with.
type Options struct {
	DefaultProfile   string
	MaxResults       int
	MaxSnippetChars  int
	MaxResponseBytes int
	SparseWeight     float64
	VectorWeight     float64
	EmbeddingModel   string
}

// OptionsFromConfig maps the loaded configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DefaultProfile:   strings.ToLower(cfg.Query.DefaultProfile),
		MaxResults:       cfg.Query.MaxResults,
		MaxSnippetChars:  cfg.Query.MaxSnippetChars,
		MaxResponseBytes: cfg.Query.MaxResponseBytes,
		SparseWeight:     cfg.Query.SparseWeight,
		VectorWeight:     cfg.Query.VectorWeight,
		EmbeddingModel:   strings.ToLower(cfg.Embeddings.Model),
	}
}

const (
	defaultRequestLimit = 50
	edgeExpansionTopK   = 10
	similarCandidateCap = 200
	similarFilterLimit  = 500
	seedCacheSize       = 1024
)

// Engine executes queries against the store seams.
type Engine struct {
	stores *store.Stores
	opts   atomic.Pointer[Options]
	logger *slog.Logger

	// Seed symbol and fingerprint lookups repeat heavily in similarity
	// sessions; both caches are purged on reindex.
	symbolCache      *lru.Cache[string, *store.SymbolRow]
	fingerprintCache *lru.Cache[string, *store.FingerprintRow]
}

// New builds an engine over the given stores.
func New(stores *store.Stores, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	symbolCache, _ := lru.New[string, *store.SymbolRow](seedCacheSize)
	fingerprintCache, _ := lru.New[string, *store.FingerprintRow](seedCacheSize)
	e := &Engine{
		stores:           stores,
		logger:           logger,
		symbolCache:      symbolCache,
		fingerprintCache: fingerprintCache,
	}
	e.opts.Store(&opts)
	return e
}

// Reload swaps the configuration snapshot.
func (e *Engine) Reload(opts Options) {
	e.opts.Store(&opts)
}

// InvalidateCaches drops cached seed lookups. Called after a branch
// reindex so stale symbols cannot serve similarity queries.
func (e *Engine) InvalidateCaches() {
	e.symbolCache.Purge()
	e.fingerprintCache.Purge()
}

// Query runs one request through intent detection, the selected
// profile and response shaping.
func (e *Engine) Query(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	opts := *e.opts.Load()

	limit := req.MaxResults
	if limit <= 0 {
		limit = defaultRequestLimit
	}

	intent := detectIntent(req.Query)
	meta := map[string]any{
		"repository": req.Repository,
		"branch":     req.Branch,
	}

	var results []*SearchResult
	var err error
	if intent == IntentSimilar {
		meta["profile"] = "Similar"
		results, err = e.runSimilar(ctx, req, limit, meta)
	} else {
		profile := strings.ToLower(req.Profile)
		if profile == "" {
			profile = opts.DefaultProfile
		}
		switch profile {
		case ProfileHybrid:
			meta["profile"] = "Hybrid"
			results, err = e.runHybrid(ctx, req, limit, opts, meta)
		case ProfileSemantic:
			meta["profile"] = "Semantic"
			results, err = e.runSemantic(ctx, req, limit, opts, meta)
		default:
			meta["profile"] = "Fast"
			results, err = e.runFast(ctx, req, limit)
		}
	}
	if err != nil {
		return nil, err
	}
	// A cancelled query aborts before shaping; no partial response.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shapeLimit := limit
	if opts.MaxResults > 0 && opts.MaxResults < shapeLimit {
		shapeLimit = opts.MaxResults
	}
	resp := &Response{
		Query:        req.Query,
		Intent:       intent,
		Results:      results,
		TotalResults: len(results),
		Metadata:     meta,
	}
	shape(resp, shapeOptions{
		MaxResults:      shapeLimit,
		MaxSnippetChars: opts.MaxSnippetChars,
		MaxJSONBytes:    opts.MaxResponseBytes,
	})
	resp.ExecutionTimeMs = time.Since(start).Milliseconds()

	e.logger.Debug("query served",
		"intent", intent, "profile", meta["profile"],
		"results", len(resp.Results), "duration_ms", resp.ExecutionTimeMs)
	return resp, nil
}

// runFast is the sparse profile: weighted full-text rank, member boost
// and bounded edge expansion.
func (e *Engine) runFast(ctx context.Context, req *Request, limit int) ([]*SearchResult, error) {
	hits, err := e.stores.Search.Search(ctx, req.Repository, req.Branch, req.Query, limit*2)
	if err != nil {
		return nil, fmt.Errorf("sparse search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.SymbolID)
	}
	symbols, err := e.stores.Symbols.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve symbols: %w", err)
	}
	symByID := make(map[string]*store.SymbolRow, len(symbols))
	for _, s := range symbols {
		symByID[s.ID] = s
	}

	// Match reasons come from the stored token buckets, including the
	// literal bucket no symbol field carries.
	entries, err := e.stores.Search.GetBySymbolIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve search entries: %w", err)
	}
	entryByID := make(map[string]*store.SearchEntryRow, len(entries))
	for _, entry := range entries {
		entryByID[entry.SymbolID] = entry
	}

	queryTokens := token.Tokenize(req.Query)
	results := make([]*SearchResult, 0, len(hits))
	byID := make(map[string]*SearchResult, len(hits))
	for _, h := range hits {
		sym, ok := symByID[h.SymbolID]
		if !ok || !languageMatches(req.Language, sym.Language) {
			continue
		}
		r := resultFromSymbol(sym, h.Snippet, h.Score)
		for _, qt := range queryTokens {
			if entryHasToken(entryByID[h.SymbolID], qt) {
				r.Why = appendReason(r.Why, "match:"+qt)
			}
		}
		results = append(results, r)
		byID[r.ID] = r
	}

	applyMemberBoost(results, symByID, byID)

	expanded, err := e.expandEdges(ctx, req, results, limit, byID)
	if err != nil {
		return nil, err
	}
	results = append(results, expanded...)

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// applyMemberBoost lifts members when two or more hits share a parent
// that is itself a hit.
func applyMemberBoost(results []*SearchResult, symByID map[string]*store.SymbolRow, byID map[string]*SearchResult) {
	membersByParent := make(map[string][]*SearchResult)
	for _, r := range results {
		sym := symByID[r.ID]
		if sym == nil || sym.ParentID == "" {
			continue
		}
		membersByParent[sym.ParentID] = append(membersByParent[sym.ParentID], r)
	}
	for parentID, members := range membersByParent {
		parent, ok := byID[parentID]
		if !ok || len(members) < 2 {
			continue
		}
		for _, m := range members {
			m.Score += 0.1 * parent.Score
		}
	}
}

// expandEdges adds targets of outgoing edges from the top hits, scored
// at half the source. Additions are capped at limit/2.
func (e *Engine) expandEdges(ctx context.Context, req *Request, results []*SearchResult, limit int, byID map[string]*SearchResult) ([]*SearchResult, error) {
	topK := len(results)
	if topK > edgeExpansionTopK {
		topK = edgeExpansionTopK
	}
	if topK == 0 {
		return nil, nil
	}
	sourceIDs := make([]string, 0, topK)
	for _, r := range results[:topK] {
		sourceIDs = append(sourceIDs, r.ID)
	}
	edges, err := e.stores.Edges.GetBySources(ctx, sourceIDs)
	if err != nil {
		return nil, fmt.Errorf("expand edges: %w", err)
	}

	maxAdditions := limit / 2
	type addition struct {
		targetID string
		score    float64
		reason   string
	}
	var additions []addition
	seen := make(map[string]bool)
	for _, edge := range edges {
		if edge.TargetID == "" || byID[edge.TargetID] != nil || seen[edge.TargetID] {
			continue
		}
		source := byID[edge.SourceID]
		if source == nil {
			continue
		}
		seen[edge.TargetID] = true
		additions = append(additions, addition{
			targetID: edge.TargetID,
			score:    0.5 * source.Score,
			reason:   "edge:" + string(edge.Kind),
		})
		if len(additions) >= maxAdditions {
			break
		}
	}
	if len(additions) == 0 {
		return nil, nil
	}

	targetIDs := make([]string, 0, len(additions))
	for _, a := range additions {
		targetIDs = append(targetIDs, a.targetID)
	}
	targets, err := e.stores.Symbols.GetByIDs(ctx, targetIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve edge targets: %w", err)
	}
	targetByID := make(map[string]*store.SymbolRow, len(targets))
	for _, s := range targets {
		targetByID[s.ID] = s
	}

	var out []*SearchResult
	for _, a := range additions {
		sym, ok := targetByID[a.targetID]
		if !ok || !languageMatches(req.Language, sym.Language) {
			continue
		}
		r := resultFromSymbol(sym, "", a.score)
		r.Why = appendReason(r.Why, a.reason)
		out = append(out, r)
	}
	return out, nil
}

// runHybrid reranks the sparse list with cosine similarity against
// stored chunk embeddings. Every failure mode degrades to the sparse
// list with the reason recorded in metadata.
func (e *Engine) runHybrid(ctx context.Context, req *Request, limit int, opts Options, meta map[string]any) ([]*SearchResult, error) {
	sparse, err := e.runFast(ctx, req, limit)
	if err != nil {
		return nil, err
	}

	emb, decErr := decodeQueryEmbedding(req.QueryEmbeddingBase64, req.QueryEmbeddingDims, req.QueryEmbeddingModel)
	if emb == nil {
		if decErr != nil {
			meta["errorCode"] = decErr.Code
		}
		meta["fallback"] = "hybrid->fast"
		meta["embeddingUsed"] = false
		return sparse, nil
	}

	model, resErr := e.resolveModel(ctx, req.Repository, req.Branch, emb, opts)
	if resErr != nil {
		meta["errorCode"] = resErr.Code
		meta["fallback"] = "hybrid->fast"
		meta["embeddingUsed"] = false
		return sparse, nil
	}

	has, err := e.stores.Embeddings.HasAny(ctx, req.Repository, req.Branch, model)
	if err != nil {
		return nil, fmt.Errorf("check embeddings: %w", err)
	}
	if !has {
		meta["fallback"] = "query_embedding_invalid"
		meta["embeddingUsed"] = false
		return sparse, nil
	}

	similarity, candidates, err := e.chunkSimilarities(ctx, sparse, model, emb.Vector)
	if err != nil {
		return nil, err
	}

	// Sparse rank scores are unbounded; normalise before blending with
	// cosine similarity.
	var maxScore float64
	for _, r := range sparse {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	for _, r := range sparse {
		norm := r.Score
		if maxScore > 0 {
			norm = r.Score / maxScore
		}
		cos, ok := similarity[r.ID]
		if !ok {
			r.Score = opts.SparseWeight * norm
			continue
		}
		r.Score = opts.SparseWeight*norm + opts.VectorWeight*cos
		if cos > 0 {
			r.Why = appendReason(r.Why, "rerank:semantic_boost")
		}
	}
	sort.SliceStable(sparse, func(i, j int) bool { return sparse[i].Score > sparse[j].Score })

	meta["embeddingUsed"] = true
	meta["embeddingModel"] = model
	meta["embeddingCandidateCount"] = candidates
	return sparse, nil
}

// chunkSimilarities computes, per sparse symbol, the best cosine
// similarity among its chunks' stored embeddings for the model.
func (e *Engine) chunkSimilarities(ctx context.Context, sparse []*SearchResult, model string, vec []float32) (map[string]float64, int, error) {
	symbolIDs := make([]string, 0, len(sparse))
	for _, r := range sparse {
		symbolIDs = append(symbolIDs, r.ID)
	}
	chunks, err := e.stores.Chunks.GetBySymbolIDs(ctx, symbolIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("load chunks: %w", err)
	}
	chunkSymbol := make(map[string]string, len(chunks))
	chunkIDs := make([]string, 0, len(chunks))
	for _, c := range chunks {
		chunkSymbol[c.ID] = c.SymbolID
		chunkIDs = append(chunkIDs, c.ID)
	}
	embRows, err := e.stores.Embeddings.GetByChunkIDs(ctx, chunkIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("load chunk embeddings: %w", err)
	}

	similarity := make(map[string]float64)
	candidates := 0
	for _, row := range embRows {
		if row.Model != model {
			continue
		}
		symbolID, ok := chunkSymbol[row.ChunkID]
		if !ok {
			continue
		}
		candidates++
		cos := store.CosineSimilarity(vec, row.Vector)
		if best, ok := similarity[symbolID]; !ok || cos > best {
			similarity[symbolID] = cos
		}
	}
	return similarity, candidates, nil
}

// resolveModel picks the embedding model for a query: explicit request
// model, then the configured model, then a lone stored model.
func (e *Engine) resolveModel(ctx context.Context, repo, branch string, emb *queryEmbedding, opts Options) (string, *errors.Error) {
	models, err := e.stores.Embeddings.DistinctModels(ctx, repo, branch)
	if err != nil {
		return "", errors.Wrap(errors.CodeStorage, err)
	}

	model := emb.Model
	if model == "" {
		model = opts.EmbeddingModel
	}
	if model == "" {
		if len(models) == 1 {
			for m := range models {
				model = m
			}
		} else {
			return "", errors.Newf(errors.CodeEmbeddingModelAmbiguous,
				"%d models stored and none requested or configured", len(models))
		}
	}

	dims, ok := models[model]
	if !ok {
		return "", errors.Newf(errors.CodeEmbeddingModelNotFound,
			"model %q has no stored embeddings", model)
	}
	if dims != emb.Dims {
		return "", errors.Newf(errors.CodeEmbeddingDimsMismatch,
			"query dims %d but model %q stores %d", emb.Dims, model, dims)
	}
	return model, nil
}

// runSemantic is vector-first: nearest chunks by cosine distance mapped
// back to their symbols. Without a usable embedding it degrades through
// the full chain to sparse.
func (e *Engine) runSemantic(ctx context.Context, req *Request, limit int, opts Options, meta map[string]any) ([]*SearchResult, error) {
	emb, decErr := decodeQueryEmbedding(req.QueryEmbeddingBase64, req.QueryEmbeddingDims, req.QueryEmbeddingModel)
	var resErr *errors.Error
	var model string
	if emb != nil {
		model, resErr = e.resolveModel(ctx, req.Repository, req.Branch, emb, opts)
	}
	if emb == nil || resErr != nil {
		if decErr != nil {
			meta["errorCode"] = decErr.Code
		} else if resErr != nil {
			meta["errorCode"] = resErr.Code
		}
		meta["fallback"] = "semantic->hybrid->fast"
		meta["embeddingUsed"] = false
		return e.runFast(ctx, req, limit)
	}

	near, err := e.stores.Embeddings.Nearest(ctx, req.Repository, req.Branch, model, emb.Vector, limit*2)
	if err != nil {
		return nil, fmt.Errorf("nearest embeddings: %w", err)
	}
	if len(near) == 0 {
		meta["fallback"] = "semantic->hybrid->fast"
		meta["embeddingUsed"] = false
		return e.runFast(ctx, req, limit)
	}

	chunkIDs := make([]string, 0, len(near))
	simByChunk := make(map[string]float64, len(near))
	for _, n := range near {
		chunkIDs = append(chunkIDs, n.ChunkID)
		simByChunk[n.ChunkID] = n.Similarity
	}
	chunks, err := e.stores.Chunks.GetByIDs(ctx, chunkIDs)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	chunkByID := make(map[string]*store.ChunkRow, len(chunks))
	for _, c := range chunks {
		chunkByID[c.ID] = c
	}

	// One result per symbol, keeping its closest chunk.
	type best struct {
		chunk *store.ChunkRow
		sim   float64
	}
	bestBySymbol := make(map[string]best)
	var symbolOrder []string
	for _, n := range near {
		chunk, ok := chunkByID[n.ChunkID]
		if !ok || !languageMatches(req.Language, chunk.Language) {
			continue
		}
		b, seen := bestBySymbol[chunk.SymbolID]
		if !seen {
			symbolOrder = append(symbolOrder, chunk.SymbolID)
		}
		if !seen || n.Similarity > b.sim {
			bestBySymbol[chunk.SymbolID] = best{chunk: chunk, sim: n.Similarity}
		}
	}
	symbols, err := e.stores.Symbols.GetByIDs(ctx, symbolOrder)
	if err != nil {
		return nil, fmt.Errorf("resolve symbols: %w", err)
	}
	symByID := make(map[string]*store.SymbolRow, len(symbols))
	for _, s := range symbols {
		symByID[s.ID] = s
	}

	var results []*SearchResult
	for _, symbolID := range symbolOrder {
		sym, ok := symByID[symbolID]
		if !ok {
			continue
		}
		b := bestBySymbol[symbolID]
		r := resultFromSymbol(sym, b.chunk.Content, b.sim)
		r.StartLine = b.chunk.ChunkStartLine
		r.EndLine = b.chunk.ChunkEndLine
		results = append(results, r)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}

	meta["embeddingUsed"] = true
	meta["embeddingModel"] = model
	return results, nil
}

// runSimilar serves "similar:<symbolId>" via LSH band candidates ranked
// by exact Hamming distance, optionally intersected with a text filter.
func (e *Engine) runSimilar(ctx context.Context, req *Request, limit int, meta map[string]any) ([]*SearchResult, error) {
	seedID, filter := parseSimilarQuery(req.Query)
	if seedID == "" {
		meta["errorCode"] = errors.CodeSeedNotFound
		meta["error"] = "Seed symbol not found."
		return nil, nil
	}

	seed, err := e.cachedSymbol(ctx, seedID)
	if err != nil {
		return nil, err
	}
	if seed == nil {
		meta["errorCode"] = errors.CodeSeedNotFound
		meta["error"] = "Seed symbol not found."
		return nil, nil
	}

	seedPrint, err := e.cachedFingerprint(ctx, seedID)
	if err != nil {
		return nil, err
	}
	if seedPrint == nil {
		meta["errorCode"] = errors.CodeSeedFingerprintMissing
		meta["error"] = "Seed symbol has no fingerprint."
		return nil, nil
	}

	candidates, err := e.stores.Fingerprints.FindCandidates(ctx, store.CandidateQuery{
		Repo:            seedPrint.Repo,
		BranchName:      seedPrint.BranchName,
		Language:        seedPrint.Language,
		Kind:            seedPrint.Kind,
		FingerprintKind: seedPrint.FingerprintKind,
		Bands:           seedPrint.Bands,
		ExcludeSymbolID: seedID,
		Limit:           similarCandidateCap,
	})
	if err != nil {
		return nil, fmt.Errorf("find similarity candidates: %w", err)
	}

	// Optional text filter: AND-intersect with sparse search ids.
	filterScores := map[string]float64{}
	if filter != "" {
		hits, err := e.stores.Search.Search(ctx, seedPrint.Repo, seedPrint.BranchName, filter, similarFilterLimit)
		if err != nil {
			return nil, fmt.Errorf("similarity filter search: %w", err)
		}
		for _, h := range hits {
			filterScores[h.SymbolID] = h.Score
		}
	}

	type ranked struct {
		symbolID string
		distance int
		score    float64
	}
	var rankedCands []ranked
	for _, c := range candidates {
		if filter != "" {
			if _, ok := filterScores[c.SymbolID]; !ok {
				continue
			}
		}
		rankedCands = append(rankedCands, ranked{
			symbolID: c.SymbolID,
			distance: fingerprint.HammingDistance(seedPrint.Fingerprint, c.Fingerprint),
			score:    filterScores[c.SymbolID],
		})
	}
	sort.Slice(rankedCands, func(i, j int) bool {
		if rankedCands[i].distance != rankedCands[j].distance {
			return rankedCands[i].distance < rankedCands[j].distance
		}
		if rankedCands[i].score != rankedCands[j].score {
			return rankedCands[i].score > rankedCands[j].score
		}
		return rankedCands[i].symbolID < rankedCands[j].symbolID
	})
	if len(rankedCands) > limit {
		rankedCands = rankedCands[:limit]
	}
	if len(rankedCands) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rankedCands))
	for _, c := range rankedCands {
		ids = append(ids, c.symbolID)
	}
	symbols, err := e.stores.Symbols.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve similar symbols: %w", err)
	}
	symByID := make(map[string]*store.SymbolRow, len(symbols))
	for _, s := range symbols {
		symByID[s.ID] = s
	}
	chunks, err := e.stores.Chunks.GetBySymbolIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load similar chunks: %w", err)
	}
	contentBySymbol := make(map[string]string, len(chunks))
	for _, c := range chunks {
		if _, ok := contentBySymbol[c.SymbolID]; !ok {
			contentBySymbol[c.SymbolID] = c.Content
		}
	}

	var results []*SearchResult
	for _, c := range rankedCands {
		sym, ok := symByID[c.symbolID]
		if !ok {
			continue
		}
		r := resultFromSymbol(sym, contentBySymbol[c.symbolID], 1-float64(c.distance)/64)
		r.Why = appendReason(r.Why, "similarity:simhash")
		r.Why = appendReason(r.Why, fmt.Sprintf("distance:%d", c.distance))
		results = append(results, r)
	}
	return results, nil
}

func (e *Engine) cachedSymbol(ctx context.Context, id string) (*store.SymbolRow, error) {
	if s, ok := e.symbolCache.Get(id); ok {
		return s, nil
	}
	s, err := e.stores.Symbols.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve seed symbol: %w", err)
	}
	if s != nil {
		e.symbolCache.Add(id, s)
	}
	return s, nil
}

func (e *Engine) cachedFingerprint(ctx context.Context, symbolID string) (*store.FingerprintRow, error) {
	if f, ok := e.fingerprintCache.Get(symbolID); ok {
		return f, nil
	}
	f, err := e.stores.Fingerprints.GetBySymbol(ctx, symbolID)
	if err != nil {
		return nil, fmt.Errorf("load seed fingerprint: %w", err)
	}
	if f != nil {
		e.fingerprintCache.Add(symbolID, f)
	}
	return f, nil
}

func resultFromSymbol(sym *store.SymbolRow, content string, score float64) *SearchResult {
	return &SearchResult{
		ID:            sym.ID,
		Type:          "symbol",
		Repository:    sym.Repo,
		Branch:        sym.BranchName,
		FilePath:      sym.FilePath,
		Language:      sym.Language,
		SymbolName:    sym.Name,
		Qualified:     sym.QualifiedName,
		SymbolKind:    string(sym.Kind),
		Content:       content,
		StartLine:     sym.StartLine,
		EndLine:       sym.EndLine,
		Score:         score,
		Signature:     sym.Signature,
		Documentation: sym.Documentation,
	}
}

// languageMatches applies the optional request language filter.
func languageMatches(want, got string) bool {
	return want == "" || strings.EqualFold(want, got)
}

// entryHasToken reports whether the query token appears in any of the
// entry's stored token buckets.
func entryHasToken(entry *store.SearchEntryRow, tok string) bool {
	if entry == nil {
		return false
	}
	for _, bucket := range [][]string{
		entry.NameTokens, entry.QualifiedTokens, entry.SignatureTokens,
		entry.DocTokens, entry.LiteralTokens,
	} {
		for _, t := range bucket {
			if t == tok {
				return true
			}
		}
	}
	return false
}
