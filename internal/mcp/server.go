package mcp

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codelens-dev/codelens/internal/query"
	"github.com/codelens-dev/codelens/internal/store"
)

// serverName and serverVersion identify the server to MCP clients.
const (
	serverName    = "codelens"
	serverVersion = "1.0.0"
)

// Server bridges MCP clients and the query engine.
type Server struct {
	mcp    *mcp.Server
	engine *query.Engine
	stores *store.Stores
	logger *slog.Logger
}

// SearchInput is the input schema of the search tool. It mirrors the
// engine's query request, including the optional caller-supplied query
// embedding for the hybrid and semantic profiles.
type SearchInput struct {
	Query      string `json:"query" jsonschema:"the search query; prefix with similar:<symbol-id> for similarity search"`
	Repository string `json:"repository" jsonschema:"repository identifier"`
	Branch     string `json:"branch,omitempty" jsonschema:"branch name, default main"`
	Profile    string `json:"profile,omitempty" jsonschema:"query profile: fast, hybrid or semantic"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"maximum number of results"`

	QueryEmbeddingBase64 string `json:"query_embedding_base64,omitempty" jsonschema:"base64 little-endian float32 query embedding"`
	QueryEmbeddingDims   int    `json:"query_embedding_dims,omitempty" jsonschema:"declared embedding dimension count"`
	QueryEmbeddingModel  string `json:"query_embedding_model,omitempty" jsonschema:"embedding model the vector was produced with"`
}

// SimilarInput is the input schema of the similar tool.
type SimilarInput struct {
	SymbolID   string `json:"symbol_id" jsonschema:"seed symbol id to find near-duplicates of"`
	Repository string `json:"repository" jsonschema:"repository identifier"`
	Branch     string `json:"branch,omitempty" jsonschema:"branch name, default main"`
	Filter     string `json:"filter,omitempty" jsonschema:"optional text filter intersected with the similarity candidates"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"maximum number of results"`
}

// IndexStatusInput is the input schema of the index_status tool.
type IndexStatusInput struct {
	Repository string `json:"repository" jsonschema:"repository identifier"`
	Branch     string `json:"branch,omitempty" jsonschema:"branch name, default main"`
}

// IndexStatusOutput reports branch index state and embedding coverage.
type IndexStatusOutput struct {
	Repository    string `json:"repository"`
	Branch        string `json:"branch"`
	IndexState    string `json:"index_state"`
	HeadCommit    string `json:"head_commit,omitempty"`
	IndexedCommit string `json:"indexed_commit,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
	// EmbeddingModels maps each stored model to its dimension count, so
	// clients know which models hybrid queries can resolve against.
	EmbeddingModels map[string]int `json:"embedding_models,omitempty"`
}

// NewServer builds the MCP server and registers its tools.
func NewServer(engine *query.Engine, stores *store.Stores, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, stderrors.New("query engine is required")
	}
	if stores == nil {
		return nil, stderrors.New("stores are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine: engine,
		stores: stores,
		logger: logger,
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: serverName, Version: serverVersion},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Search indexed code by meaning, name or relationship. Understands symbols, call edges and documentation; results explain why they matched.",
	}, s.handleSearch)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "similar",
		Description: "Find near-duplicate symbols of a seed symbol via structural fingerprints. Use after search returned a symbol id.",
	}, s.handleSimilar)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Check whether a branch index is ready and which embedding models are available.",
	}, s.handleIndexStatus)
	s.logger.Debug("MCP tools registered", "count", 3)
}

// handleSearch runs one engine query.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	query.Response,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, query.Response{}, NewInvalidParamsError("query is required and must be non-empty")
	}
	if input.Repository == "" {
		return nil, query.Response{}, NewInvalidParamsError("repository is required")
	}

	req := &query.Request{
		Query:                input.Query,
		Repository:           input.Repository,
		Branch:               defaultBranch(input.Branch),
		MaxResults:           input.MaxResults,
		Profile:              input.Profile,
		QueryEmbeddingBase64: input.QueryEmbeddingBase64,
		QueryEmbeddingDims:   input.QueryEmbeddingDims,
		QueryEmbeddingModel:  input.QueryEmbeddingModel,
	}

	start := time.Now()
	resp, err := s.engine.Query(ctx, req)
	if err != nil {
		s.logger.Error("search failed", "repository", input.Repository, "error", err)
		return nil, query.Response{}, MapError(err)
	}
	s.logger.Info("search served",
		"repository", input.Repository,
		"branch", req.Branch,
		"intent", resp.Intent,
		"results", resp.TotalResults,
		"duration_ms", time.Since(start).Milliseconds())
	return nil, *resp, nil
}

// handleSimilar wraps the engine's similarity intent.
func (s *Server) handleSimilar(ctx context.Context, _ *mcp.CallToolRequest, input SimilarInput) (
	*mcp.CallToolResult,
	query.Response,
	error,
) {
	if input.SymbolID == "" {
		return nil, query.Response{}, NewInvalidParamsError("symbol_id is required")
	}
	if input.Repository == "" {
		return nil, query.Response{}, NewInvalidParamsError("repository is required")
	}

	q := "similar:" + input.SymbolID
	if f := strings.TrimSpace(input.Filter); f != "" {
		q += " " + f
	}
	req := &query.Request{
		Query:      q,
		Repository: input.Repository,
		Branch:     defaultBranch(input.Branch),
		MaxResults: input.MaxResults,
	}

	resp, err := s.engine.Query(ctx, req)
	if err != nil {
		s.logger.Error("similar failed", "symbol_id", input.SymbolID, "error", err)
		return nil, query.Response{}, MapError(err)
	}
	return nil, *resp, nil
}

// handleIndexStatus reports the branch latch state and stored embedding
// models.
func (s *Server) handleIndexStatus(ctx context.Context, _ *mcp.CallToolRequest, input IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	if input.Repository == "" {
		return nil, IndexStatusOutput{}, NewInvalidParamsError("repository is required")
	}
	branch := defaultBranch(input.Branch)

	out := IndexStatusOutput{
		Repository: input.Repository,
		Branch:     branch,
		IndexState: string(store.IndexStatePending),
	}

	b, err := s.stores.Branches.Get(ctx, input.Repository, branch)
	if err != nil {
		return nil, IndexStatusOutput{}, MapError(err)
	}
	if b != nil {
		out.IndexState = string(b.IndexState)
		out.HeadCommit = b.HeadCommit
		out.IndexedCommit = b.IndexedCommit
		if !b.UpdatedAt.IsZero() {
			out.UpdatedAt = b.UpdatedAt.UTC().Format(time.RFC3339)
		}
	}

	models, err := s.stores.Embeddings.DistinctModels(ctx, input.Repository, branch)
	if err != nil {
		return nil, IndexStatusOutput{}, MapError(err)
	}
	if len(models) > 0 {
		out.EmbeddingModels = models
	}
	return nil, out, nil
}

// Serve runs the server over the given transport until ctx ends.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server", "transport", transport)
	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !stderrors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped", "error", err)
			return err
		}
		s.logger.Info("MCP server stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

func defaultBranch(branch string) string {
	if branch == "" {
		return "main"
	}
	return branch
}
