// Package embed turns indexed code chunks into vectors through a durable
// job queue. Indexing enqueues one job per chunk and model; a worker
// claims batches, calls the provider and writes embeddings back.
package embed

import "context"

// Result is a provider batch outcome. Transient failures are retried
// with backoff; permanent ones block the jobs.
type Result struct {
	// Embeddings holds one vector per input, in input order. Only set on
	// success.
	Embeddings [][]float32
	Success    bool
	Transient  bool
	ErrorCode  string
	ErrorMsg   string
}

// Provider computes embeddings for a batch of texts under one model.
// Implementations report failures in the Result rather than an error so
// the worker can distinguish transient from permanent ones; the error
// return is reserved for programming mistakes.
type Provider interface {
	Embed(ctx context.Context, model string, texts []string) (*Result, error)
}

// Provider error codes surfaced into job last_error.
const (
	CodeProviderError       = "provider_error"
	CodeProviderUnavailable = "provider_unavailable"
	CodeProviderTimeout     = "provider_timeout"
	CodeChunkMissing        = "chunk_missing"
	CodeMaxAttempts         = "max_attempts_exceeded"
	CodeModelMissing        = "model_not_configured"
)
