// Package errors provides the structured error type shared across the
// engine. Codes are stable wire identifiers: they surface verbatim in
// query responses and in job last_error columns, so renaming one is a
// breaking change.
package errors

// Category classifies errors for logging and handling decisions.
type Category string

const (
	// CategoryValidation indicates a malformed request.
	CategoryValidation Category = "VALIDATION"
	// CategoryNotFound indicates a referenced entity that does not exist.
	CategoryNotFound Category = "NOT_FOUND"
	// CategoryProvider indicates an embedding provider failure.
	CategoryProvider Category = "PROVIDER"
	// CategoryStorage indicates a database failure.
	CategoryStorage Category = "STORAGE"
	// CategoryInternal indicates an unexpected internal failure.
	CategoryInternal Category = "INTERNAL"
)

// Wire error codes.
const (
	// Query embedding validation.
	CodeInvalidQueryEmbedding     = "invalid_query_embedding"
	CodeInvalidQueryEmbeddingDims = "invalid_query_embedding_dims"
	CodeEmbeddingModelAmbiguous   = "embedding_model_ambiguous"
	CodeEmbeddingModelNotFound    = "embedding_model_not_found"
	CodeEmbeddingDimsMismatch     = "embedding_dims_mismatch"

	// Similarity seeds.
	CodeSeedNotFound           = "seed_not_found"
	CodeSeedFingerprintMissing = "seed_fingerprint_missing"

	// Provider and queue.
	CodeProviderError       = "provider_error"
	CodeProviderUnavailable = "provider_unavailable"
	CodeProviderTimeout     = "provider_timeout"
	CodeChunkMissing        = "chunk_missing"
	CodeMaxAttempts         = "max_attempts_exceeded"

	// Everything else.
	CodeStorage  = "storage_error"
	CodeInternal = "internal"
)

func categoryFromCode(code string) Category {
	switch code {
	case CodeInvalidQueryEmbedding, CodeInvalidQueryEmbeddingDims,
		CodeEmbeddingModelAmbiguous, CodeEmbeddingDimsMismatch:
		return CategoryValidation
	case CodeSeedNotFound, CodeSeedFingerprintMissing,
		CodeEmbeddingModelNotFound, CodeChunkMissing:
		return CategoryNotFound
	case CodeProviderError, CodeProviderUnavailable, CodeProviderTimeout,
		CodeMaxAttempts:
		return CategoryProvider
	case CodeStorage:
		return CategoryStorage
	default:
		return CategoryInternal
	}
}

func isRetryableCode(code string) bool {
	switch code {
	case CodeProviderUnavailable, CodeProviderTimeout, CodeStorage:
		return true
	default:
		return false
	}
}
