package shopsearch

import "github.com/kailas-cloud/shopsearch/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrRetrievalUnavailable = domain.ErrRetrievalUnavailable
	ErrEmbeddingUnavailable = domain.ErrEmbeddingUnavailable
	ErrIndexUnavailable     = domain.ErrIndexUnavailable
	ErrRateLimited          = domain.ErrRateLimited
	ErrInvalidRequest       = domain.ErrInvalidRequest
)
