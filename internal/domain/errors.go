package domain

import "errors"

var (
	// ErrRetrievalUnavailable signals that a search could not reach the embedding
	// provider or the vector index after local retries.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrEmbeddingUnavailable signals an embedding transport or provider failure.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrIndexUnavailable signals a vector index transport failure.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrRateLimited signals that the local request limiter rejected a call.
	ErrRateLimited = errors.New("rate limited")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest signals a malformed request from the caller.
	ErrInvalidRequest = errors.New("invalid request")
)
