package retrieval

import (
	"context"

	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/result"
)

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Index runs a similarity query. An empty predicate means no filtering.
// No match is an empty slice, not an error.
type Index interface {
	Query(
		ctx context.Context, namespace string, vector []float32,
		pred filter.Predicate, topK int, includeMetadata bool,
	) ([]result.Match, error)
}
