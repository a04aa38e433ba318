package ingest

import (
	"context"

	"github.com/kailas-cloud/shopsearch/internal/domain"
)

// Embedder vectorizes product texts in batches.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// Index creates the namespace index and stores records in it.
type Index interface {
	EnsureIndex(ctx context.Context, namespace string) error
	DropIndex(ctx context.Context, namespace string) error
	Upsert(ctx context.Context, namespace string, records []domain.VectorRecord) error
}
