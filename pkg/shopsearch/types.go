package shopsearch

import (
	"time"

	"github.com/kailas-cloud/shopsearch/internal/domain/catalog"
	catalogrepo "github.com/kailas-cloud/shopsearch/internal/repository/catalog"
)

// Product is one catalog entry.
type Product = catalog.Product

// Catalog is an in-memory product list addressed by 1-based IDs.
type Catalog = catalog.Catalog

// Hit is one ranked search result.
type Hit struct {
	ID       string
	Rank     int
	Score    float64
	Metadata map[string]any
}

// IngestReport summarizes an Ingest call.
type IngestReport struct {
	Products int
	Upserted int
	Tokens   int
	Duration time.Duration
}

// LoadCatalog reads a product CSV. Malformed rows are skipped.
func LoadCatalog(path string) (*Catalog, error) {
	cat, _, err := catalogrepo.NewLoader(nil).LoadFile(path)
	if err != nil {
		return nil, err //nolint:wrapcheck // loader errors carry the path
	}
	return cat, nil
}
