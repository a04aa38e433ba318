package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/catalog"
)

const (
	// DefaultPageSize is the number of products embedded and written per step.
	DefaultPageSize = 512
	// DefaultWorkers is the number of pages processed concurrently.
	DefaultWorkers = 2
)

// Report summarizes an ingestion run.
type Report struct {
	Products int
	Upserted int
	Tokens   int
	Duration time.Duration
}

// Service embeds catalog products and writes them into the vector index.
type Service struct {
	embed    Embedder
	index    Index
	logger   *zap.Logger
	pageSize int
	workers  int
}

// New creates an ingestion service.
func New(embed Embedder, index Index, logger *zap.Logger) *Service {
	return &Service{
		embed:    embed,
		index:    index,
		logger:   logger,
		pageSize: DefaultPageSize,
		workers:  DefaultWorkers,
	}
}

// WithPageSize configures the products per page.
func (s *Service) WithPageSize(n int) *Service {
	if n > 0 {
		s.pageSize = n
	}
	return s
}

// WithWorkers configures page concurrency.
func (s *Service) WithWorkers(n int) *Service {
	if n > 0 {
		s.workers = n
	}
	return s
}

// Reindex drops the namespace index before ingesting, so schema changes
// (dimensions, HNSW parameters, fields) take effect.
func (s *Service) Reindex(ctx context.Context, namespace string, products []catalog.Product) (Report, error) {
	if namespace == "" {
		return Report{}, fmt.Errorf("%w: namespace is required", domain.ErrInvalidRequest)
	}
	if err := s.index.DropIndex(ctx, namespace); err != nil {
		return Report{}, fmt.Errorf("drop index: %w", err)
	}
	s.logger.Info("Dropped index", zap.String("namespace", namespace))
	return s.Ingest(ctx, namespace, products)
}

// Ingest ensures the namespace index exists, then embeds and upserts every
// product. Product IDs are their 1-based positions. The first failing page
// cancels the rest; pages already written stay written.
func (s *Service) Ingest(ctx context.Context, namespace string, products []catalog.Product) (Report, error) {
	if namespace == "" {
		return Report{}, fmt.Errorf("%w: namespace is required", domain.ErrInvalidRequest)
	}
	start := time.Now()

	if err := s.index.EnsureIndex(ctx, namespace); err != nil {
		return Report{}, fmt.Errorf("ensure index: %w", err)
	}

	var upserted, tokens atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for offset := 0; offset < len(products); offset += s.pageSize {
		end := min(offset+s.pageSize, len(products))
		g.Go(func() error {
			n, t, err := s.ingestPage(gctx, namespace, products[offset:end], offset)
			if err != nil {
				return fmt.Errorf("page %d-%d: %w", offset+1, end, err)
			}
			done := upserted.Add(int64(n))
			tokens.Add(int64(t))
			s.logger.Info("Ingested page",
				zap.String("namespace", namespace),
				zap.Int64("upserted", done),
				zap.Int("total", len(products)),
			)
			return nil
		})
	}

	err := g.Wait()
	report := Report{
		Products: len(products),
		Upserted: int(upserted.Load()),
		Tokens:   int(tokens.Load()),
		Duration: time.Since(start),
	}
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return report, fmt.Errorf("ingest interrupted: %w", ctx.Err())
		}
		return report, err
	}
	return report, nil
}

func (s *Service) ingestPage(
	ctx context.Context, namespace string, page []catalog.Product, offset int,
) (upserted, tokens int, err error) {
	texts := make([]string, len(page))
	for i := range page {
		texts[i] = page[i].EmbeddingText()
	}

	res, err := s.embed.BatchEmbed(ctx, texts)
	if err != nil {
		return 0, 0, fmt.Errorf("embed: %w", err)
	}
	if len(res.Embeddings) != len(page) {
		return 0, 0, fmt.Errorf("embed: got %d vectors for %d products", len(res.Embeddings), len(page))
	}

	records := make([]domain.VectorRecord, len(page))
	for i := range page {
		records[i] = domain.VectorRecord{
			ID:       catalog.ID(offset + i),
			Vector:   res.Embeddings[i],
			Metadata: page[i].Metadata(),
		}
	}

	if err := s.index.Upsert(ctx, namespace, records); err != nil {
		return 0, 0, fmt.Errorf("upsert: %w", err)
	}
	return len(records), res.TotalTokens, nil
}
