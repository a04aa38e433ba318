package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/config"
	dbRedis "github.com/kailas-cloud/shopsearch/internal/db/redis"
	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/catalog"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/shopsearch/internal/metrics"
	catalogrepo "github.com/kailas-cloud/shopsearch/internal/repository/catalog"
	"github.com/kailas-cloud/shopsearch/internal/repository/embcache"
	indexrepo "github.com/kailas-cloud/shopsearch/internal/repository/index"
	"github.com/kailas-cloud/shopsearch/internal/retry"
	openaiTransport "github.com/kailas-cloud/shopsearch/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/shopsearch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/shopsearch/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/shopsearch/internal/usecase/ingest"
	retrievaluc "github.com/kailas-cloud/shopsearch/internal/usecase/retrieval"
)

// embedder is what both the query and the document chain expose.
type embedder interface {
	domain.Embedder
	domain.BatchEmbedder
}

// app is the composition root shared by all subcommands.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *dbRedis.Store
	provider  *openaiTransport.Embedder
	queryEmb  embedder
	docEmb    embedder
	index     *indexrepo.Repo
	retrieval *retrievaluc.Service
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()

	a := &app{cfg: cfg, logger: logger, store: store}
	a.buildEmbedders()

	a.index = indexrepo.New(store, indexrepo.Config{
		KeyPrefix:     cfg.Storage.KeyPrefix,
		Dimensions:    cfg.Embedding.Dimensions,
		NumericFields: cfg.Retrieval.NumericFields,
		TagFields:     cfg.Retrieval.TagFields,
		Flat:          cfg.Index.Algorithm == "flat",
		HNSW: indexrepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		},
	})

	a.retrieval, err = retrievaluc.New(
		a.queryEmb, a.index,
		filter.NewNormalizer(cfg.Retrieval.NumericFields...),
		retrievaluc.Config{
			Namespace:     cfg.Retrieval.DefaultNamespace,
			TopK:          cfg.Retrieval.TopK,
			CacheCapacity: cfg.Retrieval.CacheCapacity,
			Embed: retry.Policy{
				Attempts: cfg.Retrieval.EmbedAttempts,
				Delay:    cfg.Retrieval.EmbedRetryDelay(),
			},
		},
	)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create retrieval service: %w", err)
	}
	return a, nil
}

// buildEmbedders assembles the decorator chain:
// OpenAI -> Cached -> Instrumented -> Instruction.
// Query and document chains share one limiter and one cache.
func (a *app) buildEmbedders() {
	ec := a.cfg.Embedding

	a.provider = openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		Provider:   ec.Provider,
		Logger:     a.logger,
	})

	cached := embcache.New(a.provider, a.store, embcache.Options{
		KeyPrefix: a.cfg.Storage.KeyPrefix + "emb_cache:",
		Model:     ec.Model,
		TTL:       time.Duration(ec.CacheTTLHours) * time.Hour,
	}, metrics.EmbeddingCacheTotal, a.logger)

	instrumented := embeddinguc.NewInstrumentedEmbedder(
		cached, ec.Provider, ec.Model,
		embeddinguc.NewLimiter(ec.RequestsPerSecond, ec.Burst), a.logger,
	)

	a.queryEmb = withInstruction(instrumented, ec.QueryInstruction)
	a.docEmb = withInstruction(instrumented, ec.DocumentInstruction)

	a.logger.Info("Embedders created",
		zap.String("provider", ec.Provider),
		zap.String("model", ec.Model),
		zap.Int("dimensions", ec.Dimensions),
		zap.Float64("requests_per_second", ec.RequestsPerSecond),
	)
}

// withInstruction is the outermost decorator so the cache key includes the instruction.
func withInstruction(inner *embeddinguc.InstrumentedEmbedder, instruction string) embedder {
	if instruction == "" {
		return inner
	}
	return domain.NewInstructionEmbedder(inner, instruction)
}

func (a *app) health() *healthuc.Service {
	return healthuc.New(healthuc.DefaultTimeout,
		healthuc.Database(a.store),
		healthuc.Embedding(a.provider),
		healthuc.Index(a.store, a.index.IndexName(a.cfg.Retrieval.DefaultNamespace)),
	)
}

func (a *app) extractor() *openaiTransport.Extractor {
	if !a.cfg.Extractor.Enabled {
		return nil
	}
	return openaiTransport.NewExtractor(&openaiTransport.ExtractorConfig{
		APIKey:  a.cfg.Extractor.APIKey,
		BaseURL: a.cfg.Extractor.BaseURL,
		Model:   a.cfg.Extractor.Model,
	})
}

func (a *app) ingest() *ingestuc.Service {
	return ingestuc.New(a.docEmb, a.index, a.logger).
		WithPageSize(a.cfg.Index.IngestPageSize).
		WithWorkers(a.cfg.Index.IngestWorkers)
}

// loadCatalog reads the catalog at path, or cfg.Catalog.Path when path is empty.
// required=false tolerates a missing path.
func (a *app) loadCatalog(path string, required bool) (*catalog.Catalog, error) {
	if path == "" {
		path = a.cfg.Catalog.Path
	}
	if path == "" {
		if required {
			return nil, fmt.Errorf("%w: catalog path is required", domain.ErrInvalidRequest)
		}
		return nil, nil
	}

	cat, stats, err := catalogrepo.NewLoader(a.logger).LoadFile(path)
	if err != nil {
		if required {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		a.logger.Warn("Catalog unavailable, hits will carry no product text",
			zap.String("path", path), zap.Error(err))
		return nil, nil
	}
	a.logger.Info("Catalog loaded",
		zap.String("path", path),
		zap.Int("products", stats.Loaded),
		zap.Int("skipped", stats.Skipped),
	)
	return cat, nil
}

func (a *app) Close() {
	a.store.Close()
	_ = a.logger.Sync()
}
