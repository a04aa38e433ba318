package shopsearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/db"
	dbRedis "github.com/kailas-cloud/shopsearch/internal/db/redis"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/result"
	indexrepo "github.com/kailas-cloud/shopsearch/internal/repository/index"
	"github.com/kailas-cloud/shopsearch/internal/retry"
	healthuc "github.com/kailas-cloud/shopsearch/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/shopsearch/internal/usecase/ingest"
	retrievaluc "github.com/kailas-cloud/shopsearch/internal/usecase/retrieval"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal use case interfaces, swapped for mocks in tests.
type searchUseCase interface {
	Search(ctx context.Context, query, namespace string, rawFilters map[string]any) ([]result.Result, error)
}

type ingestUseCase interface {
	Ingest(ctx context.Context, namespace string, products []Product) (ingestuc.Report, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the shopsearch SDK entry point. It is safe for concurrent use.
type Client struct {
	store     db.Pinger
	closeFn   func()
	namespace string
	searchSvc searchUseCase
	ingestSvc ingestUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client and connects to Redis.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("shopsearch: database address required (use WithRedis)")
	}
	if cfg.dimensions <= 0 {
		return nil, fmt.Errorf("shopsearch: dimensions must be positive, got %d", cfg.dimensions)
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Username: cfg.username,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("shopsearch: create redis store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("shopsearch: database not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}

	c, err := wireClient(store, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	index := indexrepo.New(store, indexrepo.Config{
		KeyPrefix:     cfg.keyPrefix,
		Dimensions:    cfg.dimensions,
		NumericFields: cfg.numericFields,
		TagFields:     cfg.tagFields,
		HNSW:          indexrepo.HNSWConfig{M: cfg.hnswM, EFConstruct: cfg.hnswEFConstruct},
	})

	var emb interface {
		ingestuc.Embedder
		retrievaluc.Embedder
	} = noopEmbedder{}
	if cfg.embedder != nil {
		emb = &embedderAdapter{inner: cfg.embedder}
	}

	searchSvc, err := retrievaluc.New(emb, index, filter.NewNormalizer(cfg.numericFields...), retrievaluc.Config{
		Namespace:     cfg.namespace,
		TopK:          cfg.topK,
		CacheCapacity: cfg.cacheCapacity,
		Embed:         retry.Policy{Attempts: cfg.embedAttempts, Delay: cfg.embedDelay},
	})
	if err != nil {
		return nil, fmt.Errorf("shopsearch: %w", err)
	}

	ingestSvc := ingestuc.New(emb, index, zap.NewNop())

	healthSvc := healthuc.New(healthuc.DefaultTimeout,
		healthuc.Database(store),
		healthuc.Index(store, index.IndexName(cfg.namespace)),
	)

	return &Client{
		store:     store,
		closeFn:   store.Close,
		namespace: cfg.namespace,
		searchSvc: searchSvc,
		ingestSvc: ingestSvc,
		healthSvc: healthSvc,
		obs:       obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Search queries the default namespace. See SearchNamespace.
func (c *Client) Search(ctx context.Context, query string, filters map[string]any) ([]Hit, error) {
	return c.SearchNamespace(ctx, c.namespace, query, filters)
}

// SearchNamespace returns the products closest to query in namespace.
// filters uses the loose extractor shape, e.g. {"price": {"max": 100}} or
// {"store": "not fender"}; anything unrecognized is ignored. A blank query
// returns no hits. Transport failures wrap ErrRetrievalUnavailable.
func (c *Client) SearchNamespace(
	ctx context.Context, namespace, query string, filters map[string]any,
) (hits []Hit, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err, "namespace", namespace, "hits", len(hits)) }()

	results, err := c.searchSvc.Search(ctx, query, namespace, filters)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits = make([]Hit, len(results))
	for i := range results {
		r := &results[i]
		hits[i] = Hit{ID: r.ID(), Rank: r.Rank(), Score: r.Score(), Metadata: r.Metadata()}
	}
	c.obs.searchHits(len(hits))
	return hits, nil
}

// Ingest embeds products and writes them into namespace, creating the index
// when needed. Product i gets ID strconv.Itoa(i+1), so ingesting the same
// catalog again overwrites in place.
func (c *Client) Ingest(ctx context.Context, namespace string, products []Product) (rep IngestReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", start, err, "namespace", namespace, "products", len(products)) }()

	r, err := c.ingestSvc.Ingest(ctx, namespace, products)
	if err != nil {
		return IngestReport{}, fmt.Errorf("ingest: %w", err)
	}
	return IngestReport(r), nil
}
