package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/cache"
	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/result"
	"github.com/kailas-cloud/shopsearch/internal/logger"
	"github.com/kailas-cloud/shopsearch/internal/metrics"
	"github.com/kailas-cloud/shopsearch/internal/retry"
)

// Defaults applied by New when Config leaves a field zero.
const (
	DefaultNamespace = "products"
	DefaultTopK      = 10
)

// Config tunes the service.
type Config struct {
	Namespace     string
	TopK          int
	CacheCapacity int
	Embed         retry.Policy
}

// Service turns a query plus raw filters into ranked catalog matches.
// Results are memoized per (query, namespace, normalized filters).
type Service struct {
	embed Embedder
	index Index
	norm  *filter.Normalizer
	cache *cache.Cache[[]result.Result]
	cfg   Config
}

// New creates a retrieval service. A nil normalizer uses the default numeric fields.
func New(embed Embedder, index Index, norm *filter.Normalizer, cfg Config) (*Service, error) {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Embed.Attempts <= 0 {
		cfg.Embed = retry.Default
	}
	if norm == nil {
		norm = filter.NewNormalizer()
	}

	c, err := cache.New[[]result.Result](cfg.CacheCapacity, metrics.SearchCacheTotal)
	if err != nil {
		return nil, fmt.Errorf("search cache: %w", err)
	}

	return &Service{embed: embed, index: index, norm: norm, cache: c, cfg: cfg}, nil
}

// Search returns up to TopK matches for query in namespace (default namespace
// when empty). A blank query returns nothing and touches no collaborator.
// Failures to embed or to reach the index wrap domain.ErrRetrievalUnavailable.
func (s *Service) Search(
	ctx context.Context, query, namespace string, rawFilters map[string]any,
) ([]result.Result, error) {
	if strings.TrimSpace(query) == "" {
		metrics.RetrievalSearchesTotal.WithLabelValues("empty_query").Inc()
		return []result.Result{}, nil
	}
	if namespace == "" {
		namespace = s.cfg.Namespace
	}
	ctx = logger.WithFields(ctx, zap.String("namespace", namespace))

	pred := s.Normalize(rawFilters)
	if dropped := len(rawFilters) - pred.Len(); dropped > 0 {
		metrics.FilterFieldsDroppedTotal.Add(float64(dropped))
	}
	logger.FromContext(ctx).Debug("Normalized filters",
		zap.String("predicate", pred.Canonical()),
		zap.Int("raw_fields", len(rawFilters)),
	)

	results, err := s.cache.GetOrCompute(ctx, CacheKey(query, namespace, pred),
		func(ctx context.Context) ([]result.Result, error) {
			return s.search(ctx, query, namespace, pred)
		},
	)
	if err != nil {
		metrics.RetrievalSearchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.RetrievalSearchesTotal.WithLabelValues("ok").Inc()
	return results, nil
}

// search runs one uncached search: embed, filtered query, optional
// unfiltered fallback.
func (s *Service) search(
	ctx context.Context, query, namespace string, pred filter.Predicate,
) ([]result.Result, error) {
	log := logger.FromContext(ctx)
	start := time.Now()
	defer func() {
		metrics.RetrievalSearchDuration.Observe(time.Since(start).Seconds())
	}()

	emb, err := retry.Do(ctx, s.cfg.Embed,
		func(ctx context.Context) (domain.EmbeddingResult, error) {
			return s.embed.Embed(ctx, query)
		},
		func(attempt int, err error) {
			metrics.RetrievalEmbedRetriesTotal.Inc()
			log.Warn("Query embedding failed, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", s.cfg.Embed.Attempts),
				zap.Error(err),
			)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", domain.ErrRetrievalUnavailable, err)
	}

	matches, err := s.index.Query(ctx, namespace, emb.Embedding, pred, s.cfg.TopK, true)
	switch {
	case err != nil:
		log.Warn("Filtered query failed, falling back to unfiltered",
			zap.String("predicate", pred.Canonical()),
			zap.Error(err),
		)
		metrics.RetrievalFallbackTotal.WithLabelValues("error").Inc()
	case len(matches) > 0:
		return s.shape(log, start, matches, false), nil
	case pred.IsEmpty():
		// The fallback would repeat the same unfiltered query.
		return s.shape(log, start, nil, false), nil
	default:
		log.Info("Filtered query returned nothing, falling back to unfiltered",
			zap.String("predicate", pred.Canonical()),
		)
		metrics.RetrievalFallbackTotal.WithLabelValues("empty").Inc()
	}

	matches, err = s.index.Query(ctx, namespace, emb.Embedding, filter.Predicate{}, s.cfg.TopK, true)
	if err != nil {
		return nil, fmt.Errorf("%w: unfiltered query: %w", domain.ErrRetrievalUnavailable, err)
	}
	return s.shape(log, start, matches, true), nil
}

func (s *Service) shape(
	log *zap.Logger, start time.Time, matches []result.Match, fallback bool,
) []result.Result {
	log.Info("Search completed",
		zap.Int("results", len(matches)),
		zap.Bool("fallback", fallback),
		zap.Duration("duration", time.Since(start)),
	)
	return result.FromMatches(matches)
}

// Normalize returns the predicate Search applies for rawFilters.
func (s *Service) Normalize(rawFilters map[string]any) filter.Predicate {
	return s.norm.NormalizeMap(rawFilters)
}

// CacheKey encodes (query, namespace, canonical predicate) unambiguously.
func CacheKey(query, namespace string, pred filter.Predicate) string {
	b, err := json.Marshal([]string{query, namespace, pred.Canonical()})
	if err != nil {
		return query + "\x00" + namespace + "\x00" + pred.Canonical()
	}
	return string(b)
}
