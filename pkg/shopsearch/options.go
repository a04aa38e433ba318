package shopsearch

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	username string
	password string

	embedder Embedder

	dimensions      int
	hnswM           int
	hnswEFConstruct int
	keyPrefix       string
	namespace       string
	topK            int
	cacheCapacity   int
	embedAttempts   int
	embedDelay      time.Duration
	numericFields   []string
	tagFields       []string

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

func defaultConfig() *clientConfig {
	return &clientConfig{
		dimensions:    1536,
		keyPrefix:     "shopsearch:",
		namespace:     "products",
		topK:          10,
		cacheCapacity: 1000,
		embedAttempts: 3,
		embedDelay:    time.Second,
		numericFields: []string{"price", "rating_number", "average_rating"},
		tagFields:     []string{"main_category", "store"},
	}
}

// WithRedis connects to a Redis instance with the Search module.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedisCluster connects to several seed addresses with ACL credentials.
func WithRedisCluster(addrs []string, username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = addrs
		c.username = username
		c.password = password
	})
}

// WithEmbedder sets the text embedding provider. Required for Search and Ingest.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithDimensions sets the vector dimension of created indexes. Default: 1536.
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Zero values leave the server defaults.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithKeyPrefix namespaces every Redis key. Default: "shopsearch:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithNamespace sets the namespace Search uses. Default: "products".
func WithNamespace(ns string) Option {
	return optionFunc(func(c *clientConfig) {
		c.namespace = ns
	})
}

// WithTopK sets how many hits a search returns. Default: 10.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithCacheCapacity bounds the in-process result cache. Default: 1000.
func WithCacheCapacity(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheCapacity = n
	})
}

// WithEmbedRetry sets how often a failed query embedding is retried.
// Default: 3 attempts, 1s apart.
func WithEmbedRetry(attempts int, delay time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedAttempts = attempts
		c.embedDelay = delay
	})
}

// WithFields declares the metadata fields stored with products: numeric
// fields accept min/max ranges, tag fields exact matches.
func WithFields(numeric, tag []string) Option {
	return optionFunc(func(c *clientConfig) {
		c.numericFields = numeric
		c.tagFields = tag
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
