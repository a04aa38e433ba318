package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the shopsearch configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Index     IndexConfig     `yaml:"index"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds the embedding provider and model settings.
type EmbeddingConfig struct {
	Provider            string  `yaml:"provider"`
	APIKey              string  `yaml:"api_key"`
	BaseURL             string  `yaml:"base_url"`
	Model               string  `yaml:"model"`
	Dimensions          int     `yaml:"dimensions"`
	QueryInstruction    string  `yaml:"query_instruction"`
	DocumentInstruction string  `yaml:"document_instruction"`
	RequestsPerSecond   float64 `yaml:"requests_per_second"` // 0 = unlimited
	Burst               int     `yaml:"burst"`
	CacheTTLHours       int     `yaml:"cache_ttl_hours"` // 0 = never expire
}

// RetrievalConfig holds search behavior settings.
type RetrievalConfig struct {
	DefaultNamespace  string   `yaml:"default_namespace"`
	TopK              int      `yaml:"top_k"`
	CacheCapacity     int      `yaml:"cache_capacity"`
	EmbedAttempts     int      `yaml:"embed_attempts"`
	EmbedRetryDelayMs int      `yaml:"embed_retry_delay_ms"`
	NumericFields     []string `yaml:"numeric_fields"`
	TagFields         []string `yaml:"tag_fields"`
}

// EmbedRetryDelay returns the delay between embedding attempts.
func (r RetrievalConfig) EmbedRetryDelay() time.Duration {
	return time.Duration(r.EmbedRetryDelayMs) * time.Millisecond
}

// ExtractorConfig holds settings for chat-model filter extraction.
// APIKey and BaseURL default to the embedding provider's.
type ExtractorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// CatalogConfig locates the product catalog.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// IndexConfig holds vector index build and ingestion settings.
type IndexConfig struct {
	Algorithm       string `yaml:"algorithm"` // hnsw or flat
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	IngestPageSize  int    `yaml:"ingest_page_size"`
	IngestWorkers   int    `yaml:"ingest_workers"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	c.applyEmbeddingDefaults()
	c.applyRetrievalDefaults()

	if c.Extractor.Model == "" {
		c.Extractor.Model = "gpt-4o-mini"
	}
	if c.Extractor.APIKey == "" {
		c.Extractor.APIKey = c.Embedding.APIKey
	}
	if c.Extractor.BaseURL == "" {
		c.Extractor.BaseURL = c.Embedding.BaseURL
	}
	if c.Index.Algorithm == "" {
		c.Index.Algorithm = "hnsw"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Index.IngestPageSize <= 0 {
		c.Index.IngestPageSize = 512
	}
	if c.Index.IngestWorkers <= 0 {
		c.Index.IngestWorkers = 2
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "shopsearch:"
	}
}

func (c *Config) applyEmbeddingDefaults() {
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = 1536
	}
}

func (c *Config) applyRetrievalDefaults() {
	r := &c.Retrieval
	if r.DefaultNamespace == "" {
		r.DefaultNamespace = "products"
	}
	if r.TopK == 0 {
		r.TopK = 10
	}
	if r.CacheCapacity == 0 {
		r.CacheCapacity = 1000
	}
	if r.EmbedAttempts == 0 {
		r.EmbedAttempts = 3
	}
	if r.EmbedRetryDelayMs == 0 {
		r.EmbedRetryDelayMs = 1000
	}
	if len(r.NumericFields) == 0 {
		r.NumericFields = []string{"price", "rating_number", "average_rating"}
	}
	if len(r.TagFields) == 0 {
		r.TagFields = []string{"main_category", "store"}
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Database.Driver != "redis" {
		return fmt.Errorf("database.driver must be \"redis\", got %q", c.Database.Driver)
	}
	if len(c.Database.Addrs) == 0 {
		return errors.New("database.addrs is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.RequestsPerSecond < 0 {
		return fmt.Errorf("embedding.requests_per_second must not be negative, got %v", c.Embedding.RequestsPerSecond)
	}
	if c.Index.Algorithm != "hnsw" && c.Index.Algorithm != "flat" {
		return fmt.Errorf("index.algorithm must be \"hnsw\" or \"flat\", got %q", c.Index.Algorithm)
	}
	return c.Retrieval.validate()
}

func (r *RetrievalConfig) validate() error {
	switch {
	case r.TopK <= 0:
		return fmt.Errorf("retrieval.top_k must be positive, got %d", r.TopK)
	case r.CacheCapacity <= 0:
		return fmt.Errorf("retrieval.cache_capacity must be positive, got %d", r.CacheCapacity)
	case r.EmbedAttempts < 1:
		return fmt.Errorf("retrieval.embed_attempts must be at least 1, got %d", r.EmbedAttempts)
	case r.EmbedRetryDelayMs < 0:
		return fmt.Errorf("retrieval.embed_retry_delay_ms must not be negative, got %d", r.EmbedRetryDelayMs)
	}

	seen := make(map[string]bool, len(r.NumericFields)+len(r.TagFields))
	for _, f := range append(append([]string(nil), r.NumericFields...), r.TagFields...) {
		if seen[f] {
			return fmt.Errorf("retrieval field %q is listed twice", f)
		}
		seen[f] = true
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// relative to this source file, for tests and go run
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
