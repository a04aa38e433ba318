package index

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/shopsearch/internal/db"
	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/result"
)

const (
	vectorField = "vector"
	// tagSeparator splits multi-valued TAG fields. Store names contain commas,
	// so the server default "," cannot be used.
	tagSeparator = "|"
	// upsertBatch is the number of records sent per HSET pipeline.
	upsertBatch = 128
)

// store is the consumer interface for the vector index (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	DropIndex(ctx context.Context, name string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
}

// HNSWConfig holds HNSW graph build parameters. Zero values use server defaults.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Config describes how namespaces map onto Redis keys and index schema.
type Config struct {
	KeyPrefix     string
	Dimensions    int
	NumericFields []string
	TagFields     []string
	HNSW          HNSWConfig
	// Flat selects brute-force vector search instead of HNSW.
	Flat bool
}

// Repo is the vector index gateway: one FT index per namespace over HASH keys.
type Repo struct {
	store  store
	cfg    Config
	schema map[string]db.IndexFieldType
	fields []string
}

// New creates an index repository.
func New(s store, cfg Config) *Repo {
	schema := make(map[string]db.IndexFieldType, len(cfg.NumericFields)+len(cfg.TagFields))
	fields := make([]string, 0, len(cfg.NumericFields)+len(cfg.TagFields))
	for _, f := range cfg.NumericFields {
		schema[f] = db.IndexFieldNumeric
		fields = append(fields, f)
	}
	for _, f := range cfg.TagFields {
		schema[f] = db.IndexFieldTag
		fields = append(fields, f)
	}
	return &Repo{store: s, cfg: cfg, schema: schema, fields: fields}
}

// Query runs a KNN search in namespace, pre-filtered by pred, nearest first.
func (r *Repo) Query(
	ctx context.Context, namespace string,
	vector []float32, pred filter.Predicate, topK int, includeMetadata bool,
) ([]result.Match, error) {
	returnFields := []string{}
	if includeMetadata {
		returnFields = r.fields
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.IndexName(namespace),
		VectorField:  vectorField,
		Filter:       pred,
		Schema:       r.schema,
		Vector:       vector,
		K:            topK,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %w", domain.ErrIndexUnavailable, namespace, err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	prefix := r.keyPrefix(namespace)
	matches := make([]result.Match, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		m := result.Match{ID: strings.TrimPrefix(e.Key, prefix), Score: e.Score}
		if includeMetadata {
			m.Metadata = r.decodeMetadata(e.Fields)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// EnsureIndex creates the namespace index unless it already exists.
func (r *Repo) EnsureIndex(ctx context.Context, namespace string) error {
	name := r.IndexName(namespace)
	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: check index %s: %w", domain.ErrIndexUnavailable, name, err)
	}
	if exists {
		return nil
	}

	b := db.NewIndex(name).
		Prefix(r.keyPrefix(namespace)).
		Numeric(r.cfg.NumericFields...)
	for _, f := range r.cfg.TagFields {
		b = b.TagWithOpts(f, tagSeparator, false)
	}
	if r.cfg.Flat {
		b = b.VectorFlat(vectorField, r.cfg.Dimensions, db.DistanceCosine)
	} else {
		b = b.VectorHNSW(vectorField, r.cfg.Dimensions, db.DistanceCosine, r.cfg.HNSW.M, r.cfg.HNSW.EFConstruct)
	}
	def, err := b.Build()
	if err != nil {
		return fmt.Errorf("build index %s: %w", name, err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil // lost a creation race
		}
		return fmt.Errorf("%w: create index %s: %w", domain.ErrIndexUnavailable, name, err)
	}
	return nil
}

// DropIndex removes the namespace index. Stored hashes are kept, so a
// following EnsureIndex re-indexes them under the new schema. A missing index
// is not an error.
func (r *Repo) DropIndex(ctx context.Context, namespace string) error {
	name := r.IndexName(namespace)
	if err := r.store.DropIndex(ctx, name); err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil
		}
		return fmt.Errorf("%w: drop index %s: %w", domain.ErrIndexUnavailable, name, err)
	}
	return nil
}

// Upsert writes records into namespace in pipelines of upsertBatch.
func (r *Repo) Upsert(ctx context.Context, namespace string, records []domain.VectorRecord) error {
	prefix := r.keyPrefix(namespace)
	for start := 0; start < len(records); start += upsertBatch {
		end := min(start+upsertBatch, len(records))

		items := make([]db.HashSetItem, 0, end-start)
		for i := start; i < end; i++ {
			rec := &records[i]
			if rec.ID == "" {
				return fmt.Errorf("record %d: %w: empty id", i, domain.ErrInvalidRequest)
			}
			if len(rec.Vector) != r.cfg.Dimensions {
				return fmt.Errorf("record %s: %w: vector has %d dimensions, want %d",
					rec.ID, domain.ErrInvalidRequest, len(rec.Vector), r.cfg.Dimensions)
			}
			items = append(items, db.HashSetItem{Key: prefix + rec.ID, Fields: encodeFields(rec)})
		}

		if err := r.store.HSetMulti(ctx, items); err != nil {
			return fmt.Errorf("%w: upsert %s [%d:%d]: %w", domain.ErrIndexUnavailable, namespace, start, end, err)
		}
	}
	return nil
}

// IndexName returns the FT index name serving namespace.
func (r *Repo) IndexName(namespace string) string {
	return r.cfg.KeyPrefix + "idx:" + namespace
}

func (r *Repo) keyPrefix(namespace string) string {
	return r.cfg.KeyPrefix + namespace + ":"
}

// decodeMetadata restores numeric fields as float64, everything else as text.
func (r *Repo) decodeMetadata(fields map[string]string) map[string]any {
	m := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == vectorField {
			continue
		}
		if r.schema[k] == db.IndexFieldNumeric {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				m[k] = f
				continue
			}
		}
		m[k] = v
	}
	return m
}

func encodeFields(rec *domain.VectorRecord) map[string]string {
	m := make(map[string]string, len(rec.Metadata)+1)
	m[vectorField] = vectorToBytes(rec.Vector)
	for k, v := range rec.Metadata {
		switch t := v.(type) {
		case nil:
		case string:
			m[k] = t
		case float64:
			m[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case int:
			m[k] = strconv.Itoa(t)
		case bool:
			m[k] = strconv.FormatBool(t)
		default:
			m[k] = fmt.Sprint(t)
		}
	}
	return m
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
