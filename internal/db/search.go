package db

import "github.com/kailas-cloud/shopsearch/internal/domain/search/filter"

// ScoreField is the alias FT.SEARCH gives the KNN distance.
const ScoreField = "__vector_score"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName   string
	VectorField string // defaults to "vector"
	Filter      filter.Predicate
	// Schema types the filterable fields. A condition on a field outside a
	// non-nil Schema can never match; nil Schema infers types from operands.
	Schema       map[string]IndexFieldType
	Vector       []float32
	K            int
	ReturnFields []string // nil returns every stored field
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit, in index rank order.
type SearchEntry struct {
	Key    string
	Score  float64 // cosine similarity, 1 is identical
	Fields map[string]string
}
