package index

import (
	"context"
	"testing"

	"github.com/kailas-cloud/shopsearch/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	indexExists   bool
	existsErr     error
	hsetErr       error
	dropErr       error

	dropped []string

	created []*db.IndexDefinition
	batches [][]db.HashSetItem
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	m.created = append(m.created, def)
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(_ context.Context, _ string) (bool, error) {
	return m.indexExists, m.existsErr
}

func (m *mockStore) DropIndex(_ context.Context, name string) error {
	m.dropped = append(m.dropped, name)
	return m.dropErr
}

func (m *mockStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	m.batches = append(m.batches, items)
	return m.hsetErr
}

func testConfig() Config {
	return Config{
		KeyPrefix:     "shop:",
		Dimensions:    4,
		NumericFields: []string{"price", "average_rating", "rating_number"},
		TagFields:     []string{"store", "main_category"},
	}
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, testConfig()), ms
}

func testVector() []float32 {
	return []float32{0.1, 0.2, 0.3, 0.4}
}
