package ingest

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/catalog"
)

type mockEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
	short bool
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	n := len(texts)
	if m.short {
		n--
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, n), TotalTokens: n}
	for i := range out.Embeddings {
		out.Embeddings[i] = []float32{float32(i)}
	}
	return out, nil
}

type mockIndex struct {
	mu        sync.Mutex
	ensured   []string
	ensureErr error
	dropErr   error
	dropped   []string
	upsertErr error
	records   []domain.VectorRecord
}

func (m *mockIndex) EnsureIndex(_ context.Context, namespace string) error {
	m.ensured = append(m.ensured, namespace)
	return m.ensureErr
}

func (m *mockIndex) DropIndex(_ context.Context, namespace string) error {
	m.dropped = append(m.dropped, namespace)
	return m.dropErr
}

func (m *mockIndex) Upsert(_ context.Context, _ string, records []domain.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.records = append(m.records, records...)
	return nil
}

func products(n int) []catalog.Product {
	out := make([]catalog.Product, n)
	for i := range out {
		out[i] = catalog.Product{Title: "p" + strconv.Itoa(i+1), Price: float64(i), Store: "boss"}
	}
	return out
}

func TestIngest_AllPages(t *testing.T) {
	emb := &mockEmbedder{}
	idx := &mockIndex{}
	svc := New(emb, idx, zap.NewNop()).WithPageSize(4).WithWorkers(3)

	report, err := svc.Ingest(context.Background(), "products", products(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Products != 10 || report.Upserted != 10 || report.Tokens != 10 {
		t.Errorf("report = %+v", report)
	}
	if emb.calls != 3 {
		t.Errorf("expected 3 embed calls, got %d", emb.calls)
	}
	if len(idx.ensured) != 1 || idx.ensured[0] != "products" {
		t.Errorf("ensured = %v", idx.ensured)
	}

	ids := make([]int, 0, len(idx.records))
	for _, r := range idx.records {
		id, _ := strconv.Atoi(r.ID)
		ids = append(ids, id)
		if r.Metadata["store"] != "boss" {
			t.Errorf("record %s metadata = %v", r.ID, r.Metadata)
		}
	}
	sort.Ints(ids)
	for i, id := range ids {
		if id != i+1 {
			t.Fatalf("ids = %v, want 1..10", ids)
		}
	}
}

func TestIngest_EnsureIndexFails(t *testing.T) {
	emb := &mockEmbedder{}
	idx := &mockIndex{ensureErr: domain.ErrIndexUnavailable}

	_, err := New(emb, idx, zap.NewNop()).Ingest(context.Background(), "products", products(3))
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
	if emb.calls != 0 {
		t.Error("nothing must be embedded without an index")
	}
}

func TestIngest_EmbedFails(t *testing.T) {
	emb := &mockEmbedder{err: domain.ErrEmbeddingUnavailable}
	idx := &mockIndex{}

	report, err := New(emb, idx, zap.NewNop()).WithWorkers(1).Ingest(context.Background(), "products", products(3))
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if report.Upserted != 0 {
		t.Errorf("upserted = %d", report.Upserted)
	}
}

func TestIngest_VectorCountMismatch(t *testing.T) {
	_, err := New(&mockEmbedder{short: true}, &mockIndex{}, zap.NewNop()).
		Ingest(context.Background(), "products", products(3))
	if err == nil {
		t.Fatal("expected error on vector count mismatch")
	}
}

func TestIngest_UpsertFails(t *testing.T) {
	idx := &mockIndex{upsertErr: errors.New("broken pipe")}
	_, err := New(&mockEmbedder{}, idx, zap.NewNop()).Ingest(context.Background(), "products", products(3))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestIngest_RequiresNamespace(t *testing.T) {
	_, err := New(&mockEmbedder{}, &mockIndex{}, zap.NewNop()).Ingest(context.Background(), "", products(1))
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestIngest_Empty(t *testing.T) {
	emb := &mockEmbedder{}
	report, err := New(emb, &mockIndex{}, zap.NewNop()).Ingest(context.Background(), "products", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Upserted != 0 || emb.calls != 0 {
		t.Errorf("report = %+v, calls = %d", report, emb.calls)
	}
}

func TestReindex_DropsThenIngests(t *testing.T) {
	idx := &mockIndex{}
	svc := New(&mockEmbedder{}, idx, zap.NewNop())

	report, err := svc.Reindex(context.Background(), "products", products(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(idx.dropped) != 1 || idx.dropped[0] != "products" {
		t.Errorf("dropped = %v", idx.dropped)
	}
	if len(idx.ensured) != 1 || report.Upserted != 3 {
		t.Errorf("ensured = %v, upserted = %d", idx.ensured, report.Upserted)
	}
}

func TestReindex_DropFails(t *testing.T) {
	idx := &mockIndex{dropErr: domain.ErrIndexUnavailable}
	svc := New(&mockEmbedder{}, idx, zap.NewNop())

	if _, err := svc.Reindex(context.Background(), "products", products(3)); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
	if len(idx.ensured) != 0 {
		t.Error("ingest must not run after a failed drop")
	}
}
