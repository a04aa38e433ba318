package retrieval

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/result"
	"github.com/kailas-cloud/shopsearch/internal/logger"
	"github.com/kailas-cloud/shopsearch/internal/retry"
)

// --- Mocks ---

type mockEmbedder struct {
	vec   []float32
	errs  []error // consumed one per call; nil entry or exhausted slice means success
	calls atomic.Int32
	gate  chan struct{}
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	n := int(m.calls.Add(1))
	if m.gate != nil {
		<-m.gate
	}
	if n <= len(m.errs) && m.errs[n-1] != nil {
		return domain.EmbeddingResult{}, m.errs[n-1]
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

type indexCall struct {
	namespace       string
	pred            filter.Predicate
	topK            int
	includeMetadata bool
}

type indexReply struct {
	matches []result.Match
	err     error
}

type mockIndex struct {
	mu      sync.Mutex
	replies []indexReply // consumed in order; the last one repeats
	calls   []indexCall
}

func (m *mockIndex) Query(
	_ context.Context, namespace string, _ []float32,
	pred filter.Predicate, topK int, includeMetadata bool,
) ([]result.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, indexCall{namespace, pred, topK, includeMetadata})
	if len(m.replies) == 0 {
		return nil, nil
	}
	i := min(len(m.calls), len(m.replies)) - 1
	return m.replies[i].matches, m.replies[i].err
}

func (m *mockIndex) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func matches(ids ...string) []result.Match {
	out := make([]result.Match, len(ids))
	for i, id := range ids {
		out[i] = result.Match{ID: id, Score: 1 - float64(i)/10, Metadata: map[string]any{"store": "s" + id}}
	}
	return out
}

func newService(t *testing.T, emb Embedder, idx Index) *Service {
	t.Helper()
	svc, err := New(emb, idx, nil, Config{Embed: retry.Policy{Attempts: 3}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

// --- Tests ---

func TestSearch_EmptyQueryTouchesNothing(t *testing.T) {
	emb := &mockEmbedder{vec: []float32{1}}
	idx := &mockIndex{}
	svc := newService(t, emb, idx)

	for _, q := range []string{"", "   "} {
		got, err := svc.Search(context.Background(), q, "", map[string]any{"price": map[string]any{"max": 10.0}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no results, got %d", len(got))
		}
	}

	if emb.calls.Load() != 0 {
		t.Errorf("embedder called %d times", emb.calls.Load())
	}
	if idx.callCount() != 0 {
		t.Errorf("index called %d times", idx.callCount())
	}
	if svc.cache.Len() != 0 {
		t.Errorf("cache has %d entries", svc.cache.Len())
	}
}

func TestSearch_FilteredHit(t *testing.T) {
	emb := &mockEmbedder{vec: []float32{0.1, 0.2}}
	idx := &mockIndex{replies: []indexReply{{matches: matches("7", "3")}}}
	svc := newService(t, emb, idx)

	got, err := svc.Search(context.Background(), "guitar strings", "", map[string]any{
		"store": "not fender",
		"price": map[string]any{"min": 5.0, "max": 30.0},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID() != "7" || got[1].ID() != "3" {
		t.Fatalf("unexpected results: %+v", got)
	}
	if got[0].Rank() != 1 || got[1].Rank() != 2 {
		t.Errorf("ranks = %d, %d", got[0].Rank(), got[1].Rank())
	}

	if idx.callCount() != 1 {
		t.Fatalf("index called %d times, want 1", idx.callCount())
	}
	call := idx.calls[0]
	if call.namespace != DefaultNamespace {
		t.Errorf("namespace = %q", call.namespace)
	}
	if call.topK != DefaultTopK {
		t.Errorf("topK = %d", call.topK)
	}
	if !call.includeMetadata {
		t.Error("metadata must be requested")
	}
	want := `{"price":{"$gte":5,"$lte":30},"store":{"$ne":"fender"}}`
	if call.pred.Canonical() != want {
		t.Errorf("predicate = %s, want %s", call.pred.Canonical(), want)
	}
}

func TestSearch_FallbackOnEmptyFilteredResult(t *testing.T) {
	emb := &mockEmbedder{vec: []float32{0.5}}
	idx := &mockIndex{replies: []indexReply{
		{matches: nil},
		{matches: matches("11", "4", "9", "2", "30")},
	}}
	svc := newService(t, emb, idx)

	got, err := svc.Search(context.Background(), "cello mic", "", map[string]any{
		"price": map[string]any{"max": 10.0},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 results, got %d", len(got))
	}
	for i, want := range []string{"11", "4", "9", "2", "30"} {
		if got[i].ID() != want || got[i].Rank() != i+1 {
			t.Errorf("[%d] = %s rank %d, want %s rank %d", i, got[i].ID(), got[i].Rank(), want, i+1)
		}
	}

	if idx.callCount() != 2 {
		t.Fatalf("index called %d times, want 2", idx.callCount())
	}
	if idx.calls[0].pred.IsEmpty() {
		t.Error("first query must carry the filter")
	}
	if !idx.calls[1].pred.IsEmpty() {
		t.Errorf("fallback must be unfiltered, got %s", idx.calls[1].pred.Canonical())
	}
	if emb.calls.Load() != 1 {
		t.Errorf("embedding reused across phases, got %d calls", emb.calls.Load())
	}
}

func TestSearch_FallbackAttemptedOnce(t *testing.T) {
	idx := &mockIndex{replies: []indexReply{{matches: nil}}}
	svc := newService(t, &mockEmbedder{vec: []float32{1}}, idx)

	got, err := svc.Search(context.Background(), "theremin", "", map[string]any{"store": "moog"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty results, got %d", len(got))
	}
	if idx.callCount() != 2 {
		t.Errorf("index called %d times, want 2", idx.callCount())
	}
}

func TestSearch_NoFallbackWithoutFilters(t *testing.T) {
	idx := &mockIndex{replies: []indexReply{{matches: nil}}}
	svc := newService(t, &mockEmbedder{vec: []float32{1}}, idx)

	if _, err := svc.Search(context.Background(), "theremin", "", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.callCount() != 1 {
		t.Errorf("index called %d times, want 1", idx.callCount())
	}
}

func TestSearch_FallbackAfterFilteredError(t *testing.T) {
	idx := &mockIndex{replies: []indexReply{
		{err: domain.ErrIndexUnavailable},
		{matches: matches("5")},
	}}
	svc := newService(t, &mockEmbedder{vec: []float32{1}}, idx)

	got, err := svc.Search(context.Background(), "drum sticks", "", map[string]any{"store": "vic firth"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID() != "5" {
		t.Errorf("unexpected results: %+v", got)
	}
	if idx.callCount() != 2 {
		t.Errorf("index called %d times, want 2", idx.callCount())
	}
}

func TestSearch_BothQueriesFail(t *testing.T) {
	idx := &mockIndex{replies: []indexReply{{err: domain.ErrIndexUnavailable}}}
	emb := &mockEmbedder{vec: []float32{1}}
	svc := newService(t, emb, idx)
	raw := map[string]any{"store": "roland"}

	_, err := svc.Search(context.Background(), "synth", "", raw)
	if !errors.Is(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected ErrRetrievalUnavailable, got %v", err)
	}
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("cause lost: %v", err)
	}
	if idx.callCount() != 2 {
		t.Errorf("index called %d times, want 2", idx.callCount())
	}
	if svc.cache.Contains(CacheKey("synth", DefaultNamespace, filter.NewNormalizer().NormalizeMap(raw))) {
		t.Error("failed search must not be cached")
	}
}

func TestSearch_EmbeddingExhaustsRetries(t *testing.T) {
	fail := domain.ErrEmbeddingUnavailable
	emb := &mockEmbedder{vec: []float32{1}, errs: []error{fail, fail, fail}}
	idx := &mockIndex{replies: []indexReply{{matches: matches("1")}}}
	svc := newService(t, emb, idx)
	raw := map[string]any{"price": map[string]any{"max": 50.0}}

	_, err := svc.Search(context.Background(), "ukulele", "", raw)
	if !errors.Is(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected ErrRetrievalUnavailable, got %v", err)
	}
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Errorf("last failure not surfaced: %v", err)
	}
	if emb.calls.Load() != 3 {
		t.Errorf("embed attempts = %d, want 3", emb.calls.Load())
	}
	if idx.callCount() != 0 {
		t.Errorf("index must not be queried, got %d calls", idx.callCount())
	}
	key := CacheKey("ukulele", DefaultNamespace, filter.NewNormalizer().NormalizeMap(raw))
	if svc.cache.Contains(key) {
		t.Fatal("failed search must not be cached")
	}

	got, err := svc.Search(context.Background(), "ukulele", "", raw)
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	if emb.calls.Load() != 4 {
		t.Errorf("second search must re-embed, total calls = %d", emb.calls.Load())
	}
	if len(got) != 1 {
		t.Errorf("expected 1 result, got %d", len(got))
	}
}

func TestSearch_EmbeddingRecoversWithinRetries(t *testing.T) {
	emb := &mockEmbedder{vec: []float32{1}, errs: []error{errors.New("timeout"), nil}}
	idx := &mockIndex{replies: []indexReply{{matches: matches("8")}}}
	svc := newService(t, emb, idx)

	got, err := svc.Search(context.Background(), "banjo", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || emb.calls.Load() != 2 {
		t.Errorf("results = %d, embed calls = %d", len(got), emb.calls.Load())
	}
}

func TestSearch_ConcurrentIdenticalSearchesShareWork(t *testing.T) {
	emb := &mockEmbedder{vec: []float32{1}, gate: make(chan struct{})}
	idx := &mockIndex{replies: []indexReply{{matches: matches("1", "2")}}}
	svc := newService(t, emb, idx)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	got := make([][]result.Result, 2)
	for i := range 2 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Key order differs; the canonical predicate must not.
			raw := map[string]any{"store": "boss", "price": map[string]any{"max": 99.0}}
			if i == 1 {
				raw = map[string]any{"price": map[string]any{"max": 99.0}, "store": "boss"}
			}
			got[i], errs[i] = svc.Search(context.Background(), "pedal", "effects", raw)
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(emb.gate)
	wg.Wait()

	for i := range 2 {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if len(got[i]) != 2 {
			t.Errorf("caller %d: %d results", i, len(got[i]))
		}
	}
	if n := emb.calls.Load(); n != 1 {
		t.Errorf("embed calls = %d, want 1", n)
	}
	if n := idx.callCount(); n != 1 {
		t.Errorf("index calls = %d, want 1", n)
	}
}

func TestSearch_DistinctKeysComputeSeparately(t *testing.T) {
	emb := &mockEmbedder{vec: []float32{1}}
	idx := &mockIndex{replies: []indexReply{{matches: matches("1")}}}
	svc := newService(t, emb, idx)
	ctx := context.Background()

	_, _ = svc.Search(ctx, "mic", "", nil)
	_, _ = svc.Search(ctx, "mic", "other", nil)
	_, _ = svc.Search(ctx, "mic", "", map[string]any{"store": "shure"})
	_, _ = svc.Search(ctx, "mic", "", nil)

	if n := emb.calls.Load(); n != 3 {
		t.Errorf("embed calls = %d, want 3", n)
	}
	if svc.cache.Len() != 3 {
		t.Errorf("cache entries = %d, want 3", svc.cache.Len())
	}
}

func TestSearch_CacheBounded(t *testing.T) {
	emb := &mockEmbedder{vec: []float32{1}}
	idx := &mockIndex{replies: []indexReply{{matches: matches("1")}}}
	svc, err := New(emb, idx, nil, Config{CacheCapacity: 2, Embed: retry.Policy{Attempts: 1}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := range 5 {
		if _, err := svc.Search(context.Background(), "q"+strconv.Itoa(i), "", nil); err != nil {
			t.Fatalf("search %d: %v", i, err)
		}
	}
	if svc.cache.Len() != 2 {
		t.Errorf("cache entries = %d, want 2", svc.cache.Len())
	}
}

func TestCacheKey(t *testing.T) {
	n := filter.NewNormalizer()
	a := CacheKey("q", "ns", n.NormalizeMap(map[string]any{"store": "a", "price": 1.0}))
	b := CacheKey("q", "ns", n.NormalizeMap(map[string]any{"price": 1.0, "store": "a"}))
	if a != b {
		t.Errorf("equal predicates produced different keys:\n%s\n%s", a, b)
	}

	// Separators inside components must not collide.
	if CacheKey("a\",\"b", "c", filter.Predicate{}) == CacheKey("a", "b\",\"c", filter.Predicate{}) {
		t.Error("ambiguous key encoding")
	}
	if CacheKey("q", "ns", filter.Predicate{}) == CacheKey("q", "ns2", filter.Predicate{}) {
		t.Error("namespace ignored")
	}
}

func TestSearch_LogsCarryNamespace(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := logger.ContextWithLogger(context.Background(), zap.New(core))
	idx := &mockIndex{replies: []indexReply{{}, {matches: matches("3")}}}
	svc := newService(t, &mockEmbedder{vec: []float32{1}}, idx)

	_, err := svc.Search(ctx, "red guitar", "", map[string]any{"store": "fender"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logs.Len() == 0 {
		t.Fatal("expected log entries")
	}
	for _, e := range logs.All() {
		if e.ContextMap()["namespace"] != DefaultNamespace {
			t.Errorf("%q: namespace = %v", e.Message, e.ContextMap()["namespace"])
		}
	}
}
