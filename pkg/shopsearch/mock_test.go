package shopsearch

import (
	"context"

	"github.com/kailas-cloud/shopsearch/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/shopsearch/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/shopsearch/internal/usecase/ingest"
)

// --- searchUseCase mock ---

type mockSearchUC struct {
	searchFn func(ctx context.Context, query, namespace string, filters map[string]any) ([]result.Result, error)
}

func (m *mockSearchUC) Search(
	ctx context.Context, query, namespace string, filters map[string]any,
) ([]result.Result, error) {
	return m.searchFn(ctx, query, namespace, filters)
}

// --- ingestUseCase mock ---

type mockIngestUC struct {
	ingestFn func(ctx context.Context, namespace string, products []Product) (ingestuc.Report, error)
}

func (m *mockIngestUC) Ingest(ctx context.Context, namespace string, products []Product) (ingestuc.Report, error) {
	return m.ingestFn(ctx, namespace, products)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- pinger mock ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(context.Context) error { return m.err }

// --- embedder mocks ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

type mockBatchEmbedder struct {
	mockEmbedder
	batchFn func(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

func (m *mockBatchEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	return m.batchFn(ctx, texts)
}

// --- helpers ---

func testClient(searchSvc searchUseCase, ingestSvc ingestUseCase, healthSvc healthUseCase) *Client {
	return &Client{
		store:     &mockPinger{},
		namespace: "products",
		searchSvc: searchSvc,
		ingestSvc: ingestSvc,
		healthSvc: healthSvc,
	}
}
