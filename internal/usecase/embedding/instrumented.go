package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/metrics"
)

// DefaultMaxAPIBatchSize is the largest number of texts sent in one provider call.
const DefaultMaxAPIBatchSize = 256

// NewLimiter builds a provider request limiter. A non-positive rps disables limiting.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), max(burst, 1))
}

// InstrumentedEmbedder wraps Embedder with request throttling and logging.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai;
// this layer owns throttle wait time.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder. limiter may be nil.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	limiter *rate.Limiter, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		limiter:  limiter,
		logger:   logger,
	}
}

// Embed waits for a limiter slot and delegates to the inner embedder.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	if err := p.throttle(ctx); err != nil {
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// BatchEmbed splits texts into provider-sized chunks, throttling each one.
func (p *InstrumentedEmbedder) BatchEmbed(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()

	result, err := p.embedChunked(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	p.logger.Debug("Batch embedding completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

func (p *InstrumentedEmbedder) embedChunked(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}

	for offset := 0; offset < len(texts); offset += DefaultMaxAPIBatchSize {
		if err := p.throttle(ctx); err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("chunk %d: %w", offset, err)
		}

		end := min(offset+DefaultMaxAPIBatchSize, len(texts))
		chunk := texts[offset:end]

		chunkResult, err := p.embedInner(ctx, chunk)
		if err != nil {
			p.logger.Error("Batch embedding request failed",
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}

		out.Embeddings = append(out.Embeddings, chunkResult.Embeddings...)
		out.PromptTokens += chunkResult.PromptTokens
		out.TotalTokens += chunkResult.TotalTokens
	}

	return out, nil
}

func (p *InstrumentedEmbedder) embedInner(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	if be, ok := p.inner.(domain.BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("inner batch embed: %w", err)
		}
		return res, nil
	}
	res, err := domain.BatchFallback(ctx, p.inner, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("inner batch fallback: %w", err)
	}
	return res, nil
}

// throttle blocks until the limiter admits one request.
func (p *InstrumentedEmbedder) throttle(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	start := time.Now()
	err := p.limiter.Wait(ctx)
	metrics.EmbeddingThrottleWait.WithLabelValues(p.provider).Observe(time.Since(start).Seconds())
	if err != nil {
		p.logger.Warn("Embedding request throttled",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	}
	return nil
}
