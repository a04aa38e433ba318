package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/logger"
)

const extractionPrompt = `You extract structured filters from a shopper's query for a music instrument store.
Available filters: price (float), rating_number (integer), average_rating (float).
Each filter is an object with "min", "max" or both, for example
"under $100" -> {"price": {"max": 100.0}} and "at least 200 reviews" -> {"rating_number": {"min": 200}}.
"highly-rated" means {"average_rating": {"min": 4.5}}.
Include only filters the query states or clearly implies, never defaults.
Reply with a single JSON object and nothing else. Reply {} when no filter applies.`

var codeFence = regexp.MustCompile("^```(?:json)?|```$")

// ExtractorConfig holds the chat model settings for filter extraction.
type ExtractorConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Extractor turns a free-text query into raw filters with a chat model.
// It never fails: any error yields an empty map.
type Extractor struct {
	client *openai.Client
	model  string
}

// NewExtractor creates a chat-completion filter extractor.
func NewExtractor(cfg *ExtractorConfig) *Extractor {
	return &Extractor{client: newClient(cfg.APIKey, cfg.BaseURL), model: cfg.Model}
}

// Extract returns the filters the model found in query.
func (x *Extractor) Extract(ctx context.Context, query string) map[string]any {
	log := logger.FromContext(ctx)

	resp, err := x.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       x.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractionPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Query: %q", query)},
		},
	})
	if err != nil {
		log.Warn("Filter extraction failed", zap.Error(err))
		return map[string]any{}
	}
	if len(resp.Choices) == 0 {
		log.Warn("Filter extraction returned no choices")
		return map[string]any{}
	}

	filters, err := parseFilters(resp.Choices[0].Message.Content)
	if err != nil {
		log.Warn("Filter extraction returned invalid JSON", zap.Error(err))
		return map[string]any{}
	}
	log.Debug("Extracted filters", zap.Any("filters", filters))
	return filters
}

// parseFilters strips markdown fences, decodes the object and lower-cases
// top-level string values.
func parseFilters(content string) (map[string]any, error) {
	cleaned := strings.TrimSpace(codeFence.ReplaceAllString(strings.TrimSpace(content), ""))

	var m map[string]any
	if err := json.Unmarshal([]byte(cleaned), &m); err != nil {
		return nil, fmt.Errorf("decode filters: %w", err)
	}
	if m == nil {
		return map[string]any{}, nil
	}
	for k, v := range m {
		if s, ok := v.(string); ok {
			m[k] = strings.ToLower(s)
		}
	}
	return m, nil
}
