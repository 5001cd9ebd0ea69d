package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Client abstracts analysis providers.
type Client interface {
	AnalyzeCompany(ctx context.Context, input AnalyzeInput) (Result, error)
}

// AnalyzeInput captures the inputs for one company analysis request.
type AnalyzeInput struct {
	CompanyName      string
	TickerSymbol     string
	Description      string
	TherapeuticAreas []string
	// NewsContext is the collected source material the provider analyzes.
	NewsContext string
}

// Usage is the provider's token accounting for one request.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Result is the raw provider output plus request metadata.
type Result struct {
	Raw   json.RawMessage
	Usage Usage
	Model string
	// RetryCount is how many retries were spent before this result. Zero for
	// a first-attempt success.
	RetryCount int
}

// PlaceholderClient fails every request. It keeps the wiring intact when no
// provider is configured.
type PlaceholderClient struct{}

// AnalyzeCompany always returns a configuration error.
func (PlaceholderClient) AnalyzeCompany(context.Context, AnalyzeInput) (Result, error) {
	return Result{}, errors.New("llm client not configured")
}

var _ Client = PlaceholderClient{}
