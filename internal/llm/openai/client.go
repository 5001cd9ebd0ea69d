package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"insights-backend/internal/llm"
	"insights-backend/internal/shared/metrics"
	"insights-backend/internal/shared/telemetry"
)

const apiURL = "https://api.openai.com/v1/chat/completions"

// Config holds OpenAI client settings.
type Config struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client implements llm.Client using OpenAI Chat Completions.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    *float64       `json:"temperature,omitempty"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// AnalyzeCompany sends one analysis request and returns the raw structured
// response with token usage.
func (c *Client) AnalyzeCompany(ctx context.Context, input llm.AnalyzeInput) (llm.Result, error) {
	messages := llm.BuildAnalysisPrompt(input)
	reqMessages := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		reqMessages = append(reqMessages, chatMessage{Role: m.Role, Content: m.Content})
	}
	temp := c.cfg.Temperature
	reqBody := chatRequest{
		Model:          c.cfg.Model,
		Messages:       reqMessages,
		Temperature:    &temp,
		MaxTokens:      c.cfg.MaxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return llm.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return llm.Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	metrics.IncLLMRequest()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return llm.Result{}, &llm.ProviderError{Code: llm.ErrorCodeTimeout, Retryable: true, Err: err}
		}
		return llm.Result{}, &llm.ProviderError{Code: llm.ErrorCodeProvider, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Result{}, &llm.ProviderError{Code: llm.ErrorCodeProvider, Retryable: true, Err: err}
	}

	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return llm.Result{}, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return llm.Result{}, &llm.ValidationError{Reason: "openai response parse: " + err.Error()}
	}
	if parsed.Error != nil {
		return llm.Result{}, &llm.ProviderError{
			Code: llm.ErrorCodeProvider,
			Err:  fmt.Errorf("openai error: %s (%s)", parsed.Error.Message, parsed.Error.Type),
		}
	}
	if len(parsed.Choices) == 0 {
		return llm.Result{}, &llm.ValidationError{Reason: "openai response missing choices"}
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return llm.Result{}, &llm.ValidationError{Reason: "openai response empty content"}
	}

	result := llm.Result{
		Raw:   json.RawMessage(content),
		Model: parsed.Model,
	}
	if result.Model == "" {
		result.Model = c.cfg.Model
	}
	if parsed.Usage != nil {
		result.Usage = llm.Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		}
		metrics.AddLLMTokens(parsed.Usage.TotalTokens)
	}
	telemetry.Info("llm response", map[string]any{
		"model":             result.Model,
		"company":           input.CompanyName,
		"prompt_tokens":     result.Usage.PromptTokens,
		"completion_tokens": result.Usage.CompletionTokens,
		"total_tokens":      result.Usage.TotalTokens,
	})
	return result, nil
}

func classifyStatus(status int, body []byte) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusTooManyRequests:
		return &llm.ProviderError{
			Code:       llm.ErrorCodeRateLimited,
			StatusCode: status,
			Retryable:  true,
			Err:        fmt.Errorf("openai rate limited: %s", truncateBody(body)),
		}
	case status >= 500:
		return &llm.ProviderError{
			Code:       llm.ErrorCodeProvider,
			StatusCode: status,
			Retryable:  true,
			Err:        fmt.Errorf("openai server error: %s", truncateBody(body)),
		}
	default:
		return &llm.ProviderError{
			Code:       llm.ErrorCodeProvider,
			StatusCode: status,
			Retryable:  false,
			Err:        fmt.Errorf("openai request rejected: %s", truncateBody(body)),
		}
	}
}

func truncateBody(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max]
	}
	return s
}

var _ llm.Client = (*Client)(nil)
