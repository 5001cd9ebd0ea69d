package openai

import (
	"errors"
	"testing"
	"time"

	"insights-backend/internal/llm"
)

func TestNewClientRequiresKeyAndModel(t *testing.T) {
	if _, err := NewClient(Config{Model: "gpt-4-turbo-preview"}); err == nil {
		t.Fatal("expected error without API key")
	}
	if _, err := NewClient(Config{APIKey: "sk-test"}); err == nil {
		t.Fatal("expected error without model")
	}
	client, err := NewClient(Config{APIKey: "sk-test", Model: "gpt-4-turbo-preview"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.httpClient.Timeout != 60*time.Second {
		t.Fatalf("expected default 60s timeout, got %v", client.httpClient.Timeout)
	}
}

func TestClassifyStatus(t *testing.T) {
	if err := classifyStatus(200, nil); err != nil {
		t.Fatalf("200 should pass, got %v", err)
	}

	var provider *llm.ProviderError

	err := classifyStatus(429, []byte("slow down"))
	if !errors.As(err, &provider) || !provider.Retryable || provider.Code != llm.ErrorCodeRateLimited {
		t.Fatalf("429 classification wrong: %v", err)
	}

	err = classifyStatus(503, []byte("unavailable"))
	if !errors.As(err, &provider) || !provider.Retryable {
		t.Fatalf("503 classification wrong: %v", err)
	}

	err = classifyStatus(400, []byte("bad request"))
	if !errors.As(err, &provider) || provider.Retryable {
		t.Fatalf("400 must not be retryable: %v", err)
	}
}
