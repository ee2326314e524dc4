package models

import (
	"context"
	"errors"
	"time"

	"GoEvolveAI/app/restclient"
)

const endpoint = "/v1/chat/completions"

var _ Generator = &LLMClient{}

// LLMClient talks to any OpenAI-compatible chat completions server (LM Studio, vLLM, OpenAI).
type LLMClient struct {
	restClient  restclient.Interface
	model       string
	temperature float64
	maxTokens   int
	maxRetries  int
	backoff     time.Duration
}

func NewLLMClient(cfg Config) *LLMClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:1234"
	}
	var headers map[string]string
	if cfg.APIKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + cfg.APIKey}
	}
	return &LLMClient{
		restClient:  restclient.NewRestClient(baseURL, headers, cfg.Timeout),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxRetries:  cfg.MaxRetries,
		backoff:     100 * time.Millisecond,
	}
}

func (mc *LLMClient) Generate(ctx context.Context, messages []Message) (string, error) {
	payload := requestPayload{
		Model:       mc.model,
		Messages:    messages,
		Temperature: mc.temperature,
		MaxTokens:   mc.maxTokens,
	}

	var response ResponseLLM
	if err := postAndParse(ctx, mc.restClient, endpoint, payload, nil, mc.maxRetries, mc.backoff, &response); err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", errors.New("empty LLM response")
	}
	return response.Choices[0].Message.Content, nil
}
