package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"GoEvolveAI/app/restclient"
)

const (
	anthropicEndpoint = "/v1/messages"
	anthropicVersion  = "2023-06-01"
)

var _ Generator = &AnthropicClient{}

type AnthropicClient struct {
	restClient  restclient.Interface
	model       string
	temperature float64
	maxTokens   int
	maxRetries  int
	backoff     time.Duration
}

func NewAnthropicClient(cfg Config) *AnthropicClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &AnthropicClient{
		restClient: restclient.NewRestClient(baseURL, map[string]string{
			"x-api-key":         cfg.APIKey,
			"anthropic-version": anthropicVersion,
		}, cfg.Timeout),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		maxRetries:  cfg.MaxRetries,
		backoff:     time.Second,
	}
}

func (ac *AnthropicClient) Generate(ctx context.Context, messages []Message) (string, error) {
	payload := anthropicRequest{
		Model:       ac.model,
		MaxTokens:   ac.maxTokens,
		Temperature: ac.temperature,
	}
	var system []string
	for _, m := range messages {
		if m.Role == SystemRole {
			system = append(system, m.Content)
			continue
		}
		payload.Messages = append(payload.Messages, m)
	}
	payload.System = strings.Join(system, "\n\n")

	var response anthropicResponse
	if err := postAndParse(ctx, ac.restClient, anthropicEndpoint, payload, nil, ac.maxRetries, ac.backoff, &response); err != nil {
		return "", err
	}
	if response.Error != nil {
		return "", fmt.Errorf("anthropic %s: %s", response.Error.Type, response.Error.Message)
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("empty anthropic response")
	}
	return text.String(), nil
}
