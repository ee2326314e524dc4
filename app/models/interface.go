package models

import (
	"context"
	"time"
)

const (
	SystemRole    = "system"
	UserRole      = "user"
	AssistantRole = "assistant"

	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Generator turns a prompt into text. Implementations are stateless: one call, one completion.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Config struct {
	Provider    string        `yaml:"provider"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	// MaxRetries is the total number of attempts per request.
	MaxRetries  int           `yaml:"max_retries"`
}

// Prompt builds the usual system + user message pair.
func Prompt(system, user string) []Message {
	return []Message{
		{Role: SystemRole, Content: system},
		{Role: UserRole, Content: user},
	}
}
