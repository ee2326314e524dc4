package models

import "fmt"

func NewGenerator(cfg Config) (Generator, error) {
	switch cfg.Provider {
	case ProviderAnthropic, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an api key")
		}
		return NewAnthropicClient(cfg), nil
	case ProviderOpenAI:
		return NewLLMClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
