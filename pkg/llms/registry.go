package llms

import (
	"fmt"

	"github.com/kadirpekel/graphmind/pkg/config"
)

// NewLLMFromConfig builds the configured LLM provider.
func NewLLMFromConfig(cfg *config.LLMConfig) (LLM, error) {
	switch cfg.Type {
	case "ollama":
		return NewOllamaProvider(cfg), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an api key")
		}
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an api key")
		}
		return NewAnthropicProvider(cfg), nil
	case "stub":
		return NewStubLLM(), nil
	default:
		return nil, fmt.Errorf("unknown llm type: %s", cfg.Type)
	}
}
