package embedders

import (
	"fmt"

	"github.com/kadirpekel/graphmind/pkg/config"
)

// NewEmbedderFromConfig builds the configured embedder wrapped in the
// session-wide LRU cache.
func NewEmbedderFromConfig(cfg *config.EmbedderConfig) (Embedder, error) {
	var inner Embedder
	switch cfg.Type {
	case "ollama":
		inner = NewOllamaEmbedder(cfg)
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai embedder requires an api key")
		}
		inner = NewOpenAIEmbedder(cfg)
	case "stub":
		inner = NewStubEmbedder(cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedder type: %s", cfg.Type)
	}

	cached, err := NewCachedEmbedder(inner, cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return cached, nil
}
