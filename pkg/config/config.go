package config

import "fmt"

// ProcessConfigPipeline runs the standard preparation pipeline on a config:
// pre-processing, default filling and validation. Configs must pass through
// here before reaching the engine.
func ProcessConfigPipeline(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ProcessConfigPipeline: config cannot be nil")
	}

	cfg.PreProcess()
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ProcessConfigPipeline: validation failed: %w", err)
	}

	return cfg, nil
}

// PreProcess normalizes shorthand forms before defaults are applied.
func (c *Config) PreProcess() {
	// A bare sqlite path implies the sqlite store type.
	if c.Store.Type == "" && c.Store.Path != "" {
		c.Store.Type = "sqlite"
	}
}

// SetDefaults fills unset fields with the documented defaults.
func (c *Config) SetDefaults() {
	if c.Store.Type == "" {
		c.Store.Type = "memory"
	}

	if c.LLM.Type == "" {
		c.LLM.Type = "ollama"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "llama3.2"
	}
	if c.LLM.Host == "" {
		c.LLM.Host = "http://localhost:11434"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 60
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = 3
	}

	if c.Embedder.Type == "" {
		c.Embedder.Type = "ollama"
	}
	if c.Embedder.Model == "" {
		c.Embedder.Model = "nomic-embed-text"
	}
	if c.Embedder.Host == "" {
		c.Embedder.Host = "http://localhost:11434"
	}
	if c.Embedder.Dimension == 0 {
		c.Embedder.Dimension = 768
	}
	if c.Embedder.Timeout == 0 {
		c.Embedder.Timeout = 30
	}
	if c.Embedder.MaxRetries == 0 {
		c.Embedder.MaxRetries = 3
	}
	if c.Embedder.CacheSize == 0 {
		c.Embedder.CacheSize = 1000
	}

	c.Reasoning.SetDefaults()

	if c.Scheduler.CPUPoolSize == 0 {
		c.Scheduler.CPUPoolSize = 4
	}
	if c.Scheduler.IOPoolSize == 0 {
		c.Scheduler.IOPoolSize = c.Scheduler.CPUPoolSize / 2
		if c.Scheduler.IOPoolSize < 1 {
			c.Scheduler.IOPoolSize = 1
		}
	}
	if c.Scheduler.QueueSize == 0 {
		c.Scheduler.QueueSize = 256
	}
	if c.Scheduler.MonitorIntervalMs == 0 {
		c.Scheduler.MonitorIntervalMs = 1000
	}
}

// SetDefaults fills unset reasoning parameters with the documented defaults.
func (r *ReasoningConfig) SetDefaults() {
	if r.MaxDepth == 0 {
		r.MaxDepth = 3
	}
	if r.SearchWidth == 0 {
		r.SearchWidth = 3
	}
	if r.EntityThreshold == 0 {
		r.EntityThreshold = 0.5
	}
	if r.RelationThreshold == 0 {
		r.RelationThreshold = 0.2
	}
	if r.MaxEntities == 0 {
		r.MaxEntities = 100
	}
	if r.MaxPaths == 0 {
		r.MaxPaths = 50
	}
	if r.MaxEvidences == 0 {
		r.MaxEvidences = 10
	}
	if r.SessionBudgetMs == 0 {
		r.SessionBudgetMs = 30000
	}
	if r.LLMTemperature == 0 {
		r.LLMTemperature = 0.2
	}
	if r.LLMMaxTokens == 0 {
		r.LLMMaxTokens = 256
	}
	if r.ConfidenceThreshold == 0 {
		r.ConfidenceThreshold = 0.3
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = 3
	}
	if r.BatchSize == 0 {
		r.BatchSize = 10
	}

	if r.RelationWeight == 0 {
		r.RelationWeight = 0.4
	}
	if r.SourceWeight == 0 {
		r.SourceWeight = 0.2
	}
	if r.TargetWeight == 0 {
		r.TargetWeight = 0.4
	}
	if r.DepthDecay == 0 {
		r.DepthDecay = 0.8
	}
	if r.NoveltyBonus == 0 {
		r.NoveltyBonus = 0.1
	}
	if r.MinEvidences == 0 {
		r.MinEvidences = 5
	}
	if r.ConfidenceStop == 0 {
		r.ConfidenceStop = 2.0
	}
	if r.DepthStop == 0 {
		r.DepthStop = 3
	}
	if r.GoodPathScore == 0 {
		r.GoodPathScore = 0.7
	}
	if r.GoodPathCount == 0 {
		r.GoodPathCount = 3
	}
	if r.PathSoftTimeout == 0 {
		r.PathSoftTimeout = 10000
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store: sqlite requires a path")
		}
	default:
		return fmt.Errorf("store: unknown type %q", c.Store.Type)
	}

	switch c.LLM.Type {
	case "ollama", "openai", "anthropic", "stub":
	default:
		return fmt.Errorf("llm: unknown type %q", c.LLM.Type)
	}
	if c.LLM.Type == "openai" || c.LLM.Type == "anthropic" {
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm: %s requires an api_key", c.LLM.Type)
		}
	}

	switch c.Embedder.Type {
	case "ollama", "openai", "stub":
	default:
		return fmt.Errorf("embedder: unknown type %q", c.Embedder.Type)
	}
	if c.Embedder.Dimension < 1 {
		return fmt.Errorf("embedder: dimension must be positive")
	}

	if err := c.Reasoning.Validate(); err != nil {
		return fmt.Errorf("reasoning: %w", err)
	}

	if c.Scheduler.CPUPoolSize < 1 || c.Scheduler.IOPoolSize < 1 {
		return fmt.Errorf("scheduler: pool sizes must be positive")
	}
	return nil
}

// Validate rejects reasoning parameters outside their documented ranges.
func (r *ReasoningConfig) Validate() error {
	if r.MaxDepth < 1 {
		return fmt.Errorf("max_reasoning_depth must be at least 1")
	}
	if r.SearchWidth < 1 {
		return fmt.Errorf("search_width must be at least 1")
	}
	if r.EntityThreshold < 0 || r.EntityThreshold > 1 {
		return fmt.Errorf("entity_similarity_threshold must be in [0,1]")
	}
	if r.RelationThreshold < 0 || r.RelationThreshold > 1 {
		return fmt.Errorf("relation_similarity_threshold must be in [0,1]")
	}
	if r.LLMTemperature < 0 || r.LLMTemperature > 2 {
		return fmt.Errorf("llm_temperature must be in [0,2]")
	}
	if r.LLMMaxTokens < 1 {
		return fmt.Errorf("llm_max_tokens must be positive")
	}
	if r.SessionBudgetMs < 1 {
		return fmt.Errorf("session_budget_ms must be positive")
	}
	return nil
}

// DefaultConfig returns a fully defaulted config backed by the in-memory
// store and stub adapters. Useful for tests and zero-config runs.
func DefaultConfig() *Config {
	cfg := &Config{
		Store:    StoreConfig{Type: "memory"},
		LLM:      LLMConfig{Type: "stub"},
		Embedder: EmbedderConfig{Type: "stub", Dimension: 64},
	}
	cfg.SetDefaults()
	return cfg
}
