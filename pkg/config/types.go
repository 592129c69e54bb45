// Package config defines the engine configuration model: provider settings
// for the graph store, LLM and embedder adapters, reasoning parameters and
// scheduler sizing. Configs load from YAML with environment expansion and
// run through a PreProcess -> SetDefaults -> Validate pipeline before use.
package config

// Config is the root configuration for a graphmind engine instance.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Reasoning ReasoningConfig `yaml:"reasoning"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Prompts   PromptsConfig   `yaml:"prompts"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// StoreConfig selects and configures the graph store adapter.
type StoreConfig struct {
	// Type is "memory" or "sqlite".
	Type string `yaml:"type"`

	// Path is the database file for file-backed stores.
	Path string `yaml:"path,omitempty"`
}

// LLMConfig configures the LLM provider adapter.
type LLMConfig struct {
	// Type is "ollama", "openai", "anthropic" or "stub".
	Type string `yaml:"type"`

	Model  string `yaml:"model,omitempty"`
	Host   string `yaml:"host,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`

	// Timeout is the per-call wall clock limit in seconds.
	Timeout int `yaml:"timeout,omitempty"`

	// MaxRetries bounds retry attempts for transient failures.
	MaxRetries int `yaml:"max_retries,omitempty"`
}

// EmbedderConfig configures the embedding provider adapter.
type EmbedderConfig struct {
	// Type is "ollama", "openai" or "stub".
	Type string `yaml:"type"`

	Model     string `yaml:"model,omitempty"`
	Host      string `yaml:"host,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
	Dimension int    `yaml:"dimension,omitempty"`

	Timeout    int `yaml:"timeout,omitempty"`
	MaxRetries int `yaml:"max_retries,omitempty"`

	// CacheSize is the embedding LRU capacity.
	CacheSize int `yaml:"cache_size,omitempty"`
}

// ReasoningConfig holds the per-session reasoning parameters.
// Immutable once a session is created.
type ReasoningConfig struct {
	// MaxDepth caps traversal hops.
	MaxDepth int `yaml:"max_reasoning_depth,omitempty"`

	// SearchWidth is the branching factor per hop.
	SearchWidth int `yaml:"search_width,omitempty"`

	// EntityThreshold is the minimum score to keep an entity candidate.
	EntityThreshold float64 `yaml:"entity_similarity_threshold,omitempty"`

	// RelationThreshold is the minimum score to keep a relation edge.
	RelationThreshold float64 `yaml:"relation_similarity_threshold,omitempty"`

	// MaxEntities caps explored entities per session.
	MaxEntities int `yaml:"max_entities,omitempty"`

	// MaxPaths caps retained paths.
	MaxPaths int `yaml:"max_paths,omitempty"`

	// MaxEvidences caps evidence lines delivered to the answer prompt.
	MaxEvidences int `yaml:"max_evidences,omitempty"`

	// SessionBudgetMs is the wall-clock budget per question.
	SessionBudgetMs int `yaml:"session_budget_ms,omitempty"`

	// LLMTemperature is the answer generation temperature.
	LLMTemperature float64 `yaml:"llm_temperature,omitempty"`

	// LLMMaxTokens caps answer length.
	LLMMaxTokens int `yaml:"llm_max_tokens,omitempty"`

	// ConfidenceThreshold is the minimum acceptable confidence.
	ConfidenceThreshold float64 `yaml:"confidence_threshold,omitempty"`

	// MaxRetries bounds adapter call retries.
	MaxRetries int `yaml:"max_retries,omitempty"`

	// BatchSize is the default batch width.
	BatchSize int `yaml:"batch_size,omitempty"`

	// StrictValidation enables the stricter answer validator.
	StrictValidation bool `yaml:"strict_validation,omitempty"`

	// Scoring weights. The defaults reproduce the canonical path score
	//   (0.4*rel + 0.2*source + 0.4*target) * 0.8^depth + 0.1 novelty
	// and are exposed here rather than hard-coded.
	RelationWeight  float64 `yaml:"relation_weight,omitempty"`
	SourceWeight    float64 `yaml:"source_weight,omitempty"`
	TargetWeight    float64 `yaml:"target_weight,omitempty"`
	DepthDecay      float64 `yaml:"depth_decay,omitempty"`
	NoveltyBonus    float64 `yaml:"novelty_bonus,omitempty"`
	MinEvidences    int     `yaml:"min_evidences,omitempty"`
	ConfidenceStop  float64 `yaml:"confidence_stop,omitempty"`
	DepthStop       int     `yaml:"depth_stop,omitempty"`
	GoodPathScore   float64 `yaml:"good_path_score,omitempty"`
	GoodPathCount   int     `yaml:"good_path_count,omitempty"`
	PathSoftTimeout int     `yaml:"path_soft_timeout_ms,omitempty"`
}

// SchedulerConfig sizes the task scheduler's executor pools.
type SchedulerConfig struct {
	// CPUPoolSize is the number of CPU-bound workers.
	CPUPoolSize int `yaml:"thread_pool_size,omitempty"`

	// IOPoolSize is the number of I/O-bound workers. Defaults to half the
	// CPU pool, minimum 1.
	IOPoolSize int `yaml:"io_pool_size,omitempty"`

	// QueueSize bounds each pool's pending queue.
	QueueSize int `yaml:"queue_size,omitempty"`

	// MonitorIntervalMs is the resource monitor sampling period.
	MonitorIntervalMs int `yaml:"monitor_interval_ms,omitempty"`
}

// PromptsConfig locates the prompt asset tree.
type PromptsConfig struct {
	// Dir overrides the embedded default templates when set.
	Dir string `yaml:"dir,omitempty"`
}

// MetricsConfig toggles the otel/prometheus metrics recorder.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
}
