package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessConfigPipeline_Defaults(t *testing.T) {
	cfg, err := ProcessConfigPipeline(&Config{
		Embedder: EmbedderConfig{Type: "stub", Dimension: 64},
		LLM:      LLMConfig{Type: "stub"},
	})
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, 3, cfg.Reasoning.MaxDepth)
	assert.Equal(t, 30000, cfg.Reasoning.SessionBudgetMs)
	assert.Equal(t, 4, cfg.Scheduler.CPUPoolSize)
	assert.Equal(t, 2, cfg.Scheduler.IOPoolSize)
	assert.Equal(t, 0.4, cfg.Reasoning.RelationWeight)
	assert.Equal(t, 0.8, cfg.Reasoning.DepthDecay)
}

func TestProcessConfigPipeline_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{
			name: "unknown store type",
			cfg:  &Config{Store: StoreConfig{Type: "neo4j"}},
		},
		{
			name: "sqlite without path",
			cfg:  &Config{Store: StoreConfig{Type: "sqlite"}},
		},
		{
			name: "openai without api key",
			cfg:  &Config{LLM: LLMConfig{Type: "openai"}},
		},
		{
			name: "temperature out of range",
			cfg: &Config{
				LLM:       LLMConfig{Type: "stub"},
				Reasoning: ReasoningConfig{LLMTemperature: 3.0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ProcessConfigPipeline(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestParse_EnvExpansion(t *testing.T) {
	os.Setenv("GRAPHMIND_TEST_MODEL", "llama3.2")
	defer os.Unsetenv("GRAPHMIND_TEST_MODEL")

	raw := []byte(`
llm:
  type: stub
  model: ${GRAPHMIND_TEST_MODEL}
embedder:
  type: stub
  dimension: 64
  host: ${GRAPHMIND_TEST_UNSET:-http://fallback:11434}
`)

	cfg, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", cfg.LLM.Model)
	assert.Equal(t, "http://fallback:11434", cfg.Embedder.Host)
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("GRAPHMIND_TEST_VAR", "value")
	defer os.Unsetenv("GRAPHMIND_TEST_VAR")

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"${GRAPHMIND_TEST_VAR}", "value"},
		{"$GRAPHMIND_TEST_VAR", "value"},
		{"${GRAPHMIND_TEST_MISSING:-def}", "def"},
		{"${GRAPHMIND_TEST_MISSING}", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandEnvVars(tt.in), "expandEnvVars(%q)", tt.in)
	}
}
