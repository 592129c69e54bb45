package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name   string
		tpl    string
		values map[string]string
		want   string
	}{
		{
			name:   "simple",
			tpl:    "Question: {question}",
			values: map[string]string{"question": "who?"},
			want:   "Question: who?",
		},
		{
			name:   "missing key renders empty",
			tpl:    "a={a} b={b}",
			values: map[string]string{"a": "1"},
			want:   "a=1 b=",
		},
		{
			name:   "no placeholders",
			tpl:    "plain text",
			values: nil,
			want:   "plain text",
		},
		{
			name:   "single pass, no nesting",
			tpl:    "{outer}",
			values: map[string]string{"outer": "{inner}", "inner": "x"},
			want:   "{inner}",
		},
		{
			name:   "json braces left alone",
			tpl:    `{"entities": ["{name}"]}`,
			values: map[string]string{"name": "A"},
			want:   `{"entities": ["A"]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.tpl, tt.values))
		})
	}
}

func TestRegistry_EmbeddedDefaults(t *testing.T) {
	r := NewRegistry("")

	tpl, err := r.Load(TemplateEntityExtraction)
	require.NoError(t, err)
	assert.Contains(t, tpl, "{question}")

	_, err = r.Load("nonexistent")
	assert.Error(t, err)
}

func TestRegistry_DirOverrideAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "answer-generation.txt")
	require.NoError(t, os.WriteFile(path, []byte("custom {question}"), 0o644))

	r := NewRegistry(dir)
	got, err := r.Render(TemplateAnswerGeneration, map[string]string{"question": "Q"})
	require.NoError(t, err)
	assert.Equal(t, "custom Q", got)

	// The cache holds until an explicit reload.
	require.NoError(t, os.WriteFile(path, []byte("updated {question}"), 0o644))
	got, _ = r.Render(TemplateAnswerGeneration, map[string]string{"question": "Q"})
	assert.Equal(t, "custom Q", got)

	r.Reload(TemplateAnswerGeneration)
	got, _ = r.Render(TemplateAnswerGeneration, map[string]string{"question": "Q"})
	assert.Equal(t, "updated Q", got)
}
