// Package prompts holds the named prompt templates used by the reasoners.
//
// Templates are plain UTF-8 text with {name} placeholders: single-pass
// substitution, no nesting, no conditionals. Defaults ship embedded in the
// binary; a directory of <name>.txt files can override them.
package prompts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

//go:embed assets/*.txt
var defaultAssets embed.FS

// Registry loads and caches named templates.
type Registry struct {
	mu    sync.RWMutex
	dir   string
	cache map[string]string
}

// NewRegistry creates a registry. dir may be empty, in which case only the
// embedded defaults are available.
func NewRegistry(dir string) *Registry {
	return &Registry{
		dir:   dir,
		cache: make(map[string]string),
	}
}

// Load returns the raw template for name, caching on first read.
// The override directory wins over the embedded defaults.
func (r *Registry) Load(name string) (string, error) {
	r.mu.RLock()
	if tpl, ok := r.cache[name]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if tpl, ok := r.cache[name]; ok {
		return tpl, nil
	}

	tpl, err := r.read(name)
	if err != nil {
		return "", err
	}
	r.cache[name] = tpl
	return tpl, nil
}

func (r *Registry) read(name string) (string, error) {
	if r.dir != "" {
		path := filepath.Join(r.dir, name+".txt")
		if raw, err := os.ReadFile(path); err == nil {
			return string(raw), nil
		}
	}

	raw, err := defaultAssets.ReadFile("assets/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	return string(raw), nil
}

// Render loads a template and substitutes {placeholder} tokens with the
// given values. Placeholders with no value render as empty strings.
func (r *Registry) Render(name string, values map[string]string) (string, error) {
	tpl, err := r.Load(name)
	if err != nil {
		return "", err
	}
	return Substitute(tpl, values), nil
}

// Substitute performs single-pass {name} replacement. Tokens without a
// provided value become empty; values containing braces are not re-scanned.
func Substitute(tpl string, values map[string]string) string {
	var b strings.Builder
	b.Grow(len(tpl))

	for i := 0; i < len(tpl); {
		open := strings.IndexByte(tpl[i:], '{')
		if open < 0 {
			b.WriteString(tpl[i:])
			break
		}
		open += i
		close := strings.IndexByte(tpl[open:], '}')
		if close < 0 {
			b.WriteString(tpl[i:])
			break
		}
		close += open

		key := tpl[open+1 : close]
		if isPlaceholderKey(key) {
			b.WriteString(tpl[i:open])
			b.WriteString(values[key])
			i = close + 1
		} else {
			b.WriteString(tpl[i : open+1])
			i = open + 1
		}
	}
	return b.String()
}

func isPlaceholderKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}

// Reload drops the cache entry for one template so the next Load re-reads
// it from disk (or the embedded default).
func (r *Registry) Reload(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, name)
}

// Clear drops all cached templates.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]string)
}

// Canonical template names used by the reasoners.
const (
	TemplateEntityExtraction = "entity-extraction"
	TemplateAnswerGeneration = "answer-generation"
)
