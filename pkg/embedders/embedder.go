// Package embedders defines the embedding adapter contract and its
// implementations: HTTP adapters for Ollama and OpenAI, a deterministic
// stub for tests, and an LRU-cached wrapper that all engine code consumes.
package embedders

import (
	"context"
	"math"
)

// Embedder turns text into fixed-dimension vectors.
//
// Dimension is fixed for the adapter's lifetime. EmbedBatch returns vectors
// in input order. Implementations must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Close() error
}

// Cosine computes the cosine similarity of two vectors, in [-1, 1].
// Mismatched or zero-length vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
