package embedders

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
)

// StubEmbedder is a deterministic embedder for tests and offline runs.
//
// Vectors are derived from token hashes, so identical texts always produce
// identical vectors and texts sharing words land near each other in cosine
// space. No network access.
type StubEmbedder struct {
	dimension int
}

func NewStubEmbedder(dimension int) *StubEmbedder {
	if dimension <= 0 {
		dimension = 64
	}
	return &StubEmbedder{dimension: dimension}
}

func (e *StubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimension)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == ',' || r == '.' ||
			r == '?' || r == '!' || r == ';' || r == ':' || r == '-'
	})
	if len(tokens) == 0 {
		tokens = []string{text}
	}

	for _, token := range tokens {
		sum := sha256.Sum256([]byte(token))
		for i := 0; i+4 <= len(sum); i += 4 {
			bucket := int(binary.BigEndian.Uint32(sum[i:i+4])) % e.dimension
			if bucket < 0 {
				bucket += e.dimension
			}
			vec[bucket] += 1.0
		}
	}
	return vec, nil
}

func (e *StubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *StubEmbedder) Dimension() int { return e.dimension }

func (e *StubEmbedder) Close() error { return nil }

// Ensure StubEmbedder implements Embedder.
var _ Embedder = (*StubEmbedder)(nil)
