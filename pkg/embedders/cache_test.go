package embedders

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

// countingEmbedder records upstream calls for cache assertions.
type countingEmbedder struct {
	StubEmbedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.StubEmbedder.Embed(ctx, text)
}

func TestCachedEmbedder_HitReturnsIdenticalVector(t *testing.T) {
	inner := &countingEmbedder{StubEmbedder: *NewStubEmbedder(32)}
	cached, err := NewCachedEmbedder(inner, 16)
	if err != nil {
		t.Fatalf("NewCachedEmbedder() error = %v", err)
	}

	ctx := context.Background()
	first, err := cached.Embed(ctx, "theory of relativity")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	second, err := cached.Embed(ctx, "theory of relativity")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("vector lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("vectors differ at index %d", i)
		}
	}
	if got := inner.calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
	hits, misses := cached.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats = %d hits / %d misses, want 1/1", hits, misses)
	}
}

func TestCachedEmbedder_SingleFlight(t *testing.T) {
	inner := &countingEmbedder{StubEmbedder: *NewStubEmbedder(32)}
	cached, err := NewCachedEmbedder(inner, 16)
	if err != nil {
		t.Fatalf("NewCachedEmbedder() error = %v", err)
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cached.Embed(ctx, "same key"); err != nil {
				t.Errorf("Embed() error = %v", err)
			}
		}()
	}
	wg.Wait()

	// Concurrent misses for the same key collapse; a few upstream calls
	// may slip through before the cache is warm, but not one per caller.
	if got := inner.calls.Load(); got > 4 {
		t.Errorf("upstream calls = %d, want single-flight behavior", got)
	}
}

func TestCachedEmbedder_Eviction(t *testing.T) {
	inner := &countingEmbedder{StubEmbedder: *NewStubEmbedder(16)}
	cached, err := NewCachedEmbedder(inner, 2)
	if err != nil {
		t.Fatalf("NewCachedEmbedder() error = %v", err)
	}

	ctx := context.Background()
	for _, text := range []string{"a", "b", "c", "a"} {
		if _, err := cached.Embed(ctx, text); err != nil {
			t.Fatalf("Embed(%q) error = %v", text, err)
		}
	}
	// "a" was evicted by "c", so it costs a fourth upstream call.
	if got := inner.calls.Load(); got != 4 {
		t.Errorf("upstream calls = %d, want 4", got)
	}
}

func TestStubEmbedder_Deterministic(t *testing.T) {
	e := NewStubEmbedder(64)
	ctx := context.Background()

	a, _ := e.Embed(ctx, "Einstein developed relativity")
	b, _ := e.Embed(ctx, "Einstein developed relativity")
	if Cosine(a, b) != 1.0 {
		t.Errorf("identical texts should have cosine 1.0, got %f", Cosine(a, b))
	}

	c, _ := e.Embed(ctx, "completely unrelated text about cooking")
	if sim := Cosine(a, c); sim >= 0.99 {
		t.Errorf("unrelated texts too similar: %f", sim)
	}
}

func TestCosine_Bounds(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"empty", nil, nil, 0},
		{"mismatched", []float32{1}, []float32{1, 2}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Cosine() = %f, want %f", got, tt.want)
			}
		})
	}
}
