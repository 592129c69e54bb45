package llms

import (
	"context"
	"errors"
	"testing"
)

func TestStubLLM_ScriptedLookupOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStubLLM().
		Script("alpha", "first").
		Script("alpha beta", "second")

	// Both keys match; the earliest-registered one wins every time.
	for i := 0; i < 10; i++ {
		got, err := s.Generate(ctx, "prompt mentioning alpha beta gamma", 0, 0)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if got != "first" {
			t.Fatalf("Generate() = %q, want %q", got, "first")
		}
	}

	// Re-scripting replaces the response but keeps the position.
	s.Script("alpha", "replaced")
	got, err := s.Generate(ctx, "prompt mentioning alpha beta gamma", 0, 0)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "replaced" {
		t.Errorf("Generate() after re-script = %q, want %q", got, "replaced")
	}

	// Exact prompt matches still take precedence over substring keys.
	s.Script("exact prompt", "exact")
	if got, _ := s.Generate(ctx, "exact prompt", 0, 0); got != "exact" {
		t.Errorf("exact lookup = %q, want %q", got, "exact")
	}
}

func TestStubLLM_FailWith(t *testing.T) {
	boom := errors.New("provider down")
	s := NewStubLLM().FailWith(boom)

	if s.Available() {
		t.Error("failing stub reports available")
	}
	if _, err := s.Generate(context.Background(), "anything", 0, 0); !errors.Is(err, boom) {
		t.Errorf("Generate() error = %v, want %v", err, boom)
	}
}
