package schema

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kadirpekel/graphmind/pkg/graph"
)

func buildTestStore() *graph.MemoryStore {
	s := graph.NewMemoryStore()
	s.AddEntity(&graph.Entity{ID: "e1", Name: "Einstein", Type: "Person", Properties: map[string]any{"name": "Einstein", "born": 1879}})
	s.AddEntity(&graph.Entity{ID: "e2", Name: "Curie", Type: "Person", Properties: map[string]any{"name": "Curie"}})
	s.AddEntity(&graph.Entity{ID: "e3", Name: "Relativity", Type: "Theory", Properties: map[string]any{"name": "Relativity"}})
	s.AddRelation(&graph.Relation{SourceID: "e1", TargetID: "e3", Type: "DEVELOPED"})
	return s
}

func TestInspector_BuildsSchema(t *testing.T) {
	in := NewInspector(buildTestStore(), time.Minute)
	s := in.Schema(context.Background())

	if s.Degraded {
		t.Fatal("schema unexpectedly degraded")
	}
	if len(s.NodeTypes) != 2 {
		t.Fatalf("node types = %d, want 2", len(s.NodeTypes))
	}

	person := s.NodeType("Person")
	if person == nil || person.Count != 2 {
		t.Errorf("Person profile = %+v, want count 2", person)
	}
	if s.NodeType("Nonexistent") != nil {
		t.Error("NodeType(Nonexistent) should be nil")
	}

	dev := s.RelationshipType("DEVELOPED")
	if dev == nil {
		t.Fatal("DEVELOPED profile missing")
	}
	if dev.Count != 1 {
		t.Errorf("DEVELOPED count = %d, want 1", dev.Count)
	}
	if len(dev.Patterns) != 1 {
		t.Fatalf("DEVELOPED patterns = %+v, want one", dev.Patterns)
	}
	if p := dev.Patterns[0]; p.SourceLabel != "Person" || p.TargetLabel != "Theory" || p.Count != 1 {
		t.Errorf("DEVELOPED pattern = %+v, want Person->Theory count 1", p)
	}
	// Pattern counts never exceed the relationship count.
	var sum int64
	for _, p := range dev.Patterns {
		sum += p.Count
	}
	if sum > dev.Count {
		t.Errorf("pattern counts sum to %d, relationship count is %d", sum, dev.Count)
	}

	if props := s.SearchProperties["Person"]; len(props) == 0 || props[0] != "name" {
		t.Errorf("Person search properties = %v, want name first", props)
	}
}

func TestInspector_CacheWindow(t *testing.T) {
	store := buildTestStore()
	in := NewInspector(store, time.Minute)
	ctx := context.Background()

	first := in.Schema(ctx)
	second := in.Schema(ctx)
	if first != second {
		t.Error("Schema() within the cache window returned a different instance")
	}

	in.Refresh()
	third := in.Schema(ctx)
	if third == first {
		t.Error("Schema() after Refresh returned the stale instance")
	}
}

// failingStore rejects label enumeration to exercise the fallback path.
type failingStore struct {
	*graph.MemoryStore
}

func (f *failingStore) NodeTypes(context.Context) ([]string, error) {
	return nil, graph.ErrUnavailable
}

func TestInspector_FallbackSchema(t *testing.T) {
	in := NewInspector(&failingStore{graph.NewMemoryStore()}, time.Minute)
	s := in.Schema(context.Background())

	if !s.Degraded {
		t.Fatal("expected degraded schema")
	}
	if len(s.NodeTypes) != 1 || s.NodeTypes[0].Label != "Entity" {
		t.Errorf("fallback node types = %+v", s.NodeTypes)
	}
	if len(s.RelationshipTypes) != 1 || s.RelationshipTypes[0].Type != "RELATED_TO" {
		t.Errorf("fallback relationship types = %+v", s.RelationshipTypes)
	}
}

func TestGraphSchema_Describe(t *testing.T) {
	in := NewInspector(buildTestStore(), time.Minute)
	desc := in.Schema(context.Background()).Describe()

	for _, want := range []string{"Person", "Theory", "DEVELOPED", "Person->Theory"} {
		if !strings.Contains(desc, want) {
			t.Errorf("Describe() missing %q:\n%s", want, desc)
		}
	}
}
