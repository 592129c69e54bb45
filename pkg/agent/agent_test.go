package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/kadirpekel/graphmind/pkg/embedders"
	"github.com/kadirpekel/graphmind/pkg/graph"
	"github.com/kadirpekel/graphmind/pkg/scheduler"
	"github.com/kadirpekel/graphmind/pkg/search"
)

func agentTestStore() *graph.MemoryStore {
	s := graph.NewMemoryStore()
	s.AddEntity(&graph.Entity{ID: "e1", Name: "Einstein", Type: "Person", Properties: map[string]any{"name": "Einstein"}})
	s.AddEntity(&graph.Entity{ID: "e2", Name: "Curie", Type: "Person", Properties: map[string]any{"name": "Curie"}})
	s.AddEntity(&graph.Entity{ID: "e3", Name: "Relativity", Type: "Theory", Properties: map[string]any{"name": "Relativity"}})
	s.AddEntity(&graph.Entity{ID: "e4", Name: "ETH Zurich", Type: "Institution", Properties: map[string]any{"name": "ETH Zurich"}})
	s.AddRelation(&graph.Relation{SourceID: "e1", TargetID: "e3", Type: "DEVELOPED"})
	s.AddRelation(&graph.Relation{SourceID: "e1", TargetID: "e4", Type: "WORKED_AT"})
	s.AddRelation(&graph.Relation{SourceID: "e2", TargetID: "e4", Type: "WORKED_AT"})
	return s
}

func newCoordinator(t *testing.T, store graph.Store) *Coordinator {
	t.Helper()
	c := NewCoordinator()
	engine := search.NewBasicEngine(store, embedders.NewStubEmbedder(64), 0)
	if err := c.Register(NewEntitySearchAgent(engine)); err != nil {
		t.Fatalf("Register(entity-search) error: %v", err)
	}
	if err := c.Register(NewRelationshipAnalysisAgent(store)); err != nil {
		t.Fatalf("Register(relationship-analysis) error: %v", err)
	}
	return c
}

func TestCoordinator_RoutesByKind(t *testing.T) {
	c := newCoordinator(t, agentTestStore())

	res := c.ExecuteTask(context.Background(), &TaskRequest{
		Kind:        KindEntitySearch,
		Description: "Einstein",
	})
	if !res.Success {
		t.Fatalf("entity_search failed: %s", res.Error)
	}
	if !strings.Contains(res.Output, "Einstein") {
		t.Errorf("output missing entity:\n%s", res.Output)
	}
	if res.Metadata["count"].(int) == 0 {
		t.Error("metadata count = 0, want matches")
	}
}

func TestCoordinator_NoAgentForKind(t *testing.T) {
	c := newCoordinator(t, agentTestStore())

	res := c.ExecuteTask(context.Background(), &TaskRequest{Kind: scheduler.KindLLMGeneration})
	if res.Success {
		t.Fatal("unroutable kind reported success")
	}
	if !strings.Contains(res.Error, "no_agent_for_kind") {
		t.Errorf("error = %q, want no_agent_for_kind", res.Error)
	}
}

func TestCoordinator_ParallelPreservesKeysAndIsolatesFailures(t *testing.T) {
	c := newCoordinator(t, agentTestStore())

	reqs := map[string]*TaskRequest{
		"search":  {Kind: KindEntitySearch, Description: "Curie"},
		"summary": {Kind: KindRelationSummary},
		"broken":  {Kind: scheduler.KindValidation}, // no agent serves this
	}
	results := c.ExecuteTasksParallel(context.Background(), reqs)

	if len(results) != len(reqs) {
		t.Fatalf("results = %d, want %d", len(results), len(reqs))
	}
	for key := range reqs {
		if _, ok := results[key]; !ok {
			t.Errorf("missing result for %q", key)
		}
	}
	if !results["search"].Success || !results["summary"].Success {
		t.Errorf("healthy tasks failed: search=%+v summary=%+v", results["search"], results["summary"])
	}
	if results["broken"].Success {
		t.Error("broken task reported success")
	}
}

func TestEntitySearchAgent_IdentificationDedupes(t *testing.T) {
	store := agentTestStore()
	engine := search.NewBasicEngine(store, embedders.NewStubEmbedder(64), 0)
	a := NewEntitySearchAgent(engine)

	res := a.Execute(context.Background(), &TaskRequest{
		Kind:        scheduler.KindEntityIdentification,
		Description: "Einstein, Einstein and Curie",
	})
	if !res.Success {
		t.Fatalf("identification failed: %s", res.Error)
	}
	results := res.Metadata["results"].([]search.Result)
	seen := make(map[string]bool)
	for _, r := range results {
		if seen[r.Entity.ID] {
			t.Errorf("entity %s reported twice", r.Entity.ID)
		}
		seen[r.Entity.ID] = true
	}
	if !seen["e1"] || !seen["e2"] {
		t.Errorf("identification missed entities: %+v", results)
	}
}

func TestEntitySearchAgent_SemanticThreshold(t *testing.T) {
	store := agentTestStore()
	engine := search.NewBasicEngine(store, embedders.NewStubEmbedder(64), 0)
	a := NewEntitySearchAgent(engine)

	res := a.Execute(context.Background(), &TaskRequest{
		Kind:        KindSemanticSearch,
		Description: "Einstein",
		Context:     map[string]any{"threshold": 0.99},
	})
	if !res.Success {
		t.Fatalf("semantic search failed: %s", res.Error)
	}
	for _, r := range res.Metadata["results"].([]search.Result) {
		if r.Score < 0.99 {
			t.Errorf("result below threshold survived: %+v", r)
		}
	}
}

func TestRelationshipAgent_AnalyzeGroupsByType(t *testing.T) {
	a := NewRelationshipAnalysisAgent(agentTestStore())

	res := a.Execute(context.Background(), &TaskRequest{
		Kind:    KindRelationshipAnalysis,
		Context: map[string]any{"entity_id": "e1"},
	})
	if !res.Success {
		t.Fatalf("analysis failed: %s", res.Error)
	}
	for _, want := range []string{"DEVELOPED", "WORKED_AT", "Relativity", "ETH Zurich"} {
		if !strings.Contains(res.Output, want) {
			t.Errorf("output missing %q:\n%s", want, res.Output)
		}
	}
}

func TestRelationshipAgent_PathFinding(t *testing.T) {
	a := NewRelationshipAnalysisAgent(agentTestStore())

	res := a.Execute(context.Background(), &TaskRequest{
		Kind: KindPathFinding,
		Context: map[string]any{
			"source_id": "e3",
			"target_id": "e2",
			"max_depth": 4,
		},
	})
	if !res.Success {
		t.Fatalf("path finding failed: %s", res.Error)
	}
	paths := res.Metadata["paths"].([]string)
	if len(paths) == 0 {
		t.Fatal("no path found")
	}
	// Relativity -> Einstein -> ETH Zurich -> Curie via undirected BFS.
	if !strings.Contains(paths[0], "Einstein") || !strings.Contains(paths[0], "Curie") {
		t.Errorf("path = %q, want route through Einstein to Curie", paths[0])
	}
	if len(paths) > MaxFoundPaths {
		t.Errorf("paths = %d, want at most %d", len(paths), MaxFoundPaths)
	}
}

func TestRelationshipAgent_ConnectionDiscoveryMinDepth(t *testing.T) {
	a := NewRelationshipAnalysisAgent(agentTestStore())

	res := a.Execute(context.Background(), &TaskRequest{
		Kind:    KindConnectionDiscovery,
		Context: map[string]any{"entity_id": "e1", "max_depth": 2},
	})
	if !res.Success {
		t.Fatalf("discovery failed: %s", res.Error)
	}
	depths := res.Metadata["reachable"].(map[string]int)
	if depths["e3"] != 1 || depths["e4"] != 1 {
		t.Errorf("direct neighbors at depth %d/%d, want 1/1", depths["e3"], depths["e4"])
	}
	if depths["e2"] != 2 {
		t.Errorf("Curie at depth %d, want 2 via ETH Zurich", depths["e2"])
	}
}

func TestRelationshipAgent_RelationSummary(t *testing.T) {
	a := NewRelationshipAnalysisAgent(agentTestStore())

	res := a.Execute(context.Background(), &TaskRequest{Kind: KindRelationSummary})
	if !res.Success {
		t.Fatalf("summary failed: %s", res.Error)
	}
	counts := res.Metadata["counts"].(map[string]int64)
	if counts["WORKED_AT"] != 2 || counts["DEVELOPED"] != 1 {
		t.Errorf("counts = %+v, want WORKED_AT=2 DEVELOPED=1", counts)
	}
}
