package reasoning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kadirpekel/graphmind/pkg/config"
	"github.com/kadirpekel/graphmind/pkg/embedders"
	"github.com/kadirpekel/graphmind/pkg/graph"
	"github.com/kadirpekel/graphmind/pkg/llms"
	"github.com/kadirpekel/graphmind/pkg/prompts"
	"github.com/kadirpekel/graphmind/pkg/schema"
	"github.com/kadirpekel/graphmind/pkg/search"
)

func reasoningTestStore() *graph.MemoryStore {
	s := graph.NewMemoryStore()
	s.AddEntity(&graph.Entity{ID: "e1", Name: "Einstein", Type: "Person", Properties: map[string]any{"name": "Einstein"}})
	s.AddEntity(&graph.Entity{ID: "e2", Name: "Curie", Type: "Person", Properties: map[string]any{"name": "Curie"}})
	s.AddEntity(&graph.Entity{ID: "e3", Name: "Relativity", Type: "Theory", Properties: map[string]any{"name": "Relativity"}})
	s.AddEntity(&graph.Entity{ID: "e4", Name: "ETH Zurich", Type: "Institution", Properties: map[string]any{"name": "ETH Zurich"}})
	s.AddEntity(&graph.Entity{ID: "e5", Name: "Ulm", Type: "City", Properties: map[string]any{"name": "Ulm"}})
	s.AddRelation(&graph.Relation{SourceID: "e1", TargetID: "e3", Type: "DEVELOPED"})
	s.AddRelation(&graph.Relation{SourceID: "e1", TargetID: "e4", Type: "WORKED_AT"})
	s.AddRelation(&graph.Relation{SourceID: "e1", TargetID: "e5", Type: "BORN_IN"})
	s.AddRelation(&graph.Relation{SourceID: "e2", TargetID: "e4", Type: "WORKED_AT"})
	return s
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngineWithAdapters(context.Background(), config.DefaultConfig(),
		reasoningTestStore(), embedders.NewStubEmbedder(64), llms.NewStubLLM())
	if err != nil {
		t.Fatalf("NewEngineWithAdapters() error: %v", err)
	}
	t.Cleanup(func() { e.Shutdown(context.Background()) })
	return e
}

func ent(id, name string) *graph.Entity {
	return &graph.Entity{ID: id, Name: name, Type: "Person"}
}

func step(srcID, src, relType, tgtID, tgt string, score float64, depth int) *ReasoningStep {
	return &ReasoningStep{
		Source:   ent(srcID, src),
		Relation: &graph.Relation{SourceID: srcID, TargetID: tgtID, Type: relType},
		Target:   ent(tgtID, tgt),
		Score:    score,
		Depth:    depth,
	}
}

func TestContext_DedupByTriple(t *testing.T) {
	rc := NewContext("q", config.ReasoningConfig{})

	first := step("e1", "Einstein", "DEVELOPED", "e3", "Relativity", 0.9, 1)
	if !rc.AddStep(first) {
		t.Fatal("first AddStep returned false")
	}
	dup := step("e1", "Einstein", "DEVELOPED", "e3", "Relativity", 0.2, 2)
	if rc.AddStep(dup) {
		t.Error("duplicate triple was accepted")
	}
	if got := len(rc.Steps()); got != 1 {
		t.Errorf("steps = %d, want 1", got)
	}
	if got := rc.VisitCount("e3"); got != 2 {
		t.Errorf("target visit count = %d, want 2", got)
	}

	reversed := step("e3", "Relativity", "DEVELOPED", "e1", "Einstein", 0.5, 1)
	if !rc.AddStep(reversed) {
		t.Error("reversed triple should be a distinct step")
	}
}

func TestContext_ConfidenceDepthWeighted(t *testing.T) {
	rc := NewContext("q", config.ReasoningConfig{})
	rc.AddStep(step("e1", "A", "R1", "e2", "B", 0.8, 1))
	rc.AddStep(step("e2", "B", "R2", "e3", "C", 0.6, 2))

	want := 0.8/2 + 0.6/3
	if got := rc.Confidence(); got < want-1e-9 || got > want+1e-9 {
		t.Errorf("confidence = %f, want %f", got, want)
	}
}

func TestContext_HasEnoughEvidence(t *testing.T) {
	cfg := config.ReasoningConfig{MinEvidences: 2}
	rc := NewContext("q", cfg)
	if rc.HasEnoughEvidence() {
		t.Fatal("empty context reports enough evidence")
	}
	rc.AddStep(step("e1", "A", "R1", "e2", "B", 0.8, 1))
	rc.AddStep(step("e2", "B", "R2", "e3", "C", 0.6, 1))
	if !rc.HasEnoughEvidence() {
		t.Error("evidence floor not detected")
	}
}

func TestMultiHop_FindsPathAndDropsDanglingEdges(t *testing.T) {
	store := reasoningTestStore()
	// Edge to a node that does not exist; traversal must skip it.
	store.AddRelation(&graph.Relation{SourceID: "e3", TargetID: "ghost", Type: "CITED_BY"})

	engine := search.NewBasicEngine(store, embedders.NewStubEmbedder(64), 0)
	if err := engine.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}

	cfg := config.ReasoningConfig{MaxDepth: 2, SearchWidth: 3}
	rc := NewContext("Who developed the theory of relativity?", cfg)
	start, err := store.FindEntity(context.Background(), "e3")
	if err != nil {
		t.Fatalf("FindEntity() error: %v", err)
	}

	res, err := NewMultiHop(store, engine, cfg).Traverse(context.Background(), rc, []*graph.Entity{start})
	if err != nil {
		t.Fatalf("Traverse() error: %v", err)
	}
	if len(res.Paths) == 0 {
		t.Fatal("no paths found")
	}
	for _, p := range res.Paths {
		if !p.Valid() {
			t.Errorf("invalid path: %s", p.Describe())
		}
		for _, s := range p.Steps {
			if s.Target.ID == "ghost" || s.Source.ID == "ghost" {
				t.Errorf("dangling edge reached ghost node: %s", p.Describe())
			}
		}
	}
	for i := 1; i < len(res.Paths); i++ {
		if res.Paths[i].Score > res.Paths[i-1].Score {
			t.Errorf("paths not sorted descending at %d", i)
		}
	}

	var found bool
	for _, ev := range res.Evidences {
		if strings.Contains(ev.Text, "DEVELOPED") && strings.Contains(ev.Text, "Einstein") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected DEVELOPED evidence, got %v", res.Evidences)
	}
}

func TestMultiHop_EntityCapStopsTraversal(t *testing.T) {
	store := graph.NewMemoryStore()
	// A hub with far more neighbors than the cap, and a search width wide
	// enough that a single depth could blow past it.
	store.AddEntity(&graph.Entity{ID: "hub", Name: "Hub", Type: "Node"})
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("n%02d", i)
		store.AddEntity(&graph.Entity{ID: id, Name: "Node " + id, Type: "Node"})
		store.AddRelation(&graph.Relation{SourceID: "hub", TargetID: id, Type: "LINKS"})
	}

	engine := search.NewBasicEngine(store, embedders.NewStubEmbedder(64), 0)
	if err := engine.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}

	cfg := config.ReasoningConfig{MaxDepth: 3, SearchWidth: 30, MaxEntities: 5, MinEvidences: 1000, ConfidenceStop: 1000, DepthStop: 1000}
	rc := NewContext("hub links", cfg)
	start, _ := store.FindEntity(context.Background(), "hub")

	res, err := NewMultiHop(store, engine, cfg).Traverse(context.Background(), rc, []*graph.Entity{start})
	if err != nil {
		t.Fatalf("Traverse() error: %v", err)
	}
	if res.Explored > cfg.MaxEntities {
		t.Errorf("explored %d entities, want at most %d", res.Explored, cfg.MaxEntities)
	}
	if res.Explored == 0 {
		t.Error("traversal explored nothing")
	}
}

func TestBuildPlan_CanonicalSteps(t *testing.T) {
	plan := BuildPlan("Who developed relativity?", schema.FallbackSchema())
	if len(plan.Steps) != 6 {
		t.Fatalf("steps = %d, want 6", len(plan.Steps))
	}
	if got := len(plan.Independent()); got != 1 {
		t.Errorf("independent steps = %d, want 1", got)
	}
	for i := 1; i < len(plan.Steps); i++ {
		deps := plan.Steps[i].DependsOn
		if len(deps) != 1 || deps[0] != i-1 {
			t.Errorf("step %d depends on %v, want [%d]", i, deps, i-1)
		}
		if plan.Steps[i].Priority >= plan.Steps[i-1].Priority {
			t.Errorf("priorities not strictly decreasing at %d", i)
		}
	}
	if plan.Strategy == "" {
		t.Error("strategy not set")
	}
}

func TestBuildPlan_StrategySelection(t *testing.T) {
	small := &schema.GraphSchema{NodeTypes: []schema.NodeTypeInfo{{Label: "Person"}}}
	if got := BuildPlan("who is einstein", small).Strategy; got != StrategySequential {
		t.Errorf("short question over small schema = %s, want %s", got, StrategySequential)
	}

	two := &schema.GraphSchema{NodeTypes: []schema.NodeTypeInfo{{Label: "Person"}, {Label: "Theory"}}}
	if got := BuildPlan("which person developed which theory", two).Strategy; got != StrategyParallel {
		t.Errorf("multi-family question = %s, want %s", got, StrategyParallel)
	}

	if got := BuildPlan("tell me everything you know about quantum mechanics history", small).Strategy; got != StrategyAdaptive {
		t.Errorf("long open question = %s, want %s", got, StrategyAdaptive)
	}
}

func TestPlan_FanOutFollowsStrategy(t *testing.T) {
	plan := BuildPlan("Who developed Relativity?", schema.FallbackSchema())
	identify, traverse := plan.Steps[0], plan.Steps[1]

	plan.Strategy = StrategySequential
	if plan.FanOut(identify) || plan.FanOut(traverse) {
		t.Error("sequential plan allowed fan-out")
	}
	plan.Strategy = StrategyParallel
	if !plan.FanOut(identify) || !plan.FanOut(traverse) {
		t.Error("parallel plan denied fan-out")
	}
	plan.Strategy = StrategyAdaptive
	if !plan.FanOut(identify) {
		t.Error("adaptive plan denied fan-out for the independent step")
	}
	if plan.FanOut(traverse) {
		t.Error("adaptive plan fanned out a dependent step")
	}
}

func TestSchemaReasoner_SequentialPlanAnswers(t *testing.T) {
	store := graph.NewMemoryStore()
	store.AddEntity(&graph.Entity{ID: "p1", Name: "Einstein", Type: "Person", Properties: map[string]any{"name": "Einstein"}})
	store.AddEntity(&graph.Entity{ID: "p2", Name: "Curie", Type: "Person", Properties: map[string]any{"name": "Curie"}})
	store.AddRelation(&graph.Relation{SourceID: "p1", TargetID: "p2", Type: "KNOWS"})

	e, err := NewEngineWithAdapters(context.Background(), config.DefaultConfig(),
		store, embedders.NewStubEmbedder(64), llms.NewStubLLM())
	if err != nil {
		t.Fatalf("NewEngineWithAdapters() error: %v", err)
	}
	defer e.Shutdown(context.Background())

	question := "did einstein know curie"
	sch := e.Schema(context.Background())
	if got := BuildPlan(question, sch).Strategy; got != StrategySequential {
		t.Fatalf("plan strategy = %s, want %s", got, StrategySequential)
	}

	res, err := e.NewSession().Ask(context.Background(), question)
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if res.Answer == "" {
		t.Fatal("empty answer under sequential dispatch")
	}
	var found bool
	for _, ev := range res.Evidences {
		if strings.Contains(ev, "KNOWS") {
			found = true
		}
	}
	if !found {
		t.Errorf("no KNOWS evidence in %v", res.Evidences)
	}
}

func TestInferLabel(t *testing.T) {
	sch := &schema.GraphSchema{
		NodeTypes: []schema.NodeTypeInfo{{Label: "Person"}, {Label: "Theory"}},
		ExtractionPatterns: map[string]string{
			`(?i)^dr\.? `: "Person",
		},
	}

	tests := []struct {
		text      string
		wantLabel string
		wantConf  float64
	}{
		{"Dr. Einstein", "Person", patternConfidence},
		{"theory of relativity", "Theory", labelConfidence},
		{"zurich", AnyLabel, fallbackConfidence},
	}
	for _, tt := range tests {
		label, conf := InferLabel(sch, tt.text)
		if label != tt.wantLabel || conf != tt.wantConf {
			t.Errorf("InferLabel(%q) = (%s, %.1f), want (%s, %.1f)",
				tt.text, label, conf, tt.wantLabel, tt.wantConf)
		}
	}
}

func TestParseExtraction_TolerantToProse(t *testing.T) {
	sch := schema.FallbackSchema()
	text := "Sure! Here is the analysis:\n```json\n" +
		`{"entities": ["Einstein", "Relativity"], "relationships": ["DEVELOPED"], "intent": "attribution"}` +
		"\n```\nLet me know if you need more."

	ex := ParseExtraction(sch, text)
	if len(ex.Entities) != 2 {
		t.Fatalf("entities = %d, want 2", len(ex.Entities))
	}
	if ex.Entities[0].Text != "Einstein" || ex.Entities[1].Text != "Relativity" {
		t.Errorf("entities = %+v", ex.Entities)
	}
	if len(ex.Relations) != 1 || ex.Relations[0] != "DEVELOPED" {
		t.Errorf("relations = %v", ex.Relations)
	}
	if ex.Intent != "attribution" {
		t.Errorf("intent = %q", ex.Intent)
	}
}

func TestMergeExtractions_KeepsHigherConfidence(t *testing.T) {
	primary := Extraction{
		Entities: []ExtractedEntity{{Text: "Einstein", Label: "Person", Confidence: 0.9}},
		Intent:   "attribution",
	}
	supplement := Extraction{
		Entities: []ExtractedEntity{
			{Text: "einstein", Label: AnyLabel, Confidence: 0.3},
			{Text: "relativity", Label: AnyLabel, Confidence: 0.3},
		},
	}
	merged := mergeExtractions(primary, supplement)
	if len(merged.Entities) != 2 {
		t.Fatalf("entities = %d, want 2", len(merged.Entities))
	}
	if merged.Entities[0].Confidence != 0.9 || merged.Entities[0].Label != "Person" {
		t.Errorf("primary reading lost: %+v", merged.Entities[0])
	}
	if merged.Intent != "attribution" {
		t.Errorf("intent = %q", merged.Intent)
	}
}

func TestBudgetEvidences(t *testing.T) {
	long := strings.Repeat("word ", 200)
	evs := []Evidence{{Text: long}, {Text: long}, {Text: long}}

	kept := BudgetEvidences(evs, 50)
	if len(kept) != 1 {
		t.Errorf("kept = %d, want 1 (first always survives)", len(kept))
	}
	if got := BudgetEvidences(evs, 0); len(got) != 3 {
		t.Errorf("zero budget should keep everything, got %d", len(got))
	}
}

func TestAnswerValidation(t *testing.T) {
	hits := []search.Result{
		{Entity: &graph.Entity{ID: "e1", Name: "Einstein", Type: "Person"}},
	}
	if !answerNamesEntity("Albert Einstein developed it.", hits) {
		t.Error("answer naming a matched entity rejected")
	}
	if answerNamesEntity("Nobody knows.", hits) {
		t.Error("answer naming no matched entity accepted")
	}

	cfg := config.ReasoningConfig{ConfidenceThreshold: 0.5}
	weak := &ReasoningResult{
		Steps:      []*ReasoningStep{step("e1", "A", "R", "e2", "B", 0.2, 1)},
		Confidence: 0.1,
	}
	if !belowConfidenceFloor(cfg, weak) {
		t.Error("weak result passed the confidence floor")
	}
	weak.Confidence = 0.9
	if belowConfidenceFloor(cfg, weak) {
		t.Error("strong result failed the confidence floor")
	}
	if belowConfidenceFloor(cfg, &ReasoningResult{Confidence: 0}) {
		t.Error("stepless result should not be gated on confidence")
	}
}

func TestSession_AnswersSingleHopQuestion(t *testing.T) {
	e := newTestEngine(t)
	s := e.NewSession()

	res, err := s.Ask(context.Background(), "Who developed Relativity?")
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if res.Answer == "" {
		t.Fatal("empty answer")
	}
	if res.Cancelled {
		t.Error("result marked cancelled")
	}
	var found bool
	for _, ev := range res.Evidences {
		if strings.Contains(ev, "DEVELOPED") {
			found = true
		}
	}
	if !found {
		t.Errorf("no DEVELOPED evidence in %v", res.Evidences)
	}
}

func TestSession_EmptyQuestionRejected(t *testing.T) {
	e := newTestEngine(t)
	s := e.NewSession()

	if _, err := s.Ask(context.Background(), "   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("err = %v, want ErrEmptyQuestion", err)
	}
}

func TestSession_BatchPreservesOrder(t *testing.T) {
	e := newTestEngine(t)
	s := e.NewSession()

	questions := []string{
		"Who developed Relativity?",
		"Where did Einstein work?",
		"",
		"Where was Einstein born?",
	}
	results := s.AskBatch(context.Background(), questions)
	if len(results) != len(questions) {
		t.Fatalf("results = %d, want %d", len(results), len(questions))
	}
	for i, res := range results {
		if res == nil {
			t.Fatalf("nil result at %d", i)
		}
		if res.Question != questions[i] {
			t.Errorf("slot %d holds %q, want %q", i, res.Question, questions[i])
		}
		if res.Answer == "" {
			t.Errorf("slot %d has empty answer", i)
		}
	}
	if !results[2].Fallback {
		t.Error("empty question slot not marked fallback")
	}
}

func TestSession_CancelledSessionReturnsCancelledResult(t *testing.T) {
	e := newTestEngine(t)
	s := e.NewSession()
	s.Cancel()

	res, err := s.Ask(context.Background(), "Who developed Relativity?")
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if !res.Cancelled {
		t.Error("result not marked cancelled")
	}
	if res.Answer == "" {
		t.Error("cancelled result has empty answer")
	}
	if !s.Cancelled() {
		t.Error("session not reporting cancelled")
	}
}

func TestBasicReasoner_NeverErrors(t *testing.T) {
	store := reasoningTestStore()
	engine := search.NewBasicEngine(store, embedders.NewStubEmbedder(64), 0)
	if err := engine.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}

	cfg := config.ReasoningConfig{}
	cfg.SetDefaults()
	llm := llms.NewStubLLM().FailWith(errors.New("provider down"))
	r := NewBasicReasoner(store, engine, llm, prompts.NewRegistry(""), cfg)

	res := r.Answer(context.Background(), "Who developed Relativity?")
	if res == nil || res.Answer == "" {
		t.Fatal("expected a non-empty fallback answer")
	}
	if !res.Fallback {
		t.Error("basic answer not marked fallback")
	}
}

func TestBasicReasoner_NoMatchStillAnswers(t *testing.T) {
	store := reasoningTestStore()
	engine := search.NewBasicEngine(store, embedders.NewStubEmbedder(64), 0)
	if err := engine.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	cfg := config.ReasoningConfig{}
	cfg.SetDefaults()
	cfg.EntityThreshold = 0.99

	r := NewBasicReasoner(store, engine, llms.NewStubLLM(), prompts.NewRegistry(""), cfg)
	res := r.Answer(context.Background(), "zzzz qqqq unrelated")
	if res.Answer == "" {
		t.Fatal("expected explanatory answer for zero matches")
	}
	if len(res.Steps) != 0 {
		t.Errorf("unexpected steps: %v", res.Steps)
	}
}

// degradedStore rejects introspection so the inspector builds its
// fallback schema.
type degradedStore struct{ graph.Store }

func (degradedStore) NodeTypes(context.Context) ([]string, error) {
	return nil, errors.New("introspection unsupported")
}

func TestSchemaReasoner_DegradedSchemaFallsBack(t *testing.T) {
	store := degradedStore{reasoningTestStore()}
	e, err := NewEngineWithAdapters(context.Background(), config.DefaultConfig(),
		store, embedders.NewStubEmbedder(64), llms.NewStubLLM())
	if err != nil {
		t.Fatalf("NewEngineWithAdapters() error: %v", err)
	}
	defer e.Shutdown(context.Background())

	if !e.Schema(context.Background()).Degraded {
		t.Fatal("schema not degraded")
	}

	s := e.NewSession()
	res, err := s.Ask(context.Background(), "Who developed Relativity?")
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if !res.Fallback {
		t.Error("degraded-schema answer not marked fallback")
	}
	if res.Answer == "" {
		t.Error("empty answer")
	}
}

func TestSchemaReasoner_RelationshipQuestionAddsIndirectEvidence(t *testing.T) {
	e := newTestEngine(t)
	s := e.NewSession()

	res, err := s.Ask(context.Background(), "What is the relationship between Einstein and Curie?")
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if res.Answer == "" {
		t.Fatal("empty answer")
	}
	// Einstein and Curie connect only through ETH Zurich; the pairwise
	// discovery records that as indirect-connection evidence.
	var indirect bool
	for _, ev := range res.Evidences {
		if strings.HasPrefix(ev, indirectPrefix) {
			indirect = true
			if !strings.Contains(ev, "ETH Zurich") {
				t.Errorf("indirect evidence misses bridge entity: %s", ev)
			}
		}
	}
	if !indirect {
		t.Errorf("no indirect-connection evidence in %v", res.Evidences)
	}
}

func TestSchemaReasoner_ChineseRelationshipQuestion(t *testing.T) {
	store := graph.NewMemoryStore()
	store.AddEntity(&graph.Entity{ID: "c1", Name: "爱因斯坦", Type: "Person", Properties: map[string]any{"name": "爱因斯坦"}})
	store.AddEntity(&graph.Entity{ID: "c2", Name: "居里", Type: "Person", Properties: map[string]any{"name": "居里"}})
	store.AddEntity(&graph.Entity{ID: "c3", Name: "苏黎世", Type: "Institution", Properties: map[string]any{"name": "苏黎世"}})
	store.AddRelation(&graph.Relation{SourceID: "c1", TargetID: "c3", Type: "WORKED_AT"})
	store.AddRelation(&graph.Relation{SourceID: "c2", TargetID: "c3", Type: "WORKED_AT"})

	e, err := NewEngineWithAdapters(context.Background(), config.DefaultConfig(),
		store, embedders.NewStubEmbedder(64), llms.NewStubLLM())
	if err != nil {
		t.Fatalf("NewEngineWithAdapters() error: %v", err)
	}
	defer e.Shutdown(context.Background())

	// 与 and 关系 mark this as a relationship question; the two names
	// connect only through 苏黎世.
	res, err := e.NewSession().Ask(context.Background(), "爱因斯坦与居里之间是什么关系")
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if res.Answer == "" {
		t.Fatal("empty answer")
	}
	var indirect bool
	for _, ev := range res.Evidences {
		if strings.HasPrefix(ev, indirectPrefix) {
			indirect = true
			if !strings.Contains(ev, "苏黎世") {
				t.Errorf("indirect evidence misses bridge entity: %s", ev)
			}
		}
	}
	if !indirect {
		t.Errorf("no indirect-connection evidence in %v", res.Evidences)
	}
}

func TestSession_DeterministicWithStubs(t *testing.T) {
	e := newTestEngine(t)

	first, err := e.NewSession().Ask(context.Background(), "Who developed Relativity?")
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	second, err := e.NewSession().Ask(context.Background(), "Who developed Relativity?")
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if first.Answer != second.Answer {
		t.Errorf("answers differ:\n%q\n%q", first.Answer, second.Answer)
	}
	if len(first.Evidences) != len(second.Evidences) {
		t.Errorf("evidence counts differ: %d vs %d", len(first.Evidences), len(second.Evidences))
	}
}

func TestEngine_ShutdownRejectsNewWork(t *testing.T) {
	e, err := NewEngineWithAdapters(context.Background(), config.DefaultConfig(),
		reasoningTestStore(), embedders.NewStubEmbedder(64), llms.NewStubLLM())
	if err != nil {
		t.Fatalf("NewEngineWithAdapters() error: %v", err)
	}
	s := e.NewSession()
	if err := e.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}

	// The pipeline cannot schedule work anymore; the session still
	// returns a result rather than panicking.
	done := make(chan *ReasoningResult, 1)
	go func() {
		res, _ := s.Ask(context.Background(), "Who developed Relativity?")
		done <- res
	}()
	select {
	case res := <-done:
		if res == nil || res.Answer == "" {
			t.Error("expected explanatory answer after shutdown")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Ask blocked after shutdown")
	}
}
