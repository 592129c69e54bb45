package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kadirpekel/graphmind/pkg/agent"
	"github.com/kadirpekel/graphmind/pkg/config"
	"github.com/kadirpekel/graphmind/pkg/graph"
	"github.com/kadirpekel/graphmind/pkg/llms"
	"github.com/kadirpekel/graphmind/pkg/observability"
	"github.com/kadirpekel/graphmind/pkg/prompts"
	"github.com/kadirpekel/graphmind/pkg/schema"
	"github.com/kadirpekel/graphmind/pkg/scheduler"
	"github.com/kadirpekel/graphmind/pkg/search"
)

const (
	extractionTemperature = 0.1

	// Indirect-connection discovery bounds for relationship questions.
	pairPathDepth  = 4
	pairPathLimit  = 3
	maxPairChecks  = 10
	pairPathScore  = 0.5
	indirectPrefix = "[Indirect Connection] "
)

// SchemaReasoner is the primary pipeline: schema-guided extraction,
// scheduled entity search and traversal, pairwise indirect-connection
// discovery for relationship questions, then LLM answer synthesis.
// Execution is driven by the query plan: step order, task priorities
// and dispatch parallelism all come from BuildPlan. Every failure mode
// degrades to the basic reasoner rather than surfacing an error.
type SchemaReasoner struct {
	store     graph.Store
	engine    search.Engine
	inspector *schema.Inspector
	llm       llms.LLM
	prompts   *prompts.Registry
	sched     *scheduler.Scheduler
	basic     *BasicReasoner
	metrics   observability.Recorder
	cfg       config.ReasoningConfig
}

func NewSchemaReasoner(store graph.Store, engine search.Engine, inspector *schema.Inspector,
	llm llms.LLM, reg *prompts.Registry, sched *scheduler.Scheduler,
	basic *BasicReasoner, cfg config.ReasoningConfig) *SchemaReasoner {
	return &SchemaReasoner{
		store:     store,
		engine:    engine,
		inspector: inspector,
		llm:       llm,
		prompts:   reg,
		sched:     sched,
		basic:     basic,
		metrics:   observability.Noop{},
		cfg:       cfg,
	}
}

// WithMetrics replaces the noop recorder. Chainable at construction.
func (r *SchemaReasoner) WithMetrics(rec observability.Recorder) *SchemaReasoner {
	if rec != nil {
		r.metrics = rec
	}
	return r
}

// Answer runs the schema pipeline for one question. A degraded schema
// routes straight to the basic reasoner; pipeline failures fall back the
// same way; cancellation yields a result marked Cancelled.
func (r *SchemaReasoner) Answer(ctx context.Context, sessionID, question string) *ReasoningResult {
	began := time.Now()

	sch := r.inspector.Schema(ctx)
	if sch == nil || sch.Degraded {
		slog.Debug("schema degraded, using basic reasoner", "session_id", sessionID)
		return r.basic.Answer(ctx, question)
	}

	result, err := r.answer(ctx, sessionID, question, sch)
	if err != nil {
		if isCancelled(ctx, err) {
			return &ReasoningResult{
				Question:  question,
				Answer:    "The session was cancelled before an answer could be produced.",
				Cancelled: true,
				Elapsed:   time.Since(began),
			}
		}
		slog.Warn("schema pipeline failed, falling back",
			"session_id", sessionID, "error", err)
		return r.basic.Answer(ctx, question)
	}
	return result
}

// pipeline carries the intermediate products between plan steps.
type pipeline struct {
	question  string
	schema    *schema.GraphSchema
	ex        Extraction
	hits      []search.Result
	starts    []*graph.Entity
	rc        *Context
	evidences []Evidence
	result    *ReasoningResult
}

func (r *SchemaReasoner) answer(ctx context.Context, sessionID, question string, sch *schema.GraphSchema) (*ReasoningResult, error) {
	began := time.Now()

	ex := r.extract(ctx, sessionID, sch, question)
	ex = mergeExtractions(ex, Extraction{Entities: ExtractFromQuestion(sch, question)})
	if len(ex.Entities) == 0 {
		return nil, errors.New("no entity mentions extracted from question")
	}

	plan := BuildPlan(question, sch)
	slog.Debug("query plan built",
		"session_id", sessionID, "strategy", plan.Strategy, "steps", len(plan.Steps))

	// Steps execute in plan order, so every critical-path step may only
	// depend on earlier indexes.
	for _, i := range plan.CriticalPath() {
		for _, dep := range plan.Steps[i].DependsOn {
			if dep >= i {
				return nil, fmt.Errorf("plan step %d (%s) depends on later step %d",
					i, plan.Steps[i].Kind, dep)
			}
		}
	}

	st := &pipeline{
		question: question,
		schema:   sch,
		ex:       ex,
		result:   &ReasoningResult{Question: question},
	}
	for _, step := range plan.Steps {
		if err := r.runStep(ctx, sessionID, plan, step, st); err != nil {
			return nil, err
		}
	}
	st.result.Elapsed = time.Since(began)
	return st.result, nil
}

// runStep dispatches one plan step against the pipeline state. Unknown
// kinds are skipped so plan extensions do not break older pipelines.
func (r *SchemaReasoner) runStep(ctx context.Context, sessionID string, plan *Plan, step PlanStep, st *pipeline) error {
	switch step.Kind {
	case scheduler.KindEntityIdentification:
		return r.identify(ctx, sessionID, plan, step, st)
	case scheduler.KindRelationExploration:
		return r.explore(ctx, sessionID, step, st)
	case scheduler.KindSimilarityCalc:
		if st.rc != nil && st.schema.IsRelationshipQuestion(st.question) && len(st.starts) >= 2 {
			r.discoverConnections(ctx, sessionID, step, st.rc, st.starts)
		}
	case scheduler.KindEvidenceCollection:
		if st.rc == nil {
			return nil
		}
		st.result.Steps = st.rc.Steps()
		st.result.Confidence = st.rc.Confidence()
		st.evidences = st.rc.Evidences()
		for _, ev := range st.evidences {
			st.result.Evidences = append(st.result.Evidences, ev.Text)
		}
	case scheduler.KindAnswerGeneration:
		answer, err := r.generate(ctx, sessionID, step, st.question, st.ex, st.hits, st.evidences)
		if err != nil {
			if isCancelled(ctx, err) {
				return err
			}
			slog.Debug("llm answer unavailable, summarizing evidence",
				"session_id", sessionID, "error", err)
			answer = summarizeEvidences(st.question, st.evidences)
			st.result.Fallback = true
		}
		st.result.Answer = answer
	case scheduler.KindValidation:
		r.validate(ctx, sessionID, step, st.result, st.hits, st.evidences)
	}
	return nil
}

// identify resolves the extracted mentions to graph entities and keeps
// the ones above the entity threshold as traversal starts.
func (r *SchemaReasoner) identify(ctx context.Context, sessionID string, plan *Plan, step PlanStep, st *pipeline) error {
	hits, err := r.searchMentions(ctx, sessionID, plan, step, st.ex.Entities)
	if err != nil {
		return err
	}
	st.hits = hits
	for _, h := range hits {
		if h.Score >= r.cfg.EntityThreshold {
			st.starts = append(st.starts, h.Entity)
		}
	}
	if len(st.starts) == 0 {
		return errors.New("no graph entities matched the extracted mentions")
	}
	return nil
}

// explore runs the multi-hop traversal from the identified starts as a
// scheduled task at the step's planned priority.
func (r *SchemaReasoner) explore(ctx context.Context, sessionID string, step PlanStep, st *pipeline) error {
	st.rc = NewContext(st.question, r.cfg)
	rc, starts := st.rc, st.starts
	mh := NewMultiHop(r.store, r.engine, r.cfg)
	f, err := r.sched.Submit(ctx, scheduler.NewTask(scheduler.KindGraphTraversal, sessionID,
		func(tctx context.Context) (any, error) {
			return mh.Traverse(tctx, rc, starts)
		}).WithPriority(step.Priority))
	if err != nil {
		return err
	}
	_, terr := f.Wait(ctx)
	r.recordTask(ctx, f)
	return terr
}

// validate closes the plan: a result under the confidence floor is
// marked fallback, and under strict validation an answer that names
// none of the matched entities is downgraded to the evidence summary.
func (r *SchemaReasoner) validate(ctx context.Context, sessionID string, step PlanStep, result *ReasoningResult, hits []search.Result, evidences []Evidence) {
	f, err := r.sched.Submit(ctx, scheduler.NewTask(scheduler.KindValidation, sessionID,
		func(context.Context) (any, error) {
			if belowConfidenceFloor(r.cfg, result) {
				result.Fallback = true
			}
			if r.cfg.StrictValidation && !answerNamesEntity(result.Answer, hits) {
				result.Answer = summarizeEvidences(result.Question, evidences)
				result.Fallback = true
			}
			return nil, nil
		}).WithPriority(step.Priority))
	if err != nil {
		return
	}
	_, _ = f.Wait(ctx)
	r.recordTask(ctx, f)
}

// extract asks the LLM to read the question against the schema summary.
// Failures return an empty extraction; the question-side tokenizer backs
// it up either way.
func (r *SchemaReasoner) extract(ctx context.Context, sessionID string, sch *schema.GraphSchema, question string) Extraction {
	if r.llm == nil || !r.llm.Available() {
		return Extraction{}
	}
	prompt, err := r.prompts.Render(prompts.TemplateEntityExtraction, map[string]string{
		"schema":   sch.Describe(),
		"question": question,
	})
	if err != nil {
		slog.Debug("extraction template unavailable", "error", err)
		return Extraction{}
	}

	f, err := r.sched.Submit(ctx, scheduler.NewTask(scheduler.KindLLMGeneration, sessionID,
		func(tctx context.Context) (any, error) {
			callStart := time.Now()
			text, gerr := llms.GenerateWithRetry(tctx, r.llm, prompt,
				extractionTemperature, maxTokensOf(r.cfg), retriesOf(r.cfg))
			r.metrics.RecordLLMCall(tctx, time.Since(callStart), gerr)
			return text, gerr
		}).WithPriority(10))
	if err != nil {
		slog.Debug("extraction submit failed", "error", err)
		return Extraction{}
	}
	v, err := f.Wait(ctx)
	if err != nil {
		slog.Debug("entity extraction failed", "error", err)
		return Extraction{}
	}
	text, _ := v.(string)
	return ParseExtraction(sch, text)
}

// searchMentions runs one search task per mention and merges the
// results to the top k. Dispatch follows the plan: fan-out plans batch
// all lookups at once, sequential ones run them one at a time.
// Cancellation aborts the whole stage; an individual failed lookup only
// loses its own candidates.
func (r *SchemaReasoner) searchMentions(ctx context.Context, sessionID string, plan *Plan, step PlanStep, mentions []ExtractedEntity) ([]search.Result, error) {
	tasks := make([]*scheduler.Task, len(mentions))
	for i, m := range mentions {
		text := m.Text
		tasks[i] = scheduler.NewTask(scheduler.KindEntityIdentification, sessionID,
			func(tctx context.Context) (any, error) {
				return r.engine.SearchEntities(tctx, text, defaultSearchK)
			}).WithPriority(step.Priority)
	}

	var hits []search.Result
	collect := func(f *scheduler.Future) error {
		v, err := f.Wait(ctx)
		r.recordTask(ctx, f)
		if err != nil {
			if isCancelled(ctx, err) {
				return err
			}
			slog.Debug("entity search task failed", "error", err)
			return nil
		}
		if rs, ok := v.([]search.Result); ok {
			hits = append(hits, rs...)
		}
		return nil
	}

	searchStart := time.Now()
	if plan.FanOut(step) {
		for _, f := range r.sched.SubmitBatch(ctx, tasks) {
			if err := collect(f); err != nil {
				return nil, err
			}
		}
	} else {
		for _, task := range tasks {
			f, err := r.sched.Submit(ctx, task)
			if err != nil {
				if isCancelled(ctx, err) {
					return nil, err
				}
				slog.Debug("entity search submit failed", "error", err)
				continue
			}
			if err := collect(f); err != nil {
				return nil, err
			}
		}
	}
	merged := search.Merge(hits, defaultSearchK)
	r.metrics.RecordSearch(ctx, "schema_guided", len(merged), time.Since(searchStart))
	return merged, nil
}

func (r *SchemaReasoner) recordTask(ctx context.Context, f *scheduler.Future) {
	t := f.Task()
	r.metrics.RecordTask(ctx, string(t.Kind), string(t.State()), t.Elapsed())
}

// discoverConnections runs bounded pairwise path finding between the
// matched entities and records each found path as indirect-connection
// evidence. Best effort; failures only cost the missing evidence.
func (r *SchemaReasoner) discoverConnections(ctx context.Context, sessionID string, step PlanStep, rc *Context, entities []*graph.Entity) {
	checks := 0
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			if checks >= maxPairChecks {
				return
			}
			src, tgt := entities[i], entities[j]
			if src.ID == tgt.ID {
				continue
			}
			checks++

			f, err := r.sched.Submit(ctx, scheduler.NewTask(scheduler.KindRelationExploration, sessionID,
				func(tctx context.Context) (any, error) {
					return agent.FindPaths(tctx, r.store, src.ID, tgt.ID, pairPathDepth, pairPathLimit)
				}).WithPriority(step.Priority))
			if err != nil {
				return
			}
			v, err := f.Wait(ctx)
			if err != nil {
				slog.Debug("path discovery failed",
					"source", src.ID, "target", tgt.ID, "error", err)
				continue
			}
			paths, _ := v.([]string)
			for _, p := range paths {
				rc.AddEvidence(Evidence{
					Text:  indirectPrefix + p,
					Score: pairPathScore,
					Depth: pairPathDepth,
				})
			}
		}
	}
}

// generate runs answer synthesis as a scheduled task so it shares the
// session's cancellation scope and priority ordering.
func (r *SchemaReasoner) generate(ctx context.Context, sessionID string, step PlanStep, question string, ex Extraction, hits []search.Result, evidences []Evidence) (string, error) {
	entities := renderHits(hits)
	relations := strings.Join(ex.Relations, ", ")

	f, err := r.sched.Submit(ctx, scheduler.NewTask(scheduler.KindAnswerGeneration, sessionID,
		func(tctx context.Context) (any, error) {
			callStart := time.Now()
			text, gerr := generateAnswer(tctx, r.llm, r.prompts, r.cfg, question,
				entities, relations, ex.Intent, evidences)
			r.metrics.RecordLLMCall(tctx, time.Since(callStart), gerr)
			return text, gerr
		}).WithPriority(step.Priority))
	if err != nil {
		return "", err
	}
	v, err := f.Wait(ctx)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func isCancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, scheduler.ErrTaskCancelled)
}
