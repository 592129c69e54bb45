package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kadirpekel/graphmind/pkg/config"
	"github.com/kadirpekel/graphmind/pkg/graph"
	"github.com/kadirpekel/graphmind/pkg/llms"
	"github.com/kadirpekel/graphmind/pkg/observability"
	"github.com/kadirpekel/graphmind/pkg/prompts"
	"github.com/kadirpekel/graphmind/pkg/search"
)

// BasicReasoner is the degradation target: plain entity search plus
// multi-hop traversal, no schema guidance. Answer never returns an
// error; every failure path yields an explanatory result instead, so
// the session API can always hand something back.
type BasicReasoner struct {
	store   graph.Store
	engine  search.Engine
	llm     llms.LLM
	prompts *prompts.Registry
	metrics observability.Recorder
	cfg     config.ReasoningConfig
}

func NewBasicReasoner(store graph.Store, engine search.Engine, llm llms.LLM, reg *prompts.Registry, cfg config.ReasoningConfig) *BasicReasoner {
	return &BasicReasoner{
		store:   store,
		engine:  engine,
		llm:     llm,
		prompts: reg,
		metrics: observability.Noop{},
		cfg:     cfg,
	}
}

// WithMetrics replaces the noop recorder. Chainable at construction.
func (r *BasicReasoner) WithMetrics(rec observability.Recorder) *BasicReasoner {
	if rec != nil {
		r.metrics = rec
	}
	return r
}

// Answer runs search, traversal and answer synthesis, degrading at each
// stage. Results are always marked Fallback since this path carries no
// schema guidance.
func (r *BasicReasoner) Answer(ctx context.Context, question string) *ReasoningResult {
	began := time.Now()
	result := &ReasoningResult{Question: question, Fallback: true}
	defer func() {
		result.Elapsed = time.Since(began)
		if ctx.Err() != nil {
			result.Cancelled = true
		}
	}()

	searchStart := time.Now()
	hits, err := r.engine.SearchEntities(ctx, question, defaultSearchK)
	r.metrics.RecordSearch(ctx, "basic", len(hits), time.Since(searchStart))
	if err != nil {
		slog.Warn("entity search failed", "error", err)
		result.Answer = fmt.Sprintf("Unable to answer: entity search failed (%v).", err)
		return result
	}

	var starts []*graph.Entity
	for _, h := range hits {
		if h.Score >= r.cfg.EntityThreshold {
			starts = append(starts, h.Entity)
		}
	}
	if len(starts) == 0 {
		result.Answer = "No entities in the graph matched the question."
		return result
	}

	rc := NewContext(question, r.cfg)
	if _, err := NewMultiHop(r.store, r.engine, r.cfg).Traverse(ctx, rc, starts); err != nil {
		slog.Warn("traversal failed", "error", err)
	}

	result.Steps = rc.Steps()
	result.Confidence = rc.Confidence()
	evidences := rc.Evidences()
	for _, ev := range evidences {
		result.Evidences = append(result.Evidences, ev.Text)
	}

	llmStart := time.Now()
	answer, err := generateAnswer(ctx, r.llm, r.prompts, r.cfg, question,
		renderHits(hits), "", "", evidences)
	r.metrics.RecordLLMCall(ctx, time.Since(llmStart), err)
	if err != nil {
		slog.Debug("llm answer unavailable, summarizing evidence", "error", err)
		answer = summarizeEvidences(question, evidences)
	}
	result.Answer = answer
	return result
}
