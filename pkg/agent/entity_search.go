package agent

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/kadirpekel/graphmind/pkg/scheduler"
	"github.com/kadirpekel/graphmind/pkg/search"
)

// DefaultSearchK is how many entities a search request returns when the
// request context does not say otherwise.
const DefaultSearchK = 10

// EntitySearchAgent serves entity lookup tasks on top of the search
// layer: plain search, per-token identification, and threshold-filtered
// semantic search.
type EntitySearchAgent struct {
	baseAgent
	engine search.Engine
}

func NewEntitySearchAgent(engine search.Engine) *EntitySearchAgent {
	return &EntitySearchAgent{
		baseAgent: newBaseAgent("entity-search",
			KindEntitySearch,
			scheduler.KindEntityIdentification,
			KindSemanticSearch),
		engine: engine,
	}
}

func (a *EntitySearchAgent) Execute(ctx context.Context, req *TaskRequest) *Result {
	start := time.Now()
	a.setState(StateBusy)
	defer a.setState(StateReady)

	var (
		results []search.Result
		err     error
	)
	switch req.Kind {
	case KindEntitySearch:
		results, err = a.engine.SearchEntities(ctx, req.Description, contextInt(req.Context, "k", DefaultSearchK))
	case scheduler.KindEntityIdentification:
		results, err = a.identify(ctx, req)
	case KindSemanticSearch:
		results, err = a.semantic(ctx, req)
	default:
		err = fmt.Errorf("%w: %s", ErrNoAgentForKind, req.Kind)
	}
	if err != nil {
		return failure(err, time.Since(start))
	}

	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "%s (%s) score=%.2f\n", r.Entity.Name, r.Entity.Type, r.Score)
	}
	return success(b.String(), map[string]any{
		"results": results,
		"count":   len(results),
	}, time.Since(start))
}

// identify splits the description into tokens and searches each one,
// deduplicating by entity id keeping the maximum score.
func (a *EntitySearchAgent) identify(ctx context.Context, req *TaskRequest) ([]search.Result, error) {
	k := contextInt(req.Context, "k", DefaultSearchK)
	tokens := strings.FieldsFunc(req.Description, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var all []search.Result
	for _, tok := range tokens {
		results, err := a.engine.SearchEntities(ctx, tok, k)
		if err != nil {
			return nil, fmt.Errorf("identification search for %q failed: %w", tok, err)
		}
		all = append(all, results...)
	}
	return search.Merge(all, k), nil
}

// semantic searches and keeps only results at or above the threshold
// from the request context.
func (a *EntitySearchAgent) semantic(ctx context.Context, req *TaskRequest) ([]search.Result, error) {
	results, err := a.engine.SearchEntities(ctx, req.Description, contextInt(req.Context, "k", DefaultSearchK))
	if err != nil {
		return nil, err
	}
	threshold := contextFloat(req.Context, "threshold", 0)
	filtered := results[:0]
	for _, r := range results {
		if r.Score >= threshold {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

func contextInt(m map[string]any, key string, def int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func contextFloat(m map[string]any, key string, def float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return def
}

func contextString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Ensure EntitySearchAgent implements Agent.
var _ Agent = (*EntitySearchAgent)(nil)
