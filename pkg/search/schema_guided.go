package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kadirpekel/graphmind/pkg/embedders"
	"github.com/kadirpekel/graphmind/pkg/graph"
	"github.com/kadirpekel/graphmind/pkg/schema"
)

// SchemaGuidedEngine focuses entity lookups using the graph schema: it
// derives a search strategy per query and runs a prioritized cascade over
// the relevant labels and properties.
//
// Cascade stages, each terminating the search once k distinct entities
// are collected:
//
//  1. exact property match, score 1.0
//  2. prefix match with progressively shorter prefixes down to two
//     characters, score decaying with prefix length
//  3. single-character fallback: entities matching the leading character,
//     scored 0.9 when they contain the full query and 0.3 otherwise
//
// Queries whose strategy is ineffective fall back to the basic engine.
type SchemaGuidedEngine struct {
	semantics
	store     graph.Store
	inspector *schema.Inspector
	fallback  *BasicEngine
}

func NewSchemaGuidedEngine(store graph.Store, embedder embedders.Embedder, inspector *schema.Inspector, scope int) *SchemaGuidedEngine {
	return &SchemaGuidedEngine{
		semantics: semantics{embedder: embedder},
		store:     store,
		inspector: inspector,
		fallback:  NewBasicEngine(store, embedder, scope),
	}
}

// Initialize warms the schema cache and builds the fallback index.
func (e *SchemaGuidedEngine) Initialize(ctx context.Context) error {
	e.inspector.Schema(ctx)
	return e.fallback.Initialize(ctx)
}

func (e *SchemaGuidedEngine) SearchEntities(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	sch := e.inspector.Schema(ctx)
	strategy := sch.DeriveStrategy(query)
	if !strategy.IsEffective() {
		slog.Debug("schema strategy ineffective, using basic search", "query", query)
		return e.fallback.SearchEntities(ctx, query, k)
	}

	targets := searchTargets(sch, strategy)
	runes := []rune(query)
	qlen := len(runes)

	var candidates []Result
	distinct := make(map[string]bool)
	collect := func(matched string, entities []*graph.Entity, score func(*graph.Entity) float64) {
		for _, ent := range entities {
			candidates = append(candidates, Result{Entity: ent, Score: score(ent), Matched: matched})
			distinct[ent.ID] = true
		}
	}

	// Stage 1: exact.
	for _, t := range targets {
		ents, err := e.store.FindEntitiesByProperty(ctx, t.label, t.property, query, k)
		if err != nil {
			slog.Debug("exact search failed", "label", t.label, "error", err)
			continue
		}
		collect("exact", ents, func(*graph.Entity) float64 { return 1.0 })
	}

	// Stage 2: progressively shorter prefixes, never below two characters.
	for plen := qlen - 1; plen >= 2 && len(distinct) < k; plen-- {
		prefix := string(runes[:plen])
		score := 0.9 * float64(plen) / float64(qlen)
		for _, t := range targets {
			ents, err := e.store.FindEntitiesByPrefix(ctx, t.label, t.property, prefix, k)
			if err != nil {
				continue
			}
			collect("prefix", ents, func(*graph.Entity) float64 { return score })
		}
	}

	// Stage 3: single-character fallback.
	if len(distinct) < k && qlen > 0 {
		lower := strings.ToLower(query)
		first := string(runes[:1])
		for _, t := range targets {
			ents, err := e.store.FindEntitiesContaining(ctx, t.label, t.property, first, k)
			if err != nil {
				continue
			}
			collect("fallback", ents, func(ent *graph.Entity) float64 {
				if strings.Contains(strings.ToLower(ent.Name), lower) {
					return 0.9
				}
				return 0.3
			})
		}
	}

	return Merge(candidates, k), nil
}

type searchTarget struct {
	label    string
	property string
}

// searchTargets pairs each relevant label with its search properties, in
// strategy order. Labels without profiled string properties search the
// display name.
func searchTargets(sch *schema.GraphSchema, strategy *schema.SearchStrategy) []searchTarget {
	var targets []searchTarget
	for _, nt := range strategy.NodeTypes {
		props := sch.SearchProperties[nt.Name]
		if len(props) == 0 {
			props = []string{""}
		}
		for _, p := range props {
			targets = append(targets, searchTarget{label: nt.Name, property: p})
		}
	}
	return targets
}

func (e *SchemaGuidedEngine) ScoreRelations(ctx context.Context, query string, relations []*graph.Relation) ([]RelationScore, error) {
	sch := e.inspector.Schema(ctx)
	return scoreRelations(ctx, &e.semantics, e.store, sch.RelationWeights, query, relations)
}

// Ensure SchemaGuidedEngine implements Engine.
var _ Engine = (*SchemaGuidedEngine)(nil)
