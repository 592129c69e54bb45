package search

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/kadirpekel/graphmind/pkg/embedders"
	"github.com/kadirpekel/graphmind/pkg/graph"
	"github.com/kadirpekel/graphmind/pkg/schema"
)

// DefaultIndexScope caps how many entities the basic engine indexes.
const DefaultIndexScope = 10000

// BasicEngine searches by lexical substring match plus embedding cosine
// over entity names. The semantic side is served by an in-process chromem
// collection built once at Initialize from a fixed snapshot of the store.
type BasicEngine struct {
	semantics
	store graph.Store
	scope int

	mu       sync.Mutex
	ready    bool
	col      *chromem.Collection
	entities map[string]*graph.Entity
}

func NewBasicEngine(store graph.Store, embedder embedders.Embedder, scope int) *BasicEngine {
	if scope <= 0 {
		scope = DefaultIndexScope
	}
	return &BasicEngine{
		semantics: semantics{embedder: embedder},
		store:     store,
		scope:     scope,
	}
}

// Initialize builds the vector index. Embeddings are precomputed through
// the engine's embedder; chromem only stores and queries them.
func (e *BasicEngine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready {
		return nil
	}

	entities, err := e.store.AllEntities(ctx, e.scope)
	if err != nil {
		return fmt.Errorf("failed to enumerate entities for indexing: %w", err)
	}

	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection("entities", nil,
		func(ctx context.Context, text string) ([]float32, error) {
			return e.embedder.Embed(ctx, text)
		})
	if err != nil {
		return fmt.Errorf("failed to create vector collection: %w", err)
	}

	e.entities = make(map[string]*graph.Entity, len(entities))
	if len(entities) > 0 {
		names := make([]string, len(entities))
		for i, ent := range entities {
			names[i] = ent.Name
		}
		vecs, err := e.embedder.EmbedBatch(ctx, names)
		if err != nil {
			return fmt.Errorf("failed to embed entity names: %w", err)
		}

		docs := make([]chromem.Document, len(entities))
		for i, ent := range entities {
			e.entities[ent.ID] = ent
			docs[i] = chromem.Document{
				ID:        ent.ID,
				Content:   ent.Name,
				Metadata:  map[string]string{"label": ent.Type},
				Embedding: vecs[i],
			}
		}
		if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("failed to index entities: %w", err)
		}
	}

	e.col = col
	e.ready = true
	slog.Debug("search index built", "entities", len(entities))
	return nil
}

func (e *BasicEngine) SearchEntities(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if err := e.Initialize(ctx); err != nil {
		return nil, err
	}

	var candidates []Result

	// Lexical pass: substring matches over display names. The scan limit
	// is wider than k so merging with the semantic pass stays stable.
	lexLimit := k * 4
	if lexLimit < 20 {
		lexLimit = 20
	}
	matches, err := e.store.FindEntitiesContaining(ctx, "", "", query, lexLimit)
	if err != nil {
		slog.Debug("lexical entity scan failed", "query", query, "error", err)
	}
	for _, ent := range matches {
		score, matched := 0.6, "lexical"
		if strings.EqualFold(ent.Name, query) {
			score, matched = 1.0, "exact"
		}
		candidates = append(candidates, Result{Entity: ent, Score: score, Matched: matched})
	}

	// Semantic pass over the vector index.
	n := k
	if count := e.col.Count(); n > count {
		n = count
	}
	if n > 0 {
		qv, err := e.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		hits, err := e.col.QueryEmbedding(ctx, qv, n, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("vector query failed: %w", err)
		}
		for _, hit := range hits {
			ent, ok := e.entities[hit.ID]
			if !ok {
				continue
			}
			candidates = append(candidates, Result{
				Entity:  ent,
				Score:   clamp01(float64(hit.Similarity)),
				Matched: "semantic",
			})
		}
	}

	return Merge(candidates, k), nil
}

func (e *BasicEngine) ScoreRelations(ctx context.Context, query string, relations []*graph.Relation) ([]RelationScore, error) {
	return scoreRelations(ctx, &e.semantics, e.store, nil, query, relations)
}

// scoreRelations ranks relations by blending lexical overlap of the query
// with the relation's type and endpoint names, and embedding cosine over
// the same text. Shared by both engines; weights bias known relation
// types when a schema is available.
func scoreRelations(ctx context.Context, sem *semantics, store graph.Store, weights map[string]float64, query string, relations []*graph.Relation) ([]RelationScore, error) {
	if len(relations) == 0 {
		return nil, nil
	}

	texts := make([]string, len(relations))
	for i, r := range relations {
		texts[i] = relationText(ctx, store, r)
	}

	cosines, err := sem.CosineSimilarities(ctx, query, texts)
	if err != nil {
		return nil, err
	}

	qTokens := schema.Tokenize(query, nil)
	out := make([]RelationScore, len(relations))
	for i, r := range relations {
		lex := tokenOverlap(qTokens, schema.Tokenize(texts[i], nil))
		score := 0.5*lex + 0.5*clamp01(cosines[i])
		if w, ok := weights[r.Type]; ok {
			score *= w
		}
		out[i] = RelationScore{Relation: r, Score: clamp01(score)}
	}
	sortRelationScores(out)
	return out, nil
}

// relationText renders a relation for scoring: type words plus resolved
// endpoint names. Unresolvable endpoints degrade to their ids.
func relationText(ctx context.Context, store graph.Store, r *graph.Relation) string {
	src, tgt := r.SourceID, r.TargetID
	if e, err := store.FindEntity(ctx, r.SourceID); err == nil {
		src = e.Name
	}
	if e, err := store.FindEntity(ctx, r.TargetID); err == nil {
		tgt = e.Name
	}
	return r.Type + " " + src + " " + tgt
}

// tokenOverlap is the fraction of query tokens matched by target tokens,
// counting prefix matches in either direction.
func tokenOverlap(qTokens, tTokens []string) float64 {
	if len(qTokens) == 0 || len(tTokens) == 0 {
		return 0
	}
	matched := 0
	for _, q := range qTokens {
		for _, t := range tTokens {
			if q == t || strings.HasPrefix(q, t) || strings.HasPrefix(t, q) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(qTokens))
}

// Ensure BasicEngine implements Engine.
var _ Engine = (*BasicEngine)(nil)
