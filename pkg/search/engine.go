package search

import (
	"context"
	"sort"

	"github.com/kadirpekel/graphmind/pkg/embedders"
	"github.com/kadirpekel/graphmind/pkg/graph"
)

// Result is a scored entity match. Score is in [0, 1]; results from
// SearchEntities are sorted descending with entity id as tiebreak, so a
// top-k query is always a prefix of a larger top-k' query on the same
// store.
type Result struct {
	Entity *graph.Entity `json:"entity"`
	Score  float64       `json:"score"`

	// Matched records which stage produced the score: "exact", "prefix",
	// "fallback", "semantic" or "lexical".
	Matched string `json:"matched,omitempty"`
}

// RelationScore is a relation ranked against a question.
type RelationScore struct {
	Relation *graph.Relation `json:"relation"`
	Score    float64         `json:"score"`
}

// Engine is the entity and relation search contract the reasoning core
// consumes. Implementations are safe for concurrent use after Initialize.
type Engine interface {
	// Initialize prepares the engine (builds indexes, warms caches).
	// Idempotent; later calls are cheap no-ops.
	Initialize(ctx context.Context) error

	// SearchEntities returns up to k entities matching the query text,
	// scored in [0, 1] and sorted descending.
	SearchEntities(ctx context.Context, query string, k int) ([]Result, error)

	// ScoreRelations ranks candidate relations by relevance to the query.
	// Every input relation appears in the output exactly once.
	ScoreRelations(ctx context.Context, query string, relations []*graph.Relation) ([]RelationScore, error)

	// CosineSimilarity embeds both texts and returns their cosine.
	CosineSimilarity(ctx context.Context, a, b string) (float64, error)

	// CosineSimilarities embeds the query once and scores it against each
	// text. Output index i corresponds to texts[i].
	CosineSimilarities(ctx context.Context, query string, texts []string) ([]float64, error)
}

// semantics bundles the embedding-based scoring shared by all engines.
type semantics struct {
	embedder embedders.Embedder
}

func (s *semantics) CosineSimilarity(ctx context.Context, a, b string) (float64, error) {
	vecs, err := s.embedder.EmbedBatch(ctx, []string{a, b})
	if err != nil {
		return 0, err
	}
	return embedders.Cosine(vecs[0], vecs[1]), nil
}

func (s *semantics) CosineSimilarities(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	qv, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	tvs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(texts))
	for i, tv := range tvs {
		out[i] = embedders.Cosine(qv, tv)
	}
	return out, nil
}

// Merge deduplicates by entity id keeping the highest score, then sorts
// descending with id as the tiebreak and truncates to k.
func Merge(results []Result, k int) []Result {
	best := make(map[string]Result, len(results))
	for _, r := range results {
		if prev, ok := best[r.Entity.ID]; !ok || r.Score > prev.Score {
			best[r.Entity.ID] = r
		}
	}
	merged := make([]Result, 0, len(best))
	for _, r := range best {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].Entity.ID < merged[j].Entity.ID
	})
	if k > 0 && len(merged) > k {
		merged = merged[:k]
	}
	return merged
}

func sortRelationScores(scores []RelationScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
