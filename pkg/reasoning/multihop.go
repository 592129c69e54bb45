package reasoning

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kadirpekel/graphmind/pkg/config"
	"github.com/kadirpekel/graphmind/pkg/graph"
	"github.com/kadirpekel/graphmind/pkg/search"
)

// MultiHop is the frontier-expansion traversal engine. It walks outward
// from the start entities depth by depth, scoring every candidate edge
// against the question and keeping only the strongest, with a depth
// penalty and a novelty bonus shaping each step's score.
type MultiHop struct {
	store  graph.Store
	engine search.Engine
	cfg    config.ReasoningConfig
}

func NewMultiHop(store graph.Store, engine search.Engine, cfg config.ReasoningConfig) *MultiHop {
	return &MultiHop{store: store, engine: engine, cfg: cfg}
}

// Traverse expands from the start entities until a stop condition fires:
// a depth with no new paths, enough good paths overall, the entity cap,
// the session budget, or the soft timeout after the first found path.
// Collected steps and evidences land in the shared context; the returned
// result carries the final ranked paths.
func (m *MultiHop) Traverse(ctx context.Context, rc *Context, start []*graph.Entity) (*MultiHopResult, error) {
	begin := time.Now()
	result := &MultiHopResult{Question: rc.Question()}
	if len(start) == 0 {
		return result, nil
	}

	maxDepth := m.cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 3
	}
	width := m.cfg.SearchWidth
	if width <= 0 {
		width = 3
	}
	maxEntities := m.cfg.MaxEntities
	if maxEntities <= 0 {
		maxEntities = 100
	}
	maxPaths := m.cfg.MaxPaths
	if maxPaths <= 0 {
		maxPaths = 50
	}
	goodScore := m.cfg.GoodPathScore
	if goodScore <= 0 {
		goodScore = 0.7
	}
	goodCount := m.cfg.GoodPathCount
	if goodCount <= 0 {
		goodCount = 3
	}
	softTimeout := time.Duration(m.cfg.PathSoftTimeout) * time.Millisecond
	if softTimeout <= 0 {
		softTimeout = 10 * time.Second
	}

	rc.AddEntities(start)
	rc.SetFrontier(0, start)

	var (
		paths      []*ReasoningPath
		goodPaths  int
		firstPath  time.Time
		expanded   = make(map[string]bool)
		pathTo     = make(map[string][]*ReasoningStep)
		enqueued   = make(map[string]bool)
	)
	for _, e := range start {
		enqueued[e.ID] = true
	}

	for depth := 0; depth < maxDepth; depth++ {
		frontier := rc.Frontier(depth)
		if len(frontier) == 0 {
			break
		}

		var next []*graph.Entity
		newPaths := 0

		for _, entity := range frontier {
			if ctx.Err() != nil {
				result.Paths = m.rank(ctx, rc, paths)
				result.Explored = rc.Explored()
				result.Evidences = rc.Evidences()
				result.Elapsed = time.Since(begin)
				return result, nil
			}
			if expanded[entity.ID] {
				continue
			}
			expanded[entity.ID] = true

			relations, err := m.store.EntityRelations(ctx, entity.ID)
			if err != nil {
				slog.Debug("relation fetch failed, skipping entity",
					"entity_id", entity.ID, "error", err)
				continue
			}
			scored, err := m.engine.ScoreRelations(ctx, rc.Question(), relations)
			if err != nil {
				slog.Debug("relation scoring failed, skipping entity",
					"entity_id", entity.ID, "error", err)
				continue
			}

			kept := 0
			for _, rs := range scored {
				if kept >= width || rs.Score <= m.cfg.RelationThreshold {
					break
				}
				targetID := rs.Relation.OtherEnd(entity.ID)
				novel := !rc.Visited(targetID)
				if novel && rc.Explored() >= maxEntities {
					// Entity cap reached: no new entities may join.
					break
				}
				target, err := m.store.FindEntity(ctx, targetID)
				if err != nil {
					// Dangling edge: drop the step, keep traversing.
					continue
				}
				kept++

				step := &ReasoningStep{
					Source:    entity,
					Relation:  rs.Relation,
					Target:    target,
					Score:     m.stepScore(ctx, rc.Question(), rs.Score, entity, target, depth, novel),
					Depth:     depth + 1,
					Rationale: rationale(rs.Relation.Type),
					Timestamp: time.Now(),
				}
				if !rc.AddStep(step) {
					continue
				}

				chain := append(append([]*ReasoningStep{}, pathTo[entity.ID]...), step)
				pathTo[targetID] = chain
				path := &ReasoningPath{Steps: chain}
				path.Description = path.Describe()
				paths = append(paths, path)
				newPaths++
				if firstPath.IsZero() {
					firstPath = time.Now()
				}
				if step.Score > goodScore {
					goodPaths++
				}

				if novel && !enqueued[targetID] {
					enqueued[targetID] = true
					next = append(next, target)
				}
			}
		}

		rc.SetFrontier(depth+1, next)

		switch {
		case newPaths == 0:
			depth = maxDepth // no progress this depth
		case goodPaths >= goodCount:
			depth = maxDepth
		case rc.Explored() >= maxEntities:
			depth = maxDepth
		case len(paths) >= maxPaths:
			depth = maxDepth
		case !firstPath.IsZero() && time.Since(firstPath) > softTimeout:
			depth = maxDepth
		case rc.ShouldStop(maxDepth, maxEntities):
			depth = maxDepth
		}
	}

	result.Paths = m.rank(ctx, rc, paths)
	result.Explored = rc.Explored()
	result.Evidences = rc.Evidences()
	result.Elapsed = time.Since(begin)
	return result, nil
}

// stepScore applies the canonical edge score:
// (relW*rel + srcW*src + tgtW*tgt) * decay^depth + novelty, clamped to
// [0, 1]. Source and target relevance are embedding cosines against the
// question; a failed embedding degrades relevance to zero.
func (m *MultiHop) stepScore(ctx context.Context, question string, relScore float64, source, target *graph.Entity, depth int, novel bool) float64 {
	relW, srcW, tgtW := m.cfg.RelationWeight, m.cfg.SourceWeight, m.cfg.TargetWeight
	if relW == 0 && srcW == 0 && tgtW == 0 {
		relW, srcW, tgtW = 0.4, 0.2, 0.4
	}
	decay := m.cfg.DepthDecay
	if decay <= 0 {
		decay = 0.8
	}
	novelty := m.cfg.NoveltyBonus
	if novelty == 0 {
		novelty = 0.1
	}

	var srcRel, tgtRel float64
	if sims, err := m.engine.CosineSimilarities(ctx, question, []string{source.Name, target.Name}); err == nil && len(sims) == 2 {
		srcRel = clamp01(sims[0])
		tgtRel = clamp01(sims[1])
	}

	score := (relW*relScore + srcW*srcRel + tgtW*tgtRel) * math.Pow(decay, float64(depth))
	if novel {
		score += novelty
	}
	return clamp01(score)
}

// rank computes each path's final score and returns the top paths:
// 0.4 base + 0.2 length penalty + 0.2 completeness + 0.2 semantic
// relevance, sorted descending and truncated to the evidence cap.
func (m *MultiHop) rank(ctx context.Context, rc *Context, paths []*ReasoningPath) []*ReasoningPath {
	maxDepth := m.cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 3
	}
	maxEvidences := m.cfg.MaxEvidences
	if maxEvidences <= 0 {
		maxEvidences = 10
	}

	for _, p := range paths {
		completeness := float64(len(p.Steps)) / float64(maxDepth)
		if completeness > 1 {
			completeness = 1
		}
		p.Score = 0.4*p.BaseScore() +
			0.2*p.LengthPenalty() +
			0.2*completeness +
			0.2*m.semanticRelevance(ctx, rc.Question(), p)
	}

	sort.SliceStable(paths, func(i, j int) bool {
		return paths[i].Score > paths[j].Score
	})
	if len(paths) > maxEvidences {
		paths = paths[:maxEvidences]
	}
	return paths
}

// semanticRelevance is the mean cosine between the question and each
// step's (source, relation, target) text.
func (m *MultiHop) semanticRelevance(ctx context.Context, question string, p *ReasoningPath) float64 {
	if len(p.Steps) == 0 {
		return 0
	}
	texts := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		texts[i] = s.Source.Name + " " + s.Relation.Type + " " + s.Target.Name
	}
	sims, err := m.engine.CosineSimilarities(ctx, question, texts)
	if err != nil {
		return 0
	}
	var sum float64
	for _, v := range sims {
		sum += clamp01(v)
	}
	return sum / float64(len(sims))
}

// rationale templates a short explanation off the relation type.
func rationale(relType string) string {
	lower := strings.ToLower(relType)
	switch {
	case strings.Contains(lower, "born") || strings.Contains(lower, "birth"):
		return "birth relation links the entities"
	case strings.Contains(lower, "develop") || strings.Contains(lower, "create"):
		return "creation relation links the entities"
	case strings.Contains(lower, "work") || strings.Contains(lower, "employ"):
		return "employment relation links the entities"
	default:
		return "related via " + relType
	}
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
