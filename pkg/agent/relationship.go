package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kadirpekel/graphmind/pkg/graph"
)

// Bounds for the path and connection discovery variants.
const (
	DefaultBFSDepth = 3
	MaxFoundPaths   = 5
)

// RelationshipAnalysisAgent serves relationship tasks directly against
// the graph store: incident-edge analysis, bounded path finding,
// reachability discovery and global type summaries.
type RelationshipAnalysisAgent struct {
	baseAgent
	store graph.Store
}

func NewRelationshipAnalysisAgent(store graph.Store) *RelationshipAnalysisAgent {
	return &RelationshipAnalysisAgent{
		baseAgent: newBaseAgent("relationship-analysis",
			KindRelationshipAnalysis,
			KindPathFinding,
			KindConnectionDiscovery,
			KindRelationSummary),
		store: store,
	}
}

func (a *RelationshipAnalysisAgent) Execute(ctx context.Context, req *TaskRequest) *Result {
	start := time.Now()
	a.setState(StateBusy)
	defer a.setState(StateReady)

	var (
		output   string
		metadata map[string]any
		err      error
	)
	switch req.Kind {
	case KindRelationshipAnalysis:
		output, metadata, err = a.analyze(ctx, req)
	case KindPathFinding:
		output, metadata, err = a.findPaths(ctx, req)
	case KindConnectionDiscovery:
		output, metadata, err = a.discover(ctx, req)
	case KindRelationSummary:
		output, metadata, err = a.summarize(ctx)
	default:
		err = fmt.Errorf("%w: %s", ErrNoAgentForKind, req.Kind)
	}
	if err != nil {
		return failure(err, time.Since(start))
	}
	return success(output, metadata, time.Since(start))
}

// analyze groups an entity's incident relations by type and summarizes
// the neighbors on the other end.
func (a *RelationshipAnalysisAgent) analyze(ctx context.Context, req *TaskRequest) (string, map[string]any, error) {
	entity, err := a.resolveEntity(ctx, req)
	if err != nil {
		return "", nil, err
	}
	relations, err := a.store.EntityRelations(ctx, entity.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to fetch relations of %s: %w", entity.ID, err)
	}

	neighbors := make(map[string][]string)
	for _, r := range relations {
		otherID := r.OtherEnd(entity.ID)
		name := otherID
		if other, err := a.store.FindEntity(ctx, otherID); err == nil {
			name = other.Name
		}
		neighbors[r.Type] = append(neighbors[r.Type], name)
	}

	types := make([]string, 0, len(neighbors))
	for t := range neighbors {
		types = append(types, t)
	}
	sort.Strings(types)

	var b strings.Builder
	fmt.Fprintf(&b, "%s has %d relations across %d types\n", entity.Name, len(relations), len(types))
	for _, t := range types {
		fmt.Fprintf(&b, "%s (%d): %s\n", t, len(neighbors[t]), strings.Join(neighbors[t], ", "))
	}
	return b.String(), map[string]any{
		"entity_id":      entity.ID,
		"relation_count": len(relations),
		"by_type":        neighbors,
	}, nil
}

// findPaths runs a bounded BFS between two entities and reports up to
// MaxFoundPaths distinct paths.
func (a *RelationshipAnalysisAgent) findPaths(ctx context.Context, req *TaskRequest) (string, map[string]any, error) {
	sourceID := contextString(req.Context, "source_id")
	targetID := contextString(req.Context, "target_id")
	if sourceID == "" || targetID == "" {
		return "", nil, fmt.Errorf("path finding needs source_id and target_id in the task context")
	}
	maxDepth := contextInt(req.Context, "max_depth", DefaultBFSDepth)

	paths, err := FindPaths(ctx, a.store, sourceID, targetID, maxDepth, MaxFoundPaths)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	for _, p := range paths {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	if len(paths) == 0 {
		fmt.Fprintf(&b, "no path between %s and %s within depth %d\n", sourceID, targetID, maxDepth)
	}
	return b.String(), map[string]any{"paths": paths, "count": len(paths)}, nil
}

// discover collects every entity reachable from the start with its
// minimum depth.
func (a *RelationshipAnalysisAgent) discover(ctx context.Context, req *TaskRequest) (string, map[string]any, error) {
	entity, err := a.resolveEntity(ctx, req)
	if err != nil {
		return "", nil, err
	}
	maxDepth := contextInt(req.Context, "max_depth", DefaultBFSDepth)

	depths, err := ReachableEntities(ctx, a.store, entity.ID, maxDepth)
	if err != nil {
		return "", nil, err
	}

	ids := make([]string, 0, len(depths))
	for id := range depths {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if depths[ids[i]] != depths[ids[j]] {
			return depths[ids[i]] < depths[ids[j]]
		}
		return ids[i] < ids[j]
	})

	var b strings.Builder
	for _, id := range ids {
		name := id
		if e, err := a.store.FindEntity(ctx, id); err == nil {
			name = e.Name
		}
		fmt.Fprintf(&b, "%s (depth %d)\n", name, depths[id])
	}
	return b.String(), map[string]any{"reachable": depths, "count": len(depths)}, nil
}

// summarize reports global relation counts per type.
func (a *RelationshipAnalysisAgent) summarize(ctx context.Context) (string, map[string]any, error) {
	types, err := a.store.RelationshipTypes(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to enumerate relationship types: %w", err)
	}
	sort.Strings(types)

	counts := make(map[string]int64, len(types))
	var b strings.Builder
	for _, t := range types {
		n, err := a.store.RelationshipCount(ctx, t)
		if err != nil {
			continue
		}
		counts[t] = n
		fmt.Fprintf(&b, "%s: %d\n", t, n)
	}
	return b.String(), map[string]any{"counts": counts}, nil
}

// resolveEntity takes the entity from the request context id when
// present, otherwise resolves the description as an exact name.
func (a *RelationshipAnalysisAgent) resolveEntity(ctx context.Context, req *TaskRequest) (*graph.Entity, error) {
	if id := contextString(req.Context, "entity_id"); id != "" {
		e, err := a.store.FindEntity(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", id, err)
		}
		return e, nil
	}
	matches, err := a.store.FindEntitiesByProperty(ctx, "", "", req.Description, 1)
	if err != nil {
		return nil, fmt.Errorf("entity lookup for %q failed: %w", req.Description, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("entity %q: %w", req.Description, graph.ErrNotFound)
	}
	return matches[0], nil
}

// FindPaths enumerates up to maxPaths simple paths between two entities
// with at most maxDepth hops, shortest first. Each path is rendered as
// "A -[TYPE]-> B -[TYPE]-> C" regardless of edge direction.
func FindPaths(ctx context.Context, store graph.Store, sourceID, targetID string, maxDepth, maxPaths int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultBFSDepth
	}
	source, err := store.FindEntity(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", sourceID, err)
	}

	type node struct {
		id      string
		path    string
		visited map[string]bool
		depth   int
	}

	var paths []string
	queue := []node{{
		id:      source.ID,
		path:    source.Name,
		visited: map[string]bool{source.ID: true},
		depth:   0,
	}}

	for len(queue) > 0 && len(paths) < maxPaths {
		if ctx.Err() != nil {
			return paths, nil
		}
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}

		relations, err := store.EntityRelations(ctx, cur.id)
		if err != nil {
			continue
		}
		for _, r := range relations {
			otherID := r.OtherEnd(cur.id)
			if cur.visited[otherID] {
				continue
			}
			other, err := store.FindEntity(ctx, otherID)
			if err != nil {
				// Dangling edge, skip this step only.
				continue
			}
			path := fmt.Sprintf("%s -[%s]-> %s", cur.path, r.Type, other.Name)
			if otherID == targetID {
				paths = append(paths, path)
				if len(paths) >= maxPaths {
					break
				}
				continue
			}
			visited := make(map[string]bool, len(cur.visited)+1)
			for id := range cur.visited {
				visited[id] = true
			}
			visited[otherID] = true
			queue = append(queue, node{id: otherID, path: path, visited: visited, depth: cur.depth + 1})
		}
	}
	return paths, nil
}

// ReachableEntities walks outward from start and returns every reachable
// entity id mapped to its minimum depth (start excluded).
func ReachableEntities(ctx context.Context, store graph.Store, startID string, maxDepth int) (map[string]int, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultBFSDepth
	}
	if _, err := store.FindEntity(ctx, startID); err != nil {
		return nil, fmt.Errorf("start %s: %w", startID, err)
	}

	depths := make(map[string]int)
	seen := map[string]bool{startID: true}
	frontier := []string{startID}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		if ctx.Err() != nil {
			break
		}
		var next []string
		for _, id := range frontier {
			relations, err := store.EntityRelations(ctx, id)
			if err != nil {
				continue
			}
			for _, r := range relations {
				otherID := r.OtherEnd(id)
				if seen[otherID] {
					continue
				}
				seen[otherID] = true
				depths[otherID] = depth
				next = append(next, otherID)
			}
		}
		frontier = next
	}
	return depths, nil
}

// Ensure RelationshipAnalysisAgent implements Agent.
var _ Agent = (*RelationshipAnalysisAgent)(nil)
