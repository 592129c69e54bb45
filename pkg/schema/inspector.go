package schema

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kadirpekel/graphmind/pkg/graph"
)

// DefaultCacheTTL is how long a built schema stays valid.
const DefaultCacheTTL = 5 * time.Minute

// Inspector profiles the graph store once and caches the result.
//
// Lookup is thread-safe after the first build; rebuilds are single-flight
// so concurrent sessions never profile the store twice in parallel.
type Inspector struct {
	store graph.Store
	ttl   time.Duration

	mu      sync.RWMutex
	cached  *GraphSchema
	builtAt time.Time

	group singleflight.Group
}

func NewInspector(store graph.Store, ttl time.Duration) *Inspector {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Inspector{store: store, ttl: ttl}
}

// Schema returns the cached schema, building it on first use or after the
// validity window lapses. Profiling failures degrade to a minimal fallback
// schema rather than erroring.
func (in *Inspector) Schema(ctx context.Context) *GraphSchema {
	in.mu.RLock()
	if in.cached != nil && time.Since(in.builtAt) < in.ttl {
		s := in.cached
		in.mu.RUnlock()
		return s
	}
	in.mu.RUnlock()

	v, _, _ := in.group.Do("schema", func() (any, error) {
		// Another flight may have refreshed the cache already.
		in.mu.RLock()
		if in.cached != nil && time.Since(in.builtAt) < in.ttl {
			s := in.cached
			in.mu.RUnlock()
			return s, nil
		}
		in.mu.RUnlock()

		s := in.build(ctx)
		in.mu.Lock()
		in.cached = s
		in.builtAt = time.Now()
		in.mu.Unlock()
		return s, nil
	})
	return v.(*GraphSchema)
}

// Refresh invalidates the cache so the next Schema call rebuilds.
func (in *Inspector) Refresh() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.cached = nil
}

func (in *Inspector) build(ctx context.Context) *GraphSchema {
	start := time.Now()

	labels, err := in.store.NodeTypes(ctx)
	if err != nil {
		slog.Warn("schema profiling failed, using fallback schema", "error", err)
		return FallbackSchema()
	}
	sort.Strings(labels)

	s := &GraphSchema{
		StopWords:        DefaultStopWords,
		RelationWeights:  make(map[string]float64),
		SearchProperties: make(map[string][]string),
	}

	for _, label := range labels {
		info := NodeTypeInfo{
			Label:      label,
			Properties: make(map[string]graph.PropertyInfo),
		}
		if count, err := in.store.NodeCount(ctx, label); err == nil {
			info.Count = count
		}
		props, err := in.store.AnalyzeNodeProperties(ctx, label)
		if err != nil {
			slog.Debug("node property analysis failed", "label", label, "error", err)
		}
		var searchProps []string
		for _, p := range props {
			info.Properties[p.Name] = p
			if p.Kind == graph.KindString {
				searchProps = append(searchProps, p.Name)
			}
		}
		sort.Strings(searchProps)
		// Name-like properties lead the search order.
		sort.SliceStable(searchProps, func(i, j int) bool {
			return isNameLike(searchProps[i]) && !isNameLike(searchProps[j])
		})
		if len(searchProps) > 0 {
			s.SearchProperties[label] = searchProps
		}
		s.NodeTypes = append(s.NodeTypes, info)
	}

	relTypes, err := in.store.RelationshipTypes(ctx)
	if err != nil {
		slog.Debug("relationship type enumeration failed", "error", err)
		relTypes = nil
	}
	sort.Strings(relTypes)

	for _, relType := range relTypes {
		info := RelationshipTypeInfo{
			Type:       relType,
			Properties: make(map[string]graph.PropertyInfo),
		}
		if count, err := in.store.RelationshipCount(ctx, relType); err == nil {
			info.Count = count
		}
		if props, err := in.store.AnalyzeRelationshipProperties(ctx, relType); err == nil {
			for _, p := range props {
				info.Properties[p.Name] = p
			}
		}
		patterns, err := in.store.RelationshipPatterns(ctx, relType)
		if err != nil {
			slog.Debug("relationship pattern analysis failed", "type", relType, "error", err)
		}
		for _, p := range patterns {
			info.Patterns = append(info.Patterns, Pattern{
				SourceLabel: p.SourceLabel,
				TargetLabel: p.TargetLabel,
				Count:       p.Count,
			})
		}
		s.RelationWeights[relType] = 1.0
		s.RelationshipTypes = append(s.RelationshipTypes, info)
	}

	if total, err := in.store.TotalNodeCount(ctx); err == nil {
		s.TotalNodes = total
	}
	if total, err := in.store.TotalRelationshipCount(ctx); err == nil {
		s.TotalRelationships = total
	}

	for label, props := range s.SearchProperties {
		if len(props) > 0 {
			s.IndexSuggestions = append(s.IndexSuggestions,
				"CREATE INDEX ON :"+label+"("+props[0]+")")
		}
	}
	sort.Strings(s.IndexSuggestions)

	slog.Info("graph schema built",
		"node_types", len(s.NodeTypes),
		"relationship_types", len(s.RelationshipTypes),
		"total_nodes", s.TotalNodes,
		"duration", time.Since(start))
	return s
}

func isNameLike(prop string) bool {
	switch prop {
	case "name", "title", "label", "id":
		return true
	}
	return false
}

// FallbackSchema is the degenerate schema used when the store rejects
// profiling: a single Entity node type and a single RELATED_TO
// relationship type.
func FallbackSchema() *GraphSchema {
	return &GraphSchema{
		NodeTypes: []NodeTypeInfo{
			{Label: "Entity", Properties: map[string]graph.PropertyInfo{
				"name": {Name: "name", Kind: graph.KindString},
			}},
		},
		RelationshipTypes: []RelationshipTypeInfo{
			{Type: "RELATED_TO"},
		},
		StopWords:        DefaultStopWords,
		RelationWeights:  map[string]float64{"RELATED_TO": 1.0},
		SearchProperties: map[string][]string{"Entity": {"name"}},
		Degraded:         true,
	}
}
