package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store backed by plain maps.
//
// It is the store used by tests and demos. Relations are kept in insertion
// order so traversal results are deterministic for a fixed dataset.
type MemoryStore struct {
	mu        sync.RWMutex
	entities  map[string]*Entity
	relations []*Relation

	// incident indexes relation positions by endpoint id.
	incident map[string][]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities: make(map[string]*Entity),
		incident: make(map[string][]int),
	}
}

// AddEntity inserts or replaces an entity.
func (s *MemoryStore) AddEntity(e *Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.ID] = e
}

// AddRelation appends a directed edge. Dangling endpoints are allowed; the
// traversal engine is responsible for dropping steps it cannot resolve.
func (s *MemoryStore) AddRelation(r *Relation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.relations)
	s.relations = append(s.relations, r)
	s.incident[r.SourceID] = append(s.incident[r.SourceID], idx)
	if r.TargetID != r.SourceID {
		s.incident[r.TargetID] = append(s.incident[r.TargetID], idx)
	}
}

func (s *MemoryStore) FindEntity(_ context.Context, id string) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (s *MemoryStore) EntityRelations(_ context.Context, id string) ([]*Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idxs := s.incident[id]
	out := make([]*Relation, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.relations[i])
	}
	return out, nil
}

func (s *MemoryStore) AllEntities(_ context.Context, limit int) ([]*Entity, error) {
	return s.scan(limit, func(*Entity) bool { return true }), nil
}

func (s *MemoryStore) FindEntitiesByProperty(_ context.Context, label, property, value string, limit int) ([]*Entity, error) {
	return s.scan(limit, func(e *Entity) bool {
		return matchLabel(e, label) && strings.EqualFold(matchValue(e, property), value)
	}), nil
}

func (s *MemoryStore) FindEntitiesByPrefix(_ context.Context, label, property, prefix string, limit int) ([]*Entity, error) {
	p := strings.ToLower(prefix)
	return s.scan(limit, func(e *Entity) bool {
		return matchLabel(e, label) && strings.HasPrefix(strings.ToLower(matchValue(e, property)), p)
	}), nil
}

func (s *MemoryStore) FindEntitiesContaining(_ context.Context, label, property, substr string, limit int) ([]*Entity, error) {
	sub := strings.ToLower(substr)
	return s.scan(limit, func(e *Entity) bool {
		return matchLabel(e, label) && strings.Contains(strings.ToLower(matchValue(e, property)), sub)
	}), nil
}

// scan walks entities in id order so results are deterministic for a
// fixed dataset.
func (s *MemoryStore) scan(limit int, keep func(*Entity) bool) []*Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*Entity
	for _, id := range ids {
		e := s.entities[id]
		if !keep(e) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func matchLabel(e *Entity, label string) bool {
	return label == "" || e.Type == label
}

// matchValue resolves the string an entity exposes for matching: the
// display name when property is empty or "name", otherwise the rendered
// property value.
func matchValue(e *Entity, property string) string {
	if property == "" || property == "name" {
		if e.Name != "" {
			return e.Name
		}
	}
	if v, ok := e.Properties[property]; ok {
		return fmt.Sprint(v)
	}
	return ""
}

// ExecuteQuery is unsupported on the memory store. The schema inspector
// only needs it against stores that cannot enumerate types natively.
func (s *MemoryStore) ExecuteQuery(_ context.Context, query string, _ map[string]any) ([]map[string]any, error) {
	return nil, &StoreError{Code: CodeQueryFailed, Message: fmt.Sprintf("memory store does not support queries (got %q)", query)}
}

func (s *MemoryStore) NodeTypes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var types []string
	for _, e := range s.entities {
		if !seen[e.Type] {
			seen[e.Type] = true
			types = append(types, e.Type)
		}
	}
	return types, nil
}

func (s *MemoryStore) RelationshipTypes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var types []string
	for _, r := range s.relations {
		if !seen[r.Type] {
			seen[r.Type] = true
			types = append(types, r.Type)
		}
	}
	return types, nil
}

func (s *MemoryStore) NodeCount(_ context.Context, label string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, e := range s.entities {
		if e.Type == label {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) RelationshipCount(_ context.Context, relType string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, r := range s.relations {
		if r.Type == relType {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) TotalNodeCount(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entities)), nil
}

func (s *MemoryStore) TotalRelationshipCount(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.relations)), nil
}

func (s *MemoryStore) AnalyzeNodeProperties(_ context.Context, label string) ([]PropertyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	props := newPropertyProfile()
	for _, e := range s.entities {
		if e.Type != label {
			continue
		}
		for k, v := range e.Properties {
			props.observe(k, v)
		}
	}
	return props.infos(), nil
}

func (s *MemoryStore) AnalyzeRelationshipProperties(_ context.Context, relType string) ([]PropertyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	props := newPropertyProfile()
	for _, r := range s.relations {
		if r.Type != relType {
			continue
		}
		for k, v := range r.Properties {
			props.observe(k, v)
		}
	}
	return props.infos(), nil
}

func (s *MemoryStore) RelationshipPatterns(_ context.Context, relType string) ([]RelationPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[[2]string]int64)
	for _, r := range s.relations {
		if r.Type != relType {
			continue
		}
		src, ok := s.entities[r.SourceID]
		if !ok {
			continue
		}
		tgt, ok := s.entities[r.TargetID]
		if !ok {
			continue
		}
		counts[[2]string{src.Type, tgt.Type}]++
	}
	return sortPatterns(counts), nil
}

// sortPatterns orders pattern counts most frequent first, labels
// breaking ties.
func sortPatterns(counts map[[2]string]int64) []RelationPattern {
	out := make([]RelationPattern, 0, len(counts))
	for labels, n := range counts {
		out = append(out, RelationPattern{SourceLabel: labels[0], TargetLabel: labels[1], Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].SourceLabel != out[j].SourceLabel {
			return out[i].SourceLabel < out[j].SourceLabel
		}
		return out[i].TargetLabel < out[j].TargetLabel
	})
	return out
}

func (s *MemoryStore) SamplePropertyValues(_ context.Context, label, property string, n int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var samples []string
	for _, e := range s.entities {
		if e.Type != label {
			continue
		}
		if v, ok := e.Properties[property]; ok {
			samples = append(samples, fmt.Sprint(v))
			if len(samples) >= n {
				break
			}
		}
	}
	return samples, nil
}

func (s *MemoryStore) DatabaseType() string { return "memory" }

func (s *MemoryStore) Version(_ context.Context) (string, error) { return "in-memory", nil }

func (s *MemoryStore) Close() error { return nil }

// propertyProfile accumulates per-property frequency, kind and samples.
// Shared by the memory and sqlite stores.
type propertyProfile struct {
	order   []string
	freq    map[string]int64
	kinds   map[string]string
	samples map[string][]string
}

const maxPropertySamples = 5

func newPropertyProfile() *propertyProfile {
	return &propertyProfile{
		freq:    make(map[string]int64),
		kinds:   make(map[string]string),
		samples: make(map[string][]string),
	}
}

func (p *propertyProfile) observe(key string, value any) {
	if _, seen := p.freq[key]; !seen {
		p.order = append(p.order, key)
	}
	p.freq[key]++
	if _, ok := p.kinds[key]; !ok {
		p.kinds[key] = InferKind(value)
	}
	if len(p.samples[key]) < maxPropertySamples {
		p.samples[key] = append(p.samples[key], fmt.Sprint(value))
	}
}

func (p *propertyProfile) infos() []PropertyInfo {
	out := make([]PropertyInfo, 0, len(p.order))
	for _, key := range p.order {
		out = append(out, PropertyInfo{
			Name:      key,
			Frequency: p.freq[key],
			Kind:      p.kinds[key],
			Samples:   p.samples[key],
		})
	}
	return out
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
