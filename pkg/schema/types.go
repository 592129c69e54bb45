// Package schema profiles the underlying property graph once and derives
// search strategies from the result. A built GraphSchema is read-only and
// safely shareable across concurrent sessions.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kadirpekel/graphmind/pkg/graph"
)

// NodeTypeInfo profiles one node label.
type NodeTypeInfo struct {
	Label      string                        `json:"label"`
	Count      int64                         `json:"count"`
	Properties map[string]graph.PropertyInfo `json:"properties,omitempty"`
}

// Pattern is one observed (source label, target label) combination for a
// relationship type.
type Pattern struct {
	SourceLabel string `json:"source_label"`
	TargetLabel string `json:"target_label"`
	Count       int64  `json:"count"`
}

// RelationshipTypeInfo profiles one relationship type.
type RelationshipTypeInfo struct {
	Type       string                        `json:"type"`
	Count      int64                         `json:"count"`
	Patterns   []Pattern                     `json:"patterns,omitempty"`
	Properties map[string]graph.PropertyInfo `json:"properties,omitempty"`
}

// GraphSchema is the one-shot profile of the graph plus the configuration
// tables the schema-aware reasoner consumes. Read-only once built.
type GraphSchema struct {
	NodeTypes         []NodeTypeInfo         `json:"node_types"`
	RelationshipTypes []RelationshipTypeInfo `json:"relationship_types"`

	TotalNodes         int64 `json:"total_nodes"`
	TotalRelationships int64 `json:"total_relationships"`

	// IndexSuggestions are free-form hints for the store operator.
	IndexSuggestions []string `json:"index_suggestions,omitempty"`

	// StopWords are filtered out of question-side entity extraction.
	StopWords []string `json:"stop_words,omitempty"`

	// RelationWeights bias relation scoring per type.
	RelationWeights map[string]float64 `json:"relation_weights,omitempty"`

	// ExtractionPatterns map regex patterns to node labels for entity
	// type inference.
	ExtractionPatterns map[string]string `json:"extraction_patterns,omitempty"`

	// SearchProperties lists the recommended lookup properties per label.
	SearchProperties map[string][]string `json:"search_properties,omitempty"`

	// Degraded marks the fallback schema used when profiling failed.
	Degraded bool `json:"degraded,omitempty"`
}

// NodeType returns the profile for a label, or nil.
func (s *GraphSchema) NodeType(label string) *NodeTypeInfo {
	for i := range s.NodeTypes {
		if s.NodeTypes[i].Label == label {
			return &s.NodeTypes[i]
		}
	}
	return nil
}

// RelationshipType returns the profile for a type, or nil.
func (s *GraphSchema) RelationshipType(relType string) *RelationshipTypeInfo {
	for i := range s.RelationshipTypes {
		if s.RelationshipTypes[i].Type == relType {
			return &s.RelationshipTypes[i]
		}
	}
	return nil
}

// Labels returns all node labels in schema order.
func (s *GraphSchema) Labels() []string {
	out := make([]string, len(s.NodeTypes))
	for i, nt := range s.NodeTypes {
		out[i] = nt.Label
	}
	return out
}

// RelationTypeNames returns all relationship type strings in schema order.
func (s *GraphSchema) RelationTypeNames() []string {
	out := make([]string, len(s.RelationshipTypes))
	for i, rt := range s.RelationshipTypes {
		out[i] = rt.Type
	}
	return out
}

// IsStopWord reports whether the token is in the schema's stop list.
func (s *GraphSchema) IsStopWord(token string) bool {
	token = strings.ToLower(token)
	for _, w := range s.StopWords {
		if strings.ToLower(w) == token {
			return true
		}
	}
	return false
}

// Describe renders a compact textual summary suitable for prompt context.
func (s *GraphSchema) Describe() string {
	var b strings.Builder

	b.WriteString("Node types:\n")
	for _, nt := range s.NodeTypes {
		props := make([]string, 0, len(nt.Properties))
		for name := range nt.Properties {
			props = append(props, name)
		}
		sort.Strings(props)
		fmt.Fprintf(&b, "  %s (%d nodes", nt.Label, nt.Count)
		if len(props) > 0 {
			fmt.Fprintf(&b, "; properties: %s", strings.Join(props, ", "))
		}
		b.WriteString(")\n")
	}

	b.WriteString("Relationship types:\n")
	for _, rt := range s.RelationshipTypes {
		fmt.Fprintf(&b, "  %s (%d)", rt.Type, rt.Count)
		for _, p := range rt.Patterns {
			fmt.Fprintf(&b, " %s->%s", p.SourceLabel, p.TargetLabel)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// DefaultStopWords cover common function words in English and Chinese so
// question-side extraction works out of the box. Schemas may replace them.
var DefaultStopWords = []string{
	"the", "a", "an", "of", "in", "on", "at", "is", "are", "was", "were",
	"who", "what", "where", "when", "which", "how", "why", "did", "does",
	"do", "and", "or", "to", "with", "between", "relationship", "relation",
	"的", "了", "是", "在", "和", "与", "什么", "谁", "哪", "怎么", "之间", "关系",
}

// DefaultRelationKeywords mark a question as a relationship query.
var DefaultRelationKeywords = []string{"relationship", "relation", "connected", "connection", "关系", "联系"}

// IsRelationshipQuestion reports whether the question asks about the
// relationship between entities, using schema-level keywords when present.
func (s *GraphSchema) IsRelationshipQuestion(question string) bool {
	lower := strings.ToLower(question)
	for _, kw := range DefaultRelationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
