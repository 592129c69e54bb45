// Package graph defines the property-graph data model and the minimal
// read-only store contract the reasoning core consumes.
//
// The core never mutates graph data. Entities and relations returned by a
// Store are owned by the store; callers treat them as read-only borrowings
// valid for the lifetime of a reasoning session.
package graph

import "fmt"

// Entity is a labeled node with key/value properties.
type Entity struct {
	// ID is the store-assigned opaque identifier.
	ID string `json:"id"`

	// Name is the display name, usually sourced from a name-like property.
	Name string `json:"name"`

	// Type is the node label (e.g. "Person", "Theory").
	Type string `json:"type"`

	// Properties holds primitive-valued attributes.
	Properties map[string]any `json:"properties,omitempty"`
}

// Property returns a property value rendered as a string, or "" when absent.
func (e *Entity) Property(key string) string {
	if e == nil || e.Properties == nil {
		return ""
	}
	v, ok := e.Properties[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(v)
}

// Relation is a directed, typed edge between two entities.
type Relation struct {
	SourceID   string         `json:"source_id"`
	TargetID   string         `json:"target_id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// OtherEnd returns the endpoint id that is not the given one.
// For self-loops it returns the same id.
func (r *Relation) OtherEnd(id string) string {
	if r.SourceID == id {
		return r.TargetID
	}
	return r.SourceID
}

// RelationPattern is one observed (source label, target label)
// combination for a relationship type, with how many edges follow it.
type RelationPattern struct {
	SourceLabel string `json:"source_label"`
	TargetLabel string `json:"target_label"`
	Count       int64  `json:"count"`
}

// PropertyInfo summarizes a single property across nodes or relationships
// of one label/type. Produced by the store's property analysis and consumed
// by the schema inspector.
type PropertyInfo struct {
	Name string `json:"name"`

	// Frequency is how many nodes/relationships of the label carry this
	// property.
	Frequency int64 `json:"frequency"`

	// Kind is the inferred primary value kind: "integer", "float",
	// "boolean" or "string".
	Kind string `json:"kind"`

	// Samples holds up to a handful of observed values rendered as strings.
	Samples []string `json:"samples,omitempty"`
}

// Value kinds reported by property analysis.
const (
	KindInteger = "integer"
	KindFloat   = "float"
	KindBoolean = "boolean"
	KindString  = "string"
)

// InferKind maps a primitive property value to its value kind.
func InferKind(v any) string {
	switch v.(type) {
	case int, int32, int64:
		return KindInteger
	case float32, float64:
		return KindFloat
	case bool:
		return KindBoolean
	default:
		return KindString
	}
}
