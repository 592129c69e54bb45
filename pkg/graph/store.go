package graph

import "context"

// Store is the read contract the reasoning core consumes.
//
// All calls may fail with a *StoreError; the core treats store failures as
// recoverable per-call and degrades instead of aborting the session.
// Implementations must be safe for concurrent use.
type Store interface {
	// FindEntity looks up a single entity by id.
	// Returns ErrNotFound when the id does not resolve.
	FindEntity(ctx context.Context, id string) (*Entity, error)

	// EntityRelations returns all incident edges of the entity, both
	// directions. Order is unspecified but stable within a session.
	EntityRelations(ctx context.Context, id string) ([]*Relation, error)

	// AllEntities enumerates up to limit entities, used by the search
	// layer to build its vector index. limit <= 0 means no cap.
	AllEntities(ctx context.Context, limit int) ([]*Entity, error)

	// FindEntitiesByProperty returns entities of label (any label when
	// empty) whose property equals value exactly. Property "" matches
	// the display name.
	FindEntitiesByProperty(ctx context.Context, label, property, value string, limit int) ([]*Entity, error)

	// FindEntitiesByPrefix is FindEntitiesByProperty with prefix match.
	FindEntitiesByPrefix(ctx context.Context, label, property, prefix string, limit int) ([]*Entity, error)

	// FindEntitiesContaining is FindEntitiesByProperty with substring
	// match, case-insensitive.
	FindEntitiesContaining(ctx context.Context, label, property, substr string, limit int) ([]*Entity, error)

	// ExecuteQuery runs a parameterized query. Escape hatch used only by
	// the schema inspector and store initialization; the core never builds
	// query text from user input.
	ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)

	// NodeTypes enumerates all node labels.
	NodeTypes(ctx context.Context) ([]string, error)

	// RelationshipTypes enumerates all relationship type strings.
	RelationshipTypes(ctx context.Context) ([]string, error)

	NodeCount(ctx context.Context, label string) (int64, error)
	RelationshipCount(ctx context.Context, relType string) (int64, error)
	TotalNodeCount(ctx context.Context) (int64, error)
	TotalRelationshipCount(ctx context.Context) (int64, error)

	// AnalyzeNodeProperties profiles the properties of nodes with the
	// given label.
	AnalyzeNodeProperties(ctx context.Context, label string) ([]PropertyInfo, error)

	// AnalyzeRelationshipProperties profiles the properties of
	// relationships of the given type.
	AnalyzeRelationshipProperties(ctx context.Context, relType string) ([]PropertyInfo, error)

	// RelationshipPatterns returns the observed (source label, target
	// label) combinations for a relationship type, most frequent first.
	// Edges with an unresolvable endpoint are not counted.
	RelationshipPatterns(ctx context.Context, relType string) ([]RelationPattern, error)

	// SamplePropertyValues returns up to n observed values of a property
	// on nodes with the given label, rendered as strings.
	SamplePropertyValues(ctx context.Context, label, property string, n int) ([]string, error)

	// DatabaseType and Version identify the backing store for diagnostics.
	DatabaseType() string
	Version(ctx context.Context) (string, error)

	Close() error
}

// StoreError is a store-level failure. Code distinguishes an unreachable
// store from a failed query so callers can decide whether to degrade.
type StoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *StoreError) Unwrap() error { return e.Err }

// Store error codes.
const (
	CodeStoreUnavailable = "store_unavailable"
	CodeQueryFailed      = "query_failed"
	CodeNotFound         = "not_found"
)

// Errors
var (
	ErrNotFound    = &StoreError{Code: CodeNotFound, Message: "entity not found"}
	ErrUnavailable = &StoreError{Code: CodeStoreUnavailable, Message: "store unavailable"}
)
