package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a Store backed by a local SQLite file.
//
// Layout is two tables: nodes (id, name, label, properties JSON) and edges
// (source, target, type, properties JSON). Properties are stored as JSON
// blobs; analysis decodes them on the fly. Suitable for datasets that fit
// a single process; for production graphs plug in a real graph database
// behind the Store interface instead.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	label TEXT NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_nodes_label ON nodes(label);
CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(name);

CREATE TABLE IF NOT EXISTS edges (
	rowid INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	type TEXT NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target);
CREATE INDEX IF NOT EXISTS idx_edges_type ON edges(type);
`

// NewSQLiteStore opens (creating if necessary) a SQLite graph store at path.
// Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &StoreError{Code: CodeStoreUnavailable, Message: "failed to open sqlite store", Err: err}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, &StoreError{Code: CodeStoreUnavailable, Message: "failed to initialize sqlite schema", Err: err}
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// AddEntity inserts or replaces a node. Used by loaders, not by the core.
func (s *SQLiteStore) AddEntity(ctx context.Context, e *Entity) error {
	props, err := json.Marshal(e.Properties)
	if err != nil {
		return &StoreError{Code: CodeQueryFailed, Message: "failed to marshal node properties", Err: err}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO nodes (id, name, label, properties) VALUES (?, ?, ?, ?)`,
		e.ID, e.Name, e.Type, string(props))
	if err != nil {
		return &StoreError{Code: CodeQueryFailed, Message: "failed to insert node", Err: err}
	}
	return nil
}

// AddRelation appends a directed edge. Used by loaders, not by the core.
func (s *SQLiteStore) AddRelation(ctx context.Context, r *Relation) error {
	props, err := json.Marshal(r.Properties)
	if err != nil {
		return &StoreError{Code: CodeQueryFailed, Message: "failed to marshal edge properties", Err: err}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO edges (source, target, type, properties) VALUES (?, ?, ?, ?)`,
		r.SourceID, r.TargetID, r.Type, string(props))
	if err != nil {
		return &StoreError{Code: CodeQueryFailed, Message: "failed to insert edge", Err: err}
	}
	return nil
}

func (s *SQLiteStore) FindEntity(ctx context.Context, id string) (*Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, label, properties FROM nodes WHERE id = ?`, id)

	var e Entity
	var props string
	if err := row.Scan(&e.ID, &e.Name, &e.Type, &props); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Code: CodeQueryFailed, Message: "node lookup failed", Err: err}
	}
	if err := json.Unmarshal([]byte(props), &e.Properties); err != nil {
		// One corrupted blob should not hide the node itself.
		e.Properties = nil
	}
	return &e, nil
}

func (s *SQLiteStore) EntityRelations(ctx context.Context, id string) ([]*Relation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, target, type, properties FROM edges
		 WHERE source = ? OR target = ? ORDER BY rowid`, id, id)
	if err != nil {
		return nil, &StoreError{Code: CodeQueryFailed, Message: "edge query failed", Err: err}
	}
	defer rows.Close()

	var out []*Relation
	for rows.Next() {
		var r Relation
		var props string
		if err := rows.Scan(&r.SourceID, &r.TargetID, &r.Type, &props); err != nil {
			continue
		}
		if props != "" && props != "{}" {
			_ = json.Unmarshal([]byte(props), &r.Properties)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AllEntities(ctx context.Context, limit int) ([]*Entity, error) {
	query := `SELECT id, name, label, properties FROM nodes ORDER BY id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StoreError{Code: CodeQueryFailed, Message: "node enumeration failed", Err: err}
	}
	defer rows.Close()
	return scanEntities(rows)
}

func (s *SQLiteStore) FindEntitiesByProperty(ctx context.Context, label, property, value string, limit int) ([]*Entity, error) {
	return s.findEntities(ctx, label, property, `= LOWER(?)`, value, limit)
}

func (s *SQLiteStore) FindEntitiesByPrefix(ctx context.Context, label, property, prefix string, limit int) ([]*Entity, error) {
	return s.findEntities(ctx, label, property, `LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%", limit)
}

func (s *SQLiteStore) FindEntitiesContaining(ctx context.Context, label, property, substr string, limit int) ([]*Entity, error) {
	return s.findEntities(ctx, label, property, `LIKE ? ESCAPE '\'`, "%"+escapeLike(substr)+"%", limit)
}

func (s *SQLiteStore) findEntities(ctx context.Context, label, property, op, arg string, limit int) ([]*Entity, error) {
	expr := `name`
	var args []any
	if property != "" && property != "name" {
		expr = `COALESCE(json_extract(properties, ?), '')`
		args = append(args, "$."+property)
	}
	query := `SELECT id, name, label, properties FROM nodes WHERE LOWER(` + expr + `) ` + op
	args = append(args, strings.ToLower(arg))
	if label != "" {
		query += ` AND label = ?`
		args = append(args, label)
	}
	query += ` ORDER BY id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StoreError{Code: CodeQueryFailed, Message: "node search failed", Err: err}
	}
	defer rows.Close()
	return scanEntities(rows)
}

func scanEntities(rows *sql.Rows) ([]*Entity, error) {
	var out []*Entity
	for rows.Next() {
		var e Entity
		var props string
		if err := rows.Scan(&e.ID, &e.Name, &e.Type, &props); err != nil {
			continue
		}
		if props != "" && props != "{}" {
			_ = json.Unmarshal([]byte(props), &e.Properties)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *SQLiteStore) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	args := make([]any, 0, len(params))
	for _, v := range params {
		args = append(args, v)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StoreError{Code: CodeQueryFailed, Message: "query failed", Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &StoreError{Code: CodeQueryFailed, Message: "failed to read columns", Err: err}
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &StoreError{Code: CodeQueryFailed, Message: "row scan failed", Err: err}
		}
		record := make(map[string]any, len(cols))
		for i, col := range cols {
			record[col] = values[i]
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) NodeTypes(ctx context.Context) ([]string, error) {
	return s.stringColumn(ctx, `SELECT DISTINCT label FROM nodes ORDER BY label`)
}

func (s *SQLiteStore) RelationshipTypes(ctx context.Context) ([]string, error) {
	return s.stringColumn(ctx, `SELECT DISTINCT type FROM edges ORDER BY type`)
}

func (s *SQLiteStore) stringColumn(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StoreError{Code: CodeQueryFailed, Message: "query failed", Err: err}
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, &StoreError{Code: CodeQueryFailed, Message: "row scan failed", Err: err}
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, &StoreError{Code: CodeQueryFailed, Message: "count query failed", Err: err}
	}
	return n, nil
}

func (s *SQLiteStore) NodeCount(ctx context.Context, label string) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM nodes WHERE label = ?`, label)
}

func (s *SQLiteStore) RelationshipCount(ctx context.Context, relType string) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM edges WHERE type = ?`, relType)
}

func (s *SQLiteStore) TotalNodeCount(ctx context.Context) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM nodes`)
}

func (s *SQLiteStore) TotalRelationshipCount(ctx context.Context) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM edges`)
}

func (s *SQLiteStore) AnalyzeNodeProperties(ctx context.Context, label string) ([]PropertyInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT properties FROM nodes WHERE label = ?`, label)
	if err != nil {
		return nil, &StoreError{Code: CodeQueryFailed, Message: "property analysis failed", Err: err}
	}
	defer rows.Close()
	return analyzeJSONProperties(rows)
}

func (s *SQLiteStore) AnalyzeRelationshipProperties(ctx context.Context, relType string) ([]PropertyInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT properties FROM edges WHERE type = ?`, relType)
	if err != nil {
		return nil, &StoreError{Code: CodeQueryFailed, Message: "property analysis failed", Err: err}
	}
	defer rows.Close()
	return analyzeJSONProperties(rows)
}

func analyzeJSONProperties(rows *sql.Rows) ([]PropertyInfo, error) {
	profile := newPropertyProfile()
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			continue
		}
		var props map[string]any
		if err := json.Unmarshal([]byte(blob), &props); err != nil {
			continue
		}
		for k, v := range props {
			profile.observe(k, v)
		}
	}
	return profile.infos(), rows.Err()
}

func (s *SQLiteStore) RelationshipPatterns(ctx context.Context, relType string) ([]RelationPattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT src.label, tgt.label, COUNT(*) AS n FROM edges e
		 JOIN nodes src ON src.id = e.source
		 JOIN nodes tgt ON tgt.id = e.target
		 WHERE e.type = ?
		 GROUP BY src.label, tgt.label
		 ORDER BY n DESC, src.label, tgt.label`, relType)
	if err != nil {
		return nil, &StoreError{Code: CodeQueryFailed, Message: "pattern analysis failed", Err: err}
	}
	defer rows.Close()

	var out []RelationPattern
	for rows.Next() {
		var p RelationPattern
		if err := rows.Scan(&p.SourceLabel, &p.TargetLabel, &p.Count); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SamplePropertyValues(ctx context.Context, label, property string, n int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT properties FROM nodes WHERE label = ?`, label)
	if err != nil {
		return nil, &StoreError{Code: CodeQueryFailed, Message: "sampling failed", Err: err}
	}
	defer rows.Close()

	var samples []string
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			continue
		}
		var props map[string]any
		if err := json.Unmarshal([]byte(blob), &props); err != nil {
			continue
		}
		if v, ok := props[property]; ok {
			samples = append(samples, fmt.Sprint(v))
			if len(samples) >= n {
				break
			}
		}
	}
	return samples, rows.Err()
}

func (s *SQLiteStore) DatabaseType() string { return "sqlite" }

func (s *SQLiteStore) Version(ctx context.Context) (string, error) {
	var v string
	if err := s.db.QueryRowContext(ctx, `SELECT sqlite_version()`).Scan(&v); err != nil {
		return "", &StoreError{Code: CodeQueryFailed, Message: "version query failed", Err: err}
	}
	return v, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
