// Package document executes feature queries against a document table in
// SQLite: one row per feature, attributes in a JSON document column,
// geometry in a WKB blob column. Attribute predicates are pushed down
// through the JSON1 json_extract function; spatial predicates have no
// native form here and are deferred to the engine's record-level filter.
package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hugr-lab/featureql"
	"github.com/hugr-lab/featureql/catalog"
	"github.com/hugr-lab/featureql/filter"
)

// Column layout of a document table.
const (
	idColumn   = "id"
	docColumn  = "doc"
	geomColumn = "geom"
)

// Backend is a SQLite document-table backend.
type Backend struct {
	db *sql.DB
}

// Open opens a SQLite database file (":memory:" for in-memory).
func Open(dsn string) (*Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &Backend{db: db}, nil
}

// New wraps an existing handle. The caller keeps ownership of db.
func New(db *sql.DB) *Backend {
	return &Backend{db: db}
}

// Close releases the database handle. Only for backends created with Open.
func (b *Backend) Close() error { return b.db.Close() }

// Name implements featureql.Backend.
func (b *Backend) Name() string { return "document" }

// Translate implements featureql.Backend. Attribute and temporal clauses
// are pushed down as json_extract conditions. A filter containing a spatial
// predicate is deferred whole: splitting it would change OR semantics. The
// bbox window always defers, synthesized as an intersects predicate. With
// any deferred predicate the window cannot be pushed either, since the
// engine must see every candidate row to count matches.
func (b *Backend) Translate(q *featureql.FeatureQuery) (*featureql.NativeQuery, error) {
	t := &translator{layer: q.Layer}

	var conds []string
	var post []filter.Expression

	if q.Filter != nil {
		if containsSpatial(q.Filter) {
			post = append(post, q.Filter)
		} else {
			cond, err := t.encode(q.Filter)
			if err != nil {
				return nil, &featureql.BackendError{Cause: err}
			}
			conds = append(conds, cond)
		}
	}

	if q.BBox != nil {
		if q.Layer.GeometryField == "" {
			return nil, &featureql.BackendError{
				Cause: fmt.Errorf("bbox filter on a layer without a geometry field"),
			}
		}
		post = append(post, &filter.Spatial{
			Predicate: filter.SpIntersects,
			Field:     q.Layer.GeometryField,
			Geometry:  catalog.BoundPolygon(q.BBox.Bound()),
		})
	}

	if q.Temporal != nil {
		conds = append(conds, t.temporalCond(q.Layer.TemporalField, q.Temporal))
	}

	limitPushed := len(post) == 0

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s, %s, %s FROM %s", idColumn, docColumn, geomColumn, q.Layer.Source)
	where := strings.Join(conds, " AND ")
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	sb.WriteString(t.orderClause(q.Sort))
	if limitPushed {
		if q.Pagination.LimitSet {
			fmt.Fprintf(&sb, " LIMIT %d", q.Pagination.Limit)
		}
		if q.Pagination.Offset > 0 {
			fmt.Fprintf(&sb, " OFFSET %d", q.Pagination.Offset)
		}
	}

	var cb strings.Builder
	fmt.Fprintf(&cb, "SELECT count(*) FROM %s", q.Layer.Source)
	if where != "" {
		cb.WriteString(" WHERE ")
		cb.WriteString(where)
	}

	nq := &featureql.NativeQuery{
		SQL:         sb.String(),
		CountSQL:    cb.String(),
		Args:        t.args,
		LimitPushed: limitPushed,
		Query:       q,
	}
	switch len(post) {
	case 0:
	case 1:
		nq.PostFilter = post[0]
	default:
		nq.PostFilter = &filter.Logical{Op: filter.OpAnd, Operands: post}
	}
	return nq, nil
}

// Execute implements featureql.Backend.
func (b *Backend) Execute(ctx context.Context, nq *featureql.NativeQuery) (featureql.Cursor, error) {
	rows, err := b.db.QueryContext(ctx, nq.SQL, nq.Args...)
	if err != nil {
		return nil, err
	}
	return &docCursor{rows: rows, layer: nq.Query.Layer, props: nq.Query.Properties}, nil
}

// Count implements featureql.Backend.
func (b *Backend) Count(ctx context.Context, nq *featureql.NativeQuery) (int64, error) {
	var n int64
	if err := b.db.QueryRowContext(ctx, nq.CountSQL, nq.Args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// translator renders predicate trees as json_extract conditions.
type translator struct {
	layer *catalog.Layer
	args  []any
}

func (t *translator) bind(v any) string {
	// SQLite has no native timestamp type; documents store RFC 3339 UTC
	// strings, which compare correctly as text.
	if ts, ok := v.(time.Time); ok {
		v = ts.UTC().Format(time.RFC3339)
	}
	t.args = append(t.args, v)
	return "?"
}

func (t *translator) column(field string) string {
	if field == t.layer.IDField {
		return idColumn
	}
	return fmt.Sprintf("json_extract(%s, '$.%s')", docColumn, field)
}

func (t *translator) temporalCond(field string, iv *filter.Interval) string {
	col := t.column(field)
	var parts []string
	if iv.Start != nil {
		parts = append(parts, col+" >= "+t.bind(*iv.Start))
	}
	if iv.End != nil {
		parts = append(parts, col+" <= "+t.bind(*iv.End))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

func (t *translator) orderClause(sort featureql.SortSpec) string {
	if len(sort) == 0 {
		return ""
	}
	keys := make([]string, len(sort))
	for i, k := range sort {
		dir := " ASC"
		if k.Desc {
			dir = " DESC"
		}
		keys[i] = t.column(k.Field) + dir
	}
	return " ORDER BY " + strings.Join(keys, ", ")
}

func (t *translator) encode(expr filter.Expression) (string, error) {
	switch e := expr.(type) {
	case *filter.Comparison:
		return t.encodeComparison(e)
	case *filter.Logical:
		return t.encodeLogical(e)
	case *filter.Temporal:
		return t.temporalCond(e.Field, &e.Interval), nil
	case *filter.Spatial:
		return "", fmt.Errorf("spatial predicates cannot be pushed to a document table")
	default:
		return "", fmt.Errorf("unknown expression %T", expr)
	}
}

func (t *translator) encodeComparison(c *filter.Comparison) (string, error) {
	col := t.column(c.Field)
	switch c.Op {
	case filter.OpEqual, filter.OpNotEqual, filter.OpLess, filter.OpLessEqual,
		filter.OpGreater, filter.OpGreaterEqual:
		return col + " " + string(c.Op) + " " + t.bind(c.Value), nil
	case filter.OpLike:
		return col + " LIKE " + t.bind(c.Value), nil
	case filter.OpIn:
		if len(c.Values) == 0 {
			return "", fmt.Errorf("empty IN list for %s", c.Field)
		}
		phs := make([]string, len(c.Values))
		for i, v := range c.Values {
			phs[i] = t.bind(v)
		}
		return col + " IN (" + strings.Join(phs, ", ") + ")", nil
	case filter.OpBetween:
		return col + " BETWEEN " + t.bind(c.Low) + " AND " + t.bind(c.High), nil
	case filter.OpIsNull:
		return col + " IS NULL", nil
	default:
		return "", fmt.Errorf("unknown comparison operator %q", c.Op)
	}
}

func (t *translator) encodeLogical(l *filter.Logical) (string, error) {
	if l.Op == filter.OpNot {
		inner, err := t.encode(l.Operands[0])
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	}
	op := " AND "
	if l.Op == filter.OpOr {
		op = " OR "
	}
	parts := make([]string, len(l.Operands))
	for i, operand := range l.Operands {
		inner, err := t.encode(operand)
		if err != nil {
			return "", err
		}
		parts[i] = inner
	}
	return "(" + strings.Join(parts, op) + ")", nil
}

// containsSpatial reports whether any node of the tree is a spatial
// predicate.
func containsSpatial(expr filter.Expression) bool {
	switch e := expr.(type) {
	case *filter.Spatial:
		return true
	case *filter.Logical:
		for _, operand := range e.Operands {
			if containsSpatial(operand) {
				return true
			}
		}
	}
	return false
}

// docCursor scans document rows, decoding the JSON document into the
// attribute map and the geometry blob into an orb value.
type docCursor struct {
	rows  *sql.Rows
	layer *catalog.Layer
	props []string

	rec *featureql.FeatureRecord
	err error
}

func (c *docCursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}

	var (
		id   any
		doc  []byte
		geom []byte
	)
	if err := c.rows.Scan(&id, &doc, &geom); err != nil {
		c.err = err
		return false
	}

	attrs := make(map[string]any)
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &attrs); err != nil {
			c.err = fmt.Errorf("document for id %v: %w", id, err)
			return false
		}
	}
	c.coerceAttrs(attrs)
	if c.props != nil {
		attrs = projectAttrs(attrs, c.props)
	}

	rec := &featureql.FeatureRecord{ID: id, Attributes: attrs}
	if len(geom) > 0 {
		g, err := catalog.DecodeGeometry(geom)
		if err != nil {
			c.err = fmt.Errorf("geometry for id %v: %w", id, err)
			return false
		}
		rec.Geometry = g
	}

	c.rec = rec
	return true
}

// coerceAttrs converts JSON wire types to the layer's logical types:
// timestamps arrive as RFC 3339 strings, integers as float64.
func (c *docCursor) coerceAttrs(attrs map[string]any) {
	for _, f := range c.layer.Fields {
		v, ok := attrs[f.Name]
		if !ok || v == nil {
			continue
		}
		switch f.Type {
		case catalog.TypeTimestamp, catalog.TypeDate:
			if s, isStr := v.(string); isStr {
				if ts, err := time.Parse(time.RFC3339, s); err == nil {
					attrs[f.Name] = ts
				}
			}
		case catalog.TypeInt:
			if n, isFloat := v.(float64); isFloat {
				attrs[f.Name] = int64(n)
			}
		}
	}
}

func projectAttrs(attrs map[string]any, props []string) map[string]any {
	out := make(map[string]any, len(props))
	for _, p := range props {
		if v, ok := attrs[p]; ok {
			out[p] = v
		}
	}
	return out
}

func (c *docCursor) Record() *featureql.FeatureRecord { return c.rec }

func (c *docCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

func (c *docCursor) Close() error { return c.rows.Close() }
