// Package sqlbuild translates canonical feature queries into parameterized
// SQL. The clause shapes are shared across SQL backends; a Dialect supplies
// the parts that differ between engines (placeholder style, spatial
// function names, geometry wire encoding).
package sqlbuild

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/hugr-lab/featureql/catalog"
	"github.com/hugr-lab/featureql/filter"
)

// Dialect captures the engine-specific SQL surface.
type Dialect struct {
	// Name identifies the dialect in errors.
	Name string

	// Placeholder renders the i-th (1-based) bind parameter.
	Placeholder func(i int) string

	// GeomFromText renders the expression that parses a WKT bind parameter
	// into a geometry in the layer's storage CRS.
	GeomFromText func(ph string, srid int) string

	// GeomToBinary is the function that renders a geometry column as WKB
	// for the wire.
	GeomToBinary string

	// Spatial maps predicates to engine function names.
	Spatial map[filter.SpatialPredicate]string
}

// Builder accumulates one statement's SQL and bind arguments.
type Builder struct {
	d    Dialect
	srid int
	args []any
}

// New creates a builder for the dialect.
func New(d Dialect) *Builder {
	return &Builder{d: d}
}

// Statement is the SQL form of a canonical query.
type Statement struct {
	// SQL is the record query.
	SQL string

	// CountSQL counts the same result set without order or window.
	CountSQL string

	// Args are the bind parameters. The window is rendered inline, so SQL
	// and CountSQL share the same argument list.
	Args []any
}

// Build renders a canonical query. All predicate clauses are pushed down;
// the limit and offset are always applied natively, so callers set
// LimitPushed on the resulting native query.
func (b *Builder) Build(q *FeatureQueryView) (*Statement, error) {
	b.srid = q.SRID
	where, err := b.whereClause(q)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(b.selectList(q))
	sb.WriteString(" FROM ")
	sb.WriteString(q.Source)
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	sb.WriteString(b.orderClause(q))
	sb.WriteString(b.windowClause(q))

	var cb strings.Builder
	cb.WriteString("SELECT count(*) FROM ")
	cb.WriteString(q.Source)
	if where != "" {
		cb.WriteString(" WHERE ")
		cb.WriteString(where)
	}

	return &Statement{
		SQL:      sb.String(),
		CountSQL: cb.String(),
		Args:     b.args,
	}, nil
}

// FeatureQueryView is the subset of a canonical query the SQL builder
// consumes, flattened into one level for clause rendering.
type FeatureQueryView struct {
	Source        string
	IDField       string
	GeometryField string
	TemporalField string
	SRID          int

	Columns []string
	Filter  filter.Expression

	BBox     *BBoxView
	Temporal *filter.Interval

	Sort []SortView

	Limit  int64
	HasLim bool
	Offset int64
}

// BBoxView is the spatial window in builder form.
type BBoxView struct {
	MinX, MinY, MaxX, MaxY float64
}

// SortView is one ORDER BY key.
type SortView struct {
	Field string
	Desc  bool
}

func orbBound(b *BBoxView) orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinX, b.MinY}, Max: orb.Point{b.MaxX, b.MaxY}}
}

func (b *Builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args))
}

func (b *Builder) selectList(q *FeatureQueryView) string {
	cols := make([]string, 0, len(q.Columns))
	for _, col := range q.Columns {
		if col == q.GeometryField && q.GeometryField != "" {
			cols = append(cols, fmt.Sprintf("%s(%s) AS %s",
				b.d.GeomToBinary, filter.QuoteIdentifier(col), filter.QuoteIdentifier(col)))
			continue
		}
		cols = append(cols, filter.QuoteIdentifier(col))
	}
	return strings.Join(cols, ", ")
}

func (b *Builder) whereClause(q *FeatureQueryView) (string, error) {
	var parts []string

	if q.Filter != nil {
		cond, err := b.encode(q.Filter)
		if err != nil {
			return "", err
		}
		parts = append(parts, cond)
	}

	if q.BBox != nil {
		if q.GeometryField == "" {
			return "", fmt.Errorf("bbox filter on a layer without a geometry field")
		}
		poly := catalog.BoundPolygon(orbBound(q.BBox))
		fn, ok := b.d.Spatial[filter.SpIntersects]
		if !ok {
			return "", fmt.Errorf("%s: no intersects function", b.d.Name)
		}
		parts = append(parts, fmt.Sprintf("%s(%s, %s)",
			fn, filter.QuoteIdentifier(q.GeometryField),
			b.d.GeomFromText(b.bind(wkt.MarshalString(poly)), q.SRID)))
	}

	if q.Temporal != nil {
		if q.TemporalField == "" {
			return "", fmt.Errorf("temporal filter on a layer without a temporal field")
		}
		col := filter.QuoteIdentifier(q.TemporalField)
		if q.Temporal.Start != nil {
			parts = append(parts, col+" >= "+b.bind(*q.Temporal.Start))
		}
		if q.Temporal.End != nil {
			parts = append(parts, col+" <= "+b.bind(*q.Temporal.End))
		}
	}

	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], nil
	default:
		return "(" + strings.Join(parts, ") AND (") + ")", nil
	}
}

func (b *Builder) orderClause(q *FeatureQueryView) string {
	if len(q.Sort) == 0 {
		return ""
	}
	keys := make([]string, len(q.Sort))
	for i, k := range q.Sort {
		dir := " ASC"
		if k.Desc {
			dir = " DESC"
		}
		keys[i] = filter.QuoteIdentifier(k.Field) + dir
	}
	return " ORDER BY " + strings.Join(keys, ", ")
}

func (b *Builder) windowClause(q *FeatureQueryView) string {
	var sb strings.Builder
	if q.HasLim {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", q.Offset)
	}
	return sb.String()
}

// encode renders a predicate tree. Every expression kind is supported; an
// error here means a malformed tree, not a pushdown gap.
func (b *Builder) encode(expr filter.Expression) (string, error) {
	switch e := expr.(type) {
	case *filter.Comparison:
		return b.encodeComparison(e)
	case *filter.Logical:
		return b.encodeLogical(e)
	case *filter.Spatial:
		return b.encodeSpatial(e)
	case *filter.Temporal:
		return b.encodeTemporal(e)
	default:
		return "", fmt.Errorf("%s: unknown expression %T", b.d.Name, expr)
	}
}

func (b *Builder) encodeComparison(c *filter.Comparison) (string, error) {
	col := filter.QuoteIdentifier(c.Field)
	switch c.Op {
	case filter.OpEqual, filter.OpNotEqual, filter.OpLess, filter.OpLessEqual,
		filter.OpGreater, filter.OpGreaterEqual:
		return col + " " + string(c.Op) + " " + b.bind(c.Value), nil
	case filter.OpLike:
		return col + " LIKE " + b.bind(c.Value), nil
	case filter.OpIn:
		if len(c.Values) == 0 {
			return "", fmt.Errorf("%s: empty IN list for %s", b.d.Name, c.Field)
		}
		phs := make([]string, len(c.Values))
		for i, v := range c.Values {
			phs[i] = b.bind(v)
		}
		return col + " IN (" + strings.Join(phs, ", ") + ")", nil
	case filter.OpBetween:
		return col + " BETWEEN " + b.bind(c.Low) + " AND " + b.bind(c.High), nil
	case filter.OpIsNull:
		return col + " IS NULL", nil
	default:
		return "", fmt.Errorf("%s: unknown comparison operator %q", b.d.Name, c.Op)
	}
}

func (b *Builder) encodeLogical(l *filter.Logical) (string, error) {
	if l.Op == filter.OpNot {
		inner, err := b.encode(l.Operands[0])
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
		inner, err := b.encode(operand)
		if err != nil {
			return "", err
		}
		parts[i] = inner
	}
	return "(" + strings.Join(parts, op) + ")", nil
}

func (b *Builder) encodeSpatial(s *filter.Spatial) (string, error) {
	fn, ok := b.d.Spatial[s.Predicate]
	if !ok {
		return "", fmt.Errorf("%s: no function for spatial predicate %s", b.d.Name, s.Predicate)
	}
	col := filter.QuoteIdentifier(s.Field)
	geom := b.d.GeomFromText(b.bind(wkt.MarshalString(s.Geometry)), b.srid)
	if s.Predicate == filter.SpDWithin {
		return fmt.Sprintf("%s(%s, %s, %s)", fn, col, geom, b.bind(s.Distance)), nil
	}
	return fmt.Sprintf("%s(%s, %s)", fn, col, geom), nil
}

func (b *Builder) encodeTemporal(t *filter.Temporal) (string, error) {
	col := filter.QuoteIdentifier(t.Field)
	var parts []string
	if t.Interval.Start != nil {
		parts = append(parts, col+" >= "+b.bind(*t.Interval.Start))
	}
	if t.Interval.End != nil {
		parts = append(parts, col+" <= "+b.bind(*t.Interval.End))
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}
