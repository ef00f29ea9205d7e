// Package postgres executes feature queries against PostgreSQL with
// PostGIS, using a pgx connection pool. Geometry literals are bound as WKT
// and tagged with the layer SRID, geometry columns come back as WKB through
// ST_AsBinary.
package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"

	"github.com/hugr-lab/featureql"
	"github.com/hugr-lab/featureql/catalog"
	"github.com/hugr-lab/featureql/filter"
	"github.com/hugr-lab/featureql/internal/sqlbuild"
)

// Backend is a PostGIS-backed feature query backend.
type Backend struct {
	pool *pgxpool.Pool
}

// Open connects a pool to the given DSN.
func Open(ctx context.Context, dsn string) (*Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Backend{pool: pool}, nil
}

// New wraps an existing pool. The caller keeps ownership of the pool.
func New(pool *pgxpool.Pool) *Backend {
	return &Backend{pool: pool}
}

// Close releases the pool. Only for backends created with Open.
func (b *Backend) Close() { b.pool.Close() }

// Name implements featureql.Backend.
func (b *Backend) Name() string { return "postgres" }

var dialect = sqlbuild.Dialect{
	Name:        "postgres",
	Placeholder: func(i int) string { return "$" + strconv.Itoa(i) },
	GeomFromText: func(ph string, srid int) string {
		if srid == 0 {
			return "ST_GeomFromText(" + ph + ")"
		}
		return fmt.Sprintf("ST_GeomFromText(%s, %d)", ph, srid)
	},
	GeomToBinary: "ST_AsBinary",
	Spatial: map[filter.SpatialPredicate]string{
		filter.SpIntersects: "ST_Intersects",
		filter.SpWithin:     "ST_Within",
		filter.SpContains:   "ST_Contains",
		filter.SpDWithin:    "ST_DWithin",
	},
}

// Translate implements featureql.Backend. PostGIS pushes every clause down.
func (b *Backend) Translate(q *featureql.FeatureQuery) (*featureql.NativeQuery, error) {
	stmt, err := sqlbuild.New(dialect).Build(sqlbuild.ViewFromQuery(q))
	if err != nil {
		return nil, &featureql.BackendError{Cause: err}
	}
	return &featureql.NativeQuery{
		SQL:         stmt.SQL,
		CountSQL:    stmt.CountSQL,
		Args:        stmt.Args,
		LimitPushed: true,
		Query:       q,
	}, nil
}

// Execute implements featureql.Backend.
func (b *Backend) Execute(ctx context.Context, nq *featureql.NativeQuery) (featureql.Cursor, error) {
	rows, err := b.pool.Query(ctx, nq.SQL, nq.Args...)
	if err != nil {
		return nil, err
	}
	return &pgxCursor{rows: rows, layer: nq.Query.Layer, cols: nq.Query.Columns()}, nil
}

// Count implements featureql.Backend.
func (b *Backend) Count(ctx context.Context, nq *featureql.NativeQuery) (int64, error) {
	var n int64
	if err := b.pool.QueryRow(ctx, nq.CountSQL, nq.Args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// pgxCursor adapts pgx rows to the engine cursor contract.
type pgxCursor struct {
	rows  pgx.Rows
	layer *catalog.Layer
	cols  []string

	rec *featureql.FeatureRecord
	err error
}

func (c *pgxCursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}

	values, err := c.rows.Values()
	if err != nil {
		c.err = err
		return false
	}
	if len(values) != len(c.cols) {
		c.err = fmt.Errorf("expected %d columns, got %d", len(c.cols), len(values))
		return false
	}

	rec := &featureql.FeatureRecord{Attributes: make(map[string]any, len(c.cols))}
	for i, col := range c.cols {
		v := values[i]
		switch col {
		case c.layer.GeometryField:
			if c.layer.GeometryField == "" {
				break
			}
			geom, err := decodeGeometry(v)
			if err != nil {
				c.err = fmt.Errorf("column %s: %w", col, err)
				return false
			}
			rec.Geometry = geom
		case c.layer.IDField:
			rec.ID = normalize(v)
		default:
			rec.Attributes[col] = normalize(v)
		}
	}

	c.rec = rec
	return true
}

func (c *pgxCursor) Record() *featureql.FeatureRecord { return c.rec }

func (c *pgxCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

func (c *pgxCursor) Close() error {
	c.rows.Close()
	return nil
}

func decodeGeometry(v any) (orb.Geometry, error) {
	switch raw := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return catalog.DecodeGeometry(raw)
	default:
		return nil, fmt.Errorf("unexpected geometry value type %T", v)
	}
}

// normalize maps pgx value types to the engine's record conventions.
func normalize(v any) any {
	switch raw := v.(type) {
	case time.Time:
		return raw.UTC()
	case int32:
		return int64(raw)
	case int16:
		return int64(raw)
	case float32:
		return float64(raw)
	default:
		return v
	}
}
