// Package duckdb executes feature queries against DuckDB through its
// database/sql driver. Spatial clauses use the DuckDB spatial extension,
// which must be installed and loaded on the connection; Open does both.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/hugr-lab/featureql"
	"github.com/hugr-lab/featureql/filter"
	"github.com/hugr-lab/featureql/internal/sqlbuild"
)

// Backend is a DuckDB-backed feature query backend.
type Backend struct {
	db *sql.DB
}

// Open opens a DuckDB database (empty dsn for in-memory) and loads the
// spatial extension.
func Open(ctx context.Context, dsn string) (*Backend, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if _, err := db.ExecContext(ctx, "INSTALL spatial; LOAD spatial;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("load spatial extension: %w", err)
	}
	return &Backend{db: db}, nil
}

// New wraps an existing DuckDB handle. The caller keeps ownership of db and
// must have loaded the spatial extension for spatial layers.
func New(db *sql.DB) *Backend {
	return &Backend{db: db}
}

// Close releases the database handle. Only for backends created with Open.
func (b *Backend) Close() error { return b.db.Close() }

// DB exposes the underlying handle, for schema setup and data loading.
func (b *Backend) DB() *sql.DB { return b.db }

// Name implements featureql.Backend.
func (b *Backend) Name() string { return "duckdb" }

var dialect = sqlbuild.Dialect{
	Name:        "duckdb",
	Placeholder: func(i int) string { return "?" },
	GeomFromText: func(ph string, srid int) string {
		return "ST_GeomFromText(" + ph + ")"
	},
	GeomToBinary: "ST_AsWKB",
	Spatial: map[filter.SpatialPredicate]string{
		filter.SpIntersects: "ST_Intersects",
		filter.SpWithin:     "ST_Within",
		filter.SpContains:   "ST_Contains",
		filter.SpDWithin:    "ST_DWithin",
	},
}

// Translate implements featureql.Backend. DuckDB pushes every clause down,
// so the native query never carries a post filter.
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
	rows, err := b.db.QueryContext(ctx, nq.SQL, nq.Args...)
	if err != nil {
		return nil, err
	}
	return sqlbuild.NewRowsCursor(rows, nq.Query.Layer, nq.Query.Columns()), nil
}

// Count implements featureql.Backend.
func (b *Backend) Count(ctx context.Context, nq *featureql.NativeQuery) (int64, error) {
	var n int64
	if err := b.db.QueryRowContext(ctx, nq.CountSQL, nq.Args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
