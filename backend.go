package featureql

import (
	"context"

	"github.com/hugr-lab/featureql/filter"
)

// Backend translates canonical queries into storage-native form and executes
// them. Implementations live under backend/ and register nothing globally;
// the caller hands a Backend to New.
//
// Translate must be pure: no I/O, no connection use. Execute and Count do
// the I/O and honor ctx cancellation.
type Backend interface {
	// Name identifies the backend in logs and errors.
	Name() string

	// Translate converts a canonical query into a native one. A backend that
	// cannot push a predicate down sets NativeQuery.PostFilter instead of
	// failing; it fails only for operations it can neither push nor defer.
	Translate(q *FeatureQuery) (*NativeQuery, error)

	// Execute runs the record query and returns a cursor over its rows.
	Execute(ctx context.Context, nq *NativeQuery) (Cursor, error)

	// Count runs the count form of the query.
	Count(ctx context.Context, nq *NativeQuery) (int64, error)
}

// NativeQuery is a backend's executable form of a canonical query.
type NativeQuery struct {
	// SQL is the record query text for SQL backends.
	SQL string

	// CountSQL is the count form of the same query.
	CountSQL string

	// Args are the bound parameters for SQL and CountSQL.
	Args []any

	// Doc carries a non-SQL backend's native query document.
	Doc any

	// PostFilter holds the predicate portion the backend declined to push
	// down. The executor applies it record by record after fetch.
	PostFilter filter.Expression

	// LimitPushed reports whether the fetch budget was applied natively.
	// It must be false whenever PostFilter is set, since filtered-out rows
	// would otherwise consume the budget.
	LimitPushed bool

	// Query is the canonical query this native form was derived from.
	Query *FeatureQuery
}

// Cursor iterates backend results one record at a time.
//
// Usage follows database/sql.Rows: call Next until it returns false, then
// check Err, and always Close. Record is valid until the next call to Next.
type Cursor interface {
	Next() bool
	Record() *FeatureRecord
	Err() error
	Close() error
}
