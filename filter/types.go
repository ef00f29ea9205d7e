package filter

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// Dialect selects the filter surface syntax.
type Dialect string

const (
	// DialectCQLText is the OGC CQL text encoding (e.g. "lanes > 2 AND name LIKE 'A%'").
	DialectCQLText Dialect = "cql-text"

	// DialectCQL2JSON is the CQL2 JSON encoding ({"op": ">", "args": [...]}).
	DialectCQL2JSON Dialect = "cql2-json"
)

// DefaultMaxDepth bounds expression nesting when the caller passes no limit.
const DefaultMaxDepth = 32

// Expression is the closed interface implemented by all predicate variants.
// Expressions are immutable once constructed.
type Expression interface {
	// Depth returns the nesting depth of the expression tree (leaf = 1).
	Depth() int

	// exprMarker prevents implementations outside this package, keeping the
	// union closed so translator type switches stay exhaustive.
	exprMarker()
}

// CompareOp identifies a comparison operator.
type CompareOp string

const (
	OpEqual        CompareOp = "="
	OpNotEqual     CompareOp = "<>"
	OpLess         CompareOp = "<"
	OpLessEqual    CompareOp = "<="
	OpGreater      CompareOp = ">"
	OpGreaterEqual CompareOp = ">="
	OpLike         CompareOp = "LIKE"
	OpIn           CompareOp = "IN"
	OpBetween      CompareOp = "BETWEEN"
	OpIsNull       CompareOp = "IS NULL"
)

// LogicalOp identifies a boolean connective.
type LogicalOp string

const (
	OpAnd LogicalOp = "AND"
	OpOr  LogicalOp = "OR"
	OpNot LogicalOp = "NOT"
)

// SpatialPredicate identifies a spatial relation.
type SpatialPredicate string

const (
	SpIntersects SpatialPredicate = "INTERSECTS"
	SpWithin     SpatialPredicate = "WITHIN"
	SpContains   SpatialPredicate = "CONTAINS"
	SpDWithin    SpatialPredicate = "DWITHIN"
)

// Comparison is a leaf predicate comparing a field against literal values.
//
// Which value fields are set depends on Op:
//   - OpIsNull: none
//   - OpIn: Values
//   - OpBetween: Low and High
//   - everything else: Value
type Comparison struct {
	Field string
	Op    CompareOp

	// Value is the literal operand for binary comparisons and LIKE.
	Value any

	// Values holds the operand list for IN.
	Values []any

	// Low and High hold the inclusive bounds for BETWEEN.
	Low  any
	High any
}

func (c *Comparison) Depth() int  { return 1 }
func (c *Comparison) exprMarker() {}

// Logical combines operands with AND, OR or NOT.
// NOT always has exactly one operand; AND/OR have two or more.
type Logical struct {
	Op       LogicalOp
	Operands []Expression
}

func (l *Logical) Depth() int {
	max := 0
	for _, op := range l.Operands {
		if d := op.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}

func (l *Logical) exprMarker() {}

// Spatial is a leaf predicate relating a geometry field to a geometry literal.
type Spatial struct {
	Predicate SpatialPredicate
	Field     string
	Geometry  orb.Geometry

	// Distance is the DWITHIN search radius in meters. Zero otherwise.
	Distance float64
}

func (s *Spatial) Depth() int  { return 1 }
func (s *Spatial) exprMarker() {}

// Interval is a temporal interval with optionally open bounds.
// A nil bound is open. Both bounds open is rejected at construction.
type Interval struct {
	Start *time.Time
	End   *time.Time
}

// NewInterval validates and constructs an interval.
func NewInterval(start, end *time.Time) (Interval, error) {
	if start == nil && end == nil {
		return Interval{}, fmt.Errorf("interval cannot be open on both bounds")
	}
	if start != nil && end != nil && end.Before(*start) {
		return Interval{}, fmt.Errorf("interval end %s precedes start %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Interval{Start: start, End: end}, nil
}

// Contains reports whether t falls inside the interval (bounds inclusive).
func (iv Interval) Contains(t time.Time) bool {
	if iv.Start != nil && t.Before(*iv.Start) {
		return false
	}
	if iv.End != nil && t.After(*iv.End) {
		return false
	}
	return true
}

// String renders the interval in ISO-8601 form with ".." for open bounds.
func (iv Interval) String() string {
	s, e := "..", ".."
	if iv.Start != nil {
		s = iv.Start.Format(time.RFC3339)
	}
	if iv.End != nil {
		e = iv.End.Format(time.RFC3339)
	}
	return s + "/" + e
}

// Temporal is a leaf predicate testing a datetime field against an interval.
type Temporal struct {
	Field    string
	Interval Interval
}

func (t *Temporal) Depth() int  { return 1 }
func (t *Temporal) exprMarker() {}
