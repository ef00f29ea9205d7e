// Package filter implements the predicate expression model of the feature
// query engine and its two surface syntaxes: CQL text and CQL2 JSON.
//
// Expressions form a small tagged union (Comparison, Logical, Spatial,
// Temporal) that translators and the fallback evaluator consume with
// exhaustive type switches:
//
//	switch e := expr.(type) {
//	case *filter.Comparison:
//	    // field <op> literal
//	case *filter.Logical:
//	    // AND / OR / NOT over operands
//	case *filter.Spatial:
//	    // INTERSECTS / WITHIN / CONTAINS / DWITHIN
//	case *filter.Temporal:
//	    // field DURING interval
//	}
//
// Field references are resolved against the layer schema at parse time:
// an unknown field fails Parse with an UnknownFieldError naming the field,
// never a deferred execution error. Literal values are coerced to the
// referenced field's type during parsing as well, so timestamps in filters
// are time.Time values by the time a backend sees them.
//
// Expressions are immutable after Parse and safe to share between
// concurrent queries; the parse cache relies on this.
//
// Recursion depth of both dialects is bounded (DepthError beyond the limit)
// to block adversarial deeply-nested payloads.
package filter
