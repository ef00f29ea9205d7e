package featureql

import (
	"github.com/paulmach/orb"

	"github.com/hugr-lab/featureql/catalog"
	"github.com/hugr-lab/featureql/filter"
)

// BoundingBox is a validated spatial extent with an optional source CRS.
type BoundingBox struct {
	MinX, MinY float64
	MaxX, MaxY float64

	// MinZ and MaxZ are set only when Has3D is true.
	MinZ, MaxZ float64
	Has3D      bool

	// CRS identifies the coordinate system of the box. Zero means the
	// service default.
	CRS catalog.CRS
}

// Bound returns the 2D orb form of the box.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinX, b.MinY}, Max: orb.Point{b.MaxX, b.MaxY}}
}

// SortKey is one element of a sort expression.
type SortKey struct {
	Field string
	Desc  bool
}

// SortSpec is an ordered sequence of sort keys.
type SortSpec []SortKey

// Pagination carries the client's requested result window.
type Pagination struct {
	// Limit is the client limit, valid only when LimitSet is true.
	Limit    int64
	LimitSet bool

	// Offset is the number of records to skip. Never negative.
	Offset int64
}

// ResultType selects between record streaming and count-only execution.
type ResultType string

const (
	// ResultRecords streams matching feature records (the default).
	ResultRecords ResultType = "results"

	// ResultHits returns only the matched count; no record is materialized.
	ResultHits ResultType = "hits"
)

// FeatureQuery is the canonical, backend-independent representation of a
// feature request. It is immutable after BuildQuery returns it: derive
// variants with the With* methods, never by field assignment, so concurrent
// readers of a shared query never observe a half-updated value.
type FeatureQuery struct {
	// Layer is the target layer's schema.
	Layer *catalog.Layer

	// Filter is the parsed predicate tree, nil when the request has none.
	Filter filter.Expression

	// BBox is the spatial extent filter, nil when absent.
	BBox *BoundingBox

	// Temporal is the datetime interval filter, nil when absent.
	Temporal *filter.Interval

	// Sort is never empty after BuildQuery: a default id-ascending order is
	// applied so pagination is deterministic across pages.
	Sort SortSpec

	// Pagination is the validated, clamped result window.
	Pagination Pagination

	// Properties is the attribute projection; nil means all fields.
	// Backends additionally project the id and geometry system fields.
	Properties []string

	// CRS is the resolved output coordinate system.
	CRS catalog.CRS

	// ResultType selects record streaming or count-only execution.
	ResultType ResultType
}

// WithLimit returns a copy of the query with the given explicit limit.
func (q *FeatureQuery) WithLimit(limit int64) *FeatureQuery {
	out := *q
	out.Pagination.Limit = limit
	out.Pagination.LimitSet = true
	return &out
}

// WithOffset returns a copy of the query with the given offset.
func (q *FeatureQuery) WithOffset(offset int64) *FeatureQuery {
	out := *q
	out.Pagination.Offset = offset
	return &out
}

// WithResultType returns a copy of the query with the given result type.
func (q *FeatureQuery) WithResultType(rt ResultType) *FeatureQuery {
	out := *q
	out.ResultType = rt
	return &out
}

// effectiveLimit resolves the fetch budget for execution: the explicit
// client limit when one was given, otherwise the unbounded-query ceiling.
func (q *FeatureQuery) effectiveLimit(limits Limits) (n int64, explicit bool) {
	if q.Pagination.LimitSet {
		return q.Pagination.Limit, true
	}
	return limits.UnboundedQueryCeiling, false
}

// FeatureRecord is a single feature produced by a backend. The engine does
// not own record lifetime beyond the stream that yields it.
type FeatureRecord struct {
	// ID is the feature identifier (backend-native type).
	ID any

	// Attributes maps field names to values. Timestamps are time.Time,
	// numbers are int64 or float64 depending on the backend column type.
	Attributes map[string]any

	// Geometry is the decoded feature geometry, nil for non-spatial rows.
	Geometry orb.Geometry
}

// evalAttrs merges the record's attributes and geometry into the flat map
// the fallback filter evaluator consumes.
func (r *FeatureRecord) evalAttrs(layer *catalog.Layer) map[string]any {
	attrs := make(map[string]any, len(r.Attributes)+2)
	for k, v := range r.Attributes {
		attrs[k] = v
	}
	attrs[layer.IDField] = r.ID
	if layer.GeometryField != "" && r.Geometry != nil {
		attrs[layer.GeometryField] = r.Geometry
	}
	return attrs
}
