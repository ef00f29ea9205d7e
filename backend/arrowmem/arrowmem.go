// Package arrowmem is an in-memory feature backend over Arrow record
// batches. It holds registered datasets in columnar form and defers every
// predicate to the engine's record-level filter, which makes it the
// reference backend for tests and small embedded datasets.
package arrowmem

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/featureql"
	"github.com/hugr-lab/featureql/catalog"
	"github.com/hugr-lab/featureql/filter"
)

// Backend serves feature queries from registered Arrow record batches.
type Backend struct {
	mu       sync.RWMutex
	datasets map[string][]arrow.Record
}

// New creates an empty backend.
func New() *Backend {
	return &Backend{datasets: make(map[string][]arrow.Record)}
}

// Register adds record batches under a dataset key, the value layers use as
// their Source. The backend retains the records until Close.
func (b *Backend) Register(source string, recs ...arrow.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, rec := range recs {
		rec.Retain()
		b.datasets[source] = append(b.datasets[source], rec)
	}
}

// Close releases all retained record batches.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, recs := range b.datasets {
		for _, rec := range recs {
			rec.Release()
		}
	}
	b.datasets = make(map[string][]arrow.Record)
	return nil
}

// Name implements featureql.Backend.
func (b *Backend) Name() string { return "arrowmem" }

// Translate implements featureql.Backend. Nothing is pushed down: the
// filter, the bbox window (as an intersects predicate), and the temporal
// interval are all handed back for record-level evaluation.
func (b *Backend) Translate(q *featureql.FeatureQuery) (*featureql.NativeQuery, error) {
	var post []filter.Expression
	if q.Filter != nil {
		post = append(post, q.Filter)
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
		post = append(post, &filter.Temporal{Field: q.Layer.TemporalField, Interval: *q.Temporal})
	}

	nq := &featureql.NativeQuery{Query: q}
	switch len(post) {
	case 0:
	case 1:
		nq.PostFilter = post[0]
	default:
		nq.PostFilter = &filter.Logical{Op: filter.OpAnd, Operands: post}
	}
	return nq, nil
}

// Execute implements featureql.Backend. Rows are materialized from the
// columnar batches and sorted by the query's sort keys before streaming.
func (b *Backend) Execute(ctx context.Context, nq *featureql.NativeQuery) (featureql.Cursor, error) {
	recs, err := b.materialize(nq.Query.Layer)
	if err != nil {
		return nil, err
	}
	sortRecords(recs, nq.Query.Layer, nq.Query.Sort)
	return &sliceCursor{records: recs}, nil
}

// Count implements featureql.Backend. The engine only counts queries with
// no deferred predicate, so the dataset row count is the answer.
func (b *Backend) Count(ctx context.Context, nq *featureql.NativeQuery) (int64, error) {
	recs, err := b.materialize(nq.Query.Layer)
	if err != nil {
		return 0, err
	}
	return int64(len(recs)), nil
}

func (b *Backend) materialize(layer *catalog.Layer) ([]*featureql.FeatureRecord, error) {
	b.mu.RLock()
	batches, ok := b.datasets[layer.Source]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no dataset registered for %q", layer.Source)
	}

	var out []*featureql.FeatureRecord
	for _, batch := range batches {
		rows, err := batchRows(batch, layer)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func batchRows(batch arrow.Record, layer *catalog.Layer) ([]*featureql.FeatureRecord, error) {
	schema := batch.Schema()
	n := int(batch.NumRows())
	rows := make([]*featureql.FeatureRecord, 0, n)

	for i := 0; i < n; i++ {
		rec := &featureql.FeatureRecord{Attributes: make(map[string]any, schema.NumFields())}
		for j := 0; j < schema.NumFields(); j++ {
			name := schema.Field(j).Name
			v, err := columnValue(batch.Column(j), i)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", name, err)
			}
			switch name {
			case layer.GeometryField:
				if v == nil {
					break
				}
				raw, ok := v.([]byte)
				if !ok {
					return nil, fmt.Errorf("column %s: geometry must be WKB binary, got %T", name, v)
				}
				geom, err := catalog.DecodeGeometry(raw)
				if err != nil {
					return nil, fmt.Errorf("column %s: %w", name, err)
				}
				rec.Geometry = geom
			case layer.IDField:
				rec.ID = v
			default:
				rec.Attributes[name] = v
			}
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// columnValue extracts one cell as a Go value.
func columnValue(col arrow.Array, i int) (any, error) {
	if col.IsNull(i) {
		return nil, nil
	}
	switch arr := col.(type) {
	case *array.Int64:
		return arr.Value(i), nil
	case *array.Int32:
		return int64(arr.Value(i)), nil
	case *array.Float64:
		return arr.Value(i), nil
	case *array.Float32:
		return float64(arr.Value(i)), nil
	case *array.String:
		return arr.Value(i), nil
	case *array.Boolean:
		return arr.Value(i), nil
	case *array.Timestamp:
		unit := arr.DataType().(*arrow.TimestampType).Unit
		return arr.Value(i).ToTime(unit), nil
	case *array.Binary:
		return arr.Value(i), nil
	default:
		return nil, fmt.Errorf("unsupported Arrow type %s", col.DataType())
	}
}

// sortRecords orders materialized rows by the query's sort keys. The sort
// is stable, so later keys only break ties left by earlier ones.
func sortRecords(recs []*featureql.FeatureRecord, layer *catalog.Layer, keys featureql.SortSpec) {
	if len(keys) == 0 {
		return
	}
	value := func(rec *featureql.FeatureRecord, field string) any {
		if field == layer.IDField {
			return rec.ID
		}
		return rec.Attributes[field]
	}
	sort.SliceStable(recs, func(a, b int) bool {
		for _, k := range keys {
			va, vb := value(recs[a], k.Field), value(recs[b], k.Field)
			c := compare(va, vb)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compare(a, b any) int {
	// NULLs sort last regardless of direction.
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return 1
		default:
			return -1
		}
	}
	switch av := a.(type) {
	case int64:
		if bv, ok := b.(int64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case !av && bv:
				return -1
			case av && !bv:
				return 1
			}
			return 0
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1
			case av.After(bv):
				return 1
			}
			return 0
		}
	}
	return 0
}

type sliceCursor struct {
	records []*featureql.FeatureRecord
	pos     int
	closed  bool
}

func (c *sliceCursor) Next() bool {
	if c.closed || c.pos >= len(c.records) {
		return false
	}
	c.pos++
	return true
}

func (c *sliceCursor) Record() *featureql.FeatureRecord { return c.records[c.pos-1] }
func (c *sliceCursor) Err() error                       { return nil }
func (c *sliceCursor) Close() error                     { c.closed = true; return nil }
