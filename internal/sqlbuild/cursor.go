package sqlbuild

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"github.com/hugr-lab/featureql"
	"github.com/hugr-lab/featureql/catalog"
)

// RowsCursor adapts database/sql rows to the engine cursor contract,
// decoding geometry columns from WKB and normalizing driver value types to
// the layer's logical field types.
type RowsCursor struct {
	rows  *sql.Rows
	layer *catalog.Layer
	cols  []string

	rec *featureql.FeatureRecord
	err error
}

// NewRowsCursor wraps rows fetched with the given column list.
func NewRowsCursor(rows *sql.Rows, layer *catalog.Layer, cols []string) *RowsCursor {
	return &RowsCursor{rows: rows, layer: layer, cols: cols}
}

// Next advances to the next row, scanning it into a feature record.
func (c *RowsCursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}

	dests := make([]any, len(c.cols))
	for i := range dests {
		dests[i] = new(any)
	}
	if err := c.rows.Scan(dests...); err != nil {
		c.err = err
		return false
	}

	rec := &featureql.FeatureRecord{Attributes: make(map[string]any, len(c.cols))}
	for i, col := range c.cols {
		v := *(dests[i].(*any))
		switch col {
		case c.layer.GeometryField:
			if c.layer.GeometryField == "" {
				break
			}
			geom, err := decodeGeometryValue(v)
			if err != nil {
				c.err = fmt.Errorf("column %s: %w", col, err)
				return false
			}
			rec.Geometry = geom
		case c.layer.IDField:
			rec.ID = normalizeValue(c.layer, col, v)
		default:
			rec.Attributes[col] = normalizeValue(c.layer, col, v)
		}
	}

	c.rec = rec
	return true
}

// Record returns the record scanned by the last Next.
func (c *RowsCursor) Record() *featureql.FeatureRecord { return c.rec }

// Err returns the first scan or iteration error.
func (c *RowsCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

// Close releases the underlying rows.
func (c *RowsCursor) Close() error { return c.rows.Close() }

func decodeGeometryValue(v any) (orb.Geometry, error) {
	switch raw := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return catalog.DecodeGeometry(raw)
	case string:
		return catalog.DecodeGeometry([]byte(raw))
	default:
		return nil, fmt.Errorf("unexpected geometry value type %T", v)
	}
}

// normalizeValue converts driver-specific value representations to the
// layer's logical types: byte slices become strings for text fields, and
// string-encoded timestamps become time.Time for temporal fields.
func normalizeValue(layer *catalog.Layer, col string, v any) any {
	if v == nil {
		return nil
	}
	f, ok := layer.Field(col)
	if !ok {
		return v
	}
	switch f.Type {
	case catalog.TypeString:
		if raw, isBytes := v.([]byte); isBytes {
			return string(raw)
		}
	case catalog.TypeTimestamp, catalog.TypeDate:
		switch raw := v.(type) {
		case time.Time:
			return raw
		case string:
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				return t
			}
			if t, err := time.Parse("2006-01-02 15:04:05", raw); err == nil {
				return t.UTC()
			}
			if t, err := time.Parse("2006-01-02", raw); err == nil {
				return t.UTC()
			}
		case []byte:
			return normalizeValue(layer, col, string(raw))
		}
	case catalog.TypeBool:
		if raw, isInt := v.(int64); isInt {
			return raw != 0
		}
	}
	return v
}
