package catalog

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
)

// Geometries cross the engine boundary as WKB (Well-Known Binary): backends
// store and return WKB columns, filters carry parsed orb values. WKT is the
// surface syntax for geometry literals in CQL text.

// EncodeGeometry converts an orb.Geometry to WKB bytes.
func EncodeGeometry(geom orb.Geometry) ([]byte, error) {
	if geom == nil {
		return nil, fmt.Errorf("cannot encode nil geometry")
	}
	return wkb.Marshal(geom)
}

// DecodeGeometry converts WKB bytes to an orb.Geometry.
func DecodeGeometry(data []byte) (orb.Geometry, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot decode empty WKB data")
	}
	return wkb.Unmarshal(data)
}

// ParseWKT parses a WKT geometry literal (e.g. "POINT(30 10)").
// The returned error echoes the offending text.
func ParseWKT(s string) (orb.Geometry, error) {
	geom, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid WKT geometry %q: %w", s, err)
	}
	return geom, nil
}

// MarshalWKT renders a geometry as WKT, the form SQL backends consume
// through ST_GeomFromText.
func MarshalWKT(geom orb.Geometry) string {
	return wkt.MarshalString(geom)
}

// GeometryTypeName returns the WKT type name for a geometry.
func GeometryTypeName(geom orb.Geometry) string {
	switch geom.(type) {
	case orb.Point:
		return "Point"
	case orb.MultiPoint:
		return "MultiPoint"
	case orb.LineString:
		return "LineString"
	case orb.MultiLineString:
		return "MultiLineString"
	case orb.Polygon:
		return "Polygon"
	case orb.MultiPolygon:
		return "MultiPolygon"
	case orb.Collection:
		return "GeometryCollection"
	case orb.Bound:
		return "Bound"
	default:
		return "Unknown"
	}
}

// BoundPolygon converts an orb.Bound to a closed polygon, the form WKB and
// SQL spatial functions accept (Bound itself is not WKB-serializable).
func BoundPolygon(b orb.Bound) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{b.Min[0], b.Min[1]},
		{b.Max[0], b.Min[1]},
		{b.Max[0], b.Max[1]},
		{b.Min[0], b.Max[1]},
		{b.Min[0], b.Min[1]},
	}}
}
