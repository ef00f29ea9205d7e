package catalog

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestGeometryWKBRoundTrip(t *testing.T) {
	poly := orb.Polygon{orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}

	data, err := EncodeGeometry(poly)
	if err != nil {
		t.Fatalf("EncodeGeometry failed: %v", err)
	}

	got, err := DecodeGeometry(data)
	if err != nil {
		t.Fatalf("DecodeGeometry failed: %v", err)
	}
	if GeometryTypeName(got) != "Polygon" {
		t.Errorf("expected Polygon, got %s", GeometryTypeName(got))
	}

	if _, err := EncodeGeometry(nil); err == nil {
		t.Error("expected error encoding nil geometry")
	}
	if _, err := DecodeGeometry(nil); err == nil {
		t.Error("expected error decoding empty WKB")
	}
}

func TestParseWKT(t *testing.T) {
	geom, err := ParseWKT("POINT(30 10)")
	if err != nil {
		t.Fatalf("ParseWKT failed: %v", err)
	}
	pt, ok := geom.(orb.Point)
	if !ok {
		t.Fatalf("expected orb.Point, got %T", geom)
	}
	if pt[0] != 30 || pt[1] != 10 {
		t.Errorf("unexpected point: %v", pt)
	}

	if _, err := ParseWKT("POINT(banana)"); err == nil {
		t.Error("expected error for malformed WKT")
	}
}

func TestBoundPolygon(t *testing.T) {
	b := orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}
	poly := BoundPolygon(b)

	if len(poly) != 1 || len(poly[0]) != 5 {
		t.Fatalf("expected single closed ring with 5 points, got %v", poly)
	}
	if !poly[0][0].Equal(poly[0][4]) {
		t.Error("ring is not closed")
	}
	if got := poly.Bound(); !got.Equal(b) {
		t.Errorf("round-trip bound mismatch: %v != %v", got, b)
	}
}
