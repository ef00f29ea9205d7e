package duckdb

import (
	"strings"
	"testing"

	"github.com/hugr-lab/featureql"
	"github.com/hugr-lab/featureql/catalog"
)

func testLayer() *catalog.Layer {
	return &catalog.Layer{
		Name:          "roads",
		Source:        "main.roads",
		IDField:       "id",
		GeometryField: "geom",
		TemporalField: "built",
		SRID:          4326,
		Fields: []catalog.Field{
			{Name: "id", Type: catalog.TypeInt},
			{Name: "name", Type: catalog.TypeString, Nullable: true},
			{Name: "lanes", Type: catalog.TypeInt},
			{Name: "built", Type: catalog.TypeTimestamp, Nullable: true},
			{Name: "geom", Type: catalog.TypeGeometry},
		},
	}
}

func buildQuery(t *testing.T, b *Backend, p featureql.Params) *featureql.FeatureQuery {
	t.Helper()
	q, err := featureql.New(b, featureql.Limits{}).BuildQuery(testLayer(), p)
	if err != nil {
		t.Fatalf("BuildQuery failed: %v", err)
	}
	return q
}

func TestTranslateSelect(t *testing.T) {
	b := &Backend{}
	q := buildQuery(t, b, featureql.Params{Limit: "10", Offset: "5"})

	nq, err := b.Translate(q)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if !nq.LimitPushed {
		t.Error("duckdb must push the window")
	}
	if nq.PostFilter != nil {
		t.Error("duckdb must not defer predicates")
	}

	want := "SELECT id, name, lanes, built, ST_AsWKB(geom) AS geom FROM main.roads ORDER BY id ASC LIMIT 10 OFFSET 5"
	if nq.SQL != want {
		t.Errorf("SQL = %q\nwant  %q", nq.SQL, want)
	}
	if nq.CountSQL != "SELECT count(*) FROM main.roads" {
		t.Errorf("CountSQL = %q", nq.CountSQL)
	}
}

func TestTranslateFilterAndBBox(t *testing.T) {
	b := &Backend{}
	q := buildQuery(t, b, featureql.Params{
		Filter:   "lanes > 2 AND name LIKE 'A%'",
		BBox:     "-10,40,2,55",
		Datetime: "2024-01-01/..",
	})

	nq, err := b.Translate(q)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	for _, frag := range []string{
		"lanes > ?",
		"name LIKE ?",
		"ST_Intersects(geom, ST_GeomFromText(?))",
		"built >= ?",
	} {
		if !strings.Contains(nq.SQL, frag) {
			t.Errorf("SQL missing %q:\n%s", frag, nq.SQL)
		}
	}
	if len(nq.Args) != 4 {
		t.Errorf("args = %v, want 4", nq.Args)
	}
	if !strings.Contains(nq.CountSQL, "lanes > ?") {
		t.Errorf("CountSQL must share the predicate: %q", nq.CountSQL)
	}
}

func TestTranslateSpatialFilter(t *testing.T) {
	b := &Backend{}
	q := buildQuery(t, b, featureql.Params{Filter: "DWITHIN(geom, POINT(1 2), 500)"})

	nq, err := b.Translate(q)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if !strings.Contains(nq.SQL, "ST_DWithin(geom, ST_GeomFromText(?), ?)") {
		t.Errorf("SQL = %q", nq.SQL)
	}
}

func TestTranslateProjection(t *testing.T) {
	b := &Backend{}
	q := buildQuery(t, b, featureql.Params{Properties: "name"})

	nq, err := b.Translate(q)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if !strings.HasPrefix(nq.SQL, "SELECT id, name, ST_AsWKB(geom) AS geom FROM") {
		t.Errorf("SQL = %q, want id + projection + geometry", nq.SQL)
	}
	if strings.Contains(nq.SQL, "lanes") {
		t.Error("unprojected column must not be selected")
	}
}
