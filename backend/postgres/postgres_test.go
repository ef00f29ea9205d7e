package postgres

import (
	"strings"
	"testing"

	"github.com/hugr-lab/featureql"
	"github.com/hugr-lab/featureql/catalog"
)

func testLayer() *catalog.Layer {
	return &catalog.Layer{
		Name:          "roads",
		Source:        "public.roads",
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

func TestTranslateNumberedPlaceholders(t *testing.T) {
	b := &Backend{}
	q := buildQuery(t, b, featureql.Params{Filter: "lanes BETWEEN 2 AND 4 AND name = 'A1'"})

	nq, err := b.Translate(q)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if !strings.Contains(nq.SQL, "lanes BETWEEN $1 AND $2") {
		t.Errorf("SQL = %q", nq.SQL)
	}
	if !strings.Contains(nq.SQL, "name = $3") {
		t.Errorf("SQL = %q", nq.SQL)
	}
	if len(nq.Args) != 3 {
		t.Errorf("args = %v", nq.Args)
	}
}

func TestTranslateGeometrySRID(t *testing.T) {
	b := &Backend{}
	q := buildQuery(t, b, featureql.Params{BBox: "-10,40,2,55"})

	nq, err := b.Translate(q)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if !strings.Contains(nq.SQL, "ST_Intersects(geom, ST_GeomFromText($1, 4326))") {
		t.Errorf("SQL = %q, want SRID-tagged envelope", nq.SQL)
	}
	if !strings.Contains(nq.SQL, "ST_AsBinary(geom) AS geom") {
		t.Errorf("SQL = %q, want WKB geometry output", nq.SQL)
	}
}

func TestTranslateWindowAndOrder(t *testing.T) {
	b := &Backend{}
	q := buildQuery(t, b, featureql.Params{SortBy: "-lanes,name", Limit: "20"})

	nq, err := b.Translate(q)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if !strings.Contains(nq.SQL, "ORDER BY lanes DESC, name ASC LIMIT 20") {
		t.Errorf("SQL = %q", nq.SQL)
	}
	if !nq.LimitPushed || nq.PostFilter != nil {
		t.Error("postgres must push window and predicates")
	}
	if strings.Contains(nq.CountSQL, "ORDER BY") {
		t.Errorf("CountSQL must not order: %q", nq.CountSQL)
	}
}
