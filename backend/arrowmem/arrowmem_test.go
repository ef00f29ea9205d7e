package arrowmem

import (
	"context"
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paulmach/orb"

	"github.com/hugr-lab/featureql"
	"github.com/hugr-lab/featureql/catalog"
)

func testLayer() *catalog.Layer {
	return &catalog.Layer{
		Name:          "cities",
		Source:        "cities",
		IDField:       "id",
		GeometryField: "geom",
		SRID:          4326,
		Fields: []catalog.Field{
			{Name: "id", Type: catalog.TypeInt},
			{Name: "name", Type: catalog.TypeString, Nullable: true},
			{Name: "population", Type: catalog.TypeInt},
			{Name: "geom", Type: catalog.TypeGeometry},
		},
	}
}

// testBackend registers five cities, two of them inside the [0,0]-[10,10]
// square.
func testBackend(t *testing.T) *Backend {
	t.Helper()

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "population", Type: arrow.PrimitiveTypes.Int64},
		{Name: "geom", Type: arrow.BinaryTypes.Binary, Nullable: true},
	}, nil)

	builder := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer builder.Release()

	ids := builder.Field(0).(*array.Int64Builder)
	names := builder.Field(1).(*array.StringBuilder)
	pops := builder.Field(2).(*array.Int64Builder)
	geoms := builder.Field(3).(*array.BinaryBuilder)

	cities := []struct {
		id   int64
		name string
		pop  int64
		pt   orb.Point
	}{
		{1, "alpha", 120_000, orb.Point{1, 1}},
		{2, "beta", 80_000, orb.Point{5, 5}},
		{3, "gamma", 450_000, orb.Point{20, 20}},
		{4, "delta", 10_000, orb.Point{-3, 7}},
		{5, "epsilon", 300_000, orb.Point{30, -2}},
	}
	for _, c := range cities {
		ids.Append(c.id)
		names.Append(c.name)
		pops.Append(c.pop)
		wkb, err := catalog.EncodeGeometry(c.pt)
		if err != nil {
			t.Fatalf("encode geometry: %v", err)
		}
		geoms.Append(wkb)
	}

	rec := builder.NewRecord()
	defer rec.Release()

	b := New()
	b.Register("cities", rec)
	t.Cleanup(func() { b.Close() })
	return b
}

func run(t *testing.T, e *featureql.Engine, p featureql.Params) []*featureql.FeatureRecord {
	t.Helper()
	q, err := e.BuildQuery(testLayer(), p)
	if err != nil {
		t.Fatalf("BuildQuery failed: %v", err)
	}
	s, err := e.Query(context.Background(), q)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	var out []*featureql.FeatureRecord
	for s.Next(ctx) {
		out = append(out, s.Record())
	}
	if err := s.Err(); err != nil {
		t.Fatalf("stream error: %v", err)
	}
	return out
}

func TestQueryAll(t *testing.T) {
	e := featureql.New(testBackend(t), featureql.Limits{})

	recs := run(t, e, featureql.Params{})
	if len(recs) != 5 {
		t.Fatalf("expected 5 records, got %d", len(recs))
	}
	// Default order is id ascending.
	for i, rec := range recs {
		if rec.ID.(int64) != int64(i+1) {
			t.Errorf("record %d has id %v", i, rec.ID)
		}
	}
	if recs[0].Geometry == nil {
		t.Error("geometry must be decoded")
	}
}

func TestQueryFilter(t *testing.T) {
	e := featureql.New(testBackend(t), featureql.Limits{})

	recs := run(t, e, featureql.Params{Filter: "population > 100000 AND name <> 'gamma'"})
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	for _, rec := range recs {
		if rec.Attributes["population"].(int64) <= 100_000 {
			t.Errorf("record %v escaped the filter", rec.ID)
		}
	}
}

func TestQueryBBox(t *testing.T) {
	e := featureql.New(testBackend(t), featureql.Limits{})

	recs := run(t, e, featureql.Params{BBox: "0,0,10,10"})
	if len(recs) != 2 {
		t.Fatalf("expected 2 records in the square, got %d", len(recs))
	}
	if recs[0].ID.(int64) != 1 || recs[1].ID.(int64) != 2 {
		t.Errorf("ids = %v, %v", recs[0].ID, recs[1].ID)
	}
}

func TestQuerySpatialFilter(t *testing.T) {
	e := featureql.New(testBackend(t), featureql.Limits{})

	recs := run(t, e, featureql.Params{Filter: "WITHIN(geom, POLYGON((0 0, 12 0, 12 12, 0 12, 0 0)))"})
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
}

func TestQuerySortAndWindow(t *testing.T) {
	e := featureql.New(testBackend(t), featureql.Limits{})

	recs := run(t, e, featureql.Params{SortBy: "-population", Limit: "2"})
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Attributes["population"].(int64) != 450_000 {
		t.Errorf("first record = %v, want gamma", recs[0].ID)
	}
	if recs[1].Attributes["population"].(int64) != 300_000 {
		t.Errorf("second record = %v, want epsilon", recs[1].ID)
	}
}

func TestQueryOffsetCountsMatches(t *testing.T) {
	e := featureql.New(testBackend(t), featureql.Limits{})

	all := run(t, e, featureql.Params{Filter: "population > 50000", SortBy: "id"})
	paged := run(t, e, featureql.Params{Filter: "population > 50000", SortBy: "id", Offset: "1", Limit: "10"})
	if len(paged) != len(all)-1 {
		t.Fatalf("expected %d records after offset, got %d", len(all)-1, len(paged))
	}
	if paged[0].ID != all[1].ID {
		t.Errorf("offset window starts at %v, want %v", paged[0].ID, all[1].ID)
	}
}

func TestHitsWithoutPredicate(t *testing.T) {
	e := featureql.New(testBackend(t), featureql.Limits{})

	q, err := e.BuildQuery(testLayer(), featureql.Params{ResultType: "hits"})
	if err != nil {
		t.Fatalf("BuildQuery failed: %v", err)
	}
	res, err := e.Run(context.Background(), q)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Hits != 5 {
		t.Errorf("hits = %d, want 5", res.Hits)
	}
}

func TestHitsWithFilterUnsupported(t *testing.T) {
	e := featureql.New(testBackend(t), featureql.Limits{})

	q, err := e.BuildQuery(testLayer(), featureql.Params{Filter: "population > 100000", ResultType: "hits"})
	if err != nil {
		t.Fatalf("BuildQuery failed: %v", err)
	}
	_, err = e.Run(context.Background(), q)
	var unsupported *featureql.UnsupportedOperationError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedOperationError, got %v", err)
	}
}

func TestUnknownDataset(t *testing.T) {
	e := featureql.New(New(), featureql.Limits{})

	q, err := e.BuildQuery(testLayer(), featureql.Params{})
	if err != nil {
		t.Fatalf("BuildQuery failed: %v", err)
	}
	_, err = e.Query(context.Background(), q)
	var backendErr *featureql.BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected BackendError, got %v", err)
	}
}
