package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/hugr-lab/featureql/catalog"
)

func testLayer() *catalog.Layer {
	return &catalog.Layer{
		Name:          "roads",
		Source:        "roads",
		IDField:       "id",
		GeometryField: "geom",
		SRID:          4326,
		Fields: []catalog.Field{
			{Name: "id", Type: catalog.TypeInt},
			{Name: "name", Type: catalog.TypeString, Nullable: true},
			{Name: "lanes", Type: catalog.TypeInt, Nullable: true},
			{Name: "toll", Type: catalog.TypeBool, Nullable: true},
			{Name: "built", Type: catalog.TypeTimestamp, Nullable: true},
			{Name: "geom", Type: catalog.TypeGeometry, Nullable: true},
		},
	}
}

func mustParseText(t *testing.T, input string) Expression {
	t.Helper()
	expr, err := Parse(input, DialectCQLText, testLayer(), 0)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", input, err)
	}
	return expr
}

func TestParseTextComparison(t *testing.T) {
	expr := mustParseText(t, "lanes > 2")

	c, ok := expr.(*Comparison)
	if !ok {
		t.Fatalf("expected Comparison, got %T", expr)
	}
	if c.Field != "lanes" || c.Op != OpGreater {
		t.Errorf("unexpected comparison: %+v", c)
	}
	if v, ok := c.Value.(float64); !ok || v != 2 {
		t.Errorf("expected value 2, got %v", c.Value)
	}
}

func TestParseTextOperators(t *testing.T) {
	tests := []struct {
		input string
		op    CompareOp
	}{
		{"lanes = 2", OpEqual},
		{"lanes <> 2", OpNotEqual},
		{"lanes < 2", OpLess},
		{"lanes <= 2", OpLessEqual},
		{"lanes > 2", OpGreater},
		{"lanes >= 2", OpGreaterEqual},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c := mustParseText(t, tt.input).(*Comparison)
			if c.Op != tt.op {
				t.Errorf("expected op %s, got %s", tt.op, c.Op)
			}
		})
	}
}

func TestParseTextLogical(t *testing.T) {
	expr := mustParseText(t, "name = 'A1' AND lanes >= 2 OR toll = TRUE")

	or, ok := expr.(*Logical)
	if !ok || or.Op != OpOr {
		t.Fatalf("expected top-level OR, got %#v", expr)
	}
	if len(or.Operands) != 2 {
		t.Fatalf("expected 2 OR operands, got %d", len(or.Operands))
	}

	and, ok := or.Operands[0].(*Logical)
	if !ok || and.Op != OpAnd {
		t.Fatalf("expected AND as first operand, got %#v", or.Operands[0])
	}
	if len(and.Operands) != 2 {
		t.Errorf("expected 2 AND operands, got %d", len(and.Operands))
	}
}

func TestParseTextNotAndGrouping(t *testing.T) {
	expr := mustParseText(t, "NOT (lanes < 2 OR toll = TRUE)")

	not, ok := expr.(*Logical)
	if !ok || not.Op != OpNot {
		t.Fatalf("expected NOT, got %#v", expr)
	}
	inner, ok := not.Operands[0].(*Logical)
	if !ok || inner.Op != OpOr {
		t.Fatalf("expected OR inside NOT, got %#v", not.Operands[0])
	}
}

func TestParseTextStringEscape(t *testing.T) {
	c := mustParseText(t, "name = 'O''Hare'").(*Comparison)
	if c.Value != "O'Hare" {
		t.Errorf("expected O'Hare, got %v", c.Value)
	}
}

func TestParseTextInBetweenLikeNull(t *testing.T) {
	in := mustParseText(t, "lanes IN (1, 2, 3)").(*Comparison)
	if in.Op != OpIn || len(in.Values) != 3 {
		t.Errorf("unexpected IN: %+v", in)
	}

	between := mustParseText(t, "lanes BETWEEN 2 AND 4").(*Comparison)
	if between.Op != OpBetween || between.Low != 2.0 || between.High != 4.0 {
		t.Errorf("unexpected BETWEEN: %+v", between)
	}

	like := mustParseText(t, "name LIKE 'A%'").(*Comparison)
	if like.Op != OpLike || like.Value != "A%" {
		t.Errorf("unexpected LIKE: %+v", like)
	}

	isNull := mustParseText(t, "name IS NULL").(*Comparison)
	if isNull.Op != OpIsNull {
		t.Errorf("unexpected IS NULL: %+v", isNull)
	}

	notNull := mustParseText(t, "name IS NOT NULL").(*Logical)
	if notNull.Op != OpNot {
		t.Errorf("expected IS NOT NULL to parse as NOT(IS NULL): %+v", notNull)
	}
}

func TestParseTextTimestampCoercion(t *testing.T) {
	c := mustParseText(t, "built >= '2020-01-15T10:00:00Z'").(*Comparison)
	ts, ok := c.Value.(time.Time)
	if !ok {
		t.Fatalf("expected time.Time, got %T", c.Value)
	}
	if ts.Year() != 2020 || ts.Month() != time.January {
		t.Errorf("unexpected timestamp: %v", ts)
	}

	// Date-only literals normalize to start-of-day.
	c = mustParseText(t, "built >= 2020-01-15").(*Comparison)
	ts = c.Value.(time.Time)
	if ts.Hour() != 0 || ts.Minute() != 0 {
		t.Errorf("expected start-of-day, got %v", ts)
	}
}

func TestParseTextSpatial(t *testing.T) {
	expr := mustParseText(t, "INTERSECTS(geom, POLYGON((0 0, 10 0, 10 10, 0 10, 0 0)))")

	sp, ok := expr.(*Spatial)
	if !ok {
		t.Fatalf("expected Spatial, got %T", expr)
	}
	if sp.Predicate != SpIntersects || sp.Field != "geom" {
		t.Errorf("unexpected spatial predicate: %+v", sp)
	}
	if _, ok := sp.Geometry.(orb.Polygon); !ok {
		t.Errorf("expected polygon geometry, got %T", sp.Geometry)
	}
}

func TestParseTextDWithin(t *testing.T) {
	expr := mustParseText(t, "DWITHIN(geom, POINT(5 5), 1000)")

	sp := expr.(*Spatial)
	if sp.Predicate != SpDWithin || sp.Distance != 1000 {
		t.Errorf("unexpected DWITHIN: %+v", sp)
	}
	if _, ok := sp.Geometry.(orb.Point); !ok {
		t.Errorf("expected point geometry, got %T", sp.Geometry)
	}
}

func TestParseTextTemporalPredicates(t *testing.T) {
	during := mustParseText(t, "built DURING 2020-01-01/2020-12-31").(*Temporal)
	if during.Interval.Start == nil || during.Interval.End == nil {
		t.Fatalf("expected closed interval, got %v", during.Interval)
	}

	before := mustParseText(t, "built BEFORE 2020-01-01").(*Temporal)
	if before.Interval.Start != nil || before.Interval.End == nil {
		t.Errorf("expected open-start interval, got %v", before.Interval)
	}

	after := mustParseText(t, "built AFTER 2020-01-01").(*Temporal)
	if after.Interval.Start == nil || after.Interval.End != nil {
		t.Errorf("expected open-end interval, got %v", after.Interval)
	}
}

func TestParseTextErrors(t *testing.T) {
	layer := testLayer()

	t.Run("unknown field", func(t *testing.T) {
		_, err := Parse("speed > 50", DialectCQLText, layer, 0)
		var uf *UnknownFieldError
		if !errors.As(err, &uf) {
			t.Fatalf("expected UnknownFieldError, got %v", err)
		}
		if uf.Field != "speed" {
			t.Errorf("expected field speed, got %q", uf.Field)
		}
	})

	t.Run("comparison on geometry field", func(t *testing.T) {
		_, err := Parse("geom = 'x'", DialectCQLText, layer, 0)
		var se *SemanticError
		if !errors.As(err, &se) {
			t.Fatalf("expected SemanticError, got %v", err)
		}
	})

	t.Run("unsupported spatial operator", func(t *testing.T) {
		_, err := Parse("CROSSES(geom, POINT(1 1))", DialectCQLText, layer, 0)
		var uo *UnsupportedOperatorError
		if !errors.As(err, &uo) {
			t.Fatalf("expected UnsupportedOperatorError, got %v", err)
		}
		if uo.Operator != "CROSSES" {
			t.Errorf("expected operator CROSSES, got %q", uo.Operator)
		}
	})

	t.Run("unterminated string", func(t *testing.T) {
		_, err := Parse("name = 'oops", DialectCQLText, layer, 0)
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Fatalf("expected SyntaxError, got %v", err)
		}
	})

	t.Run("trailing garbage", func(t *testing.T) {
		_, err := Parse("lanes > 2 lanes", DialectCQLText, layer, 0)
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Fatalf("expected SyntaxError, got %v", err)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := Parse("   ", DialectCQLText, layer, 0)
		if err == nil {
			t.Fatal("expected error for empty filter")
		}
	})

	t.Run("spatial on non-geometry field", func(t *testing.T) {
		_, err := Parse("INTERSECTS(name, POINT(1 1))", DialectCQLText, layer, 0)
		var se *SemanticError
		if !errors.As(err, &se) {
			t.Fatalf("expected SemanticError, got %v", err)
		}
	})

	t.Run("negative dwithin distance", func(t *testing.T) {
		_, err := Parse("DWITHIN(geom, POINT(1 1), -5)", DialectCQLText, layer, 0)
		if err == nil {
			t.Fatal("expected error for negative distance")
		}
	})
}

func TestParseTextDepthBound(t *testing.T) {
	input := "lanes > 2"
	for i := 0; i < 40; i++ {
		input = "NOT (" + input + ")"
	}
	_, err := Parse(input, DialectCQLText, testLayer(), 32)
	var de *DepthError
	if !errors.As(err, &de) {
		t.Fatalf("expected DepthError, got %v", err)
	}
	if de.Max != 32 {
		t.Errorf("expected max depth 32, got %d", de.Max)
	}
}

func TestParseIntervalForms(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		openStart bool
		openEnd   bool
		wantErr   bool
	}{
		{name: "closed", input: "2020-01-01/2020-12-31"},
		{name: "open start", input: "../2020-12-31", openStart: true},
		{name: "open end", input: "2020-01-01/..", openEnd: true},
		{name: "empty open start", input: "/2020-12-31", openStart: true},
		{name: "single instant", input: "2020-06-01T12:00:00Z"},
		{name: "fully open", input: "../..", wantErr: true},
		{name: "reversed", input: "2020-12-31/2020-01-01", wantErr: true},
		{name: "malformed", input: "yesterday/today", wantErr: true},
		{name: "too many parts", input: "2020-01-01/2020-06-01/2020-12-31", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv, err := ParseInterval(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", iv)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseInterval(%q) failed: %v", tt.input, err)
			}
			if (iv.Start == nil) != tt.openStart {
				t.Errorf("start open = %v, want %v", iv.Start == nil, tt.openStart)
			}
			if (iv.End == nil) != tt.openEnd {
				t.Errorf("end open = %v, want %v", iv.End == nil, tt.openEnd)
			}
		})
	}
}
