package filter

import (
	"errors"
	"reflect"
	"testing"

	"github.com/paulmach/orb"
)

func mustParseJSON(t *testing.T, input string) Expression {
	t.Helper()
	expr, err := Parse(input, DialectCQL2JSON, testLayer(), 0)
	if err != nil {
		t.Fatalf("Parse(%s) failed: %v", input, err)
	}
	return expr
}

func TestParseJSONComparison(t *testing.T) {
	expr := mustParseJSON(t, `{"op": ">", "args": [{"property": "lanes"}, 2]}`)

	c, ok := expr.(*Comparison)
	if !ok {
		t.Fatalf("expected Comparison, got %T", expr)
	}
	if c.Field != "lanes" || c.Op != OpGreater || c.Value != 2.0 {
		t.Errorf("unexpected comparison: %+v", c)
	}
}

func TestParseJSONNotEqualAlias(t *testing.T) {
	a := mustParseJSON(t, `{"op": "<>", "args": [{"property": "lanes"}, 2]}`)
	b := mustParseJSON(t, `{"op": "!=", "args": [{"property": "lanes"}, 2]}`)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("<> and != should parse identically: %#v vs %#v", a, b)
	}
}

func TestParseJSONLogical(t *testing.T) {
	expr := mustParseJSON(t, `{
		"op": "and",
		"args": [
			{"op": "=", "args": [{"property": "name"}, "A1"]},
			{"op": ">=", "args": [{"property": "lanes"}, 2]},
			{"op": "not", "args": [{"op": "=", "args": [{"property": "toll"}, true]}]}
		]
	}`)

	and, ok := expr.(*Logical)
	if !ok || and.Op != OpAnd {
		t.Fatalf("expected AND, got %#v", expr)
	}
	if len(and.Operands) != 3 {
		t.Fatalf("expected 3 operands, got %d", len(and.Operands))
	}
	if not, ok := and.Operands[2].(*Logical); !ok || not.Op != OpNot {
		t.Errorf("expected NOT as third operand, got %#v", and.Operands[2])
	}
}

func TestParseJSONInBetweenIsNull(t *testing.T) {
	in := mustParseJSON(t, `{"op": "in", "args": [{"property": "lanes"}, [1, 2, 3]]}`).(*Comparison)
	if in.Op != OpIn || len(in.Values) != 3 {
		t.Errorf("unexpected IN: %+v", in)
	}

	between := mustParseJSON(t, `{"op": "between", "args": [{"property": "lanes"}, 2, 4]}`).(*Comparison)
	if between.Op != OpBetween || between.Low != 2.0 || between.High != 4.0 {
		t.Errorf("unexpected BETWEEN: %+v", between)
	}

	isNull := mustParseJSON(t, `{"op": "isNull", "args": [{"property": "name"}]}`).(*Comparison)
	if isNull.Op != OpIsNull || isNull.Field != "name" {
		t.Errorf("unexpected isNull: %+v", isNull)
	}
}

func TestParseJSONSpatial(t *testing.T) {
	expr := mustParseJSON(t, `{
		"op": "s_intersects",
		"args": [
			{"property": "geom"},
			{"type": "Polygon", "coordinates": [[[0,0],[10,0],[10,10],[0,10],[0,0]]]}
		]
	}`)

	sp, ok := expr.(*Spatial)
	if !ok {
		t.Fatalf("expected Spatial, got %T", expr)
	}
	if sp.Predicate != SpIntersects || sp.Field != "geom" {
		t.Errorf("unexpected spatial: %+v", sp)
	}
	if _, ok := sp.Geometry.(orb.Polygon); !ok {
		t.Errorf("expected polygon, got %T", sp.Geometry)
	}
}

func TestParseJSONDWithin(t *testing.T) {
	expr := mustParseJSON(t, `{
		"op": "s_dwithin",
		"args": [{"property": "geom"}, {"type": "Point", "coordinates": [5, 5]}, 1000]
	}`)

	sp := expr.(*Spatial)
	if sp.Predicate != SpDWithin || sp.Distance != 1000 {
		t.Errorf("unexpected s_dwithin: %+v", sp)
	}
}

func TestParseJSONDuring(t *testing.T) {
	obj := mustParseJSON(t, `{
		"op": "t_during",
		"args": [{"property": "built"}, {"interval": ["2020-01-01", "2020-12-31"]}]
	}`).(*Temporal)
	if obj.Interval.Start == nil || obj.Interval.End == nil {
		t.Fatalf("expected closed interval, got %v", obj.Interval)
	}

	arr := mustParseJSON(t, `{
		"op": "t_during",
		"args": [{"property": "built"}, ["2020-01-01", ".."]]
	}`).(*Temporal)
	if arr.Interval.Start == nil || arr.Interval.End != nil {
		t.Errorf("expected open-end interval, got %v", arr.Interval)
	}
}

func TestParseJSONErrors(t *testing.T) {
	layer := testLayer()

	t.Run("unknown op", func(t *testing.T) {
		_, err := Parse(`{"op": "overlaps", "args": []}`, DialectCQL2JSON, layer, 0)
		var uo *UnsupportedOperatorError
		if !errors.As(err, &uo) {
			t.Fatalf("expected UnsupportedOperatorError, got %v", err)
		}
		if uo.Operator != "overlaps" {
			t.Errorf("expected operator overlaps, got %q", uo.Operator)
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := Parse(`{"op": "=", "args": [{"property": "speed"}, 1]}`, DialectCQL2JSON, layer, 0)
		var uf *UnknownFieldError
		if !errors.As(err, &uf) {
			t.Fatalf("expected UnknownFieldError, got %v", err)
		}
	})

	t.Run("missing op", func(t *testing.T) {
		_, err := Parse(`{"args": []}`, DialectCQL2JSON, layer, 0)
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Fatalf("expected SyntaxError, got %v", err)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := Parse(`{"op": "=", `, DialectCQL2JSON, layer, 0)
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Fatalf("expected SyntaxError, got %v", err)
		}
	})

	t.Run("literal property swap", func(t *testing.T) {
		_, err := Parse(`{"op": "=", "args": [2, {"property": "lanes"}]}`, DialectCQL2JSON, layer, 0)
		if err == nil {
			t.Fatal("expected error when first argument is not a property")
		}
	})

	t.Run("empty in list", func(t *testing.T) {
		_, err := Parse(`{"op": "in", "args": [{"property": "lanes"}, []]}`, DialectCQL2JSON, layer, 0)
		if err == nil {
			t.Fatal("expected error for empty IN list")
		}
	})
}

func TestParseJSONDepthBound(t *testing.T) {
	inner := `{"op": "=", "args": [{"property": "lanes"}, 1]}`
	for i := 0; i < 40; i++ {
		inner = `{"op": "not", "args": [` + inner + `]}`
	}
	_, err := Parse(inner, DialectCQL2JSON, testLayer(), 32)
	var de *DepthError
	if !errors.As(err, &de) {
		t.Fatalf("expected DepthError, got %v", err)
	}
}

// Dialect independence: the same predicate expressed in both dialects
// produces structurally equivalent trees.
func TestDialectEquivalence(t *testing.T) {
	tests := []struct {
		name string
		text string
		json string
	}{
		{
			name: "comparison",
			text: "lanes > 2",
			json: `{"op": ">", "args": [{"property": "lanes"}, 2]}`,
		},
		{
			name: "conjunction",
			text: "name = 'A1' AND lanes >= 2",
			json: `{"op": "and", "args": [
				{"op": "=", "args": [{"property": "name"}, "A1"]},
				{"op": ">=", "args": [{"property": "lanes"}, 2]}
			]}`,
		},
		{
			name: "negation",
			text: "NOT toll = TRUE",
			json: `{"op": "not", "args": [{"op": "=", "args": [{"property": "toll"}, true]}]}`,
		},
		{
			name: "in list",
			text: "lanes IN (1, 2)",
			json: `{"op": "in", "args": [{"property": "lanes"}, [1, 2]]}`,
		},
		{
			name: "temporal",
			text: "built DURING 2020-01-01/2020-12-31",
			json: `{"op": "t_during", "args": [{"property": "built"}, ["2020-01-01", "2020-12-31"]]}`,
		},
		{
			name: "spatial point",
			text: "INTERSECTS(geom, POINT(5 5))",
			json: `{"op": "s_intersects", "args": [{"property": "geom"}, {"type": "Point", "coordinates": [5, 5]}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fromText := mustParseText(t, tt.text)
			fromJSON := mustParseJSON(t, tt.json)
			if !reflect.DeepEqual(fromText, fromJSON) {
				t.Errorf("dialect trees differ:\n text: %#v\n json: %#v", fromText, fromJSON)
			}
		})
	}
}

func TestCacheReusesParsedExpressions(t *testing.T) {
	cache := NewCache(8)
	layer := testLayer()

	a, err := cache.Parse("lanes > 2", DialectCQLText, layer, 0)
	if err != nil {
		t.Fatalf("cache parse failed: %v", err)
	}
	b, err := cache.Parse("lanes > 2", DialectCQLText, layer, 0)
	if err != nil {
		t.Fatalf("cache parse failed: %v", err)
	}
	if a != b {
		t.Error("expected cached expression to be shared")
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 cached entry, got %d", cache.Len())
	}

	if _, err := cache.Parse("nope > 2", DialectCQLText, layer, 0); err == nil {
		t.Error("expected error for unknown field")
	}
	if cache.Len() != 1 {
		t.Errorf("parse errors must not be cached, got %d entries", cache.Len())
	}
}
