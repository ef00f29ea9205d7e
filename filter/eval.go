package filter

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// Evaluate applies an expression to a feature's attribute map, the fallback
// path for sub-expressions a backend declined to push down. Geometry-typed
// attributes must be orb.Geometry values.
//
// Point/polygon spatial relations are evaluated exactly; relations between
// two extended geometries fall back to a bounding-box test, which matches
// what non-spatial backends can index anyway. DWITHIN distances are meters
// on WGS 84 coordinates.
func Evaluate(expr Expression, attrs map[string]any) (bool, error) {
	switch e := expr.(type) {
	case *Comparison:
		return evalComparison(e, attrs)
	case *Logical:
		return evalLogical(e, attrs)
	case *Spatial:
		return evalSpatial(e, attrs)
	case *Temporal:
		return evalTemporal(e, attrs)
	default:
		return false, fmt.Errorf("unhandled expression type %T", expr)
	}
}

func evalLogical(e *Logical, attrs map[string]any) (bool, error) {
	switch e.Op {
	case OpNot:
		if len(e.Operands) != 1 {
			return false, fmt.Errorf("NOT requires exactly one operand, got %d", len(e.Operands))
		}
		v, err := Evaluate(e.Operands[0], attrs)
		return !v, err
	case OpAnd:
		for _, op := range e.Operands {
			v, err := Evaluate(op, attrs)
			if err != nil {
				return false, err
			}
			if !v {
				return false, nil
			}
		}
		return true, nil
	case OpOr:
		for _, op := range e.Operands {
			v, err := Evaluate(op, attrs)
			if err != nil {
				return false, err
			}
			if v {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unhandled logical operator %q", e.Op)
	}
}

func evalComparison(e *Comparison, attrs map[string]any) (bool, error) {
	val, present := attrs[e.Field]

	if e.Op == OpIsNull {
		return !present || val == nil, nil
	}
	if !present || val == nil {
		// NULL never satisfies a comparison.
		return false, nil
	}

	switch e.Op {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		cmp, err := compareValues(val, e.Value)
		if err != nil {
			return false, fmt.Errorf("field %q: %w", e.Field, err)
		}
		switch e.Op {
		case OpEqual:
			return cmp == 0, nil
		case OpNotEqual:
			return cmp != 0, nil
		case OpLess:
			return cmp < 0, nil
		case OpLessEqual:
			return cmp <= 0, nil
		case OpGreater:
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	case OpLike:
		pattern, ok := e.Value.(string)
		if !ok {
			return false, fmt.Errorf("field %q: LIKE pattern is not a string", e.Field)
		}
		s, ok := val.(string)
		if !ok {
			return false, fmt.Errorf("field %q: LIKE requires a string value, got %T", e.Field, val)
		}
		return likeMatch(pattern, s)
	case OpIn:
		for _, candidate := range e.Values {
			cmp, err := compareValues(val, candidate)
			if err != nil {
				return false, fmt.Errorf("field %q: %w", e.Field, err)
			}
			if cmp == 0 {
				return true, nil
			}
		}
		return false, nil
	case OpBetween:
		lowCmp, err := compareValues(val, e.Low)
		if err != nil {
			return false, fmt.Errorf("field %q: %w", e.Field, err)
		}
		highCmp, err := compareValues(val, e.High)
		if err != nil {
			return false, fmt.Errorf("field %q: %w", e.Field, err)
		}
		return lowCmp >= 0 && highCmp <= 0, nil
	default:
		return false, fmt.Errorf("unhandled comparison operator %q", e.Op)
	}
}

func evalTemporal(e *Temporal, attrs map[string]any) (bool, error) {
	val, present := attrs[e.Field]
	if !present || val == nil {
		return false, nil
	}
	t, err := toTime(val)
	if err != nil {
		return false, fmt.Errorf("field %q: %w", e.Field, err)
	}
	return e.Interval.Contains(t), nil
}

func evalSpatial(e *Spatial, attrs map[string]any) (bool, error) {
	val, present := attrs[e.Field]
	if !present || val == nil {
		return false, nil
	}
	g, ok := val.(orb.Geometry)
	if !ok {
		return false, fmt.Errorf("field %q: expected a geometry value, got %T", e.Field, val)
	}

	switch e.Predicate {
	case SpIntersects:
		return geomIntersects(g, e.Geometry), nil
	case SpWithin:
		return geomWithin(g, e.Geometry), nil
	case SpContains:
		return geomWithin(e.Geometry, g), nil
	case SpDWithin:
		return geomDWithin(g, e.Geometry, e.Distance)
	default:
		return false, fmt.Errorf("unhandled spatial predicate %q", e.Predicate)
	}
}

// compareValues compares two scalars with numeric, string, bool and time
// coercion. Returns -1, 0 or 1.
func compareValues(a, b any) (int, error) {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, fmt.Errorf("cannot compare number with %T", b)
		}
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("cannot compare string with %T", b)
		}
		return strings.Compare(av, bv), nil
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, fmt.Errorf("cannot compare bool with %T", b)
		}
		switch {
		case av == bv:
			return 0, nil
		case !av:
			return -1, nil
		default:
			return 1, nil
		}
	case time.Time:
		bt, err := toTime(b)
		if err != nil {
			return 0, err
		}
		return av.Compare(bt), nil
	default:
		return 0, fmt.Errorf("unsupported comparison value type %T", a)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return parseInstant(t)
	default:
		return time.Time{}, fmt.Errorf("expected a datetime value, got %T", v)
	}
}

// likeMatch evaluates a SQL LIKE pattern (% = any run, _ = any character).
func likeMatch(pattern, s string) (bool, error) {
	var sb strings.Builder
	sb.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteByte('.')
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteByte('$')
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return false, fmt.Errorf("invalid LIKE pattern %q: %w", pattern, err)
	}
	return re.MatchString(s), nil
}

func geomIntersects(a, b orb.Geometry) bool {
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	if pt, ok := asPoint(a); ok {
		return pointIntersects(pt, b)
	}
	if pt, ok := asPoint(b); ok {
		return pointIntersects(pt, a)
	}
	// Extended-geometry pairs: bounding boxes already intersect.
	return true
}

func geomWithin(inner, outer orb.Geometry) bool {
	if pt, ok := asPoint(inner); ok {
		return pointIntersects(pt, outer)
	}
	// Extended geometries: within on bounds.
	ib, ob := inner.Bound(), outer.Bound()
	return ob.Contains(ib.Min) && ob.Contains(ib.Max)
}

func geomDWithin(a, b orb.Geometry, distance float64) (bool, error) {
	pa, aok := asPoint(a)
	pb, bok := asPoint(b)
	if aok && bok {
		return geo.Distance(pa, pb) <= distance, nil
	}
	if aok {
		return pointNearGeometry(pa, b, distance), nil
	}
	if bok {
		return pointNearGeometry(pb, a, distance), nil
	}
	return false, fmt.Errorf("DWITHIN between two extended geometries is not supported in post-filtering")
}

func pointNearGeometry(p orb.Point, g orb.Geometry, distance float64) bool {
	if pointIntersects(p, g) {
		return true
	}
	switch geom := g.(type) {
	case orb.MultiPoint:
		for _, q := range geom {
			if geo.Distance(p, q) <= distance {
				return true
			}
		}
		return false
	case orb.LineString:
		return geo.Distance(p, nearestOnLine(p, geom)) <= distance
	case orb.MultiLineString:
		for _, ls := range geom {
			if geo.Distance(p, nearestOnLine(p, ls)) <= distance {
				return true
			}
		}
		return false
	case orb.Polygon:
		for _, ring := range geom {
			if geo.Distance(p, nearestOnLine(p, orb.LineString(ring))) <= distance {
				return true
			}
		}
		return false
	default:
		// Conservative bound-based proximity for remaining types.
		c := g.Bound().Center()
		return geo.Distance(p, c) <= distance
	}
}

func nearestOnLine(p orb.Point, ls orb.LineString) orb.Point {
	best := p
	bestDist := -1.0
	for i := 0; i+1 < len(ls); i++ {
		cand := closestOnSegment(p, ls[i], ls[i+1])
		d := geo.Distance(p, cand)
		if bestDist < 0 || d < bestDist {
			bestDist = d
			best = cand
		}
	}
	return best
}

// closestOnSegment projects p onto segment ab in coordinate space.
func closestOnSegment(p, a, b orb.Point) orb.Point {
	dx, dy := b[0]-a[0], b[1]-a[1]
	if dx == 0 && dy == 0 {
		return a
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return orb.Point{a[0] + t*dx, a[1] + t*dy}
}

func asPoint(g orb.Geometry) (orb.Point, bool) {
	p, ok := g.(orb.Point)
	return p, ok
}

func pointIntersects(p orb.Point, g orb.Geometry) bool {
	switch geom := g.(type) {
	case orb.Point:
		return p.Equal(geom)
	case orb.MultiPoint:
		for _, q := range geom {
			if p.Equal(q) {
				return true
			}
		}
		return false
	case orb.Polygon:
		return planar.PolygonContains(geom, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, p)
	case orb.Bound:
		return geom.Contains(p)
	case orb.LineString, orb.MultiLineString, orb.Collection, orb.Ring:
		return g.Bound().Contains(p)
	default:
		return false
	}
}
