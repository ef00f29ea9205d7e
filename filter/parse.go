package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/hugr-lab/featureql/catalog"
)

// Parse parses a filter expression in the given dialect against a layer
// schema. maxDepth bounds expression nesting; pass 0 for DefaultMaxDepth.
//
// Error conditions:
//   - *SyntaxError for malformed input
//   - *UnknownFieldError for field references absent from the layer
//   - *SemanticError for predicates not applicable to the referenced field
//   - *UnsupportedOperatorError for operators the engine does not implement
//   - *DepthError for nesting beyond maxDepth
func Parse(input string, dialect Dialect, layer *catalog.Layer, maxDepth int) (Expression, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if strings.TrimSpace(input) == "" {
		return nil, &SyntaxError{Pos: -1, Detail: "empty filter expression"}
	}

	switch dialect {
	case DialectCQLText:
		return parseCQLText(input, layer, maxDepth)
	case DialectCQL2JSON:
		return parseCQL2JSON([]byte(input), layer, maxDepth)
	default:
		return nil, fmt.Errorf("unknown filter dialect %q", dialect)
	}
}

// resolveField looks a field up in the layer schema.
func resolveField(layer *catalog.Layer, name string) (catalog.Field, error) {
	f, ok := layer.Field(name)
	if !ok {
		return catalog.Field{}, &UnknownFieldError{Field: name}
	}
	return f, nil
}

// resolveComparable resolves a field for use in a comparison or temporal
// predicate, rejecting geometry-typed fields.
func resolveComparable(layer *catalog.Layer, name string) (catalog.Field, error) {
	f, err := resolveField(layer, name)
	if err != nil {
		return catalog.Field{}, err
	}
	if f.Type == catalog.TypeGeometry {
		return catalog.Field{}, &SemanticError{Field: name, Detail: "geometry fields require a spatial predicate, not a comparison"}
	}
	return f, nil
}

// resolveGeometryField resolves a field for use in a spatial predicate.
func resolveGeometryField(layer *catalog.Layer, name string) error {
	f, err := resolveField(layer, name)
	if err != nil {
		return err
	}
	if f.Type != catalog.TypeGeometry {
		return &SemanticError{Field: name, Detail: fmt.Sprintf("spatial predicate requires a geometry field, %q has type %s", name, f.Type)}
	}
	return nil
}

// coerceLiteral converts a parsed literal to the referenced field's type
// where the wire form is ambiguous. Timestamps and dates arrive as strings
// in both dialects and become time.Time here, at parse time.
func coerceLiteral(f catalog.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case catalog.TypeTimestamp, catalog.TypeDate:
		s, ok := v.(string)
		if !ok {
			if _, isTime := v.(time.Time); isTime {
				return v, nil
			}
			return nil, &SemanticError{Field: f.Name, Detail: fmt.Sprintf("expected a datetime literal, got %T", v)}
		}
		t, err := parseInstant(s)
		if err != nil {
			return nil, &SemanticError{Field: f.Name, Detail: err.Error()}
		}
		return t, nil
	default:
		return v, nil
	}
}

// parseInstant parses an RFC 3339 timestamp or a date-only value.
// Date-only values normalize to start-of-day UTC.
func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("malformed datetime %q", s)
}

// ParseInterval parses an ISO-8601 interval: "start/end" with ".." or an
// empty part for an open bound, or a single instant (instant/instant).
// A fully open interval is rejected as ambiguous.
func ParseInterval(s string) (Interval, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Interval{}, fmt.Errorf("empty interval")
	}

	parts := strings.Split(raw, "/")
	switch len(parts) {
	case 1:
		t, err := parseInstant(parts[0])
		if err != nil {
			return Interval{}, err
		}
		return Interval{Start: &t, End: &t}, nil
	case 2:
		var start, end *time.Time
		if parts[0] != ".." && parts[0] != "" {
			t, err := parseInstant(parts[0])
			if err != nil {
				return Interval{}, err
			}
			start = &t
		}
		if parts[1] != ".." && parts[1] != "" {
			t, err := parseInstant(parts[1])
			if err != nil {
				return Interval{}, err
			}
			end = &t
		}
		return NewInterval(start, end)
	default:
		return Interval{}, fmt.Errorf("malformed interval %q", s)
	}
}
