package filter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/hugr-lab/featureql/catalog"
)

// CQL2 JSON parsing: a tree of {"op": ..., "args": [...]} nodes where args
// are nested nodes, {"property": name} field references, GeoJSON geometry
// objects, interval objects, or plain literals.

type cql2Node struct {
	Op   string            `json:"op"`
	Args []json.RawMessage `json:"args"`
}

type cql2Property struct {
	Property *string `json:"property"`
}

type cql2Interval struct {
	Interval []string `json:"interval"`
}

type cql2Parser struct {
	layer    *catalog.Layer
	maxDepth int
}

func parseCQL2JSON(data []byte, layer *catalog.Layer, maxDepth int) (Expression, error) {
	p := &cql2Parser{layer: layer, maxDepth: maxDepth}
	expr, err := p.parseNode(data, 1)
	if err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *cql2Parser) parseNode(data json.RawMessage, depth int) (Expression, error) {
	if depth > p.maxDepth {
		return nil, &DepthError{Max: p.maxDepth}
	}

	var node cql2Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, &SyntaxError{Pos: -1, Detail: "invalid CQL2 JSON: " + err.Error()}
	}
	if node.Op == "" {
		return nil, &SyntaxError{Pos: -1, Detail: "CQL2 node is missing \"op\""}
	}

	switch strings.ToLower(node.Op) {
	case "and", "or":
		return p.parseLogical(node, depth)
	case "not":
		if len(node.Args) != 1 {
			return nil, &SyntaxError{Pos: -1, Detail: "\"not\" takes exactly one argument"}
		}
		inner, err := p.parseNode(node.Args[0], depth+1)
		if err != nil {
			return nil, err
		}
		return &Logical{Op: OpNot, Operands: []Expression{inner}}, nil
	case "=", "<>", "!=", "<", "<=", ">", ">=", "like":
		return p.parseComparison(node)
	case "in":
		return p.parseIn(node)
	case "between":
		return p.parseBetween(node)
	case "isnull":
		return p.parseIsNull(node)
	case "s_intersects":
		return p.parseSpatial(node, SpIntersects)
	case "s_within":
		return p.parseSpatial(node, SpWithin)
	case "s_contains":
		return p.parseSpatial(node, SpContains)
	case "s_dwithin":
		return p.parseSpatial(node, SpDWithin)
	case "t_during":
		return p.parseDuring(node)
	default:
		return nil, &UnsupportedOperatorError{Operator: node.Op}
	}
}

func (p *cql2Parser) parseLogical(node cql2Node, depth int) (Expression, error) {
	if len(node.Args) < 2 {
		return nil, &SyntaxError{Pos: -1, Detail: fmt.Sprintf("%q requires at least two arguments", node.Op)}
	}
	op := OpAnd
	if strings.EqualFold(node.Op, "or") {
		op = OpOr
	}
	operands := make([]Expression, 0, len(node.Args))
	for _, arg := range node.Args {
		expr, err := p.parseNode(arg, depth+1)
		if err != nil {
			return nil, err
		}
		operands = append(operands, expr)
	}
	return &Logical{Op: op, Operands: operands}, nil
}

func (p *cql2Parser) parseComparison(node cql2Node) (Expression, error) {
	if len(node.Args) != 2 {
		return nil, &SyntaxError{Pos: -1, Detail: fmt.Sprintf("%q takes exactly two arguments", node.Op)}
	}
	field, err := p.propertyArg(node.Args[0], node.Op)
	if err != nil {
		return nil, err
	}
	f, err := resolveComparable(p.layer, field)
	if err != nil {
		return nil, err
	}
	raw, err := literalArg(node.Args[1], node.Op)
	if err != nil {
		return nil, err
	}
	val, err := coerceLiteral(f, raw)
	if err != nil {
		return nil, err
	}

	op := CompareOp(node.Op)
	switch strings.ToLower(node.Op) {
	case "!=":
		op = OpNotEqual
	case "like":
		op = OpLike
		if _, ok := val.(string); !ok {
			return nil, &SyntaxError{Pos: -1, Detail: "\"like\" requires a string pattern"}
		}
	}
	return &Comparison{Field: f.Name, Op: op, Value: val}, nil
}

func (p *cql2Parser) parseIn(node cql2Node) (Expression, error) {
	if len(node.Args) != 2 {
		return nil, &SyntaxError{Pos: -1, Detail: "\"in\" takes a property and a value list"}
	}
	field, err := p.propertyArg(node.Args[0], node.Op)
	if err != nil {
		return nil, err
	}
	f, err := resolveComparable(p.layer, field)
	if err != nil {
		return nil, err
	}

	var rawList []json.RawMessage
	if err := json.Unmarshal(node.Args[1], &rawList); err != nil {
		return nil, &SyntaxError{Pos: -1, Detail: "\"in\" second argument must be an array"}
	}
	if len(rawList) == 0 {
		return nil, &SyntaxError{Pos: -1, Detail: "\"in\" value list cannot be empty"}
	}
	values := make([]any, 0, len(rawList))
	for _, r := range rawList {
		lit, err := literalArg(r, node.Op)
		if err != nil {
			return nil, err
		}
		val, err := coerceLiteral(f, lit)
		if err != nil {
			return nil, err
		}
		values = append(values, val)
	}
	return &Comparison{Field: f.Name, Op: OpIn, Values: values}, nil
}

func (p *cql2Parser) parseBetween(node cql2Node) (Expression, error) {
	if len(node.Args) != 3 {
		return nil, &SyntaxError{Pos: -1, Detail: "\"between\" takes a property and two bounds"}
	}
	field, err := p.propertyArg(node.Args[0], node.Op)
	if err != nil {
		return nil, err
	}
	f, err := resolveComparable(p.layer, field)
	if err != nil {
		return nil, err
	}
	rawLow, err := literalArg(node.Args[1], node.Op)
	if err != nil {
		return nil, err
	}
	low, err := coerceLiteral(f, rawLow)
	if err != nil {
		return nil, err
	}
	rawHigh, err := literalArg(node.Args[2], node.Op)
	if err != nil {
		return nil, err
	}
	high, err := coerceLiteral(f, rawHigh)
	if err != nil {
		return nil, err
	}
	return &Comparison{Field: f.Name, Op: OpBetween, Low: low, High: high}, nil
}

func (p *cql2Parser) parseIsNull(node cql2Node) (Expression, error) {
	if len(node.Args) != 1 {
		return nil, &SyntaxError{Pos: -1, Detail: "\"isNull\" takes exactly one argument"}
	}
	field, err := p.propertyArg(node.Args[0], node.Op)
	if err != nil {
		return nil, err
	}
	f, err := resolveComparable(p.layer, field)
	if err != nil {
		return nil, err
	}
	return &Comparison{Field: f.Name, Op: OpIsNull}, nil
}

func (p *cql2Parser) parseSpatial(node cql2Node, pred SpatialPredicate) (Expression, error) {
	wantArgs := 2
	if pred == SpDWithin {
		wantArgs = 3
	}
	if len(node.Args) != wantArgs {
		return nil, &SyntaxError{Pos: -1, Detail: fmt.Sprintf("%q takes exactly %d arguments", node.Op, wantArgs)}
	}
	field, err := p.propertyArg(node.Args[0], node.Op)
	if err != nil {
		return nil, err
	}
	if err := resolveGeometryField(p.layer, field); err != nil {
		return nil, err
	}

	geom, err := geojson.UnmarshalGeometry(node.Args[1])
	if err != nil {
		return nil, &SyntaxError{Pos: -1, Detail: fmt.Sprintf("%q: invalid GeoJSON geometry: %v", node.Op, err)}
	}

	distance := 0.0
	if pred == SpDWithin {
		if err := json.Unmarshal(node.Args[2], &distance); err != nil {
			return nil, &SyntaxError{Pos: -1, Detail: "\"s_dwithin\" distance must be a number"}
		}
		if distance < 0 {
			return nil, &SyntaxError{Pos: -1, Detail: "\"s_dwithin\" distance cannot be negative"}
		}
	}

	return &Spatial{Predicate: pred, Field: field, Geometry: geom.Geometry(), Distance: distance}, nil
}

func (p *cql2Parser) parseDuring(node cql2Node) (Expression, error) {
	if len(node.Args) != 2 {
		return nil, &SyntaxError{Pos: -1, Detail: "\"t_during\" takes a property and an interval"}
	}
	field, err := p.propertyArg(node.Args[0], node.Op)
	if err != nil {
		return nil, err
	}
	f, err := resolveComparable(p.layer, field)
	if err != nil {
		return nil, err
	}
	if f.Type != catalog.TypeTimestamp && f.Type != catalog.TypeDate {
		return nil, &SemanticError{Field: f.Name, Detail: fmt.Sprintf("\"t_during\" requires a temporal field, %q has type %s", f.Name, f.Type)}
	}

	// Accept both {"interval": ["a","b"]} and a plain two-element array.
	var ivObj cql2Interval
	if err := json.Unmarshal(node.Args[1], &ivObj); err != nil || len(ivObj.Interval) == 0 {
		if err := json.Unmarshal(node.Args[1], &ivObj.Interval); err != nil {
			return nil, &SyntaxError{Pos: -1, Detail: "\"t_during\" second argument must be an interval"}
		}
	}
	if len(ivObj.Interval) != 2 {
		return nil, &SyntaxError{Pos: -1, Detail: "\"t_during\" interval must have exactly two elements"}
	}

	iv, err := ParseInterval(ivObj.Interval[0] + "/" + ivObj.Interval[1])
	if err != nil {
		return nil, &SyntaxError{Pos: -1, Detail: err.Error()}
	}
	return &Temporal{Field: f.Name, Interval: iv}, nil
}

// propertyArg decodes a {"property": name} argument.
func (p *cql2Parser) propertyArg(data json.RawMessage, op string) (string, error) {
	var prop cql2Property
	if err := json.Unmarshal(data, &prop); err != nil || prop.Property == nil {
		return "", &SyntaxError{Pos: -1, Detail: fmt.Sprintf("%q: first argument must be a {\"property\": ...} reference", op)}
	}
	return *prop.Property, nil
}

// literalArg decodes a scalar literal argument.
func literalArg(data json.RawMessage, op string) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, &SyntaxError{Pos: -1, Detail: fmt.Sprintf("%q: invalid literal", op)}
	}
	switch v.(type) {
	case string, float64, bool, nil:
		return v, nil
	default:
		return nil, &SyntaxError{Pos: -1, Detail: fmt.Sprintf("%q: literal must be a scalar, got %T", op, v)}
	}
}
