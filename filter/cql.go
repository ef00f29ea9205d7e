package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hugr-lab/featureql/catalog"
)

// CQL text parsing: a hand-written lexer and recursive-descent parser for
// the comparison/logical subset of CQL plus the spatial and temporal
// predicates the original feature service exposes.

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokValue // number or bare datetime/interval literal
	tokString
	tokOp // = <> < <= > >=
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	input string
	pos   int
}

func (lx *lexer) lex() ([]token, error) {
	var toks []token
	for {
		lx.skipSpace()
		if lx.pos >= len(lx.input) {
			toks = append(toks, token{kind: tokEOF, pos: lx.pos})
			return toks, nil
		}
		start := lx.pos
		c := lx.input[lx.pos]
		switch {
		case c == '(':
			lx.pos++
			toks = append(toks, token{kind: tokLParen, text: "(", pos: start})
		case c == ')':
			lx.pos++
			toks = append(toks, token{kind: tokRParen, text: ")", pos: start})
		case c == ',':
			lx.pos++
			toks = append(toks, token{kind: tokComma, text: ",", pos: start})
		case c == '=':
			lx.pos++
			toks = append(toks, token{kind: tokOp, text: "=", pos: start})
		case c == '<':
			lx.pos++
			if lx.peek() == '>' {
				lx.pos++
				toks = append(toks, token{kind: tokOp, text: "<>", pos: start})
			} else if lx.peek() == '=' {
				lx.pos++
				toks = append(toks, token{kind: tokOp, text: "<=", pos: start})
			} else {
				toks = append(toks, token{kind: tokOp, text: "<", pos: start})
			}
		case c == '>':
			lx.pos++
			if lx.peek() == '=' {
				lx.pos++
				toks = append(toks, token{kind: tokOp, text: ">=", pos: start})
			} else {
				toks = append(toks, token{kind: tokOp, text: ">", pos: start})
			}
		case c == '\'':
			s, err := lx.lexString()
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, text: s, pos: start})
		case isDigitByte(c) || (c == '-' && lx.pos+1 < len(lx.input) && isDigitByte(lx.input[lx.pos+1])) || c == '.':
			// Numbers, datetimes and intervals share one token class; they are
			// disambiguated by the parser against the field's schema type.
			toks = append(toks, token{kind: tokValue, text: lx.lexValue(), pos: start})
		case isLetterByte(c) || c == '_':
			toks = append(toks, token{kind: tokIdent, text: lx.lexIdent(), pos: start})
		default:
			return nil, &SyntaxError{Pos: start, Detail: fmt.Sprintf("unexpected character %q", string(c))}
		}
	}
}

func (lx *lexer) peek() byte {
	if lx.pos < len(lx.input) {
		return lx.input[lx.pos]
	}
	return 0
}

func (lx *lexer) skipSpace() {
	for lx.pos < len(lx.input) {
		switch lx.input[lx.pos] {
		case ' ', '\t', '\n', '\r':
			lx.pos++
		default:
			return
		}
	}
}

func (lx *lexer) lexString() (string, error) {
	start := lx.pos
	lx.pos++ // opening quote
	var sb strings.Builder
	for lx.pos < len(lx.input) {
		c := lx.input[lx.pos]
		if c == '\'' {
			if lx.pos+1 < len(lx.input) && lx.input[lx.pos+1] == '\'' {
				sb.WriteByte('\'')
				lx.pos += 2
				continue
			}
			lx.pos++
			return sb.String(), nil
		}
		sb.WriteByte(c)
		lx.pos++
	}
	return "", &SyntaxError{Pos: start, Detail: "unterminated string literal"}
}

// lexValue reads a numeric, datetime or interval literal: a run of digits
// and the punctuation ISO-8601 allows (-, :, ., /, +, T, Z).
func (lx *lexer) lexValue() string {
	start := lx.pos
	if lx.input[lx.pos] == '-' {
		lx.pos++
	}
	for lx.pos < len(lx.input) {
		c := lx.input[lx.pos]
		if isDigitByte(c) || c == '.' || c == '-' || c == ':' || c == '/' || c == '+' ||
			c == 'T' || c == 'Z' || c == 'z' {
			lx.pos++
			continue
		}
		break
	}
	return lx.input[start:lx.pos]
}

func (lx *lexer) lexIdent() string {
	start := lx.pos
	for lx.pos < len(lx.input) {
		c := lx.input[lx.pos]
		if isLetterByte(c) || isDigitByte(c) || c == '_' {
			lx.pos++
			continue
		}
		break
	}
	return lx.input[start:lx.pos]
}

func isLetterByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigitByte(c byte) bool {
	return c >= '0' && c <= '9'
}

// spatialFunctions maps CQL spatial function names to predicates.
var spatialFunctions = map[string]SpatialPredicate{
	"INTERSECTS": SpIntersects,
	"WITHIN":     SpWithin,
	"CONTAINS":   SpContains,
	"DWITHIN":    SpDWithin,
}

// recognizedButUnsupported lists spatial operators the grammar knows but the
// engine does not implement; they fail with a specific operator error.
var recognizedButUnsupported = map[string]bool{
	"DISJOINT": true, "TOUCHES": true, "CROSSES": true, "OVERLAPS": true,
	"EQUALS": true, "RELATE": true, "BEYOND": true,
}

type cqlParser struct {
	input    string
	toks     []token
	i        int
	layer    *catalog.Layer
	maxDepth int
}

func parseCQLText(input string, layer *catalog.Layer, maxDepth int) (Expression, error) {
	lx := &lexer{input: input}
	toks, err := lx.lex()
	if err != nil {
		return nil, err
	}
	p := &cqlParser{input: input, toks: toks, layer: layer, maxDepth: maxDepth}
	expr, err := p.parseOr(1)
	if err != nil {
		return nil, err
	}
	if tok := p.cur(); tok.kind != tokEOF {
		return nil, &SyntaxError{Pos: tok.pos, Detail: fmt.Sprintf("unexpected trailing input %q", tok.text)}
	}
	return expr, nil
}

func (p *cqlParser) cur() token  { return p.toks[p.i] }
func (p *cqlParser) next() token { t := p.toks[p.i]; p.i++; return t }

func (p *cqlParser) isKeyword(kw string) bool {
	t := p.cur()
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func (p *cqlParser) expectKeyword(kw string) error {
	if !p.isKeyword(kw) {
		t := p.cur()
		return &SyntaxError{Pos: t.pos, Detail: fmt.Sprintf("expected %s, got %q", kw, t.text)}
	}
	p.next()
	return nil
}

func (p *cqlParser) parseOr(depth int) (Expression, error) {
	if depth > p.maxDepth {
		return nil, &DepthError{Max: p.maxDepth}
	}
	left, err := p.parseAnd(depth)
	if err != nil {
		return nil, err
	}
	operands := []Expression{left}
	for p.isKeyword("OR") {
		p.next()
		right, err := p.parseAnd(depth + 1)
		if err != nil {
			return nil, err
		}
		operands = append(operands, right)
	}
	if len(operands) == 1 {
		return left, nil
	}
	return &Logical{Op: OpOr, Operands: operands}, nil
}

func (p *cqlParser) parseAnd(depth int) (Expression, error) {
	if depth > p.maxDepth {
		return nil, &DepthError{Max: p.maxDepth}
	}
	left, err := p.parseUnary(depth)
	if err != nil {
		return nil, err
	}
	operands := []Expression{left}
	for p.isKeyword("AND") {
		p.next()
		right, err := p.parseUnary(depth + 1)
		if err != nil {
			return nil, err
		}
		operands = append(operands, right)
	}
	if len(operands) == 1 {
		return left, nil
	}
	return &Logical{Op: OpAnd, Operands: operands}, nil
}

func (p *cqlParser) parseUnary(depth int) (Expression, error) {
	if depth > p.maxDepth {
		return nil, &DepthError{Max: p.maxDepth}
	}
	if p.isKeyword("NOT") {
		p.next()
		inner, err := p.parseUnary(depth + 1)
		if err != nil {
			return nil, err
		}
		return &Logical{Op: OpNot, Operands: []Expression{inner}}, nil
	}
	return p.parsePrimary(depth)
}

func (p *cqlParser) parsePrimary(depth int) (Expression, error) {
	tok := p.cur()
	switch tok.kind {
	case tokLParen:
		p.next()
		inner, err := p.parseOr(depth + 1)
		if err != nil {
			return nil, err
		}
		if p.cur().kind != tokRParen {
			return nil, &SyntaxError{Pos: p.cur().pos, Detail: "expected closing parenthesis"}
		}
		p.next()
		return inner, nil
	case tokIdent:
		upper := strings.ToUpper(tok.text)
		if _, ok := spatialFunctions[upper]; ok {
			return p.parseSpatial()
		}
		if recognizedButUnsupported[upper] {
			return nil, &UnsupportedOperatorError{Operator: upper}
		}
		return p.parsePredicate()
	default:
		return nil, &SyntaxError{Pos: tok.pos, Detail: fmt.Sprintf("expected a predicate, got %q", tok.text)}
	}
}

// parseSpatial parses INTERSECTS(field, <wkt>), WITHIN, CONTAINS and
// DWITHIN(field, <wkt>, distance). The geometry argument is captured as a
// raw substring (WKT contains nested parentheses) and handed to the WKT
// decoder.
func (p *cqlParser) parseSpatial() (Expression, error) {
	fn := p.next()
	pred := spatialFunctions[strings.ToUpper(fn.text)]

	if p.cur().kind != tokLParen {
		return nil, &SyntaxError{Pos: p.cur().pos, Detail: fmt.Sprintf("expected ( after %s", fn.text)}
	}
	p.next()

	fieldTok := p.cur()
	if fieldTok.kind != tokIdent {
		return nil, &SyntaxError{Pos: fieldTok.pos, Detail: fmt.Sprintf("%s: expected a field name, got %q", fn.text, fieldTok.text)}
	}
	p.next()
	if err := resolveGeometryField(p.layer, fieldTok.text); err != nil {
		return nil, err
	}

	if p.cur().kind != tokComma {
		return nil, &SyntaxError{Pos: p.cur().pos, Detail: fmt.Sprintf("%s: expected comma after field", fn.text)}
	}
	comma := p.next()

	// Scan tokens to the function's closing parenthesis, tracking top-level
	// commas that separate the trailing DWITHIN distance argument.
	parens := 1
	geomStart := comma.pos + 1
	geomEnd := -1
	var topCommas []int
	for parens > 0 {
		t := p.next()
		switch t.kind {
		case tokLParen:
			parens++
		case tokRParen:
			parens--
			if parens == 0 {
				geomEnd = t.pos
			}
		case tokComma:
			if parens == 1 {
				topCommas = append(topCommas, t.pos)
			}
		case tokEOF:
			return nil, &SyntaxError{Pos: t.pos, Detail: fmt.Sprintf("%s: unterminated argument list", fn.text)}
		}
	}

	geomText := p.input[geomStart:geomEnd]
	distance := 0.0
	if pred == SpDWithin {
		if len(topCommas) == 0 {
			return nil, &SyntaxError{Pos: geomEnd, Detail: "DWITHIN requires a distance argument"}
		}
		last := topCommas[len(topCommas)-1]
		distText := strings.TrimSpace(p.input[last+1 : geomEnd])
		d, err := strconv.ParseFloat(distText, 64)
		if err != nil {
			return nil, &SyntaxError{Pos: last + 1, Detail: fmt.Sprintf("DWITHIN: invalid distance %q", distText)}
		}
		if d < 0 {
			return nil, &SyntaxError{Pos: last + 1, Detail: "DWITHIN: distance cannot be negative"}
		}
		distance = d
		geomText = p.input[geomStart:last]
	} else if len(topCommas) > 0 {
		return nil, &SyntaxError{Pos: topCommas[0], Detail: fmt.Sprintf("%s takes exactly two arguments", fn.text)}
	}

	geom, err := catalog.ParseWKT(strings.TrimSpace(geomText))
	if err != nil {
		return nil, &SyntaxError{Pos: geomStart, Detail: err.Error()}
	}

	return &Spatial{Predicate: pred, Field: fieldTok.text, Geometry: geom, Distance: distance}, nil
}

// parsePredicate parses field-led predicates: comparisons, LIKE, IN,
// BETWEEN, IS [NOT] NULL, and the temporal DURING/BEFORE/AFTER forms.
func (p *cqlParser) parsePredicate() (Expression, error) {
	fieldTok := p.next()
	field, err := resolveComparable(p.layer, fieldTok.text)
	if err != nil {
		return nil, err
	}

	tok := p.cur()
	switch {
	case tok.kind == tokOp:
		p.next()
		val, err := p.parseLiteral(field)
		if err != nil {
			return nil, err
		}
		return &Comparison{Field: field.Name, Op: CompareOp(tok.text), Value: val}, nil

	case tok.kind == tokIdent && strings.EqualFold(tok.text, "LIKE"):
		p.next()
		val := p.cur()
		if val.kind != tokString {
			return nil, &SyntaxError{Pos: val.pos, Detail: "LIKE requires a string pattern"}
		}
		p.next()
		return &Comparison{Field: field.Name, Op: OpLike, Value: val.text}, nil

	case tok.kind == tokIdent && strings.EqualFold(tok.text, "IN"):
		p.next()
		return p.parseIn(field)

	case tok.kind == tokIdent && strings.EqualFold(tok.text, "BETWEEN"):
		p.next()
		low, err := p.parseLiteral(field)
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return nil, err
		}
		high, err := p.parseLiteral(field)
		if err != nil {
			return nil, err
		}
		return &Comparison{Field: field.Name, Op: OpBetween, Low: low, High: high}, nil

	case tok.kind == tokIdent && strings.EqualFold(tok.text, "IS"):
		p.next()
		negated := false
		if p.isKeyword("NOT") {
			p.next()
			negated = true
		}
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		isNull := Expression(&Comparison{Field: field.Name, Op: OpIsNull})
		if negated {
			return &Logical{Op: OpNot, Operands: []Expression{isNull}}, nil
		}
		return isNull, nil

	case tok.kind == tokIdent && strings.EqualFold(tok.text, "DURING"):
		p.next()
		return p.parseTemporal(field, "DURING")

	case tok.kind == tokIdent && strings.EqualFold(tok.text, "BEFORE"):
		p.next()
		return p.parseTemporal(field, "BEFORE")

	case tok.kind == tokIdent && strings.EqualFold(tok.text, "AFTER"):
		p.next()
		return p.parseTemporal(field, "AFTER")

	default:
		return nil, &SyntaxError{Pos: tok.pos, Detail: fmt.Sprintf("expected an operator after field %q, got %q", field.Name, tok.text)}
	}
}

func (p *cqlParser) parseIn(field catalog.Field) (Expression, error) {
	if p.cur().kind != tokLParen {
		return nil, &SyntaxError{Pos: p.cur().pos, Detail: "IN requires a parenthesized value list"}
	}
	p.next()

	var values []any
	for {
		val, err := p.parseLiteral(field)
		if err != nil {
			return nil, err
		}
		values = append(values, val)
		if p.cur().kind == tokComma {
			p.next()
			continue
		}
		break
	}
	if p.cur().kind != tokRParen {
		return nil, &SyntaxError{Pos: p.cur().pos, Detail: "IN: expected closing parenthesis"}
	}
	p.next()
	return &Comparison{Field: field.Name, Op: OpIn, Values: values}, nil
}

func (p *cqlParser) parseTemporal(field catalog.Field, op string) (Expression, error) {
	if field.Type != catalog.TypeTimestamp && field.Type != catalog.TypeDate {
		return nil, &SemanticError{Field: field.Name, Detail: fmt.Sprintf("%s requires a temporal field, %q has type %s", op, field.Name, field.Type)}
	}
	tok := p.cur()
	if tok.kind != tokValue && tok.kind != tokString {
		return nil, &SyntaxError{Pos: tok.pos, Detail: fmt.Sprintf("%s requires a datetime or interval literal", op)}
	}
	p.next()

	switch op {
	case "DURING":
		iv, err := ParseInterval(tok.text)
		if err != nil {
			return nil, &SyntaxError{Pos: tok.pos, Detail: err.Error()}
		}
		return &Temporal{Field: field.Name, Interval: iv}, nil
	case "BEFORE":
		t, err := parseInstant(tok.text)
		if err != nil {
			return nil, &SyntaxError{Pos: tok.pos, Detail: err.Error()}
		}
		return &Temporal{Field: field.Name, Interval: Interval{End: &t}}, nil
	default: // AFTER
		t, err := parseInstant(tok.text)
		if err != nil {
			return nil, &SyntaxError{Pos: tok.pos, Detail: err.Error()}
		}
		return &Temporal{Field: field.Name, Interval: Interval{Start: &t}}, nil
	}
}

// parseLiteral parses a literal token and coerces it to the field's type.
func (p *cqlParser) parseLiteral(field catalog.Field) (any, error) {
	tok := p.cur()
	switch tok.kind {
	case tokString:
		p.next()
		return coerceLiteral(field, tok.text)
	case tokValue:
		p.next()
		if f, err := strconv.ParseFloat(tok.text, 64); err == nil {
			return f, nil
		}
		// Bare datetime literal (e.g. built >= 2020-01-01).
		return coerceLiteral(field, tok.text)
	case tokIdent:
		if strings.EqualFold(tok.text, "TRUE") {
			p.next()
			return true, nil
		}
		if strings.EqualFold(tok.text, "FALSE") {
			p.next()
			return false, nil
		}
		return nil, &SyntaxError{Pos: tok.pos, Detail: fmt.Sprintf("expected a literal, got identifier %q", tok.text)}
	default:
		return nil, &SyntaxError{Pos: tok.pos, Detail: fmt.Sprintf("expected a literal, got %q", tok.text)}
	}
}
