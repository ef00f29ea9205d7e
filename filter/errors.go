package filter

import "fmt"

// SyntaxError indicates malformed filter text or JSON.
type SyntaxError struct {
	// Pos is the byte offset of the offending token (text dialect only, -1 otherwise).
	Pos int

	// Detail describes the problem and echoes the offending input.
	Detail string
}

func (e *SyntaxError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Detail)
	}
	return "syntax error: " + e.Detail
}

// UnknownFieldError indicates a field reference that does not exist in the
// target layer's schema. Field resolution happens at parse time, so this is
// reported before any backend is involved.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Field)
}

// UnsupportedOperatorError indicates an operator or function the engine does
// not implement, distinct from a generic parse failure so protocol layers
// can render a clearer message.
type UnsupportedOperatorError struct {
	Operator string
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("unsupported operator %q", e.Operator)
}

// SemanticError indicates a structurally valid expression that is not
// applicable to the referenced field (e.g. a comparison on a geometry field).
type SemanticError struct {
	Field  string
	Detail string
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Detail)
}

// DepthError indicates expression nesting beyond the configured bound.
type DepthError struct {
	Max int
}

func (e *DepthError) Error() string {
	return fmt.Sprintf("filter nesting exceeds maximum depth %d", e.Max)
}
