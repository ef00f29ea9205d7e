package featureql

import (
	"fmt"
	"strconv"
	"strings"
)

// ResolvePagination parses limit and offset parameters. A limit must be a
// positive integer and is clamped to limits.AbsoluteMaxResults; an offset
// must be a non-negative integer. Empty strings leave the respective field
// unset.
func ResolvePagination(rawLimit, rawOffset string, limits Limits) (Pagination, error) {
	limits = limits.withDefaults()
	var p Pagination

	if s := strings.TrimSpace(rawLimit); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Pagination{}, &ParseError{Parameter: "limit", Detail: fmt.Sprintf("not an integer: %q", s)}
		}
		if n <= 0 {
			return Pagination{}, &ValidationError{Field: "limit", Detail: "must be positive"}
		}
		if n > limits.AbsoluteMaxResults {
			n = limits.AbsoluteMaxResults
		}
		p.Limit = n
		p.LimitSet = true
	}

	if s := strings.TrimSpace(rawOffset); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Pagination{}, &ParseError{Parameter: "offset", Detail: fmt.Sprintf("not an integer: %q", s)}
		}
		if n < 0 {
			return Pagination{}, &ValidationError{Field: "offset", Detail: "must not be negative"}
		}
		p.Offset = n
	}

	return p, nil
}

// ResolveResultType parses the resultType parameter. Empty selects record
// streaming.
func ResolveResultType(raw string) (ResultType, error) {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "", string(ResultRecords):
		return ResultRecords, nil
	case string(ResultHits):
		return ResultHits, nil
	default:
		return "", &ParseError{Parameter: "resultType", Detail: fmt.Sprintf("unknown result type %q", raw)}
	}
}
