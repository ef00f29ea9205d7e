package featureql

import (
	"strings"

	"github.com/hugr-lab/featureql/filter"
)

// ResolveTemporal parses a datetime parameter into an interval. Accepted
// forms:
//
//	2024-01-01T00:00:00Z                    single instant
//	2024-01-01T00:00:00Z/2024-06-30T23:59:59Z
//	../2024-06-30T23:59:59Z                 open start
//	2024-01-01T00:00:00Z/..                 open end
//
// Date-only values normalize to UTC start of day. A fully open interval is
// rejected: it expresses no constraint and usually signals a client bug.
func ResolveTemporal(raw string) (*filter.Interval, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	iv, err := filter.ParseInterval(raw)
	if err != nil {
		return nil, &ParseError{Parameter: "datetime", Detail: err.Error()}
	}
	return &iv, nil
}
