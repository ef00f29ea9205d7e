package featureql

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hugr-lab/featureql/catalog"
)

// ResolveCRS resolves the output CRS. Resolution order:
//
//  1. the explicit crs query parameter,
//  2. the Accept-style header, with quality-value weighted alternatives
//     sorted descending by quality,
//  3. the registry default.
//
// The first candidate present in the supported list wins. An explicit
// parameter that is unsupported fails immediately, naming the identifier
// and listing the supported ones; unsupported header alternatives are
// skipped as ordinary content negotiation.
func ResolveCRS(param, acceptHeader string, reg *catalog.CRSRegistry) (catalog.CRS, error) {
	if strings.TrimSpace(param) != "" {
		crs, err := catalog.ParseCRS(param)
		if err != nil {
			return catalog.CRS{}, &ParseError{Parameter: "crs", Detail: err.Error()}
		}
		if !reg.Contains(crs) {
			return catalog.CRS{}, &ValidationError{
				Field:  "crs",
				Detail: fmt.Sprintf("unsupported CRS %s; supported: %s", crs, strings.Join(reg.Supported(), ", ")),
			}
		}
		return crs, nil
	}

	for _, candidate := range parseAcceptCRS(acceptHeader) {
		crs, err := catalog.ParseCRS(candidate)
		if err != nil {
			continue
		}
		if reg.Contains(crs) {
			return crs, nil
		}
	}

	return reg.Default(), nil
}

// parseAcceptCRS splits an Accept-style header into identifiers ordered by
// descending quality value. Identifiers without a q parameter default to
// q=1. The sort is stable, so equal qualities keep header order.
func parseAcceptCRS(header string) []string {
	if strings.TrimSpace(header) == "" {
		return nil
	}

	type weighted struct {
		id string
		q  float64
	}
	var alts []weighted

	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id := part
		q := 1.0
		if i := strings.IndexByte(part, ';'); i >= 0 {
			id = strings.TrimSpace(part[:i])
			params := part[i+1:]
			for _, p := range strings.Split(params, ";") {
				p = strings.TrimSpace(p)
				if v, ok := strings.CutPrefix(p, "q="); ok {
					if f, err := strconv.ParseFloat(v, 64); err == nil {
						q = f
					}
				}
			}
		}
		if q <= 0 {
			continue
		}
		alts = append(alts, weighted{id: id, q: q})
	}

	sort.SliceStable(alts, func(i, j int) bool { return alts[i].q > alts[j].q })

	out := make([]string, len(alts))
	for i, a := range alts {
		out[i] = a.id
	}
	return out
}

// crsEquivalent reports whether two identifiers address the same coordinate
// system for filtering purposes. The engine registers no transforms; only
// CRS84 and EPSG:4326 are treated as interchangeable (they differ in axis
// order, which bbox input normalizes away).
func crsEquivalent(a, b catalog.CRS) bool {
	if a == b {
		return true
	}
	lonLat := func(c catalog.CRS) bool { return c == catalog.CRS84 || c == catalog.WGS84 }
	return lonLat(a) && lonLat(b)
}
