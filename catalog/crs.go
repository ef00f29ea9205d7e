package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// CRS identifies a coordinate reference system by authority and code.
// The zero value is not a valid CRS.
type CRS struct {
	// Authority is the registry that owns the code (e.g. "EPSG", "OGC").
	Authority string

	// Code is the numeric identifier within the authority.
	Code int
}

// CRS84 is the OGC default CRS (WGS 84 longitude/latitude),
// http://www.opengis.net/def/crs/OGC/1.3/CRS84.
var CRS84 = CRS{Authority: "OGC", Code: 84}

// WGS84 is EPSG:4326.
var WGS84 = CRS{Authority: "EPSG", Code: 4326}

// String returns the compact "AUTHORITY:code" form (e.g. "EPSG:4326").
func (c CRS) String() string {
	if c == CRS84 {
		return "OGC:CRS84"
	}
	return c.Authority + ":" + strconv.Itoa(c.Code)
}

// URI returns the OGC http URI form of the identifier.
func (c CRS) URI() string {
	if c == CRS84 {
		return "http://www.opengis.net/def/crs/OGC/1.3/CRS84"
	}
	return fmt.Sprintf("http://www.opengis.net/def/crs/%s/0/%d", c.Authority, c.Code)
}

// IsZero reports whether the CRS is unset.
func (c CRS) IsZero() bool {
	return c.Authority == "" && c.Code == 0
}

// ParseCRS parses a CRS identifier in any of the accepted spellings:
//
//	EPSG:4326
//	urn:ogc:def:crs:EPSG::4326
//	http://www.opengis.net/def/crs/EPSG/0/4326
//	CRS84 / OGC:CRS84 / urn:ogc:def:crs:OGC:1.3:CRS84
//
// The returned error echoes the offending input.
func ParseCRS(s string) (CRS, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return CRS{}, fmt.Errorf("empty CRS identifier")
	}

	switch {
	case strings.EqualFold(raw, "CRS84"),
		strings.EqualFold(raw, "OGC:CRS84"),
		strings.EqualFold(raw, "urn:ogc:def:crs:OGC:1.3:CRS84"),
		strings.EqualFold(raw, "http://www.opengis.net/def/crs/OGC/1.3/CRS84"),
		strings.EqualFold(raw, "https://www.opengis.net/def/crs/OGC/1.3/CRS84"):
		return CRS84, nil
	}

	// http://www.opengis.net/def/crs/{authority}/{version}/{code}
	for _, prefix := range []string{"http://www.opengis.net/def/crs/", "https://www.opengis.net/def/crs/"} {
		if strings.HasPrefix(raw, prefix) {
			parts := strings.Split(strings.TrimPrefix(raw, prefix), "/")
			if len(parts) != 3 {
				return CRS{}, fmt.Errorf("malformed CRS URI %q", s)
			}
			code, err := strconv.Atoi(parts[2])
			if err != nil {
				return CRS{}, fmt.Errorf("malformed CRS URI %q: non-numeric code %q", s, parts[2])
			}
			return CRS{Authority: strings.ToUpper(parts[0]), Code: code}, nil
		}
	}

	// urn:ogc:def:crs:{authority}::{code}
	if strings.HasPrefix(strings.ToLower(raw), "urn:ogc:def:crs:") {
		rest := raw[len("urn:ogc:def:crs:"):]
		parts := strings.Split(rest, ":")
		if len(parts) < 2 {
			return CRS{}, fmt.Errorf("malformed CRS URN %q", s)
		}
		codeStr := parts[len(parts)-1]
		code, err := strconv.Atoi(codeStr)
		if err != nil {
			return CRS{}, fmt.Errorf("malformed CRS URN %q: non-numeric code %q", s, codeStr)
		}
		return CRS{Authority: strings.ToUpper(parts[0]), Code: code}, nil
	}

	// AUTHORITY:code
	if i := strings.IndexByte(raw, ':'); i > 0 {
		code, err := strconv.Atoi(raw[i+1:])
		if err != nil {
			return CRS{}, fmt.Errorf("malformed CRS identifier %q: non-numeric code %q", s, raw[i+1:])
		}
		return CRS{Authority: strings.ToUpper(raw[:i]), Code: code}, nil
	}

	// Bare numeric code is treated as EPSG.
	if code, err := strconv.Atoi(raw); err == nil {
		return CRS{Authority: "EPSG", Code: code}, nil
	}

	return CRS{}, fmt.Errorf("unrecognized CRS identifier %q", s)
}

// CRSRegistry holds the set of CRS identifiers a deployment supports.
// Registries are immutable after construction and safe for concurrent use.
type CRSRegistry struct {
	supported []CRS
	def       CRS
}

// NewCRSRegistry creates a registry with the given supported list and default.
// The default is appended to the supported list if not already present.
func NewCRSRegistry(supported []CRS, def CRS) *CRSRegistry {
	r := &CRSRegistry{def: def}
	found := false
	for _, c := range supported {
		if c == def {
			found = true
		}
		r.supported = append(r.supported, c)
	}
	if !found && !def.IsZero() {
		r.supported = append(r.supported, def)
	}
	return r
}

// DefaultCRSRegistry returns a registry supporting CRS84 and EPSG:4326
// with CRS84 as default, the minimum required by OGC API Features.
func DefaultCRSRegistry() *CRSRegistry {
	return NewCRSRegistry([]CRS{CRS84, WGS84}, CRS84)
}

// Default returns the registry's default CRS.
func (r *CRSRegistry) Default() CRS { return r.def }

// Contains reports whether the given CRS is supported.
func (r *CRSRegistry) Contains(c CRS) bool {
	for _, s := range r.supported {
		if s == c {
			return true
		}
	}
	return false
}

// Supported returns the supported identifiers in compact string form,
// for use in error messages and capability documents.
func (r *CRSRegistry) Supported() []string {
	out := make([]string, len(r.supported))
	for i, c := range r.supported {
		out[i] = c.String()
	}
	return out
}
