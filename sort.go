package featureql

import (
	"fmt"
	"strings"

	"github.com/hugr-lab/featureql/catalog"
)

// ResolveSort parses a comma-separated sort expression. Each key is a field
// name with an optional direction: a leading "-" or a ":desc"/":d" suffix
// selects descending, ":asc"/":a" ascending. Direction defaults to
// ascending.
//
// Every key must name a sortable layer field; geometry fields have no
// defined order and are rejected.
func ResolveSort(raw string, layer *catalog.Layer) (SortSpec, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	spec := make(SortSpec, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, &ParseError{Parameter: "sortby", Detail: "empty sort key"}
		}

		key := SortKey{}
		if strings.HasPrefix(part, "-") {
			key.Desc = true
			part = part[1:]
		} else if strings.HasPrefix(part, "+") {
			part = part[1:]
		}

		if i := strings.IndexByte(part, ':'); i >= 0 {
			dir := strings.ToLower(part[i+1:])
			part = part[:i]
			switch dir {
			case "asc", "a":
				key.Desc = false
			case "desc", "d":
				key.Desc = true
			default:
				return nil, &ParseError{Parameter: "sortby", Detail: fmt.Sprintf("unknown sort direction %q", dir)}
			}
		}

		if part == "" {
			return nil, &ParseError{Parameter: "sortby", Detail: "empty sort key"}
		}

		f, ok := layer.Field(part)
		if !ok {
			return nil, &ValidationError{Field: part, Detail: "unknown sort field"}
		}
		if f.Type == catalog.TypeGeometry {
			return nil, &ValidationError{Field: part, Detail: "geometry fields cannot be sorted"}
		}

		key.Field = part
		spec = append(spec, key)
	}
	return spec, nil
}

// defaultSort is applied when the client supplies no sort expression, so
// pagination windows are stable across requests.
func defaultSort(layer *catalog.Layer) SortSpec {
	return SortSpec{{Field: layer.IDField}}
}
