package featureql

import (
	"strings"

	"github.com/hugr-lab/featureql/catalog"
)

// ResolveProperties parses a comma-separated attribute projection. Names
// must exist on the layer unless allowUnknown is set, in which case unknown
// names are silently dropped. Duplicates collapse to the first occurrence.
//
// The returned slice excludes the id and geometry fields even when named:
// backends always project those, so listing them is a no-op rather than an
// error. A nil result means "all fields".
func ResolveProperties(raw string, layer *catalog.Layer, allowUnknown bool) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	seen := make(map[string]struct{}, len(parts))
	props := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			return nil, &ParseError{Parameter: "properties", Detail: "empty property name"}
		}
		if !layer.HasField(name) {
			if allowUnknown {
				continue
			}
			return nil, &ValidationError{Field: name, Detail: "unknown property"}
		}
		if name == layer.IDField || name == layer.GeometryField {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		props = append(props, name)
	}
	return props, nil
}

// Columns returns the full column list a backend must fetch for the query:
// the id field first, then the projection (or all non-system fields when
// nil), then the geometry field.
func (q *FeatureQuery) Columns() []string {
	layer := q.Layer
	cols := []string{layer.IDField}
	if q.Properties != nil {
		cols = append(cols, q.Properties...)
	} else {
		for _, f := range layer.Fields {
			if f.Name == layer.IDField || f.Name == layer.GeometryField {
				continue
			}
			cols = append(cols, f.Name)
		}
	}
	if layer.GeometryField != "" {
		cols = append(cols, layer.GeometryField)
	}
	return cols
}
