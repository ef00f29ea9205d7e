// Package catalog describes the feature layers the query engine can serve:
// field schemas, identifier and geometry columns, and the coordinate
// reference systems a deployment supports.
//
// Layers are plain immutable descriptions. They carry no connection state;
// backends resolve a Layer's Source name against their own storage.
package catalog

import (
	"fmt"
)

// FieldType identifies the logical type of a layer field.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeInt       FieldType = "int"
	TypeFloat     FieldType = "float"
	TypeBool      FieldType = "bool"
	TypeTimestamp FieldType = "timestamp"
	TypeDate      FieldType = "date"
	TypeGeometry  FieldType = "geometry"
)

// Field describes a single attribute of a layer.
type Field struct {
	// Name is the field name as exposed to clients and filters.
	Name string

	// Type is the logical field type.
	Type FieldType

	// Nullable indicates whether the field may hold NULL.
	Nullable bool
}

// Layer describes a queryable feature collection.
// Implementations MUST treat a Layer as immutable after construction;
// it is shared by concurrent queries without locking.
type Layer struct {
	// Name is the layer name exposed to protocol adapters (e.g. "roads").
	Name string

	// Source is the backend-native object the layer maps to
	// (table name, collection name, or registered dataset key).
	Source string

	// IDField names the unique feature identifier field.
	// REQUIRED: every layer has exactly one id field.
	IDField string

	// GeometryField names the primary geometry field.
	// Empty for non-spatial layers.
	GeometryField string

	// TemporalField names the timestamp or date field that datetime
	// interval filters apply to. Empty when the layer has no temporal
	// dimension.
	TemporalField string

	// Fields lists all exposed fields, including IDField and GeometryField.
	Fields []Field

	// SRID is the EPSG code of the storage CRS (e.g. 4326).
	SRID int
}

// Field returns the field with the given name.
func (l *Layer) Field(name string) (Field, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasField reports whether the layer exposes a field with the given name.
func (l *Layer) HasField(name string) bool {
	_, ok := l.Field(name)
	return ok
}

// IsGeometry reports whether the named field exists and is geometry-typed.
func (l *Layer) IsGeometry(name string) bool {
	f, ok := l.Field(name)
	return ok && f.Type == TypeGeometry
}

// FieldNames returns the names of all exposed fields in declaration order.
func (l *Layer) FieldNames() []string {
	names := make([]string, len(l.Fields))
	for i, f := range l.Fields {
		names[i] = f.Name
	}
	return names
}

// Validate checks layer internal consistency.
// Returns an error naming the first inconsistency found.
func (l *Layer) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("layer name cannot be empty")
	}
	if l.Source == "" {
		return fmt.Errorf("layer %q: source cannot be empty", l.Name)
	}
	if l.IDField == "" {
		return fmt.Errorf("layer %q: id field cannot be empty", l.Name)
	}
	idf, ok := l.Field(l.IDField)
	if !ok {
		return fmt.Errorf("layer %q: id field %q not in field list", l.Name, l.IDField)
	}
	if idf.Type == TypeGeometry {
		return fmt.Errorf("layer %q: id field %q cannot be geometry-typed", l.Name, l.IDField)
	}
	if l.GeometryField != "" {
		gf, ok := l.Field(l.GeometryField)
		if !ok {
			return fmt.Errorf("layer %q: geometry field %q not in field list", l.Name, l.GeometryField)
		}
		if gf.Type != TypeGeometry {
			return fmt.Errorf("layer %q: geometry field %q has type %s, want geometry", l.Name, l.GeometryField, gf.Type)
		}
	}
	if l.TemporalField != "" {
		tf, ok := l.Field(l.TemporalField)
		if !ok {
			return fmt.Errorf("layer %q: temporal field %q not in field list", l.Name, l.TemporalField)
		}
		if tf.Type != TypeTimestamp && tf.Type != TypeDate {
			return fmt.Errorf("layer %q: temporal field %q has type %s, want timestamp or date", l.Name, l.TemporalField, tf.Type)
		}
	}
	seen := make(map[string]struct{}, len(l.Fields))
	for _, f := range l.Fields {
		if f.Name == "" {
			return fmt.Errorf("layer %q: field with empty name", l.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("layer %q: duplicate field %q", l.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}
