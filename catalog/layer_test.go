package catalog

import (
	"strings"
	"testing"
)

func testLayer() *Layer {
	return &Layer{
		Name:          "roads",
		Source:        "public.roads",
		IDField:       "id",
		GeometryField: "geom",
		SRID:          4326,
		Fields: []Field{
			{Name: "id", Type: TypeInt},
			{Name: "name", Type: TypeString, Nullable: true},
			{Name: "lanes", Type: TypeInt, Nullable: true},
			{Name: "built", Type: TypeDate, Nullable: true},
			{Name: "geom", Type: TypeGeometry, Nullable: true},
		},
	}
}

func TestLayerLookups(t *testing.T) {
	l := testLayer()

	if !l.HasField("name") {
		t.Error("expected field name")
	}
	if l.HasField("missing") {
		t.Error("did not expect field missing")
	}
	if !l.IsGeometry("geom") {
		t.Error("expected geom to be geometry-typed")
	}
	if l.IsGeometry("name") {
		t.Error("name is not geometry-typed")
	}

	f, ok := l.Field("lanes")
	if !ok || f.Type != TypeInt {
		t.Errorf("Field(lanes) = %v, %v", f, ok)
	}

	names := l.FieldNames()
	if len(names) != 5 || names[0] != "id" || names[4] != "geom" {
		t.Errorf("unexpected field names: %v", names)
	}
}

func TestLayerValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Layer)
		wantErr string
	}{
		{name: "valid", mutate: func(*Layer) {}},
		{name: "empty name", mutate: func(l *Layer) { l.Name = "" }, wantErr: "name"},
		{name: "empty source", mutate: func(l *Layer) { l.Source = "" }, wantErr: "source"},
		{name: "missing id field", mutate: func(l *Layer) { l.IDField = "nope" }, wantErr: `id field "nope"`},
		{name: "geometry id field", mutate: func(l *Layer) { l.IDField = "geom" }, wantErr: "geometry-typed"},
		{name: "missing geometry field", mutate: func(l *Layer) { l.GeometryField = "nope" }, wantErr: `geometry field "nope"`},
		{
			name:    "wrong geometry type",
			mutate:  func(l *Layer) { l.GeometryField = "name" },
			wantErr: "want geometry",
		},
		{name: "temporal field", mutate: func(l *Layer) { l.TemporalField = "built" }},
		{
			name:    "missing temporal field",
			mutate:  func(l *Layer) { l.TemporalField = "nope" },
			wantErr: `temporal field "nope"`,
		},
		{
			name:    "wrong temporal type",
			mutate:  func(l *Layer) { l.TemporalField = "lanes" },
			wantErr: "want timestamp or date",
		},
		{
			name:    "duplicate field",
			mutate:  func(l *Layer) { l.Fields = append(l.Fields, Field{Name: "name", Type: TypeString}) },
			wantErr: "duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := testLayer()
			tt.mutate(l)
			err := l.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid layer, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
