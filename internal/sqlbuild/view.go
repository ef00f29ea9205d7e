package sqlbuild

import (
	"github.com/hugr-lab/featureql"
)

// ViewFromQuery flattens a canonical query into builder form.
func ViewFromQuery(q *featureql.FeatureQuery) *FeatureQueryView {
	v := &FeatureQueryView{
		Source:        q.Layer.Source,
		IDField:       q.Layer.IDField,
		GeometryField: q.Layer.GeometryField,
		TemporalField: q.Layer.TemporalField,
		SRID:          q.Layer.SRID,
		Columns:       q.Columns(),
		Filter:        q.Filter,
		Temporal:      q.Temporal,
		Offset:        q.Pagination.Offset,
	}
	if q.BBox != nil {
		v.BBox = &BBoxView{MinX: q.BBox.MinX, MinY: q.BBox.MinY, MaxX: q.BBox.MaxX, MaxY: q.BBox.MaxY}
	}
	if q.Pagination.LimitSet {
		v.Limit = q.Pagination.Limit
		v.HasLim = true
	}
	for _, k := range q.Sort {
		v.Sort = append(v.Sort, SortView{Field: k.Field, Desc: k.Desc})
	}
	return v
}
