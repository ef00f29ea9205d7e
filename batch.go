package featureql

import (
	"context"
	"fmt"

	"github.com/hugr-lab/featureql/catalog"
	"github.com/hugr-lab/featureql/filter"
)

// ResolveByIDs fetches the records for a batch of feature identifiers in a
// single backend query and re-associates them with the request order: the
// result has the same length as ids, with a nil entry for every identifier
// that matched nothing. Duplicate identifiers each receive the same record.
//
// Identifier matching is by canonical string form, so an int64 1 from the
// backend satisfies a requested int 1.
func (e *Engine) ResolveByIDs(ctx context.Context, layer *catalog.Layer, ids []any) ([]*FeatureRecord, error) {
	if layer == nil {
		return nil, &ValidationError{Field: "layer", Detail: "no layer"}
	}
	if err := layer.Validate(); err != nil {
		return nil, &ValidationError{Field: "layer", Detail: err.Error()}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if int64(len(ids)) > e.limits.AbsoluteMaxResults {
		return nil, &ValidationError{
			Field:  "objectIds",
			Detail: fmt.Sprintf("%d identifiers exceed the maximum of %d", len(ids), e.limits.AbsoluteMaxResults),
		}
	}

	q := &FeatureQuery{
		Layer: layer,
		Filter: &filter.Comparison{
			Field:  layer.IDField,
			Op:     filter.OpIn,
			Values: dedupe(ids),
		},
		Sort:       defaultSort(layer),
		ResultType: ResultRecords,
	}
	q = q.WithLimit(int64(len(ids)))

	stream, err := e.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	byID := make(map[string]*FeatureRecord, len(ids))
	for stream.Next(ctx) {
		rec := stream.Record()
		byID[idKey(rec.ID)] = rec
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	out := make([]*FeatureRecord, len(ids))
	for i, id := range ids {
		out[i] = byID[idKey(id)]
	}
	return out, nil
}

// idKey canonicalizes an identifier for matching across backend-native
// types.
func idKey(id any) string { return fmt.Sprint(id) }

// dedupe drops repeated identifiers while keeping first-seen order.
func dedupe(ids []any) []any {
	seen := make(map[string]struct{}, len(ids))
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		key := idKey(id)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, id)
	}
	return out
}
