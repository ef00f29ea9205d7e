// Package featureql implements the feature query engine behind a
// multi-protocol geospatial feature service: it turns heterogeneous,
// protocol-specific query parameters into one canonical query, compiles it
// into a backend-native query, and executes it as a bounded, cancellable
// stream of feature records.
//
// # Quick Start
//
//	layer := &catalog.Layer{
//	    Name:          "roads",
//	    Source:        "public.roads",
//	    IDField:       "id",
//	    GeometryField: "geom",
//	    SRID:          4326,
//	    Fields: []catalog.Field{
//	        {Name: "id", Type: catalog.TypeInt},
//	        {Name: "name", Type: catalog.TypeString, Nullable: true},
//	        {Name: "geom", Type: catalog.TypeGeometry, Nullable: true},
//	    },
//	}
//
//	engine := featureql.New(backend, featureql.Limits{})
//
//	q, err := engine.BuildQuery(layer, featureql.Params{
//	    BBox:   "-180,-90,180,90",
//	    Filter: "name LIKE 'A%'",
//	    Limit:  "100",
//	})
//	if err != nil { ... }
//
//	stream, err := engine.Query(ctx, q)
//	if err != nil { ... }
//	defer stream.Close()
//	for stream.Next(ctx) {
//	    rec := stream.Record()
//	    // render rec
//	}
//	if err := stream.Err(); err != nil { ... }
//	if stream.Truncated() { ... }
//
// # Architecture
//
// The package follows an interface-based design:
//
//   - Params/BuildQuery: resolve raw protocol parameters into an immutable
//     FeatureQuery (validation happens here, never at execution time)
//   - Backend: interface translating a FeatureQuery into a
//     backend-native query and executing it (one implementation per storage
//     engine under backend/)
//   - Engine: bounded streaming execution, hits-only counting, and ordered
//     batch-ID lookup over a single configured Backend
//
// The engine is stateless apart from an optional parse cache and is safe
// for unbounded concurrent callers. FeatureQuery values are immutable;
// derived queries are produced by copy, never by in-place edit.
//
// # Resource Bounds
//
// Every query is bounded: explicit client limits are clamped to
// Limits.AbsoluteMaxResults, and queries with no client limit fail with a
// CapacityExceededError once Limits.UnboundedQueryCeiling is crossed,
// before further records are materialized. Streaming is pull-based with an
// N+1 look-ahead, so a slow consumer never causes the engine to buffer more
// than one record beyond the look-ahead.
//
// # Errors
//
// Failures surface as typed errors (ParseError,
// ValidationError, UnsupportedOperationError, CapacityExceededError,
// BackendError, CancelledError) carrying enough structure for protocol
// layers to render precise problem responses. StatusFromError maps the
// taxonomy onto gRPC status codes for gRPC-fronted deployments.
package featureql
