package featureql

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/hugr-lab/featureql/catalog"
	"github.com/hugr-lab/featureql/filter"
)

// Params carries the raw, untrusted request parameters exactly as the
// protocol layer received them. BuildQuery validates and resolves them into
// a FeatureQuery.
type Params struct {
	// Filter is the raw predicate expression.
	Filter string

	// FilterLang selects the filter dialect; empty means CQL text.
	FilterLang string

	// BBox is the raw bbox parameter.
	BBox string

	// CRS is the explicit output CRS parameter.
	CRS string

	// AcceptCRS is the Accept-style CRS negotiation header.
	AcceptCRS string

	// Datetime is the raw temporal interval parameter.
	Datetime string

	// SortBy is the raw sort expression.
	SortBy string

	// Properties is the raw attribute projection.
	Properties string

	// Limit and Offset are the raw pagination parameters.
	Limit  string
	Offset string

	// ResultType selects record streaming or count-only execution.
	ResultType string
}

// Engine resolves raw parameters into canonical queries and executes them
// against a single backend.
type Engine struct {
	backend Backend
	limits  Limits
	crs     *catalog.CRSRegistry
	filters *filter.Cache
	log     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithCRSRegistry replaces the default CRS registry.
func WithCRSRegistry(reg *catalog.CRSRegistry) Option {
	return func(e *Engine) { e.crs = reg }
}

// WithLogger sets the engine logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithFilterCacheSize sets the parsed-filter cache capacity.
func WithFilterCacheSize(size int) Option {
	return func(e *Engine) { e.filters = filter.NewCache(size) }
}

// New creates an engine over the given backend. Zero limits select the
// documented defaults.
func New(backend Backend, limits Limits, opts ...Option) *Engine {
	e := &Engine{
		backend: backend,
		limits:  limits.withDefaults(),
		crs:     catalog.DefaultCRSRegistry(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.filters == nil {
		e.filters = filter.NewCache(DefaultFilterCacheSize)
	}
	return e
}

// Limits returns the engine's effective limits.
func (e *Engine) Limits() Limits { return e.limits }

// BuildQuery validates and resolves raw parameters against the layer schema
// into a canonical FeatureQuery. It never touches the backend: translation
// and execution happen later, so a query can be built once and run many
// times.
func (e *Engine) BuildQuery(layer *catalog.Layer, p Params) (*FeatureQuery, error) {
	if layer == nil {
		return nil, &ValidationError{Field: "layer", Detail: "no layer"}
	}
	if err := layer.Validate(); err != nil {
		return nil, &ValidationError{Field: "layer", Detail: err.Error()}
	}

	q := &FeatureQuery{Layer: layer}

	if p.Filter != "" {
		dialect, err := resolveDialect(p.FilterLang)
		if err != nil {
			return nil, err
		}
		expr, err := e.filters.Parse(p.Filter, dialect, layer, e.limits.MaxFilterDepth)
		if err != nil {
			return nil, wrapFilterError(err)
		}
		q.Filter = expr
	}

	bbox, err := ResolveBBox(p.BBox, e.crs)
	if err != nil {
		return nil, err
	}
	q.BBox = bbox

	crs, err := ResolveCRS(p.CRS, p.AcceptCRS, e.crs)
	if err != nil {
		return nil, err
	}
	q.CRS = crs

	q.Temporal, err = ResolveTemporal(p.Datetime)
	if err != nil {
		return nil, err
	}
	if q.Temporal != nil && layer.TemporalField == "" {
		return nil, &ValidationError{Field: "datetime", Detail: fmt.Sprintf("layer %q has no temporal field", layer.Name)}
	}

	q.Sort, err = ResolveSort(p.SortBy, layer)
	if err != nil {
		return nil, err
	}
	if len(q.Sort) == 0 {
		q.Sort = defaultSort(layer)
	}

	q.Properties, err = ResolveProperties(p.Properties, layer, e.limits.AllowUnknownProperties)
	if err != nil {
		return nil, err
	}

	q.Pagination, err = ResolvePagination(p.Limit, p.Offset, e.limits)
	if err != nil {
		return nil, err
	}

	q.ResultType, err = ResolveResultType(p.ResultType)
	if err != nil {
		return nil, err
	}

	if err := validateQuery(q, e.limits); err != nil {
		return nil, err
	}
	return q, nil
}

// resolveDialect maps the filter-lang parameter to a dialect.
func resolveDialect(lang string) (filter.Dialect, error) {
	switch lang {
	case "", string(filter.DialectCQLText):
		return filter.DialectCQLText, nil
	case string(filter.DialectCQL2JSON):
		return filter.DialectCQL2JSON, nil
	default:
		return "", &ParseError{Parameter: "filter-lang", Detail: fmt.Sprintf("unknown dialect %q", lang)}
	}
}

// validateQuery applies the cross-parameter rules that no single resolver
// can check on its own.
func validateQuery(q *FeatureQuery, limits Limits) error {
	// The engine performs no coordinate transforms, so a bbox expressed in
	// one system cannot filter output requested in an incompatible one.
	if q.BBox != nil && !q.BBox.CRS.IsZero() && !q.CRS.IsZero() && !crsEquivalent(q.BBox.CRS, q.CRS) {
		return &ValidationError{
			Field:  "bbox-crs",
			Detail: fmt.Sprintf("bbox CRS %s conflicts with output CRS %s", q.BBox.CRS, q.CRS),
		}
	}

	if limits.EnforceProjectedSort && q.Properties != nil {
		for _, key := range q.Sort {
			if key.Field == q.Layer.IDField {
				continue
			}
			if !slices.Contains(q.Properties, key.Field) {
				return &ValidationError{
					Field:  key.Field,
					Detail: "sort field is not in the properties projection",
				}
			}
		}
	}
	return nil
}
