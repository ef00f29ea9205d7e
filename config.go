package featureql

// Default service limits. Deployments override them through Limits; the
// engine consumes configuration but never owns loading it.
const (
	DefaultUnboundedQueryCeiling = 10_000
	DefaultAbsoluteMaxResults    = 50_000
	DefaultFilterCacheSize       = 512
)

// Limits holds the service-level cost bounds every query is subject to.
// The zero value selects all defaults.
type Limits struct {
	// UnboundedQueryCeiling bounds queries that carry no client limit.
	// Crossing it fails the query with a CapacityExceededError rather than
	// silently truncating. Default 10,000.
	UnboundedQueryCeiling int64

	// AbsoluteMaxResults clamps explicit client limits. Callers exceed it
	// only by configuring a larger value here; the collaborating protocol
	// layer is expected to log such overrides. Default 50,000.
	AbsoluteMaxResults int64

	// MaxFilterDepth bounds filter expression nesting. Default 32.
	MaxFilterDepth int

	// AllowUnknownProperties drops unknown names from the properties
	// projection instead of rejecting them. Off by default: unknown names
	// fail with a ValidationError.
	AllowUnknownProperties bool

	// EnforceProjectedSort rejects sort keys absent from a non-empty
	// properties projection. Off by default; enable when the protocol layer
	// enforces projection on rendered output.
	EnforceProjectedSort bool
}

// withDefaults fills unset limits with their defaults.
func (l Limits) withDefaults() Limits {
	if l.UnboundedQueryCeiling <= 0 {
		l.UnboundedQueryCeiling = DefaultUnboundedQueryCeiling
	}
	if l.AbsoluteMaxResults <= 0 {
		l.AbsoluteMaxResults = DefaultAbsoluteMaxResults
	}
	if l.MaxFilterDepth <= 0 {
		l.MaxFilterDepth = DefaultMaxFilterDepth
	}
	return l
}

// DefaultMaxFilterDepth mirrors filter.DefaultMaxDepth for callers that
// configure limits without importing the filter package.
const DefaultMaxFilterDepth = 32
