package featureql

import (
	"context"
	"fmt"

	"github.com/hugr-lab/featureql/filter"
	"github.com/hugr-lab/featureql/internal/recovery"
)

// StreamState is the lifecycle phase of a ResultStream.
type StreamState int

const (
	// StreamIdle means no record has been requested yet.
	StreamIdle StreamState = iota

	// StreamFetching means records are being yielded.
	StreamFetching

	// StreamCompleted means the result set was exhausted within budget.
	StreamCompleted

	// StreamTruncated means an explicit limit cut the result set short and
	// at least one further match exists.
	StreamTruncated

	// StreamFailed means the stream stopped on an error; Err reports it.
	StreamFailed
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "idle"
	case StreamFetching:
		return "fetching"
	case StreamCompleted:
		return "completed"
	case StreamTruncated:
		return "truncated"
	case StreamFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the outcome of Run: a count for hits queries, a stream for
// record queries. Exactly one of the two is set.
type Result struct {
	Hits   int64
	Stream *ResultStream
}

// Run executes a built query. Hits queries return a count without
// materializing records; record queries return a bounded stream the caller
// must drain or Close.
func (e *Engine) Run(ctx context.Context, q *FeatureQuery) (*Result, error) {
	if q.ResultType == ResultHits {
		n, err := e.Hits(ctx, q)
		if err != nil {
			return nil, err
		}
		return &Result{Hits: n}, nil
	}
	stream, err := e.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return &Result{Stream: stream}, nil
}

// Hits executes the count form of a query. A backend that cannot push the
// whole predicate down cannot count it either; the engine never falls back
// to streaming every record just to count, so such queries fail with an
// UnsupportedOperationError.
func (e *Engine) Hits(ctx context.Context, q *FeatureQuery) (int64, error) {
	nq, err := e.translate(q)
	if err != nil {
		return 0, err
	}
	if nq.PostFilter != nil {
		return 0, &UnsupportedOperationError{
			Operation: fmt.Sprintf("hits count on %s: predicate requires post-filtering", e.backend.Name()),
		}
	}
	n, err := recovery.ToValue(e.log, e.backend.Name()+" count", func() (int64, error) {
		return e.backend.Count(ctx, nq)
	})
	if err != nil {
		return 0, e.execError(ctx, err)
	}
	return n, nil
}

// Query executes a record query and returns its stream. The fetch asks the
// backend for one record beyond the budget, so the stream can distinguish
// an exactly-full page from a truncated one without a second round trip.
func (e *Engine) Query(ctx context.Context, q *FeatureQuery) (*ResultStream, error) {
	eff, explicit := q.effectiveLimit(e.limits)

	fetch := q.WithLimit(eff + 1)
	nq, err := e.translate(fetch)
	if err != nil {
		return nil, err
	}
	if nq.PostFilter != nil && nq.LimitPushed {
		return nil, &BackendError{
			Cause: fmt.Errorf("%s pushed a limit below a post-filter", e.backend.Name()),
		}
	}

	cursor, err := recovery.ToValue(e.log, e.backend.Name()+" execute", func() (Cursor, error) {
		return e.backend.Execute(ctx, nq)
	})
	if err != nil {
		return nil, e.execError(ctx, err)
	}

	skip := int64(0)
	if !nq.LimitPushed {
		skip = q.Pagination.Offset
	}
	return &ResultStream{
		query:    q,
		cursor:   cursor,
		post:     nq.PostFilter,
		budget:   eff,
		explicit: explicit,
		skip:     skip,
	}, nil
}

// translate runs the backend's Translate under panic recovery: translators
// are backend-provided code operating on untrusted query shapes.
func (e *Engine) translate(q *FeatureQuery) (*NativeQuery, error) {
	nq, err := recovery.ToValue(e.log, e.backend.Name()+" translate", func() (*NativeQuery, error) {
		return e.backend.Translate(q)
	})
	if err != nil {
		return nil, err
	}
	if nq == nil {
		return nil, &BackendError{Cause: fmt.Errorf("%s returned no native query", e.backend.Name())}
	}
	return nq, nil
}

// execError classifies an execution failure: context cancellation becomes a
// CancelledError, everything else a BackendError.
func (e *Engine) execError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &CancelledError{Cause: ctx.Err()}
	}
	return &BackendError{Cause: err}
}

// ResultStream yields matching records one at a time, enforcing the fetch
// budget with a single-record look-ahead. It is not safe for concurrent
// use.
type ResultStream struct {
	query  *FeatureQuery
	cursor Cursor
	post   filter.Expression

	// budget is the number of records the stream may yield; the cursor was
	// asked for budget+1 so the extra record reveals truncation.
	budget   int64
	explicit bool

	// skip is the number of matches still to drop before yielding, used
	// when the backend could not push the offset below a post-filter.
	skip int64

	state   StreamState
	yielded int64
	current *FeatureRecord
	err     error
	closed  bool
}

// Next advances to the next matching record. It returns false when the
// stream ends for any reason; check Err and State afterwards. The cursor is
// released as soon as the stream reaches a terminal state.
func (s *ResultStream) Next(ctx context.Context) bool {
	if s.state == StreamCompleted || s.state == StreamTruncated || s.state == StreamFailed {
		return false
	}
	s.state = StreamFetching

	for {
		if ctx.Err() != nil {
			s.fail(&CancelledError{Cause: ctx.Err()})
			return false
		}
		if !s.cursor.Next() {
			if err := s.cursor.Err(); err != nil {
				s.fail(&BackendError{Cause: err})
				return false
			}
			s.finish(StreamCompleted)
			return false
		}

		rec := s.cursor.Record()
		if s.post != nil {
			ok, err := filter.Evaluate(s.post, rec.evalAttrs(s.query.Layer))
			if err != nil {
				s.fail(&BackendError{Cause: err})
				return false
			}
			if !ok {
				continue
			}
		}

		if s.skip > 0 {
			s.skip--
			continue
		}

		if s.yielded == s.budget {
			// The look-ahead record: the result set extends past the budget.
			if s.explicit {
				s.finish(StreamTruncated)
				return false
			}
			s.fail(&CapacityExceededError{Ceiling: s.budget})
			return false
		}

		s.current = rec
		s.yielded++
		return true
	}
}

// Record returns the record produced by the last successful Next.
func (s *ResultStream) Record() *FeatureRecord { return s.current }

// Err returns the error that terminated the stream, if any.
func (s *ResultStream) Err() error { return s.err }

// State returns the stream's lifecycle phase.
func (s *ResultStream) State() StreamState { return s.state }

// Truncated reports whether an explicit limit cut the result set short.
// Meaningful only after Next has returned false.
func (s *ResultStream) Truncated() bool { return s.state == StreamTruncated }

// Matched returns the number of records yielded so far.
func (s *ResultStream) Matched() int64 { return s.yielded }

// Close releases the underlying cursor. Safe to call more than once and
// after the stream has already reached a terminal state.
func (s *ResultStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.state == StreamIdle || s.state == StreamFetching {
		s.state = StreamCompleted
	}
	return s.cursor.Close()
}

func (s *ResultStream) fail(err error) {
	s.err = err
	s.state = StreamFailed
	s.release()
}

func (s *ResultStream) finish(state StreamState) {
	s.state = state
	s.release()
}

func (s *ResultStream) release() {
	if s.closed {
		return
	}
	s.closed = true
	if cerr := s.cursor.Close(); cerr != nil && s.err == nil {
		s.err = &BackendError{Cause: cerr}
		s.state = StreamFailed
	}
	s.current = nil
}
