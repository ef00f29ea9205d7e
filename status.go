package featureql

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// StatusFromError maps an engine error to a gRPC status so transport layers
// serving the engine over gRPC report uniform codes. Client-fault errors
// become InvalidArgument, capability gaps Unimplemented, ceiling crossings
// ResourceExhausted, cancellations Canceled or DeadlineExceeded, backend
// failures Internal.
func StatusFromError(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}

	var parse *ParseError
	var validation *ValidationError
	var unsupported *UnsupportedOperationError
	var capacity *CapacityExceededError
	var cancelled *CancelledError
	var backend *BackendError

	switch {
	case errors.As(err, &parse):
		return status.New(codes.InvalidArgument, parse.Error())
	case errors.As(err, &validation):
		return status.New(codes.InvalidArgument, validation.Error())
	case errors.As(err, &unsupported):
		return status.New(codes.Unimplemented, unsupported.Error())
	case errors.As(err, &capacity):
		return status.New(codes.ResourceExhausted, capacity.Error())
	case errors.As(err, &cancelled):
		if errors.Is(cancelled.Cause, context.DeadlineExceeded) {
			return status.New(codes.DeadlineExceeded, cancelled.Error())
		}
		return status.New(codes.Canceled, cancelled.Error())
	case errors.As(err, &backend):
		return status.New(codes.Internal, backend.Error())
	default:
		return status.New(codes.Unknown, err.Error())
	}
}
