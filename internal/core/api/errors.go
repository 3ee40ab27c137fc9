package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/netkeeper/internal/types"
)

// statusOf maps service errors to gRPC status codes.
//
// Validation and permission failures carry their message verbatim so
// clients can match it. Anything else came from the store and maps to
// UNAVAILABLE; the caller may retry since nothing was committed.
func statusOf(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch types.KindOf(err) {
	case types.KindPermission:
		return status.Error(codes.PermissionDenied, err.Error())
	case types.KindParameter:
		return status.Error(codes.InvalidArgument, err.Error())
	case types.KindReference:
		return status.Error(codes.FailedPrecondition, err.Error())
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Unavailable, err.Error())
}
