package grpcapi

import (
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/preethamak/BlockDrive/auth"
	"github.com/preethamak/BlockDrive/registry"
)

var (
	// ErrUnauthenticated indicates the server rejected the call's credentials.
	ErrUnauthenticated = errors.New("grpcapi: unauthenticated")

	// ErrInvalidArgument indicates a malformed request field.
	ErrInvalidArgument = errors.New("grpcapi: invalid argument")
)

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, auth.ErrMissingCredentials),
		errors.Is(err, auth.ErrBadSignature),
		errors.Is(err, auth.ErrStale),
		errors.Is(err, auth.ErrReplayed):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, registry.ErrAccessDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, registry.ErrOwnerMismatch):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, registry.ErrInvalidReference),
		errors.Is(err, registry.ErrInvalidIdentity):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// mapRPC converts a status error back into the sentinel it was built from,
// keeping the server's message.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	var sentinel error
	switch st.Code() {
	case codes.Unauthenticated:
		sentinel = ErrUnauthenticated
	case codes.PermissionDenied:
		sentinel = registry.ErrAccessDenied
	case codes.FailedPrecondition:
		sentinel = registry.ErrOwnerMismatch
	case codes.InvalidArgument:
		sentinel = ErrInvalidArgument
		if strings.HasPrefix(st.Message(), registry.ErrInvalidReference.Error()) {
			sentinel = registry.ErrInvalidReference
		}
	default:
		return err
	}
	return &remoteError{sentinel: sentinel, msg: st.Message()}
}

type remoteError struct {
	sentinel error
	msg      string
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.sentinel }
