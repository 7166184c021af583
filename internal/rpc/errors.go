package rpc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/matheus3301/wpparchive/internal/store"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// ErrDaemonUnavailable is returned when the daemon socket cannot serve a call.
var ErrDaemonUnavailable = errors.New("daemon unavailable")

// toStatus maps store errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, store.ErrInvalidFilter):
		return grpcstatus.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrNotInitialized):
		return grpcstatus.Error(codes.Unavailable, err.Error())
	default:
		return grpcstatus.Error(codes.Internal, err.Error())
	}
}

// fromStatus is the inverse of toStatus, so callers of Client can match the
// same sentinel errors as callers of *store.Store. Only Internal comes from
// the store; other codes are raised by the transport and are reported as such.
func fromStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := grpcstatus.FromError(err)
	if !ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg := st.Message()
	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", store.ErrInvalidFilter, strings.TrimPrefix(msg, store.ErrInvalidFilter.Error()+": "))
	case codes.Unavailable:
		if strings.Contains(msg, store.ErrNotInitialized.Error()) {
			return store.ErrNotInitialized
		}
		return fmt.Errorf("%w: %s", ErrDaemonUnavailable, msg)
	case codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("%w: %s", ErrDaemonUnavailable, msg)
	case codes.Internal:
		return &store.StorageError{Op: op, Err: errors.New(msg)}
	default:
		return fmt.Errorf("%s: %s: %s", op, st.Code(), msg)
	}
}
