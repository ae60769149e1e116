// Package errors provides an API for errors across the application.
package errors

import (
	stderrors "errors"
	"net"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

type grpcStatus interface {
	GRPCStatus() *status.Status
}

// IsChainConnectionError reports whether err was caused by the connection
// to a chain node rather than by the request itself.
func IsChainConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}

	var se grpcStatus
	if stderrors.As(err, &se) {
		switch se.GRPCStatus().Code() {
		case codes.DeadlineExceeded, codes.ResourceExhausted, codes.Internal, codes.Unavailable:
			return true
		}
	}

	return strings.Contains(err.Error(), "connection refused")
}
