package rpc

import "errors"

var (
	// ErrConnectionFailed indicates the client could not reach the daemon.
	ErrConnectionFailed = errors.New("rpc: connection failed")

	// ErrInvalidResponse indicates the daemon returned a malformed or unexpected response.
	ErrInvalidResponse = errors.New("rpc: invalid response")

	// ErrUnauthenticated indicates the daemon rejected the request's credentials.
	ErrUnauthenticated = errors.New("rpc: unauthenticated")

	// ErrBadRequest indicates the request envelope or its params were rejected.
	ErrBadRequest = errors.New("rpc: bad request")

	// ErrUnknownMethod indicates the daemon does not serve the method.
	ErrUnknownMethod = errors.New("rpc: unknown method")

	// ErrNoKey indicates an authenticated call was attempted without a signing key.
	ErrNoKey = errors.New("rpc: no signing key configured")
)
