// Package rpc exposes the registry over JSON-RPC 1.0 on HTTP.
//
// Every method except status is authenticated: the client signs the raw
// request body with its identity key (see package auth) and sends the
// credentials in the X-BlockDrive-* headers. The caller identity derived
// from the key is the implicit caller of every operation.
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/preethamak/BlockDrive/auth"
	"github.com/preethamak/BlockDrive/registry"
)

// Credential headers.
const (
	HeaderPubKey    = "X-BlockDrive-PubKey"
	HeaderTimestamp = "X-BlockDrive-Timestamp"
	HeaderNonce     = "X-BlockDrive-Nonce"
	HeaderSignature = "X-BlockDrive-Signature"
)

// Method names.
const (
	MethodAdd         = "add"
	MethodDisplay     = "display"
	MethodAllow       = "allow"
	MethodDisallow    = "disallow"
	MethodShareAccess = "shareAccess"
	MethodStatus      = "status"
)

// Error codes. Negative codes follow JSON-RPC; positive ones mirror HTTP
// status semantics for registry errors.
const (
	CodeBadRequest      = -32600
	CodeUnknownMethod   = -32601
	CodeBadParams       = -32602
	CodeInternal        = -32603
	CodeUnauthenticated = 401
	CodeAccessDenied    = 403
	CodeOwnerMismatch   = 409
	CodeInvalidRef      = 422
)

// maxBodySize bounds request bodies. References are capped well below this.
const maxBodySize = 1 << 20

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      int64             `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// Error is a JSON-RPC error object. It unwraps to the matching sentinel so
// callers can use errors.Is against registry and auth errors.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Unwrap maps the code back to a sentinel.
func (e *Error) Unwrap() error {
	switch e.Code {
	case CodeBadRequest, CodeBadParams:
		return ErrBadRequest
	case CodeUnknownMethod:
		return ErrUnknownMethod
	case CodeUnauthenticated:
		return ErrUnauthenticated
	case CodeAccessDenied:
		return registry.ErrAccessDenied
	case CodeOwnerMismatch:
		return registry.ErrOwnerMismatch
	case CodeInvalidRef:
		return registry.ErrInvalidReference
	default:
		return nil
	}
}

// codeFor classifies an error returned by a handler.
func codeFor(err error) int {
	var rpcErr *Error
	switch {
	case errors.As(err, &rpcErr):
		return rpcErr.Code
	case errors.Is(err, auth.ErrMissingCredentials),
		errors.Is(err, auth.ErrBadSignature),
		errors.Is(err, auth.ErrStale),
		errors.Is(err, auth.ErrReplayed):
		return CodeUnauthenticated
	case errors.Is(err, registry.ErrAccessDenied):
		return CodeAccessDenied
	case errors.Is(err, registry.ErrOwnerMismatch):
		return CodeOwnerMismatch
	case errors.Is(err, registry.ErrInvalidReference):
		return CodeInvalidRef
	case errors.Is(err, registry.ErrInvalidIdentity):
		return CodeBadParams
	default:
		return CodeInternal
	}
}

// StatusResult is returned by the unauthenticated status method.
type StatusResult struct {
	Version string         `json:"version"`
	Network string         `json:"network"`
	Stats   registry.Stats `json:"stats"`
}
