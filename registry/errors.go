package registry

import (
	"errors"

	"github.com/preethamak/BlockDrive/identity"
	"github.com/preethamak/BlockDrive/reference"
)

var (
	// ErrInvalidReference indicates an empty, oversized or malformed reference passed to Add.
	ErrInvalidReference = reference.ErrInvalidReference

	// ErrInvalidIdentity indicates a zero identity was supplied as owner, grantee or caller.
	ErrInvalidIdentity = identity.ErrInvalidIdentity

	// ErrAccessDenied indicates the caller holds no active grant on the target's files.
	ErrAccessDenied = errors.New("registry: access denied")

	// ErrOwnerMismatch indicates an authenticated caller tried to record files for another owner.
	ErrOwnerMismatch = errors.New("registry: owner does not match authenticated caller")

	// ErrClosed indicates the backing store has been closed.
	ErrClosed = errors.New("registry: store closed")

	// ErrCorruptRecord indicates a persisted record could not be decoded.
	ErrCorruptRecord = errors.New("registry: corrupt record")
)
