package registry

import (
	"time"

	"github.com/preethamak/BlockDrive/identity"
)

// OwnershipStore is the append-only per-owner list of references.
type OwnershipStore interface {
	// AppendFile appends ref to owner's list, creating the list if absent.
	AppendFile(owner identity.Identity, ref string) error

	// Files returns owner's references in insertion order; empty, not an
	// error, for an owner with no files.
	Files(owner identity.Identity) ([]string, error)
}

// ACLStore holds per-owner access grants.
type ACLStore interface {
	// SetGrant sets the grant for (owner, grantee). With active true it
	// creates or reactivates the grant; with active false it deactivates an
	// existing grant and is a no-op otherwise. changed reports whether
	// anything was written.
	SetGrant(owner, grantee identity.Identity, active bool, at time.Time) (changed bool, err error)

	// Grant returns the grant for (owner, grantee), if one was ever created.
	Grant(owner, grantee identity.Identity) (AccessGrant, bool, error)

	// Grants returns all grants of owner, active and inactive, in creation order.
	Grants(owner identity.Identity) ([]AccessGrant, error)
}

// Store is a complete registry backend.
type Store interface {
	OwnershipStore
	ACLStore

	// Lookup reads owner's files and caller's grant on them in one
	// consistent snapshot.
	Lookup(owner, caller identity.Identity) (Snapshot, error)

	// Stats counts owners, files and grants.
	Stats() (Stats, error)

	// Close releases the backend.
	Close() error
}
