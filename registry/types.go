package registry

import (
	"time"

	"github.com/preethamak/BlockDrive/identity"
)

// FileEntry is a single published reference.
type FileEntry struct {
	Owner     identity.Identity
	Reference string
}

// AccessGrant records whether Grantee may read an owner's file list.
// Revoked grants are kept with Active false.
type AccessGrant struct {
	Grantee   identity.Identity `json:"grantee"`
	Active    bool              `json:"active"`
	GrantedAt time.Time         `json:"granted_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Snapshot is a consistent view of one owner's entry as seen by one caller.
type Snapshot struct {
	Files    []string
	Grant    AccessGrant
	HasGrant bool
}

// Stats summarizes the contents of a store.
type Stats struct {
	Owners       int `json:"owners"`
	Files        int `json:"files"`
	Grants       int `json:"grants"`
	ActiveGrants int `json:"active_grants"`
}
