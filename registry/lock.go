package registry

import (
	"sync"

	"github.com/preethamak/BlockDrive/identity"
)

const lockStripes = 64

// ownerLocks serializes mutations per owner so that the store and the
// journal observe each owner's operations in the same order. Identities
// are hash outputs, so the first byte spreads owners evenly.
type ownerLocks [lockStripes]sync.Mutex

func (l *ownerLocks) lock(owner identity.Identity) func() {
	m := &l[int(owner[0])%lockStripes]
	m.Lock()
	return m.Unlock
}
