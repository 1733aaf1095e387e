package auth

import (
	"sync"
	"time"

	"github.com/preethamak/BlockDrive/identity"
)

// sweepInterval bounds how often Admit scans for expired entries.
const sweepInterval = time.Minute

type replayKey struct {
	caller identity.Identity
	digest [32]byte
}

// ReplayCache remembers accepted digests per caller until the credentials
// carrying them fall out of the verifier's window. It is safe for
// concurrent use and must not be copied after first use.
type ReplayCache struct {
	mu        sync.Mutex
	seen      map[replayKey]time.Time
	nextSweep time.Time
}

// NewReplayCache returns an empty cache.
func NewReplayCache() *ReplayCache {
	return &ReplayCache{seen: make(map[replayKey]time.Time)}
}

// Admit records digest for caller and reports whether it was new. The
// entry is kept until expires; now drives expiry of older entries.
func (c *ReplayCache) Admit(caller identity.Identity, digest []byte, expires, now time.Time) bool {
	k := replayKey{caller: caller}
	copy(k.digest[:], digest)

	c.mu.Lock()
	defer c.mu.Unlock()

	if now.After(c.nextSweep) {
		for key, exp := range c.seen {
			if now.After(exp) {
				delete(c.seen, key)
			}
		}
		c.nextSweep = now.Add(sweepInterval)
	}

	if exp, ok := c.seen[k]; ok && !now.After(exp) {
		return false
	}
	c.seen[k] = expires
	return true
}

// Len returns the number of digests currently held.
func (c *ReplayCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
