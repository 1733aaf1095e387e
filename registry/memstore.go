package registry

import (
	"sync"
	"time"

	"github.com/preethamak/BlockDrive/identity"
)

// memEntry is one owner's OwnershipRecord and AccessControlEntry.
type memEntry struct {
	mu     sync.RWMutex
	files  []string
	grants []AccessGrant
	index  map[identity.Identity]int // grantee -> position in grants
}

// MemStore is an in-memory Store. Each owner's entry has its own lock, so
// operations on different owners never contend; the entries map lock is
// held only to find or create an entry.
type MemStore struct {
	mu      sync.RWMutex
	entries map[identity.Identity]*memEntry
	closed  bool
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[identity.Identity]*memEntry)}
}

// entry returns owner's entry. With create false a missing entry yields nil.
func (s *MemStore) entry(owner identity.Identity, create bool) (*memEntry, error) {
	s.mu.RLock()
	e, ok := s.entries[owner]
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if ok || !create {
		return e, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if e, ok = s.entries[owner]; !ok {
		e = &memEntry{index: make(map[identity.Identity]int)}
		s.entries[owner] = e
	}
	return e, nil
}

// AppendFile appends ref to owner's list.
func (s *MemStore) AppendFile(owner identity.Identity, ref string) error {
	e, err := s.entry(owner, true)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files = append(e.files, ref)
	return nil
}

// Files returns a copy of owner's references.
func (s *MemStore) Files(owner identity.Identity) ([]string, error) {
	e, err := s.entry(owner, false)
	if err != nil || e == nil {
		return []string{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string{}, e.files...), nil
}

// SetGrant creates, reactivates or deactivates the (owner, grantee) grant.
func (s *MemStore) SetGrant(owner, grantee identity.Identity, active bool, at time.Time) (bool, error) {
	// Revoking on an owner that never granted anything must not create an entry.
	e, err := s.entry(owner, active)
	if err != nil || e == nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	i, ok := e.index[grantee]
	if !ok {
		if !active {
			return false, nil
		}
		e.index[grantee] = len(e.grants)
		e.grants = append(e.grants, AccessGrant{
			Grantee:   grantee,
			Active:    true,
			GrantedAt: at,
			UpdatedAt: at,
		})
		return true, nil
	}

	g := &e.grants[i]
	if g.Active == active {
		return false, nil
	}
	g.Active = active
	g.UpdatedAt = at
	return true, nil
}

// Grant returns the (owner, grantee) grant.
func (s *MemStore) Grant(owner, grantee identity.Identity) (AccessGrant, bool, error) {
	e, err := s.entry(owner, false)
	if err != nil || e == nil {
		return AccessGrant{}, false, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	i, ok := e.index[grantee]
	if !ok {
		return AccessGrant{}, false, nil
	}
	return e.grants[i], true, nil
}

// Grants returns a copy of owner's grants in creation order.
func (s *MemStore) Grants(owner identity.Identity) ([]AccessGrant, error) {
	e, err := s.entry(owner, false)
	if err != nil || e == nil {
		return []AccessGrant{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]AccessGrant{}, e.grants...), nil
}

// Lookup reads owner's files and caller's grant under one read lock.
func (s *MemStore) Lookup(owner, caller identity.Identity) (Snapshot, error) {
	snap := Snapshot{Files: []string{}}
	e, err := s.entry(owner, false)
	if err != nil || e == nil {
		return snap, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	snap.Files = append(snap.Files, e.files...)
	if i, ok := e.index[caller]; ok {
		snap.Grant = e.grants[i]
		snap.HasGrant = true
	}
	return snap, nil
}

// Stats counts the store's contents.
func (s *MemStore) Stats() (Stats, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return Stats{}, ErrClosed
	}
	entries := make([]*memEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var st Stats
	for _, e := range entries {
		e.mu.RLock()
		if len(e.files) > 0 {
			st.Owners++
		}
		st.Files += len(e.files)
		st.Grants += len(e.grants)
		for _, g := range e.grants {
			if g.Active {
				st.ActiveGrants++
			}
		}
		e.mu.RUnlock()
	}
	return st, nil
}

// Close marks the store closed; later calls return ErrClosed.
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
