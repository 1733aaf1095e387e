package registry

import (
	"fmt"

	"github.com/preethamak/BlockDrive/identity"
)

// Session binds a Registry to an authenticated caller. It is the surface
// exposed to remote clients: the caller can only write their own list and
// grants, and reads are gated by Display.
type Session struct {
	r      *Registry
	caller identity.Identity
}

// As returns a session acting as caller.
func (r *Registry) As(caller identity.Identity) *Session {
	return &Session{r: r, caller: caller}
}

// Caller returns the session's identity.
func (s *Session) Caller() identity.Identity { return s.caller }

// Add appends ref to owner's list. owner must be the caller.
func (s *Session) Add(owner identity.Identity, ref string) error {
	if err := checkIdentity("caller", s.caller); err != nil {
		return err
	}
	if owner != s.caller {
		return fmt.Errorf("%w: owner %s, caller %s", ErrOwnerMismatch, owner, s.caller)
	}
	return s.r.Add(owner, ref)
}

// Display returns target's list as seen by the caller.
func (s *Session) Display(target identity.Identity) ([]string, error) {
	return s.r.Display(target, s.caller)
}

// Allow grants grantee access to the caller's list.
func (s *Session) Allow(grantee identity.Identity) error {
	return s.r.Allow(s.caller, grantee)
}

// Disallow revokes grantee's access to the caller's list.
func (s *Session) Disallow(grantee identity.Identity) error {
	return s.r.Disallow(s.caller, grantee)
}

// ShareAccess lists the caller's grants, revoked ones included.
func (s *Session) ShareAccess() ([]AccessGrant, error) {
	if err := checkIdentity("caller", s.caller); err != nil {
		return nil, err
	}
	return s.r.ListGrants(s.caller)
}
