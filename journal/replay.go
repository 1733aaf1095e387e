package journal

import (
	"fmt"

	"github.com/preethamak/BlockDrive/identity"
)

// Applier receives replayed mutations. *registry.Registry satisfies it.
type Applier interface {
	Add(owner identity.Identity, ref string) error
	Allow(owner, grantee identity.Identity) error
	Disallow(owner, grantee identity.Identity) error
}

// Replay verifies entries and applies them in order to dst. dst should not
// itself journal, or every entry is written twice.
func Replay(entries []Entry, dst Applier) error {
	if dst == nil {
		return fmt.Errorf("%w: applier", ErrNilParam)
	}
	if err := Verify(entries); err != nil {
		return err
	}
	for _, e := range entries {
		var err error
		switch e.Op {
		case OpAdd:
			err = dst.Add(e.Owner, e.Reference)
		case OpAllow:
			err = dst.Allow(e.Owner, e.Subject)
		case OpDisallow:
			err = dst.Disallow(e.Owner, e.Subject)
		default:
			err = fmt.Errorf("%w: unknown op %q", ErrInvalidRecord, e.Op)
		}
		if err != nil {
			return fmt.Errorf("journal: replay entry %d: %w", e.Seq, err)
		}
	}
	return nil
}
