// Package registry maps identities to the file references they have
// published and controls who may read each list.
//
// A Registry combines an ownership store (append-only reference lists) with
// an access-control list (owner → grantee grants that are never deleted,
// only deactivated). Display is the only read that crosses identities and
// it is gated: the owner always sees their own list, anyone else needs an
// active grant.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"

	"github.com/preethamak/BlockDrive/events"
	"github.com/preethamak/BlockDrive/identity"
	"github.com/preethamak/BlockDrive/journal"
	"github.com/preethamak/BlockDrive/reference"
)

const publishTimeout = 5 * time.Second

// TxJournal is a journal that can append inside a bbolt write transaction
// on DB. *journal.BoltJournal implements it.
type TxJournal interface {
	journal.Journal
	DB() *bbolt.DB
	AppendTx(tx *bbolt.Tx, rec journal.Record) (journal.Entry, error)
}

// Registry is safe for concurrent use.
//
// A mutation and its journal record commit together: over a BoltStore
// whose journal shares its database both are written in one transaction,
// otherwise the record is journaled first and applied second, so a
// failed append leaves the store untouched.
type Registry struct {
	store     Store
	journal   journal.Journal
	bolt      *BoltStore
	txj       TxJournal
	publisher events.Publisher
	log       zerolog.Logger
	maxRefLen int
	now       func() time.Time
	locks     ownerLocks
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.log = l.With().Str("component", "registry").Logger() }
}

// WithJournal appends every state-changing mutation to j.
func WithJournal(j journal.Journal) Option {
	return func(r *Registry) { r.journal = j }
}

// WithPublisher emits an event for every state-changing mutation.
func WithPublisher(p events.Publisher) Option {
	return func(r *Registry) {
		if p != nil {
			r.publisher = p
		}
	}
}

// WithMaxReferenceLen overrides reference.DefaultMaxLen.
func WithMaxReferenceLen(n int) Option {
	return func(r *Registry) { r.maxRefLen = n }
}

// WithClock sets the time source for grant timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a Registry over store.
func New(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:     store,
		publisher: events.Nop{},
		log:       zerolog.Nop(),
		maxRefLen: reference.DefaultMaxLen,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if bs, ok := store.(*BoltStore); ok {
		if tj, ok := r.journal.(TxJournal); ok && tj.DB() == bs.DB() {
			r.bolt, r.txj = bs, tj
		}
	}
	return r
}

// Store returns the backing store.
func (r *Registry) Store() Store { return r.store }

// Close closes the backing store.
func (r *Registry) Close() error { return r.store.Close() }

func checkIdentity(role string, id identity.Identity) error {
	if id.IsZero() {
		return fmt.Errorf("%w: zero %s", ErrInvalidIdentity, role)
	}
	return nil
}

// Add appends ref to owner's file list. Duplicates are kept.
//
// Add trusts its owner argument; callers acting on behalf of an
// authenticated identity go through a Session.
func (r *Registry) Add(owner identity.Identity, ref string) error {
	if err := checkIdentity("owner", owner); err != nil {
		return err
	}
	if err := reference.Validate(ref, r.maxRefLen); err != nil {
		return err
	}

	at := r.now().UTC()
	rec := journal.Record{Op: journal.OpAdd, Owner: owner, Reference: ref, Time: at}
	unlock := r.locks.lock(owner)
	seq, err := r.commitAdd(rec)
	unlock()
	if err != nil {
		return err
	}

	r.log.Debug().Str("owner", owner.String()).Int("len", len(ref)).Uint64("seq", seq).Msg("file added")
	r.emit(journal.OpAdd, owner, identity.Identity{}, ref, seq, at)
	return nil
}

// commitAdd stores and journals rec. The caller holds the owner's lock.
func (r *Registry) commitAdd(rec journal.Record) (uint64, error) {
	if r.txj != nil {
		var (
			seq  uint64
			jerr error
		)
		err := r.bolt.appendFile(rec.Owner, rec.Reference, func(tx *bbolt.Tx) error {
			seq, jerr = r.recordTx(tx, rec)
			return jerr
		})
		if jerr != nil {
			return 0, jerr
		}
		if err != nil {
			return 0, fmt.Errorf("registry: add: %w", err)
		}
		return seq, nil
	}

	seq, err := r.record(rec)
	if err != nil {
		return 0, err
	}
	if err := r.store.AppendFile(rec.Owner, rec.Reference); err != nil {
		r.journalAhead(rec, seq, err)
		return 0, fmt.Errorf("registry: add: %w", err)
	}
	return seq, nil
}

// List returns owner's references in insertion order. An owner who never
// added anything has an empty list.
func (r *Registry) List(owner identity.Identity) ([]string, error) {
	files, err := r.store.Files(owner)
	if err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}
	return files, nil
}

// Allow grants grantee read access to owner's list. Allowing an active
// grant again changes nothing.
func (r *Registry) Allow(owner, grantee identity.Identity) error {
	return r.setGrant(journal.OpAllow, owner, grantee, true)
}

// Disallow revokes grantee's access. The grant is kept as inactive; a
// grantee that was never allowed is ignored.
func (r *Registry) Disallow(owner, grantee identity.Identity) error {
	return r.setGrant(journal.OpDisallow, owner, grantee, false)
}

func (r *Registry) setGrant(op journal.Op, owner, grantee identity.Identity, active bool) error {
	if err := checkIdentity("owner", owner); err != nil {
		return err
	}
	if err := checkIdentity("grantee", grantee); err != nil {
		return err
	}

	at := r.now().UTC()
	rec := journal.Record{Op: op, Owner: owner, Subject: grantee, Time: at}
	unlock := r.locks.lock(owner)
	changed, seq, err := r.commitGrant(rec, active)
	unlock()
	if err != nil {
		return err
	}
	if !changed {
		r.log.Debug().Str("op", string(op)).Str("owner", owner.String()).
			Str("grantee", grantee.String()).Msg("grant unchanged")
		return nil
	}

	r.log.Debug().Str("op", string(op)).Str("owner", owner.String()).
		Str("grantee", grantee.String()).Uint64("seq", seq).Msg("grant updated")
	r.emit(op, owner, grantee, "", seq, at)
	return nil
}

// commitGrant stores and journals rec when it changes the grant. The caller
// holds the owner's lock, so the state read before journaling is still
// current when the store is written.
func (r *Registry) commitGrant(rec journal.Record, active bool) (bool, uint64, error) {
	if r.txj != nil {
		var (
			seq  uint64
			jerr error
		)
		changed, err := r.bolt.setGrant(rec.Owner, rec.Subject, active, rec.Time, func(tx *bbolt.Tx) error {
			seq, jerr = r.recordTx(tx, rec)
			return jerr
		})
		if jerr != nil {
			return false, 0, jerr
		}
		if err != nil {
			return false, 0, fmt.Errorf("registry: %s: %w", rec.Op, err)
		}
		return changed, seq, nil
	}

	g, ok, err := r.store.Grant(rec.Owner, rec.Subject)
	if err != nil {
		return false, 0, fmt.Errorf("registry: %s: %w", rec.Op, err)
	}
	if (ok && g.Active) == active {
		return false, 0, nil
	}
	seq, err := r.record(rec)
	if err != nil {
		return false, 0, err
	}
	if _, err := r.store.SetGrant(rec.Owner, rec.Subject, active, rec.Time); err != nil {
		r.journalAhead(rec, seq, err)
		return false, 0, fmt.Errorf("registry: %s: %w", rec.Op, err)
	}
	return true, seq, nil
}

// record journals rec. The caller holds the owner's lock.
func (r *Registry) record(rec journal.Record) (uint64, error) {
	if r.journal == nil {
		return 0, nil
	}
	e, err := r.journal.Append(rec)
	if err != nil {
		return 0, r.journalFailed(rec, err)
	}
	return e.Seq, nil
}

// recordTx journals rec inside tx. The caller holds the owner's lock.
func (r *Registry) recordTx(tx *bbolt.Tx, rec journal.Record) (uint64, error) {
	e, err := r.txj.AppendTx(tx, rec)
	if err != nil {
		return 0, r.journalFailed(rec, err)
	}
	return e.Seq, nil
}

func (r *Registry) journalFailed(rec journal.Record, err error) error {
	r.log.Error().Err(err).Str("op", string(rec.Op)).Str("owner", rec.Owner.String()).
		Msg("journal append failed")
	return fmt.Errorf("registry: journal %s: %w", rec.Op, err)
}

// journalAhead logs a record that was journaled but could not be applied.
func (r *Registry) journalAhead(rec journal.Record, seq uint64, err error) {
	r.log.Error().Err(err).Str("op", string(rec.Op)).Str("owner", rec.Owner.String()).
		Uint64("seq", seq).Msg("journaled mutation not applied")
}

func (r *Registry) emit(op journal.Op, owner, subject identity.Identity, ref string, seq uint64, at time.Time) {
	e := events.New(op, owner, subject, ref, at)
	e.Seq = seq

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.publisher.Publish(ctx, e); err != nil {
		r.log.Warn().Err(err).Str("event", e.ID.String()).Str("op", string(op)).Msg("publish failed")
	}
}

// IsAuthorized reports whether caller may read owner's list: always for the
// owner, otherwise only through an active grant.
func (r *Registry) IsAuthorized(owner, caller identity.Identity) (bool, error) {
	if owner == caller {
		return true, nil
	}
	g, ok, err := r.store.Grant(owner, caller)
	if err != nil {
		return false, fmt.Errorf("registry: authorize: %w", err)
	}
	return ok && g.Active, nil
}

// ListGrants returns every grant owner ever issued, including revoked
// ones, in the order they were first created.
func (r *Registry) ListGrants(owner identity.Identity) ([]AccessGrant, error) {
	grants, err := r.store.Grants(owner)
	if err != nil {
		return nil, fmt.Errorf("registry: list grants: %w", err)
	}
	return grants, nil
}

// Display returns target's list if caller may see it and ErrAccessDenied
// otherwise. The authorization check and the read come from one snapshot.
func (r *Registry) Display(target, caller identity.Identity) ([]string, error) {
	if err := checkIdentity("caller", caller); err != nil {
		return nil, err
	}
	snap, err := r.store.Lookup(target, caller)
	if err != nil {
		return nil, fmt.Errorf("registry: display: %w", err)
	}
	if target != caller && !(snap.HasGrant && snap.Grant.Active) {
		r.log.Info().Str("target", target.String()).Str("caller", caller.String()).Msg("display denied")
		return nil, fmt.Errorf("%w: %s may not read %s", ErrAccessDenied, caller, target)
	}
	return snap.Files, nil
}

// Stats reports store totals.
func (r *Registry) Stats() (Stats, error) {
	st, err := r.store.Stats()
	if err != nil {
		return Stats{}, fmt.Errorf("registry: stats: %w", err)
	}
	return st, nil
}

var _ journal.Applier = (*Registry)(nil)
