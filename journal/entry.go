// Package journal keeps a tamper-evident, append-only log of registry
// mutations.
//
// Every entry commits to its predecessor:
//
//	Hash = SHA256d(CBOR(Seq, Op, Owner, Subject, Reference, Time, Prev))
//
// with Prev of the first entry set to 32 zero bytes. Rewriting or dropping
// any entry changes every later hash, which Verify detects.
package journal

import (
	"bytes"
	"fmt"
	"time"

	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"

	"github.com/preethamak/BlockDrive/codec"
	"github.com/preethamak/BlockDrive/identity"
)

// HashSize is the length of entry hashes.
const HashSize = 32

// Op names a registry mutation.
type Op string

const (
	OpAdd      Op = "add"
	OpAllow    Op = "allow"
	OpDisallow Op = "disallow"
)

// Valid reports whether op is a known mutation.
func (op Op) Valid() bool {
	switch op {
	case OpAdd, OpAllow, OpDisallow:
		return true
	default:
		return false
	}
}

// Record is a mutation to be journaled. Reference is set for OpAdd,
// Subject (the grantee) for OpAllow and OpDisallow.
type Record struct {
	Op        Op
	Owner     identity.Identity
	Subject   identity.Identity
	Reference string
	Time      time.Time
}

// Entry is a journaled record with its position in the chain.
type Entry struct {
	Seq       uint64
	Op        Op
	Owner     identity.Identity
	Subject   identity.Identity
	Reference string
	Time      time.Time
	Prev      []byte
	Hash      []byte
}

// wireEntry is the stored form. Integer keys keep the encoding compact and
// independent of Go field names.
type wireEntry struct {
	Seq       uint64 `cbor:"1,keyasint"`
	Op        string `cbor:"2,keyasint"`
	Owner     []byte `cbor:"3,keyasint"`
	Subject   []byte `cbor:"4,keyasint,omitempty"`
	Reference string `cbor:"5,keyasint,omitempty"`
	Time      int64  `cbor:"6,keyasint"`
	Prev      []byte `cbor:"7,keyasint"`
	Hash      []byte `cbor:"8,keyasint,omitempty"`
}

func (e Entry) wire() wireEntry {
	w := wireEntry{
		Seq:       e.Seq,
		Op:        string(e.Op),
		Owner:     e.Owner.Bytes(),
		Reference: e.Reference,
		Time:      e.Time.UnixNano(),
		Prev:      e.Prev,
		Hash:      e.Hash,
	}
	if !e.Subject.IsZero() {
		w.Subject = e.Subject.Bytes()
	}
	return w
}

func (w wireEntry) entry() (Entry, error) {
	e := Entry{
		Seq:       w.Seq,
		Op:        Op(w.Op),
		Reference: w.Reference,
		Time:      time.Unix(0, w.Time).UTC(),
		Prev:      w.Prev,
		Hash:      w.Hash,
	}
	owner, err := identity.FromBytes(w.Owner)
	if err != nil {
		return Entry{}, fmt.Errorf("journal: decode owner of entry %d: %w", w.Seq, err)
	}
	e.Owner = owner
	if len(w.Subject) > 0 {
		subject, err := identity.FromBytes(w.Subject)
		if err != nil {
			return Entry{}, fmt.Errorf("journal: decode subject of entry %d: %w", w.Seq, err)
		}
		e.Subject = subject
	}
	return e, nil
}

// ComputeHash returns SHA256d of the entry's canonical encoding, excluding Hash.
func ComputeHash(e Entry) ([]byte, error) {
	w := e.wire()
	w.Hash = nil
	data, err := codec.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("journal: encode entry %d: %w", e.Seq, err)
	}
	return bsvhash.Sha256d(data), nil
}

// encodeEntry serializes a complete entry for storage.
func encodeEntry(e Entry) ([]byte, error) {
	return codec.Marshal(e.wire())
}

// decodeEntry parses a stored entry.
func decodeEntry(data []byte) (Entry, error) {
	var w wireEntry
	if err := codec.Unmarshal(data, &w); err != nil {
		return Entry{}, fmt.Errorf("journal: decode entry: %w", err)
	}
	return w.entry()
}

// next builds the entry that follows head (nil for an empty journal).
func next(head *Entry, rec Record) (Entry, error) {
	if !rec.Op.Valid() || rec.Owner.IsZero() {
		return Entry{}, fmt.Errorf("%w: op %q owner %s", ErrInvalidRecord, rec.Op, rec.Owner)
	}
	e := Entry{
		Seq:       1,
		Op:        rec.Op,
		Owner:     rec.Owner,
		Subject:   rec.Subject,
		Reference: rec.Reference,
		Time:      rec.Time.UTC(),
		Prev:      make([]byte, HashSize),
	}
	if head != nil {
		e.Seq = head.Seq + 1
		e.Prev = append([]byte(nil), head.Hash...)
	}
	hash, err := ComputeHash(e)
	if err != nil {
		return Entry{}, err
	}
	e.Hash = hash
	return e, nil
}

// Verify checks that entries form an unbroken chain starting at Seq 1.
func Verify(entries []Entry) error {
	prevHash := make([]byte, HashSize)
	for i, e := range entries {
		if e.Seq != uint64(i)+1 {
			return fmt.Errorf("%w: entry at index %d has seq %d", ErrChainBroken, i, e.Seq)
		}
		if !bytes.Equal(e.Prev, prevHash) {
			return fmt.Errorf("%w: entry %d Prev does not match entry %d hash", ErrChainBroken, e.Seq, e.Seq-1)
		}
		want, err := ComputeHash(e)
		if err != nil {
			return err
		}
		if !bytes.Equal(want, e.Hash) {
			return fmt.Errorf("%w: entry %d", ErrHashMismatch, e.Seq)
		}
		prevHash = e.Hash
	}
	return nil
}
