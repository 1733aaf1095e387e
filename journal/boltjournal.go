package journal

import (
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"
)

var bucketJournal = []byte("journal")

// BoltJournal persists the chain in a bbolt database, usually the one the
// registry's BoltStore already holds open.
type BoltJournal struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Journal = (*BoltJournal)(nil)

// NewBoltJournal creates the journal bucket in db if needed.
func NewBoltJournal(db *bbolt.DB) (*BoltJournal, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: db", ErrNilParam)
	}
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketJournal)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("journal: create bucket: %w", err)
	}
	return &BoltJournal{db: db}, nil
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

// DB returns the database the journal lives in.
func (j *BoltJournal) DB() *bbolt.DB { return j.db }

// Append chains rec after the current head in a single update transaction.
func (j *BoltJournal) Append(rec Record) (Entry, error) {
	var out Entry
	err := j.db.Update(func(tx *bbolt.Tx) error {
		e, err := j.AppendTx(tx, rec)
		out = e
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	return out, nil
}

// AppendTx chains rec after the current head inside tx, so the entry
// commits or rolls back together with whatever else tx writes. tx must be
// a writable transaction on DB().
func (j *BoltJournal) AppendTx(tx *bbolt.Tx, rec Record) (Entry, error) {
	if tx.DB() != j.db {
		return Entry{}, ErrForeignTx
	}
	b := tx.Bucket(bucketJournal)

	var head *Entry
	if _, v := b.Cursor().Last(); v != nil {
		h, err := decodeEntry(v)
		if err != nil {
			return Entry{}, err
		}
		head = &h
	}

	e, err := next(head, rec)
	if err != nil {
		return Entry{}, err
	}
	data, err := encodeEntry(e)
	if err != nil {
		return Entry{}, fmt.Errorf("journal: encode entry: %w", err)
	}
	if err := b.Put(seqKey(e.Seq), data); err != nil {
		return Entry{}, fmt.Errorf("journal: put entry %d: %w", e.Seq, err)
	}
	return e, nil
}

// Entries returns all entries with Seq >= from.
func (j *BoltJournal) Entries(from uint64) ([]Entry, error) {
	var entries []Entry
	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketJournal).Cursor()
		for k, v := c.Seek(seqKey(from)); k != nil; k, v = c.Next() {
			e, err := decodeEntry(v)
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("journal: list entries: %w", err)
	}
	return entries, nil
}

// Head returns the latest entry.
func (j *BoltJournal) Head() (Entry, bool, error) {
	var (
		head Entry
		ok   bool
	)
	err := j.db.View(func(tx *bbolt.Tx) error {
		_, v := tx.Bucket(bucketJournal).Cursor().Last()
		if v == nil {
			return nil
		}
		e, err := decodeEntry(v)
		if err != nil {
			return err
		}
		head, ok = e, true
		return nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	return head, ok, nil
}

// Raw returns the stored bytes of entry seq, for diagnostics.
func (j *BoltJournal) Raw(seq uint64) ([]byte, error) {
	var raw []byte
	err := j.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketJournal).Get(seqKey(seq))
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	return raw, err
}
