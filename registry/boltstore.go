package registry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/preethamak/BlockDrive/codec"
	"github.com/preethamak/BlockDrive/identity"
)

// Layout: owners/<owner>/{files, grants, grantees}
//
//	files:    seq (8B BE) -> reference
//	grants:   seq (8B BE) -> CBOR grantRecord
//	grantees: grantee (20B) -> seq (8B BE)
var (
	bucketOwners   = []byte("owners")
	bucketFiles    = []byte("files")
	bucketGrants   = []byte("grants")
	bucketGrantees = []byte("grantees")
)

// openTimeout bounds how long OpenBoltStore waits for another process's file lock.
const openTimeout = 2 * time.Second

// BoltStore is a Store persisted in a bbolt database. Every mutation is a
// single update transaction and every read a single view transaction.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

type grantRecord struct {
	Grantee   []byte `cbor:"1,keyasint"`
	Active    bool   `cbor:"2,keyasint"`
	GrantedAt int64  `cbor:"3,keyasint"`
	UpdatedAt int64  `cbor:"4,keyasint"`
}

func (r grantRecord) grant() (AccessGrant, error) {
	grantee, err := identity.FromBytes(r.Grantee)
	if err != nil {
		return AccessGrant{}, fmt.Errorf("%w: grantee: %w", ErrCorruptRecord, err)
	}
	return AccessGrant{
		Grantee:   grantee,
		Active:    r.Active,
		GrantedAt: time.Unix(0, r.GrantedAt).UTC(),
		UpdatedAt: time.Unix(0, r.UpdatedAt).UTC(),
	}, nil
}

// OpenBoltStore opens or creates the database at dbPath. The parent
// directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("registry: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("registry: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketOwners); err != nil {
			return fmt.Errorf("boltstore: create bucket %q: %w", bucketOwners, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("registry: create buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// DB exposes the underlying database so the journal can share it.
func (s *BoltStore) DB() *bbolt.DB { return s.db }

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

// ownerBucket returns owner's bucket, creating it and its children when
// create is set. Without create a missing owner yields nil.
func ownerBucket(tx *bbolt.Tx, owner identity.Identity, create bool) (*bbolt.Bucket, error) {
	root := tx.Bucket(bucketOwners)
	if !create {
		return root.Bucket(owner[:]), nil
	}
	ob, err := root.CreateBucketIfNotExists(owner[:])
	if err != nil {
		return nil, fmt.Errorf("boltstore: create owner bucket: %w", err)
	}
	for _, name := range [][]byte{bucketFiles, bucketGrants, bucketGrantees} {
		if _, err := ob.CreateBucketIfNotExists(name); err != nil {
			return nil, fmt.Errorf("boltstore: create bucket %q: %w", name, err)
		}
	}
	return ob, nil
}

func (s *BoltStore) update(fn func(tx *bbolt.Tx) error) error {
	return mapBoltErr(s.db.Update(fn))
}

func (s *BoltStore) view(fn func(tx *bbolt.Tx) error) error {
	return mapBoltErr(s.db.View(fn))
}

func mapBoltErr(err error) error {
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	return err
}

// txHook runs inside a mutation's update transaction after the change is
// staged. An error rolls the mutation back.
type txHook func(tx *bbolt.Tx) error

// AppendFile appends ref under the owner's next file sequence number.
func (s *BoltStore) AppendFile(owner identity.Identity, ref string) error {
	return s.appendFile(owner, ref, nil)
}

func (s *BoltStore) appendFile(owner identity.Identity, ref string, hook txHook) error {
	return s.update(func(tx *bbolt.Tx) error {
		ob, err := ownerBucket(tx, owner, true)
		if err != nil {
			return err
		}
		fb := ob.Bucket(bucketFiles)
		seq, err := fb.NextSequence()
		if err != nil {
			return fmt.Errorf("boltstore: next file sequence: %w", err)
		}
		if err := fb.Put(seqKey(seq), []byte(ref)); err != nil {
			return fmt.Errorf("boltstore: put file: %w", err)
		}
		if hook != nil {
			return hook(tx)
		}
		return nil
	})
}

func readFiles(ob *bbolt.Bucket) []string {
	files := []string{}
	if ob == nil {
		return files
	}
	_ = ob.Bucket(bucketFiles).ForEach(func(_, v []byte) error {
		files = append(files, string(v))
		return nil
	})
	return files
}

// Files returns owner's references in insertion order.
func (s *BoltStore) Files(owner identity.Identity) ([]string, error) {
	var files []string
	err := s.view(func(tx *bbolt.Tx) error {
		ob, err := ownerBucket(tx, owner, false)
		if err != nil {
			return err
		}
		files = readFiles(ob)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// readGrant returns the grant for grantee in ob along with its sequence key.
func readGrant(ob *bbolt.Bucket, grantee identity.Identity) (AccessGrant, []byte, bool, error) {
	if ob == nil {
		return AccessGrant{}, nil, false, nil
	}
	key := ob.Bucket(bucketGrantees).Get(grantee[:])
	if key == nil {
		return AccessGrant{}, nil, false, nil
	}
	data := ob.Bucket(bucketGrants).Get(key)
	if data == nil {
		return AccessGrant{}, nil, false, fmt.Errorf("%w: dangling grantee index", ErrCorruptRecord)
	}
	var rec grantRecord
	if err := codec.Unmarshal(data, &rec); err != nil {
		return AccessGrant{}, nil, false, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	g, err := rec.grant()
	if err != nil {
		return AccessGrant{}, nil, false, err
	}
	return g, append([]byte(nil), key...), true, nil
}

func putGrant(ob *bbolt.Bucket, key []byte, g AccessGrant) error {
	data, err := codec.Marshal(grantRecord{
		Grantee:   g.Grantee.Bytes(),
		Active:    g.Active,
		GrantedAt: g.GrantedAt.UnixNano(),
		UpdatedAt: g.UpdatedAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("boltstore: encode grant: %w", err)
	}
	if err := ob.Bucket(bucketGrants).Put(key, data); err != nil {
		return fmt.Errorf("boltstore: put grant: %w", err)
	}
	return nil
}

// SetGrant creates, reactivates or deactivates the (owner, grantee) grant.
func (s *BoltStore) SetGrant(owner, grantee identity.Identity, active bool, at time.Time) (bool, error) {
	return s.setGrant(owner, grantee, active, at, nil)
}

// setGrant runs hook only when the grant actually changes.
func (s *BoltStore) setGrant(owner, grantee identity.Identity, active bool, at time.Time, hook txHook) (bool, error) {
	changed := false
	err := s.update(func(tx *bbolt.Tx) error {
		ob, err := ownerBucket(tx, owner, active)
		if err != nil || ob == nil {
			return err
		}
		g, key, ok, err := readGrant(ob, grantee)
		if err != nil {
			return err
		}

		if !ok {
			if !active {
				return nil
			}
			seq, err := ob.Bucket(bucketGrants).NextSequence()
			if err != nil {
				return fmt.Errorf("boltstore: next grant sequence: %w", err)
			}
			key = seqKey(seq)
			if err := ob.Bucket(bucketGrantees).Put(grantee[:], key); err != nil {
				return fmt.Errorf("boltstore: put grantee index: %w", err)
			}
			g = AccessGrant{Grantee: grantee, GrantedAt: at}
		} else if g.Active == active {
			return nil
		}

		g.Active = active
		g.UpdatedAt = at
		if err := putGrant(ob, key, g); err != nil {
			return err
		}
		if hook != nil {
			if err := hook(tx); err != nil {
				return err
			}
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// Grant returns the (owner, grantee) grant.
func (s *BoltStore) Grant(owner, grantee identity.Identity) (AccessGrant, bool, error) {
	var (
		g  AccessGrant
		ok bool
	)
	err := s.view(func(tx *bbolt.Tx) error {
		ob, err := ownerBucket(tx, owner, false)
		if err != nil {
			return err
		}
		g, _, ok, err = readGrant(ob, grantee)
		return err
	})
	if err != nil {
		return AccessGrant{}, false, err
	}
	return g, ok, nil
}

// Grants returns owner's grants in creation order.
func (s *BoltStore) Grants(owner identity.Identity) ([]AccessGrant, error) {
	grants := []AccessGrant{}
	err := s.view(func(tx *bbolt.Tx) error {
		ob, err := ownerBucket(tx, owner, false)
		if err != nil || ob == nil {
			return err
		}
		return ob.Bucket(bucketGrants).ForEach(func(_, v []byte) error {
			var rec grantRecord
			if err := codec.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("%w: %w", ErrCorruptRecord, err)
			}
			g, err := rec.grant()
			if err != nil {
				return err
			}
			grants = append(grants, g)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return grants, nil
}

// Lookup reads owner's files and caller's grant in one view transaction.
func (s *BoltStore) Lookup(owner, caller identity.Identity) (Snapshot, error) {
	var snap Snapshot
	err := s.view(func(tx *bbolt.Tx) error {
		ob, err := ownerBucket(tx, owner, false)
		if err != nil {
			return err
		}
		snap.Files = readFiles(ob)
		snap.Grant, _, snap.HasGrant, err = readGrant(ob, caller)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Stats counts the store's contents.
func (s *BoltStore) Stats() (Stats, error) {
	var st Stats
	err := s.view(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketOwners)
		return root.ForEach(func(k, _ []byte) error {
			ob := root.Bucket(k)
			if ob == nil {
				return nil
			}
			files := 0
			_ = ob.Bucket(bucketFiles).ForEach(func(_, _ []byte) error {
				files++
				return nil
			})
			if files > 0 {
				st.Owners++
			}
			st.Files += files
			return ob.Bucket(bucketGrants).ForEach(func(_, v []byte) error {
				var rec grantRecord
				if err := codec.Unmarshal(v, &rec); err != nil {
					return fmt.Errorf("%w: %w", ErrCorruptRecord, err)
				}
				st.Grants++
				if rec.Active {
					st.ActiveGrants++
				}
				return nil
			})
		})
	})
	return st, err
}
