package journal

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/preethamak/BlockDrive/identity"
)

func testID(b byte) identity.Identity {
	var id identity.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func tempBoltJournal(t *testing.T) *BoltJournal {
	t.Helper()
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "journal.db"), 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	j, err := NewBoltJournal(db)
	require.NoError(t, err)
	return j
}

func forEachJournal(t *testing.T, fn func(t *testing.T, j Journal)) {
	t.Run("mem", func(t *testing.T) { fn(t, NewMemJournal()) })
	t.Run("bolt", func(t *testing.T) { fn(t, tempBoltJournal(t)) })
}

func appendSample(t *testing.T, j Journal) []Entry {
	t.Helper()
	recs := []Record{
		{Op: OpAdd, Owner: testID(1), Reference: "ref1", Time: t0},
		{Op: OpAllow, Owner: testID(1), Subject: testID(2), Time: t0.Add(time.Second)},
		{Op: OpAdd, Owner: testID(1), Reference: "ref2", Time: t0.Add(2 * time.Second)},
		{Op: OpDisallow, Owner: testID(1), Subject: testID(2), Time: t0.Add(3 * time.Second)},
	}
	var out []Entry
	for _, r := range recs {
		e, err := j.Append(r)
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

// ---------------------------------------------------------------------------
// Append / Entries / Head
// ---------------------------------------------------------------------------

func TestJournal_AppendChains(t *testing.T) {
	forEachJournal(t, func(t *testing.T, j Journal) {
		entries := appendSample(t, j)

		assert.Equal(t, uint64(1), entries[0].Seq)
		assert.Equal(t, make([]byte, HashSize), entries[0].Prev)
		for i := 1; i < len(entries); i++ {
			assert.Equal(t, entries[i-1].Hash, entries[i].Prev)
			assert.Equal(t, uint64(i+1), entries[i].Seq)
		}
		require.NoError(t, Verify(entries))
	})
}

func TestJournal_EntriesRoundTrip(t *testing.T) {
	forEachJournal(t, func(t *testing.T, j Journal) {
		want := appendSample(t, j)

		got, err := j.Entries(1)
		require.NoError(t, err)
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Seq, got[i].Seq)
			assert.Equal(t, want[i].Op, got[i].Op)
			assert.Equal(t, want[i].Owner, got[i].Owner)
			assert.Equal(t, want[i].Subject, got[i].Subject)
			assert.Equal(t, want[i].Reference, got[i].Reference)
			assert.True(t, want[i].Time.Equal(got[i].Time))
			assert.Equal(t, want[i].Hash, got[i].Hash)
		}
		require.NoError(t, Verify(got))

		tail, err := j.Entries(3)
		require.NoError(t, err)
		require.Len(t, tail, 2)
		assert.Equal(t, uint64(3), tail[0].Seq)

		none, err := j.Entries(99)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestJournal_Head(t *testing.T) {
	forEachJournal(t, func(t *testing.T, j Journal) {
		_, ok, err := j.Head()
		require.NoError(t, err)
		assert.False(t, ok)

		entries := appendSample(t, j)
		head, ok, err := j.Head()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, entries[len(entries)-1].Hash, head.Hash)
	})
}

func TestJournal_RejectsInvalidRecord(t *testing.T) {
	forEachJournal(t, func(t *testing.T, j Journal) {
		_, err := j.Append(Record{Op: "drop", Owner: testID(1), Time: t0})
		assert.ErrorIs(t, err, ErrInvalidRecord)

		_, err = j.Append(Record{Op: OpAdd, Reference: "x", Time: t0})
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})
}

func TestBoltJournal_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j.db")

	db, err := bbolt.Open(path, 0600, nil)
	require.NoError(t, err)
	j, err := NewBoltJournal(db)
	require.NoError(t, err)
	want := appendSample(t, j)
	require.NoError(t, db.Close())

	db, err = bbolt.Open(path, 0600, nil)
	require.NoError(t, err)
	defer db.Close()
	j, err = NewBoltJournal(db)
	require.NoError(t, err)

	e, err := j.Append(Record{Op: OpAdd, Owner: testID(3), Reference: "after", Time: t0})
	require.NoError(t, err)
	assert.Equal(t, uint64(len(want)+1), e.Seq)
	assert.Equal(t, want[len(want)-1].Hash, e.Prev)

	all, err := j.Entries(1)
	require.NoError(t, err)
	require.NoError(t, Verify(all))

	raw, err := j.Raw(1)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}

func TestBoltJournal_AppendTxRollsBack(t *testing.T) {
	j := tempBoltJournal(t)
	appendSample(t, j)

	errAbort := errors.New("abort")
	err := j.DB().Update(func(tx *bbolt.Tx) error {
		e, err := j.AppendTx(tx, Record{Op: OpAdd, Owner: testID(1), Reference: "lost", Time: t0})
		require.NoError(t, err)
		assert.Equal(t, uint64(5), e.Seq)
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	head, ok, err := j.Head()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(4), head.Seq)

	err = j.DB().Update(func(tx *bbolt.Tx) error {
		_, err := j.AppendTx(tx, Record{Op: OpAdd, Owner: testID(1), Reference: "kept", Time: t0})
		return err
	})
	require.NoError(t, err)
	all, err := j.Entries(1)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "kept", all[4].Reference)
	assert.NoError(t, Verify(all))
}

func TestBoltJournal_AppendTxForeignDB(t *testing.T) {
	j, other := tempBoltJournal(t), tempBoltJournal(t)
	err := other.DB().Update(func(tx *bbolt.Tx) error {
		_, err := j.AppendTx(tx, Record{Op: OpAdd, Owner: testID(1), Reference: "x", Time: t0})
		return err
	})
	assert.ErrorIs(t, err, ErrForeignTx)
}

func TestNewBoltJournal_NilDB(t *testing.T) {
	_, err := NewBoltJournal(nil)
	assert.ErrorIs(t, err, ErrNilParam)
}

// ---------------------------------------------------------------------------
// Verify
// ---------------------------------------------------------------------------

func TestVerify_DetectsTampering(t *testing.T) {
	base := appendSample(t, NewMemJournal())

	clone := func() []Entry {
		out := make([]Entry, len(base))
		copy(out, base)
		return out
	}

	tests := []struct {
		name    string
		mutate  func([]Entry) []Entry
		wantErr error
	}{
		{
			name: "rewritten_reference",
			mutate: func(es []Entry) []Entry {
				es[0].Reference = "evil"
				return es
			},
			wantErr: ErrHashMismatch,
		},
		{
			name: "dropped_entry",
			mutate: func(es []Entry) []Entry {
				return append(es[:1], es[2:]...)
			},
			wantErr: ErrChainBroken,
		},
		{
			name: "reordered",
			mutate: func(es []Entry) []Entry {
				es[1], es[2] = es[2], es[1]
				return es
			},
			wantErr: ErrChainBroken,
		},
		{
			name: "flipped_op",
			mutate: func(es []Entry) []Entry {
				es[3].Op = OpAllow
				return es
			},
			wantErr: ErrHashMismatch,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Verify(tc.mutate(clone()))
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestVerify_Empty(t *testing.T) {
	assert.NoError(t, Verify(nil))
}

// ---------------------------------------------------------------------------
// Replay
// ---------------------------------------------------------------------------

type recordingApplier struct {
	calls []string
	fail  error
}

func (a *recordingApplier) Add(owner identity.Identity, ref string) error {
	a.calls = append(a.calls, "add:"+ref)
	return a.fail
}

func (a *recordingApplier) Allow(owner, grantee identity.Identity) error {
	a.calls = append(a.calls, "allow:"+grantee.Hex()[:2])
	return a.fail
}

func (a *recordingApplier) Disallow(owner, grantee identity.Identity) error {
	a.calls = append(a.calls, "disallow:"+grantee.Hex()[:2])
	return a.fail
}

func TestReplay_AppliesInOrder(t *testing.T) {
	entries := appendSample(t, NewMemJournal())
	a := &recordingApplier{}
	require.NoError(t, Replay(entries, a))
	assert.Equal(t, []string{"add:ref1", "allow:02", "add:ref2", "disallow:02"}, a.calls)
}

func TestReplay_RefusesTamperedChain(t *testing.T) {
	entries := appendSample(t, NewMemJournal())
	entries[1].Subject = testID(9)
	a := &recordingApplier{}
	assert.ErrorIs(t, Replay(entries, a), ErrHashMismatch)
	assert.Empty(t, a.calls)
}

func TestReplay_PropagatesApplierError(t *testing.T) {
	entries := appendSample(t, NewMemJournal())
	boom := errors.New("boom")
	err := Replay(entries, &recordingApplier{fail: boom})
	assert.ErrorIs(t, err, boom)
}

func TestReplay_NilApplier(t *testing.T) {
	assert.ErrorIs(t, Replay(nil, nil), ErrNilParam)
}
