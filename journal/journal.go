package journal

import (
	"sync"
)

// Journal is an append-only, hash-chained mutation log.
type Journal interface {
	// Append chains rec after the current head and returns the stored entry.
	Append(rec Record) (Entry, error)

	// Entries returns all entries with Seq >= from, in order.
	Entries(from uint64) ([]Entry, error)

	// Head returns the latest entry; ok is false for an empty journal.
	Head() (head Entry, ok bool, err error)
}

// MemJournal is an in-memory Journal.
type MemJournal struct {
	mu      sync.RWMutex
	entries []Entry
}

// Compile-time interface check.
var _ Journal = (*MemJournal)(nil)

// NewMemJournal creates an empty in-memory journal.
func NewMemJournal() *MemJournal {
	return &MemJournal{}
}

// Append chains rec after the current head.
func (j *MemJournal) Append(rec Record) (Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var head *Entry
	if n := len(j.entries); n > 0 {
		head = &j.entries[n-1]
	}
	e, err := next(head, rec)
	if err != nil {
		return Entry{}, err
	}
	j.entries = append(j.entries, e)
	return e, nil
}

// Entries returns all entries with Seq >= from.
func (j *MemJournal) Entries(from uint64) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if from == 0 {
		from = 1
	}
	if from > uint64(len(j.entries)) {
		return nil, nil
	}
	out := make([]Entry, len(j.entries)-int(from-1))
	copy(out, j.entries[from-1:])
	return out, nil
}

// Head returns the latest entry.
func (j *MemJournal) Head() (Entry, bool, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if len(j.entries) == 0 {
		return Entry{}, false, nil
	}
	return j.entries[len(j.entries)-1], true, nil
}
