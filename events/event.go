// Package events fans accepted registry mutations out to other systems.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/preethamak/BlockDrive/codec"
	"github.com/preethamak/BlockDrive/identity"
	"github.com/preethamak/BlockDrive/journal"
)

// Event describes one committed mutation.
type Event struct {
	ID        uuid.UUID
	Op        journal.Op
	Owner     identity.Identity
	Subject   identity.Identity
	Reference string
	Seq       uint64 // journal sequence, 0 when no journal is attached
	Time      time.Time
}

// New stamps a fresh event ID.
func New(op journal.Op, owner, subject identity.Identity, ref string, at time.Time) Event {
	return Event{
		ID:        uuid.New(),
		Op:        op,
		Owner:     owner,
		Subject:   subject,
		Reference: ref,
		Time:      at.UTC(),
	}
}

// RoutingKey is the topic the event is published under.
func (e Event) RoutingKey() string {
	return "registry." + string(e.Op)
}

type wireEvent struct {
	ID        string `cbor:"1,keyasint"`
	Op        string `cbor:"2,keyasint"`
	Owner     string `cbor:"3,keyasint"`
	Subject   string `cbor:"4,keyasint,omitempty"`
	Reference string `cbor:"5,keyasint,omitempty"`
	Seq       uint64 `cbor:"6,keyasint,omitempty"`
	Time      int64  `cbor:"7,keyasint"`
}

// Encode serializes e as deterministic CBOR with addresses in string form.
func (e Event) Encode() ([]byte, error) {
	w := wireEvent{
		ID:        e.ID.String(),
		Op:        string(e.Op),
		Owner:     e.Owner.String(),
		Reference: e.Reference,
		Seq:       e.Seq,
		Time:      e.Time.UnixNano(),
	}
	if !e.Subject.IsZero() {
		w.Subject = e.Subject.String()
	}
	return codec.Marshal(w)
}

// Decode parses an event produced by Encode.
func Decode(data []byte) (Event, error) {
	var w wireEvent
	if err := codec.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("events: decode: %w", err)
	}
	id, err := uuid.Parse(w.ID)
	if err != nil {
		return Event{}, fmt.Errorf("events: decode id: %w", err)
	}
	owner, err := identity.Parse(w.Owner)
	if err != nil {
		return Event{}, fmt.Errorf("events: decode owner: %w", err)
	}
	e := Event{
		ID:        id,
		Op:        journal.Op(w.Op),
		Owner:     owner,
		Reference: w.Reference,
		Seq:       w.Seq,
		Time:      time.Unix(0, w.Time).UTC(),
	}
	if w.Subject != "" {
		if e.Subject, err = identity.Parse(w.Subject); err != nil {
			return Event{}, fmt.Errorf("events: decode subject: %w", err)
		}
	}
	return e, nil
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

var (
	_ Publisher = Nop{}
	_ Publisher = (*Recorder)(nil)
)
