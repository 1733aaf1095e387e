package events

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preethamak/BlockDrive/identity"
	"github.com/preethamak/BlockDrive/journal"
)

var (
	alice = identity.Identity{1, 2, 3}
	bob   = identity.Identity{4, 5, 6}
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	kinds      []string
	published  []published
	declareErr error
	publishErr error
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	f.declared = append(f.declared, name)
	f.kinds = append(f.kinds, kind)
	return f.declareErr
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{exchange, key, msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

// ---- Event ----

func TestEvent_EncodeDecode(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 42, time.UTC)
	e := New(journal.OpAllow, alice, bob, "", at)
	e.Seq = 7

	data, err := e.Encode()
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, journal.OpAllow, got.Op)
	assert.Equal(t, alice, got.Owner)
	assert.Equal(t, bob, got.Subject)
	assert.Equal(t, uint64(7), got.Seq)
	assert.True(t, at.Equal(got.Time))
}

func TestEvent_EncodeOmitsZeroSubject(t *testing.T) {
	e := New(journal.OpAdd, alice, identity.Identity{}, "ipfs://x", time.Unix(0, 0))
	data, err := e.Encode()
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, got.Subject.IsZero())
	assert.Equal(t, "ipfs://x", got.Reference)
}

func TestEvent_UniqueIDs(t *testing.T) {
	a := New(journal.OpAdd, alice, identity.Identity{}, "r", time.Now())
	b := New(journal.OpAdd, alice, identity.Identity{}, "r", time.Now())
	assert.NotEqual(t, a.ID, b.ID)
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte{0xff, 0x00})
	assert.Error(t, err)
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "registry.disallow", Event{Op: journal.OpDisallow}.RoutingKey())
}

// ---- Recorder ----

func TestRecorder(t *testing.T) {
	var r Recorder
	require.NoError(t, r.Publish(context.Background(), Event{Op: journal.OpAdd}))
	require.NoError(t, r.Publish(context.Background(), Event{Op: journal.OpAllow}))

	got := r.Events()
	require.Len(t, got, 2)
	assert.Equal(t, journal.OpAllow, got[1].Op)

	got[0].Op = "mutated"
	assert.Equal(t, journal.OpAdd, r.Events()[0].Op)
}

// ---- AMQPPublisher ----

func TestNewAMQPPublisher_DeclaresTopicExchange(t *testing.T) {
	ch := &fakeChannel{}
	_, err := NewAMQPPublisher(ch, "blockdrive")
	require.NoError(t, err)
	assert.Equal(t, []string{"blockdrive"}, ch.declared)
	assert.Equal(t, []string{amqp.ExchangeTopic}, ch.kinds)
}

func TestNewAMQPPublisher_Errors(t *testing.T) {
	_, err := NewAMQPPublisher(nil, "x")
	assert.ErrorIs(t, err, ErrNilChannel)

	_, err = NewAMQPPublisher(&fakeChannel{}, "")
	assert.ErrorIs(t, err, ErrNoExchange)

	boom := errors.New("boom")
	_, err = NewAMQPPublisher(&fakeChannel{declareErr: boom}, "x")
	assert.ErrorIs(t, err, boom)
}

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p, err := NewAMQPPublisher(ch, "blockdrive")
	require.NoError(t, err)

	e := New(journal.OpAdd, alice, identity.Identity{}, "ipfs://bafy", time.Now())
	require.NoError(t, p.Publish(context.Background(), e))

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, "blockdrive", msg.exchange)
	assert.Equal(t, "registry.add", msg.key)
	assert.Equal(t, ContentType, msg.msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.msg.DeliveryMode)
	assert.Equal(t, e.ID.String(), msg.msg.MessageId)

	got, err := Decode(msg.msg.Body)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://bafy", got.Reference)
}

func TestAMQPPublisher_PublishError(t *testing.T) {
	boom := errors.New("channel closed")
	p, err := NewAMQPPublisher(&fakeChannel{publishErr: boom}, "blockdrive")
	require.NoError(t, err)

	err = p.Publish(context.Background(), New(journal.OpAdd, alice, identity.Identity{}, "r", time.Now()))
	assert.ErrorIs(t, err, boom)
}

func TestAMQPPublisher_Close(t *testing.T) {
	ch := &fakeChannel{}
	p, err := NewAMQPPublisher(ch, "blockdrive")
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}
