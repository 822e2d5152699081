package mq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAck записывает вызовы Ack/Nack.
type fakeAck struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAck) Ack(uint64, bool) error { a.acked++; return nil }

func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *fakeAck) Reject(_ uint64, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func newTestConsumer(h Handler) *Consumer {
	return NewConsumer(nil, slog.New(slog.NewTextHandler(io.Discard, nil)), ConsumerConfig{
		Queue:   QueueResearchRequested,
		Handler: h,
	})
}

func delivery(t *testing.T, ack *fakeAck, redelivered bool) amqp.Delivery {
	t.Helper()
	env, err := NewEnvelope(MessageTypeResearchRequested, ResearchRequested{JobID: uuid.New()}, time.Now())
	require.NoError(t, err)
	body, err := json.Marshal(env)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: body, Redelivered: redelivered}
}

func TestConsumer_AckOnSuccess(t *testing.T) {
	var got ResearchRequested
	c := newTestConsumer(func(_ context.Context, env *Envelope) error {
		return env.Decode(&got)
	})
	ack := &fakeAck{}

	c.handle(context.Background(), delivery(t, ack, false))

	assert.Equal(t, 1, ack.acked)
	assert.Zero(t, ack.nacked)
	assert.NotEqual(t, uuid.Nil, got.JobID)
}

func TestConsumer_RequeueOnceOnError(t *testing.T) {
	c := newTestConsumer(func(context.Context, *Envelope) error { return errors.New("db busy") })

	first := &fakeAck{}
	c.handle(context.Background(), delivery(t, first, false))
	assert.Equal(t, 1, first.nacked)
	assert.True(t, first.requeue)

	second := &fakeAck{}
	c.handle(context.Background(), delivery(t, second, true))
	assert.Equal(t, 1, second.nacked)
	assert.False(t, second.requeue)
}

func TestConsumer_RejectGoesToDLQ(t *testing.T) {
	c := newTestConsumer(func(context.Context, *Envelope) error {
		return errors.Join(ErrReject, errors.New("unknown job"))
	})
	ack := &fakeAck{}

	c.handle(context.Background(), delivery(t, ack, false))
	assert.Equal(t, 1, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestConsumer_MalformedBody(t *testing.T) {
	called := false
	c := newTestConsumer(func(context.Context, *Envelope) error { called = true; return nil })
	ack := &fakeAck{}

	c.handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")})

	assert.False(t, called)
	assert.Equal(t, 1, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestEnvelope_Decode(t *testing.T) {
	id := uuid.New()
	env, err := NewEnvelope(MessageTypeResearchRequested, ResearchRequested{JobID: id}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, time.UTC, env.Timestamp.Location())

	var payload ResearchRequested
	require.NoError(t, env.Decode(&payload))
	assert.Equal(t, id, payload.JobID)

	empty := &Envelope{Type: MessageTypeResearchRequested}
	assert.Error(t, empty.Decode(&payload))
}
