package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"storefront/internal/domain/model"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type writerStub struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *writerStub) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *writerStub) Close() error {
	w.closed = true
	return nil
}

// 用意したメッセージを返し終わったらcontext.Canceled
type readerStub struct {
	queue     []kafka.Message
	committed []int64
	commitErr error
}

func (r *readerStub) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.queue) == 0 {
		return kafka.Message{}, context.Canceled
	}
	m := r.queue[0]
	r.queue = r.queue[1:]
	return m, nil
}

func (r *readerStub) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	if r.commitErr != nil {
		return r.commitErr
	}
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *readerStub) Close() error { return nil }

type handlerStub struct {
	failures int
	calls    int
	got      []model.OutboxEvent
}

func (h *handlerStub) Deliver(_ context.Context, ev model.OutboxEvent) error {
	h.calls++
	if h.calls <= h.failures {
		return errors.New("smtp down")
	}
	h.got = append(h.got, ev)
	return nil
}

func sampleEvent() model.OutboxEvent {
	return model.OutboxEvent{
		ID:          "6f1c2d3e-0000-4000-8000-000000000001",
		EventType:   model.EventOrderConfirmed,
		AggregateID: 42,
		Payload:     `{"order_id":42,"order_number":"ORD-20260314-000042"}`,
		CreatedAt:   time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func TestKafkaSink_Deliver(t *testing.T) {
	w := &writerStub{}
	sink := &KafkaSink{writer: w}

	require.NoError(t, sink.Deliver(context.Background(), sampleEvent()))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "42", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "order.confirmed", string(msg.Headers[0].Value))

	var env envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, sampleEvent().ID, env.ID)
	assert.JSONEq(t, sampleEvent().Payload, string(env.Payload))

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestKafkaSink_Deliver_Errors(t *testing.T) {
	ev := sampleEvent()
	ev.Payload = "not json"
	w := &writerStub{}
	err := (&KafkaSink{writer: w}).Deliver(context.Background(), ev)
	assert.ErrorContains(t, err, "invalid payload")
	assert.Empty(t, w.msgs)

	w = &writerStub{err: errors.New("leader not available")}
	err = (&KafkaSink{writer: w}).Deliver(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "leader not available")
}

func newTestConsumer(r messageReader, h Handler) *KafkaConsumer {
	return &KafkaConsumer{reader: r, handler: h, attempts: 3, backoff: time.Millisecond, log: zerolog.Nop()}
}

func encoded(t *testing.T, ev model.OutboxEvent, offset int64) kafka.Message {
	t.Helper()
	w := &writerStub{}
	require.NoError(t, (&KafkaSink{writer: w}).Deliver(context.Background(), ev))
	msg := w.msgs[0]
	msg.Offset = offset
	return msg
}

func TestKafkaConsumer_RetriesThenCommits(t *testing.T) {
	r := &readerStub{queue: []kafka.Message{encoded(t, sampleEvent(), 7)}}
	h := &handlerStub{failures: 2}

	require.NoError(t, newTestConsumer(r, h).Run(context.Background()))
	assert.Equal(t, 3, h.calls)
	require.Len(t, h.got, 1)
	assert.Equal(t, sampleEvent().ID, h.got[0].ID)
	assert.Equal(t, int64(42), h.got[0].AggregateID)
	assert.JSONEq(t, sampleEvent().Payload, h.got[0].Payload)
	assert.Equal(t, []int64{7}, r.committed)
}

func TestKafkaConsumer_DropsAfterAttempts(t *testing.T) {
	r := &readerStub{queue: []kafka.Message{
		{Offset: 1, Value: []byte("garbage")},
		encoded(t, sampleEvent(), 2),
	}}
	h := &handlerStub{failures: 10}

	require.NoError(t, newTestConsumer(r, h).Run(context.Background()))
	// 壊れたメッセージは渡さない。失敗し続けるものも3回で諦めてコミット
	assert.Equal(t, 3, h.calls)
	assert.Empty(t, h.got)
	assert.Equal(t, []int64{1, 2}, r.committed)
}

func TestKafkaConsumer_CommitError(t *testing.T) {
	r := &readerStub{
		queue:     []kafka.Message{encoded(t, sampleEvent(), 1)},
		commitErr: errors.New("rebalance in progress"),
	}

	err := newTestConsumer(r, &handlerStub{}).Run(context.Background())
	assert.ErrorContains(t, err, "kafka commit")
}
