package api

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"barback/internal/services"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// fakeReader отдает сообщения из канала, затем ждет отмены контекста
type fakeReader struct {
	msgs   chan kafka.Message
	errs   chan error
	closed bool
}

func newFakeReader() *fakeReader {
	return &fakeReader{msgs: make(chan kafka.Message, 8), errs: make(chan error, 1)}
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case err := <-r.errs:
		return kafka.Message{}, err
	case m := <-r.msgs:
		return m, nil
	}
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func TestKafkaPublisherKeysByOrderAndIngredient(t *testing.T) {
	w := &fakeWriter{}
	pub := newKafkaPublisher(w, "barback.orders", nullLog())
	ctx := context.Background()

	require.NoError(t, pub.Publish(ctx, services.Event{Type: services.EventOrderCreated, OrderID: "o-1"}))
	require.NoError(t, pub.Publish(ctx, services.Event{
		Type:     services.EventStockLow,
		LowStock: &services.LowStockNotice{IngredientID: "rum"},
	}))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "o-1", string(w.msgs[0].Key))
	assert.Equal(t, "rum", string(w.msgs[1].Key))
	assert.Equal(t, "event_type", w.msgs[1].Headers[0].Key)
	assert.Equal(t, "stock.low", string(w.msgs[1].Headers[0].Value))

	var ev services.Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, services.EventOrderCreated, ev.Type)
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	pub := newKafkaPublisher(w, "barback.orders", nullLog())

	err := pub.Publish(context.Background(), services.Event{Type: services.EventOrderCreated, OrderID: "o-1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestKafkaWSConsumerForwardsEvents(t *testing.T) {
	defer goleak.VerifyNone(t)
	hub := NewHub(nullLog())
	reader := newFakeReader()
	consumer := newKafkaWSConsumer(reader, hub, nullLog())
	consumer.retry = time.Millisecond

	reader.msgs <- kafka.Message{Value: []byte(`not json`)}
	reader.errs <- errors.New("broker restarting")
	reader.msgs <- kafka.Message{Value: []byte(`{"type":"order.created","order_id":"o-1"}`)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	select {
	case msg := <-hub.broadcast:
		assert.JSONEq(t, `{"type":"order.created","order_id":"o-1"}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("event was not forwarded")
	}

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int64(1), consumer.Processed())
	assert.True(t, reader.closed)
}

func TestParseKafkaBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseKafkaBrokers(" a:9092, b:9092,"))
	assert.Empty(t, ParseKafkaBrokers(""))
}

func TestKafkaAuthSecurity(t *testing.T) {
	mechanism, tlsConfig := KafkaAuth{}.security(nullLog())
	assert.Nil(t, mechanism)
	assert.Nil(t, tlsConfig)

	mechanism, tlsConfig = KafkaAuth{Username: "bar", Password: "secret"}.security(nullLog())
	require.NotNil(t, mechanism)
	assert.Equal(t, "PLAIN", mechanism.Name())
	require.NotNil(t, tlsConfig)
	assert.Nil(t, tlsConfig.RootCAs)

	dialer := CreateKafkaDialer(KafkaAuth{CACert: "garbage"}, nullLog())
	assert.Nil(t, dialer.SASLMechanism)
	assert.NotNil(t, dialer.TLS)
}
