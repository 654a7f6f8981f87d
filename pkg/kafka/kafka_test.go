package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"travelbook/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) headers(i int) map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return convertMessage(w.messages[i]).Headers
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return io.EOF }

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "info", Format: logger.JSON, AddSource: false, Service: "test"})
}

func buildMessage(t *testing.T) Message {
	t.Helper()
	msg, err := NewMessage().
		WithKey("booking-1").
		WithValue(map[string]string{"booking_id": "booking-1"}).
		WithEventType("booking.confirmed").
		WithCorrelationID("req-1").
		WithSource("test").
		Build()
	require.NoError(t, err)
	return msg
}

func TestMessageBuilder(t *testing.T) {
	msg := buildMessage(t)

	assert.Equal(t, "booking-1", msg.Key)
	assert.NotEmpty(t, msg.GetEventID())
	assert.Equal(t, "booking.confirmed", msg.GetEventType())
	assert.Equal(t, "req-1", msg.GetCorrelationID())
	assert.NotEmpty(t, msg.Headers[HeaderTimestamp])

	var payload map[string]string
	require.NoError(t, msg.DecodeValue(&payload))
	assert.Equal(t, "booking-1", payload["booking_id"])

	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	assert.Error(t, err)
}

func TestMessage_RetryCount(t *testing.T) {
	msg := Message{}
	assert.Equal(t, 0, msg.GetRetryCount())
	for i := 0; i < 12; i++ {
		msg.IncrementRetryCount()
	}
	assert.Equal(t, 12, msg.GetRetryCount())
	assert.Equal(t, "12", msg.Headers[HeaderRetryCount])
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, ErrorTypeUnknown, ClassifyError(nil))
	assert.Equal(t, ErrorTypeTransient, ClassifyError(errors.New("dial tcp: Connection Refused")))
	assert.Equal(t, ErrorTypePermanent, ClassifyError(errors.New("unexpected end of JSON input")))
	assert.Equal(t, ErrorTypeTransient, ClassifyError(NewTransientError("store down", errors.New("x"))))
	assert.Equal(t, ErrorTypePermanent, ClassifyError(NewPermanentError("bad payload", errors.New("timeout"))))

	assert.True(t, ShouldRetry(errors.New("i/o timeout"), 0, 3))
	assert.False(t, ShouldRetry(errors.New("i/o timeout"), 3, 3))
	assert.False(t, ShouldRetry(errors.New("bad json"), 0, 3))
}

func TestProducer_Publish(t *testing.T) {
	writer := &fakeWriter{}
	p := &Producer{writer: writer, topic: "booking-events", log: testLogger()}

	var seenTopic string
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		seenTopic = msg.Topic
		return next(ctx, msg)
	})

	require.NoError(t, p.Publish(context.Background(), buildMessage(t)))
	assert.Equal(t, "booking-events", seenTopic)
	require.Len(t, writer.messages, 1)
	assert.Equal(t, "booking-1", string(writer.messages[0].Key))

	assert.ErrorIs(t, p.Publish(context.Background(), Message{Value: []byte("x")}), ErrEmptyKey)
	assert.ErrorIs(t, p.Publish(context.Background(), Message{Key: "k"}), ErrEmptyValue)

	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Publish(context.Background(), buildMessage(t)), ErrProducerClosed)
}

func TestProducer_FailedWriteGoesToDLQ(t *testing.T) {
	writeErr := errors.New("leader not available")
	dlq := &fakeWriter{}
	p := &Producer{writer: &fakeWriter{err: writeErr}, dlqWriter: dlq, topic: "booking-events", log: testLogger()}

	err := p.Publish(context.Background(), buildMessage(t))
	assert.ErrorIs(t, err, writeErr)
	require.Len(t, dlq.messages, 1)
	assert.Equal(t, "booking-events", dlq.headers(0)[HeaderOriginalTopic])
	assert.Equal(t, writeErr.Error(), dlq.headers(0)[HeaderDLQError])
}

func TestConsumer_RetriesTransientThenDLQ(t *testing.T) {
	dlq := &fakeWriter{}
	calls := 0
	c := &Consumer{
		dlqWriter:  dlq,
		topic:      "booking-events",
		groupID:    "g",
		maxRetries: 2,
		log:        testLogger(),
		handler: func(ctx context.Context, msg Message) error {
			calls++
			return NewTransientError("store down", errors.New("connection reset"))
		},
	}

	err := c.processMessage(context.Background(), buildMessage(t))
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, dlq.messages, 1)
	assert.Equal(t, "2", dlq.headers(0)[HeaderRetryCount])
	assert.Equal(t, "g", dlq.headers(0)[HeaderDLQGroup])
}

func TestConsumer_PermanentErrorSkipsRetries(t *testing.T) {
	dlq := &fakeWriter{}
	calls := 0
	c := &Consumer{
		dlqWriter:  dlq,
		maxRetries: 5,
		log:        testLogger(),
		handler: func(ctx context.Context, msg Message) error {
			calls++
			return NewPermanentError("bad payload", nil)
		},
	}

	require.Error(t, c.processMessage(context.Background(), buildMessage(t)))
	assert.Equal(t, 1, calls)
	assert.Len(t, dlq.messages, 1)
}

func TestConsumer_StartCommitsEveryMessage(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Key: []byte("a"), Value: []byte(`{}`)},
		{Offset: 2, Key: []byte("b"), Value: []byte(`{}`)},
	}}

	var mu sync.Mutex
	var handled []string
	c := &Consumer{
		reader: reader,
		log:    testLogger(),
		handler: func(ctx context.Context, msg Message) error {
			mu.Lock()
			defer mu.Unlock()
			handled = append(handled, msg.Key)
			if msg.Key == "b" {
				return NewPermanentError("bad", nil)
			}
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.committed) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	mu.Lock()
	assert.Equal(t, []string{"a", "b"}, handled)
	mu.Unlock()
}
