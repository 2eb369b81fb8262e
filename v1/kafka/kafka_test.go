package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/observability"
	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

// fakeReader serves queued messages and blocks afterwards until cancelled.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	drained   chan struct{}
	fetchErrs int
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{queue: msgs, drained: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.fetchErrs > 0 {
		r.fetchErrs--
		r.mu.Unlock()
		return kafka.Message{}, errors.New("leader not available")
	}
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
	if len(r.queue) == 0 {
		select {
		case <-r.drained:
		default:
			close(r.drained)
		}
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

// instantTimer fires as soon as it is started.
type instantTimer struct{ c chan time.Time }

func (t *instantTimer) Start(time.Duration) {
	t.c = make(chan time.Time, 1)
	t.c <- time.Time{}
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

func newTestClient(w *fakeWriter) *KafkaClient {
	cfg := Config{Brokers: []string{"localhost:9092"}, GroupID: "gravity", HandlerBackoff: time.Millisecond}
	cfg.applyDefaults()
	return &KafkaClient{cfg: cfg, logger: logger.NewNop(), observer: observability.NoopObserver{}, writer: w}
}

func runRouter(t *testing.T, r *Router, reader *fakeReader) {
	t.Helper()
	r.newReader = func(string) messageReader { return reader }
	r.newTimer = func() backoff.Timer { return &instantTimer{} }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case <-reader.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("router did not drain the queue")
	}
	cancel()
	require.NoError(t, <-done)
}

type createdEvent struct {
	FragmentID uint64 `json:"fragmentId" validate:"required"`
	OwnerID    string `json:"ownerId" validate:"required"`
}

func TestDecode(t *testing.T) {
	var ev createdEvent
	require.NoError(t, Decode(Message{Value: []byte(`{"fragmentId":7,"ownerId":"alice"}`)}, &ev))
	assert.Equal(t, uint64(7), ev.FragmentID)

	err := Decode(Message{Value: []byte(`"{\"fragmentId\":7,\"ownerId\":\"alice\"}"`)}, &ev)
	assert.ErrorIs(t, err, ErrRejected)

	err = Decode(Message{Value: []byte(`{"fragmentId":7}`)}, &createdEvent{})
	assert.ErrorIs(t, err, ErrRejected)

	err = Decode(Message{Value: []byte(`{not json`)}, &createdEvent{})
	assert.ErrorIs(t, err, ErrRejected)

	err = Decode(Message{Value: nil}, &createdEvent{})
	assert.ErrorIs(t, err, ErrRejected)

	var generic map[string]any
	assert.NoError(t, Decode(Message{Value: []byte(`{"a":1}`)}, &generic))
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	base := errors.New("boom")
	p := Permanent(base)
	assert.True(t, IsPermanent(p))
	assert.ErrorIs(t, p, base)
	assert.True(t, IsPermanent(ErrRejected))
	assert.False(t, IsPermanent(base))
}

func TestPublishEncodesOnce(t *testing.T) {
	w := &fakeWriter{}
	k := newTestClient(w)

	err := k.Publish(context.Background(), "fragment.created", "alice", createdEvent{FragmentID: 1, OwnerID: "alice"}, map[string]string{"source": "test"})
	require.NoError(t, err)
	err = k.Publish(context.Background(), "fragment.created", "alice", []byte(`{"fragmentId":2}`), nil)
	require.NoError(t, err)

	msgs := w.written()
	require.Len(t, msgs, 2)
	assert.Equal(t, "fragment.created", msgs[0].Topic)
	assert.Equal(t, "alice", string(msgs[0].Key))
	assert.JSONEq(t, `{"fragmentId":1,"ownerId":"alice"}`, string(msgs[0].Value))
	assert.Equal(t, `{"fragmentId":2}`, string(msgs[1].Value))
	assert.Equal(t, "test", fromKafka(msgs[0]).Headers["source"])
}

func TestPublishError(t *testing.T) {
	k := newTestClient(&fakeWriter{err: errors.New("broker down")})
	err := k.Publish(context.Background(), "t", "k", map[string]int{"a": 1}, nil)
	assert.Error(t, err)
}

func TestRouterCommitsSuccessAndRejected(t *testing.T) {
	w := &fakeWriter{}
	r := NewRouter(newTestClient(w), logger.NewNop())

	var mu sync.Mutex
	var seen []string
	r.Handle("fragment.created", func(ctx context.Context, msg Message) error {
		mu.Lock()
		seen = append(seen, msg.Key)
		mu.Unlock()
		var ev createdEvent
		return Decode(msg, &ev)
	})

	reader := newFakeReader(
		kafka.Message{Topic: "fragment.created", Key: []byte("ok"), Offset: 1, Value: []byte(`{"fragmentId":1,"ownerId":"a"}`)},
		kafka.Message{Topic: "fragment.created", Key: []byte("double"), Offset: 2, Value: []byte(`"{}"`)},
	)
	runRouter(t, r, reader)

	assert.Equal(t, []string{"ok", "double"}, seen)
	assert.Equal(t, []int64{1, 2}, reader.commits())
	assert.Empty(t, w.written(), "rejected messages are not dead-lettered")
}

func TestRouterRetriesThenDeadLetters(t *testing.T) {
	w := &fakeWriter{}
	r := NewRouter(newTestClient(w), logger.NewNop())

	calls := 0
	r.Handle("association.requested", func(ctx context.Context, msg Message) error {
		calls++
		return errors.New("db unavailable")
	})

	reader := newFakeReader(kafka.Message{
		Topic:   "association.requested",
		Key:     []byte("alice"),
		Offset:  9,
		Value:   []byte(`{"clusterId":1}`),
		Headers: []kafka.Header{{Key: "traceparent", Value: []byte("x")}},
	})
	runRouter(t, r, reader)

	assert.Equal(t, DefaultMaxHandlerAttempts, calls)
	assert.Equal(t, []int64{9}, reader.commits())

	dlq := w.written()
	require.Len(t, dlq, 1)
	assert.Equal(t, "association.requested.dlq", dlq[0].Topic)
	assert.Equal(t, `{"clusterId":1}`, string(dlq[0].Value))
	assert.Equal(t, "db unavailable", fromKafka(dlq[0]).Headers[HeaderError])
}

func TestRouterRetrySucceeds(t *testing.T) {
	w := &fakeWriter{}
	r := NewRouter(newTestClient(w), logger.NewNop())

	calls := 0
	r.Handle("t", func(ctx context.Context, msg Message) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})

	reader := newFakeReader(kafka.Message{Topic: "t", Offset: 3, Value: []byte(`{}`)})
	runRouter(t, r, reader)

	assert.Equal(t, 2, calls)
	assert.Equal(t, []int64{3}, reader.commits())
	assert.Empty(t, w.written())
}

func TestRouterRefetchesAfterFetchErrors(t *testing.T) {
	w := &fakeWriter{}
	r := NewRouter(newTestClient(w), logger.NewNop())

	var seen []int64
	r.Handle("t", func(ctx context.Context, msg Message) error {
		seen = append(seen, msg.Offset)
		return nil
	})

	reader := newFakeReader(kafka.Message{Topic: "t", Offset: 5, Value: []byte(`{}`)})
	reader.fetchErrs = 2
	runRouter(t, r, reader)

	assert.Equal(t, []int64{5}, seen)
	assert.Equal(t, []int64{5}, reader.commits())
}

func TestRouterDuplicateHandlerPanics(t *testing.T) {
	r := NewRouter(newTestClient(&fakeWriter{}), logger.NewNop())
	r.Handle("t", func(context.Context, Message) error { return nil })
	assert.Panics(t, func() { r.Handle("t", func(context.Context, Message) error { return nil }) })
	assert.Equal(t, []string{"t"}, r.Topics())
}

func TestRouterWithoutHandlers(t *testing.T) {
	r := NewRouter(newTestClient(&fakeWriter{}), logger.NewNop())
	assert.Error(t, r.Run(context.Background()))
}
