package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/observability"
	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// HandlerFunc processes one message. Returning nil or a permanent error
// (see Permanent, ErrRejected) commits the message; any other error is retried.
type HandlerFunc func(ctx context.Context, msg Message) error

// HeaderError carries the last handler error on dead-lettered messages.
const HeaderError = "x-error"

// Router dispatches each topic to exactly one registered handler.
type Router struct {
	client *KafkaClient
	logger logger.Logger

	mu     sync.Mutex
	routes map[string]HandlerFunc

	newReader func(topic string) messageReader
	// newTimer paces refetches and handler retries. Nil uses the backoff
	// package default.
	newTimer func() backoff.Timer
}

// NewRouter creates an empty routing table on top of client.
func NewRouter(client *KafkaClient, log logger.Logger) *Router {
	return &Router{
		client:    client,
		logger:    log,
		routes:    make(map[string]HandlerFunc),
		newReader: client.newReader,
	}
}

// Handle registers h for topic. Registering a topic twice panics.
func (r *Router) Handle(topic string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if topic == "" || h == nil {
		panic("kafka: Handle requires a topic and a handler")
	}
	if _, dup := r.routes[topic]; dup {
		panic(fmt.Sprintf("kafka: handler for topic %q already registered", topic))
	}
	r.routes[topic] = h
}

// Topics returns the registered topics in sorted order.
func (r *Router) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	topics := make([]string, 0, len(r.routes))
	for t := range r.routes {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Run consumes every registered topic until ctx is cancelled. Each topic gets
// Config.Workers readers in the shared consumer group. A reader stops the
// whole router only when a failed message cannot be dead-lettered.
func (r *Router) Run(ctx context.Context) error {
	topics := r.Topics()
	if len(topics) == 0 {
		return fmt.Errorf("kafka: router has no handlers")
	}

	r.mu.Lock()
	routes := make(map[string]HandlerFunc, len(r.routes))
	for t, h := range r.routes {
		routes[t] = h
	}
	r.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, topic := range topics {
		h := routes[topic]
		for w := 0; w < r.client.cfg.Workers; w++ {
			reader := r.newReader(topic)
			g.Go(func() error {
				defer reader.Close()
				return r.consume(ctx, topic, reader, h)
			})
		}
	}

	r.logger.Info("Kafka router started", nil, map[string]interface{}{
		"topics":  topics,
		"workers": r.client.cfg.Workers,
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Router) consume(ctx context.Context, topic string, reader messageReader, h HandlerFunc) error {
	// Fetch errors are retried at the handler pace until the context ends.
	refetch := backoff.WithContext(backoff.NewConstantBackOff(r.client.cfg.HandlerBackoff), ctx)
	for {
		var km kafka.Message
		err := backoff.RetryNotifyWithTimer(func() error {
			var err error
			km, err = reader.FetchMessage(ctx)
			return err
		}, refetch, func(err error, _ time.Duration) {
			if ctx.Err() == nil {
				r.logger.Error("Failed to fetch message", err, map[string]interface{}{"topic": topic})
			}
		}, r.timer())
		if err != nil {
			return nil
		}

		if err := r.dispatch(ctx, km, h); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := reader.CommitMessages(ctx, km); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("Failed to commit message", err, map[string]interface{}{
				"topic":  topic,
				"offset": km.Offset,
			})
		}
	}
}

// dispatch runs h with bounded retries. A nil return means the message may
// be committed.
func (r *Router) dispatch(ctx context.Context, km kafka.Message, h HandlerFunc) error {
	msg := fromKafka(km)
	msgCtx := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Headers))
	msgCtx, span := otel.Tracer("gravity/kafka").Start(msgCtx, "consume "+msg.Topic, trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	fields := map[string]interface{}{
		"topic":     msg.Topic,
		"key":       msg.Key,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	}

	cfg := r.client.cfg
	retries := uint64(0)
	if cfg.MaxHandlerAttempts > 1 {
		retries = uint64(cfg.MaxHandlerAttempts - 1)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.HandlerBackoff), retries), ctx)

	attempt := 0
	lastErr := backoff.RetryNotifyWithTimer(func() error {
		attempt++
		start := time.Now()
		err := h(msgCtx, msg)
		if err != nil {
			span.RecordError(err)
		}
		r.client.observer.ObserveOperation(observability.OperationContext{
			Component:   "kafka",
			Operation:   "consume",
			Resource:    msg.Topic,
			SubResource: cfg.GroupID,
			Duration:    time.Since(start),
			Error:       err,
			Size:        int64(len(msg.Value)),
		})
		if IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, next time.Duration) {
		r.logger.WarnWithContext(msgCtx, "Handler failed", err, fields, map[string]interface{}{
			"attempt":  attempt,
			"retry_in": next.String(),
		})
	}, r.timer())

	switch {
	case lastErr == nil:
		return nil
	case IsPermanent(lastErr):
		r.logger.WarnWithContext(msgCtx, "Message rejected", lastErr, fields)
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	}

	dlq := msg.Topic + cfg.DLQSuffix
	headers := make(map[string]string, len(msg.Headers)+1)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[HeaderError] = lastErr.Error()

	if err := r.client.write(ctx, dlq, msg.Key, msg.Value, headers); err != nil {
		return fmt.Errorf("kafka: dead-lettering %s offset %d: %w", msg.Topic, msg.Offset, err)
	}
	r.logger.ErrorWithContext(msgCtx, "Message moved to dead-letter topic", lastErr, fields, map[string]interface{}{
		"dlq": dlq,
	})
	return nil
}

func (r *Router) timer() backoff.Timer {
	if r.newTimer == nil {
		return nil
	}
	return r.newTimer()
}
