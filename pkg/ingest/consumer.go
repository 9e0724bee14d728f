package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/telekom/exception-subscriptions/pkg/config"
	"github.com/telekom/exception-subscriptions/pkg/event"
	"github.com/telekom/exception-subscriptions/pkg/metrics"
	"github.com/telekom/exception-subscriptions/pkg/notification"
)

const (
	source = "kafka"

	defaultMaxAttempts = 3
	initialBackoff     = 500 * time.Millisecond
	maxBackoff         = 30 * time.Second
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventProcessor runs the notification flow for one event.
type EventProcessor interface {
	PostProcess(ctx context.Context, env event.Envelope) (notification.Result, error)
}

// Consumer reads event envelopes from a topic and hands them to the notifier.
// Every fetched message is committed once handled, including messages that
// could not be decoded and messages whose processing kept failing.
type Consumer struct {
	reader      MessageReader
	processor   EventProcessor
	log         *zap.SugaredLogger
	maxAttempts int
	backoff     time.Duration
}

// NewConsumer creates a consumer group reader for cfg.
func NewConsumer(cfg config.Kafka, processor EventProcessor, log *zap.SugaredLogger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	dialer, err := newDialer(cfg)
	if err != nil {
		return nil, err
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		Dialer:         dialer,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: 0,
	})

	log.Infow("Kafka consumer created",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"group", cfg.GroupID,
		"tls_enabled", cfg.TLS.Enabled,
		"sasl_enabled", cfg.SASL.Mechanism != "")

	return NewConsumerWithReader(reader, processor, log), nil
}

// NewConsumerWithReader wires a consumer around an existing reader.
func NewConsumerWithReader(reader MessageReader, processor EventProcessor, log *zap.SugaredLogger) *Consumer {
	return &Consumer{
		reader:      reader,
		processor:   processor,
		log:         log.Named("ingest"),
		maxAttempts: defaultMaxAttempts,
		backoff:     initialBackoff,
	}
}

// Run consumes until ctx is cancelled. Broker errors are retried with
// exponential backoff; Run only returns an error if committing fails.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("Starting event consumer")
	metrics.IngestConnected.Set(1)
	defer metrics.IngestConnected.Set(0)

	backoff := c.backoff
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Event consumer stopped")
				return nil
			}
			kind := classifyError(err)
			metrics.IngestErrors.WithLabelValues(kind).Inc()
			metrics.IngestConnected.Set(0)
			c.log.Warnw("Failed to fetch message", "error", err, "kind", kind, "retryIn", backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		metrics.IngestConnected.Set(1)
		backoff = c.backoff

		c.handleMessage(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.IngestErrors.WithLabelValues(classifyError(err)).Inc()
			return fmt.Errorf("committing offset %d of partition %d: %w", msg.Offset, msg.Partition, err)
		}
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) {
	log := c.log.With("partition", msg.Partition, "offset", msg.Offset)

	var env event.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		metrics.EventsRejected.WithLabelValues(source).Inc()
		log.Warnw("Dropping malformed event", "error", err)
		return
	}
	if err := env.Validate(); err != nil {
		metrics.EventsRejected.WithLabelValues(source).Inc()
		log.Warnw("Dropping invalid event", "error", err)
		return
	}
	metrics.EventsProcessed.WithLabelValues(source).Inc()

	log = log.With("project", env.Project.ID, "event", env.Event.ID)
	backoff := c.backoff
	for attempt := 1; ; attempt++ {
		res, err := c.processor.PostProcess(ctx, env)
		if err == nil {
			log.Debugw("Event processed", "notified", res.Notified, "reason", res.Reason)
			return
		}
		if attempt >= c.maxAttempts || ctx.Err() != nil {
			log.Errorw("Giving up on event", "attempts", attempt, "error", err)
			return
		}
		log.Warnw("Processing failed, retrying", "attempt", attempt, "error", err)
		if !sleep(ctx, backoff) {
			return
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
