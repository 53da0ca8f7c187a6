// Package events publishes assignment events to Kafka so downstream
// consumers (search indexers, profile pages, curation tooling) can react to
// cluster changes without polling the store.
package events

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/author-disambiguation-service/internal/domain"
	"github.com/helixir/author-disambiguation-service/internal/observability"
)

// Publisher delivers assignment events.
type Publisher interface {
	// Publish delivers one event. Implementations must be safe for
	// sequential reuse; delivery failures are returned, not retried here.
	Publish(ctx context.Context, event *domain.Event) error

	// Close releases the underlying transport.
	Close() error
}

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic for assignment events.
	Topic string
	// BatchTimeout bounds how long the writer buffers before flushing.
	BatchTimeout time.Duration
}

// KafkaPublisher publishes assignment events to a Kafka topic. Messages are
// keyed by aggregate id so one cluster's events stay ordered per partition.
type KafkaPublisher struct {
	writer  *kafka.Writer
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewKafkaPublisher creates a publisher writing to the configured topic.
// Metrics may be nil.
func NewKafkaPublisher(cfg Config, metrics *observability.Metrics, logger zerolog.Logger) *KafkaPublisher {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = 100 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: batchTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaPublisher{
		writer:  writer,
		metrics: metrics,
		logger:  logger.With().Str("component", "event_publisher").Logger(),
	}
}

// Publish writes one event to the topic.
func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.Event) error {
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.AggregateID, 10)),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID)},
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "aggregate_type", Value: []byte(event.AggregateType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		if p.metrics != nil {
			p.metrics.RecordEventFailed(event.EventType)
		}
		p.logger.Error().Err(err).
			Str("event_type", event.EventType).
			Int64("aggregate_id", event.AggregateID).
			Msg("failed to publish event")
		return fmt.Errorf("publish %s event: %w", event.EventType, err)
	}

	if p.metrics != nil {
		p.metrics.RecordEventPublished(event.EventType)
	}
	p.logger.Debug().
		Str("event_type", event.EventType).
		Int64("aggregate_id", event.AggregateID).
		Msg("published event")
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards all events. Used when event publishing is disabled.
type NopPublisher struct{}

// NewNopPublisher creates a publisher that drops everything.
func NewNopPublisher() *NopPublisher { return &NopPublisher{} }

func (*NopPublisher) Publish(context.Context, *domain.Event) error { return nil }

func (*NopPublisher) Close() error { return nil }
