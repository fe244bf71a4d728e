package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Writes are asynchronous, so this only bounds handing the message to the
// writer's batch queue.
const publishTimeout = time.Second

// MessageWriter is the part of kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer MessageWriter
	log    zerolog.Logger
}

// NewKafkaPublisher batches events in the background. Delivery failures are
// only visible in the log; request paths never wait on the broker.
func NewKafkaPublisher(brokers []string, topic string, log zerolog.Logger) *KafkaPublisher {
	p := &KafkaPublisher{log: log}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion:   p.delivered,
	}
	return p
}

func NewKafkaPublisherWithWriter(writer MessageWriter, log zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, log: log}
}

// delivered reports the outcome of an async batch.
func (p *KafkaPublisher) delivered(msgs []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, msg := range msgs {
		p.log.Error().
			Err(err).
			Str("user_id", string(msg.Key)).
			Time("event_at", msg.Time).
			Msg("audit event not delivered")
	}
}

// Publish keys messages by user so one user's events stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.UserID),
		Value: data,
		Time:  event.At,
	}); err != nil {
		return fmt.Errorf("kafka: write event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
