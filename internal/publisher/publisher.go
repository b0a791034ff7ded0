package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/vincentbai/pagebeacon/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Message is the Kafka value published for each stored event.
type Message struct {
	ID string `json:"id"`
	models.Envelope
}

// Publisher forwards collected events to a Kafka topic
type Publisher struct {
	writer messageWriter
}

// New creates a Publisher writing to topic on brokers
func New(brokers []string, topic string) *Publisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		MaxAttempts:            3,
	}

	return &Publisher{writer: writer}
}

// Record publishes event keyed by its page path, so events for one page
// land on the same partition.
func (p *Publisher) Record(ctx context.Context, event models.Event) error {
	value, err := json.Marshal(Message{
		ID: event.ID,
		Envelope: models.Envelope{
			Type:      event.Type,
			Path:      event.Path,
			Timestamp: event.TSISO,
			Element:   event.Element,
			ElementID: event.ElementID,
			ClassName: event.ClassName,
			MaxScroll: event.MaxScroll,
			UserAgent: event.UserAgent,
			Duration:  event.Duration,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Path),
		Value: value,
	}); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close closes the Kafka writer connection
func (p *Publisher) Close() error {
	return p.writer.Close()
}
