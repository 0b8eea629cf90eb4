package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher delivers sync events to a single topic.
type KafkaPublisher struct {
	topic  string
	mu     sync.Mutex
	writer messageWriter
}

// NewKafkaPublisher creates a KafkaPublisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return newKafkaPublisher(topic, &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
	})
}

func newKafkaPublisher(topic string, writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{topic: topic, writer: writer}
}

// PublishSyncFinished writes the event keyed by session id.
func (p *KafkaPublisher) PublishSyncFinished(ctx context.Context, evt SyncFinished) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(evt.SessionID),
		Value: body,
		Time:  evt.FinishedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeSyncFinished)},
		},
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.WriteMessages(ctx, msg)
}

// Close releases the writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.Close()
}

// NoopPublisher drops events. Used when no brokers are configured.
type NoopPublisher struct{}

// PublishSyncFinished performs no action.
func (NoopPublisher) PublishSyncFinished(context.Context, SyncFinished) error { return nil }
