package events

import (
	"context"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

// KafkaQueue implements Queue on a Kafka topic consumed by a consumer group.
// Offsets are committed only on Ack/DeadLetter. Messages are hashed to
// partitions by ordering key, so events for one ticket stay in order.
type KafkaQueue struct {
	writer     *kafka.Writer
	deadLetter *kafka.Writer
	reader     *kafka.Reader
}

// KafkaOptions configures brokers and topic names.
type KafkaOptions struct {
	Brokers    []string
	Topic      string
	DeadLetter string
	Group      string
}

// NewKafkaQueue builds writers for the topic and its dead-letter topic and a
// group reader.
func NewKafkaQueue(opts KafkaOptions) *KafkaQueue {
	return &KafkaQueue{
		writer:     newKafkaWriter(opts.Brokers, opts.Topic),
		deadLetter: newKafkaWriter(opts.Brokers, opts.DeadLetter),
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  opts.Brokers,
			GroupID:  opts.Group,
			Topic:    opts.Topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
	}
}

func newKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
}

const kafkaIDHeader = "message-id"

func toKafka(msg Message) kafka.Message {
	return kafka.Message{
		Key:     []byte(msg.OrderingKey()),
		Value:   msg.Body,
		Headers: []kafka.Header{{Key: kafkaIDHeader, Value: []byte(msg.ID)}},
	}
}

func fromKafka(m kafka.Message) Message {
	msg := Message{ID: string(m.Key), Key: string(m.Key), Body: m.Value}
	for _, h := range m.Headers {
		if h.Key == kafkaIDHeader && len(h.Value) > 0 {
			msg.ID = string(h.Value)
		}
	}
	return msg
}

func (q *KafkaQueue) Publish(ctx context.Context, msg Message) error {
	return q.writer.WriteMessages(ctx, toKafka(msg))
}

func (q *KafkaQueue) Receive(ctx context.Context) (Delivery, error) {
	m, err := q.reader.FetchMessage(ctx)
	if err != nil {
		return Delivery{}, err
	}
	return Delivery{Message: fromKafka(m), handle: m}, nil
}

func (q *KafkaQueue) Ack(ctx context.Context, d Delivery) error {
	m, ok := d.handle.(kafka.Message)
	if !ok {
		return fmt.Errorf("delivery %s was not received from kafka", d.ID)
	}
	return q.reader.CommitMessages(ctx, m)
}

func (q *KafkaQueue) DeadLetter(ctx context.Context, d Delivery, reason string) error {
	dead := toKafka(d.Message)
	dead.Headers = append(dead.Headers, kafka.Header{Key: "error", Value: []byte(reason)})
	if err := q.deadLetter.WriteMessages(ctx, dead); err != nil {
		return fmt.Errorf("write dead letter: %w", err)
	}
	return q.Ack(ctx, d)
}

func (q *KafkaQueue) Close() error {
	var firstErr error
	for _, closer := range []interface{ Close() error }{q.reader, q.writer, q.deadLetter} {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
