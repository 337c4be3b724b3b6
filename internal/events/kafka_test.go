package events

import (
	"testing"

	kafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestKafkaMessagesAreKeyedByTicket(t *testing.T) {
	msg := Message{ID: "outbox-1", Key: "ticket-9", Body: []byte(`{}`)}

	km := toKafka(msg)
	assert.Equal(t, "ticket-9", string(km.Key))
	assert.Equal(t, msg, fromKafka(km))

	unkeyed := toKafka(Message{ID: "outbox-2"})
	assert.Equal(t, "outbox-2", string(unkeyed.Key))
	assert.Equal(t, "outbox-2", fromKafka(unkeyed).ID)
}

func TestKafkaWriterHashesByKey(t *testing.T) {
	w := newKafkaWriter([]string{"localhost:9092"}, "ticket-notifications")
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	assert.Equal(t, "ticket-notifications", w.Topic)
}

func TestFromKafkaWithoutIDHeader(t *testing.T) {
	got := fromKafka(kafka.Message{Key: []byte("legacy"), Value: []byte("x")})
	assert.Equal(t, Message{ID: "legacy", Key: "legacy", Body: []byte("x")}, got)
}
