package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	fieldID    = "id"
	fieldKey   = "key"
	fieldBody  = "body"
	fieldError = "error"

	streamBlock = 5 * time.Second
)

// RedisStreamQueue implements Queue on a Redis stream with a consumer group.
// Entries stay pending until XACK, so a crashed consumer re-reads them on restart.
type RedisStreamQueue struct {
	client     *redis.Client
	stream     string
	deadLetter string
	group      string
	consumer   string
	logger     *zap.Logger

	// drainPending is true until this consumer's pending list is exhausted.
	drainPending bool
}

// RedisStreamOptions configures the stream names and consumer identity.
type RedisStreamOptions struct {
	Stream     string
	DeadLetter string
	Group      string
	Consumer   string
}

// NewRedisStreamQueue creates the consumer group if it does not exist.
func NewRedisStreamQueue(ctx context.Context, client *redis.Client, opts RedisStreamOptions, logger *zap.Logger) (*RedisStreamQueue, error) {
	if client == nil {
		return nil, errors.New("redis client not configured")
	}
	err := client.XGroupCreateMkStream(ctx, opts.Stream, opts.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group %s: %w", opts.Group, err)
	}
	return &RedisStreamQueue{
		client:       client,
		stream:       opts.Stream,
		deadLetter:   opts.DeadLetter,
		group:        opts.Group,
		consumer:     opts.Consumer,
		logger:       logger,
		drainPending: true,
	}, nil
}

func (q *RedisStreamQueue) Publish(ctx context.Context, msg Message) error {
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{fieldID: msg.ID, fieldKey: msg.Key, fieldBody: string(msg.Body)},
	}).Err()
}

func (q *RedisStreamQueue) Receive(ctx context.Context) (Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Delivery{}, err
		}

		start := ">"
		block := streamBlock
		if q.drainPending {
			start = "0"
			block = -1
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, start},
			Count:    1,
			Block:    block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Delivery{}, err
		}

		for _, s := range streams {
			for _, entry := range s.Messages {
				return Delivery{Message: messageFromEntry(entry), handle: entry.ID}, nil
			}
		}
		if q.drainPending {
			q.drainPending = false
			q.logger.Debug("redis stream pending entries drained", zap.String("stream", q.stream))
		}
	}
}

func (q *RedisStreamQueue) Ack(ctx context.Context, d Delivery) error {
	id, _ := d.handle.(string)
	return q.client.XAck(ctx, q.stream, q.group, id).Err()
}

func (q *RedisStreamQueue) DeadLetter(ctx context.Context, d Delivery, reason string) error {
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.deadLetter,
		Values: map[string]any{fieldID: d.ID, fieldKey: d.Key, fieldBody: string(d.Body), fieldError: reason},
	}).Err(); err != nil {
		return fmt.Errorf("write dead letter: %w", err)
	}
	return q.Ack(ctx, d)
}

// Close is a no-op; the shared client is closed by its owner.
func (q *RedisStreamQueue) Close() error {
	return nil
}

func messageFromEntry(entry redis.XMessage) Message {
	msg := Message{ID: entry.ID}
	if id, ok := entry.Values[fieldID].(string); ok && id != "" {
		msg.ID = id
	}
	if key, ok := entry.Values[fieldKey].(string); ok {
		msg.Key = key
	}
	if body, ok := entry.Values[fieldBody].(string); ok {
		msg.Body = []byte(body)
	}
	return msg
}
