package events

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Receive after Close.
var ErrQueueClosed = errors.New("queue closed")

// Message is an opaque queue payload. ID is the producer-side identifier used
// for tracing and de-duplication.
type Message struct {
	ID   string
	Body []byte
	// Key groups messages that must be consumed in publish order, normally
	// the ticket id. Empty falls back to ID.
	Key string
}

// OrderingKey returns Key, or ID when no key was set.
func (m Message) OrderingKey() string {
	if m.Key != "" {
		return m.Key
	}
	return m.ID
}

// Delivery is a received message awaiting Ack or DeadLetter.
type Delivery struct {
	Message
	handle any
}

// Publisher appends messages to the durable queue.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Queue is a durable FIFO with explicit acknowledgement and a dead-letter
// destination.
type Queue interface {
	Publisher
	// Receive blocks until a message is available or ctx is done.
	Receive(ctx context.Context) (Delivery, error)
	Ack(ctx context.Context, d Delivery) error
	DeadLetter(ctx context.Context, d Delivery, reason string) error
	Close() error
}

// MemoryQueue is an in-process Queue used by tests and local runs without a broker.
type MemoryQueue struct {
	mu       sync.Mutex
	pending  []Message
	notify   chan struct{}
	closed   bool
	acked    []Message
	dead     []DeadLettered
	inflight map[string]Message
}

// DeadLettered is a message moved to the dead-letter list.
type DeadLettered struct {
	Message Message
	Reason  string
}

// NewMemoryQueue creates an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		notify:   make(chan struct{}, 1),
		inflight: make(map[string]Message),
	}
}

func (q *MemoryQueue) Publish(_ context.Context, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.pending = append(q.pending, msg)
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *MemoryQueue) Receive(ctx context.Context) (Delivery, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return Delivery{}, ErrQueueClosed
		}
		if len(q.pending) > 0 {
			msg := q.pending[0]
			q.pending = q.pending[1:]
			q.inflight[msg.ID] = msg
			q.mu.Unlock()
			return Delivery{Message: msg, handle: msg.ID}, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Delivery{}, ctx.Err()
		case <-q.notify:
		}
	}
}

func (q *MemoryQueue) Ack(_ context.Context, d Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, d.ID)
	q.acked = append(q.acked, d.Message)
	return nil
}

func (q *MemoryQueue) DeadLetter(_ context.Context, d Delivery, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, d.ID)
	q.dead = append(q.dead, DeadLettered{Message: d.Message, Reason: reason})
	return nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.notify)
	return nil
}

// Acked returns acknowledged messages in order.
func (q *MemoryQueue) Acked() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Message(nil), q.acked...)
}

// DeadLettered returns dead-lettered messages in order.
func (q *MemoryQueue) DeadLettered() []DeadLettered {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DeadLettered(nil), q.dead...)
}
