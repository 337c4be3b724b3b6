package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueFIFOAndAck(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	require.NoError(t, q.Publish(ctx, Message{ID: "1", Body: []byte("a")}))
	require.NoError(t, q.Publish(ctx, Message{ID: "2", Body: []byte("b")}))

	first, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", first.ID)
	require.NoError(t, q.Ack(ctx, first))

	second, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", second.ID)
	require.NoError(t, q.DeadLetter(ctx, second, "boom"))

	assert.Len(t, q.Acked(), 1)
	require.Len(t, q.DeadLettered(), 1)
	assert.Equal(t, "boom", q.DeadLettered()[0].Reason)
}

func TestMemoryQueueReceiveHonoursContext(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueueReceiveWakesOnPublish(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got := make(chan Delivery, 1)
	go func() {
		d, err := q.Receive(ctx)
		if err == nil {
			got <- d
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Publish(ctx, Message{ID: "late"}))

	select {
	case d := <-got:
		assert.Equal(t, "late", d.ID)
	case <-ctx.Done():
		t.Fatal("receive did not wake up")
	}
}

func TestMemoryQueueClose(t *testing.T) {
	q := NewMemoryQueue()
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	_, err := q.Receive(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.ErrorIs(t, q.Publish(context.Background(), Message{ID: "x"}), ErrQueueClosed)
}
