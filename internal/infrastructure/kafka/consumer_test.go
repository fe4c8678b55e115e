package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestConsumer_StopsWhenContextIsDone(t *testing.T) {
	defer goleak.VerifyNone(t)

	// Without a group id the reader dials lazily, so no broker is needed.
	c := NewConsumer([]string{"localhost:9092"}, "order-events", "", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := c.Consume(ctx, func(context.Context, []byte, []byte) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	require.NoError(t, c.Close())
}

// scriptedReader fails the first failures reads, then serves msgs, then
// blocks until the context ends.
type scriptedReader struct {
	mu       sync.Mutex
	failures int
	msgs     []kafka.Message
	reads    []time.Time
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	r.reads = append(r.reads, time.Now())
	if r.failures > 0 {
		r.failures--
		r.mu.Unlock()
		return kafka.Message{}, errors.New("dial tcp: connection refused")
	}
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) Close() error { return nil }

func (r *scriptedReader) readTimes() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.reads...)
}

func newScriptedConsumer(r *scriptedReader) *Consumer {
	return &Consumer{
		reader:     r,
		logger:     zap.NewNop(),
		minBackoff: 20 * time.Millisecond,
		maxBackoff: 40 * time.Millisecond,
	}
}

func TestConsumer_BacksOffOnReadErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := &scriptedReader{failures: 1000}
	c := newScriptedConsumer(r)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err := c.Consume(ctx, func(context.Context, []byte, []byte) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	reads := r.readTimes()
	// 20ms, 40ms, 40ms... between attempts: a handful of reads, not a spin.
	assert.GreaterOrEqual(t, len(reads), 2)
	assert.LessOrEqual(t, len(reads), 8)
	assert.GreaterOrEqual(t, reads[1].Sub(reads[0]), 20*time.Millisecond)
}

func TestConsumer_RecoversAfterReadErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := &scriptedReader{
		failures: 2,
		msgs: []kafka.Message{
			{Key: []byte("order-1"), Value: []byte(`{"event_type":"OrderPlaced"}`)},
			{Key: []byte("order-2"), Value: []byte(`{"event_type":"OrderCancelled"}`)},
		},
	}
	c := newScriptedConsumer(r)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		keys []string
	)
	done := make(chan error, 1)
	go func() {
		done <- c.Consume(ctx, func(_ context.Context, key, _ []byte) error {
			mu.Lock()
			defer mu.Unlock()
			keys = append(keys, string(key))
			if string(key) == "order-1" {
				return errors.New("smtp unavailable")
			}
			return nil
		})
	}()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(keys) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []string{"order-1", "order-2"}, keys)
}
