package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	memoryQueueCapacity   = 100
	memoryPublishDeadline = 2 * time.Second
)

// MemoryBroker is a Broker backed by buffered Go channels. It is meant for
// tests and for running both sides of the pipeline in one process.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string]chan []byte
	done   chan struct{}
	closed bool
	logger zerolog.Logger
}

// NewMemoryBroker creates an empty in-memory broker.
func NewMemoryBroker(logger zerolog.Logger) *MemoryBroker {
	return &MemoryBroker{
		queues: make(map[string]chan []byte),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (b *MemoryBroker) queue(name string) (chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	q, ok := b.queues[name]
	if !ok {
		q = make(chan []byte, memoryQueueCapacity)
		b.queues[name] = q
		b.logger.Debug().Str("queue", name).Msg("in-memory queue declared")
	}
	return q, nil
}

func (b *MemoryBroker) Publish(ctx context.Context, queueName string, body []byte) error {
	q, err := b.queue(queueName)
	if err != nil {
		return err
	}
	msg := make([]byte, len(body))
	copy(msg, body)

	timer := time.NewTimer(memoryPublishDeadline)
	defer timer.Stop()
	select {
	case q <- msg:
		return nil
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("publish to %s: queue full", queueName)
	}
}

func (b *MemoryBroker) Consume(ctx context.Context, queueName string, handler JobHandler) error {
	q, err := b.queue(queueName)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return ErrClosed
		case body := <-q:
			if err := handler(ctx, body); err != nil {
				b.logger.Error().Err(err).Str("queue", queueName).Msg("handler failed")
			}
		}
	}
}

// Len reports how many messages are waiting on the named queue.
func (b *MemoryBroker) Len(queueName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[queueName])
}

// Close stops every consumer with ErrClosed. Queue channels are left open
// so a racing Publish cannot panic.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
	return nil
}
