package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// AMQPBroker is a Broker on a single RabbitMQ connection and channel,
// opened once and held for the life of the process. Messages go through the
// default exchange with the queue name as routing key.
type AMQPBroker struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	durable bool
	logger  zerolog.Logger

	mu       sync.Mutex
	declared map[string]bool
}

// DialAMQP connects to the broker at url. Failure here is fatal to the
// caller; there is no retry.
func DialAMQP(url string, durable bool, logger zerolog.Logger) (*AMQPBroker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	return &AMQPBroker{
		conn:     conn,
		ch:       ch,
		durable:  durable,
		logger:   logger,
		declared: make(map[string]bool),
	}, nil
}

func (b *AMQPBroker) declare(queueName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.declared[queueName] {
		return nil
	}
	if _, err := b.ch.QueueDeclare(queueName, b.durable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queueName, mapClosed(err))
	}
	b.declared[queueName] = true
	b.logger.Debug().Str("queue", queueName).Bool("durable", b.durable).Msg("queue declared")
	return nil
}

func (b *AMQPBroker) Publish(ctx context.Context, queueName string, body []byte) error {
	if err := b.declare(queueName); err != nil {
		return err
	}
	err := b.ch.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: deliveryMode(b.durable),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queueName, mapClosed(err))
	}
	return nil
}

// Consume uses auto-ack: the broker considers each message consumed the
// moment it is delivered, before handler runs.
func (b *AMQPBroker) Consume(ctx context.Context, queueName string, handler JobHandler) error {
	if err := b.declare(queueName); err != nil {
		return err
	}
	msgs, err := b.ch.ConsumeWithContext(ctx, queueName, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queueName, mapClosed(err))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrClosed
			}
			if err := handler(ctx, d.Body); err != nil {
				b.logger.Error().Err(err).Str("queue", queueName).Msg("handler failed")
			}
		}
	}
}

func (b *AMQPBroker) Close() error {
	if err := b.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		b.conn.Close()
		return fmt.Errorf("close amqp channel: %w", err)
	}
	if err := b.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("close amqp connection: %w", err)
	}
	return nil
}

// deliveryMode pairs persistent messages with durable queues so both
// survive a broker restart together.
func deliveryMode(durable bool) uint8 {
	if durable {
		return amqp.Persistent
	}
	return amqp.Transient
}

func mapClosed(err error) error {
	if errors.Is(err, amqp.ErrClosed) {
		return ErrClosed
	}
	return err
}
