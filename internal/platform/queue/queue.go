// Package queue provides the named message channel the intake and coding
// processes talk through. A Broker publishes opaque bodies to a named queue
// and consumes them with acknowledgement on receipt.
package queue

import (
	"context"
	"errors"
)

// ErrClosed is returned when the broker connection or channel is gone.
// There is no reconnection: whichever side hits it next treats it as fatal.
var ErrClosed = errors.New("queue: broker connection closed")

// JobHandler processes one message body. Messages are acknowledged before
// the handler runs, so the returned error is logged and nothing more.
type JobHandler func(ctx context.Context, body []byte) error

// Broker is a durable FIFO-ish named channel.
type Broker interface {
	// Publish hands body to the named queue, declaring it first if needed.
	Publish(ctx context.Context, queueName string, body []byte) error
	// Consume delivers messages from the named queue to handler one at a
	// time until ctx is done (returning ctx.Err()) or the broker goes away
	// (returning ErrClosed).
	Consume(ctx context.Context, queueName string, handler JobHandler) error
	// Close releases the connection.
	Close() error
}
