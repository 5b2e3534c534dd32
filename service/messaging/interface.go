// Package messaging defines the queue abstraction that carries approval
// change notifications from the approval service to the realtime hub.
package messaging

import (
	"context"
	"errors"
)

// ErrQueueFull is returned by non-blocking publishers when no capacity is left.
var ErrQueueFull = errors.New("messaging: queue full")

// Queue is a message queue for any payload type.
type Queue[T any] interface {
	// Publish adds a message, blocking until there is room or ctx is done.
	Publish(ctx context.Context, t *T) error

	// Consume blocks until a message is available or ctx is done.
	Consume(ctx context.Context) (Message[T], error)
}

// Message is a consumed queue entry.
type Message[T any] interface {
	T() *T

	// Ack marks the message as processed.
	Ack() error

	// Nack marks processing as failed; the queue may redeliver.
	Nack(err error) error
}
