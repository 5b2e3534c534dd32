package event

import (
	"context"
	"time"

	"github.com/sansecao/spec-workflow-mcp-pro/service/messaging"
)

type Publisher[T any] struct {
	queue messaging.Queue[Event[T]]
}

// nonBlocking is implemented by queues that can reject instead of wait.
type nonBlocking[T any] interface {
	TryPublish(event *Event[T]) error
}

func NewPublisher[T any](queue messaging.Queue[Event[T]]) *Publisher[T] {
	return &Publisher[T]{queue: queue}
}

// Publish stamps and enqueues event. Queues supporting TryPublish never block
// the caller; a full queue returns messaging.ErrQueueFull.
func (p *Publisher[T]) Publish(ctx context.Context, event *Event[T]) error {
	if p == nil || p.queue == nil {
		return nil
	}
	event.CreatedAt = time.Now()
	if queue, ok := p.queue.(nonBlocking[T]); ok {
		return queue.TryPublish(event)
	}
	return p.queue.Publish(ctx, event)
}

// Queue returns the underlying queue.
func (p *Publisher[T]) Queue() messaging.Queue[Event[T]] {
	return p.queue
}
