package event

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sansecao/spec-workflow-mcp-pro/service/messaging"
)

// consumeBackoff delays the next Consume after a queue error.
const consumeBackoff = 100 * time.Millisecond

// Handler processes one event. Returning an error nacks the message so the
// queue may redeliver it.
type Handler[T any] func(ctx context.Context, event *Event[T]) error

// Listener consumes events from a queue on a background goroutine.
type Listener[T any] struct {
	queue   messaging.Queue[Event[T]]
	handler Handler[T]
	logger  *slog.Logger
	cancel  context.CancelFunc
	done    chan struct{}
	mux     sync.Mutex
}

func NewListener[T any](queue messaging.Queue[Event[T]], handler Handler[T], logger *slog.Logger) *Listener[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener[T]{queue: queue, handler: handler, logger: logger}
}

// Start launches the consume loop; it is a no-op when already running.
func (l *Listener[T]) Start(ctx context.Context) {
	l.mux.Lock()
	defer l.mux.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go l.run(ctx, l.done)
}

// Stop cancels the loop and waits for it to exit.
func (l *Listener[T]) Stop() {
	l.mux.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mux.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (l *Listener[T]) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		msg, err := l.queue.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			l.logger.Warn("event consume failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(consumeBackoff):
			}
			continue
		}
		if msg == nil {
			continue
		}
		if err = l.handler(ctx, msg.T()); err != nil {
			l.logger.Warn("event handler failed", "error", err)
			_ = msg.Nack(err)
			continue
		}
		_ = msg.Ack()
	}
}
