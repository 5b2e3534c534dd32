package event

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sansecao/spec-workflow-mcp-pro/service/messaging"
	"github.com/sansecao/spec-workflow-mcp-pro/service/messaging/memory"
)

func TestListener_DeliversAndRetries(t *testing.T) {
	config := memory.DefaultConfig()
	config.RetryDelay = 5 * time.Millisecond
	queue := memory.NewQueue[Event[string]](config)
	publisher := NewPublisher[string](queue)

	var calls int32
	var delivered atomic.Value
	listener := NewListener[string](queue, func(ctx context.Context, event *Event[string]) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("transient")
		}
		delivered.Store(event.Data)
		return nil
	}, nil)
	listener.Start(context.Background())
	defer listener.Stop()

	require.NoError(t, publisher.Publish(context.Background(), NewEvent(&Context{Topic: "approvals", Type: "approval-update"}, "payload")))
	assert.Eventually(t, func() bool { return delivered.Load() == "payload" }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestListener_StopIsIdempotent(t *testing.T) {
	queue := memory.NewQueue[Event[int]](memory.DefaultConfig())
	listener := NewListener[int](queue, func(context.Context, *Event[int]) error { return nil }, nil)
	listener.Start(context.Background())
	listener.Stop()
	listener.Stop()
}

func TestPublisher_NilIsNoop(t *testing.T) {
	var publisher *Publisher[int]
	assert.NoError(t, publisher.Publish(context.Background(), NewEvent(&Context{}, 1)))
}

func TestPublisher_FullQueueDoesNotBlock(t *testing.T) {
	queue := memory.NewQueue[Event[int]](memory.Config{QueueBuffer: 1})
	publisher := NewPublisher[int](queue)
	require.NoError(t, publisher.Publish(context.Background(), NewEvent(&Context{}, 1)))
	err := publisher.Publish(context.Background(), NewEvent(&Context{}, 2))
	assert.True(t, errors.Is(err, messaging.ErrQueueFull))
	assert.Equal(t, 1, queue.Size())
}
