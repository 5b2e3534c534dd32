package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sansecao/spec-workflow-mcp-pro/service/messaging"
)

type change struct {
	ApprovalID string
	Action     string
}

func TestQueue_PublishConsume(t *testing.T) {
	ctx := context.Background()
	queue := NewQueue[change](DefaultConfig())

	require.NoError(t, queue.Publish(ctx, &change{ApprovalID: "a1", Action: "created"}))
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, &change{ApprovalID: "a1", Action: "created"}, message.T())
	assert.Equal(t, 0, queue.Size())

	assert.NoError(t, message.Ack())
	assert.Error(t, message.Ack())
	assert.Error(t, message.Nack(nil))
}

func TestQueue_TryPublishFull(t *testing.T) {
	config := DefaultConfig()
	config.QueueBuffer = 1
	queue := NewQueue[change](config)

	require.NoError(t, queue.TryPublish(&change{ApprovalID: "a1"}))
	err := queue.TryPublish(&change{ApprovalID: "a2"})
	assert.True(t, errors.Is(err, messaging.ErrQueueFull))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, queue.Publish(ctx, &change{ApprovalID: "a3"}))
}

func TestQueue_NackRetriesThenDeadLetters(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 2
	config.RetryDelay = 5 * time.Millisecond
	queue := NewQueue[change](config)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, queue.Publish(ctx, &change{ApprovalID: "a1"}))
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err, "attempt %d", attempt)
		assert.Equal(t, attempt, message.(*Message[change]).Retries())
		require.NoError(t, message.Nack(errors.New("refresh failed")))
	}
	assert.Eventually(t, func() bool { return queue.DLQSize() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, queue.Size())
}

func TestQueue_Concurrency(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue := NewQueue[change](DefaultConfig())
	producers, perProducer := 5, 10

	var consumed sync.WaitGroup
	consumed.Add(producers * perProducer)
	go func() {
		for {
			message, err := queue.Consume(ctx)
			if err != nil {
				return
			}
			_ = message.Ack()
			consumed.Done()
		}
	}()

	var produced sync.WaitGroup
	for p := 0; p < producers; p++ {
		produced.Add(1)
		go func() {
			defer produced.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, queue.Publish(ctx, &change{ApprovalID: "a"}))
			}
		}()
	}
	produced.Wait()
	consumed.Wait()
}
